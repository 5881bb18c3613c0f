// Package genai is a minimal client for the Google Generative Language API.
// It covers the single generateContent call the bot needs: multimodal parts
// in, candidate text out, optional tool use.
package genai

// Part is one piece of request or response content: either text or an
// inline binary blob (audio, image).
type Part struct {
	Text string
	Blob *Blob
}

// Blob carries inline binary data with its MIME type.
type Blob struct {
	MIME string
	Data []byte
}

// Text builds a text part.
func Text(s string) Part {
	return Part{Text: s}
}

// Data builds an inline blob part.
func Data(mime string, data []byte) Part {
	return Part{Blob: &Blob{MIME: mime, Data: data}}
}

// Content is a role-tagged group of parts. Role is "user" or "model".
type Content struct {
	Role  string
	Parts []Part
}

// UserContent wraps parts as a user turn.
func UserContent(parts ...Part) Content {
	return Content{Role: RoleUser, Parts: parts}
}

// ModelContent wraps parts as a model turn.
func ModelContent(parts ...Part) Content {
	return Content{Role: RoleModel, Parts: parts}
}

const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Tool names a backend capability the model may invoke on its own.
type Tool string

// GoogleSearch lets the model ground answers with web search.
const GoogleSearch Tool = "google_search"

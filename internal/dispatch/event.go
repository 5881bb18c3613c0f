// Package dispatch routes inbound chat events: it resolves the sender's
// session, invokes the generation backend with model fallback, keeps the
// turn counter, and shields the event loop from per-event failures.
package dispatch

import "context"

// EventKind classifies an inbound event by its primary content type. The
// platform guarantees at most one primary content type per event.
type EventKind string

const (
	KindCommand  EventKind = "command"
	KindCallback EventKind = "callback"
	KindText     EventKind = "text"
	KindVoice    EventKind = "voice"
	KindImage    EventKind = "image"
)

// Event is one inbound platform event, already normalized by the adapter.
type Event struct {
	Kind      EventKind
	ChatID    int64
	SenderID  int64
	MessageID int

	// Command fields.
	Command string
	Args    string

	// Text or media caption.
	Text    string
	Caption string

	// Media reference for voice and image events.
	FileID string
	MIME   string

	// Callback fields.
	CallbackID   string
	CallbackData string
}

// CallbackReset is the callback payload carried by the reset button.
const CallbackReset = "reset_session"

// ChatAction mirrors the platform's transient status indicators.
type ChatAction string

const (
	ActionTyping      ChatAction = "typing"
	ActionRecordVoice ChatAction = "record_voice"
)

// Reply is an outbound message. OfferReset attaches the one-button
// session-reset control.
type Reply struct {
	Text       string
	OfferReset bool
}

// Messenger is the outbound half of the platform adapter.
type Messenger interface {
	Send(ctx context.Context, chatID int64, reply Reply) error
	Edit(ctx context.Context, chatID int64, messageID int, text string) error
	SendAction(ctx context.Context, chatID int64, action ChatAction) error
	AnswerCallback(ctx context.Context, callbackID string) error
	// Download fetches media bytes for a platform file reference and
	// returns the payload with its MIME type.
	Download(ctx context.Context, fileID string) ([]byte, string, error)
}

// Redeployer triggers the external redeploy hook and reports the HTTP
// status it answered with.
type Redeployer interface {
	Trigger(ctx context.Context) (int, error)
}

package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL  = "https://generativelanguage.googleapis.com/v1beta"
	defaultTimeout  = 60 * time.Second
	maxErrorBodyLen = 2048
)

// ErrNoCandidates is returned when the API answers 200 but carries no
// usable candidate (safety block, empty generation).
var ErrNoCandidates = errors.New("genai: response has no candidates")

// Client calls the Generative Language REST API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Client with the given API key. A non-positive
// timeout falls back to 60s.
func NewClient(log *slog.Logger, apiKey string, timeout time.Duration) *Client {
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     log.With(slog.String("client", "genai")),
	}
}

// SetBaseURL overrides the API endpoint. Used by tests.
func (c *Client) SetBaseURL(url string) {
	c.baseURL = strings.TrimRight(url, "/")
}

// --- wire payloads ---

type apiPart struct {
	Text       string         `json:"text,omitempty"`
	InlineData *apiInlineData `json:"inline_data,omitempty"`
}

type apiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type apiContent struct {
	Role  string    `json:"role,omitempty"`
	Parts []apiPart `json:"parts"`
}

type apiRequest struct {
	Contents []apiContent     `json:"contents"`
	Tools    []map[string]any `json:"tools,omitempty"`
}

type apiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []apiPart `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	Error *apiError `json:"error"`
}

type apiError struct {
	Code    int    `json:"code"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// GenerateContent runs one generation against the named model and returns
// the concatenated text of the first candidate. Tools, when given, allow
// the backend to invoke the capability autonomously during generation.
func (c *Client) GenerateContent(ctx context.Context, model string, contents []Content, tools ...Tool) (string, error) {
	if strings.TrimSpace(model) == "" {
		return "", fmt.Errorf("genai: model is required")
	}
	if len(contents) == 0 {
		return "", fmt.Errorf("genai: contents are required")
	}
	payload := apiRequest{Contents: make([]apiContent, 0, len(contents))}
	for _, content := range contents {
		payload.Contents = append(payload.Contents, encodeContent(content))
	}
	for _, tool := range tools {
		payload.Tools = append(payload.Tools, map[string]any{string(tool): map[string]any{}})
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("genai: encode request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("genai: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("genai: call %s: %w", model, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("genai: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("genai: %s returned %d: %s", model, resp.StatusCode, errorDetail(raw))
	}

	var parsed apiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("genai: decode response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("genai: %s: %s (%s)", model, parsed.Error.Message, parsed.Error.Status)
	}
	if len(parsed.Candidates) == 0 {
		return "", fmt.Errorf("%w (model %s)", ErrNoCandidates, model)
	}

	var sb strings.Builder
	for _, part := range parsed.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	text := strings.TrimSpace(sb.String())
	c.logger.Debug("generate done",
		slog.String("model", model),
		slog.Duration("latency", time.Since(started)),
		slog.Int("chars", len(text)),
	)
	return text, nil
}

func encodeContent(content Content) apiContent {
	encoded := apiContent{Role: content.Role, Parts: make([]apiPart, 0, len(content.Parts))}
	for _, part := range content.Parts {
		if part.Blob != nil {
			encoded.Parts = append(encoded.Parts, apiPart{
				InlineData: &apiInlineData{
					MimeType: part.Blob.MIME,
					Data:     base64.StdEncoding.EncodeToString(part.Blob.Data),
				},
			})
			continue
		}
		encoded.Parts = append(encoded.Parts, apiPart{Text: part.Text})
	}
	return encoded
}

// errorDetail extracts the API error message from a non-200 body, falling
// back to a truncated raw body.
func errorDetail(raw []byte) string {
	var parsed struct {
		Error apiError `json:"error"`
	}
	if err := json.Unmarshal(raw, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	detail := strings.TrimSpace(string(raw))
	if len(detail) > maxErrorBodyLen {
		detail = detail[:maxErrorBodyLen]
	}
	return detail
}

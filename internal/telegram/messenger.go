package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/univoxai/univox/internal/dispatch"
)

var resetKeyboard = tgbotapi.NewInlineKeyboardMarkup(
	tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🔄 Reset session", dispatch.CallbackReset),
	),
)

// Send delivers a reply, attaching the reset control when requested.
func (b *Bot) Send(ctx context.Context, chatID int64, reply dispatch.Reply) error {
	msg := tgbotapi.NewMessage(chatID, truncateText(sanitizeText(reply.Text)))
	if reply.OfferReset {
		msg.ReplyMarkup = resetKeyboard
	}
	_, err := b.api.Send(msg)
	return err
}

// Edit replaces the text of a previously sent message.
func (b *Bot) Edit(ctx context.Context, chatID int64, messageID int, text string) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, truncateText(sanitizeText(text)))
	_, err := b.api.Send(edit)
	if err != nil && isMessageNotModified(err) {
		return nil
	}
	return err
}

// SendAction shows a transient typing/recording indicator.
func (b *Bot) SendAction(ctx context.Context, chatID int64, action dispatch.ChatAction) error {
	chatAction := tgbotapi.NewChatAction(chatID, string(action))
	_, err := b.api.Request(chatAction)
	return err
}

// AnswerCallback acknowledges a callback query so the client stops its
// spinner.
func (b *Bot) AnswerCallback(ctx context.Context, callbackID string) error {
	_, err := b.api.Request(tgbotapi.NewCallback(callbackID, ""))
	return err
}

// Download resolves a file reference and fetches its bytes, bounded by the
// Bot API download limit. Returns the payload and the Content-Type the
// file server reported.
func (b *Bot) Download(ctx context.Context, fileID string) ([]byte, string, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, "", fmt.Errorf("resolve file url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build download request: %w", err)
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download file: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, "", fmt.Errorf("download file status: %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read file body: %w", err)
	}
	if int64(len(data)) > maxDownloadBytes {
		return nil, "", fmt.Errorf("file exceeds %d bytes", maxDownloadBytes)
	}
	mime := strings.TrimSpace(resp.Header.Get("Content-Type"))
	if idx := strings.Index(mime, ";"); idx >= 0 {
		mime = strings.TrimSpace(mime[:idx])
	}
	return data, mime, nil
}

func isMessageNotModified(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 400 && strings.Contains(apiErr.Message, "message is not modified")
	}
	return false
}

// sanitizeText strips invalid UTF-8 the API would reject.
func sanitizeText(text string) string {
	if utf8.ValidString(text) {
		return text
	}
	return strings.ToValidUTF8(text, "")
}

// truncateText cuts text to the platform message limit on a rune boundary,
// appending "..." when truncation occurs.
func truncateText(text string) string {
	if len(text) <= maxMessageLength {
		return text
	}
	const suffix = "..."
	limit := maxMessageLength - len(suffix)
	for limit > 0 && !utf8.RuneStart(text[limit]) {
		limit--
	}
	return text[:limit] + suffix
}

var _ dispatch.Messenger = (*Bot)(nil)

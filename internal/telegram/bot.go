// Package telegram adapts the Telegram Bot API to the dispatch core: it
// long-polls for updates, normalizes them into dispatch events, and
// implements the outbound Messenger.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/univoxai/univox/internal/dispatch"
)

const (
	maxMessageLength = 4096
	// maxDownloadBytes matches the Bot API's 20 MB file download limit.
	maxDownloadBytes int64 = 20 * 1024 * 1024
)

// Handler consumes normalized inbound events.
type Handler interface {
	Handle(ctx context.Context, ev dispatch.Event)
}

// Bot wraps a single bot token's API connection.
type Bot struct {
	logger     *slog.Logger
	api        *tgbotapi.BotAPI
	httpClient *http.Client
}

// New authenticates the bot token against the API.
func New(log *slog.Logger, token string, downloadTimeout time.Duration) (*Bot, error) {
	if log == nil {
		log = slog.Default()
	}
	if downloadTimeout <= 0 {
		downloadTimeout = 30 * time.Second
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	bot := &Bot{
		logger:     log.With(slog.String("adapter", "telegram")),
		api:        api,
		httpClient: &http.Client{Timeout: downloadTimeout},
	}
	_ = tgbotapi.SetLogger(&slogBotLogger{log: bot.logger})
	return bot, nil
}

// Username returns the authenticated bot's username.
func (b *Bot) Username() string {
	return b.api.Self.UserName
}

// DeleteWebhook clears any webhook registration so long polling can take
// over, optionally dropping updates queued while the bot was down.
func (b *Bot) DeleteWebhook(dropPending bool) error {
	_, err := b.api.Request(tgbotapi.DeleteWebhookConfig{DropPendingUpdates: dropPending})
	return err
}

// Run long-polls for updates until ctx is cancelled. Each update is
// handled on its own goroutine so one slow generation never blocks
// delivery of unrelated events.
func (b *Bot) Run(ctx context.Context, handler Handler) {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 30
	updates := b.api.GetUpdatesChan(updateConfig)
	b.logger.Info("polling started", slog.String("username", b.api.Self.UserName))

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			// Drain so the library's polling goroutine can exit; an
			// in-flight long poll would otherwise hold the getUpdates
			// session and conflict with the next start.
			for range updates {
			}
			b.logger.Info("polling stopped")
			return
		case update, ok := <-updates:
			if !ok {
				b.logger.Info("updates channel closed")
				return
			}
			ev, ok := eventFromUpdate(update)
			if !ok {
				continue
			}
			b.logger.Info("inbound received",
				slog.String("kind", string(ev.Kind)),
				slog.Int64("chat_id", ev.ChatID),
				slog.Int64("user_id", ev.SenderID),
			)
			go handler.Handle(ctx, ev)
		}
	}
}

// eventFromUpdate maps one update to a dispatch event. The second return
// is false for updates the bot ignores.
func eventFromUpdate(update tgbotapi.Update) (dispatch.Event, bool) {
	if update.CallbackQuery != nil {
		return eventFromCallback(update.CallbackQuery)
	}
	if update.Message != nil {
		return eventFromMessage(update.Message)
	}
	return dispatch.Event{}, false
}

func eventFromCallback(cb *tgbotapi.CallbackQuery) (dispatch.Event, bool) {
	if cb.Message == nil || cb.From == nil {
		return dispatch.Event{}, false
	}
	return dispatch.Event{
		Kind:         dispatch.KindCallback,
		ChatID:       cb.Message.Chat.ID,
		SenderID:     cb.From.ID,
		MessageID:    cb.Message.MessageID,
		CallbackID:   cb.ID,
		CallbackData: cb.Data,
	}, true
}

func eventFromMessage(msg *tgbotapi.Message) (dispatch.Event, bool) {
	if msg.From == nil || msg.Chat == nil {
		return dispatch.Event{}, false
	}
	base := dispatch.Event{
		ChatID:    msg.Chat.ID,
		SenderID:  msg.From.ID,
		MessageID: msg.MessageID,
	}
	switch {
	case msg.IsCommand():
		base.Kind = dispatch.KindCommand
		base.Command = msg.Command()
		base.Args = strings.TrimSpace(msg.CommandArguments())
		return base, true
	case msg.Voice != nil:
		base.Kind = dispatch.KindVoice
		base.FileID = msg.Voice.FileID
		base.MIME = msg.Voice.MimeType
		return base, true
	case len(msg.Photo) > 0:
		photo := pickPhoto(msg.Photo)
		base.Kind = dispatch.KindImage
		base.FileID = photo.FileID
		base.MIME = "image/jpeg"
		base.Caption = strings.TrimSpace(msg.Caption)
		return base, true
	case strings.TrimSpace(msg.Text) != "":
		base.Kind = dispatch.KindText
		base.Text = strings.TrimSpace(msg.Text)
		return base, true
	default:
		return dispatch.Event{}, false
	}
}

// pickPhoto selects the largest rendition Telegram offers for a photo.
func pickPhoto(items []tgbotapi.PhotoSize) tgbotapi.PhotoSize {
	if len(items) == 0 {
		return tgbotapi.PhotoSize{}
	}
	best := items[0]
	for _, item := range items[1:] {
		if item.FileSize > best.FileSize {
			best = item
			continue
		}
		if item.Width*item.Height > best.Width*best.Height {
			best = item
		}
	}
	return best
}

// slogBotLogger routes the library's internal logging through slog.
type slogBotLogger struct {
	log *slog.Logger
}

func (l *slogBotLogger) Println(v ...interface{}) {
	l.log.Debug("tgbotapi", slog.String("msg", fmt.Sprint(v...)))
}

func (l *slogBotLogger) Printf(format string, v ...interface{}) {
	l.log.Debug("tgbotapi", slog.String("msg", strings.TrimSpace(fmt.Sprintf(format, v...))))
}

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/univoxai/univox/internal/genai"
	"github.com/univoxai/univox/internal/session"
)

// WarningThreshold is the turn count at which replies start carrying the
// reset control. Sticky: once reached, every later reply offers it too.
const WarningThreshold = 15

// maxDiagnosticLen bounds operator diagnostics well under the platform's
// 4096-char message limit.
const maxDiagnosticLen = 3500

const voiceInstruction = "Listen to this voice message and answer it as if it had been typed."

const defaultImagePrompt = "Describe this image and point out anything notable."

// User-visible notices. Always short and static per failure type; raw
// error detail goes to the log and the operator only.
const (
	msgResetDone         = "✅ Session reset. The conversation starts fresh."
	msgChangeUsage       = "Usage: /change <model-id>"
	msgTextFailure       = "❌ Generation failed. Try again, or /reset if it keeps happening."
	msgVoiceFailure      = "❌ Could not process that voice message. Try again, or /reset if it keeps happening."
	msgImageFailure      = "❌ Could not analyze that image. Please try again."
	msgVoiceFetchFailure = "❌ Could not fetch the voice recording. Please send it again."
	msgImageFetchFailure = "❌ Could not fetch the image. Please send it again."
	msgEmptyResponse     = "⚠️ The model returned an empty response."
	msgRedeployMissing   = "Redeploy hook is not configured."
)

// Dispatcher routes one inbound event at a time. It is safe for
// concurrent use; turns of the same user are serialized by the store.
type Dispatcher struct {
	logger   *slog.Logger
	store    *session.Store
	chain    *ModelChain
	msgr     Messenger
	redeploy Redeployer
	adminID  int64
}

// NewDispatcher wires the dispatch core. redeploy may be nil when no hook
// URL is configured; adminID 0 disables the operator channel entirely.
func NewDispatcher(log *slog.Logger, store *session.Store, chain *ModelChain, msgr Messenger, redeploy Redeployer, adminID int64) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		logger:   log.With(slog.String("service", "dispatch")),
		store:    store,
		chain:    chain,
		msgr:     msgr,
		redeploy: redeploy,
		adminID:  adminID,
	}
}

// Handle processes one inbound event to completion. It never panics the
// loop and never returns: every failure ends as a user notice plus a log
// line, optionally forwarded to the operator.
func (d *Dispatcher) Handle(ctx context.Context, ev Event) {
	switch ev.Kind {
	case KindCommand:
		d.handleCommand(ctx, ev)
	case KindCallback:
		d.handleCallback(ctx, ev)
	case KindText:
		d.handleText(ctx, ev)
	case KindVoice:
		d.handleVoice(ctx, ev)
	case KindImage:
		d.handleImage(ctx, ev)
	default:
		// Stickers, locations, and other content types are ignored.
	}
}

func (d *Dispatcher) handleCommand(ctx context.Context, ev Event) {
	switch ev.Command {
	case "start":
		d.store.Reset(ev.SenderID)
		greeting := fmt.Sprintf("🚀 Univox ready\nModel: %s\n\nSend text, a voice message, or a photo.", d.chain.Primary())
		d.send(ctx, ev.ChatID, Reply{Text: greeting})
	case "reset":
		d.store.Reset(ev.SenderID)
		d.send(ctx, ev.ChatID, Reply{Text: msgResetDone})
	case "change":
		model := strings.TrimSpace(ev.Args)
		if model == "" {
			d.send(ctx, ev.ChatID, Reply{Text: msgChangeUsage})
			return
		}
		if err := d.chain.SetPrimary(model); err != nil {
			d.send(ctx, ev.ChatID, Reply{Text: msgChangeUsage})
			return
		}
		d.send(ctx, ev.ChatID, Reply{Text: fmt.Sprintf("✅ Switched to: %s", model)})
	case "redeploy":
		d.handleRedeploy(ctx, ev)
	default:
		// Unknown commands are ignored.
	}
}

func (d *Dispatcher) handleCallback(ctx context.Context, ev Event) {
	if ev.CallbackData != CallbackReset {
		return
	}
	if err := d.msgr.AnswerCallback(ctx, ev.CallbackID); err != nil {
		d.logger.Warn("answer callback failed", slog.Any("error", err))
	}
	d.store.Reset(ev.SenderID)
	if err := d.msgr.Edit(ctx, ev.ChatID, ev.MessageID, msgResetDone); err != nil {
		d.logger.Warn("edit reset confirmation failed", slog.Any("error", err))
		d.send(ctx, ev.ChatID, Reply{Text: msgResetDone})
	}
}

func (d *Dispatcher) handleText(ctx context.Context, ev Event) {
	text := strings.TrimSpace(ev.Text)
	if text == "" {
		return
	}
	sess, done := d.store.BeginTurn(ev.SenderID)
	defer done()

	d.action(ctx, ev.ChatID, ActionTyping)
	answer, err := sess.Conv.Send(ctx, []genai.Part{genai.Text(text)})
	if err != nil {
		d.failTurn(ctx, ev, msgTextFailure, err)
		return
	}
	count := d.store.Increment(sess)
	d.send(ctx, ev.ChatID, Reply{Text: answer, OfferReset: count >= WarningThreshold})
}

func (d *Dispatcher) handleVoice(ctx context.Context, ev Event) {
	sess, done := d.store.BeginTurn(ev.SenderID)
	defer done()

	d.action(ctx, ev.ChatID, ActionRecordVoice)
	audio, mime, err := d.msgr.Download(ctx, ev.FileID)
	if err != nil {
		d.logger.Error("voice download failed", slog.Int64("user_id", ev.SenderID), slog.Any("error", err))
		d.send(ctx, ev.ChatID, Reply{Text: msgVoiceFetchFailure})
		return
	}
	if mime == "" {
		mime = ev.MIME
	}
	parts := []genai.Part{genai.Text(voiceInstruction), genai.Data(mime, audio)}
	answer, err := sess.Conv.Send(ctx, parts)
	if err != nil {
		d.failTurn(ctx, ev, msgVoiceFailure, err)
		return
	}
	count := d.store.Increment(sess)
	d.send(ctx, ev.ChatID, Reply{Text: answer, OfferReset: count >= WarningThreshold})
}

// handleImage analyzes the image as a one-shot request. It deliberately
// bypasses the conversation handle and never touches the turn counter, so
// image traffic stays stateless and cheap.
func (d *Dispatcher) handleImage(ctx context.Context, ev Event) {
	d.action(ctx, ev.ChatID, ActionTyping)
	image, mime, err := d.msgr.Download(ctx, ev.FileID)
	if err != nil {
		d.logger.Error("image download failed", slog.Int64("user_id", ev.SenderID), slog.Any("error", err))
		d.send(ctx, ev.ChatID, Reply{Text: msgImageFetchFailure})
		return
	}
	if mime == "" {
		mime = ev.MIME
	}
	prompt := strings.TrimSpace(ev.Caption)
	if prompt == "" {
		prompt = defaultImagePrompt
	}
	contents := []genai.Content{genai.UserContent(genai.Text(prompt), genai.Data(mime, image))}
	answer, err := d.chain.Generate(ctx, contents)
	if err != nil {
		d.failTurn(ctx, ev, msgImageFailure, err)
		return
	}
	d.send(ctx, ev.ChatID, Reply{Text: answer})
}

func (d *Dispatcher) handleRedeploy(ctx context.Context, ev Event) {
	// Non-operators get no reply at all; the control stays invisible.
	if d.adminID == 0 || ev.SenderID != d.adminID {
		d.logger.Info("redeploy denied", slog.Int64("user_id", ev.SenderID))
		return
	}
	if d.redeploy == nil {
		d.send(ctx, ev.ChatID, Reply{Text: msgRedeployMissing})
		return
	}
	status, err := d.redeploy.Trigger(ctx)
	if err != nil {
		d.send(ctx, ev.ChatID, Reply{Text: fmt.Sprintf("❌ Redeploy hook failed: %v", err)})
		return
	}
	if status != 200 {
		d.send(ctx, ev.ChatID, Reply{Text: fmt.Sprintf("❌ Redeploy hook returned HTTP %d.", status)})
		return
	}
	d.send(ctx, ev.ChatID, Reply{Text: "✅ Redeploy triggered (HTTP 200)."})
}

// failTurn converts a backend failure into exactly one user notice and, on
// fallback exhaustion, one best-effort operator diagnostic.
func (d *Dispatcher) failTurn(ctx context.Context, ev Event, notice string, err error) {
	if errors.Is(err, ErrEmptyResponse) {
		d.send(ctx, ev.ChatID, Reply{Text: msgEmptyResponse})
		return
	}
	d.logger.Error("turn failed",
		slog.String("kind", string(ev.Kind)),
		slog.Int64("user_id", ev.SenderID),
		slog.Any("error", err),
	)
	d.send(ctx, ev.ChatID, Reply{Text: notice})
	d.notifyOperator(ctx, ev, err)
}

// notifyOperator forwards a bounded diagnostic to the operator chat. A
// delivery failure is swallowed after logging; it must never cascade.
func (d *Dispatcher) notifyOperator(ctx context.Context, ev Event, cause error) {
	if d.adminID == 0 {
		return
	}
	diag := fmt.Sprintf("⚠️ %s turn failed for user %d\n%v", ev.Kind, ev.SenderID, cause)
	if err := d.msgr.Send(ctx, d.adminID, Reply{Text: truncate(diag, maxDiagnosticLen)}); err != nil {
		d.logger.Warn("operator diagnostic delivery failed", slog.Any("error", err))
	}
}

func (d *Dispatcher) send(ctx context.Context, chatID int64, reply Reply) {
	if err := d.msgr.Send(ctx, chatID, reply); err != nil {
		d.logger.Error("send failed", slog.Int64("chat_id", chatID), slog.Any("error", err))
	}
}

func (d *Dispatcher) action(ctx context.Context, chatID int64, action ChatAction) {
	if err := d.msgr.SendAction(ctx, chatID, action); err != nil {
		d.logger.Warn("chat action failed", slog.Any("error", err))
	}
}

// truncate cuts s to at most limit bytes on a rune boundary.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}

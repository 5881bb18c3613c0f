package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/univoxai/univox/internal/genai"
)

// Generator is the backend capability the chain iterates over.
// *genai.Client satisfies it.
type Generator interface {
	GenerateContent(ctx context.Context, model string, contents []genai.Content, tools ...genai.Tool) (string, error)
}

var (
	// ErrExhausted means every candidate model failed.
	ErrExhausted = errors.New("all model candidates failed")
	// ErrEmptyResponse means the only candidate answered with no text.
	ErrEmptyResponse = errors.New("model returned an empty response")
)

// ModelChain tries an ordered list of model identifiers until one returns
// usable text. A candidate error or, when alternates remain, an empty
// response moves on to the next candidate. The list order is fixed for the
// process lifetime; only the preferred head can be swapped at runtime.
type ModelChain struct {
	mu     sync.RWMutex
	models []string
	gen    Generator
	logger *slog.Logger
}

// NewModelChain builds a chain over gen with the given candidates.
func NewModelChain(log *slog.Logger, gen Generator, models []string) (*ModelChain, error) {
	if log == nil {
		log = slog.Default()
	}
	cleaned := make([]string, 0, len(models))
	for _, m := range models {
		if m = strings.TrimSpace(m); m != "" {
			cleaned = append(cleaned, m)
		}
	}
	if len(cleaned) == 0 {
		return nil, fmt.Errorf("model chain needs at least one candidate")
	}
	return &ModelChain{
		models: cleaned,
		gen:    gen,
		logger: log.With(slog.String("service", "model_chain")),
	}, nil
}

// Primary returns the currently preferred model.
func (mc *ModelChain) Primary() string {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.models[0]
}

// Models returns a copy of the candidate list in fallback order.
func (mc *ModelChain) Models() []string {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return append([]string(nil), mc.models...)
}

// SetPrimary makes model the preferred candidate. A model already in the
// list is moved to the front; an unknown one is prepended, keeping the
// configured alternates as fallback.
func (mc *ModelChain) SetPrimary(model string) error {
	model = strings.TrimSpace(model)
	if model == "" {
		return fmt.Errorf("model identifier is required")
	}
	mc.mu.Lock()
	defer mc.mu.Unlock()
	reordered := []string{model}
	for _, m := range mc.models {
		if m != model {
			reordered = append(reordered, m)
		}
	}
	mc.models = reordered
	mc.logger.Info("primary model changed", slog.String("model", model))
	return nil
}

// Generate walks the candidate list in order and returns the first
// non-empty result. Candidate failures are recorded and do not abort the
// walk; on exhaustion the joined failures are returned under ErrExhausted.
// An empty answer from a single-candidate chain surfaces as
// ErrEmptyResponse instead of falling through to exhaustion.
func (mc *ModelChain) Generate(ctx context.Context, contents []genai.Content, tools ...genai.Tool) (string, error) {
	models := mc.Models()
	var failures []error
	for _, model := range models {
		text, err := mc.gen.GenerateContent(ctx, model, contents, tools...)
		if err != nil {
			mc.logger.Warn("candidate failed", slog.String("model", model), slog.Any("error", err))
			failures = append(failures, fmt.Errorf("%s: %w", model, err))
			continue
		}
		if strings.TrimSpace(text) == "" {
			if len(models) == 1 {
				return "", ErrEmptyResponse
			}
			mc.logger.Warn("candidate returned empty text", slog.String("model", model))
			failures = append(failures, fmt.Errorf("%s: empty response", model))
			continue
		}
		return text, nil
	}
	return "", fmt.Errorf("%w: %w", ErrExhausted, errors.Join(failures...))
}

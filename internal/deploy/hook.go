// Package deploy triggers the hosting platform's redeploy hook.
package deploy

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Hook calls a deploy-trigger URL with a bounded timeout. Only a 200
// answer counts as success; everything else is reported to the caller.
type Hook struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

// New builds a Hook for url. Returns nil when no URL is configured, which
// callers treat as "hook absent".
func New(log *slog.Logger, url string, timeout time.Duration) *Hook {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil
	}
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Hook{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		logger:     log.With(slog.String("service", "deploy_hook")),
	}
}

// Trigger fires the hook and returns the HTTP status it answered with.
func (h *Hook) Trigger(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return 0, fmt.Errorf("build redeploy request: %w", err)
	}
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("call redeploy hook: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	_, _ = io.Copy(io.Discard, resp.Body)
	h.logger.Info("redeploy hook called", slog.Int("status", resp.StatusCode))
	return resp.StatusCode, nil
}

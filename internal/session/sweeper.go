package session

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// NewSweeper schedules periodic EvictIdle sweeps on the store. The
// returned cron is not started; the caller owns its lifecycle. Interval
// uses Go duration syntax (e.g. "10m").
func NewSweeper(log *slog.Logger, store *Store, interval string) (*cron.Cron, error) {
	if log == nil {
		log = slog.Default()
	}
	interval = strings.TrimSpace(interval)
	if interval == "" {
		interval = "10m"
	}
	if _, err := time.ParseDuration(interval); err != nil {
		return nil, fmt.Errorf("sweep interval %q: %w", interval, err)
	}
	c := cron.New()
	_, err := c.AddFunc("@every "+interval, func() {
		store.EvictIdle(time.Now())
	})
	if err != nil {
		return nil, fmt.Errorf("schedule session sweep: %w", err)
	}
	log.Info("session sweeper scheduled", slog.String("interval", interval))
	return c, nil
}

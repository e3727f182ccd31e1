package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/eternisai/enchanted-chat/internal/logger"
)

// Warmer refreshes the catalog on a cron schedule so requests rarely hit a cold cache.
type Warmer struct {
	catalog *Catalog
	cron    *cron.Cron
	logger  *logger.Logger
	timeout time.Duration
}

// NewWarmer parses schedule (standard 5-field cron spec or a descriptor such as "@every 50m").
func NewWarmer(catalog *Catalog, schedule string, log *logger.Logger) (*Warmer, error) {
	w := &Warmer{
		catalog: catalog,
		cron:    cron.New(),
		logger:  log.WithComponent("catalog_warmer"),
		timeout: 30 * time.Second,
	}

	if _, err := w.cron.AddFunc(schedule, w.refresh); err != nil {
		return nil, fmt.Errorf("invalid catalog warm schedule %q: %w", schedule, err)
	}

	return w, nil
}

// Start runs an initial refresh in the background and starts the schedule.
func (w *Warmer) Start() {
	w.logger.Info("starting catalog warmer", slog.Int("entries", len(w.cron.Entries())))
	go w.refresh()
	w.cron.Start()
}

// Stop stops the schedule and waits for a running refresh to finish or ctx to end.
func (w *Warmer) Stop(ctx context.Context) {
	done := w.cron.Stop()
	select {
	case <-done.Done():
		w.logger.Info("catalog warmer stopped")
	case <-ctx.Done():
		w.logger.Warn("catalog warmer stop timed out")
	}
}

func (w *Warmer) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()
	ctx = logger.WithOperation(ctx, "catalog_warm")

	if _, err := w.catalog.Refresh(ctx); err != nil {
		w.logger.WithContext(ctx).Warn("catalog warm refresh failed", slog.String("error", err.Error()))
	}
}

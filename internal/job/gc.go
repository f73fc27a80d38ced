package job

import (
	"context"
	"log/slog"
	"time"
)

// Collector periodically evicts expired jobs from a Store.
type Collector struct {
	store    *Store
	interval time.Duration
}

func NewCollector(store *Store, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Collector{store: store, interval: interval}
}

// Run blocks until ctx is cancelled.
func (c *Collector) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := c.store.Collect(now); n > 0 {
				slog.Info("evicted jobs", "count", n, "remaining", c.store.Len())
			}
		}
	}
}

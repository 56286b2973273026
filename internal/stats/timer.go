package stats

import (
	"context"
	"log/slog"
	"time"
)

// DefaultInterval matches the dashboard's original 5-second poll cycle.
const DefaultInterval = 5 * time.Second

// Timer periodically recomputes the dashboard summary.
type Timer struct {
	agg      *Aggregator
	interval time.Duration
	logger   *slog.Logger
	notify   func(*Summary)
	stop     chan struct{}
}

// NewTimer creates a summary recompute timer. notify, when non-nil, is
// called with each fresh snapshot (used to push updates to WebSocket
// subscribers).
func NewTimer(agg *Aggregator, interval time.Duration, logger *slog.Logger, notify func(*Summary)) *Timer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Timer{
		agg:      agg,
		interval: interval,
		logger:   logger,
		notify:   notify,
		stop:     make(chan struct{}),
	}
}

// Start begins the recompute loop. Call in a goroutine.
func (t *Timer) Start(ctx context.Context) {
	t.logger.Info("summary timer started", "interval", t.interval)
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	defer t.logger.Info("summary timer stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stop:
			return
		case <-ticker.C:
			summary := t.agg.Refresh(ctx)
			if t.notify != nil {
				t.notify(summary)
			}
		}
	}
}

// Stop signals the timer to stop.
func (t *Timer) Stop() {
	select {
	case t.stop <- struct{}{}:
	default:
	}
}

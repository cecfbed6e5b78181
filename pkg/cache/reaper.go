package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// reaper is the background goroutine that periodically removes expired entries from its owning cache.
// It is owned by exactly one cache and never shared.
type reaper struct {
	interval time.Duration
	sweep    func() int // Removes expired entries; returns how many were removed.
	metrics  *cacheMetrics
	cancel   context.CancelFunc
	done     chan struct{} // Closed once the goroutine returned.
}

// startReaper launches the sweep loop. The loop ends when `ctx` is done or stop is called.
func startReaper(ctx context.Context, interval time.Duration, sweep func() int, metrics *cacheMetrics) *reaper {
	ctx, cancel := context.WithCancel(ctx)
	r := &reaper{interval: interval, sweep: sweep, metrics: metrics, cancel: cancel, done: make(chan struct{})}
	go r.run(ctx)
	return r
}

func (r *reaper) run(ctx context.Context) {
	defer close(r.done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = r.pass()
		}
	}
}

// pass runs a single sweep. A panic is contained here so one failed pass never ends the schedule.
func (r *reaper) pass() (removed int, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("sweep panicked: %v", recovered)
			r.metrics.sweepsFailed.Inc()
			slog.Error("Reaper pass failed, keeping the schedule.", "error", err)
		}
	}()
	removed = r.sweep()
	r.metrics.sweepsOk.Inc()
	if removed > 0 {
		slog.Debug("Reaper removed expired entries.", "removed", removed)
	}
	return removed, nil
}

// stop cancels the loop and blocks until it exited. Calling stop more than once is fine.
func (r *reaper) stop() {
	r.cancel()
	<-r.done
}

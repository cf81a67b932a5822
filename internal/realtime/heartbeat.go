package realtime

import (
	"context"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
)

// SweepIdle disconnects every connection silent for longer than timeout and
// returns how many were removed.
func (r *Registry) SweepIdle(timeout time.Duration) int {
	n := 0
	for _, id := range r.Stale(timeout) {
		if r.disconnect(id, websocket.StatusPolicyViolation, "idle timeout") {
			n++
		}
	}
	return n
}

// RunIdleSweeper calls SweepIdle every interval until ctx is cancelled.
func (r *Registry) RunIdleSweeper(ctx context.Context, interval, timeout time.Duration) error {
	if interval <= 0 || timeout <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := r.SweepIdle(timeout); n > 0 {
				r.logger.WithFields(logrus.Fields{
					"removed": n,
					"timeout": timeout,
				}).Info("realtime: swept idle connections")
			}
		}
	}
}

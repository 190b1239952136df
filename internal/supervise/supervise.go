// Package supervise generalizes the ticker-plus-goroutine loop repeated
// across this server's background workers into a single helper that
// recovers from panics and restarts with backoff, since its background
// subsystems (the store sweeper, the flatten maintainer, the health
// prober, the geo updater, the metrics ticker) must keep running
// independently of one another for the life of the process.
package supervise

import (
	"context"
	"time"

	"authdns/internal/logging"
)

// minBackoff and maxBackoff bound the restart delay after a panicking
// iteration, growing geometrically between them.
const (
	minBackoff = 1 * time.Second
	maxBackoff = 30 * time.Second
)

// Loop runs fn every interval until ctx is canceled, logging and
// recovering from any panic inside fn rather than letting it take down
// the process, then restarting on a backoff that resets after a clean
// run.
func Loop(ctx context.Context, log *logging.Logger, name string, interval time.Duration, fn func(ctx context.Context)) {
	backoff := minBackoff
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if runOnce(ctx, log, name, fn) {
				backoff = minBackoff
				continue
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}
}

// runOnce invokes fn, recovering from any panic and logging it. Returns
// false if fn panicked.
func runOnce(ctx context.Context, log *logging.Logger, name string, fn func(ctx context.Context)) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("supervised loop %q panicked: %v", name, r)
			ok = false
		}
	}()
	fn(ctx)
	return true
}

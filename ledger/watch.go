package ledger

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Watch mines the pending pool every interval until ctx ends. A tick is skipped when
// the pool is empty or the previous attempt is still running. Watch returns after the
// last attempt has finished.
func (l *Ledger) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	var wg sync.WaitGroup
	defer wg.Wait()

	l.logger.Info("mining watcher started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("mining watcher stopped")
			return
		case <-ticker.C:
			if l.PendingCount() == 0 {
				continue
			}
			if !l.mining.CompareAndSwap(false, true) {
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer l.mining.Store(false)
				b, err := l.MineBlock(ctx)
				switch {
				case err == nil:
					l.logger.Info("watcher mined block", "number", b.Number, "documents", len(b.Documents))
				case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
					// shutting down
				case errors.Is(err, ErrStaleBlock):
					l.logger.Debug("watcher block went stale")
				default:
					l.logger.Error("watcher mining failed", "error", err)
				}
			}()
		}
	}
}

package history

import (
	"context"
	"time"
)

// RunRetention prunes entries older than retention immediately and then
// every interval until ctx is done.
func RunRetention(ctx context.Context, repo Repository, retention, interval time.Duration, logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	if retention <= 0 || interval <= 0 {
		return
	}

	prune := func() {
		n, err := repo.Prune(ctx, retention)
		if err != nil {
			if ctx.Err() == nil {
				logger.Error("pruning state history failed", "error", err)
			}
			return
		}
		if n > 0 {
			logger.Info("state history pruned", "deleted", n, "retention", retention)
		}
	}

	prune()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}

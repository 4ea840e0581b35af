package ratelimit

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// RunCleaner prunes expired windows every interval until ctx is done.
// Call from main or the app lifecycle.
func RunCleaner(ctx context.Context, l *Limiter, every time.Duration, log zerolog.Logger) {
	if every <= 0 {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.Prune(l.now()); n > 0 {
				log.Debug().Int("removed", n).Int("live", l.Len()).Msg("pruned rate windows")
			}
		}
	}
}

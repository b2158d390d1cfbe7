package report

import (
	"context"
	"time"
)

// DefaultRefresh is how often Watch re-reads the store.
const DefaultRefresh = 60 * time.Second

// Watch calls fn with today's report right away and then on every tick until ctx ends.
// fn receives nil when there is no report yet.
func (c *Controller) Watch(ctx context.Context, interval time.Duration, fn func(*Today)) error {
	if interval <= 0 {
		interval = DefaultRefresh
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	fn(c.LoadToday(ctx))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := ctx.Err(); err != nil {
				return err
			}
			fn(c.LoadToday(ctx))
		}
	}
}

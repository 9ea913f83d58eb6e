package usecase

import (
	"context"
	stderrors "errors"
	"time"

	storemodel "social-connect/internal/store/domain/model"
	"social-connect/internal/store/domain/repository"
)

var errSubscriptionClosed = stderrors.New("subscription closed")

type openFunc func(ctx context.Context) (repository.Subscription, error)

// listen keeps a store subscription alive until ctx is done. A failed
// subscribe, an error snapshot or a closed channel re-establishes it after a
// backoff that doubles up to Backoff.MaxDelay and resets on the next good
// snapshot. Local state is never cleared on error.
func (c *component) listen(ctx context.Context, target string, open openFunc, handle func(ctx context.Context, snap storemodel.Snapshot)) {
	log := c.log.WithContext(ctx).WithFields(map[string]interface{}{"target": target})
	delay := c.deps.Backoff.Delay

	for ctx.Err() == nil {
		sub, err := open(ctx)
		if err != nil {
			log.Warnf("subscribe failed: %v", err)
		} else {
			healthy, cause := consume(ctx, sub, handle)
			sub.Cancel()
			if ctx.Err() != nil {
				return
			}
			if healthy {
				delay = c.deps.Backoff.Delay
			}
			log.Warnf("subscription lost, re-establishing in %s: %v", delay, cause)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay = nextDelay(delay, c.deps.Backoff.MaxDelay)
	}
}

func consume(ctx context.Context, sub repository.Subscription, handle func(ctx context.Context, snap storemodel.Snapshot)) (healthy bool, cause error) {
	for {
		select {
		case <-ctx.Done():
			return healthy, ctx.Err()
		case snap, ok := <-sub.Snapshots():
			if !ok {
				return healthy, errSubscriptionClosed
			}
			if snap.Err != nil {
				return healthy, snap.Err
			}
			healthy = true
			handle(ctx, snap)
		}
	}
}

func nextDelay(d, max time.Duration) time.Duration {
	if d <= 0 {
		d = 50 * time.Millisecond
	}
	d *= 2
	if max > 0 && d > max {
		d = max
	}
	return d
}

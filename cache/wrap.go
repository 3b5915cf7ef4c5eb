package cache

import (
	"context"
	"time"
)

// Func is the shape of a content fetch that Wrap can memoize.
type Func[P, V any] func(ctx context.Context, params P) (V, error)

// Wrap returns a function with the same signature as fn that consults c
// before calling fn. On a miss fn is called and its result stored under
// (op, params) for ttl (ttl <= 0 uses the cache default).
//
// Errors from fn are returned as-is and never stored, so the next call
// retries the fetch. Concurrent misses for the same key share one call to
// fn. The shared call runs detached from any single caller's cancellation;
// each caller stops waiting only when its own ctx is done. Params that
// cannot be keyed bypass the cache entirely.
func Wrap[P, V any](c *Cache, op string, ttl time.Duration, fn Func[P, V]) Func[P, V] {
	return func(ctx context.Context, params P) (V, error) {
		key, err := Key(op, params)
		if err != nil {
			return fn(ctx, params)
		}

		if cached, ok := c.getKey(key); ok {
			if v, ok := cached.(V); ok {
				return v, nil
			}
		}

		fetchCtx := context.WithoutCancel(ctx)
		ch := c.flights.DoChan(key, func() (any, error) {
			// A flight that finished between our miss and this one has already
			// stored the value.
			if cached, ok := c.peek(key); ok {
				if v, ok := cached.(V); ok {
					return v, nil
				}
			}
			v, err := fn(fetchCtx, params)
			if err != nil {
				return nil, err
			}
			c.setKey(key, v, ttl)
			return v, nil
		})

		var zero V
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case res := <-ch:
			if res.Err != nil {
				return zero, res.Err
			}
			v, _ := res.Val.(V)
			return v, nil
		}
	}
}

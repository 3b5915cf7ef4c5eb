package cache_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ddevcap/newsfront/cache"
)

type postQuery struct {
	Category int `json:"category"`
	Page     int `json:"page"`
}

var _ = Describe("Wrap", func() {
	var (
		clock *fakeClock
		c     *cache.Cache
		ctx   context.Context
	)

	BeforeEach(func() {
		clock = newFakeClock()
		c = cache.New(cache.WithClock(clock.Now))
		ctx = context.Background()
	})

	It("calls the fetch once and serves repeats from the cache", func() {
		var calls atomic.Int32
		fetch := cache.Wrap(c, "getPostsByCategory", time.Minute,
			func(_ context.Context, q postQuery) ([]string, error) {
				calls.Add(1)
				return []string{"a", "b"}, nil
			})

		for i := 0; i < 3; i++ {
			got, err := fetch(ctx, postQuery{Category: 4, Page: 1})
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal([]string{"a", "b"}))
		}
		Expect(calls.Load()).To(Equal(int32(1)))

		_, ok := c.Get("getPostsByCategory", map[string]any{"page": 1, "category": 4})
		Expect(ok).To(BeTrue())
	})

	It("keys different params separately", func() {
		var calls atomic.Int32
		fetch := cache.Wrap(c, "getPostsByCategory", time.Minute,
			func(_ context.Context, q postQuery) (int, error) {
				calls.Add(1)
				return q.Category, nil
			})

		a, _ := fetch(ctx, postQuery{Category: 1})
		b, _ := fetch(ctx, postQuery{Category: 2})
		Expect(a).To(Equal(1))
		Expect(b).To(Equal(2))
		Expect(calls.Load()).To(Equal(int32(2)))
	})

	It("refetches once the ttl has elapsed", func() {
		var calls atomic.Int32
		fetch := cache.Wrap(c, "getAuthorById", time.Minute,
			func(_ context.Context, id int) (int, error) {
				return int(calls.Add(1)), nil
			})

		first, _ := fetch(ctx, 7)
		clock.Advance(time.Minute + time.Millisecond)
		second, _ := fetch(ctx, 7)

		Expect(first).To(Equal(1))
		Expect(second).To(Equal(2))
	})

	It("never caches a failed fetch", func() {
		boom := errors.New("upstream unavailable")
		var calls atomic.Int32
		fetch := cache.Wrap(c, "getAllPosts", time.Minute,
			func(_ context.Context, _ postQuery) ([]string, error) {
				calls.Add(1)
				return nil, boom
			})

		for i := 1; i <= 3; i++ {
			_, err := fetch(ctx, postQuery{Page: 1})
			Expect(err).To(MatchError(boom))
			Expect(calls.Load()).To(Equal(int32(i)))
		}
		Expect(c.Len()).To(BeZero())
	})

	It("recovers after a failure", func() {
		var fail atomic.Bool
		fail.Store(true)
		fetch := cache.Wrap(c, "getAllTags", time.Minute,
			func(_ context.Context, _ struct{}) (string, error) {
				if fail.Load() {
					return "", errors.New("timeout")
				}
				return "ok", nil
			})

		_, err := fetch(ctx, struct{}{})
		Expect(err).To(HaveOccurred())

		fail.Store(false)
		v, err := fetch(ctx, struct{}{})
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal("ok"))
	})

	It("shares one in-flight fetch between concurrent callers", func() {
		var calls atomic.Int32
		release := make(chan struct{})
		fetch := cache.Wrap(c, "getPostsByCategory", time.Minute,
			func(_ context.Context, _ postQuery) (string, error) {
				calls.Add(1)
				<-release
				return "posts", nil
			})

		var wg sync.WaitGroup
		results := make([]string, 5)
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i], _ = fetch(ctx, postQuery{Category: 9})
			}(i)
		}

		time.Sleep(50 * time.Millisecond)
		close(release)
		wg.Wait()

		Expect(calls.Load()).To(Equal(int32(1)))
		for _, r := range results {
			Expect(r).To(Equal("posts"))
		}
	})

	It("keeps serving waiting callers when the caller that started the fetch goes away", func() {
		var calls atomic.Int32
		started := make(chan struct{})
		release := make(chan struct{})
		fetch := cache.Wrap(c, "getAuthorById", time.Minute,
			func(fctx context.Context, _ int) (string, error) {
				if calls.Add(1) == 1 {
					close(started)
				}
				select {
				case <-release:
					return "author", nil
				case <-fctx.Done():
					return "", fctx.Err()
				}
			})

		firstCtx, cancelFirst := context.WithCancel(ctx)
		firstErr := make(chan error, 1)
		go func() {
			_, err := fetch(firstCtx, 7)
			firstErr <- err
		}()
		Eventually(started).Should(BeClosed())

		type result struct {
			v   string
			err error
		}
		second := make(chan result, 1)
		go func() {
			v, err := fetch(ctx, 7)
			second <- result{v, err}
		}()
		time.Sleep(50 * time.Millisecond)

		cancelFirst()
		Eventually(firstErr).Should(Receive(MatchError(context.Canceled)))
		Consistently(second, 100*time.Millisecond).ShouldNot(Receive())

		close(release)
		var got result
		Eventually(second).Should(Receive(&got))
		Expect(got.err).NotTo(HaveOccurred())
		Expect(got.v).To(Equal("author"))
		Expect(calls.Load()).To(Equal(int32(1)))

		v, ok := c.Get("getAuthorById", 7)
		Expect(ok).To(BeTrue())
		Expect(v).To(Equal("author"))
	})

	It("bypasses the cache for params that cannot be keyed", func() {
		var calls atomic.Int32
		fetch := cache.Wrap(c, "weird", time.Minute,
			func(_ context.Context, _ func()) (int, error) {
				calls.Add(1)
				return 1, nil
			})

		_, _ = fetch(ctx, func() {})
		_, _ = fetch(ctx, func() {})
		Expect(calls.Load()).To(Equal(int32(2)))
		Expect(c.Len()).To(BeZero())
	})
})

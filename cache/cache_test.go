package cache_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ddevcap/newsfront/cache"
)

var _ = Describe("Key", func() {
	It("ignores parameter order", func() {
		k1, err := cache.Key("op", map[string]any{"a": 1, "b": 2})
		Expect(err).NotTo(HaveOccurred())

		type reversed struct {
			B int `json:"b"`
			A int `json:"a"`
		}
		k2, err := cache.Key("op", reversed{B: 2, A: 1})
		Expect(err).NotTo(HaveOccurred())

		Expect(k1).To(Equal(k2))
		Expect(k1).To(Equal(`op:{"a":1,"b":2}`))
	})

	It("keys positional arguments by the argument list", func() {
		k, err := cache.Key("getPostById", []any{42})
		Expect(err).NotTo(HaveOccurred())
		Expect(k).To(Equal("getPostById:[42]"))
	})

	It("keeps large numeric ids intact", func() {
		k, err := cache.Key("op", map[string]any{"id": int64(9007199254740993)})
		Expect(err).NotTo(HaveOccurred())
		Expect(k).To(Equal(`op:{"id":9007199254740993}`))
	})

	It("fails for params that cannot be encoded", func() {
		_, err := cache.Key("op", map[string]any{"ch": make(chan int)})
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Cache", func() {
	var (
		clock *fakeClock
		c     *cache.Cache
	)

	BeforeEach(func() {
		clock = newFakeClock()
		c = cache.New(
			cache.WithClock(clock.Now),
			cache.WithDefaultTTL(time.Minute),
			cache.WithMaxSize(3),
		)
	})

	Describe("TTL", func() {
		It("returns the value until the ttl has elapsed", func() {
			c.Set("op", nil, "x", time.Second)

			clock.Advance(999 * time.Millisecond)
			v, ok := c.Get("op", nil)
			Expect(ok).To(BeTrue())
			Expect(v).To(Equal("x"))

			clock.Advance(2 * time.Millisecond)
			_, ok = c.Get("op", nil)
			Expect(ok).To(BeFalse())
		})

		It("treats an entry as expired exactly at storedAt + ttl", func() {
			c.Set("op", nil, "x", time.Second)
			clock.Advance(time.Second)

			_, ok := c.Get("op", nil)
			Expect(ok).To(BeFalse())
		})

		It("evicts expired entries lazily on Get", func() {
			c.Set("op", nil, "x", time.Second)
			clock.Advance(2 * time.Second)
			Expect(c.Len()).To(Equal(1))

			_, _ = c.Get("op", nil)
			Expect(c.Len()).To(Equal(0))
		})

		It("uses the default ttl when none is given", func() {
			c.Set("op", nil, "x", 0)

			clock.Advance(59 * time.Second)
			_, ok := c.Get("op", nil)
			Expect(ok).To(BeTrue())

			clock.Advance(2 * time.Second)
			_, ok = c.Get("op", nil)
			Expect(ok).To(BeFalse())
		})
	})

	It("finds a value regardless of parameter order", func() {
		c.Set("op", map[string]any{"a": 1, "b": 2}, "X", 0)

		type reversed struct {
			B int `json:"b"`
			A int `json:"a"`
		}
		v, ok := c.Get("op", reversed{B: 2, A: 1})
		Expect(ok).To(BeTrue())
		Expect(v).To(Equal("X"))
	})

	It("degrades unkeyable params to a miss", func() {
		bad := map[string]any{"fn": func() {}}
		Expect(func() { c.Set("op", bad, "x", 0) }).NotTo(Panic())

		_, ok := c.Get("op", bad)
		Expect(ok).To(BeFalse())
		Expect(c.Len()).To(Equal(0))
	})

	Describe("size bound", func() {
		It("evicts the first-inserted key when full", func() {
			for i := 1; i <= 4; i++ {
				c.Set("op", []any{i}, i, 0)
			}

			Expect(c.Len()).To(Equal(3))
			_, ok := c.Get("op", []any{1})
			Expect(ok).To(BeFalse())
			for i := 2; i <= 4; i++ {
				v, ok := c.Get("op", []any{i})
				Expect(ok).To(BeTrue())
				Expect(v).To(Equal(i))
			}
		})

		It("does not let reads change eviction order", func() {
			c.Set("op", []any{1}, 1, 0)
			c.Set("op", []any{2}, 2, 0)
			c.Set("op", []any{3}, 3, 0)

			// A read of the oldest entry must not protect it.
			_, ok := c.Get("op", []any{1})
			Expect(ok).To(BeTrue())

			c.Set("op", []any{4}, 4, 0)
			_, ok = c.Get("op", []any{1})
			Expect(ok).To(BeFalse())
		})

		It("treats an overwrite as a fresh insertion", func() {
			c.Set("op", []any{1}, 1, 0)
			c.Set("op", []any{2}, 2, 0)
			c.Set("op", []any{3}, 3, 0)
			c.Set("op", []any{1}, "one", 0)
			Expect(c.Len()).To(Equal(3))

			c.Set("op", []any{4}, 4, 0)
			_, ok := c.Get("op", []any{2})
			Expect(ok).To(BeFalse())
			v, ok := c.Get("op", []any{1})
			Expect(ok).To(BeTrue())
			Expect(v).To(Equal("one"))
		})
	})

	Describe("Clear", func() {
		It("removes only the named operation", func() {
			c.Set("getAllPosts", map[string]any{"page": 1}, "X", 0)
			c.Set("getAllCategories", nil, "Y", 0)

			Expect(c.Clear("getAllPosts")).To(Equal(1))

			_, ok := c.Get("getAllPosts", map[string]any{"page": 1})
			Expect(ok).To(BeFalse())
			v, ok := c.Get("getAllCategories", nil)
			Expect(ok).To(BeTrue())
			Expect(v).To(Equal("Y"))
		})

		It("does not match operations that merely share a prefix", func() {
			c.Set("getPost", nil, "a", 0)
			c.Set("getPostBySlug", []any{"x"}, "b", 0)

			Expect(c.Clear("getPost")).To(Equal(1))
			_, ok := c.Get("getPostBySlug", []any{"x"})
			Expect(ok).To(BeTrue())
		})

		It("removes everything when no operation is given", func() {
			c.Set("a", nil, 1, 0)
			c.Set("b", nil, 2, 0)

			Expect(c.Clear("")).To(Equal(2))
			Expect(c.Len()).To(BeZero())
		})
	})

	Describe("Stats", func() {
		It("reports zero hit rate for an empty cache", func() {
			s := c.Stats()
			Expect(s.TotalEntries).To(BeZero())
			Expect(s.HitRate).To(BeZero())
		})

		It("counts valid and expired entries", func() {
			c.Set("a", nil, 1, time.Second)
			c.Set("b", nil, 2, time.Hour)
			clock.Advance(2 * time.Second)

			s := c.Stats()
			Expect(s.TotalEntries).To(Equal(2))
			Expect(s.ValidEntries).To(Equal(1))
			Expect(s.ExpiredEntries).To(Equal(1))
			Expect(s.HitRate).To(BeNumerically("~", 0.5))
		})

		It("tracks lookups", func() {
			c.Set("a", nil, 1, 0)
			_, _ = c.Get("a", nil)
			_, _ = c.Get("b", nil)

			s := c.Stats()
			Expect(s.Hits).To(Equal(uint64(1)))
			Expect(s.Misses).To(Equal(uint64(1)))
		})
	})

	It("Cleanup removes only expired entries", func() {
		c.Set("a", nil, 1, time.Second)
		c.Set("b", nil, 2, time.Hour)
		clock.Advance(2 * time.Second)

		Expect(c.Cleanup()).To(Equal(1))
		Expect(c.Len()).To(Equal(1))
		_, ok := c.Get("b", nil)
		Expect(ok).To(BeTrue())
	})

	It("sweeps expired entries in the background", func() {
		sc := cache.New(cache.WithClock(clock.Now), cache.WithSweepInterval(10*time.Millisecond))
		sc.Set("a", nil, 1, time.Second)
		clock.Advance(2 * time.Second)

		sc.Start(context.Background())
		defer sc.Stop()

		Eventually(sc.Len, time.Second, 10*time.Millisecond).Should(BeZero())
	})
})

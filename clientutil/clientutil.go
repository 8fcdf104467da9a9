package clientutil

import (
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gregjones/httpcache"
	"golang.org/x/time/rate"
)

type Middleware func(http.RoundTripper) http.RoundTripper

func Chain(middlewares ...Middleware) Middleware {
	if len(middlewares) == 1 {
		return middlewares[0]
	}
	return func(final http.RoundTripper) http.RoundTripper {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

func WithCache(ttl time.Duration) Middleware {
	cache := NewMemoryCache(ttl)
	return func(next http.RoundTripper) http.RoundTripper {
		transport := httpcache.NewTransport(cache)
		transport.Transport = next
		return transport
	}
}

func WithRateLimit(interval time.Duration) Middleware {
	if interval == 0 {
		return Passthrough
	}
	return func(next http.RoundTripper) http.RoundTripper {
		limiter := rate.NewLimiter(rate.Every(interval), 1)
		return RoundTripFunc(func(r *http.Request) (*http.Response, error) {
			if err := limiter.Wait(r.Context()); err != nil {
				return nil, err
			}
			return next.RoundTrip(r)
		})
	}
}

// WithRetry retries idempotent requests answered with 429 or 503, waiting for Retry-After when the
// server sends one and backoff doubled per attempt otherwise.
func WithRetry(attempts int, backoff time.Duration) Middleware {
	if attempts <= 1 {
		return Passthrough
	}
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripFunc(func(r *http.Request) (*http.Response, error) {
			if r.Method != http.MethodGet && r.Method != http.MethodHead {
				return next.RoundTrip(r)
			}
			wait := backoff
			for attempt := 1; ; attempt++ {
				resp, err := next.RoundTrip(r)
				if err != nil || attempt >= attempts || !retryable(resp.StatusCode) {
					return resp, err
				}
				if ra := retryAfter(resp); ra > 0 {
					wait = ra
				}
				resp.Body.Close()

				t := time.NewTimer(wait)
				select {
				case <-r.Context().Done():
					t.Stop()
					return nil, r.Context().Err()
				case <-t.C:
				}
				wait *= 2
			}
		})
	}
}

func retryable(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusServiceUnavailable
}

func retryAfter(resp *http.Response) time.Duration {
	secs, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func WithLogging(logger *slog.Logger) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripFunc(func(r *http.Request) (*http.Response, error) {
			start := time.Now()
			resp, err := next.RoundTrip(r)
			if err != nil {
				logger.ErrorContext(r.Context(), "http request", "method", r.Method, "url", r.URL, "err", err)
				return nil, err
			}
			logger.DebugContext(r.Context(), "http response", "method", r.Method, "url", r.URL, "status", resp.StatusCode, "took", time.Since(start).Truncate(time.Millisecond))
			return resp, nil
		})
	}
}

func WithUserAgent(userAgent string) Middleware {
	if userAgent == "" {
		return Passthrough
	}
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripFunc(func(r *http.Request) (*http.Response, error) {
			r = r.Clone(r.Context())
			r.Header.Set("User-Agent", userAgent)
			return next.RoundTrip(r)
		})
	}
}

func Passthrough(next http.RoundTripper) http.RoundTripper {
	return next
}

type RoundTripFunc func(*http.Request) (*http.Response, error)

func (f RoundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

// Wrap returns a copy of c, or of a zero client, with its transport wrapped by mw.
func Wrap(c *http.Client, mw Middleware) *http.Client {
	var r http.Client
	if c != nil {
		r = *c
	}
	if r.Transport == nil {
		r.Transport = http.DefaultTransport
	}
	r.Transport = mw(r.Transport)
	return &r
}

// MemoryCache is an httpcache.Cache that drops everything every ttl. Catalog responses only need
// to be reused within one run over a library.
type MemoryCache struct {
	mu      sync.RWMutex
	items   map[string][]byte
	ttl     time.Duration
	expires time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{items: map[string][]byte{}, ttl: ttl, expires: time.Now().Add(ttl)}
}

func (c *MemoryCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expireLocked()
	resp, ok := c.items[key]
	return resp, ok
}

func (c *MemoryCache) Set(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expireLocked()
	c.items[key] = data
}

func (c *MemoryCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

func (c *MemoryCache) expireLocked() {
	if c.ttl <= 0 || time.Now().Before(c.expires) {
		return
	}
	clear(c.items)
	c.expires = time.Now().Add(c.ttl)
}

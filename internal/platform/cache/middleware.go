package cache

import (
	"bytes"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const cacheStatusHeader = "X-Cache"

var lookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "bureau_response_cache_lookups_total",
	Help: "Response cache lookups by result (hit, miss, error)",
}, []string{"result"})

// bodyRecorder buffers the downstream response so a 200 can be stored.
type bodyRecorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (r *bodyRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *bodyRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

// KeyFunc derives the cache key for a request. Returning false bypasses the
// cache for that request.
type KeyFunc func(r *http.Request) (string, bool)

// MiddlewareOption configures Middleware.
type MiddlewareOption func(*middlewareConfig)

type middlewareConfig struct {
	key KeyFunc
}

// WithKeyFunc replaces the default request URI key. Keys must contain the
// pattern writers pass to Invalidate, or cached entries outlive the writes.
func WithKeyFunc(fn KeyFunc) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		cfg.key = fn
	}
}

func requestURIKey(r *http.Request) (string, bool) {
	return r.URL.RequestURI(), true
}

// Middleware serves GET responses from c, keyed by request URI unless a
// KeyFunc is given. On a hit the wrapped handler is skipped and the stored
// body is written verbatim. Only 200 responses are stored. Cache errors are
// logged and treated as misses.
func Middleware(c Cache, ttl time.Duration, logger *slog.Logger, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	cfg := middlewareConfig{key: requestURIKey}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			key, ok := cfg.key(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			body, ok, err := c.Get(ctx, key)
			if err != nil {
				lookups.WithLabelValues("error").Inc()
				logger.WarnContext(ctx, "response cache read failed", "key", key, "error", err)
			}
			if ok {
				lookups.WithLabelValues("hit").Inc()
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set(cacheStatusHeader, "HIT")
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write(body)
				return
			}
			if err == nil {
				lookups.WithLabelValues("miss").Inc()
			}

			w.Header().Set(cacheStatusHeader, "MISS")
			rec := &bodyRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			if rec.status != http.StatusOK {
				return
			}
			if err := c.Set(ctx, key, rec.body.Bytes(), ttl); err != nil {
				logger.WarnContext(ctx, "response cache write failed", "key", key, "error", err)
			}
		})
	}
}

package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingCache struct{}

func (failingCache) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("connection refused")
}

func (failingCache) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("connection refused")
}

func (failingCache) Invalidate(context.Context, string) (int, error) {
	return 0, errors.New("connection refused")
}

func newCountingHandler(calls *atomic.Int32, status int, body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	})
}

func serve(h http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestMiddleware(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("hit skips the wrapped handler", func(t *testing.T) {
		var calls atomic.Int32
		c := NewMemory(time.Minute, time.Minute)
		h := Middleware(c, time.Minute, logger)(newCountingHandler(&calls, http.StatusOK, `{"mandates":[1]}`))

		first := serve(h, http.MethodGet, "/members/7/mandates?page=1")
		assert.Equal(t, "MISS", first.Header().Get("X-Cache"))

		second := serve(h, http.MethodGet, "/members/7/mandates?page=1")
		assert.Equal(t, http.StatusOK, second.Code)
		assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
		assert.Equal(t, first.Body.String(), second.Body.String())
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("query string is part of the key", func(t *testing.T) {
		var calls atomic.Int32
		c := NewMemory(time.Minute, time.Minute)
		h := Middleware(c, time.Minute, logger)(newCountingHandler(&calls, http.StatusOK, `{}`))

		serve(h, http.MethodGet, "/members/7/mandates?page=1")
		serve(h, http.MethodGet, "/members/7/mandates?page=2")
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("non-200 responses are not stored", func(t *testing.T) {
		var calls atomic.Int32
		c := NewMemory(time.Minute, time.Minute)
		h := Middleware(c, time.Minute, logger)(newCountingHandler(&calls, http.StatusNotFound, `{"error":"not_found"}`))

		serve(h, http.MethodGet, "/members/999/mandates")
		rec := serve(h, http.MethodGet, "/members/999/mandates")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("invalidation forces a fresh read", func(t *testing.T) {
		var calls atomic.Int32
		c := NewMemory(time.Minute, time.Minute)
		h := Middleware(c, time.Minute, logger)(newCountingHandler(&calls, http.StatusOK, `{}`))

		serve(h, http.MethodGet, "/members/7/mandates")
		_, err := c.Invalidate(context.Background(), "/members/7/mandates")
		require.NoError(t, err)
		rec := serve(h, http.MethodGet, "/members/7/mandates")

		assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("non-GET requests bypass the cache", func(t *testing.T) {
		var calls atomic.Int32
		c := NewMemory(time.Minute, time.Minute)
		h := Middleware(c, time.Minute, logger)(newCountingHandler(&calls, http.StatusOK, `{}`))

		serve(h, http.MethodPost, "/members/7/mandates")
		assert.Equal(t, 0, c.Len())
		assert.Empty(t, serve(h, http.MethodPost, "/members/7/mandates").Header().Get("X-Cache"))
	})

	t.Run("key func collapses equivalent requests", func(t *testing.T) {
		var calls atomic.Int32
		c := NewMemory(time.Minute, time.Minute)
		key := func(r *http.Request) (string, bool) {
			if r.URL.Query().Get("skip") != "" {
				return "", false
			}
			return "/members/7/mandates", true
		}
		h := Middleware(c, time.Minute, logger, WithKeyFunc(key))(newCountingHandler(&calls, http.StatusOK, `{}`))

		serve(h, http.MethodGet, "/members/07/mandates")
		rec := serve(h, http.MethodGet, "/members/+7/mandates")
		assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
		assert.Equal(t, int32(1), calls.Load())

		rec = serve(h, http.MethodGet, "/members/7/mandates?skip=1")
		assert.Empty(t, rec.Header().Get("X-Cache"))
		assert.Equal(t, int32(2), calls.Load())
		assert.Equal(t, 1, c.Len())
	})

	t.Run("cache failures fall through to the handler", func(t *testing.T) {
		var calls atomic.Int32
		h := Middleware(failingCache{}, time.Minute, logger)(newCountingHandler(&calls, http.StatusOK, `{}`))

		rec := serve(h, http.MethodGet, "/members/7/mandates")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, int32(1), calls.Load())
	})
}

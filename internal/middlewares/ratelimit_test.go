package middlewares

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"api/internal/cache"
	apierrors "api/internal/errors"
	"api/internal/models"
	"api/internal/tests"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRateLimitCache records the identifier RateLimit asked about and answers
// with a canned verdict. Other cache methods are never called here.
type fakeRateLimitCache struct {
	cache.ICache

	lastIdentifier string
	retryAfter     int
	err            error
}

func (f *fakeRateLimitCache) GetRateLimit(userIdentifier string, _ int) (int, error) {
	f.lastIdentifier = userIdentifier
	return f.retryAfter, f.err
}

func serveRateLimit(t *testing.T, fake *fakeRateLimitCache, trustedProxies []string, req *http.Request) (*httptest.ResponseRecorder, bool) {
	t.Helper()

	recorder := httptest.NewRecorder()
	var nextCalled bool
	handler := RateLimit(fake, trustedProxies)(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			nextCalled = true
			w.WriteHeader(http.StatusOK)
		}),
	)
	handler.ServeHTTP(recorder, req)

	return recorder, nextCalled
}

func TestRateLimit(t *testing.T) {
	t.Run("should pass requests under the limit", func(t *testing.T) {
		fake := &fakeRateLimitCache{retryAfter: 0}
		req := httptest.NewRequest(http.MethodGet, "/api/v1/2fa/status", nil)

		recorder, nextCalled := serveRateLimit(t, fake, nil, req)

		assert.True(t, nextCalled)
		assert.Equal(t, http.StatusOK, recorder.Code)
	})

	t.Run("should refuse requests over the limit with a retry hint", func(t *testing.T) {
		fake := &fakeRateLimitCache{retryAfter: 42}
		req := httptest.NewRequest(http.MethodGet, "/api/v1/2fa/status", nil)

		recorder, nextCalled := serveRateLimit(t, fake, nil, req)

		assert.False(t, nextCalled)
		assert.Equal(t, "42", recorder.Header().Get("Retry-After"))
		expected := models.Error{
			Errors:            []string{apierrors.ErrRateLimited},
			Message:           apierrors.MessageFor(apierrors.ErrRateLimited),
			RetryAfterSeconds: 42,
		}
		tests.AssertJSONResponse(t, recorder, 429, expected)
	})

	t.Run("should fail open when the cache is unreachable", func(t *testing.T) {
		fake := &fakeRateLimitCache{err: errors.New("connection refused")}
		req := httptest.NewRequest(http.MethodGet, "/api/v1/2fa/status", nil)

		recorder, nextCalled := serveRateLimit(t, fake, nil, req)

		assert.True(t, nextCalled, "An unreachable cache must not take the API down")
		assert.Equal(t, http.StatusOK, recorder.Code)
	})

	t.Run("should key authenticated callers by user ID", func(t *testing.T) {
		fake := &fakeRateLimitCache{}
		userID := uuid.New()

		req := httptest.NewRequest(http.MethodGet, "/api/v1/2fa/status", nil)
		req = req.WithContext(context.WithValue(
			req.Context(), models.UserClaimKey{}, models.UserClaims{UserID: userID},
		))

		_, nextCalled := serveRateLimit(t, fake, nil, req)

		require.True(t, nextCalled)
		assert.Equal(t, "user:"+userID.String(), fake.lastIdentifier)
	})

	t.Run("should key anonymous callers by peer address", func(t *testing.T) {
		fake := &fakeRateLimitCache{}
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
		req.RemoteAddr = "203.0.113.9:41000"

		_, nextCalled := serveRateLimit(t, fake, nil, req)

		require.True(t, nextCalled)
		assert.Equal(t, "ip:203.0.113.9", fake.lastIdentifier)
	})

	t.Run("should ignore forwarded headers from untrusted peers", func(t *testing.T) {
		fake := &fakeRateLimitCache{}
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
		req.RemoteAddr = "203.0.113.9:41000"
		req.Header.Set("X-Forwarded-For", "198.51.100.7")

		_, _ = serveRateLimit(t, fake, nil, req)

		assert.Equal(t, "ip:203.0.113.9", fake.lastIdentifier)
	})

	t.Run("should honor forwarded headers from a trusted proxy", func(t *testing.T) {
		fake := &fakeRateLimitCache{}
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
		req.RemoteAddr = "10.0.0.2:41000"
		req.Header.Set("X-Forwarded-For", "198.51.100.7")

		_, _ = serveRateLimit(t, fake, []string{"10.0.0.2"}, req)

		assert.Equal(t, "ip:198.51.100.7", fake.lastIdentifier)
	})
}

func TestPublicThrottle(t *testing.T) {
	t.Run("should cut off a burst from one address", func(t *testing.T) {
		handler := PublicThrottle(2)(
			http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			}),
		)

		var lastCode int
		for range 3 {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
			req.RemoteAddr = "203.0.113.9:41000"
			recorder := httptest.NewRecorder()
			handler.ServeHTTP(recorder, req)
			lastCode = recorder.Code
		}

		assert.Equal(t, http.StatusTooManyRequests, lastCode)
	})
}

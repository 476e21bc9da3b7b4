package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apierrors "api/internal/errors"
	"api/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type echoBody struct {
	Name string `json:"name"`
}

type echoResponse struct {
	Name     string `json:"name"`
	ClientIP string `json:"client_ip"`
}

func withBody[B any](body B, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), models.BodyKey{}, body)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func withQuery[Q any](query Q, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), models.QueryKey{}, query)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func TestCreateHandler(t *testing.T) {
	t.Run("should pass body and claims through and respond with the payload", func(t *testing.T) {
		fn := func(_ *zap.Logger, claims models.UserClaims, _ uuid.UUIDs, body echoBody) (echoResponse, error) {
			return echoResponse{Name: body.Name, ClientIP: claims.ClientIP}, nil
		}

		r := chi.NewRouter()
		r.Method("POST", "/echo", withBody(echoBody{Name: "billing"}, CreateHandler(fn)))

		req := httptest.NewRequest("POST", "/echo", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.9")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		require.Equal(t, 200, rec.Code)

		var resp echoResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "billing", resp.Name)
		assert.Equal(t, "203.0.113.9", resp.ClientIP)
	})

	t.Run("should reject requests without a validated body", func(t *testing.T) {
		fn := func(_ *zap.Logger, _ models.UserClaims, _ uuid.UUIDs, _ echoBody) (echoResponse, error) {
			t.Fatal("service method must not run")
			return echoResponse{}, nil
		}

		r := chi.NewRouter()
		r.Post("/echo", CreateHandler(fn))

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest("POST", "/echo", nil))

		assert.Equal(t, 400, rec.Code)
		assert.Contains(t, rec.Body.String(), apierrors.ErrInvalidRequest)
	})

	t.Run("should map api errors to their status and code", func(t *testing.T) {
		fn := func(_ *zap.Logger, _ models.UserClaims, _ uuid.UUIDs, _ echoBody) (echoResponse, error) {
			return echoResponse{}, apierrors.NewAPIError(409, apierrors.ErrAlreadyEnabled)
		}

		r := chi.NewRouter()
		r.Method("POST", "/echo", withBody(echoBody{}, CreateHandler(fn)))

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest("POST", "/echo", nil))

		assert.Equal(t, 409, rec.Code)
		assert.Contains(t, rec.Body.String(), apierrors.ErrAlreadyEnabled)
	})

	t.Run("should emit a retry-after header on rate limited errors", func(t *testing.T) {
		fn := func(_ *zap.Logger, _ models.UserClaims, _ uuid.UUIDs, _ echoBody) (echoResponse, error) {
			return echoResponse{}, apierrors.NewRateLimitedError(540)
		}

		r := chi.NewRouter()
		r.Method("POST", "/echo", withBody(echoBody{}, CreateHandler(fn)))

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest("POST", "/echo", nil))

		assert.Equal(t, 429, rec.Code)
		assert.Equal(t, "540", rec.Header().Get("Retry-After"))
		assert.Contains(t, rec.Body.String(), `"retry_after_seconds":540`)
	})

	t.Run("should hide unclassified errors behind a 500", func(t *testing.T) {
		fn := func(_ *zap.Logger, _ models.UserClaims, _ uuid.UUIDs, _ echoBody) (echoResponse, error) {
			return echoResponse{}, errors.New("pq: connection refused")
		}

		r := chi.NewRouter()
		r.Method("POST", "/echo", withBody(echoBody{}, CreateHandler(fn)))

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest("POST", "/echo", nil))

		assert.Equal(t, 500, rec.Code)
		assert.Contains(t, rec.Body.String(), apierrors.ErrInternalServer)
		assert.NotContains(t, rec.Body.String(), "connection refused")
	})
}

func TestGetOneHandler(t *testing.T) {
	t.Run("should collect url ids in order", func(t *testing.T) {
		first := uuid.New()
		second := uuid.New()

		fn := func(_ *zap.Logger, _ models.UserClaims, ids uuid.UUIDs) ([]string, error) {
			return []string{ids[0].String(), ids[1].String()}, nil
		}

		r := chi.NewRouter()
		r.Get("/things/{id0}/parts/{id1}", GetOneHandler(fn))

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest("GET", "/things/"+first.String()+"/parts/"+second.String(), nil))

		require.Equal(t, 200, rec.Code)

		var got []string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, []string{first.String(), second.String()}, got)
	})

	t.Run("should reject malformed ids", func(t *testing.T) {
		fn := func(_ *zap.Logger, _ models.UserClaims, _ uuid.UUIDs) (string, error) {
			t.Fatal("service method must not run")
			return "", nil
		}

		r := chi.NewRouter()
		r.Get("/things/{id0}", GetOneHandler(fn))

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest("GET", "/things/not-a-uuid", nil))

		assert.Equal(t, 400, rec.Code)
	})
}

func TestGetOneWithQueryHandler(t *testing.T) {
	type statsQuery struct {
		Days int `json:"days"`
	}

	fn := func(_ *zap.Logger, _ models.UserClaims, _ uuid.UUIDs, q statsQuery) (int, error) {
		return q.Days * 2, nil
	}

	r := chi.NewRouter()
	r.Method("GET", "/stats", withQuery(statsQuery{Days: 30}, GetOneWithQueryHandler(fn)))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/stats", nil))

	require.Equal(t, 200, rec.Code)
	assert.Equal(t, "60", strings.TrimSpace(rec.Body.String()))
}

func TestGetListHandler(t *testing.T) {
	fn := func(_ *zap.Logger, _ models.UserClaims, _ uuid.UUIDs) []string {
		return []string{"local", "corp-okta"}
	}

	r := chi.NewRouter()
	r.Get("/providers", GetListHandler(fn))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/providers", nil))

	require.Equal(t, 200, rec.Code)

	var got []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, []string{"local", "corp-okta"}, got)
}

func TestBodyHandler(t *testing.T) {
	t.Run("should respond 204 on success", func(t *testing.T) {
		fn := func(_ *zap.Logger, _ models.UserClaims, _ uuid.UUIDs, _ echoBody) error {
			return nil
		}

		r := chi.NewRouter()
		r.Method("POST", "/act", withBody(echoBody{}, BodyHandler(fn)))

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest("POST", "/act", nil))

		assert.Equal(t, 204, rec.Code)
		assert.Empty(t, rec.Body.String())
	})

	t.Run("should surface service failures", func(t *testing.T) {
		fn := func(_ *zap.Logger, _ models.UserClaims, _ uuid.UUIDs, _ echoBody) error {
			return apierrors.NewAPIError(401, apierrors.ErrInvalidCode)
		}

		r := chi.NewRouter()
		r.Method("POST", "/act", withBody(echoBody{}, BodyHandler(fn)))

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest("POST", "/act", nil))

		assert.Equal(t, 401, rec.Code)
		assert.Contains(t, rec.Body.String(), apierrors.ErrInvalidCode)
	})
}

func TestDeleteHandler(t *testing.T) {
	fn := func(_ *zap.Logger, _ models.UserClaims, _ uuid.UUIDs) error {
		return nil
	}

	r := chi.NewRouter()
	r.Post("/logout", DeleteHandler(fn))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("POST", "/logout", nil))

	assert.Equal(t, 204, rec.Code)
}

func TestRequestClaims(t *testing.T) {
	t.Run("should overlay network identity on authenticated claims", func(t *testing.T) {
		userID := uuid.New()

		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("User-Agent", "loanpilot-web/3.2")
		req.RemoteAddr = "198.51.100.7:41000"
		ctx := context.WithValue(req.Context(), models.UserClaimKey{}, models.UserClaims{UserID: userID})

		claims := requestClaims(req.WithContext(ctx))

		assert.Equal(t, userID, claims.UserID)
		assert.Equal(t, "198.51.100.7", claims.ClientIP)
		assert.Equal(t, "loanpilot-web/3.2", claims.UserAgent)
	})

	t.Run("should fill network identity for anonymous requests", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = "198.51.100.7:41000"

		claims := requestClaims(req)

		assert.Equal(t, uuid.Nil, claims.UserID)
		assert.Equal(t, "198.51.100.7", claims.ClientIP)
	})
}

// Package handlers adapts service methods to chi routes. Each adapter builds
// the identity envelope, pulls the validated body or query parameters the
// middlewares stored in context, and translates returned errors into the
// standard response envelope.
package handlers

import (
	"errors"
	"net/http"

	apierrors "api/internal/errors"
	h "api/internal/helpers"
	"api/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// requestClaims returns the claims the authenticator resolved, or zero claims
// on excluded routes. ClientIP and UserAgent are filled either way so services
// can rate limit and audit anonymous callers.
func requestClaims(r *http.Request) models.UserClaims {
	claims, _ := h.GetUserClaims(r.Context())
	claims.ClientIP = h.ClientIP(r)
	claims.UserAgent = r.UserAgent()
	return claims
}

func respondError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var apiErr *apierrors.APIError
	if errors.As(err, &apiErr) {
		h.RespondWithAPIError(w, apiErr)
		return
	}

	logger.Error("Unhandled service error", zap.Error(err))
	h.RespondWithError(w, 500, []string{apierrors.ErrInternalServer})
}

// CreateHandler adapts a method that consumes a validated body and returns a
// payload.
func CreateHandler[B any, R any](
	fn func(*zap.Logger, models.UserClaims, uuid.UUIDs, B) (R, error),
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := zap.L()

		ids, err := h.ParseUUIDs(r)
		if err != nil {
			h.RespondWithError(w, 400, []string{apierrors.ErrInvalidRequest})
			return
		}

		body, ok := r.Context().Value(models.BodyKey{}).(B)
		if !ok {
			h.RespondWithError(w, 400, []string{apierrors.ErrInvalidRequest})
			return
		}

		result, err := fn(logger, requestClaims(r), ids, body)
		if err != nil {
			respondError(w, logger, err)
			return
		}

		h.RespondWithJSON(w, 200, result)
	}
}

// GetOneHandler adapts a bodyless method returning a single payload.
func GetOneHandler[R any](
	fn func(*zap.Logger, models.UserClaims, uuid.UUIDs) (R, error),
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := zap.L()

		ids, err := h.ParseUUIDs(r)
		if err != nil {
			h.RespondWithError(w, 400, []string{apierrors.ErrInvalidRequest})
			return
		}

		result, err := fn(logger, requestClaims(r), ids)
		if err != nil {
			respondError(w, logger, err)
			return
		}

		h.RespondWithJSON(w, 200, result)
	}
}

// ActionHandler adapts a bodyless POST method that returns a payload. It is
// GetOneHandler under a name that reads correctly on mutating routes.
func ActionHandler[R any](
	fn func(*zap.Logger, models.UserClaims, uuid.UUIDs) (R, error),
) http.HandlerFunc {
	return GetOneHandler(fn)
}

// GetOneWithQueryHandler adapts a read method that consumes validated query
// parameters.
func GetOneWithQueryHandler[Q any, R any](
	fn func(*zap.Logger, models.UserClaims, uuid.UUIDs, Q) (R, error),
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := zap.L()

		ids, err := h.ParseUUIDs(r)
		if err != nil {
			h.RespondWithError(w, 400, []string{apierrors.ErrInvalidRequest})
			return
		}

		query, ok := r.Context().Value(models.QueryKey{}).(Q)
		if !ok {
			h.RespondWithError(w, 400, []string{apierrors.ErrInvalidRequest})
			return
		}

		result, err := fn(logger, requestClaims(r), ids, query)
		if err != nil {
			respondError(w, logger, err)
			return
		}

		h.RespondWithJSON(w, 200, result)
	}
}

// GetListHandler adapts an infallible listing method.
func GetListHandler[R any](
	fn func(*zap.Logger, models.UserClaims, uuid.UUIDs) []R,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids, err := h.ParseUUIDs(r)
		if err != nil {
			h.RespondWithError(w, 400, []string{apierrors.ErrInvalidRequest})
			return
		}

		h.RespondWithJSON(w, 200, fn(zap.L(), requestClaims(r), ids))
	}
}

// BodyHandler adapts a method that consumes a validated body and reports only
// success or failure.
func BodyHandler[B any](
	fn func(*zap.Logger, models.UserClaims, uuid.UUIDs, B) error,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := zap.L()

		ids, err := h.ParseUUIDs(r)
		if err != nil {
			h.RespondWithError(w, 400, []string{apierrors.ErrInvalidRequest})
			return
		}

		body, ok := r.Context().Value(models.BodyKey{}).(B)
		if !ok {
			h.RespondWithError(w, 400, []string{apierrors.ErrInvalidRequest})
			return
		}

		if err := fn(logger, requestClaims(r), ids, body); err != nil {
			respondError(w, logger, err)
			return
		}

		w.WriteHeader(204)
	}
}

// DeleteHandler adapts a bodyless method that reports only success or failure.
func DeleteHandler(
	fn func(*zap.Logger, models.UserClaims, uuid.UUIDs) error,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := zap.L()

		ids, err := h.ParseUUIDs(r)
		if err != nil {
			h.RespondWithError(w, 400, []string{apierrors.ErrInvalidRequest})
			return
		}

		if err := fn(logger, requestClaims(r), ids); err != nil {
			respondError(w, logger, err)
			return
		}

		w.WriteHeader(204)
	}
}

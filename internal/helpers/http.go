package helpers

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"

	apierrors "api/internal/errors"
	"api/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RespondWithJSON writes payload with the given status. A nil payload writes
// the status only.
func RespondWithJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if payload == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("Failed to encode response payload", zap.Error(err))
	}
}

// RespondWithError writes the standard error envelope: the machine-checkable
// codes plus the human message of the first one.
func RespondWithError(w http.ResponseWriter, status int, errorCodes []string) {
	message := ""
	if len(errorCodes) > 0 {
		message = apierrors.MessageFor(errorCodes[0])
	}

	RespondWithJSON(w, status, models.Error{
		Errors:  errorCodes,
		Message: message,
	})
}

// RespondWithAPIError writes one APIError, including the Retry-After header
// and body hint on rate-limit responses.
func RespondWithAPIError(w http.ResponseWriter, apiErr *apierrors.APIError) {
	if apiErr.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(apiErr.RetryAfter))
		RespondWithJSON(w, apiErr.Status, models.Error{
			Errors:            []string{apiErr.Code},
			Message:           apierrors.MessageFor(apiErr.Code),
			RetryAfterSeconds: apiErr.RetryAfter,
		})
		return
	}

	RespondWithError(w, apiErr.Status, []string{apiErr.Code})
}

// ParseUUIDs collects the id0..idN URL parameters of the matched route.
func ParseUUIDs(r *http.Request) (uuid.UUIDs, error) {
	var ids uuid.UUIDs
	for i := 0; ; i++ {
		param := chi.URLParam(r, fmt.Sprintf("id%d", i))
		if param == "" {
			break
		}
		id, err := uuid.Parse(param)
		if err != nil {
			return nil, fmt.Errorf("invalid uuid %q: %w", param, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ClientIP extracts the requester's network identity. The leftmost
// X-Forwarded-For entry wins when a proxy chain is involved.
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}

	if realIP := r.Header.Get("X-Real-Ip"); realIP != "" {
		return realIP
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

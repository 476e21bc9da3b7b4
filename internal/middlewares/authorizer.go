package middlewares

import (
	"net/http"

	apierrors "api/internal/errors"
	h "api/internal/helpers"
	"api/internal/models"
	"api/internal/rbac"
)

// AuthorizeRole rejects callers below the required role. Admins satisfy every
// requirement.
func AuthorizeRole(requiredRole models.Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := r.Context().Value(models.UserClaimKey{}).(models.UserClaims)
			if !ok {
				h.RespondWithError(w, 401, []string{apierrors.ErrSessionNotFound})
				return
			}

			if !rbac.HasRole(claims, requiredRole) {
				h.RespondWithError(w, 403, []string{apierrors.ErrForbidden})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// AuthorizeSelfOrAdmin allows a caller to reach their own resource by URL id;
// admins reach anyone's. The targetUserIDIndex selects which id carries the
// subject.
func AuthorizeSelfOrAdmin(targetUserIDIndex int) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := r.Context().Value(models.UserClaimKey{}).(models.UserClaims)
			if !ok {
				h.RespondWithError(w, 401, []string{apierrors.ErrSessionNotFound})
				return
			}

			ids, err := h.ParseUUIDs(r)
			if err != nil || targetUserIDIndex >= len(ids) {
				h.RespondWithError(w, 400, []string{apierrors.ErrInvalidRequest})
				return
			}

			if claims.UserID == ids[targetUserIDIndex] || claims.Role == models.RoleAdmin {
				next.ServeHTTP(w, r)
				return
			}

			h.RespondWithError(w, 403, []string{apierrors.ErrForbidden})
		})
	}
}

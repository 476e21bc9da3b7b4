package middlewares

import (
	"net/http"

	"api/internal/configuration"
	apierrors "api/internal/errors"
	"api/internal/helpers"
	"api/internal/models"
)

// TwoFactorValidate blocks sessions that have not finished their second
// factor. A pending session reaches only the routes on the bypass list; every
// other route answers 403 until the verification endpoint promotes the
// session. Applied after Authenticate and AudienceValidate.
func TwoFactorValidate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if excluded, _ := r.Context().Value(AuthExcludedKey{}).(bool); excluded {
			next.ServeHTTP(w, r)
			return
		}

		claims, ok := r.Context().Value(models.UserClaimKey{}).(models.UserClaims)
		if !ok {
			helpers.RespondWithError(w, 403, []string{apierrors.ErrForbidden})
			return
		}

		// Restricted JWTs are scoped by the audience rules, not by session
		// completion state.
		if claims.Aud != configuration.AudienceSession {
			next.ServeHTTP(w, r)
			return
		}

		if claims.MFA {
			next.ServeHTTP(w, r)
			return
		}

		if isTwoFactorBypassPath(r.URL.Path, r.Method) {
			next.ServeHTTP(w, r)
			return
		}

		helpers.RespondWithError(w, 403, []string{apierrors.ErrTwoFactorRequired})
	})
}

func isTwoFactorBypassPath(path, method string) bool {
	for _, rule := range configuration.TwoFactorBypassRules {
		if rule.Method != "*" && rule.Method != method {
			continue
		}

		if (rule.ExactPath != "" && rule.ExactPath == path) ||
			(rule.Pattern != nil && rule.Pattern.MatchString(path)) {
			return true
		}
	}
	return false
}

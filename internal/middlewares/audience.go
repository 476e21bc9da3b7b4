package middlewares

import (
	"net/http"

	"api/internal/configuration"
	apierrors "api/internal/errors"
	"api/internal/helpers"
	"api/internal/models"
)

// AudienceValidate pins each route to the bearer audiences it accepts. Routes
// with an explicit rule accept what the rule lists; every other route accepts
// only full login sessions. Restricted JWTs therefore cannot be replayed
// outside the flow they were minted for. Applied after Authenticate.
func AudienceValidate(next http.Handler) http.Handler {
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

		allowedAudiences := getRouteAllowedAudiences(r.URL.Path, r.Method)

		if allowedAudiences != nil {
			if !isAudienceInList(claims.Aud, allowedAudiences) {
				helpers.RespondWithError(w, 403, []string{apierrors.ErrForbidden})
				return
			}
		} else {
			if claims.Aud != configuration.AudienceSession {
				helpers.RespondWithError(w, 403, []string{apierrors.ErrForbidden})
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

func getRouteAllowedAudiences(path, method string) []string {
	for _, rule := range configuration.AuthAudienceRules {
		if rule.Method != "*" && rule.Method != method {
			continue
		}

		if (rule.ExactPath != "" && rule.ExactPath == path) ||
			(rule.Pattern != nil && rule.Pattern.MatchString(path)) {
			return rule.AllowedAudiences
		}
	}
	return nil
}

func isAudienceInList(audience string, allowedAudiences []string) bool {
	for _, allowed := range allowedAudiences {
		if audience == allowed {
			return true
		}
	}
	return false
}

package middlewares

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"api/internal/configuration"
	apierrors "api/internal/errors"
	"api/internal/helpers"
	"api/internal/models"
	"api/internal/sql"

	"gorm.io/gorm"
)

// AuthExcludedKey marks requests the authenticator let through without
// credentials so downstream middlewares skip their checks too.
type AuthExcludedKey struct{}

// Authenticate resolves the Authorization bearer into claims. Two bearer
// formats exist: opaque session tokens, looked up by their SHA-256 hash, and
// restricted JWTs minted for narrow flows. Routes matched by the exclusion
// rules pass through unauthenticated.
func Authenticate(db *gorm.DB, jwtSecret string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			if isExcluded(r.URL.Path, r.Method) {
				ctx := context.WithValue(r.Context(), AuthExcludedKey{}, true)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				helpers.RespondWithError(w, 401, []string{apierrors.ErrSessionNotFound})
				return
			}

			claims, err := resolveBearer(db, jwtSecret, token)
			if err != nil {
				var apiErr *apierrors.APIError
				if errors.As(err, &apiErr) {
					helpers.RespondWithAPIError(w, apiErr)
					return
				}
				helpers.RespondWithError(w, 401, []string{apierrors.ErrSessionNotFound})
				return
			}

			ctx := context.WithValue(r.Context(), models.UserClaimKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		}
		return http.HandlerFunc(fn)
	}
}

// resolveBearer dispatches on the bearer shape. A JWT always carries two dots;
// opaque session tokens are base64url and never do.
func resolveBearer(db *gorm.DB, jwtSecret, token string) (models.UserClaims, error) {
	if strings.Count(token, ".") == 2 {
		return helpers.ParseToken(jwtSecret, token, false)
	}
	return SessionClaims(db, token)
}

// SessionClaims resolves a raw session token against the session store. The
// audience is always the session audience; MFA mirrors the session's
// completion flag so the two-factor gate can tell pending sessions apart.
func SessionClaims(db *gorm.DB, token string) (models.UserClaims, error) {
	session, err := sql.GetSessionByTokenHash(db, helpers.HashSessionToken(token))
	if err != nil {
		return models.UserClaims{}, err
	}

	if session.Expired() {
		return models.UserClaims{}, apierrors.NewAPIError(401, apierrors.ErrSessionExpired)
	}

	if session.Subject == nil {
		return models.UserClaims{}, apierrors.NewAPIError(401, apierrors.ErrSessionNotFound)
	}

	return models.UserClaims{
		UserID:           session.Subject.ID,
		Email:            session.Subject.Email,
		Role:             session.Subject.Role,
		Aud:              configuration.AudienceSession,
		MFA:              session.TwoFactorComplete,
		Provider:         string(session.Subject.ProviderType),
		SessionTokenHash: session.TokenHash,
	}, nil
}

// isExcluded checks exact rules first, then patterns, then prefixes. Paths
// matching no rule require auth.
func isExcluded(path, method string) bool {
	if exactRules, exists := configuration.AuthRuleExactMatchPath[path]; exists {
		for _, rule := range exactRules {
			if rule.Method == "*" || rule.Method == method {
				return !rule.RequireAuth
			}
		}
	}

	for _, rule := range configuration.AuthRulePatternMatchPath {
		if rule.Pattern.MatchString(path) {
			if rule.Method == "*" || rule.Method == method {
				return !rule.RequireAuth
			}
		}
	}

	for _, rule := range configuration.AuthRulePrefixMatchPath {
		if strings.HasPrefix(path, rule.Path) {
			if rule.Method == "*" || rule.Method == method {
				return !rule.RequireAuth
			}
		}
	}

	return false
}

package middlewares

import (
	"net"
	"net/http"
	"time"

	c "api/internal/cache"
	"api/internal/configuration"
	apierrors "api/internal/errors"
	"api/internal/helpers"

	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RateLimit caps request throughput per caller across all instances through
// the shared cache. Authenticated callers are keyed by user ID; everyone else
// by client IP. Forwarded headers count only when the peer is a trusted
// proxy. Cache outages fail open.
func RateLimit(cache c.ICache, trustedProxies []string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identifier := requestIdentifier(r, trustedProxies)

			retryAfter, err := cache.GetRateLimit(identifier, configuration.RateLimitRequestsPerMinute)
			if err != nil {
				zap.L().Warn("Rate limit check failed", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			if retryAfter > 0 {
				apiErr := apierrors.NewRateLimitedError(retryAfter)
				helpers.RespondWithAPIError(w, apiErr)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// PublicThrottle is the in-process limit fronting unauthenticated endpoints
// such as login and password reset, which cannot rely on the per-user limit.
func PublicThrottle(requestLimit int) func(next http.Handler) http.Handler {
	return httprate.Limit(
		requestLimit,
		time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return helpers.ClientIP(r), nil
		}),
	)
}

func requestIdentifier(r *http.Request, trustedProxies []string) string {
	if claims, err := helpers.GetUserClaims(r.Context()); err == nil && claims.UserID != uuid.Nil {
		return "user:" + claims.UserID.String()
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}

	if isTrustedProxy(host, trustedProxies) {
		if ip := helpers.ClientIP(r); ip != "" {
			return "ip:" + ip
		}
	}

	return "ip:" + host
}

func isTrustedProxy(host string, trustedProxies []string) bool {
	for _, proxy := range trustedProxies {
		if proxy == host {
			return true
		}
	}
	return false
}

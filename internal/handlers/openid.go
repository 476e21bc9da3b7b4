package handlers

import (
	"context"
	"net/http"
	"time"

	h "api/internal/helpers"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	oidcStateCookie = "oidc_state"
	oidcNonceCookie = "oidc_nonce"
	oidcCookieTTL   = 10 * time.Minute
)

func setFlowCookie(w http.ResponseWriter, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/api/v1/auth/providers",
		MaxAge:   int(oidcCookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearFlowCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/api/v1/auth/providers",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}

// OpenIDBeginHandler starts the authorization code flow for the provider in
// the URL. State and nonce are minted here and pinned in flow cookies so the
// callback can verify them.
func OpenIDBeginHandler(
	fn func(providerName string, state string, nonce string) (string, error),
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := zap.L()

		state, err := h.RandomToken()
		if err != nil {
			respondError(w, logger, err)
			return
		}
		nonce, err := h.RandomToken()
		if err != nil {
			respondError(w, logger, err)
			return
		}

		authURL, err := fn(chi.URLParam(r, "provider"), state, nonce)
		if err != nil {
			h.RespondWithError(w, 404, []string{"PROVIDER_NOT_FOUND"})
			return
		}

		setFlowCookie(w, oidcStateCookie, state)
		setFlowCookie(w, oidcNonceCookie, nonce)
		http.Redirect(w, r, authURL, http.StatusFound)
	}
}

// OpenIDCallbackHandler finishes the authorization code flow. The exchange
// result is a raw session token, handed to the web application through the
// URL fragment so it never reaches server logs and referrer headers.
func OpenIDCallbackHandler(
	webURL string,
	fn func(ctx context.Context, logger *zap.Logger, providerKey, code, nonce string) (string, error),
) http.HandlerFunc {
	failureURL := webURL + "/login?error=oidc_failed"

	return func(w http.ResponseWriter, r *http.Request) {
		logger := zap.L()

		stateCookie, err := r.Cookie(oidcStateCookie)
		if err != nil || stateCookie.Value == "" || stateCookie.Value != r.URL.Query().Get("state") {
			logger.Warn("OIDC state mismatch")
			http.Redirect(w, r, failureURL, http.StatusFound)
			return
		}

		nonceCookie, err := r.Cookie(oidcNonceCookie)
		if err != nil || nonceCookie.Value == "" {
			logger.Warn("OIDC nonce cookie missing")
			http.Redirect(w, r, failureURL, http.StatusFound)
			return
		}

		clearFlowCookie(w, oidcStateCookie)
		clearFlowCookie(w, oidcNonceCookie)

		token, err := fn(
			r.Context(),
			logger,
			chi.URLParam(r, "provider"),
			r.URL.Query().Get("code"),
			nonceCookie.Value,
		)
		if err != nil {
			logger.Error("OIDC callback failed", zap.Error(err))
			http.Redirect(w, r, failureURL, http.StatusFound)
			return
		}

		http.Redirect(w, r, webURL+"/auth/callback#token="+token, http.StatusFound)
	}
}

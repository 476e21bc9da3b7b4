package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"api/internal/activity"
	"api/internal/cache"
	"api/internal/configuration"
	apierrors "api/internal/errors"
	"api/internal/handlers"
	h "api/internal/helpers"
	"api/internal/messaging"
	m "api/internal/middlewares"
	"api/internal/models"
	"api/internal/sql"

	"github.com/alexedwards/argon2id"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

type AuthService struct {
	DB             *gorm.DB
	Cache          cache.ICache
	AuthConfig     models.AuthConfig
	Providers      configuration.Providers
	Publisher      messaging.IPublisher
	ActivityLogger activity.IActivityLogger
}

func (s AuthService) Routes() chi.Router {
	r := chi.NewRouter()
	r.With(m.Validate[models.AuthLoginBody]).Post("/login", handlers.CreateHandler(s.Login))
	r.Post("/logout", handlers.DeleteHandler(s.Logout))

	r.Mount("/reset-password", NewAuthPasswordResetService(s).Routes())

	r.Route("/providers", func(r chi.Router) {
		r.Get("/", handlers.GetListHandler(s.GetProviderList))
		r.Route("/{provider}", func(r chi.Router) {
			r.Get("/begin", handlers.OpenIDBeginHandler(s.OpenIDBegin))
			r.Get("/callback", handlers.OpenIDCallbackHandler(s.AuthConfig.WebURL, s.OpenIDCallback))
		})
	})
	return r
}

// Login checks an email and password pair against the local provider and
// issues a session. Subjects with a confirmed second-factor credential get a
// short-lived pending session that only the verification endpoint can promote;
// everyone else gets a full session immediately.
func (s AuthService) Login(
	logger *zap.Logger,
	claims models.UserClaims,
	_ uuid.UUIDs,
	body models.AuthLoginBody,
) (models.AuthLoginResponse, error) {
	provider, ok := s.Providers[string(models.LocalProviderType)]
	if !ok {
		logger.Debug("Local auth provider not activated in the configuration")
		return models.AuthLoginResponse{}, apierrors.NewAPIError(403, apierrors.ErrForbidden)
	}

	if !provider.IsDomainAllowed(body.Email) {
		logger.Debug("Domain not allowed")
		return models.AuthLoginResponse{}, apierrors.NewAPIError(403, apierrors.ErrForbidden)
	}

	var user models.User
	result := s.DB.Preload("TwoFactorCredential").
		Where("email = ? AND provider_type = ?", body.Email, models.LocalProviderType).
		First(&user)

	// Unknown address and wrong password answer identically so responses do
	// not reveal which addresses hold an account.
	if result.RowsAffected != 1 {
		return models.AuthLoginResponse{}, apierrors.NewAPIError(401, apierrors.ErrInvalidCredentials)
	}

	match, err := argon2id.ComparePasswordAndHash(body.Password, user.HashedPassword)
	if err != nil || !match {
		return models.AuthLoginResponse{}, apierrors.NewAPIError(401, apierrors.ErrInvalidCredentials)
	}

	response, err := s.issueSession(logger, &user, !user.TwoFactorEnabled(), claims.ClientIP, claims.UserAgent)
	if err != nil {
		return models.AuthLoginResponse{}, err
	}

	if !response.TwoFactorRequired {
		s.logLoginActivity(logger, &user, string(models.LocalProviderType), provider.Name)
	}

	return response, nil
}

// Logout revokes the caller's current session. Revoking an already revoked or
// never issued session succeeds, so retries cannot fail.
func (s AuthService) Logout(
	logger *zap.Logger,
	claims models.UserClaims,
	_ uuid.UUIDs,
) error {
	if claims.SessionTokenHash == "" {
		return nil
	}

	deleted, err := sql.DeleteSessionByTokenHash(s.DB, claims.SessionTokenHash)
	if err != nil {
		logger.Error("Failed to delete session", zap.Error(err))
		return apierrors.NewAPIError(500, apierrors.ErrInternalServer)
	}

	if deleted > 0 {
		action := models.Activity{
			Message: activity.UserLoggedOut,
			Filter: activity.NewLogFilter(map[string]string{
				"action":      activity.UserLoggedOut,
				"user_id":     claims.UserID.String(),
				"object_type": "login_session",
			}),
		}
		if logErr := s.ActivityLogger.Send(action); logErr != nil {
			logger.Error("Failed to log logout activity", zap.Error(logErr))
		}
	}

	return nil
}

func (s AuthService) GetProviderList(
	_ *zap.Logger,
	_ models.UserClaims,
	_ uuid.UUIDs,
) []models.ProviderResponse {
	providers := make([]models.ProviderResponse, 0, len(s.Providers))
	for _, key := range s.Providers.Keys() {
		provider := s.Providers[key]

		domains := provider.Domains
		if len(domains) == 0 {
			domains = []string{}
		}

		providers = append(providers, models.ProviderResponse{
			ID:      key,
			Name:    provider.Name,
			Type:    provider.Type,
			Domains: domains,
		})
	}
	return providers
}

func (s AuthService) OpenIDBegin(providerName string, state string, nonce string) (string, error) {
	provider, ok := s.Providers[providerName]
	if !ok {
		return "", errors.New("provider not found")
	}

	url := provider.OauthConfig.AuthCodeURL(state, oidc.Nonce(nonce), oauth2.AccessTypeOffline)
	return url, nil
}

// OpenIDCallback finishes the provider round trip and issues a full session.
// The second factor of provider accounts lives with the provider, so these
// sessions never start pending.
func (s AuthService) OpenIDCallback(
	ctx context.Context, logger *zap.Logger, providerKey string, code string, nonce string,
) (string, error) {
	provider, ok := s.Providers[providerKey]
	if !ok {
		return "", errors.New("provider not found")
	}

	oauth2Token, err := provider.OauthConfig.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("failed to exchange token %s", err.Error())
	}

	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		return "", errors.New("no id_token field in oauth2 token")
	}

	idToken, err := provider.Verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return "", fmt.Errorf("failed to verify ID token %s", err.Error())
	}

	if idToken.Nonce != nonce {
		return "", errors.New("nonce does not match")
	}

	userInfo, err := provider.Provider.UserInfo(ctx, oauth2.StaticTokenSource(oauth2Token))
	if err != nil {
		return "", fmt.Errorf("failed to get user info %s", err.Error())
	}

	if !provider.IsDomainAllowed(userInfo.Email) {
		logger.Debug("Domain not allowed")
		return "", apierrors.NewAPIError(403, apierrors.ErrForbidden)
	}

	searchUser := models.User{
		Email:        userInfo.Email,
		ProviderType: models.OIDCProviderType,
		ProviderKey:  providerKey,
	}
	result := s.DB.Where(searchUser, "email", "provider_type", "provider_key").Find(&searchUser)
	if result.RowsAffected == 0 {
		searchUser.Role = models.RoleUser

		if err = s.DB.Create(&searchUser).Error; err != nil {
			logger.Error("Failed to create user", zap.Error(err))
			return "", apierrors.NewAPIError(500, apierrors.ErrInternalServer)
		}
	}

	response, err := s.issueSession(logger, &searchUser, true, "", "")
	if err != nil {
		return "", err
	}

	s.logLoginActivity(logger, &searchUser, string(models.OIDCProviderType), provider.Name)

	return response.Token, nil
}

// issueSession mints an opaque bearer token and persists its hash. The raw
// token leaves through the response and is never stored.
func (s AuthService) issueSession(
	logger *zap.Logger,
	user *models.User,
	complete bool,
	clientIP string,
	userAgent string,
) (models.AuthLoginResponse, error) {
	token, tokenHash, err := h.NewSessionToken()
	if err != nil {
		logger.Error("Failed to generate session token", zap.Error(err))
		return models.AuthLoginResponse{}, apierrors.NewAPIError(500, apierrors.ErrInternalServer)
	}

	expiresAt := time.Now().Add(time.Duration(s.AuthConfig.SessionExpiry) * time.Hour)
	if !complete {
		expiresAt = time.Now().Add(time.Duration(s.AuthConfig.PendingSessionExpiry) * time.Minute)
	}

	session := models.LoginSession{
		SubjectID:         user.ID,
		TokenHash:         tokenHash,
		TwoFactorComplete: complete,
		ExpiresAt:         expiresAt,
		IPAddress:         clientIP,
		UserAgent:         userAgent,
	}
	if err = s.DB.Create(&session).Error; err != nil {
		logger.Error("Failed to persist session", zap.Error(err))
		return models.AuthLoginResponse{}, apierrors.NewAPIError(500, apierrors.ErrInternalServer)
	}

	return models.AuthLoginResponse{
		Token:             token,
		TwoFactorRequired: !complete,
		ExpiresAt:         session.ExpiresAt,
	}, nil
}

func (s AuthService) logLoginActivity(
	logger *zap.Logger,
	user *models.User,
	providerType string,
	providerName string,
) {
	action := models.Activity{
		Message: activity.UserLoggedIn,
		Object:  user.ToActivity(),
		Filter: activity.NewLogFilter(map[string]string{
			"action":        activity.UserLoggedIn,
			"user_id":       user.ID.String(),
			"object_type":   "user",
			"provider_type": providerType,
			"provider_name": providerName,
		}),
	}
	if logErr := s.ActivityLogger.Send(action); logErr != nil {
		logger.Error("Failed to log login activity", zap.Error(logErr))
	}
}

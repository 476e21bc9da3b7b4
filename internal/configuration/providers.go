package configuration

import (
	"context"
	"fmt"
	"sort"

	"api/internal/models"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// Provider is a configured identity provider, with the OIDC runtime handles
// already resolved for non-local providers.
type Provider struct {
	Name    string
	Type    models.ProviderType
	Domains []string

	OauthConfig *oauth2.Config
	Verifier    *oidc.IDTokenVerifier
	Provider    *oidc.Provider
}

// Providers maps provider keys to their resolved runtime configuration.
type Providers map[string]Provider

// LoadProviders resolves the configured auth providers. OIDC providers are
// contacted for discovery, which requires network access at startup.
func LoadProviders(
	ctx context.Context,
	apiURL string,
	cfg models.AuthConfiguration,
) (Providers, error) {
	providers := make(Providers, len(cfg.Providers))

	for key, providerCfg := range cfg.Providers {
		switch providerCfg.Type {
		case models.LocalProviderType:
			providers[key] = Provider{
				Name:    providerCfg.Name,
				Type:    models.LocalProviderType,
				Domains: providerCfg.Domains,
			}
		case models.OIDCProviderType:
			oidcProvider, err := oidc.NewProvider(ctx, providerCfg.OIDC.Issuer)
			if err != nil {
				return nil, fmt.Errorf("failed to discover OIDC provider %s: %w", key, err)
			}

			providers[key] = Provider{
				Name:    providerCfg.Name,
				Type:    models.OIDCProviderType,
				Domains: providerCfg.Domains,
				OauthConfig: &oauth2.Config{
					ClientID:     providerCfg.OIDC.ClientID,
					ClientSecret: providerCfg.OIDC.ClientSecret,
					RedirectURL:  fmt.Sprintf("%s/api/v1/auth/providers/%s/callback", apiURL, key),
					Endpoint:     oidcProvider.Endpoint(),
					Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
				},
				Verifier: oidcProvider.Verifier(&oidc.Config{
					ClientID: providerCfg.OIDC.ClientID,
				}),
				Provider: oidcProvider,
			}
		default:
			return nil, fmt.Errorf("unknown provider type %q for provider %s", providerCfg.Type, key)
		}
	}

	return providers, nil
}

// Keys returns the provider keys in a stable order.
func (p Providers) Keys() []string {
	keys := make([]string, 0, len(p))
	for key := range p {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// IsDomainAllowed reports whether an email address may authenticate through
// this provider. An empty domain list allows every domain.
func (p Provider) IsDomainAllowed(email string) bool {
	if len(p.Domains) == 0 {
		return true
	}
	for _, domain := range p.Domains {
		if len(email) > len(domain)+1 && email[len(email)-len(domain)-1] == '@' &&
			email[len(email)-len(domain):] == domain {
			return true
		}
	}
	return false
}

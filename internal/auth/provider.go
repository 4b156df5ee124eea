// Package auth authorizes requests to flexibility services.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/torosent/flexconnect/internal/config"
)

// Provider obtains bearer tokens and attaches them to outgoing requests.
type Provider interface {
	// Token returns a valid access token, reusing a cached one while it is fresh.
	Token(ctx context.Context) (string, error)

	// InjectHeader sets the Authorization header of req.
	InjectHeader(ctx context.Context, req *http.Request) error

	// Close releases any resources held by the provider.
	Close() error
}

// FromConfig builds the provider selected by cfg. It returns nil when no
// authorization is configured.
func FromConfig(cfg config.AuthConfig, timeout time.Duration) (Provider, error) {
	switch cfg.Method {
	case config.AuthMethodNone:
		return nil, nil
	case config.AuthMethodStatic:
		return NewStaticTokenProvider(cfg.Token), nil
	case config.AuthMethodClientCredentials:
		return NewClientCredentialsProvider(ClientCredentials{
			TokenURL:            cfg.TokenURL,
			ClientID:            cfg.ClientID,
			ClientSecret:        cfg.ClientSecret,
			Scopes:              cfg.Scopes,
			RefreshBeforeExpiry: cfg.RefreshBeforeExpiry,
		}, &http.Client{Timeout: timeout}), nil
	default:
		return nil, fmt.Errorf("unsupported auth method %q", cfg.Method)
	}
}

func setBearer(req *http.Request, token string) {
	req.Header.Set("Authorization", "Bearer "+token)
}

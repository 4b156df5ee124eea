package auth

import (
	"context"
	"net/http"
)

// StaticTokenProvider returns a token obtained outside of flexconnect.
type StaticTokenProvider struct {
	token string
}

// NewStaticTokenProvider creates a provider that always returns token.
func NewStaticTokenProvider(token string) *StaticTokenProvider {
	return &StaticTokenProvider{token: token}
}

// Token returns the static token without any network calls.
func (p *StaticTokenProvider) Token(ctx context.Context) (string, error) {
	return p.token, nil
}

func (p *StaticTokenProvider) InjectHeader(ctx context.Context, req *http.Request) error {
	setBearer(req, p.token)
	return nil
}

// Close is a no-op.
func (p *StaticTokenProvider) Close() error {
	return nil
}

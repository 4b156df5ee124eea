package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// ClientCredentials configures the OAuth2 client credentials grant.
type ClientCredentials struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
	// RefreshBeforeExpiry renews a token this long before it expires.
	RefreshBeforeExpiry time.Duration
}

// ClientCredentialsProvider fetches and caches tokens from an OAuth2 token
// endpoint. Concurrent callers share a single in-flight fetch.
type ClientCredentialsProvider struct {
	creds      ClientCredentials
	httpClient *http.Client
	group      singleflight.Group
	now        func() time.Time

	mu     sync.RWMutex
	token  string
	expiry time.Time
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Error       string `json:"error,omitempty"`
	ErrorDesc   string `json:"error_description,omitempty"`
}

// NewClientCredentialsProvider creates a provider for creds. A nil client
// uses a client with a 30 second timeout.
func NewClientCredentialsProvider(creds ClientCredentials, client *http.Client) *ClientCredentialsProvider {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &ClientCredentialsProvider{
		creds:      creds,
		httpClient: client,
		now:        time.Now,
	}
}

// Token returns the cached token while it is fresh, otherwise fetches a new one.
func (p *ClientCredentialsProvider) Token(ctx context.Context) (string, error) {
	if token, ok := p.cached(); ok {
		return token, nil
	}

	result := p.group.DoChan("token", func() (interface{}, error) {
		if token, ok := p.cached(); ok {
			return token, nil
		}
		token, expiresIn, err := p.fetchToken(context.WithoutCancel(ctx))
		if err != nil {
			return "", err
		}
		p.mu.Lock()
		p.token = token
		p.expiry = p.now().Add(time.Duration(expiresIn)*time.Second - p.creds.RefreshBeforeExpiry)
		p.mu.Unlock()
		return token, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-result:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (p *ClientCredentialsProvider) cached() (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.token != "" && p.now().Before(p.expiry) {
		return p.token, true
	}
	return "", false
}

func (p *ClientCredentialsProvider) fetchToken(ctx context.Context) (string, int, error) {
	data := url.Values{}
	data.Set("grant_type", "client_credentials")
	if len(p.creds.Scopes) > 0 {
		data.Set("scope", strings.Join(p.creds.Scopes, " "))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.creds.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", 0, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(p.creds.ClientID, p.creds.ClientSecret)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("failed to fetch token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("token request failed with status %d", resp.StatusCode)
	}

	var body tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", 0, fmt.Errorf("failed to decode token response: %w", err)
	}
	if body.Error != "" {
		return "", 0, fmt.Errorf("oauth2 error: %s - %s", body.Error, body.ErrorDesc)
	}
	if body.AccessToken == "" {
		return "", 0, errors.New("no access token in response")
	}
	return body.AccessToken, body.ExpiresIn, nil
}

func (p *ClientCredentialsProvider) InjectHeader(ctx context.Context, req *http.Request) error {
	token, err := p.Token(ctx)
	if err != nil {
		return fmt.Errorf("failed to get token: %w", err)
	}
	setBearer(req, token)
	return nil
}

// Close releases idle connections to the token endpoint.
func (p *ClientCredentialsProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

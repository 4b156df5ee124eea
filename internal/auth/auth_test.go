package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/torosent/flexconnect/internal/config"
)

type tokenServer struct {
	server   *httptest.Server
	requests atomic.Int32
	mu       sync.Mutex
	status   int
	response tokenResponse
	lastAuth string
	lastBody string
	delay    time.Duration
}

func newTokenServer(t *testing.T) *tokenServer {
	t.Helper()
	s := &tokenServer{
		status:   http.StatusOK,
		response: tokenResponse{AccessToken: "test-token-123", TokenType: "Bearer", ExpiresIn: 3600},
	}
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)
		body, _ := io.ReadAll(r.Body)

		s.mu.Lock()
		s.lastAuth = r.Header.Get("Authorization")
		s.lastBody = string(body)
		status, response, delay := s.status, s.response, s.delay
		s.mu.Unlock()

		if delay > 0 {
			time.Sleep(delay)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(response)
	}))
	t.Cleanup(s.server.Close)
	return s
}

func (s *tokenServer) provider(refresh time.Duration) *ClientCredentialsProvider {
	return NewClientCredentialsProvider(ClientCredentials{
		TokenURL:            s.server.URL,
		ClientID:            "test-client-id",
		ClientSecret:        "test-client-secret",
		Scopes:              []string{"flex.read", "flex.write"},
		RefreshBeforeExpiry: refresh,
	}, s.server.Client())
}

func TestStaticTokenProvider(t *testing.T) {
	provider := NewStaticTokenProvider("my-static-token")

	got, err := provider.Token(context.Background())
	if err != nil || got != "my-static-token" {
		t.Fatalf("Token() = %q, %v", got, err)
	}

	req := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
	if err := provider.InjectHeader(context.Background(), req); err != nil {
		t.Fatalf("InjectHeader() error = %v", err)
	}
	if got := req.Header.Get("Authorization"); got != "Bearer my-static-token" {
		t.Errorf("Authorization header = %q", got)
	}
}

func TestClientCredentialsUsesBasicAuth(t *testing.T) {
	srv := newTokenServer(t)
	provider := srv.provider(0)
	defer provider.Close()

	if _, err := provider.Token(context.Background()); err != nil {
		t.Fatalf("Token() error = %v", err)
	}

	srv.mu.Lock()
	auth, body := srv.lastAuth, srv.lastBody
	srv.mu.Unlock()

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(auth, "Basic "))
	if err != nil {
		t.Fatalf("failed to decode Basic Auth: %v", err)
	}
	if string(decoded) != "test-client-id:test-client-secret" {
		t.Errorf("credentials = %q", decoded)
	}
	if strings.Contains(body, "client_secret") {
		t.Error("client_secret should not be in form body")
	}
	if !strings.Contains(body, "grant_type=client_credentials") || !strings.Contains(body, "scope=flex.read+flex.write") {
		t.Errorf("unexpected form body %q", body)
	}
}

func TestClientCredentialsCachesToken(t *testing.T) {
	srv := newTokenServer(t)
	provider := srv.provider(0)

	for i := 0; i < 3; i++ {
		token, err := provider.Token(context.Background())
		if err != nil {
			t.Fatalf("Token() error = %v", err)
		}
		if token != "test-token-123" {
			t.Fatalf("token = %q", token)
		}
	}
	if got := srv.requests.Load(); got != 1 {
		t.Errorf("expected 1 token request, got %d", got)
	}
}

func TestClientCredentialsRefreshesBeforeExpiry(t *testing.T) {
	srv := newTokenServer(t)
	provider := srv.provider(30 * time.Second)
	now := time.Now()
	provider.now = func() time.Time { return now }

	if _, err := provider.Token(context.Background()); err != nil {
		t.Fatalf("Token() error = %v", err)
	}

	// 3600s token with a 30s refresh margin is stale after 3570s.
	now = now.Add(3571 * time.Second)
	srv.mu.Lock()
	srv.response.AccessToken = "renewed"
	srv.mu.Unlock()

	token, err := provider.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if token != "renewed" || srv.requests.Load() != 2 {
		t.Errorf("expected renewed token after 2 requests, got %q after %d", token, srv.requests.Load())
	}
}

func TestClientCredentialsSharesInFlightFetch(t *testing.T) {
	srv := newTokenServer(t)
	srv.mu.Lock()
	srv.delay = 50 * time.Millisecond
	srv.mu.Unlock()
	provider := srv.provider(0)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := provider.Token(context.Background()); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("Token() error = %v", err)
	}
	if got := srv.requests.Load(); got != 1 {
		t.Errorf("expected 1 token request for concurrent callers, got %d", got)
	}
}

func TestClientCredentialsErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		response tokenResponse
		want     string
	}{
		{name: "status", status: http.StatusUnauthorized, want: "status 401"},
		{name: "oauth error", status: http.StatusOK, response: tokenResponse{Error: "invalid_client", ErrorDesc: "bad secret"}, want: "invalid_client"},
		{name: "missing token", status: http.StatusOK, response: tokenResponse{TokenType: "Bearer"}, want: "no access token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTokenServer(t)
			srv.mu.Lock()
			srv.status = tt.status
			srv.response = tt.response
			srv.mu.Unlock()

			req := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
			err := srv.provider(0).InjectHeader(context.Background(), req)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("InjectHeader() error = %v, want containing %q", err, tt.want)
			}
			if req.Header.Get("Authorization") != "" {
				t.Error("Authorization header should not be set on failure")
			}
		})
	}
}

func TestClientCredentialsContextCancellation(t *testing.T) {
	srv := newTokenServer(t)
	srv.mu.Lock()
	srv.delay = 200 * time.Millisecond
	srv.mu.Unlock()
	provider := srv.provider(0)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := provider.Token(ctx); err == nil {
		t.Fatal("expected context error")
	}
}

func TestFromConfig(t *testing.T) {
	p, err := FromConfig(config.AuthConfig{}, time.Second)
	if err != nil || p != nil {
		t.Fatalf("expected no provider without auth, got %v, %v", p, err)
	}

	p, err = FromConfig(config.AuthConfig{Method: config.AuthMethodStatic, Token: "tok"}, time.Second)
	if err != nil {
		t.Fatalf("FromConfig() error = %v", err)
	}
	if _, ok := p.(*StaticTokenProvider); !ok {
		t.Fatalf("expected StaticTokenProvider, got %T", p)
	}

	p, err = FromConfig(config.AuthConfig{Method: config.AuthMethodClientCredentials, TokenURL: "https://t"}, time.Second)
	if err != nil {
		t.Fatalf("FromConfig() error = %v", err)
	}
	if _, ok := p.(*ClientCredentialsProvider); !ok {
		t.Fatalf("expected ClientCredentialsProvider, got %T", p)
	}

	if _, err := FromConfig(config.AuthConfig{Method: "basic"}, time.Second); err == nil {
		t.Fatal("expected unsupported method error")
	}
}

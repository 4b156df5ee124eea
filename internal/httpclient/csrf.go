package httpclient

import (
	"net/http"
	"sync"
)

const (
	// CSRFTokenHeader carries the security token in both directions.
	CSRFTokenHeader = "X-CSRF-Token"
	// FetchToken asks the server to issue a token in the response header.
	FetchToken = "fetch"
)

// applyCSRFHeader implements the double-submit handshake. Safe methods without
// a token request one; unsafe methods with a token echo it back. Any other
// combination sends no token header.
func applyCSRFHeader(header http.Header, method, token string) {
	switch method {
	case http.MethodGet, http.MethodHead:
		if token == "" {
			header.Set(CSRFTokenHeader, FetchToken)
		}
	case http.MethodPost, http.MethodPut, http.MethodDelete:
		if token != "" {
			header.Set(CSRFTokenHeader, token)
		}
	}
}

// TokenStore remembers the last security token a server issued.
type TokenStore struct {
	mu    sync.RWMutex
	token string
}

// Token returns the stored token, or "" when none is known.
func (s *TokenStore) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Update stores token. Empty tokens are ignored so a response without the
// header does not erase a known token.
func (s *TokenStore) Update(token string) {
	if token == "" {
		return
	}
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

// Reset forgets the stored token.
func (s *TokenStore) Reset() {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
}

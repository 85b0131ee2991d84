package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/agentic-research/spotreach/api"
)

var ErrNoCredential = errors.New("no refresh credential configured")

// Session is the authentication context of one Client: the long-lived
// refresh credential and the bearer token currently in use.
type Session struct {
	refreshURL   string
	refreshToken string
	http         *http.Client

	mu           sync.Mutex
	currentToken string
}

func NewSession(refreshURL, refreshToken string, hc *http.Client) *Session {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Session{refreshURL: refreshURL, refreshToken: refreshToken, http: hc}
}

// Token returns the current bearer token, refreshing if none is held.
func (s *Session) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	tok := s.currentToken
	s.mu.Unlock()
	if tok != "" {
		return tok, nil
	}
	return s.Refresh(ctx)
}

// Refresh exchanges the refresh credential for a new bearer token.
func (s *Session) Refresh(ctx context.Context) (string, error) {
	if s.refreshToken == "" {
		return "", ErrNoCredential
	}
	body, err := json.Marshal(api.RefreshRequest{Refresh: s.refreshToken})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.refreshURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("refresh token: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", &StatusError{Op: "refresh token", Code: resp.StatusCode}
	}
	var out api.RefreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode refresh response: %w", err)
	}
	if out.Access == "" {
		return "", errors.New("refresh response has no access token")
	}

	s.mu.Lock()
	s.currentToken = out.Access
	s.mu.Unlock()
	return out.Access, nil
}

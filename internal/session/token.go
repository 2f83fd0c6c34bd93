package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// tokenRefreshMargin is how long before expiry a token is replaced.
const tokenRefreshMargin = time.Minute

var (
	ErrInvalidClaims = errors.New("token claims invalid")
	ErrExpiredToken  = errors.New("received expired token")
)

type (
	// TokenSource exchanges an access key and secret for a bearer token and
	// caches it until shortly before it expires.
	TokenSource struct {
		url       string
		accessKey string
		secretKey string
		client    *http.Client

		mu     sync.Mutex
		token  string
		claims jwt.RegisteredClaims
	}

	// tokenExchange is the request body for the token exchange.
	tokenExchange struct {
		APIKeyPublicIdentifier string   `json:"apiKeyPublicIdentifier"`
		Secret                 string   `json:"secret"`
		Scopes                 []string `json:"scopes"`
	}

	// tokenAuthentication is the returned body for the token exchange.
	tokenAuthentication struct {
		AccessToken string `json:"accessToken"`
	}
)

// NewTokenSource returns a token source exchanging keys at url.
func NewTokenSource(url, accessKey, secretKey string, client *http.Client) *TokenSource {
	if client == nil {
		client = &http.Client{Timeout: time.Minute}
	}

	return &TokenSource{
		url:       url,
		accessKey: accessKey,
		secretKey: secretKey,
		client:    client,
	}
}

// Refresh exchanges the keys for a new token.
func (ts *TokenSource) Refresh(ctx context.Context) error {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	return ts.refresh(ctx)
}

func (ts *TokenSource) refresh(ctx context.Context) error {
	content, err := json.Marshal(&tokenExchange{
		APIKeyPublicIdentifier: ts.accessKey,
		Secret:                 ts.secretKey,
		Scopes:                 []string{},
	})
	if err != nil {
		return fmt.Errorf("marshal token exchange: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.url, bytes.NewReader(content))
	if err != nil {
		return fmt.Errorf("token exchange request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := ts.client.Do(req)
	if err != nil {
		return fmt.Errorf("do token exchange: %w", err)
	}

	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusCreated {
		return UnexpectedHTTPStatusError(resp.StatusCode)
	}

	var o tokenAuthentication
	if err = json.NewDecoder(resp.Body).Decode(&o); err != nil {
		return fmt.Errorf("decode token exchange: %w", err)
	}

	token, _, err := jwt.NewParser().ParseUnverified(o.AccessToken, &jwt.RegisteredClaims{})
	if err != nil {
		return fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims == nil {
		return ErrInvalidClaims
	}

	if claims.ExpiresAt == nil || claims.ExpiresAt.Before(time.Now()) {
		return ErrExpiredToken
	}

	ts.claims = *claims
	ts.token = o.AccessToken

	return nil
}

// BearerToken returns a token valid for at least another minute.
func (ts *TokenSource) BearerToken(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.claims.ExpiresAt == nil || ts.claims.ExpiresAt.Before(time.Now().Add(tokenRefreshMargin)) {
		if err := ts.refresh(ctx); err != nil {
			return "", fmt.Errorf("refresh token: %w", err)
		}
	}

	return ts.token, nil
}

// AddRequestBearerToken sets the Authorization header of r.
func (ts *TokenSource) AddRequestBearerToken(r *http.Request) error {
	t, err := ts.BearerToken(r.Context())
	if err != nil {
		return fmt.Errorf("get bearer token: %w", err)
	}

	r.Header.Set("Authorization", "Bearer "+t)

	return nil
}

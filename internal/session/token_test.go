package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/require"
)

// tokenServer issues tokens expiring after ttl and counts the exchanges.
func tokenServer(t *testing.T, ttl time.Duration) (*httptest.Server, *int32) {
	t.Helper()

	var exchanges int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body tokenExchange
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Secret != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		atomic.AddInt32(&exchanges, 1)

		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject:   body.APIKeyPublicIdentifier,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		}).SignedString([]byte("signing-key"))
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(tokenAuthentication{AccessToken: signed})
	}))
	t.Cleanup(srv.Close)

	return srv, &exchanges
}

func Test_TokenSource_caches(t *testing.T) {
	t.Parallel()
	srv, exchanges := tokenServer(t, time.Hour)
	ts := NewTokenSource(srv.URL, "key", "secret", nil)

	first, err := ts.BearerToken(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, first)

	second, err := ts.BearerToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, int32(1), atomic.LoadInt32(exchanges))

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	require.NoError(t, ts.AddRequestBearerToken(req))
	require.Equal(t, "Bearer "+first, req.Header.Get("Authorization"))
}

func Test_TokenSource_refreshesNearExpiry(t *testing.T) {
	t.Parallel()
	srv, exchanges := tokenServer(t, 30*time.Second)
	ts := NewTokenSource(srv.URL, "key", "secret", nil)

	_, err := ts.BearerToken(context.Background())
	require.NoError(t, err)

	_, err = ts.BearerToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, int32(2), atomic.LoadInt32(exchanges))
}

func Test_TokenSource_errors(t *testing.T) {
	t.Parallel()

	srv, _ := tokenServer(t, -time.Minute)
	_, err := NewTokenSource(srv.URL, "key", "secret", nil).BearerToken(context.Background())
	require.ErrorIs(t, err, ErrExpiredToken)

	srv, _ = tokenServer(t, time.Hour)
	_, err = NewTokenSource(srv.URL, "key", "wrong", nil).BearerToken(context.Background())
	require.ErrorIs(t, err, UnexpectedHTTPStatusError(http.StatusUnauthorized))
}

func Test_HTTPService_bearerToken(t *testing.T) {
	t.Parallel()
	tokens, _ := tokenServer(t, time.Hour)

	auth := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth <- r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	svc := NewHTTPService(HTTPConfig{
		BaseURL:   srv.URL,
		AccessKey: "key",
		SecretKey: "secret",
		TokenURL:  tokens.URL,
	}, newTestLogger())

	require.NoError(t, svc.Delete(context.Background(), "s1"))

	header := <-auth
	require.Contains(t, header, "Bearer ")

	token, _, err := jwt.NewParser().ParseUnverified(header[len("Bearer "):], &jwt.RegisteredClaims{})
	require.NoError(t, err)
	require.Equal(t, "key", token.Claims.(*jwt.RegisteredClaims).Subject)
}

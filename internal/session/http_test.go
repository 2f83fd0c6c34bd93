package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *logrus.Entry {
	return logrus.NewEntry(logrus.New())
}

func Test_HTTPService_roundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	backend := NewMemoryService("127.0.0.1", 7000, 4, time.Hour)
	srv := httptest.NewServer(NewServer(backend, newTestLogger()))
	t.Cleanup(srv.Close)

	svc := NewHTTPService(HTTPConfig{BaseURL: srv.URL, PollInterval: 10 * time.Millisecond}, newTestLogger())

	created, err := svc.Create(ctx, CreateRequest{ID: "match-1", Name: "Arena", MaxPlayers: 6})
	require.NoError(t, err)
	require.Equal(t, &Session{ID: "match-1", Name: "Arena", IP: "127.0.0.1", Port: 7000, MaxPlayers: 6}, created)

	_, err = svc.Create(ctx, CreateRequest{ID: "match-1", MaxPlayers: 6})
	require.ErrorIs(t, err, ErrSessionExists)

	found, err := svc.Lookup(ctx, "match-1")
	require.NoError(t, err)
	require.Equal(t, created, found)

	require.NoError(t, svc.Delete(ctx, "match-1"))
	require.ErrorIs(t, svc.Delete(ctx, "match-1"), ErrSessionNotFound)

	_, err = svc.Lookup(ctx, "match-1")
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func Test_HTTPService_createPollsForAddress(t *testing.T) {
	t.Parallel()

	var lookups int32
	mux := http.NewServeMux()
	mux.HandleFunc(allocatePath, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"allocation":{"id":"s1"}}`))
	})
	mux.HandleFunc(allocationsPath, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&lookups, 1) < 3 {
			_, _ = w.Write([]byte(`{"success":true,"allocations":[{"id":"s1"}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"allocations":[{"id":"s1","ip":"10.1.1.1","port":7777}]}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	svc := NewHTTPService(HTTPConfig{BaseURL: srv.URL, PollInterval: 5 * time.Millisecond}, newTestLogger())

	sess, err := svc.Create(context.Background(), CreateRequest{ID: "s1"})
	require.NoError(t, err)
	require.Equal(t, "10.1.1.1:7777", sess.Address())
	require.Equal(t, int32(3), atomic.LoadInt32(&lookups))
}

func Test_HTTPService_createGivesUp(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc(allocatePath, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"allocation":{"id":"s1"}}`))
	})
	mux.HandleFunc(allocationsPath, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	svc := NewHTTPService(HTTPConfig{BaseURL: srv.URL, PollInterval: 5 * time.Millisecond}, newTestLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := svc.Create(ctx, CreateRequest{ID: "s1"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func Test_HTTPService_basicAuth(t *testing.T) {
	t.Parallel()

	creds := make(chan [2]string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, _ := r.BasicAuth()
		creds <- [2]string{user, pass}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	svc := NewHTTPService(HTTPConfig{BaseURL: srv.URL, AccessKey: "key", SecretKey: "secret"}, newTestLogger())
	require.NoError(t, svc.Delete(context.Background(), "s1"))
	require.Equal(t, [2]string{"key", "secret"}, <-creds)
}

func Test_NewHTTPServiceFromEnv(t *testing.T) {
	t.Setenv("NETCODE_SESSION_ACCESS_KEY", "key")
	t.Setenv("NETCODE_SESSION_POLL_INTERVAL", "250ms")

	svc, err := NewHTTPServiceFromEnv("http://localhost:8085", newTestLogger())
	require.NoError(t, err)
	require.Equal(t, HTTPConfig{
		BaseURL:      "http://localhost:8085",
		AccessKey:    "key",
		PollInterval: 250 * time.Millisecond,
	}, svc.cfg)

	_, err = NewHTTPServiceFromEnv("", newTestLogger())
	require.ErrorIs(t, err, ErrBaseURLRequired)
}

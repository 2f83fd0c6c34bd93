package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func Test_MemoryService(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemoryService("10.0.0.1", 9000, 2, time.Hour)

	a, err := m.Create(ctx, CreateRequest{ID: "a", Name: "Arena", MaxPlayers: 4})
	require.NoError(t, err)
	require.Equal(t, &Session{ID: "a", Name: "Arena", IP: "10.0.0.1", Port: 9000, MaxPlayers: 4}, a)
	require.Equal(t, "10.0.0.1:9000", a.Address())

	_, err = m.Create(ctx, CreateRequest{ID: "a"})
	require.ErrorIs(t, err, ErrSessionExists)

	b, err := m.Create(ctx, CreateRequest{Name: "Generated"})
	require.NoError(t, err)
	require.NotEmpty(t, b.ID)
	require.Equal(t, 9001, b.Port)

	_, err = m.Create(ctx, CreateRequest{ID: "c"})
	require.ErrorIs(t, err, ErrNoCapacity)

	got, err := m.Lookup(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, a, got)
	require.Len(t, m.List(), 2)

	require.NoError(t, m.Delete(ctx, "a"))
	require.ErrorIs(t, m.Delete(ctx, "a"), ErrSessionNotFound)

	_, err = m.Lookup(ctx, "a")
	require.ErrorIs(t, err, ErrSessionNotFound)

	// The deleted session's port is free again.
	c, err := m.Create(ctx, CreateRequest{ID: "c"})
	require.NoError(t, err)
	require.Equal(t, 9000, c.Port)
}

func Test_MemoryService_expiry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemoryService("127.0.0.1", 9000, 1, 50*time.Millisecond)

	_, err := m.Create(ctx, CreateRequest{ID: "a"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := m.Lookup(ctx, "a")
		return err != nil
	}, 2*time.Second, 10*time.Millisecond)
}

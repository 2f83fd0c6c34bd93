package identity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type payload struct {
	Name    string
	Spawned bool
	Kills   int
}

func newTestRegistry(opts ...Option[payload]) *Registry[payload] {
	opts = append([]Option[payload]{
		WithReinitialize(func(p payload) payload {
			p.Spawned = false
			return p
		}),
	}, opts...)

	return NewRegistry(opts...)
}

func Test_SetupConnectingPlayer(t *testing.T) {
	t.Parallel()
	r := newTestRegistry()

	reconnecting, err := r.SetupConnectingPlayer(1, "alice", payload{Name: "alice"})
	require.NoError(t, err)
	require.False(t, reconnecting)

	id, ok := r.Identity("alice")
	require.True(t, ok)
	require.Equal(t, Identity[payload]{
		PersistentID: "alice",
		ClientID:     1,
		Connected:    true,
		Payload:      payload{Name: "alice"},
	}, id)

	pid, ok := r.PersistentID(1)
	require.True(t, ok)
	require.Equal(t, "alice", pid)
	require.Equal(t, 1, r.ConnectedCount())
	require.Equal(t, []ClientID{1}, r.ClientIDs())

	_, err = r.SetupConnectingPlayer(2, "", payload{})
	require.ErrorIs(t, err, ErrEmptyPersistentID)

	_, err = r.SetupConnectingPlayer(1, "bob", payload{})
	require.ErrorIs(t, err, ErrClientIDInUse)
}

func Test_DuplicateLoginLeavesRegistryUnchanged(t *testing.T) {
	t.Parallel()
	r := newTestRegistry()

	_, err := r.SetupConnectingPlayer(1, "alice", payload{Name: "alice", Kills: 3})
	require.NoError(t, err)

	before, _ := r.Identity("alice")

	_, err = r.SetupConnectingPlayer(2, "alice", payload{Name: "impostor"})
	require.ErrorIs(t, err, ErrDuplicateLogin)

	after, ok := r.Identity("alice")
	require.True(t, ok)
	require.Equal(t, before, after)

	_, ok = r.PersistentID(2)
	require.False(t, ok)
	require.Equal(t, 1, r.ConnectedCount())
}

func Test_DisconnectBeforeSessionStartPurges(t *testing.T) {
	t.Parallel()
	r := newTestRegistry()

	_, err := r.SetupConnectingPlayer(1, "alice", payload{Name: "alice"})
	require.NoError(t, err)

	r.DisconnectClient(1)
	require.Equal(t, 0, r.Len())
	_, ok := r.PersistentID(1)
	require.False(t, ok)

	reconnecting, err := r.SetupConnectingPlayer(5, "alice", payload{Name: "fresh"})
	require.NoError(t, err)
	require.False(t, reconnecting)

	p, ok := r.Payload(5)
	require.True(t, ok)
	require.Equal(t, "fresh", p.Name)

	// Unknown ids are ignored.
	r.DisconnectClient(99)
	require.Equal(t, 1, r.Len())
}

func Test_ReconnectKeepsPayload(t *testing.T) {
	t.Parallel()
	r := newTestRegistry()
	r.OnSessionStarted()

	_, err := r.SetupConnectingPlayer(1, "alice", payload{Name: "alice"})
	require.NoError(t, err)
	require.True(t, r.SetPayload(1, payload{Name: "alice", Spawned: true, Kills: 7}))

	r.DisconnectClient(1)

	id, ok := r.Identity("alice")
	require.True(t, ok)
	require.False(t, id.Connected)
	require.False(t, r.IsConnected("alice"))
	require.Equal(t, 0, r.ConnectedCount())

	reconnecting, err := r.SetupConnectingPlayer(9, "alice", payload{Name: "new"})
	require.NoError(t, err)
	require.True(t, reconnecting)

	id, ok = r.Identity("alice")
	require.True(t, ok)
	require.Equal(t, Identity[payload]{
		PersistentID: "alice",
		ClientID:     9,
		Connected:    true,
		Payload:      payload{Name: "alice", Spawned: true, Kills: 7},
	}, id)

	_, ok = r.PersistentID(1)
	require.False(t, ok)
}

func Test_OnSessionEnded(t *testing.T) {
	t.Parallel()
	r := newTestRegistry()
	r.OnSessionStarted()

	_, err := r.SetupConnectingPlayer(1, "alice", payload{Name: "alice", Spawned: true, Kills: 2})
	require.NoError(t, err)
	_, err = r.SetupConnectingPlayer(2, "bob", payload{Name: "bob", Spawned: true})
	require.NoError(t, err)

	r.DisconnectClient(2)
	require.Equal(t, 2, r.Len())

	r.OnSessionEnded()

	require.Equal(t, 1, r.Len())
	_, ok := r.Identity("bob")
	require.False(t, ok)

	p, ok := r.PayloadByPersistentID("alice")
	require.True(t, ok)
	require.Equal(t, payload{Name: "alice", Kills: 2}, p)
	require.True(t, r.IsConnected("alice"))

	// The next round has not started, so a disconnect purges again.
	r.DisconnectClient(1)
	require.Equal(t, 0, r.Len())
}

func Test_OnHostingLifetimeEnded(t *testing.T) {
	t.Parallel()
	r := newTestRegistry()
	r.OnSessionStarted()

	_, err := r.SetupConnectingPlayer(1, "alice", payload{})
	require.NoError(t, err)
	_, err = r.SetupConnectingPlayer(2, "bob", payload{})
	require.NoError(t, err)
	r.DisconnectClient(2)

	r.OnHostingLifetimeEnded()
	require.Equal(t, 0, r.Len())
	require.Equal(t, 0, r.ConnectedCount())

	_, err = r.SetupConnectingPlayer(1, "carol", payload{})
	require.NoError(t, err)
	r.DisconnectClient(1)
	require.Equal(t, 0, r.Len())
}

func Test_PayloadByPersistentID(t *testing.T) {
	t.Parallel()
	r := newTestRegistry()

	require.False(t, r.SetPayloadByPersistentID("alice", payload{}))
	_, ok := r.PayloadByPersistentID("alice")
	require.False(t, ok)
	_, ok = r.Payload(1)
	require.False(t, ok)
	require.False(t, r.SetPayload(1, payload{}))

	_, err := r.SetupConnectingPlayer(1, "alice", payload{})
	require.NoError(t, err)
	require.True(t, r.SetPayloadByPersistentID("alice", payload{Kills: 4}))

	p, ok := r.Payload(1)
	require.True(t, ok)
	require.Equal(t, 4, p.Kills)
}

func Test_Hooks(t *testing.T) {
	t.Parallel()
	type call struct {
		id           string
		connected    bool
		reconnecting bool
	}
	var calls []call

	r := newTestRegistry(WithHooks(Hooks[payload]{
		OnConnected: func(id Identity[payload], reconnecting bool) {
			calls = append(calls, call{id.PersistentID, id.Connected, reconnecting})
		},
		OnDisconnected: func(id Identity[payload]) {
			calls = append(calls, call{id.PersistentID, id.Connected, false})
		},
	}))
	r.OnSessionStarted()

	_, err := r.SetupConnectingPlayer(1, "alice", payload{})
	require.NoError(t, err)
	r.DisconnectClient(1)
	_, err = r.SetupConnectingPlayer(2, "alice", payload{})
	require.NoError(t, err)
	_, err = r.SetupConnectingPlayer(3, "alice", payload{})
	require.ErrorIs(t, err, ErrDuplicateLogin)

	require.Equal(t, []call{
		{"alice", true, false},
		{"alice", false, false},
		{"alice", true, true},
	}, calls)
}

package sqp

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/LilDemoness/mech-shooter-netcode/pkg/proto"
)

func challenge(t *testing.T, r *Responder, addr string) []byte {
	t.Helper()

	resp, err := r.Respond(addr, []byte{0, 0, 0, 0, 0})
	require.NoError(t, err)
	require.Len(t, resp, 5)
	require.Equal(t, byte(0), resp[0])

	return resp[1:5]
}

func query(c []byte, version, chunks byte) []byte {
	return bytes.Join([][]byte{{1}, c, {0, version}, {chunks}}, nil)
}

func Test_Respond(t *testing.T) {
	t.Parallel()
	r := NewResponder(func() proto.State {
		return proto.State{CurrentPlayers: 1, MaxPlayers: 2}
	})

	addr := "client-addr:65534"
	c := challenge(t, r, addr)

	resp, err := r.Respond(addr, query(c, 1, chunkServerInfo))
	require.NoError(t, err)
	require.Equal(
		t,
		bytes.Join(
			[][]byte{
				{1},
				c,
				{0, 1}, // version
				{0},
				{0},
				{0x0, 0xe, 0x0, 0x0, 0x0, 0xa, 0x0, 0x1, 0x0, 0x2, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0},
			},
			nil,
		),
		resp,
	)
}

func Test_Respond_noChunks(t *testing.T) {
	t.Parallel()
	r := NewResponder(func() proto.State { return proto.State{} })

	c := challenge(t, r, "a:1")

	resp, err := r.Respond("a:1", query(c, 1, 0))
	require.NoError(t, err)
	require.Equal(t, bytes.Join([][]byte{{1}, c, {0, 1, 0, 0, 0, 0}}, nil), resp)
}

func Test_Respond_liveState(t *testing.T) {
	t.Parallel()
	players := int32(0)
	r := NewResponder(func() proto.State {
		return proto.State{CurrentPlayers: players, MaxPlayers: 8, ServerName: "arena"}
	})

	players = 3
	c := challenge(t, r, "a:1")
	resp, err := r.Respond("a:1", query(c, 1, chunkServerInfo))
	require.NoError(t, err)

	// Header, challenge, version, packet numbers, payload and chunk lengths.
	info := resp[1+4+2+2+2+4:]
	require.Equal(t, []byte{0, 3, 0, 8, 5}, info[:5])
	require.Equal(t, "arena", string(info[5:10]))
}

func Test_Respond_errors(t *testing.T) {
	t.Parallel()
	r := NewResponder(func() proto.State { return proto.State{} })

	_, err := r.Respond("a:1", []byte{9})
	require.ErrorIs(t, err, ErrUnsupportedQuery)

	_, err = r.Respond("a:1", nil)
	require.ErrorIs(t, err, ErrUnsupportedQuery)

	_, err = r.Respond("a:1", query([]byte{0, 0, 0, 1}, 1, 1))
	require.ErrorIs(t, err, ErrNoChallenge)

	_, err = r.Respond("a:1", []byte{1, 0, 0})
	require.ErrorIs(t, err, ErrInvalidPacketLength)

	c := challenge(t, r, "a:1")
	wrong := []byte{c[0] ^ 0xff, c[1], c[2], c[3]}
	_, err = r.Respond("a:1", query(wrong, 1, 1))
	require.ErrorIs(t, err, ErrChallengeMismatch)

	// The challenge was used up by the failed attempt.
	_, err = r.Respond("a:1", query(c, 1, 1))
	require.ErrorIs(t, err, ErrNoChallenge)

	c = challenge(t, r, "a:1")
	_, err = r.Respond("a:1", query(c, 2, 1))

	var verr UnsupportedVersionError
	require.True(t, errors.As(err, &verr))
	require.Equal(t, UnsupportedVersionError(2), verr)
}

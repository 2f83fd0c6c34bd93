package query

import (
	"net"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/LilDemoness/mech-shooter-netcode/pkg/proto"
	"github.com/LilDemoness/mech-shooter-netcode/pkg/proto/a2s"
	"github.com/LilDemoness/mech-shooter-netcode/pkg/proto/sqp"
)

func Test_NewResponder(t *testing.T) {
	t.Parallel()
	state := func() proto.State { return proto.State{} }

	r, err := NewResponder("", state)
	require.NoError(t, err)
	require.IsType(t, &sqp.Responder{}, r)

	r, err = NewResponder(ProtocolA2S, state)
	require.NoError(t, err)
	require.IsType(t, &a2s.Responder{}, r)

	_, err = NewResponder("tf2e", state)
	require.ErrorIs(t, err, ErrUnknownProtocol)
}

func Test_Server_lifecycle(t *testing.T) {
	t.Parallel()
	r, err := NewResponder(ProtocolSQP, func() proto.State {
		return proto.State{CurrentPlayers: 2, MaxPlayers: 4}
	})
	require.NoError(t, err)

	s, err := Listen(logrus.NewEntry(logrus.New()), "127.0.0.1:0", r, 0)
	require.NoError(t, err)

	client, err := net.DialUDP("udp4", nil, s.Addr().(*net.UDPAddr))
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.SetDeadline(time.Now().Add(5*time.Second)))

	_, err = client.Write([]byte{0, 0, 0, 0, 0})
	require.NoError(t, err)

	buf := make([]byte, 64)
	n, err := client.Read(buf)
	require.NoError(t, err)
	require.Equal(t, 5, n)

	q := append([]byte{1}, buf[1:5]...)
	q = append(q, 0, 1, 1)
	_, err = client.Write(q)
	require.NoError(t, err)

	n, err = client.Read(buf)
	require.NoError(t, err)

	// Current and max players open the server info chunk.
	require.Equal(t, []byte{0, 2, 0, 4}, buf[15:19])
	require.Equal(t, 25, n)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}

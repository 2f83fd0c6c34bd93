package event

import (
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func Test_ReasonCodec(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		reason string
		want   ConnectionStatus
		wantOK bool
	}{
		{
			name:   "encoded status",
			reason: EncodeReason(ServerFull),
			want:   ServerFull,
			wantOK: true,
		},
		{
			name:   "empty reason",
			reason: "",
		},
		{
			name:   "host shutdown phrase",
			reason: HostShutdownReason,
		},
		{
			name:   "garbage",
			reason: "the cable got unplugged",
		},
		{
			name:   "unknown status name",
			reason: `{"status":"Exploded"}`,
		},
		{
			name:   "case insensitive",
			reason: `{"status":"hostendedsession"}`,
			want:   HostEndedSession,
			wantOK: true,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := DecodeReason(tt.reason)
			require.Equal(t, tt.wantOK, ok)
			require.Equal(t, tt.want, got)
		})
	}
}

func Test_ConnectionStatusJSON(t *testing.T) {
	t.Parallel()
	b, err := json.Marshal(IncompatibleBuildType)
	require.NoError(t, err)
	require.Equal(t, `"IncompatibleBuildType"`, string(b))

	var s ConnectionStatus
	require.NoError(t, json.Unmarshal(b, &s))
	require.Equal(t, IncompatibleBuildType, s)

	require.Error(t, json.Unmarshal([]byte(`"nope"`), &s))
	require.Equal(t, "ConnectionStatus(42)", ConnectionStatus(42).String())
}

func Test_IsFatal(t *testing.T) {
	t.Parallel()
	for _, s := range []ConnectionStatus{UserRequestedDisconnect, HostEndedSession, ServerFull, IncompatibleBuildType, DuplicateLogin} {
		require.True(t, s.IsFatal(), s.String())
	}
	for _, s := range []ConnectionStatus{Success, GenericDisconnect, Reconnecting, StartHostFailed, StartClientFailed} {
		require.False(t, s.IsFatal(), s.String())
	}
}

func Test_Publisher(t *testing.T) {
	t.Parallel()
	p := NewPublisher[ConnectionStatus](logrus.NewEntry(logrus.New()))

	a := p.Subscribe(4)
	b := p.Subscribe(1)

	p.Publish(Reconnecting)
	p.Publish(GenericDisconnect)

	require.Equal(t, Reconnecting, <-a.C())
	require.Equal(t, GenericDisconnect, <-a.C())

	// b only had room for the first value.
	require.Equal(t, Reconnecting, <-b.C())
	select {
	case v := <-b.C():
		t.Fatalf("unexpected value %v", v)
	default:
	}

	a.Close()
	a.Close()
	_, ok := <-a.C()
	require.False(t, ok)

	p.Publish(Success)
	require.Equal(t, Success, <-b.C())

	p.Close()
	_, ok = <-b.C()
	require.False(t, ok)
}

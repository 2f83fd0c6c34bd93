package config

import (
	"os"
	"path"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func Test_NewConfigFromFile(t *testing.T) {
	type fields struct {
		configContent string
		env           map[string]string
	}
	tests := []struct {
		name    string
		fields  fields
		want    func() *Config
		wantErr bool
	}{
		{
			name: "loads config",
			fields: fields{
				configContent: `{
					"ConnectionMethod": "session",
					"SessionBackendURL": "http://localhost:8085",
					"SessionID": "abc",
					"Port": 7777,
					"MaxPlayers": 4,
					"MaxReconnectAttempts": 3,
					"ReconnectGracePeriod": "250ms",
					"ReconnectInterval": "2s",
					"DebugBuild": true,
					"QueryPort": 9010,
					"QueryProtocol": "a2s"
				}`,
			},
			want: func() *Config {
				c := Default()
				c.ConnectionMethod = MethodSession
				c.SessionBackendURL = "http://localhost:8085"
				c.SessionID = "abc"
				c.Port = 7777
				c.MaxPlayers = 4
				c.MaxReconnectAttempts = 3
				c.ReconnectGracePeriod = Duration(250 * time.Millisecond)
				c.ReconnectInterval = Duration(2 * time.Second)
				c.DebugBuild = true
				c.QueryPort = 9010
				c.QueryProtocol = QueryA2S
				return &c
			},
		},
		{
			name: "applies defaults",
			fields: fields{
				configContent: `{}`,
			},
			want: func() *Config {
				c := Default()
				return &c
			},
		},
		{
			name: "environment overrides file",
			fields: fields{
				configContent: `{"MaxPlayers": 4}`,
				env: map[string]string{
					"NETCODE_MAX_PLAYERS":            "6",
					"NETCODE_RECONNECT_INTERVAL":     "3s",
					"NETCODE_PLAYER_NAME":            "Ace",
					"NETCODE_MAX_RECONNECT_ATTEMPTS": "5",
				},
			},
			want: func() *Config {
				c := Default()
				c.MaxPlayers = 6
				c.ReconnectInterval = Duration(3 * time.Second)
				c.PlayerName = "Ace"
				c.MaxReconnectAttempts = 5
				return &c
			},
		},
		{
			name: "malformed json",
			fields: fields{
				configContent: `bang!`,
			},
			wantErr: true,
		},
		{
			name: "invalid values",
			fields: fields{
				configContent: `{"ConnectionMethod": "carrier-pigeon", "MaxPlayers": 0}`,
			},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.fields.env {
				t.Setenv(k, v)
			}

			f := path.Join(t.TempDir(), "config.json")
			require.NoError(t, os.WriteFile(f, []byte(tt.fields.configContent), 0o600))

			got, err := NewConfigFromFile(f)
			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tt.want(), got)
		})
	}
}

func Test_ValidateReportsEveryError(t *testing.T) {
	t.Parallel()
	c := Default()
	c.ConnectionMethod = MethodSession
	c.Port = 0
	c.MaxPlayers = 0
	c.MaxConnectPayload = 0
	c.MaxReconnectAttempts = -1
	c.ReconnectBackoffFactor = 0.5
	c.QueryPort = 70000
	c.QueryProtocol = "tf2e"

	err := c.Validate()
	require.Error(t, err)
	for _, want := range []error{
		ErrSessionURLRequired,
		ErrInvalidPort,
		ErrInvalidMaxPlayers,
		ErrInvalidPayloadCap,
		ErrInvalidAttempts,
		ErrInvalidBackoff,
		ErrInvalidQueryPort,
		ErrInvalidQueryProto,
	} {
		require.ErrorIs(t, err, want)
	}

	require.NoError(t, Default().Validate())
}

func Test_Watcher(t *testing.T) {
	l := logrus.NewEntry(logrus.New())
	p := path.Join(t.TempDir(), "config.json")

	require.NoError(t, os.WriteFile(p, []byte(`{}`), 0o600))

	w, err := NewWatcher(l, p)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(p, []byte(`{"MaxPlayers": 12}`), 0o600))

	timeout := time.After(5 * time.Second)
	for {
		select {
		case c := <-w.Changes():
			require.NotNil(t, c)
			if c.MaxPlayers != 12 {
				continue
			}
		case <-timeout:
			t.Fatal("timed out waiting for config reload")
		}

		break
	}

	require.NoError(t, w.Close())
	for range w.Changes() {
		// Drain anything reloaded before the close.
	}
}

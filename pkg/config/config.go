package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/hashicorp/go-multierror"
)

const (
	// MethodDirect connects to a literal IP address and port.
	MethodDirect = "direct"

	// MethodSession connects through the managed session backend.
	MethodSession = "session"

	QuerySQP = "sqp"
	QueryA2S = "a2s"
)

var (
	ErrInvalidMethod      = errors.New("field ConnectionMethod must be direct or session")
	ErrInvalidPort        = errors.New("field Port must be between 1 and 65535")
	ErrInvalidMaxPlayers  = errors.New("field MaxPlayers must be positive")
	ErrInvalidPayloadCap  = errors.New("field MaxConnectPayload must be positive")
	ErrInvalidAttempts    = errors.New("field MaxReconnectAttempts must not be negative")
	ErrInvalidBackoff     = errors.New("field ReconnectBackoffFactor must be at least 1")
	ErrSessionURLRequired = errors.New("field SessionBackendURL must be provided for the session method")
	ErrInvalidQueryPort   = errors.New("field QueryPort must not be above 65535")
	ErrInvalidQueryProto  = errors.New("field QueryProtocol must be sqp or a2s")
)

type (
	// Duration is a time.Duration read from strings such as "1.5s".
	Duration time.Duration

	// Config represents the connection configuration of a game process.
	Config struct {
		// ConnectionMethod selects how hosts and clients find each other.
		ConnectionMethod string `env:"NETCODE_CONNECTION_METHOD"`

		// IP is the address a direct client dials, or a direct host binds to.
		IP string `env:"NETCODE_IP"`

		// Port is the port used with IP.
		Port uint `env:"NETCODE_PORT"`

		// SessionBackendURL is the base URL of the managed session backend.
		SessionBackendURL string `env:"NETCODE_SESSION_BACKEND_URL"`

		// SessionName names a session created by a managed host.
		SessionName string `env:"NETCODE_SESSION_NAME"`

		// SessionID is the managed session a client joins.
		SessionID string `env:"NETCODE_SESSION_ID"`

		// SDKDaemonURL is where the hosting daemon publishes allocation events.
		SDKDaemonURL string `env:"NETCODE_SDK_DAEMON_URL"`

		// ServerID identifies this process to the hosting daemon.
		ServerID int64 `env:"NETCODE_SERVER_ID"`

		// PlayerID is the persistent id of the local player.
		PlayerID string `env:"NETCODE_PLAYER_ID"`

		// PlayerName is the display name of the local player.
		PlayerName string `env:"NETCODE_PLAYER_NAME"`

		// DebugBuild marks this process as a debug build. Debug and release
		// builds cannot play together.
		DebugBuild bool `env:"NETCODE_DEBUG_BUILD"`

		// MaxPlayers is the number of live players a host admits, itself included.
		MaxPlayers int `env:"NETCODE_MAX_PLAYERS"`

		// MaxConnectPayload is the largest connection payload a host will read.
		MaxConnectPayload int `env:"NETCODE_MAX_CONNECT_PAYLOAD"`

		// MaxReconnectAttempts bounds the attempts a client makes after losing
		// its connection.
		MaxReconnectAttempts int `env:"NETCODE_MAX_RECONNECT_ATTEMPTS"`

		// ReconnectGracePeriod is waited before the first attempt so the
		// backend can finish cleaning up the dropped connection.
		ReconnectGracePeriod Duration `env:"NETCODE_RECONNECT_GRACE_PERIOD"`

		// ReconnectInterval is waited before every later attempt.
		ReconnectInterval Duration `env:"NETCODE_RECONNECT_INTERVAL"`

		// ReconnectBackoffFactor grows ReconnectInterval between attempts. The
		// default of 1 keeps it fixed.
		ReconnectBackoffFactor float64 `env:"NETCODE_RECONNECT_BACKOFF_FACTOR"`

		// ReconnectMaxInterval caps the grown interval.
		ReconnectMaxInterval Duration `env:"NETCODE_RECONNECT_MAX_INTERVAL"`

		// ConnectTimeout bounds dialing and the connection handshake.
		ConnectTimeout Duration `env:"NETCODE_CONNECT_TIMEOUT"`

		// QueryPort is the UDP port a host answers server queries on. Zero
		// turns the query port off.
		QueryPort uint `env:"NETCODE_QUERY_PORT"`

		// QueryProtocol is the protocol spoken on QueryPort, sqp or a2s.
		QueryProtocol string `env:"NETCODE_QUERY_PROTOCOL"`
	}
)

// Default returns the configuration used for any field a file leaves unset.
func Default() Config {
	return Config{
		ConnectionMethod:       MethodDirect,
		IP:                     "127.0.0.1",
		Port:                   9998,
		SessionName:            "Mech Arena",
		SDKDaemonURL:           "localhost:8086",
		PlayerName:             "Pilot",
		MaxPlayers:             8,
		MaxConnectPayload:      1024,
		MaxReconnectAttempts:   2,
		ReconnectGracePeriod:   Duration(time.Second),
		ReconnectInterval:      Duration(5 * time.Second),
		ReconnectBackoffFactor: 1,
		ReconnectMaxInterval:   Duration(30 * time.Second),
		ConnectTimeout:         Duration(10 * time.Second),
		QueryProtocol:          QuerySQP,
	}
}

// NewConfigFromFile loads configuration from the specified file, applies
// environment overrides and validates its contents.
func NewConfigFromFile(configFile string) (*Config, error) {
	cfg := Default()

	f, err := os.Open(configFile)
	if err != nil {
		return nil, fmt.Errorf("error opening file: %w", err)
	}

	defer f.Close()

	if err = json.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("error decoding json: %w", err)
	}

	if err = env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing environment: %w", err)
	}

	if err = cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var result *multierror.Error

	switch c.ConnectionMethod {
	case MethodDirect:
	case MethodSession:
		if c.SessionBackendURL == "" {
			result = multierror.Append(result, ErrSessionURLRequired)
		}
	default:
		result = multierror.Append(result, ErrInvalidMethod)
	}

	if c.Port == 0 || c.Port > 65535 {
		result = multierror.Append(result, ErrInvalidPort)
	}

	if c.MaxPlayers < 1 {
		result = multierror.Append(result, ErrInvalidMaxPlayers)
	}

	if c.MaxConnectPayload < 1 {
		result = multierror.Append(result, ErrInvalidPayloadCap)
	}

	if c.MaxReconnectAttempts < 0 {
		result = multierror.Append(result, ErrInvalidAttempts)
	}

	if c.ReconnectBackoffFactor < 1 {
		result = multierror.Append(result, ErrInvalidBackoff)
	}

	if c.QueryPort > 65535 {
		result = multierror.Append(result, ErrInvalidQueryPort)
	}

	if c.QueryProtocol != QuerySQP && c.QueryProtocol != QueryA2S {
		result = multierror.Append(result, ErrInvalidQueryProto)
	}

	return result.ErrorOrNil()
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}

	*d = Duration(v)

	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

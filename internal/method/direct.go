package method

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/LilDemoness/mech-shooter-netcode/internal/transport"
)

var (
	ErrInvalidIP   = errors.New("invalid ip address")
	ErrInvalidPort = errors.New("port must be between 1 and 65535")
)

// Direct connects straight to a known IP address and port.
type Direct struct {
	ip   string
	port int
}

// NewDirect returns a direct method for ip and port.
func NewDirect(ip string, port int) (*Direct, error) {
	if net.ParseIP(ip) == nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidIP, ip)
	}

	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPort, port)
	}

	return &Direct{ip: ip, port: port}, nil
}

// Name implements Method.
func (d *Direct) Name() string {
	return "direct"
}

func (d *Direct) endpoint() transport.Endpoint {
	return transport.Endpoint{Address: net.JoinHostPort(d.ip, strconv.Itoa(d.port))}
}

// PrepareHost implements Method.
func (d *Direct) PrepareHost(context.Context) (transport.Endpoint, error) {
	return d.endpoint(), nil
}

// PrepareClient implements Method.
func (d *Direct) PrepareClient(context.Context) (transport.Endpoint, error) {
	return d.endpoint(), nil
}

// SetupReconnect implements Method. There is nothing to look up, so every
// attempt goes ahead.
func (d *Direct) SetupReconnect(context.Context) (transport.Endpoint, ReconnectResult) {
	return d.endpoint(), ReconnectResult{Success: true, ShouldRetry: true}
}

// Teardown implements Method.
func (d *Direct) Teardown(context.Context) error {
	return nil
}

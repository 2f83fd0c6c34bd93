// Package method decides where a host listens and where a client connects,
// and how a client finds its way back after losing the connection.
package method

import (
	"context"

	"github.com/LilDemoness/mech-shooter-netcode/internal/transport"
)

type (
	// ReconnectResult is the outcome of preparing one reconnect attempt.
	ReconnectResult struct {
		// Success means the attempt can go ahead.
		Success bool

		// ShouldRetry is false when no later attempt can succeed either.
		ShouldRetry bool

		// Err is what went wrong, if anything.
		Err error
	}

	// Method is a way of hosting or joining a game.
	Method interface {
		Name() string

		// PrepareHost returns the endpoint a host should listen on.
		PrepareHost(ctx context.Context) (transport.Endpoint, error)

		// PrepareClient returns the endpoint a client should connect to.
		PrepareClient(ctx context.Context) (transport.Endpoint, error)

		// SetupReconnect prepares one reconnect attempt.
		SetupReconnect(ctx context.Context) (transport.Endpoint, ReconnectResult)

		// Teardown releases anything PrepareHost or PrepareClient acquired.
		Teardown(ctx context.Context) error
	}
)

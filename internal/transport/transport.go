// Package transport is the boundary between the connection lifecycle and the
// network. A Transport starts a host or a client and reports what happens to
// its connections through a Handler.
package transport

import (
	"context"
	"errors"

	"github.com/LilDemoness/mech-shooter-netcode/pkg/identity"
	"github.com/LilDemoness/mech-shooter-netcode/pkg/player"
)

const (
	// HostID is the client id a host uses for itself.
	HostID identity.ClientID = 0

	// Unassigned is the client id of a client the host has not accepted yet.
	Unassigned = ^identity.ClientID(0)
)

var (
	ErrAlreadyRunning = errors.New("transport already running")
	ErrNotHosting     = errors.New("transport is not hosting")
	ErrUnknownPeer    = errors.New("unknown peer")
)

type (
	// Endpoint is the address a host listens on or a client dials.
	Endpoint struct {
		Address string
	}

	// ApprovalRequest is an inbound connection asking to be let in.
	ApprovalRequest struct {
		ClientID identity.ClientID
		Payload  []byte
	}

	// ApprovalResponse is the host's answer to an ApprovalRequest.
	ApprovalResponse struct {
		Approved bool

		// Reason is the disconnect reason sent to a rejected client.
		Reason string

		// CreateEntity asks for a default entity to be spawned for the peer.
		CreateEntity bool

		SpawnPosition player.Vec3
		SpawnRotation player.Vec3
	}

	// Handler receives transport callbacks. Callbacks are never made from
	// inside StartHost or StartClient.
	Handler interface {
		// OnPeerConnected reports an accepted connection. On a client the id
		// is the client's own.
		OnPeerConnected(id identity.ClientID)

		// OnPeerDisconnected reports a connection going away, with the reason
		// the remote side gave, if any.
		OnPeerDisconnected(id identity.ClientID, reason string)

		OnServerStarted()
		OnServerStopped()

		// OnTransportFailure reports that the transport stopped working.
		OnTransportFailure()

		// OnApprovalRequested decides whether an inbound connection is let in.
		OnApprovalRequested(req ApprovalRequest) ApprovalResponse
	}

	// Transport starts, stops and manages network connections.
	Transport interface {
		SetHandler(h Handler)

		// StartHost starts listening on ep.
		StartHost(ctx context.Context, ep Endpoint) error

		// StartClient connects to ep, sending payload with the connection request.
		StartClient(ctx context.Context, ep Endpoint, payload []byte) error

		// DisconnectPeer drops a peer, handing it reason. The disconnect is
		// not reported back through the Handler.
		DisconnectPeer(id identity.ClientID, reason string) error

		// Shutdown tears everything down and returns once teardown has
		// finished. Nothing is reported through the Handler for connections
		// closed by Shutdown.
		Shutdown(ctx context.Context) error

		// LocalID returns this side's client id.
		LocalID() identity.ClientID

		// Running reports whether a host or client is active.
		Running() bool
	}
)

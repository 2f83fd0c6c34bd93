package connection

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/LilDemoness/mech-shooter-netcode/internal/method"
	"github.com/LilDemoness/mech-shooter-netcode/internal/transport"
	"github.com/LilDemoness/mech-shooter-netcode/pkg/admission"
	"github.com/LilDemoness/mech-shooter-netcode/pkg/event"
	"github.com/LilDemoness/mech-shooter-netcode/pkg/identity"
	"github.com/LilDemoness/mech-shooter-netcode/pkg/player"
)

// StateID names a connection lifecycle state.
type StateID int32

const (
	Offline StateID = iota
	ClientConnecting
	ClientConnected
	ClientReconnecting
	HostStarting
	Hosting
)

// transitions lists the states each state may move to.
var transitions = map[StateID][]StateID{
	Offline:            {ClientConnecting, HostStarting},
	ClientConnecting:   {ClientConnected, Offline},
	ClientConnected:    {ClientReconnecting, Offline},
	ClientReconnecting: {ClientConnected, Offline},
	HostStarting:       {Hosting, Offline},
	Hosting:            {Offline},
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to StateID) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}

	return false
}

type (
	// controller is what a state may ask of the coordinator that owns it.
	controller interface {
		log() *logrus.Entry
		network() transport.Transport
		players() *identity.Registry[player.Data]
		admission() *admission.Controller
		settings() Settings

		publishStatus(s event.ConnectionStatus)
		publishProgress(p event.ReconnectProgress)
		publishPlayer(e event.PlayerEvent)

		// connectPayload is sent with every connection request.
		connectPayload() ([]byte, error)

		// startTask runs fn off the loop, replacing any task in flight. Its
		// result comes back through taskDone unless it was cancelled first.
		startTask(fn func(ctx context.Context) taskResult)
		cancelTask()

		// runContext lives as long as the coordinator's loop.
		runContext() context.Context

		shutdownTransport()

		// reportError delivers err on Errors once the current event,
		// including any transition it causes, has been handled.
		reportError(err error)
	}

	// state is one phase of the connection lifecycle. Event handlers return
	// the state to move to, or nil to stay put.
	state interface {
		id() StateID

		// boundMethod is the method the state is connecting with, if any.
		boundMethod() method.Method

		// enter may hand back a state to move on to straight away.
		enter() state
		exit()

		startClient(m method.Method) state
		startHost(m method.Method) state
		shutdown() state

		peerConnected(id identity.ClientID) state
		peerDisconnected(id identity.ClientID, reason string) state
		serverStarted() state
		serverStopped() state
		transportFailure() state
		approval(req transport.ApprovalRequest) transport.ApprovalResponse

		sessionStarted()
		sessionEnded()

		taskDone(res taskResult) state
	}

	// unhandled ignores every event. States embed it and override what
	// they care about.
	unhandled struct {
		c controller
	}

	// onlinePolicy is the shutdown and failure handling shared by every state
	// with a live or starting transport.
	onlinePolicy struct {
		c      controller
		method method.Method

		// failure is published when the transport fails.
		failure event.ConnectionStatus
	}
)

func (u unhandled) ignored(evt string) {
	u.c.log().WithField("event", evt).Debug("event ignored in this state")
}

func (u unhandled) boundMethod() method.Method { return nil }
func (u unhandled) enter() state               { return nil }
func (u unhandled) exit()                      {}

func (u unhandled) startClient(method.Method) state {
	u.c.log().Warn("start client requested while not offline")
	return nil
}

func (u unhandled) startHost(method.Method) state {
	u.c.log().Warn("start host requested while not offline")
	return nil
}

func (u unhandled) shutdown() state {
	u.ignored("shutdown")
	return nil
}

func (u unhandled) peerConnected(identity.ClientID) state {
	u.ignored("peer connected")
	return nil
}

func (u unhandled) peerDisconnected(identity.ClientID, string) state {
	u.ignored("peer disconnected")
	return nil
}

func (u unhandled) serverStarted() state {
	u.ignored("server started")
	return nil
}

func (u unhandled) serverStopped() state {
	u.ignored("server stopped")
	return nil
}

func (u unhandled) transportFailure() state {
	u.ignored("transport failure")
	return nil
}

func (u unhandled) approval(transport.ApprovalRequest) transport.ApprovalResponse {
	u.ignored("approval")
	return transport.ApprovalResponse{}
}

func (u unhandled) sessionStarted() { u.ignored("session started") }
func (u unhandled) sessionEnded()   { u.ignored("session ended") }

func (u unhandled) taskDone(taskResult) state {
	u.ignored("task done")
	return nil
}

// shutdown handles a user asking to leave.
func (p onlinePolicy) shutdown() state {
	p.c.publishStatus(event.UserRequestedDisconnect)
	return newOffline(p.c, p.method)
}

// transportFailure handles the transport giving up underneath us.
func (p onlinePolicy) transportFailure() state {
	p.c.log().Error("transport failure")
	p.c.publishStatus(p.failure)

	return newOffline(p.c, p.method)
}

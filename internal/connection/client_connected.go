package connection

import (
	"github.com/LilDemoness/mech-shooter-netcode/internal/method"
	"github.com/LilDemoness/mech-shooter-netcode/pkg/event"
	"github.com/LilDemoness/mech-shooter-netcode/pkg/identity"
)

// clientConnected is a client in a game.
type clientConnected struct {
	unhandled
	online onlinePolicy
	method method.Method
}

func newClientConnected(c controller, m method.Method) *clientConnected {
	return &clientConnected{
		unhandled: unhandled{c: c},
		online:    onlinePolicy{c: c, method: m, failure: event.StartClientFailed},
		method:    m,
	}
}

func (s *clientConnected) id() StateID                { return ClientConnected }
func (s *clientConnected) boundMethod() method.Method { return s.method }

// peerDisconnected tries to get back in unless the host said why we were
// dropped. A reason we cannot read is treated like none at all.
func (s *clientConnected) peerDisconnected(_ identity.ClientID, reason string) state {
	status, ok := event.DecodeReason(reason)
	if event.IsHostShutdown(reason) || !ok {
		s.c.log().WithField("reason", reason).Warn("connection lost, reconnecting")
		s.c.publishStatus(event.Reconnecting)

		return newClientReconnecting(s.c, s.method)
	}

	s.c.log().WithField("status", status).Info("disconnected by host")
	s.c.publishStatus(status)

	return newOffline(s.c, s.method)
}

func (s *clientConnected) shutdown() state         { return s.online.shutdown() }
func (s *clientConnected) transportFailure() state { return s.online.transportFailure() }

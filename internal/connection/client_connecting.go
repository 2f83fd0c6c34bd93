package connection

import (
	"context"
	"fmt"

	"github.com/LilDemoness/mech-shooter-netcode/internal/method"
	"github.com/LilDemoness/mech-shooter-netcode/pkg/event"
	"github.com/LilDemoness/mech-shooter-netcode/pkg/identity"
)

// clientConnecting prepares the method and starts the client transport, then
// waits for the host to let us in.
type clientConnecting struct {
	unhandled
	online onlinePolicy
	method method.Method
}

func newClientConnecting(c controller, m method.Method) *clientConnecting {
	return &clientConnecting{
		unhandled: unhandled{c: c},
		online:    onlinePolicy{c: c, method: m, failure: event.StartClientFailed},
		method:    m,
	}
}

func (s *clientConnecting) id() StateID                { return ClientConnecting }
func (s *clientConnecting) boundMethod() method.Method { return s.method }

func (s *clientConnecting) enter() state {
	m := s.method
	s.c.startTask(func(ctx context.Context) taskResult {
		ep, err := m.PrepareClient(ctx)
		return taskResult{endpoint: ep, err: err}
	})

	return nil
}

func (s *clientConnecting) exit() {
	s.c.cancelTask()
}

func (s *clientConnecting) taskDone(res taskResult) state {
	if res.err != nil {
		return s.fail(fmt.Errorf("prepare client: %w", res.err))
	}

	payload, err := s.c.connectPayload()
	if err != nil {
		return s.fail(fmt.Errorf("encode connection payload: %w", err))
	}

	if err = s.c.network().StartClient(s.c.runContext(), res.endpoint, payload); err != nil {
		return s.fail(fmt.Errorf("start client: %w", err))
	}

	s.c.log().WithField("address", res.endpoint.Address).Info("connecting")

	return nil
}

func (s *clientConnecting) fail(err error) state {
	s.c.log().WithError(err).Error("client failed to start")
	s.c.publishStatus(event.StartClientFailed)

	return newOffline(s.c, s.method)
}

func (s *clientConnecting) peerConnected(identity.ClientID) state {
	s.c.publishStatus(event.Success)
	return newClientConnected(s.c, s.method)
}

// peerDisconnected handles the host turning us away, or the attempt dying.
func (s *clientConnecting) peerDisconnected(_ identity.ClientID, reason string) state {
	if status, ok := event.DecodeReason(reason); ok {
		s.c.publishStatus(status)
	} else {
		s.c.publishStatus(event.StartClientFailed)
	}

	return newOffline(s.c, s.method)
}

func (s *clientConnecting) shutdown() state         { return s.online.shutdown() }
func (s *clientConnecting) transportFailure() state { return s.online.transportFailure() }

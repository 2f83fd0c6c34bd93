package connection

import (
	"context"
	"fmt"

	"github.com/LilDemoness/mech-shooter-netcode/internal/method"
	"github.com/LilDemoness/mech-shooter-netcode/internal/transport"
	"github.com/LilDemoness/mech-shooter-netcode/pkg/event"
	"github.com/LilDemoness/mech-shooter-netcode/pkg/player"
)

// hostStarting prepares the method, admits the host's own player and starts
// listening.
type hostStarting struct {
	unhandled
	online onlinePolicy
	method method.Method

	// started is set once the server is up and the registry belongs to
	// Hosting.
	started bool
}

func newHostStarting(c controller, m method.Method) *hostStarting {
	return &hostStarting{
		unhandled: unhandled{c: c},
		online:    onlinePolicy{c: c, method: m, failure: event.StartHostFailed},
		method:    m,
	}
}

func (s *hostStarting) id() StateID                { return HostStarting }
func (s *hostStarting) boundMethod() method.Method { return s.method }

func (s *hostStarting) enter() state {
	m := s.method
	s.c.startTask(func(ctx context.Context) taskResult {
		ep, err := m.PrepareHost(ctx)
		return taskResult{endpoint: ep, err: err}
	})

	return nil
}

func (s *hostStarting) exit() {
	s.c.cancelTask()

	if !s.started {
		s.c.players().OnHostingLifetimeEnded()
	}
}

func (s *hostStarting) taskDone(res taskResult) state {
	if res.err != nil {
		return s.fail(fmt.Errorf("prepare host: %w", res.err))
	}

	raw, err := s.c.connectPayload()
	if err != nil {
		return s.fail(err)
	}

	// The host goes through the same admission as everyone else, and is in
	// the registry before its transport is up.
	reg := s.c.players()

	p, d, err := s.c.admission().Check(raw, reg.ConnectedCount())
	if err != nil {
		return s.fail(fmt.Errorf("%w: %v", ErrHostRejected, err))
	}

	if !d.Approved {
		return s.fail(fmt.Errorf("%w: %s", ErrHostRejected, d.Reason))
	}

	reconnecting, err := reg.SetupConnectingPlayer(transport.HostID, p.PlayerID, player.New(p.PlayerName))
	if err != nil {
		return s.fail(fmt.Errorf("%w: %v", ErrHostRejected, err))
	}

	s.c.publishPlayer(event.PlayerEvent{
		PersistentID: p.PlayerID,
		ClientID:     uint64(transport.HostID),
		Connected:    true,
		Reconnecting: reconnecting,
	})

	if err = s.c.network().StartHost(s.c.runContext(), res.endpoint); err != nil {
		return s.fail(fmt.Errorf("start host: %w", err))
	}

	s.c.log().WithField("address", res.endpoint.Address).Info("host listening")

	return nil
}

// fail publishes StartHostFailed and hands err to Errors once Offline has
// been entered.
func (s *hostStarting) fail(err error) state {
	s.c.log().WithError(err).Error("host failed to start")
	s.c.publishStatus(event.StartHostFailed)
	s.c.reportError(err)

	return newOffline(s.c, s.method)
}

func (s *hostStarting) serverStarted() state {
	s.started = true
	s.c.publishStatus(event.Success)

	return newHosting(s.c, s.method)
}

func (s *hostStarting) serverStopped() state {
	return s.fail(ErrServerStopped)
}

func (s *hostStarting) transportFailure() state {
	return s.fail(ErrTransportFailure)
}

func (s *hostStarting) shutdown() state { return s.online.shutdown() }

package connection

import (
	"context"

	"github.com/LilDemoness/mech-shooter-netcode/internal/method"
)

// offline has no transport running. It is where everything starts, and
// where every failure ends up.
type offline struct {
	unhandled

	// previous is torn down on entry.
	previous method.Method
}

func newOffline(c controller, previous method.Method) *offline {
	return &offline{unhandled: unhandled{c: c}, previous: previous}
}

func (s *offline) id() StateID {
	return Offline
}

func (s *offline) enter() state {
	s.c.shutdownTransport()

	if s.previous == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.c.settings().ShutdownTimeout)
	defer cancel()

	if err := s.previous.Teardown(ctx); err != nil {
		s.c.log().
			WithError(err).
			WithField("method", s.previous.Name()).
			Warn("connection method teardown")
	}

	s.previous = nil

	return nil
}

func (s *offline) startClient(m method.Method) state {
	return newClientConnecting(s.c, m)
}

func (s *offline) startHost(m method.Method) state {
	return newHostStarting(s.c, m)
}

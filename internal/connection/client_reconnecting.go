package connection

import (
	"context"
	"fmt"
	"time"

	"github.com/jpillora/backoff"

	"github.com/LilDemoness/mech-shooter-netcode/internal/method"
	"github.com/LilDemoness/mech-shooter-netcode/pkg/event"
	"github.com/LilDemoness/mech-shooter-netcode/pkg/identity"
)

// clientReconnecting tries to get a dropped client back into its game, one
// attempt at a time, up to MaxReconnectAttempts.
type clientReconnecting struct {
	unhandled
	online onlinePolicy
	method method.Method

	// maxAttempts and grace are fixed for the whole reconnect; a config
	// reload applies to the next one.
	maxAttempts int
	grace       time.Duration

	attempts int
	interval *backoff.Backoff

	// awaiting is set once an attempt has started the client transport.
	// Disconnects before that belong to the connection we already lost.
	awaiting bool

	// lastStatus is the most recent reason a host gave for turning us away.
	lastStatus event.ConnectionStatus
}

func newClientReconnecting(c controller, m method.Method) *clientReconnecting {
	return &clientReconnecting{
		unhandled: unhandled{c: c},
		online:    onlinePolicy{c: c, method: m, failure: event.StartClientFailed},
		method:    m,
	}
}

func (s *clientReconnecting) id() StateID                { return ClientReconnecting }
func (s *clientReconnecting) boundMethod() method.Method { return s.method }

func (s *clientReconnecting) enter() state {
	cfg := s.c.settings()

	maxInterval := cfg.ReconnectMaxInterval
	if maxInterval < cfg.ReconnectInterval {
		maxInterval = cfg.ReconnectInterval
	}

	factor := cfg.ReconnectBackoffFactor
	if factor < 1 {
		factor = 1
	}

	s.maxAttempts = cfg.MaxReconnectAttempts
	s.grace = cfg.ReconnectGracePeriod
	s.attempts = 0
	s.lastStatus = event.Undefined
	s.interval = &backoff.Backoff{
		Min:    cfg.ReconnectInterval,
		Max:    maxInterval,
		Factor: factor,
	}

	return s.attempt()
}

func (s *clientReconnecting) exit() {
	s.c.cancelTask()
}

// attempt starts the next reconnect attempt, or gives up when none are left.
func (s *clientReconnecting) attempt() state {
	if s.attempts >= s.maxAttempts {
		return s.exhausted()
	}

	delay := s.grace
	if s.attempts > 0 {
		delay = 0
		if s.interval.Min > 0 {
			delay = s.interval.Duration()
		}
	}

	s.attempts++
	s.awaiting = false

	s.c.log().
		WithField("attempt", s.attempts).
		WithField("max_attempts", s.maxAttempts).
		WithField("delay", delay).
		Info("reconnect attempt")
	s.c.publishProgress(event.ReconnectProgress{Attempt: s.attempts, MaxAttempts: s.maxAttempts})

	// The previous attempt's transport is gone before the next one begins.
	s.c.shutdownTransport()

	m := s.method
	s.c.startTask(func(ctx context.Context) taskResult {
		if delay > 0 {
			t := time.NewTimer(delay)
			defer t.Stop()

			select {
			case <-ctx.Done():
				return taskResult{err: ctx.Err()}
			case <-t.C:
			}
		}

		ep, res := m.SetupReconnect(ctx)

		return taskResult{endpoint: ep, reconnect: res}
	})

	return nil
}

func (s *clientReconnecting) taskDone(res taskResult) state {
	if res.err != nil {
		s.c.log().WithError(res.err).Warn("reconnect attempt interrupted")
		return s.attempt()
	}

	r := res.reconnect
	if r.Err != nil {
		s.c.log().
			WithError(r.Err).
			WithField("should_retry", r.ShouldRetry).
			Warn("reconnect setup failed")
	}

	if !r.Success {
		if !r.ShouldRetry {
			s.attempts = s.maxAttempts
		}

		return s.attempt()
	}

	payload, err := s.c.connectPayload()
	if err == nil {
		err = s.c.network().StartClient(s.c.runContext(), res.endpoint, payload)
	}

	if err != nil {
		s.c.log().WithError(fmt.Errorf("start client: %w", err)).Warn("reconnect attempt failed")
		return s.attempt()
	}

	s.awaiting = true

	return nil
}

func (s *clientReconnecting) peerConnected(identity.ClientID) state {
	s.c.log().WithField("attempts", s.attempts).Info("reconnected")
	s.c.publishStatus(event.Success)

	return newClientConnected(s.c, s.method)
}

func (s *clientReconnecting) peerDisconnected(_ identity.ClientID, reason string) state {
	if !s.awaiting {
		s.c.log().WithField("reason", reason).Debug("ignoring disconnect from a previous connection")
		return nil
	}

	s.awaiting = false

	status, ok := event.DecodeReason(reason)
	if ok && endsReconnect(status) {
		s.c.publishStatus(status)
		return newOffline(s.c, s.method)
	}

	if ok {
		s.lastStatus = status
	}

	return s.attempt()
}

func (s *clientReconnecting) exhausted() state {
	status := s.lastStatus
	if status == event.Undefined {
		status = event.GenericDisconnect
	}

	s.c.log().
		WithField("attempts", s.attempts).
		WithField("status", status).
		Warn("giving up reconnecting")
	s.c.publishStatus(status)

	return newOffline(s.c, s.method)
}

func (s *clientReconnecting) shutdown() state         { return s.online.shutdown() }
func (s *clientReconnecting) transportFailure() state { return s.online.transportFailure() }

// endsReconnect reports whether a host's reason for turning us away rules
// out any further attempt. A duplicate login is retried, as the host may not
// have noticed our old connection dropping yet.
func endsReconnect(s event.ConnectionStatus) bool {
	return s.IsFatal() && s != event.DuplicateLogin
}

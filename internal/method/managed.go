package method

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/LilDemoness/mech-shooter-netcode/internal/session"
	"github.com/LilDemoness/mech-shooter-netcode/internal/transport"
)

var ErrSessionIDRequired = errors.New("session id must be provided to join a session")

type (
	// ManagedOptions configures a Managed method.
	ManagedOptions struct {
		// SessionName names a session the host creates.
		SessionName string

		// SessionID is the session a client joins. A host given a session id
		// adopts that session instead of creating a new one.
		SessionID string

		// MaxPlayers is registered with a created session.
		MaxPlayers int

		// BindIP is the local address a host listens on.
		BindIP string
	}

	// Managed finds hosts through a session backend.
	Managed struct {
		svc    session.Service
		opts   ManagedOptions
		logger *logrus.Entry

		mu      sync.Mutex
		created string
	}
)

// NewManaged returns a managed method using svc.
func NewManaged(svc session.Service, opts ManagedOptions, logger *logrus.Entry) *Managed {
	if opts.BindIP == "" {
		opts.BindIP = "0.0.0.0"
	}

	return &Managed{
		svc:    svc,
		opts:   opts,
		logger: logger,
	}
}

// Name implements Method.
func (m *Managed) Name() string {
	return "session"
}

// SessionID returns the session this method joins, or the one it hosts once
// PrepareHost has run.
func (m *Managed) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.created != "" {
		return m.created
	}

	return m.opts.SessionID
}

// PrepareHost implements Method.
func (m *Managed) PrepareHost(ctx context.Context) (transport.Endpoint, error) {
	var (
		sess *session.Session
		err  error
	)

	if m.opts.SessionID != "" {
		sess, err = m.svc.Lookup(ctx, m.opts.SessionID)
		if err != nil && !errors.Is(err, session.ErrSessionNotFound) {
			return transport.Endpoint{}, fmt.Errorf("lookup session %s: %w", m.opts.SessionID, err)
		}
	}

	if sess == nil {
		sess, err = m.svc.Create(ctx, session.CreateRequest{
			ID:         m.opts.SessionID,
			Name:       m.opts.SessionName,
			MaxPlayers: m.opts.MaxPlayers,
		})
		if err != nil {
			return transport.Endpoint{}, fmt.Errorf("create session: %w", err)
		}

		m.mu.Lock()
		m.created = sess.ID
		m.mu.Unlock()
	}

	m.logger.
		WithField("session_id", sess.ID).
		WithField("address", sess.Address()).
		Info("hosting session")

	return transport.Endpoint{Address: net.JoinHostPort(m.opts.BindIP, strconv.Itoa(sess.Port))}, nil
}

// PrepareClient implements Method.
func (m *Managed) PrepareClient(ctx context.Context) (transport.Endpoint, error) {
	if m.opts.SessionID == "" {
		return transport.Endpoint{}, ErrSessionIDRequired
	}

	sess, err := m.svc.Lookup(ctx, m.opts.SessionID)
	if err != nil {
		return transport.Endpoint{}, fmt.Errorf("lookup session %s: %w", m.opts.SessionID, err)
	}

	return transport.Endpoint{Address: sess.Address()}, nil
}

// SetupReconnect implements Method. A session that no longer exists ends the
// reconnection; any other lookup failure may clear up by the next attempt.
func (m *Managed) SetupReconnect(ctx context.Context) (transport.Endpoint, ReconnectResult) {
	if m.opts.SessionID == "" {
		return transport.Endpoint{}, ReconnectResult{Err: ErrSessionIDRequired}
	}

	sess, err := m.svc.Lookup(ctx, m.opts.SessionID)
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		return transport.Endpoint{}, ReconnectResult{Err: err}
	case err != nil:
		return transport.Endpoint{}, ReconnectResult{ShouldRetry: true, Err: err}
	}

	return transport.Endpoint{Address: sess.Address()}, ReconnectResult{Success: true, ShouldRetry: true}
}

// Teardown implements Method. Only a session this method created is deleted.
func (m *Managed) Teardown(ctx context.Context) error {
	m.mu.Lock()
	id := m.created
	m.created = ""
	m.mu.Unlock()

	if id == "" {
		return nil
	}

	if err := m.svc.Delete(ctx, id); err != nil && !errors.Is(err, session.ErrSessionNotFound) {
		return fmt.Errorf("delete session %s: %w", id, err)
	}

	m.logger.WithField("session_id", id).Info("session deleted")

	return nil
}

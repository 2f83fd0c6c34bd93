package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/LilDemoness/mech-shooter-netcode/pkg/event"
	"github.com/LilDemoness/mech-shooter-netcode/pkg/identity"
	"github.com/LilDemoness/mech-shooter-netcode/pkg/player"
)

const (
	// DefaultMaxFrameSize bounds every frame read off the wire.
	DefaultMaxFrameSize = 64 * 1024

	// DefaultHandshakeTimeout bounds dialing and the approval exchange.
	DefaultHandshakeTimeout = 10 * time.Second
)

type (
	// TCPOptions configures a TCP transport.
	TCPOptions struct {
		MaxFrameSize     int
		HandshakeTimeout time.Duration
	}

	// TCP is a Transport over length-prefixed TCP frames.
	TCP struct {
		logger *logrus.Entry
		opts   TCPOptions

		mu       sync.Mutex
		handler  Handler
		active   *run
		listener *net.TCPListener
		conn     net.Conn
		peers    map[identity.ClientID]net.Conn
		localID  identity.ClientID

		// pending holds peers still in the approval exchange.
		pending map[identity.ClientID]net.Conn

		nextID uint64
		wg     sync.WaitGroup
	}

	// run is one host or client lifetime. Callbacks belonging to a run are
	// dropped once it is done.
	run struct {
		done chan struct{}
		once sync.Once
	}

	// acceptBody is sent to an approved client.
	acceptBody struct {
		ClientID      uint64      `json:"clientId"`
		CreateEntity  bool        `json:"createEntity"`
		SpawnPosition player.Vec3 `json:"spawnPosition"`
		SpawnRotation player.Vec3 `json:"spawnRotation"`
	}
)

// NewTCP returns a stopped TCP transport.
func NewTCP(logger *logrus.Entry, opts TCPOptions) *TCP {
	if opts.MaxFrameSize <= 0 {
		opts.MaxFrameSize = DefaultMaxFrameSize
	}

	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = DefaultHandshakeTimeout
	}

	return &TCP{
		logger:  logger,
		opts:    opts,
		localID: Unassigned,
	}
}

func newRun() *run {
	return &run{done: make(chan struct{})}
}

func (r *run) close() {
	r.once.Do(func() { close(r.done) })
}

func (r *run) isDone() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// SetHandler implements Transport.
func (t *TCP) SetHandler(h Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handler = h
}

// StartHost implements Transport.
func (t *TCP) StartHost(ctx context.Context, ep Endpoint) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active != nil {
		return ErrAlreadyRunning
	}

	addr, err := net.ResolveTCPAddr("tcp", ep.Address)
	if err != nil {
		return fmt.Errorf("resolve %q: %w", ep.Address, err)
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %q: %w", ep.Address, err)
	}

	r := newRun()
	t.active = r
	t.listener = l
	t.peers = make(map[identity.ClientID]net.Conn)
	t.pending = make(map[identity.ClientID]net.Conn)
	t.localID = HostID

	t.logger.WithField("address", l.Addr().String()).Info("host listening")

	t.wg.Add(1)
	go t.acceptLoop(r, l)

	return nil
}

// StartClient implements Transport. It returns once the connection attempt
// is under way; a failed dial is reported as a disconnect.
func (t *TCP) StartClient(_ context.Context, ep Endpoint, payload []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active != nil {
		return ErrAlreadyRunning
	}

	if _, _, err := net.SplitHostPort(ep.Address); err != nil {
		return fmt.Errorf("invalid address %q: %w", ep.Address, err)
	}

	r := newRun()
	t.active = r
	t.localID = Unassigned

	t.wg.Add(1)
	go t.clientLoop(r, ep.Address, payload)

	return nil
}

// Addr returns the address the host is listening on, or "" if not hosting.
func (t *TCP) Addr() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.listener == nil {
		return ""
	}

	return t.listener.Addr().String()
}

// DisconnectPeer implements Transport.
func (t *TCP) DisconnectPeer(id identity.ClientID, reason string) error {
	t.mu.Lock()
	if t.listener == nil {
		t.mu.Unlock()
		return ErrNotHosting
	}

	conn, ok := t.peers[id]
	delete(t.peers, id)
	t.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownPeer, id)
	}

	var result *multierror.Error
	if err := writeFrame(conn, frameDisconnect, []byte(reason)); err != nil {
		result = multierror.Append(result, err)
	}

	if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		result = multierror.Append(result, err)
	}

	return result.ErrorOrNil()
}

// Shutdown implements Transport. Peers of a host are told the host is
// shutting down.
func (t *TCP) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	r, l, conn, peers, pending := t.active, t.listener, t.conn, t.peers, t.pending
	t.active, t.listener, t.conn, t.peers, t.pending = nil, nil, nil, nil, nil
	t.localID = Unassigned
	t.mu.Unlock()

	if r == nil {
		return nil
	}

	r.close()

	var result *multierror.Error
	for id, pc := range peers {
		if err := writeFrame(pc, frameDisconnect, []byte(event.HostShutdownReason)); err != nil {
			t.logger.WithError(err).WithField("client_id", id).Debug("notify peer of shutdown")
		}

		if err := pc.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			result = multierror.Append(result, err)
		}
	}

	for _, pc := range pending {
		_ = pc.Close()
	}

	if l != nil {
		if err := l.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			result = multierror.Append(result, err)
		}
	}

	if conn != nil {
		// Best effort, the host sees the close either way.
		_ = writeFrame(conn, frameDisconnect, nil)
		if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			result = multierror.Append(result, err)
		}
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		result = multierror.Append(result, ctx.Err())
	}

	return result.ErrorOrNil()
}

// LocalID implements Transport.
func (t *TCP) LocalID() identity.ClientID {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.localID
}

// Running implements Transport.
func (t *TCP) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active != nil
}

// emit calls fn with the handler unless r has finished.
func (t *TCP) emit(r *run, fn func(h Handler)) {
	if r.isDone() {
		return
	}

	t.mu.Lock()
	h := t.handler
	t.mu.Unlock()

	if h != nil {
		fn(h)
	}
}

// acceptLoop accepts peers until the listener is closed.
func (t *TCP) acceptLoop(r *run, l *net.TCPListener) {
	defer t.wg.Done()

	t.emit(r, func(h Handler) { h.OnServerStarted() })

	for {
		conn, err := l.AcceptTCP()
		if err != nil {
			if r.isDone() {
				t.logger.Debug("server closed")
				return
			}

			if errors.Is(err, net.ErrClosed) {
				t.logger.Warn("listener closed underneath the server")
				t.emit(r, func(h Handler) { h.OnServerStopped() })

				return
			}

			t.logger.WithError(err).Error("accepting connections")
			t.emit(r, func(h Handler) { h.OnTransportFailure() })

			return
		}

		id := identity.ClientID(atomic.AddUint64(&t.nextID, 1))
		if !t.track(r, id, conn) {
			_ = conn.Close()
			return
		}

		t.wg.Add(1)
		go t.handlePeer(r, id, conn)
	}
}

// handlePeer runs the approval exchange with one peer, then waits for it to
// go away.
func (t *TCP) handlePeer(r *run, id identity.ClientID, conn *net.TCPConn) {
	defer t.wg.Done()
	defer t.untrack(r, id)

	logger := t.logger.WithFields(logrus.Fields{
		"client_id": id,
		"remote":    conn.RemoteAddr().String(),
	})

	_ = conn.SetReadDeadline(time.Now().Add(t.opts.HandshakeTimeout))

	typ, body, err := readFrame(conn, t.opts.MaxFrameSize)
	if err != nil || typ != frameRequest {
		logger.WithError(err).Debug("dropping peer without a connection request")
		_ = conn.Close()

		return
	}

	t.mu.Lock()
	h := t.handler
	t.mu.Unlock()

	if h == nil || r.isDone() {
		_ = conn.Close()
		return
	}

	resp, ok := t.approve(r, h, ApprovalRequest{ClientID: id, Payload: body})
	if !ok {
		_ = conn.Close()
		return
	}

	if !resp.Approved {
		logger.WithField("reason", resp.Reason).Info("connection rejected")
		_ = writeFrame(conn, frameReject, []byte(resp.Reason))
		_ = conn.Close()

		return
	}

	accept, err := json.Marshal(acceptBody{
		ClientID:      uint64(id),
		CreateEntity:  resp.CreateEntity,
		SpawnPosition: resp.SpawnPosition,
		SpawnRotation: resp.SpawnRotation,
	})
	if err == nil {
		err = writeFrame(conn, frameAccept, accept)
	}

	if err != nil {
		logger.WithError(err).Error("sending connection approval")
		_ = conn.Close()
		t.emit(r, func(h Handler) { h.OnPeerDisconnected(id, "") })

		return
	}

	t.mu.Lock()
	if t.active != r {
		t.mu.Unlock()
		_ = conn.Close()

		return
	}
	delete(t.pending, id)
	t.peers[id] = conn
	t.mu.Unlock()

	_ = conn.SetReadDeadline(time.Time{})
	logger.Info("connected")
	t.emit(r, func(h Handler) { h.OnPeerConnected(id) })

	reason := t.readUntilDisconnect(conn)

	if !t.removePeer(r, id) {
		// Dropped locally, by DisconnectPeer or Shutdown.
		return
	}

	_ = conn.Close()
	logger.WithField("reason", reason).Info("disconnected")
	t.emit(r, func(h Handler) { h.OnPeerDisconnected(id, reason) })
}

// approve asks h about req. It gives up once r is done, as the handler may
// be the one waiting for the run to finish.
func (t *TCP) approve(r *run, h Handler, req ApprovalRequest) (ApprovalResponse, bool) {
	respc := make(chan ApprovalResponse, 1)
	go func() { respc <- h.OnApprovalRequested(req) }()

	select {
	case resp := <-respc:
		return resp, true
	case <-r.done:
		return ApprovalResponse{}, false
	}
}

// track records a peer that has not been approved yet, unless r has ended.
func (t *TCP) track(r *run, id identity.ClientID, conn net.Conn) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active != r {
		return false
	}

	t.pending[id] = conn

	return true
}

func (t *TCP) untrack(r *run, id identity.ClientID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active == r {
		delete(t.pending, id)
	}
}

// removePeer forgets id, reporting whether it was still known.
func (t *TCP) removePeer(r *run, id identity.ClientID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active != r {
		return false
	}

	if _, ok := t.peers[id]; !ok {
		return false
	}

	delete(t.peers, id)

	return true
}

// dial connects to address, giving up when r finishes.
func (t *TCP) dial(r *run, address string) (net.Conn, error) {
	ctx, cancel := context.WithTimeout(context.Background(), t.opts.HandshakeTimeout)
	defer cancel()

	go func() {
		select {
		case <-r.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	var d net.Dialer

	return d.DialContext(ctx, "tcp", address)
}

// clientLoop connects, waits for the host's answer and then for the
// connection to end.
func (t *TCP) clientLoop(r *run, address string, payload []byte) {
	defer t.wg.Done()

	conn, err := t.dial(r, address)
	if err != nil {
		t.logger.WithError(err).WithField("address", address).Warn("dial failed")
		t.emit(r, func(h Handler) { h.OnPeerDisconnected(Unassigned, "") })

		return
	}
	defer conn.Close()

	t.mu.Lock()
	if t.active != r {
		t.mu.Unlock()
		return
	}
	t.conn = conn
	t.mu.Unlock()

	if err = writeFrame(conn, frameRequest, payload); err != nil {
		t.logger.WithError(err).Warn("sending connection request")
		t.emit(r, func(h Handler) { h.OnPeerDisconnected(Unassigned, "") })

		return
	}

	_ = conn.SetReadDeadline(time.Now().Add(t.opts.HandshakeTimeout))

	typ, body, err := readFrame(conn, t.opts.MaxFrameSize)
	if err != nil {
		t.logger.WithError(err).Debug("connection request unanswered")
		t.emit(r, func(h Handler) { h.OnPeerDisconnected(Unassigned, "") })

		return
	}

	switch typ {
	case frameReject, frameDisconnect:
		t.emit(r, func(h Handler) { h.OnPeerDisconnected(Unassigned, string(body)) })
		return

	case frameAccept:
	default:
		t.logger.WithField("frame_type", typ).Warn("unexpected frame from host")
		t.emit(r, func(h Handler) { h.OnPeerDisconnected(Unassigned, "") })

		return
	}

	var accepted acceptBody
	if err = json.Unmarshal(body, &accepted); err != nil {
		t.logger.WithError(err).Warn("malformed approval from host")
		t.emit(r, func(h Handler) { h.OnPeerDisconnected(Unassigned, "") })

		return
	}

	id := identity.ClientID(accepted.ClientID)

	t.mu.Lock()
	if t.active == r {
		t.localID = id
	}
	t.mu.Unlock()

	_ = conn.SetReadDeadline(time.Time{})
	t.logger.WithField("client_id", id).Info("connected to host")
	t.emit(r, func(h Handler) { h.OnPeerConnected(id) })

	reason := t.readUntilDisconnect(conn)
	t.emit(r, func(h Handler) { h.OnPeerDisconnected(id, reason) })
}

// readUntilDisconnect reads frames until the remote side goes away,
// returning the reason it gave.
func (t *TCP) readUntilDisconnect(conn net.Conn) string {
	for {
		typ, body, err := readFrame(conn, t.opts.MaxFrameSize)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				t.logger.WithError(err).Debug("connection read failed")
			}

			return ""
		}

		if typ == frameDisconnect {
			return string(body)
		}
	}
}

// Package connection runs the lifecycle of a game process's network
// connection: starting a host or client, staying connected, and finding the
// way back after a drop.
package connection

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/LilDemoness/mech-shooter-netcode/internal/method"
	"github.com/LilDemoness/mech-shooter-netcode/internal/transport"
	"github.com/LilDemoness/mech-shooter-netcode/pkg/admission"
	"github.com/LilDemoness/mech-shooter-netcode/pkg/config"
	"github.com/LilDemoness/mech-shooter-netcode/pkg/event"
	"github.com/LilDemoness/mech-shooter-netcode/pkg/identity"
	"github.com/LilDemoness/mech-shooter-netcode/pkg/player"
)

const (
	eventBuffer        = 64
	errorBuffer        = 8
	subscriptionBuffer = 16

	defaultShutdownTimeout = 5 * time.Second
)

// eventType identifies what a loopEvent carries.
type eventType int

const (
	evStartClient eventType = iota
	evStartHost
	evShutdown
	evPeerConnected
	evPeerDisconnected
	evServerStarted
	evServerStopped
	evTransportFailure
	evApproval
	evTaskDone
	evApplySettings
	evSessionStarted
	evSessionEnded
)

type (
	// Settings are the coordinator's tunables.
	Settings struct {
		PlayerID   string
		PlayerName string
		DebugBuild bool

		MaxPlayers        int
		MaxConnectPayload int

		MaxReconnectAttempts   int
		ReconnectGracePeriod   time.Duration
		ReconnectInterval      time.Duration
		ReconnectBackoffFactor float64
		ReconnectMaxInterval   time.Duration

		// ShutdownTimeout bounds transport and method teardown.
		ShutdownTimeout time.Duration
	}

	// Options configures a Coordinator.
	Options struct {
		Logger    *logrus.Entry
		Transport transport.Transport
		Registry  *identity.Registry[player.Data]
		Settings  Settings
	}

	// Coordinator owns the current connection state. Every request and
	// transport callback is queued and handled one at a time by Run.
	//
	// Callers MUST read from Errors().
	Coordinator struct {
		logger   *logrus.Entry
		tr       transport.Transport
		registry *identity.Registry[player.Data]
		admit    *admission.Controller
		cfg      Settings

		events chan loopEvent
		done   chan struct{}
		errc   chan error

		// Owned by the loop.
		ctx     context.Context
		current state
		task    *task
		taskGen uint64
		pending []error

		stateID atomic.Int32
		running atomic.Bool

		// stateChanged is closed and replaced on every state change.
		stateMu      sync.Mutex
		stateChanged chan struct{}

		wg      sync.WaitGroup

		statusFeed   *event.Publisher[event.ConnectionStatus]
		progressFeed *event.Publisher[event.ReconnectProgress]
		playerFeed   *event.Publisher[event.PlayerEvent]
	}

	loopEvent struct {
		typ      eventType
		method   method.Method
		clientID identity.ClientID
		reason   string
		approval *approvalCall
		result   taskResult
		settings Settings
	}

	approvalCall struct {
		req   transport.ApprovalRequest
		reply chan transport.ApprovalResponse
	}
)

// SettingsFromConfig takes the coordinator's settings from cfg.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		PlayerID:               cfg.PlayerID,
		PlayerName:             cfg.PlayerName,
		DebugBuild:             cfg.DebugBuild,
		MaxPlayers:             cfg.MaxPlayers,
		MaxConnectPayload:      cfg.MaxConnectPayload,
		MaxReconnectAttempts:   cfg.MaxReconnectAttempts,
		ReconnectGracePeriod:   cfg.ReconnectGracePeriod.Std(),
		ReconnectInterval:      cfg.ReconnectInterval.Std(),
		ReconnectBackoffFactor: cfg.ReconnectBackoffFactor,
		ReconnectMaxInterval:   cfg.ReconnectMaxInterval.Std(),
		ShutdownTimeout:        cfg.ConnectTimeout.Std(),
	}
}

// New creates a coordinator and registers it as the transport's handler.
func New(opts Options) *Coordinator {
	if opts.Settings.ShutdownTimeout <= 0 {
		opts.Settings.ShutdownTimeout = defaultShutdownTimeout
	}

	c := &Coordinator{
		logger:       opts.Logger,
		tr:           opts.Transport,
		registry:     opts.Registry,
		cfg:          opts.Settings,
		events:       make(chan loopEvent, eventBuffer),
		done:         make(chan struct{}),
		stateChanged: make(chan struct{}),
		errc:         make(chan error, errorBuffer),
		ctx:          context.Background(),
		statusFeed:   event.NewPublisher[event.ConnectionStatus](opts.Logger),
		progressFeed: event.NewPublisher[event.ReconnectProgress](opts.Logger),
		playerFeed:   event.NewPublisher[event.PlayerEvent](opts.Logger),
	}

	c.admit = admission.NewController(
		opts.Registry,
		opts.Settings.MaxPlayers,
		opts.Settings.MaxConnectPayload,
		opts.Settings.DebugBuild,
	)
	c.current = newOffline(c, nil)
	c.setState(Offline)

	opts.Transport.SetHandler(c)

	return c
}

// Run handles events until ctx is done, then shuts everything down.
func (c *Coordinator) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	c.ctx = ctx

	c.logger.Info("connection coordinator running")

	for {
		select {
		case <-ctx.Done():
			c.stop()
			return ctx.Err()

		case ev := <-c.events:
			c.handle(ev)
		}
	}
}

// stop leaves whatever state is current without publishing anything.
func (c *Coordinator) stop() {
	c.cancelTask()

	prev := c.current
	prev.exit()

	c.current = newOffline(c, prev.boundMethod())
	c.current.enter()
	c.setState(Offline)

	close(c.done)
	c.wg.Wait()

	c.statusFeed.Close()
	c.progressFeed.Close()
	c.playerFeed.Close()

	c.logger.Info("connection coordinator stopped")
}

// State returns the current state. It is safe to call from any goroutine.
func (c *Coordinator) State() StateID {
	return StateID(c.stateID.Load())
}

// WaitState blocks until the coordinator is in want or ctx is done.
func (c *Coordinator) WaitState(ctx context.Context, want StateID) error {
	for {
		c.stateMu.Lock()
		changed := c.stateChanged
		c.stateMu.Unlock()

		if c.State() == want {
			return nil
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Coordinator) setState(id StateID) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()

	c.stateID.Store(int32(id))
	close(c.stateChanged)
	c.stateChanged = make(chan struct{})
}

// Statuses subscribes to published connection statuses.
func (c *Coordinator) Statuses() *event.Subscription[event.ConnectionStatus] {
	return c.statusFeed.Subscribe(subscriptionBuffer)
}

// Progress subscribes to reconnection progress.
func (c *Coordinator) Progress() *event.Subscription[event.ReconnectProgress] {
	return c.progressFeed.Subscribe(subscriptionBuffer)
}

// Players subscribes to players joining and leaving a hosted game.
func (c *Coordinator) Players() *event.Subscription[event.PlayerEvent] {
	return c.playerFeed.Subscribe(subscriptionBuffer)
}

// Errors returns errors that forced the coordinator offline, such as a host
// that could not start. Each is delivered after the move to Offline.
//
// Callers MUST call this method to read from the channel.
func (c *Coordinator) Errors() <-chan error {
	return c.errc
}

// RequestStartClient asks to join a game using m.
func (c *Coordinator) RequestStartClient(m method.Method) {
	c.enqueue(loopEvent{typ: evStartClient, method: m})
}

// RequestStartHost asks to host a game using m.
func (c *Coordinator) RequestStartHost(m method.Method) {
	c.enqueue(loopEvent{typ: evStartHost, method: m})
}

// RequestShutdown asks to leave whatever game is running.
func (c *Coordinator) RequestShutdown() {
	c.enqueue(loopEvent{typ: evShutdown})
}

// MarkSessionStarted tells a host the game has started, so disconnected
// players are remembered until it ends.
func (c *Coordinator) MarkSessionStarted() {
	c.enqueue(loopEvent{typ: evSessionStarted})
}

// MarkSessionEnded tells a host the game has ended.
func (c *Coordinator) MarkSessionEnded() {
	c.enqueue(loopEvent{typ: evSessionEnded})
}

// ApplyConfig updates the coordinator's settings from a reloaded cfg.
// Changes apply to later decisions only.
func (c *Coordinator) ApplyConfig(cfg *config.Config) {
	s := SettingsFromConfig(cfg)
	c.enqueue(loopEvent{typ: evApplySettings, settings: s})
}

// OnPeerConnected implements transport.Handler.
func (c *Coordinator) OnPeerConnected(id identity.ClientID) {
	c.enqueue(loopEvent{typ: evPeerConnected, clientID: id})
}

// OnPeerDisconnected implements transport.Handler.
func (c *Coordinator) OnPeerDisconnected(id identity.ClientID, reason string) {
	c.enqueue(loopEvent{typ: evPeerDisconnected, clientID: id, reason: reason})
}

// OnServerStarted implements transport.Handler.
func (c *Coordinator) OnServerStarted() {
	c.enqueue(loopEvent{typ: evServerStarted})
}

// OnServerStopped implements transport.Handler.
func (c *Coordinator) OnServerStopped() {
	c.enqueue(loopEvent{typ: evServerStopped})
}

// OnTransportFailure implements transport.Handler.
func (c *Coordinator) OnTransportFailure() {
	c.enqueue(loopEvent{typ: evTransportFailure})
}

// OnApprovalRequested implements transport.Handler. It waits for the loop to
// decide, and rejects the request if the coordinator stops first.
func (c *Coordinator) OnApprovalRequested(req transport.ApprovalRequest) transport.ApprovalResponse {
	call := &approvalCall{req: req, reply: make(chan transport.ApprovalResponse, 1)}
	rejected := transport.ApprovalResponse{Reason: event.EncodeReason(event.HostEndedSession)}

	select {
	case c.events <- loopEvent{typ: evApproval, approval: call}:
	case <-c.done:
		return rejected
	}

	select {
	case resp := <-call.reply:
		return resp
	case <-c.done:
		return rejected
	}
}

func (c *Coordinator) enqueue(ev loopEvent) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

// handle dispatches one event to the current state and applies any
// transition it asks for before returning.
func (c *Coordinator) handle(ev loopEvent) {
	var next state

	switch ev.typ {
	case evStartClient:
		next = c.current.startClient(ev.method)
	case evStartHost:
		next = c.current.startHost(ev.method)
	case evShutdown:
		next = c.current.shutdown()
	case evPeerConnected:
		next = c.current.peerConnected(ev.clientID)
	case evPeerDisconnected:
		next = c.current.peerDisconnected(ev.clientID, ev.reason)
	case evServerStarted:
		next = c.current.serverStarted()
	case evServerStopped:
		next = c.current.serverStopped()
	case evTransportFailure:
		next = c.current.transportFailure()
	case evApproval:
		ev.approval.reply <- c.current.approval(ev.approval.req)
	case evTaskDone:
		if !c.claimTask(ev.result) {
			c.logger.Debug("dropping result of a superseded task")
			break
		}
		next = c.current.taskDone(ev.result)
	case evApplySettings:
		c.applySettings(ev.settings)
	case evSessionStarted:
		c.current.sessionStarted()
	case evSessionEnded:
		c.current.sessionEnded()
	}

	c.transition(next)
	c.flushErrors()
}

// transition moves to next, and on to any state its enter hands back.
func (c *Coordinator) transition(next state) {
	for next != nil {
		from, to := c.current.id(), next.id()
		if !CanTransition(from, to) {
			c.logger.
				WithField("from", from).
				WithField("to", to).
				Error("illegal state transition refused")

			return
		}

		c.current.exit()
		c.current = next
		c.setState(to)

		c.logger.
			WithField("from", from).
			WithField("to", to).
			Info("state changed")

		next = next.enter()
	}
}

func (c *Coordinator) applySettings(s Settings) {
	if s.ShutdownTimeout <= 0 {
		s.ShutdownTimeout = defaultShutdownTimeout
	}

	c.cfg = s
	c.admit.SetLimits(s.MaxPlayers, s.MaxConnectPayload)

	c.logger.
		WithField("max_players", s.MaxPlayers).
		WithField("max_reconnect_attempts", s.MaxReconnectAttempts).
		Info("settings applied")
}

func (c *Coordinator) flushErrors() {
	for _, err := range c.pending {
		select {
		case c.errc <- err:
		default:
			c.logger.WithError(err).Warn("error channel full, dropping error")
		}
	}

	c.pending = nil
}

func (c *Coordinator) log() *logrus.Entry {
	return c.logger.WithField("state", c.State())
}

func (c *Coordinator) network() transport.Transport {
	return c.tr
}

func (c *Coordinator) players() *identity.Registry[player.Data] {
	return c.registry
}

func (c *Coordinator) admission() *admission.Controller {
	return c.admit
}

func (c *Coordinator) settings() Settings {
	return c.cfg
}

func (c *Coordinator) runContext() context.Context {
	return c.ctx
}

func (c *Coordinator) publishStatus(s event.ConnectionStatus) {
	c.logger.WithField("status", s).Info("connection status")
	c.statusFeed.Publish(s)
}

func (c *Coordinator) publishProgress(p event.ReconnectProgress) {
	c.progressFeed.Publish(p)
}

func (c *Coordinator) publishPlayer(e event.PlayerEvent) {
	c.playerFeed.Publish(e)
}

func (c *Coordinator) reportError(err error) {
	c.pending = append(c.pending, err)
}

func (c *Coordinator) connectPayload() ([]byte, error) {
	return admission.EncodePayload(admission.ConnectionPayload{
		PlayerID:   c.cfg.PlayerID,
		PlayerName: c.cfg.PlayerName,
		IsDebug:    c.cfg.DebugBuild,
	})
}

// shutdownTransport stops the transport and waits, up to the shutdown
// timeout, for it to finish.
func (c *Coordinator) shutdownTransport() {
	if !c.tr.Running() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ShutdownTimeout)
	defer cancel()

	if err := c.tr.Shutdown(ctx); err != nil {
		c.logger.WithError(err).Warn("transport shutdown")
	}
}

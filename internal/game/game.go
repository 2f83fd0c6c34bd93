// Package game runs one game process: a host, a client, or a dedicated
// server that waits for the hosting daemon to hand it a session.
package game

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/LilDemoness/mech-shooter-netcode/internal/connection"
	"github.com/LilDemoness/mech-shooter-netcode/internal/method"
	"github.com/LilDemoness/mech-shooter-netcode/internal/query"
	"github.com/LilDemoness/mech-shooter-netcode/internal/session"
	"github.com/LilDemoness/mech-shooter-netcode/internal/transport"
	"github.com/LilDemoness/mech-shooter-netcode/pkg/config"
	"github.com/LilDemoness/mech-shooter-netcode/pkg/event"
	"github.com/LilDemoness/mech-shooter-netcode/pkg/identity"
	"github.com/LilDemoness/mech-shooter-netcode/pkg/player"
	"github.com/LilDemoness/mech-shooter-netcode/pkg/proto"
)

const (
	ModeHost   = "host"
	ModeClient = "client"
	ModeServer = "server"

	// standalonePorts is how many game ports the standalone backend hands out.
	standalonePorts = 16

	// standaloneSessionTTL is how long a standalone session lives unless
	// deleted first.
	standaloneSessionTTL = time.Hour

	gameType = "mech-arena"
)

var ErrInvalidMode = errors.New("mode must be host, client or server")

type (
	// Options configures how a Game runs.
	Options struct {
		// Mode is one of ModeHost, ModeClient or ModeServer.
		Mode string

		// Standalone serves an in-memory session backend on StandaloneAddr
		// instead of using SessionBackendURL.
		Standalone     bool
		StandaloneAddr string
	}

	// Game represents one game process.
	Game struct {
		// cfgFile is the file path this game reads its configuration from
		cfgFile string
		opts    Options
		logger  *logrus.Entry

		mu  sync.Mutex
		cfg *config.Config

		// allocationID is the session the daemon allocated us, if any
		allocationID string

		registry *identity.Registry[player.Data]
		tr       *transport.TCP
		coord    *connection.Coordinator
		svc      session.Service

		watcher *config.Watcher
		daemon  *session.DaemonClient
		backend *http.Server
		query   *query.Server

		statuses *event.Subscription[event.ConnectionStatus]
		progress *event.Subscription[event.ReconnectProgress]
		players  *event.Subscription[event.PlayerEvent]

		ctx    context.Context
		cancel context.CancelFunc

		// wg handles synchronising termination of all active goroutines
		// this game manages
		wg sync.WaitGroup
	}
)

// New creates a new game, configured with the provided configuration file.
func New(logger *logrus.Entry, configPath string, opts Options) (*Game, error) {
	switch opts.Mode {
	case ModeHost, ModeClient, ModeServer:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, opts.Mode)
	}

	return &Game{
		cfgFile: configPath,
		opts:    opts,
		logger:  logger,
	}, nil
}

// Start loads the configuration and starts hosting, joining, or waiting for
// an allocation, depending on the mode.
func (g *Game) Start() error {
	cfg, err := config.NewConfigFromFile(g.cfgFile)
	if err != nil {
		return err
	}

	if cfg.PlayerID == "" {
		cfg.PlayerID = uuid.NewString()
	}

	g.cfg = cfg
	g.logger = g.logger.
		WithField("mode", g.opts.Mode).
		WithField("player_id", cfg.PlayerID)
	g.ctx, g.cancel = context.WithCancel(context.Background())

	g.registry = identity.NewRegistry[player.Data](
		identity.WithReinitialize(player.Reinitialize),
		identity.WithHooks(identity.Hooks[player.Data]{
			OnConnected: func(id identity.Identity[player.Data], reconnecting bool) {
				g.logger.
					WithField("persistent_id", id.PersistentID).
					WithField("client_id", id.ClientID).
					WithField("reconnecting", reconnecting).
					Debug("identity bound")
			},
			OnDisconnected: func(id identity.Identity[player.Data]) {
				g.logger.
					WithField("persistent_id", id.PersistentID).
					Debug("identity released")
			},
		}),
	)

	g.tr = transport.NewTCP(g.logger.WithField("component", "transport"), transport.TCPOptions{
		HandshakeTimeout: cfg.ConnectTimeout.Std(),
	})

	g.coord = connection.New(connection.Options{
		Logger:    g.logger.WithField("component", "connection"),
		Transport: g.tr,
		Registry:  g.registry,
		Settings:  connection.SettingsFromConfig(cfg),
	})

	g.statuses = g.coord.Statuses()
	g.progress = g.coord.Progress()
	g.players = g.coord.Players()

	if g.watcher, err = config.NewWatcher(g.logger.WithField("component", "config"), g.cfgFile); err != nil {
		g.cancel()
		return err
	}

	if err = g.startBackend(); err != nil {
		g.stopServices()
		return err
	}

	if g.opts.Mode == ModeServer {
		g.daemon = session.NewDaemonClient(cfg.SDKDaemonURL, g.logger.WithField("component", "daemon"))
		g.daemon.OnAllocate(g.allocated)
		g.daemon.OnDeallocate(g.deallocated)
	}

	g.wg.Add(2)
	go func() {
		defer g.wg.Done()

		if err := g.coord.Run(g.ctx); err != nil && !errors.Is(err, context.Canceled) {
			g.logger.WithError(err).Error("connection coordinator stopped")
		}
	}()
	go g.processEvents()

	if g.opts.Mode != ModeClient {
		if err = g.startQuery(); err != nil {
			g.Stop()
			return err
		}
	}

	if err = g.begin(); err != nil {
		g.Stop()
		return err
	}

	g.logger.
		WithField("method", cfg.ConnectionMethod).
		Info("game started")

	return nil
}

// Stop leaves any running game and shuts everything down.
func (g *Game) Stop() {
	g.logger.Info("stopping")

	g.coord.RequestShutdown()

	ctx, cancel := context.WithTimeout(context.Background(), g.config().ConnectTimeout.Std())
	defer cancel()

	if err := g.coord.WaitState(ctx, connection.Offline); err != nil {
		g.logger.WithError(err).Warn("connection did not go offline in time")
	}

	g.stopServices()
	g.wg.Wait()

	g.logger.Info("stopped")
}

// State returns the state of the game's connection.
func (g *Game) State() connection.StateID {
	return g.coord.State()
}

// QueryAddr returns the address of the query port, if it is open.
func (g *Game) QueryAddr() net.Addr {
	if g.query == nil {
		return nil
	}

	return g.query.Addr()
}

// BackendAddr returns the address of the standalone session backend, if
// one is running.
func (g *Game) BackendAddr() string {
	if g.backend == nil {
		return ""
	}

	return g.backend.Addr
}

func (g *Game) stopServices() {
	g.cancel()

	if g.daemon != nil {
		if err := g.daemon.Close(); err != nil {
			g.logger.WithError(err).Warn("close daemon client")
		}
	}

	if g.query != nil {
		_ = g.query.Close()
	}

	if g.backend != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		_ = g.backend.Shutdown(ctx)
	}

	if g.watcher != nil {
		_ = g.watcher.Close()
	}
}

func (g *Game) config() *config.Config {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.cfg
}

func (g *Game) setConfig(c *config.Config) {
	g.mu.Lock()
	defer g.mu.Unlock()

	// The player's identity does not change with the file.
	c.PlayerID = g.cfg.PlayerID
	g.cfg = c
}

// begin starts hosting or joining, or for a dedicated server, waits for the
// daemon to allocate a session.
func (g *Game) begin() error {
	cfg := g.config()

	switch g.opts.Mode {
	case ModeClient:
		m, err := g.newMethod(cfg.SessionID)
		if err != nil {
			return err
		}

		g.coord.RequestStartClient(m)

	case ModeHost:
		m, err := g.newMethod(cfg.SessionID)
		if err != nil {
			return err
		}

		g.coord.RequestStartHost(m)

	case ModeServer:
		if err := g.connectDaemon(); err != nil {
			return err
		}

		// Handle the process starting with a session already allocated.
		if cfg.SessionID != "" {
			g.allocated(session.AllocateEvent{AllocationID: cfg.SessionID})
		}
	}

	return nil
}

func (g *Game) newMethod(sessionID string) (method.Method, error) {
	cfg := g.config()

	if cfg.ConnectionMethod == config.MethodSession {
		return method.NewManaged(g.svc, method.ManagedOptions{
			SessionName: cfg.SessionName,
			SessionID:   sessionID,
			MaxPlayers:  cfg.MaxPlayers,
		}, g.logger.WithField("component", "method")), nil
	}

	return method.NewDirect(cfg.IP, int(cfg.Port))
}

// startBackend picks the session backend managed methods talk to, serving
// one in process in standalone mode.
func (g *Game) startBackend() error {
	cfg := g.config()
	logger := g.logger.WithField("component", "session")

	if !g.opts.Standalone {
		if cfg.ConnectionMethod != config.MethodSession {
			return nil
		}

		svc, err := session.NewHTTPServiceFromEnv(cfg.SessionBackendURL, logger)
		if err != nil {
			return err
		}

		g.svc = svc

		return nil
	}

	ln, err := net.Listen("tcp", g.opts.StandaloneAddr)
	if err != nil {
		return fmt.Errorf("listen for standalone backend: %w", err)
	}

	mem := session.NewMemoryService(cfg.IP, int(cfg.Port), standalonePorts, standaloneSessionTTL)
	g.backend = &http.Server{
		Addr:              ln.Addr().String(),
		Handler:           session.NewServer(mem, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()

		if err := g.backend.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("standalone backend stopped")
		}
	}()

	g.svc = session.NewHTTPService(session.HTTPConfig{BaseURL: "http://" + ln.Addr().String()}, logger)

	logger.WithField("address", ln.Addr().String()).Info("standalone session backend listening")

	return nil
}

// startQuery opens the query port when one is configured.
func (g *Game) startQuery() error {
	cfg := g.config()
	if cfg.QueryPort == 0 {
		return nil
	}

	r, err := query.NewResponder(cfg.QueryProtocol, g.queryState)
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(queryBindIP(cfg.IP), strconv.FormatUint(uint64(cfg.QueryPort), 10))

	g.query, err = query.Listen(g.logger.WithField("component", "query"), addr, r, 0)

	return err
}

// queryState reports live players from the registry. It is called from the
// query server's goroutine.
func (g *Game) queryState() proto.State {
	cfg := g.config()

	name := cfg.SessionName
	if id := g.allocation(); id != "" {
		name = fmt.Sprintf("%s - %s", cfg.SessionName, id)
	}

	return proto.State{
		CurrentPlayers: int32(g.registry.ConnectedCount()),
		MaxPlayers:     int32(cfg.MaxPlayers),
		ServerName:     name,
		GameType:       gameType,
		Port:           uint16(cfg.Port),
	}
}

func queryBindIP(ip string) string {
	if parsed := net.ParseIP(ip); parsed == nil || parsed.To4() == nil {
		return "0.0.0.0"
	}

	return ip
}

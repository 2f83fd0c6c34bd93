package game

import (
	"context"

	"github.com/LilDemoness/mech-shooter-netcode/internal/session"
	"github.com/LilDemoness/mech-shooter-netcode/pkg/config"
	"github.com/LilDemoness/mech-shooter-netcode/pkg/event"
)

// processEvents logs what the connection reports and applies reloaded
// configuration until the game stops.
func (g *Game) processEvents() {
	defer g.wg.Done()

	var (
		statuses = g.statuses.C()
		progress = g.progress.C()
		players  = g.players.C()
		changes  = g.watcher.Changes()
		errc     = g.coord.Errors()
	)

	var daemonErrs <-chan error
	if g.daemon != nil {
		daemonErrs = g.daemon.Errors()
	}

	for {
		select {
		case <-g.ctx.Done():
			return

		case s, ok := <-statuses:
			if !ok {
				statuses = nil
				continue
			}

			g.statusChanged(s)

		case p, ok := <-progress:
			if !ok {
				progress = nil
				continue
			}

			g.logger.
				WithField("attempt", p.Attempt).
				WithField("max_attempts", p.MaxAttempts).
				Info("reconnecting")

		case p, ok := <-players:
			if !ok {
				players = nil
				continue
			}

			g.logger.
				WithField("persistent_id", p.PersistentID).
				WithField("client_id", p.ClientID).
				WithField("connected", p.Connected).
				WithField("reconnecting", p.Reconnecting).
				Info("player changed")

		case c, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}

			g.configChanged(c)

		case err := <-errc:
			g.logger.WithError(err).Error("connection failed")

		case err := <-daemonErrs:
			g.logger.WithError(err).Error("hosting daemon")
		}
	}
}

func (g *Game) statusChanged(s event.ConnectionStatus) {
	g.logger.WithField("status", s).Info("connection status")

	if s != event.Success || g.opts.Mode == ModeClient {
		return
	}

	// Players who drop out of a running game keep their place until it
	// ends. Ending the hosting run clears them.
	g.coord.MarkSessionStarted()

	if g.opts.Mode != ModeServer {
		return
	}

	allocationID := g.allocation()
	if allocationID == "" {
		return
	}

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()

		ctx, cancel := context.WithTimeout(g.ctx, session.DaemonRequestTimeout)
		defer cancel()

		if err := g.daemon.ReadyForPlayers(ctx, g.config().ServerID, allocationID); err != nil {
			g.logger.WithError(err).Error("ready for players")
		}
	}()
}

func (g *Game) configChanged(c *config.Config) {
	g.setConfig(c)
	g.coord.ApplyConfig(g.config())

	g.logger.
		WithField("max_players", c.MaxPlayers).
		WithField("max_connect_payload", c.MaxConnectPayload).
		Info("configuration reloaded")
}

func (g *Game) allocation() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.allocationID
}

// connectDaemon subscribes to this server's allocation events.
func (g *Game) connectDaemon() error {
	if err := g.daemon.Connect(); err != nil {
		return err
	}

	return g.daemon.Subscribe(g.config().ServerID)
}

// allocated starts hosting the allocated session.
func (g *Game) allocated(e session.AllocateEvent) {
	g.mu.Lock()
	g.allocationID = e.AllocationID
	g.mu.Unlock()

	g.logger.WithField("allocation_id", e.AllocationID).Info("allocated")

	m, err := g.newMethod(e.AllocationID)
	if err != nil {
		g.logger.WithError(err).Error("connection method")
		return
	}

	g.coord.RequestStartHost(m)
}

// deallocated ends the hosted session.
func (g *Game) deallocated(e session.DeallocateEvent) {
	g.mu.Lock()
	g.allocationID = ""
	g.mu.Unlock()

	g.logger.WithField("allocation_id", e.AllocationID).Info("deallocated")

	g.coord.RequestShutdown()
}

package connection

import (
	"github.com/LilDemoness/mech-shooter-netcode/internal/method"
	"github.com/LilDemoness/mech-shooter-netcode/internal/transport"
	"github.com/LilDemoness/mech-shooter-netcode/pkg/event"
	"github.com/LilDemoness/mech-shooter-netcode/pkg/identity"
	"github.com/LilDemoness/mech-shooter-netcode/pkg/player"
)

// hosting is a running host admitting and tracking players.
type hosting struct {
	unhandled
	online onlinePolicy
	method method.Method
}

func newHosting(c controller, m method.Method) *hosting {
	return &hosting{
		unhandled: unhandled{c: c},
		online:    onlinePolicy{c: c, method: m, failure: event.StartHostFailed},
		method:    m,
	}
}

func (s *hosting) id() StateID                { return Hosting }
func (s *hosting) boundMethod() method.Method { return s.method }

func (s *hosting) exit() {
	s.c.players().OnHostingLifetimeEnded()
}

// approval decides on a peer and records it in the registry in one step.
func (s *hosting) approval(req transport.ApprovalRequest) transport.ApprovalResponse {
	reg := s.c.players()
	logger := s.c.log().WithField("client_id", req.ClientID)

	p, d, err := s.c.admission().Check(req.Payload, reg.ConnectedCount())
	if err != nil {
		logger.WithError(err).Warn("unreadable connection request rejected")
		return transport.ApprovalResponse{}
	}

	logger = logger.WithField("player_id", p.PlayerID)

	if !d.Approved {
		logger.WithField("reason", d.Reason).Info("connection rejected")
		return transport.ApprovalResponse{Reason: event.EncodeReason(d.Reason)}
	}

	reconnecting, err := reg.SetupConnectingPlayer(req.ClientID, p.PlayerID, player.New(p.PlayerName))
	if err != nil {
		logger.WithError(err).Warn("connection rejected")
		return transport.ApprovalResponse{Reason: event.EncodeReason(event.DuplicateLogin)}
	}

	resp := transport.ApprovalResponse{Approved: true, CreateEntity: d.CreateEntity}

	// A player coming back mid-round picks up where their mech was.
	if data, ok := reg.Payload(req.ClientID); ok && data.HasSpawned {
		resp.SpawnPosition = data.Position
		resp.SpawnRotation = data.Rotation
	}

	logger.WithField("reconnecting", reconnecting).Info("connection approved")
	s.c.publishPlayer(event.PlayerEvent{
		PersistentID: p.PlayerID,
		ClientID:     uint64(req.ClientID),
		Connected:    true,
		Reconnecting: reconnecting,
	})

	return resp
}

func (s *hosting) peerConnected(id identity.ClientID) state {
	s.c.log().WithField("client_id", id).Debug("peer connected")
	return nil
}

func (s *hosting) peerDisconnected(id identity.ClientID, reason string) state {
	if id == transport.HostID {
		return nil
	}

	reg := s.c.players()

	persistentID, ok := reg.PersistentID(id)
	reg.DisconnectClient(id)

	s.c.log().
		WithField("client_id", id).
		WithField("reason", reason).
		Info("peer disconnected")

	if ok {
		s.c.publishPlayer(event.PlayerEvent{
			PersistentID: persistentID,
			ClientID:     uint64(id),
		})
	}

	return nil
}

// shutdown ends the session for every peer before going offline.
func (s *hosting) shutdown() state {
	reason := event.EncodeReason(event.HostEndedSession)

	for _, id := range s.c.players().ClientIDs() {
		if id == transport.HostID {
			continue
		}

		if err := s.c.network().DisconnectPeer(id, reason); err != nil {
			s.c.log().WithError(err).WithField("client_id", id).Warn("disconnect peer")
		}
	}

	return s.online.shutdown()
}

func (s *hosting) serverStopped() state {
	s.c.log().Warn("server stopped")
	s.c.publishStatus(event.GenericDisconnect)

	return newOffline(s.c, s.method)
}

func (s *hosting) transportFailure() state { return s.online.transportFailure() }

func (s *hosting) sessionStarted() {
	s.c.players().OnSessionStarted()
}

func (s *hosting) sessionEnded() {
	s.c.players().OnSessionEnded()
}

package sqp

import (
	"github.com/LilDemoness/mech-shooter-netcode/pkg/proto"
)

// serverInfo is the server info chunk of a query response.
type serverInfo struct {
	CurrentPlayers uint16
	MaxPlayers     uint16
	ServerName     string
	GameType       string
	BuildID        string
	GameMap        string
	Port           uint16
}

func newServerInfo(s proto.State) serverInfo {
	return serverInfo{
		CurrentPlayers: clampUint16(s.CurrentPlayers),
		MaxPlayers:     clampUint16(s.MaxPlayers),
		ServerName:     s.ServerName,
		GameType:       s.GameType,
		GameMap:        s.Map,
		Port:           s.Port,
	}
}

// size is the number of bytes the chunk takes on the wire.
func (si serverInfo) size() uint32 {
	n := 2 + 2 + 2 // player counts and port
	for _, s := range []string{si.ServerName, si.GameType, si.BuildID, si.GameMap} {
		n += 1 + min(len(s), 255)
	}

	return uint32(n)
}

func clampUint16(v int32) uint16 {
	switch {
	case v < 0:
		return 0
	case v > 0xffff:
		return 0xffff
	}

	return uint16(v)
}

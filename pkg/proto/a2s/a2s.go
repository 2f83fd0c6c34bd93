// Package a2s answers A2S_INFO queries.
package a2s

import (
	"bytes"
	"runtime"

	"github.com/LilDemoness/mech-shooter-netcode/pkg/proto"
)

const notAvailable = "n/a"

type (
	// Responder answers A2S_INFO packets.
	Responder struct {
		enc   encoder
		state proto.StateFunc
	}

	infoResponse struct {
		Header      []byte
		Protocol    byte
		ServerName  string
		GameMap     string
		GameFolder  string
		GameName    string
		SteamAppID  int16
		PlayerCount uint8
		MaxPlayers  uint8
		NumBots     uint8
		ServerType  byte
		Environment byte
		Visibility  byte
		VACEnabled  byte
	}
)

var (
	infoRequest        = []byte{0xFF, 0xFF, 0xFF, 0xFF, 0x54}
	infoResponseHeader = []byte{0xFF, 0xFF, 0xFF, 0xFF, 0x49}
)

// NewResponder creates a responder reporting whatever state returns.
func NewResponder(state proto.StateFunc) *Responder {
	return &Responder{state: state}
}

// Respond implements proto.Responder.
func (r *Responder) Respond(_ string, buf []byte) ([]byte, error) {
	if len(buf) < len(infoRequest) || !bytes.Equal(buf[:len(infoRequest)], infoRequest) {
		return nil, UnsupportedQueryError(headerOf(buf))
	}

	s := r.state()
	info := infoResponse{
		Header:      infoResponseHeader,
		Protocol:    1,
		ServerName:  orNotAvailable(s.ServerName),
		GameMap:     orNotAvailable(s.Map),
		GameFolder:  notAvailable,
		GameName:    orNotAvailable(s.GameType),
		PlayerCount: clampUint8(s.CurrentPlayers),
		MaxPlayers:  clampUint8(s.MaxPlayers),
		ServerType:  'd',
		Environment: environment(runtime.GOOS),
	}

	resp := bytes.NewBuffer(nil)
	if err := proto.WireWrite(resp, r.enc, info); err != nil {
		return nil, err
	}

	return resp.Bytes(), nil
}

func headerOf(buf []byte) []byte {
	if len(buf) > len(infoRequest) {
		return buf[:len(infoRequest)]
	}

	return buf
}

func orNotAvailable(s string) string {
	if s == "" {
		return notAvailable
	}

	return s
}

func clampUint8(v int32) uint8 {
	switch {
	case v < 0:
		return 0
	case v > 0xff:
		return 0xff
	}

	return uint8(v)
}

func environment(goos string) byte {
	switch goos {
	case "darwin":
		return 'm'
	case "windows":
		return 'w'
	default:
		return 'l'
	}
}

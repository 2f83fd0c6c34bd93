// Package sqp answers the Server Query Protocol. A client first asks for a
// challenge, then sends a query carrying it back.
package sqp

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/LilDemoness/mech-shooter-netcode/pkg/proto"
)

const (
	version = 1

	// challengeTTL is how long a client has to use its challenge.
	challengeTTL = 30 * time.Second

	challengePacketLength = 5
	queryPacketLength     = 8

	chunkServerInfo = 0x1
)

type (
	// Responder answers SQP packets.
	Responder struct {
		challenges *cache.Cache
		enc        encoder
		state      proto.StateFunc
	}

	challengeResponse struct {
		Header    byte
		Challenge uint32
	}

	queryResponse struct {
		Header           byte
		Challenge        uint32
		Version          uint16
		CurrentPacketNum byte
		LastPacketNum    byte
		PayloadLength    uint16
		ServerInfo       *serverInfoChunk
	}

	serverInfoChunk struct {
		Length uint32
		Info   serverInfo
	}
)

// NewResponder creates a responder reporting whatever state returns.
func NewResponder(state proto.StateFunc) *Responder {
	return &Responder{
		challenges: cache.New(challengeTTL, 2*challengeTTL),
		state:      state,
	}
}

// Respond implements proto.Responder.
func (r *Responder) Respond(clientAddress string, buf []byte) ([]byte, error) {
	switch {
	case isChallenge(buf):
		return r.handleChallenge(clientAddress)
	case len(buf) > 0 && buf[0] == 1:
		return r.handleQuery(clientAddress, buf)
	}

	return nil, ErrUnsupportedQuery
}

func isChallenge(buf []byte) bool {
	return len(buf) >= challengePacketLength &&
		bytes.Equal(buf[:challengePacketLength], make([]byte, challengePacketLength))
}

func (r *Responder) handleChallenge(clientAddress string) ([]byte, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}

	challenge := binary.BigEndian.Uint32(b)
	r.challenges.SetDefault(clientAddress, challenge)

	resp := bytes.NewBuffer(nil)
	if err := proto.WireWrite(resp, r.enc, challengeResponse{Challenge: challenge}); err != nil {
		return nil, err
	}

	return resp.Bytes(), nil
}

func (r *Responder) handleQuery(clientAddress string, buf []byte) ([]byte, error) {
	if len(buf) < queryPacketLength {
		return nil, ErrInvalidPacketLength
	}

	stored, ok := r.challenges.Get(clientAddress)
	if !ok {
		return nil, ErrNoChallenge
	}

	// A challenge is good for one query.
	r.challenges.Delete(clientAddress)

	challenge := stored.(uint32)
	if binary.BigEndian.Uint32(buf[1:5]) != challenge {
		return nil, ErrChallengeMismatch
	}

	if v := binary.BigEndian.Uint16(buf[5:7]); v != version {
		return nil, UnsupportedVersionError(v)
	}

	q := queryResponse{
		Header:    1,
		Challenge: challenge,
		Version:   version,
	}

	if buf[7]&chunkServerInfo != 0 {
		info := newServerInfo(r.state())
		q.ServerInfo = &serverInfoChunk{Length: info.size(), Info: info}
		q.PayloadLength = uint16(4 + q.ServerInfo.Length)
	}

	resp := bytes.NewBuffer(nil)
	if err := proto.WireWrite(resp, r.enc, q); err != nil {
		return nil, err
	}

	return resp.Bytes(), nil
}

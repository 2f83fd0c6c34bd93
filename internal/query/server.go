// Package query serves a host's query port, answering server browsers and
// hosting providers over UDP.
package query

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/LilDemoness/mech-shooter-netcode/pkg/proto"
	"github.com/LilDemoness/mech-shooter-netcode/pkg/proto/a2s"
	"github.com/LilDemoness/mech-shooter-netcode/pkg/proto/sqp"
)

const (
	ProtocolSQP = "sqp"
	ProtocolA2S = "a2s"

	defaultReadBuffer = 16
	writeTimeout      = time.Second
)

var (
	ErrUnknownProtocol = errors.New("unknown query protocol")
	ErrClosed          = errors.New("query server closed")
)

// Server answers queries on a UDP port until closed.
type Server struct {
	logger     *logrus.Entry
	responder  proto.Responder
	readBuffer int

	conn *net.UDPConn
	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

// NewResponder returns the responder for protocol, reporting what state
// returns.
func NewResponder(protocol string, state proto.StateFunc) (proto.Responder, error) {
	switch protocol {
	case ProtocolSQP, "":
		return sqp.NewResponder(state), nil
	case ProtocolA2S:
		return a2s.NewResponder(state), nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownProtocol, protocol)
}

// Listen starts answering queries on address with responder. Packets are
// read into buffers of readBuffer bytes, or 16 when readBuffer is not
// positive.
func Listen(logger *logrus.Entry, address string, responder proto.Responder, readBuffer int) (*Server, error) {
	addr, err := net.ResolveUDPAddr("udp4", address)
	if err != nil {
		return nil, fmt.Errorf("resolve query address: %w", err)
	}

	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on query port: %w", err)
	}

	if readBuffer <= 0 {
		readBuffer = defaultReadBuffer
	}

	s := &Server{
		logger:     logger.WithField("query_address", conn.LocalAddr().String()),
		responder:  responder,
		readBuffer: readBuffer,
		conn:       conn,
		done:       make(chan struct{}),
	}

	s.wg.Add(1)
	go s.serve()

	return s, nil
}

// Addr returns the address the server is listening on.
func (s *Server) Addr() net.Addr {
	return s.conn.LocalAddr()
}

// Close stops the server and waits for it to finish.
func (s *Server) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.conn.Close()
		s.wg.Wait()
	})

	return err
}

func (s *Server) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *Server) serve() {
	defer s.wg.Done()

	for {
		buf := make([]byte, s.readBuffer)

		n, from, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if s.closed() {
				return
			}

			s.logger.WithError(err).Error("read from udp")

			continue
		}

		resp, err := s.responder.Respond(from.String(), buf[:n])
		if err != nil {
			s.logger.
				WithError(err).
				WithField("from", from.String()).
				Debug("error responding to query")

			continue
		}

		if err = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
			s.logger.WithError(err).Error("error setting write deadline")
			continue
		}

		if _, err = s.conn.WriteToUDP(resp, from); err != nil {
			s.logger.WithError(err).Error("error writing response")
		}
	}
}

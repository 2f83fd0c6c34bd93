package event

import (
	"sync"

	"github.com/sirupsen/logrus"
)

type (
	// ReconnectProgress reports which reconnection attempt is under way.
	ReconnectProgress struct {
		Attempt     int
		MaxAttempts int
	}

	// PlayerEvent is published by a host when a player's session identity
	// connects or disconnects.
	PlayerEvent struct {
		PersistentID string
		ClientID     uint64
		Connected    bool
		Reconnecting bool
	}

	// Publisher fans values out to any number of subscribers. Publishing never
	// blocks: a subscriber whose buffer is full misses the value.
	Publisher[T any] struct {
		mu     sync.Mutex
		subs   map[*Subscription[T]]struct{}
		logger *logrus.Entry
	}

	// Subscription receives values from a Publisher until closed.
	Subscription[T any] struct {
		c      chan T
		p      *Publisher[T]
		closed bool
	}
)

// NewPublisher creates a publisher which logs dropped values to logger.
func NewPublisher[T any](logger *logrus.Entry) *Publisher[T] {
	return &Publisher[T]{
		subs:   make(map[*Subscription[T]]struct{}),
		logger: logger,
	}
}

// Subscribe registers a new subscriber with room for buffer pending values.
func (p *Publisher[T]) Subscribe(buffer int) *Subscription[T] {
	if buffer < 1 {
		buffer = 1
	}

	s := &Subscription[T]{
		c: make(chan T, buffer),
		p: p,
	}

	p.mu.Lock()
	p.subs[s] = struct{}{}
	p.mu.Unlock()

	return s
}

// Publish delivers v to every subscriber without waiting on any of them.
func (p *Publisher[T]) Publish(v T) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for s := range p.subs {
		select {
		case s.c <- v:
		default:
			if p.logger != nil {
				p.logger.
					WithField("value", v).
					Warn("subscriber buffer full, dropping event")
			}
		}
	}
}

// Close closes every remaining subscription.
func (p *Publisher[T]) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for s := range p.subs {
		s.closed = true
		close(s.c)
		delete(p.subs, s)
	}
}

// C returns the channel values are delivered on.
func (s *Subscription[T]) C() <-chan T {
	return s.c
}

// Close stops delivery and closes the channel returned by C.
func (s *Subscription[T]) Close() {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()

	if s.closed {
		return
	}

	s.closed = true
	delete(s.p.subs, s)
	close(s.c)
}

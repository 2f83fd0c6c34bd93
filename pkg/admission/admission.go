// Package admission decides whether an inbound connection is let in.
package admission

import (
	"sync"

	"github.com/LilDemoness/mech-shooter-netcode/pkg/event"
)

type (
	// Input is everything Evaluate needs to know about a connection request.
	Input struct {
		ConnectedCount int
		Capacity       int
		Compatible     bool
		Duplicate      bool
	}

	// Decision is the result of an admission check.
	Decision struct {
		Approved bool

		// Reason is set when Approved is false. It is Undefined when the
		// request was refused before it could be read.
		Reason event.ConnectionStatus

		// CreateEntity asks the game to spawn a default entity for the peer.
		CreateEntity bool
	}

	// DuplicateChecker reports whether a persistent player id is already live.
	DuplicateChecker interface {
		IsConnected(persistentID string) bool
	}

	// Controller applies Evaluate to raw connection payloads using the host's
	// limits and its registry of live players.
	Controller struct {
		mu         sync.Mutex
		capacity   int
		maxPayload int
		isDebug    bool
		players    DuplicateChecker
	}
)

// Evaluate approves or rejects a request. Capacity is checked first, then
// build compatibility, then duplicate logins.
func Evaluate(in Input) Decision {
	switch {
	case in.ConnectedCount >= in.Capacity:
		return Decision{Reason: event.ServerFull}
	case !in.Compatible:
		return Decision{Reason: event.IncompatibleBuildType}
	case in.Duplicate:
		return Decision{Reason: event.DuplicateLogin}
	}

	return Decision{Approved: true, Reason: event.Success, CreateEntity: true}
}

// NewController creates a controller for a host running a debug or release
// build, as given by isDebug.
func NewController(players DuplicateChecker, capacity, maxPayload int, isDebug bool) *Controller {
	return &Controller{
		capacity:   capacity,
		maxPayload: maxPayload,
		isDebug:    isDebug,
		players:    players,
	}
}

// SetLimits changes the capacity and payload cap for later checks.
func (c *Controller) SetLimits(capacity, maxPayload int) {
	c.mu.Lock()
	c.capacity = capacity
	c.maxPayload = maxPayload
	c.mu.Unlock()
}

// Limits returns the current capacity and payload cap.
func (c *Controller) Limits() (capacity, maxPayload int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.capacity, c.maxPayload
}

// Check decodes raw and evaluates it against connected live players. A
// payload that cannot be decoded is rejected along with the decode error.
func (c *Controller) Check(raw []byte, connected int) (ConnectionPayload, Decision, error) {
	capacity, maxPayload := c.Limits()

	p, err := DecodePayload(raw, maxPayload)
	if err != nil {
		return p, Decision{}, err
	}

	d := Evaluate(Input{
		ConnectedCount: connected,
		Capacity:       capacity,
		Compatible:     p.IsDebug == c.isDebug,
		Duplicate:      c.players.IsConnected(p.PlayerID),
	})

	return p, d, nil
}

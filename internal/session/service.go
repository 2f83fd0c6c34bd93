// Package session talks to the managed session backend that hands out
// addresses for hosted games.
package session

import (
	"context"
	"errors"
	"net"
	"strconv"
)

var (
	// ErrSessionNotFound is returned when a session does not exist, or no
	// longer exists.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExists is returned when creating a session with an id in use.
	ErrSessionExists = errors.New("session already exists")

	// ErrNoCapacity is returned when the backend has no port left to assign.
	ErrNoCapacity = errors.New("no capacity for another session")
)

type (
	// Session is a hosted game registered with the backend.
	Session struct {
		ID         string `json:"id"`
		Name       string `json:"name"`
		IP         string `json:"ip"`
		Port       int    `json:"port"`
		MaxPlayers int    `json:"maxPlayers"`
	}

	// CreateRequest describes a session to create. An empty ID asks the
	// service to generate one.
	CreateRequest struct {
		ID         string
		Name       string
		MaxPlayers int
	}

	// Service creates, finds and removes sessions.
	Service interface {
		// Create registers a session and returns it once it has an address.
		Create(ctx context.Context, req CreateRequest) (*Session, error)

		// Lookup returns the session with the given id.
		Lookup(ctx context.Context, id string) (*Session, error)

		// Delete removes the session with the given id.
		Delete(ctx context.Context, id string) error
	}
)

// Address returns the session's address in host:port form.
func (s Session) Address() string {
	return net.JoinHostPort(s.IP, strconv.Itoa(s.Port))
}

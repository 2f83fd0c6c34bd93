// Package identity tracks which durable player identity is behind each
// transport connection, and keeps a player's payload alive while they are away.
package identity

import (
	"errors"
	"sync"
)

// ClientID is the transport-assigned identifier of a single connection. It is
// not stable across reconnects.
type ClientID uint64

var (
	// ErrDuplicateLogin is returned when a persistent id already has a live connection.
	ErrDuplicateLogin = errors.New("player is already connected")

	// ErrClientIDInUse is returned when a client id already maps to another live player.
	ErrClientIDInUse = errors.New("client id already in use")

	// ErrEmptyPersistentID is returned when a player has no persistent id.
	ErrEmptyPersistentID = errors.New("persistent id must be provided")
)

type (
	// Identity is the record kept for one durable player.
	Identity[P any] struct {
		// PersistentID survives reconnects.
		PersistentID string

		// ClientID is only meaningful while Connected is true.
		ClientID ClientID

		Connected bool

		// Payload is game data carried across reconnects.
		Payload P
	}

	// Hooks are invoked after the registry has committed a change. They run
	// while the registry is locked and must not call back into it.
	Hooks[P any] struct {
		OnConnected    func(id Identity[P], reconnecting bool)
		OnDisconnected func(id Identity[P])
	}

	// Option configures a Registry.
	Option[P any] func(*Registry[P])

	// Registry maps persistent player ids to their identity records and live
	// client ids to persistent ids.
	Registry[P any] struct {
		mu sync.Mutex

		// players is keyed by persistent id.
		players map[string]*Identity[P]

		// clients maps live client ids to persistent ids.
		clients map[ClientID]string

		// started switches disconnects from purging to retaining.
		started bool

		reinit func(P) P
		hooks  Hooks[P]
	}
)

// WithReinitialize sets the function applied to connected players' payloads
// when a session ends.
func WithReinitialize[P any](fn func(P) P) Option[P] {
	return func(r *Registry[P]) {
		r.reinit = fn
	}
}

// WithHooks sets the connect and disconnect notifications.
func WithHooks[P any](h Hooks[P]) Option[P] {
	return func(r *Registry[P]) {
		r.hooks = h
	}
}

// NewRegistry creates an empty registry.
func NewRegistry[P any](opts ...Option[P]) *Registry[P] {
	r := &Registry[P]{
		players: make(map[string]*Identity[P]),
		clients: make(map[ClientID]string),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// SetupConnectingPlayer binds clientID to persistentID.
//
// A player with a live connection is rejected with ErrDuplicateLogin and the
// registry is left untouched. A player who is known but disconnected gets
// their stored payload back and reconnecting is true. Anyone else gets a
// fresh record holding initial.
func (r *Registry[P]) SetupConnectingPlayer(clientID ClientID, persistentID string, initial P) (reconnecting bool, err error) {
	if persistentID == "" {
		return false, ErrEmptyPersistentID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if owner, ok := r.clients[clientID]; ok && owner != persistentID {
		return false, ErrClientIDInUse
	}

	rec, ok := r.players[persistentID]
	switch {
	case ok && rec.Connected:
		return false, ErrDuplicateLogin

	case ok:
		reconnecting = true
		rec.ClientID = clientID
		rec.Connected = true

	default:
		rec = &Identity[P]{
			PersistentID: persistentID,
			ClientID:     clientID,
			Connected:    true,
			Payload:      initial,
		}
		r.players[persistentID] = rec
	}

	r.clients[clientID] = persistentID

	if r.hooks.OnConnected != nil {
		r.hooks.OnConnected(*rec, reconnecting)
	}

	return reconnecting, nil
}

// DisconnectClient handles the connection behind clientID going away. Before
// the session starts the player is forgotten entirely; afterwards their record
// is kept, marked disconnected, so a reconnect can resume it.
func (r *Registry[P]) DisconnectClient(clientID ClientID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	persistentID, ok := r.clients[clientID]
	if !ok {
		return
	}

	delete(r.clients, clientID)

	rec, ok := r.players[persistentID]
	if !ok {
		return
	}

	rec.Connected = false
	if !r.started {
		delete(r.players, persistentID)
	}

	if r.hooks.OnDisconnected != nil {
		r.hooks.OnDisconnected(*rec)
	}
}

// PersistentID returns the persistent id currently bound to clientID.
func (r *Registry[P]) PersistentID(clientID ClientID) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.clients[clientID]

	return id, ok
}

// Identity returns a copy of the record for persistentID.
func (r *Registry[P]) Identity(persistentID string) (Identity[P], bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.players[persistentID]
	if !ok {
		return Identity[P]{}, false
	}

	return *rec, true
}

// IsConnected reports whether persistentID has a live connection.
func (r *Registry[P]) IsConnected(persistentID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.players[persistentID]

	return ok && rec.Connected
}

// ConnectedCount returns the number of live records.
func (r *Registry[P]) ConnectedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.clients)
}

// ClientIDs returns the client ids of every live record, in no particular order.
func (r *Registry[P]) ClientIDs() []ClientID {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]ClientID, 0, len(r.clients))
	for id := range r.clients {
		ids = append(ids, id)
	}

	return ids
}

// Len returns the number of records, connected or not.
func (r *Registry[P]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.players)
}

// Payload returns the payload of the player behind clientID.
func (r *Registry[P]) Payload(clientID ClientID) (P, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero P
	persistentID, ok := r.clients[clientID]
	if !ok {
		return zero, false
	}

	rec, ok := r.players[persistentID]
	if !ok {
		return zero, false
	}

	return rec.Payload, true
}

// PayloadByPersistentID returns the payload stored for persistentID.
func (r *Registry[P]) PayloadByPersistentID(persistentID string) (P, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.players[persistentID]
	if !ok {
		var zero P
		return zero, false
	}

	return rec.Payload, true
}

// SetPayload replaces the payload of the player behind clientID.
func (r *Registry[P]) SetPayload(clientID ClientID, payload P) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	persistentID, ok := r.clients[clientID]
	if !ok {
		return false
	}

	rec, ok := r.players[persistentID]
	if !ok {
		return false
	}

	rec.Payload = payload

	return true
}

// SetPayloadByPersistentID replaces the payload stored for persistentID.
func (r *Registry[P]) SetPayloadByPersistentID(persistentID string, payload P) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.players[persistentID]
	if !ok {
		return false
	}

	rec.Payload = payload

	return true
}

// OnSessionStarted makes later disconnects retain the player's record.
func (r *Registry[P]) OnSessionStarted() {
	r.mu.Lock()
	r.started = true
	r.mu.Unlock()
}

// OnSessionEnded forgets every disconnected player and reinitializes the
// payload of every connected one for the next round, which has not started yet.
func (r *Registry[P]) OnSessionEnded() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.started = false

	for id, rec := range r.players {
		if !rec.Connected {
			delete(r.players, id)
			continue
		}

		if r.reinit != nil {
			rec.Payload = r.reinit(rec.Payload)
		}
	}
}

// OnHostingLifetimeEnded clears everything so the registry can serve another
// hosting run.
func (r *Registry[P]) OnHostingLifetimeEnded() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.players = make(map[string]*Identity[P])
	r.clients = make(map[ClientID]string)
	r.started = false
}

package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// MemoryService is an in-process Service. Sessions expire after a TTL unless
// deleted sooner, and each one holds a port from a fixed pool until it goes.
type MemoryService struct {
	ip       string
	sessions *cache.Cache

	mu    sync.Mutex
	ports []int
}

// NewMemoryService returns a service that hands out ip with ports
// firstPort to firstPort+numPorts-1. Sessions live for ttl.
func NewMemoryService(ip string, firstPort, numPorts int, ttl time.Duration) *MemoryService {
	m := &MemoryService{
		ip:       ip,
		sessions: cache.New(ttl, ttl/2+time.Second),
		ports:    make([]int, 0, numPorts),
	}

	for p := firstPort; p < firstPort+numPorts; p++ {
		m.ports = append(m.ports, p)
	}

	// Called on Delete as well as expiry.
	m.sessions.OnEvicted(func(_ string, v interface{}) {
		if s, ok := v.(*Session); ok {
			m.releasePort(s.Port)
		}
	})

	return m
}

// Create implements Service.
func (m *MemoryService) Create(_ context.Context, req CreateRequest) (*Session, error) {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}

	port, ok := m.acquirePort()
	if !ok {
		return nil, ErrNoCapacity
	}

	s := &Session{
		ID:         req.ID,
		Name:       req.Name,
		IP:         m.ip,
		Port:       port,
		MaxPlayers: req.MaxPlayers,
	}

	if err := m.sessions.Add(req.ID, s, cache.DefaultExpiration); err != nil {
		m.releasePort(port)
		return nil, ErrSessionExists
	}

	out := *s

	return &out, nil
}

// Lookup implements Service.
func (m *MemoryService) Lookup(_ context.Context, id string) (*Session, error) {
	v, ok := m.sessions.Get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}

	out := *v.(*Session)

	return &out, nil
}

// Delete implements Service.
func (m *MemoryService) Delete(_ context.Context, id string) error {
	if _, ok := m.sessions.Get(id); !ok {
		return ErrSessionNotFound
	}

	m.sessions.Delete(id)

	return nil
}

// List returns every live session.
func (m *MemoryService) List() []Session {
	items := m.sessions.Items()
	out := make([]Session, 0, len(items))

	for _, it := range items {
		out = append(out, *it.Object.(*Session))
	}

	return out
}

func (m *MemoryService) acquirePort() (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.ports) == 0 {
		return 0, false
	}

	p := m.ports[0]
	m.ports = m.ports[1:]

	return p, true
}

func (m *MemoryService) releasePort(p int) {
	m.mu.Lock()
	m.ports = append(m.ports, p)
	m.mu.Unlock()
}

package connection

import (
	"context"
	"sync"

	"github.com/LilDemoness/mech-shooter-netcode/internal/method"
	"github.com/LilDemoness/mech-shooter-netcode/internal/transport"
	"github.com/LilDemoness/mech-shooter-netcode/pkg/identity"
)

// fakeTransport records what the coordinator asks of it. Tests play the
// network by calling the handler directly.
type fakeTransport struct {
	mu sync.Mutex
	h  transport.Handler

	running      bool
	startHostErr error

	// serveOnStart reports the server started after every StartHost.
	serveOnStart bool

	hostStarts   []transport.Endpoint
	clientStarts []transport.Endpoint
	shutdowns    int
	dropped      map[identity.ClientID]string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		serveOnStart: true,
		dropped:      make(map[identity.ClientID]string),
	}
}

func (f *fakeTransport) SetHandler(h transport.Handler) {
	f.mu.Lock()
	f.h = h
	f.mu.Unlock()
}

func (f *fakeTransport) handler() transport.Handler {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.h
}

func (f *fakeTransport) StartHost(_ context.Context, ep transport.Endpoint) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.startHostErr != nil {
		return f.startHostErr
	}

	f.running = true
	f.hostStarts = append(f.hostStarts, ep)

	if f.serveOnStart {
		go f.h.OnServerStarted()
	}

	return nil
}

func (f *fakeTransport) StartClient(_ context.Context, ep transport.Endpoint, _ []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.running = true
	f.clientStarts = append(f.clientStarts, ep)

	return nil
}

func (f *fakeTransport) DisconnectPeer(id identity.ClientID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.dropped[id] = reason

	return nil
}

func (f *fakeTransport) Shutdown(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.running = false
	f.shutdowns++

	return nil
}

func (f *fakeTransport) LocalID() identity.ClientID {
	return transport.HostID
}

func (f *fakeTransport) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.running
}

func (f *fakeTransport) clientStartCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.clientStarts)
}

func (f *fakeTransport) droppedReason(id identity.ClientID) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	reason, ok := f.dropped[id]

	return reason, ok
}

// fakeMethod answers reconnect attempts from a script. The last entry
// repeats once the script runs out.
type fakeMethod struct {
	mu sync.Mutex

	endpoint   transport.Endpoint
	prepareErr error
	script     []method.ReconnectResult

	reconnects int
	teardowns  int
}

func newFakeMethod(script ...method.ReconnectResult) *fakeMethod {
	return &fakeMethod{
		endpoint: transport.Endpoint{Address: "127.0.0.1:9998"},
		script:   script,
	}
}

func (f *fakeMethod) Name() string {
	return "fake"
}

func (f *fakeMethod) PrepareHost(context.Context) (transport.Endpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.endpoint, f.prepareErr
}

func (f *fakeMethod) PrepareClient(context.Context) (transport.Endpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.endpoint, f.prepareErr
}

func (f *fakeMethod) SetupReconnect(context.Context) (transport.Endpoint, method.ReconnectResult) {
	f.mu.Lock()
	defer f.mu.Unlock()

	res := method.ReconnectResult{Success: true, ShouldRetry: true}
	if len(f.script) > 0 {
		i := f.reconnects
		if i >= len(f.script) {
			i = len(f.script) - 1
		}
		res = f.script[i]
	}

	f.reconnects++

	return f.endpoint, res
}

func (f *fakeMethod) Teardown(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.teardowns++

	return nil
}

func (f *fakeMethod) reconnectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.reconnects
}

func (f *fakeMethod) teardownCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.teardowns
}

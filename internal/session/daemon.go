package session

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/centrifugal/centrifuge-go"
	"github.com/sirupsen/logrus"
)

const (
	DaemonRequestTimeout = 2 * time.Second
	ReadyForPlayersPath  = "/v1/server/%d/allocation/%s/ready-for-players"

	// subscribeRetryDelay is waited before retrying a failed subscription.
	subscribeRetryDelay = time.Second
)

type (
	// AllocateCallback is called when an Allocate event is received.
	AllocateCallback func(AllocateEvent)

	// DeallocateCallback is called when a Deallocate event is received.
	DeallocateCallback func(DeallocateEvent)

	// DaemonClient listens to the hosting daemon for allocation events.
	//
	// Callers MUST read from Errors().
	DaemonClient struct {
		client *centrifuge.Client
		sub    *centrifuge.Subscription
		url    string
		logger *logrus.Entry

		errc chan error
		done chan struct{}
		once sync.Once

		mu           sync.Mutex
		allocateFunc AllocateCallback
		deallocFunc  DeallocateCallback
	}

	// subscriptionHandler keeps the centrifuge callbacks off the public API.
	subscriptionHandler struct {
		d *DaemonClient
	}
)

// NewDaemonClient returns a client for the daemon listening on url.
func NewDaemonClient(url string, l *logrus.Entry) *DaemonClient {
	wsURL := fmt.Sprintf("ws://%s/v1/connection/websocket", url)

	return &DaemonClient{
		client: centrifuge.NewJsonClient(wsURL, centrifuge.DefaultConfig()),
		url:    url,
		logger: l,
		errc:   make(chan error, 8),
		done:   make(chan struct{}),
	}
}

// Connect connects to the daemon.
func (d *DaemonClient) Connect() error {
	return d.client.Connect()
}

// Subscribe subscribes to the events of the given server.
func (d *DaemonClient) Subscribe(serverID int64) error {
	sub, err := d.client.NewSubscription(serverChannel(serverID))
	if err != nil {
		return fmt.Errorf("new subscription: %w", err)
	}

	h := &subscriptionHandler{d: d}
	sub.OnPublish(h)
	sub.OnSubscribeError(h)
	sub.OnSubscribeSuccess(h)

	d.mu.Lock()
	d.sub = sub
	d.mu.Unlock()

	if err = sub.Subscribe(); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	d.logger.
		WithField("channel", sub.Channel()).
		Info("subscribed")

	return nil
}

// OnAllocate executes cb when an Allocate event is received.
func (d *DaemonClient) OnAllocate(cb AllocateCallback) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.allocateFunc = cb
}

// OnDeallocate executes cb when a Deallocate event is received.
func (d *DaemonClient) OnDeallocate(cb DeallocateCallback) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deallocFunc = cb
}

// ReadyForPlayers tells the daemon the server is ready for players.
func (d *DaemonClient) ReadyForPlayers(ctx context.Context, serverID int64, allocationID string) error {
	url := fmt.Sprintf("http://%s"+ReadyForPlayersPath, d.url, serverID, allocationID)

	ctx, cancel := context.WithTimeout(ctx, DaemonRequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("ready for players request: %w", err)
	}

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to daemon: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return UnexpectedHTTPStatusError(res.StatusCode)
	}

	return nil
}

// Errors returns a channel of underlying errors from the client.
//
// Callers MUST call this method to read from the channel.
func (d *DaemonClient) Errors() <-chan error {
	return d.errc
}

// Close stops any subscription retries and closes the connection.
func (d *DaemonClient) Close() error {
	var err error
	d.once.Do(func() {
		close(d.done)
		err = d.client.Close()
	})

	return err
}

// dispatch decodes a published event and hands it to its callback.
func (d *DaemonClient) dispatch(data []byte) {
	evt, err := UnmarshalEventJSON(data)
	if err != nil {
		d.sendError(err)
		return
	}

	d.mu.Lock()
	onAllocate, onDeallocate := d.allocateFunc, d.deallocFunc
	d.mu.Unlock()

	switch e := evt.(type) {
	case AllocateEvent:
		if onAllocate != nil {
			onAllocate(e)
		}
	case DeallocateEvent:
		if onDeallocate != nil {
			onDeallocate(e)
		}
	}
}

func (d *DaemonClient) sendError(err error) {
	select {
	case d.errc <- err:
	case <-d.done:
	}
}

// OnPublish implements centrifuge.PublishHandler.
func (h *subscriptionHandler) OnPublish(_ *centrifuge.Subscription, e centrifuge.PublishEvent) {
	h.d.dispatch(e.Data)
}

// OnSubscribeError implements centrifuge.SubscribeErrorHandler.
func (h *subscriptionHandler) OnSubscribeError(s *centrifuge.Subscription, e centrifuge.SubscribeErrorEvent) {
	h.d.logger.
		WithError(SubscribeError(e.Error)).
		WithField("channel", s.Channel()).
		Error("failed to subscribe")

	// The server may start before the daemon knows about it, so keep trying.
	select {
	case <-h.d.done:
		return
	case <-time.After(subscribeRetryDelay):
	}

	if err := s.Subscribe(); err != nil {
		h.d.logger.
			WithError(err).
			WithField("channel", s.Channel()).
			Error("failed to subscribe")
	}
}

// OnSubscribeSuccess implements centrifuge.SubscribeSuccessHandler.
func (h *subscriptionHandler) OnSubscribeSuccess(s *centrifuge.Subscription, _ centrifuge.SubscribeSuccessEvent) {
	h.d.logger.
		WithField("channel", s.Channel()).
		Info("subscribed to channel")
}

// serverChannel returns the daemon channel name for the given server ID. It
// sits behind a user channel boundary so only that server may subscribe.
func serverChannel(serverID int64) string {
	return fmt.Sprintf("server#%d", serverID)
}

package live

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/buidlco/clubchat/internal/chat"
	"github.com/buidlco/clubchat/internal/logger"
	"github.com/buidlco/clubchat/internal/models"
	"github.com/buidlco/clubchat/internal/realtime"
)

// errRealtimeDisabled is returned when no gateway URL was configured.
var errRealtimeDisabled = errors.New("chat: realtime gateway not configured")

type channelSub struct {
	onMessage func(models.Message)
	onError   func(error)
}

// realtimeClient maintains one websocket connection to the clubchatd gateway
// and a per-channel subscriber registry. Entries are removed on unsubscribe
// so the registry cannot leak across channel switches.
type realtimeClient struct {
	url string
	log *logger.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	subs      map[string]map[int64]channelSub // channelID -> token -> callbacks
	nextToken int64
	closed    bool

	writeMu sync.Mutex
}

func newRealtimeClient(url string, log *logger.Logger) *realtimeClient {
	return &realtimeClient{
		url:  url,
		log:  log,
		subs: make(map[string]map[int64]channelSub),
	}
}

// ensureConnLocked dials the gateway on first use and starts the read loop.
// Callers must hold c.mu.
func (c *realtimeClient) ensureConnLocked() error {
	if c.closed {
		return errors.New("chat: realtime client closed")
	}
	if c.conn != nil {
		return nil
	}
	if c.url == "" {
		return errRealtimeDisabled
	}

	conn, _, err := websocket.DefaultDialer.Dial(c.url, nil)
	if err != nil {
		return fmt.Errorf("dial realtime gateway: %w", err)
	}
	c.conn = conn
	go c.readLoop(conn)
	c.log.Info("realtime gateway connected", "url", c.url)
	return nil
}

func (c *realtimeClient) writeEvent(conn *websocket.Conn, ev realtime.Event) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(ev)
}

// subscribe registers the callbacks and, for the first subscriber of a
// channel, tells the gateway to start routing that channel's events here.
// With no gateway configured, push is disabled: the subscription succeeds
// but never delivers, rather than surfacing an error on every channel
// switch.
func (c *realtimeClient) subscribe(channelID string, onMessage func(models.Message), onError func(error)) (chat.CancelFunc, error) {
	if c.url == "" {
		return func() {}, nil
	}

	c.mu.Lock()
	if err := c.ensureConnLocked(); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	conn := c.conn

	first := len(c.subs[channelID]) == 0
	if c.subs[channelID] == nil {
		c.subs[channelID] = make(map[int64]channelSub)
	}
	c.nextToken++
	token := c.nextToken
	c.subs[channelID][token] = channelSub{onMessage: onMessage, onError: onError}
	c.mu.Unlock()

	if first {
		if err := c.writeEvent(conn, realtime.Event{Type: realtime.TypeSubscribe, ChannelID: channelID}); err != nil {
			c.mu.Lock()
			delete(c.subs[channelID], token)
			if len(c.subs[channelID]) == 0 {
				delete(c.subs, channelID)
			}
			c.mu.Unlock()
			return nil, fmt.Errorf("subscribe channel: %w", err)
		}
	}

	return func() { c.unsubscribe(channelID, token) }, nil
}

func (c *realtimeClient) unsubscribe(channelID string, token int64) {
	c.mu.Lock()
	set, ok := c.subs[channelID]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(set, token)
	last := len(set) == 0
	if last {
		delete(c.subs, channelID)
	}
	conn := c.conn
	c.mu.Unlock()

	if last && conn != nil {
		if err := c.writeEvent(conn, realtime.Event{Type: realtime.TypeUnsubscribe, ChannelID: channelID}); err != nil {
			c.log.Warn("unsubscribe write failed", "channel_id", channelID, "error", err)
		}
	}
}

// publish forwards a mutation event to the gateway so it can fan out to all
// subscribers of the channel. A missing gateway is logged and swallowed; the
// mutation itself has already been persisted.
func (c *realtimeClient) publish(ev realtime.Event) {
	c.mu.Lock()
	err := c.ensureConnLocked()
	conn := c.conn
	c.mu.Unlock()

	if err != nil {
		if !errors.Is(err, errRealtimeDisabled) {
			c.log.Warn("realtime publish skipped", "channel_id", ev.ChannelID, "error", err)
		}
		return
	}
	if err := c.writeEvent(conn, ev); err != nil {
		c.log.Warn("realtime publish failed", "channel_id", ev.ChannelID, "error", err)
	}
}

// readLoop dispatches pushed events to the registered subscribers. On a read
// failure every subscriber's error callback fires once and the connection is
// dropped; there is no automatic resubscribe, recovery is caller-initiated.
func (c *realtimeClient) readLoop(conn *websocket.Conn) {
	for {
		var ev realtime.Event
		if err := conn.ReadJSON(&ev); err != nil {
			c.handleDisconnect(conn, err)
			return
		}

		switch ev.Type {
		case realtime.TypeMessage:
			if ev.Message == nil {
				continue
			}
			c.mu.Lock()
			var targets []channelSub
			for _, sub := range c.subs[ev.ChannelID] {
				targets = append(targets, sub)
			}
			c.mu.Unlock()
			for _, sub := range targets {
				sub.onMessage(*ev.Message)
			}
		case realtime.TypeError:
			c.log.Warn("gateway error event", "error", ev.Error)
		}
	}
}

func (c *realtimeClient) handleDisconnect(conn *websocket.Conn, err error) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	var targets []channelSub
	for _, set := range c.subs {
		for _, sub := range set {
			targets = append(targets, sub)
		}
	}
	closed := c.closed
	c.mu.Unlock()

	conn.Close()
	if closed {
		return
	}

	c.log.Warn("realtime connection lost", "error", err)
	for _, sub := range targets {
		if sub.onError != nil {
			sub.onError(fmt.Errorf("real-time connection lost: %w", err))
		}
	}
}

func (c *realtimeClient) close() error {
	c.mu.Lock()
	c.closed = true
	conn := c.conn
	c.conn = nil
	c.subs = make(map[string]map[int64]channelSub)
	c.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}

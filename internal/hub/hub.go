// Package hub fans realtime events out to websocket clients. Routing is
// keyed by channel id: a client receives a message event only for channels
// it has subscribed to.
package hub

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/buidlco/clubchat/internal/logger"
	"github.com/buidlco/clubchat/internal/realtime"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period
	pingPeriod = (pongWait * 9) / 10

	// Maximum inbound frame size allowed
	maxMessageSize = 8192
)

type subRequest struct {
	client    *Client
	channelID string
}

// Hub maintains the set of active clients and the per-channel subscriber
// index.
type Hub struct {
	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Subscription changes from client read pumps.
	subscribe   chan subRequest
	unsubscribe chan subRequest

	// Inbound publish events to fan out.
	publish chan realtime.Event

	clients        map[*Client]bool
	channelClients map[string]map[*Client]bool

	log *logger.Logger
}

// Client represents one websocket connection.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan realtime.Event
	UserID string
}

// NewHub creates a hub. Run must be started on its own goroutine.
func NewHub() *Hub {
	return &Hub{
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		subscribe:      make(chan subRequest),
		unsubscribe:    make(chan subRequest),
		publish:        make(chan realtime.Event, 64),
		clients:        make(map[*Client]bool),
		channelClients: make(map[string]map[*Client]bool),
		log:            logger.NewLogger("realtime-hub"),
	}
}

// NewClient wraps an upgraded connection and registers it with the hub.
func (h *Hub) NewClient(conn *websocket.Conn, userID string) *Client {
	c := &Client{
		hub:    h,
		conn:   conn,
		send:   make(chan realtime.Event, 64),
		UserID: userID,
	}
	h.register <- c
	return c
}

// Run owns all hub state; every mutation goes through its select loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			h.log.Debug("client registered", "user_id", client.UserID)

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				for channelID, set := range h.channelClients {
					delete(set, client)
					if len(set) == 0 {
						delete(h.channelClients, channelID)
					}
				}
				close(client.send)
			}

		case req := <-h.subscribe:
			if _, ok := h.clients[req.client]; !ok {
				continue
			}
			if h.channelClients[req.channelID] == nil {
				h.channelClients[req.channelID] = make(map[*Client]bool)
			}
			h.channelClients[req.channelID][req.client] = true
			h.log.Debug("channel subscribed", "channel_id", req.channelID, "user_id", req.client.UserID)

		case req := <-h.unsubscribe:
			if set, ok := h.channelClients[req.channelID]; ok {
				delete(set, req.client)
				if len(set) == 0 {
					delete(h.channelClients, req.channelID)
				}
			}

		case ev := <-h.publish:
			out := realtime.Event{
				Type:      realtime.TypeMessage,
				ChannelID: ev.ChannelID,
				Op:        ev.Op,
				Message:   ev.Message,
			}
			for client := range h.channelClients[ev.ChannelID] {
				select {
				case client.send <- out:
				default:
					// Slow consumer; drop it rather than block the hub.
					delete(h.clients, client)
					for _, set := range h.channelClients {
						delete(set, client)
					}
					close(client.send)
				}
			}
		}
	}
}

// Publish queues an event for fan-out to the channel's subscribers.
func (h *Hub) Publish(ev realtime.Event) {
	h.publish <- ev
}

// ReadPump pumps control frames from the websocket connection to the hub.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var ev realtime.Event
		if err := c.conn.ReadJSON(&ev); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn("unexpected close", "user_id", c.UserID, "error", err)
			}
			break
		}

		switch ev.Type {
		case realtime.TypeSubscribe:
			if ev.ChannelID != "" {
				c.hub.subscribe <- subRequest{client: c, channelID: ev.ChannelID}
			}
		case realtime.TypeUnsubscribe:
			if ev.ChannelID != "" {
				c.hub.unsubscribe <- subRequest{client: c, channelID: ev.ChannelID}
			}
		case realtime.TypePublish:
			if ev.ChannelID != "" && ev.Message != nil {
				c.hub.publish <- ev
			}
		}
	}
}

// WritePump pumps events from the hub to the websocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

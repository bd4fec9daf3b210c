// Package session owns the client-side chat state for one mounted chat
// view: the active channel, its message list, the pagination cursor and the
// error slot. All reads and writes between the UI and the backend adapter go
// through the Controller, which also manages the realtime subscription
// lifecycle per active channel.
package session

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/buidlco/clubchat/internal/chat"
	"github.com/buidlco/clubchat/internal/logger"
	"github.com/buidlco/clubchat/internal/models"
)

// DefaultPageSize is the number of messages fetched per page.
const DefaultPageSize = 50

// Snapshot is an immutable copy of the controller state handed to the UI.
type Snapshot struct {
	Channels        []models.Channel
	ActiveChannelID string
	Messages        []models.Message
	Loading         bool
	HasMore         bool
	Err             string
}

// Controller mediates between the UI and a chat.Service. One controller
// instance belongs to one mounted chat view; there is no cross-instance
// sharing.
type Controller struct {
	svc      chat.Service
	log      *logger.Logger
	clubID   string
	userID   string
	pageSize int

	mu        sync.Mutex
	channels  []models.Channel
	activeID  string
	messages  []models.Message
	offset    int
	hasMore   bool
	loading   bool
	lastErr   string
	epoch     uint64
	cancelSub chat.CancelFunc
	onChange  func(Snapshot)
	closed    bool
}

// NewController creates a controller for one club and user.
func NewController(svc chat.Service, clubID, userID string) *Controller {
	return &Controller{
		svc:      svc,
		log:      logger.NewLogger("chat-session"),
		clubID:   clubID,
		userID:   userID,
		pageSize: DefaultPageSize,
	}
}

// SetPageSize overrides the message page size. Must be called before Start.
func (c *Controller) SetPageSize(n int) {
	if n > 0 {
		c.pageSize = n
	}
}

// OnChange registers a callback invoked after every state change. The
// callback receives a snapshot and must not call back into the controller
// synchronously.
func (c *Controller) OnChange(fn func(Snapshot)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// Start loads the club's channel list and, if no channel is active yet,
// selects the first text channel.
func (c *Controller) Start(ctx context.Context) {
	channels, err := c.svc.ClubChannels(ctx, c.clubID)
	if err != nil {
		c.setError("Failed to load channels")
		c.log.Error("channel list load failed", "club_id", c.clubID, "error", err)
		return
	}

	c.mu.Lock()
	c.channels = channels
	active := c.activeID
	c.mu.Unlock()
	c.notify()

	if active == "" {
		for _, ch := range channels {
			if ch.Kind == models.ChannelKindText {
				c.SwitchChannel(ctx, ch.ID)
				return
			}
		}
	}
}

// SwitchChannel makes channelID the active channel. The current message list
// and pagination cursor are cleared synchronously, the old subscription is
// torn down before the new one is established, and a fresh page is loaded.
// Responses from loads issued before the switch are discarded.
func (c *Controller) SwitchChannel(ctx context.Context, channelID string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.epoch++
	epoch := c.epoch
	c.activeID = channelID
	c.messages = nil
	c.offset = 0
	c.hasMore = false
	c.loading = false
	cancel := c.cancelSub
	c.cancelSub = nil
	c.mu.Unlock()
	c.notify()

	// Old subscription goes first so a push for the prior channel cannot
	// land between teardown and the new subscribe.
	if cancel != nil {
		cancel()
	}

	sub, err := c.svc.Subscribe(channelID,
		func(msg models.Message) { c.handlePush(msg) },
		func(err error) {
			c.setError("Real-time connection lost")
			c.log.Warn("subscription error", "channel_id", channelID, "error", err)
		},
	)
	if err != nil {
		c.setError("Real-time connection unavailable")
		c.log.Warn("subscribe failed", "channel_id", channelID, "error", err)
	} else {
		c.mu.Lock()
		if c.epoch != epoch {
			// Lost a switch race; this subscription is already stale.
			c.mu.Unlock()
			sub()
		} else {
			c.cancelSub = sub
			c.mu.Unlock()
		}
	}

	c.loadPage(ctx, channelID, epoch)
}

// LoadMore fetches the page older than what is currently displayed. It is a
// no-op while a load is in flight or when the channel is exhausted.
func (c *Controller) LoadMore(ctx context.Context) {
	c.mu.Lock()
	if c.loading || !c.hasMore || c.activeID == "" {
		c.mu.Unlock()
		return
	}
	// Claim the loading flag in the same critical section as the guard so
	// two overlapping LoadMore calls cannot both fetch the same offset.
	c.loading = true
	channelID := c.activeID
	epoch := c.epoch
	c.mu.Unlock()

	c.loadPage(ctx, channelID, epoch)
}

// loadPage fetches one page and merges it if the controller still shows the
// channel the fetch was issued for. Older pages are prepended; the UI is
// responsible for restoring the scroll anchor after a prepend.
func (c *Controller) loadPage(ctx context.Context, channelID string, epoch uint64) {
	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return
	}
	offset := c.offset
	c.loading = true
	c.mu.Unlock()
	c.notify()

	page, err := c.svc.ChannelMessages(ctx, channelID, c.pageSize, offset)

	c.mu.Lock()
	if c.epoch != epoch {
		// The active channel changed while this fetch was in flight.
		c.mu.Unlock()
		return
	}
	c.loading = false
	if err != nil {
		c.lastErr = "Failed to load messages"
		c.mu.Unlock()
		c.log.Error("message page load failed", "channel_id", channelID, "error", err)
		c.notify()
		return
	}

	if offset == 0 && len(c.messages) == 0 {
		c.messages = page
	} else {
		// A send or push may have landed since the offset was measured,
		// shifting the newest-end window so the fetched page overlaps the
		// displayed list. Merge by id so nothing renders twice.
		seen := make(map[string]bool, len(c.messages))
		for _, m := range c.messages {
			seen[m.ID] = true
		}
		var fresh []models.Message
		for _, m := range page {
			if !seen[m.ID] {
				fresh = append(fresh, m)
			}
		}
		c.messages = append(fresh, c.messages...)
	}
	c.offset += len(page)
	c.hasMore = len(page) == c.pageSize
	c.mu.Unlock()
	c.notify()
}

// Send validates and sends a message. Empty or whitespace-only content is
// rejected locally without surfacing an error. On success the created
// message is appended locally; the realtime push for the same id is
// reconciled by replacement, so both adapter variants behave identically.
func (c *Controller) Send(ctx context.Context, content, replyToID string) {
	if strings.TrimSpace(content) == "" {
		return
	}

	c.mu.Lock()
	channelID := c.activeID
	c.mu.Unlock()
	if channelID == "" {
		return
	}

	msg, err := c.svc.SendMessage(ctx, chat.SendMessageParams{
		ChannelID: channelID,
		AuthorID:  c.userID,
		Content:   content,
		Kind:      models.MessageKindText,
		ReplyToID: replyToID,
	})
	if err != nil {
		c.setError("Failed to send message")
		c.log.Error("send failed", "channel_id", channelID, "error", err)
		return
	}
	c.handlePush(*msg)
}

// Edit replaces a message's content. On success the local copy is patched in
// place; on failure the list is left unchanged.
func (c *Controller) Edit(ctx context.Context, messageID, content string) {
	if strings.TrimSpace(content) == "" {
		return
	}

	msg, err := c.svc.EditMessage(ctx, messageID, content)
	if err != nil {
		c.setError("Failed to edit message")
		c.log.Error("edit failed", "message_id", messageID, "error", err)
		return
	}
	c.handlePush(*msg)
}

// Delete removes a message. On success the local copy is filtered out; on
// failure the list is left unchanged.
func (c *Controller) Delete(ctx context.Context, messageID string) {
	if err := c.svc.DeleteMessage(ctx, messageID); err != nil {
		c.setError("Failed to delete message")
		c.log.Error("delete failed", "message_id", messageID, "error", err)
		return
	}

	c.mu.Lock()
	for i := range c.messages {
		if c.messages[i].ID == messageID {
			c.messages = append(c.messages[:i], c.messages[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
	c.notify()
}

// handlePush merges a pushed or locally produced message into the list. A
// known id is replaced (covers edit pushes and the echo of a local send), an
// unknown id is appended. Messages for channels other than the active one
// are dropped.
func (c *Controller) handlePush(msg models.Message) {
	c.mu.Lock()
	if msg.ChannelID != c.activeID {
		c.mu.Unlock()
		return
	}
	replaced := false
	for i := range c.messages {
		if c.messages[i].ID == msg.ID {
			c.messages[i] = msg
			replaced = true
			break
		}
	}
	if !replaced {
		c.messages = append(c.messages, msg)
		sort.SliceStable(c.messages, func(i, j int) bool {
			return c.messages[i].CreatedAt < c.messages[j].CreatedAt
		})
		// The pagination offset counts from the newest end, which this
		// append just shifted by one.
		c.offset++
	}
	c.mu.Unlock()
	c.notify()
}

// DismissError clears the error slot. Recovery is user-initiated; the
// controller never retries on its own.
func (c *Controller) DismissError() {
	c.mu.Lock()
	c.lastErr = ""
	c.mu.Unlock()
	c.notify()
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	channels := make([]models.Channel, len(c.channels))
	copy(channels, c.channels)
	messages := make([]models.Message, len(c.messages))
	copy(messages, c.messages)
	return Snapshot{
		Channels:        channels,
		ActiveChannelID: c.activeID,
		Messages:        messages,
		Loading:         c.loading,
		HasMore:         c.hasMore,
		Err:             c.lastErr,
	}
}

// Close tears down the active subscription. The controller must not be used
// afterwards.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.epoch++
	cancel := c.cancelSub
	c.cancelSub = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

func (c *Controller) setError(msg string) {
	c.mu.Lock()
	c.lastErr = msg
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) notify() {
	c.mu.Lock()
	fn := c.onChange
	var snap Snapshot
	if fn != nil {
		snap = c.snapshotLocked()
	}
	c.mu.Unlock()
	if fn != nil {
		fn(snap)
	}
}

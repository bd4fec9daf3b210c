// Package chat defines the backend capability set the session controller is
// written against. Two interchangeable implementations exist: a live MySQL +
// realtime-gateway adapter and an in-memory mock used for demos and tests.
// The variant is selected by construction-time injection, never by runtime
// type checks.
package chat

import (
	"context"
	"errors"

	"github.com/buidlco/clubchat/internal/models"
)

// ErrNotConfigured is returned by write operations when the backend has not
// been configured. Reads instead degrade to empty results so the UI shows an
// empty state rather than crashing.
var ErrNotConfigured = errors.New("chat: backend not configured")

// ErrNotFound is returned when a referenced message or channel does not
// exist. DeleteMessage deliberately does not return it; deleting an unknown
// id is a silent no-op.
var ErrNotFound = errors.New("chat: not found")

// CancelFunc tears down a channel subscription. The controller invokes it
// exactly once on channel switch or teardown.
type CancelFunc func()

// CreateChannelParams carries the fields needed to create a channel. The
// adapter assigns the next free position within the club.
type CreateChannelParams struct {
	ClubID      string
	Name        string
	Description string
	Kind        models.ChannelKind
	IsPrivate   bool
	CreatedBy   string
}

// SendMessageParams carries the fields needed to send a message. Content
// validation (non-empty) is the caller's responsibility, not the adapter's.
type SendMessageParams struct {
	ChannelID string
	AuthorID  string
	Content   string
	Kind      models.MessageKind
	ReplyToID string
}

// Service is the backend adapter contract shared by the live and mock
// variants.
type Service interface {
	// ClubChannels returns the club's channels ordered by ascending
	// position. An unknown club or an unconfigured backend yields an empty
	// slice, not an error.
	ClubChannels(ctx context.Context, clubID string) ([]models.Channel, error)

	// CreateChannel creates a channel at the next free position in the club.
	CreateChannel(ctx context.Context, params CreateChannelParams) (*models.Channel, error)

	// ChannelMessages returns a page of messages oldest-first. The page is
	// taken from the newest end of the channel: offset 0 is the most recent
	// limit messages, offset limit the page before that, and so on. A full
	// page (len == limit) signals that older messages may exist.
	ChannelMessages(ctx context.Context, channelID string, limit, offset int) ([]models.Message, error)

	// SendMessage persists a new message and returns it with the author
	// profile attached.
	SendMessage(ctx context.Context, params SendMessageParams) (*models.Message, error)

	// EditMessage replaces a message's content and stamps its edited-at
	// marker.
	EditMessage(ctx context.Context, messageID, content string) (*models.Message, error)

	// DeleteMessage hard-deletes a message. Unknown ids are a silent no-op.
	DeleteMessage(ctx context.Context, messageID string) error

	// ChannelAccess evaluates the caller's capabilities for a channel. When
	// no policy row exists for the member's role the decision fails open to
	// read+write without manage.
	ChannelAccess(ctx context.Context, channelID, userID string) (models.AccessDecision, error)

	// Subscribe registers interest in a channel's inserted and updated
	// messages. Events are delivered via onMessage; transport failures via
	// onError. The returned cancel must be called to stop delivery.
	Subscribe(channelID string, onMessage func(models.Message), onError func(error)) (CancelFunc, error)

	// Close releases adapter resources, including any open subscriptions.
	Close() error
}

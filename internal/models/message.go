package models

// MessageKind identifies the content type of a message.
type MessageKind string

const (
	MessageKindText   MessageKind = "text"
	MessageKindImage  MessageKind = "image"
	MessageKindFile   MessageKind = "file"
	MessageKindSystem MessageKind = "system"
)

// UserProfile is the display profile joined onto messages; it is not stored
// on the message row itself.
type UserProfile struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// ReplyPreview is a shallow copy of a parent message's content and author,
// used to render a one-level reply reference.
type ReplyPreview struct {
	MessageID  string `json:"message_id"`
	Content    string `json:"content"`
	AuthorName string `json:"author_name"`
}

// Message represents a message in a channel. Content is immutable history
// except through an explicit edit, which also stamps EditedAt. Deletion is a
// hard delete from the channel's collection.
type Message struct {
	ID        string      `json:"id"`
	ChannelID string      `json:"channel_id"`
	AuthorID  string      `json:"author_id"`
	Content   string      `json:"content"`
	Kind      MessageKind `json:"kind"`
	ReplyToID string      `json:"reply_to_id,omitempty"`
	CreatedAt int64       `json:"created_at"`
	EditedAt  int64       `json:"edited_at,omitempty"`

	// Joined for display, not persisted on the message row.
	Author  *UserProfile  `json:"author,omitempty"`
	ReplyTo *ReplyPreview `json:"reply_to,omitempty"`
}

// Edited reports whether the message has been edited since it was sent.
func (m *Message) Edited() bool {
	return m.EditedAt > 0
}

// Package realtime defines the JSON frames exchanged between the clubchatd
// gateway and its websocket clients. The live chat adapter publishes message
// mutations through the gateway and receives them back as pushes filtered by
// channel id.
package realtime

import "github.com/buidlco/clubchat/internal/models"

// Frame types. Clients send subscribe, unsubscribe and publish; the gateway
// sends message and error.
const (
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
	TypePublish     = "publish"
	TypeMessage     = "message"
	TypeError       = "error"
)

// Mutation kinds carried by publish and message frames.
const (
	OpInsert = "insert"
	OpUpdate = "update"
)

// Event is the wire frame. ChannelID routes the frame; Message is set on
// publish and message frames, Error on error frames.
type Event struct {
	Type      string          `json:"type"`
	ChannelID string          `json:"channel_id,omitempty"`
	Op        string          `json:"op,omitempty"`
	Message   *models.Message `json:"message,omitempty"`
	Error     string          `json:"error,omitempty"`
}

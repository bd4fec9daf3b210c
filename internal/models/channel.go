package models

// ChannelKind identifies what a channel is used for.
type ChannelKind string

const (
	ChannelKindText         ChannelKind = "text"
	ChannelKindVoice        ChannelKind = "voice"
	ChannelKindAnnouncement ChannelKind = "announcement"
	ChannelKindTreasury     ChannelKind = "treasury"
)

// Channel represents a channel entity scoped to one club. Position defines
// a strict display order among the club's channels; no two channels in the
// same club share a position.
type Channel struct {
	ID          string      `json:"id"`
	ClubID      string      `json:"club_id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Kind        ChannelKind `json:"kind"`
	Position    int         `json:"position"`
	IsPrivate   bool        `json:"is_private"`
	CreatedBy   string      `json:"created_by"`
	CreatedAt   int64       `json:"created_at"`
}

// Package live implements the chat backend against MySQL plus the clubchatd
// realtime gateway. CRUD goes to the database; inserted and updated messages
// are published through the gateway so every subscribed client, including
// the sender, receives the push.
package live

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/buidlco/clubchat/internal/chat"
	"github.com/buidlco/clubchat/internal/logger"
	"github.com/buidlco/clubchat/internal/models"
	"github.com/buidlco/clubchat/internal/realtime"
)

// Service is the MySQL-backed chat adapter.
type Service struct {
	DB  *sql.DB
	Log *logger.Logger

	rt *realtimeClient
}

// NewService creates a live adapter. db may be nil when the backend is not
// configured; reads then return empty results and writes fail with
// chat.ErrNotConfigured. realtimeURL may be empty to disable push.
func NewService(db *sql.DB, realtimeURL string) *Service {
	log := logger.NewLogger("chat-live")
	return &Service{
		DB:  db,
		Log: log,
		rt:  newRealtimeClient(realtimeURL, log),
	}
}

const messageColumns = `
	m.message_id, m.channel_id, m.author_id, m.content, m.kind,
	COALESCE(m.reply_to_id, ''), m.created_at, COALESCE(m.edited_at, 0),
	COALESCE(up.display_name, ''), COALESCE(up.avatar_url, ''),
	COALESCE(pm.message_id, ''), COALESCE(pm.content, ''), COALESCE(pup.display_name, '')`

const messageJoins = `
	FROM messages m
	LEFT JOIN user_profiles up ON up.user_id = m.author_id
	LEFT JOIN messages pm ON pm.message_id = m.reply_to_id
	LEFT JOIN user_profiles pup ON pup.user_id = pm.author_id`

func scanMessage(scan func(dest ...interface{}) error) (models.Message, error) {
	var (
		m           models.Message
		displayName string
		avatarURL   string
		parentID    string
		parentBody  string
		parentName  string
	)
	err := scan(
		&m.ID, &m.ChannelID, &m.AuthorID, &m.Content, &m.Kind,
		&m.ReplyToID, &m.CreatedAt, &m.EditedAt,
		&displayName, &avatarURL,
		&parentID, &parentBody, &parentName,
	)
	if err != nil {
		return models.Message{}, err
	}
	if displayName != "" {
		m.Author = &models.UserProfile{UserID: m.AuthorID, DisplayName: displayName, AvatarURL: avatarURL}
	}
	if parentID != "" {
		m.ReplyTo = &models.ReplyPreview{MessageID: parentID, Content: parentBody, AuthorName: parentName}
	}
	return m, nil
}

// ClubChannels returns the club's channels ordered by ascending position. An
// unconfigured backend or unknown club yields an empty slice so the UI
// degrades to an empty state instead of crashing.
func (s *Service) ClubChannels(ctx context.Context, clubID string) ([]models.Channel, error) {
	if s.DB == nil {
		s.Log.Warn("channel read on unconfigured backend", "club_id", clubID)
		return nil, nil
	}

	query := `
		SELECT channel_id, club_id, channel_name, COALESCE(description, ''), kind, position, is_private, created_by, created_at
		FROM channels
		WHERE club_id = ?
		ORDER BY position ASC
	`
	rows, err := s.DB.QueryContext(ctx, query, clubID)
	if err != nil {
		return nil, fmt.Errorf("query channels: %w", err)
	}
	defer rows.Close()

	var channels []models.Channel
	for rows.Next() {
		var c models.Channel
		if err := rows.Scan(&c.ID, &c.ClubID, &c.Name, &c.Description, &c.Kind, &c.Position, &c.IsPrivate, &c.CreatedBy, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan channel row: %w", err)
		}
		channels = append(channels, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate channel rows: %w", err)
	}
	return channels, nil
}

// CreateChannel inserts a channel at the club's next free position. The
// position is taken under a transaction so concurrent creations in one club
// cannot collide.
func (s *Service) CreateChannel(ctx context.Context, params chat.CreateChannelParams) (*models.Channel, error) {
	if s.DB == nil {
		return nil, chat.ErrNotConfigured
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() // Will be ignored if transaction is committed

	var position int
	posQuery := `SELECT COALESCE(MAX(position) + 1, 0) FROM channels WHERE club_id = ? FOR UPDATE`
	if err := tx.QueryRowContext(ctx, posQuery, params.ClubID).Scan(&position); err != nil {
		return nil, fmt.Errorf("next channel position: %w", err)
	}

	ch := models.Channel{
		ID:          uuid.NewString(),
		ClubID:      params.ClubID,
		Name:        params.Name,
		Description: params.Description,
		Kind:        params.Kind,
		Position:    position,
		IsPrivate:   params.IsPrivate,
		CreatedBy:   params.CreatedBy,
		CreatedAt:   time.Now().UTC().Unix(),
	}

	insert := `
		INSERT INTO channels (channel_id, club_id, channel_name, description, kind, position, is_private, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := tx.ExecContext(ctx, insert, ch.ID, ch.ClubID, ch.Name, ch.Description, ch.Kind, ch.Position, ch.IsPrivate, ch.CreatedBy, ch.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert channel: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	s.Log.Info("channel created", "channel_id", ch.ID, "club_id", ch.ClubID, "position", ch.Position)
	return &ch, nil
}

// ChannelMessages fetches the newest page first for a correct "most recent
// N", then reverses it to oldest-first display order.
func (s *Service) ChannelMessages(ctx context.Context, channelID string, limit, offset int) ([]models.Message, error) {
	if s.DB == nil {
		s.Log.Warn("message read on unconfigured backend", "channel_id", channelID)
		return nil, nil
	}

	query := `SELECT` + messageColumns + messageJoins + `
		WHERE m.channel_id = ?
		ORDER BY m.created_at DESC, m.message_id DESC
		LIMIT ? OFFSET ?
	`
	rows, err := s.DB.QueryContext(ctx, query, channelID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var page []models.Message
	for rows.Next() {
		m, err := scanMessage(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		page = append(page, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate message rows: %w", err)
	}

	// Newest-first from the query; flip to display order.
	for i, j := 0, len(page)-1; i < j; i, j = i+1, j-1 {
		page[i], page[j] = page[j], page[i]
	}
	return page, nil
}

func (s *Service) getMessage(ctx context.Context, messageID string) (*models.Message, error) {
	query := `SELECT` + messageColumns + messageJoins + ` WHERE m.message_id = ?`
	m, err := scanMessage(s.DB.QueryRowContext(ctx, query, messageID).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, chat.ErrNotFound
		}
		return nil, fmt.Errorf("get message: %w", err)
	}
	return &m, nil
}

// SendMessage inserts the message and publishes it through the realtime
// gateway. The returned message carries the author profile.
func (s *Service) SendMessage(ctx context.Context, params chat.SendMessageParams) (*models.Message, error) {
	if s.DB == nil {
		return nil, chat.ErrNotConfigured
	}

	kind := params.Kind
	if kind == "" {
		kind = models.MessageKindText
	}

	id := uuid.NewString()
	insert := `
		INSERT INTO messages (message_id, channel_id, author_id, content, kind, reply_to_id, created_at)
		VALUES (?, ?, ?, ?, ?, NULLIF(?, ''), ?)
	`
	_, err := s.DB.ExecContext(ctx, insert, id, params.ChannelID, params.AuthorID, params.Content, kind, params.ReplyToID, time.Now().UTC().Unix())
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	msg, err := s.getMessage(ctx, id)
	if err != nil {
		return nil, err
	}

	s.rt.publish(realtime.Event{Type: realtime.TypePublish, ChannelID: msg.ChannelID, Op: realtime.OpInsert, Message: msg})
	return msg, nil
}

// EditMessage replaces the content and stamps edited-at, then publishes the
// update.
func (s *Service) EditMessage(ctx context.Context, messageID, content string) (*models.Message, error) {
	if s.DB == nil {
		return nil, chat.ErrNotConfigured
	}

	update := `UPDATE messages SET content = ?, edited_at = ? WHERE message_id = ?`
	result, err := s.DB.ExecContext(ctx, update, content, time.Now().UTC().Unix(), messageID)
	if err != nil {
		return nil, fmt.Errorf("update message: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, chat.ErrNotFound
	}

	msg, err := s.getMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}

	s.rt.publish(realtime.Event{Type: realtime.TypePublish, ChannelID: msg.ChannelID, Op: realtime.OpUpdate, Message: msg})
	return msg, nil
}

// DeleteMessage hard-deletes the message. Zero rows affected is not an
// error; deleting an unknown id stays a no-op for the caller.
func (s *Service) DeleteMessage(ctx context.Context, messageID string) error {
	if s.DB == nil {
		return chat.ErrNotConfigured
	}

	if _, err := s.DB.ExecContext(ctx, `DELETE FROM messages WHERE message_id = ?`, messageID); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

// ChannelAccess evaluates the member's capabilities for a channel. When no
// policy row exists for the member's role the decision fails open to
// read+write without manage, so a channel whose operator never configured a
// policy does not lock members out.
func (s *Service) ChannelAccess(ctx context.Context, channelID, userID string) (models.AccessDecision, error) {
	if s.DB == nil {
		return models.AccessDecision{}, nil
	}

	var (
		role    string
		balance int64
	)
	memberQuery := `
		SELECT mb.role, mb.token_balance
		FROM members mb
		INNER JOIN channels c ON c.club_id = mb.club_id
		WHERE c.channel_id = ? AND mb.user_id = ?
	`
	err := s.DB.QueryRowContext(ctx, memberQuery, channelID, userID).Scan(&role, &balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Not a member of the owning club: no access.
			return models.AccessDecision{}, nil
		}
		return models.AccessDecision{}, fmt.Errorf("member lookup: %w", err)
	}

	var policy models.ChannelPermission
	policyQuery := `
		SELECT channel_id, role, min_token_balance, can_read, can_write, can_manage
		FROM channel_permissions
		WHERE channel_id = ? AND role = ?
	`
	err = s.DB.QueryRowContext(ctx, policyQuery, channelID, role).Scan(
		&policy.ChannelID, &policy.Role, &policy.MinTokenBalance,
		&policy.CanRead, &policy.CanWrite, &policy.CanManage,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.DefaultAccess(balance), nil
		}
		return models.AccessDecision{}, fmt.Errorf("policy lookup: %w", err)
	}

	return policy.Evaluate(balance), nil
}

// Subscribe opens a realtime subscription for the channel through the
// gateway connection.
func (s *Service) Subscribe(channelID string, onMessage func(models.Message), onError func(error)) (chat.CancelFunc, error) {
	return s.rt.subscribe(channelID, onMessage, onError)
}

// Close tears down the realtime connection. The database handle is owned by
// the caller.
func (s *Service) Close() error {
	return s.rt.close()
}

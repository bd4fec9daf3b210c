// Package mock provides an in-memory chat backend with simulated network
// latency. It keeps the UI's loading states exercised in development without
// a live backend, and backs the test suite.
package mock

import (
	"context"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/buidlco/clubchat/internal/chat"
	"github.com/buidlco/clubchat/internal/logger"
	"github.com/buidlco/clubchat/internal/models"
)

const (
	minLatency = 30 * time.Millisecond
	maxLatency = 120 * time.Millisecond
)

type subscriber struct {
	onMessage func(models.Message)
	onError   func(error)
}

// Service is the in-memory chat backend.
type Service struct {
	mu          sync.Mutex
	channels    []models.Channel
	messages    []models.Message
	members     map[string]models.Member            // key userID
	profiles    map[string]models.UserProfile       // key userID
	permissions map[string]models.ChannelPermission // key channelID + "/" + role

	subMu   sync.Mutex
	subs    map[string]map[int64]subscriber // channelID -> token -> subscriber
	nextSub int64

	latency bool
	log     *logger.Logger
}

// NewService returns an empty in-memory backend with latency simulation
// enabled.
func NewService() *Service {
	return &Service{
		members:     make(map[string]models.Member),
		profiles:    make(map[string]models.UserProfile),
		permissions: make(map[string]models.ChannelPermission),
		subs:        make(map[string]map[int64]subscriber),
		latency:     true,
		log:         logger.NewLogger("chat-mock"),
	}
}

// NewSeededService returns a backend preloaded with the demo club
// "buidlers-united", its channels and a couple of members.
func NewSeededService() *Service {
	s := NewService()
	s.Seed()
	return s
}

// DisableLatency turns off the simulated delay. Tests that exercise many
// calls use this to stay fast.
func (s *Service) DisableLatency() {
	s.mu.Lock()
	s.latency = false
	s.mu.Unlock()
}

// Seed loads the demo dataset.
func (s *Service) Seed() {
	now := time.Now().Unix()

	s.mu.Lock()
	s.channels = []models.Channel{
		{ID: "channel-1", ClubID: "buidlers-united", Name: "general", Kind: models.ChannelKindText, Position: 0, CreatedBy: "alice", CreatedAt: now - 86400},
		{ID: "channel-2", ClubID: "buidlers-united", Name: "announcements", Kind: models.ChannelKindAnnouncement, Position: 1, CreatedBy: "alice", CreatedAt: now - 86400},
		{ID: "channel-3", ClubID: "buidlers-united", Name: "treasury", Kind: models.ChannelKindTreasury, Position: 2, IsPrivate: true, CreatedBy: "alice", CreatedAt: now - 86400},
		{ID: "channel-4", ClubID: "buidlers-united", Name: "lounge", Kind: models.ChannelKindVoice, Position: 3, CreatedBy: "bob", CreatedAt: now - 43200},
	}
	s.messages = []models.Message{
		{ID: uuid.NewString(), ChannelID: "channel-1", AuthorID: "bob", Content: "gm everyone", Kind: models.MessageKindText, CreatedAt: now - 7200},
		{ID: uuid.NewString(), ChannelID: "channel-1", AuthorID: "alice", Content: "welcome to the club", Kind: models.MessageKindText, CreatedAt: now - 3600},
	}
	s.members["alice"] = models.Member{ClubID: "buidlers-united", UserID: "alice", Role: "admin", TokenBalance: 500, JoinedAt: now - 86400}
	s.members["bob"] = models.Member{ClubID: "buidlers-united", UserID: "bob", Role: "member", TokenBalance: 50, JoinedAt: now - 86400}
	s.profiles["alice"] = models.UserProfile{UserID: "alice", DisplayName: "alice", AvatarURL: "https://cdn.buidl.club/avatars/alice.png"}
	s.profiles["bob"] = models.UserProfile{UserID: "bob", DisplayName: "bob", AvatarURL: "https://cdn.buidl.club/avatars/bob.png"}
	s.permissions["channel-3/member"] = models.ChannelPermission{ChannelID: "channel-3", Role: "member", MinTokenBalance: 100, CanRead: true, CanWrite: true}
	for i := range s.messages {
		s.attachLocked(&s.messages[i])
	}
	s.mu.Unlock()
}

// AddMember registers a member and display profile, for tests.
func (s *Service) AddMember(m models.Member, p models.UserProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[m.UserID] = m
	s.profiles[p.UserID] = p
}

// SetPermission installs a policy row for a (channel, role) pair, for tests.
func (s *Service) SetPermission(p models.ChannelPermission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.permissions[p.ChannelID+"/"+p.Role] = p
}

// delay simulates network latency, honoring context cancellation.
func (s *Service) delay(ctx context.Context) error {
	s.mu.Lock()
	latency := s.latency
	s.mu.Unlock()

	if !latency {
		if err := ctx.Err(); err != nil {
			return err
		}
		return nil
	}
	d := minLatency + time.Duration(rand.Int63n(int64(maxLatency-minLatency)))
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ClubChannels returns the club's channels ordered by position.
func (s *Service) ClubChannels(ctx context.Context, clubID string) ([]models.Channel, error) {
	if err := s.delay(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Channel
	for _, c := range s.channels {
		if c.ClubID == clubID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

// CreateChannel appends a channel at the club's next free position.
func (s *Service) CreateChannel(ctx context.Context, params chat.CreateChannelParams) (*models.Channel, error) {
	if err := s.delay(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := 0
	for _, c := range s.channels {
		if c.ClubID == params.ClubID && c.Position >= next {
			next = c.Position + 1
		}
	}

	ch := models.Channel{
		ID:          uuid.NewString(),
		ClubID:      params.ClubID,
		Name:        params.Name,
		Description: params.Description,
		Kind:        params.Kind,
		Position:    next,
		IsPrivate:   params.IsPrivate,
		CreatedBy:   params.CreatedBy,
		CreatedAt:   time.Now().Unix(),
	}
	s.channels = append(s.channels, ch)
	s.log.Info("channel created", "channel_id", ch.ID, "club_id", ch.ClubID, "position", ch.Position)
	return &ch, nil
}

// ChannelMessages returns a page taken from the newest end of the channel,
// reversed to oldest-first for display.
func (s *Service) ChannelMessages(ctx context.Context, channelID string, limit, offset int) ([]models.Message, error) {
	if err := s.delay(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var all []models.Message
	for _, m := range s.messages {
		if m.ChannelID == channelID {
			all = append(all, m)
		}
	}
	// Stable keeps insertion order for equal timestamps so pages never
	// overlap between calls.
	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt < all[j].CreatedAt })

	// Slice the newest `limit` messages skipping `offset` from the end.
	end := len(all) - offset
	if end < 0 {
		end = 0
	}
	start := end - limit
	if start < 0 {
		start = 0
	}
	page := make([]models.Message, end-start)
	copy(page, all[start:end])
	for i := range page {
		s.attachLocked(&page[i])
	}
	return page, nil
}

// SendMessage stores the message and pushes it to channel subscribers.
func (s *Service) SendMessage(ctx context.Context, params chat.SendMessageParams) (*models.Message, error) {
	if err := s.delay(ctx); err != nil {
		return nil, err
	}

	kind := params.Kind
	if kind == "" {
		kind = models.MessageKindText
	}

	msg := models.Message{
		ID:        uuid.NewString(),
		ChannelID: params.ChannelID,
		AuthorID:  params.AuthorID,
		Content:   params.Content,
		Kind:      kind,
		ReplyToID: params.ReplyToID,
		CreatedAt: time.Now().Unix(),
	}

	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.attachLocked(&msg)
	s.mu.Unlock()

	s.push(msg)
	return &msg, nil
}

// EditMessage replaces content and stamps edited-at, then pushes the update.
func (s *Service) EditMessage(ctx context.Context, messageID, content string) (*models.Message, error) {
	if err := s.delay(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	var updated *models.Message
	for i := range s.messages {
		if s.messages[i].ID == messageID {
			s.messages[i].Content = content
			s.messages[i].EditedAt = time.Now().Unix()
			m := s.messages[i]
			s.attachLocked(&m)
			updated = &m
			break
		}
	}
	s.mu.Unlock()

	if updated == nil {
		return nil, chat.ErrNotFound
	}
	s.push(*updated)
	return updated, nil
}

// DeleteMessage removes the message. Unknown ids are a silent no-op.
func (s *Service) DeleteMessage(ctx context.Context, messageID string) error {
	if err := s.delay(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.messages {
		if s.messages[i].ID == messageID {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			break
		}
	}
	return nil
}

// ChannelAccess evaluates the policy for the member's role, failing open to
// read+write when no policy row exists.
func (s *Service) ChannelAccess(ctx context.Context, channelID, userID string) (models.AccessDecision, error) {
	if err := s.delay(ctx); err != nil {
		return models.AccessDecision{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	member, ok := s.members[userID]
	if !ok {
		return models.AccessDecision{}, nil
	}
	policy, ok := s.permissions[channelID+"/"+member.Role]
	if !ok {
		return models.DefaultAccess(member.TokenBalance), nil
	}
	return policy.Evaluate(member.TokenBalance), nil
}

// Subscribe registers a channel subscriber. Delivery is synchronous with the
// mutation that triggered it.
func (s *Service) Subscribe(channelID string, onMessage func(models.Message), onError func(error)) (chat.CancelFunc, error) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	if s.subs[channelID] == nil {
		s.subs[channelID] = make(map[int64]subscriber)
	}
	s.nextSub++
	token := s.nextSub
	s.subs[channelID][token] = subscriber{onMessage: onMessage, onError: onError}

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if set, ok := s.subs[channelID]; ok {
			delete(set, token)
			if len(set) == 0 {
				delete(s.subs, channelID)
			}
		}
	}, nil
}

// Close drops all subscriptions.
func (s *Service) Close() error {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.subs = make(map[string]map[int64]subscriber)
	return nil
}

func (s *Service) push(msg models.Message) {
	s.subMu.Lock()
	var targets []subscriber
	for _, sub := range s.subs[msg.ChannelID] {
		targets = append(targets, sub)
	}
	s.subMu.Unlock()

	for _, sub := range targets {
		sub.onMessage(msg)
	}
}

// attachLocked joins the author profile and reply preview onto a message.
// Callers must hold s.mu.
func (s *Service) attachLocked(m *models.Message) {
	if p, ok := s.profiles[m.AuthorID]; ok {
		cp := p
		m.Author = &cp
	}
	if m.ReplyToID != "" {
		for _, parent := range s.messages {
			if parent.ID == m.ReplyToID {
				name := parent.AuthorID
				if p, ok := s.profiles[parent.AuthorID]; ok {
					name = p.DisplayName
				}
				m.ReplyTo = &models.ReplyPreview{
					MessageID:  parent.ID,
					Content:    strings.TrimSpace(parent.Content),
					AuthorName: name,
				}
				break
			}
		}
	}
}

package mock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buidlco/clubchat/internal/chat"
	"github.com/buidlco/clubchat/internal/models"
)

func newTestService() *Service {
	s := NewSeededService()
	s.DisableLatency()
	return s
}

func TestClubChannels_OrderedByPosition(t *testing.T) {
	s := newTestService()

	channels, err := s.ClubChannels(context.Background(), "buidlers-united")
	require.NoError(t, err)
	require.NotEmpty(t, channels)

	seen := map[int]bool{}
	for i, c := range channels {
		assert.False(t, seen[c.Position], "position %d duplicated", c.Position)
		seen[c.Position] = true
		if i > 0 {
			assert.Greater(t, c.Position, channels[i-1].Position)
		}
	}
}

func TestClubChannels_UnknownClubIsEmpty(t *testing.T) {
	s := newTestService()

	channels, err := s.ClubChannels(context.Background(), "no-such-club")
	require.NoError(t, err)
	assert.Empty(t, channels)
}

func TestCreateChannel_AssignsNextPosition(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	ch, err := s.CreateChannel(ctx, chat.CreateChannelParams{
		ClubID:    "buidlers-united",
		Name:      "governance",
		Kind:      models.ChannelKindText,
		CreatedBy: "alice",
	})
	require.NoError(t, err)
	assert.Equal(t, 4, ch.Position)

	channels, err := s.ClubChannels(ctx, "buidlers-united")
	require.NoError(t, err)
	assert.Equal(t, ch.ID, channels[len(channels)-1].ID)
}

func TestChannelMessages_PageSemantics(t *testing.T) {
	s := NewService()
	s.DisableLatency()
	s.AddMember(
		models.Member{ClubID: "c", UserID: "alice", Role: "member", TokenBalance: 10},
		models.UserProfile{UserID: "alice", DisplayName: "alice"},
	)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := s.SendMessage(ctx, chat.SendMessageParams{ChannelID: "ch", AuthorID: "alice", Content: "msg"})
		require.NoError(t, err)
	}

	// Page of exactly limit from the newest end.
	page, err := s.ChannelMessages(ctx, "ch", 2, 0)
	require.NoError(t, err)
	assert.Len(t, page, 2)

	// Offset walks toward older messages; the final page comes up short.
	page, err = s.ChannelMessages(ctx, "ch", 2, 4)
	require.NoError(t, err)
	assert.Len(t, page, 1)

	// Oldest-first within a page.
	page, err = s.ChannelMessages(ctx, "ch", 5, 0)
	require.NoError(t, err)
	for i := 1; i < len(page); i++ {
		assert.LessOrEqual(t, page[i-1].CreatedAt, page[i].CreatedAt)
	}
}

func TestSendMessage_RoundTrip(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	sent, err := s.SendMessage(ctx, chat.SendMessageParams{ChannelID: "channel-1", AuthorID: "alice", Content: "hello"})
	require.NoError(t, err)
	require.NotNil(t, sent.Author)
	assert.Equal(t, "alice", sent.Author.DisplayName)

	page, err := s.ChannelMessages(ctx, "channel-1", 50, 0)
	require.NoError(t, err)

	var matches []models.Message
	for _, m := range page {
		if m.Content == "hello" {
			matches = append(matches, m)
		}
	}
	require.Len(t, matches, 1)
	assert.Equal(t, "alice", matches[0].AuthorID)
}

func TestSendMessage_ReplyPreview(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	parent, err := s.SendMessage(ctx, chat.SendMessageParams{ChannelID: "channel-1", AuthorID: "bob", Content: "anyone around?"})
	require.NoError(t, err)

	reply, err := s.SendMessage(ctx, chat.SendMessageParams{ChannelID: "channel-1", AuthorID: "alice", Content: "right here", ReplyToID: parent.ID})
	require.NoError(t, err)
	require.NotNil(t, reply.ReplyTo)
	assert.Equal(t, parent.ID, reply.ReplyTo.MessageID)
	assert.Equal(t, "anyone around?", reply.ReplyTo.Content)
	assert.Equal(t, "bob", reply.ReplyTo.AuthorName)
}

func TestEditMessage_StampsEditedAt(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	sent, err := s.SendMessage(ctx, chat.SendMessageParams{ChannelID: "channel-1", AuthorID: "alice", Content: "draft"})
	require.NoError(t, err)
	assert.False(t, sent.Edited())

	edited, err := s.EditMessage(ctx, sent.ID, "final")
	require.NoError(t, err)
	assert.Equal(t, "final", edited.Content)
	assert.True(t, edited.Edited())

	page, err := s.ChannelMessages(ctx, "channel-1", 50, 0)
	require.NoError(t, err)
	for _, m := range page {
		if m.ID == sent.ID {
			assert.Equal(t, "final", m.Content)
			assert.True(t, m.Edited())
			return
		}
	}
	t.Fatal("edited message not found")
}

func TestEditMessage_UnknownID(t *testing.T) {
	s := newTestService()

	_, err := s.EditMessage(context.Background(), "nope", "content")
	assert.ErrorIs(t, err, chat.ErrNotFound)
}

func TestDeleteMessage_Idempotent(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	sent, err := s.SendMessage(ctx, chat.SendMessageParams{ChannelID: "channel-1", AuthorID: "alice", Content: "oops"})
	require.NoError(t, err)

	before, err := s.ChannelMessages(ctx, "channel-1", 50, 0)
	require.NoError(t, err)

	require.NoError(t, s.DeleteMessage(ctx, sent.ID))
	afterFirst, err := s.ChannelMessages(ctx, "channel-1", 50, 0)
	require.NoError(t, err)
	assert.Len(t, afterFirst, len(before)-1)

	// Second delete of the same id must not error and must not change
	// anything.
	require.NoError(t, s.DeleteMessage(ctx, sent.ID))
	afterSecond, err := s.ChannelMessages(ctx, "channel-1", 50, 0)
	require.NoError(t, err)
	assert.Equal(t, afterFirst, afterSecond)
}

func TestChannelAccess_BalanceBelowThreshold(t *testing.T) {
	s := newTestService()

	// bob holds 50 tokens; the treasury policy requires 100 with
	// can_read=true. The balance check must still deny read.
	decision, err := s.ChannelAccess(context.Background(), "channel-3", "bob")
	require.NoError(t, err)
	assert.False(t, decision.CanRead)
	assert.False(t, decision.MeetsMinimum())
}

func TestChannelAccess_FailOpenWithoutPolicy(t *testing.T) {
	s := newTestService()

	decision, err := s.ChannelAccess(context.Background(), "channel-1", "bob")
	require.NoError(t, err)
	assert.True(t, decision.CanRead)
	assert.True(t, decision.CanWrite)
	assert.False(t, decision.CanManage)
}

func TestChannelAccess_UnknownUser(t *testing.T) {
	s := newTestService()

	decision, err := s.ChannelAccess(context.Background(), "channel-1", "mallory")
	require.NoError(t, err)
	assert.False(t, decision.CanRead)
	assert.False(t, decision.CanWrite)
	assert.False(t, decision.CanManage)
}

func TestSubscribe_PushOnSendAndEdit(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	var pushed []models.Message
	cancel, err := s.Subscribe("channel-1", func(m models.Message) {
		pushed = append(pushed, m)
	}, nil)
	require.NoError(t, err)

	sent, err := s.SendMessage(ctx, chat.SendMessageParams{ChannelID: "channel-1", AuthorID: "alice", Content: "one"})
	require.NoError(t, err)
	_, err = s.EditMessage(ctx, sent.ID, "one, edited")
	require.NoError(t, err)

	require.Len(t, pushed, 2)
	assert.Equal(t, sent.ID, pushed[0].ID)
	assert.Equal(t, "one, edited", pushed[1].Content)

	// After cancel nothing more is delivered.
	cancel()
	_, err = s.SendMessage(ctx, chat.SendMessageParams{ChannelID: "channel-1", AuthorID: "alice", Content: "two"})
	require.NoError(t, err)
	assert.Len(t, pushed, 2)
}

func TestSubscribe_NoCrossChannelDelivery(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	var pushed []models.Message
	cancel, err := s.Subscribe("channel-2", func(m models.Message) {
		pushed = append(pushed, m)
	}, nil)
	require.NoError(t, err)
	defer cancel()

	_, err = s.SendMessage(ctx, chat.SendMessageParams{ChannelID: "channel-1", AuthorID: "alice", Content: "general chatter"})
	require.NoError(t, err)
	assert.Empty(t, pushed)
}

func TestScenario_AliceShipsIt(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	before, err := s.ChannelMessages(ctx, "channel-1", 50, 0)
	require.NoError(t, err)

	_, err = s.SendMessage(ctx, chat.SendMessageParams{ChannelID: "channel-1", AuthorID: "alice", Content: "Ship it! 🚀"})
	require.NoError(t, err)

	after, err := s.ChannelMessages(ctx, "channel-1", 50, 0)
	require.NoError(t, err)
	require.Len(t, after, len(before)+1)

	last := after[len(after)-1]
	assert.Equal(t, "Ship it! 🚀", last.Content)
	require.NotNil(t, last.Author)
	assert.Equal(t, "alice", last.Author.DisplayName)
}

func TestDisableLatency_SafeDuringCalls(t *testing.T) {
	s := NewSeededService()
	ctx := context.Background()

	// Tests flip the latency switch while a view may still be fetching;
	// both sides go through the service mutex. Meaningful under -race.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 5; i++ {
			_, _ = s.ChannelMessages(ctx, "channel-1", 10, 0)
		}
	}()
	s.DisableLatency()
	<-done
}

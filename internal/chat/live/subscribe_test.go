package live

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buidlco/clubchat/internal/gateway"
	"github.com/buidlco/clubchat/internal/hub"
	"github.com/buidlco/clubchat/internal/models"
	"github.com/buidlco/clubchat/internal/realtime"
)

func newGateway(t *testing.T) string {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-secret")

	h := hub.NewHub()
	go h.Run()

	router := mux.NewRouter()
	gateway.NewHandler(h).RegisterRoutes(router)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": "alice"})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + signed
}

func waitFor[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		panic("unreachable")
	}
}

func TestSubscribe_ReceivesPublishedMessages(t *testing.T) {
	url := newGateway(t)

	subscriber := NewService(nil, url)
	defer subscriber.Close()
	publisher := NewService(nil, url)
	defer publisher.Close()

	received := make(chan models.Message, 1)
	cancel, err := subscriber.Subscribe("channel-1", func(m models.Message) {
		received <- m
	}, nil)
	require.NoError(t, err)
	defer cancel()
	time.Sleep(50 * time.Millisecond)

	msg := &models.Message{ID: "m1", ChannelID: "channel-1", AuthorID: "bob", Content: "gm", CreatedAt: time.Now().Unix()}
	publisher.rt.publish(realtime.Event{Type: realtime.TypePublish, ChannelID: "channel-1", Op: realtime.OpInsert, Message: msg})

	got := waitFor(t, received)
	assert.Equal(t, "m1", got.ID)
	assert.Equal(t, "gm", got.Content)
}

func TestSubscribe_CancelStopsDelivery(t *testing.T) {
	url := newGateway(t)

	subscriber := NewService(nil, url)
	defer subscriber.Close()
	publisher := NewService(nil, url)
	defer publisher.Close()

	received := make(chan models.Message, 4)
	cancel, err := subscriber.Subscribe("channel-1", func(m models.Message) {
		received <- m
	}, nil)
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)

	cancel()
	time.Sleep(50 * time.Millisecond)

	msg := &models.Message{ID: "m1", ChannelID: "channel-1", AuthorID: "bob", Content: "gm"}
	publisher.rt.publish(realtime.Event{Type: realtime.TypePublish, ChannelID: "channel-1", Op: realtime.OpInsert, Message: msg})

	select {
	case <-received:
		t.Fatal("cancelled subscription still received a message")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestSubscribe_ErrorCallbackOnDisconnect(t *testing.T) {
	url := newGateway(t)

	subscriber := NewService(nil, url)
	defer subscriber.Close()

	errs := make(chan error, 1)
	cancel, err := subscriber.Subscribe("channel-1", func(models.Message) {}, func(err error) {
		errs <- err
	})
	require.NoError(t, err)
	defer cancel()

	// Drop the connection out from under the client.
	subscriber.rt.mu.Lock()
	conn := subscriber.rt.conn
	subscriber.rt.mu.Unlock()
	require.NotNil(t, conn)
	conn.Close()

	got := waitFor(t, errs)
	assert.Contains(t, got.Error(), "real-time connection lost")
}

func TestSubscribe_NoGatewayConfigured(t *testing.T) {
	svc := NewService(nil, "")
	defer svc.Close()

	// Without a gateway URL the subscription is a working no-op: every
	// channel switch would otherwise surface a connection error.
	var errs []error
	cancel, err := svc.Subscribe("channel-1", func(models.Message) {}, func(err error) {
		errs = append(errs, err)
	})
	require.NoError(t, err)
	require.NotNil(t, cancel)
	cancel()
	assert.Empty(t, errs)
}

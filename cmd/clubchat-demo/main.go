// clubchat-demo runs the chat session controller against either the seeded
// in-memory backend or, when DB_DSN is set, the live MySQL + gateway
// backend. It sends one message as alice and prints the resulting channel
// state, which makes it a quick end-to-end smoke check.
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/buidlco/clubchat/internal/access"
	"github.com/buidlco/clubchat/internal/chat"
	"github.com/buidlco/clubchat/internal/chat/live"
	"github.com/buidlco/clubchat/internal/chat/mock"
	"github.com/buidlco/clubchat/internal/config"
	"github.com/buidlco/clubchat/internal/identity"
	"github.com/buidlco/clubchat/internal/logger"
	"github.com/buidlco/clubchat/internal/session"
	"github.com/buidlco/clubchat/internal/storage"
)

const (
	demoClub = "buidlers-united"
	demoUser = "alice"
)

func main() {
	cfg := config.Load()
	log := logger.NewLogger("clubchat-demo")
	defer log.Sync()

	var svc chat.Service
	if cfg.DatabaseDSN != "" {
		db, err := storage.Open(cfg.DatabaseDSN)
		if err != nil {
			log.Fatal("database connection failed", "error", err)
		}
		defer db.Close()
		svc = live.NewService(db, cfg.RealtimeURL)
		log.Info("using live backend")
	} else {
		svc = mock.NewSeededService()
		log.Info("using seeded in-memory backend")
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	ctrl := session.NewController(svc, demoClub, demoUser)
	defer ctrl.Close()

	ctrl.Start(ctx)

	snap := ctrl.Snapshot()
	if snap.Err != "" {
		log.Fatal("session failed to start", "error", snap.Err)
	}
	fmt.Printf("club %s: %d channels, active channel %s\n", demoClub, len(snap.Channels), snap.ActiveChannelID)

	gate := access.NewGate(svc, identity.Static{UserID: demoUser})
	result := gate.Evaluate(ctx, snap.ActiveChannelID)
	fmt.Printf("access: %s (write=%v manage=%v)\n", result.State, result.CanWrite, result.CanManage)

	ctrl.Send(ctx, "Ship it! 🚀", "")

	snap = ctrl.Snapshot()
	fmt.Printf("%d messages:\n", len(snap.Messages))
	for _, m := range snap.Messages {
		author := m.AuthorID
		if m.Author != nil {
			author = m.Author.DisplayName
		}
		edited := ""
		if m.Edited() {
			edited = " (edited)"
		}
		fmt.Printf("  [%s] %s: %s%s\n", time.Unix(m.CreatedAt, 0).Format("15:04"), author, m.Content, edited)
	}
}

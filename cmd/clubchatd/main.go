package main

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/buidlco/clubchat/internal/config"
	"github.com/buidlco/clubchat/internal/gateway"
	"github.com/buidlco/clubchat/internal/hub"
	"github.com/buidlco/clubchat/internal/logger"
)

func main() {
	cfg := config.Load()
	log := logger.NewLogger("clubchatd")
	defer log.Sync()

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set")
	}

	h := hub.NewHub()
	go h.Run()

	router := mux.NewRouter()
	gateway.NewHandler(h).RegisterRoutes(router)

	addr := fmt.Sprintf(":%d", cfg.Port)
	log.Info("realtime gateway listening", "addr", addr)
	if err := http.ListenAndServe(addr, router); err != nil {
		log.Fatal("server exited", "error", err)
	}
}

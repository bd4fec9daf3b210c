// Package gateway exposes the realtime hub over HTTP.
package gateway

import (
	"fmt"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/buidlco/clubchat/internal/hub"
	"github.com/buidlco/clubchat/internal/logger"
	"github.com/buidlco/clubchat/internal/middleware"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // In production, replace with proper origin checking
	},
}

// Handler upgrades websocket connections and hands them to the hub.
type Handler struct {
	hub *hub.Hub
	log *logger.Logger
}

// NewHandler creates a gateway handler over the given hub.
func NewHandler(h *hub.Hub) *Handler {
	return &Handler{
		hub: h,
		log: logger.NewLogger("gateway"),
	}
}

// RegisterRoutes wires the gateway's endpoints onto the router.
func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.Handle("/ws", middleware.WebSocketAuthMiddleware(http.HandlerFunc(h.HandleWebSocket))).Methods("GET", "OPTIONS")
	router.HandleFunc("/healthz", h.HandleHealth).Methods("GET")
}

// HandleWebSocket handles incoming websocket connections.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	claims, ok := r.Context().Value(middleware.UserContextKey).(jwt.MapClaims)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	userID, _ := claims["user_id"].(string)
	if userID == "" {
		http.Error(w, "Invalid token claims", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("websocket upgrade failed", "error", err)
		return
	}

	client := h.hub.NewClient(conn, userID)
	h.log.Info("client connected", "user_id", userID)

	go client.WritePump()
	go client.ReadPump()
}

// HandleHealth reports liveness.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"status":"ok"}`)
}

package api

import (
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		// No Origin header = non-browser client (curl, test tooling).
		return origin == "" || origin == "http://"+r.Host || origin == "https://"+r.Host
	},
}

// handleLive upgrades the connection and subscribes it to the device's
// committed-sample feed. Device existence is checked before the upgrade so
// unknown devices still get the JSON 404 envelope.
func (h *Handler) handleLive(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	group, device := vars["group"], vars["device"]

	if err := h.resolver.DeviceExists(group, device); err != nil {
		respondError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote its own error response.
		log.Printf("live: upgrade failed for %s/%s: %v", group, device, err)
		return
	}

	if !h.hub.Subscribe(group, device, conn) {
		conn.Close()
		return
	}

	// Drain the connection to notice the client going away.
	go func() {
		defer h.hub.Unsubscribe(group, device, conn)
		conn.SetReadLimit(512)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

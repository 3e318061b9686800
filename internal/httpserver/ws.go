package httpserver

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"cryptoworld/internal/auth"
	"cryptoworld/internal/marketdata"
)

// WSHandler streams bus events (live quotes) to one authenticated browser
// connection. Connections can widen the quote stream by sending watch
// messages for extra symbols.
type WSHandler struct {
	bus      *marketdata.Bus
	watch    *marketdata.WatchList
	authSvc  *auth.Service
	upgrader websocket.Upgrader
}

func NewWSHandler(bus *marketdata.Bus, watch *marketdata.WatchList, authSvc *auth.Service, origin string) *WSHandler {
	return &WSHandler{
		bus:     bus,
		watch:   watch,
		authSvc: authSvc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return allowOrigin(r, origin) },
		},
	}
}

func allowOrigin(r *http.Request, origin string) bool {
	if origin == "*" {
		return true
	}
	reqOrigin := r.Header.Get("Origin")
	// localhost and 127.0.0.1 are interchangeable during development
	if strings.Contains(origin, "localhost") || strings.Contains(origin, "127.0.0.1") {
		if strings.Contains(reqOrigin, "localhost") || strings.Contains(reqOrigin, "127.0.0.1") {
			return true
		}
	}
	return strings.EqualFold(reqOrigin, origin)
}

type wsControlMessage struct {
	Type    string   `json:"type"`
	Symbols []string `json:"symbols,omitempty"`
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// browsers cannot set headers on websocket dials, the token rides the
	// query string
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	if _, err := h.authSvc.ParseToken(token); err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sub := h.bus.Subscribe()
	defer h.bus.Unsubscribe(sub)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var ctrl wsControlMessage
			if err := json.Unmarshal(payload, &ctrl); err != nil {
				continue
			}
			if strings.EqualFold(strings.TrimSpace(ctrl.Type), "watch") {
				h.watch.Add(ctrl.Symbols...)
			}
		}
	}()

	for {
		select {
		case evt := <-sub:
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

// eventsHandler streams the story's events over a websocket until the
// client goes away.
func eventsHandler(cfg ServerConfig) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return isLoopbackRemoteAddr(r.RemoteAddr)
			}
			return isAllowedOrigin(origin, cfg.AllowedOrigins)
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		storyID := chi.URLParam(r, "id")
		if _, err := cfg.Stories.GetStory(r.Context(), storyID); err != nil {
			writeDomainError(w, err)
			return
		}

		// Subscribe before the handshake completes so no event published
		// right after it is missed.
		sub, cancel := cfg.Hub.Subscribe(storyID)
		defer cancel()

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			cfg.Logger.Warn("websocket upgrade failed", "story_id", storyID, "error", err)
			return
		}
		defer conn.Close()

		cfg.Logger.Info("event stream opened", "story_id", storyID)

		closed := make(chan struct{})
		go func() {
			defer close(closed)
			conn.SetReadLimit(512)
			conn.SetReadDeadline(time.Now().Add(wsPongWait))
			conn.SetPongHandler(func(string) error {
				return conn.SetReadDeadline(time.Now().Add(wsPongWait))
			})
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ticker := time.NewTicker(wsPingPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-closed:
				cfg.Logger.Info("event stream closed", "story_id", storyID)
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := conn.WriteJSON(ev); err != nil {
					cfg.Logger.Warn("event stream write failed", "story_id", storyID, "error", err)
					return
				}
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}
}

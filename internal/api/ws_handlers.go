package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	statsStreamInterval = 2 * time.Second
	wsWriteTimeout       = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleStatsStream serves GET /v1/stats/stream: upgrades to a websocket
// and pushes a Stats snapshot every statsStreamInterval until the client
// disconnects.
func (s *Server) handleStatsStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		if s.logger != nil {
			s.logger.Errorf("stats stream upgrade: %v", err)
		}
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(statsStreamInterval)
	defer ticker.Stop()

	// a dedicated reader goroutine drains client frames so the connection's
	// close/ping control messages are still processed while we push.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case <-ticker.C:
			stats, err := s.fw.Stats()
			if err != nil {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(stats); err != nil {
				return
			}
		}
	}
}

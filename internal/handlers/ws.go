package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/statusbeacon-dev/statusbeacon/internal/config"
	"github.com/statusbeacon-dev/statusbeacon/internal/poller"
)

var (
	wsClients   = make(map[*websocket.Conn]bool)
	wsClientsMu sync.RWMutex
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// BroadcastRefresh notifies every connected client that a poll cycle
// finished. Wired into the poller's OnCycleComplete hook.
func BroadcastRefresh(results poller.Results) {
	wsClientsMu.RLock()
	if len(wsClients) == 0 {
		wsClientsMu.RUnlock()
		return
	}

	// Copy so we do not hold the lock while writing to sockets
	clients := make([]*websocket.Conn, 0, len(wsClients))
	for conn := range wsClients {
		clients = append(clients, conn)
	}
	wsClientsMu.RUnlock()

	for _, conn := range clients {
		if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			logrus.Warnf("Failed to set write deadline for broadcast: %v", err)
			continue
		}

		err := conn.WriteJSON(map[string]interface{}{
			"type":    "refresh",
			"message": "Poll cycle completed",
			"results": results,
		})

		if err != nil {
			logrus.Warnf("Failed to broadcast refresh to client: %v", err)
			wsClientsMu.Lock()
			delete(wsClients, conn)
			wsClientsMu.Unlock()
			conn.Close()
		}
	}
}

func WebSocket(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		upgrader := websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				for _, allowed := range cfg.Server.CORSOrigins {
					if origin == allowed {
						return true
					}
				}
				return false
			},
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logrus.Warnf("WebSocket upgrade failed: %v", err)
			return
		}

		conn.SetReadLimit(maxMessageSize)
		if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			logrus.Warnf("Failed to set initial read deadline: %v", err)
			return
		}
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})

		wsClientsMu.Lock()
		wsClients[conn] = true
		wsClientsMu.Unlock()

		defer func() {
			wsClientsMu.Lock()
			delete(wsClients, conn)
			wsClientsMu.Unlock()
			conn.Close()
		}()

		if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			logrus.Warnf("Failed to set write deadline for welcome message: %v", err)
			return
		}

		err = conn.WriteJSON(map[string]string{
			"type":    "connected",
			"message": "WebSocket connection established",
		})

		if err != nil {
			logrus.Warnf("Failed to send welcome message: %v", err)
			return
		}

		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()

		go func() {
			for range ticker.C {
				if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}()

		for {
			if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
				break
			}

			_, _, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					logrus.Warnf("WebSocket error: %v", err)
				}
				break
			}
		}
	}
}

package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 70 * time.Second
	wsPingPeriod = 30 * time.Second
)

// HandleRideEvents upgrades to a websocket delivering call lifecycle events
// for one ride. Membership is checked the same way the info endpoint does it.
func (h *Handlers) HandleRideEvents(c *gin.Context) {
	rideID := c.Query("ride_id")
	if rideID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ride_id is required"})
		return
	}
	uid := currentUserID(c)

	if _, err := h.signaling.Info(c.Request.Context(), rideID, uid); err != nil {
		h.writeSignalingError(c, err)
		return
	}

	conn, err := h.wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "ride_id", rideID, "user_id", uid, "error", err)
		return
	}

	client := &wsClient{
		conn:   conn,
		send:   make(chan []byte, 32),
		rideID: rideID,
		userID: uid,
	}
	h.hub.Add(client)
	h.logger.Debug("ws connected", "ride_id", rideID, "user_id", uid)

	go h.writePump(client)
	h.readPump(client)
}

func (h *Handlers) readPump(client *wsClient) {
	defer func() {
		_ = client.conn.Close()
		h.hub.Remove(client.rideID, client.userID)
		h.logger.Debug("ws disconnected", "ride_id", client.rideID, "user_id", client.userID)
	}()

	client.conn.SetReadLimit(512)
	_ = client.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	// Clients only listen on this socket; inbound frames are drained to
	// detect disconnects.
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Handlers) writePump(client *wsClient) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		_ = client.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-client.send:
			_ = client.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

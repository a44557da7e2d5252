package handlers

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
)

// rideEvent is a call lifecycle notification pushed to ride members watching
// a ride. Signaling payloads (offers, answers, candidates) never travel this
// channel; those stay on the polling endpoints so the destructive-drain
// delivery contract holds.
type rideEvent struct {
	Type         string   `json:"type"`
	RideID       string   `json:"ride_id"`
	UserID       string   `json:"user_id,omitempty"`
	Participants []string `json:"participants,omitempty"`
}

type wsClient struct {
	conn      *websocket.Conn
	send      chan []byte
	rideID    string
	userID    string
	closeOnce sync.Once
}

func (c *wsClient) trySend(payload []byte) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (c *wsClient) closeSend() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// EventHub tracks websocket subscribers per ride and fans ride events out to
// them.
type EventHub struct {
	mu    sync.Mutex
	rides map[string]map[string]*wsClient // rideID -> userID -> client
}

func NewEventHub() *EventHub {
	return &EventHub{
		rides: make(map[string]map[string]*wsClient),
	}
}

func (h *EventHub) Add(client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	watchers, ok := h.rides[client.rideID]
	if !ok {
		watchers = make(map[string]*wsClient)
		h.rides[client.rideID] = watchers
	}

	// Replace an existing connection for the same user.
	if old := watchers[client.userID]; old != nil {
		_ = old.conn.Close()
		old.closeSend()
	}

	watchers[client.userID] = client
}

func (h *EventHub) Remove(rideID, userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	watchers, ok := h.rides[rideID]
	if !ok {
		return
	}

	if client, exists := watchers[userID]; exists {
		client.closeSend()
	}
	delete(watchers, userID)
	if len(watchers) == 0 {
		delete(h.rides, rideID)
	}
}

func (h *EventHub) Broadcast(rideID string, event rideEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.mu.Lock()
	var clients []*wsClient
	if watchers, ok := h.rides[rideID]; ok {
		clients = make([]*wsClient, 0, len(watchers))
		for _, client := range watchers {
			clients = append(clients, client)
		}
	}
	h.mu.Unlock()

	for _, client := range clients {
		if !client.trySend(payload) {
			_ = client.conn.Close()
		}
	}
}

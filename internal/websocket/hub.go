package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dukerupert/chorely/internal/feed"
)

// Message is a live document change pushed to the clients of one household.
type Message struct {
	Type       string `json:"type"`
	Collection string `json:"collection"`
	Action     string `json:"action"`
	ID         string `json:"id"`
	Data       any    `json:"data,omitempty"`
}

// NewMessage converts a feed event into a wire message. Data carries the
// document after the change and is empty for deletes.
func NewMessage(e feed.Event) Message {
	return Message{
		Type:       fmt.Sprintf("%s_%s", e.Collection, e.Action()),
		Collection: string(e.Collection),
		Action:     e.Action(),
		ID:         e.ID,
		Data:       e.After,
	}
}

// Hub tracks connected clients per household.
type Hub struct {
	mu         sync.RWMutex
	households map[string]map[*Client]struct{}
	logger     *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		households: make(map[string]map[*Client]struct{}),
		logger:     logger,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	set, ok := h.households[c.householdID]
	if !ok {
		set = make(map[*Client]struct{})
		h.households[c.householdID] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client and closes its send channel. Unknown clients
// are ignored.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	h.remove(c)
	h.mu.Unlock()
}

// remove requires h.mu held for writing.
func (h *Hub) remove(c *Client) {
	set, ok := h.households[c.householdID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.households, c.householdID)
	}
}

// Broadcast sends msg to every client subscribed to the household. A client
// whose buffer is full misses the message.
func (h *Hub) Broadcast(householdID string, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "type", msg.Type, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.households[householdID] {
		select {
		case c.send <- data:
		default:
			h.logger.Warn("client buffer full, dropping message",
				"household_id", householdID, "user_id", c.userID, "type", msg.Type)
		}
	}
}

// Evict disconnects the user's clients from the household. An empty userID
// disconnects everyone subscribed to it.
func (h *Hub) Evict(householdID, userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.households[householdID] {
		if userID == "" || c.userID == userID {
			h.remove(c)
		}
	}
}

// CloseAll disconnects every client. Used on shutdown, since hijacked
// connections are not closed by http.Server.Shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, set := range h.households {
		for c := range set {
			h.remove(c)
		}
	}
}

// HandleEvent is a feed handler that forwards every change to the affected
// household and drops subscribers that lost access to it.
func (h *Hub) HandleEvent(ctx context.Context, e feed.Event) error {
	if e.HouseholdID == "" {
		return nil
	}
	h.Broadcast(e.HouseholdID, NewMessage(e))

	if e.Collection != feed.Households {
		return nil
	}
	before, after := e.Household()
	switch {
	case e.Deleted():
		h.Evict(e.HouseholdID, "")
	case before != nil && after != nil:
		for id := range before.Members {
			if !after.IsMember(id) {
				h.Evict(e.HouseholdID, id)
			}
		}
	}
	return nil
}

// ClientCount returns the number of connected clients across households.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.households {
		n += len(set)
	}
	return n
}

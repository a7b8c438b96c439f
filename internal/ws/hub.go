package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/tableflow/api/internal/events"
)

// ErrHubStopped is returned by Publish once the hub's loop has exited.
var ErrHubStopped = errors.New("websocket hub stopped")

// Event represents a WebSocket message to be broadcast
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// branchEvent routes an event to one branch room
type branchEvent struct {
	BranchID int64
	Event    Event
}

// Hub maintains the set of active kitchen clients per branch and broadcasts
// order events to them
type Hub struct {
	// Registered clients by branch ID
	rooms map[int64]map[*Client]bool

	register   chan *Client
	unregister chan *Client

	// Outbound messages to broadcast
	broadcast chan *branchEvent

	// Closed when Run returns
	done chan struct{}

	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[int64]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *branchEvent, 256),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main loop and returns when ctx is done, closing every
// client. Call it as a goroutine: go hub.Run(ctx)
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for branchID, clients := range h.rooms {
				for client := range clients {
					close(client.send)
				}
				delete(h.rooms, branchID)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.branchID] == nil {
				h.rooms[client.branchID] = make(map[*Client]bool)
			}
			h.rooms[client.branchID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()

		case event := <-h.broadcast:
			message, err := json.Marshal(event.Event)
			if err != nil {
				continue
			}

			h.mu.Lock()
			for client := range h.rooms[event.BranchID] {
				select {
				case client.send <- message:
				default:
					// Send buffer full: drop the client, it will reconnect and refetch.
					h.remove(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// remove closes and forgets a client. Callers hold h.mu.
func (h *Hub) remove(client *Client) {
	clients, ok := h.rooms[client.branchID]
	if !ok {
		return
	}
	if _, exists := clients[client]; !exists {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.rooms, client.branchID)
	}
}

// BroadcastToBranch sends an event to all clients subscribed to a branch.
func (h *Hub) BroadcastToBranch(ctx context.Context, branchID int64, event Event) error {
	select {
	case h.broadcast <- &branchEvent{BranchID: branchID, Event: event}:
		return nil
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Publish implements events.Publisher: the order event becomes the payload
// of a message to the event's branch room.
func (h *Hub) Publish(ctx context.Context, ev events.OrderEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}
	return h.BroadcastToBranch(ctx, ev.BranchID, Event{Type: ev.Type, Payload: payload})
}

// ClientCount returns the number of clients connected for a branch.
func (h *Hub) ClientCount(branchID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[branchID])
}

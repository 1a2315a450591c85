package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/saturnino-fabrica-de-software/vigia/internal/domain"
)

// allCameras is the subscription key of clients without a camera filter
const allCameras = ""

type Hub struct {
	clients    map[*Client]bool
	cameras    map[string]map[*Client]bool
	broadcast  chan Event
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	logger     *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		cameras:    make(map[string]map[*Client]bool),
		broadcast:  make(chan Event, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger.With("component", "ws_hub"),
	}
}

// Run serves registrations and broadcasts until ctx is cancelled, then
// disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case event := <-h.broadcast:
			h.deliver(event)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = true

	if h.cameras[client.cameraID] == nil {
		h.cameras[client.cameraID] = make(map[*Client]bool)
	}
	h.cameras[client.cameraID][client] = true
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.drop(client)
}

// drop must be called with mu held
func (h *Hub) drop(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	delete(h.cameras[client.cameraID], client)
	if len(h.cameras[client.cameraID]) == 0 {
		delete(h.cameras, client.cameraID)
	}
	close(client.send)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		h.drop(client)
	}
}

// deliver sends to the camera's subscribers and to the catch-all ones. A
// client whose buffer is full is disconnected.
func (h *Hub) deliver(event Event) {
	message, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to marshal event", slog.String("error", err.Error()))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	targets := make([]*Client, 0, len(h.cameras[event.CameraID])+len(h.cameras[allCameras]))
	for client := range h.cameras[event.CameraID] {
		targets = append(targets, client)
	}
	if event.CameraID != allCameras {
		for client := range h.cameras[allCameras] {
			targets = append(targets, client)
		}
	}

	for _, client := range targets {
		select {
		case client.send <- message:
		default:
			h.logger.Warn("slow websocket client dropped", slog.String("camera_id", client.cameraID))
			h.drop(client)
		}
	}
}

// Publish never blocks; events are dropped when the hub is behind
func (h *Hub) Publish(_ context.Context, event *domain.DetectionEvent) {
	e := Event{
		CameraID:  event.CameraID,
		Type:      event.Type(),
		Data:      event,
		Timestamp: event.Timestamp,
	}

	select {
	case h.broadcast <- e:
	default:
		h.logger.Warn("websocket broadcast queue full", slog.Int64("event_id", event.ID))
	}
}

// ConnectedClients counts subscribers of cameraID; "" counts every client
func (h *Hub) ConnectedClients(cameraID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if cameraID == allCameras {
		return len(h.clients)
	}
	return len(h.cameras[cameraID])
}

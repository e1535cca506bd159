package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/visionwell/vision-screening/backend/internal/domain/entities"
	"github.com/visionwell/vision-screening/backend/internal/domain/providers"
)

// PresenceHandler streams advisory presence events over Server-Sent Events.
// The stream is informational only: dropped events or a closed stream never
// affect workflow correctness.
type PresenceHandler struct {
	eventBus providers.EventBus
	clients  map[string]map[chan *entities.PresenceEvent]bool // channel -> clients
	mu       sync.RWMutex
}

// NewPresenceHandler creates a new presence handler
func NewPresenceHandler(eventBus providers.EventBus) *PresenceHandler {
	return &PresenceHandler{
		eventBus: eventBus,
		clients:  make(map[string]map[chan *entities.PresenceEvent]bool),
	}
}

// StreamSessionPresence handles SSE connections for one session's presence
// GET /api/stream/sessions/{id}/presence
func (h *PresenceHandler) StreamSessionPresence(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if sessionID == "" {
		respondWithError(w, http.StatusBadRequest, "session ID is required")
		return
	}

	channel := providers.SessionPresenceChannel(sessionID)
	h.stream(w, r, channel, map[string]interface{}{
		"session_id": sessionID,
		"timestamp":  time.Now(),
	})
}

// StreamAllPresence handles SSE connections for the fleet-wide presence feed
// GET /api/stream/presence
func (h *PresenceHandler) StreamAllPresence(w http.ResponseWriter, r *http.Request) {
	h.stream(w, r, providers.PresenceChannelAll, map[string]interface{}{
		"timestamp": time.Now(),
	})
}

func (h *PresenceHandler) stream(w http.ResponseWriter, r *http.Request, channel string, hello map[string]interface{}) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondWithError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// Set headers for SSE
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	clientChan := make(chan *entities.PresenceEvent, 10)
	h.registerClient(channel, clientChan)
	defer h.unregisterClient(channel, clientChan)

	eventChan, err := h.eventBus.Subscribe(r.Context(), channel)
	if err != nil {
		log.Printf("Failed to subscribe to channel %s: %v", channel, err)
		return
	}

	h.sendEvent(w, "connected", hello)
	flusher.Flush()

	go h.forwardEvents(r.Context(), eventChan, clientChan)

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			log.Printf("Client disconnected from presence stream: %s", channel)
			return
		case <-ticker.C:
			h.sendEvent(w, "heartbeat", map[string]interface{}{
				"timestamp": time.Now(),
			})
			flusher.Flush()
		case event := <-clientChan:
			if event == nil {
				continue
			}
			h.sendEvent(w, string(event.EventType), event)
			flusher.Flush()
		}
	}
}

// forwardEvents forwards events from the event bus to a client channel
func (h *PresenceHandler) forwardEvents(ctx context.Context, eventChan <-chan *entities.PresenceEvent, clientChan chan<- *entities.PresenceEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			select {
			case clientChan <- event:
			default:
				// Client channel full, skip event
			}
		}
	}
}

func (h *PresenceHandler) registerClient(channel string, clientChan chan *entities.PresenceEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[channel] == nil {
		h.clients[channel] = make(map[chan *entities.PresenceEvent]bool)
	}
	h.clients[channel][clientChan] = true
	log.Printf("Client registered for channel: %s (total: %d)", channel, len(h.clients[channel]))
}

func (h *PresenceHandler) unregisterClient(channel string, clientChan chan *entities.PresenceEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, exists := h.clients[channel]; exists {
		delete(clients, clientChan)
		log.Printf("Client unregistered from channel: %s (remaining: %d)", channel, len(clients))

		if len(clients) == 0 {
			delete(h.clients, channel)
		}
	}
}

// sendEvent writes one SSE frame to the client
func (h *PresenceHandler) sendEvent(w http.ResponseWriter, eventType string, data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("Failed to marshal event data: %v", err)
		return
	}

	fmt.Fprintf(w, "event: %s\n", eventType)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
}

// GetClientCount returns the number of connected clients for debugging
func (h *PresenceHandler) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := 0
	for _, clients := range h.clients {
		count += len(clients)
	}
	return count
}

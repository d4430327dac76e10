package www

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"rackcore/engine"
)

type sseMessage struct {
	name string
	data []byte
}

// EventHub fans engine events out to connected SSE clients. A slow client
// drops messages rather than blocking the bus.
type EventHub struct {
	bus     *engine.EventBus
	subID   int
	mu      sync.Mutex
	clients map[chan sseMessage]struct{}
	closed  bool
}

func NewEventHub(bus *engine.EventBus) *EventHub {
	h := &EventHub{bus: bus, clients: make(map[chan sseMessage]struct{})}
	h.subID = bus.Subscribe(h.broadcast)
	return h
}

func (h *EventHub) broadcast(evt engine.Event) {
	data, err := json.Marshal(map[string]any{
		"type":      evt.Type.String(),
		"timestamp": evt.Timestamp,
		"payload":   evt.Payload,
	})
	if err != nil {
		return
	}
	msg := sseMessage{name: evt.Type.String(), data: data}

	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

func (h *EventHub) add() (chan sseMessage, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	ch := make(chan sseMessage, 32)
	h.clients[ch] = struct{}{}
	return ch, true
}

func (h *EventHub) remove(ch chan sseMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[ch]; ok {
		delete(h.clients, ch)
		close(ch)
	}
}

func (h *EventHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close unsubscribes from the bus and disconnects every client.
func (h *EventHub) Close() {
	h.bus.Unsubscribe(h.subID)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for ch := range h.clients {
		delete(h.clients, ch)
		close(ch)
	}
}

func (h *Handlers) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.jsonError(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	ch, ok := h.eventHub.add()
	if !ok {
		h.jsonError(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	defer h.eventHub.remove(ch)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	keepalive := time.NewTicker(25 * time.Second)
	defer keepalive.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepalive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.name, msg.data)
			flusher.Flush()
		}
	}
}

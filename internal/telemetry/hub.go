// Package telemetry distributes transceiver events to SSE subscribers.
//
// The hub keeps a bounded replay buffer so a reconnecting client can
// resume from its Last-Event-ID without missing events, and emits
// periodic heartbeats while at least one client is subscribed.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Event types published by the container.
const (
	EventReady            = "ready"
	EventHeartbeat        = "heartbeat"
	EventConnected        = "connected"
	EventDisconnected     = "disconnected"
	EventFrequencyChanged = "frequencyChanged"
	EventFault            = "fault"
)

// Event represents a telemetry event with SSE formatting.
type Event struct {
	ID   int64                  `json:"id,omitempty"`
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data"`
}

// Client represents an SSE client connection.
type client struct {
	writer http.ResponseWriter
	ctx    context.Context
	cancel context.CancelFunc
	events chan Event
	once   sync.Once
	mu     sync.Mutex
}

// Options configures the hub.
type Options struct {
	// BufferSize bounds the replay buffer; 0 means 50.
	BufferSize int

	// HeartbeatInterval between heartbeat events; 0 means 15s.
	HeartbeatInterval time.Duration

	// Snapshot supplies the state payload for the initial ready event.
	// Nil means an empty snapshot.
	Snapshot func() map[string]interface{}
}

// Hub manages SSE telemetry distribution with a bounded replay buffer.
type Hub struct {
	opts Options

	mu      sync.RWMutex
	clients map[string]*client
	buffer  []Event
	nextID  int64

	heartbeatTicker *time.Ticker
	stopHeartbeat   chan struct{}

	done chan struct{}
	wg   sync.WaitGroup
}

// NewHub creates a telemetry hub.
func NewHub(opts Options) *Hub {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 50
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = 15 * time.Second
	}
	return &Hub{
		opts:    opts,
		clients: make(map[string]*client),
		buffer:  make([]Event, 0, opts.BufferSize),
		done:    make(chan struct{}),
	}
}

// Subscribe handles an SSE client subscription. It blocks until the
// client disconnects or the hub stops. A Last-Event-ID header resumes
// the stream from the replay buffer.
func (h *Hub) Subscribe(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	clientCtx, cancel := context.WithCancel(ctx)
	c := &client{
		writer: w,
		ctx:    clientCtx,
		cancel: cancel,
		events: make(chan Event, 100),
	}
	clientID := fmt.Sprintf("client_%d", time.Now().UnixNano())

	var lastEventID int64
	if lastIDStr := r.Header.Get("Last-Event-ID"); lastIDStr != "" {
		if id, err := strconv.ParseInt(lastIDStr, 10, 64); err == nil {
			lastEventID = id
		}
	}

	h.mu.Lock()
	h.clients[clientID] = c
	if len(h.clients) == 1 && h.heartbeatTicker == nil {
		h.startHeartbeat()
	}
	h.mu.Unlock()

	if err := h.sendEvent(c, h.readyEvent()); err != nil {
		h.unregister(clientID)
		return fmt.Errorf("send ready event: %w", err)
	}

	if lastEventID > 0 {
		for _, event := range h.eventsAfter(lastEventID) {
			if err := h.sendEvent(c, event); err != nil {
				h.unregister(clientID)
				return fmt.Errorf("replay events: %w", err)
			}
		}
	}

	h.serveClient(clientID, c)
	return nil
}

// Publish assigns the event a monotonic ID, buffers it for replay, and
// fans it out to all subscribers. Slow clients are skipped rather than
// allowed to block the publisher.
func (h *Hub) Publish(event Event) {
	h.mu.Lock()
	h.nextID++
	event.ID = h.nextID
	h.buffer = append(h.buffer, event)
	if len(h.buffer) > h.opts.BufferSize {
		h.buffer = h.buffer[1:]
	}
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		select {
		case <-c.ctx.Done():
		case <-h.done:
			return
		case c.events <- event:
		case <-time.After(100 * time.Millisecond):
			// Drop for this client.
		}
	}
}

// PublishType is a convenience wrapper around Publish.
func (h *Hub) PublishType(eventType string, data map[string]interface{}) {
	h.Publish(Event{Type: eventType, Data: data})
}

// Stop shuts the hub down and disconnects all clients.
func (h *Hub) Stop() {
	close(h.done)

	h.mu.Lock()
	for _, c := range h.clients {
		c.cancel()
	}
	if h.heartbeatTicker != nil {
		h.heartbeatTicker.Stop()
		h.heartbeatTicker = nil
	}
	if h.stopHeartbeat != nil {
		close(h.stopHeartbeat)
		h.stopHeartbeat = nil
	}
	h.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(5 * time.Second):
	}

	h.mu.Lock()
	for _, c := range h.clients {
		c.cancel()
		c.once.Do(func() { close(c.events) })
	}
	h.clients = make(map[string]*client)
	h.mu.Unlock()
}

func (h *Hub) readyEvent() Event {
	snapshot := map[string]interface{}{}
	if h.opts.Snapshot != nil {
		snapshot = h.opts.Snapshot()
	}

	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.mu.Unlock()

	return Event{
		ID:   id,
		Type: EventReady,
		Data: map[string]interface{}{"snapshot": snapshot},
	}
}

func (h *Hub) eventsAfter(lastID int64) []Event {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var result []Event
	for _, event := range h.buffer {
		if event.ID > lastID {
			result = append(result, event)
		}
	}
	return result
}

// sendEvent writes a single event to a client in SSE wire form.
func (h *Hub) sendEvent(c *client, event Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if event.ID > 0 {
		if _, err := fmt.Fprintf(c.writer, "id: %d\n", event.ID); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(c.writer, "event: %s\n", event.Type); err != nil {
		return err
	}

	data, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}
	if _, err := fmt.Fprintf(c.writer, "data: %s\n\n", data); err != nil {
		return err
	}

	if flusher, ok := c.writer.(http.Flusher); ok {
		flusher.Flush()
	}
	return nil
}

// serveClient pumps events to one client until it disconnects.
func (h *Hub) serveClient(clientID string, c *client) {
	defer func() {
		c.once.Do(func() { close(c.events) })
		h.unregister(clientID)
	}()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-h.done:
			return
		case event, ok := <-c.events:
			if !ok {
				return
			}
			if err := h.sendEvent(c, event); err != nil {
				return
			}
		}
	}
}

func (h *Hub) unregister(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c, exists := h.clients[clientID]; exists {
		c.cancel()
		delete(h.clients, clientID)

		if len(h.clients) == 0 && h.heartbeatTicker != nil {
			h.heartbeatTicker.Stop()
			h.heartbeatTicker = nil
			if h.stopHeartbeat != nil {
				close(h.stopHeartbeat)
				h.stopHeartbeat = nil
			}
		}
	}
}

// startHeartbeat runs while at least one client is subscribed. Caller
// must hold h.mu with h.heartbeatTicker == nil.
func (h *Hub) startHeartbeat() {
	h.heartbeatTicker = time.NewTicker(h.opts.HeartbeatInterval)
	h.stopHeartbeat = make(chan struct{})

	ticker := h.heartbeatTicker
	stop := h.stopHeartbeat

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		for {
			select {
			case <-ticker.C:
				h.PublishType(EventHeartbeat, map[string]interface{}{
					"ts": time.Now().UTC().Format(time.RFC3339),
				})
			case <-stop:
				return
			case <-h.done:
				return
			}
		}
	}()
}

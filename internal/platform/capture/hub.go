package capture

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"
)

// PatientTopic is the hub topic carrying updates for one patient's forms.
func PatientTopic(patient string) string {
	return "patient:" + patient
}

// Client is one connection receiving broadcast frames.
type Client struct {
	ID    string
	Topic string
	Send  chan []byte
}

// NewClient returns a client with a buffered send channel.
func NewClient(id, topic string) *Client {
	return &Client{ID: id, Topic: topic, Send: make(chan []byte, 256)}
}

// Hub fans capture updates out to viewers. While a topic has an open
// capture session or a viewer, the hub keeps its last frame so that a
// viewer joining mid-drawing starts from the current state. The frame is
// dropped once the topic has neither.
type Hub struct {
	logger zerolog.Logger

	mu       sync.RWMutex
	clients  map[string]map[*Client]struct{} // topic -> set of clients
	captures map[string]int                  // topic -> open capture sessions
	last     map[string][]byte
}

// NewHub creates an empty hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		logger:   logger,
		clients:  make(map[string]map[*Client]struct{}),
		captures: make(map[string]int),
		last:     make(map[string][]byte),
	}
}

// Register subscribes client to its topic and queues the topic's last
// frame, if any.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[client.Topic] == nil {
		h.clients[client.Topic] = make(map[*Client]struct{})
	}
	h.clients[client.Topic][client] = struct{}{}

	if data, ok := h.last[client.Topic]; ok {
		select {
		case client.Send <- data:
		default:
		}
	}
}

// Unregister removes client and closes its Send channel. Unregistering
// twice is a no-op.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subscribers, ok := h.clients[client.Topic]
	if !ok {
		return
	}
	if _, ok := subscribers[client]; !ok {
		return
	}
	delete(subscribers, client)
	if len(subscribers) == 0 {
		delete(h.clients, client.Topic)
	}
	close(client.Send)
	h.releaseIdle(client.Topic)
}

// BeginCapture records an open capture session on topic.
func (h *Hub) BeginCapture(topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.captures[topic]++
}

// EndCapture records that a capture session on topic has closed.
func (h *Hub) EndCapture(topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.captures[topic] <= 1 {
		delete(h.captures, topic)
	} else {
		h.captures[topic]--
	}
	h.releaseIdle(topic)
}

// releaseIdle drops the last frame of a topic nobody captures or watches.
// h.mu must be held.
func (h *Hub) releaseIdle(topic string) {
	if h.captures[topic] == 0 && len(h.clients[topic]) == 0 {
		delete(h.last, topic)
	}
}

// Broadcast sends frame to every subscriber of topic and, while the topic
// is active, remembers it as the topic's last frame. Slow subscribers miss
// frames rather than block the capture session.
func (h *Hub) Broadcast(topic string, frame ServerFrame) {
	data, err := json.Marshal(frame)
	if err != nil {
		h.logger.Error().Err(err).Str("topic", topic).Msg("marshal capture frame")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.captures[topic] > 0 || len(h.clients[topic]) > 0 {
		h.last[topic] = data
	}
	for client := range h.clients[topic] {
		select {
		case client.Send <- data:
		default:
			h.logger.Warn().Str("client_id", client.ID).Str("topic", topic).Msg("viewer buffer full, frame dropped")
		}
	}
}

// TopicCount returns the number of clients subscribed to topic.
func (h *Hub) TopicCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}

// Remembered reports whether the hub holds a last frame for topic.
func (h *Hub) Remembered(topic string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.last[topic]
	return ok
}

// ClientCount returns the total number of subscribed clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, subscribers := range h.clients {
		n += len(subscribers)
	}
	return n
}

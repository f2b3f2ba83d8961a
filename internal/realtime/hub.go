package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30 * time.Second
	PongWait     = 60 * time.Second

	// EventPoke tells clients that rows in their organization changed and they should pull.
	EventPoke = "poke"
)

// Hub maintains org_id -> set of connections and broadcasts messages.
// With Redis configured, events go through pub/sub so every instance delivers them once.
type Hub struct {
	orgs   map[uuid.UUID]map[string]*Client
	subs   map[uuid.UUID]func() // cancel Redis subscription per org
	mu     sync.RWMutex
	logger *zap.Logger
	pub    Publisher
	sub    Subscriber
	now    func() time.Time
}

// Publisher publishes org events to other instances.
type Publisher interface {
	PublishOrgEvent(orgID uuid.UUID, event string, payload []byte) error
}

// Subscriber subscribes to org channels and invokes handler for incoming events.
type Subscriber interface {
	SubscribeOrg(orgID uuid.UUID, handler func(event string, payload []byte)) (cancel func(), err error)
}

// PokePayload is the body of a poke event.
type PokePayload struct {
	At int64 `json:"at"` // epoch ms
}

// NewHub creates a new WebSocket hub. pub and sub may be nil for a single instance.
func NewHub(logger *zap.Logger, pub Publisher, sub Subscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		orgs:   make(map[uuid.UUID]map[string]*Client),
		subs:   make(map[uuid.UUID]func()),
		logger: logger,
		pub:    pub,
		sub:    sub,
		now:    time.Now,
	}
}

// Register adds a client to its org room. The Redis subscription for the org
// starts with the first client; a failed subscription is retried on the next
// Register and, until then, Publish delivers locally.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.orgs[c.OrgID] == nil {
		h.orgs[c.OrgID] = make(map[string]*Client)
	}
	h.orgs[c.OrgID][c.ID] = c
	h.subscribeLocked(c.OrgID)
	h.mu.Unlock()
	h.logger.Debug("client connected", zap.String("client_id", c.ID), zap.String("org_id", c.OrgID.String()))
}

func (h *Hub) subscribeLocked(orgID uuid.UUID) {
	if h.sub == nil {
		return
	}
	if _, ok := h.subs[orgID]; ok {
		return
	}
	cancel, err := h.sub.SubscribeOrg(orgID, func(event string, payload []byte) {
		h.Broadcast(orgID, event, json.RawMessage(payload))
	})
	if err != nil {
		h.logger.Warn("subscribe org channel", zap.String("org_id", orgID.String()), zap.Error(err))
		return
	}
	h.subs[orgID] = cancel
}

// Unregister removes a client. Cancels the Redis subscription when the last client of the org leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if m, ok := h.orgs[c.OrgID]; ok {
		if _, ok := m[c.ID]; ok {
			delete(m, c.ID)
			close(c.send)
		}
		if len(m) == 0 {
			delete(h.orgs, c.OrgID)
			if cancel, ok := h.subs[c.OrgID]; ok {
				cancel()
				delete(h.subs, c.OrgID)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("client disconnected", zap.String("client_id", c.ID), zap.String("org_id", c.OrgID.String()))
}

// Broadcast sends a message to all local clients of an org.
func (h *Hub) Broadcast(orgID uuid.UUID, event string, payload any) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		data, _ = json.Marshal(payload)
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.orgs[orgID] {
		select {
		case c.send <- msg:
		default:
			// buffer full; the client pulls on its next poke
		}
	}
}

// Publish delivers an event to every instance's clients of orgID. Without Redis
// it broadcasts locally; with Redis the subscriber callback does the broadcast.
// Local clients of an org without a live subscription, or whose event could not
// be published, are served directly.
func (h *Hub) Publish(orgID uuid.UUID, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if h.pub == nil {
		h.Broadcast(orgID, event, json.RawMessage(data))
		return
	}
	perr := h.pub.PublishOrgEvent(orgID, event, data)
	if perr != nil {
		h.logger.Warn("publish org event", zap.String("org_id", orgID.String()), zap.Error(perr))
	}
	if perr != nil || !h.subscribed(orgID) {
		h.Broadcast(orgID, event, json.RawMessage(data))
	}
}

func (h *Hub) subscribed(orgID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.subs[orgID]
	return ok
}

// Poke tells the org's clients to pull.
func (h *Hub) Poke(orgID uuid.UUID) {
	h.Publish(orgID, EventPoke, PokePayload{At: h.now().UnixMilli()})
}

// ClientCount returns the number of connected clients for an org.
func (h *Hub) ClientCount(orgID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.orgs[orgID])
}

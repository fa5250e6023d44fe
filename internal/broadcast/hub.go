package broadcast

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// SpecialClient names a non-human connection the hub relays subscription
// commands to, separate from the ordinary channel-subscriber sets.
type SpecialClient string

// OrderService is the matching engine's own websocket connection, used so
// it can learn which markets currently have live subscribers.
const OrderService SpecialClient = "order_service"

// subscribeEnvelope is the JSON frame relayed to a special client when a
// channel gains or loses its first/last subscriber.
type subscribeEnvelope struct {
	Op      string `json:"op"`
	Channel string `json:"channel"`
}

// Hub owns every channel's subscriber set and the special-client registry.
// Its map is guarded by its own RWMutex, independent of any per-client
// write lock and independent of the matching engine's book lock.
type Hub struct {
	mu             sync.RWMutex
	subscribers    map[Channel]map[uuid.UUID]*Client
	specialClients map[SpecialClient]*Client
}

// NewHub constructs an empty hub.
func NewHub() *Hub {
	return &Hub{
		subscribers:    make(map[Channel]map[uuid.UUID]*Client),
		specialClients: make(map[SpecialClient]*Client),
	}
}

// Subscribe adds client to channel's subscriber set. If this is the
// channel's first subscriber, the registered OrderService special client
// (if any) is notified.
func (h *Hub) Subscribe(channel Channel, client *Client) {
	h.mu.Lock()
	set, ok := h.subscribers[channel]
	if !ok {
		set = make(map[uuid.UUID]*Client)
		h.subscribers[channel] = set
	}
	wasEmpty := len(set) == 0
	set[client.ID] = client
	special := h.specialClients[OrderService]
	h.mu.Unlock()

	if wasEmpty && special != nil {
		h.notifySpecial(special, "subscribe", channel)
	}
}

// Unsubscribe removes client from channel's subscriber set. If this was
// the channel's last subscriber, the registered OrderService special
// client (if any) is notified symmetrically with Subscribe.
func (h *Hub) Unsubscribe(channel Channel, client *Client) {
	h.mu.Lock()
	set, ok := h.subscribers[channel]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(set, client.ID)
	nowEmpty := len(set) == 0
	if nowEmpty {
		delete(h.subscribers, channel)
	}
	special := h.specialClients[OrderService]
	h.mu.Unlock()

	if nowEmpty && special != nil {
		h.notifySpecial(special, "unsubscribe", channel)
	}
}

// UnsubscribeAll removes client from every channel it belongs to, used on
// disconnect.
func (h *Hub) UnsubscribeAll(client *Client) {
	h.mu.RLock()
	var channels []Channel
	for ch, set := range h.subscribers {
		if _, ok := set[client.ID]; ok {
			channels = append(channels, ch)
		}
	}
	h.mu.RUnlock()

	for _, ch := range channels {
		h.Unsubscribe(ch, client)
	}
}

// RegisterSpecialClient binds name to client, replacing any prior binding.
func (h *Hub) RegisterSpecialClient(name SpecialClient, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.specialClients[name] = client
}

// Publish sends payload as a binary frame to every subscriber of channel.
func (h *Hub) Publish(channel Channel, payload []byte) {
	h.mu.RLock()
	set := h.subscribers[channel]
	clients := make([]*Client, 0, len(set))
	for _, c := range set {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if err := c.WriteBinary(payload); err != nil {
			log.Error().Err(err).Str("channel", string(channel)).Msg("failed to publish to subscriber")
		}
	}
}

// HasSubscribers reports whether channel currently has at least one
// subscriber.
func (h *Hub) HasSubscribers(channel Channel) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[channel]) > 0
}

func (h *Hub) notifySpecial(client *Client, op string, channel Channel) {
	payload, err := json.Marshal(subscribeEnvelope{Op: op, Channel: string(channel)})
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal special-client envelope")
		return
	}
	if err := client.WriteText(payload); err != nil {
		log.Error().Err(err).Msg("failed to notify special client")
	}
}

package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/studyshare/studyshare-backend/internal/domain"
	pkglogger "github.com/studyshare/studyshare-backend/pkg/logger"
)

// DefaultRelayChannel is the Redis channel shared by all instances
const DefaultRelayChannel = "studyshare:events"

// fan-out kinds, also used on the relay
const (
	kindAll     = "all"
	kindUser    = "user"
	kindMembers = "members"
	kindRoom    = "room"
	kindEvict   = "evict"
)

// Event is the JSON frame exchanged with socket clients
type Event struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// ChatService is what the hub needs from the group chat pipeline to serve
// client-sent events
type ChatService interface {
	IsMember(ctx context.Context, groupID uint, userID string) (bool, error)
	SendMessage(ctx context.Context, groupID uint, senderID, content string, uploads []*domain.Upload) (*domain.Message, error)
}

// Hub tracks socket connections, the identity bound to each and the group chat
// rooms they joined. At most one connection is bound per identity; the latest
// registration wins.
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]struct{}
	identities map[string]*Client
	rooms      map[string]map[*Client]struct{}

	chats ChatService

	redisClient *redis.Client
	channel     string
	instanceID  string

	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub creates a new Hub. redisClient may be nil for a single instance.
func NewHub(redisClient *redis.Client, channel string) *Hub {
	if channel == "" {
		channel = DefaultRelayChannel
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:     make(map[*Client]struct{}),
		identities:  make(map[string]*Client),
		rooms:       make(map[string]map[*Client]struct{}),
		redisClient: redisClient,
		channel:     channel,
		instanceID:  uuid.NewString(),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// UseChats wires the chat pipeline used for joinGroupChat and sendGroupMessage
func (h *Hub) UseChats(chats ChatService) {
	h.mu.Lock()
	h.chats = chats
	h.mu.Unlock()
}

func (h *Hub) chatService() ChatService {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.chats
}

// Run consumes the cross-instance relay until Stop is called
func (h *Hub) Run() {
	if h.redisClient == nil {
		<-h.ctx.Done()
		return
	}
	h.subscribeRedis()
}

// Stop closes every connection and ends Run
func (h *Hub) Stop() {
	h.cancel()

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		h.Detach(c)
	}
}

// Attach starts tracking a new connection
func (h *Hub) Attach(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	connectedClients.Set(float64(len(h.clients)))
	h.mu.Unlock()
}

// Detach forgets the connection entirely and closes its send queue
func (h *Hub) Detach(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return
	}
	h.unregisterLocked(c)
	delete(h.clients, c)
	close(c.send)
	connectedClients.Set(float64(len(h.clients)))
}

// Register binds userID to c, replacing any previous connection of userID
func (h *Hub) Register(userID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return
	}
	if c.userID != "" && c.userID != userID && h.identities[c.userID] == c {
		delete(h.identities, c.userID)
	}
	c.userID = userID
	h.identities[userID] = c
	registeredIdentities.Set(float64(len(h.identities)))

	pkglogger.GetLogger().Debug().Str("user_id", userID).Msg("socket registered")
}

// Unregister drops c's identity binding and room subscriptions. The identity
// is only removed if it still points at c.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	h.unregisterLocked(c)
	h.mu.Unlock()
}

func (h *Hub) unregisterLocked(c *Client) {
	if c.userID != "" && h.identities[c.userID] == c {
		delete(h.identities, c.userID)
		registeredIdentities.Set(float64(len(h.identities)))
	}
	for room, members := range h.rooms {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// JoinRoom subscribes c to room
func (h *Hub) JoinRoom(room string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return
	}
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]struct{})
	}
	h.rooms[room][c] = struct{}{}
}

// LeaveRoom unsubscribes c from room
func (h *Hub) LeaveRoom(room string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// IsConnected reports whether userID has a bound connection on this instance
func (h *Hub) IsConnected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.identities[userID]
	return ok
}

// BroadcastAll sends an event to every connection
func (h *Hub) BroadcastAll(event string, data interface{}) {
	h.publish(relayMessage{Kind: kindAll}, event, data)
}

// PushToUser sends an event to userID's connection. It reports whether a
// connection on this instance received it.
func (h *Hub) PushToUser(userID, event string, data interface{}) bool {
	return h.publish(relayMessage{Kind: kindUser, Users: []string{userID}}, event, data) > 0
}

// PushToMembers sends an event to each listed identity that is connected
func (h *Hub) PushToMembers(userIDs []string, event string, data interface{}) {
	if len(userIDs) == 0 {
		return
	}
	h.publish(relayMessage{Kind: kindMembers, Users: userIDs}, event, data)
}

// PushToRoom sends an event to the connections subscribed to room
func (h *Hub) PushToRoom(room, event string, data interface{}) {
	h.publish(relayMessage{Kind: kindRoom, Room: room}, event, data)
}

// EvictFromRoom unsubscribes userID's connection from room
func (h *Hub) EvictFromRoom(userID, room string) {
	msg := relayMessage{Kind: kindEvict, Users: []string{userID}, Room: room}
	h.apply(msg)
	h.relay(msg)
}

// publish delivers locally and relays to other instances. Returns the number
// of local connections the frame was queued on.
func (h *Hub) publish(msg relayMessage, event string, data interface{}) int {
	frame, err := json.Marshal(Event{Event: event, Data: data})
	if err != nil {
		eventsDropped.WithLabelValues("encode").Inc()
		pkglogger.GetLogger().Error().Err(err).Str("event", event).Msg("failed to encode socket event")
		return 0
	}
	msg.Frame = frame

	n := h.apply(msg)
	h.relay(msg)
	return n
}

// apply performs msg against local connections
func (h *Hub) apply(msg relayMessage) int {
	if msg.Kind == kindEvict {
		h.mu.Lock()
		for _, userID := range msg.Users {
			if c, ok := h.identities[userID]; ok {
				if members, ok := h.rooms[msg.Room]; ok {
					delete(members, c)
					if len(members) == 0 {
						delete(h.rooms, msg.Room)
					}
				}
			}
		}
		h.mu.Unlock()
		return 0
	}

	var slow []*Client
	delivered := 0

	h.mu.RLock()
	for _, c := range h.targetsLocked(msg) {
		select {
		case c.send <- msg.Frame:
			delivered++
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	eventsDelivered.WithLabelValues(msg.Kind).Add(float64(delivered))
	if msg.Kind == kindUser && delivered == 0 && len(slow) == 0 {
		eventsDropped.WithLabelValues("offline").Inc()
	}
	for _, c := range slow {
		eventsDropped.WithLabelValues("slow_consumer").Inc()
		pkglogger.GetLogger().Warn().Str("user_id", c.UserID()).Msg("socket send buffer full, disconnecting")
		h.Detach(c)
	}
	return delivered
}

// targetsLocked resolves the connections addressed by msg; caller holds mu
func (h *Hub) targetsLocked(msg relayMessage) []*Client {
	var targets []*Client
	switch msg.Kind {
	case kindAll:
		targets = make([]*Client, 0, len(h.clients))
		for c := range h.clients {
			targets = append(targets, c)
		}
	case kindUser, kindMembers:
		for _, userID := range msg.Users {
			if c, ok := h.identities[userID]; ok {
				targets = append(targets, c)
			}
		}
	case kindRoom:
		for c := range h.rooms[msg.Room] {
			targets = append(targets, c)
		}
	}
	return targets
}

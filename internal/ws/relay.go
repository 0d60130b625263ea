package ws

import (
	"encoding/json"

	pkglogger "github.com/studyshare/studyshare-backend/pkg/logger"
)

// relayMessage carries one fan-out between instances. Frame is the encoded
// Event exactly as clients receive it.
type relayMessage struct {
	Origin string          `json:"origin"`
	Kind   string          `json:"kind"`
	Users  []string        `json:"users,omitempty"`
	Room   string          `json:"room,omitempty"`
	Frame  json.RawMessage `json:"frame,omitempty"`
}

// relay publishes msg for the other instances
func (h *Hub) relay(msg relayMessage) {
	if h.redisClient == nil {
		return
	}
	msg.Origin = h.instanceID
	data, err := json.Marshal(msg)
	if err != nil {
		relayErrors.Inc()
		return
	}
	if err := h.redisClient.Publish(h.ctx, h.channel, data).Err(); err != nil {
		relayErrors.Inc()
		pkglogger.GetLogger().Warn().Err(err).Str("channel", h.channel).Msg("relay publish failed")
	}
}

// subscribeRedis listens for fan-outs from other instances
func (h *Hub) subscribeRedis() {
	pubsub := h.redisClient.Subscribe(h.ctx, h.channel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.handleRelay([]byte(msg.Payload))
		case <-h.ctx.Done():
			return
		}
	}
}

// handleRelay applies a relayed fan-out locally without publishing it again
func (h *Hub) handleRelay(payload []byte) {
	var msg relayMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		relayErrors.Inc()
		pkglogger.GetLogger().Warn().Err(err).Msg("malformed relay message")
		return
	}
	if msg.Origin == h.instanceID {
		return
	}
	h.apply(msg)
}

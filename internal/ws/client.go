package ws

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/studyshare/studyshare-backend/internal/common"
	"github.com/studyshare/studyshare-backend/internal/domain"
	"github.com/studyshare/studyshare-backend/internal/service"
	pkglogger "github.com/studyshare/studyshare-backend/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
	sendBuffer     = 256
	handlerTimeout = 10 * time.Second
)

// Client represents a single WebSocket connection
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	// identity proven at upgrade, empty for anonymous sockets
	authUserID string
	// identity bound through Register, guarded by hub.mu
	userID string

	closeOnce sync.Once
}

// NewClient creates a new WebSocket client. authUserID is the identity
// authenticated at upgrade time, or empty.
func NewClient(hub *Hub, conn *websocket.Conn, authUserID string) *Client {
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBuffer),
		authUserID: authUserID,
	}
}

// UserID returns the identity currently bound to the connection
func (c *Client) UserID() string {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	return c.userID
}

// ReadPump reads client events until the connection fails
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Detach(c)
		c.close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				pkglogger.GetLogger().Debug().Err(err).Str("user_id", c.authUserID).Msg("socket closed unexpectedly")
			}
			break
		}
		c.handle(message)
	}
}

// WritePump sends messages to the WebSocket
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message) //nolint:errcheck
			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		if c.conn != nil {
			c.conn.Close()
		}
	})
}

type inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type registerData struct {
	UserID string `json:"userId"`
}

// UnmarshalJSON accepts {"userId":"A"} or the bare id "A"
func (r *registerData) UnmarshalJSON(b []byte) error {
	var id string
	if err := json.Unmarshal(b, &id); err == nil {
		r.UserID = id
		return nil
	}
	type plain registerData
	return json.Unmarshal(b, (*plain)(r))
}

type groupData struct {
	GroupID groupID `json:"groupId"`
	Content string  `json:"content"`
}

// groupID accepts both 12 and "12"
type groupID uint

func (g *groupID) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return err
	}
	*g = groupID(n)
	return nil
}

// handle dispatches one client-sent frame
func (c *Client) handle(raw []byte) {
	var in inbound
	if err := json.Unmarshal(raw, &in); err != nil {
		c.reject("", "malformed event")
		return
	}

	switch in.Event {
	case domain.EventRegister:
		if d, ok := c.registerEvent(in); ok {
			c.register(d.UserID)
		}
	case domain.EventJoinGroupChat:
		if d, ok := c.groupEvent(in); ok {
			c.joinGroup(uint(d.GroupID))
		}
	case domain.EventLeaveGroupChat:
		if d, ok := c.groupEvent(in); ok {
			c.hub.LeaveRoom(service.GroupRoom(uint(d.GroupID)), c)
		}
	case domain.EventSendGroupMessage:
		if d, ok := c.groupEvent(in); ok {
			c.sendGroupMessage(uint(d.GroupID), d.Content)
		}
	default:
		c.reject(in.Event, "unknown event")
	}
}

// registerEvent decodes a register payload. An empty payload registers the
// authenticated identity.
func (c *Client) registerEvent(in inbound) (registerData, bool) {
	var d registerData
	if len(in.Data) == 0 || string(in.Data) == "null" {
		return d, true
	}
	if err := json.Unmarshal(in.Data, &d); err != nil {
		c.reject(in.Event, "malformed register payload")
		return d, false
	}
	return d, true
}

func (c *Client) groupEvent(in inbound) (groupData, bool) {
	var d groupData
	if err := json.Unmarshal(in.Data, &d); err != nil || d.GroupID == 0 {
		c.reject(in.Event, "groupId is required")
		return d, false
	}
	if c.UserID() == "" {
		c.reject(in.Event, "register first")
		return d, false
	}
	return d, true
}

func (c *Client) register(requested string) {
	if c.authUserID == "" {
		c.reject(domain.EventRegister, "authentication required")
		return
	}
	if requested != "" && requested != c.authUserID {
		c.reject(domain.EventRegister, "cannot register as another user")
		return
	}
	c.hub.Register(c.authUserID, c)
}

func (c *Client) joinGroup(groupID uint) {
	chats := c.hub.chatService()
	if chats == nil {
		c.reject(domain.EventJoinGroupChat, "group chat unavailable")
		return
	}

	ctx, cancel := context.WithTimeout(c.hub.ctx, handlerTimeout)
	defer cancel()

	ok, err := chats.IsMember(ctx, groupID, c.UserID())
	if err != nil {
		pkglogger.GetLogger().Error().Err(err).Uint("group_id", groupID).Msg("membership check failed")
		c.reject(domain.EventJoinGroupChat, "membership check failed")
		return
	}
	if !ok {
		c.reject(domain.EventJoinGroupChat, "not a member of this group chat")
		return
	}
	c.hub.JoinRoom(service.GroupRoom(groupID), c)
}

func (c *Client) sendGroupMessage(groupID uint, content string) {
	chats := c.hub.chatService()
	if chats == nil {
		c.reject(domain.EventSendGroupMessage, "group chat unavailable")
		return
	}

	ctx, cancel := context.WithTimeout(c.hub.ctx, handlerTimeout)
	defer cancel()

	// fan-out back to this socket happens through the room
	if _, err := chats.SendMessage(ctx, groupID, c.UserID(), content, nil); err != nil {
		c.reject(domain.EventSendGroupMessage, clientMessage(err))
	}
}

// clientMessage hides internal failures from socket clients
func clientMessage(err error) string {
	var verr *common.ValidationError
	switch {
	case errors.As(err, &verr):
		return verr.Error()
	case errors.Is(err, common.ErrForbidden):
		return "not a member of this group chat"
	case errors.Is(err, common.ErrNotFound):
		return "group chat not found"
	default:
		pkglogger.GetLogger().Error().Err(err).Msg("socket send failed")
		return "failed to send message"
	}
}

// reject answers the client with an error frame
func (c *Client) reject(event, message string) {
	frame, err := json.Marshal(Event{
		Event: domain.EventError,
		Data:  map[string]string{"event": event, "message": message},
	})
	if err != nil {
		return
	}

	c.hub.mu.RLock()
	_, attached := c.hub.clients[c]
	if attached {
		select {
		case c.send <- frame:
		default:
		}
	}
	c.hub.mu.RUnlock()
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/studyshare/studyshare-backend/internal/config"
	"github.com/studyshare/studyshare-backend/internal/middleware"
	"github.com/studyshare/studyshare-backend/internal/ws"
	pkglogger "github.com/studyshare/studyshare-backend/pkg/logger"
)

// WSHandler handles WebSocket connections
type WSHandler struct {
	hub            *ws.Hub
	allowedOrigins []string
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler
func NewWSHandler(hub *ws.Hub, allowedOrigins string) *WSHandler {
	h := &WSHandler{
		hub:            hub,
		allowedOrigins: config.SplitAndTrim(allowedOrigins, ","),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// checkOrigin validates the request origin against allowed origins
func (h *WSHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	// no allow-list configured: development
	if len(h.allowedOrigins) == 0 {
		return true
	}

	for _, allowed := range h.allowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}

// Connect handles GET /ws. Authenticated sockets are registered under their
// identity right away; anonymous sockets only receive broadcasts.
func (h *WSHandler) Connect(c *gin.Context) {
	userID := middleware.GetUserID(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		pkglogger.GetLogger().Debug().Err(err).Msg("socket upgrade failed")
		return
	}

	client := ws.NewClient(h.hub, conn, userID)
	h.hub.Attach(client)
	if userID != "" {
		h.hub.Register(userID, client)
	}
	pkglogger.GetLogger().Debug().Str("user_id", userID).Msg("socket connected")

	go client.WritePump()
	go client.ReadPump()
}

package realtime

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/anonto42/nano-social/backend/internal/apperrors"
	"github.com/anonto42/nano-social/backend/internal/metrics"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 32
)

// TokenVerifier resolves a bearer token to a user id.
type TokenVerifier interface {
	UserID(token string) (primitive.ObjectID, error)
}

type inboundEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type joinPayload struct {
	Token string `json:"token"`
}

// Handler serves the live notification channel over WebSocket.
type Handler struct {
	registry *Registry
	tokens   TokenVerifier
	upgrader websocket.Upgrader
}

func NewHandler(registry *Registry, tokens TokenVerifier) *Handler {
	return &Handler{
		registry: registry,
		tokens:   tokens,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// RegisterLiveRoutes registers the WebSocket endpoint
func (h *Handler) RegisterLiveRoutes(e *echo.Echo) {
	e.GET("/ws", h.Serve)
}

// Serve upgrades the request and runs the connection until either side
// closes it. Connections over the cap are refused before the upgrade.
func (h *Handler) Serve(c echo.Context) error {
	if !h.registry.Acquire() {
		metrics.LiveConnectionsRejected.Inc()
		return apperrors.ServiceUnavailable("live connection limit reached")
	}
	defer h.registry.Release()

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader already wrote the error response
		log.Debugf("WebSocket upgrade error: %s", err)
		return nil
	}
	defer conn.Close()

	session := NewSession(sendBufferSize)
	defer h.registry.Leave(session)
	defer session.Close()

	go h.writeLoop(conn, session)
	h.readLoop(conn, session)
	return nil
}

func (h *Handler) readLoop(conn *websocket.Conn, session *Session) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debugf("WebSocket read error: %s", err)
			}
			return
		}

		var in inboundEvent
		if err := json.Unmarshal(msg, &in); err != nil {
			h.replyError(session, "malformed event")
			continue
		}
		switch in.Event {
		case EventJoin:
			h.join(session, in.Data)
		default:
			h.replyError(session, "unknown event: "+in.Event)
		}
	}
}

func (h *Handler) join(session *Session, data json.RawMessage) {
	var payload joinPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.Token == "" {
		h.replyError(session, "join requires a token")
		return
	}
	userID, err := h.tokens.UserID(payload.Token)
	if err != nil {
		h.replyError(session, "invalid token")
		return
	}
	h.registry.Join(userID, session)
	h.reply(session, EventJoined, map[string]string{"user_id": userID.Hex()})
}

func (h *Handler) reply(session *Session, event string, data any) {
	payload, err := json.Marshal(Event{Event: event, Data: data})
	if err != nil {
		return
	}
	session.Send(payload)
}

// replyError sends an error event. Every server event carries an object.
func (h *Handler) replyError(session *Session, message string) {
	h.reply(session, EventError, map[string]string{"message": message})
}

func (h *Handler) writeLoop(conn *websocket.Conn, session *Session) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case payload := <-session.Outbound():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				conn.Close()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return
			}
		case <-session.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

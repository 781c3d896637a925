package relay

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/golang-jwt/jwt/v5"

	"codecollab/internal/dto"
	"codecollab/internal/pkg/logger"
	"codecollab/pkg/events"
	pktNats "codecollab/pkg/nats"
)

// Handler authenticates websocket handshakes and routes inbound envelopes.
// The auth token and the project/user ids are handshake metadata: verified
// once, never per message.
type Handler struct {
	hub       *Hub
	publisher *pktNats.Publisher
	secret    []byte
	logger    logger.ILogger
}

func NewHandler(hub *Hub, pub *pktNats.Publisher, jwtSecret string, log logger.ILogger) *Handler {
	return &Handler{
		hub:       hub,
		publisher: pub,
		secret:    []byte(jwtSecret),
		logger:    log,
	}
}

// ServeWs upgrades an authenticated request into a room connection.
func (h *Handler) ServeWs(c *fiber.Ctx) error {
	// Priority 1: query param (browser standard). Priority 2: bearer header.
	tokenStr := c.Query("token")
	if tokenStr == "" {
		authHeader := c.Get("Authorization")
		if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
			tokenStr = authHeader[7:]
		}
	}
	if tokenStr == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing token (Query 'token' or Header 'Authorization')"})
	}

	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.ErrUnauthorized
		}
		return h.secret, nil
	})
	if err != nil || !token.Valid {
		h.logger.Warn("RelayHandler", "Invalid token in WS handshake", map[string]interface{}{"error": err})
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token claims"})
	}
	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Token missing user_id"})
	}

	projectID := c.Query("projectId")
	if projectID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Missing projectId"})
	}

	if websocket.IsWebSocketUpgrade(c) {
		return websocket.New(func(conn *websocket.Conn) {
			h.logger.Info("RelayHandler", "Starting room session", map[string]interface{}{
				"project_id": projectID,
				"user_id":    userID,
			})
			client := &Client{
				Hub:       h.hub,
				Conn:      conn,
				UserID:    userID,
				ProjectID: projectID,
				Send:      make(chan []byte, 256),
				route:     h.route,
			}
			h.hub.register <- client

			go client.writePump()
			client.readPump()
			h.logger.Info("RelayHandler", "Room session ended", map[string]interface{}{
				"project_id": projectID,
				"user_id":    userID,
			})
		})(c)
	}
	return fiber.ErrUpgradeRequired
}

// route dispatches one inbound envelope. Everything delivered back to peers
// goes out under the project-message event, whatever event carried it in;
// clients only ever subscribe to one inbound event name.
func (h *Handler) route(c *Client, env dto.Envelope) {
	switch env.Event {
	case dto.EventJoinProject:
		h.publishMemberEvent(events.TypeMemberJoined, c)

	case dto.EventLeaveProject:
		h.publishMemberEvent(events.TypeMemberLeft, c)

	case dto.EventProjectMessage:
		p, frame, ok := h.decodeMessage(c, env.Data)
		if !ok {
			return
		}
		h.hub.Broadcast(c.ProjectID, frame)
		h.publishPosted(c, p)

	case dto.EventPrivateMessage:
		p, frame, ok := h.decodeMessage(c, env.Data)
		if !ok {
			return
		}
		receiver := ""
		if p.ReceiverID != nil {
			receiver = *p.ReceiverID
		}
		if receiver == "" {
			h.logger.Warn("RelayHandler", "Private message without receiver dropped", map[string]interface{}{
				"user_id": c.UserID,
			})
			return
		}
		h.hub.Private(c.ProjectID, p.SenderID, receiver, frame)

	default:
		h.logger.Warn("RelayHandler", "Unknown event dropped", map[string]interface{}{"event": env.Event})
	}
}

// decodeMessage validates an inbound message payload and re-wraps it in the
// outbound project-message envelope. Malformed payloads are dropped, logged,
// never answered.
func (h *Handler) decodeMessage(c *Client, data json.RawMessage) (dto.MessagePayload, []byte, bool) {
	var p dto.MessagePayload
	if err := json.Unmarshal(data, &p); err != nil {
		h.logger.Warn("RelayHandler", "Dropping undecodable message", map[string]interface{}{
			"user_id": c.UserID,
			"error":   err.Error(),
		})
		return p, nil, false
	}
	if err := p.Validate(); err != nil {
		h.logger.Warn("RelayHandler", "Dropping malformed message", map[string]interface{}{
			"user_id": c.UserID,
			"error":   err.Error(),
		})
		return p, nil, false
	}
	if p.ProjectID != c.ProjectID {
		h.logger.Warn("RelayHandler", "Dropping cross-project message", map[string]interface{}{
			"user_id":    c.UserID,
			"project_id": p.ProjectID,
		})
		return p, nil, false
	}

	payload, _ := json.Marshal(p)
	frame, err := json.Marshal(dto.Envelope{Event: dto.EventProjectMessage, Data: payload})
	if err != nil {
		return p, nil, false
	}
	return p, frame, true
}

// publishPosted hands AI-addressable traffic to the bus. Only broadcast
// messages reach the worker; private conversations stay private.
func (h *Handler) publishPosted(c *Client, p dto.MessagePayload) {
	if h.publisher == nil || p.IsPrivate {
		return
	}
	if !strings.Contains(strings.ToLower(p.Message), "@ai") {
		return
	}

	payload := map[string]interface{}{
		"id":          p.ID,
		"message":     p.Message,
		"senderId":    p.SenderID,
		"senderName":  p.SenderName,
		"senderEmail": p.SenderEmail,
	}
	evt := events.NewMessagePosted(c.ProjectID, payload)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.publisher.Publish(ctx, evt); err != nil {
		h.logger.Error("RelayHandler", "Failed to publish message event", map[string]interface{}{"error": err.Error()})
	}
}

func (h *Handler) publishMemberEvent(eventType string, c *Client) {
	if h.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.publisher.Publish(ctx, events.NewMemberEvent(eventType, c.ProjectID, c.UserID)); err != nil {
		h.logger.Warn("RelayHandler", "Failed to publish member event", map[string]interface{}{"error": err.Error()})
	}
}

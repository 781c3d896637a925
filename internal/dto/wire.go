package dto

import (
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"

	"codecollab/internal/model"
)

// Event names shared by client and relay. Payload shapes are part of the
// compatibility contract and must not change.
const (
	EventJoinProject    = "join-project"
	EventLeaveProject   = "leave-project"
	EventProjectMessage = "project-message"
	EventPrivateMessage = "private-message"
)

// Envelope is the single frame format on the websocket: one JSON object per
// text frame carrying the event name and its payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// RoomPayload accompanies join-project and leave-project.
type RoomPayload struct {
	ProjectID string `json:"projectId" validate:"required"`
	UserID    string `json:"userId" validate:"required"`
}

// MessagePayload is the wire shape of project-message and private-message.
// receiverId is null for broadcasts.
type MessagePayload struct {
	ID          string    `json:"id" validate:"required"`
	ProjectID   string    `json:"projectId" validate:"required"`
	Message     string    `json:"message"`
	SenderID    string    `json:"senderId" validate:"required"`
	SenderEmail string    `json:"senderEmail"`
	SenderName  string    `json:"senderName"`
	Timestamp   time.Time `json:"timestamp"`
	IsPrivate   bool      `json:"isPrivate"`
	ReceiverID  *string   `json:"receiverId"`
}

var validate = validator.New()

// Validate checks the fields a router needs before it will accept the
// payload. Anything failing here is dropped by the caller, never surfaced.
func (p *MessagePayload) Validate() error {
	return validate.Struct(p)
}

// ToModel converts a validated wire payload into a domain message, computing
// the outgoing flag against the local viewer.
func (p *MessagePayload) ToModel(viewerID string) model.Message {
	m := model.Message{
		ID:          p.ID,
		ProjectID:   p.ProjectID,
		Body:        p.Message,
		SenderID:    p.SenderID,
		SenderEmail: p.SenderEmail,
		SenderName:  p.SenderName,
		Timestamp:   p.Timestamp,
		IsPrivate:   p.IsPrivate,
		Outgoing:    p.SenderID == viewerID,
	}
	if p.ReceiverID != nil {
		m.ReceiverID = *p.ReceiverID
	}
	return m
}

// FromModel converts a domain message back to the wire shape.
func FromModel(m model.Message) MessagePayload {
	p := MessagePayload{
		ID:          m.ID,
		ProjectID:   m.ProjectID,
		Message:     m.Body,
		SenderID:    m.SenderID,
		SenderEmail: m.SenderEmail,
		SenderName:  m.SenderName,
		Timestamp:   m.Timestamp,
		IsPrivate:   m.IsPrivate,
	}
	if m.IsPrivate {
		recv := m.ReceiverID
		p.ReceiverID = &recv
	}
	return p
}

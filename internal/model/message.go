package model

import "time"

// AISenderID and AISenderName identify the AI participant. A message is
// attributed to the AI when either matches, regardless of which relay
// instance produced it.
const (
	AISenderID   = "ai"
	AISenderName = "AI Assistant"
)

// Message is an immutable chat event. Once composed or ingested it is never
// mutated; history is append-only.
type Message struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"projectId"`
	Body        string    `json:"message"`
	SenderID    string    `json:"senderId"`
	SenderEmail string    `json:"senderEmail"`
	SenderName  string    `json:"senderName"`
	Timestamp   time.Time `json:"timestamp"`
	IsPrivate   bool      `json:"isPrivate"`

	// ReceiverID is set iff IsPrivate.
	ReceiverID string `json:"receiverId,omitempty"`

	// Outgoing is derived locally (sender == viewer) and never sent on the
	// wire.
	Outgoing bool `json:"-"`
}

// FromAI reports whether the message is attributed to the AI participant.
func (m Message) FromAI() bool {
	return m.SenderID == AISenderID || m.SenderName == AISenderName || m.SenderEmail == AISenderName
}

// VisibleTo reports whether a viewer may see this message. Broadcasts are
// visible to the whole project; private messages only to sender and the
// declared receiver.
func (m Message) VisibleTo(viewerID string) bool {
	if !m.IsPrivate {
		return true
	}
	return m.SenderID == viewerID || m.ReceiverID == viewerID
}

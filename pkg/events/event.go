package events

import "time"

// Event type codes published by the relay.
const (
	TypeMessagePosted = "MESSAGE_POSTED"
	TypeMemberJoined  = "MEMBER_JOINED"
	TypeMemberLeft    = "MEMBER_LEFT"
)

// Event is the contract for everything crossing the relay's event bridge.
type Event interface {
	// EventType returns the unique code for this event (e.g. "MESSAGE_POSTED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// BaseEvent is the plain implementation used by the relay.
type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// NewMessagePosted describes a broadcast chat message the AI worker may want
// to answer. The full wire payload rides along untouched.
func NewMessagePosted(projectID string, payload map[string]interface{}) BaseEvent {
	data := map[string]interface{}{"project_id": projectID}
	for k, v := range payload {
		data[k] = v
	}
	return BaseEvent{Type: TypeMessagePosted, Data: data, OccurredAt: time.Now()}
}

// NewMemberEvent describes a join or leave on a project room.
func NewMemberEvent(eventType, projectID, userID string) BaseEvent {
	return BaseEvent{
		Type: eventType,
		Data: map[string]interface{}{
			"project_id": projectID,
			"user_id":    userID,
		},
		OccurredAt: time.Now(),
	}
}

package relay

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"

	"codecollab/internal/pkg/logger"
)

// Hub keeps the project rooms: which websocket clients belong to which
// project, across however many devices a user has open. Delivery to other
// relay instances goes through redis pub/sub when configured.
type Hub struct {
	// rooms maps projectID -> connected clients.
	rooms map[string]map[*Client]struct{}

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	mu sync.RWMutex

	// Redis connection for cross-instance delivery, nil for single-instance.
	rdb *redis.Client

	logger logger.ILogger
}

// fanout is the redis payload bridging rooms across relay instances. An
// empty ReceiverID means broadcast; otherwise delivery is restricted to the
// receiver and the sender.
type fanout struct {
	ProjectID  string          `json:"project_id"`
	SenderID   string          `json:"sender_id"`
	ReceiverID string          `json:"receiver_id"`
	Frame      json.RawMessage `json:"frame"`
}

const fanoutChannel = "relay_events"

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		rdb:        rdb,
		logger:     log,
	}
}

func (h *Hub) Run() {
	if h.rdb != nil {
		go h.subscribeToRedis()
	}

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			room, ok := h.rooms[client.ProjectID]
			if !ok {
				room = make(map[*Client]struct{})
				h.rooms[client.ProjectID] = room
			}
			room[client] = struct{}{}
			h.mu.Unlock()
			h.logger.Info("Hub", "Client joined room", map[string]interface{}{
				"project_id": client.ProjectID,
				"user_id":    client.UserID,
			})

		case client := <-h.unregister:
			h.mu.Lock()
			if room, ok := h.rooms[client.ProjectID]; ok {
				if _, present := room[client]; present {
					delete(room, client)
					close(client.Send)
				}
				if len(room) == 0 {
					delete(h.rooms, client.ProjectID)
				}
			}
			h.mu.Unlock()
			h.logger.Info("Hub", "Client left room", map[string]interface{}{
				"project_id": client.ProjectID,
				"user_id":    client.UserID,
			})
		}
	}
}

// Broadcast delivers a frame to every client in the project room, then fans
// it out to the other instances.
func (h *Hub) Broadcast(projectID string, frame []byte) {
	h.deliver(projectID, "", "", frame)

	if h.rdb != nil {
		h.publishFanout(fanout{ProjectID: projectID, Frame: frame})
	}
}

// Private delivers a frame only to the sender's and receiver's connections
// within the project room.
func (h *Hub) Private(projectID, senderID, receiverID string, frame []byte) {
	h.deliver(projectID, senderID, receiverID, frame)

	if h.rdb != nil {
		h.publishFanout(fanout{
			ProjectID:  projectID,
			SenderID:   senderID,
			ReceiverID: receiverID,
			Frame:      frame,
		})
	}
}

// deliver pushes a frame into the matching local clients. Empty receiverID
// means everyone in the room. A client with a full send buffer is evicted
// rather than allowed to stall the room.
func (h *Hub) deliver(projectID, senderID, receiverID string, frame []byte) {
	h.mu.RLock()
	var stalled []*Client
	for client := range h.rooms[projectID] {
		if receiverID != "" && client.UserID != receiverID && client.UserID != senderID {
			continue
		}
		select {
		case client.Send <- frame:
		default:
			stalled = append(stalled, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range stalled {
		h.logger.Warn("Hub", "Client send buffer full, evicting", map[string]interface{}{
			"project_id": client.ProjectID,
			"user_id":    client.UserID,
		})
		h.unregister <- client
	}
}

func (h *Hub) publishFanout(f fanout) {
	payload, err := json.Marshal(f)
	if err != nil {
		h.logger.Error("Hub", "Failed to marshal fanout payload", map[string]interface{}{"error": err.Error()})
		return
	}
	h.rdb.Publish(context.Background(), fanoutChannel, payload)
}

// subscribeToRedis applies frames published by the other relay instances to
// the local rooms. Nothing received here is republished, so frames cross
// redis exactly once.
func (h *Hub) subscribeToRedis() {
	ctx := context.Background()
	pubsub := h.rdb.Subscribe(ctx, fanoutChannel)
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		var f fanout
		if err := json.Unmarshal([]byte(msg.Payload), &f); err != nil {
			h.logger.Warn("Hub", "Discarding unparseable fanout payload", map[string]interface{}{"error": err.Error()})
			continue
		}
		h.deliver(f.ProjectID, f.SenderID, f.ReceiverID, f.Frame)
	}
}

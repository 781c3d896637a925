package router

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"codecollab/internal/dto"
	"codecollab/internal/model"
	"codecollab/internal/pkg/logger"
)

// aiMention is matched case-insensitively as a substring of outgoing
// broadcast text.
const aiMention = "@ai"

// Identity is the sender context for composed messages: the local viewer.
type Identity struct {
	UserID string
	Email  string
	Name   string
}

// Router owns the per-viewer message history for one session. It classifies
// broadcast vs. private traffic, deduplicates inbound events by id, tracks
// the AI-pending state, and never lets a malformed event escape as an error.
type Router struct {
	projectID string
	self      Identity
	log       logger.ILogger

	mu        sync.RWMutex
	history   []model.Message
	seen      map[string]struct{}
	aiPending bool
	dropped   int

	onAIPending func(bool)
}

func NewRouter(projectID string, self Identity, log logger.ILogger) *Router {
	return &Router{
		projectID: projectID,
		self:      self,
		log:       log,
		seen:      make(map[string]struct{}),
	}
}

// OnAIPending registers the observer notified when the AI-pending state
// flips. Must be called before messages flow.
func (r *Router) OnAIPending(fn func(pending bool)) {
	r.onAIPending = fn
}

// ComposeOutgoing builds a message from user input and appends it to history
// immediately (optimistic local echo, before any transport acknowledgement).
// Empty input after trimming returns nil. The message is private iff a
// target is given and differs from the sender.
func (r *Router) ComposeOutgoing(text, targetUserID string) *model.Message {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	m := model.Message{
		ID:          uuid.NewString(),
		ProjectID:   r.projectID,
		Body:        trimmed,
		SenderID:    r.self.UserID,
		SenderEmail: r.self.Email,
		SenderName:  r.self.Name,
		Timestamp:   time.Now(),
		Outgoing:    true,
	}
	if targetUserID != "" && targetUserID != r.self.UserID {
		m.IsPrivate = true
		m.ReceiverID = targetUserID
	}

	r.mu.Lock()
	r.seen[m.ID] = struct{}{}
	r.history = append(r.history, m)
	pending := false
	if !m.IsPrivate && strings.Contains(strings.ToLower(m.Body), aiMention) {
		r.aiPending = true
		pending = true
	}
	r.mu.Unlock()

	if pending && r.onAIPending != nil {
		r.onAIPending(true)
	}
	return &m
}

// Ingest applies an inbound wire payload to history. It drops, in order:
// malformed payloads (missing id/projectId/senderId), events for another
// project, and ids already present in history (the sender's own broadcast
// echoing back). A message attributed to the AI clears the pending state.
// Returns the appended message, or nil when the event was dropped.
func (r *Router) Ingest(p dto.MessagePayload) *model.Message {
	if err := p.Validate(); err != nil {
		r.mu.Lock()
		r.dropped++
		r.mu.Unlock()
		r.log.Warn("Router", "Dropping malformed inbound event", map[string]interface{}{"error": err.Error()})
		return nil
	}

	m := p.ToModel(r.self.UserID)

	r.mu.Lock()
	cleared := false
	if m.FromAI() && r.aiPending {
		r.aiPending = false
		cleared = true
	}
	if m.ProjectID != r.projectID {
		r.mu.Unlock()
		if cleared && r.onAIPending != nil {
			r.onAIPending(false)
		}
		return nil
	}
	if _, dup := r.seen[m.ID]; dup {
		r.mu.Unlock()
		if cleared && r.onAIPending != nil {
			r.onAIPending(false)
		}
		return nil
	}
	r.seen[m.ID] = struct{}{}
	r.history = append(r.history, m)
	r.mu.Unlock()

	if cleared && r.onAIPending != nil {
		r.onAIPending(false)
	}
	return &m
}

// VisibleHistory returns, in local append order, the messages the viewer may
// see: every broadcast plus the private messages the viewer sent or
// received.
func (r *Router) VisibleHistory(viewerID string) []model.Message {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Message, 0, len(r.history))
	for _, m := range r.history {
		if m.VisibleTo(viewerID) {
			out = append(out, m)
		}
	}
	return out
}

// AIPending reports whether an AI reply is currently awaited.
func (r *Router) AIPending() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.aiPending
}

// Dropped returns how many inbound events were discarded as malformed.
func (r *Router) Dropped() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dropped
}

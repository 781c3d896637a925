package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"

	"codecollab/internal/config"
	"codecollab/internal/dto"
	"codecollab/internal/extract"
	"codecollab/internal/model"
	"codecollab/internal/pkg/logger"
	"codecollab/internal/router"
	"codecollab/internal/transport"
	"codecollab/internal/vfs"
)

// appendedTopic carries every message the router accepted; the extraction
// consumer filters for AI senders on its side.
const appendedTopic = "session.message.appended"

// Session is one active (project, user) pairing. It owns exactly one
// transport channel plus the router, the virtual file store and the
// extraction engine, and wires them together over an in-process bus so the
// extraction trigger is an explicit subscription rather than render-cycle
// coupling.
type Session struct {
	cfg     config.SessionConfig
	channel transport.Channel
	router  *router.Router
	store   *vfs.Store
	engine  *extract.Engine
	pubSub  *gochannel.GoChannel
	log     logger.ILogger
	cancel  context.CancelFunc

	onMessage func(model.Message)
}

// New builds a session around the given channel. The channel is injected so
// tests can substitute a fake implementing the same contract.
func New(cfg config.SessionConfig, ch transport.Channel, log logger.ILogger) *Session {
	self := router.Identity{UserID: cfg.UserID, Email: cfg.UserEmail, Name: cfg.UserName}
	return &Session{
		cfg:     cfg,
		channel: ch,
		router:  router.NewRouter(cfg.ProjectID, self, log),
		store:   vfs.NewStore(),
		engine:  extract.NewEngine(),
		pubSub:  gochannel.NewGoChannel(gochannel.Config{}, watermill.NewStdLogger(false, false)),
		log:     log,
	}
}

// OnMessage registers the observer called for every message appended to
// history, local echo included. Register before Start.
func (s *Session) OnMessage(fn func(model.Message)) {
	s.onMessage = fn
}

// OnAIPending registers the AI-pending observer. Register before Start.
func (s *Session) OnAIPending(fn func(bool)) {
	s.router.OnAIPending(fn)
}

// Start subscribes the extraction consumer, attaches the inbound handler and
// connects the channel.
func (s *Session) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)

	messages, err := s.pubSub.Subscribe(ctx, appendedTopic)
	if err != nil {
		return fmt.Errorf("session: subscribe %s: %w", appendedTopic, err)
	}
	go s.consume(messages)

	s.channel.On(dto.EventProjectMessage, s.handleInbound)

	if err := s.channel.Connect(); err != nil {
		return err
	}
	s.log.Info("Session", "Session started", map[string]interface{}{
		"project_id": s.cfg.ProjectID,
		"user_id":    s.cfg.UserID,
	})
	return nil
}

// handleInbound decodes one relayed event and routes it. Undecodable frames
// are dropped here; everything else is the router's call.
func (s *Session) handleInbound(data json.RawMessage) {
	var p dto.MessagePayload
	if err := json.Unmarshal(data, &p); err != nil {
		s.log.Warn("Session", "Dropping undecodable message payload", map[string]interface{}{"error": err.Error()})
		return
	}

	m := s.router.Ingest(p)
	if m == nil {
		return
	}
	s.publishAppended(*m)
	if s.onMessage != nil {
		s.onMessage(*m)
	}
}

func (s *Session) publishAppended(m model.Message) {
	payload, err := json.Marshal(m)
	if err != nil {
		s.log.Error("Session", "Failed to marshal appended message", map[string]interface{}{"error": err.Error()})
		return
	}
	if err := s.pubSub.Publish(appendedTopic, message.NewMessage(uuid.NewString(), payload)); err != nil {
		s.log.Error("Session", "Failed to publish appended message", map[string]interface{}{"error": err.Error()})
	}
}

// consume runs the extraction pass exactly once per AI-attributed message.
// Human-authored messages are acknowledged untouched.
func (s *Session) consume(messages <-chan *message.Message) {
	for msg := range messages {
		var m model.Message
		if err := json.Unmarshal(msg.Payload, &m); err != nil {
			s.log.Warn("Session", "Skipping unparseable bus message", map[string]interface{}{"error": err.Error()})
			msg.Ack()
			continue
		}

		if m.FromAI() {
			created := s.engine.Extract(m.Body, s.store)
			if len(created) > 0 {
				s.log.Info("Session", "Extracted files from AI reply", map[string]interface{}{
					"files": created,
				})
			}
		}
		msg.Ack()
	}
}

// SendMessage composes and transmits user input. The empty string after
// trimming is a no-op. While the channel is down the action is aborted with
// ErrNotConnected before any local echo, never queued.
func (s *Session) SendMessage(text, targetUserID string) (*model.Message, error) {
	if !s.channel.Connected() {
		return nil, transport.ErrNotConnected
	}

	m := s.router.ComposeOutgoing(text, targetUserID)
	if m == nil {
		return nil, nil
	}
	if s.onMessage != nil {
		s.onMessage(*m)
	}

	event := dto.EventProjectMessage
	if m.IsPrivate {
		event = dto.EventPrivateMessage
	}
	if err := s.channel.Send(event, dto.FromModel(*m)); err != nil {
		return m, err
	}
	return m, nil
}

// Router exposes the message history read model.
func (s *Session) Router() *router.Router {
	return s.router
}

// Store exposes the virtual file store.
func (s *Session) Store() *vfs.Store {
	return s.store
}

// History is shorthand for the local viewer's visible history.
func (s *Session) History() []model.Message {
	return s.router.VisibleHistory(s.cfg.UserID)
}

// Close tears the session down best-effort: the channel announces leave and
// disconnects (failures logged inside), then the bus and the consumer stop.
// No step can block the ones after it.
func (s *Session) Close() {
	if err := s.channel.Close(); err != nil {
		s.log.Warn("Session", "Channel teardown reported error", map[string]interface{}{"error": err.Error()})
	}
	if s.cancel != nil {
		s.cancel()
	}
	if err := s.pubSub.Close(); err != nil {
		s.log.Warn("Session", "Bus close reported error", map[string]interface{}{"error": err.Error()})
	}
	s.log.Info("Session", "Session closed", map[string]interface{}{"project_id": s.cfg.ProjectID})
}

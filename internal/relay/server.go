package relay

import (
	"context"
	"encoding/json"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"codecollab/internal/config"
	"codecollab/internal/dto"
	"codecollab/internal/pkg/logger"
	"codecollab/pkg/events"
	pktNats "codecollab/pkg/nats"
)

type Server struct {
	app *fiber.App
	cfg *config.Config
}

func New(cfg *config.Config, handler *Handler) *Server {
	app := fiber.New(fiber.Config{
		ReadBufferSize: 16 * 1024,
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Relay.CorsAllowedOrigins,
		AllowCredentials: true,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET, POST, PUT, PATCH, DELETE, OPTIONS",
	}))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/ws", handler.ServeWs)

	return &Server{app: app, cfg: cfg}
}

func (s *Server) GetApp() *fiber.App {
	return s.app
}

func (s *Server) Run() error {
	log.Printf("Relay listening on http://localhost:%s", s.cfg.Relay.Port)
	return s.app.Listen(":" + s.cfg.Relay.Port)
}

// StartAIBridge subscribes to AI replies on the bus and fans each one into
// its project room as a regular project-message. The AI worker itself runs
// elsewhere; the relay only carries its output. Reply payloads use the same
// wire shape as any message, so they go straight back out.
func StartAIBridge(sub *pktNats.Subscriber, hub *Hub, lg logger.ILogger) error {
	return sub.Subscribe(pktNats.SubjectAIReply, "relay-ai-bridge", func(ctx context.Context, event events.Event) error {
		raw, err := json.Marshal(event.Payload())
		if err != nil {
			return err
		}

		var p dto.MessagePayload
		if err := json.Unmarshal(raw, &p); err != nil {
			lg.Warn("AIBridge", "Dropping unparseable AI reply", map[string]interface{}{"error": err.Error()})
			return nil
		}
		if err := p.Validate(); err != nil {
			lg.Warn("AIBridge", "Dropping malformed AI reply", map[string]interface{}{"error": err.Error()})
			return nil
		}

		frame, err := json.Marshal(dto.Envelope{Event: dto.EventProjectMessage, Data: raw})
		if err != nil {
			return err
		}
		hub.Broadcast(p.ProjectID, frame)
		return nil
	})
}

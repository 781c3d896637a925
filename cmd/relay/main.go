package main

import (
	"log"

	"github.com/redis/go-redis/v9"

	"codecollab/internal/config"
	"codecollab/internal/pkg/logger"
	"codecollab/internal/relay"
	pktNats "codecollab/pkg/nats"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()
	if cfg.Relay.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	defer sysLogger.Sync()

	// 2. Optional infrastructure: redis for cross-instance rooms, NATS for
	// the AI worker bridge. The relay runs standalone without either.
	var rdb *redis.Client
	if cfg.Relay.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.Relay.RedisURL)
		if err != nil {
			log.Fatalf("Invalid REDIS_URL: %v", err)
		}
		rdb = redis.NewClient(opt)
	}

	var pub *pktNats.Publisher
	var sub *pktNats.Subscriber
	if cfg.Relay.NatsURL != "" {
		var err error
		pub, err = pktNats.NewPublisher(cfg.Relay.NatsURL)
		if err != nil {
			log.Printf("[WARN] Failed to connect NATS publisher: %v", err)
		}
		sub, err = pktNats.NewSubscriber(cfg.Relay.NatsURL)
		if err != nil {
			log.Printf("[WARN] Failed to connect NATS subscriber: %v", err)
		}
	}

	// 3. Hub + AI bridge
	hub := relay.NewHub(rdb, sysLogger)
	go hub.Run()

	if sub != nil {
		if err := relay.StartAIBridge(sub, hub, sysLogger); err != nil {
			log.Printf("[WARN] AI bridge not started: %v", err)
		}
	}

	// 4. Serve
	handler := relay.NewHandler(hub, pub, cfg.Relay.JWTSecret, sysLogger)
	srv := relay.New(cfg, handler)
	log.Fatal(srv.Run())
}

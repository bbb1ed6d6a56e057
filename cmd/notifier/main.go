package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/mansoorceksport/recgetup/internal/config"
	"github.com/mansoorceksport/recgetup/internal/events"
	"github.com/mansoorceksport/recgetup/internal/notification"
	"github.com/mansoorceksport/recgetup/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Rabbit.URL == "" {
		log.Fatal("RABBIT_URL is required for the notifier")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelCfg := telemetry.FromConfig(cfg.OTEL)
	otelCfg.ServiceName = cfg.OTEL.ServiceName + "-notifier"
	otelProvider, err := telemetry.Initialize(ctx, otelCfg)
	if err != nil {
		log.Printf("Warning: Failed to initialize OpenTelemetry: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = otelProvider.Shutdown(shutdownCtx)
	}()

	notifier, err := notification.NewFromConfig(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize notifier: %v", err)
	}

	consumer, err := events.NewConsumer(cfg.Rabbit.URL, cfg.Rabbit.Exchange, cfg.Rabbit.Queue, events.RoutingKeys)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}
	defer consumer.Close()

	log.Printf("📬 Notifier consuming %s from %s", cfg.Rabbit.Queue, cfg.Rabbit.Exchange)
	if err := consumer.Run(ctx, events.NewNotificationHandler(notifier)); err != nil && ctx.Err() == nil {
		log.Fatalf("Consumer stopped: %v", err)
	}
	log.Println("Notifier stopped")
}

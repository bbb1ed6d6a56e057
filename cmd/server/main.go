package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mansoorceksport/recgetup/internal/config"
	"github.com/mansoorceksport/recgetup/internal/domain"
	"github.com/mansoorceksport/recgetup/internal/events"
	"github.com/mansoorceksport/recgetup/internal/notification"
	"github.com/mansoorceksport/recgetup/internal/repository"
	"github.com/mansoorceksport/recgetup/internal/server"
	"github.com/mansoorceksport/recgetup/internal/service"
	"github.com/mansoorceksport/recgetup/internal/telemetry"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("Starting %s API...", cfg.App.Name)

	ctx := context.Background()

	otelProvider, err := telemetry.Initialize(ctx, telemetry.FromConfig(cfg.OTEL))
	if err != nil {
		log.Printf("Warning: Failed to initialize OpenTelemetry: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = otelProvider.Shutdown(shutdownCtx)
	}()

	// MongoDB with OpenTelemetry instrumentation
	ctxMongo, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	mongoOpts := options.Client().ApplyURI(cfg.MongoDB.URI)
	if cfg.OTEL.Enabled {
		mongoOpts.SetMonitor(otelmongo.NewMonitor())
	}

	mongoClient, err := mongo.Connect(ctxMongo, mongoOpts)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			log.Printf("Error disconnecting from MongoDB: %v", err)
		}
	}()

	if err := mongoClient.Ping(ctxMongo, nil); err != nil {
		log.Fatalf("Failed to ping MongoDB: %v", err)
	}
	log.Println("✓ MongoDB connected")

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       0,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	log.Println("✓ Redis connected")

	// Avatars are optional
	var files domain.FileRepository
	if cfg.S3.Endpoint != "" {
		s3Repo, err := repository.NewS3FileRepository(ctx, cfg.S3)
		if err != nil {
			log.Printf("Warning: Failed to initialize S3 repository, avatar uploads disabled: %v", err)
		} else {
			files = s3Repo
			log.Println("✓ S3 storage ready")
		}
	}

	notifier, err := notification.NewFromConfig(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize notifier: %v", err)
	}

	// Queue notifications when a broker is configured, otherwise deliver in-process
	var dispatcher service.NotificationDispatcher
	var async *notification.AsyncDispatcher
	if cfg.Rabbit.URL != "" {
		publisher, err := events.NewPublisher(cfg.Rabbit.URL, cfg.Rabbit.Exchange)
		if err != nil {
			log.Fatalf("Failed to connect to RabbitMQ: %v", err)
		}
		defer publisher.Close()
		dispatcher = events.NewQueueDispatcher(publisher)
		log.Printf("✓ RabbitMQ connected (exchange %s)", cfg.Rabbit.Exchange)
	} else {
		async = notification.NewAsyncDispatcher(notifier, notification.DefaultDeliveryTimeout)
		dispatcher = async
		log.Println("Notifications are delivered in-process")
	}

	app := server.NewApp(server.AppDependencies{
		Config:      cfg,
		MongoDB:     mongoClient.Database(cfg.MongoDB.Database),
		RedisClient: redisClient,
		Gateway:     service.NewPaymentGateway(cfg.Razorpay),
		Dispatcher:  dispatcher,
		Mailer:      notifier,
		Files:       files,
	})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		log.Println("Shutting down gracefully...")
		_ = app.Shutdown()
	}()

	log.Printf("🚀 Server starting on port %s", cfg.Server.Port)
	if err := app.Listen(":" + cfg.Server.Port); err != nil {
		log.Printf("Server stopped: %v", err)
	}

	if async != nil {
		log.Println("Waiting for pending notifications...")
		async.Wait()
	}
}

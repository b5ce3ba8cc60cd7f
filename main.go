package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"onfa-ticketing/internal/auth"
	"onfa-ticketing/internal/config"
	"onfa-ticketing/internal/database"
	"onfa-ticketing/internal/database/migrations"
	"onfa-ticketing/internal/kafka"
	"onfa-ticketing/internal/logger"
	"onfa-ticketing/internal/models"
	"onfa-ticketing/internal/notify"
	"onfa-ticketing/internal/sse"
	ticketdb "onfa-ticketing/internal/tickets/db"
	qr "onfa-ticketing/internal/tickets/qr_generator"
	rediswrap "onfa-ticketing/internal/tickets/redis"
	tickets "onfa-ticketing/internal/tickets/service"
	"onfa-ticketing/internal/tickets/ticket_api"
)

func connectRedis(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) *redis.Client {
	if cfg.Addr == "" {
		log.Warn("REDIS", "REDIS_ADDR not set, registration locks are local to this instance")
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal("REDIS", fmt.Sprintf("Redis connection error: %v", err))
	}
	log.Info("REDIS", fmt.Sprintf("✅ Redis connection successful to %s (DB: %d)", cfg.Addr, cfg.DB))
	return client
}

func prepareSchema(ctx context.Context, cfg *config.Config, db *ticketdb.DB, log *logger.Logger) {
	if cfg.Database.Driver == "sqlite" {
		if err := database.EnsureSchema(ctx, db.Bun); err != nil {
			log.Fatal("DATABASE", fmt.Sprintf("Failed to create schema: %v", err))
		}
		log.Info("DATABASE", "SQLite schema ready")
		return
	}
	if !cfg.Database.AutoMigrate {
		return
	}
	// The runner shares the pool, so it is not closed here.
	runner := migrations.NewRunner(db.Bun, migrations.Options{Dir: cfg.Database.MigrationsDir}, log)
	if err := runner.Up(); err != nil {
		log.Fatal("MIGRATE", fmt.Sprintf("Migration failed: %v", err))
	}
}

func main() {
	envErr := godotenv.Load()
	cfg := config.Load()

	log := logger.NewLogger(cfg.Logging.Level, cfg.Logging.Dir)
	defer log.Close()

	if envErr != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal("CONFIG", err.Error())
	}

	log.Info("APP", fmt.Sprintf("Starting ONFA ticketing (%s)", cfg.Environment))
	ctx := context.Background()

	bunDB, err := database.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()
	store := &ticketdb.DB{Bun: bunDB}
	prepareSchema(ctx, cfg, store, log)

	var locker tickets.TierLocker
	var revocations auth.Revocations = auth.NewMemoryRevocations()
	if redisClient := connectRedis(ctx, cfg.Redis, log); redisClient != nil {
		defer redisClient.Close()
		locker = rediswrap.NewRedis(redisClient, cfg.Tickets.LockTTL, log)
		revocations = auth.NewRedisRevocations(redisClient)
	}

	codes := qr.NewQRGenerator(qr.DefaultSize)
	mailer, err := notify.NewEmailSender(cfg.Email, codes, log)
	if err != nil {
		log.Fatal("EMAIL", err.Error())
	}

	emitter := sse.NewCheckInEmitter()
	broadcasters := notify.MultiBroadcaster{&notify.SSEBroadcaster{Emitter: emitter}}
	if cfg.Realtime.PubNubConfigured() {
		broadcasters = append(broadcasters, notify.NewPubNubBroadcaster(cfg.Realtime))
		log.Info("REALTIME", fmt.Sprintf("PubNub publishing enabled on channel %s", cfg.Realtime.Channel))
	}

	if cfg.Webhook.StatusChangeURL == "" {
		log.Warn("WEBHOOK", "WEBHOOK_URL not set, spreadsheet sync is disabled")
	}

	notifier := &notify.Notifier{
		Email:    mailer,
		Webhook:  notify.NewWebhookClient(cfg.Webhook.StatusChangeURL, cfg.Webhook.Timeout, log),
		Realtime: broadcasters,
		Channel:  cfg.Realtime.Channel,
		Timeouts: notify.Timeouts{
			Email:    cfg.Email.Timeout,
			Webhook:  cfg.Webhook.Timeout,
			Realtime: cfg.Realtime.Timeout,
			Audit:    5 * time.Second,
		},
		Logger: log,
	}

	if cfg.Kafka.Enabled {
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, []string{cfg.Kafka.Topics.TicketEvents}, log); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics.TicketEvents, log)
		defer producer.Close()
		notifier.Audit = producer
		log.Info("KAFKA", fmt.Sprintf("Publishing ticket events to %s", cfg.Kafka.Topics.TicketEvents))
	}

	service := tickets.NewTicketService(store, locker, notifier, log, tickets.Options{
		Limits:   tickets.LimitsFromConfig(cfg.Tickets.Limits),
		IDPrefix: cfg.Tickets.IDPrefix,
		LockWait: cfg.Tickets.LockWait,
	})
	for _, tier := range models.AllTiers {
		log.Info("APP", fmt.Sprintf("Tier %s (%s) capacity %d", tier, tier.Label(), service.Limit(tier)))
	}

	issuer := auth.NewIssuer(cfg.Auth.AdminSecret, cfg.Auth.SigningKey, cfg.Auth.TokenTTL)
	if !issuer.Enabled() {
		log.Warn("AUTH", "ADMIN_SECRET_KEY not set, admin routes are open")
	}

	handler := &ticket_api.Handler{
		TicketService: service,
		Issuer:        issuer,
		Revocations:   revocations,
		DB:            store,
		Logger:        log,
	}
	events := &ticket_api.SSEHandler{
		Logger:    log,
		Emitter:   emitter,
		Channel:   cfg.Realtime.Channel,
		KeepAlive: cfg.Realtime.KeepAlive,
	}

	// Cancelled on shutdown so open event streams end.
	baseCtx, cancelStreams := context.WithCancel(ctx)
	defer cancelStreams()

	server := &http.Server{
		BaseContext:  func(net.Listener) context.Context { return baseCtx },
		Addr:         cfg.Server.Port,
		Handler:      ticket_api.NewRouter(handler, events, ticket_api.RouterOptions{MaxBodyBytes: cfg.Server.MaxBodyBytes}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("🚀 Ticket service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()

	server.RegisterOnShutdown(cancelStreams)
	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	}

	done := make(chan struct{})
	go func() {
		notifier.Wait()
		close(done)
	}()
	select {
	case <-done:
		log.Info("APP", "All side effects finished")
	case <-ctxShutdown.Done():
		log.Warn("APP", "Shutdown timeout reached with side effects still running")
	}
	log.Info("HTTP", "✅ Ticket service shutdown complete")
}

package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/BenFidge/bookgrid/libs/config"
	"github.com/BenFidge/bookgrid/libs/db"
	"github.com/BenFidge/bookgrid/libs/httpx"
	"github.com/BenFidge/bookgrid/libs/kafkax"
	otelx "github.com/BenFidge/bookgrid/libs/otel"
	"github.com/BenFidge/bookgrid/libs/runtime"
	"github.com/BenFidge/bookgrid/services/calendar-service/internal/availability"
	"github.com/BenFidge/bookgrid/services/calendar-service/internal/consumer"
	"github.com/BenFidge/bookgrid/services/calendar-service/internal/contacts"
	"github.com/BenFidge/bookgrid/services/calendar-service/internal/handlers"
	"github.com/BenFidge/bookgrid/services/calendar-service/internal/inbox"
	"github.com/BenFidge/bookgrid/services/calendar-service/internal/outbox"
	"github.com/BenFidge/bookgrid/services/calendar-service/internal/schedule"
	"github.com/BenFidge/bookgrid/services/calendar-service/internal/storage"
)

// parseDayDefaults builds the portal-wide slot defaults from env.
// Bad values fall back to 08:00-20:00 with hourly slots.
func parseDayDefaults(logger *slog.Logger) availability.Config {
	cfg := availability.DefaultConfig()
	if raw := config.String("DEFAULT_SLOT_MINUTES", ""); raw != "" {
		if mins, err := strconv.Atoi(raw); err == nil && mins > 0 && mins <= 24*60 {
			cfg.SlotDuration = time.Duration(mins) * time.Minute
		} else {
			logger.Warn("invalid DEFAULT_SLOT_MINUTES", "value", raw)
		}
	}
	if raw := config.String("DEFAULT_DAY_START", ""); raw != "" {
		if m, err := availability.ParseClock(raw); err == nil {
			cfg.DefaultWindow.Start = m
		} else {
			logger.Warn("invalid DEFAULT_DAY_START", "value", raw)
		}
	}
	if raw := config.String("DEFAULT_DAY_END", ""); raw != "" {
		if m, err := availability.ParseClock(raw); err == nil {
			cfg.DefaultWindow.End = m
		} else {
			logger.Warn("invalid DEFAULT_DAY_END", "value", raw)
		}
	}
	if !cfg.DefaultWindow.Valid() {
		logger.Warn("default window is empty; using 08:00-20:00")
		cfg.DefaultWindow = availability.DefaultConfig().DefaultWindow
	}
	return cfg
}

func main() {
	_ = godotenv.Load()

	service := config.String("SERVICE_NAME", "calendar-service")
	port, err := config.Port("PORT", "8083")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	repo := storage.NewBookingRepository(pool)
	outboxRepo := outbox.NewRepository(pool)
	inboxRepo := inbox.NewRepository(pool)
	defaults := parseDayDefaults(logger)

	var rdb *redis.Client
	if addr := strings.TrimSpace(config.String("REDIS_ADDR", "")); addr != "" {
		redisDB := 0
		if v, err := strconv.Atoi(config.String("REDIS_DB", "0")); err == nil && v >= 0 {
			redisDB = v
		}
		rdb = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       redisDB,
		})
		defer func() { _ = rdb.Close() }()
	}

	scheduleProvider, err := schedule.NewProvider(config.String("DIRECTORY_GRPC_ADDR", ""))
	if err != nil {
		logger.Error("schedule provider init failed; using defaults", "err", err)
		scheduleProvider = nil
	}
	if scheduleProvider != nil && rdb != nil {
		ttl := 5 * time.Minute
		if mins := config.Int("SCHEDULE_CACHE_TTL_MINUTES", 5); mins > 0 {
			ttl = time.Duration(mins) * time.Minute
		}
		scheduleProvider = schedule.NewCache(scheduleProvider, rdb, ttl, logger)
	}

	contactsClient := contacts.NewClient(
		config.String("CRM_BASE_URL", ""),
		config.String("CRM_TOKEN", ""),
		logger,
	)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	// Directory edits invalidate the schedule cache for that portal.
	if topic := strings.TrimSpace(config.String("KAFKA_CONSUME_TOPIC", "directory.resource.updated.v1")); topic != "" && rdb != nil {
		consumerCfg := consumer.Config{
			Brokers: config.String("KAFKA_BROKERS", ""),
			GroupID: config.String("KAFKA_GROUP_ID", "calendar-service"),
			Topic:   topic,
		}
		eventConsumer := consumer.New(logger, inboxRepo, consumerCfg, func(ctx context.Context, msg kafka.Message) error {
			var payload struct {
				PortalID string `json:"portal_id"`
			}
			if err := json.Unmarshal(msg.Value, &payload); err != nil {
				logger.Error("invalid event payload", "err", err, "topic", msg.Topic)
				return nil
			}
			if payload.PortalID == "" {
				logger.Error("missing portal_id in event", "topic", msg.Topic)
				return nil
			}
			return schedule.BumpVersion(ctx, rdb, payload.PortalID)
		})
		go eventConsumer.Run(ctx)
	}

	// Idempotency keys, published outbox rows and inbox dedupe rows age
	// out in the background.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := repo.PurgeExpiredIdempotencyKeys(ctx, time.Now().UTC().Add(-24*time.Hour)); err != nil {
					logger.Error("idempotency purge failed", "err", err)
				} else if n > 0 {
					logger.Info("purged idempotency keys", "count", n)
				}
				if n, err := outboxRepo.PurgePublished(ctx, time.Now().UTC().Add(-7*24*time.Hour)); err != nil {
					logger.Error("outbox purge failed", "err", err)
				} else if n > 0 {
					logger.Info("purged outbox rows", "count", n)
				}
				if n, err := inboxRepo.PurgeBefore(ctx, time.Now().UTC().Add(-7*24*time.Hour)); err != nil {
					logger.Error("inbox purge failed", "err", err)
				} else if n > 0 {
					logger.Info("purged inbox rows", "count", n)
				}
			}
		}
	}()

	bookingHandler := handlers.NewBookingHandler(repo, outboxRepo, logger, scheduleProvider, contactsClient, defaults)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	mux.Handle("/api/v1/public/slots", httpx.WithNoStore(http.HandlerFunc(bookingHandler.Slots)))
	mux.Handle("/api/v1/public/week", httpx.WithNoStore(http.HandlerFunc(bookingHandler.Week)))
	mux.HandleFunc("/api/v1/public/book", bookingHandler.Create)
	mux.HandleFunc("/api/v1/public/booking", bookingHandler.Get)
	mux.HandleFunc("/api/v1/bookings", bookingHandler.List)
	mux.HandleFunc("/api/v1/bookings/cancel", bookingHandler.Cancel)
	mux.HandleFunc("/api/v1/contacts/search", bookingHandler.ContactSearch)
	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "calendar")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}

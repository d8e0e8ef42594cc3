package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/BenFidge/bookgrid/libs/config"
	"github.com/BenFidge/bookgrid/libs/db"
	"github.com/BenFidge/bookgrid/libs/httpx"
	"github.com/BenFidge/bookgrid/libs/kafkax"
	otelx "github.com/BenFidge/bookgrid/libs/otel"
	"github.com/BenFidge/bookgrid/libs/runtime"
	"github.com/BenFidge/bookgrid/services/insights-service/internal/consumer"
	"github.com/BenFidge/bookgrid/services/insights-service/internal/inbox"
)

func main() {
	_ = godotenv.Load()

	service := config.String("SERVICE_NAME", "insights-service")
	port, err := config.Port("PORT", "8086")
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

	inboxRepo := inbox.NewRepository(pool)

	handleBookingEvent := func(ctx context.Context, msg kafka.Message, kind string) error {
		var payload struct {
			BookingID   string  `json:"booking_id"`
			PortalID    string  `json:"portal_id"`
			ResourceIDs []int64 `json:"resource_ids"`
			StartTime   string  `json:"start_time"`
			EndTime     string  `json:"end_time"`
		}

		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			logger.Error("invalid booking payload", "err", err)
			return nil
		}
		if payload.BookingID == "" || payload.PortalID == "" || payload.StartTime == "" {
			logger.Error("missing booking fields")
			return nil
		}
		startTime, err := time.Parse(time.RFC3339, payload.StartTime)
		if err != nil {
			logger.Error("invalid start_time", "err", err)
			return nil
		}
		minutes := 0
		if endTime, err := time.Parse(time.RFC3339, payload.EndTime); err == nil && endTime.After(startTime) {
			minutes = int(endTime.Sub(startTime) / time.Minute)
		}

		meta := kafkax.ExtractEventMeta(msg)

		tx, err := pool.Begin(ctx)
		if err != nil {
			logger.Error("db begin failed", "err", err)
			return err
		}
		defer func() { _ = tx.Rollback(ctx) }()

		tag, err := tx.Exec(ctx, `
			INSERT INTO booking_events (event_id, event_type, portal_id, booking_id, occurred_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (event_id) DO NOTHING
		`, meta.EventID, meta.EventType, payload.PortalID, payload.BookingID, startTime.UTC())
		if err != nil {
			logger.Error("failed to insert booking event", "err", err)
			return err
		}
		if tag.RowsAffected() == 0 {
			_ = tx.Commit(ctx)
			return nil
		}

		bookedInc := 0
		cancelledInc := 0
		bookedMins := 0
		cancelledMins := 0
		if kind == "booked" {
			bookedInc = 1
			bookedMins = minutes
		} else {
			cancelledInc = 1
			cancelledMins = minutes
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO daily_booking_metrics (portal_id, day, booked_count, cancelled_count, booked_minutes, cancelled_minutes)
			VALUES ($1, $2::date, $3, $4, $5, $6)
			ON CONFLICT (portal_id, day)
			DO UPDATE SET booked_count = daily_booking_metrics.booked_count + EXCLUDED.booked_count,
			              cancelled_count = daily_booking_metrics.cancelled_count + EXCLUDED.cancelled_count,
			              booked_minutes = daily_booking_metrics.booked_minutes + EXCLUDED.booked_minutes,
			              cancelled_minutes = daily_booking_metrics.cancelled_minutes + EXCLUDED.cancelled_minutes,
			              updated_at = now()
		`, payload.PortalID, startTime.UTC(), bookedInc, cancelledInc, bookedMins, cancelledMins); err != nil {
			logger.Error("failed to update daily metrics", "err", err)
			return err
		}

		for _, resourceID := range payload.ResourceIDs {
			if resourceID <= 0 {
				continue
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO resource_daily_metrics (portal_id, resource_id, day, booked_count, cancelled_count)
				VALUES ($1, $2, $3::date, $4, $5)
				ON CONFLICT (portal_id, resource_id, day)
				DO UPDATE SET booked_count = resource_daily_metrics.booked_count + EXCLUDED.booked_count,
				              cancelled_count = resource_daily_metrics.cancelled_count + EXCLUDED.cancelled_count,
				              updated_at = now()
			`, payload.PortalID, resourceID, startTime.UTC(), bookedInc, cancelledInc); err != nil {
				logger.Error("failed to update resource metrics", "err", err, "resource_id", resourceID)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			logger.Error("failed to commit booking metric", "err", err)
			return err
		}

		logger.Info("booking metric recorded", "booking_id", payload.BookingID, "portal_id", payload.PortalID, "event_type", meta.EventType)
		return nil
	}

	createdConsumerCfg := consumer.Config{
		Brokers: config.String("KAFKA_BROKERS", ""),
		GroupID: config.String("KAFKA_GROUP_ID", "insights-service"),
		Topic:   "calendar.booking.created.v1",
	}
	createdConsumer := consumer.New(logger, inboxRepo, createdConsumerCfg, func(ctx context.Context, msg kafka.Message) error {
		return handleBookingEvent(ctx, msg, "booked")
	})
	go createdConsumer.Run(ctx)

	cancelledConsumerCfg := consumer.Config{
		Brokers: config.String("KAFKA_BROKERS", ""),
		GroupID: config.String("KAFKA_GROUP_ID", "insights-service"),
		Topic:   "calendar.booking.cancelled.v1",
	}
	cancelledConsumer := consumer.New(logger, inboxRepo, cancelledConsumerCfg, func(ctx context.Context, msg kafka.Message) error {
		return handleBookingEvent(ctx, msg, "cancelled")
	})
	go cancelledConsumer.Run(ctx)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	handler = otelhttp.NewHandler(handler, "insights")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
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

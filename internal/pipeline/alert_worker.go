package pipeline

import (
	"context"
	"log/slog"
	"time"

	"fleet-monitor/reconciler/internal/domain"
	"fleet-monitor/reconciler/internal/metrics"
)

type AlertRecorder interface {
	InsertAlert(ctx context.Context, a domain.Alert) error
}

type AlertPublisher interface {
	ClaimAlert(ctx context.Context, a domain.Alert, ttl time.Duration) (bool, error)
	ReleaseAlert(ctx context.Context, a domain.Alert) error
	PublishAlert(ctx context.Context, a domain.Alert) error
}

// AlertWorker delivers one alert: dedup claim in Redis, row in trip_alerts,
// then a publish for live subscribers.
type AlertWorker struct {
	db       AlertRecorder
	redis    AlertPublisher
	dedupTTL time.Duration
	timeout  time.Duration
	logger   *slog.Logger
}

func NewAlertWorker(db AlertRecorder, redis AlertPublisher, dedupTTL time.Duration, logger *slog.Logger) *AlertWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &AlertWorker{
		db:       db,
		redis:    redis,
		dedupTTL: dedupTTL,
		timeout:  5 * time.Second,
		logger:   logger,
	}
}

// Deliver runs detached from the request that raised the alert so queued
// alerts still go out during shutdown.
func (w *AlertWorker) Deliver(a domain.Alert) {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	log := w.logger.With(
		"alert_id", a.ID,
		"kind", a.Kind,
		"vehicle_id", a.VehicleID,
		"trip_id", a.TripID,
	)

	claimed, err := w.redis.ClaimAlert(ctx, a, w.dedupTTL)
	if err != nil {
		metrics.AlertDeliveryFailures.Inc()
		log.Error("alert dedup check failed", "error", err)
		return
	}
	if !claimed {
		metrics.AlertDuplicates.Inc()
		log.Debug("duplicate alert suppressed", "intent_key", a.IntentKey)
		return
	}

	if err := w.db.InsertAlert(ctx, a); err != nil {
		metrics.AlertDeliveryFailures.Inc()
		log.Error("alert insert failed", "error", err)
		w.release(ctx, a, log)
		return
	}

	if err := w.redis.PublishAlert(ctx, a); err != nil {
		metrics.AlertDeliveryFailures.Inc()
		log.Error("alert publish failed", "error", err)
		w.release(ctx, a, log)
		return
	}

	log.Info("alert delivered", "severity", a.Kind.Severity())
}

func (w *AlertWorker) release(ctx context.Context, a domain.Alert, log *slog.Logger) {
	if err := w.redis.ReleaseAlert(ctx, a); err != nil {
		log.Error("alert dedup release failed", "error", err)
	}
}

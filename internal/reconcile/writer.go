package reconcile

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"fleet-monitor/reconciler/internal/domain"
)

// IntentKey identifies one reconciliation decision.
func IntentKey(tripID string, status domain.TripStatus, odometerHigh float64) string {
	sum := sha256.Sum256([]byte(tripID + "|" + string(status) + "|" + strconv.FormatFloat(odometerHigh, 'g', -1, 64)))
	return hex.EncodeToString(sum[:])
}

// WriteResult reports what the writer did with an outcome.
type WriteResult struct {
	Intent *domain.Intent
	// Written is false when nothing was dirty or the intent had already
	// been applied by an earlier delivery.
	Written bool
}

// Writer persists an outcome as an intent followed by independent
// whole-document replaces of the consignment and the trip.
type Writer struct {
	trips        TripStore
	consignments ConsignmentStore
	intents      IntentStore
	logger       *slog.Logger
}

func NewWriter(trips TripStore, consignments ConsignmentStore, intents IntentStore, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{trips: trips, consignments: consignments, intents: intents, logger: logger}
}

// Apply writes the dirty documents of out. The versions on out.Trip and
// out.Consignment must be the ones just read from the store.
//
// When an intent with the same key is already stored and still pending, the
// decision is redone over the documents out was computed from, using the
// intent's creation time as now. A retry then finishes the pair with the
// first attempt's timestamps while keeping every edit made to the documents
// since. If the redo no longer lands on the same key, out is written as a
// fresh decision.
func (w *Writer) Apply(ctx context.Context, out Outcome, odometerHigh float64, now time.Time) (WriteResult, error) {
	if !out.Dirty() {
		return WriteResult{}, nil
	}

	intent := &domain.Intent{
		Key:              IntentKey(out.Trip.ID, out.Trip.Status, odometerHigh),
		TripID:           out.Trip.ID,
		VehicleID:        out.Trip.VehicleID,
		Status:           out.Trip.Status,
		OdometerHigh:     odometerHigh,
		Trip:             out.Trip,
		Consignment:      out.Consignment,
		TripDirty:        out.TripDirty,
		ConsignmentDirty: out.ConsignmentDirty,
		Alerts:           out.Alerts,
		State:            domain.IntentPending,
		CreatedAt:        now,
	}

	stored, created, err := w.intents.CreateIntent(ctx, intent)
	if err != nil {
		return WriteResult{}, fmt.Errorf("record intent for trip %s: %w", out.Trip.ID, err)
	}
	if !created {
		if stored.State == domain.IntentApplied {
			w.logger.Info("intent already applied",
				"intent_key", stored.Key,
				"trip_id", stored.TripID,
			)
			return WriteResult{Intent: stored}, nil
		}
		w.logger.Info("resuming pending intent",
			"intent_key", stored.Key,
			"trip_id", stored.TripID,
		)
		intent = resumeIntent(stored, out, odometerHigh)
	}

	if intent.ConsignmentDirty {
		c := intent.Consignment
		if err := w.consignments.ReplaceConsignment(ctx, &c); err != nil {
			return WriteResult{Intent: intent}, fmt.Errorf("replace consignment %s: %w", c.ID, err)
		}
	}
	if intent.TripDirty {
		t := intent.Trip.Clone()
		if err := w.trips.ReplaceTrip(ctx, &t); err != nil {
			return WriteResult{Intent: intent}, fmt.Errorf("replace trip %s: %w", t.ID, err)
		}
	}

	// Both documents are in place from here on, so Written stays true even
	// if the intent cannot be closed.
	if err := w.intents.MarkIntentApplied(ctx, intent.Key); err != nil {
		return WriteResult{Intent: intent, Written: true}, fmt.Errorf("mark intent %s applied: %w", intent.Key, err)
	}
	intent.State = domain.IntentApplied
	return WriteResult{Intent: intent, Written: true}, nil
}

// resumeIntent rebuilds a pending intent's documents from the fresh reads
// behind out. The stored documents are never written back.
func resumeIntent(stored *domain.Intent, out Outcome, odometerHigh float64) *domain.Intent {
	next := out
	redo, err := Transition(out.fromTrip, out.fromConsignment, odometerHigh, stored.CreatedAt)
	if err == nil && redo.Dirty() && IntentKey(redo.Trip.ID, redo.Trip.Status, odometerHigh) == stored.Key {
		next = redo
	}

	resumed := *stored
	resumed.Trip = next.Trip
	resumed.Consignment = next.Consignment
	resumed.TripDirty = next.TripDirty
	resumed.ConsignmentDirty = next.ConsignmentDirty
	resumed.Alerts = next.Alerts
	return &resumed
}

package reconcile

import (
	"context"

	"fleet-monitor/reconciler/internal/domain"
)

// TripStore is the trip side of the document store.
type TripStore interface {
	// FindActiveTrips returns the trips in the vehicle's partition whose
	// status is not Completed, Canceled or Inactive, in no particular order.
	FindActiveTrips(ctx context.Context, vehicleID string) ([]domain.Trip, error)

	// ReplaceTrip overwrites the whole document. It fails with
	// domain.ErrConflict when trip.Version is stale and domain.ErrNotFound
	// when the trip is gone. On success trip.Version is advanced.
	ReplaceTrip(ctx context.Context, trip *domain.Trip) error
}

// ConsignmentStore is the consignment side of the document store.
type ConsignmentStore interface {
	GetConsignment(ctx context.Context, id string) (*domain.Consignment, error)
	ReplaceConsignment(ctx context.Context, c *domain.Consignment) error
}

// IntentStore persists write intents for the trip/consignment pair.
type IntentStore interface {
	// CreateIntent stores intent unless one with the same key exists, in
	// which case the stored intent is returned with created=false.
	CreateIntent(ctx context.Context, intent *domain.Intent) (stored *domain.Intent, created bool, err error)
	MarkIntentApplied(ctx context.Context, key string) error
}

// HighWaterMarks tracks the highest odometer accepted per vehicle across
// batches.
type HighWaterMarks interface {
	// Advance stores max(current, odometer) and returns the resulting mark.
	Advance(ctx context.Context, vehicleID string, odometer float64) (float64, error)
}

// AlertSink receives alerts once the documents that raised them are
// persisted. Delivery is the sink's concern.
type AlertSink interface {
	Send(ctx context.Context, alert domain.Alert) error
}

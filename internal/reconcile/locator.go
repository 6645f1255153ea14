package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"fleet-monitor/reconciler/internal/domain"
	"fleet-monitor/reconciler/internal/metrics"
)

// Locator finds the single non-terminal trip of a vehicle.
type Locator struct {
	trips  TripStore
	logger *slog.Logger
}

func NewLocator(trips TripStore, logger *slog.Logger) *Locator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Locator{trips: trips, logger: logger}
}

// Locate returns nil, nil when the vehicle has no active trip. When the
// store holds more than one, the violation is logged and the trip with the
// lowest id is returned.
func (l *Locator) Locate(ctx context.Context, vehicleID string) (*domain.Trip, error) {
	found, err := l.trips.FindActiveTrips(ctx, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("find active trip for vehicle %s: %w", vehicleID, err)
	}

	active := found[:0:0]
	for _, t := range found {
		if !t.Status.IsTerminal() {
			active = append(active, t)
		}
	}

	switch len(active) {
	case 0:
		return nil, nil
	case 1:
		return &active[0], nil
	}

	sort.Slice(active, func(i, j int) bool { return active[i].ID < active[j].ID })

	ids := make([]string, len(active))
	for i, t := range active {
		ids[i] = t.ID
	}
	metrics.ActiveTripInvariantViolations.Inc()
	l.logger.Warn("multiple active trips for vehicle",
		"vehicle_id", vehicleID,
		"trip_ids", ids,
		"picked", active[0].ID,
	)
	return &active[0], nil
}

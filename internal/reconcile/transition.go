package reconcile

import (
	"fmt"
	"time"

	"fleet-monitor/reconciler/internal/domain"
)

// Outcome is the result of applying one odometer high to a trip and its
// consignment.
type Outcome struct {
	Trip             domain.Trip
	Consignment      domain.Consignment
	TripDirty        bool
	ConsignmentDirty bool
	Alerts           []domain.AlertKind

	// The documents the outcome was computed from.
	fromTrip        domain.Trip
	fromConsignment domain.Consignment
}

func (o Outcome) Dirty() bool {
	return o.TripDirty || o.ConsignmentDirty
}

// Transition decides the new trip and consignment state. Inputs are taken
// by value and never mutated.
//
// The steps run in a fixed order: completion, else delay, then the first
// observation of the trip. The last step always runs and overwrites the
// status set by the first two, so a trip seen for the first time ends up
// Active even when it completed or fell behind on the same call. Alerts
// raised by the first two steps are kept.
//
// A terminal input trip is rejected with domain.ErrTerminalTrip. The locator
// never hands one over, so the guard is a boundary check only.
func Transition(trip domain.Trip, consignment domain.Consignment, odometerHigh float64, now time.Time) (Outcome, error) {
	if trip.Status.IsTerminal() {
		return Outcome{}, fmt.Errorf("trip %s is %s: %w", trip.ID, trip.Status, domain.ErrTerminalTrip)
	}

	out := Outcome{
		Trip:            trip.Clone(),
		Consignment:     consignment,
		fromTrip:        trip.Clone(),
		fromConsignment: consignment,
	}
	t, c := &out.Trip, &out.Consignment

	milesDriven := odometerHigh - t.OdometerBegin
	if milesDriven >= t.PlannedTripDistance {
		end, ended := odometerHigh, now
		t.Status = domain.TripCompleted
		t.OdometerEnd = &end
		t.TripEnded = &ended
		c.Status = domain.ConsignmentCompleted
		out.TripDirty, out.ConsignmentDirty = true, true
		out.Alerts = append(out.Alerts, domain.AlertTripCompleted)
	} else if !now.Before(c.DeliveryDueDate) && t.Status != domain.TripDelayed {
		t.Status = domain.TripDelayed
		c.Status = domain.ConsignmentDelayed
		out.TripDirty, out.ConsignmentDirty = true, true
		out.Alerts = append(out.Alerts, domain.AlertTripDelayed)
	}

	if t.TripStarted == nil {
		started := now
		t.TripStarted = &started
		t.Status = domain.TripActive
		c.Status = domain.ConsignmentActive
		out.TripDirty, out.ConsignmentDirty = true, true
	}

	if err := checkTransition(trip, consignment, out); err != nil {
		return Outcome{}, err
	}
	return out, nil
}

func checkTransition(trip domain.Trip, consignment domain.Consignment, out Outcome) error {
	if !out.Dirty() {
		return nil
	}
	if !trip.Status.CanBecome(out.Trip.Status) {
		return fmt.Errorf("trip %s %s -> %s: %w",
			trip.ID, trip.Status, out.Trip.Status, domain.ErrIllegalTransition)
	}
	if !consignment.Status.CanBecome(out.Consignment.Status) {
		return fmt.Errorf("consignment %s %s -> %s: %w",
			consignment.ID, consignment.Status, out.Consignment.Status, domain.ErrIllegalTransition)
	}
	if want, ok := domain.ConsignmentStatusFor(out.Trip.Status); !ok || want != out.Consignment.Status {
		return fmt.Errorf("consignment %s would be %s while trip %s is %s: %w",
			consignment.ID, out.Consignment.Status, trip.ID, out.Trip.Status, domain.ErrIllegalTransition)
	}
	return nil
}

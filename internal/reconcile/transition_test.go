package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet-monitor/reconciler/internal/domain"
)

var (
	testNow     = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	testStarted = testNow.Add(-6 * time.Hour)
)

func ptr[T any](v T) *T { return &v }

func newTrip(status domain.TripStatus, started *time.Time) domain.Trip {
	return domain.Trip{
		ID:                  "trip-1",
		VehicleID:           "VIN-1",
		ConsignmentID:       "cons-1",
		Status:              status,
		OdometerBegin:       0,
		PlannedTripDistance: 100,
		TripStarted:         started,
		Version:             3,
	}
}

func newConsignment(status domain.ConsignmentStatus, due time.Time) domain.Consignment {
	return domain.Consignment{
		ID:              "cons-1",
		Status:          status,
		DeliveryDueDate: due,
		Version:         7,
	}
}

func TestTransition_CompletesTrip(t *testing.T) {
	trip := newTrip(domain.TripActive, ptr(testStarted))
	cons := newConsignment(domain.ConsignmentActive, testNow.Add(24*time.Hour))

	out, err := Transition(trip, cons, 150, testNow)
	require.NoError(t, err)

	assert.Equal(t, domain.TripCompleted, out.Trip.Status)
	require.NotNil(t, out.Trip.OdometerEnd)
	assert.Equal(t, 150.0, *out.Trip.OdometerEnd)
	require.NotNil(t, out.Trip.TripEnded)
	assert.True(t, out.Trip.TripEnded.Equal(testNow))
	assert.Equal(t, domain.ConsignmentCompleted, out.Consignment.Status)
	assert.True(t, out.TripDirty)
	assert.True(t, out.ConsignmentDirty)
	assert.Equal(t, []domain.AlertKind{domain.AlertTripCompleted}, out.Alerts)
	assert.True(t, out.Trip.TripStarted.Equal(testStarted))
}

func TestTransition_CompletesAtExactPlannedDistance(t *testing.T) {
	trip := newTrip(domain.TripActive, ptr(testStarted))
	trip.OdometerBegin = 1000
	cons := newConsignment(domain.ConsignmentActive, testNow.Add(time.Hour))

	out, err := Transition(trip, cons, 1100, testNow)
	require.NoError(t, err)
	assert.Equal(t, domain.TripCompleted, out.Trip.Status)
	assert.Equal(t, 1100.0, *out.Trip.OdometerEnd)
}

func TestTransition_DelaysOverdueTrip(t *testing.T) {
	trip := newTrip(domain.TripActive, ptr(testStarted))
	cons := newConsignment(domain.ConsignmentActive, testNow.Add(-time.Hour))

	out, err := Transition(trip, cons, 40, testNow)
	require.NoError(t, err)

	assert.Equal(t, domain.TripDelayed, out.Trip.Status)
	assert.Equal(t, domain.ConsignmentDelayed, out.Consignment.Status)
	assert.True(t, out.TripDirty)
	assert.True(t, out.ConsignmentDirty)
	assert.Equal(t, []domain.AlertKind{domain.AlertTripDelayed}, out.Alerts)
	assert.Nil(t, out.Trip.OdometerEnd)
	assert.Nil(t, out.Trip.TripEnded)
}

func TestTransition_DelaysWhenDueDateIsNow(t *testing.T) {
	trip := newTrip(domain.TripActive, ptr(testStarted))
	cons := newConsignment(domain.ConsignmentActive, testNow)

	out, err := Transition(trip, cons, 10, testNow)
	require.NoError(t, err)
	assert.Equal(t, domain.TripDelayed, out.Trip.Status)
}

func TestTransition_AlreadyDelayedDoesNotRefire(t *testing.T) {
	trip := newTrip(domain.TripDelayed, ptr(testStarted))
	cons := newConsignment(domain.ConsignmentDelayed, testNow.Add(-time.Hour))

	out, err := Transition(trip, cons, 40, testNow)
	require.NoError(t, err)

	assert.Equal(t, domain.TripDelayed, out.Trip.Status)
	assert.False(t, out.TripDirty)
	assert.False(t, out.ConsignmentDirty)
	assert.Empty(t, out.Alerts)
}

func TestTransition_DelayedTripCanStillComplete(t *testing.T) {
	trip := newTrip(domain.TripDelayed, ptr(testStarted))
	cons := newConsignment(domain.ConsignmentDelayed, testNow.Add(-time.Hour))

	out, err := Transition(trip, cons, 120, testNow)
	require.NoError(t, err)
	assert.Equal(t, domain.TripCompleted, out.Trip.Status)
	assert.Equal(t, []domain.AlertKind{domain.AlertTripCompleted}, out.Alerts)
}

func TestTransition_NotDueNotDoneIsUnchanged(t *testing.T) {
	trip := newTrip(domain.TripActive, ptr(testStarted))
	cons := newConsignment(domain.ConsignmentActive, testNow.Add(time.Hour))

	out, err := Transition(trip, cons, 50, testNow)
	require.NoError(t, err)
	assert.False(t, out.Dirty())
	assert.Empty(t, out.Alerts)
	assert.Equal(t, trip, out.Trip)
	assert.Equal(t, cons, out.Consignment)
}

func TestTransition_FirstObservationStartsTrip(t *testing.T) {
	trip := newTrip(domain.TripCreated, nil)
	cons := newConsignment(domain.ConsignmentCreated, testNow.Add(time.Hour))

	out, err := Transition(trip, cons, 10, testNow)
	require.NoError(t, err)

	assert.Equal(t, domain.TripActive, out.Trip.Status)
	assert.Equal(t, domain.ConsignmentActive, out.Consignment.Status)
	require.NotNil(t, out.Trip.TripStarted)
	assert.True(t, out.Trip.TripStarted.Equal(testNow))
	assert.True(t, out.TripDirty)
	assert.True(t, out.ConsignmentDirty)
	assert.Empty(t, out.Alerts)
}

func TestTransition_FirstObservationOverwritesCompletion(t *testing.T) {
	trip := newTrip(domain.TripCreated, nil)
	cons := newConsignment(domain.ConsignmentCreated, testNow.Add(time.Hour))

	out, err := Transition(trip, cons, 150, testNow)
	require.NoError(t, err)

	assert.Equal(t, domain.TripActive, out.Trip.Status)
	assert.Equal(t, domain.ConsignmentActive, out.Consignment.Status)
	require.NotNil(t, out.Trip.TripStarted)
	assert.True(t, out.Trip.TripStarted.Equal(testNow))
	// The completion fields from the earlier step survive the overwrite.
	require.NotNil(t, out.Trip.OdometerEnd)
	assert.Equal(t, 150.0, *out.Trip.OdometerEnd)
	assert.Equal(t, []domain.AlertKind{domain.AlertTripCompleted}, out.Alerts)
}

func TestTransition_FirstObservationOverwritesDelay(t *testing.T) {
	trip := newTrip(domain.TripCreated, nil)
	cons := newConsignment(domain.ConsignmentCreated, testNow.Add(-time.Hour))

	out, err := Transition(trip, cons, 10, testNow)
	require.NoError(t, err)

	assert.Equal(t, domain.TripActive, out.Trip.Status)
	assert.Equal(t, domain.ConsignmentActive, out.Consignment.Status)
	assert.Equal(t, []domain.AlertKind{domain.AlertTripDelayed}, out.Alerts)
}

func TestTransition_Idempotent(t *testing.T) {
	cases := []struct {
		name string
		trip domain.Trip
		cons domain.Consignment
		high float64
	}{
		{"complete", newTrip(domain.TripActive, ptr(testStarted)), newConsignment(domain.ConsignmentActive, testNow.Add(time.Hour)), 150},
		{"delay", newTrip(domain.TripActive, ptr(testStarted)), newConsignment(domain.ConsignmentActive, testNow.Add(-time.Hour)), 40},
		{"start", newTrip(domain.TripCreated, nil), newConsignment(domain.ConsignmentCreated, testNow.Add(time.Hour)), 10},
		{"unchanged", newTrip(domain.TripActive, ptr(testStarted)), newConsignment(domain.ConsignmentActive, testNow.Add(time.Hour)), 10},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			first, err := Transition(tc.trip, tc.cons, tc.high, testNow)
			require.NoError(t, err)
			again, err := Transition(tc.trip, tc.cons, tc.high, testNow)
			require.NoError(t, err)
			assert.Equal(t, first, again)

			if first.Trip.Status.IsTerminal() {
				_, err := Transition(first.Trip, first.Consignment, tc.high, testNow)
				assert.ErrorIs(t, err, domain.ErrTerminalTrip)
				return
			}
			second, err := Transition(first.Trip, first.Consignment, tc.high, testNow)
			require.NoError(t, err)
			assert.False(t, second.Dirty())
			assert.Empty(t, second.Alerts)
			assert.Equal(t, first.Trip, second.Trip)
		})
	}
}

func TestTransition_DoesNotMutateInputs(t *testing.T) {
	trip := newTrip(domain.TripActive, ptr(testStarted))
	cons := newConsignment(domain.ConsignmentActive, testNow.Add(time.Hour))
	startedBefore := *trip.TripStarted

	_, err := Transition(trip, cons, 500, testNow)
	require.NoError(t, err)

	assert.Equal(t, domain.TripActive, trip.Status)
	assert.Nil(t, trip.OdometerEnd)
	assert.True(t, trip.TripStarted.Equal(startedBefore))
	assert.Equal(t, domain.ConsignmentActive, cons.Status)
}

func TestTransition_RejectsTerminalTrip(t *testing.T) {
	for _, st := range domain.TerminalTripStatuses {
		trip := newTrip(st, ptr(testStarted))
		cons := newConsignment(domain.ConsignmentActive, testNow.Add(time.Hour))

		_, err := Transition(trip, cons, 10, testNow)
		assert.ErrorIs(t, err, domain.ErrTerminalTrip, st)
	}
}

func TestTransition_RejectsIllegalConsignmentMove(t *testing.T) {
	// A completed consignment under a trip that has not started would be
	// pulled back to Active.
	trip := newTrip(domain.TripCreated, nil)
	cons := newConsignment(domain.ConsignmentCompleted, testNow.Add(time.Hour))

	_, err := Transition(trip, cons, 10, testNow)
	assert.ErrorIs(t, err, domain.ErrIllegalTransition)
}

func TestTransition_FinishesHalfAppliedCompletion(t *testing.T) {
	trip := newTrip(domain.TripActive, ptr(testStarted))
	cons := newConsignment(domain.ConsignmentCompleted, testNow.Add(time.Hour))

	out, err := Transition(trip, cons, 150, testNow)
	require.NoError(t, err)
	assert.Equal(t, domain.TripCompleted, out.Trip.Status)
	assert.Equal(t, domain.ConsignmentCompleted, out.Consignment.Status)
}

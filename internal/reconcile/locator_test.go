package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet-monitor/reconciler/internal/domain"
	"fleet-monitor/reconciler/internal/metrics"
)

// stubTrips returns a fixed result, including terminal trips a broken
// store filter might leak.
type stubTrips struct {
	trips []domain.Trip
	err   error
}

func (s *stubTrips) FindActiveTrips(ctx context.Context, vehicleID string) ([]domain.Trip, error) {
	return s.trips, s.err
}

func (s *stubTrips) ReplaceTrip(ctx context.Context, trip *domain.Trip) error {
	return errors.New("not implemented")
}

func TestLocator_None(t *testing.T) {
	l := NewLocator(&stubTrips{}, nil)

	trip, err := l.Locate(context.Background(), "VIN-1")
	require.NoError(t, err)
	assert.Nil(t, trip)
}

func TestLocator_Single(t *testing.T) {
	l := NewLocator(&stubTrips{trips: []domain.Trip{{ID: "t1", Status: domain.TripActive}}}, nil)

	trip, err := l.Locate(context.Background(), "VIN-1")
	require.NoError(t, err)
	require.NotNil(t, trip)
	assert.Equal(t, "t1", trip.ID)
}

func TestLocator_PicksLowestIDOnInvariantViolation(t *testing.T) {
	before := testutil.ToFloat64(metrics.ActiveTripInvariantViolations)
	l := NewLocator(&stubTrips{trips: []domain.Trip{
		{ID: "t3", Status: domain.TripActive},
		{ID: "t1", Status: domain.TripDelayed},
		{ID: "t2", Status: domain.TripCreated},
	}}, nil)

	for i := 0; i < 3; i++ {
		trip, err := l.Locate(context.Background(), "VIN-1")
		require.NoError(t, err)
		assert.Equal(t, "t1", trip.ID)
	}
	assert.Equal(t, before+3, testutil.ToFloat64(metrics.ActiveTripInvariantViolations))
}

func TestLocator_NeverReturnsTerminalTrip(t *testing.T) {
	l := NewLocator(&stubTrips{trips: []domain.Trip{
		{ID: "a", Status: domain.TripCompleted},
		{ID: "b", Status: domain.TripCanceled},
		{ID: "c", Status: domain.TripInactive},
	}}, nil)

	trip, err := l.Locate(context.Background(), "VIN-1")
	require.NoError(t, err)
	assert.Nil(t, trip)

	l = NewLocator(&stubTrips{trips: []domain.Trip{
		{ID: "a", Status: domain.TripCompleted},
		{ID: "z", Status: domain.TripActive},
	}}, nil)
	trip, err = l.Locate(context.Background(), "VIN-1")
	require.NoError(t, err)
	assert.Equal(t, "z", trip.ID)
}

func TestLocator_StoreError(t *testing.T) {
	boom := errors.New("store unavailable")
	l := NewLocator(&stubTrips{err: boom}, nil)

	_, err := l.Locate(context.Background(), "VIN-1")
	assert.ErrorIs(t, err, boom)
}

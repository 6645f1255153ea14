package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet-monitor/reconciler/internal/domain"
	"fleet-monitor/reconciler/internal/reconcile"
	"fleet-monitor/reconciler/internal/store"
)

func TestLoadFixture(t *testing.T) {
	fx, err := loadFixture("testdata/batch.yaml")
	require.NoError(t, err)

	require.NotNil(t, fx.Now)
	assert.True(t, fx.Now.Equal(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)))
	assert.Len(t, fx.Events, 4)
	assert.Equal(t, 1251.2, fx.Events[1].Odometer)

	trips, err := fx.trips()
	require.NoError(t, err)
	require.Len(t, trips, 2)
	assert.Equal(t, "VIN-1", trips[0].VehicleID)
	assert.Equal(t, domain.TripActive, trips[0].Status)
	require.NotNil(t, trips[0].TripStarted)

	consignments, err := fx.consignments()
	require.NoError(t, err)
	assert.Len(t, consignments, 2)
}

func TestParseFixture_Errors(t *testing.T) {
	_, err := parseFixture([]byte("trips: []\n"))
	assert.ErrorContains(t, err, "no events")

	_, err = parseFixture([]byte("events: [\n"))
	assert.Error(t, err)

	fx, err := parseFixture([]byte(`
trips:
  - id: t
    vin: V
    status: Paused
events:
  - vehicleId: V
    odometer: 1
`))
	require.NoError(t, err)
	_, err = fx.trips()
	assert.Error(t, err)
}

func TestDryRun(t *testing.T) {
	fx, err := loadFixture("testdata/batch.yaml")
	require.NoError(t, err)

	mem := store.NewMemoryStore()
	require.NoError(t, seed(mem, fx))

	now := fx.Now.UTC()
	p := reconcile.NewProcessor(mem, mem, mem,
		reconcile.WithClock(func() time.Time { return now }),
		reconcile.WithHighWaterMarks(mem),
	)
	res, err := p.Process(context.Background(), fx.Events)
	require.NoError(t, err)
	require.Len(t, res.Groups, 3)

	byVehicle := make(map[string]reconcile.GroupResult)
	for _, g := range res.Groups {
		byVehicle[g.VehicleID] = g
	}
	assert.Equal(t, domain.TripCompleted, byVehicle["VIN-1"].TripStatus)
	assert.Equal(t, domain.TripDelayed, byVehicle["VIN-2"].TripStatus)
	assert.Equal(t, reconcile.GroupNoActiveTrip, byVehicle["VIN-3"].Status)

	c, _ := mem.Consignment("cons-2")
	assert.Equal(t, domain.ConsignmentDelayed, c.Status)
}

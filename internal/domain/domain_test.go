package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTripStatus_CanBecome(t *testing.T) {
	tests := []struct {
		from, to TripStatus
		want     bool
	}{
		{TripCreated, TripActive, true},
		{TripCreated, TripCompleted, true},
		{TripActive, TripDelayed, true},
		{TripActive, TripCreated, false},
		{TripDelayed, TripActive, true},
		{TripDelayed, TripCompleted, true},
		{TripCompleted, TripActive, false},
		{TripCompleted, TripCompleted, false},
		{TripCanceled, TripActive, false},
		{TripInactive, TripInactive, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.from.CanBecome(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestTripStatus_IsTerminal(t *testing.T) {
	for _, s := range TerminalTripStatuses {
		assert.True(t, s.IsTerminal(), s)
	}
	for _, s := range []TripStatus{TripCreated, TripActive, TripDelayed} {
		assert.False(t, s.IsTerminal(), s)
	}
}

func TestConsignmentStatus_CanBecome(t *testing.T) {
	assert.True(t, ConsignmentCreated.CanBecome(ConsignmentActive))
	assert.True(t, ConsignmentDelayed.CanBecome(ConsignmentCompleted))
	assert.True(t, ConsignmentCompleted.CanBecome(ConsignmentCompleted))
	assert.False(t, ConsignmentCompleted.CanBecome(ConsignmentActive))
	assert.False(t, ConsignmentActive.CanBecome(ConsignmentCreated))
}

func TestConsignmentStatusFor(t *testing.T) {
	got, ok := ConsignmentStatusFor(TripDelayed)
	assert.True(t, ok)
	assert.Equal(t, ConsignmentDelayed, got)

	_, ok = ConsignmentStatusFor(TripCanceled)
	assert.False(t, ok)
	_, ok = ConsignmentStatusFor(TripInactive)
	assert.False(t, ok)
}

func TestParseStatuses(t *testing.T) {
	s, err := ParseTripStatus("Delayed")
	require.NoError(t, err)
	assert.Equal(t, TripDelayed, s)

	_, err = ParseTripStatus("delayed")
	assert.Error(t, err)
	_, err = ParseConsignmentStatus("Canceled")
	assert.Error(t, err)

	k, err := ParseAlertKind("TRIP_DELAYED")
	require.NoError(t, err)
	assert.Equal(t, SeverityWarning, k.Severity())
	assert.Equal(t, SeverityInfo, AlertTripCompleted.Severity())
	_, err = ParseAlertKind("TRIP_LATE")
	assert.Error(t, err)
}

func TestTrip_JSONDocument(t *testing.T) {
	raw := `{
		"id": "trip-1",
		"vin": "VIN-1",
		"consignmentId": "cons-1",
		"status": "Active",
		"odometerBegin": 1200.5,
		"plannedTripDistance": 300,
		"tripStarted": "2024-05-01T06:00:00Z"
	}`

	var trip Trip
	require.NoError(t, json.Unmarshal([]byte(raw), &trip))
	assert.Equal(t, "VIN-1", trip.VehicleID)
	assert.Equal(t, TripActive, trip.Status)
	require.NotNil(t, trip.TripStarted)
	assert.True(t, trip.TripStarted.Equal(time.Date(2024, 5, 1, 6, 0, 0, 0, time.UTC)))
	assert.Nil(t, trip.OdometerEnd)

	trip.Version = 12
	out, err := json.Marshal(trip)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "Version")
	assert.NotContains(t, string(out), "tripEnded")
}

func TestTrip_RejectsUnknownStatus(t *testing.T) {
	var trip Trip
	err := json.Unmarshal([]byte(`{"id":"t","status":"Paused"}`), &trip)
	assert.Error(t, err)

	var c Consignment
	err = json.Unmarshal([]byte(`{"id":"c","status":"Lost"}`), &c)
	assert.Error(t, err)
}

func TestTrip_Clone(t *testing.T) {
	end := 10.0
	started := time.Date(2024, 5, 1, 6, 0, 0, 0, time.UTC)
	orig := Trip{ID: "t", OdometerEnd: &end, TripStarted: &started}

	cp := orig.Clone()
	*cp.OdometerEnd = 99
	*cp.TripStarted = started.Add(time.Hour)

	assert.Equal(t, 10.0, *orig.OdometerEnd)
	assert.True(t, orig.TripStarted.Equal(started))
	assert.Nil(t, cp.TripEnded)
}

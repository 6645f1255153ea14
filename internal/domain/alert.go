package domain

import (
	"fmt"
	"time"
)

type AlertKind string

const (
	AlertTripCompleted AlertKind = "TRIP_COMPLETED"
	AlertTripDelayed   AlertKind = "TRIP_DELAYED"
)

type AlertSeverity string

const (
	SeverityInfo    AlertSeverity = "INFO"
	SeverityWarning AlertSeverity = "WARNING"
)

func ParseAlertKind(s string) (AlertKind, error) {
	switch k := AlertKind(s); k {
	case AlertTripCompleted, AlertTripDelayed:
		return k, nil
	default:
		return "", fmt.Errorf("unknown alert kind %q", s)
	}
}

// Severity must match the chk_severity constraint on trip_alerts.
func (k AlertKind) Severity() AlertSeverity {
	if k == AlertTripDelayed {
		return SeverityWarning
	}
	return SeverityInfo
}

func (k *AlertKind) UnmarshalText(b []byte) error {
	v, err := ParseAlertKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Alert is the signal handed to the notification collaborator.
type Alert struct {
	ID            string    `json:"id"`
	Kind          AlertKind `json:"kind"`
	VehicleID     string    `json:"vehicleId"`
	TripID        string    `json:"tripId"`
	ConsignmentID string    `json:"consignmentId"`
	OdometerHigh  float64   `json:"odometerHigh"`
	RaisedAt      time.Time `json:"raisedAt"`
	IntentKey     string    `json:"intentKey"`
}

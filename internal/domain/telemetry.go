package domain

import "time"

// TelemetryEvent is one odometer reading delivered by the change feed.
// VehicleID is the partition key of the feed.
type TelemetryEvent struct {
	VehicleID string    `json:"vehicleId" yaml:"vehicleId"`
	Odometer  float64   `json:"odometer"  yaml:"odometer"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

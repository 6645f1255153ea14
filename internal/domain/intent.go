package domain

import "time"

type IntentState string

const (
	IntentPending IntentState = "pending"
	IntentApplied IntentState = "applied"
)

// Intent records the pair of documents a reconciliation decided to write,
// keyed by tripID, resulting status and odometer high. A retried batch
// that derives the same key reuses the recorded documents.
type Intent struct {
	Key              string      `json:"key"`
	TripID           string      `json:"tripId"`
	VehicleID        string      `json:"vehicleId"`
	Status           TripStatus  `json:"status"`
	OdometerHigh     float64     `json:"odometerHigh"`
	Trip             Trip        `json:"trip"`
	Consignment      Consignment `json:"consignment"`
	TripDirty        bool        `json:"tripDirty"`
	ConsignmentDirty bool        `json:"consignmentDirty"`
	Alerts           []AlertKind `json:"alerts"`
	State            IntentState `json:"state"`
	CreatedAt        time.Time   `json:"createdAt"`
	AppliedAt        *time.Time  `json:"appliedAt,omitempty"`
}

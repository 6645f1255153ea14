package domain

import (
	"fmt"
	"time"
)

type ConsignmentStatus string

const (
	ConsignmentCreated   ConsignmentStatus = "Created"
	ConsignmentActive    ConsignmentStatus = "Active"
	ConsignmentDelayed   ConsignmentStatus = "Delayed"
	ConsignmentCompleted ConsignmentStatus = "Completed"
)

// Completed -> Completed lets a retry finish a pair whose consignment was
// written before the trip write failed.
var consignmentTransitions = map[ConsignmentStatus][]ConsignmentStatus{
	ConsignmentCreated:   {ConsignmentCreated, ConsignmentActive, ConsignmentDelayed, ConsignmentCompleted},
	ConsignmentActive:    {ConsignmentActive, ConsignmentDelayed, ConsignmentCompleted},
	ConsignmentDelayed:   {ConsignmentDelayed, ConsignmentActive, ConsignmentCompleted},
	ConsignmentCompleted: {ConsignmentCompleted},
}

func ParseConsignmentStatus(s string) (ConsignmentStatus, error) {
	switch st := ConsignmentStatus(s); st {
	case ConsignmentCreated, ConsignmentActive, ConsignmentDelayed, ConsignmentCompleted:
		return st, nil
	default:
		return "", fmt.Errorf("unknown consignment status %q", s)
	}
}

func (s ConsignmentStatus) CanBecome(next ConsignmentStatus) bool {
	for _, allowed := range consignmentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s *ConsignmentStatus) UnmarshalText(b []byte) error {
	st, err := ParseConsignmentStatus(string(b))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// ConsignmentStatusFor maps the trip status a consignment mirrors.
// Terminal trip statuses other than Completed have no consignment twin.
func ConsignmentStatusFor(s TripStatus) (ConsignmentStatus, bool) {
	switch s {
	case TripCreated:
		return ConsignmentCreated, true
	case TripActive:
		return ConsignmentActive, true
	case TripDelayed:
		return ConsignmentDelayed, true
	case TripCompleted:
		return ConsignmentCompleted, true
	}
	return "", false
}

// Consignment is the shipment carried by a trip. ID is the partition key.
type Consignment struct {
	ID              string            `json:"id"`
	Status          ConsignmentStatus `json:"status"`
	DeliveryDueDate time.Time         `json:"deliveryDueDate"`

	Version int64 `json:"-"`
}

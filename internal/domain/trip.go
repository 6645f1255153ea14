package domain

import (
	"fmt"
	"time"
)

type TripStatus string

const (
	TripCreated   TripStatus = "Created"
	TripActive    TripStatus = "Active"
	TripDelayed   TripStatus = "Delayed"
	TripCompleted TripStatus = "Completed"
	TripCanceled  TripStatus = "Canceled"
	TripInactive  TripStatus = "Inactive"
)

// TerminalTripStatuses are never returned by the trip lookup and never
// touched by the reconciler.
var TerminalTripStatuses = []TripStatus{TripCompleted, TripCanceled, TripInactive}

// tripTransitions lists every final status the reconciler may write for a
// trip found in the key status. Delayed -> Active only happens when the trip
// start was never recorded.
var tripTransitions = map[TripStatus][]TripStatus{
	TripCreated: {TripCreated, TripActive, TripDelayed, TripCompleted},
	TripActive:  {TripActive, TripDelayed, TripCompleted},
	TripDelayed: {TripDelayed, TripActive, TripCompleted},
}

func ParseTripStatus(s string) (TripStatus, error) {
	switch st := TripStatus(s); st {
	case TripCreated, TripActive, TripDelayed, TripCompleted, TripCanceled, TripInactive:
		return st, nil
	default:
		return "", fmt.Errorf("unknown trip status %q", s)
	}
}

func (s TripStatus) IsTerminal() bool {
	switch s {
	case TripCompleted, TripCanceled, TripInactive:
		return true
	}
	return false
}

// CanBecome reports whether the reconciler may move a trip from s to next.
func (s TripStatus) CanBecome(next TripStatus) bool {
	for _, allowed := range tripTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s *TripStatus) UnmarshalText(b []byte) error {
	st, err := ParseTripStatus(string(b))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// Trip is a tracked journey of one vehicle. VehicleID is the partition key.
type Trip struct {
	ID                  string     `json:"id"`
	VehicleID           string     `json:"vin"`
	ConsignmentID       string     `json:"consignmentId"`
	Status              TripStatus `json:"status"`
	OdometerBegin       float64    `json:"odometerBegin"`
	OdometerEnd         *float64   `json:"odometerEnd,omitempty"`
	PlannedTripDistance float64    `json:"plannedTripDistance"`
	TripStarted         *time.Time `json:"tripStarted,omitempty"`
	TripEnded           *time.Time `json:"tripEnded,omitempty"`

	// Version is the store's concurrency token. It is not part of the
	// document body.
	Version int64 `json:"-"`
}

// Clone returns a deep copy so pointer fields can be changed without
// touching the original.
func (t Trip) Clone() Trip {
	if t.OdometerEnd != nil {
		v := *t.OdometerEnd
		t.OdometerEnd = &v
	}
	if t.TripStarted != nil {
		v := *t.TripStarted
		t.TripStarted = &v
	}
	if t.TripEnded != nil {
		v := *t.TripEnded
		t.TripEnded = &v
	}
	return t
}

package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"fleet-monitor/reconciler/internal/domain"
)

// Fixture is a replayable batch. Trips and consignments are only used by
// dry runs, which seed an in-memory store with them.
type Fixture struct {
	Now          *time.Time              `yaml:"now"`
	Trips        []tripFixture           `yaml:"trips"`
	Consignments []consignmentFixture    `yaml:"consignments"`
	Events       []domain.TelemetryEvent `yaml:"events"`
}

type tripFixture struct {
	ID                  string     `yaml:"id"`
	VehicleID           string     `yaml:"vin"`
	ConsignmentID       string     `yaml:"consignmentId"`
	Status              string     `yaml:"status"`
	OdometerBegin       float64    `yaml:"odometerBegin"`
	PlannedTripDistance float64    `yaml:"plannedTripDistance"`
	TripStarted         *time.Time `yaml:"tripStarted"`
}

type consignmentFixture struct {
	ID              string    `yaml:"id"`
	Status          string    `yaml:"status"`
	DeliveryDueDate time.Time `yaml:"deliveryDueDate"`
}

func loadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch file: %w", err)
	}
	return parseFixture(data)
}

func parseFixture(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse batch file: %w", err)
	}
	if len(f.Events) == 0 {
		return nil, fmt.Errorf("batch file has no events")
	}
	return &f, nil
}

func (f *Fixture) trips() ([]domain.Trip, error) {
	out := make([]domain.Trip, 0, len(f.Trips))
	for _, t := range f.Trips {
		st, err := domain.ParseTripStatus(t.Status)
		if err != nil {
			return nil, fmt.Errorf("trip %s: %w", t.ID, err)
		}
		out = append(out, domain.Trip{
			ID:                  t.ID,
			VehicleID:           t.VehicleID,
			ConsignmentID:       t.ConsignmentID,
			Status:              st,
			OdometerBegin:       t.OdometerBegin,
			PlannedTripDistance: t.PlannedTripDistance,
			TripStarted:         t.TripStarted,
		})
	}
	return out, nil
}

func (f *Fixture) consignments() ([]domain.Consignment, error) {
	out := make([]domain.Consignment, 0, len(f.Consignments))
	for _, c := range f.Consignments {
		st, err := domain.ParseConsignmentStatus(c.Status)
		if err != nil {
			return nil, fmt.Errorf("consignment %s: %w", c.ID, err)
		}
		out = append(out, domain.Consignment{
			ID:              c.ID,
			Status:          st,
			DeliveryDueDate: c.DeliveryDueDate,
		})
	}
	return out, nil
}

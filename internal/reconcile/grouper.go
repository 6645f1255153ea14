package reconcile

import (
	"math"
	"sort"

	"fleet-monitor/reconciler/internal/domain"
)

// VehicleHigh is the highest odometer reading seen for one vehicle in a
// batch.
type VehicleHigh struct {
	VehicleID    string
	OdometerHigh float64
	Events       int
}

// GroupByVehicle reduces a batch to one entry per vehicle carrying the
// maximum odometer reading. Event order within the batch does not matter.
// Results are sorted by vehicle id. The second return value counts events
// dropped for a missing vehicle id or a NaN or infinite odometer.
func GroupByVehicle(events []domain.TelemetryEvent) ([]VehicleHigh, int) {
	highs := make(map[string]*VehicleHigh)
	dropped := 0

	for _, ev := range events {
		if ev.VehicleID == "" || math.IsNaN(ev.Odometer) || math.IsInf(ev.Odometer, 0) {
			dropped++
			continue
		}
		g, ok := highs[ev.VehicleID]
		if !ok {
			highs[ev.VehicleID] = &VehicleHigh{VehicleID: ev.VehicleID, OdometerHigh: ev.Odometer, Events: 1}
			continue
		}
		g.Events++
		if ev.Odometer > g.OdometerHigh {
			g.OdometerHigh = ev.Odometer
		}
	}

	groups := make([]VehicleHigh, 0, len(highs))
	for _, g := range highs {
		groups = append(groups, *g)
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].VehicleID < groups[j].VehicleID
	})
	return groups, dropped
}

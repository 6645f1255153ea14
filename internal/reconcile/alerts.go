package reconcile

import (
	"time"

	"github.com/google/uuid"

	"fleet-monitor/reconciler/internal/domain"
)

func buildAlerts(intent *domain.Intent, now time.Time) []domain.Alert {
	if intent == nil || len(intent.Alerts) == 0 {
		return nil
	}
	alerts := make([]domain.Alert, 0, len(intent.Alerts))
	for _, kind := range intent.Alerts {
		alerts = append(alerts, domain.Alert{
			ID:            uuid.NewString(),
			Kind:          kind,
			VehicleID:     intent.VehicleID,
			TripID:        intent.TripID,
			ConsignmentID: intent.Consignment.ID,
			OdometerHigh:  intent.OdometerHigh,
			RaisedAt:      now,
			IntentKey:     intent.Key,
		})
	}
	return alerts
}

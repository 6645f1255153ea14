package reconcile

import (
	"context"
	"fmt"

	"fleet-monitor/reconciler/internal/domain"
)

// Loader reads the consignment referenced by a trip.
type Loader struct {
	consignments ConsignmentStore
}

func NewLoader(consignments ConsignmentStore) *Loader {
	return &Loader{consignments: consignments}
}

// Load fails with an error wrapping domain.ErrNotFound when the consignment
// is missing; a trip pointing nowhere is corrupt upstream data.
func (l *Loader) Load(ctx context.Context, trip *domain.Trip) (*domain.Consignment, error) {
	if trip.ConsignmentID == "" {
		return nil, fmt.Errorf("trip %s has no consignment reference: %w", trip.ID, domain.ErrNotFound)
	}
	c, err := l.consignments.GetConsignment(ctx, trip.ConsignmentID)
	if err != nil {
		return nil, fmt.Errorf("load consignment %s for trip %s: %w", trip.ConsignmentID, trip.ID, err)
	}
	return c, nil
}

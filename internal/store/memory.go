package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fleet-monitor/reconciler/internal/domain"
)

// MemoryCalls counts store operations.
type MemoryCalls struct {
	TripQueries         int
	ConsignmentReads    int
	TripReplaces        int
	ConsignmentReplaces int
	IntentCreates       int
}

// MemoryStore is an in-process document store with the same semantics as
// PostgresStore. It backs replay dry runs and tests.
type MemoryStore struct {
	mu           sync.Mutex
	trips        map[string]map[string]domain.Trip
	consignments map[string]domain.Consignment
	intents      map[string]domain.Intent
	marks        map[string]float64
	calls        MemoryCalls

	// Fail hooks run before the matching write; a non-nil error aborts it.
	FailReplaceTrip        func(*domain.Trip) error
	FailReplaceConsignment func(*domain.Consignment) error
	FailMarkApplied        func(key string) error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		trips:        make(map[string]map[string]domain.Trip),
		consignments: make(map[string]domain.Consignment),
		intents:      make(map[string]domain.Intent),
		marks:        make(map[string]float64),
	}
}

// PutTrip inserts or overwrites a trip without a version check.
func (m *MemoryStore) PutTrip(t domain.Trip) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.Version == 0 {
		t.Version = 1
	}
	part, ok := m.trips[t.VehicleID]
	if !ok {
		part = make(map[string]domain.Trip)
		m.trips[t.VehicleID] = part
	}
	part[t.ID] = t.Clone()
}

func (m *MemoryStore) PutConsignment(c domain.Consignment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.Version == 0 {
		c.Version = 1
	}
	m.consignments[c.ID] = c
}

func (m *MemoryStore) Trip(vehicleID, id string) (domain.Trip, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trips[vehicleID][id]
	return t.Clone(), ok
}

func (m *MemoryStore) Consignment(id string) (domain.Consignment, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.consignments[id]
	return c, ok
}

func (m *MemoryStore) Intent(key string) (domain.Intent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.intents[key]
	return i, ok
}

func (m *MemoryStore) Calls() MemoryCalls {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MemoryStore) FindActiveTrips(ctx context.Context, vehicleID string) ([]domain.Trip, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.TripQueries++

	var out []domain.Trip
	for _, t := range m.trips[vehicleID] {
		if !t.Status.IsTerminal() {
			out = append(out, t.Clone())
		}
	}
	return out, nil
}

func (m *MemoryStore) ReplaceTrip(ctx context.Context, trip *domain.Trip) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.TripReplaces++

	if m.FailReplaceTrip != nil {
		if err := m.FailReplaceTrip(trip); err != nil {
			return err
		}
	}
	cur, ok := m.trips[trip.VehicleID][trip.ID]
	if !ok {
		return fmt.Errorf("trips %s: %w", trip.ID, domain.ErrNotFound)
	}
	if cur.Version != trip.Version {
		return fmt.Errorf("trips %s: %w", trip.ID, domain.ErrConflict)
	}
	trip.Version++
	m.trips[trip.VehicleID][trip.ID] = trip.Clone()
	return nil
}

func (m *MemoryStore) GetConsignment(ctx context.Context, id string) (*domain.Consignment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.ConsignmentReads++

	c, ok := m.consignments[id]
	if !ok {
		return nil, fmt.Errorf("consignment %s: %w", id, domain.ErrNotFound)
	}
	return &c, nil
}

func (m *MemoryStore) ReplaceConsignment(ctx context.Context, c *domain.Consignment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.ConsignmentReplaces++

	if m.FailReplaceConsignment != nil {
		if err := m.FailReplaceConsignment(c); err != nil {
			return err
		}
	}
	cur, ok := m.consignments[c.ID]
	if !ok {
		return fmt.Errorf("consignments %s: %w", c.ID, domain.ErrNotFound)
	}
	if cur.Version != c.Version {
		return fmt.Errorf("consignments %s: %w", c.ID, domain.ErrConflict)
	}
	c.Version++
	m.consignments[c.ID] = *c
	return nil
}

func (m *MemoryStore) CreateIntent(ctx context.Context, intent *domain.Intent) (*domain.Intent, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.IntentCreates++

	if stored, ok := m.intents[intent.Key]; ok {
		stored.Trip = stored.Trip.Clone()
		return &stored, false, nil
	}
	stored := *intent
	stored.Trip = intent.Trip.Clone()
	stored.State = domain.IntentPending
	m.intents[intent.Key] = stored
	return intent, true, nil
}

func (m *MemoryStore) MarkIntentApplied(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailMarkApplied != nil {
		if err := m.FailMarkApplied(key); err != nil {
			return err
		}
	}
	i, ok := m.intents[key]
	if !ok {
		return fmt.Errorf("intent %s: %w", key, domain.ErrNotFound)
	}
	now := time.Now().UTC()
	i.State = domain.IntentApplied
	i.AppliedAt = &now
	m.intents[key] = i
	return nil
}

func (m *MemoryStore) Advance(ctx context.Context, vehicleID string, odometer float64) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if cur, ok := m.marks[vehicleID]; ok && cur >= odometer {
		return cur, nil
	}
	m.marks[vehicleID] = odometer
	return odometer, nil
}

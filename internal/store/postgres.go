package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"fleet-monitor/reconciler/internal/config"
	"fleet-monitor/reconciler/internal/domain"
)

// pgxPool is the part of *pgxpool.Pool the store uses.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore keeps trips, consignments and intents as JSONB documents
// addressed by id and partition key. Each row carries a version used for
// conditional replaces.
type PostgresStore struct {
	pool pgxPool
}

func NewPostgresStore(ctx context.Context, cfg *config.Config) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to create db pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func newPostgresStoreWithPool(pool pgxPool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func terminalStatuses() []string {
	out := make([]string, len(domain.TerminalTripStatuses))
	for i, st := range domain.TerminalTripStatuses {
		out[i] = string(st)
	}
	return out
}

func (s *PostgresStore) FindActiveTrips(ctx context.Context, vehicleID string) ([]domain.Trip, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT doc, version
		FROM trips
		WHERE vehicle_id = $1
		  AND NOT (status = ANY($2))
	`, vehicleID, terminalStatuses())
	if err != nil {
		return nil, fmt.Errorf("query active trips: %w", err)
	}
	defer rows.Close()

	var trips []domain.Trip
	for rows.Next() {
		var (
			doc     []byte
			version int64
		)
		if err := rows.Scan(&doc, &version); err != nil {
			return nil, fmt.Errorf("scan trip: %w", err)
		}
		var t domain.Trip
		if err := json.Unmarshal(doc, &t); err != nil {
			return nil, fmt.Errorf("decode trip document: %w", err)
		}
		t.Version = version
		trips = append(trips, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate active trips: %w", err)
	}
	return trips, nil
}

func (s *PostgresStore) ReplaceTrip(ctx context.Context, trip *domain.Trip) error {
	doc, err := json.Marshal(trip)
	if err != nil {
		return fmt.Errorf("encode trip %s: %w", trip.ID, err)
	}

	var version int64
	err = s.pool.QueryRow(ctx, `
		UPDATE trips
		SET doc = $3, status = $4, version = version + 1, updated_at = NOW()
		WHERE vehicle_id = $1 AND id = $2 AND version = $5
		RETURNING version
	`, trip.VehicleID, trip.ID, string(doc), string(trip.Status), trip.Version).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return s.replaceMiss(ctx, "trips", "vehicle_id = $1 AND id = $2", trip.ID, trip.VehicleID, trip.ID)
	}
	if err != nil {
		return fmt.Errorf("replace trip %s: %w", trip.ID, err)
	}
	trip.Version = version
	return nil
}

func (s *PostgresStore) GetConsignment(ctx context.Context, id string) (*domain.Consignment, error) {
	var (
		doc     []byte
		version int64
	)
	err := s.pool.QueryRow(ctx, `
		SELECT doc, version FROM consignments WHERE id = $1
	`, id).Scan(&doc, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("consignment %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read consignment %s: %w", id, err)
	}

	var c domain.Consignment
	if err := json.Unmarshal(doc, &c); err != nil {
		return nil, fmt.Errorf("decode consignment %s: %w", id, err)
	}
	c.Version = version
	return &c, nil
}

func (s *PostgresStore) ReplaceConsignment(ctx context.Context, c *domain.Consignment) error {
	doc, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode consignment %s: %w", c.ID, err)
	}

	var version int64
	err = s.pool.QueryRow(ctx, `
		UPDATE consignments
		SET doc = $2, status = $3, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $4
		RETURNING version
	`, c.ID, string(doc), string(c.Status), c.Version).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return s.replaceMiss(ctx, "consignments", "id = $1", c.ID, c.ID)
	}
	if err != nil {
		return fmt.Errorf("replace consignment %s: %w", c.ID, err)
	}
	c.Version = version
	return nil
}

// replaceMiss tells a missing document apart from a stale version after a
// conditional update matched no row.
func (s *PostgresStore) replaceMiss(ctx context.Context, table, where, id string, args ...any) error {
	var exists bool
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE %s)", table, where),
		args...,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check %s %s: %w", table, id, err)
	}
	if !exists {
		return fmt.Errorf("%s %s: %w", table, id, domain.ErrNotFound)
	}
	return fmt.Errorf("%s %s: %w", table, id, domain.ErrConflict)
}

func (s *PostgresStore) CreateIntent(ctx context.Context, intent *domain.Intent) (*domain.Intent, bool, error) {
	doc, err := json.Marshal(intent)
	if err != nil {
		return nil, false, fmt.Errorf("encode intent %s: %w", intent.Key, err)
	}

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO reconcile_intents
			(key, trip_id, vehicle_id, status, odometer_high, doc, state, created_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (key) DO NOTHING
	`,
		intent.Key,
		intent.TripID,
		intent.VehicleID,
		string(intent.Status),
		intent.OdometerHigh,
		string(doc),
		string(domain.IntentPending),
		intent.CreatedAt,
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert intent %s: %w", intent.Key, err)
	}
	if tag.RowsAffected() == 1 {
		return intent, true, nil
	}

	stored, err := s.getIntent(ctx, intent.Key)
	if err != nil {
		return nil, false, err
	}
	return stored, false, nil
}

func (s *PostgresStore) getIntent(ctx context.Context, key string) (*domain.Intent, error) {
	var (
		doc       []byte
		state     string
		appliedAt *time.Time
	)
	err := s.pool.QueryRow(ctx, `
		SELECT doc, state, applied_at FROM reconcile_intents WHERE key = $1
	`, key).Scan(&doc, &state, &appliedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("intent %s: %w", key, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read intent %s: %w", key, err)
	}

	var intent domain.Intent
	if err := json.Unmarshal(doc, &intent); err != nil {
		return nil, fmt.Errorf("decode intent %s: %w", key, err)
	}
	intent.State = domain.IntentState(state)
	intent.AppliedAt = appliedAt
	return &intent, nil
}

func (s *PostgresStore) MarkIntentApplied(ctx context.Context, key string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE reconcile_intents
		SET state = $2, applied_at = NOW()
		WHERE key = $1
	`, key, string(domain.IntentApplied))
	if err != nil {
		return fmt.Errorf("mark intent %s applied: %w", key, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("intent %s: %w", key, domain.ErrNotFound)
	}
	return nil
}

// InsertAlert records a delivered alert. A second insert for the same
// intent and kind is ignored.
func (s *PostgresStore) InsertAlert(ctx context.Context, a domain.Alert) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO trip_alerts
			(id, intent_key, alert_type, severity, vehicle_id, trip_id, consignment_id, odometer_high, raised_at, created_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (intent_key, alert_type) DO NOTHING
	`,
		a.ID,
		a.IntentKey,
		string(a.Kind),
		string(a.Kind.Severity()),
		a.VehicleID,
		a.TripID,
		a.ConsignmentID,
		a.OdometerHigh,
		a.RaisedAt,
	)
	if err != nil {
		return fmt.Errorf("insert alert %s for trip %s: %w", a.Kind, a.TripID, err)
	}
	return nil
}

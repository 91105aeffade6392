package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"unit_scanner/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.pool
}

// =============================================================================
// Properties
// =============================================================================

// GetScannableProperties returns properties that have a leasing site URL.
func (s *PostgresStore) GetScannableProperties(ctx context.Context) ([]models.Property, error) {
	query := `
		SELECT id, name, city, state, leasing_url,
			COALESCE(last_successful_source, ''), last_scan_at, created_at, updated_at
		FROM properties
		WHERE leasing_url IS NOT NULL AND leasing_url != ''
		ORDER BY created_at`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var props []models.Property
	for rows.Next() {
		var p models.Property
		if err := rows.Scan(
			&p.ID, &p.Name, &p.City, &p.State, &p.LeasingURL,
			&p.LastSuccessfulSource, &p.LastScanAt, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		props = append(props, p)
	}
	return props, rows.Err()
}

func (s *PostgresStore) GetPropertyByID(ctx context.Context, id uuid.UUID) (*models.Property, error) {
	query := `
		SELECT id, name, city, state, leasing_url,
			COALESCE(last_successful_source, ''), last_scan_at, created_at, updated_at
		FROM properties WHERE id = $1`

	var p models.Property
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.Name, &p.City, &p.State, &p.LeasingURL,
		&p.LastSuccessfulSource, &p.LastScanAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdatePropertyScanInfo writes back the denormalized scan fields after a
// successful scan.
func (s *PostgresStore) UpdatePropertyScanInfo(ctx context.Context, id uuid.UUID, source string, scannedAt time.Time) error {
	query := `
		UPDATE properties
		SET last_successful_source = $2, last_scan_at = $3, updated_at = NOW()
		WHERE id = $1`

	_, err := s.pool.Exec(ctx, query, id, source, scannedAt)
	return err
}

// =============================================================================
// Floor Plans
// =============================================================================

func (s *PostgresStore) GetFloorPlans(ctx context.Context, propertyID uuid.UUID) ([]models.FloorPlan, error) {
	query := `
		SELECT id, property_id, name, beds, baths
		FROM floor_plans WHERE property_id = $1
		ORDER BY beds, name`

	rows, err := s.pool.Query(ctx, query, propertyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []models.FloorPlan
	for rows.Next() {
		var fp models.FloorPlan
		if err := rows.Scan(&fp.ID, &fp.PropertyID, &fp.Name, &fp.Beds, &fp.Baths); err != nil {
			return nil, err
		}
		plans = append(plans, fp)
	}
	return plans, rows.Err()
}

// =============================================================================
// Units
// =============================================================================

// UpsertUnit writes a reconciled unit keyed by (property_id, unit_number).
// A conflicting existing row is overwritten, never appended.
func (s *PostgresStore) UpsertUnit(ctx context.Context, u *models.Unit) error {
	query := `
		INSERT INTO units (
			id, property_id, floor_plan_id, unit_number, beds, baths, sqft, rent,
			available_from, floor_plan_label, status, is_available, is_active,
			source, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16
		)
		ON CONFLICT (property_id, unit_number) DO UPDATE SET
			floor_plan_id = EXCLUDED.floor_plan_id,
			beds = EXCLUDED.beds,
			baths = EXCLUDED.baths,
			sqft = COALESCE(EXCLUDED.sqft, units.sqft),
			rent = COALESCE(EXCLUDED.rent, units.rent),
			available_from = EXCLUDED.available_from,
			floor_plan_label = EXCLUDED.floor_plan_label,
			status = EXCLUDED.status,
			is_available = EXCLUDED.is_available,
			is_active = EXCLUDED.is_active,
			source = EXCLUDED.source,
			updated_at = NOW()
		RETURNING id`

	return s.pool.QueryRow(ctx, query,
		u.ID, u.PropertyID, u.FloorPlanID, u.UnitNumber, u.Beds, u.Baths, u.SqFt, u.Rent,
		u.AvailableFrom, u.FloorPlanLabel, u.Status, u.IsAvailable, u.IsActive,
		u.Source, u.CreatedAt, u.UpdatedAt,
	).Scan(&u.ID)
}

// =============================================================================
// Scan History
// =============================================================================

// InsertScanHistory appends one attempt record. History rows are never
// mutated or deleted.
func (s *PostgresStore) InsertScanHistory(ctx context.Context, e *models.ScanHistoryEntry) error {
	query := `
		INSERT INTO scan_history (property_id, method_id, success, units_found, error, debug, scanned_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	return s.pool.QueryRow(ctx, query,
		e.PropertyID, e.MethodID, e.Success, e.UnitsFound, e.Error, e.Debug, e.ScannedAt,
	).Scan(&e.ID)
}

func (s *PostgresStore) GetScanHistory(ctx context.Context) ([]models.ScanHistoryEntry, error) {
	query := `
		SELECT id, property_id, method_id, success, units_found, COALESCE(error, ''), debug, scanned_at
		FROM scan_history
		ORDER BY scanned_at`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.ScanHistoryEntry
	for rows.Next() {
		var e models.ScanHistoryEntry
		if err := rows.Scan(
			&e.ID, &e.PropertyID, &e.MethodID, &e.Success, &e.UnitsFound, &e.Error, &e.Debug, &e.ScannedAt,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

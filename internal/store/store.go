package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"rental-service/internal/apperr"
	"rental-service/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

//go:embed schema.sql
var schema string

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// Migrate applies the embedded schema. Idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// asConflict translates Postgres unique (23505) and exclusion (23P01)
// violations into conflict errors; everything else passes through unchanged.
func asConflict(err error, msg string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && (pqErr.Code == "23505" || pqErr.Code == "23P01") {
		return apperr.Conflict("%s", msg)
	}
	return err
}

// CreateProperty inserts a new property listing
func (s *Store) CreateProperty(ctx context.Context, p *models.Property) error {
	query := `
		INSERT INTO properties (host_id, title, description, price, pricing_period, available_from, available_until)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	return s.db.GetContext(ctx, p, query,
		p.HostID, p.Title, p.Description, p.Price, p.PricingPeriod, p.AvailableFrom, p.AvailableUntil)
}

// GetPropertyByID retrieves a property by ID
func (s *Store) GetPropertyByID(ctx context.Context, id int64) (*models.Property, error) {
	var p models.Property
	err := s.db.GetContext(ctx, &p, "SELECT * FROM properties WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("property not found: %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProperty updates a property's mutable fields
func (s *Store) UpdateProperty(ctx context.Context, p *models.Property) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE properties
		SET title = $1, description = $2, price = $3, pricing_period = $4,
		    available_from = $5, available_until = $6, updated_at = NOW()
		WHERE id = $7`,
		p.Title, p.Description, p.Price, p.PricingPeriod, p.AvailableFrom, p.AvailableUntil, p.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFound("property not found: %d", p.ID)
	}
	return nil
}

// ListProperties retrieves all properties
func (s *Store) ListProperties(ctx context.Context) ([]models.Property, error) {
	var props []models.Property
	err := s.db.SelectContext(ctx, &props, "SELECT * FROM properties ORDER BY id")
	return props, err
}

// ListPropertiesByHost retrieves properties owned by a host
func (s *Store) ListPropertiesByHost(ctx context.Context, hostID int64) ([]models.Property, error) {
	var props []models.Property
	err := s.db.SelectContext(ctx, &props,
		"SELECT * FROM properties WHERE host_id = $1 ORDER BY id", hostID)
	return props, err
}

// PropertyHasBlockingRanges reports whether any blocking-status range
// references the property. Used to freeze a property's availability window
// once booked dates exist.
func (s *Store) PropertyHasBlockingRanges(ctx context.Context, propertyID int64) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		`SELECT EXISTS(
			SELECT 1 FROM booked_date_ranges
			WHERE property_id = $1 AND status IN `+blockingSet+`)`,
		propertyID)
	return exists, err
}

package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/placescout/api/internal/model"
)

// Expects the businesses table with UNIQUE (search_id, provider, place_id)
// and the pg_trgm extension for similarity().
const (
	insertBusinessSQL = `
INSERT INTO businesses (
	id, search_id, provider, place_id, name, address, city, state, country,
	phone, website, rating, user_ratings_total, price_level, lat, lng, types, raw_data, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
ON CONFLICT (search_id, provider, place_id) DO NOTHING`

	existsByPhoneSQL = `
SELECT EXISTS (
	SELECT 1 FROM businesses WHERE search_id = $1 AND phone = $2
)`

	existsNearWithNameSQL = `
SELECT EXISTS (
	SELECT 1 FROM businesses
	WHERE search_id = $1
	  AND lat IS NOT NULL AND lng IS NOT NULL
	  AND 2 * 6371000 * asin(sqrt(
	        power(sin(radians(lat - $2) / 2), 2) +
	        cos(radians($2)) * cos(radians(lat)) * power(sin(radians(lng - $3) / 2), 2)
	      )) <= $4
	  AND (lower(name) = lower($5) OR similarity(name, $5) > $6)
)`

	countByJobSQL = `SELECT COUNT(*) FROM businesses WHERE search_id = $1`
)

type execQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgxRow
}

type pgxRow interface {
	Scan(dest ...any) error
}

// PostgresBusinessStore writes accepted business records to Postgres
type PostgresBusinessStore struct {
	db execQuerier
}

func NewPostgresBusinessStore(pool *pgxpool.Pool) *PostgresBusinessStore {
	return &PostgresBusinessStore{db: poolAdapter{pool}}
}

// InsertIfAbsent inserts rec unless the job already holds the same provider id.
// A conflict is reported as inserted=false, not as an error.
func (s *PostgresBusinessStore) InsertIfAbsent(ctx context.Context, rec *model.BusinessRecord) (bool, error) {
	c := rec.Candidate

	var lat, lng *float64
	if c.Location != nil {
		lat, lng = &c.Location.Lat, &c.Location.Lng
	}

	types, err := json.Marshal(c.Types)
	if err != nil {
		return false, fmt.Errorf("failed to marshal types: %w", err)
	}
	raw := []byte(c.Raw)
	if len(raw) == 0 {
		raw = []byte("{}")
	}

	tag, err := s.db.Exec(ctx, insertBusinessSQL,
		rec.ID, rec.JobID, string(c.Provider), c.PlaceID, c.Name, c.Address, rec.City, rec.State, rec.Country,
		nullable(c.Phone), nullable(c.Website), c.Rating, c.ReviewCount, c.PriceLevel, lat, lng, types, raw, rec.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert business: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresBusinessStore) ExistsByPhone(ctx context.Context, jobID, phone string) (bool, error) {
	var exists bool
	if err := s.db.QueryRow(ctx, existsByPhoneSQL, jobID, phone).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check phone: %w", err)
	}
	return exists, nil
}

func (s *PostgresBusinessStore) ExistsNearWithName(ctx context.Context, jobID string, p model.Point, meters float64, name string, threshold float64) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, existsNearWithNameSQL, jobID, p.Lat, p.Lng, meters, name, threshold).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check nearby businesses: %w", err)
	}
	return exists, nil
}

func (s *PostgresBusinessStore) CountByJob(ctx context.Context, jobID string) (int, error) {
	var n int
	if err := s.db.QueryRow(ctx, countByJobSQL, jobID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count businesses: %w", err)
	}
	return n, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

type poolAdapter struct {
	pool *pgxpool.Pool
}

func (a poolAdapter) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return a.pool.Exec(ctx, sql, args...)
}

func (a poolAdapter) QueryRow(ctx context.Context, sql string, args ...any) pgxRow {
	return a.pool.QueryRow(ctx, sql, args...)
}

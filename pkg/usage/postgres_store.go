package usage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	"github.com/joelbyler272/naturescripts-sub001/pkg/enum"
)

const (
	createProfilesTableQuery = `
		CREATE TABLE IF NOT EXISTS profiles (
			id TEXT PRIMARY KEY,
			tier TEXT NOT NULL DEFAULT 'free'
		)`

	createUsageTrackingTableQuery = `
		CREATE TABLE IF NOT EXISTS usage_tracking (
			user_id TEXT NOT NULL,
			week_start DATE NOT NULL,
			consultation_count INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (user_id, week_start)
		)`

	selectTierQuery = `SELECT tier FROM profiles WHERE id = $1`

	upsertTierQuery = `
		INSERT INTO profiles (id, tier) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET tier = excluded.tier`

	selectWeeklyCountQuery = `
		SELECT consultation_count FROM usage_tracking
		WHERE user_id = $1 AND week_start = $2::date`

	incrementWeeklyCountQuery = `
		INSERT INTO usage_tracking (user_id, week_start, consultation_count)
		VALUES ($1, $2::date, 1)
		ON CONFLICT (user_id, week_start) DO UPDATE SET
			consultation_count = usage_tracking.consultation_count + 1,
			updated_at = now()
		RETURNING consultation_count`

	incrementWeeklyCountBelowQuery = `
		INSERT INTO usage_tracking (user_id, week_start, consultation_count)
		VALUES ($1, $2::date, 1)
		ON CONFLICT (user_id, week_start) DO UPDATE SET
			consultation_count = usage_tracking.consultation_count + 1,
			updated_at = now()
		WHERE usage_tracking.consultation_count < $3
		RETURNING consultation_count`
)

// PostgresStore keeps counters in the hosted Postgres database. The increment is a single upsert,
// so concurrent requests from any number of replicas never lose an update.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPostgres opens a pool through the pgx driver and checks connectivity.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.New("database url is required for the postgres usage store")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return NewPostgresStore(db), nil
}

func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	for _, query := range []string{createProfilesTableQuery, createUsageTrackingTableQuery} {
		if _, err := p.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("ensure usage schema: %w", err)
		}
	}
	return nil
}

func (p *PostgresStore) Close() error {
	return p.db.Close()
}

func (p *PostgresStore) GetTier(ctx context.Context, userID string) (enum.Tier, error) {
	var tier string
	err := p.db.QueryRowContext(ctx, selectTierQuery, userID).Scan(&tier)
	if errors.Is(err, sql.ErrNoRows) {
		return enum.Free, nil
	}
	if err != nil {
		return enum.Free, fmt.Errorf("fetch tier: %w", err)
	}
	return enum.ParseTier(tier)
}

func (p *PostgresStore) SetTier(ctx context.Context, userID string, tier enum.Tier) error {
	if _, err := p.db.ExecContext(ctx, upsertTierQuery, userID, tier.String()); err != nil {
		return fmt.Errorf("store tier: %w", err)
	}
	return nil
}

func (p *PostgresStore) GetWeeklyCount(ctx context.Context, userID string, weekStart time.Time) (int, error) {
	var count int
	err := p.db.QueryRowContext(ctx, selectWeeklyCountQuery, userID, WeekKey(weekStart)).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("fetch weekly count: %w", err)
	}
	return count, nil
}

func (p *PostgresStore) IncrementWeeklyCount(ctx context.Context, userID string, weekStart time.Time) (int, error) {
	var count int
	err := p.db.QueryRowContext(ctx, incrementWeeklyCountQuery, userID, WeekKey(weekStart)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("increment weekly count: %w", err)
	}
	return count, nil
}

// IncrementWeeklyCountBelow relies on the conditional upsert: a row at the limit is left untouched
// and RETURNING yields nothing.
func (p *PostgresStore) IncrementWeeklyCountBelow(ctx context.Context, userID string, weekStart time.Time, limit int) (int, bool, error) {
	var count int
	err := p.db.QueryRowContext(ctx, incrementWeeklyCountBelowQuery, userID, WeekKey(weekStart), limit).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		count, err = p.GetWeeklyCount(ctx, userID, weekStart)
		return count, false, err
	}
	if err != nil {
		return 0, false, fmt.Errorf("conditional increment weekly count: %w", err)
	}
	return count, true, nil
}

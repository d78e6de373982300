package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Veraticus/tariff/internal/common"
	"github.com/Veraticus/tariff/internal/model"
)

// PostgresConfig holds connection pool parameters for the PostgreSQL registry.
type PostgresConfig struct {
	DSN      string
	MaxConns int
	MinConns int
}

// PostgresRegistry serves the commodity code registry from PostgreSQL.
type PostgresRegistry struct {
	pool *pgxpool.Pool
}

// NewPostgresRegistry connects to PostgreSQL and verifies the connection.
func NewPostgresRegistry(ctx context.Context, cfg PostgresConfig) (*PostgresRegistry, error) {
	if err := validateString(cfg.DSN, "dsn"); err != nil {
		return nil, err
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = int32(cfg.MinConns)
	}

	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRegistry{pool: pool}, nil
}

// Close releases the connection pool.
func (r *PostgresRegistry) Close() {
	r.pool.Close()
}

// EnsureSchema creates the registry table when it does not exist.
func (r *PostgresRegistry) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS commodity_codes (
			id BIGSERIAL PRIMARY KEY,
			hs_code INTEGER NOT NULL,
			code TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT ''
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create commodity_codes table: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS idx_commodity_codes_hs_code
		ON commodity_codes(hs_code)
	`)
	if err != nil {
		return fmt.Errorf("failed to create commodity_codes index: %w", err)
	}

	return nil
}

// ImportCommodityCodes loads a commodity code CSV with COPY in one transaction.
func (r *PostgresRegistry) ImportCommodityCodes(ctx context.Context, in io.Reader, replace bool) (ImportStats, error) {
	var rows [][]any
	stats, err := ReadCommodityCodes(ctx, in, func(row model.CommodityCode) error {
		hs, _ := parseHSCode(row.HSCode)
		rows = append(rows, []any{hs, row.Code, row.Description})
		return nil
	})
	if err != nil {
		return stats, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if replace {
		if _, err := tx.Exec(ctx, `TRUNCATE commodity_codes`); err != nil {
			return stats, fmt.Errorf("failed to clear commodity codes: %w", err)
		}
	}

	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"commodity_codes"},
		[]string{"hs_code", "code", "description"},
		pgx.CopyFromRows(rows),
	); err != nil {
		return stats, fmt.Errorf("failed to copy commodity codes: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return stats, fmt.Errorf("failed to commit import: %w", err)
	}
	return stats, nil
}

// FindCandidates returns the registry rows for each extracted code, in input
// order and then registry order.
func (r *PostgresRegistry) FindCandidates(ctx context.Context, codes []string) ([]model.CommodityCandidate, error) {
	candidates := []model.CommodityCandidate{}
	for _, key := range lookupKeys(codes) {
		rows, err := r.lookup(ctx, key)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			candidates = append(candidates, row.Candidate())
		}
	}
	return candidates, nil
}

// LookupCommodityCodes returns the registry rows for one HS code.
func (r *PostgresRegistry) LookupCommodityCodes(ctx context.Context, hsCode string) ([]model.CommodityCode, error) {
	key, err := parseHSCode(hsCode)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCommodityCode, err)
	}

	rows, err := r.lookup(ctx, key)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("HS code %s: %w", FormatHSCode(key), common.ErrNotFound)
	}
	return rows, nil
}

// CountCommodityCodes returns the number of rows in the registry.
func (r *PostgresRegistry) CountCommodityCodes(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM commodity_codes`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count commodity codes: %w", err)
	}
	return count, nil
}

func (r *PostgresRegistry) lookup(ctx context.Context, key int) ([]model.CommodityCode, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, hs_code, code, description FROM commodity_codes WHERE hs_code = $1 ORDER BY id`, key)
	if err != nil {
		return nil, fmt.Errorf("failed to query commodity codes: %w", err)
	}
	defer rows.Close()

	var codes []model.CommodityCode
	for rows.Next() {
		var (
			c  model.CommodityCode
			hs int32
		)
		if err := rows.Scan(&c.ID, &hs, &c.Code, &c.Description); err != nil {
			return nil, fmt.Errorf("failed to scan commodity code: %w", err)
		}
		c.HSCode = FormatHSCode(int(hs))
		codes = append(codes, c)
	}
	return codes, rows.Err()
}

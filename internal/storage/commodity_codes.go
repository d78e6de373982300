package storage

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/Veraticus/tariff/internal/common"
	"github.com/Veraticus/tariff/internal/model"
)

// ImportCommodityCodes loads a commodity code CSV into the registry in a
// single transaction. When replace is set the existing registry is cleared first.
func (s *SQLiteStorage) ImportCommodityCodes(ctx context.Context, r io.Reader, replace bool) (ImportStats, error) {
	if err := validateContext(ctx); err != nil {
		return ImportStats{}, err
	}
	if r == nil {
		return ImportStats{}, fmt.Errorf("%w: reader", ErrNilParameter)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ImportStats{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if replace {
		if _, err := tx.ExecContext(ctx, `DELETE FROM commodity_codes`); err != nil {
			return ImportStats{}, fmt.Errorf("failed to clear commodity codes: %w", err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO commodity_codes (hs_code, code, description) VALUES (?, ?, ?)`)
	if err != nil {
		return ImportStats{}, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() {
		_ = stmt.Close()
	}()

	stats, err := ReadCommodityCodes(ctx, r, func(row model.CommodityCode) error {
		hs, _ := parseHSCode(row.HSCode)
		if _, err := stmt.ExecContext(ctx, hs, row.Code, row.Description); err != nil {
			return fmt.Errorf("failed to insert commodity code %s: %w", row.Code, err)
		}
		return nil
	})
	if err != nil {
		return stats, err
	}

	if err := tx.Commit(); err != nil {
		return stats, fmt.Errorf("failed to commit import: %w", err)
	}

	return stats, nil
}

// SaveCommodityCode inserts a single registry row.
func (s *SQLiteStorage) SaveCommodityCode(ctx context.Context, code *model.CommodityCode) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateCommodityCode(code); err != nil {
		return err
	}

	hs, _ := parseHSCode(code.HSCode)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO commodity_codes (hs_code, code, description) VALUES (?, ?, ?)`,
		hs, code.Code, code.Description)
	if err != nil {
		return fmt.Errorf("failed to save commodity code: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get commodity code ID: %w", err)
	}
	code.ID = id
	return nil
}

// FindCandidates returns the registry rows for each extracted code, in input
// order and then registry order. Codes without a registry row contribute nothing.
func (s *SQLiteStorage) FindCandidates(ctx context.Context, codes []string) ([]model.CommodityCandidate, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	candidates := []model.CommodityCandidate{}
	for _, key := range lookupKeys(codes) {
		rows, err := s.lookup(ctx, key)
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
func (s *SQLiteStorage) LookupCommodityCodes(ctx context.Context, hsCode string) ([]model.CommodityCode, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	key, err := parseHSCode(hsCode)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCommodityCode, err)
	}

	rows, err := s.lookup(ctx, key)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("HS code %s: %w", FormatHSCode(key), common.ErrNotFound)
	}
	return rows, nil
}

// CountCommodityCodes returns the number of rows in the registry.
func (s *SQLiteStorage) CountCommodityCodes(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM commodity_codes`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count commodity codes: %w", err)
	}
	return count, nil
}

func (s *SQLiteStorage) lookup(ctx context.Context, key int) ([]model.CommodityCode, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, hs_code, code, description FROM commodity_codes WHERE hs_code = ? ORDER BY id`, key)
	if err != nil {
		return nil, fmt.Errorf("failed to query commodity codes: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	return scanCommodityCodes(rows)
}

func scanCommodityCodes(rows *sql.Rows) ([]model.CommodityCode, error) {
	var codes []model.CommodityCode
	for rows.Next() {
		var (
			c  model.CommodityCode
			hs int
		)
		if err := rows.Scan(&c.ID, &hs, &c.Code, &c.Description); err != nil {
			return nil, fmt.Errorf("failed to scan commodity code: %w", err)
		}
		c.HSCode = FormatHSCode(hs)
		codes = append(codes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate commodity codes: %w", err)
	}
	return codes, nil
}

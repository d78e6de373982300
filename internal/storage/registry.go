package storage

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/Veraticus/tariff/internal/hscode"
	"github.com/Veraticus/tariff/internal/model"
)

// Registry is the commodity code registry. Both the SQLite and the
// PostgreSQL stores implement it.
type Registry interface {
	ImportCommodityCodes(ctx context.Context, r io.Reader, replace bool) (ImportStats, error)
	FindCandidates(ctx context.Context, codes []string) ([]model.CommodityCandidate, error)
	LookupCommodityCodes(ctx context.Context, hsCode string) ([]model.CommodityCode, error)
	CountCommodityCodes(ctx context.Context) (int, error)
}

var (
	_ Registry = (*SQLiteStorage)(nil)
	_ Registry = (*PostgresRegistry)(nil)
)

// ImportStats reports the outcome of a registry import.
type ImportStats struct {
	Imported int
	Skipped  int
}

// parseHSCode converts a registry or extracted HS code to its numeric form
// using hscode.Normalize.
func parseHSCode(s string) (int, error) {
	code, ok := hscode.Normalize(s)
	if !ok {
		return 0, fmt.Errorf("HS code %q is not a 6-digit code", s)
	}
	return strconv.Atoi(code)
}

// FormatHSCode renders a numeric HS code as six digits.
func FormatHSCode(n int) string {
	return fmt.Sprintf("%0*d", hscode.CodeLength, n)
}

// lookupKeys returns the numeric HS codes to search for, in input order.
// The sentinel and non-numeric entries are dropped.
func lookupKeys(codes []string) []int {
	keys := make([]int, 0, len(codes))
	for _, code := range codes {
		if code == model.NoCodesFound {
			continue
		}
		n, err := parseHSCode(code)
		if err != nil {
			slog.Debug("skipping unusable HS code", "code", code, "error", err)
			continue
		}
		keys = append(keys, n)
	}
	return keys
}

// ReadCommodityCodes parses a commodity code CSV with the columns
// hs_code, description, code. The first row is a header. Rows with fewer than
// three values or an unusable HS code are skipped. fn is called for every
// accepted row.
func ReadCommodityCodes(ctx context.Context, r io.Reader, fn func(model.CommodityCode) error) (ImportStats, error) {
	var stats ImportStats

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return stats, nil
		}
		return stats, fmt.Errorf("failed to read header: %w", err)
	}

	line := 1
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return stats, fmt.Errorf("failed to read line %d: %w", line, err)
		}

		if len(record) < 3 {
			slog.Warn("Skipping row with insufficient values", "line", line, "row", record)
			stats.Skipped++
			continue
		}

		row := model.CommodityCode{
			HSCode:      unquote(record[0]),
			Description: unquote(record[1]),
			Code:        unquote(record[2]),
		}
		if err := validateCommodityCode(&row); err != nil {
			slog.Warn("Skipping invalid row", "line", line, "error", err)
			stats.Skipped++
			continue
		}

		if err := fn(row); err != nil {
			return stats, err
		}
		stats.Imported++
	}

	return stats, nil
}

// unquote strips the leading apostrophe spreadsheets use to keep codes as text.
func unquote(s string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "'"))
}

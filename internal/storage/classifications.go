package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/tariff/internal/common"
	"github.com/Veraticus/tariff/internal/model"
)

// SaveClassification records a completed classification and returns its ID.
func (s *SQLiteStorage) SaveClassification(ctx context.Context, result *model.ClassificationResult) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateClassification(result); err != nil {
		return 0, err
	}

	product := result.Product
	codes, err := json.Marshal(product.Codes)
	if err != nil {
		return 0, fmt.Errorf("failed to encode HS codes: %w", err)
	}
	sources, err := json.Marshal(product.Sources)
	if err != nil {
		return 0, fmt.Errorf("failed to encode sources: %w", err)
	}
	rules, err := json.Marshal(product.Rules)
	if err != nil {
		return 0, fmt.Errorf("failed to encode rules: %w", err)
	}
	candidates, err := json.Marshal(result.Candidates)
	if err != nil {
		return 0, fmt.Errorf("failed to encode candidates: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO classifications (
			product_name, normalized_name, product_type, information,
			hs_codes, sources, rules, candidates,
			best_code, reasoning, description, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		product.Name, NormalizeProductName(product.Name), product.Type, product.Information,
		string(codes), string(sources), string(rules), string(candidates),
		result.BestMatch.Code, result.BestMatch.Reasoning, result.Description, product.CreatedAt.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save classification: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get classification ID: %w", err)
	}
	return id, nil
}

// GetClassification loads a recorded classification by ID.
func (s *SQLiteStorage) GetClassification(ctx context.Context, id int64) (*model.ClassificationResult, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var (
		result                            model.ClassificationResult
		codes, sources, rules, candidates string
		bestCode, reasoning, description  sql.NullString
		createdAt                         time.Time
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, product_name, product_type, information,
			hs_codes, sources, rules, candidates,
			best_code, reasoning, description, created_at
		FROM classifications WHERE id = ?`, id).Scan(
		&result.ID, &result.Product.Name, &result.Product.Type, &result.Product.Information,
		&codes, &sources, &rules, &candidates,
		&bestCode, &reasoning, &description, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("classification %d: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get classification: %w", err)
	}

	if err := json.Unmarshal([]byte(codes), &result.Product.Codes); err != nil {
		return nil, fmt.Errorf("%w: HS codes of classification %d: %w", common.ErrDatabaseCorrupted, id, err)
	}
	if err := json.Unmarshal([]byte(sources), &result.Product.Sources); err != nil {
		return nil, fmt.Errorf("%w: sources of classification %d: %w", common.ErrDatabaseCorrupted, id, err)
	}
	if err := json.Unmarshal([]byte(rules), &result.Product.Rules); err != nil {
		return nil, fmt.Errorf("%w: rules of classification %d: %w", common.ErrDatabaseCorrupted, id, err)
	}
	if err := json.Unmarshal([]byte(candidates), &result.Candidates); err != nil {
		return nil, fmt.Errorf("%w: candidates of classification %d: %w", common.ErrDatabaseCorrupted, id, err)
	}

	result.BestMatch = model.BestMatchResult{Code: bestCode.String, Reasoning: reasoning.String}
	result.Description = description.String
	result.Product.CreatedAt = createdAt.UTC()

	return &result, nil
}

// ListClassifications returns the most recent classifications first.
// A limit of zero or less returns all of them.
func (s *SQLiteStorage) ListClassifications(ctx context.Context, limit int) ([]model.ClassificationSummary, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, product_name, hs_codes, best_code, description, created_at
		FROM classifications
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query classifications: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	return scanSummaries(rows)
}

// FindClassificationsByProduct returns earlier classifications of the same
// product name, ignoring case, accents and spacing.
func (s *SQLiteStorage) FindClassificationsByProduct(ctx context.Context, productName string) ([]model.ClassificationSummary, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(productName, "productName"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, product_name, hs_codes, best_code, description, created_at
		FROM classifications
		WHERE normalized_name = ?
		ORDER BY created_at DESC, id DESC`, NormalizeProductName(productName))
	if err != nil {
		return nil, fmt.Errorf("failed to query classifications: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	return scanSummaries(rows)
}

func scanSummaries(rows *sql.Rows) ([]model.ClassificationSummary, error) {
	summaries := []model.ClassificationSummary{}
	for rows.Next() {
		var (
			summary               model.ClassificationSummary
			codes                 string
			bestCode, description sql.NullString
		)
		if err := rows.Scan(&summary.ID, &summary.ProductName, &codes, &bestCode, &description, &summary.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan classification: %w", err)
		}
		if err := json.Unmarshal([]byte(codes), &summary.HSCodes); err != nil {
			return nil, fmt.Errorf("%w: HS codes of classification %d: %w", common.ErrDatabaseCorrupted, summary.ID, err)
		}
		summary.BestCode = bestCode.String
		summary.Description = description.String
		summary.CreatedAt = summary.CreatedAt.UTC()
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate classifications: %w", err)
	}
	return summaries, nil
}

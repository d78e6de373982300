// Package storage provides the data persistence layer: the commodity code
// registry and the classification history.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/tariff/internal/model"
)

// Validation errors.
var (
	ErrNilContext            = errors.New("context cannot be nil")
	ErrEmptyString           = errors.New("string parameter cannot be empty")
	ErrNilParameter          = errors.New("parameter cannot be nil")
	ErrInvalidCommodityCode  = errors.New("invalid commodity code")
	ErrInvalidClassification = errors.New("invalid classification")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateCommodityCode validates a registry row before insert.
func validateCommodityCode(code *model.CommodityCode) error {
	if code == nil {
		return fmt.Errorf("%w: commodity code", ErrNilParameter)
	}
	if _, err := parseHSCode(code.HSCode); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCommodityCode, err)
	}
	if strings.TrimSpace(code.Code) == "" {
		return fmt.Errorf("%w: missing code", ErrInvalidCommodityCode)
	}
	return nil
}

// validateClassification validates a classification result before it is recorded.
func validateClassification(result *model.ClassificationResult) error {
	if result == nil {
		return fmt.Errorf("%w: classification", ErrNilParameter)
	}
	if strings.TrimSpace(result.Product.Name) == "" {
		return fmt.Errorf("%w: missing product name", ErrInvalidClassification)
	}
	if result.Product.CreatedAt.IsZero() {
		return fmt.Errorf("%w: missing timestamp", ErrInvalidClassification)
	}
	return nil
}

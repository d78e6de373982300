package engine

import (
	"context"

	"github.com/Veraticus/tariff/internal/model"
)

// CodeMatcher resolves extracted HS codes to commodity registry candidates.
type CodeMatcher interface {
	FindCandidates(ctx context.Context, codes []string) ([]model.CommodityCandidate, error)
}

// ClassificationStore persists completed classifications.
type ClassificationStore interface {
	SaveClassification(ctx context.Context, result *model.ClassificationResult) (int64, error)
}

// Package engine implements the HS code classification pipeline: product
// analysis, multi-backend consensus, registry matching and best-match ranking.
package engine

import (
	"context"
	"log/slog"
	"strings"

	"github.com/Veraticus/tariff/internal/model"
)

// Pipeline classifies one product name end to end.
type Pipeline struct {
	analyzer *Analyzer
	matcher  CodeMatcher
	ranker   *Ranker
	store    ClassificationStore
	logger   *slog.Logger
}

// NewPipeline wires the classification stages together.
func NewPipeline(analyzer *Analyzer, matcher CodeMatcher, ranker *Ranker, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		analyzer: analyzer,
		matcher:  matcher,
		ranker:   ranker,
		logger:   logger,
	}
}

// WithStore makes the pipeline record successful classifications in store.
func (p *Pipeline) WithStore(store ClassificationStore) *Pipeline {
	p.store = store
	return p
}

// Classify runs the full pipeline for req.
//
// Failures are reported as *PipelineError. For the no_codes stage the
// partially built result is returned alongside the error so callers can
// still show what the backends said. Codes with no registry entries are not
// a failure: the result carries no best match code.
func (p *Pipeline) Classify(ctx context.Context, req model.ClassificationRequest) (*model.ClassificationResult, error) {
	if err := req.Validate(); err != nil {
		return nil, &PipelineError{Stage: StageClassification, Err: err}
	}
	name := strings.TrimSpace(req.ProductName)

	p.logger.Info("classifying product", "product", name)

	info, err := p.analyzer.Analyze(ctx, name)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, &PipelineError{Stage: StageInternal, Err: ctxErr}
		}
		return nil, &PipelineError{Stage: StageClassification, Err: err}
	}

	result := &model.ClassificationResult{
		Product:    *info,
		Candidates: []model.CommodityCandidate{},
	}

	if info.Codes.IsSentinel() {
		p.logger.Warn("no HS codes found", "product", name)
		return result, &PipelineError{Stage: StageNoCodes, Err: ErrNoCodesFound}
	}

	candidates, err := p.matcher.FindCandidates(ctx, info.Codes)
	if err != nil {
		return nil, &PipelineError{Stage: StageInternal, Err: err}
	}
	if len(candidates) == 0 {
		p.logger.Warn("no registry candidates",
			"product", name,
			"codes", []string(info.Codes))
	} else {
		result.Candidates = candidates
	}

	result.BestMatch = p.ranker.FindBestMatch(ctx, info.Type, info.Information, info.Codes, candidates)
	result.Description, _ = result.CandidateDescription(result.BestMatch.Code)

	if p.store != nil {
		id, err := p.store.SaveClassification(ctx, result)
		if err != nil {
			p.logger.Warn("failed to record classification", "product", name, "error", err)
		} else {
			result.ID = id
		}
	}

	p.logger.Info("product classified",
		"product", name,
		"code", result.BestMatch.Code,
		"candidates", len(candidates))

	return result, nil
}

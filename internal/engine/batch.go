package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Veraticus/tariff/internal/model"
)

// DefaultWorkers is the number of products classified in parallel by ClassifyBatch.
const DefaultWorkers = 3

// BatchOutcome is the result of classifying one product in a batch.
type BatchOutcome struct {
	Result      *model.ClassificationResult
	Err         error
	ProductName string
	Index       int
}

// BatchSummary aggregates a batch run.
type BatchSummary struct {
	Duration  time.Duration
	Total     int
	Succeeded int
	NoCodes   int
	Failed    int
}

// ClassifyBatch classifies names with at most workers products in flight.
// onResult, if non-nil, is called once per product as soon as it finishes;
// calls are serialized. Outcomes are returned in input order.
func (p *Pipeline) ClassifyBatch(
	ctx context.Context,
	names []string,
	workers int,
	onResult func(BatchOutcome),
) []BatchOutcome {
	if workers <= 0 {
		workers = DefaultWorkers
	}

	outcomes := make([]BatchOutcome, len(names))
	sem := make(chan struct{}, workers)

	var wg sync.WaitGroup
	var mu sync.Mutex

	for i, name := range names {
		wg.Add(1)
		go func() {
			defer wg.Done()

			outcome := BatchOutcome{Index: i, ProductName: name}

			select {
			case sem <- struct{}{}:
				outcome.Result, outcome.Err = p.Classify(ctx, model.ClassificationRequest{ProductName: name})
				<-sem
			case <-ctx.Done():
				outcome.Err = &PipelineError{Stage: StageInternal, Err: ctx.Err()}
			}

			if outcome.Err != nil {
				p.logger.Warn("batch item failed",
					"product", name,
					"index", i,
					"error", outcome.Err)
			}

			mu.Lock()
			outcomes[i] = outcome
			if onResult != nil {
				onResult(outcome)
			}
			mu.Unlock()
		}()
	}

	wg.Wait()
	return outcomes
}

// Summarize counts the outcomes of a batch run.
func Summarize(outcomes []BatchOutcome, duration time.Duration) BatchSummary {
	summary := BatchSummary{Total: len(outcomes), Duration: duration}
	for _, o := range outcomes {
		switch {
		case o.Err == nil:
			summary.Succeeded++
		case errors.Is(o.Err, ErrNoCodesFound):
			summary.NoCodes++
		default:
			summary.Failed++
		}
	}
	return summary
}

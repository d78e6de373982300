package engine

import (
	"errors"
	"fmt"
)

// ErrNoCodesFound means no backend produced a usable HS code.
var ErrNoCodesFound = errors.New("no HS codes found")

// Stage names the pipeline stage that failed.
type Stage string

// Pipeline stages reported in PipelineError.
const (
	StageClassification Stage = "classification"
	StageNoCodes        Stage = "no_codes"
	StageInternal       Stage = "internal"
)

// PipelineError reports which stage of a classification failed.
type PipelineError struct {
	Err   error
	Stage Stage
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// StageOf returns the failed stage of err, or "" when err is not a PipelineError.
func StageOf(err error) Stage {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Stage
	}
	return ""
}

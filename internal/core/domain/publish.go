package domain

import (
	"errors"
	"fmt"
	"time"
)

// PublishStage names a stage of the catalog publish pipeline.
type PublishStage string

const (
	StageExport   PublishStage = "export"
	StageUpload   PublishStage = "upload"
	StageRegister PublishStage = "register"
	StageActivate PublishStage = "activate"
	StageSmoke    PublishStage = "smoke"
)

// StageError is a publish failure tagged with the stage that failed.
type StageError struct {
	Stage PublishStage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError wraps err as a failure of stage.
func NewStageError(stage PublishStage, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}

// FailedStage returns the stage of the first StageError in err's chain.
func FailedStage(err error) (PublishStage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}

// StageResult is the outcome of one pipeline stage.
type StageResult struct {
	Stage    PublishStage  `json:"stage"`
	Passed   bool          `json:"passed"`
	Skipped  bool          `json:"skipped,omitempty"`
	Duration time.Duration `json:"duration"`
	Detail   string        `json:"detail,omitempty"`
}

// PublishOptions controls a pipeline run.
type PublishOptions struct {
	SkipSmoke  bool   `json:"skipSmoke"`
	SmokeQuery string `json:"smokeQuery,omitempty"`
}

// PublishReport is the operator-facing summary of a pipeline run.
type PublishReport struct {
	Deployment   string             `json:"deployment"`
	Stages       []StageResult      `json:"stages"`
	Snapshot     *Snapshot          `json:"snapshot,omitempty"`
	Registration *AgentRegistration `json:"registration,omitempty"`
	Smoke        *AgentAnswer       `json:"smoke,omitempty"`
	StartedAt    time.Time          `json:"startedAt"`
	FinishedAt   time.Time          `json:"finishedAt"`
}

// Passed reports whether every stage that ran passed.
func (r *PublishReport) Passed() bool {
	if len(r.Stages) == 0 {
		return false
	}
	for _, s := range r.Stages {
		if !s.Passed && !s.Skipped {
			return false
		}
	}
	return true
}

// Record appends a stage result.
func (r *PublishReport) Record(stage PublishStage, started time.Time, err error, detail string) {
	res := StageResult{
		Stage:    stage,
		Passed:   err == nil,
		Duration: time.Since(started),
		Detail:   detail,
	}
	if err != nil {
		res.Detail = err.Error()
	}
	r.Stages = append(r.Stages, res)
}

// Skip appends a skipped stage.
func (r *PublishReport) Skip(stage PublishStage, reason string) {
	r.Stages = append(r.Stages, StageResult{Stage: stage, Skipped: true, Detail: reason})
}

package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Input contract errors
	ErrMalformedMatrix   = errors.New("malformed matrix")
	ErrInvalidExpression = errors.New("invalid expression metric")

	// Statistical errors
	ErrInsufficientData       = errors.New("insufficient data for regression")
	ErrDegenerateDistribution = errors.New("degenerate residual distribution")
)

// Pipeline stage names used in error reports and stage audits.
const (
	StageValidate   = "validate"
	StageAggregate  = "aggregate"
	StageFilterMin  = "filter_min_detected"
	StageFilterMax  = "filter_max_detected"
	StageExpression = "expression_metric"
	StageTrend      = "trend_model"
	StageClassify   = "classify"
)

// StageError carries the stage and record that triggered a pipeline failure.
type StageError struct {
	Stage  string
	GeneID string
	Field  string
	Detail string
	Err    error
}

func (e *StageError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Stage, e.Err)
	if e.GeneID != "" {
		msg += fmt.Sprintf(" (gene %q", e.GeneID)
		if e.Field != "" {
			msg += ", field " + e.Field
		}
		msg += ")"
	} else if e.Field != "" {
		msg += fmt.Sprintf(" (field %s)", e.Field)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Error constructors with context
func NewMalformedMatrixError(geneID, field, detail string) error {
	return &StageError{Stage: StageValidate, GeneID: geneID, Field: field, Detail: detail, Err: ErrMalformedMatrix}
}

func NewInsufficientDataError(distinct int) error {
	return &StageError{
		Stage:  StageTrend,
		Field:  "cells_detected",
		Detail: fmt.Sprintf("need at least 2 distinct values, got %d", distinct),
		Err:    ErrInsufficientData,
	}
}

func NewDegenerateDistributionError(stdDev float64) error {
	return &StageError{
		Stage:  StageClassify,
		Field:  "residual",
		Detail: fmt.Sprintf("residual standard deviation is %g", stdDev),
		Err:    ErrDegenerateDistribution,
	}
}

func NewInvalidExpressionError(geneID, field, detail string) error {
	return &StageError{Stage: StageExpression, GeneID: geneID, Field: field, Detail: detail, Err: ErrInvalidExpression}
}

func NewValidationError(field string, reason string) error {
	return fmt.Errorf("validation failed for %s: %s", field, reason)
}

// StageOf returns the stage recorded on err, or "" when err carries none.
func StageOf(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// Error checking helpers
func IsInputError(err error) bool {
	return errors.Is(err, ErrMalformedMatrix) || errors.Is(err, ErrInvalidExpression)
}

func IsStatisticalError(err error) bool {
	return errors.Is(err, ErrInsufficientData) || errors.Is(err, ErrDegenerateDistribution)
}

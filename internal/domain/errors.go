package domain

import (
	"errors"
	"fmt"
)

// Kind classifies survey failures so transport layers can map them to
// status codes and outcome labels without matching on message text.
type Kind int

const (
	// KindInvalidInput marks client mistakes: malformed boundaries, dates,
	// or plant types. Never retried.
	KindInvalidInput Kind = iota + 1
	// KindNoData marks an upstream dataset with zero images for the
	// requested window and region.
	KindNoData
	// KindNoValidSamples marks a primary sampling pass that produced no
	// candidate points.
	KindNoValidSamples
	// KindNoValidLocation marks a candidate scan that found no point inside
	// the requested boundary.
	KindNoValidLocation
	// KindUpstream marks engine transport or server failures.
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindNoData:
		return "no_data"
	case KindNoValidSamples:
		return "no_valid_samples"
	case KindNoValidLocation:
		return "no_valid_location"
	case KindUpstream:
		return "upstream_failure"
	default:
		return "unknown"
	}
}

// Error tags a failure with its Kind and the pipeline stage that raised it.
type Error struct {
	Kind  Kind
	Stage string
	Err   error
}

func (e *Error) Error() string {
	if e.Stage == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError tags err with a kind and the stage it occurred in.
func NewError(kind Kind, stage string, err error) *Error {
	return &Error{Kind: kind, Stage: stage, Err: err}
}

// Errorf builds a tagged error from a format string.
func Errorf(kind Kind, stage, format string, args ...any) *Error {
	return &Error{Kind: kind, Stage: stage, Err: fmt.Errorf(format, args...)}
}

// KindOf reports the Kind carried by err, or 0 when err is untagged.
// Untagged errors should be treated as upstream failures by callers that
// must pick a status code.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return 0
}

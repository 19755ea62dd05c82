package models

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the mining core.
var (
	// ErrInvalidOrdering indicates the event stream violates the
	// contiguous-by-case or increasing-position invariant.
	ErrInvalidOrdering = errors.New("invalid event ordering")

	// ErrInvalidThreshold indicates a cutoff outside its domain.
	ErrInvalidThreshold = errors.New("invalid threshold")

	// ErrEmptyInput indicates a bucket or stream with no events.
	ErrEmptyInput = errors.New("empty input")

	// ErrDivisionUndefined indicates a confidence with a zero denominator.
	ErrDivisionUndefined = errors.New("division undefined")

	// ErrUnknownCategory indicates a category code outside the alphabet.
	ErrUnknownCategory = errors.New("unknown category")

	// ErrMalformedLabel indicates a transition label not of the form "AAA->BBB".
	ErrMalformedLabel = errors.New("malformed transition label")

	// ErrMissingConfidence indicates a counted transition with no confidence score.
	ErrMissingConfidence = errors.New("missing confidence")

	// ErrNegativeCount indicates an aggregated count below zero.
	ErrNegativeCount = errors.New("negative transition count")
)

// OrderingError describes where an event stream breaks its ordering invariant.
type OrderingError struct {
	Index    int    // Index of the offending event
	Position int64  // Position key of the offending event
	CaseID   CaseID // Case id of the offending event
	Reason   string // Human-readable reason
}

// Error implements the error interface.
func (e *OrderingError) Error() string {
	return fmt.Sprintf("%v at index %d (position %d, case %d): %s",
		ErrInvalidOrdering, e.Index, e.Position, e.CaseID, e.Reason)
}

// Unwrap lets errors.Is match ErrInvalidOrdering.
func (e *OrderingError) Unwrap() error {
	return ErrInvalidOrdering
}

package service

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks structural request errors, rejected before any work.
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	// ErrConflict is matched by every *ConflictError.
	ErrConflict = errors.New("conflict")
	// ErrSeriesInProgress is returned when another request holds the same
	// idempotency key and has not finished yet.
	ErrSeriesInProgress = errors.New("series creation already in progress")
)

// Conflict reasons reported per occurrence and by single creations.
const (
	ReasonSlotUnavailable     = "slot unavailable"
	ReasonOutsideWorkingHours = "outside working hours"
	ReasonDuplicateBooking    = "duplicate booking"
	ReasonInPast              = "in the past"
	ReasonWalkerBusy          = "walker busy"
	ReasonBlockOverlap        = "overlaps existing block"
	ReasonCancelled           = "request cancelled"
)

// ConflictError is a business conflict with a human-readable reason.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	return "conflict: " + e.Reason
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

func conflict(reason string) error {
	return &ConflictError{Reason: reason}
}

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// ConflictReason extracts the reason of a conflict error, or "" when err is
// not one.
func ConflictReason(err error) string {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce.Reason
	}
	return ""
}

package domain

import (
	"errors"
	"fmt"
)

// Phase says whether an invariant was checked before or after computation.
type Phase string

const (
	PhasePrecondition  Phase = "precondition"
	PhasePostcondition Phase = "postcondition"
)

var (
	ErrMisaligned           = errors.New("grids differ in resolution, extent, or CRS")
	ErrInvalidRange         = errors.New("range minimum must be finite and below its maximum")
	ErrMissingReferenceArea = errors.New("region has no positive reference area")
	ErrNoRegions            = errors.New("region set is empty")
	ErrCRSMismatch          = errors.New("region CRS does not match grid CRS")
	ErrMaskValue            = errors.New("mask cell is neither 1 nor no-data")
	ErrPercentOutOfRange    = errors.New("percent suitable outside [0, 100]")
)

// invariantNames gives each sentinel a stable label for logs and metrics.
var invariantNames = map[error]string{
	ErrMisaligned:           "grid_alignment",
	ErrInvalidRange:         "range_order",
	ErrMissingReferenceArea: "reference_area",
	ErrNoRegions:            "region_set",
	ErrCRSMismatch:          "region_crs",
	ErrMaskValue:            "mask_values",
	ErrPercentOutOfRange:    "percent_range",
}

// InvariantError reports a violated pipeline invariant. It wraps one of the
// Err* sentinels so callers can match it with errors.Is.
type InvariantError struct {
	Phase  Phase
	Err    error
	Detail string
}

func (e *InvariantError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s %s violated: %v", e.Phase, e.Invariant(), e.Err)
	}
	return fmt.Sprintf("%s %s violated: %v: %s", e.Phase, e.Invariant(), e.Err, e.Detail)
}

func (e *InvariantError) Unwrap() error { return e.Err }

// Invariant returns the short label of the violated invariant.
func (e *InvariantError) Invariant() string {
	if name, ok := invariantNames[e.Err]; ok {
		return name
	}
	return "unknown"
}

func precondition(err error, format string, args ...any) *InvariantError {
	return &InvariantError{Phase: PhasePrecondition, Err: err, Detail: fmt.Sprintf(format, args...)}
}

func postcondition(err error, format string, args ...any) *InvariantError {
	return &InvariantError{Phase: PhasePostcondition, Err: err, Detail: fmt.Sprintf(format, args...)}
}

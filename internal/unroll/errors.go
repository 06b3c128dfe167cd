package unroll

import "errors"

// Sentinel error kinds from spec.md §7. Wrap these with fmt.Errorf("%w", ...)
// at the call site to attach detail while keeping errors.Is working.
var (
	// ErrOutOfRange covers Larmor frequency, amplitude, and gradient
	// offset limit violations.
	ErrOutOfRange = errors.New("unroll: value out of range")

	// ErrEmpty indicates the sequence has no block events.
	ErrEmpty = errors.New("unroll: sequence has no block events")

	// ErrMissingCalibration indicates output_limits were not provided for
	// all four channels.
	ErrMissingCalibration = errors.New("unroll: missing channel calibration")

	// ErrInvalidBlock indicates an unexpected block shape for the
	// operation being performed (e.g. a gradient event of unknown kind).
	ErrInvalidBlock = errors.New("unroll: invalid block event")

	// ErrBufferOverflow indicates an unrolled event is longer than the
	// block's sample budget.
	ErrBufferOverflow = errors.New("unroll: event exceeds block sample budget")
)

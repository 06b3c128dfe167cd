package acquisition

import "errors"

// Sentinel errors surfaced by the Controller as run failures (spec.md §7).
var (
	// ErrMissingAverage is returned when a gate-length bucket did not
	// receive exactly num_averages rows by the end of a run.
	ErrMissingAverage = errors.New("acquisition: bucket missing averages")

	// ErrTimeout is logged (not returned) when a poll exceeds its
	// deadline; exported so callers/tests can recognize the condition in
	// logs or metrics.
	ErrTimeout = errors.New("acquisition: gate poll timed out")

	// ErrBusy is returned by Run when a run is already in progress.
	ErrBusy = errors.New("acquisition: run already in progress")

	// ErrNoSequence is returned by Run when SetSequence was never called.
	ErrNoSequence = errors.New("acquisition: no sequence set")

	// ErrAlreadyExists is returned by Data.Save when a target file already
	// exists and overwrite was not requested.
	ErrAlreadyExists = errors.New("acquisition: output file already exists")
)

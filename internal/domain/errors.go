package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency.
// Data-quality problems never surface here: malformed counters normalize to
// zero and zero denominators resolve to zero. Only upstream mistakes do.

var (
	// Configuration errors
	ErrInvalidConfig  = errors.New("invalid configuration")
	ErrInvalidMapping = errors.New("invalid field mapping")

	// Ingestion errors (per row, the import continues)
	ErrInvalidDate = errors.New("row has no usable date")
)

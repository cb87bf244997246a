package rentroll

import "errors"

// Intake and pipeline sentinel errors. Intake errors are fatal to the current
// attempt and surfaced to the user; the caller re-selects a file. Validation
// problems are never errors, they travel as CandidateRecord.Errors.
var (
	// ErrEmptyFile means the first sheet contained zero data rows.
	ErrEmptyFile = errors.New("file contains no data rows")

	// ErrUnsupportedFormat means the file is not a recognized tabular format.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrMappingIncomplete means a required canonical field has no mapped
	// header; the mapping stage cannot advance.
	ErrMappingIncomplete = errors.New("required columns are not mapped")

	// ErrInvalidTransition means the requested stage change is not an edge of
	// the pipeline state machine.
	ErrInvalidTransition = errors.New("invalid pipeline transition")

	// ErrSessionNotFound means the import session ID is unknown or expired.
	ErrSessionNotFound = errors.New("import session not found")
)

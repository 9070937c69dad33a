package domain

import "errors"

// Error kinds, checked with errors.Is so callers can branch on the failure
// class without matching message strings.
var (
	// ErrNotFound marks a requested recording, transcript or mapping that
	// does not exist. Read-side handlers translate it to a 404.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks a duplicate-orchestration attempt: a transcript
	// already exists for the recording, or a run is already in flight.
	ErrConflict = errors.New("already exists")

	// ErrProvider marks a failure reported by the transcription provider.
	ErrProvider = errors.New("transcription provider error")

	// ErrProbe marks a duration-probe failure. Callers tolerate it and
	// substitute a zero duration.
	ErrProbe = errors.New("audio probe error")

	// ErrResolution marks a speaker-identification failure (language-model
	// call or malformed response).
	ErrResolution = errors.New("speaker resolution error")

	// ErrPersistence marks a database operation failure.
	ErrPersistence = errors.New("persistence error")
)

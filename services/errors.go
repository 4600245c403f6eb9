package services

import "errors"

var (
	// ErrProviderUnavailable indicates an embedding, generation or scoring
	// call failed or timed out.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrIndexUnavailable indicates the vector index could not be updated.
	// The document store is left unchanged when this is returned.
	ErrIndexUnavailable = errors.New("index unavailable")

	// ErrUnsupportedDocument indicates extraction produced no text.
	ErrUnsupportedDocument = errors.New("unsupported document")

	// ErrSubsystemScoringFailed indicates one scoring subsystem errored.
	// It never reaches the answer path.
	ErrSubsystemScoringFailed = errors.New("scoring subsystem failed")

	// ErrNotFound indicates the question was never asked.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or empty input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidChunkConfig indicates size/overlap violate 0 < overlap < size.
	ErrInvalidChunkConfig = errors.New("invalid chunk configuration")
)

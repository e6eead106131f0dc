package core

import "errors"

// Error categories. Callers match them with errors.Is.
var (
	// ErrValidation indicates bad input rejected before any side effect.
	ErrValidation = errors.New("validation error")
	// ErrProvider indicates the speech-synthesis provider failed.
	ErrProvider = errors.New("provider error")
	// ErrStorage indicates the artifact or its metadata could not be persisted.
	ErrStorage = errors.New("storage error")
	// ErrNotFound indicates there is no record for the requested content id.
	ErrNotFound = errors.New("not found")
)

// Wire error codes.
const (
	CodeValidation = "validation"
	CodeProvider   = "provider"
	CodeStorage    = "storage"
	CodeNotFound   = "not_found"
	CodeInternal   = "internal"
)

// ErrorCode maps an error onto its wire code. A nil error yields "".
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return CodeValidation
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrProvider):
		return CodeProvider
	case errors.Is(err, ErrStorage):
		return CodeStorage
	default:
		return CodeInternal
	}
}

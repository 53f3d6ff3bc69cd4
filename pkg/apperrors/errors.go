package apperrors

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrExhaustedRetries   = errors.New("exhausted retries")
	ErrRemoteNotFound     = errors.New("remote record not found")
	ErrMappingUnavailable = errors.New("field mapping unavailable")
	ErrNoMatchFound       = errors.New("no match found")
	ErrWriteFailed        = errors.New("write failed")
)

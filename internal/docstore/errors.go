package docstore

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("docstore: document not found")
	ErrAlreadyExists = errors.New("docstore: document already exists")
	// ErrConflict is returned when a transaction could not commit within MaxAttempts.
	ErrConflict       = errors.New("docstore: transaction conflict")
	ErrReadAfterWrite = errors.New("docstore: reads must happen before writes in a transaction")
	ErrInvalidQuery   = errors.New("docstore: invalid query")
	ErrClosed         = errors.New("docstore: store closed")

	// errRetry marks a failed commit that should re-run the transaction function.
	errRetry = errors.New("docstore: retry")
)

// DecodeError reports a stored document that does not fit the expected schema.
type DecodeError struct {
	Collection string
	ID         string
	Err        error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("docstore: decode %s/%s: %v", e.Collection, e.ID, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

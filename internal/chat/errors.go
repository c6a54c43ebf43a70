package chat

import (
	"errors"
	"fmt"
)

// ErrSessionNotFound is returned when a question targets a session id that
// was never created. No external calls are made in that case.
var ErrSessionNotFound = errors.New("chat: session not found")

// ErrNoCollections is returned when a question names no collections to
// search. No external calls are made in that case.
var ErrNoCollections = errors.New("chat: no collections requested")

// ErrRetrievalUnavailable is returned when no requested collection could be
// searched, either because embedding the question failed or because every
// per-collection query failed. No turns are persisted in that case.
var ErrRetrievalUnavailable = errors.New("chat: retrieval unavailable")

// UnknownCollectionError is returned when a question names a collection that
// is not in the file registry. Validation happens before any external call,
// so a single bad name costs nothing.
type UnknownCollectionError struct {
	// Name is the collection name that failed validation.
	Name string
}

func (e *UnknownCollectionError) Error() string {
	return fmt.Sprintf("chat: unknown collection %q", e.Name)
}

// PartialGenerationError is returned when the model stream fails after some
// answer text was already produced. The partial text has been relayed to the
// client and persisted as a partial assistant turn before this error is
// returned.
type PartialGenerationError struct {
	// Partial is the answer prefix produced before the failure.
	Partial string
	// Err is the underlying stream or write failure.
	Err error
}

func (e *PartialGenerationError) Error() string {
	return fmt.Sprintf("chat: generation failed after %d bytes: %v", len(e.Partial), e.Err)
}

func (e *PartialGenerationError) Unwrap() error {
	return e.Err
}

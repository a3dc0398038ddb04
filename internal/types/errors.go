package types

import (
	"fmt"

	"github.com/google/uuid"
)

// DuplicateEntryError is returned when an AcceptedWord with the same (word, language)
// already exists in the authoritative store.
type DuplicateEntryError struct {
	Word     string
	Language string
	WordID   uuid.UUID
}

func (e *DuplicateEntryError) Error() string {
	return fmt.Sprintf("duplicate entry: %s (%s) already accepted as %s", e.Word, e.Language, e.WordID)
}

// StoreIntegrityError represents a failed single-word transaction. The transaction
// has been rolled back; other words are unaffected.
type StoreIntegrityError struct {
	Op    string
	Word  string
	Cause error
}

func (e *StoreIntegrityError) Error() string {
	if e.Word != "" {
		return fmt.Sprintf("store integrity error during %s for %q: %v", e.Op, e.Word, e.Cause)
	}
	return fmt.Sprintf("store integrity error during %s: %v", e.Op, e.Cause)
}

func (e *StoreIntegrityError) Unwrap() error {
	return e.Cause
}

// NotFoundError is returned when a word is not present in the requested store.
type NotFoundError struct {
	Word     string
	Language string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("word not found: %s (%s)", e.Word, e.Language)
}

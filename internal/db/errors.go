package db

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jonathan/shabda-setu/internal/types"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"

	wordsIdentityConstraint = "words_word_language_key"
)

// mapError converts a failed single-word transaction into the store's error taxonomy.
// A unique violation on the words identity becomes *types.DuplicateEntryError; everything
// else becomes *types.StoreIntegrityError. Already mapped errors pass through.
func mapError(op string, c types.CandidateWord, err error) error {
	if err == nil {
		return nil
	}

	var dup *types.DuplicateEntryError
	if errors.As(err, &dup) {
		return err
	}
	var integrity *types.StoreIntegrityError
	if errors.As(err, &integrity) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == wordsIdentityConstraint {
		return &types.DuplicateEntryError{Word: c.Word, Language: c.Language}
	}
	return &types.StoreIntegrityError{Op: op, Word: c.Word, Cause: err}
}

// isForeignKeyViolation reports whether err is a PostgreSQL foreign key violation.
func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation
}

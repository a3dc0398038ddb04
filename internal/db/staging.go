package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/shabda-setu/internal/types"
)

// -----------------------------------------------------------------------------
// Staging Store
// -----------------------------------------------------------------------------

const stagedWordColumns = `id, word, language, script, romanized, meaning, source, status,
	etymology, needs_reverification, promoted_word_id, created_at, updated_at`

func scanStagedWord(row pgx.Row) (*types.StagedWord, error) {
	var (
		s         types.StagedWord
		etymology []byte
	)
	err := row.Scan(&s.ID, &s.Candidate.Word, &s.Candidate.Language, &s.Candidate.Script,
		&s.Candidate.Romanized, &s.Candidate.Meaning, &s.Candidate.Source, &s.Status,
		&etymology, &s.NeedsReverification, &s.PromotedWordID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(etymology) > 0 {
		var e types.EtymologyRecord
		if err := json.Unmarshal(etymology, &e); err != nil {
			return nil, fmt.Errorf("failed to unmarshal staged etymology: %w", err)
		}
		s.Etymology = &e
	}
	return &s, nil
}

// StageWord inserts a candidate word into staging. Resubmitting an existing
// (word, language) returns the existing row, filling in a missing meaning.
func (db *DB) StageWord(ctx context.Context, c types.CandidateWord) (*types.StagedWord, error) {
	s, err := scanStagedWord(db.pool.QueryRow(ctx,
		`INSERT INTO staged_words (id, word, language, script, romanized, meaning, source)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (word, language) DO UPDATE
		   SET meaning = COALESCE(NULLIF(staged_words.meaning, ''), EXCLUDED.meaning)
		 RETURNING `+stagedWordColumns,
		uuid.New(), c.Word, c.Language, c.Script, c.Romanized, c.Meaning, c.Source,
	))
	if err != nil {
		return nil, mapError("stage", c, fmt.Errorf("failed to stage word: %w", err))
	}
	return s, nil
}

// GetStagedWord retrieves a staged word by identity
func (db *DB) GetStagedWord(ctx context.Context, word, language string) (*types.StagedWord, error) {
	s, err := scanStagedWord(db.pool.QueryRow(ctx,
		`SELECT `+stagedWordColumns+` FROM staged_words WHERE word = $1 AND language = $2`,
		word, language,
	))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get staged word: %w", err)
	}
	return s, nil
}

// ReplaceStagedVerifications upserts one record per verifier in a single transaction.
func (db *DB) ReplaceStagedVerifications(ctx context.Context, stagedID uuid.UUID, records []types.VerificationRecord) error {
	if len(records) == 0 {
		return nil
	}
	err := db.inTx(ctx, func(tx pgx.Tx) error {
		for _, r := range records {
			_, err := tx.Exec(ctx,
				`INSERT INTO staged_verifications
				   (staged_word_id, llm_name, id, sanskrit_root, confidence_score, verification_data, fingerprint, verified_at)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
				 ON CONFLICT (staged_word_id, llm_name) DO UPDATE
				   SET id = EXCLUDED.id, sanskrit_root = EXCLUDED.sanskrit_root,
				       confidence_score = EXCLUDED.confidence_score, verification_data = EXCLUDED.verification_data,
				       fingerprint = EXCLUDED.fingerprint, verified_at = EXCLUDED.verified_at
				 WHERE staged_verifications.verified_at <= EXCLUDED.verified_at`,
				stagedID, r.Verifier, r.ID, r.SanskritRoot, r.Confidence, jsonOrNil(r.Justification), r.Fingerprint, r.VerifiedAt,
			)
			if err != nil {
				if isForeignKeyViolation(err) {
					return fmt.Errorf("staged word %s does not exist: %w", stagedID, err)
				}
				return fmt.Errorf("failed to save staged verification %s: %w", r.Verifier, err)
			}
		}
		_, err := tx.Exec(ctx, `UPDATE staged_words SET updated_at = NOW() WHERE id = $1`, stagedID)
		return err
	})
	if err != nil {
		return &types.StoreIntegrityError{Op: "record", Word: stagedID.String(), Cause: err}
	}
	return nil
}

// ListStagedVerifications retrieves the current record per verifier, ordered by verifier
func (db *DB) ListStagedVerifications(ctx context.Context, stagedID uuid.UUID) ([]types.VerificationRecord, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, llm_name, sanskrit_root, confidence_score, verification_data, fingerprint, verified_at
		 FROM staged_verifications WHERE staged_word_id = $1 ORDER BY llm_name`,
		stagedID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list staged verifications: %w", err)
	}
	defer rows.Close()
	return scanVerifications(rows)
}

// UpdateStagedEtymology stores the latest score for a staged word
func (db *DB) UpdateStagedEtymology(ctx context.Context, stagedID uuid.UUID, e types.EtymologyRecord, needsReverification bool) error {
	etymology, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal etymology: %w", err)
	}

	result, err := db.pool.Exec(ctx,
		`UPDATE staged_words SET etymology = $1, needs_reverification = $2, updated_at = NOW() WHERE id = $3`,
		etymology, needsReverification, stagedID,
	)
	if err != nil {
		return fmt.Errorf("failed to update staged etymology: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("staged word not found: %s", stagedID)
	}
	return nil
}

// ListNeedsReverification retrieves staged words whose last orchestration was partial, oldest first
func (db *DB) ListNeedsReverification(ctx context.Context, limit int) ([]types.StagedWord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.pool.Query(ctx,
		`SELECT `+stagedWordColumns+` FROM staged_words
		 WHERE needs_reverification AND status = $1
		 ORDER BY updated_at, id LIMIT $2`,
		types.StatusStaged, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list words needing re-verification: %w", err)
	}
	defer rows.Close()

	var words []types.StagedWord
	for rows.Next() {
		s, err := scanStagedWord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan staged word: %w", err)
		}
		words = append(words, *s)
	}
	return words, rows.Err()
}

func scanVerifications(rows pgx.Rows) ([]types.VerificationRecord, error) {
	var records []types.VerificationRecord
	for rows.Next() {
		var (
			r    types.VerificationRecord
			data []byte
		)
		if err := rows.Scan(&r.ID, &r.Verifier, &r.SanskritRoot, &r.Confidence, &data, &r.Fingerprint, &r.VerifiedAt); err != nil {
			return nil, fmt.Errorf("failed to scan verification: %w", err)
		}
		if len(data) > 0 {
			r.Justification = json.RawMessage(data)
		}
		r.VerifiedAt = r.VerifiedAt.UTC()
		records = append(records, r)
	}
	return records, rows.Err()
}

func jsonOrNil(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

// now is the timestamp used for rows whose time is set in Go
var now = func() time.Time { return time.Now().UTC() }

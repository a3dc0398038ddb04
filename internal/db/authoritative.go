package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/shabda-setu/internal/types"
)

// -----------------------------------------------------------------------------
// Authoritative Store
// -----------------------------------------------------------------------------

const acceptedWordColumns = `w.id, w.word, w.language, w.script, w.romanized, w.meaning, w.source,
	w.confidence_score, w.created_at, e.id, e.sanskrit_root, e.verification_count,
	e.confidence_score, e.responding, e.outcome, e.revision`

type acceptedRow struct {
	word        types.AcceptedWord
	etymologyID uuid.UUID
}

func scanAccepted(row pgx.Row) (*acceptedRow, error) {
	var (
		a       acceptedRow
		outcome string
	)
	w := &a.word
	err := row.Scan(&w.ID, &w.Candidate.Word, &w.Candidate.Language, &w.Candidate.Script,
		&w.Candidate.Romanized, &w.Candidate.Meaning, &w.Candidate.Source, &w.Confidence, &w.CreatedAt,
		&a.etymologyID, &w.Etymology.SanskritRoot, &w.Etymology.VerificationCount,
		&w.Etymology.Confidence, &w.Etymology.Responding, &outcome, &w.Etymology.Revision)
	if err != nil {
		return nil, err
	}
	w.Etymology.Outcome = types.ScoreOutcome(outcome)
	return &a, nil
}

// PromoteWord moves a staged word into the authoritative store in one transaction.
func (db *DB) PromoteWord(ctx context.Context, staged *types.StagedWord, e types.EtymologyRecord, records []types.VerificationRecord) (*types.AcceptedWord, error) {
	c := staged.Candidate
	accepted := &types.AcceptedWord{
		ID:         uuid.New(),
		Candidate:  c,
		Confidence: e.Confidence,
		CreatedAt:  now(),
	}

	err := db.inTx(ctx, func(tx pgx.Tx) error {
		var id uuid.UUID
		err := tx.QueryRow(ctx,
			`INSERT INTO words (id, word, language, script, romanized, meaning, source, confidence_score, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 ON CONFLICT (word, language) DO NOTHING
			 RETURNING id`,
			accepted.ID, c.Word, c.Language, c.Script, c.Romanized, c.Meaning, c.Source, e.Confidence, accepted.CreatedAt,
		).Scan(&id)
		if err == pgx.ErrNoRows {
			var existing uuid.UUID
			if err := tx.QueryRow(ctx,
				`SELECT id FROM words WHERE word = $1 AND language = $2`, c.Word, c.Language,
			).Scan(&existing); err != nil {
				return fmt.Errorf("failed to load existing word: %w", err)
			}
			return &types.DuplicateEntryError{Word: c.Word, Language: c.Language, WordID: existing}
		}
		if err != nil {
			return fmt.Errorf("failed to insert word: %w", err)
		}

		etymologyID := uuid.New()
		e.Revision = 1
		if _, err := tx.Exec(ctx,
			`INSERT INTO etymologies (id, word_id, sanskrit_root, verification_count, confidence_score, responding, outcome, revision)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			etymologyID, id, e.SanskritRoot, e.VerificationCount, e.Confidence, e.Responding, string(e.Outcome), e.Revision,
		); err != nil {
			return fmt.Errorf("failed to insert etymology: %w", err)
		}

		if _, err := insertVerifications(ctx, tx, id, records); err != nil {
			return err
		}
		if err := insertSupport(ctx, tx, etymologyID, e.Revision, e.SupportingVerifications); err != nil {
			return err
		}
		return markPromoted(ctx, tx, staged.ID, id)
	})
	if err != nil {
		return nil, mapError("promote", c, err)
	}

	e.Revision = 1
	accepted.Etymology = e
	accepted.Verifications = records
	return accepted, nil
}

// AugmentWord appends verifications to an accepted word. Records already stored
// (same fingerprint) are skipped. rescore runs over the complete stored set while
// the word row is locked; a non-nil result becomes the next etymology revision.
func (db *DB) AugmentWord(ctx context.Context, wordID, stagedID uuid.UUID, records []types.VerificationRecord, rescore RescoreFunc) (*AugmentResult, error) {
	var (
		result = &AugmentResult{}
		c      types.CandidateWord
	)

	err := db.inTx(ctx, func(tx pgx.Tx) error {
		a, err := scanAccepted(tx.QueryRow(ctx,
			`SELECT `+acceptedWordColumns+`
			 FROM words w JOIN etymologies e ON e.word_id = w.id
			 WHERE w.id = $1
			 FOR UPDATE OF w`,
			wordID,
		))
		if err == pgx.ErrNoRows {
			return fmt.Errorf("accepted word %s not found", wordID)
		}
		if err != nil {
			return fmt.Errorf("failed to lock word: %w", err)
		}
		c = a.word.Candidate

		if result.Added, err = insertVerifications(ctx, tx, wordID, records); err != nil {
			return err
		}
		all, err := listVerifications(ctx, tx, wordID)
		if err != nil {
			return err
		}

		current := a.word.Etymology
		if current.SupportingVerifications, err = listSupport(ctx, tx, a.etymologyID, current.Revision); err != nil {
			return err
		}
		if rescore != nil {
			if next := rescore(current, all); next != nil {
				next.Revision = current.Revision + 1
				if _, err := tx.Exec(ctx,
					`UPDATE etymologies
					 SET sanskrit_root = $1, verification_count = $2, confidence_score = $3,
					     responding = $4, outcome = $5, revision = $6, updated_at = NOW()
					 WHERE id = $7`,
					next.SanskritRoot, next.VerificationCount, next.Confidence,
					next.Responding, string(next.Outcome), next.Revision, a.etymologyID,
				); err != nil {
					return fmt.Errorf("failed to update etymology: %w", err)
				}
				if _, err := tx.Exec(ctx,
					`UPDATE words SET confidence_score = $1 WHERE id = $2`, next.Confidence, wordID,
				); err != nil {
					return fmt.Errorf("failed to update word confidence: %w", err)
				}
				if err := insertSupport(ctx, tx, a.etymologyID, next.Revision, next.SupportingVerifications); err != nil {
					return err
				}
				current = *next
				a.word.Confidence = next.Confidence
				result.Upgraded = true
			}
		}
		if stagedID != uuid.Nil {
			if err := markPromoted(ctx, tx, stagedID, wordID); err != nil {
				return err
			}
		}

		a.word.Etymology = current
		a.word.Verifications = all
		result.Word = &a.word
		return nil
	})
	if err != nil {
		return nil, mapError("augment", c, err)
	}
	return result, nil
}

// GetAcceptedWord retrieves an accepted word with its current etymology and verifications
func (db *DB) GetAcceptedWord(ctx context.Context, word, language string) (*types.AcceptedWord, error) {
	a, err := scanAccepted(db.pool.QueryRow(ctx,
		`SELECT `+acceptedWordColumns+`
		 FROM words w JOIN etymologies e ON e.word_id = w.id
		 WHERE w.word = $1 AND w.language = $2`,
		word, language,
	))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get accepted word: %w", err)
	}

	if a.word.Verifications, err = listVerifications(ctx, db.pool, a.word.ID); err != nil {
		return nil, err
	}
	if a.word.Etymology.SupportingVerifications, err = listSupport(ctx, db.pool, a.etymologyID, a.word.Etymology.Revision); err != nil {
		return nil, err
	}
	return &a.word, nil
}

// ListAcceptedWords retrieves accepted words above a confidence floor
func (db *DB) ListAcceptedWords(ctx context.Context, minConfidence float64) ([]types.AcceptedWord, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+acceptedWordColumns+`
		 FROM words w JOIN etymologies e ON e.word_id = w.id
		 WHERE w.confidence_score > $1
		 ORDER BY w.language, w.word`,
		minConfidence,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list accepted words: %w", err)
	}

	var accepted []*acceptedRow
	for rows.Next() {
		a, err := scanAccepted(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan accepted word: %w", err)
		}
		accepted = append(accepted, a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list accepted words: %w", err)
	}

	words := make([]types.AcceptedWord, 0, len(accepted))
	for _, a := range accepted {
		if a.word.Verifications, err = listVerifications(ctx, db.pool, a.word.ID); err != nil {
			return nil, err
		}
		if a.word.Etymology.SupportingVerifications, err = listSupport(ctx, db.pool, a.etymologyID, a.word.Etymology.Revision); err != nil {
			return nil, err
		}
		words = append(words, a.word)
	}
	return words, nil
}

// DemoteWord deletes an accepted word (etymology, verifications and support rows cascade)
// and returns its staged word to the staged state.
func (db *DB) DemoteWord(ctx context.Context, word, language string) error {
	c := types.CandidateWord{Word: word, Language: language}
	err := db.inTx(ctx, func(tx pgx.Tx) error {
		var id uuid.UUID
		err := tx.QueryRow(ctx,
			`SELECT id FROM words WHERE word = $1 AND language = $2 FOR UPDATE`, word, language,
		).Scan(&id)
		if err == pgx.ErrNoRows {
			return &types.NotFoundError{Word: word, Language: language}
		}
		if err != nil {
			return fmt.Errorf("failed to lock word: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`UPDATE staged_words SET status = $1, promoted_word_id = NULL, updated_at = NOW()
			 WHERE word = $2 AND language = $3`,
			types.StatusStaged, word, language,
		); err != nil {
			return fmt.Errorf("failed to restage word: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM words WHERE id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete word: %w", err)
		}
		return nil
	})
	var nf *types.NotFoundError
	if errors.As(err, &nf) {
		return nf
	}
	return mapError("demote", c, err)
}

func insertVerifications(ctx context.Context, q querier, wordID uuid.UUID, records []types.VerificationRecord) (int, error) {
	added := 0
	for _, r := range records {
		tag, err := q.Exec(ctx,
			`INSERT INTO verifications (id, word_id, llm_name, sanskrit_root, confidence_score, verification_data, fingerprint, verified_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (word_id, fingerprint) DO NOTHING`,
			r.ID, wordID, r.Verifier, r.SanskritRoot, r.Confidence, jsonOrNil(r.Justification), r.Fingerprint, r.VerifiedAt,
		)
		if err != nil {
			return added, fmt.Errorf("failed to insert verification %s: %w", r.Verifier, err)
		}
		added += int(tag.RowsAffected())
	}
	return added, nil
}

func listVerifications(ctx context.Context, q querier, wordID uuid.UUID) ([]types.VerificationRecord, error) {
	rows, err := q.Query(ctx,
		`SELECT id, llm_name, sanskrit_root, confidence_score, verification_data, fingerprint, verified_at
		 FROM verifications WHERE word_id = $1 ORDER BY llm_name, verified_at, fingerprint`,
		wordID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list verifications: %w", err)
	}
	defer rows.Close()
	return scanVerifications(rows)
}

func insertSupport(ctx context.Context, q querier, etymologyID uuid.UUID, revision int, ids []uuid.UUID) error {
	for _, id := range ids {
		if _, err := q.Exec(ctx,
			`INSERT INTO etymology_support (etymology_id, revision, verification_id)
			 VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
			etymologyID, revision, id,
		); err != nil {
			return fmt.Errorf("failed to freeze supporting verification %s: %w", id, err)
		}
	}
	return nil
}

func listSupport(ctx context.Context, q querier, etymologyID uuid.UUID, revision int) ([]uuid.UUID, error) {
	rows, err := q.Query(ctx,
		`SELECT s.verification_id
		 FROM etymology_support s JOIN verifications v ON v.id = s.verification_id
		 WHERE s.etymology_id = $1 AND s.revision = $2
		 ORDER BY v.llm_name`,
		etymologyID, revision,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list supporting verifications: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan supporting verification: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func markPromoted(ctx context.Context, q querier, stagedID, wordID uuid.UUID) error {
	if _, err := q.Exec(ctx,
		`UPDATE staged_words
		 SET status = $1, promoted_word_id = $2, needs_reverification = FALSE, updated_at = NOW()
		 WHERE id = $3`,
		types.StatusPromoted, wordID, stagedID,
	); err != nil {
		return fmt.Errorf("failed to mark staged word promoted: %w", err)
	}
	return nil
}

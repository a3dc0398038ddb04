// Package promotion moves candidate words from staging to the authoritative store.
//
// Promotion is one-way: a promoted word is only ever augmented with new evidence,
// and its stored confidence never drops as a pipeline side effect. Demote is the
// explicit administrative way back.
package promotion

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/shabda-setu/internal/db"
	"github.com/jonathan/shabda-setu/internal/observability"
	"github.com/jonathan/shabda-setu/internal/orchestrator"
	"github.com/jonathan/shabda-setu/internal/scoring"
	"github.com/jonathan/shabda-setu/internal/types"
)

// Action is what processing did to a word
type Action string

// Action constants
const (
	ActionStaged    Action = "staged"
	ActionPromoted  Action = "promoted"
	ActionAugmented Action = "augmented"
)

// Outcome describes one processed word.
type Outcome struct {
	Word      types.CandidateWord
	Action    Action
	Etymology types.EtymologyRecord // score over the staged record set
	Accepted  *types.AcceptedWord   // set when the word is in the authoritative store
	Added     int                   // verifications appended during augmentation
	Upgraded  bool                  // authoritative etymology moved to a new revision
}

// Engine applies orchestration results to the stores.
type Engine struct {
	store  db.Store
	scorer *scoring.Scorer
	logger *zap.Logger
}

// New creates an engine
func New(store db.Store, scorer *scoring.Scorer, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{store: store, scorer: scorer, logger: logger.Named("promotion")}
}

// Process records a run's verifications for a staged word, rescores it and
// promotes or augments when warranted. Every store mutation is scoped to this word.
func (e *Engine) Process(ctx context.Context, staged *types.StagedWord, run *orchestrator.Result) (*Outcome, error) {
	if staged == nil || run == nil {
		return nil, fmt.Errorf("staged word and orchestration result are required")
	}
	word := staged.Candidate
	log := e.logger.With(observability.WordFields(word.Word, word.Language)...)

	if err := e.store.ReplaceStagedVerifications(ctx, staged.ID, run.Records); err != nil {
		return nil, fmt.Errorf("failed to record verifications: %w", err)
	}
	records, err := e.store.ListStagedVerifications(ctx, staged.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load staged verifications: %w", err)
	}

	etymology := e.scorer.Score(records)
	if err := e.store.UpdateStagedEtymology(ctx, staged.ID, etymology, run.Partial); err != nil {
		return nil, fmt.Errorf("failed to store staged etymology: %w", err)
	}

	out := &Outcome{Word: word, Action: ActionStaged, Etymology: etymology}

	if staged.IsPromoted() && staged.PromotedWordID != nil {
		return e.augment(ctx, out, *staged.PromotedWordID, staged.ID, run.Records)
	}

	if !e.scorer.Promotable(etymology) {
		log.Debug("Word stays staged",
			zap.Float64("confidence", etymology.Confidence),
			zap.String("outcome", string(etymology.Outcome)),
			zap.Int("responding", etymology.Responding))
		return out, nil
	}

	accepted, err := e.store.PromoteWord(ctx, staged, etymology, records)
	var dup *types.DuplicateEntryError
	switch {
	case errors.As(err, &dup):
		log.Warn("Duplicate entry, augmenting existing word",
			zap.String("word_id", dup.WordID.String()))
		return e.augment(ctx, out, dup.WordID, staged.ID, records)
	case err != nil:
		return nil, err
	}

	log.Info("Word promoted",
		zap.String("word_id", accepted.ID.String()),
		zap.String("sanskrit_root", etymology.SanskritRoot),
		zap.Float64("confidence", etymology.Confidence))
	out.Action = ActionPromoted
	out.Accepted = accepted
	return out, nil
}

func (e *Engine) augment(ctx context.Context, out *Outcome, wordID, stagedID uuid.UUID, records []types.VerificationRecord) (*Outcome, error) {
	res, err := e.store.AugmentWord(ctx, wordID, stagedID, records, e.Rescore)
	if err != nil {
		return nil, err
	}

	out.Action = ActionAugmented
	out.Accepted = res.Word
	out.Added = res.Added
	out.Upgraded = res.Upgraded
	if res.Upgraded {
		e.logger.Info("Accepted etymology upgraded",
			append(observability.WordFields(out.Word.Word, out.Word.Language),
				zap.String("word_id", wordID.String()),
				zap.Int("revision", res.Word.Etymology.Revision),
				zap.Float64("confidence", res.Word.Confidence))...)
	}
	return out, nil
}

// Rescore scores an accepted word's full record set and returns the next
// etymology only when it clears the threshold, does not lower the stored
// confidence and actually differs from it.
func (e *Engine) Rescore(current types.EtymologyRecord, records []types.VerificationRecord) *types.EtymologyRecord {
	next := e.scorer.Score(records)
	if !e.scorer.Promotable(next) || next.Confidence < current.Confidence {
		return nil
	}
	if sameEtymology(current, next) {
		return nil
	}
	return &next
}

func sameEtymology(a, b types.EtymologyRecord) bool {
	if a.SanskritRoot != b.SanskritRoot || a.Confidence != b.Confidence ||
		a.VerificationCount != b.VerificationCount || a.Responding != b.Responding ||
		len(a.SupportingVerifications) != len(b.SupportingVerifications) {
		return false
	}
	seen := make(map[uuid.UUID]bool, len(a.SupportingVerifications))
	for _, id := range a.SupportingVerifications {
		seen[id] = true
	}
	for _, id := range b.SupportingVerifications {
		if !seen[id] {
			return false
		}
	}
	return true
}

// Demote removes a word from the authoritative store and returns it to staging.
func (e *Engine) Demote(ctx context.Context, word, language string) error {
	if err := e.store.DemoteWord(ctx, word, language); err != nil {
		return err
	}
	e.logger.Info("Word demoted", observability.WordFields(word, language)...)
	return nil
}

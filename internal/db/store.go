package db

import (
	"context"

	"github.com/google/uuid"

	"github.com/jonathan/shabda-setu/internal/types"
)

// RescoreFunc recomputes an accepted word's etymology over its full verification set.
// It returns nil when the stored etymology should be kept.
type RescoreFunc func(current types.EtymologyRecord, records []types.VerificationRecord) *types.EtymologyRecord

// AugmentResult describes the effect of AugmentWord.
type AugmentResult struct {
	Word     *types.AcceptedWord
	Added    int // verifications not already present
	Upgraded bool
}

// Store is the Staging Store plus the Authoritative Store. Every mutation is a
// single-word transaction.
type Store interface {
	// StageWord inserts a candidate or returns the existing staged row for (word, language).
	StageWord(ctx context.Context, c types.CandidateWord) (*types.StagedWord, error)
	// GetStagedWord returns nil when the word was never staged.
	GetStagedWord(ctx context.Context, word, language string) (*types.StagedWord, error)
	// ReplaceStagedVerifications upserts records; a verifier's newer record replaces its older one.
	ReplaceStagedVerifications(ctx context.Context, stagedID uuid.UUID, records []types.VerificationRecord) error
	ListStagedVerifications(ctx context.Context, stagedID uuid.UUID) ([]types.VerificationRecord, error)
	UpdateStagedEtymology(ctx context.Context, stagedID uuid.UUID, e types.EtymologyRecord, needsReverification bool) error
	ListNeedsReverification(ctx context.Context, limit int) ([]types.StagedWord, error)

	// PromoteWord creates the AcceptedWord, its etymology, verifications and support rows
	// and marks the staged word promoted. An existing (word, language) yields *types.DuplicateEntryError.
	PromoteWord(ctx context.Context, staged *types.StagedWord, e types.EtymologyRecord, records []types.VerificationRecord) (*types.AcceptedWord, error)
	// AugmentWord appends records to an accepted word and applies rescore under the word's row lock.
	AugmentWord(ctx context.Context, wordID, stagedID uuid.UUID, records []types.VerificationRecord, rescore RescoreFunc) (*AugmentResult, error)
	// GetAcceptedWord returns nil when the word is not in the authoritative store.
	GetAcceptedWord(ctx context.Context, word, language string) (*types.AcceptedWord, error)
	// ListAcceptedWords returns words with confidence strictly above minConfidence,
	// ordered by language then word.
	ListAcceptedWords(ctx context.Context, minConfidence float64) ([]types.AcceptedWord, error)
	// DemoteWord removes an accepted word and returns its staged word to staged.
	DemoteWord(ctx context.Context, word, language string) error
}

var _ Store = (*DB)(nil)

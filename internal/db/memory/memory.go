// Package memory is an in-process implementation of db.Store used for dry runs and tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/shabda-setu/internal/db"
	"github.com/jonathan/shabda-setu/internal/types"
)

var _ db.Store = (*Store)(nil)

type stagedEntry struct {
	word    types.StagedWord
	records map[string]types.VerificationRecord // by verifier
}

type acceptedEntry struct {
	word    types.AcceptedWord
	records []types.VerificationRecord
	seen    map[string]bool // fingerprints
	support map[int][]uuid.UUID
}

// Store keeps both stores in maps behind one mutex. Each method is atomic,
// mirroring the single-word transactions of the PostgreSQL store.
type Store struct {
	mu       sync.Mutex
	staged   map[string]*stagedEntry // by identity key
	stagedID map[uuid.UUID]string
	accepted map[string]*acceptedEntry
	byWordID map[uuid.UUID]string
	now      func() time.Time
}

// New creates an empty store
func New() *Store {
	return &Store{
		staged:   make(map[string]*stagedEntry),
		stagedID: make(map[uuid.UUID]string),
		accepted: make(map[string]*acceptedEntry),
		byWordID: make(map[uuid.UUID]string),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func identity(word, language string) string {
	return types.CandidateWord{Word: word, Language: language}.Key()
}

// StageWord inserts a candidate or returns the existing staged word.
func (s *Store) StageWord(_ context.Context, c types.CandidateWord) (*types.StagedWord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := c.Key()
	if e, ok := s.staged[key]; ok {
		if e.word.Candidate.Meaning == "" && c.Meaning != "" {
			e.word.Candidate.Meaning = c.Meaning
		}
		return copyStaged(&e.word), nil
	}

	now := s.now()
	e := &stagedEntry{
		word: types.StagedWord{
			ID:        uuid.New(),
			Candidate: c,
			Status:    types.StatusStaged,
			CreatedAt: now,
			UpdatedAt: now,
		},
		records: make(map[string]types.VerificationRecord),
	}
	s.staged[key] = e
	s.stagedID[e.word.ID] = key
	return copyStaged(&e.word), nil
}

// GetStagedWord returns nil when the word was never staged.
func (s *Store) GetStagedWord(_ context.Context, word, language string) (*types.StagedWord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.staged[identity(word, language)]; ok {
		return copyStaged(&e.word), nil
	}
	return nil, nil
}

func (s *Store) stagedByID(id uuid.UUID) (*stagedEntry, error) {
	key, ok := s.stagedID[id]
	if !ok {
		return nil, fmt.Errorf("staged word not found: %s", id)
	}
	return s.staged[key], nil
}

// ReplaceStagedVerifications keeps the newest record per verifier.
func (s *Store) ReplaceStagedVerifications(_ context.Context, stagedID uuid.UUID, records []types.VerificationRecord) error {
	if len(records) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.stagedByID(stagedID)
	if err != nil {
		return &types.StoreIntegrityError{Op: "record", Word: stagedID.String(), Cause: err}
	}
	for _, r := range records {
		if cur, ok := e.records[r.Verifier]; ok && cur.VerifiedAt.After(r.VerifiedAt) {
			continue
		}
		e.records[r.Verifier] = copyRecord(r)
	}
	e.word.UpdatedAt = s.now()
	return nil
}

// ListStagedVerifications returns one record per verifier ordered by verifier.
func (s *Store) ListStagedVerifications(_ context.Context, stagedID uuid.UUID) ([]types.VerificationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.stagedByID(stagedID)
	if err != nil {
		return nil, nil
	}
	out := make([]types.VerificationRecord, 0, len(e.records))
	for _, r := range e.records {
		out = append(out, copyRecord(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Verifier < out[j].Verifier })
	return out, nil
}

// UpdateStagedEtymology stores the latest score for a staged word.
func (s *Store) UpdateStagedEtymology(_ context.Context, stagedID uuid.UUID, e types.EtymologyRecord, needsReverification bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.stagedByID(stagedID)
	if err != nil {
		return err
	}
	entry.word.Etymology = copyEtymology(&e)
	entry.word.NeedsReverification = needsReverification
	entry.word.UpdatedAt = s.now()
	return nil
}

// ListNeedsReverification returns flagged staged words, oldest update first.
func (s *Store) ListNeedsReverification(_ context.Context, limit int) ([]types.StagedWord, error) {
	if limit <= 0 {
		limit = 100
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []types.StagedWord
	for _, e := range s.staged {
		if e.word.NeedsReverification && e.word.Status == types.StatusStaged {
			out = append(out, *copyStaged(&e.word))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.Before(out[j].UpdatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// PromoteWord creates the accepted word and marks the staged word promoted.
func (s *Store) PromoteWord(_ context.Context, staged *types.StagedWord, e types.EtymologyRecord, records []types.VerificationRecord) (*types.AcceptedWord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := staged.Candidate
	key := c.Key()
	if existing, ok := s.accepted[key]; ok {
		return nil, &types.DuplicateEntryError{Word: c.Word, Language: c.Language, WordID: existing.word.ID}
	}
	se, err := s.stagedByID(staged.ID)
	if err != nil {
		return nil, &types.StoreIntegrityError{Op: "promote", Word: c.Word, Cause: err}
	}

	e.Revision = 1
	entry := &acceptedEntry{
		word: types.AcceptedWord{
			ID:         uuid.New(),
			Candidate:  c,
			Confidence: e.Confidence,
			Etymology:  *copyEtymology(&e),
			CreatedAt:  s.now(),
		},
		seen:    make(map[string]bool),
		support: map[int][]uuid.UUID{1: append([]uuid.UUID(nil), e.SupportingVerifications...)},
	}
	entry.append(records)

	s.accepted[key] = entry
	s.byWordID[entry.word.ID] = key
	s.markPromoted(se, entry.word.ID)
	return entry.snapshot(), nil
}

// AugmentWord appends unseen records and applies rescore atomically.
func (s *Store) AugmentWord(_ context.Context, wordID, stagedID uuid.UUID, records []types.VerificationRecord, rescore db.RescoreFunc) (*db.AugmentResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.byWordID[wordID]
	if !ok {
		return nil, &types.StoreIntegrityError{Op: "augment", Cause: fmt.Errorf("accepted word %s not found", wordID)}
	}
	entry := s.accepted[key]
	result := &db.AugmentResult{Added: entry.append(records)}

	if rescore != nil {
		if next := rescore(*copyEtymology(&entry.word.Etymology), entry.sortedRecords()); next != nil {
			next.Revision = entry.word.Etymology.Revision + 1
			entry.word.Etymology = *copyEtymology(next)
			entry.word.Confidence = next.Confidence
			entry.support[next.Revision] = append([]uuid.UUID(nil), next.SupportingVerifications...)
			result.Upgraded = true
		}
	}

	if se, err := s.stagedByID(stagedID); err == nil {
		s.markPromoted(se, wordID)
	}
	result.Word = entry.snapshot()
	return result, nil
}

// GetAcceptedWord returns nil when the word is not accepted.
func (s *Store) GetAcceptedWord(_ context.Context, word, language string) (*types.AcceptedWord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.accepted[identity(word, language)]; ok {
		return entry.snapshot(), nil
	}
	return nil, nil
}

// ListAcceptedWords returns words with confidence strictly above minConfidence.
func (s *Store) ListAcceptedWords(_ context.Context, minConfidence float64) ([]types.AcceptedWord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []types.AcceptedWord
	for _, entry := range s.accepted {
		if entry.word.Confidence > minConfidence {
			out = append(out, *entry.snapshot())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Candidate.Language != out[j].Candidate.Language {
			return out[i].Candidate.Language < out[j].Candidate.Language
		}
		return out[i].Candidate.Word < out[j].Candidate.Word
	})
	return out, nil
}

// DemoteWord removes an accepted word and restages it.
func (s *Store) DemoteWord(_ context.Context, word, language string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := identity(word, language)
	entry, ok := s.accepted[key]
	if !ok {
		return &types.NotFoundError{Word: word, Language: language}
	}
	delete(s.accepted, key)
	delete(s.byWordID, entry.word.ID)

	if se, ok := s.staged[key]; ok {
		se.word.Status = types.StatusStaged
		se.word.PromotedWordID = nil
		se.word.UpdatedAt = s.now()
	}
	return nil
}

func (s *Store) markPromoted(e *stagedEntry, wordID uuid.UUID) {
	id := wordID
	e.word.Status = types.StatusPromoted
	e.word.PromotedWordID = &id
	e.word.NeedsReverification = false
	e.word.UpdatedAt = s.now()
}

// append stores records whose fingerprint is new and returns how many were added.
func (a *acceptedEntry) append(records []types.VerificationRecord) int {
	added := 0
	for _, r := range records {
		if a.seen[r.Fingerprint] {
			continue
		}
		a.seen[r.Fingerprint] = true
		a.records = append(a.records, copyRecord(r))
		added++
	}
	return added
}

func (a *acceptedEntry) sortedRecords() []types.VerificationRecord {
	out := make([]types.VerificationRecord, 0, len(a.records))
	for _, r := range a.records {
		out = append(out, copyRecord(r))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Verifier != out[j].Verifier {
			return out[i].Verifier < out[j].Verifier
		}
		if !out[i].VerifiedAt.Equal(out[j].VerifiedAt) {
			return out[i].VerifiedAt.Before(out[j].VerifiedAt)
		}
		return out[i].Fingerprint < out[j].Fingerprint
	})
	return out
}

func (a *acceptedEntry) snapshot() *types.AcceptedWord {
	w := a.word
	w.Etymology = *copyEtymology(&a.word.Etymology)
	w.Etymology.SupportingVerifications = append([]uuid.UUID(nil), a.support[w.Etymology.Revision]...)
	w.Verifications = a.sortedRecords()
	return &w
}

func copyStaged(s *types.StagedWord) *types.StagedWord {
	out := *s
	if s.Etymology != nil {
		out.Etymology = copyEtymology(s.Etymology)
	}
	if s.PromotedWordID != nil {
		id := *s.PromotedWordID
		out.PromotedWordID = &id
	}
	return &out
}

func copyEtymology(e *types.EtymologyRecord) *types.EtymologyRecord {
	out := *e
	out.SupportingVerifications = append([]uuid.UUID(nil), e.SupportingVerifications...)
	return &out
}

func copyRecord(r types.VerificationRecord) types.VerificationRecord {
	if r.SanskritRoot != nil {
		r.SanskritRoot = types.StringPtr(*r.SanskritRoot)
	}
	if r.Justification != nil {
		r.Justification = append(json.RawMessage(nil), r.Justification...)
	}
	return r
}

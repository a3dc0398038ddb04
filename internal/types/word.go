// Package types provides type definitions for structured data used throughout the shabda-setu system.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// WordStatus constants for the staging lifecycle
const (
	StatusStaged   = "staged"
	StatusPromoted = "promoted"
)

// CandidateWord is a word proposed for inclusion, identified by (Word, Language).
type CandidateWord struct {
	Word      string `json:"word" validate:"required"`
	Language  string `json:"language" validate:"required"`
	Script    string `json:"script" validate:"required"`
	Romanized string `json:"romanized" validate:"required"`
	Meaning   string `json:"meaning,omitempty"`
	Source    string `json:"source,omitempty"` // Proposing collaborator (scraper name, generator)
}

// Key returns the (word, language) identity used for uniqueness checks.
func (c CandidateWord) Key() string {
	return c.Language + ":" + c.Word
}

// Validate validates the CandidateWord using the validator.
func (c *CandidateWord) Validate() error {
	validate := validator.New()
	return validate.Struct(c)
}

// StagedWord is a CandidateWord held in the Staging Store with its current etymology.
type StagedWord struct {
	ID                  uuid.UUID        `json:"id"`
	Candidate           CandidateWord    `json:"candidate"`
	Status              string           `json:"status"`
	Etymology           *EtymologyRecord `json:"etymology,omitempty"`
	NeedsReverification bool             `json:"needs_reverification"`
	PromotedWordID      *uuid.UUID       `json:"promoted_word_id,omitempty"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
}

// IsPromoted reports whether the staged word has already reached the authoritative store.
func (s *StagedWord) IsPromoted() bool {
	return s.Status == StatusPromoted
}

// AcceptedWord is a word present in the Authoritative Store.
type AcceptedWord struct {
	ID            uuid.UUID            `json:"id"`
	Candidate     CandidateWord        `json:"candidate"`
	Confidence    float64              `json:"confidence"`
	Etymology     EtymologyRecord      `json:"etymology"`
	Verifications []VerificationRecord `json:"verifications,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
}

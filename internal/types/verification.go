package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ScoreOutcome describes how an etymology score was reached
type ScoreOutcome string

// ScoreOutcome constants
const (
	// OutcomeScored means enough verifiers responded for the score to stand on its own
	OutcomeScored ScoreOutcome = "scored"
	// OutcomeInsufficientEvidence means fewer than the minimum verifiers responded
	OutcomeInsufficientEvidence ScoreOutcome = "insufficient_evidence"
	// OutcomeNoEvidence means no verifier responded at all
	OutcomeNoEvidence ScoreOutcome = "no_evidence"
)

// VerificationRecord is one verifier's judgment on a CandidateWord.
// A nil SanskritRoot is an explicit rejection, which is distinct from an absent record.
type VerificationRecord struct {
	ID            uuid.UUID       `json:"id"`
	Verifier      string          `json:"verifier"`
	SanskritRoot  *string         `json:"sanskrit_root"`
	Confidence    float64         `json:"confidence"`
	Justification json.RawMessage `json:"justification,omitempty"`
	Fingerprint   string          `json:"fingerprint"`
	VerifiedAt    time.Time       `json:"verified_at"`
}

// Rejected reports whether the verifier explicitly rejected a Sanskrit origin.
func (r *VerificationRecord) Rejected() bool {
	return r.SanskritRoot == nil
}

// Root returns the proposed root or an empty string for rejections.
func (r *VerificationRecord) Root() string {
	if r.SanskritRoot == nil {
		return ""
	}
	return *r.SanskritRoot
}

// EtymologyRecord is the reconciled etymology derived from a set of VerificationRecords.
type EtymologyRecord struct {
	SanskritRoot            string       `json:"sanskrit_root"`
	VerificationCount       int          `json:"verification_count"` // verifiers agreeing on the root
	Confidence              float64      `json:"confidence"`
	Responding              int          `json:"responding"`
	Outcome                 ScoreOutcome `json:"outcome"`
	SupportingVerifications []uuid.UUID  `json:"supporting_verifications,omitempty"`
	Revision                int          `json:"revision,omitempty"`
}

// HasRoot reports whether a winning root was found.
func (e *EtymologyRecord) HasRoot() bool {
	return e != nil && e.SanskritRoot != ""
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}

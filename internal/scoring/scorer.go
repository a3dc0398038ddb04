// Package scoring reconciles per-verifier judgments into one etymology and confidence.
package scoring

import (
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/jonathan/shabda-setu/internal/config"
	"github.com/jonathan/shabda-setu/internal/roots"
	"github.com/jonathan/shabda-setu/internal/types"
)

// UnknownVerifierWeight is the reliability weight of verifiers missing from the weight table.
const UnknownVerifierWeight = 1.0

// InsufficientEvidenceMargin is how far below the promotion threshold an
// insufficiently supported score is capped.
const InsufficientEvidenceMargin = 0.01

// Params are the static scoring parameters.
type Params struct {
	Weights         map[string]float64
	AgreementBonus  float64
	MinVerifiers    int
	Threshold       float64
	Transliteration bool
}

// Scorer is a pure function of a record set. Safe for concurrent use.
type Scorer struct {
	params     Params
	normalizer *roots.Normalizer
}

// New creates a scorer.
func New(p Params) *Scorer {
	return &Scorer{
		params:     p,
		normalizer: roots.NewNormalizer(p.Transliteration),
	}
}

// FromConfig creates a scorer from the scoring and verifier configuration.
func FromConfig(cfg *config.Config) *Scorer {
	return New(Params{
		Weights:         cfg.Weights(),
		AgreementBonus:  cfg.Scoring.AgreementBonus,
		MinVerifiers:    cfg.Scoring.MinVerifiers,
		Threshold:       cfg.Scoring.PromotionThreshold,
		Transliteration: cfg.Scoring.TransliterationEquivalence,
	})
}

// Threshold returns the promotion threshold.
func (s *Scorer) Threshold() float64 {
	return s.params.Threshold
}

// Weight returns a verifier's static reliability weight.
func (s *Scorer) Weight(verifier string) float64 {
	if w, ok := s.params.Weights[verifier]; ok {
		return w
	}
	return UnknownVerifierWeight
}

// Promotable reports whether an etymology clears the promotion threshold.
func (s *Scorer) Promotable(e types.EtymologyRecord) bool {
	return e.HasRoot() && e.Confidence >= s.params.Threshold
}

// RootKey returns the grouping key used for a root spelling.
func (s *Scorer) RootKey(root string) string {
	return s.normalizer.Key(root)
}

type group struct {
	key       string
	weight    float64 // sum of weight * confidence
	maxWeight float64 // highest reliability weight among members
	members   []*types.VerificationRecord
}

// Score reconciles records into an EtymologyRecord. The result does not depend
// on the order of records.
func (s *Scorer) Score(records []types.VerificationRecord) types.EtymologyRecord {
	set := Canonical(records)
	if len(set) == 0 {
		return types.EtymologyRecord{Outcome: types.OutcomeNoEvidence}
	}

	var (
		denominator float64
		groups      = make(map[string]*group)
		supporting  = make([]uuid.UUID, 0, len(set))
	)
	for i := range set {
		rec := &set[i]
		w := s.Weight(rec.Verifier)
		denominator += w
		supporting = append(supporting, rec.ID)

		if rec.Rejected() {
			continue
		}
		key := s.normalizer.Key(rec.Root())
		if key == "" {
			continue
		}
		g, ok := groups[key]
		if !ok {
			g = &group{key: key}
			groups[key] = g
		}
		g.weight += w * rec.Confidence
		g.maxWeight = math.Max(g.maxWeight, w)
		g.members = append(g.members, rec)
	}

	result := types.EtymologyRecord{
		Responding:              len(set),
		Outcome:                 types.OutcomeScored,
		SupportingVerifications: supporting,
	}

	if winner := s.winner(groups); winner != nil && denominator > 0 {
		confidence := winner.weight / denominator
		if len(winner.members) == len(set) {
			confidence += s.params.AgreementBonus
		}
		result.SanskritRoot = s.displayRoot(winner)
		result.VerificationCount = len(winner.members)
		result.Confidence = clamp(confidence)
	}

	if len(set) < s.params.MinVerifiers {
		result.Outcome = types.OutcomeInsufficientEvidence
		result.Confidence = math.Min(result.Confidence, clamp(s.params.Threshold-InsufficientEvidenceMargin))
	}
	return result
}

// winner picks the heaviest group; ties go to the group holding the most
// reliable verifier, then to the lexicographically smaller displayed root.
func (s *Scorer) winner(groups map[string]*group) *group {
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var (
		best     *group
		bestRoot string
	)
	for _, k := range keys {
		g := groups[k]
		root := s.displayRoot(g)
		switch {
		case best == nil,
			g.weight > best.weight,
			g.weight == best.weight && g.maxWeight > best.maxWeight,
			g.weight == best.weight && g.maxWeight == best.maxWeight && root < bestRoot:
			best, bestRoot = g, root
		}
	}
	return best
}

// displayRoot is the spelling proposed by the group's most reliable verifier.
func (s *Scorer) displayRoot(g *group) string {
	var (
		root   string
		weight = -1.0
	)
	for _, rec := range g.members {
		w := s.Weight(rec.Verifier)
		r := rec.Root()
		if w > weight || (w == weight && r < root) {
			root, weight = r, w
		}
	}
	return root
}

// Canonical returns the latest record per verifier sorted by verifier name.
// When two records of one verifier share a timestamp the smaller fingerprint wins.
func Canonical(records []types.VerificationRecord) []types.VerificationRecord {
	latest := make(map[string]types.VerificationRecord, len(records))
	for _, rec := range records {
		cur, ok := latest[rec.Verifier]
		if !ok ||
			rec.VerifiedAt.After(cur.VerifiedAt) ||
			(rec.VerifiedAt.Equal(cur.VerifiedAt) && rec.Fingerprint < cur.Fingerprint) {
			latest[rec.Verifier] = rec
		}
	}

	out := make([]types.VerificationRecord, 0, len(latest))
	for _, rec := range latest {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Verifier < out[j].Verifier })
	return out
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

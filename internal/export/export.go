// Package export writes accepted words as BIO-tagged JSON Lines training records.
package export

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"github.com/jonathan/shabda-setu/internal/config"
	"github.com/jonathan/shabda-setu/internal/observability"
	"github.com/jonathan/shabda-setu/internal/roots"
	"github.com/jonathan/shabda-setu/internal/schemas"
	"github.com/jonathan/shabda-setu/internal/types"
)

// BIO labels
const (
	LabelBegin   = "B-SANSKRIT"
	LabelInside  = "I-SANSKRIT"
	LabelOutside = "O"
)

// Split is a dataset partition
type Split string

// Split constants
const (
	SplitTrain Split = "train"
	SplitVal   Split = "val"
	SplitTest  Split = "test"
)

// Splits lists the partitions in file order
var Splits = []Split{SplitTrain, SplitVal, SplitTest}

// Record is one training example.
type Record struct {
	Text     string   `json:"text"`
	Tokens   []string `json:"tokens"`
	Labels   []string `json:"labels"`
	Metadata Metadata `json:"metadata"`
}

// Metadata carries the etymology behind a record's labels.
type Metadata struct {
	SanskritRoot string    `json:"sanskrit_root"`
	Confidence   float64   `json:"confidence"`
	Etymology    Etymology `json:"etymology"`
}

// Etymology summarizes the verification evidence for export.
type Etymology struct {
	Language          string   `json:"language"`
	Romanized         string   `json:"romanized"`
	VerificationCount int      `json:"verification_count"`
	Verifiers         []string `json:"verifiers"`
}

// Source lists accepted words with confidence strictly above a floor.
type Source interface {
	ListAcceptedWords(ctx context.Context, minConfidence float64) ([]types.AcceptedWord, error)
}

// Options configures an Exporter.
type Options struct {
	Threshold       float64
	TrainRatio      float64
	ValRatio        float64
	Transliteration bool
	Logger          *zap.Logger
}

// Stats counts what an export wrote.
type Stats struct {
	Written int
	Skipped int
	BySplit map[Split]int
}

// Exporter turns accepted words into training records.
type Exporter struct {
	source     Source
	opts       Options
	normalizer *roots.Normalizer
	logger     *zap.Logger
}

// New creates an exporter
func New(source Source, opts Options) *Exporter {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{
		source:     source,
		opts:       opts,
		normalizer: roots.NewNormalizer(opts.Transliteration),
		logger:     logger.Named("export"),
	}
}

// FromConfig creates an exporter using the export and scoring configuration
func FromConfig(cfg *config.Config, source Source, logger *zap.Logger) *Exporter {
	return New(source, Options{
		Threshold:       cfg.Export.Threshold,
		TrainRatio:      cfg.Export.TrainRatio,
		ValRatio:        cfg.Export.ValRatio,
		Transliteration: cfg.Scoring.TransliterationEquivalence,
		Logger:          logger,
	})
}

// BuildRecord converts an accepted word into a training record. Every token of
// the word is labeled: the first B-SANSKRIT, the rest I-SANSKRIT.
func (e *Exporter) BuildRecord(w types.AcceptedWord) Record {
	tokens := strings.Fields(w.Candidate.Word)
	labels := make([]string, len(tokens))
	for i := range tokens {
		if i == 0 {
			labels[i] = LabelBegin
		} else {
			labels[i] = LabelInside
		}
	}

	return Record{
		Text:   strings.Join(tokens, " "),
		Tokens: tokens,
		Labels: labels,
		Metadata: Metadata{
			SanskritRoot: w.Etymology.SanskritRoot,
			Confidence:   w.Confidence,
			Etymology: Etymology{
				Language:          w.Candidate.Language,
				Romanized:         w.Candidate.Romanized,
				VerificationCount: w.Etymology.VerificationCount,
				Verifiers:         e.agreeingVerifiers(w),
			},
		},
	}
}

// agreeingVerifiers names the supporting verifiers whose root matches the stored one.
func (e *Exporter) agreeingVerifiers(w types.AcceptedWord) []string {
	supporting := make(map[string]bool, len(w.Etymology.SupportingVerifications))
	for _, id := range w.Etymology.SupportingVerifications {
		supporting[id.String()] = true
	}

	names := []string{}
	seen := make(map[string]bool)
	for _, r := range w.Verifications {
		if !supporting[r.ID.String()] || r.Rejected() || seen[r.Verifier] {
			continue
		}
		if e.normalizer.Equivalent(r.Root(), w.Etymology.SanskritRoot) {
			names = append(names, r.Verifier)
			seen[r.Verifier] = true
		}
	}
	sort.Strings(names)
	return names
}

// Export writes every eligible word to w as JSON Lines.
func (e *Exporter) Export(ctx context.Context, w io.Writer) (*Stats, error) {
	return e.export(ctx, func(Split) io.Writer { return w })
}

// ExportSplits writes train.jsonl, val.jsonl and test.jsonl under dir.
func (e *Exporter) ExportSplits(ctx context.Context, dir string) (*Stats, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}

	files := make(map[Split]*os.File, len(Splits))
	writers := make(map[Split]*bufio.Writer, len(Splits))
	defer func() {
		for _, f := range files {
			_ = f.Close()
		}
	}()
	for _, s := range Splits {
		f, err := os.Create(filepath.Join(dir, string(s)+".jsonl"))
		if err != nil {
			return nil, fmt.Errorf("failed to create %s split: %w", s, err)
		}
		files[s] = f
		writers[s] = bufio.NewWriter(f)
	}

	stats, err := e.export(ctx, func(s Split) io.Writer { return writers[s] })
	if err != nil {
		return nil, err
	}
	for _, s := range Splits {
		if err := writers[s].Flush(); err != nil {
			return nil, fmt.Errorf("failed to write %s split: %w", s, err)
		}
	}
	return stats, nil
}

func (e *Exporter) export(ctx context.Context, writerFor func(Split) io.Writer) (*Stats, error) {
	words, err := e.source.ListAcceptedWords(ctx, e.opts.Threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to list accepted words: %w", err)
	}

	stats := &Stats{BySplit: make(map[Split]int)}
	for _, w := range words {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if w.Confidence <= e.opts.Threshold {
			continue
		}

		data, err := json.Marshal(e.BuildRecord(w))
		if err != nil {
			return nil, fmt.Errorf("failed to marshal record: %w", err)
		}
		if err := schemas.Validate(schemas.ExportRecord, data); err != nil {
			e.logger.Warn("Skipping invalid export record",
				append(observability.WordFields(w.Candidate.Word, w.Candidate.Language), zap.Error(err))...)
			stats.Skipped++
			continue
		}

		split := AssignSplit(w.Candidate.Word, w.Candidate.Language, e.opts.TrainRatio, e.opts.ValRatio)
		if _, err := writerFor(split).Write(append(data, '\n')); err != nil {
			return nil, fmt.Errorf("failed to write record: %w", err)
		}
		stats.Written++
		stats.BySplit[split]++
	}

	e.logger.Info("Export complete",
		zap.Int("written", stats.Written),
		zap.Int("skipped", stats.Skipped),
		zap.Float64("threshold", e.opts.Threshold))
	return stats, nil
}

// AssignSplit places a word in a split by hashing its identity, so a word stays
// in the same split across exports.
func AssignSplit(word, language string, trainRatio, valRatio float64) Split {
	sum := blake2b.Sum256([]byte(language + "\x1f" + word))
	u := float64(binary.BigEndian.Uint64(sum[:8])>>11) / float64(1<<53)

	switch {
	case u < trainRatio:
		return SplitTrain
	case u < trainRatio+valRatio:
		return SplitVal
	default:
		return SplitTest
	}
}

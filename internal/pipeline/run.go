// Package pipeline provides the high-level flow from candidate words to the
// authoritative store: stage, orchestrate verifiers, score and promote.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/shabda-setu/internal/db"
	"github.com/jonathan/shabda-setu/internal/observability"
	"github.com/jonathan/shabda-setu/internal/orchestrator"
	"github.com/jonathan/shabda-setu/internal/promotion"
	"github.com/jonathan/shabda-setu/internal/types"
)

// Step names reported through progress events
const (
	StepStage       = "stage"
	StepOrchestrate = "orchestrate"
	StepProcess     = "process"
)

// ProgressEvent represents a progress update during pipeline execution
type ProgressEvent struct {
	Step     string `json:"step"`
	Word     string `json:"word"`
	Language string `json:"language"`
	Message  string `json:"message"`
	Content  any    `json:"content,omitempty"`
}

// ProgressCallback is called when pipeline progress occurs. It may be called
// from several workers at once.
type ProgressCallback func(event ProgressEvent)

// Orchestrator fans one word out to the verifiers
type Orchestrator interface {
	Orchestrate(ctx context.Context, word types.CandidateWord) *orchestrator.Result
}

// Options holds configuration for running the pipeline
type Options struct {
	Workers    int
	Logger     *zap.Logger
	OnProgress ProgressCallback
}

// WordResult is the outcome for one candidate word.
type WordResult struct {
	Word     types.CandidateWord
	Outcome  *promotion.Outcome
	Absences []orchestrator.Absence
	Partial  bool
	Err      error
}

// Summary holds per-word results in input order.
type Summary struct {
	Results []WordResult
	Elapsed time.Duration
}

// Pipeline processes candidate words with a bounded pool of workers.
type Pipeline struct {
	store  db.Store
	orch   Orchestrator
	engine *promotion.Engine
	opts   Options
	logger *zap.Logger
}

// New creates a pipeline
func New(store db.Store, orch Orchestrator, engine *promotion.Engine, opts Options) *Pipeline {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{store: store, orch: orch, engine: engine, opts: opts, logger: logger.Named("pipeline")}
}

// emitProgress calls the progress callback if configured
func (p *Pipeline) emitProgress(step string, word types.CandidateWord, message string, content any) {
	if p.opts.OnProgress != nil {
		p.opts.OnProgress(ProgressEvent{
			Step:     step,
			Word:     word.Word,
			Language: word.Language,
			Message:  message,
			Content:  content,
		})
	}
}

// Run stages and verifies every candidate. A failing word is recorded in the
// summary and never stops the others; the returned error is only the caller's
// context error.
func (p *Pipeline) Run(ctx context.Context, candidates []types.CandidateWord) (*Summary, error) {
	return p.run(ctx, len(candidates), func(ctx context.Context, i int) WordResult {
		return p.processCandidate(ctx, candidates[i])
	})
}

// Reverify re-runs orchestration for staged words whose last run was partial.
func (p *Pipeline) Reverify(ctx context.Context, limit int) (*Summary, error) {
	staged, err := p.store.ListNeedsReverification(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list words for re-verification: %w", err)
	}
	p.logger.Info("Re-verifying staged words", zap.Int("count", len(staged)))

	return p.run(ctx, len(staged), func(ctx context.Context, i int) WordResult {
		return p.verify(ctx, &staged[i])
	})
}

func (p *Pipeline) run(ctx context.Context, n int, work func(ctx context.Context, i int) WordResult) (*Summary, error) {
	start := time.Now()
	summary := &Summary{Results: make([]WordResult, n)}

	var g errgroup.Group
	g.SetLimit(p.opts.Workers)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			summary.Results[i] = work(ctx, i)
			return nil
		})
	}
	_ = g.Wait()

	summary.Elapsed = time.Since(start)
	stats := summary.Stats()
	p.logger.Info("Pipeline run complete",
		zap.Int("submitted", stats.Submitted),
		zap.Int("promoted", stats.Promoted),
		zap.Int("augmented", stats.Augmented),
		zap.Int("staged", stats.Staged),
		zap.Int("failed", stats.Failed),
		zap.Int("partial", stats.Partial),
		zap.Duration("elapsed", summary.Elapsed))
	return summary, ctx.Err()
}

func (p *Pipeline) processCandidate(ctx context.Context, c types.CandidateWord) WordResult {
	if err := ctx.Err(); err != nil {
		return WordResult{Word: c, Err: err}
	}

	staged, err := p.store.StageWord(ctx, c)
	if err != nil {
		return p.fail(WordResult{Word: c}, StepStage, err)
	}
	p.emitProgress(StepStage, c, "Staged candidate", staged)
	return p.verify(ctx, staged)
}

// verify orchestrates one staged word and applies the result.
func (p *Pipeline) verify(ctx context.Context, staged *types.StagedWord) WordResult {
	c := staged.Candidate
	res := WordResult{Word: c}
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	run := p.orch.Orchestrate(ctx, c)
	res.Absences = run.Absences
	res.Partial = run.Partial
	p.emitProgress(StepOrchestrate, c,
		fmt.Sprintf("%d judgments, %d absent", len(run.Records), len(run.Absences)), run)

	// A cancelled caller leaves the word untouched for the next run
	if ctx.Err() != nil {
		res.Err = ctx.Err()
		return res
	}

	outcome, err := p.engine.Process(ctx, staged, run)
	if err != nil {
		return p.fail(res, StepProcess, err)
	}
	res.Outcome = outcome
	p.emitProgress(StepProcess, c, string(outcome.Action), outcome)
	return res
}

func (p *Pipeline) fail(res WordResult, step string, err error) WordResult {
	res.Err = fmt.Errorf("%s failed: %w", step, err)
	p.logger.Error("Word failed",
		append(observability.WordFields(res.Word.Word, res.Word.Language),
			zap.String("step", step),
			zap.Error(err))...)
	return res
}

// Stats aggregates the summary for reporting.
func (s *Summary) Stats() observability.RunStats {
	stats := observability.RunStats{
		Submitted: len(s.Results),
		Absences:  make(map[string]int),
	}
	for _, r := range s.Results {
		if r.Partial {
			stats.Partial++
		}
		for _, a := range r.Absences {
			stats.Absences[string(a.Reason)]++
		}

		switch {
		case r.Err != nil:
			stats.Failed++
			stats.Failures = append(stats.Failures, fmt.Sprintf("%s (%s): %v", r.Word.Word, r.Word.Language, r.Err))
		case r.Outcome == nil:
			stats.Staged++
		case r.Outcome.Action == promotion.ActionPromoted:
			stats.Promoted++
		case r.Outcome.Action == promotion.ActionAugmented:
			stats.Augmented++
		default:
			stats.Staged++
		}
	}
	return stats
}

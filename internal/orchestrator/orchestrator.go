// Package orchestrator fans a candidate word out to every configured verifier
// and collects their judgments under per-call timeouts, retries and a global deadline.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/shabda-setu/internal/config"
	"github.com/jonathan/shabda-setu/internal/ratelimit"
	"github.com/jonathan/shabda-setu/internal/types"
	"github.com/jonathan/shabda-setu/internal/verifier"
)

// jitterFraction spreads retries of concurrent words apart.
const jitterFraction = 0.1

// AbsenceReason says why a verifier produced no judgment.
type AbsenceReason string

// AbsenceReason constants
const (
	ReasonTimeout   AbsenceReason = "timeout"
	ReasonParse     AbsenceReason = "parse"
	ReasonError     AbsenceReason = "error"
	ReasonCancelled AbsenceReason = "cancelled"
)

// ErrGlobalTimeout marks verifiers cut off by the orchestration deadline.
var ErrGlobalTimeout = errors.New("orchestration timeout elapsed")

// Absence records a verifier that did not produce a judgment in this run.
// An absence is never a zero-confidence judgment.
type Absence struct {
	Verifier string
	Reason   AbsenceReason
	Attempts int
	Err      error
}

// Result is the outcome of one orchestration.
type Result struct {
	Word     types.CandidateWord
	Records  []types.VerificationRecord // sorted by verifier name
	Absences []Absence                  // sorted by verifier name
	// Partial is set when the global deadline (or the caller) cut the run short
	// before every verifier settled; the word should be re-verified later.
	Partial bool
	Elapsed time.Duration
}

// Policy is the per-verifier call policy.
type Policy struct {
	Timeout    time.Duration
	MaxRetries int
	Backoff    time.Duration
	MaxBackoff time.Duration
}

// Options configures an Orchestrator.
type Options struct {
	Concurrency   int
	GlobalTimeout time.Duration
	Policies      map[string]Policy
	Limiter       *ratelimit.Limiter
	Logger        *zap.Logger
}

// Orchestrator dispatches one word to all verifiers. Safe for concurrent use.
type Orchestrator struct {
	verifiers []verifier.Verifier
	opts      Options
	logger    *zap.Logger
	sleep     func(ctx context.Context, d time.Duration) error
}

// DefaultPolicy is used for verifiers without an entry in Options.Policies.
func DefaultPolicy() Policy {
	v := config.DefaultVerifier()
	return Policy{Timeout: v.Timeout, MaxRetries: v.MaxRetries, Backoff: v.Backoff, MaxBackoff: v.MaxBackoff}
}

// New creates an orchestrator over verifiers.
func New(verifiers []verifier.Verifier, opts Options) *Orchestrator {
	if opts.Concurrency <= 0 {
		opts.Concurrency = len(verifiers)
	}
	if opts.Limiter == nil {
		opts.Limiter = ratelimit.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Orchestrator{
		verifiers: verifiers,
		opts:      opts,
		logger:    opts.Logger.Named("orchestrator"),
		sleep:     sleepContext,
	}
}

// FromConfig builds an orchestrator using the pipeline and verifier settings in cfg.
func FromConfig(cfg *config.Config, verifiers []verifier.Verifier, limiter *ratelimit.Limiter, logger *zap.Logger) *Orchestrator {
	policies := make(map[string]Policy, len(cfg.Verifiers))
	for _, v := range cfg.Verifiers {
		policies[v.Name] = Policy{
			Timeout:    v.Timeout,
			MaxRetries: v.MaxRetries,
			Backoff:    v.Backoff,
			MaxBackoff: v.MaxBackoff,
		}
	}
	return New(verifiers, Options{
		Concurrency:   cfg.Pipeline.Concurrency,
		GlobalTimeout: cfg.Pipeline.OrchestrationTimeout,
		Policies:      policies,
		Limiter:       limiter,
		Logger:        logger,
	})
}

// Verifiers returns the names of the configured verifiers.
func (o *Orchestrator) Verifiers() []string {
	names := make([]string, len(o.verifiers))
	for i, v := range o.verifiers {
		names[i] = v.Name()
	}
	return names
}

// Orchestrate asks every verifier about word. It returns once every verifier has
// produced a record or exhausted its retries, or when the global deadline elapses.
// Results arriving after the deadline are discarded.
func (o *Orchestrator) Orchestrate(ctx context.Context, word types.CandidateWord) *Result {
	started := time.Now()

	gctx, cancel := ctx, context.CancelFunc(func() {})
	if o.opts.GlobalTimeout > 0 {
		gctx, cancel = context.WithTimeout(ctx, o.opts.GlobalTimeout)
	}
	defer cancel()

	var (
		mu       sync.Mutex
		closed   bool
		records  []types.VerificationRecord
		absences []Absence
		settled  = make(map[string]bool, len(o.verifiers))
		attempts = make(map[string]int, len(o.verifiers))
	)

	g := new(errgroup.Group)
	g.SetLimit(o.opts.Concurrency)
	finished := make(chan struct{})

	go func() {
		defer close(finished)
		for _, v := range o.verifiers {
			if gctx.Err() != nil {
				break
			}
			g.Go(func() error {
				onAttempt := func(n int) {
					mu.Lock()
					attempts[v.Name()] = n
					mu.Unlock()
				}
				rec, absence := o.call(gctx, v, word, onAttempt)

				mu.Lock()
				defer mu.Unlock()
				// Anything settling after the deadline counts as cut off
				if closed || gctx.Err() != nil {
					return nil
				}
				settled[v.Name()] = true
				if rec != nil {
					records = append(records, *rec)
				} else {
					absences = append(absences, *absence)
				}
				return nil
			})
		}
		_ = g.Wait()
	}()

	select {
	case <-finished:
	case <-gctx.Done():
	}

	mu.Lock()
	closed = true
	result := &Result{
		Word:     word,
		Records:  append([]types.VerificationRecord(nil), records...),
		Absences: append([]Absence(nil), absences...),
	}
	for _, a := range result.Absences {
		if errors.Is(a.Err, ErrGlobalTimeout) {
			result.Partial = true
		}
	}
	for _, v := range o.verifiers {
		if settled[v.Name()] {
			continue
		}
		result.Partial = true
		reason, cause := ReasonTimeout, error(ErrGlobalTimeout)
		if ctx.Err() != nil {
			reason, cause = ReasonCancelled, ctx.Err()
		}
		result.Absences = append(result.Absences, Absence{
			Verifier: v.Name(),
			Reason:   reason,
			Attempts: attempts[v.Name()],
			Err:      cause,
		})
	}
	mu.Unlock()

	sort.Slice(result.Records, func(i, j int) bool { return result.Records[i].Verifier < result.Records[j].Verifier })
	sort.Slice(result.Absences, func(i, j int) bool { return result.Absences[i].Verifier < result.Absences[j].Verifier })
	result.Elapsed = time.Since(started)

	for _, a := range result.Absences {
		o.logAbsence(word, a)
	}
	if result.Partial {
		o.logger.Warn("partial orchestration",
			zap.String("word", word.Word),
			zap.String("language", word.Language),
			zap.Int("records", len(result.Records)),
			zap.Duration("elapsed", result.Elapsed))
	}
	return result
}

// call runs one verifier with its retry policy.
func (o *Orchestrator) call(ctx context.Context, v verifier.Verifier, word types.CandidateWord, onAttempt func(int)) (*types.VerificationRecord, *Absence) {
	name := v.Name()
	policy := o.policy(name)

	for attempt := 0; ; attempt++ {
		if err := o.opts.Limiter.Wait(ctx, name); err != nil {
			if ctx.Err() == nil {
				// No token can arrive before the deadline; give the slot back now
				return nil, &Absence{Verifier: name, Reason: ReasonTimeout, Attempts: attempt, Err: fmt.Errorf("%w: %w", ErrGlobalTimeout, err)}
			}
			return nil, cutOff(ctx, name, attempt, err)
		}

		onAttempt(attempt + 1)
		rec, err := o.attempt(ctx, v, word, policy.Timeout)
		if err == nil {
			return rec, nil
		}
		if ctx.Err() != nil {
			return nil, cutOff(ctx, name, attempt+1, err)
		}

		reason := classify(err)
		if !retryable(err) || attempt >= policy.MaxRetries {
			return nil, &Absence{Verifier: name, Reason: reason, Attempts: attempt + 1, Err: err}
		}

		delay := backoff(policy, attempt)
		o.logger.Debug("retrying verifier",
			zap.String("verifier", name),
			zap.String("word", word.Word),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", delay),
			zap.Error(err))
		if err := o.sleep(ctx, delay); err != nil {
			return nil, cutOff(ctx, name, attempt+1, err)
		}
	}
}

// attempt makes one call bounded by the per-call timeout.
func (o *Orchestrator) attempt(ctx context.Context, v verifier.Verifier, word types.CandidateWord, timeout time.Duration) (*types.VerificationRecord, error) {
	actx, cancel := ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		actx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	rec, err := v.Verify(actx, word)
	if err != nil {
		var timeoutErr *verifier.TimeoutError
		if !errors.As(err, &timeoutErr) && errors.Is(actx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			err = &verifier.TimeoutError{Verifier: v.Name(), After: timeout, Cause: err}
		}
		return nil, err
	}
	if rec == nil {
		return nil, errors.New("verifier returned no record")
	}
	return rec, nil
}

func (o *Orchestrator) policy(name string) Policy {
	if p, ok := o.opts.Policies[name]; ok {
		return p
	}
	return DefaultPolicy()
}

func (o *Orchestrator) logAbsence(word types.CandidateWord, a Absence) {
	fields := []zap.Field{
		zap.String("word", word.Word),
		zap.String("language", word.Language),
		zap.String("verifier", a.Verifier),
		zap.String("reason", string(a.Reason)),
		zap.Int("attempts", a.Attempts),
		zap.Error(a.Err),
	}
	var parseErr *verifier.ParseError
	if errors.As(a.Err, &parseErr) {
		fields = append(fields, zap.String("fingerprint", parseErr.Fingerprint))
	}
	o.logger.Warn("verifier absent", fields...)
}

// cutOff is the absence for a verifier stopped by the orchestration context.
func cutOff(ctx context.Context, name string, attempts int, err error) *Absence {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &Absence{Verifier: name, Reason: ReasonTimeout, Attempts: attempts, Err: ErrGlobalTimeout}
	}
	return &Absence{Verifier: name, Reason: ReasonCancelled, Attempts: attempts, Err: err}
}

func classify(err error) AbsenceReason {
	var (
		parseErr   *verifier.ParseError
		timeoutErr *verifier.TimeoutError
	)
	switch {
	case errors.As(err, &parseErr):
		return ReasonParse
	case errors.As(err, &timeoutErr), errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	case errors.Is(err, context.Canceled):
		return ReasonCancelled
	default:
		return ReasonError
	}
}

// retryable reports whether another attempt may succeed. Parse errors would
// replay the same cached body, and backends can mark errors as permanent.
func retryable(err error) bool {
	var parseErr *verifier.ParseError
	if errors.As(err, &parseErr) || errors.Is(err, verifier.ErrOffline) {
		return false
	}
	var r interface{ Retryable() bool }
	if errors.As(err, &r) {
		return r.Retryable()
	}
	return true
}

// backoff returns the delay before retry number attempt+1: exponential from
// the base, capped, with ±10% jitter.
func backoff(p Policy, attempt int) time.Duration {
	if p.Backoff <= 0 {
		return 0
	}
	delay := p.Backoff * time.Duration(1<<min(attempt, 30))
	if p.MaxBackoff > 0 && (delay > p.MaxBackoff || delay <= 0) {
		delay = p.MaxBackoff
	}

	jitter := int64(float64(delay) * jitterFraction)
	if jitter > 0 {
		//nolint:gosec // math/rand is acceptable for retry jitter timing
		delay += time.Duration(rand.Int64N(2*jitter) - jitter)
	}
	return delay
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

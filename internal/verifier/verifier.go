// Package verifier adapts LLM backends to a uniform etymology judgment capability.
package verifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/shabda-setu/internal/cache"
	"github.com/jonathan/shabda-setu/internal/llm"
	"github.com/jonathan/shabda-setu/internal/prompts"
	"github.com/jonathan/shabda-setu/internal/schemas"
	"github.com/jonathan/shabda-setu/internal/types"
)

// recordNamespace derives verification record IDs from cache fingerprints.
var recordNamespace = uuid.MustParse("6f1c1c2e-7d0b-5b4e-9a43-2a4f5d1e8c10")

// RecordID returns the deterministic record ID for a fingerprint.
func RecordID(fingerprint string) uuid.UUID {
	return uuid.NewSHA1(recordNamespace, []byte(fingerprint))
}

// Verifier produces one etymology judgment for a candidate word.
type Verifier interface {
	Name() string
	Verify(ctx context.Context, word types.CandidateWord) (*types.VerificationRecord, error)
}

// ResponseCache is the subset of the response cache a verifier needs.
type ResponseCache interface {
	GetOrFetch(ctx context.Context, key cache.Key, fetch cache.FetchFunc) (*cache.RawResponse, error)
}

// Judgment is the structured answer a verifier returns.
type Judgment struct {
	IsSanskritDerived bool     `json:"is_sanskrit_derived"`
	SanskritRoot      *string  `json:"sanskrit_root" validate:"required_if=IsSanskritDerived true"`
	Confidence        float64  `json:"confidence" validate:"gte=0,lte=1"`
	Justification     string   `json:"justification"`
	RelatedForms      []string `json:"related_forms"`
}

var validate = validator.New()

// LLMVerifier is a Verifier backed by an llm.Client and the response cache.
type LLMVerifier struct {
	name          string
	client        llm.Client
	cache         ResponseCache
	promptVersion string
	logger        *zap.Logger
}

// NewLLMVerifier creates a verifier named name.
func NewLLMVerifier(name string, client llm.Client, c ResponseCache, logger *zap.Logger) (*LLMVerifier, error) {
	if name == "" {
		return nil, fmt.Errorf("verifier name is required")
	}
	if client == nil || c == nil {
		return nil, fmt.Errorf("verifier %s: client and cache are required", name)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	version, err := prompts.Version(prompts.VerificationFile)
	if err != nil {
		return nil, fmt.Errorf("verifier %s: %w", name, err)
	}

	return &LLMVerifier{
		name:          name,
		client:        client,
		cache:         c,
		promptVersion: version,
		logger:        logger.With(zap.String("verifier", name)),
	}, nil
}

// Name returns the verifier identity used in records, weights and fingerprints.
func (v *LLMVerifier) Name() string {
	return v.name
}

// PromptVersion returns the prompt version baked into this verifier's fingerprints.
func (v *LLMVerifier) PromptVersion() string {
	return v.promptVersion
}

// Close releases the backend client.
func (v *LLMVerifier) Close() error {
	return v.client.Close()
}

// Verify asks the backend (or the cache) for a judgment on word.
func (v *LLMVerifier) Verify(ctx context.Context, word types.CandidateWord) (*types.VerificationRecord, error) {
	prompt, err := buildPrompt(word)
	if err != nil {
		return nil, err
	}

	key := cache.Key{
		Verifier:      v.name,
		Word:          word.Word,
		Language:      word.Language,
		PromptVersion: v.promptVersion,
	}

	started := time.Now()
	raw, err := v.cache.GetOrFetch(ctx, key, func(ctx context.Context) (string, error) {
		return v.client.GenerateJSON(ctx, prompt)
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &TimeoutError{Verifier: v.name, After: time.Since(started), Cause: err}
		}
		return nil, fmt.Errorf("verifier %s: %w", v.name, err)
	}

	record, err := v.parse(raw)
	if err != nil {
		return nil, err
	}

	v.logger.Debug("verified",
		zap.String("word", word.Word),
		zap.String("language", word.Language),
		zap.String("fingerprint", raw.Fingerprint),
		zap.Bool("from_cache", raw.FromCache),
		zap.Bool("rejected", record.Rejected()))
	return record, nil
}

// parse turns a raw response into a VerificationRecord.
func (v *LLMVerifier) parse(raw *cache.RawResponse) (*types.VerificationRecord, error) {
	parseErr := func(msg string, cause error) error {
		return &ParseError{Verifier: v.name, Fingerprint: raw.Fingerprint, Message: msg, Cause: cause}
	}

	cleaned := llm.CleanJSONBlock(raw.Body)
	if cleaned == "" {
		return nil, parseErr("empty response", nil)
	}

	if err := schemas.Validate(schemas.Judgment, []byte(cleaned)); err != nil {
		return nil, parseErr("response does not match judgment schema", err)
	}

	judgment, err := ParseJudgment([]byte(cleaned))
	if err != nil {
		return nil, parseErr("invalid judgment", err)
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, []byte(cleaned)); err != nil {
		return nil, parseErr("response is not valid JSON", err)
	}

	var root *string
	if judgment.IsSanskritDerived {
		r := strings.TrimSpace(*judgment.SanskritRoot)
		root = &r
	}

	return &types.VerificationRecord{
		ID:            RecordID(raw.Fingerprint),
		Verifier:      v.name,
		SanskritRoot:  root,
		Confidence:    judgment.Confidence,
		Justification: json.RawMessage(compact.Bytes()),
		Fingerprint:   raw.Fingerprint,
		VerifiedAt:    raw.CreatedAt,
	}, nil
}

// ParseJudgment decodes and validates a judgment: an accepted judgment must
// carry a non-empty root and confidence must lie in [0,1].
func ParseJudgment(data []byte) (*Judgment, error) {
	var j Judgment
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("failed to decode judgment: %w", err)
	}
	if err := validate.Struct(&j); err != nil {
		return nil, err
	}
	if j.IsSanskritDerived && strings.TrimSpace(*j.SanskritRoot) == "" {
		return nil, fmt.Errorf("accepted judgment has an empty sanskrit_root")
	}
	return &j, nil
}

func buildPrompt(word types.CandidateWord) (string, error) {
	meaning := word.Meaning
	if meaning == "" {
		meaning = "(not given)"
	}
	prompt, err := prompts.Render(prompts.VerificationFile, prompts.VerifyEtymologyKey, map[string]string{
		"Word":      word.Word,
		"Language":  word.Language,
		"Script":    word.Script,
		"Romanized": word.Romanized,
		"Meaning":   meaning,
	})
	if err != nil {
		return "", fmt.Errorf("failed to build prompt: %w", err)
	}
	return prompt, nil
}

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/shabda-setu/internal/cache"
	"github.com/jonathan/shabda-setu/internal/config"
	"github.com/jonathan/shabda-setu/internal/export"
	"github.com/jonathan/shabda-setu/internal/prompts"
	"github.com/jonathan/shabda-setu/internal/types"
	"github.com/jonathan/shabda-setu/internal/verifier"
)

// fakeClient answers every prompt with the same judgment
type fakeClient struct {
	body string
}

func (f *fakeClient) GenerateJSON(context.Context, string) (string, error) { return f.body, nil }
func (f *fakeClient) Model() string                                         { return "fake" }
func (f *fakeClient) Close() error                                          { return nil }

const manushyaJudgment = `{"is_sanskrit_derived": true, "sanskrit_root": "मनुष्य", "confidence": 0.9, "justification": "tatsama"}`

// warmCache stores a judgment from every default verifier so offline runs can replay it
func warmCache(t *testing.T, path string, word types.CandidateWord) {
	t.Helper()
	c, err := cache.Open(path, nil)
	require.NoError(t, err)
	defer c.Close()

	for _, vc := range config.Default().Verifiers {
		v, err := verifier.NewLLMVerifier(vc.Name, &fakeClient{body: manushyaJudgment}, c, nil)
		require.NoError(t, err)
		_, err = v.Verify(context.Background(), word)
		require.NoError(t, err)
	}
}

var manushya = types.CandidateWord{Word: "मनुष्य", Language: "hindi", Script: "devanagari"}

const manushyaSubmission = `{"word": "मनुष्य", "language": "hindi", "meaning": "human"}` + "\n"

func TestCLI_FlagsValidation(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		errorString string
	}{
		{"submit without --in", []string{"submit"}, "required"},
		{"lookup without --language", []string{"lookup", "--word", "x"}, "required"},
		{"demote without --word", []string{"demote", "--language", "hindi"}, "required"},
		{"export without --out", []string{"export"}, "required"},
		{"invalidate without selector", []string{"cache", "invalidate"}, "at least one of the flags"},
		{"invalidate with both selectors", []string{"cache", "invalidate", "--fingerprint", "a", "--prompt-version", "v1"}, "none of the others can be"},
		{"migrate with extra args", []string{"migrate", "up", "now"}, "unknown command"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			useTempCache(t)
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorString)
		})
	}
}

func TestCLI_BinaryRejectsMissingFlags(t *testing.T) {
	binaryPath := getBinaryPath(t)

	cmd := exec.Command(binaryPath, "submit")
	output, err := cmd.CombinedOutput()
	assert.Error(t, err)
	assert.Contains(t, string(output), "required")
}

func TestCLI_MigrateRequiresDatabaseURL(t *testing.T) {
	useTempCache(t)

	_, err := execute(t, "migrate", "version")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestCLI_SubmitPromotesFromWarmCache(t *testing.T) {
	cachePath := useTempCache(t)
	store := useMemoryStore(t)
	warmCache(t, cachePath, manushya)

	in := writeFile(t, "candidates.jsonl", manushyaSubmission+`{"word": "", "language": "hindi"}`+"\n")

	out, err := execute(t, "submit", "--in", in, "--offline")
	require.NoError(t, err)
	assert.Contains(t, out, "VERIFICATION RUN")
	assert.Contains(t, out, "Promoted:   1")
	assert.Contains(t, out, "Failed:     1", "the blank submission is reported")

	accepted, err := store.GetAcceptedWord(context.Background(), "मनुष्य", "hindi")
	require.NoError(t, err)
	require.NotNil(t, accepted)
	assert.Equal(t, "मनुष्य", accepted.Etymology.SanskritRoot)
	assert.Equal(t, "human", accepted.Candidate.Meaning)
	assert.Len(t, accepted.Verifications, len(config.Default().Verifiers))
}

func TestCLI_SubmitOfflineColdCacheStages(t *testing.T) {
	useTempCache(t)
	store := useMemoryStore(t)

	in := writeFile(t, "candidates.jsonl", manushyaSubmission)

	out, err := execute(t, "submit", "--in", in, "--offline")
	require.NoError(t, err)
	assert.Contains(t, out, "Staged:     1")

	staged, err := store.GetStagedWord(context.Background(), "मनुष्य", "hindi")
	require.NoError(t, err)
	require.NotNil(t, staged)
	assert.Equal(t, types.StatusStaged, staged.Status)

	accepted, err := store.GetAcceptedWord(context.Background(), "मनुष्य", "hindi")
	require.NoError(t, err)
	assert.Nil(t, accepted)
}

func TestCLI_SubmitWithoutValidCandidates(t *testing.T) {
	useTempCache(t)
	useMemoryStore(t)

	in := writeFile(t, "candidates.jsonl", `{"word": "मनुष्य", "language": "klingon"}`+"\n")

	_, err := execute(t, "submit", "--in", in, "--offline")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no valid candidates")
}

func TestCLI_LookupAcceptedStagedAndMissing(t *testing.T) {
	cachePath := useTempCache(t)
	useMemoryStore(t)
	warmCache(t, cachePath, manushya)

	in := writeFile(t, "candidates.jsonl", manushyaSubmission+`{"word": "कर्म", "language": "hindi"}`+"\n")
	_, err := execute(t, "submit", "--in", in, "--offline")
	require.NoError(t, err)

	out, err := execute(t, "lookup", "--word", "मनुष्य", "--language", "Hindi")
	require.NoError(t, err)
	assert.Contains(t, out, "ACCEPTED WORD")
	assert.Contains(t, out, "Root:       मनुष्य")

	out, err = execute(t, "lookup", "--word", "कर्म", "--language", "hindi", "--json")
	require.NoError(t, err)
	var staged types.StagedWord
	require.NoError(t, json.Unmarshal([]byte(out), &staged))
	assert.Equal(t, "कर्म", staged.Candidate.Word)
	assert.Equal(t, types.StatusStaged, staged.Status)

	_, err = execute(t, "lookup", "--word", "धर्म", "--language", "hindi")
	var notFound *types.NotFoundError
	require.True(t, errors.As(err, &notFound), "got %v", err)
	assert.Equal(t, "धर्म", notFound.Word)
}

func TestCLI_ExportAndDemote(t *testing.T) {
	cachePath := useTempCache(t)
	store := useMemoryStore(t)
	warmCache(t, cachePath, manushya)

	in := writeFile(t, "candidates.jsonl", manushyaSubmission)
	_, err := execute(t, "submit", "--in", in, "--offline")
	require.NoError(t, err)

	out, err := execute(t, "export", "--out", "-")
	require.NoError(t, err)

	scanner := bufio.NewScanner(strings.NewReader(out))
	var records []export.Record
	for scanner.Scan() {
		var r export.Record
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &r))
		records = append(records, r)
	}
	require.Len(t, records, 1)
	assert.Equal(t, "मनुष्य", records[0].Text)
	assert.Equal(t, "मनुष्य", records[0].Metadata.SanskritRoot)

	dir := t.TempDir()
	out, err = execute(t, "export", "--out", dir, "--split")
	require.NoError(t, err)
	assert.Contains(t, out, "Exported 1 records")
	for _, name := range []string{"train.jsonl", "val.jsonl", "test.jsonl"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}

	out, err = execute(t, "demote", "--word", "मनुष्य", "--language", "hindi")
	require.NoError(t, err)
	assert.Contains(t, out, "Demoted मनुष्य (hindi)")

	accepted, err := store.GetAcceptedWord(context.Background(), "मनुष्य", "hindi")
	require.NoError(t, err)
	assert.Nil(t, accepted)

	_, err = execute(t, "demote", "--word", "मनुष्य", "--language", "hindi")
	var notFound *types.NotFoundError
	assert.True(t, errors.As(err, &notFound))
}

func TestCLI_CacheStatsAndInvalidate(t *testing.T) {
	cachePath := useTempCache(t)
	warmCache(t, cachePath, manushya)
	verifiers := config.Default().Verifiers
	promptVersion, err := prompts.Version(prompts.VerificationFile)
	require.NoError(t, err)

	out, err := execute(t, "cache", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Entries: 3")
	assert.Contains(t, out, verifiers[0].Name)

	fingerprint := cache.Key{
		Verifier:      verifiers[0].Name,
		Word:          manushya.Word,
		Language:      manushya.Language,
		PromptVersion: promptVersion,
	}.Fingerprint()

	out, err = execute(t, "cache", "invalidate", "--fingerprint", fingerprint)
	require.NoError(t, err)
	assert.Contains(t, out, "Invalidated "+fingerprint)

	out, err = execute(t, "cache", "invalidate", "--fingerprint", fingerprint)
	require.NoError(t, err)
	assert.Contains(t, out, "No cached response")

	out, err = execute(t, "cache", "invalidate", "--prompt-version", promptVersion)
	require.NoError(t, err)
	assert.Contains(t, out, "Invalidated 2 responses")
}

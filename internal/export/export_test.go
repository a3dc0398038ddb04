package export

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/jonathan/shabda-setu/internal/config"
	"github.com/jonathan/shabda-setu/internal/db/memory"
	"github.com/jonathan/shabda-setu/internal/types"
)

func rec(verifier, root string) types.VerificationRecord {
	fp := verifier + "|" + root
	r := types.VerificationRecord{
		ID:          uuid.NewSHA1(uuid.NameSpaceOID, []byte(fp)),
		Verifier:    verifier,
		Confidence:  0.9,
		Fingerprint: fp,
		VerifiedAt:  time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	if root != "" {
		r.SanskritRoot = types.StringPtr(root)
	}
	return r
}

func accept(t *testing.T, s *memory.Store, word, language, romanized string, confidence float64, records ...types.VerificationRecord) {
	t.Helper()
	ctx := context.Background()
	staged, err := s.StageWord(ctx, types.CandidateWord{Word: word, Language: language, Script: language, Romanized: romanized})
	require.NoError(t, err)

	e := types.EtymologyRecord{SanskritRoot: "मनुष्य", Confidence: confidence, Outcome: types.OutcomeScored}
	for _, r := range records {
		e.SupportingVerifications = append(e.SupportingVerifications, r.ID)
		if !r.Rejected() {
			e.VerificationCount++
		}
	}
	_, err = s.PromoteWord(ctx, staged, e, records)
	require.NoError(t, err)
}

func newExporter(t *testing.T, s *memory.Store) *Exporter {
	return New(s, Options{Threshold: 0.8, TrainRatio: 0.8, ValRatio: 0.1, Transliteration: true, Logger: zaptest.NewLogger(t)})
}

func readRecords(t *testing.T, data []byte) []Record {
	t.Helper()
	var out []Record
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		var r Record
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &r))
		out = append(out, r)
	}
	return out
}

func TestExport_ThresholdIsStrict(t *testing.T) {
	s := memory.New()
	accept(t, s, "மனுஷ்யன்", "tamil", "manuṣyaṉ", 0.95, rec("a", "मनुष्य"), rec("b", "manushya"), rec("c", ""))
	accept(t, s, "ಮನುಷ್ಯ", "kannada", "manuṣya", 0.8, rec("a", "मनुष्य"), rec("b", "मनुष्य"))

	var buf bytes.Buffer
	stats, err := newExporter(t, s).Export(context.Background(), &buf)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Written)
	records := readRecords(t, buf.Bytes())
	require.Len(t, records, 1)

	r := records[0]
	assert.Equal(t, "மனுஷ்யன்", r.Text)
	assert.Equal(t, []string{"மனுஷ்யன்"}, r.Tokens)
	assert.Equal(t, []string{LabelBegin}, r.Labels)
	assert.Equal(t, "मनुष्य", r.Metadata.SanskritRoot)
	assert.InDelta(t, 0.95, r.Metadata.Confidence, 1e-9)
	assert.Equal(t, "tamil", r.Metadata.Etymology.Language)
	assert.Equal(t, 2, r.Metadata.Etymology.VerificationCount)
	assert.Equal(t, []string{"a", "b"}, r.Metadata.Etymology.Verifiers, "rejecting verifier is not listed")
}

func TestBuildRecord_MultiTokenLabels(t *testing.T) {
	e := newExporter(t, memory.New())
	r := e.BuildRecord(types.AcceptedWord{
		Candidate:  types.CandidateWord{Word: "  धर्म  शास्त्र ", Language: "hindi"},
		Confidence: 0.9,
		Etymology:  types.EtymologyRecord{SanskritRoot: "धर्मशास्त्र", VerificationCount: 2},
	})

	assert.Equal(t, "धर्म शास्त्र", r.Text)
	assert.Equal(t, []string{"धर्म", "शास्त्र"}, r.Tokens)
	assert.Equal(t, []string{LabelBegin, LabelInside}, r.Labels)
	assert.Empty(t, r.Metadata.Etymology.Verifiers)
	assert.NotNil(t, r.Metadata.Etymology.Verifiers)
}

func TestExportSplits(t *testing.T) {
	s := memory.New()
	for i := 0; i < 40; i++ {
		accept(t, s, fmt.Sprintf("धर्म%d", i), "hindi", "dharma", 0.9, rec("a", "धर्म"), rec("b", "धर्म"))
	}
	dir := filepath.Join(t.TempDir(), "out")

	stats, err := newExporter(t, s).ExportSplits(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 40, stats.Written)

	total := 0
	for _, split := range Splits {
		data, err := os.ReadFile(filepath.Join(dir, string(split)+".jsonl"))
		require.NoError(t, err)
		n := len(readRecords(t, data))
		assert.Equal(t, stats.BySplit[split], n)
		total += n

		for _, r := range readRecords(t, data) {
			assert.Equal(t, split, AssignSplit(r.Text, "hindi", 0.8, 0.1))
		}
	}
	assert.Equal(t, 40, total)
	assert.Greater(t, stats.BySplit[SplitTrain], stats.BySplit[SplitTest])
}

func TestAssignSplit(t *testing.T) {
	assert.Equal(t, AssignSplit("धर्म", "hindi", 0.8, 0.1), AssignSplit("धर्म", "hindi", 0.8, 0.1))
	assert.Equal(t, SplitTrain, AssignSplit("धर्म", "hindi", 1.0, 0))
	assert.Equal(t, SplitTest, AssignSplit("धर्म", "hindi", 0, 0))
	assert.Equal(t, SplitVal, AssignSplit("धर्म", "hindi", 0, 1.0))
}

func TestFromConfig(t *testing.T) {
	cfg := config.Default()
	e := FromConfig(cfg, memory.New(), nil)
	assert.Equal(t, cfg.Export.Threshold, e.opts.Threshold)
	assert.Equal(t, cfg.Export.TrainRatio, e.opts.TrainRatio)
}

func TestExport_VerifiersListOnlyEquivalentRoots(t *testing.T) {
	s := memory.New()
	accept(t, s, "മനുഷ്യൻ", "malayalam", "manuṣyan", 0.9, rec("a", "manuṣya"), rec("b", "मानव"), rec("c", "मनुष्य"))

	var buf bytes.Buffer
	_, err := newExporter(t, s).Export(context.Background(), &buf)
	require.NoError(t, err)

	records := readRecords(t, buf.Bytes())
	require.Len(t, records, 1)
	assert.Equal(t, []string{"a", "c"}, records[0].Metadata.Etymology.Verifiers)
}

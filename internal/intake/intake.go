// Package intake turns candidate submissions from scrapers and generators into
// validated CandidateWords.
package intake

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/unicode/norm"

	"github.com/jonathan/shabda-setu/internal/config"
	"github.com/jonathan/shabda-setu/internal/script"
	"github.com/jonathan/shabda-setu/internal/types"
)

// maxLineBytes bounds one JSON Lines record
const maxLineBytes = 1 << 20

// Submission is one JSON Lines record. Script and romanized are optional.
type Submission struct {
	Word      string `json:"word" validate:"required,max=128"`
	Language  string `json:"language" validate:"required"`
	Script    string `json:"script,omitempty"`
	Romanized string `json:"romanized,omitempty" validate:"max=256"`
	Meaning   string `json:"meaning,omitempty" validate:"max=1024"`
	Source    string `json:"source,omitempty"`
}

// Rejection is a submission that did not become a candidate.
type Rejection struct {
	Line   int    `json:"line"`
	Word   string `json:"word,omitempty"`
	Reason string `json:"reason"`
}

func (r Rejection) Error() string {
	if r.Word != "" {
		return fmt.Sprintf("line %d (%s): %s", r.Line, r.Word, r.Reason)
	}
	return fmt.Sprintf("line %d: %s", r.Line, r.Reason)
}

// Result holds the accepted candidates in input order and the rejected lines.
type Result struct {
	Candidates []types.CandidateWord
	Rejected   []Rejection
}

// Intake validates submissions against the configured languages.
type Intake struct {
	languages map[string]bool
	validate  *validator.Validate
}

// New creates an intake accepting the given languages
func New(languages []string) *Intake {
	set := make(map[string]bool, len(languages))
	for _, l := range languages {
		set[strings.ToLower(strings.TrimSpace(l))] = true
	}
	return &Intake{languages: set, validate: validator.New()}
}

// FromConfig creates an intake for the configured languages
func FromConfig(cfg *config.Config) *Intake {
	return New(cfg.Languages)
}

// Normalize validates one submission and fills in defaults: the language's script
// and the IAST romanization of the word.
func (in *Intake) Normalize(s Submission) (types.CandidateWord, error) {
	s.Word = norm.NFC.String(strings.TrimSpace(s.Word))
	s.Language = strings.ToLower(strings.TrimSpace(s.Language))
	s.Script = strings.ToLower(strings.TrimSpace(s.Script))
	s.Romanized = strings.TrimSpace(s.Romanized)
	s.Meaning = strings.TrimSpace(s.Meaning)
	s.Source = strings.TrimSpace(s.Source)

	if err := in.validate.Struct(&s); err != nil {
		return types.CandidateWord{}, fmt.Errorf("invalid submission: %w", err)
	}
	if !in.languages[s.Language] {
		return types.CandidateWord{}, fmt.Errorf("language %q is not configured", s.Language)
	}

	expected, err := script.ForLanguage(s.Language)
	if err != nil {
		return types.CandidateWord{}, err
	}
	if s.Script != "" && s.Script != expected {
		return types.CandidateWord{}, fmt.Errorf("script %q does not match %s (%s)", s.Script, s.Language, expected)
	}
	if detected := script.Detect(s.Word); detected != expected {
		return types.CandidateWord{}, fmt.Errorf("word is written in %s, expected %s", detected, expected)
	}
	if s.Romanized == "" {
		s.Romanized = script.Romanize(s.Word)
	}

	c := types.CandidateWord{
		Word:      s.Word,
		Language:  s.Language,
		Script:    expected,
		Romanized: s.Romanized,
		Meaning:   s.Meaning,
		Source:    s.Source,
	}
	if err := c.Validate(); err != nil {
		return types.CandidateWord{}, fmt.Errorf("invalid candidate: %w", err)
	}
	return c, nil
}

// Read parses JSON Lines submissions. Blank lines are skipped. Malformed,
// invalid and repeated (word, language) lines are rejected without stopping the read.
func (in *Intake) Read(r io.Reader) (*Result, error) {
	result := &Result{}
	seen := make(map[string]int)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		var s Submission
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&s); err != nil {
			result.Rejected = append(result.Rejected, Rejection{Line: line, Reason: fmt.Sprintf("malformed JSON: %v", err)})
			continue
		}

		c, err := in.Normalize(s)
		if err != nil {
			result.Rejected = append(result.Rejected, Rejection{Line: line, Word: s.Word, Reason: err.Error()})
			continue
		}
		if first, dup := seen[c.Key()]; dup {
			result.Rejected = append(result.Rejected, Rejection{Line: line, Word: c.Word, Reason: fmt.Sprintf("duplicate of line %d", first)})
			continue
		}
		seen[c.Key()] = line
		result.Candidates = append(result.Candidates, c)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read submissions: %w", err)
	}
	return result, nil
}

// ReadFile parses a JSON Lines file; "-" reads standard input.
func (in *Intake) ReadFile(path string) (*Result, error) {
	if path == "-" {
		return in.Read(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open submissions: %w", err)
	}
	defer f.Close()
	return in.Read(f)
}

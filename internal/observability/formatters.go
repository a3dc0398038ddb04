// Package observability provides logging setup and formatted output for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/shabda-setu/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// RunStats is the aggregate view of one pipeline run.
type RunStats struct {
	Submitted int
	Promoted  int
	Augmented int
	Staged    int
	Failed    int
	Partial   int
	Absences  map[string]int // reason -> count
	Failures  []string
}

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		// Truncate long lines on rune boundaries; Indic words are multi-byte
		if r := []rune(line); len(r) > boxWidth-4 {
			line = string(r[:boxWidth-7]) + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintRunStats outputs the counts of one pipeline run.
func (p *Printer) PrintRunStats(stats RunStats) {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Submitted:  %d\n", stats.Submitted))
	sb.WriteString(fmt.Sprintf("Promoted:   %d\n", stats.Promoted))
	sb.WriteString(fmt.Sprintf("Augmented:  %d\n", stats.Augmented))
	sb.WriteString(fmt.Sprintf("Staged:     %d\n", stats.Staged))
	sb.WriteString(fmt.Sprintf("Failed:     %d\n", stats.Failed))
	sb.WriteString(fmt.Sprintf("Partial:    %d", stats.Partial))

	if len(stats.Absences) > 0 {
		sb.WriteString("\n\nVerifier absences:\n")
		for _, reason := range []string{"timeout", "parse", "error", "cancelled"} {
			if n := stats.Absences[reason]; n > 0 {
				sb.WriteString(fmt.Sprintf("  • %s: %d\n", reason, n))
			}
		}
	}

	if len(stats.Failures) > 0 {
		sb.WriteString("\nFailures:\n")
		count := min(len(stats.Failures), maxItemsToShow)
		for i := 0; i < count; i++ {
			sb.WriteString(fmt.Sprintf("  • %s\n", stats.Failures[i]))
		}
		if len(stats.Failures) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(stats.Failures)-maxItemsToShow))
		}
	}

	p.printBox("VERIFICATION RUN", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintAcceptedWord outputs an authoritative entry with its etymology.
func (p *Printer) PrintAcceptedWord(word *types.AcceptedWord) {
	if word == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Word:       %s (%s)\n", word.Candidate.Word, word.Candidate.Language))
	sb.WriteString(fmt.Sprintf("Romanized:  %s\n", word.Candidate.Romanized))
	if word.Candidate.Meaning != "" {
		sb.WriteString(fmt.Sprintf("Meaning:    %s\n", word.Candidate.Meaning))
	}
	sb.WriteString(fmt.Sprintf("Root:       %s\n", word.Etymology.SanskritRoot))
	sb.WriteString(fmt.Sprintf("Confidence: %.2f (%d agreeing)\n", word.Confidence, word.Etymology.VerificationCount))

	if len(word.Verifications) > 0 {
		sb.WriteString("\nVerifications:\n")
		count := min(len(word.Verifications), maxItemsToShow)
		for i := 0; i < count; i++ {
			v := word.Verifications[i]
			root := v.Root()
			if v.Rejected() {
				root = "(rejected)"
			}
			sb.WriteString(fmt.Sprintf("  • %s: %s %.2f\n", v.Verifier, root, v.Confidence))
		}
		if len(word.Verifications) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(word.Verifications)-maxItemsToShow))
		}
	}

	p.printBox("ACCEPTED WORD", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintStagedWord outputs a word still waiting in staging.
func (p *Printer) PrintStagedWord(word *types.StagedWord) {
	if word == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Word:       %s (%s)\n", word.Candidate.Word, word.Candidate.Language))
	sb.WriteString(fmt.Sprintf("Status:     %s\n", word.Status))
	if word.Etymology != nil {
		root := word.Etymology.SanskritRoot
		if root == "" {
			root = "(none)"
		}
		sb.WriteString(fmt.Sprintf("Root:       %s\n", root))
		sb.WriteString(fmt.Sprintf("Confidence: %.2f (%s)\n", word.Etymology.Confidence, word.Etymology.Outcome))
		sb.WriteString(fmt.Sprintf("Responding: %d\n", word.Etymology.Responding))
	}
	if word.NeedsReverification {
		sb.WriteString("Flagged for re-verification\n")
	}

	p.printBox("STAGED WORD", strings.TrimSuffix(sb.String(), "\n"))
}

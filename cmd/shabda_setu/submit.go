package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/shabda-setu/internal/intake"
	"github.com/jonathan/shabda-setu/internal/pipeline"
	"github.com/jonathan/shabda-setu/internal/promotion"
)

var submitCommand = &cobra.Command{
	Use:   "submit",
	Short: "Stage candidate words from JSON Lines and verify them",
	Long: `Reads candidate submissions ({"word", "language", "script"?, "romanized"?, "meaning"?, "source"?}
one per line), stages the valid ones, asks every configured verifier for a judgment and
promotes words whose aggregated confidence clears the threshold.`,
	RunE: runSubmit,
}

var (
	submitIn      string
	submitDryRun  bool
	submitOffline bool
)

func init() {
	submitCommand.Flags().StringVarP(&submitIn, "in", "i", "", "Path to candidates JSON Lines file ('-' for stdin)")
	submitCommand.Flags().BoolVar(&submitDryRun, "dry-run", false, "Use an in-memory store instead of PostgreSQL")
	submitCommand.Flags().BoolVar(&submitOffline, "offline", false, "Answer only from the response cache; never call verifiers")
	_ = submitCommand.MarkFlagRequired("in")

	rootCmd.AddCommand(submitCommand)
}

func runSubmit(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, err := loadApp(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer a.close()

	result, err := intake.FromConfig(a.cfg).ReadFile(submitIn)
	if err != nil {
		return err
	}
	for _, r := range result.Rejected {
		a.logger.Warn("Submission rejected", zap.Int("line", r.Line), zap.String("word", r.Word), zap.String("reason", r.Reason))
	}
	if len(result.Candidates) == 0 {
		return fmt.Errorf("no valid candidates in %s (%d rejected)", submitIn, len(result.Rejected))
	}

	rt, err := a.buildRuntime(ctx, submitDryRun, submitOffline, progressPrinter(a))
	if err != nil {
		return err
	}
	defer rt.close()

	summary, err := rt.pipeline.Run(ctx, result.Candidates)
	if summary != nil {
		stats := summary.Stats()
		stats.Submitted += len(result.Rejected)
		stats.Failed += len(result.Rejected)
		for _, r := range result.Rejected {
			stats.Failures = append(stats.Failures, r.Error())
		}
		a.printer.PrintRunStats(stats)
	}
	return err
}

// progressPrinter prints each promoted or augmented word in verbose mode
func progressPrinter(a *app) pipeline.ProgressCallback {
	if !verbose {
		return nil
	}
	return func(e pipeline.ProgressEvent) {
		if e.Step != pipeline.StepProcess {
			return
		}
		outcome, ok := e.Content.(*promotion.Outcome)
		if !ok || outcome.Accepted == nil {
			return
		}
		a.printer.PrintAcceptedWord(outcome.Accepted)
	}
}


package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

var reverifyCommand = &cobra.Command{
	Use:   "reverify",
	Short: "Re-run verification for staged words whose last orchestration was cut short",
	RunE:  runReverify,
}

var (
	reverifyLimit   int
	reverifyOffline bool
)

func init() {
	reverifyCommand.Flags().IntVar(&reverifyLimit, "limit", 100, "Maximum number of words to re-verify")
	reverifyCommand.Flags().BoolVar(&reverifyOffline, "offline", false, "Answer only from the response cache; never call verifiers")

	rootCmd.AddCommand(reverifyCommand)
}

func runReverify(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, err := loadApp(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer a.close()

	rt, err := a.buildRuntime(ctx, false, reverifyOffline, progressPrinter(a))
	if err != nil {
		return err
	}
	defer rt.close()

	summary, err := rt.pipeline.Reverify(ctx, reverifyLimit)
	if summary != nil {
		a.printer.PrintRunStats(summary.Stats())
	}
	return err
}

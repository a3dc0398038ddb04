package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/shabda-setu/internal/export"
)

var exportCommand = &cobra.Command{
	Use:   "export",
	Short: "Write accepted words above the export threshold as BIO-labelled JSON Lines",
	RunE:  runExport,
}

var (
	exportOut   string
	exportSplit bool
)

func init() {
	exportCommand.Flags().StringVarP(&exportOut, "out", "o", "", "Output file, or directory with --split ('-' for stdout)")
	exportCommand.Flags().BoolVar(&exportSplit, "split", false, "Write train.jsonl, val.jsonl and test.jsonl into the output directory")
	_ = exportCommand.MarkFlagRequired("out")

	rootCmd.AddCommand(exportCommand)
}

func runExport(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	a, err := loadApp(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer a.close()

	store, cleanup, err := openStore(ctx, a.cfg, false)
	if err != nil {
		return err
	}
	defer cleanup()

	exporter := export.FromConfig(a.cfg, store, a.logger)

	var stats *export.Stats
	switch {
	case exportSplit:
		if exportOut == "-" {
			return fmt.Errorf("--split needs a directory, not stdout")
		}
		stats, err = exporter.ExportSplits(ctx, exportOut)
	case exportOut == "-":
		stats, err = exporter.Export(ctx, cmd.OutOrStdout())
	default:
		stats, err = exportToFile(ctx, exporter, exportOut)
	}
	if err != nil {
		return err
	}

	a.logger.Info("Export complete",
		zap.Int("written", stats.Written),
		zap.Int("skipped", stats.Skipped),
		zap.String("out", exportOut))
	if exportOut != "-" {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Exported %d records to %s\n", stats.Written, exportOut)
	}
	return nil
}

func exportToFile(ctx context.Context, exporter *export.Exporter, path string) (*export.Stats, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	stats, err := exporter.Export(ctx, f)
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("failed to close %s: %w", path, closeErr)
	}
	return stats, err
}

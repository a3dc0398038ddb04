package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/shabda-setu/internal/promotion"
	"github.com/jonathan/shabda-setu/internal/scoring"
)

var demoteCommand = &cobra.Command{
	Use:   "demote",
	Short: "Remove a word from the authoritative store and return it to staging",
	Long: `Demotion is an administrative action. The pipeline never demotes a word on its own,
even when newer evidence scores lower.`,
	RunE: runDemote,
}

var (
	demoteWord     string
	demoteLanguage string
)

func init() {
	demoteCommand.Flags().StringVarP(&demoteWord, "word", "w", "", "Word to demote")
	demoteCommand.Flags().StringVarP(&demoteLanguage, "language", "l", "", "Language of the word")
	_ = demoteCommand.MarkFlagRequired("word")
	_ = demoteCommand.MarkFlagRequired("language")

	rootCmd.AddCommand(demoteCommand)
}

func runDemote(cmd *cobra.Command, _ []string) error {
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

	word := strings.TrimSpace(demoteWord)
	language := strings.ToLower(strings.TrimSpace(demoteLanguage))
	engine := promotion.New(store, scoring.FromConfig(a.cfg), a.logger)
	if err := engine.Demote(ctx, word, language); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Demoted %s (%s)\n", word, language)
	return nil
}

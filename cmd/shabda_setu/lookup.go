package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/shabda-setu/internal/types"
)

var lookupCommand = &cobra.Command{
	Use:   "lookup",
	Short: "Show the accepted etymology of a word, or its staging state",
	RunE:  runLookup,
}

var (
	lookupWord     string
	lookupLanguage string
	lookupJSON     bool
)

func init() {
	lookupCommand.Flags().StringVarP(&lookupWord, "word", "w", "", "Word to look up")
	lookupCommand.Flags().StringVarP(&lookupLanguage, "language", "l", "", "Language of the word")
	lookupCommand.Flags().BoolVar(&lookupJSON, "json", false, "Print JSON instead of a summary box")
	_ = lookupCommand.MarkFlagRequired("word")
	_ = lookupCommand.MarkFlagRequired("language")

	rootCmd.AddCommand(lookupCommand)
}

func runLookup(cmd *cobra.Command, _ []string) error {
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

	word := strings.TrimSpace(lookupWord)
	language := strings.ToLower(strings.TrimSpace(lookupLanguage))

	accepted, err := store.GetAcceptedWord(ctx, word, language)
	if err != nil {
		return err
	}
	if accepted != nil {
		if lookupJSON {
			return printJSON(cmd, accepted)
		}
		a.printer.PrintAcceptedWord(accepted)
		return nil
	}

	staged, err := store.GetStagedWord(ctx, word, language)
	if err != nil {
		return err
	}
	if staged == nil {
		return &types.NotFoundError{Word: word, Language: language}
	}
	if lookupJSON {
		return printJSON(cmd, staged)
	}
	a.printer.PrintStagedWord(staged)
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

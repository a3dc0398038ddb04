// Package main provides the shabda_setu command line: candidate intake, verification,
// promotion, lookup and training export for the Sanskrit-derived vocabulary store.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "shabda_setu",
	Short: "Verify Sanskrit etymologies of Indic words with independent LLM verifiers",
	Long: `shabda_setu stages candidate words, asks every configured LLM verifier for the word's
Sanskrit root, reconciles the judgments into one confidence score and promotes words that
clear the threshold into the authoritative store.`,
	SilenceUsage: true,
}

var (
	configPath string
	verbose    bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.yaml (defaults are used when omitted)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Print detailed debug information")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

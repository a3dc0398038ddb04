package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/jonathan/shabda-setu/internal/cache"
)

var cacheCommand = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or invalidate cached verifier responses",
}

var cacheInvalidateCommand = &cobra.Command{
	Use:   "invalidate",
	Short: "Remove one response by fingerprint, or every response of a prompt version",
	Args:  cobra.NoArgs,
	RunE:  runCacheInvalidate,
}

var cacheStatsCommand = &cobra.Command{
	Use:   "stats",
	Short: "Count cached responses per verifier and prompt version",
	Args:  cobra.NoArgs,
	RunE:  runCacheStats,
}

var (
	invalidateFingerprint   string
	invalidatePromptVersion string
)

func init() {
	cacheInvalidateCommand.Flags().StringVar(&invalidateFingerprint, "fingerprint", "", "Fingerprint of the response to remove")
	cacheInvalidateCommand.Flags().StringVar(&invalidatePromptVersion, "prompt-version", "", "Remove every response produced by this prompt version")
	cacheInvalidateCommand.MarkFlagsMutuallyExclusive("fingerprint", "prompt-version")
	cacheInvalidateCommand.MarkFlagsOneRequired("fingerprint", "prompt-version")

	cacheCommand.AddCommand(cacheInvalidateCommand)
	cacheCommand.AddCommand(cacheStatsCommand)
	rootCmd.AddCommand(cacheCommand)
}

func openCache(cmd *cobra.Command) (*app, *cache.Cache, error) {
	a, err := loadApp(cmd.OutOrStdout())
	if err != nil {
		return nil, nil, err
	}
	c, err := cache.Open(a.cfg.Cache.Path, a.logger)
	if err != nil {
		a.close()
		return nil, nil, err
	}
	return a, c, nil
}

func runCacheInvalidate(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	a, c, err := openCache(cmd)
	if err != nil {
		return err
	}
	defer a.close()
	defer c.Close()

	if invalidateFingerprint != "" {
		removed, err := c.Invalidate(ctx, invalidateFingerprint)
		if err != nil {
			return err
		}
		if !removed {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "No cached response for %s\n", invalidateFingerprint)
			return nil
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Invalidated %s\n", invalidateFingerprint)
		return nil
	}

	n, err := c.InvalidatePromptVersion(ctx, invalidatePromptVersion)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Invalidated %d responses for prompt version %s\n", n, invalidatePromptVersion)
	return nil
}

func runCacheStats(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	a, c, err := openCache(cmd)
	if err != nil {
		return err
	}
	defer a.close()
	defer c.Close()

	stats, err := c.Stats(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Entries: %d\n", stats.Entries)
	printCounts(cmd, "By verifier", stats.ByVerifier)
	printCounts(cmd, "By prompt version", stats.PromptVersions)
	return nil
}

func printCounts(cmd *cobra.Command, title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "%s:\n", title)
	for _, k := range keys {
		_, _ = fmt.Fprintf(out, "  %-24s %d\n", k, counts[k])
	}
}

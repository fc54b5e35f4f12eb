package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/library-engine/internal/engine"
	"github.com/pdiddy/library-engine/pkg/types"
)

var searchCmd = &cobra.Command{
	Use:   "search [query...]",
	Short: "Search all providers for matching books",
	Long: `Search queries every configured provider concurrently and prints the
extracted records. A provider that fails (offline, bad credentials) is
reported as a warning; the remaining providers' results still appear.`,
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().String("provider", "", "search a single provider (zlib, annas, libgen)")
	searchCmd.Flags().Int("max-results", 0, "maximum number of records per provider")
	searchCmd.Flags().Bool("json", false, "output results as JSON")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.TrimSpace(strings.Join(args, " "))
	if query == "" {
		return fmt.Errorf("provide a search query")
	}

	providerName, _ := cmd.Flags().GetString("provider")
	providers, err := selectProviders(providerName)
	if err != nil {
		return err
	}

	if maxResults, _ := cmd.Flags().GetInt("max-results"); maxResults > 0 {
		viper.Set("search.max_results", maxResults)
	}

	eng, cat, err := newEngine(providers)
	if err != nil {
		return err
	}
	defer cat.Close()

	results, err := eng.Search(cmd.Context(), query)
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return engine.FormatJSON(results, os.Stdout)
	}
	engine.FormatTable(results, os.Stdout)

	if allProvidersFailed(results) {
		return fmt.Errorf("all providers failed")
	}
	return nil
}

func allProvidersFailed(results map[types.ProviderID]engine.ProviderResult) bool {
	for _, res := range results {
		if res.Err == nil {
			return false
		}
	}
	return len(results) > 0
}

package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/library-engine/internal/download"
	"github.com/pdiddy/library-engine/internal/engine"
)

var downloadCmd = &cobra.Command{
	Use:   "download [query...]",
	Short: "Search for a book and download the chosen result",
	Long: `Download searches the providers, picks one record (the first by default,
or the one selected with --pick), and acquires it. Candidate mirrors are
tried in order; a metadata sidecar is written next to the file.`,
	RunE: runDownload,
}

func init() {
	downloadCmd.Flags().String("provider", "", "restrict the search to one provider (zlib, annas, libgen)")
	downloadCmd.Flags().Int("pick", 1, "1-based index of the search result to download")
	downloadCmd.Flags().String("output", "", "destination directory (default from config)")
	downloadCmd.Flags().String("metadata", "", "sidecar format: json, yaml, or txt")

	rootCmd.AddCommand(downloadCmd)
}

func runDownload(cmd *cobra.Command, args []string) error {
	query := strings.TrimSpace(strings.Join(args, " "))
	if query == "" {
		return fmt.Errorf("provide a search query")
	}

	providerName, _ := cmd.Flags().GetString("provider")
	providers, err := selectProviders(providerName)
	if err != nil {
		return err
	}

	if output, _ := cmd.Flags().GetString("output"); output != "" {
		viper.Set("download.dir", output)
	}
	if metadata, _ := cmd.Flags().GetString("metadata"); metadata != "" {
		viper.Set("download.metadata_format", metadata)
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

	records := engine.Flatten(results)
	if len(records) == 0 {
		if allProvidersFailed(results) {
			return fmt.Errorf("all providers failed")
		}
		return fmt.Errorf("no results for %q", query)
	}

	pick, _ := cmd.Flags().GetInt("pick")
	if pick < 1 || pick > len(records) {
		return fmt.Errorf("--pick %d out of range: %d results", pick, len(records))
	}
	record := records[pick-1]

	fmt.Fprintf(os.Stdout, "Downloading %q from %s (%d candidate locations)\n",
		record.Title, record.Provider, len(record.SourceLocations))

	artifact, attempts, err := eng.Download(cmd.Context(), record)
	if err != nil {
		var exhausted *download.ExhaustedError
		if errors.As(err, &exhausted) {
			fmt.Fprintln(os.Stderr, "All download locations failed:")
			for _, a := range exhausted.Attempts {
				fmt.Fprintf(os.Stderr, "  [%d] %s: %v\n", a.Index+1, a.Location, a.Err)
			}
		}
		return err
	}

	for _, a := range attempts {
		if a.Status == download.StatusFailed {
			fmt.Fprintf(os.Stdout, "location %d failed: %v\n", a.Index+1, a.Err)
		}
	}
	fmt.Fprintf(os.Stdout, "Saved %s\n", artifact.LocalPath)
	if artifact.SidecarPath != "" {
		fmt.Fprintf(os.Stdout, "Metadata %s\n", artifact.SidecarPath)
	}
	return nil
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/library-engine/internal/catalog"
	"github.com/pdiddy/library-engine/pkg/types"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect the local acquisition history",
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List acquired files, newest first",
	RunE:  runCatalogList,
}

var catalogFindCmd = &cobra.Command{
	Use:   "find <title-substring>",
	Short: "Find acquired files by title",
	Args:  cobra.ExactArgs(1),
	RunE:  runCatalogFind,
}

var catalogHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent searches",
	RunE:  runCatalogHistory,
}

func init() {
	catalogHistoryCmd.Flags().Int("limit", 20, "number of searches to show (0 for all)")

	catalogCmd.AddCommand(catalogListCmd, catalogFindCmd, catalogHistoryCmd)
	rootCmd.AddCommand(catalogCmd)
}

func openCatalog() (*catalog.Store, error) {
	return catalog.NewStore(engineConfig().Catalog, logger)
}

func runCatalogList(cmd *cobra.Command, args []string) error {
	cat, err := openCatalog()
	if err != nil {
		return err
	}
	defer cat.Close()

	artifacts, err := cat.ListArtifacts(cmd.Context())
	if err != nil {
		return err
	}
	printArtifacts(artifacts)
	return nil
}

func runCatalogFind(cmd *cobra.Command, args []string) error {
	cat, err := openCatalog()
	if err != nil {
		return err
	}
	defer cat.Close()

	artifacts, err := cat.FindArtifacts(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	printArtifacts(artifacts)
	return nil
}

func runCatalogHistory(cmd *cobra.Command, args []string) error {
	cat, err := openCatalog()
	if err != nil {
		return err
	}
	defer cat.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	events, err := cat.SearchHistory(cmd.Context(), limit)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Fprintln(os.Stdout, "No recorded searches.")
		return nil
	}
	for _, e := range events {
		fmt.Fprintf(os.Stdout, "%s  %-8s  %3d hits  %s\n",
			e.SearchedAt.Local().Format("2006-01-02 15:04"), e.Provider, e.Hits, e.Query)
	}
	return nil
}

func printArtifacts(artifacts []types.AcquiredArtifact) {
	if len(artifacts) == 0 {
		fmt.Fprintln(os.Stdout, "No acquired files.")
		return
	}
	for _, a := range artifacts {
		year := ""
		if a.Record.Year != 0 {
			year = fmt.Sprintf(" (%d)", a.Record.Year)
		}
		fmt.Fprintf(os.Stdout, "%s  %-8s  %s%s\n    %s\n",
			a.AcquiredAt.Local().Format("2006-01-02 15:04"),
			a.Record.Provider, a.Record.Title, year, a.LocalPath)
	}
}

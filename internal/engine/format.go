// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pdiddy/library-engine/pkg/types"
)

// FormatTable writes search results as a human-readable table, one block of
// rows across all providers, with failed providers reported at the end.
func FormatTable(results map[types.ProviderID]ProviderResult, w io.Writer) {
	records := Flatten(results)

	if len(records) == 0 {
		fmt.Fprintln(w, "No results found.")
	} else {
		fmt.Fprintf(w, "%-4s  %-50s  %-24s  %-4s  %-6s  %-9s  %s\n",
			"#", "Title", "Authors", "Year", "Format", "Size", "Provider")
		fmt.Fprintln(w, strings.Repeat("-", 112))

		for i, r := range records {
			year := ""
			if r.Year != 0 {
				year = fmt.Sprintf("%d", r.Year)
			}
			fmt.Fprintf(w, "%-4d  %-50s  %-24s  %-4s  %-6s  %-9s  %s\n",
				i+1, truncate(r.Title, 50), formatAuthors(r.Authors), year,
				r.Format, formatSize(r.SizeBytes), r.Provider)
		}
		fmt.Fprintf(w, "\n%d results\n", len(records))
	}

	for _, id := range types.AllProviders {
		if res, ok := results[id]; ok && res.Err != nil {
			fmt.Fprintf(w, "warning: %s failed: %v\n", id, res.Err)
		}
	}
}

// FormatJSON writes the flattened results as indented JSON.
func FormatJSON(results map[types.ProviderID]ProviderResult, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(Flatten(results))
}

func formatAuthors(authors []string) string {
	switch len(authors) {
	case 0:
		return ""
	case 1:
		return truncate(authors[0], 24)
	default:
		return truncate(authors[0], 18) + " et al."
	}
}

// formatSize renders a byte count in the largest fitting unit.
func formatSize(n int64) string {
	switch {
	case n <= 0:
		return ""
	case n < 1024:
		return fmt.Sprintf("%d B", n)
	case n < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(n)/1024)
	case n < 1024*1024*1024:
		return fmt.Sprintf("%.1f MB", float64(n)/(1024*1024))
	default:
		return fmt.Sprintf("%.1f GB", float64(n)/(1024*1024*1024))
	}
}

// truncate shortens on rune boundaries so multi-byte titles stay valid
// UTF-8.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}

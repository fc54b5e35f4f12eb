// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extract converts raw provider HTML into structured Records using a
// declarative cascade of extraction rules.
//
// Extraction is a pure function of the document and the rule set: the same
// inputs always produce the same ordered output. Untrusted, malformed markup
// never raises; heuristics that find nothing yield an empty result instead.
package extract

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/pdiddy/library-engine/pkg/types"
)

// knownFormats is the fixed set of recognized book file extensions.
var knownFormats = map[string]bool{
	"PDF": true, "EPUB": true, "MOBI": true, "TXT": true,
	"DOC": true, "DOCX": true, "AZW3": true, "DJVU": true, "FB2": true,
}

var (
	yearTokenPattern = regexp.MustCompile(`\b(\d{4})\b`)
	sizePattern      = regexp.MustCompile(`(?i)\b(\d+(?:[.,]\d+)?)\s*(KB|MB|GB)\b`)
)

const minYear = 1400

// Extract segments the document into record containers using the rule set's
// container cascade, then resolves each field through its strategy cascade.
// Containers without a title are silently dropped and do not count against
// limit; the first limit valid records are returned in document order. A
// limit <= 0 means unbounded.
func Extract(doc *goquery.Document, base *url.URL, rules RuleSet, provider types.ProviderID, limit int) []types.Record {
	containers := segment(doc, rules)
	if containers == nil {
		return nil
	}

	var records []types.Record
	containers.EachWithBreak(func(_ int, container *goquery.Selection) bool {
		rec, ok := extractOne(container, base, rules, provider)
		if !ok {
			return true
		}
		records = append(records, rec)
		return limit <= 0 || len(records) < limit
	})
	return records
}

// segment runs the container cascade: the first strategy producing at least
// one container wins.
func segment(doc *goquery.Document, rules RuleSet) *goquery.Selection {
	for _, strategy := range rules.Containers {
		sel := strategy.Select(doc)
		if sel != nil && sel.Length() > 0 {
			return sel
		}
	}
	return nil
}

func extractOne(container *goquery.Selection, base *url.URL, rules RuleSet, provider types.ProviderID) (types.Record, bool) {
	rec := types.Record{Provider: provider}

	for _, rule := range rules.Fields {
		raw := resolveField(container, rule)
		if raw == "" {
			continue
		}
		applyField(&rec, rule.Field, raw)
	}

	if rec.Title == "" {
		return types.Record{}, false
	}

	for _, strategy := range rules.Locations {
		if locs := strategy.ResolveAll(container, base); len(locs) > 0 {
			rec.SourceLocations = locs
			break
		}
	}

	return rec, true
}

// resolveField tries the field's strategies in priority order; the first
// non-empty match wins (cascading fallback, not merge).
func resolveField(container *goquery.Selection, rule FieldRule) string {
	for _, strategy := range rule.Strategies {
		if v := strategy.Resolve(container); v != "" {
			return v
		}
	}
	return ""
}

// applyField normalizes a raw match into the record. Values that fail
// validation (a year out of range, an unknown format) are dropped rather
// than stored wrong.
func applyField(rec *types.Record, field Field, raw string) {
	switch field {
	case FieldTitle:
		rec.Title = cleanText(raw)
	case FieldAuthors:
		rec.Authors = splitAuthors(raw)
	case FieldYear:
		if y, ok := parseYear(raw); ok {
			rec.Year = y
		}
	case FieldFormat:
		if f, ok := normalizeFormat(raw); ok {
			rec.Format = f
		}
	case FieldSize:
		if n, ok := parseSize(raw); ok {
			rec.SizeBytes = n
		}
	case FieldLanguage:
		rec.Language = cleanText(raw)
	case FieldPublisher:
		rec.Publisher = cleanText(raw)
	}
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// splitAuthors breaks a provider's author string on semicolons, the common
// multi-author delimiter across providers.
func splitAuthors(raw string) []string {
	var authors []string
	for _, part := range strings.Split(raw, ";") {
		if a := cleanText(part); a != "" {
			authors = append(authors, a)
		}
	}
	return authors
}

// parseYear finds the first 4-digit token within [1400, current year + 1].
func parseYear(raw string) (int, bool) {
	maxYear := time.Now().Year() + 1
	for _, m := range yearTokenPattern.FindAllStringSubmatch(raw, -1) {
		y, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if y >= minYear && y <= maxYear {
			return y, true
		}
	}
	return 0, false
}

// normalizeFormat upper-cases the value and accepts only known extensions.
func normalizeFormat(raw string) (string, bool) {
	f := strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(raw), "."))
	if knownFormats[f] {
		return f, true
	}
	return "", false
}

// parseSize converts "<number><unit>" with unit in {KB, MB, GB} to bytes.
func parseSize(raw string) (int64, bool) {
	m := sizePattern.FindStringSubmatch(raw)
	if m == nil {
		return 0, false
	}
	value, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
	if err != nil {
		return 0, false
	}
	switch strings.ToUpper(m[2]) {
	case "KB":
		return int64(value * 1024), true
	case "MB":
		return int64(value * 1024 * 1024), true
	case "GB":
		return int64(value * 1024 * 1024 * 1024), true
	}
	return 0, false
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package download

import (
	"strings"
	"unicode"

	"github.com/pdiddy/library-engine/pkg/types"
)

// PredictFilename derives an advisory filename from the record title: keep
// letters, digits, whitespace, and hyphens; collapse whitespace/hyphen runs
// to a single underscore; append the lower-cased format extension ("pdf"
// when the format is unknown). Actual completion detection still prefers the
// transport's own filename; the prediction is a secondary matching signal
// for the polling fallback.
func PredictFilename(record types.Record) string {
	var b strings.Builder
	for _, r := range record.Title {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) || r == '-' {
			b.WriteRune(r)
		}
	}

	var stem strings.Builder
	inRun := false
	for _, r := range b.String() {
		if unicode.IsSpace(r) || r == '-' {
			if !inRun && stem.Len() > 0 {
				stem.WriteByte('_')
			}
			inRun = true
			continue
		}
		inRun = false
		stem.WriteRune(r)
	}

	name := strings.TrimSuffix(stem.String(), "_")
	if name == "" {
		name = "download"
	}

	ext := strings.ToLower(record.Format)
	if ext == "" {
		ext = "pdf"
	}
	return name + "." + ext
}

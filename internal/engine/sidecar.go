// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/library-engine/internal/download"
	"github.com/pdiddy/library-engine/pkg/types"
)

// NewSidecarWriter returns a writer that drops a metadata file next to each
// completed artifact, named <stem>_metadata.<ext>. Unknown formats fall back
// to JSON.
func NewSidecarWriter(format types.MetadataFormat) download.SidecarWriter {
	return func(record types.Record, artifactPath string) (string, error) {
		return WriteSidecar(record, artifactPath, format)
	}
}

// WriteSidecar serializes the record next to the artifact and returns the
// sidecar path.
func WriteSidecar(record types.Record, artifactPath string, format types.MetadataFormat) (string, error) {
	stem := strings.TrimSuffix(artifactPath, filepath.Ext(artifactPath))

	var (
		data []byte
		err  error
		ext  string
	)
	switch format {
	case types.MetadataYAML:
		ext = "yaml"
		data, err = yaml.Marshal(record)
	case types.MetadataText:
		ext = "txt"
		data = []byte(recordAsText(record))
	default:
		ext = "json"
		data, err = json.MarshalIndent(record, "", "  ")
	}
	if err != nil {
		return "", fmt.Errorf("serializing metadata: %w", err)
	}

	sidecarPath := fmt.Sprintf("%s_metadata.%s", stem, ext)
	if err := os.WriteFile(sidecarPath, data, 0o644); err != nil {
		return "", fmt.Errorf("writing sidecar: %w", err)
	}
	return sidecarPath, nil
}

// recordAsText renders the record as plain key-value lines, omitting empty
// fields.
func recordAsText(record types.Record) string {
	var b strings.Builder
	write := func(key, value string) {
		if value != "" {
			fmt.Fprintf(&b, "%s: %s\n", key, value)
		}
	}

	write("Title", record.Title)
	write("Authors", strings.Join(record.Authors, "; "))
	if record.Year != 0 {
		write("Year", fmt.Sprintf("%d", record.Year))
	}
	write("Format", record.Format)
	if record.SizeBytes != 0 {
		write("Size", fmt.Sprintf("%d bytes", record.SizeBytes))
	}
	write("Language", record.Language)
	write("Publisher", record.Publisher)
	write("Provider", string(record.Provider))
	for _, loc := range record.SourceLocations {
		write("Source", loc)
	}
	return b.String()
}

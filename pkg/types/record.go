// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the library-engine
// acquisition pipeline: providers, extracted records, credentials, and
// acquired artifacts, plus the per-stage configuration structs.
package types

import (
	"fmt"
	"time"
)

// ProviderID identifies one external content source. It is the stable key
// into the session manager, the credential vault, and the extraction rule
// sets.
type ProviderID string

const (
	ProviderZLib   ProviderID = "zlib"
	ProviderAnnas  ProviderID = "annas"
	ProviderLibGen ProviderID = "libgen"
)

// AllProviders lists the known providers in display order.
var AllProviders = []ProviderID{ProviderZLib, ProviderAnnas, ProviderLibGen}

// ParseProvider validates a provider name from user input.
func ParseProvider(s string) (ProviderID, error) {
	for _, p := range AllProviders {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown provider %q (known: zlib, annas, libgen)", s)
}

// Record is one structured search hit extracted from a provider's document.
// Title is the only mandatory field; extraction discards candidates without
// one. Records are immutable once produced.
type Record struct {
	// Provider identifies the source the record was extracted from.
	Provider ProviderID `json:"provider" yaml:"provider"`

	// Title is the book title. Never empty.
	Title string `json:"title" yaml:"title"`

	// Authors lists the authors in document order, when found.
	Authors []string `json:"authors,omitempty" yaml:"authors,omitempty"`

	// Year is the publication year, or 0 when absent. When present it is a
	// four-digit year within [1400, current year + 1]; malformed years are
	// dropped at extraction time, never stored wrong.
	Year int `json:"year,omitempty" yaml:"year,omitempty"`

	// Format is the file format, upper-cased (e.g. "PDF", "EPUB"), or empty.
	Format string `json:"format,omitempty" yaml:"format,omitempty"`

	// SizeBytes is the reported file size in bytes, or 0 when absent.
	SizeBytes int64 `json:"size_bytes,omitempty" yaml:"size_bytes,omitempty"`

	// Language is the reported language, or empty.
	Language string `json:"language,omitempty" yaml:"language,omitempty"`

	// Publisher is the reported publisher, or empty.
	Publisher string `json:"publisher,omitempty" yaml:"publisher,omitempty"`

	// SourceLocations holds candidate download URIs in provider-reported
	// priority order. The download engine attempts them strictly in order.
	SourceLocations []string `json:"source_locations,omitempty" yaml:"source_locations,omitempty"`
}

// Credential holds one provider's login pair. The secret is never stored or
// logged in plaintext; at rest both fields live encrypted in the vault.
type Credential struct {
	Provider ProviderID
	Username string
	Secret   string
}

// AcquiredArtifact describes a completed download: the record it came from,
// the final artifact path, and the metadata sidecar written next to it. The
// sidecar, if present, always pairs with an existing artifact file.
type AcquiredArtifact struct {
	Record      Record    `json:"record" yaml:"record"`
	LocalPath   string    `json:"local_path" yaml:"local_path"`
	SidecarPath string    `json:"sidecar_path,omitempty" yaml:"sidecar_path,omitempty"`
	AcquiredAt  time.Time `json:"acquired_at" yaml:"acquired_at"`
}

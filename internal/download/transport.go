// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package download

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"

	"github.com/pdiddy/library-engine/internal/httputil"
)

// HTTPTransport streams a resolved URL to a temporary file in the
// destination directory. It reports direct completion: when Fetch returns
// without error the bytes are fully on disk.
type HTTPTransport struct {
	Client    *http.Client
	UserAgent string
}

// Fetch downloads rawURL into a temp file under destDir. On any error the
// partial file is deleted before returning. The transport-reported filename
// is taken from Content-Disposition when present.
func (t *HTTPTransport) Fetch(ctx context.Context, rawURL, destDir string) (Fetched, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Fetched{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", t.UserAgent)

	resp, err := httputil.DoWithRetry(ctx, t.Client, req, 0)
	if err != nil {
		return Fetched{}, fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Fetched{}, fmt.Errorf("HTTP %d from %s", resp.StatusCode, rawURL)
	}

	tmpFile, err := os.CreateTemp(destDir, ".download-*.tmp")
	if err != nil {
		return Fetched{}, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, copyErr := io.Copy(tmpFile, resp.Body)
	closeErr := tmpFile.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return Fetched{}, fmt.Errorf("writing download: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return Fetched{}, fmt.Errorf("closing temp file: %w", closeErr)
	}

	return Fetched{
		Path:     tmpPath,
		Filename: dispositionFilename(resp.Header.Get("Content-Disposition")),
		Direct:   true,
	}, nil
}

// dispositionFilename extracts the filename parameter from a
// Content-Disposition header, or returns "".
func dispositionFilename(header string) string {
	if header == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	return params["filename"]
}

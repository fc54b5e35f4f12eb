// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package download

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// partialSuffixes marks in-progress transfer files that the poll must never
// accept as a completed download.
var partialSuffixes = []string{".crdownload", ".part", ".tmp", ".download"}

// WaitForDownload polls dir until a completed download appears, checking
// every interval up to timeout. A file matches if it has the predicted name,
// or if it was modified within recentWindow and is not a partial-transfer
// marker.
//
// This is a documented fallback for transports that cannot report completion
// in-band. The recency heuristic is inherently racy when multiple downloads
// share one directory; callers must not run concurrent polled downloads into
// the same dir.
func WaitForDownload(ctx context.Context, dir, predicted string, interval, timeout, recentWindow time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)

	for {
		if path := scanForDownload(dir, predicted, recentWindow); path != "" {
			return path, nil
		}

		if time.Now().After(deadline) {
			return "", fmt.Errorf("no completed download in %s after %v", dir, timeout)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(interval):
		}
	}
}

func scanForDownload(dir, predicted string, recentWindow time.Duration) string {
	if predicted != "" {
		predictedPath := filepath.Join(dir, predicted)
		if info, err := os.Stat(predictedPath); err == nil && !info.IsDir() {
			return predictedPath
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	for _, entry := range entries {
		if entry.IsDir() || isPartial(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if time.Since(info.ModTime()) < recentWindow {
			return filepath.Join(dir, entry.Name())
		}
	}
	return ""
}

func isPartial(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	for _, suffix := range partialSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

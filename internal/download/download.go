// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package download drives a record's acquisition across its candidate mirror
// locations, with failure recovery and completion detection.
//
// Locations are attempted strictly in provider-reported order; a location is
// skipped only on its own terminal failure. Partial files never survive a
// failed or cancelled attempt.
package download

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/library-engine/pkg/types"
)

const defaultMaxMirrors = 3

// Status tracks one download attempt's lifecycle.
type Status string

const (
	StatusPending   Status = "pending"
	StatusInFlight  Status = "in_flight"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Attempt is the transient per-location state for one acquisition call. It
// is not persisted.
type Attempt struct {
	Index        int
	Location     string
	Status       Status
	BytesWritten int64
	StartedAt    time.Time
	Err          error
}

// ResolutionError means a mirror location could not be turned into a byte
// source.
type ResolutionError struct {
	Location string
	Err      error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolving %s: %v", e.Location, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// TransferError means the byte stream failed mid-transfer.
type TransferError struct {
	Location string
	Err      error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transferring from %s: %v", e.Location, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

// ExhaustedError means every candidate location failed. It carries the
// per-location attempts so callers can see each cause.
type ExhaustedError struct {
	Attempts []Attempt
}

func (e *ExhaustedError) Error() string {
	causes := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		causes[i] = fmt.Sprintf("[%d] %v", a.Index, a.Err)
	}
	return fmt.Sprintf("all %d download locations failed: %s",
		len(e.Attempts), strings.Join(causes, "; "))
}

// SidecarWriter writes record metadata next to a completed artifact and
// returns the sidecar path. Injected by the orchestrator; invoked exactly
// once per successful acquisition, after the artifact is in place.
type SidecarWriter func(record types.Record, artifactPath string) (string, error)

// Fetched reports a transport's outcome for one resolved location.
type Fetched struct {
	// Path is the temporary file holding the bytes when Direct is true.
	Path string

	// Filename is the transport-reported filename (e.g. from
	// Content-Disposition), or empty.
	Filename string

	// Direct is true when the transport itself streamed the bytes to Path.
	// When false, completion is only observable as a side effect in the
	// destination directory and the engine falls back to polling.
	Direct bool
}

// Transport turns a resolved byte-source URL into bytes on disk.
type Transport interface {
	Fetch(ctx context.Context, rawURL, destDir string) (Fetched, error)
}

// Engine is the download recovery engine.
type Engine struct {
	cfg types.DownloadConfig
	log *zap.Logger

	// Resolver turns a candidate location into a final byte-stream URL,
	// following at most one interstitial hop. Defaults to Resolve.
	Resolver func(ctx context.Context, client *http.Client, location, userAgent string) (string, error)

	// Transport fetches the resolved URL. Defaults to an HTTPTransport.
	Transport Transport

	// Sidecar, when set, is invoked once after a successful acquisition.
	Sidecar SidecarWriter

	client *http.Client
}

// New builds an Engine with the HTTP transport and default resolver.
func New(client *http.Client, cfg types.DownloadConfig, log *zap.Logger) *Engine {
	return &Engine{
		cfg:       cfg,
		log:       log,
		Resolver:  Resolve,
		Transport: &HTTPTransport{Client: client, UserAgent: cfg.UserAgent},
		client:    client,
	}
}

// Acquire drives the record's candidate locations in order until one yields
// a completed artifact in destDir. It returns the artifact, the attempts
// made (failed attempts first, in order), and an error: an *ExhaustedError
// when every location failed, or a wrapped context error on cancellation.
// On cancellation any partial file is already deleted.
func (e *Engine) Acquire(ctx context.Context, record types.Record, destDir string) (*types.AcquiredArtifact, []Attempt, error) {
	if len(record.SourceLocations) == 0 {
		return nil, nil, &ExhaustedError{}
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating destination directory: %w", err)
	}

	maxMirrors := e.cfg.MaxMirrors
	if maxMirrors <= 0 {
		maxMirrors = defaultMaxMirrors
	}
	locations := record.SourceLocations
	if len(locations) > maxMirrors {
		locations = locations[:maxMirrors]
	}

	attempts := make([]Attempt, 0, len(locations))
	for i, location := range locations {
		if err := ctx.Err(); err != nil {
			return nil, attempts, fmt.Errorf("acquisition cancelled: %w", err)
		}

		attempt := Attempt{Index: i, Location: location, Status: StatusInFlight, StartedAt: time.Now()}
		e.log.Debug("attempting download location",
			zap.Int("index", i), zap.String("location", location))

		path, bytes, err := e.tryLocation(ctx, record, location, destDir)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, attempts, fmt.Errorf("acquisition cancelled: %w", ctxErr)
			}
			attempt.Status = StatusFailed
			attempt.Err = err
			attempts = append(attempts, attempt)
			e.log.Warn("download location failed",
				zap.Int("index", i), zap.String("location", location), zap.Error(err))
			continue
		}

		attempt.Status = StatusSucceeded
		attempt.BytesWritten = bytes
		attempts = append(attempts, attempt)

		artifact := &types.AcquiredArtifact{
			Record:     record,
			LocalPath:  path,
			AcquiredAt: time.Now(),
		}
		if e.Sidecar != nil {
			sidecarPath, sidecarErr := e.Sidecar(record, path)
			if sidecarErr != nil {
				e.log.Warn("sidecar write failed", zap.String("artifact", path), zap.Error(sidecarErr))
			} else {
				artifact.SidecarPath = sidecarPath
			}
		}
		return artifact, attempts, nil
	}

	return nil, attempts, &ExhaustedError{Attempts: attempts}
}

// tryLocation resolves, fetches, and confirms one candidate location,
// returning the final artifact path and its size.
func (e *Engine) tryLocation(ctx context.Context, record types.Record, location, destDir string) (string, int64, error) {
	final, err := e.Resolver(ctx, e.client, location, e.cfg.UserAgent)
	if err != nil {
		return "", 0, &ResolutionError{Location: location, Err: err}
	}

	fetched, err := e.Transport.Fetch(ctx, final, destDir)
	if err != nil {
		return "", 0, &TransferError{Location: location, Err: err}
	}

	finalPath, err := e.confirm(ctx, record, fetched, destDir)
	if err != nil {
		return "", 0, &TransferError{Location: location, Err: err}
	}

	info, err := os.Stat(finalPath)
	if err != nil {
		return "", 0, &TransferError{Location: location, Err: err}
	}
	return finalPath, info.Size(), nil
}

// confirm settles the fetched bytes into their final path. Direct fetches
// are renamed into place atomically; out-of-band fetches fall back to
// polling the destination directory for the predicted filename.
func (e *Engine) confirm(ctx context.Context, record types.Record, fetched Fetched, destDir string) (string, error) {
	predicted := PredictFilename(record)

	if fetched.Direct {
		name := fetched.Filename
		if name == "" {
			name = predicted
		}
		finalPath := filepath.Join(destDir, filepath.Base(name))
		if err := os.Rename(fetched.Path, finalPath); err != nil {
			os.Remove(fetched.Path)
			return "", fmt.Errorf("renaming into place: %w", err)
		}
		return finalPath, nil
	}

	return e.waitForCompletion(ctx, destDir, predicted)
}

func (e *Engine) waitForCompletion(ctx context.Context, destDir, predicted string) (string, error) {
	interval := e.cfg.PollInterval
	if interval <= 0 {
		interval = time.Second
	}
	timeout := e.cfg.PollTimeout
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	recent := e.cfg.RecentWindow
	if recent <= 0 {
		recent = 10 * time.Second
	}
	return WaitForDownload(ctx, destDir, predicted, interval, timeout, recent)
}

// IsCancelled reports whether err stems from caller cancellation.
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

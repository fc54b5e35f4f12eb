// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package engine orchestrates the acquisition pipeline: concurrent
// multi-provider search and gated, session-backed downloads.
//
// Provider failures are isolated: one provider's auth or search error never
// blocks the others' results. Downloads are serialized through a
// single-occupancy gate because completion polling cannot tell concurrent
// downloads in one directory apart.
package engine

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/pdiddy/library-engine/internal/catalog"
	"github.com/pdiddy/library-engine/internal/download"
	"github.com/pdiddy/library-engine/internal/provider"
	"github.com/pdiddy/library-engine/internal/session"
	"github.com/pdiddy/library-engine/pkg/types"
)

// ProviderResult holds one provider's search outcome. Records and Err are
// mutually exclusive.
type ProviderResult struct {
	Records []types.Record
	Err     error
}

// Engine wires providers, sessions, downloads, and the catalog together.
type Engine struct {
	cfg       types.EngineConfig
	providers []provider.Provider
	sessions  *session.Manager
	gate      *session.Gate
	catalog   *catalog.Store
	log       *zap.Logger
}

// New builds an Engine over the given providers. The catalog may be nil, in
// which case history is not recorded.
func New(cfg types.EngineConfig, providers []provider.Provider, sessions *session.Manager, cat *catalog.Store, log *zap.Logger) *Engine {
	return &Engine{
		cfg:       cfg,
		providers: providers,
		sessions:  sessions,
		gate:      session.NewGate(),
		catalog:   cat,
		log:       log,
	}
}

// Search fans the query out to every provider concurrently and returns each
// provider's outcome keyed by its ID. A provider that cannot authenticate or
// whose page cannot be fetched contributes its error; the rest still return
// records. The only top-level errors are an empty query or no providers.
func (e *Engine) Search(ctx context.Context, query string) (map[types.ProviderID]ProviderResult, error) {
	if query == "" {
		return nil, fmt.Errorf("query is empty")
	}
	if len(e.providers) == 0 {
		return nil, fmt.Errorf("no providers configured")
	}

	type providerOutcome struct {
		id      types.ProviderID
		records []types.Record
		err     error
	}

	ch := make(chan providerOutcome, len(e.providers))
	var wg sync.WaitGroup

	for _, p := range e.providers {
		wg.Add(1)
		go func(p provider.Provider) {
			defer wg.Done()
			records, err := e.searchOne(ctx, p, query)
			ch <- providerOutcome{id: p.ID(), records: records, err: err}
		}(p)
	}

	go func() {
		wg.Wait()
		close(ch)
	}()

	results := make(map[types.ProviderID]ProviderResult, len(e.providers))
	for out := range ch {
		if out.err != nil {
			e.log.Warn("provider search failed",
				zap.String("provider", string(out.id)), zap.Error(out.err))
			results[out.id] = ProviderResult{Err: out.err}
			continue
		}
		results[out.id] = ProviderResult{Records: out.records}
		if e.catalog != nil {
			if err := e.catalog.RecordSearch(ctx, out.id, query, len(out.records)); err != nil {
				e.log.Warn("recording search history failed", zap.Error(err))
			}
		}
	}
	return results, nil
}

func (e *Engine) searchOne(ctx context.Context, p provider.Provider, query string) ([]types.Record, error) {
	s, err := e.sessions.Ensure(ctx, p)
	if err != nil {
		return nil, err
	}
	return p.Search(ctx, s.Client, query, e.cfg.Search)
}

// Download acquires one record into the configured download directory. The
// provider session is established first; the download itself holds the
// single-occupancy gate. On success the artifact is recorded in the catalog.
func (e *Engine) Download(ctx context.Context, record types.Record) (*types.AcquiredArtifact, []download.Attempt, error) {
	p, err := e.providerFor(record.Provider)
	if err != nil {
		return nil, nil, err
	}
	return e.downloadVia(ctx, p, record)
}

// providerFor resolves a record's provider against the engine's own
// providers first, so endpoint overrides survive; the registry is only a
// fallback for records from outside this run.
func (e *Engine) providerFor(id types.ProviderID) (provider.Provider, error) {
	for _, p := range e.providers {
		if p.ID() == id {
			return p, nil
		}
	}
	return provider.ByID(id)
}

func (e *Engine) downloadVia(ctx context.Context, p provider.Provider, record types.Record) (*types.AcquiredArtifact, []download.Attempt, error) {
	s, err := e.sessions.Ensure(ctx, p)
	if err != nil {
		return nil, nil, err
	}

	if err := e.gate.Acquire(ctx); err != nil {
		return nil, nil, fmt.Errorf("waiting for download slot: %w", err)
	}
	defer e.gate.Release()

	dl := download.New(s.Client, e.cfg.Download, e.log)
	dl.Sidecar = NewSidecarWriter(e.cfg.Download.MetadataFormat)

	artifact, attempts, err := dl.Acquire(ctx, record, e.cfg.Download.DownloadDir)
	if err != nil {
		return nil, attempts, err
	}

	if e.catalog != nil {
		if err := e.catalog.RecordArtifact(ctx, *artifact); err != nil {
			e.log.Warn("recording artifact failed",
				zap.String("path", artifact.LocalPath), zap.Error(err))
		}
	}
	return artifact, attempts, nil
}

// Flatten orders per-provider results into one slice: providers in display
// order, records in extraction order within each provider.
func Flatten(results map[types.ProviderID]ProviderResult) []types.Record {
	var records []types.Record
	for _, id := range types.AllProviders {
		records = append(records, results[id].Records...)
	}
	return records
}

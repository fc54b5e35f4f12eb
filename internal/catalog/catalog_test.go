// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pdiddy/library-engine/pkg/types"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(types.CatalogConfig{CatalogDir: t.TempDir()}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleArtifact(path string) types.AcquiredArtifact {
	return types.AcquiredArtifact{
		Record: types.Record{
			Provider:        types.ProviderLibGen,
			Title:           "Dune",
			Authors:         []string{"Frank Herbert"},
			Year:            1965,
			Format:          "EPUB",
			SizeBytes:       2 << 20,
			Language:        "English",
			SourceLocations: []string{"http://m/1", "http://m/2"},
		},
		LocalPath:   path,
		SidecarPath: path + "_metadata.json",
		AcquiredAt:  time.Now().UTC().Truncate(time.Millisecond),
	}
}

func TestRecordAndListArtifacts(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	a := sampleArtifact("/downloads/Dune.epub")
	require.NoError(t, s.RecordArtifact(ctx, a))

	got, err := s.ListArtifacts(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, a.LocalPath, got[0].LocalPath)
	assert.Equal(t, a.SidecarPath, got[0].SidecarPath)
	assert.Equal(t, a.Record.Title, got[0].Record.Title)
	assert.Equal(t, a.Record.Authors, got[0].Record.Authors)
	assert.Equal(t, a.Record.SourceLocations, got[0].Record.SourceLocations)
	assert.Equal(t, a.Record.SizeBytes, got[0].Record.SizeBytes)
	assert.True(t, a.AcquiredAt.Equal(got[0].AcquiredAt))
}

func TestRecordArtifactUpsertsByPath(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	a := sampleArtifact("/downloads/Dune.epub")
	require.NoError(t, s.RecordArtifact(ctx, a))

	a.Record.Year = 1966
	a.AcquiredAt = a.AcquiredAt.Add(time.Hour)
	require.NoError(t, s.RecordArtifact(ctx, a))

	got, err := s.ListArtifacts(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1966, got[0].Record.Year)
}

func TestListArtifactsNewestFirst(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	older := sampleArtifact("/downloads/old.epub")
	older.AcquiredAt = time.Now().UTC().Add(-time.Hour)
	newer := sampleArtifact("/downloads/new.epub")
	require.NoError(t, s.RecordArtifact(ctx, older))
	require.NoError(t, s.RecordArtifact(ctx, newer))

	got, err := s.ListArtifacts(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "/downloads/new.epub", got[0].LocalPath)
}

func TestFindArtifacts(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	dune := sampleArtifact("/downloads/Dune.epub")
	other := sampleArtifact("/downloads/Foundation.pdf")
	other.Record.Title = "Foundation"
	require.NoError(t, s.RecordArtifact(ctx, dune))
	require.NoError(t, s.RecordArtifact(ctx, other))

	got, err := s.FindArtifacts(ctx, "und")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Foundation", got[0].Record.Title)
}

func TestListArtifactsSurvivesCorruptColumns(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordArtifact(ctx, sampleArtifact("/downloads/Dune.epub")))
	_, err := s.db.ExecContext(ctx, `UPDATE artifacts SET authors = '{not json'`)
	require.NoError(t, err)

	got, err := s.ListArtifacts(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Nil(t, got[0].Record.Authors)
	assert.Equal(t, "Dune", got[0].Record.Title)
	assert.Equal(t, []string{"http://m/1", "http://m/2"}, got[0].Record.SourceLocations)
}

func TestSearchHistory(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordSearch(ctx, types.ProviderZLib, "dune", 7))
	require.NoError(t, s.RecordSearch(ctx, types.ProviderAnnas, "dune", 3))
	require.NoError(t, s.RecordSearch(ctx, types.ProviderLibGen, "foundation", 12))

	events, err := s.SearchHistory(ctx, 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, types.ProviderLibGen, events[0].Provider)
	assert.Equal(t, "foundation", events[0].Query)
	assert.Equal(t, 12, events[0].Hits)
	assert.Equal(t, types.ProviderAnnas, events[1].Provider)

	all, err := s.SearchHistory(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestStoreReopens(t *testing.T) {
	dir := t.TempDir()
	cfg := types.CatalogConfig{CatalogDir: dir}

	s1, err := NewStore(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, s1.RecordArtifact(context.Background(), sampleArtifact("/downloads/Dune.epub")))
	require.NoError(t, s1.Close())

	s2, err := NewStore(cfg, zap.NewNop())
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.ListArtifacts(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

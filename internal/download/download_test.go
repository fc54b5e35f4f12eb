// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package download

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pdiddy/library-engine/pkg/types"
)

// fakeTransport runs a function per fetch.
type fakeTransport struct {
	fetch func(ctx context.Context, rawURL, destDir string) (Fetched, error)
}

func (f *fakeTransport) Fetch(ctx context.Context, rawURL, destDir string) (Fetched, error) {
	return f.fetch(ctx, rawURL, destDir)
}

// passthroughResolver returns locations unchanged.
func passthroughResolver(_ context.Context, _ *http.Client, location, _ string) (string, error) {
	return location, nil
}

func testRecord(locations ...string) types.Record {
	return types.Record{
		Provider:        types.ProviderZLib,
		Title:           "A Tale of Two Cities",
		Format:          "EPUB",
		SourceLocations: locations,
	}
}

func newTestEngine(cfg types.DownloadConfig) *Engine {
	e := New(&http.Client{}, cfg, zap.NewNop())
	e.Resolver = passthroughResolver
	return e
}

// writeTempFetched drops content into a temp file the way HTTPTransport does.
func writeTempFetched(t *testing.T, destDir, content, filename string) Fetched {
	t.Helper()
	tmp, err := os.CreateTemp(destDir, ".download-*.tmp")
	require.NoError(t, err)
	_, err = tmp.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, tmp.Close())
	return Fetched{Path: tmp.Name(), Filename: filename, Direct: true}
}

func TestAcquireSucceedsOnLastMirror(t *testing.T) {
	dir := t.TempDir()
	e := newTestEngine(types.DownloadConfig{})

	e.Transport = &fakeTransport{fetch: func(_ context.Context, rawURL, destDir string) (Fetched, error) {
		if strings.Contains(rawURL, "good") {
			return writeTempFetched(t, destDir, "book bytes", ""), nil
		}
		return Fetched{}, fmt.Errorf("connection reset")
	}}

	rec := testRecord("http://m/bad-1", "http://m/bad-2", "http://m/good")
	artifact, attempts, err := e.Acquire(context.Background(), rec, dir)
	require.NoError(t, err)
	require.NotNil(t, artifact)

	require.Len(t, attempts, 3)
	for i := 0; i < 2; i++ {
		assert.Equal(t, i, attempts[i].Index)
		assert.Equal(t, StatusFailed, attempts[i].Status)
		var terr *TransferError
		require.ErrorAs(t, attempts[i].Err, &terr)
		assert.Equal(t, rec.SourceLocations[i], terr.Location)
	}
	assert.Equal(t, StatusSucceeded, attempts[2].Status)
	assert.Equal(t, int64(len("book bytes")), attempts[2].BytesWritten)

	// No transport filename: predicted name is used.
	assert.Equal(t, filepath.Join(dir, "A_Tale_of_Two_Cities.epub"), artifact.LocalPath)
	data, err := os.ReadFile(artifact.LocalPath)
	require.NoError(t, err)
	assert.Equal(t, "book bytes", string(data))
}

func TestAcquireExhaustedLeavesNoFiles(t *testing.T) {
	dir := t.TempDir()
	e := newTestEngine(types.DownloadConfig{})
	e.Transport = &fakeTransport{fetch: func(_ context.Context, rawURL, _ string) (Fetched, error) {
		return Fetched{}, fmt.Errorf("boom %s", rawURL)
	}}

	rec := testRecord("http://m/1", "http://m/2", "http://m/3")
	artifact, attempts, err := e.Acquire(context.Background(), rec, dir)
	assert.Nil(t, artifact)
	require.Len(t, attempts, 3)

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	require.Len(t, exhausted.Attempts, 3)
	for i, a := range exhausted.Attempts {
		assert.Equal(t, i, a.Index)
		assert.Equal(t, StatusFailed, a.Status)
		assert.ErrorContains(t, a.Err, rec.SourceLocations[i])
	}

	entries, readErr := os.ReadDir(dir)
	require.NoError(t, readErr)
	assert.Empty(t, entries, "no partial files may survive exhaustion")
}

func TestAcquireResolutionFailureAdvancesToNextMirror(t *testing.T) {
	dir := t.TempDir()
	e := newTestEngine(types.DownloadConfig{})
	e.Resolver = func(_ context.Context, _ *http.Client, location, _ string) (string, error) {
		if strings.Contains(location, "interstitial-dead-end") {
			return "", fmt.Errorf("no download link")
		}
		return location, nil
	}
	e.Transport = &fakeTransport{fetch: func(_ context.Context, _, destDir string) (Fetched, error) {
		return writeTempFetched(t, destDir, "content", "server-name.epub"), nil
	}}

	rec := testRecord("http://m/interstitial-dead-end", "http://m/direct")
	artifact, attempts, err := e.Acquire(context.Background(), rec, dir)
	require.NoError(t, err)

	require.Len(t, attempts, 2)
	var rerr *ResolutionError
	require.ErrorAs(t, attempts[0].Err, &rerr)
	assert.Equal(t, "http://m/interstitial-dead-end", rerr.Location)

	// Transport filename wins over the prediction.
	assert.Equal(t, filepath.Join(dir, "server-name.epub"), artifact.LocalPath)
}

func TestAcquireRespectsMirrorCap(t *testing.T) {
	dir := t.TempDir()
	e := newTestEngine(types.DownloadConfig{MaxMirrors: 2})
	var fetched []string
	e.Transport = &fakeTransport{fetch: func(_ context.Context, rawURL, _ string) (Fetched, error) {
		fetched = append(fetched, rawURL)
		return Fetched{}, fmt.Errorf("down")
	}}

	rec := testRecord("http://m/1", "http://m/2", "http://m/3", "http://m/4")
	_, attempts, err := e.Acquire(context.Background(), rec, dir)
	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Len(t, attempts, 2)
	assert.Equal(t, []string{"http://m/1", "http://m/2"}, fetched)
}

func TestAcquireMirrorOrderIsStrict(t *testing.T) {
	dir := t.TempDir()
	e := newTestEngine(types.DownloadConfig{})
	var order []string
	e.Transport = &fakeTransport{fetch: func(_ context.Context, rawURL, destDir string) (Fetched, error) {
		order = append(order, rawURL)
		if len(order) < 2 {
			return Fetched{}, fmt.Errorf("first down")
		}
		return writeTempFetched(t, destDir, "x", ""), nil
	}}

	rec := testRecord("http://m/first", "http://m/second", "http://m/third")
	_, _, err := e.Acquire(context.Background(), rec, dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"http://m/first", "http://m/second"}, order,
		"mirrors are attempted in provider order and stop at first success")
}

func TestAcquireSidecarInvokedExactlyOnce(t *testing.T) {
	dir := t.TempDir()
	e := newTestEngine(types.DownloadConfig{})
	e.Transport = &fakeTransport{fetch: func(_ context.Context, _, destDir string) (Fetched, error) {
		return writeTempFetched(t, destDir, "x", ""), nil
	}}

	var calls int
	e.Sidecar = func(record types.Record, artifactPath string) (string, error) {
		calls++
		// Sidecar must pair with an existing artifact.
		_, err := os.Stat(artifactPath)
		require.NoError(t, err)
		sidecar := artifactPath + "_metadata.json"
		require.NoError(t, os.WriteFile(sidecar, []byte("{}"), 0o644))
		return sidecar, nil
	}

	artifact, _, err := e.Acquire(context.Background(), testRecord("http://m/1"), dir)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, artifact.LocalPath+"_metadata.json", artifact.SidecarPath)
}

func TestAcquireCancellation(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	e := newTestEngine(types.DownloadConfig{})
	e.Transport = &fakeTransport{fetch: func(ctx context.Context, _, destDir string) (Fetched, error) {
		cancel()
		return Fetched{}, ctx.Err()
	}}

	artifact, _, err := e.Acquire(ctx, testRecord("http://m/1", "http://m/2"), dir)
	assert.Nil(t, artifact)
	assert.True(t, IsCancelled(err))

	entries, readErr := os.ReadDir(dir)
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}

func TestAcquireEmptyLocations(t *testing.T) {
	e := newTestEngine(types.DownloadConfig{})
	_, _, err := e.Acquire(context.Background(), types.Record{Title: "x"}, t.TempDir())
	var exhausted *ExhaustedError
	assert.ErrorAs(t, err, &exhausted)
}

func TestAcquirePollingFallback(t *testing.T) {
	dir := t.TempDir()
	e := newTestEngine(types.DownloadConfig{
		PollInterval: 5 * time.Millisecond,
		PollTimeout:  2 * time.Second,
		RecentWindow: 10 * time.Second,
	})

	// Simulates a background download manager: the bytes appear in destDir
	// as a side effect, and the transport cannot confirm completion.
	e.Transport = &fakeTransport{fetch: func(_ context.Context, _, destDir string) (Fetched, error) {
		go func() {
			time.Sleep(20 * time.Millisecond)
			os.WriteFile(filepath.Join(destDir, "A_Tale_of_Two_Cities.epub"), []byte("late bytes"), 0o644)
		}()
		return Fetched{Direct: false}, nil
	}}

	artifact, attempts, err := e.Acquire(context.Background(), testRecord("http://m/1"), dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "A_Tale_of_Two_Cities.epub"), artifact.LocalPath)
	assert.Equal(t, StatusSucceeded, attempts[0].Status)
}

func TestAcquireEndToEndHTTP(t *testing.T) {
	var hits int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		switch r.URL.Path {
		case "/dead":
			http.Error(w, "gone", http.StatusNotFound)
		case "/book.epub":
			w.Header().Set("Content-Type", "application/epub+zip")
			w.Header().Set("Content-Disposition", `attachment; filename="two-cities.epub"`)
			fmt.Fprint(w, "epub payload")
		}
	}))
	defer ts.Close()

	dir := t.TempDir()
	e := New(ts.Client(), types.DownloadConfig{
		HTTPConfig: types.HTTPConfig{UserAgent: "library-engine/test"},
	}, zap.NewNop())

	rec := testRecord(ts.URL+"/dead", ts.URL+"/book.epub")
	artifact, attempts, err := e.Acquire(context.Background(), rec, dir)
	require.NoError(t, err)

	require.Len(t, attempts, 2)
	assert.Equal(t, StatusFailed, attempts[0].Status)
	assert.Equal(t, StatusSucceeded, attempts[1].Status)

	assert.Equal(t, filepath.Join(dir, "two-cities.epub"), artifact.LocalPath)
	data, err := os.ReadFile(artifact.LocalPath)
	require.NoError(t, err)
	assert.Equal(t, "epub payload", string(data))
	assert.GreaterOrEqual(t, hits, 2)
}

func TestTransferErrorLeavesNoPartialFile(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// Promise more bytes than are sent so the client sees an early EOF.
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Length", "4096")
		w.Write([]byte("short"))
	}))
	defer ts.Close()

	dir := t.TempDir()
	transport := &HTTPTransport{Client: ts.Client(), UserAgent: "library-engine/test"}
	_, err := transport.Fetch(context.Background(), ts.URL, dir)
	require.Error(t, err)

	entries, readErr := os.ReadDir(dir)
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}

func TestIsCancelled(t *testing.T) {
	assert.True(t, IsCancelled(fmt.Errorf("wrapped: %w", context.Canceled)))
	assert.False(t, IsCancelled(errors.New("other")))
}

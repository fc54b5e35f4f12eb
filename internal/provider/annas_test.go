// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/library-engine/pkg/types"
)

const annasResultsPage = `<html><body><main>
<div class="js-scroll-hidden">
  <a href="/md5/aabbccdd"><h3>The Dispossessed</h3></a>
  <div class="italic">Ursula K. Le Guin</div>
  <div class="text-gray-500">English [en], epub, 1.8MB, 1974</div>
</div>
<div class="js-scroll-hidden">
  <a href="/md5/eeff0011"><h3>The Left Hand of Darkness</h3></a>
  <div class="text-gray-500">English [en], pdf, 3.2MB, 1969</div>
</div>
</main></body></html>`

func TestAnnasRequiresNoLogin(t *testing.T) {
	a := NewAnnas()
	assert.False(t, a.RequiresLogin())
	assert.NoError(t, a.Login(context.Background(), http.DefaultClient, types.Credential{}))
	assert.NoError(t, a.Probe(context.Background(), http.DefaultClient))
}

func TestAnnasSearch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/search", r.URL.Path)
		require.Equal(t, "left hand", r.URL.Query().Get("q"))
		fmt.Fprint(w, annasResultsPage)
	}))
	defer ts.Close()

	a := &Annas{Base: ts.URL}
	records, err := a.Search(context.Background(), http.DefaultClient, "left hand", types.SearchConfig{})
	require.NoError(t, err)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, types.ProviderAnnas, first.Provider)
	assert.Equal(t, "The Dispossessed", first.Title)
	assert.Equal(t, "EPUB", first.Format)
	assert.Equal(t, 1974, first.Year)
	assert.Equal(t, "English", first.Language)
	require.Len(t, first.SourceLocations, 1)
	assert.Equal(t, ts.URL+"/md5/aabbccdd", first.SourceLocations[0])

	assert.Equal(t, "The Left Hand of Darkness", records[1].Title)
	assert.Equal(t, "PDF", records[1].Format)
}

func TestAnnasSearchClassDrift(t *testing.T) {
	// The hidden class is gone; the looser result-class fallback segments
	// the page instead.
	page := `<html><body>
	<div class="search-result-row">
	  <a href="/md5/1234"><h3>Dune</h3></a>
	  <div>English [en], epub, 1.1MB, 1965</div>
	</div>
	</body></html>`

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, page)
	}))
	defer ts.Close()

	a := &Annas{Base: ts.URL}
	records, err := a.Search(context.Background(), http.DefaultClient, "dune", types.SearchConfig{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Dune", records[0].Title)
	assert.Equal(t, 1965, records[0].Year)
}

func TestAnnasSearchEmptyResults(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><body><main><p>No files found.</p></main></body></html>`)
	}))
	defer ts.Close()

	a := &Annas{Base: ts.URL}
	records, err := a.Search(context.Background(), http.DefaultClient, "zzzz", types.SearchConfig{})
	require.NoError(t, err)
	assert.Empty(t, records)
}

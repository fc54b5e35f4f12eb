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

const libgenResultsPage = `<html><body>
<table class="c">
<tr><td>ID</td><td>Author(s)</td><td>Title</td><td>Publisher</td><td>Year</td><td>Pages</td><td>Language</td><td>Size</td><td>Extension</td><td>Mirrors</td></tr>
<tr>
  <td>1001</td>
  <td>Herbert, Frank</td>
  <td><a href="book/index.php?md5=aa11">Dune</a></td>
  <td>Chilton Books</td>
  <td>1965</td>
  <td>412</td>
  <td>English</td>
  <td>2 MB</td>
  <td>epub</td>
  <td><a href="http://library.lol/main/aa11" title="Mirror 1">[1]</a></td>
</tr>
<tr>
  <td>1002</td>
  <td>Asimov, Isaac</td>
  <td><a href="book/index.php?md5=bb22">Foundation</a></td>
  <td>Gnome Press</td>
  <td>1951</td>
  <td>255</td>
  <td>English</td>
  <td>850 KB</td>
  <td>pdf</td>
  <td><a href="http://library.lol/main/bb22" title="Mirror 1">[1]</a></td>
</tr>
</table>
</body></html>`

func TestLibGenRequiresNoLogin(t *testing.T) {
	l := NewLibGen()
	assert.False(t, l.RequiresLogin())
	assert.NoError(t, l.Login(context.Background(), http.DefaultClient, types.Credential{}))
	assert.NoError(t, l.Probe(context.Background(), http.DefaultClient))
}

func TestLibGenSearch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/index.php", r.URL.Path)
		require.Equal(t, "dune", r.URL.Query().Get("req"))
		fmt.Fprint(w, libgenResultsPage)
	}))
	defer ts.Close()

	l := &LibGen{Base: ts.URL}
	records, err := l.Search(context.Background(), http.DefaultClient, "dune", types.SearchConfig{})
	require.NoError(t, err)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, types.ProviderLibGen, first.Provider)
	assert.Equal(t, "Dune", first.Title)
	assert.Equal(t, []string{"Herbert, Frank"}, first.Authors)
	assert.Equal(t, "Chilton Books", first.Publisher)
	assert.Equal(t, 1965, first.Year)
	assert.Equal(t, "English", first.Language)
	assert.Equal(t, "EPUB", first.Format)
	assert.Equal(t, int64(2*1024*1024), first.SizeBytes)
	require.NotEmpty(t, first.SourceLocations)
	assert.Equal(t, "http://library.lol/main/aa11", first.SourceLocations[0])

	second := records[1]
	assert.Equal(t, "Foundation", second.Title)
	assert.Equal(t, int64(850*1024), second.SizeBytes)
	assert.Equal(t, "PDF", second.Format)
}

func TestLibGenSearchGenericTableFallback(t *testing.T) {
	// No class on the table; the row-count heuristic still segments it,
	// skipping the header row.
	page := `<html><body>
	<table><tr><td>a</td></tr></table>
	<table>
	<tr><td>ID</td><td>Author</td><td>Title</td><td>Publisher</td><td>Year</td></tr>
	<tr><td>1</td><td>A</td><td><a href="book/1">One</a></td><td>P</td><td>2001</td></tr>
	<tr><td>2</td><td>B</td><td><a href="book/2">Two</a></td><td>Q</td><td>2002</td></tr>
	<tr><td>3</td><td>C</td><td><a href="book/3">Three</a></td><td>R</td><td>2003</td></tr>
	</table>
	</body></html>`

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, page)
	}))
	defer ts.Close()

	l := &LibGen{Base: ts.URL}
	records, err := l.Search(context.Background(), http.DefaultClient, "q", types.SearchConfig{})
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "One", records[0].Title)
	assert.Equal(t, 2001, records[0].Year)
	assert.Equal(t, "Three", records[2].Title)
}

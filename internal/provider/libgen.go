// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"

	"github.com/pdiddy/library-engine/internal/extract"
	"github.com/pdiddy/library-engine/pkg/types"
)

// libgenBaseURL is the default endpoint. Declared as a var so tests can
// substitute an httptest server.
var libgenBaseURL = "https://libgen.is"

var (
	libgenYearPattern   = regexp.MustCompile(`\b(1[4-9]\d{2}|2\d{3})\b`)
	libgenFormatPattern = regexp.MustCompile(`(?i)\b(pdf|epub|mobi|azw3|djvu|fb2|txt|docx?)\b`)
	libgenSizePattern   = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?\s*(?:KB|MB|GB))`)
)

// libgenRules extracts records from the classic results table. Fields are
// positional (column order: id, authors, title, publisher, year, pages,
// language, size, extension, mirrors), with text patterns as the fallback
// when a deployment shuffles columns.
var libgenRules = extract.RuleSet{
	Containers: []extract.ContainerStrategy{
		extract.CSSContainers{Selector: "table.c tr:not(:first-child)"},
		extract.TableRows{MinRows: 3},
	},
	Fields: []extract.FieldRule{
		{Field: extract.FieldTitle, Strategies: []extract.Strategy{
			extract.CSSText{Selector: "td:nth-child(3) a[href*='book']"},
			extract.CSSText{Selector: "td:nth-child(3) a"},
			extract.CSSText{Selector: "td:nth-child(3)"},
		}},
		{Field: extract.FieldAuthors, Strategies: []extract.Strategy{
			extract.CSSText{Selector: "td:nth-child(2)"},
		}},
		{Field: extract.FieldPublisher, Strategies: []extract.Strategy{
			extract.CSSText{Selector: "td:nth-child(4)"},
		}},
		{Field: extract.FieldYear, Strategies: []extract.Strategy{
			extract.CSSText{Selector: "td:nth-child(5)"},
			extract.TextPattern{Pattern: libgenYearPattern, Group: 1},
		}},
		{Field: extract.FieldLanguage, Strategies: []extract.Strategy{
			extract.CSSText{Selector: "td:nth-child(7)"},
		}},
		{Field: extract.FieldSize, Strategies: []extract.Strategy{
			extract.CSSText{Selector: "td:nth-child(8)"},
			extract.TextPattern{Pattern: libgenSizePattern, Group: 1},
		}},
		{Field: extract.FieldFormat, Strategies: []extract.Strategy{
			extract.CSSText{Selector: "td:nth-child(9)"},
			extract.TextPattern{Pattern: libgenFormatPattern, Group: 1},
		}},
	},
	Locations: []extract.LocationStrategy{
		extract.CSSLinks{Selector: "a[href*='library.lol']"},
		extract.CSSLinks{Selector: "a[href*='/main/']"},
		extract.CSSLinks{Selector: "a[title^='Mirror']"},
	},
}

// LibGen serves search and downloads without an account.
type LibGen struct {
	Base string
}

func NewLibGen() *LibGen { return &LibGen{Base: libgenBaseURL} }

func (l *LibGen) ID() types.ProviderID { return types.ProviderLibGen }
func (l *LibGen) BaseURL() string      { return l.Base }
func (l *LibGen) RequiresLogin() bool  { return false }

func (l *LibGen) Login(_ context.Context, _ *http.Client, _ types.Credential) error { return nil }
func (l *LibGen) Probe(_ context.Context, _ *http.Client) error                     { return nil }

func (l *LibGen) Search(ctx context.Context, client *http.Client, query string, cfg types.SearchConfig) ([]types.Record, error) {
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 10
	}
	searchURL := fmt.Sprintf("%s/index.php?req=%s&res=%d",
		l.Base, url.QueryEscape(query), maxResults)
	return searchByRules(ctx, client, searchURL, libgenRules, l.ID(), cfg)
}

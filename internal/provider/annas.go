// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"context"
	"net/http"
	"net/url"
	"regexp"

	"github.com/pdiddy/library-engine/internal/extract"
	"github.com/pdiddy/library-engine/pkg/types"
)

// annasBaseURL is the default endpoint. Declared as a var so tests can
// substitute an httptest server.
var annasBaseURL = "https://annas-archive.org"

// The result card carries one free-text metadata line, e.g.
// "English [en], epub, 1.8MB, 2019"; these patterns pick it apart.
var (
	annasFormatPattern = regexp.MustCompile(`(?i)\b(pdf|epub|mobi|azw3|djvu|fb2|txt|docx?)\b`)
	annasSizePattern   = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?\s*(?:KB|MB|GB))`)
	annasYearPattern   = regexp.MustCompile(`\b(1[4-9]\d{2}|2\d{3})\b`)
	annasLangPattern   = regexp.MustCompile(`([A-Z][a-z]+)\s*\[[a-z]{2,3}\]`)
)

// annasRules extracts records from result cards. Cards render hidden first
// and are unhidden by script, so the hidden class is the primary anchor and
// looser class matches follow.
var annasRules = extract.RuleSet{
	Containers: []extract.ContainerStrategy{
		extract.CSSContainers{Selector: "div.js-scroll-hidden"},
		extract.CSSContainers{Selector: "div[class*='result']"},
		extract.CSSContainers{Selector: "main > div"},
	},
	Fields: []extract.FieldRule{
		{Field: extract.FieldTitle, Strategies: []extract.Strategy{
			extract.CSSText{Selector: "h3"},
			extract.CSSAttr{Selector: "a[href^='/md5/']", Attr: "title"},
		}},
		{Field: extract.FieldAuthors, Strategies: []extract.Strategy{
			extract.CSSText{Selector: "div[class*='italic']"},
		}},
		{Field: extract.FieldPublisher, Strategies: []extract.Strategy{
			extract.CSSText{Selector: "div[class*='truncate']"},
		}},
		{Field: extract.FieldYear, Strategies: []extract.Strategy{
			extract.TextPattern{Pattern: annasYearPattern, Group: 1},
		}},
		{Field: extract.FieldFormat, Strategies: []extract.Strategy{
			extract.TextPattern{Pattern: annasFormatPattern, Group: 1},
		}},
		{Field: extract.FieldSize, Strategies: []extract.Strategy{
			extract.TextPattern{Pattern: annasSizePattern, Group: 1},
		}},
		{Field: extract.FieldLanguage, Strategies: []extract.Strategy{
			extract.TextPattern{Pattern: annasLangPattern, Group: 1},
		}},
	},
	Locations: []extract.LocationStrategy{
		extract.CSSLinks{Selector: "a[href^='/md5/']"},
		extract.CSSLinks{Selector: "a[href*='/md5/']"},
	},
}

// Annas serves search and downloads without an account.
type Annas struct {
	Base string
}

func NewAnnas() *Annas { return &Annas{Base: annasBaseURL} }

func (a *Annas) ID() types.ProviderID { return types.ProviderAnnas }
func (a *Annas) BaseURL() string      { return a.Base }
func (a *Annas) RequiresLogin() bool  { return false }

func (a *Annas) Login(_ context.Context, _ *http.Client, _ types.Credential) error { return nil }
func (a *Annas) Probe(_ context.Context, _ *http.Client) error                     { return nil }

func (a *Annas) Search(ctx context.Context, client *http.Client, query string, cfg types.SearchConfig) ([]types.Record, error) {
	searchURL := a.Base + "/search?q=" + url.QueryEscape(query)
	return searchByRules(ctx, client, searchURL, annasRules, a.ID(), cfg)
}

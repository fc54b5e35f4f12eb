// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package provider implements the per-source adapters: authentication,
// liveness probing, and HTML search against each external content source.
//
// Each provider owns a declarative extraction rule set; the shared search
// path fetches the result page and hands it to the extraction cascade. New
// providers add a struct and a rule set, nothing else.
package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/PuerkitoBio/goquery"

	"github.com/pdiddy/library-engine/internal/extract"
	"github.com/pdiddy/library-engine/internal/httputil"
	"github.com/pdiddy/library-engine/pkg/types"
)

// Provider is one external content source. It extends the session layer's
// Authenticator with HTML search.
type Provider interface {
	ID() types.ProviderID
	BaseURL() string
	RequiresLogin() bool
	Login(ctx context.Context, client *http.Client, cred types.Credential) error
	Probe(ctx context.Context, client *http.Client) error
	Search(ctx context.Context, client *http.Client, query string, cfg types.SearchConfig) ([]types.Record, error)
}

// All returns every known provider with its default endpoint.
func All() []Provider {
	return []Provider{NewZLib(), NewAnnas(), NewLibGen()}
}

// ByID returns the provider for an already-validated identifier.
func ByID(id types.ProviderID) (Provider, error) {
	for _, p := range All() {
		if p.ID() == id {
			return p, nil
		}
	}
	return nil, fmt.Errorf("unknown provider %q", id)
}

// fetchDocument GETs a page with retry on throttling responses and parses it
// into a goquery document. The returned URL is the final, redirect-followed
// one, used as the base for resolving relative links.
func fetchDocument(ctx context.Context, client *http.Client, rawURL, userAgent string) (*goquery.Document, *url.URL, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := httputil.DoWithRetry(ctx, client, req, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, rawURL)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing %s: %w", rawURL, err)
	}
	return doc, resp.Request.URL, nil
}

// searchByRules is the shared HTML search path: fetch the provider's result
// page and run the extraction cascade over it.
func searchByRules(ctx context.Context, client *http.Client, searchURL string, rules extract.RuleSet, id types.ProviderID, cfg types.SearchConfig) ([]types.Record, error) {
	doc, base, err := fetchDocument(ctx, client, searchURL, cfg.UserAgent)
	if err != nil {
		return nil, err
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 10
	}
	return extract.Extract(doc, base, rules, id, maxResults), nil
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package download

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// downloadHrefPattern matches hrefs that look like a byte source on
// interstitial pages: direct file extensions, provider download endpoints,
// or mirror links.
var downloadHrefPattern = regexp.MustCompile(`(?i)(\.pdf|\.epub|\.mobi|\.djvu|get\.php|/dl/|download|mirror)`)

// downloadTextPattern matches anchor text on interstitial pages that labels
// the real download link.
var downloadTextPattern = regexp.MustCompile(`(?i)^\s*(GET|Download|Mirror\s*\d*)\s*$`)

// Resolve turns a candidate location into a final byte-stream URL. Some
// locations serve bytes directly; others are redirect or interstitial HTML
// pages that need one extra resolution hop to find the real link. At most
// one hop is followed.
func Resolve(ctx context.Context, client *http.Client, location, userAgent string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching location: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d from %s", resp.StatusCode, location)
	}

	// Non-HTML responses are the byte source itself; hand over the
	// redirect-followed URL for the transport to re-fetch.
	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "text/html") {
		return resp.Request.URL.String(), nil
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parsing interstitial page: %w", err)
	}

	final := findDownloadLink(doc, resp.Request.URL)
	if final == "" {
		return "", fmt.Errorf("no download link on interstitial page %s", location)
	}
	return final, nil
}

// findDownloadLink scans anchors for the first one that looks like the real
// byte source, by href shape first and by anchor text second.
func findDownloadLink(doc *goquery.Document, base *url.URL) string {
	var byHref, byText string
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
			return true
		}
		if byHref == "" && downloadHrefPattern.MatchString(href) {
			byHref = href
			return false
		}
		if byText == "" && downloadTextPattern.MatchString(a.Text()) {
			byText = href
		}
		return true
	})

	chosen := byHref
	if chosen == "" {
		chosen = byText
	}
	if chosen == "" {
		return ""
	}

	ref, err := url.Parse(chosen)
	if err != nil {
		return ""
	}
	if base != nil {
		return base.ResolveReference(ref).String()
	}
	if ref.IsAbs() {
		return ref.String()
	}
	return ""
}

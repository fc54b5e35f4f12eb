// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Field names a Record attribute an extraction rule can populate.
type Field string

const (
	FieldTitle     Field = "title"
	FieldAuthors   Field = "authors"
	FieldYear      Field = "year"
	FieldFormat    Field = "format"
	FieldSize      Field = "size"
	FieldLanguage  Field = "language"
	FieldPublisher Field = "publisher"
)

// Strategy resolves one field value within a record container. Strategies
// are tried in priority order; the first non-empty result wins for a field.
type Strategy interface {
	Resolve(container *goquery.Selection) string
}

// CSSText returns the trimmed text of the first element matching a CSS
// selector inside the container.
type CSSText struct {
	Selector string
}

func (s CSSText) Resolve(container *goquery.Selection) string {
	return strings.TrimSpace(container.Find(s.Selector).First().Text())
}

// CSSAttr returns an attribute of the first element matching a CSS selector.
type CSSAttr struct {
	Selector string
	Attr     string
}

func (s CSSAttr) Resolve(container *goquery.Selection) string {
	val, _ := container.Find(s.Selector).First().Attr(s.Attr)
	return strings.TrimSpace(val)
}

// TextPattern searches the container's flattened text with a regular
// expression and returns the given capture group. It is the last-resort
// fallback for free-text fields when structural selectors find nothing.
type TextPattern struct {
	Pattern *regexp.Regexp
	Group   int
}

func (s TextPattern) Resolve(container *goquery.Selection) string {
	text := flattenText(container)
	m := s.Pattern.FindStringSubmatch(text)
	if m == nil || s.Group >= len(m) {
		return ""
	}
	return strings.TrimSpace(m[s.Group])
}

// FieldRule binds a field to its ordered strategy cascade.
type FieldRule struct {
	Field      Field
	Strategies []Strategy
}

// ContainerStrategy segments a document into candidate record containers.
// Strategies cascade: the first one yielding at least one container wins.
type ContainerStrategy interface {
	Select(doc *goquery.Document) *goquery.Selection
}

// CSSContainers selects containers by CSS selector.
type CSSContainers struct {
	Selector string
}

func (s CSSContainers) Select(doc *goquery.Document) *goquery.Selection {
	return doc.Find(s.Selector)
}

// TableRows is the generic block heuristic for tabular providers: it picks
// the first table with more than MinRows rows and returns its rows minus the
// header.
type TableRows struct {
	MinRows int
}

func (s TableRows) Select(doc *goquery.Document) *goquery.Selection {
	var rows *goquery.Selection
	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		tr := table.Find("tr")
		if tr.Length() > s.MinRows {
			rows = tr.Slice(1, tr.Length())
			return false
		}
		return true
	})
	if rows == nil {
		return doc.Find("__none__")
	}
	return rows
}

// LocationStrategy resolves a container's candidate download locations in
// document order.
type LocationStrategy interface {
	ResolveAll(container *goquery.Selection, base *url.URL) []string
}

// CSSLinks collects the href of every element matching the selector,
// resolved against the document base URL. Relative and scheme-less hrefs are
// absolutized; unparsable ones are skipped.
type CSSLinks struct {
	Selector string
}

func (s CSSLinks) ResolveAll(container *goquery.Selection, base *url.URL) []string {
	var locations []string
	container.Find(s.Selector).Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		abs := absolutize(base, strings.TrimSpace(href))
		if abs != "" {
			locations = append(locations, abs)
		}
	})
	return locations
}

// RuleSet is one provider's declarative extraction rules. Loaded once,
// immutable at run time.
type RuleSet struct {
	// Containers segment the document; cascading fallback, first hit wins.
	Containers []ContainerStrategy

	// Fields hold per-field strategy cascades.
	Fields []FieldRule

	// Locations resolve candidate download URIs, in priority order.
	Locations []LocationStrategy
}

func absolutize(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base == nil {
		if ref.IsAbs() {
			return ref.String()
		}
		return ""
	}
	return base.ResolveReference(ref).String()
}

// flattenText returns the container's text content with whitespace runs
// collapsed to single spaces.
func flattenText(container *goquery.Selection) string {
	return strings.Join(strings.Fields(container.Text()), " ")
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/pdiddy/library-engine/internal/extract"
	"github.com/pdiddy/library-engine/pkg/types"
)

// zlibBaseURL is the default endpoint. Declared as a var so tests can
// substitute an httptest server.
var zlibBaseURL = "https://z-library.sk"

var (
	zlibYearPattern   = regexp.MustCompile(`\b(1[4-9]\d{2}|2\d{3})\b`)
	zlibFormatPattern = regexp.MustCompile(`(?i)\b(PDF|EPUB|MOBI|AZW3|DJVU|FB2|TXT|DOCX?)\b`)
	zlibSizePattern   = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?\s*(?:KB|MB|GB))`)
)

// zlibRules extracts records from the search result markup. The markup
// shifts between deployments, so every concern cascades from the most
// specific selector down to a text-pattern sweep of the container.
var zlibRules = extract.RuleSet{
	Containers: []extract.ContainerStrategy{
		extract.CSSContainers{Selector: "div.resItemBox"},
		extract.CSSContainers{Selector: "div.book-item"},
		extract.CSSContainers{Selector: "div[class*='result']"},
	},
	Fields: []extract.FieldRule{
		{Field: extract.FieldTitle, Strategies: []extract.Strategy{
			extract.CSSText{Selector: "h3[itemprop='name'] a"},
			extract.CSSText{Selector: "h3 a"},
			extract.CSSAttr{Selector: "a[href*='/book/']", Attr: "title"},
		}},
		{Field: extract.FieldAuthors, Strategies: []extract.Strategy{
			extract.CSSText{Selector: "div.authors a"},
			extract.CSSText{Selector: "a[itemprop='author']"},
		}},
		{Field: extract.FieldYear, Strategies: []extract.Strategy{
			extract.CSSText{Selector: "div.property_year div.property_value"},
			extract.TextPattern{Pattern: zlibYearPattern, Group: 1},
		}},
		{Field: extract.FieldFormat, Strategies: []extract.Strategy{
			extract.CSSText{Selector: "div.property__file div.property_value"},
			extract.TextPattern{Pattern: zlibFormatPattern, Group: 1},
		}},
		{Field: extract.FieldSize, Strategies: []extract.Strategy{
			extract.TextPattern{Pattern: zlibSizePattern, Group: 1},
		}},
		{Field: extract.FieldLanguage, Strategies: []extract.Strategy{
			extract.CSSText{Selector: "div.property_language div.property_value"},
		}},
		{Field: extract.FieldPublisher, Strategies: []extract.Strategy{
			extract.CSSText{Selector: "div.property_publisher div.property_value"},
		}},
	},
	Locations: []extract.LocationStrategy{
		extract.CSSLinks{Selector: "h3 a[href*='/book/']"},
		extract.CSSLinks{Selector: "a[href*='/book/']"},
	},
}

// ZLib requires an authenticated session for search and download.
type ZLib struct {
	Base string
}

func NewZLib() *ZLib { return &ZLib{Base: zlibBaseURL} }

func (z *ZLib) ID() types.ProviderID { return types.ProviderZLib }
func (z *ZLib) BaseURL() string      { return z.Base }
func (z *ZLib) RequiresLogin() bool  { return true }

// zlibLoginResponse is the JSON login endpoint's envelope.
type zlibLoginResponse struct {
	Success int    `json:"success"`
	Error   string `json:"error"`
}

// Login posts the credential pair to the JSON login endpoint. The session
// cookie lands in the client's jar.
func (z *ZLib) Login(ctx context.Context, client *http.Client, cred types.Credential) error {
	payload, err := json.Marshal(map[string]string{
		"email":    cred.Username,
		"password": cred.Secret,
	})
	if err != nil {
		return fmt.Errorf("encoding login payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		z.Base+"/eapi/user/login", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("login request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("login endpoint returned HTTP %d", resp.StatusCode)
	}

	var lr zlibLoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("parsing login response: %w", err)
	}
	if lr.Success != 1 {
		if lr.Error != "" {
			return fmt.Errorf("login rejected: %s", lr.Error)
		}
		return fmt.Errorf("login rejected")
	}
	return nil
}

// Probe checks liveness against an account-only page. A bounced session gets
// redirected to the login page instead.
func (z *ZLib) Probe(ctx context.Context, client *http.Client) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, z.Base+"/my-books", nil)
	if err != nil {
		return fmt.Errorf("creating probe request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("probe request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("probe returned HTTP %d", resp.StatusCode)
	}
	if strings.Contains(resp.Request.URL.Path, "login") {
		return fmt.Errorf("session bounced to login page")
	}
	return nil
}

func (z *ZLib) Search(ctx context.Context, client *http.Client, query string, cfg types.SearchConfig) ([]types.Record, error) {
	searchURL := z.Base + "/s/" + url.PathEscape(query)
	return searchByRules(ctx, client, searchURL, zlibRules, z.ID(), cfg)
}

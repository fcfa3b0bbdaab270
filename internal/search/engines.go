// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"

	"github.com/pdiddy/doc-collector/internal/httputil"
	"github.com/pdiddy/doc-collector/pkg/types"
)

// maxPageBytes caps a result page body.
const maxPageBytes = 5 << 20

// engineSpec describes how to query and parse one HTML search engine.
type engineSpec struct {
	baseURL    string
	queryParam string
	// pageParams returns the pagination parameters for a 1-based page.
	pageParams       func(page int) url.Values
	domains          []string
	selectors        []string
	snippetSelectors []string
}

// genericSelectors follow every engine's own selectors.
var genericSelectors = []string{
	`div[class*="result"]`,
	`div[class*="c-container"]`,
	`div[class*="search-result"]`,
	`li[class*="result"]`,
	`div[class*="web"]`,
	`div[class*="item"]`,
	`div[class*="link"]`,
	`div[class*="title"]`,
}

func offset(param string, perPage, first int) func(int) url.Values {
	return func(page int) url.Values {
		v := url.Values{}
		if page > 1 {
			v.Set(param, strconv.Itoa((page-1)*perPage+first))
		}
		return v
	}
}

// engineSpecs holds the built-in HTML engines. Base URLs are replaced in
// tests with httptest servers.
var engineSpecs = map[string]*engineSpec{
	"google": {
		baseURL:          "https://www.google.com/search",
		queryParam:       "q",
		pageParams:       offset("start", 10, 0),
		domains:          []string{"google.", "gstatic.com", "googleusercontent.com"},
		selectors:        []string{"div.g", "div.tF2Cxc", "div.MjjYud", "div[data-hveid]"},
		snippetSelectors: []string{".VwiC3b", ".IsZvec", "span.aCOpRe"},
	},
	"bing": {
		baseURL:          "https://www.bing.com/search",
		queryParam:       "q",
		pageParams:       offset("first", 10, 1),
		domains:          []string{"bing.com", "microsoft.com", "live.com", "msn.com"},
		selectors:        []string{"li.b_algo", "ol#b_results > li", "div.b_algo"},
		snippetSelectors: []string{".b_caption p", "p.b_lineclamp2", "p"},
	},
	"duckduckgo": {
		baseURL:          "https://html.duckduckgo.com/html/",
		queryParam:       "q",
		pageParams:       offset("s", 30, 0),
		domains:          []string{"duckduckgo.com"},
		selectors:        []string{"div.result", "div.web-result", "div.results_links"},
		snippetSelectors: []string{".result__snippet", "a.result__snippet"},
	},
	"baidu": {
		baseURL:    "https://www.baidu.com/s",
		queryParam: "wd",
		pageParams: offset("pn", 10, 0),
		domains:    []string{"baidu.com", "baidu.cn", "bdstatic.com"},
		selectors: []string{
			"div.c-container", `div[class*="result-item"]`, `div[class*="c-result"]`,
			"div.result", `div[class*="content"]`,
		},
		snippetSelectors: []string{".c-abstract", `span[class*="content-right"]`, `div[class*="c-span-last"]`},
	},
}

// EngineNames lists every built-in engine, HTML engines and arxiv.
func EngineNames() []string {
	names := make([]string, 0, len(engineSpecs)+1)
	for name := range engineSpecs {
		names = append(names, name)
	}
	names = append(names, arxivName)
	sort.Strings(names)
	return names
}

// HTMLEngine scrapes a web search engine's HTML result pages.
type HTMLEngine struct {
	name      string
	spec      *engineSpec
	client    *http.Client
	userAgent string
	cascade   *Cascade
}

// NewHTMLEngine returns the built-in engine called name.
func NewHTMLEngine(name string, client *http.Client, userAgent string) (*HTMLEngine, error) {
	spec, ok := engineSpecs[name]
	if !ok {
		return nil, fmt.Errorf("unknown search engine %q", name)
	}
	selectors := append(append([]string(nil), spec.selectors...), genericSelectors...)
	return &HTMLEngine{
		name:      name,
		spec:      spec,
		client:    client,
		userAgent: userAgent,
		cascade: NewCascade(
			&SelectorStage{Selectors: selectors, SnippetSelectors: spec.snippetSelectors, Exclude: spec.domains},
			&AggressiveStage{Exclude: spec.domains},
			&RegexStage{Exclude: spec.domains},
		),
	}, nil
}

// Name returns the engine identifier.
func (e *HTMLEngine) Name() string { return e.name }

// Cascade exposes the parse cascade for instrumentation.
func (e *HTMLEngine) Cascade() *Cascade { return e.cascade }

// PageURL builds the result page URL for query and page.
func (e *HTMLEngine) PageURL(query string, page int) string {
	v := e.spec.pageParams(page)
	v.Set(e.spec.queryParam, query)
	return e.spec.baseURL + "?" + v.Encode()
}

// Fetch downloads one result page.
func (e *HTMLEngine) Fetch(ctx context.Context, query string, page int) ([]byte, error) {
	return httputil.GetBody(ctx, e.client, e.PageURL(query, page), e.userAgent, maxPageBytes)
}

// Parse runs the selector, aggressive and regex stages in order.
func (e *HTMLEngine) Parse(body []byte, max int) []types.RawResult {
	return e.cascade.Parse(body, e.spec.baseURL, max)
}

// NewHandlers builds handlers for the named engines in order. Unknown names
// are an error.
func NewHandlers(names []string, client *http.Client, userAgent string) ([]Handler, error) {
	var handlers []Handler
	for _, name := range names {
		if name == arxivName {
			handlers = append(handlers, NewArxiv(client, userAgent))
			continue
		}
		h, err := NewHTMLEngine(name, client, userAgent)
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, h)
	}
	return handlers, nil
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/pdiddy/doc-collector/internal/httputil"
	"github.com/pdiddy/doc-collector/pkg/types"
)

const arxivName = "arxiv"

// arxivAPIBase is the arXiv search endpoint. Declared as a var so tests
// can substitute an httptest server.
var arxivAPIBase = "https://export.arxiv.org/api/query"

// arxivPageSize is the number of entries requested per page.
const arxivPageSize = 25

// ArxivEngine queries the arXiv Atom API. Entries link straight to their PDF,
// so every result is downloadable.
type ArxivEngine struct {
	client    *http.Client
	userAgent string
	cascade   *Cascade
}

// NewArxiv builds the arxiv handler.
func NewArxiv(client *http.Client, userAgent string) *ArxivEngine {
	return &ArxivEngine{
		client:    client,
		userAgent: userAgent,
		cascade:   NewCascade(&atomStage{}, &RegexStage{Exclude: []string{"export.arxiv.org"}}),
	}
}

// Name returns the engine identifier.
func (a *ArxivEngine) Name() string { return arxivName }

// Cascade exposes the parse cascade for instrumentation.
func (a *ArxivEngine) Cascade() *Cascade { return a.cascade }

// Fetch requests one page of entries matching query across all fields.
func (a *ArxivEngine) Fetch(ctx context.Context, query string, page int) ([]byte, error) {
	terms := strings.Fields(query)
	if len(terms) == 0 {
		return nil, fmt.Errorf("empty arXiv query")
	}
	v := url.Values{}
	v.Set("search_query", "all:"+strings.Join(terms, " AND all:"))
	v.Set("start", fmt.Sprint((page-1)*arxivPageSize))
	v.Set("max_results", fmt.Sprint(arxivPageSize))
	v.Set("sortBy", "relevance")
	return httputil.GetBody(ctx, a.client, arxivAPIBase+"?"+v.Encode(), a.userAgent, maxPageBytes)
}

// Parse decodes the Atom feed, falling back to href extraction.
func (a *ArxivEngine) Parse(body []byte, max int) []types.RawResult {
	return a.cascade.Parse(body, arxivAPIBase, max)
}

// arXiv Atom feed XML structures.
type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID      string      `xml:"id"`
	Title   string      `xml:"title"`
	Summary string      `xml:"summary"`
	Links   []arxivLink `xml:"link"`
}

type arxivLink struct {
	Href  string `xml:"href,attr"`
	Title string `xml:"title,attr"`
	Type  string `xml:"type,attr"`
}

// atomStage is the structured stage for Atom feeds.
type atomStage struct{}

func (atomStage) Name() string { return "atom" }

func (atomStage) Parse(p *Page, max int) []types.RawResult {
	var feed arxivFeed
	if err := xml.NewDecoder(bytes.NewReader(p.Body)).Decode(&feed); err != nil {
		return nil
	}
	c := newCollector(max, nil)
	for _, e := range feed.Entries {
		c.add(strings.TrimSpace(e.Title), pdfLink(e), truncate(collapseSpace(e.Summary), 300))
		if c.full() {
			break
		}
	}
	return c.out
}

// pdfLink prefers the entry's PDF link and derives one from the abstract
// URL otherwise.
func pdfLink(e arxivEntry) string {
	for _, l := range e.Links {
		if l.Title == "pdf" || l.Type == "application/pdf" {
			return l.Href
		}
	}
	if id := strings.TrimSpace(e.ID); strings.Contains(id, "/abs/") {
		return strings.Replace(id, "/abs/", "/pdf/", 1) + ".pdf"
	}
	return strings.TrimSpace(e.ID)
}

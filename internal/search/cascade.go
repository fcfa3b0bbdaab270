// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"bytes"
	"html"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/PuerkitoBio/goquery"

	"github.com/pdiddy/doc-collector/pkg/types"
)

// Page is one fetched result page. The HTML document is parsed lazily and
// shared by the stages that need it.
type Page struct {
	Body    []byte
	BaseURL string

	once sync.Once
	doc  *goquery.Document
}

// Doc returns the parsed document, or nil when the body is not parseable.
func (p *Page) Doc() *goquery.Document {
	p.once.Do(func() {
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(p.Body))
		if err == nil {
			p.doc = doc
		}
	})
	return p.doc
}

// Stage is one strategy of a parse cascade.
type Stage interface {
	Name() string
	Parse(p *Page, max int) []types.RawResult
}

// Cascade tries its stages in order and returns the first non-empty result
// list; later stages are not invoked. It counts invocations per stage.
type Cascade struct {
	stages []Stage
	calls  []atomic.Int64
}

// NewCascade builds a cascade over stages.
func NewCascade(stages ...Stage) *Cascade {
	return &Cascade{stages: stages, calls: make([]atomic.Int64, len(stages))}
}

// Parse runs the cascade over a page body.
func (c *Cascade) Parse(body []byte, baseURL string, max int) []types.RawResult {
	p := &Page{Body: body, BaseURL: baseURL}
	for i, s := range c.stages {
		c.calls[i].Add(1)
		if results := s.Parse(p, max); len(results) > 0 {
			return results
		}
	}
	return nil
}

// Calls returns how many times each stage has run, keyed by stage name.
func (c *Cascade) Calls() map[string]int64 {
	out := make(map[string]int64, len(c.stages))
	for i, s := range c.stages {
		out[s.Name()] += c.calls[i].Load()
	}
	return out
}

// collector accumulates unique, valid results up to a limit.
type collector struct {
	max     int
	exclude []string
	seen    map[string]bool
	out     []types.RawResult
}

func newCollector(max int, exclude []string) *collector {
	return &collector{max: max, exclude: exclude, seen: make(map[string]bool)}
}

func (c *collector) full() bool { return c.max > 0 && len(c.out) >= c.max }

// add accepts a result when its URL is valid, not excluded and not yet seen.
func (c *collector) add(title, link, snippet string) bool {
	if c.full() || !ValidResultURL(link) {
		return false
	}
	if u := hostOf(link); u == "" || hostMatches(u, c.exclude) {
		return false
	}
	key := normalizeURL(link)
	if c.seen[key] {
		return false
	}
	c.seen[key] = true
	c.out = append(c.out, types.RawResult{
		Title:   collapseSpace(title),
		URL:     link,
		Snippet: collapseSpace(snippet),
	})
	return true
}

// SelectorStage tries CSS selectors in order. The first selector that
// yields at least one element carrying a usable link wins.
type SelectorStage struct {
	Selectors []string

	// SnippetSelectors locate the description inside a result element.
	SnippetSelectors []string

	// Exclude lists the engine's own domains.
	Exclude []string
}

func (s *SelectorStage) Name() string { return "selector" }

var titleSelectors = "h2, h3, .result__title, .c-title, .t"

func (s *SelectorStage) Parse(p *Page, max int) []types.RawResult {
	doc := p.Doc()
	if doc == nil {
		return nil
	}
	for _, sel := range s.Selectors {
		c := newCollector(max, s.Exclude)
		doc.Find(sel).EachWithBreak(func(_ int, el *goquery.Selection) bool {
			title, link := s.linkOf(el, p.BaseURL)
			if link == "" {
				return true
			}
			c.add(title, link, s.snippetOf(el, title))
			return !c.full()
		})
		if len(c.out) > 0 {
			return c.out
		}
	}
	return nil
}

// linkOf picks the result link of a container element. A heading link is
// preferred; otherwise the first anchor with more than three characters of
// text. Containers carrying the target in an "mu" or "data-url" attribute
// (Baidu) use that when the anchor is an engine redirect.
func (s *SelectorStage) linkOf(el *goquery.Selection, base string) (string, string) {
	var title, link string
	pick := func(a *goquery.Selection) bool {
		href, ok := a.Attr("href")
		text := strings.TrimSpace(a.Text())
		if !ok || len([]rune(text)) <= 3 {
			return false
		}
		if l := cleanResultURL(href, base); l != "" {
			title, link = text, l
			return true
		}
		return false
	}

	if h := el.Find(titleSelectors).First(); h.Length() > 0 {
		a := h.Find("a[href]").First()
		if a.Length() == 0 && h.Parent().Is("a[href]") {
			a = h.Parent()
		}
		if a.Length() > 0 && pick(a) {
			title = strings.TrimSpace(h.Text())
		}
	}
	if link == "" {
		el.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
			return !pick(a)
		})
	}
	if link == "" {
		return "", ""
	}
	if !ValidResultURL(link) {
		for _, attr := range []string{"mu", "data-url"} {
			if v, ok := el.Attr(attr); ok && ValidResultURL(v) {
				return title, v
			}
		}
	}
	return title, link
}

func (s *SelectorStage) snippetOf(el *goquery.Selection, title string) string {
	for _, sel := range s.SnippetSelectors {
		if t := strings.TrimSpace(el.Find(sel).First().Text()); t != "" {
			return truncate(t, 300)
		}
	}
	text := strings.TrimSpace(el.Text())
	text = strings.TrimSpace(strings.Replace(text, title, "", 1))
	return truncate(text, 300)
}

// AggressiveStage scans every anchor on the page, accepting links whose
// text is at least five characters and that leave the engine's domains.
type AggressiveStage struct {
	Exclude []string
}

func (s *AggressiveStage) Name() string { return "aggressive" }

func (s *AggressiveStage) Parse(p *Page, max int) []types.RawResult {
	doc := p.Doc()
	if doc == nil {
		return nil
	}
	c := newCollector(max, s.Exclude)
	limit := max * 5
	doc.Find("a[href]").EachWithBreak(func(i int, a *goquery.Selection) bool {
		if limit > 0 && i >= limit {
			return false
		}
		title := collapseSpace(a.Text())
		if len([]rune(title)) < 5 {
			return true
		}
		href, _ := a.Attr("href")
		link := cleanResultURL(href, p.BaseURL)

		var snippet string
		if parent := collapseSpace(a.Parent().Text()); len(parent) > len(title)+10 {
			snippet = truncate(parent, 200)
		}
		c.add(title, link, snippet)
		return !c.full()
	})
	return c.out
}

// RegexStage extracts absolute href values with a regular expression and
// looks for a title in the surrounding markup.
type RegexStage struct {
	Exclude []string
}

func (s *RegexStage) Name() string { return "regex" }

var (
	hrefPattern   = regexp.MustCompile(`href="(https?://[^"]+)"`)
	contextTitles = []*regexp.Regexp{
		regexp.MustCompile(`(?i)<title[^>]*>([^<]+)</title>`),
		regexp.MustCompile(`title="([^"]+)"`),
		regexp.MustCompile(`>([^<]{10,100})<`),
	}
	contextRadius = 300
)

func (s *RegexStage) Parse(p *Page, max int) []types.RawResult {
	body := string(p.Body)
	c := newCollector(max, s.Exclude)
	for _, loc := range hrefPattern.FindAllStringSubmatchIndex(body, -1) {
		link := html.UnescapeString(body[loc[2]:loc[3]])
		link = cleanResultURL(link, p.BaseURL)

		lo, hi := loc[0]-contextRadius, loc[1]+contextRadius
		if lo < 0 {
			lo = 0
		}
		if hi > len(body) {
			hi = len(body)
		}
		title := titleFromContext(body[lo:hi])
		if title == "" {
			title = "Document from " + link
		}
		c.add(title, link, "")
		if c.full() {
			break
		}
	}
	return c.out
}

func titleFromContext(ctx string) string {
	for _, re := range contextTitles {
		if m := re.FindStringSubmatch(ctx); m != nil {
			t := collapseSpace(html.UnescapeString(m[1]))
			if n := len([]rune(t)); n >= 5 && n <= 200 {
				return t
			}
		}
	}
	return ""
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

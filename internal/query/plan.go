// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package query builds the list of search tasks for a session: one or more
// SearchQuery values per (language, engine) pair. Without optimisation each
// pair gets the original query, translated; with optimisation a language
// model proposes several variants per pair.
package query

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"text/template"

	"github.com/pdiddy/doc-collector/internal/llmparse"
	"github.com/pdiddy/doc-collector/pkg/types"
)

// DefaultMaxQueries bounds the optimised variants per (language, engine).
const DefaultMaxQueries = 5

const (
	fallbackConfidence  = 0.5
	optimizedConfidence = 0.7
)

// Completer sends a prompt to a language model. *llm.Client implements it.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Planner builds query plans.
type Planner struct {
	translator Translator
	llm        Completer
	maxQueries int
	logger     *slog.Logger
}

// Option configures a Planner.
type Option func(*Planner)

// WithTranslator replaces the dictionary translator.
func WithTranslator(t Translator) Option {
	return func(p *Planner) { p.translator = t }
}

// WithCompleter enables AI optimisation through c.
func WithCompleter(c Completer) Option {
	return func(p *Planner) { p.llm = c }
}

// WithMaxQueries sets the variant cap per pair.
func WithMaxQueries(n int) Option {
	return func(p *Planner) {
		if n > 0 {
			p.maxQueries = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Planner) { p.logger = l }
}

// NewPlanner returns a Planner with the dictionary translator and no model.
func NewPlanner(opts ...Option) *Planner {
	p := &Planner{
		translator: NewDictionaryTranslator(nil),
		maxQueries: DefaultMaxQueries,
		logger:     slog.Default().With("component", "query"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Build returns the search tasks for query over languages x engines, in
// language-major order. languages defaults to English. When optimize is set
// and a model is configured each pair gets the model's variants.
func (p *Planner) Build(ctx context.Context, query string, languages, engines []string, optimize bool) []types.SearchQuery {
	query = strings.TrimSpace(query)
	if len(languages) == 0 {
		languages = []string{"en"}
	}
	var out []types.SearchQuery
	for _, lang := range languages {
		text := p.translate(ctx, query, lang)
		for _, engine := range engines {
			if optimize && p.llm != nil {
				out = append(out, p.Optimize(ctx, query, text, lang, engine)...)
				continue
			}
			out = append(out, types.SearchQuery{
				Text: text, Language: lang, Engine: engine,
				Type: types.QueryOriginal, Confidence: 1,
			})
		}
	}
	p.logger.Info("query plan built", "queries", len(out), "languages", len(languages), "engines", len(engines), "optimized", optimize && p.llm != nil)
	return out
}

func (p *Planner) translate(ctx context.Context, text, lang string) string {
	if lang == "en" || p.translator == nil {
		return text
	}
	t, err := p.translator.Translate(ctx, text, lang)
	if err != nil || strings.TrimSpace(t) == "" {
		p.logger.Warn("translation failed, using original text", "lang", lang, "err", err)
		return text
	}
	return t
}

var optimizePromptTmpl = template.Must(template.New("optimize").Parse(`You are an expert search query optimizer. Optimize the following query for {{.Engine}} in {{.Language}}.

ORIGINAL QUERY: "{{.Query}}"
MAX QUERIES: {{.Max}}

GUIDELINES:
1. Break complex queries into simpler, searchable terms
2. Use keywords commonly used in {{.Language}} for the topic
3. Vary specificity from broad to specific
4. Include synonyms and technical terms where relevant

Respond with a JSON object and nothing else:
{"optimized_queries": [{"query": "...", "type": "broad|specific|technical|alternative", "confidence": 0.0}]}
`))

// Optimize asks the model for query variants for one pair. Any failure
// yields the translated query with reduced confidence.
func (p *Planner) Optimize(ctx context.Context, query, translated, lang, engine string) []types.SearchQuery {
	fallback := []types.SearchQuery{{
		Text: translated, Language: lang, Engine: engine,
		Type: types.QueryOriginal, Confidence: fallbackConfidence,
	}}

	var buf bytes.Buffer
	err := optimizePromptTmpl.Execute(&buf, struct {
		Query, Language, Engine string
		Max                     int
	}{query, LanguageName(lang), engine, p.maxQueries})
	if err != nil {
		p.logger.Error("rendering optimisation prompt", "err", err)
		return fallback
	}
	resp, err := p.llm.Complete(ctx, buf.String())
	if err != nil {
		p.logger.Warn("query optimisation failed", "lang", lang, "engine", engine, "err", err)
		return fallback
	}

	variants := parseVariants(resp)
	var out []types.SearchQuery
	seen := make(map[string]bool)
	for _, v := range variants {
		key := strings.ToLower(v.Text)
		if v.Text == "" || seen[key] {
			continue
		}
		seen[key] = true
		v.Language, v.Engine = lang, engine
		out = append(out, v)
		if len(out) == p.maxQueries {
			break
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

// parseVariants reads {"optimized_queries": [...]} answers and falls back
// to a plain list of query strings.
func parseVariants(resp string) []types.SearchQuery {
	obj := llmparse.ParseObject(resp, nil)
	if items, ok := obj.Value["optimized_queries"].([]any); ok && !obj.Degraded {
		var out []types.SearchQuery
		for _, it := range items {
			switch t := it.(type) {
			case map[string]any:
				q := types.SearchQuery{
					Text:       llmparse.String(t["query"]),
					Type:       types.QueryType(strings.ToLower(llmparse.String(t["type"]))),
					Confidence: optimizedConfidence,
				}
				if !q.Type.Valid() || q.Type == types.QueryOriginal {
					q.Type = types.QueryAlternative
				}
				if c, ok := t["confidence"]; ok {
					q.Confidence = llmparse.Score(c)
				}
				out = append(out, q)
			case string:
				out = append(out, types.SearchQuery{Text: strings.TrimSpace(t), Type: types.QueryAlternative, Confidence: optimizedConfidence})
			}
		}
		return out
	}

	list := llmparse.ParseList(resp, nil)
	var out []types.SearchQuery
	for _, s := range list.Value {
		out = append(out, types.SearchQuery{Text: s, Type: types.QueryAlternative, Confidence: optimizedConfidence})
	}
	return out
}

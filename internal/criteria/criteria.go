// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package criteria judges downloaded documents against a free-text relevance
// criterion with a language model.
//
// A criterion is decomposed once per session (Analyze) into atomic
// sub-criteria; each document is then evaluated against them (Evaluate,
// EvaluateBatch). Model output is parsed with llmparse, so malformed answers
// degrade to fallback values instead of errors. Cleanup purges the files of
// documents that were not judged relevant.
package criteria

import (
	"context"
	"log/slog"
	"strings"

	"github.com/pdiddy/doc-collector/internal/llmparse"
	"github.com/pdiddy/doc-collector/pkg/types"
)

// Completer sends a prompt to a language model and returns its raw answer.
// *llm.Client implements it.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Defaults for fields the model leaves out.
const (
	defaultCategory           = "general"
	defaultAnalysisConfidence = 0.7
	fallbackConfidence        = 0.5
	defaultEvalConfidence     = 0.5
	DefaultWorkers            = 4
)

// Evaluator decomposes criteria and evaluates documents against them.
type Evaluator struct {
	llm     Completer
	workers int
	logger  *slog.Logger
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithWorkers sets the size of the EvaluateBatch pool. Model calls are still
// bounded by the client's own gate.
func WithWorkers(n int) Option {
	return func(e *Evaluator) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Evaluator) { e.logger = l }
}

// New returns an Evaluator backed by llm.
func New(llm Completer, opts ...Option) *Evaluator {
	e := &Evaluator{
		llm:     llm,
		workers: DefaultWorkers,
		logger:  slog.Default().With("component", "criteria"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// FallbackCriteria treats the whole text as a single criterion.
func FallbackCriteria(text string) types.AnalyzedCriteria {
	return types.AnalyzedCriteria{
		OriginalText:       text,
		SpecificCriteria:   []string{text},
		Categories:         []string{defaultCategory},
		FlexibleEvaluation: true,
		MinCriteriaMet:     1,
		Confidence:         fallbackConfidence,
		Degraded:           true,
	}
}

// Analyze decomposes criteria text into sub-criteria with one model call.
// Any failure yields FallbackCriteria.
func (e *Evaluator) Analyze(ctx context.Context, text string) types.AnalyzedCriteria {
	text = strings.TrimSpace(text)
	fallback := FallbackCriteria(text)

	prompt, err := renderAnalysisPrompt(text)
	if err != nil {
		e.logger.Error("criteria analysis", "err", err)
		return fallback
	}
	resp, err := e.llm.Complete(ctx, prompt)
	if err != nil {
		e.logger.Warn("criteria analysis failed, using criteria as-is", "err", err)
		return fallback
	}

	parsed := llmparse.ParseObject(resp, nil)
	if parsed.Degraded {
		e.logger.Warn("criteria analysis unparseable, using criteria as-is")
		return fallback
	}
	ac := analyzedFrom(parsed.Value, text)
	e.logger.Info("criteria analysed", "criteria", len(ac.SpecificCriteria), "min_met", ac.MinCriteriaMet, "strategy", parsed.Strategy)
	return ac
}

func analyzedFrom(obj map[string]any, text string) types.AnalyzedCriteria {
	ac := types.AnalyzedCriteria{
		OriginalText:       text,
		SpecificCriteria:   llmparse.StringList(obj["specific_criteria"]),
		Categories:         llmparse.StringList(obj["categories"]),
		FlexibleEvaluation: true,
		MinCriteriaMet:     1,
		Confidence:         defaultAnalysisConfidence,
	}
	if v, ok := lookup(obj, "reasoning", "reason"); ok {
		ac.Reasoning = llmparse.String(v)
	}
	if len(ac.SpecificCriteria) == 0 {
		ac.SpecificCriteria = []string{text}
	}
	if len(ac.Categories) == 0 {
		ac.Categories = []string{defaultCategory}
	}
	if b, ok := llmparse.Bool(obj["flexible_evaluation"]); ok {
		ac.FlexibleEvaluation = b
	}
	if n, ok := llmparse.Int(obj["min_criteria_met"]); ok {
		ac.MinCriteriaMet = n
	}
	if ac.MinCriteriaMet < 1 {
		ac.MinCriteriaMet = 1
	}
	if ac.MinCriteriaMet > len(ac.SpecificCriteria) {
		ac.MinCriteriaMet = len(ac.SpecificCriteria)
	}
	if v, ok := lookup(obj, "analysis_confidence", "confidence", "confidence_score"); ok {
		ac.Confidence = llmparse.Score(v)
	}
	return ac
}

// lookup returns the value of the first key present in obj. Models answer
// with different key names for the same field.
func lookup(obj map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := obj[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// FallbackVerdict is the verdict used when a document cannot be judged:
// not relevant, score 0, every criterion unmet.
func FallbackVerdict(ac types.AnalyzedCriteria, summary string) types.EvaluationResult {
	return types.EvaluationResult{
		Relevant:       false,
		Score:          0,
		CriteriaMet:    []string{},
		CriteriaNotMet: append([]string(nil), ac.SpecificCriteria...),
		Summary:        summary,
		Confidence:     0,
		Degraded:       true,
	}
}

// Evaluate judges content against ac. The model's relevant flag is taken as
// given; the score is clamped to [0,1].
func (e *Evaluator) Evaluate(ctx context.Context, content string, ac types.AnalyzedCriteria) types.EvaluationResult {
	prompt, err := renderEvaluationPrompt(content, ac.SpecificCriteria, ac.FlexibleEvaluation, ac.MinCriteriaMet)
	if err != nil {
		e.logger.Error("document evaluation", "err", err)
		return FallbackVerdict(ac, "evaluation failed")
	}
	resp, err := e.llm.Complete(ctx, prompt)
	if err != nil {
		e.logger.Warn("document evaluation failed", "err", err)
		return FallbackVerdict(ac, "evaluation failed")
	}

	parsed := llmparse.ParseObject(resp, nil)
	if parsed.Degraded {
		e.logger.Warn("document evaluation unparseable")
		return FallbackVerdict(ac, "evaluation parsing failed")
	}
	return verdictFrom(parsed.Value)
}

func verdictFrom(obj map[string]any) types.EvaluationResult {
	v := types.EvaluationResult{
		CriteriaMet:    llmparse.StringList(obj["criteria_met"]),
		CriteriaNotMet: llmparse.StringList(obj["criteria_not_met"]),
		Confidence:     defaultEvalConfidence,
	}
	if r, ok := lookup(obj, "relevant", "is_relevant"); ok {
		v.Relevant, _ = llmparse.Bool(r)
	}
	if s, ok := lookup(obj, "summary", "reason", "reasoning"); ok {
		v.Summary = llmparse.String(s)
	}
	if s, ok := lookup(obj, "score", "relevance_score"); ok {
		v.Score = llmparse.Clamp01(llmparse.Score(s))
	}
	if c, ok := lookup(obj, "confidence", "confidence_score"); ok {
		v.Confidence = llmparse.Score(c)
	}
	if v.Summary == "" {
		v.Summary = "No summary provided"
	}
	return v
}

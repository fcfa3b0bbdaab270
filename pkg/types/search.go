// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the doc-collector pipeline:
// search queries and results, session and result records, analysed criteria
// and evaluation verdicts, and the configuration for every stage.
package types

// QueryType classifies how a SearchQuery was produced.
type QueryType string

const (
	QueryOriginal    QueryType = "original"
	QueryBroad       QueryType = "broad"
	QuerySpecific    QueryType = "specific"
	QueryTechnical   QueryType = "technical"
	QueryAlternative QueryType = "alternative"
)

// Valid reports whether t is one of the known query types.
func (t QueryType) Valid() bool {
	switch t {
	case QueryOriginal, QueryBroad, QuerySpecific, QueryTechnical, QueryAlternative:
		return true
	}
	return false
}

// SearchQuery is one query text bound to a language and an engine.
// Values are never mutated after construction.
type SearchQuery struct {
	// Text is the (possibly translated) query text sent to the engine.
	Text string `json:"text" yaml:"text"`

	// Language is the ISO 639-1 code the text is written in.
	Language string `json:"language" yaml:"language"`

	// Engine names the engine handler the query targets.
	Engine string `json:"engine" yaml:"engine"`

	// Type records how the query was derived.
	Type QueryType `json:"type" yaml:"type"`

	// Confidence is the producer's confidence in the query, in [0,1].
	Confidence float64 `json:"confidence" yaml:"confidence"`
}

// RawResult is a single hit parsed from an engine's result page.
// It is ephemeral: the collector turns admitted results into ResultRecords.
type RawResult struct {
	Title   string `json:"title" yaml:"title"`
	URL     string `json:"url" yaml:"url"`
	Snippet string `json:"snippet" yaml:"snippet"`

	// Engine is the handler name that produced the result.
	Engine string `json:"engine" yaml:"engine"`

	// Query and Language identify the search task that produced the hit.
	Query    string `json:"query,omitempty" yaml:"query,omitempty"`
	Language string `json:"language,omitempty" yaml:"language,omitempty"`

	// Page is the 1-based result page the hit came from.
	Page int `json:"page,omitempty" yaml:"page,omitempty"`

	// Score is the heuristic relevance assigned by the coordinator.
	Score float64 `json:"score" yaml:"score"`
}

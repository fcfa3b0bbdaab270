// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// AnalyzedCriteria is the structured form of a free-text relevance criterion.
// It is produced once per session and read by every document evaluation.
type AnalyzedCriteria struct {
	OriginalText     string   `json:"original_criteria" yaml:"original_criteria"`
	SpecificCriteria []string `json:"specific_criteria" yaml:"specific_criteria"`
	Categories       []string `json:"categories,omitempty" yaml:"categories,omitempty"`

	// FlexibleEvaluation allows a document to pass without meeting every criterion.
	FlexibleEvaluation bool `json:"flexible_evaluation" yaml:"flexible_evaluation"`

	// MinCriteriaMet is the number of sub-criteria a document should meet.
	MinCriteriaMet int `json:"min_criteria_met" yaml:"min_criteria_met"`

	Confidence float64 `json:"analysis_confidence" yaml:"analysis_confidence"`
	Reasoning  string  `json:"reasoning,omitempty" yaml:"reasoning,omitempty"`

	// Degraded is set when the analysis fell back to a single criterion.
	Degraded bool `json:"-" yaml:"-"`
}

// EvaluationResult is the verdict for one document against AnalyzedCriteria.
type EvaluationResult struct {
	Relevant       bool     `json:"relevant" yaml:"relevant"`
	Score          float64  `json:"score" yaml:"score"`
	CriteriaMet    []string `json:"criteria_met" yaml:"criteria_met"`
	CriteriaNotMet []string `json:"criteria_not_met" yaml:"criteria_not_met"`
	Summary        string   `json:"summary" yaml:"summary"`
	Confidence     float64  `json:"confidence" yaml:"confidence"`

	// Degraded is set when the model's answer could not be parsed or the
	// model could not be reached.
	Degraded bool `json:"-" yaml:"-"`
}

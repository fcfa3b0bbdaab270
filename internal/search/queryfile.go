// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/doc-collector/pkg/types"
)

// QueryPlan is the on-disk record of the queries a session ran and what they
// returned. It is written next to the session's documents so a run can be
// inspected, or its queries replayed, without the database.
type QueryPlan struct {
	Query    string              `yaml:"query"`
	Criteria string              `yaml:"criteria,omitempty"`
	Config   QueryPlanConfig     `yaml:"config"`
	Queries  []types.SearchQuery `yaml:"queries"`
	Summary  QueryPlanSummary    `yaml:"summary"`
}

// QueryPlanConfig stores the search settings that produced the plan.
type QueryPlanConfig struct {
	MaxResults int      `yaml:"max_results"`
	Pages      int      `yaml:"pages"`
	Optimized  bool     `yaml:"optimized"`
	Engines    []string `yaml:"engines"`
	Languages  []string `yaml:"languages"`
}

// QueryPlanSummary stores result statistics and a timestamp.
type QueryPlanSummary struct {
	Results           int       `yaml:"results"`
	DuplicatesRemoved int       `yaml:"duplicates_removed"`
	EngineErrors      []string  `yaml:"engine_errors,omitempty"`
	Timestamp         time.Time `yaml:"timestamp"`
}

// Summarize fills the plan summary from a search output.
func (p *QueryPlan) Summarize(out SearchOutput) {
	p.Summary = QueryPlanSummary{
		Results:           len(out.Results),
		DuplicatesRemoved: out.DupsRemoved,
		EngineErrors:      out.EngineErrors,
		Timestamp:         time.Now().UTC(),
	}
}

// WriteQueryPlan saves a plan as YAML.
func WriteQueryPlan(path string, plan *QueryPlan) error {
	data, err := yaml.Marshal(plan)
	if err != nil {
		return fmt.Errorf("marshaling query plan: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadQueryPlan loads a previously saved plan.
func ReadQueryPlan(path string) (*QueryPlan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading query plan: %w", err)
	}
	var p QueryPlan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing query plan: %w", err)
	}
	for i, q := range p.Queries {
		if !q.Type.Valid() {
			return nil, fmt.Errorf("query %d: unknown type %q", i, q.Type)
		}
	}
	return &p, nil
}

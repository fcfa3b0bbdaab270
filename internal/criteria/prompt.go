// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package criteria

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// Prefix limits applied to evaluation prompts.
const (
	maxContentChars  = 2000
	maxCriteriaChars = 500
)

// analysisPromptTmpl asks the model to decompose free-text criteria into
// atomic, checkable sub-criteria.
var analysisPromptTmpl = template.Must(template.New("analysis").Parse(`You are an expert document evaluation analyst. Break the following criteria into specific, actionable evaluation criteria.

ORIGINAL CRITERIA: "{{.Criteria}}"

TASK:
1. Break the criteria into specific, measurable evaluation points
2. Identify the categories the criteria fall into
3. Decide whether flexible evaluation (meeting ANY criterion) is appropriate
4. Set the minimum number of criteria a relevant document must meet

Consider related terms and synonyms, and both exact matches and related concepts.

Respond with a JSON object and nothing else:
{"original_criteria": "...", "specific_criteria": ["..."], "categories": ["..."], "flexible_evaluation": true, "min_criteria_met": 1, "analysis_confidence": 0.0, "reasoning": "..."}
`))

// evaluationPromptTmpl asks the model for a verdict on one document.
var evaluationPromptTmpl = template.Must(template.New("evaluation").Parse(`You are an expert document evaluator. Decide whether this document meets the criteria below.

DOCUMENT CONTENT (first {{.ContentLimit}} characters):
{{.Content}}

EVALUATION CRITERIA:
{{.Criteria}}

RULES:
- Flexible evaluation: {{.Flexible}}
- Minimum criteria to meet: {{.MinMet}}
- Score range: 0.0 (no match) to 1.0 (perfect match)
- Consider synonyms and related concepts, focus on content rather than wording

Respond with a JSON object and nothing else:
{"relevant": true, "score": 0.0, "criteria_met": ["..."], "criteria_not_met": ["..."], "summary": "...", "confidence": 0.0}
`))

func renderAnalysisPrompt(criteria string) (string, error) {
	var buf bytes.Buffer
	if err := analysisPromptTmpl.Execute(&buf, struct{ Criteria string }{criteria}); err != nil {
		return "", fmt.Errorf("rendering analysis prompt: %w", err)
	}
	return buf.String(), nil
}

func renderEvaluationPrompt(content string, specific []string, flexible bool, minMet int) (string, error) {
	var lines strings.Builder
	for _, c := range specific {
		lines.WriteString("- ")
		lines.WriteString(c)
		lines.WriteString("\n")
	}
	data := struct {
		ContentLimit int
		Content      string
		Criteria     string
		Flexible     bool
		MinMet       int
	}{
		ContentLimit: maxContentChars,
		Content:      prefix(content, maxContentChars),
		Criteria:     prefix(strings.TrimRight(lines.String(), "\n"), maxCriteriaChars),
		Flexible:     flexible,
		MinMet:       minMet,
	}
	var buf bytes.Buffer
	if err := evaluationPromptTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering evaluation prompt: %w", err)
	}
	return buf.String(), nil
}

// prefix returns at most n runes of s.
func prefix(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

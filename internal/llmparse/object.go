// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llmparse

import (
	"regexp"
	"strconv"
	"strings"
)

type objectStrategy struct {
	name  string
	parse func(text string) map[string]any
}

var objectCascade = []objectStrategy{
	{StrategyDirect, objectDirect},
	{StrategySpan, objectSpan},
	{StrategyFenced, objectFenced},
	{StrategyLabeled, objectLabeled},
}

// ParseObject extracts a JSON-like object from text. The fallback is
// returned, with Degraded set, when no strategy yields a non-empty object.
//
// The labelled strategy recognises the keys used by criteria analysis and
// document evaluation and reports them under their JSON names:
// specific_criteria, criteria_met, criteria_not_met, flexible_evaluation,
// min_criteria_met, relevant, score, confidence and summary. Scores found
// this way are already normalised into [0,1].
func ParseObject(text string, fallback map[string]any) Result[map[string]any] {
	text = clean(text)
	if text != "" {
		for _, s := range objectCascade {
			if obj := s.parse(text); len(obj) > 0 {
				return Result[map[string]any]{Value: obj, Strategy: s.name}
			}
		}
	}
	return Result[map[string]any]{Value: fallback, Strategy: StrategyFallback, Degraded: true}
}

func objectDirect(text string) map[string]any {
	if !strings.HasPrefix(text, "{") || !strings.HasSuffix(text, "}") {
		return nil
	}
	return jsonObject(text)
}

func objectSpan(text string) map[string]any {
	candidates := fencedContents(text)
	candidates = append(candidates, text)
	for _, c := range candidates {
		for _, span := range balancedSpans(c, '{', '}') {
			if obj := jsonObject(span); len(obj) > 0 {
				return obj
			}
		}
	}
	return nil
}

func objectFenced(text string) map[string]any {
	for _, body := range fencedContents(text) {
		if obj := jsonObject(body); len(obj) > 0 {
			return obj
		}
	}
	return nil
}

func jsonObject(s string) map[string]any {
	var obj map[string]any
	if !decode(s, &obj) {
		return nil
	}
	return obj
}

const (
	sep    = `["']?\s*[:=]?\s*`
	number = `([0-9]+(?:\.[0-9]+)?)`
	suffix = `\s*(/\s*10(?:\.0+)?\b|%)?`
)

var (
	labeledLists = []struct {
		key string
		re  *regexp.Regexp
	}{
		{"specific_criteria", regexp.MustCompile(`(?is)\b(?:specific_)?criteria\b` + sep + `\[(.*?)\]`)},
		{"criteria_met", regexp.MustCompile(`(?is)\bcriteria_met\b` + sep + `\[(.*?)\]`)},
		{"criteria_not_met", regexp.MustCompile(`(?is)\bcriteria_not_met\b` + sep + `\[(.*?)\]`)},
		{"categories", regexp.MustCompile(`(?is)\bcategories\b` + sep + `\[(.*?)\]`)},
	}

	labeledRelevant = regexp.MustCompile(`(?i)\b(?:is_)?relevant\b` + sep + `["']?(true|false|yes|no)\b`)
	leadingVerdict  = regexp.MustCompile(`(?i)^\W*(yes|no)\b`)
	labeledFlexible = regexp.MustCompile(`(?i)\bflexible(?:_evaluation)?\b` + sep + `(true|false)\b`)
	labeledMin      = regexp.MustCompile(`(?i)\bmin(?:_criteria_met)?\b` + sep + `(\d+)`)
	labeledScore    = regexp.MustCompile(`(?i)\bscore\b` + sep + number + suffix)
	labeledConf     = regexp.MustCompile(`(?i)\b(?:analysis_)?confidence\b` + sep + number + suffix)
	outOfTen        = regexp.MustCompile(number + `\s*/\s*10\b`)
	percent         = regexp.MustCompile(number + `\s*%`)
	labeledSummary  = regexp.MustCompile(`(?i)\b(?:summary|reason(?:ing)?)\b["']?\s*[:=]\s*["']?([^\n"]+)`)
)

func objectLabeled(text string) map[string]any {
	obj := make(map[string]any)

	for _, l := range labeledLists {
		if m := l.re.FindStringSubmatch(text); m != nil {
			var items []string
			for _, part := range strings.Split(m[1], ",") {
				if item := cleanItem(part); item != "" {
					items = append(items, item)
				}
			}
			if len(items) > 0 {
				obj[l.key] = items
			}
		}
	}

	if m := labeledRelevant.FindStringSubmatch(text); m != nil {
		obj["relevant"] = truthy(m[1])
	} else if m := leadingVerdict.FindStringSubmatch(text); m != nil {
		obj["relevant"] = truthy(m[1])
	}
	if m := labeledFlexible.FindStringSubmatch(text); m != nil {
		obj["flexible_evaluation"] = truthy(m[1])
	}
	if m := labeledMin.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			obj["min_criteria_met"] = n
		}
	}

	switch {
	case labeledScore.MatchString(text):
		m := labeledScore.FindStringSubmatch(text)
		obj["score"] = normalizeMatch(m[1], m[2])
	case outOfTen.MatchString(text):
		obj["score"] = normalizeMatch(outOfTen.FindStringSubmatch(text)[1], "/10")
	case percent.MatchString(text):
		obj["score"] = normalizeMatch(percent.FindStringSubmatch(text)[1], "%")
	}
	if m := labeledConf.FindStringSubmatch(text); m != nil {
		obj["confidence"] = normalizeMatch(m[1], m[2])
	}

	if m := labeledSummary.FindStringSubmatch(text); m != nil {
		if s := strings.TrimSpace(m[1]); s != "" {
			obj["summary"] = s
		}
	}
	return obj
}

func truthy(s string) bool {
	switch strings.ToLower(s) {
	case "true", "yes":
		return true
	}
	return false
}

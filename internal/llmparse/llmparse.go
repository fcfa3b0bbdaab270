// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llmparse turns free-text language model output into structured
// values. Responses nominally contain JSON but arrive wrapped in prose, inside
// fenced code blocks, or malformed. ParseList and ParseObject try an ordered
// cascade of strategies and return the first well-typed, non-empty value; when
// every strategy fails the caller's fallback is returned and the result is
// marked degraded. Neither function panics or returns an error.
package llmparse

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Result carries a parsed value and how it was obtained.
type Result[T any] struct {
	Value T

	// Strategy names the cascade step that produced Value, or "fallback".
	Strategy string

	// Degraded is true when Value is the caller's fallback.
	Degraded bool
}

// Strategy names reported in Result.Strategy.
const (
	StrategyDirect    = "direct"
	StrategySpan      = "span"
	StrategyFenced    = "fenced"
	StrategyDelimited = "delimited"
	StrategyQuoted    = "quoted"
	StrategyLabeled   = "labeled"
	StrategyFallback  = "fallback"
)

var (
	thinkBlock  = regexp.MustCompile(`(?is)<think>.*?</think>`)
	fencedBlock = regexp.MustCompile("(?s)```[a-zA-Z0-9_-]*[ \t]*\\n?(.*?)```")
)

// clean strips reasoning blocks some local models emit before the answer.
func clean(text string) string {
	return strings.TrimSpace(thinkBlock.ReplaceAllString(text, ""))
}

// fencedContents returns the bodies of all fenced code blocks in order.
func fencedContents(text string) []string {
	var out []string
	for _, m := range fencedBlock.FindAllStringSubmatch(text, -1) {
		if body := strings.TrimSpace(m[1]); body != "" {
			out = append(out, body)
		}
	}
	return out
}

// balancedSpans returns every top-level substring of s that starts with open
// and ends with the matching close, skipping brackets inside JSON strings.
func balancedSpans(s string, open, close byte) []string {
	var spans []string
	depth, start := 0, -1
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			if depth > 0 {
				inString = true
			}
		case open:
			if depth == 0 {
				start = i
			}
			depth++
		case close:
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 && start >= 0 {
				spans = append(spans, s[start:i+1])
				start = -1
			}
		}
	}
	return spans
}

var (
	unquotedKey   = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)\s*:`)
	trailingComma = regexp.MustCompile(`,\s*([}\]])`)
	pyLiteral     = regexp.MustCompile(`\b(True|False|None)\b`)
)

// repairJSON fixes the malformations models produce most often: bare keys,
// trailing commas and Python literals.
func repairJSON(s string) string {
	s = unquotedKey.ReplaceAllString(s, `$1"$2":`)
	s = trailingComma.ReplaceAllString(s, "$1")
	return pyLiteral.ReplaceAllStringFunc(s, func(m string) string {
		switch m {
		case "True":
			return "true"
		case "False":
			return "false"
		}
		return "null"
	})
}

// decode unmarshals s into v, retrying once on the repaired text.
func decode(s string, v any) bool {
	if json.Unmarshal([]byte(s), v) == nil {
		return true
	}
	repaired := repairJSON(s)
	if repaired == s {
		return false
	}
	return json.Unmarshal([]byte(repaired), v) == nil
}

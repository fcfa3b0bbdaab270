// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llmparse

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

type listStrategy struct {
	name  string
	parse func(text string) []string
}

var listCascade = []listStrategy{
	{StrategyDirect, listDirect},
	{StrategySpan, listSpan},
	{StrategyFenced, listFenced},
	{StrategyDelimited, listDelimited},
	{StrategyQuoted, listQuoted},
}

// ParseList extracts a list of strings from text. The fallback is returned,
// with Degraded set, when no strategy yields a non-empty list.
func ParseList(text string, fallback []string) Result[[]string] {
	text = clean(text)
	if text != "" {
		for _, s := range listCascade {
			if items := s.parse(text); len(items) > 0 {
				return Result[[]string]{Value: items, Strategy: s.name}
			}
		}
	}
	return Result[[]string]{Value: fallback, Strategy: StrategyFallback, Degraded: true}
}

func listDirect(text string) []string {
	if !strings.HasPrefix(text, "[") || !strings.HasSuffix(text, "]") {
		return nil
	}
	return jsonList(text)
}

// listSpan tries bracketed spans inside fenced blocks first, then anywhere.
func listSpan(text string) []string {
	candidates := fencedContents(text)
	candidates = append(candidates, text)
	for _, c := range candidates {
		for _, span := range balancedSpans(c, '[', ']') {
			if items := jsonList(span); len(items) > 0 {
				return items
			}
		}
	}
	return nil
}

func listFenced(text string) []string {
	for _, body := range fencedContents(text) {
		if items := jsonList(body); len(items) > 0 {
			return items
		}
		var items []string
		for _, line := range strings.Split(body, "\n") {
			if item := cleanItem(line); item != "" {
				items = append(items, item)
			}
		}
		if len(items) > 0 {
			return items
		}
	}
	return nil
}

func listDelimited(text string) []string {
	for _, sep := range []string{"\n", ",", ";", "|"} {
		parts := strings.Split(text, sep)
		if len(parts) < 2 {
			continue
		}
		var items []string
		for _, p := range parts {
			if item := cleanItem(p); item != "" {
				items = append(items, item)
			}
		}
		if len(items) > 1 {
			return items
		}
	}
	return nil
}

var (
	doubleQuoted = regexp.MustCompile(`"([^"\n]+)"`)
	singleQuoted = regexp.MustCompile(`'([^'\n]+)'`)
)

func listQuoted(text string) []string {
	for _, re := range []*regexp.Regexp{doubleQuoted, singleQuoted} {
		var items []string
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if item := strings.TrimSpace(m[1]); item != "" {
				items = append(items, item)
			}
		}
		if len(items) > 0 {
			return items
		}
	}
	return nil
}

// jsonList decodes s as a JSON array and stringifies its non-empty elements.
func jsonList(s string) []string {
	var raw []any
	if !decode(s, &raw) {
		return nil
	}
	return StringList(raw)
}

var listMarker = regexp.MustCompile(`^(?:[-*•]|\d+[.)])\s+`)

// cleanItem trims whitespace, list markers, quotes and brackets.
func cleanItem(s string) string {
	s = strings.TrimSpace(s)
	s = listMarker.ReplaceAllString(s, "")
	return strings.TrimSpace(strings.Trim(s, "\"'[]`"))
}

// StringList coerces a decoded JSON value into a list of non-empty strings.
// Scalars become one-element lists; nil yields nil.
func StringList(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case []string:
		var out []string
		for _, s := range t {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	case []any:
		var out []string
		for _, e := range t {
			switch ev := e.(type) {
			case nil:
			case string:
				if ev = strings.TrimSpace(ev); ev != "" {
					out = append(out, ev)
				}
			case map[string]any, []any:
				b, _ := json.Marshal(ev)
				out = append(out, string(b))
			default:
				out = append(out, fmt.Sprint(ev))
			}
		}
		return out
	case string:
		if s := strings.TrimSpace(t); s != "" {
			return []string{s}
		}
		return nil
	}
	return []string{fmt.Sprint(v)}
}

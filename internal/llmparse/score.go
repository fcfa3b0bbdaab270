// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llmparse

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Clamp01 limits f to [0,1]. NaN maps to 0.
func Clamp01(f float64) float64 {
	switch {
	case math.IsNaN(f), f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

// NormalizeScore maps a bare model score onto [0,1]. Values above 10 are
// divided by 10 and values above 1 by 100, covering "X/10" and "X%" answers
// that lost their unit; the result is clamped.
func NormalizeScore(v float64) float64 {
	switch {
	case v > 10:
		v /= 10
	case v > 1:
		v /= 100
	}
	return Clamp01(v)
}

func normalizeMatch(num, unit string) float64 {
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	unit = strings.ReplaceAll(unit, " ", "")
	switch {
	case strings.HasPrefix(unit, "/10"):
		return Clamp01(v / 10)
	case unit == "%":
		return Clamp01(v / 100)
	}
	return NormalizeScore(v)
}

var scoreText = regexp.MustCompile(`^\s*` + number + suffix + `\s*$`)

// ParseScore parses score strings such as "0.7", "7/10" and "70%" into [0,1].
// The second return is false when s is not a recognised score.
func ParseScore(s string) (float64, bool) {
	m := scoreText.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	return normalizeMatch(m[1], m[2]), true
}

// Score coerces a decoded JSON value into a score in [0,1].
func Score(v any) float64 {
	switch t := v.(type) {
	case float64:
		return NormalizeScore(t)
	case int:
		return NormalizeScore(float64(t))
	case string:
		f, _ := ParseScore(t)
		return f
	case bool:
		if t {
			return 1
		}
	}
	return 0
}

// Bool coerces a decoded JSON value into a boolean, accepting "yes"/"no"
// and "true"/"false" strings.
func Bool(v any) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes":
			return true, true
		case "false", "no":
			return false, true
		}
	}
	return false, false
}

// Int coerces a decoded JSON number or numeric string into an int.
func Int(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		return int(t), true
	case int:
		return t, true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		return n, err == nil
	}
	return 0, false
}

// String coerces a decoded JSON value into a trimmed string.
func String(v any) string {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

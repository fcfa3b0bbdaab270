// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"net/url"
	"path"
	"strings"

	"github.com/pdiddy/doc-collector/pkg/types"
)

// Heuristic weights applied by Score.
const (
	spamPenalty         = -2.0
	academicBoost       = 1.0
	documentBoost       = 1.5
	shortTitlePenalty   = -1.0
	longTitleBoost      = 0.5
	genericTitlePenalty = -1.5

	shortTitleLen = 10
	longTitleLen  = 50
)

var (
	spamDomains = []string{
		"support.google.com", "google.com/search", "google.com/intl",
		"baomoi.com", "anninhthudo.vn", "soha.vn",
	}
	academicMarkers = []string{"wikipedia.org", "edu", "gov", "org", "research", "academic"}
	documentExts    = map[string]bool{
		".pdf": true, ".doc": true, ".docx": true, ".ppt": true, ".pptx": true, ".txt": true,
	}
	genericTitles = []string{"document from", "search results", "web search", "google search"}
)

// Score is the heuristic relevance of a raw result: spam and internal
// domains and generic or very short titles lower it; academic and official
// domains, document links and descriptive titles raise it.
func Score(r types.RawResult) float64 {
	u := strings.ToLower(r.URL)
	title := strings.ToLower(strings.TrimSpace(r.Title))
	score := 0.0

	for _, d := range spamDomains {
		if strings.Contains(u, d) {
			score += spamPenalty
		}
	}
	for _, m := range academicMarkers {
		if strings.Contains(u, m) {
			score += academicBoost
		}
	}
	if documentExts[urlExt(u)] {
		score += documentBoost
	}

	switch n := len([]rune(title)); {
	case n < shortTitleLen:
		score += shortTitlePenalty
	case n > longTitleLen:
		score += longTitleBoost
	}
	for _, g := range genericTitles {
		if strings.Contains(title, g) {
			score += genericTitlePenalty
		}
	}
	return score
}

// urlExt returns the lower-cased extension of a URL's path.
func urlExt(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(path.Ext(u.Path))
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package query

import (
	"context"
	"regexp"
	"sort"
	"strings"
)

// Translator renders query text in a target language.
type Translator interface {
	Translate(ctx context.Context, text, lang string) (string, error)
}

// LanguageNames maps supported ISO 639-1 codes to English names.
var LanguageNames = map[string]string{
	"en": "English",
	"vi": "Vietnamese",
	"ja": "Japanese",
	"ko": "Korean",
	"ru": "Russian",
	"fa": "Persian",
	"zh": "Chinese",
}

// LanguageName returns the English name of code, or code itself.
func LanguageName(code string) string {
	if n, ok := LanguageNames[code]; ok {
		return n
	}
	return code
}

// defaultTerms is the built-in glossary used by DictionaryTranslator.
var defaultTerms = map[string]map[string]string{
	"vi": {
		"artificial intelligence": "trí tuệ nhân tạo",
		"machine learning":        "học máy",
		"deep learning":           "học sâu",
		"neural network":          "mạng nơ-ron",
	},
	"ja": {
		"artificial intelligence": "人工知能",
		"machine learning":        "機械学習",
		"deep learning":           "深層学習",
		"neural network":          "ニューラルネットワーク",
	},
	"ko": {
		"artificial intelligence": "인공지능",
		"machine learning":        "기계학습",
		"deep learning":           "딥러닝",
		"neural network":          "신경망",
	},
	"ru": {
		"artificial intelligence": "искусственный интеллект",
		"machine learning":        "машинное обучение",
		"deep learning":           "глубокое обучение",
		"neural network":          "нейронная сеть",
	},
	"fa": {
		"artificial intelligence": "هوش مصنوعی",
		"machine learning":        "یادگیری ماشین",
		"deep learning":           "یادگیری عمیق",
		"neural network":          "شبکه عصبی",
	},
	"zh": {
		"artificial intelligence": "人工智能",
		"machine learning":        "机器学习",
		"deep learning":           "深度学习",
		"neural network":          "神经网络",
	},
}

// DictionaryTranslator replaces known English terms with their translation.
// Text without a known term is returned unchanged, so it never fails.
type DictionaryTranslator struct {
	terms map[string]map[string]string
}

// NewDictionaryTranslator returns a translator over the built-in glossary
// merged with extra (language -> term -> translation).
func NewDictionaryTranslator(extra map[string]map[string]string) *DictionaryTranslator {
	terms := make(map[string]map[string]string, len(defaultTerms))
	for _, src := range []map[string]map[string]string{defaultTerms, extra} {
		for lang, m := range src {
			if terms[lang] == nil {
				terms[lang] = make(map[string]string, len(m))
			}
			for k, v := range m {
				terms[lang][strings.ToLower(k)] = v
			}
		}
	}
	return &DictionaryTranslator{terms: terms}
}

// Translate replaces every glossary term in text, longest terms first and
// case-insensitively.
func (d *DictionaryTranslator) Translate(_ context.Context, text, lang string) (string, error) {
	m := d.terms[lang]
	if len(m) == 0 {
		return text, nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	for _, k := range keys {
		re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(k))
		text = re.ReplaceAllLiteralString(text, m[k])
	}
	return text, nil
}

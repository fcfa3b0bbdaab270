// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert extracts plain text from downloaded documents so they can
// be judged against the session criteria. Text and HTML are handled in
// process; PDF and office formats go through a Converter backend.
package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DefaultMaxBytes caps how much of a text or HTML file is read.
const DefaultMaxBytes = 2 << 20

var (
	ErrUnsupported = errors.New("unsupported file type")
	ErrNoConverter = errors.New("no converter configured")
	ErrNoText      = errors.New("no text extracted")
)

// Converter renders a binary document (PDF, DOC, DOCX, RTF) as text.
type Converter interface {
	Convert(ctx context.Context, path string) (string, error)
}

// Extractor reads document text by file type.
type Extractor struct {
	converter Converter
	maxBytes  int64
	logger    *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithConverter sets the backend for binary formats.
func WithConverter(c Converter) Option {
	return func(e *Extractor) { e.converter = c }
}

// WithMaxBytes caps how much of a text or HTML file is read.
func WithMaxBytes(n int64) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.maxBytes = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) { e.logger = l }
}

// NewExtractor creates an Extractor. Without a converter only text and HTML
// files can be read.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		maxBytes: DefaultMaxBytes,
		logger:   slog.Default().With("component", "convert"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the whitespace-normalised text of the file at path.
// fileType is the extension with its leading dot.
func (e *Extractor) Extract(ctx context.Context, path, fileType string) (string, error) {
	var (
		text string
		err  error
	)
	switch strings.ToLower(fileType) {
	case ".txt":
		var data []byte
		data, err = e.read(path)
		text = string(data)
	case ".html", ".htm":
		var data []byte
		if data, err = e.read(path); err == nil {
			text, err = HTMLText(bytes.NewReader(data))
		}
	case ".pdf", ".doc", ".docx", ".rtf":
		if e.converter == nil {
			return "", fmt.Errorf("%w for %s", ErrNoConverter, fileType)
		}
		text, err = e.converter.Convert(ctx, path)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupported, fileType)
	}
	if err != nil {
		return "", err
	}

	text = normalizeSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: %s", ErrNoText, path)
	}
	e.logger.Debug("extracted", "path", path, "chars", len(text))
	return text, nil
}

func (e *Extractor) read(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, e.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

// HTMLText returns the visible text of an HTML document: the title followed
// by the body, without scripts, styles or navigation chrome.
func HTMLText(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("parsing HTML: %w", err)
	}
	doc.Find("script, style, noscript, nav, header, footer, iframe, svg").Remove()

	var parts []string
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		parts = append(parts, title)
	}
	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}
	body.Find("p, div, li, h1, h2, h3, h4, h5, h6, td, br").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml(" ")
	})
	parts = append(parts, body.Text())
	return strings.Join(parts, "\n"), nil
}

// normalizeSpace collapses runs of spaces within lines and drops blank lines.
func normalizeSpace(s string) string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

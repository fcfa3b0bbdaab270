// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
	"unicode"
)

// supportedTypes are the extensions the pipeline downloads.
var supportedTypes = map[string]bool{
	".pdf": true, ".doc": true, ".docx": true, ".txt": true,
	".html": true, ".htm": true, ".rtf": true,
}

// pageTypes are server-side page extensions stored as HTML.
var pageTypes = map[string]bool{
	".php": true, ".asp": true, ".aspx": true, ".jsp": true, ".cgi": true,
}

// Supported reports whether ext (with leading dot) is downloadable.
func Supported(ext string) bool {
	return supportedTypes[strings.ToLower(ext)]
}

// FileType returns the lower-cased extension of the URL path, ".html" for
// paths without one.
func FileType(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ".html"
	}
	p, err := url.PathUnescape(u.Path)
	if err != nil {
		p = u.Path
	}
	ext := strings.ToLower(path.Ext(p))
	if ext == "" || pageTypes[ext] {
		return ".html"
	}
	return ext
}

// Filename picks a file name for a document: the URL's base name when it
// has an extension, otherwise the cleaned title (at most 50 characters)
// with the file type appended.
func Filename(rawURL, title string) string {
	fileType := FileType(rawURL)
	if u, err := url.Parse(rawURL); err == nil {
		p, err := url.PathUnescape(u.Path)
		if err != nil {
			p = u.Path
		}
		base := sanitize(path.Base(p))
		if strings.Contains(base, ".") && base != "." && !pageTypes[strings.ToLower(path.Ext(base))] {
			return base
		}
	}

	clean := strings.TrimSpace(strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == '_' {
			return r
		}
		return -1
	}, title))
	if r := []rune(clean); len(r) > 50 {
		clean = strings.TrimSpace(string(r[:50]))
	}
	if clean == "" {
		clean = "document"
	}
	return clean + fileType
}

// sanitize drops path separators and control characters from a name.
func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
}

// reservePath creates an empty file for name in dir, adding _1, _2, ...
// before the extension until the name is free, and returns its path.
func reservePath(dir, name string) (string, error) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 0; i < 10000; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s_%d%s", stem, i, ext)
		}
		p := filepath.Join(dir, candidate)
		f, err := os.OpenFile(p, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			f.Close()
			return p, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("reserving %s: %w", p, err)
		}
	}
	return "", fmt.Errorf("no free file name for %s in %s", name, dir)
}

// SessionDir returns base/YYYY-MM-DD/NNN for a session created at t.
func SessionDir(base string, sessionID int64, t time.Time) string {
	return filepath.Join(base, t.Format("2006-01-02"), fmt.Sprintf("%03d", sessionID))
}

// FindSessionDir looks for a session directory under any date directory
// of base.
func FindSessionDir(base string, sessionID int64) (string, bool) {
	matches, _ := filepath.Glob(filepath.Join(base, "*", fmt.Sprintf("%03d", sessionID)))
	for _, m := range matches {
		if info, err := os.Stat(m); err == nil && info.IsDir() {
			return m, true
		}
	}
	return "", false
}

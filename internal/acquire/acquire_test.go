// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pdiddy/doc-collector/internal/httputil"
	"github.com/pdiddy/doc-collector/pkg/types"
)

func TestFileType(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://example.com/paper.pdf", ".pdf"},
		{"https://example.com/PAPER.PDF", ".pdf"},
		{"https://example.com/doc.docx?dl=1", ".docx"},
		{"https://example.com/page", ".html"},
		{"https://example.com/", ".html"},
		{"https://example.com/index.php?id=4", ".html"},
		{"https://example.com/view.aspx", ".html"},
		{"https://example.com/archive.zip", ".zip"},
		{"https://example.com/my%20notes.txt", ".txt"},
	}
	for _, tt := range tests {
		if got := FileType(tt.url); got != tt.want {
			t.Errorf("FileType(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestFilename(t *testing.T) {
	tests := []struct {
		name  string
		url   string
		title string
		want  string
	}{
		{"url basename", "https://example.com/files/report.pdf", "Ignored", "report.pdf"},
		{"escaped basename", "https://example.com/my%20report.pdf", "", "my report.pdf"},
		{"title for page", "https://example.com/article", "Climate: A Review!", "Climate A Review.html"},
		{"title for php", "https://example.com/view.php?id=2", "Annual Data", "Annual Data.html"},
		{"empty title", "https://example.com/article", "???", "document.html"},
		{"long title", "https://example.com/a", strings.Repeat("x", 80), strings.Repeat("x", 50) + ".html"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Filename(tt.url, tt.title); got != tt.want {
				t.Errorf("Filename(%q, %q) = %q, want %q", tt.url, tt.title, got, tt.want)
			}
		})
	}
}

func TestIsDownloadable(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://example.com/paper.pdf", true},
		{"https://example.com/article", true},
		{"https://www.google.com/search?q=x", false},
		{"https://www.bing.com/search?q=x", false},
		{"https://www.google.com/files/a.pdf", true},
		{"/relative/path.pdf", false},
		{"not a url", false},
	}
	for _, tt := range tests {
		if got := IsDownloadable(tt.url); got != tt.want {
			t.Errorf("IsDownloadable(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestIsErrorPage(t *testing.T) {
	tests := []struct {
		name string
		head string
		want bool
	}{
		{"plain", "%PDF-1.7 report body", false},
		{"cloudflare", "<html><title>Just a moment... Cloudflare</title>", true},
		{"access denied", "<h1>Access Denied</h1>", true},
		{"404", "<h1>Error 404</h1> not found", true},
		{"marker past sniff window", strings.Repeat("a", 1200) + "access denied", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsErrorPage([]byte(tt.head)); got != tt.want {
				t.Errorf("IsErrorPage = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReservePath_Unique(t *testing.T) {
	dir := t.TempDir()

	var wg sync.WaitGroup
	paths := make([]string, 8)
	for i := range paths {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := reservePath(dir, "report.pdf")
			if err != nil {
				t.Errorf("reservePath: %v", err)
				return
			}
			paths[i] = p
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for _, p := range paths {
		if seen[p] {
			t.Fatalf("path %s reserved twice", p)
		}
		seen[p] = true
	}
	if !seen[filepath.Join(dir, "report.pdf")] || !seen[filepath.Join(dir, "report_1.pdf")] {
		t.Errorf("expected report.pdf and report_1.pdf among %v", paths)
	}
}

func TestSessionDir(t *testing.T) {
	at := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
	got := SessionDir("/data", 7, at)
	want := filepath.Join("/data", "2026-03-09", "007")
	if got != want {
		t.Errorf("SessionDir = %q, want %q", got, want)
	}

	base := t.TempDir()
	dir := SessionDir(base, 12, at)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	found, ok := FindSessionDir(base, 12)
	if !ok || found != dir {
		t.Errorf("FindSessionDir = %q, %v; want %q", found, ok, dir)
	}
	if _, ok := FindSessionDir(base, 13); ok {
		t.Error("FindSessionDir found a missing session")
	}
}

func newDownloader(maxSize int64) *Downloader {
	return NewDownloader(nil, types.DownloadConfig{
		HTTPConfig: types.HTTPConfig{Timeout: 5 * time.Second},
		MaxSize:    maxSize,
	})
}

func TestDownload(t *testing.T) {
	pdf := append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte("x"), 2048)...)
	var gotUA string
	mux := http.NewServeMux()
	mux.HandleFunc("/paper.pdf", func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Write(pdf)
	})
	mux.HandleFunc("/article", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>Article body</body></html>"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	dir := filepath.Join(t.TempDir(), "session")
	d := newDownloader(0)

	got, err := d.Download(context.Background(), srv.URL+"/paper.pdf", "Paper", dir)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if got.Path != filepath.Join(dir, "paper.pdf") || got.FileType != ".pdf" || got.Size != int64(len(pdf)) {
		t.Errorf("Download = %+v", got)
	}
	if gotUA != httputil.BrowserUserAgent {
		t.Errorf("User-Agent = %q", gotUA)
	}
	data, err := os.ReadFile(got.Path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, pdf) {
		t.Error("stored content differs from served content")
	}

	again, err := d.Download(context.Background(), srv.URL+"/paper.pdf", "Paper", dir)
	if err != nil {
		t.Fatalf("second Download: %v", err)
	}
	if again.Path != filepath.Join(dir, "paper_1.pdf") {
		t.Errorf("second path = %q, want paper_1.pdf", again.Path)
	}

	page, err := d.Download(context.Background(), srv.URL+"/article", "Great Article", dir)
	if err != nil {
		t.Fatalf("page Download: %v", err)
	}
	if filepath.Base(page.Path) != "Great Article.html" || page.FileType != ".html" {
		t.Errorf("page = %+v", page)
	}
}

func TestDownload_Failures(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/missing.pdf", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/empty.pdf", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("/blocked.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>Request blocked by Incapsula</html>"))
	})
	mux.HandleFunc("/huge.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Write(bytes.Repeat([]byte("y"), 4096))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	tests := []struct {
		name   string
		path   string
		target error
	}{
		{"unsupported", "/archive.zip", ErrUnsupportedType},
		{"empty", "/empty.pdf", ErrEmpty},
		{"error page", "/blocked.pdf", ErrErrorPage},
		{"too large", "/huge.pdf", httputil.ErrTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			_, err := newDownloader(1024).Download(context.Background(), srv.URL+tt.path, "", dir)
			if !errors.Is(err, tt.target) {
				t.Fatalf("err = %v, want %v", err, tt.target)
			}
			entries, _ := os.ReadDir(dir)
			if len(entries) != 0 {
				t.Errorf("directory not empty after failure: %d entries", len(entries))
			}
		})
	}

	t.Run("status", func(t *testing.T) {
		dir := t.TempDir()
		_, err := newDownloader(0).Download(context.Background(), srv.URL+"/missing.pdf", "", dir)
		var se *httputil.StatusError
		if !errors.As(err, &se) || se.StatusCode != http.StatusNotFound {
			t.Fatalf("err = %v, want 404 StatusError", err)
		}
	})

	t.Run("invalid url", func(t *testing.T) {
		if _, err := newDownloader(0).Download(context.Background(), "nope", "", t.TempDir()); err == nil {
			t.Fatal("expected error")
		}
	})
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package acquire downloads the documents behind search results into a
// session directory. Downloads are size-capped, written through a temporary
// file and renamed into place, and rejected when the body is empty or looks
// like a block or error page.
package acquire

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pdiddy/doc-collector/internal/httputil"
	"github.com/pdiddy/doc-collector/pkg/types"
)

const (
	DefaultMaxSize = 50 << 20
	DefaultTimeout = 30 * time.Second
	DefaultWorkers = 5

	sniffBytes = 1000
)

var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrEmpty           = errors.New("downloaded file is empty")
	ErrErrorPage       = errors.New("downloaded file is an error page")
)

// errorPageMarkers appear near the top of block and error pages served
// instead of documents.
var errorPageMarkers = [][]byte{
	[]byte("incapsula"),
	[]byte("cloudflare"),
	[]byte("access denied"),
	[]byte("error 403"),
	[]byte("error 404"),
}

// Download describes a stored document.
type Download struct {
	Path     string
	FileType string
	Size     int64
}

// Downloader fetches documents over HTTP.
type Downloader struct {
	client    *http.Client
	userAgent string
	maxSize   int64
	timeout   time.Duration
	logger    *slog.Logger
}

// Option configures a Downloader.
type Option func(*Downloader)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Downloader) { d.logger = l }
}

// NewDownloader builds a Downloader from cfg. A nil client gets one with
// the configured timeout.
func NewDownloader(client *http.Client, cfg types.DownloadConfig, opts ...Option) *Downloader {
	d := &Downloader{
		client:    client,
		userAgent: cfg.UserAgent,
		maxSize:   cfg.MaxSize,
		timeout:   cfg.Timeout,
		logger:    slog.Default().With("component", "acquire"),
	}
	if d.userAgent == "" {
		d.userAgent = httputil.BrowserUserAgent
	}
	if d.maxSize <= 0 {
		d.maxSize = DefaultMaxSize
	}
	if d.timeout <= 0 {
		d.timeout = DefaultTimeout
	}
	if d.client == nil {
		d.client = &http.Client{Timeout: d.timeout}
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Download fetches rawURL into dir under a unique name derived from the URL
// or title. Nothing is left in dir when it fails.
func (d *Downloader) Download(ctx context.Context, rawURL, title, dir string) (*Download, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid URL %q", rawURL)
	}
	fileType := FileType(rawURL)
	if !Supported(fileType) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, fileType)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating directory %s: %w", dir, err)
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", d.userAgent)
	req.Header.Set("Accept", "*/*")

	resp, err := httputil.DoWithRetry(ctx, d.client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &httputil.StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}
	if resp.ContentLength > d.maxSize {
		return nil, fmt.Errorf("%w: %d bytes", httputil.ErrTooLarge, resp.ContentLength)
	}

	dest, err := reservePath(dir, Filename(rawURL, title))
	if err != nil {
		return nil, err
	}
	size, err := d.writeFile(resp.Body, dest)
	if err != nil {
		os.Remove(dest)
		return nil, err
	}

	d.logger.Debug("downloaded", "url", rawURL, "path", dest, "bytes", size)
	return &Download{Path: dest, FileType: fileType, Size: size}, nil
}

// writeFile streams body into a temporary file next to dest, checks it and
// renames it over dest.
func (d *Downloader) writeFile(body io.Reader, dest string) (int64, error) {
	tmpFile, err := os.CreateTemp(filepath.Dir(dest), ".acquire-*.tmp")
	if err != nil {
		return 0, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	var head bytes.Buffer
	w := io.MultiWriter(tmpFile, &limitedBuffer{buf: &head, max: sniffBytes})
	n, copyErr := io.Copy(w, io.LimitReader(body, d.maxSize+1))
	closeErr := tmpFile.Close()

	fail := func(err error) (int64, error) {
		os.Remove(tmpPath)
		return 0, err
	}
	switch {
	case copyErr != nil:
		return fail(fmt.Errorf("writing download: %w", copyErr))
	case closeErr != nil:
		return fail(fmt.Errorf("closing temp file: %w", closeErr))
	case n > d.maxSize:
		return fail(fmt.Errorf("%w: more than %d bytes", httputil.ErrTooLarge, d.maxSize))
	case n == 0:
		return fail(ErrEmpty)
	case IsErrorPage(head.Bytes()):
		return fail(ErrErrorPage)
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		return fail(fmt.Errorf("renaming temp file: %w", err))
	}
	return n, nil
}

// IsErrorPage reports whether head, the start of a download, carries a
// block or error page marker.
func IsErrorPage(head []byte) bool {
	if len(head) > sniffBytes {
		head = head[:sniffBytes]
	}
	lower := bytes.ToLower(head)
	for _, m := range errorPageMarkers {
		if bytes.Contains(lower, m) {
			return true
		}
	}
	return false
}

// limitedBuffer keeps the first max bytes written to it.
type limitedBuffer struct {
	buf *bytes.Buffer
	max int
}

func (l *limitedBuffer) Write(p []byte) (int, error) {
	if room := l.max - l.buf.Len(); room > 0 {
		if len(p) > room {
			l.buf.Write(p[:room])
		} else {
			l.buf.Write(p)
		}
	}
	return len(p), nil
}

// IsDownloadable reports whether a result URL is worth downloading: an
// absolute URL that is a supported document or an ordinary web page, not a
// search engine page.
func IsDownloadable(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return false
	}
	if ext := strings.ToLower(filepath.Ext(u.Path)); ext != "" && Supported(ext) {
		return true
	}
	host := strings.ToLower(u.Hostname())
	for _, d := range []string{"google.com", "bing.com", "duckduckgo.com"} {
		if strings.Contains(host, d) {
			return false
		}
	}
	return true
}

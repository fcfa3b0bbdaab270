// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package export

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/pdiddy/doc-collector/pkg/types"
)

var created = time.Date(2026, 5, 1, 10, 30, 0, 0, time.UTC)

func sampleRecords() []types.ResultRecord {
	return []types.ResultRecord{
		{
			ID: 1, Title: "Flood, report", URL: "https://a.example/flood.pdf", Language: "en", Engine: "bing",
			FilePath: "/data/2026-05-01/001/flood.pdf", FileType: ".pdf",
			DownloadStatus: types.DownloadDownloaded, CreatedAt: created,
		},
		{
			ID: 2, Title: "Rejected", URL: "https://b.example/x.pdf", Language: "en", Engine: "bing",
			DownloadStatus: types.DownloadFailed, CreatedAt: created,
		},
		{
			ID: 3, Title: "Pending", URL: "https://c.example/", Language: "vi", Engine: "duckduckgo",
			DownloadStatus: types.DownloadPending, CreatedAt: created,
		},
		{
			ID: 4, Title: "Bản tin", URL: "https://d.example/tin.html", Language: "vi", Engine: "google",
			FilePath: "/data/2026-05-01/001/tin.html", FileType: ".html",
			DownloadStatus: types.DownloadDownloaded, CreatedAt: created,
		},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
		err  bool
	}{
		{"", FormatCSV, false},
		{"CSV", FormatCSV, false},
		{"excel", FormatExcel, false},
		{"xlsx", FormatExcel, false},
		{"pdf", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if tt.err {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
	assert.Equal(t, "results_7.xlsx", Filename(7, FormatExcel))
	assert.Equal(t, "results_7.csv", Filename(7, FormatCSV))
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	n, err := WriteCSV(&buf, sampleRecords())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	data := buf.String()
	require.True(t, strings.HasPrefix(data, "\ufeff"), "missing BOM")

	rows, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(data, "\ufeff"))).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"title", "url", "language", "engine", "filePath", "fileType", "downloadStatus", "createdAt"}, rows[0])
	assert.Equal(t, []string{
		"Flood, report", "https://a.example/flood.pdf", "en", "bing",
		"/data/2026-05-01/001/flood.pdf", ".pdf", "downloaded", "2026-05-01T10:30:00Z",
	}, rows[1])
	assert.Equal(t, "Bản tin", rows[2][0])
}

func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	n, err := WriteCSV(&buf, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, "\ufefftitle,url,language,engine,filePath,fileType,downloadStatus,createdAt\n", buf.String())
}

func TestWriteExcel(t *testing.T) {
	var buf bytes.Buffer
	n, err := WriteExcel(&buf, sampleRecords())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Results")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, Columns, rows[0])
	assert.Equal(t, "https://d.example/tin.html", rows[2][1])
	assert.Equal(t, "downloaded", rows[2][6])
}

func TestFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	path, n, err := File(dir, 3, FormatCSV, sampleRecords())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "results_3.csv"), path)
	assert.Equal(t, 2, n)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "flood.pdf")
}

func TestWriteQueriesCSV(t *testing.T) {
	queries := []types.SearchQuery{
		{Text: "flood risk", Language: "en", Engine: "bing", Type: types.QueryOriginal, Confidence: 1},
		{Text: "nguy cơ lũ", Language: "vi", Engine: "google", Type: types.QueryBroad, Confidence: 0.7},
	}
	path := filepath.Join(t.TempDir(), "queries.csv")
	require.NoError(t, QueriesFile(path, queries))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	rows, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(string(data), "\ufeff"))).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, QueryColumns, rows[0])
	assert.Equal(t, []string{"nguy cơ lũ", "vi", "google", "broad", "0.70"}, rows[2])
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package export writes the surviving documents of a session as CSV or
// Excel and the session's query plan as CSV. Only records whose download
// status is downloaded and that still have a file are exported.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/pdiddy/doc-collector/pkg/types"
)

// Format selects the export file type.
type Format string

const (
	FormatCSV   Format = "csv"
	FormatExcel Format = "excel"
)

// ParseFormat accepts "csv", "excel" and "xlsx".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "csv":
		return FormatCSV, nil
	case "excel", "xlsx":
		return FormatExcel, nil
	}
	return "", fmt.Errorf("unknown export format %q (want csv or excel)", s)
}

// Ext returns the file extension for f.
func (f Format) Ext() string {
	if f == FormatExcel {
		return ".xlsx"
	}
	return ".csv"
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	if f == FormatExcel {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Columns is the header row of a results export.
var Columns = []string{"title", "url", "language", "engine", "filePath", "fileType", "downloadStatus", "createdAt"}

// QueryColumns is the header row of a query plan export.
var QueryColumns = []string{"text", "language", "engine", "type", "confidence"}

const (
	utf8BOM    = "\ufeff"
	sheetName  = "Results"
	timeLayout = time.RFC3339
)

// Rows returns one row per exported record, in input order.
func Rows(records []types.ResultRecord) [][]string {
	var rows [][]string
	for _, r := range records {
		if r.DownloadStatus != types.DownloadDownloaded || r.FilePath == "" {
			continue
		}
		created := ""
		if !r.CreatedAt.IsZero() {
			created = r.CreatedAt.UTC().Format(timeLayout)
		}
		rows = append(rows, []string{
			r.Title, r.URL, r.Language, r.Engine,
			r.FilePath, r.FileType, string(r.DownloadStatus), created,
		})
	}
	return rows
}

// WriteCSV writes records as UTF-8 CSV with a byte order mark and returns
// the number of data rows.
func WriteCSV(w io.Writer, records []types.ResultRecord) (int, error) {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return 0, fmt.Errorf("writing BOM: %w", err)
	}
	rows := Rows(records)
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return 0, fmt.Errorf("writing header: %w", err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return 0, fmt.Errorf("writing rows: %w", err)
	}
	return len(rows), nil
}

// WriteExcel writes records as a single-sheet workbook and returns the
// number of data rows.
func WriteExcel(w io.Writer, records []types.ResultRecord) (int, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return 0, fmt.Errorf("naming sheet: %w", err)
	}
	rows := Rows(records)
	if err := setRow(f, 1, Columns); err != nil {
		return 0, err
	}
	for i, row := range rows {
		if err := setRow(f, i+2, row); err != nil {
			return 0, err
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return 0, fmt.Errorf("creating header style: %w", err)
	}
	if err := f.SetRowStyle(sheetName, 1, 1, bold); err != nil {
		return 0, fmt.Errorf("styling header: %w", err)
	}
	if err := f.SetColWidth(sheetName, "A", "B", 50); err != nil {
		return 0, fmt.Errorf("sizing columns: %w", err)
	}

	if err := f.Write(w); err != nil {
		return 0, fmt.Errorf("writing workbook: %w", err)
	}
	return len(rows), nil
}

func setRow(f *excelize.File, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	vals := make([]any, len(values))
	for i, v := range values {
		vals[i] = v
	}
	if err := f.SetSheetRow(sheetName, cell, &vals); err != nil {
		return fmt.Errorf("writing row %d: %w", row, err)
	}
	return nil
}

// Write dispatches to WriteCSV or WriteExcel.
func Write(w io.Writer, format Format, records []types.ResultRecord) (int, error) {
	if format == FormatExcel {
		return WriteExcel(w, records)
	}
	return WriteCSV(w, records)
}

// Filename is the default export file name for a session.
func Filename(sessionID int64, format Format) string {
	return fmt.Sprintf("results_%d%s", sessionID, format.Ext())
}

// File writes an export to dir/Filename and returns its path.
func File(dir string, sessionID int64, format Format, records []types.ResultRecord) (string, int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("creating %s: %w", dir, err)
	}
	path := filepath.Join(dir, Filename(sessionID, format))
	f, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("creating %s: %w", path, err)
	}
	n, err := Write(f, format, records)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return "", 0, err
	}
	return path, n, nil
}

// WriteQueriesCSV writes a query plan as UTF-8 CSV with a byte order mark.
func WriteQueriesCSV(w io.Writer, queries []types.SearchQuery) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return fmt.Errorf("writing BOM: %w", err)
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(QueryColumns); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, q := range queries {
		rec := []string{q.Text, q.Language, q.Engine, string(q.Type), strconv.FormatFloat(q.Confidence, 'f', 2, 64)}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("writing query: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// QueriesFile writes a query plan CSV to path.
func QueriesFile(path string, queries []types.SearchQuery) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	err = WriteQueriesCSV(f, queries)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

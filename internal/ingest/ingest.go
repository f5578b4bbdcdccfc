// Package ingest parses uploaded revenue files (CSV or XLSX) into records
// the analytics engine can consume. Malformed amounts coerce to zero and
// rows without a parseable date are dropped, so downstream code can assume
// valid input.
package ingest

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"

	"fleetrev/internal/analytics"
)

// MaxFileSize caps a single uploaded file at 10 MB.
const MaxFileSize = 10 * 1024 * 1024

var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrFileTooLarge    = errors.New("file size exceeds limit")
	ErrMissingColumns  = errors.New("missing required columns")
	ErrEmptyFile       = errors.New("file contains no data rows")
)

// requiredColumns are matched case-insensitively against the header row.
var requiredColumns = []string{"date", "fleet", "amount"}

// dateLayouts are tried in order when parsing the date cell.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"02/01/2006",
	"01/02/2006",
	"2006/01/02",
}

// File is one uploaded file pending import.
type File struct {
	Name string
	Data []byte
}

// Stats summarizes a multi-file import.
type Stats struct {
	FilesProcessed  int      `json:"files_processed"`
	RecordsImported int      `json:"records_imported"`
	RowsDropped     int      `json:"rows_dropped"`
	Errors          []string `json:"errors"`
}

// ParseAll parses every file concurrently and merges the results in input
// order. A file that fails to parse is reported in Stats.Errors without
// failing the batch, matching upload semantics where one bad file must not
// block the rest.
func ParseAll(ctx context.Context, files []File) ([]analytics.Record, Stats) {
	type outcome struct {
		records []analytics.Record
		dropped int
		err     error
	}
	outcomes := make([]outcome, len(files))

	g, ctx := errgroup.WithContext(ctx)
	var mu sync.Mutex
	for i, f := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			records, dropped, err := ParseFile(f.Name, f.Data)
			mu.Lock()
			outcomes[i] = outcome{records: records, dropped: dropped, err: err}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	var stats Stats
	var all []analytics.Record
	for i, o := range outcomes {
		if o.err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("%s: %v", files[i].Name, o.err))
			continue
		}
		all = append(all, o.records...)
		stats.FilesProcessed++
		stats.RecordsImported += len(o.records)
		stats.RowsDropped += o.dropped
	}
	return all, stats
}

// ParseFile parses one CSV or XLSX file into normalized records. The
// returned dropped count is the number of data rows discarded for an
// unparseable date.
func ParseFile(name string, data []byte) ([]analytics.Record, int, error) {
	if len(data) > MaxFileSize {
		return nil, 0, ErrFileTooLarge
	}

	var rows [][]string
	var err error
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		rows, err = readCSV(data)
	case ".xlsx":
		rows, err = readXLSX(data)
	default:
		return nil, 0, ErrUnsupportedType
	}
	if err != nil {
		return nil, 0, err
	}
	return rowsToRecords(rows)
}

func readCSV(data []byte) ([][]string, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return rows, nil
}

func readXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read xlsx rows: %w", err)
	}
	return rows, nil
}

func rowsToRecords(rows [][]string) ([]analytics.Record, int, error) {
	if len(rows) == 0 {
		return nil, 0, ErrEmptyFile
	}

	columns, err := mapColumns(rows[0])
	if err != nil {
		return nil, 0, err
	}
	if len(rows) == 1 {
		return nil, 0, ErrEmptyFile
	}

	var records []analytics.Record
	var dropped int
	for _, row := range rows[1:] {
		date, ok := parseDate(cell(row, columns["date"]))
		if !ok {
			dropped++
			continue
		}

		records = append(records, analytics.Record{
			Date:   date,
			Fleet:  analytics.NormalizeFleet(cell(row, columns["fleet"])),
			Amount: parseAmount(cell(row, columns["amount"])),
		})
	}
	return records, dropped, nil
}

// mapColumns locates the required columns in the header row, matching
// case-insensitively.
func mapColumns(header []string) (map[string]int, error) {
	columns := make(map[string]int, len(requiredColumns))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		for _, want := range requiredColumns {
			if name == want {
				columns[want] = i
			}
		}
	}

	var missing []string
	for _, want := range requiredColumns {
		if _, ok := columns[want]; !ok {
			missing = append(missing, want)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}
	return columns, nil
}

func cell(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return row[idx]
}

func parseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return analytics.DateOnly(t), true
		}
	}
	return time.Time{}, false
}

// parseAmount coerces malformed or negative amounts to zero rather than
// rejecting the row.
func parseAmount(raw string) float64 {
	raw = strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

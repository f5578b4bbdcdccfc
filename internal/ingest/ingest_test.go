package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestParseFile_CSV(t *testing.T) {
	csv := strings.Join([]string{
		"Date,Fleet,Amount",
		"2024-01-01,1001,1000",
		"2024-01-01, 2010m ,500.50",
		"2024-01-02,1001,1000",
	}, "\n")

	records, dropped, err := ParseFile("upload.csv", []byte(csv))
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}
	if dropped != 0 {
		t.Errorf("expected no dropped rows, got %d", dropped)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[1].Fleet != "2010" {
		t.Errorf("expected alias-normalized fleet 2010, got %q", records[1].Fleet)
	}
	if records[1].Amount != 500.50 {
		t.Errorf("expected amount 500.50, got %v", records[1].Amount)
	}
	if records[0].Date.Format("2006-01-02") != "2024-01-01" {
		t.Errorf("unexpected date %v", records[0].Date)
	}
}

func TestParseFile_CaseInsensitiveColumns(t *testing.T) {
	csv := "DATE,FLEET,AMOUNT\n2024-01-01,1001,100\n"

	records, _, err := ParseFile("upload.csv", []byte(csv))
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("expected 1 record, got %d", len(records))
	}
}

func TestParseFile_ExtraColumnsIgnored(t *testing.T) {
	csv := "Route,Date,Fleet,Driver,Amount\nA-B,2024-01-01,1001,Smith,100\n"

	records, _, err := ParseFile("upload.csv", []byte(csv))
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}
	if len(records) != 1 || records[0].Amount != 100 {
		t.Errorf("unexpected records: %+v", records)
	}
}

func TestParseFile_DropsInvalidDates(t *testing.T) {
	csv := strings.Join([]string{
		"Date,Fleet,Amount",
		"not-a-date,1001,100",
		"2024-01-02,1001,200",
		",1001,300",
	}, "\n")

	records, dropped, err := ParseFile("upload.csv", []byte(csv))
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("expected 1 record, got %d", len(records))
	}
	if dropped != 2 {
		t.Errorf("expected 2 dropped rows, got %d", dropped)
	}
}

func TestParseFile_CoercesBadAmounts(t *testing.T) {
	csv := strings.Join([]string{
		"Date,Fleet,Amount",
		"2024-01-01,1001,abc",
		"2024-01-02,1001,-50",
		`2024-01-03,1001,"1,234.50"`,
	}, "\n")

	records, _, err := ParseFile("upload.csv", []byte(csv))
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[0].Amount != 0 || records[1].Amount != 0 {
		t.Errorf("malformed and negative amounts should coerce to 0, got %v and %v",
			records[0].Amount, records[1].Amount)
	}
	if records[2].Amount != 1234.50 {
		t.Errorf("grouped thousands should parse, got %v", records[2].Amount)
	}
}

func TestParseFile_MissingColumns(t *testing.T) {
	csv := "Date,Vehicle,Total\n2024-01-01,1001,100\n"

	_, _, err := ParseFile("upload.csv", []byte(csv))
	if !errors.Is(err, ErrMissingColumns) {
		t.Errorf("expected ErrMissingColumns, got %v", err)
	}
}

func TestParseFile_UnsupportedType(t *testing.T) {
	_, _, err := ParseFile("upload.pdf", []byte("whatever"))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("expected ErrUnsupportedType, got %v", err)
	}
}

func TestParseFile_TooLarge(t *testing.T) {
	_, _, err := ParseFile("big.csv", make([]byte, MaxFileSize+1))
	if !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("expected ErrFileTooLarge, got %v", err)
	}
}

func TestParseFile_HeaderOnly(t *testing.T) {
	_, _, err := ParseFile("upload.csv", []byte("Date,Fleet,Amount\n"))
	if !errors.Is(err, ErrEmptyFile) {
		t.Errorf("expected ErrEmptyFile, got %v", err)
	}
}

func TestParseAll_MixedOutcomes(t *testing.T) {
	files := []File{
		{Name: "good.csv", Data: []byte("Date,Fleet,Amount\n2024-01-01,1001,100\n2024-01-02,2002,200\n")},
		{Name: "bad.csv", Data: []byte("Wrong,Header\n1,2\n")},
		{Name: "other.csv", Data: []byte("Date,Fleet,Amount\n2024-01-03,1001,300\n")},
	}

	records, stats := ParseAll(context.Background(), files)

	if stats.FilesProcessed != 2 {
		t.Errorf("expected 2 processed files, got %d", stats.FilesProcessed)
	}
	if stats.RecordsImported != 3 || len(records) != 3 {
		t.Errorf("expected 3 imported records, got stats %d, slice %d", stats.RecordsImported, len(records))
	}
	if len(stats.Errors) != 1 || !strings.Contains(stats.Errors[0], "bad.csv") {
		t.Errorf("expected one error naming bad.csv, got %v", stats.Errors)
	}
	// Merge order follows input order regardless of goroutine scheduling.
	if records[0].Fleet != "1001" || records[2].Fleet != "1001" || records[2].Amount != 300 {
		t.Errorf("records not merged in input order: %+v", records)
	}
}

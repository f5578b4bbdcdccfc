package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"fleetrev/internal/analytics"
)

// SheetsPublisher pushes the spreadsheet report structures to a Google
// Sheets spreadsheet so dashboards outside the service can consume them.
type SheetsPublisher struct {
	svc              *gsheet.Service
	spreadsheetID    string
	performanceSheet string
	dailySheet       string
}

// NewSheetsPublisherFromEnv builds a publisher from environment variables.
// Required: GOOGLE_SPREADSHEET_ID. Credentials: GOOGLE_SERVICE_ACCOUNT_JSON,
// GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS.
func NewSheetsPublisherFromEnv(ctx context.Context) (*SheetsPublisher, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	performance := strings.TrimSpace(os.Getenv("GOOGLE_PERFORMANCE_SHEET_NAME"))
	if performance == "" {
		performance = sheetPerformance
	}
	daily := strings.TrimSpace(os.Getenv("GOOGLE_DAILY_SHEET_NAME"))
	if daily == "" {
		daily = sheetDaily
	}

	return &SheetsPublisher{
		svc:              svc,
		spreadsheetID:    spreadsheetID,
		performanceSheet: performance,
		dailySheet:       daily,
	}, nil
}

func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	inlineJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	credentialsFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if inlineJSON == "" && credentialsFile == "" {
		credentialsFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case inlineJSON != "":
		credentialsJSON = []byte(inlineJSON)
	case credentialsFile != "":
		data, err := os.ReadFile(credentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = data
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

// Publish replaces the performance and daily ranges of the spreadsheet with
// the current report rows.
func (p *SheetsPublisher) Publish(ctx context.Context, result analytics.Result, settings map[string]string) error {
	performance := [][]any{{"BUS CODE", "PAX", "REVENUE", "REMITTANCE", "FUEL USED"}}
	for _, row := range PerformanceRows(result, settings) {
		performance = append(performance, []any{row.Fleet, row.Pax, row.Revenue, row.Remittance, row.FuelUsed})
	}

	daily := [][]any{{"Date", "BUS CODE", "PAX", "REVENUE"}}
	for _, row := range DailyRows(result) {
		daily = append(daily, []any{row.Date, row.Fleet, row.Pax, row.Revenue})
	}

	if err := p.replaceRange(ctx, p.performanceSheet, performance); err != nil {
		return fmt.Errorf("publish performance sheet: %w", err)
	}
	if err := p.replaceRange(ctx, p.dailySheet, daily); err != nil {
		return fmt.Errorf("publish daily sheet: %w", err)
	}

	slog.InfoContext(ctx, "Published report to Google Sheets",
		"spreadsheet_id", p.spreadsheetID,
		"performance_rows", len(performance)-1,
		"daily_rows", len(daily)-1)
	return nil
}

func (p *SheetsPublisher) replaceRange(ctx context.Context, sheet string, values [][]any) error {
	clear := p.svc.Spreadsheets.Values.Clear(p.spreadsheetID, sheet+"!A:Z", &gsheet.ClearValuesRequest{})
	if _, err := clear.Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear range: %w", err)
	}

	update := p.svc.Spreadsheets.Values.Update(p.spreadsheetID, sheet+"!A1", &gsheet.ValueRange{Values: values})
	if _, err := update.ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("update range: %w", err)
	}
	return nil
}

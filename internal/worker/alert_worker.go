// Package worker turns completed imports into stored notifications: every
// high-severity anomaly in the refreshed data set becomes an alert an
// operator can act on.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"fleetrev/internal/amqp"
	"fleetrev/internal/analytics"
	"fleetrev/internal/storage"
)

// RecordSource supplies the records to scan.
type RecordSource interface {
	ListRecords(ctx context.Context, filter storage.RecordFilter) ([]analytics.Record, error)
}

// NotificationSink stores the alerts the worker produces.
type NotificationSink interface {
	CreateNotification(ctx context.Context, title, message, kind string) (int64, error)
}

// SettingsSource supplies the system settings the analytics pass consumes.
type SettingsSource interface {
	GetSettings(ctx context.Context) (map[string]string, error)
}

// ReportPublisher pushes report rows to an external destination.
type ReportPublisher interface {
	Publish(ctx context.Context, result analytics.Result, settings map[string]string) error
}

// AlertWorker scans freshly imported data for anomalies and records the
// findings as notifications.
type AlertWorker struct {
	records       RecordSource
	notifications NotificationSink
	detector      analytics.DetectorOptions

	// Optional report publishing after each import.
	publisher ReportPublisher
	settings  SettingsSource
}

func NewAlertWorker(records RecordSource, notifications NotificationSink, detector analytics.DetectorOptions) *AlertWorker {
	return &AlertWorker{
		records:       records,
		notifications: notifications,
		detector:      detector,
	}
}

// WithReportPublisher enables report publishing after each import scan.
func (w *AlertWorker) WithReportPublisher(publisher ReportPublisher, settings SettingsSource) *AlertWorker {
	w.publisher = publisher
	w.settings = settings
	return w
}

// HandleImportCompleted processes one import-completed event: it reloads
// the full record set, runs the anomaly scan, and stores one notification
// per high-severity anomaly plus an import summary.
func (w *AlertWorker) HandleImportCompleted(ctx context.Context, msg *amqp.ImportCompletedMessage) error {
	records, err := w.records.ListRecords(ctx, storage.RecordFilter{})
	if err != nil {
		return fmt.Errorf("list records: %w", err)
	}

	anomalies := analytics.DetectAnomalies(analytics.Normalize(records), w.detector)

	var highCount int
	for _, a := range anomalies {
		if a.Severity != analytics.SeverityHigh {
			continue
		}
		highCount++

		title := fmt.Sprintf("Revenue anomaly: fleet %s", a.Fleet)
		message := fmt.Sprintf("%s on %s (amount %.2f)", a.Reason, a.Date.Format("2006-01-02"), a.Amount)
		if _, err := w.notifications.CreateNotification(ctx, title, message, "warning"); err != nil {
			return fmt.Errorf("create anomaly notification: %w", err)
		}
	}

	summary := fmt.Sprintf("%d new records imported from %d file(s).", msg.RecordsImported, msg.FilesProcessed)
	if _, err := w.notifications.CreateNotification(ctx, "Data Import Successful", summary, "info"); err != nil {
		return fmt.Errorf("create import notification: %w", err)
	}

	// A publish failure must not requeue the message; the next import will
	// refresh the spreadsheet anyway.
	if w.publisher != nil {
		if err := w.publishReport(ctx, records); err != nil {
			slog.WarnContext(ctx, "Report publish failed", "error", err)
		}
	}

	slog.InfoContext(ctx, "Import scan complete",
		"records_scanned", len(records),
		"anomalies", len(anomalies),
		"high_severity", highCount)
	return nil
}

func (w *AlertWorker) publishReport(ctx context.Context, records []analytics.Record) error {
	settings, err := w.settings.GetSettings(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	result := analytics.ProcessWithOptions(records, settings, w.detector)
	return w.publisher.Publish(ctx, result, settings)
}

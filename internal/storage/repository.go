package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fleetrev/internal/analytics"

	_ "modernc.org/sqlite"
)

const dateLayout = "2006-01-02"

// SQLiteRepository persists fleet records, system settings, and
// notifications in a local SQLite database.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// InsertRecords stores a batch of fleet records in one transaction and
// returns the number inserted.
func (r *SQLiteRepository) InsertRecords(ctx context.Context, records []analytics.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO fleet_records (date, fleet, amount) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx, rec.Date.Format(dateLayout), rec.Fleet, rec.Amount); err != nil {
			return 0, fmt.Errorf("insert record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}

	slog.InfoContext(ctx, "Fleet records saved to SQLite", "count", len(records))
	return len(records), nil
}

// RecordFilter narrows ListRecords. Zero values leave the corresponding
// dimension unfiltered.
type RecordFilter struct {
	StartDate time.Time
	EndDate   time.Time
	Fleets    []string
	Limit     int
}

// ListRecords returns fleet records newest-first, optionally filtered by
// date range and fleet codes.
func (r *SQLiteRepository) ListRecords(ctx context.Context, filter RecordFilter) ([]analytics.Record, error) {
	query := `SELECT id, date, fleet, amount FROM fleet_records`
	var conds []string
	var args []any

	if !filter.StartDate.IsZero() {
		conds = append(conds, "date >= ?")
		args = append(args, filter.StartDate.Format(dateLayout))
	}
	if !filter.EndDate.IsZero() {
		conds = append(conds, "date <= ?")
		args = append(args, filter.EndDate.Format(dateLayout))
	}
	if len(filter.Fleets) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(filter.Fleets)), ",")
		conds = append(conds, "fleet IN ("+placeholders+")")
		for _, fleet := range filter.Fleets {
			args = append(args, fleet)
		}
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY date DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query fleet records: %w", err)
	}
	defer rows.Close()

	var records []analytics.Record
	for rows.Next() {
		var rec analytics.Record
		var date string
		if err := rows.Scan(&rec.ID, &date, &rec.Fleet, &rec.Amount); err != nil {
			return nil, fmt.Errorf("scan fleet record: %w", err)
		}
		rec.Date, err = time.Parse(dateLayout, date)
		if err != nil {
			return nil, fmt.Errorf("parse record date %q: %w", date, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// FilterOptions describes the filterable dimensions of the stored data.
type FilterOptions struct {
	Fleets  []string   `json:"fleets"`
	MinDate *time.Time `json:"min_date"`
	MaxDate *time.Time `json:"max_date"`
}

// GetFilterOptions returns the distinct fleet codes (sorted) and the stored
// date range.
func (r *SQLiteRepository) GetFilterOptions(ctx context.Context) (FilterOptions, error) {
	var opts FilterOptions

	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT fleet FROM fleet_records ORDER BY fleet`)
	if err != nil {
		return opts, fmt.Errorf("query distinct fleets: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var fleet string
		if err := rows.Scan(&fleet); err != nil {
			return opts, fmt.Errorf("scan fleet: %w", err)
		}
		opts.Fleets = append(opts.Fleets, fleet)
	}
	if err := rows.Err(); err != nil {
		return opts, err
	}

	var minDate, maxDate sql.NullString
	err = r.db.QueryRowContext(ctx,
		`SELECT MIN(date), MAX(date) FROM fleet_records`).Scan(&minDate, &maxDate)
	if err != nil {
		return opts, fmt.Errorf("query date range: %w", err)
	}
	if minDate.Valid {
		if t, err := time.Parse(dateLayout, minDate.String); err == nil {
			opts.MinDate = &t
		}
	}
	if maxDate.Valid {
		if t, err := time.Parse(dateLayout, maxDate.String); err == nil {
			opts.MaxDate = &t
		}
	}
	return opts, nil
}

// GetSettings returns all system settings as a flat key-value map, the
// shape the analytics engine consumes.
func (r *SQLiteRepository) GetSettings(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key, value FROM system_settings`)
	if err != nil {
		return nil, fmt.Errorf("query settings: %w", err)
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		settings[key] = value
	}
	return settings, rows.Err()
}

// UpsertSetting creates or replaces one system setting.
func (r *SQLiteRepository) UpsertSetting(ctx context.Context, key, value, description string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO system_settings (key, value, description) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, description = excluded.description`,
		key, value, description)
	if err != nil {
		return fmt.Errorf("upsert setting %q: %w", key, err)
	}

	slog.InfoContext(ctx, "System setting saved", "key", key)
	return nil
}

// Notification is a stored system alert.
type Notification struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateNotification stores a notification and returns its id.
func (r *SQLiteRepository) CreateNotification(ctx context.Context, title, message, kind string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO notifications (title, message, type, created_at) VALUES (?, ?, ?, ?)`,
		title, message, kind, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("insert notification: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("notification id: %w", err)
	}

	slog.InfoContext(ctx, "Notification created", "id", id, "type", kind, "title", title)
	return id, nil
}

// ListNotifications returns notifications newest-first, optionally only the
// unread ones.
func (r *SQLiteRepository) ListNotifications(ctx context.Context, unreadOnly bool, limit int) ([]Notification, error) {
	query := `SELECT id, title, message, type, is_read, created_at FROM notifications`
	if unreadOnly {
		query += ` WHERE is_read = 0`
	}
	query += ` ORDER BY id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var notifications []Notification
	for rows.Next() {
		var n Notification
		var createdAt string
		if err := rows.Scan(&n.ID, &n.Title, &n.Message, &n.Type, &n.IsRead, &createdAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			n.CreatedAt = t
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// MarkNotificationRead flags one notification as read.
func (r *SQLiteRepository) MarkNotificationRead(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE notifications SET is_read = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jgoulah/dailyusage/pkg/models"
)

const readingTimeLayout = "2006-01-02 15:04:05"

// FirstLast returns the first and last value recorded by a source on the given date.
// found is false when the source has no readings that day.
func (db *DB) FirstLast(ctx context.Context, src models.Source, date time.Time) (models.DailyUsage, bool, error) {
	day := date.Format(models.DateLayout)
	query, args, err := buildFirstLast(src, day)
	if err != nil {
		return models.DailyUsage{}, false, err
	}

	var first, last sql.NullFloat64
	if err := db.conn.QueryRowContext(ctx, query, args...).Scan(&first, &last); err != nil {
		return models.DailyUsage{}, false, fmt.Errorf("querying %s for %s: %w", src.Name, day, err)
	}

	if !first.Valid && !last.Valid {
		return models.DailyUsage{}, false, nil
	}

	usage := models.DailyUsage{
		Date: truncateDay(date),
		Name: src.Name,
	}
	if first.Valid {
		usage.First = &first.Float64
	}
	if last.Valid {
		usage.Last = &last.Float64
	}
	return usage, true, nil
}

// UpsertDailyUsage writes the summary row for (date, name), replacing any existing one
func (db *DB) UpsertDailyUsage(ctx context.Context, usage models.DailyUsage) error {
	if usage.Date.IsZero() {
		return errors.New("upserting daily usage: date is required")
	}
	if usage.Name == "" {
		return errors.New("upserting daily usage: name is required")
	}

	_, err := db.conn.ExecContext(ctx, db.dialect.upsert,
		usage.DateString(), nullFloat(usage.First), nullFloat(usage.Last), usage.Name)
	if err != nil {
		return fmt.Errorf("upserting daily usage %s/%s: %w", usage.DateString(), usage.Name, err)
	}
	return nil
}

// GetUsage retrieves the summary row for a date and name, or nil if none exists
func (db *DB) GetUsage(ctx context.Context, date time.Time, name string) (*models.DailyUsage, error) {
	query := "SELECT `date`, `first`, `last`, `name` FROM `DailyUsage` WHERE `date` = ? AND `name` = ?"

	row := db.conn.QueryRowContext(ctx, query, date.Format(models.DateLayout), name)
	usage, err := scanUsage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying daily usage: %w", err)
	}
	return &usage, nil
}

// UsageFilter narrows ListUsage; zero values match everything
type UsageFilter struct {
	Name  string
	Since time.Time
	Until time.Time
}

// ListUsage retrieves summary rows, newest date first
func (db *DB) ListUsage(ctx context.Context, filter UsageFilter) ([]models.DailyUsage, error) {
	var where []string
	var args []any
	if filter.Name != "" {
		where = append(where, "`name` = ?")
		args = append(args, filter.Name)
	}
	if !filter.Since.IsZero() {
		where = append(where, "`date` >= ?")
		args = append(args, filter.Since.Format(models.DateLayout))
	}
	if !filter.Until.IsZero() {
		where = append(where, "`date` <= ?")
		args = append(args, filter.Until.Format(models.DateLayout))
	}

	query := "SELECT `date`, `first`, `last`, `name` FROM `DailyUsage`"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY `date` DESC, `name` ASC"

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying daily usage: %w", err)
	}
	defer rows.Close()

	var results []models.DailyUsage
	for rows.Next() {
		usage, err := scanUsage(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		results = append(results, usage)
	}

	return results, rows.Err()
}

// InsertReading adds a reading to a source table. Production source tables are
// written by the telemetry collectors; this serves local databases and tests.
func (db *DB) InsertReading(ctx context.Context, src models.Source, r models.Reading) error {
	query, err := insertReadingQuery(src)
	if err != nil {
		return err
	}

	ts := r.Timestamp.Format(readingTimeLayout)
	switch src.Kind {
	case models.KindDevice:
		_, err = db.conn.ExecContext(ctx, query, ts, src.DeviceID, r.Value)
	default:
		_, err = db.conn.ExecContext(ctx, query, ts, r.Value)
	}
	if err != nil {
		return fmt.Errorf("inserting reading for %s: %w", src.Name, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUsage(row rowScanner) (models.DailyUsage, error) {
	var usage models.DailyUsage
	var date dateValue
	var first, last sql.NullFloat64

	if err := row.Scan(&date, &first, &last, &usage.Name); err != nil {
		return usage, err
	}

	usage.Date = date.Time
	if first.Valid {
		usage.First = &first.Float64
	}
	if last.Valid {
		usage.Last = &last.Float64
	}
	return usage, nil
}

// dateValue scans a DATE column returned either as time.Time (MySQL with parseTime) or as text (sqlite)
type dateValue struct {
	time.Time
}

func (d *dateValue) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		d.Time = truncateDay(v)
		return nil
	case string:
		return d.parse(v)
	case []byte:
		return d.parse(string(v))
	default:
		return fmt.Errorf("unsupported date value %T", src)
	}
}

func (d *dateValue) parse(s string) error {
	if len(s) > len(models.DateLayout) {
		s = s[:len(models.DateLayout)]
	}
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		return fmt.Errorf("parsing date: %w", err)
	}
	d.Time = t
	return nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

// truncateDay drops the clock part while keeping the calendar date as written
func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

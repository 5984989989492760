package database

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/mattn/go-sqlite3"
)

// Target statuses stored in the history
const (
	StatusSuccess        = "success"
	StatusPartialFailure = "partial_failure"
	StatusNotFound       = "not_found"
	StatusRefused        = "refused"
)

// HistoryDB manages the SQLite database of deleted targets
type HistoryDB struct {
	db *sql.DB

	// retry builds the backoff policy for writes hitting a locked database
	retry func() backoff.BackOff
}

// TargetRecord is one top-level target handled by a run
type TargetRecord struct {
	ID             int64
	Timestamp      time.Time
	Path           string
	ObjectType     string // file, directory, symlink
	Status         string
	Entries        int64
	Repaired       bool
	DryRun         bool
	DurationMs     int64
	BytesReclaimed int64
	ErrorMessage   string
}

// NewHistoryDB opens (creating if needed) the history database at dbPath
func NewHistoryDB(dbPath string) (*HistoryDB, error) {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err != nil {
			db.Close()
		}
	}()

	// Ping does not create the file; a query does
	if _, err = db.Exec("SELECT 1"); err != nil {
		return nil, fmt.Errorf("failed to initialize database (check permissions on %s): %w", dbPath, err)
	}

	// Multiple readers (turbodelete-history) alongside one writer
	if _, err = db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err = db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		return nil, fmt.Errorf("failed to set synchronous mode: %w", err)
	}

	hdb := &HistoryDB{db: db, retry: defaultRetry}
	if err = hdb.initSchema(); err != nil {
		return nil, err
	}
	return hdb, nil
}

// dsn builds the file: URI for dbPath. The path is escaped so that '?', '#'
// and '%' in a directory name are not taken for URI syntax.
// _loc=auto enables automatic DATETIME parsing.
func dsn(dbPath string) string {
	u := url.URL{Scheme: "file", Opaque: (&url.URL{Path: dbPath}).EscapedPath()}
	q := url.Values{}
	q.Set("_loc", "auto")
	q.Set("_busy_timeout", "5000")
	u.RawQuery = q.Encode()
	return u.String()
}

func defaultRetry() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 25 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond
	b.MaxElapsedTime = 5 * time.Second
	return b
}

// initSchema creates tables and indexes if they don't exist
func (d *HistoryDB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS targets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL,
		path TEXT NOT NULL,
		object_type TEXT NOT NULL,
		status TEXT NOT NULL,
		entries INTEGER NOT NULL DEFAULT 0,
		repaired INTEGER NOT NULL DEFAULT 0,
		dry_run INTEGER NOT NULL DEFAULT 0,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		bytes_reclaimed INTEGER NOT NULL DEFAULT 0,
		error_message TEXT,

		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_timestamp ON targets(timestamp);
	CREATE INDEX IF NOT EXISTS idx_path ON targets(path);
	CREATE INDEX IF NOT EXISTS idx_status ON targets(status);

	-- Metadata table for schema versioning
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`

	_, err := d.db.Exec(schema)
	return err
}

// RecordTarget inserts one target outcome. A database locked by another
// process is retried with exponential backoff.
func (d *HistoryDB) RecordTarget(rec TargetRecord) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	query := `
	INSERT INTO targets (
		timestamp, path, object_type, status, entries, repaired, dry_run,
		duration_ms, bytes_reclaimed, error_message
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var errMsg sql.NullString
	if rec.ErrorMessage != "" {
		errMsg = sql.NullString{String: rec.ErrorMessage, Valid: true}
	}

	op := func() error {
		_, err := d.db.Exec(query,
			rec.Timestamp,
			rec.Path,
			rec.ObjectType,
			rec.Status,
			rec.Entries,
			rec.Repaired,
			rec.DryRun,
			rec.DurationMs,
			rec.BytesReclaimed,
			errMsg,
		)
		if err != nil && !isBusy(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	if err := backoff.Retry(op, d.retry()); err != nil {
		return fmt.Errorf("record target %s: %w", rec.Path, err)
	}
	return nil
}

func isBusy(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
	}
	return false
}

// Close closes the database connection
func (d *HistoryDB) Close() error {
	return d.db.Close()
}

// Vacuum optimizes the database (run periodically)
func (d *HistoryDB) Vacuum() error {
	_, err := d.db.Exec("VACUUM")
	return err
}

// GetDatabaseStats returns database statistics
func (d *HistoryDB) GetDatabaseStats() (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var totalRecords int64
	if err := d.db.QueryRow("SELECT COUNT(*) FROM targets").Scan(&totalRecords); err != nil {
		return nil, err
	}
	stats["total_records"] = totalRecords

	var pageCount, pageSize int64
	if err := d.db.QueryRow("PRAGMA page_count").Scan(&pageCount); err != nil {
		return nil, err
	}
	if err := d.db.QueryRow("PRAGMA page_size").Scan(&pageSize); err != nil {
		return nil, err
	}
	stats["database_size_bytes"] = pageCount * pageSize

	// MIN/MAX lose the column type, so the driver hands back strings
	var oldest, newest sql.NullString
	err := d.db.QueryRow("SELECT MIN(timestamp), MAX(timestamp) FROM targets").Scan(&oldest, &newest)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	if t, ok := parseTimestamp(oldest); ok {
		stats["oldest_record"] = t
	}
	if t, ok := parseTimestamp(newest); ok {
		stats["newest_record"] = t
	}

	return stats, nil
}

// timestampLayouts are the forms SQLite hands back for a stored time.Time
var timestampLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05-07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
}

func parseTimestamp(s sql.NullString) (time.Time, bool) {
	if !s.Valid || s.String == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s.String); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

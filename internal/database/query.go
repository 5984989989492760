package database

import (
	"database/sql"
	"time"
)

const selectTargets = `
	SELECT id, timestamp, path, object_type, status, entries, repaired, dry_run,
	       duration_ms, bytes_reclaimed, error_message
	FROM targets
`

// GetRecentTargets returns the N most recent targets
func (d *HistoryDB) GetRecentTargets(limit int) ([]TargetRecord, error) {
	return d.queryTargets(selectTargets+`
	ORDER BY timestamp DESC, id DESC
	LIMIT ?
	`, limit)
}

// GetTargetsByStatus returns targets with the given status
func (d *HistoryDB) GetTargetsByStatus(status string) ([]TargetRecord, error) {
	return d.queryTargets(selectTargets+`
	WHERE status = ?
	ORDER BY timestamp DESC, id DESC
	`, status)
}

// GetFailedTargets returns every target that did not end in success
func (d *HistoryDB) GetFailedTargets() ([]TargetRecord, error) {
	return d.queryTargets(selectTargets+`
	WHERE status != ?
	ORDER BY timestamp DESC, id DESC
	`, StatusSuccess)
}

// GetTargetsByPath returns targets matching a SQL LIKE path pattern
func (d *HistoryDB) GetTargetsByPath(pathPattern string) ([]TargetRecord, error) {
	return d.queryTargets(selectTargets+`
	WHERE path LIKE ?
	ORDER BY timestamp DESC, id DESC
	`, pathPattern)
}

// GetTargetsByDateRange returns targets within a time range
func (d *HistoryDB) GetTargetsByDateRange(start, end time.Time) ([]TargetRecord, error) {
	return d.queryTargets(selectTargets+`
	WHERE timestamp BETWEEN ? AND ?
	ORDER BY timestamp DESC, id DESC
	`, start, end)
}

// TargetStats holds aggregated statistics
type TargetStats struct {
	TotalTargets        int
	ByStatus            map[string]int
	DryRuns             int
	Repaired            int
	TotalEntries        int64
	TotalBytesReclaimed int64
	AvgDurationMs       float64
	StartDate           time.Time
	EndDate             time.Time
}

// GetTargetStats returns statistics for targets handled in the last days
func (d *HistoryDB) GetTargetStats(days int) (*TargetStats, error) {
	now := time.Now()
	since := now.AddDate(0, 0, -days)

	stats := &TargetStats{
		ByStatus:  make(map[string]int),
		StartDate: since,
		EndDate:   now,
	}

	err := d.db.QueryRow(`
		SELECT
			COUNT(*),
			COUNT(CASE WHEN dry_run = 1 THEN 1 END),
			COUNT(CASE WHEN repaired = 1 THEN 1 END),
			COALESCE(SUM(CASE WHEN dry_run = 0 THEN entries END), 0),
			COALESCE(SUM(bytes_reclaimed), 0),
			COALESCE(AVG(duration_ms), 0)
		FROM targets
		WHERE timestamp >= ?
	`, since).Scan(
		&stats.TotalTargets,
		&stats.DryRuns,
		&stats.Repaired,
		&stats.TotalEntries,
		&stats.TotalBytesReclaimed,
		&stats.AvgDurationMs,
	)
	if err != nil {
		return nil, err
	}

	rows, err := d.db.Query(`
		SELECT status, COUNT(*)
		FROM targets
		WHERE timestamp >= ?
		GROUP BY status
	`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats.ByStatus[status] = count
	}

	return stats, rows.Err()
}

// DeleteOldRecords removes records older than specified days
func (d *HistoryDB) DeleteOldRecords(olderThanDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -olderThanDays)

	result, err := d.db.Exec(`DELETE FROM targets WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// queryTargets executes a query and scans the results
func (d *HistoryDB) queryTargets(query string, args ...interface{}) ([]TargetRecord, error) {
	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []TargetRecord
	for rows.Next() {
		var r TargetRecord
		var errMsg sql.NullString

		err := rows.Scan(
			&r.ID, &r.Timestamp, &r.Path, &r.ObjectType, &r.Status,
			&r.Entries, &r.Repaired, &r.DryRun,
			&r.DurationMs, &r.BytesReclaimed, &errMsg,
		)
		if err != nil {
			return nil, err
		}
		if errMsg.Valid {
			r.ErrorMessage = errMsg.String
		}

		records = append(records, r)
	}

	return records, rows.Err()
}

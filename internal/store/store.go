// Package store persists scan results to a SQLite database so scans can be
// listed, queried by unit, and diffed later.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/faf-tools/simlint/internal/scan"
)

const schema = `
CREATE TABLE IF NOT EXISTS scans (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	scan_uuid TEXT NOT NULL,
	data_dir TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS scan_units (
	scan_id INTEGER NOT NULL REFERENCES scans(id) ON DELETE CASCADE,
	unit_id TEXT NOT NULL,
	report_json TEXT NOT NULL,
	PRIMARY KEY (scan_id, unit_id)
);

CREATE TABLE IF NOT EXISTS scan_findings (
	scan_id INTEGER NOT NULL REFERENCES scans(id) ON DELETE CASCADE,
	ord INTEGER NOT NULL,
	finding_json TEXT NOT NULL,
	PRIMARY KEY (scan_id, ord)
);

CREATE INDEX IF NOT EXISTS idx_scan_units_scan ON scan_units(scan_id);
`

// Store wraps the scan database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a scan database with WAL and foreign keys on.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("pragma %s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// ScanInfo identifies one stored scan.
type ScanInfo struct {
	ID        int64
	UUID      string
	DataDir   string
	CreatedAt string
}

// InsertScan stores one scan result and returns its row ID.
func (s *Store) InsertScan(res *scan.Result) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	created := time.Now().UTC().Format(time.RFC3339)
	r, err := tx.Exec("INSERT INTO scans (scan_uuid, data_dir, created_at) VALUES (?, ?, ?)",
		uuid.NewString(), res.DataDir, created)
	if err != nil {
		return 0, fmt.Errorf("insert scan: %w", err)
	}
	id, err := r.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("scan id: %w", err)
	}

	// OR IGNORE: the aggregator already keeps one report per unit ID, but a
	// hand-built result with colliding IDs must not abort persistence.
	stmt, err := tx.Prepare("INSERT OR IGNORE INTO scan_units (scan_id, unit_id, report_json) VALUES (?, ?, ?)")
	if err != nil {
		return 0, fmt.Errorf("prepare units: %w", err)
	}
	defer stmt.Close()
	for i := range res.Units {
		u := &res.Units[i]
		data, err := json.Marshal(u)
		if err != nil {
			return 0, fmt.Errorf("marshal unit %s: %w", u.Unit.ID, err)
		}
		if _, err := stmt.Exec(id, u.Unit.Key(), string(data)); err != nil {
			return 0, fmt.Errorf("insert unit %s: %w", u.Unit.ID, err)
		}
	}

	fstmt, err := tx.Prepare("INSERT INTO scan_findings (scan_id, ord, finding_json) VALUES (?, ?, ?)")
	if err != nil {
		return 0, fmt.Errorf("prepare findings: %w", err)
	}
	defer fstmt.Close()
	for i := range res.Findings {
		data, err := json.Marshal(res.Findings[i])
		if err != nil {
			return 0, fmt.Errorf("marshal finding: %w", err)
		}
		if _, err := fstmt.Exec(id, i, string(data)); err != nil {
			return 0, fmt.Errorf("insert finding: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// ListScans returns stored scans, newest first.
func (s *Store) ListScans() ([]ScanInfo, error) {
	rows, err := s.db.Query("SELECT id, scan_uuid, data_dir, created_at FROM scans ORDER BY id DESC")
	if err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}
	defer rows.Close()
	var out []ScanInfo
	for rows.Next() {
		var info ScanInfo
		if err := rows.Scan(&info.ID, &info.UUID, &info.DataDir, &info.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// LoadUnits returns the unit reports of one scan ordered by unit ID.
func (s *Store) LoadUnits(scanID int64) ([]scan.UnitReport, error) {
	rows, err := s.db.Query("SELECT report_json FROM scan_units WHERE scan_id = ? ORDER BY unit_id", scanID)
	if err != nil {
		return nil, fmt.Errorf("load units: %w", err)
	}
	defer rows.Close()
	var out []scan.UnitReport
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("unit row: %w", err)
		}
		var u scan.UnitReport
		if err := json.Unmarshal([]byte(data), &u); err != nil {
			return nil, fmt.Errorf("unmarshal unit report: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

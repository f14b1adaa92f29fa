package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/AnshumanSrivastavaGit/bbot/internal/model"
)

// AssetDB stores scan runs and the assets they discovered. One
// database file accumulates every scan, which is what makes runs
// comparable.
type AssetDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures AssetDB behavior.
type Options struct {
	// CreateIfNotExists creates the directory and database file on
	// first use. When false, a missing database is an error; read-only
	// consumers like the assets listing use this.
	CreateIfNotExists bool

	// EnableWAL turns on Write-Ahead Logging so readers do not block a
	// running scan.
	EnableWAL bool
}

// DefaultOptions returns the options a scan run uses.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the asset database under dbDir.
func Open(dbDir string, opts Options) (*AssetDB, error) {
	dbPath := filepath.Join(dbDir, "bbot.db")

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("asset database not found at %s", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite supports one writer; serialize through a single conn.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	adb := &AssetDB{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if err := adb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return adb, nil
}

// Close closes the database connection.
func (adb *AssetDB) Close() error {
	return adb.db.Close()
}

// Path returns the database file path.
func (adb *AssetDB) Path() string {
	return adb.dbPath
}

func (adb *AssetDB) createTables() error {
	schema := `
	-- One row per scan run
	CREATE TABLE IF NOT EXISTS scans (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		targets TEXT NOT NULL,
		started DATETIME DEFAULT CURRENT_TIMESTAMP,
		finished DATETIME,
		events INTEGER DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_scans_name ON scans(name);

	-- Reported events; one row per asset per scan
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		scan_id INTEGER NOT NULL REFERENCES scans(id),
		event_id TEXT NOT NULL,
		type TEXT NOT NULL,
		data TEXT NOT NULL,
		host TEXT,
		port INTEGER,
		scope_distance INTEGER,
		module TEXT,
		tags TEXT,
		parent TEXT,
		discovered DATETIME,
		UNIQUE(scan_id, type, data)
	);

	CREATE INDEX IF NOT EXISTS idx_events_scan ON events(scan_id);
	CREATE INDEX IF NOT EXISTS idx_events_host ON events(host);
	CREATE INDEX IF NOT EXISTS idx_events_type ON events(type);
	`
	_, err := adb.db.ExecContext(context.Background(), schema)
	return err
}

// ScanRecord summarizes one stored scan run.
type ScanRecord struct {
	ID       int64
	Name     string
	Targets  []string
	Started  time.Time
	Finished time.Time
	Events   int
}

// Running reports whether the scan has not been finished.
func (r ScanRecord) Running() bool {
	return r.Finished.IsZero()
}

// CreateScan registers a new scan run and returns its row ID.
func (adb *AssetDB) CreateScan(ctx context.Context, name string, targets []string) (int64, error) {
	targetsJSON, err := json.Marshal(targets)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize targets: %w", err)
	}
	result, err := adb.db.ExecContext(ctx,
		`INSERT INTO scans (name, targets) VALUES (?, ?)`,
		name, string(targetsJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create scan: %w", err)
	}
	return result.LastInsertId()
}

// FinishScan stamps the scan's end time and final event count.
func (adb *AssetDB) FinishScan(ctx context.Context, scanID int64, events int) error {
	_, err := adb.db.ExecContext(ctx,
		`UPDATE scans SET finished = CURRENT_TIMESTAMP, events = ? WHERE id = ?`,
		events, scanID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish scan: %w", err)
	}
	return nil
}

// InsertEvent stores one reported event. Re-observing an asset within
// the same scan updates its classification and tags in place.
func (adb *AssetDB) InsertEvent(ctx context.Context, scanID int64, rec model.EventRecord) error {
	tagsJSON, err := json.Marshal(rec.Tags)
	if err != nil {
		return fmt.Errorf("failed to serialize tags: %w", err)
	}

	query := `
	INSERT INTO events (scan_id, event_id, type, data, host, port, scope_distance, module, tags, parent, discovered)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(scan_id, type, data) DO UPDATE SET
		scope_distance = excluded.scope_distance,
		module = excluded.module,
		tags = excluded.tags,
		parent = excluded.parent
	`
	_, err = adb.db.ExecContext(ctx, query,
		scanID,
		rec.ID,
		rec.Type,
		rec.Data,
		rec.Host,
		rec.Port,
		rec.ScopeDistance,
		rec.Module,
		string(tagsJSON),
		rec.ParentID,
		rec.Discovered.UTC().Format("2006-01-02 15:04:05"),
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// ListScans returns every stored scan run, newest first.
func (adb *AssetDB) ListScans(ctx context.Context) ([]ScanRecord, error) {
	rows, err := adb.db.QueryContext(ctx,
		`SELECT id, name, targets, started, finished, events FROM scans ORDER BY started DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list scans: %w", err)
	}
	defer rows.Close()

	var scans []ScanRecord
	for rows.Next() {
		var rec ScanRecord
		var targetsJSON, started string
		var finished sql.NullString
		if err := rows.Scan(&rec.ID, &rec.Name, &targetsJSON, &started, &finished, &rec.Events); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if err := json.Unmarshal([]byte(targetsJSON), &rec.Targets); err != nil {
			rec.Targets = nil
		}
		rec.Started = parseTimestamp(started)
		if finished.Valid {
			rec.Finished = parseTimestamp(finished.String)
		}
		scans = append(scans, rec)
	}
	return scans, rows.Err()
}

// EventsForScan returns every event of a scan run, oldest first.
func (adb *AssetDB) EventsForScan(ctx context.Context, scanID int64) ([]model.EventRecord, error) {
	rows, err := adb.db.QueryContext(ctx, `
	SELECT event_id, type, data, host, port, scope_distance, module, tags, parent, discovered
	FROM events WHERE scan_id = ? ORDER BY id`,
		scanID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var records []model.EventRecord
	for rows.Next() {
		var rec model.EventRecord
		var tagsJSON, discovered string
		if err := rows.Scan(
			&rec.ID, &rec.Type, &rec.Data, &rec.Host, &rec.Port,
			&rec.ScopeDistance, &rec.Module, &tagsJSON, &rec.ParentID, &discovered,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if tagsJSON != "" {
			if err := json.Unmarshal([]byte(tagsJSON), &rec.Tags); err != nil {
				rec.Tags = nil
			}
		}
		rec.Discovered = parseTimestamp(discovered)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// HostsForScan returns the distinct hosts of a scan run, for quick
// diffing between runs.
func (adb *AssetDB) HostsForScan(ctx context.Context, scanID int64) ([]string, error) {
	rows, err := adb.db.QueryContext(ctx,
		`SELECT DISTINCT host FROM events WHERE scan_id = ? AND host != '' ORDER BY host`,
		scanID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query hosts: %w", err)
	}
	defer rows.Close()

	var hosts []string
	for rows.Next() {
		var host string
		if err := rows.Scan(&host); err != nil {
			return nil, fmt.Errorf("failed to scan host: %w", err)
		}
		hosts = append(hosts, host)
	}
	return hosts, rows.Err()
}

// LatestScanID returns the most recent scan's row ID, or zero when the
// database is empty.
func (adb *AssetDB) LatestScanID(ctx context.Context) (int64, error) {
	var id int64
	err := adb.db.QueryRowContext(ctx, `SELECT id FROM scans ORDER BY id DESC LIMIT 1`).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query latest scan: %w", err)
	}
	return id, nil
}

// EventWriter adapts the store to the scanner's output contract: every
// reported event of one scan run is upserted as it arrives.
type EventWriter struct {
	adb    *AssetDB
	scanID int64
}

// NewEventWriter creates a writer bound to one scan run.
func (adb *AssetDB) NewEventWriter(scanID int64) *EventWriter {
	return &EventWriter{adb: adb, scanID: scanID}
}

// Write stores one reported event.
func (w *EventWriter) Write(rec model.EventRecord) error {
	return w.adb.InsertEvent(context.Background(), w.scanID, rec)
}

// Close implements the output contract; the database itself stays open
// for the finish stamp.
func (w *EventWriter) Close() error { return nil }

// timestampFormats lists the formats SQLite hands back depending on
// how a value was written. Most specific first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999",
}

func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

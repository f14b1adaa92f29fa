// Package database persists scan results to SQLite. Each scan run is
// one row in the scans table; every reported event lands in the events
// table keyed by (scan, type, data), so re-running a scan updates
// known assets instead of duplicating them. The store is what makes
// runs comparable after the fact.
//
// SQLite via modernc.org/sqlite keeps the store a single CGO-free
// file; WAL mode covers concurrent readers during a running scan.
package database

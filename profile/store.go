// Package profile persists execution profile events (loop back-edges and
// site specializations) to a local SQLite database so hot methods can be
// inspected across runs.
package profile

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/chazu/javelin/vm"
)

var log = commonlog.GetLogger("javelin.profile")

// Store is a SQLite-backed profile sink.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) a profile database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("profile: open %s: %w", path, err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("profile: set busy timeout: %w", err)
	}
	schema := `
	CREATE TABLE IF NOT EXISTS back_edges (
		method TEXT NOT NULL,
		bci    INTEGER NOT NULL,
		count  INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (method, bci)
	);
	CREATE TABLE IF NOT EXISTS quickenings (
		method TEXT NOT NULL,
		bci    INTEGER NOT NULL,
		kind   TEXT NOT NULL,
		at     INTEGER NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("profile: create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// BackEdge increments the back-edge counter for (method, bci).
func (s *Store) BackEdge(method string, bci int) {
	_, err := s.db.Exec(`
		INSERT INTO back_edges (method, bci, count) VALUES (?, ?, 1)
		ON CONFLICT (method, bci) DO UPDATE SET count = count + 1`,
		method, bci)
	if err != nil {
		log.Errorf("record back edge for %s@%d: %s", method, bci, err.Error())
	}
}

// Quickened records a site specialization event.
func (s *Store) Quickened(method string, bci int, kind string) {
	_, err := s.db.Exec(
		"INSERT INTO quickenings (method, bci, kind, at) VALUES (?, ?, ?, ?)",
		method, bci, kind, time.Now().UnixMilli())
	if err != nil {
		log.Errorf("record quickening for %s@%d: %s", method, bci, err.Error())
	}
}

// HotMethod is one row of the hot-method report.
type HotMethod struct {
	Method    string
	BackEdges int64
}

// HotMethods returns the methods with the most observed loop back-edges.
func (s *Store) HotMethods(limit int) ([]HotMethod, error) {
	rows, err := s.db.Query(`
		SELECT method, SUM(count) AS n FROM back_edges
		GROUP BY method ORDER BY n DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("profile: query hot methods: %w", err)
	}
	defer rows.Close()
	var out []HotMethod
	for rows.Next() {
		var h HotMethod
		if err := rows.Scan(&h.Method, &h.BackEdges); err != nil {
			return nil, fmt.Errorf("profile: scan hot method: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// SiteEvent is one recorded specialization.
type SiteEvent struct {
	Method string
	BCI    int
	Kind   string
}

// Quickenings returns the recorded specialization events for a method.
func (s *Store) Quickenings(method string) ([]SiteEvent, error) {
	rows, err := s.db.Query(
		"SELECT method, bci, kind FROM quickenings WHERE method = ? ORDER BY at", method)
	if err != nil {
		return nil, fmt.Errorf("profile: query quickenings: %w", err)
	}
	defer rows.Close()
	var out []SiteEvent
	for rows.Next() {
		var ev SiteEvent
		if err := rows.Scan(&ev.Method, &ev.BCI, &ev.Kind); err != nil {
			return nil, fmt.Errorf("profile: scan quickening: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

var _ vm.ProfileSink = (*Store)(nil)

// Package store implements the durable persistence substrate: a
// SQLite-backed database for queried/indexed entities (memories, tier
// placement, patterns, open loops, pressure vectors) and JSON snapshot
// pools for small, TTL-bearing, frequently-rewritten state. Grounded on
// internal/graph/db.go's Open/migrate/WAL pattern, dropping its
// sqlite-vec dependency (similarity search is explicitly a Non-goal).
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite connection backing the core's durable entities. All
// tables are owner-partitioned by an owner_id column; every query issued
// through the higher-level store methods filters on it explicitly — there
// is no ambient row-level security, so callers must never omit the filter.
type DB struct {
	conn *sql.DB
	path string
}

// Open opens or creates the attention-core database under stateDir,
// running migrations and enabling WAL mode for concurrent readers.
func Open(stateDir string) (*DB, error) {
	dbPath := filepath.Join(stateDir, "attnmem.db")
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("store: create state dir: %w", err)
	}

	conn, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping database: %w", err)
	}

	d := &DB{conn: conn, path: dbPath}
	if err := d.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return d, nil
}

// Close releases the underlying connection.
func (d *DB) Close() error {
	return d.conn.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY,
	applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS memories (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL,
	created_ingest DATETIME NOT NULL,
	created_event DATETIME NOT NULL,
	content TEXT NOT NULL,
	privacy_tier TEXT NOT NULL,
	device_origin_id TEXT,
	device_origin_type TEXT,
	tags TEXT,              -- JSON array
	features TEXT NOT NULL, -- JSON FeatureBundle
	base_salience REAL NOT NULL,
	access_history TEXT,     -- JSON array of RFC3339 timestamps
	state TEXT NOT NULL,
	deleted_at DATETIME,
	scheduled_forget DATETIME
);

CREATE INDEX IF NOT EXISTS idx_memories_owner ON memories(owner_id);
CREATE INDEX IF NOT EXISTS idx_memories_owner_state ON memories(owner_id, state);
CREATE INDEX IF NOT EXISTS idx_memories_owner_created ON memories(owner_id, created_event);
CREATE INDEX IF NOT EXISTS idx_memories_scheduled_forget ON memories(scheduled_forget);

CREATE TABLE IF NOT EXISTS tier_placement (
	memory_id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL,
	tier TEXT NOT NULL,
	last_access DATETIME NOT NULL,
	access_count INTEGER NOT NULL DEFAULT 0,
	placed_at DATETIME NOT NULL,
	FOREIGN KEY (memory_id) REFERENCES memories(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_tier_owner_tier ON tier_placement(owner_id, tier);

CREATE TABLE IF NOT EXISTS patterns (
	entity_id TEXT NOT NULL,
	owner_id TEXT NOT NULL,
	period_days REAL NOT NULL,
	confidence REAL NOT NULL,
	formation TEXT NOT NULL,
	days_of_data INTEGER NOT NULL,
	next_predicted DATETIME,
	std_dev_hours REAL,
	PRIMARY KEY (owner_id, entity_id)
);

CREATE TABLE IF NOT EXISTS pattern_samples (
	owner_id TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	accessed_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_pattern_samples ON pattern_samples(owner_id, entity_id, accessed_at);

CREATE TABLE IF NOT EXISTS open_loops (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL,
	source_memory TEXT NOT NULL,
	ownership TEXT NOT NULL,
	counterparty TEXT,
	description TEXT NOT NULL,
	due_date DATETIME,
	status TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_open_loops_owner_status ON open_loops(owner_id, status);

CREATE TABLE IF NOT EXISTS pressure_vectors (
	owner_id TEXT NOT NULL,
	a TEXT NOT NULL,
	b TEXT NOT NULL,
	magnitude REAL NOT NULL,
	valence REAL NOT NULL,
	timestamp DATETIME NOT NULL,
	decay_rate REAL NOT NULL,
	PRIMARY KEY (owner_id, a, b)
);
`

func (d *DB) migrate() error {
	if _, err := d.conn.Exec(schema); err != nil {
		return err
	}
	var count int
	if err := d.conn.QueryRow(`SELECT COUNT(*) FROM schema_version`).Scan(&count); err != nil {
		return err
	}
	if count == 0 {
		_, err := d.conn.Exec(`INSERT INTO schema_version (version) VALUES (1)`)
		return err
	}
	return nil
}

// Package journal is an append-only SQLite log of registry activity.
package journal

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/entity-dynamics/internal/cascade"
	"github.com/danielpatrickdp/entity-dynamics/internal/loop"
	"github.com/danielpatrickdp/entity-dynamics/internal/registry"
	"github.com/danielpatrickdp/entity-dynamics/internal/state"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS entities (
	entity_id     TEXT PRIMARY KEY,
	display_name  TEXT NOT NULL,
	category      TEXT NOT NULL,
	created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS state_snapshots (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	entity_id     TEXT NOT NULL,
	value         REAL NOT NULL,
	d_value_dt    REAL NOT NULL,
	state_json    TEXT NOT NULL,
	recorded_at   TEXT NOT NULL,
	FOREIGN KEY (entity_id) REFERENCES entities(entity_id)
);

CREATE TABLE IF NOT EXISTS loop_executions (
	execution_id   TEXT PRIMARY KEY,
	entity_id      TEXT NOT NULL,
	phase          TEXT NOT NULL,
	success        INTEGER NOT NULL,
	error_message  TEXT,
	execution_json TEXT NOT NULL,
	started_at     TEXT NOT NULL,
	FOREIGN KEY (entity_id) REFERENCES entities(entity_id)
);

CREATE TABLE IF NOT EXISTS cascade_alerts (
	alert_id          TEXT PRIMARY KEY,
	trigger_entity_id TEXT NOT NULL,
	rate_of_change    REAL NOT NULL,
	affected_count    INTEGER NOT NULL,
	alert_json        TEXT NOT NULL,
	created_at        TEXT NOT NULL,
	FOREIGN KEY (trigger_entity_id) REFERENCES entities(entity_id)
);

CREATE INDEX IF NOT EXISTS idx_states_entity ON state_snapshots(entity_id, id);
CREATE INDEX IF NOT EXISTS idx_loops_entity ON loop_executions(entity_id);
`

// #endregion schema

// Journal persists registry records in SQLite.
type Journal struct {
	db *sql.DB
}

var _ registry.Sink = (*Journal)(nil)

// #region open
// Open opens (or creates) the journal at path and runs migrations.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// one connection keeps ":memory:" databases shared and serialises writers
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// DB returns the underlying *sql.DB.
func (j *Journal) DB() *sql.DB {
	return j.db
}

// #endregion open

// #region sink
// SaveEntity records a registration. Re-registering the same id is a no-op.
func (j *Journal) SaveEntity(h registry.Handle) error {
	_, err := j.db.Exec(
		`INSERT INTO entities (entity_id, display_name, category, created_at)
		 VALUES (?, ?, ?, ?) ON CONFLICT(entity_id) DO NOTHING`,
		h.ID, h.Name, string(h.Category), h.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert entity: %w", err)
	}
	return nil
}

// SaveState appends one state vector.
func (j *Journal) SaveState(entityID string, v state.Vector) error {
	blob, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	_, err = j.db.Exec(
		`INSERT INTO state_snapshots (entity_id, value, d_value_dt, state_json, recorded_at)
		 VALUES (?, ?, ?, ?, ?)`,
		entityID, v.Value, v.DValueDt, string(blob), v.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert state: %w", err)
	}
	return nil
}

// SaveLoop appends one phase execution.
func (j *Journal) SaveLoop(e loop.Execution) error {
	blob, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal execution: %w", err)
	}
	_, err = j.db.Exec(
		`INSERT INTO loop_executions (execution_id, entity_id, phase, success, error_message, execution_json, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.EntityID, string(e.Phase), boolInt(e.Success), nullIfEmpty(e.ErrorMessage),
		string(blob), e.StartedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert execution: %w", err)
	}
	return nil
}

// SaveAlert appends one cascade alert.
func (j *Journal) SaveAlert(a cascade.Alert) error {
	blob, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	_, err = j.db.Exec(
		`INSERT INTO cascade_alerts (alert_id, trigger_entity_id, rate_of_change, affected_count, alert_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.TriggerEntityID, a.TriggerRateOfChange, len(a.Affected),
		string(blob), a.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// #endregion sink

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// #endregion helpers

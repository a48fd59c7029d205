package journal

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/danielpatrickdp/entity-dynamics/internal/cascade"
	"github.com/danielpatrickdp/entity-dynamics/internal/catalog"
	"github.com/danielpatrickdp/entity-dynamics/internal/loop"
	"github.com/danielpatrickdp/entity-dynamics/internal/registry"
	"github.com/danielpatrickdp/entity-dynamics/internal/state"
)

// Counts is the number of rows per table.
type Counts struct {
	Entities int `json:"entities"`
	States   int `json:"states"`
	Loops    int `json:"loops"`
	Alerts   int `json:"alerts"`
}

// #region counts
// Counts returns row counts for every table.
func (j *Journal) Counts() (Counts, error) {
	var c Counts
	for _, q := range []struct {
		table string
		dst   *int
	}{
		{"entities", &c.Entities},
		{"state_snapshots", &c.States},
		{"loop_executions", &c.Loops},
		{"cascade_alerts", &c.Alerts},
	} {
		if err := j.db.QueryRow(`SELECT COUNT(*) FROM ` + q.table).Scan(q.dst); err != nil {
			return Counts{}, fmt.Errorf("count %s: %w", q.table, err)
		}
	}
	return c, nil
}

// #endregion counts

// #region entities
// Entities lists every journaled entity ordered by id.
func (j *Journal) Entities() ([]registry.Handle, error) {
	rows, err := j.db.Query(`SELECT entity_id, display_name, category, created_at FROM entities ORDER BY entity_id`)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	defer rows.Close()

	var out []registry.Handle
	for rows.Next() {
		var h registry.Handle
		var cat, created string
		if err := rows.Scan(&h.ID, &h.Name, &cat, &created); err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		h.Category = catalog.Category(cat)
		if h.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("entity %s created_at: %w", h.ID, err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// #endregion entities

// #region states
// States returns the most recent limit states of an entity, oldest first.
// limit <= 0 returns all.
func (j *Journal) States(entityID string, limit int) ([]state.Vector, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := j.db.Query(
		`SELECT state_json FROM (
			SELECT id, state_json FROM state_snapshots WHERE entity_id = ? ORDER BY id DESC LIMIT ?
		 ) ORDER BY id ASC`, entityID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list states: %w", err)
	}
	defer rows.Close()

	var out []state.Vector
	for rows.Next() {
		var blob string
		if err := rows.Scan(&blob); err != nil {
			return nil, fmt.Errorf("scan state: %w", err)
		}
		var v state.Vector
		if err := json.Unmarshal([]byte(blob), &v); err != nil {
			return nil, fmt.Errorf("unmarshal state: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// #endregion states

// #region loops
// Loops returns the most recent limit executions, newest first. An empty
// entityID lists every entity.
func (j *Journal) Loops(entityID string, limit int) ([]loop.Execution, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := j.db.Query(
		`SELECT execution_json FROM loop_executions
		 WHERE (? = '' OR entity_id = ?) ORDER BY rowid DESC LIMIT ?`,
		entityID, entityID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list loops: %w", err)
	}
	defer rows.Close()

	var out []loop.Execution
	for rows.Next() {
		var blob string
		if err := rows.Scan(&blob); err != nil {
			return nil, fmt.Errorf("scan execution: %w", err)
		}
		var e loop.Execution
		if err := json.Unmarshal([]byte(blob), &e); err != nil {
			return nil, fmt.Errorf("unmarshal execution: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// #endregion loops

// #region alerts
// Alerts returns the most recent limit cascade alerts, newest first.
func (j *Journal) Alerts(limit int) ([]cascade.Alert, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := j.db.Query(
		`SELECT alert_json FROM cascade_alerts ORDER BY rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var out []cascade.Alert
	for rows.Next() {
		var blob string
		if err := rows.Scan(&blob); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		var a cascade.Alert
		if err := json.Unmarshal([]byte(blob), &a); err != nil {
			return nil, fmt.Errorf("unmarshal alert: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// #endregion alerts

package inspector

import (
	"database/sql"
	"time"

	"legacymod/internal/errs"
)

const trackerSchemaDDL = `
CREATE TABLE IF NOT EXISTS inspector_runs (
	node_id      TEXT NOT NULL,
	inspector_id TEXT NOT NULL,
	last_run     INTEGER NOT NULL,
	PRIMARY KEY (node_id, inspector_id)
);
`

// Tracker records, per (nodeID, inspectorID), the last time that
// inspector ran against that node, backing per-item CanRun skipping
// across passes and across runs.
type Tracker struct {
	db *sql.DB
}

// NewTracker opens the tracking table on db, which is expected to be the
// same SQLite handle the graph store uses (internal/graphstore.Store.DB).
func NewTracker(db *sql.DB) (*Tracker, error) {
	if _, err := db.Exec(trackerSchemaDDL); err != nil {
		return nil, errs.IOWrap(err, "initializing inspector tracker schema")
	}
	return &Tracker{db: db}, nil
}

// LastRun returns the last time inspectorID ran against nodeID, or the
// zero time if it never has.
func (t *Tracker) LastRun(nodeID, inspectorID string) time.Time {
	var unixSeconds int64
	err := t.db.QueryRow(`SELECT last_run FROM inspector_runs WHERE node_id = ? AND inspector_id = ?`, nodeID, inspectorID).Scan(&unixSeconds)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(unixSeconds, 0)
}

// MarkRun records that inspectorID just ran against nodeID at at.
func (t *Tracker) MarkRun(nodeID, inspectorID string, at time.Time) error {
	_, err := t.db.Exec(`INSERT INTO inspector_runs (node_id, inspector_id, last_run) VALUES (?, ?, ?)
		ON CONFLICT(node_id, inspector_id) DO UPDATE SET last_run = excluded.last_run`, nodeID, inspectorID, at.Unix())
	if err != nil {
		return errs.IOWrap(err, "recording inspector run for %s/%s", nodeID, inspectorID)
	}
	return nil
}

// Invalidate clears the recorded last-run for a node (every inspector, if
// inspectorID is empty, or a single inspector otherwise), forcing a
// re-run after an upstream change.
func (t *Tracker) Invalidate(nodeID, inspectorID string) error {
	var err error
	if inspectorID == "" {
		_, err = t.db.Exec(`DELETE FROM inspector_runs WHERE node_id = ?`, nodeID)
	} else {
		_, err = t.db.Exec(`DELETE FROM inspector_runs WHERE node_id = ? AND inspector_id = ?`, nodeID, inspectorID)
	}
	if err != nil {
		return errs.IOWrap(err, "invalidating inspector tracking for %s", nodeID)
	}
	return nil
}

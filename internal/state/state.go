// Package state implements the migration state file: a single JSON
// document at <projectRoot>/.analysis/migration-state.json, written via
// write-temp+fsync+rename under an OS file lock, keeping one rolling
// backup and a length-capped history.
package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"legacymod/internal/errs"
	"legacymod/internal/logging"
)

const schemaVersion = 1
const defaultHistoryCap = 50

// TaskExecutionRecord is the per-task detail kept inside a phase record.
type TaskExecutionRecord struct {
	TaskID    string    `json:"task_id"`
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at,omitempty"`
	EndedAt   time.Time `json:"ended_at,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// PhaseExecutionRecord tracks one phase's status, timing, and per-task
// detail within a plan run.
type PhaseExecutionRecord struct {
	PhaseID   string                 `json:"phase_id"`
	Status    string                 `json:"status"`
	StartedAt time.Time              `json:"started_at,omitempty"`
	EndedAt   time.Time              `json:"ended_at,omitempty"`
	Tasks     []TaskExecutionRecord  `json:"tasks"`
}

// MigrationExecutionState is one plan run's full recorded state.
type MigrationExecutionState struct {
	PlanKey   string                 `json:"plan_key"`
	Status    string                 `json:"status"`
	StartedAt time.Time              `json:"started_at"`
	EndedAt   time.Time              `json:"ended_at,omitempty"`
	Phases    []PhaseExecutionRecord `json:"phases"`
}

// MigrationState is the full persisted document.
type MigrationState struct {
	SchemaVersion    int                                 `json:"schema_version"`
	CurrentPlanKey   string                              `json:"current_plan_key"`
	Migrations       map[string]MigrationExecutionState  `json:"migrations"`
	VariableSnapshot map[string]interface{}               `json:"variable_snapshot"`
	History          []MigrationExecutionState           `json:"history"` // newest-first
	HistoryCap       int                                  `json:"-"`
}

// New returns an empty state document with the current schema version.
func New(historyCap int) *MigrationState {
	if historyCap <= 0 {
		historyCap = defaultHistoryCap
	}
	return &MigrationState{
		SchemaVersion:    schemaVersion,
		Migrations:       map[string]MigrationExecutionState{},
		VariableSnapshot: map[string]interface{}{},
		HistoryCap:       historyCap,
	}
}

// PushHistory prepends exec to History (newest-first) and trims to
// HistoryCap; oldest entries drop on overflow.
func (s *MigrationState) PushHistory(exec MigrationExecutionState) {
	cap := s.HistoryCap
	if cap <= 0 {
		cap = defaultHistoryCap
	}
	s.History = append([]MigrationExecutionState{exec}, s.History...)
	if len(s.History) > cap {
		s.History = s.History[:cap]
	}
}

// Store manages the on-disk state file at path.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads and parses the state file. A missing file yields a fresh
// MigrationState, not an error. Corruption triggers a restore attempt
// from the rolling .bak file; if that also fails to parse, Load returns
// an IOError with a clear operator-facing message.
func (s *Store) Load(historyCap int) (*MigrationState, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(historyCap), nil
		}
		return nil, errs.IOWrap(err, "reading state file %s", s.path)
	}

	var st MigrationState
	if err := json.Unmarshal(data, &st); err != nil {
		backupData, backupErr := os.ReadFile(s.backupPath())
		if backupErr != nil {
			return nil, errs.IOWrap(err, "state file %s is corrupt and no backup is available", s.path)
		}
		if err := json.Unmarshal(backupData, &st); err != nil {
			return nil, errs.IOWrap(err, "state file %s and its backup are both corrupt", s.path)
		}
		logging.Named("state").Warn("recovered migration state from backup after the primary file failed to parse",
			zap.String("path", s.path), zap.String("backup", s.backupPath()), zap.Error(err))
	}
	if st.SchemaVersion != schemaVersion {
		return nil, errs.Config("state file schema version %d is not supported (expected %d)", st.SchemaVersion, schemaVersion)
	}
	st.HistoryCap = historyCap
	if st.Migrations == nil {
		st.Migrations = map[string]MigrationExecutionState{}
	}
	if st.VariableSnapshot == nil {
		st.VariableSnapshot = map[string]interface{}{}
	}
	return &st, nil
}

func (s *Store) backupPath() string {
	return s.path + ".bak"
}

// Save persists st atomically: write to a temp file in the same
// directory, fsync, rename over the target, all under an OS file lock
// held for the duration of the rename so concurrent writers serialize.
// The previous on-disk contents become the rolling backup.
func (s *Store) Save(st *MigrationState) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.IOWrap(err, "creating state directory %s", dir)
	}

	lockPath := s.path + ".lock"
	lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return errs.IOWrap(err, "opening state lock file %s", lockPath)
	}
	defer lockFile.Close()
	if err := syscall.Flock(int(lockFile.Fd()), syscall.LOCK_EX); err != nil {
		return errs.IOWrap(err, "locking state file %s", s.path)
	}
	defer syscall.Flock(int(lockFile.Fd()), syscall.LOCK_UN)

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return errs.IOWrap(err, "marshaling migration state")
	}

	tmp, err := os.CreateTemp(dir, ".migration-state-*.tmp")
	if err != nil {
		return errs.IOWrap(err, "creating temp state file")
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errs.IOWrap(err, "writing temp state file")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errs.IOWrap(err, "fsyncing temp state file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errs.IOWrap(err, "closing temp state file")
	}

	if existing, err := os.ReadFile(s.path); err == nil {
		_ = os.WriteFile(s.backupPath(), existing, 0o644)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return errs.IOWrap(err, "renaming temp state file into place")
	}
	return nil
}

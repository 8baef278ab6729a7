// Package journal keeps a SQLite history of reflow runs and their control
// cycles.
package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/itohio/goreflow/pkg/oven"
)

// ErrNoRun is returned by Record before StartRun.
var ErrNoRun = errors.New("no run started")

// Run is one row of the runs table.
type Run struct {
	ID        uuid.UUID
	Profile   string
	StartedAt time.Time
	Offset    float32
}

// Journal stores runs and cycles. It implements oven.RunRecorder.
type Journal struct {
	db *sql.DB

	mu  sync.Mutex
	run uuid.UUID
}

// Open opens the database at path and initializes the schema.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize journal schema: %w", err)
	}

	return &Journal{db: db}, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			profile TEXT NOT NULL,
			started_at INTEGER NOT NULL,
			calibration_offset REAL NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create runs table: %w", err)
	}

	// One row per control cycle; runtime in milliseconds since the loop started
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS cycles (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(id),
			runtime_ms INTEGER NOT NULL,
			desired_temperature REAL NOT NULL,
			current_temperature REAL NOT NULL,
			control_output REAL NOT NULL,
			phase TEXT NOT NULL,
			status TEXT NOT NULL,
			ramp_rate REAL NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_cycles_run ON cycles(run_id, runtime_ms);
	`)
	if err != nil {
		return fmt.Errorf("failed to create cycles table: %w", err)
	}

	return nil
}

// StartRun inserts a run row and makes it the target of subsequent Record calls.
func (j *Journal) StartRun(profile string, offset float32) (uuid.UUID, error) {
	id := uuid.New()
	_, err := j.db.Exec(`INSERT INTO runs (id, profile, started_at, calibration_offset) VALUES (?, ?, ?, ?)`,
		id.String(), profile, time.Now().UTC().UnixMilli(), offset)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert run: %w", err)
	}

	j.mu.Lock()
	j.run = id
	j.mu.Unlock()
	return id, nil
}

// BeginRun starts a new run; it satisfies oven.RunRecorder.
func (j *Journal) BeginRun(profile string, offset float32) error {
	_, err := j.StartRun(profile, offset)
	return err
}

// Record stores one control cycle under the current run.
func (j *Journal) Record(c oven.Cycle) error {
	j.mu.Lock()
	run := j.run
	j.mu.Unlock()

	if run == uuid.Nil {
		return ErrNoRun
	}

	_, err := j.db.Exec(`INSERT INTO cycles (run_id, runtime_ms, desired_temperature, current_temperature, control_output, phase, status, ramp_rate)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.String(), c.Runtime.Milliseconds(), c.Desired, c.Current, c.Output,
		c.Phase.String(), c.Status.String(), c.RampRate)
	if err != nil {
		return fmt.Errorf("failed to insert cycle: %w", err)
	}
	return nil
}

// Runs lists all runs, oldest first.
func (j *Journal) Runs() ([]Run, error) {
	rows, err := j.db.Query(`SELECT id, profile, started_at, calibration_offset FROM runs ORDER BY started_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			id      string
			r       Run
			started int64
		)
		if err := rows.Scan(&id, &r.Profile, &started, &r.Offset); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if r.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("invalid run id %q: %w", id, err)
		}
		r.StartedAt = time.UnixMilli(started).UTC()
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Cycles returns the recorded cycles of a run in runtime order. Phase is not
// restored; Status and Heating are.
func (j *Journal) Cycles(run uuid.UUID) ([]oven.Cycle, error) {
	rows, err := j.db.Query(`SELECT runtime_ms, desired_temperature, current_temperature, control_output, status, ramp_rate
		FROM cycles WHERE run_id = ? ORDER BY runtime_ms, id`, run.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query cycles: %w", err)
	}
	defer rows.Close()

	var cycles []oven.Cycle
	for rows.Next() {
		var (
			c      oven.Cycle
			ms     int64
			status string
		)
		if err := rows.Scan(&ms, &c.Desired, &c.Current, &c.Output, &status, &c.RampRate); err != nil {
			return nil, fmt.Errorf("failed to scan cycle: %w", err)
		}
		c.Runtime = time.Duration(ms) * time.Millisecond
		c.Status = parseStatus(status)
		c.Heating = c.Status == oven.StatusHeating
		cycles = append(cycles, c)
	}
	return cycles, rows.Err()
}

func parseStatus(s string) oven.Status {
	for _, st := range []oven.Status{oven.StatusIdle, oven.StatusHeating, oven.StatusComplete} {
		if st.String() == s {
			return st
		}
	}
	return oven.StatusIdle
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

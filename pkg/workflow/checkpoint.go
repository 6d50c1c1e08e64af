package workflow

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/clinicore/clinicore/pkg/agent"
)

// Checkpointer persists run progress so a crash mid-run can report partial
// progress. Checkpoint failures never abort a run; the engine logs them and
// continues.
type Checkpointer interface {
	// SaveRun upserts the run header and its current success state.
	SaveRun(ctx context.Context, run *Run) error

	// SaveStepResult appends one step result for the run.
	SaveStepResult(ctx context.Context, runID string, result *agent.StepResult) error
}

// NilCheckpointer discards all checkpoints. Runs are ephemeral by default.
type NilCheckpointer struct{}

var _ Checkpointer = NilCheckpointer{}

func (NilCheckpointer) SaveRun(context.Context, *Run) error { return nil }
func (NilCheckpointer) SaveStepResult(context.Context, string, *agent.StepResult) error {
	return nil
}

// SQLCheckpointer persists runs and step results to a relational database.
//
// Supported dialects: sqlite3, postgres, mysql. Step outputs are stored as
// JSON text so the schema stays identical across dialects.
type SQLCheckpointer struct {
	db      *sql.DB
	dialect string
}

var _ Checkpointer = (*SQLCheckpointer)(nil)

// SQLCheckpointerConfig configures the SQL checkpointer.
type SQLCheckpointerConfig struct {
	// Driver name: sqlite3, postgres or mysql.
	Driver string `yaml:"driver"`

	// DSN is the driver-specific data source name.
	DSN string `yaml:"dsn"`
}

const (
	createRunsTableSQL = `
CREATE TABLE IF NOT EXISTS workflow_runs (
    id VARCHAR(255) PRIMARY KEY,
    workflow_type VARCHAR(64) NOT NULL,
    success BOOLEAN NOT NULL,
    started_at TIMESTAMP NOT NULL,
    completed_at TIMESTAMP NULL
);
`

	createStepResultsTableSQL = `
CREATE TABLE IF NOT EXISTS workflow_step_results (
    run_id VARCHAR(255) NOT NULL,
    step_name VARCHAR(255) NOT NULL,
    success BOOLEAN NOT NULL,
    output TEXT,
    error TEXT,
    duration_ms BIGINT NOT NULL,
    recorded_at TIMESTAMP NOT NULL,
    PRIMARY KEY (run_id, step_name)
);
`
)

// NewSQLCheckpointer opens the database and ensures the schema exists.
func NewSQLCheckpointer(cfg SQLCheckpointerConfig) (*SQLCheckpointer, error) {
	switch cfg.Driver {
	case "sqlite3", "postgres", "mysql":
	case "":
		return nil, fmt.Errorf("driver is required")
	default:
		return nil, fmt.Errorf("unsupported driver: %q", cfg.Driver)
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("dsn is required")
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Driver, err)
	}

	checkpointer := &SQLCheckpointer{db: db, dialect: cfg.Driver}
	if err := checkpointer.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return checkpointer, nil
}

// NewSQLCheckpointerWithDB wraps an existing connection (used by tests and
// hosts that manage pooling themselves).
func NewSQLCheckpointerWithDB(db *sql.DB, dialect string) (*SQLCheckpointer, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	checkpointer := &SQLCheckpointer{db: db, dialect: dialect}
	if err := checkpointer.initSchema(); err != nil {
		return nil, err
	}
	return checkpointer, nil
}

func (c *SQLCheckpointer) initSchema() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, ddl := range []string{createRunsTableSQL, createStepResultsTableSQL} {
		if _, err := c.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("failed to create checkpoint schema: %w", err)
		}
	}
	return nil
}

func (c *SQLCheckpointer) SaveRun(ctx context.Context, run *Run) error {
	var completedAt any
	if !run.CompletedAt.IsZero() {
		completedAt = run.CompletedAt
	}

	query := `
INSERT INTO workflow_runs (id, workflow_type, success, started_at, completed_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    success = excluded.success,
    completed_at = excluded.completed_at
`
	if c.dialect == "postgres" {
		query = `
INSERT INTO workflow_runs (id, workflow_type, success, started_at, completed_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET
    success = EXCLUDED.success,
    completed_at = EXCLUDED.completed_at
`
	} else if c.dialect == "mysql" {
		query = `
INSERT INTO workflow_runs (id, workflow_type, success, started_at, completed_at)
VALUES (?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
    success = VALUES(success),
    completed_at = VALUES(completed_at)
`
	}

	if _, err := c.db.ExecContext(ctx, query,
		run.ID, string(run.Type), run.Success, run.StartedAt, completedAt); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

func (c *SQLCheckpointer) SaveStepResult(ctx context.Context, runID string, result *agent.StepResult) error {
	output, err := json.Marshal(result.Output)
	if err != nil {
		return fmt.Errorf("failed to marshal step output: %w", err)
	}

	query := `
INSERT INTO workflow_step_results (run_id, step_name, success, output, error, duration_ms, recorded_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(run_id, step_name) DO UPDATE SET
    success = excluded.success,
    output = excluded.output,
    error = excluded.error,
    duration_ms = excluded.duration_ms,
    recorded_at = excluded.recorded_at
`
	if c.dialect == "postgres" {
		query = `
INSERT INTO workflow_step_results (run_id, step_name, success, output, error, duration_ms, recorded_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (run_id, step_name) DO UPDATE SET
    success = EXCLUDED.success,
    output = EXCLUDED.output,
    error = EXCLUDED.error,
    duration_ms = EXCLUDED.duration_ms,
    recorded_at = EXCLUDED.recorded_at
`
	} else if c.dialect == "mysql" {
		query = `
INSERT INTO workflow_step_results (run_id, step_name, success, output, error, duration_ms, recorded_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
    success = VALUES(success),
    output = VALUES(output),
    error = VALUES(error),
    duration_ms = VALUES(duration_ms),
    recorded_at = VALUES(recorded_at)
`
	}

	if _, err := c.db.ExecContext(ctx, query,
		runID, result.StepName, result.Success, string(output), result.Error,
		result.Duration.Milliseconds(), time.Now()); err != nil {
		return fmt.Errorf("failed to save step result: %w", err)
	}
	return nil
}

// ListStepResults returns the persisted step names for a run in recorded
// order, for post-crash progress inspection.
func (c *SQLCheckpointer) ListStepResults(ctx context.Context, runID string) ([]string, error) {
	query := `SELECT step_name FROM workflow_step_results WHERE run_id = ? ORDER BY recorded_at`
	if c.dialect == "postgres" {
		query = `SELECT step_name FROM workflow_step_results WHERE run_id = $1 ORDER BY recorded_at`
	}

	rows, err := c.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list step results: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan step result: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Close releases the underlying database connection.
func (c *SQLCheckpointer) Close() error {
	return c.db.Close()
}

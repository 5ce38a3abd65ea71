// Package store persists tasks and timetables, grounded on the teacher's
// pkg/database.Manager: a *sql.DB wrapper configured from a DSN, with one
// method per query and parameterized SQL throughout.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	coreerrors "github.com/mrta-fleet/auction/pkg/errors"
	"github.com/mrta-fleet/auction/pkg/task"
)

// Store is the persistence boundary spec.md §6 names but leaves external:
// get_task/save_task/update_task_status plus timetable archival.
type Store interface {
	SaveTask(ctx context.Context, tk task.Task) error
	GetTask(ctx context.Context, taskID string) (*task.Task, error)
	UpdateTaskStatus(ctx context.Context, taskID string, status task.Status) error
	SaveTimetable(ctx context.Context, robotID string, dispatchableMakespan float64, taskOrder []string) error
	ArchiveTimetable(ctx context.Context, robotID string) error
}

// Postgres is a lib/pq-backed Store.
type Postgres struct {
	db *sql.DB
}

// Open dials dsn and pings it, the way the teacher's database.NewManager
// does, returning *errors.AllocationError{Kind: PersistenceUnavailable} on
// failure so callers can treat it as the warning-only condition spec.md §6
// requires rather than a fatal startup error.
func Open(dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, coreerrors.PersistenceUnavailable(err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, coreerrors.PersistenceUnavailable(err)
	}

	return &Postgres{db: db}, nil
}

// Close releases the underlying connection pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}

// taskRow is the JSON-encodable request+constraints payload stored
// alongside each task's scalar columns, avoiding a constraint-list join
// table for what is, per task, a handful of fixed named entries.
type taskRow struct {
	Request     task.TransportationRequest `json:"request"`
	Constraints task.TemporalConstraints   `json:"constraints"`
}

// SaveTask upserts a task row with INSERT ... ON CONFLICT DO UPDATE, after
// the teacher's CreateUser/CreateModel idiom. It returns no row data.
func (p *Postgres) SaveTask(ctx context.Context, tk task.Task) error {
	payload, err := json.Marshal(taskRow{Request: tk.Request, Constraints: tk.Constraints})
	if err != nil {
		return fmt.Errorf("marshalling task payload: %w", err)
	}

	query := `
		INSERT INTO tasks (id, status, payload, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status, payload = EXCLUDED.payload, updated_at = now()`

	if _, err := p.db.ExecContext(ctx, query, tk.ID, string(tk.Status), payload); err != nil {
		return fmt.Errorf("saving task %s: %w", tk.ID, err)
	}
	return nil
}

// GetTask retrieves a task by id.
func (p *Postgres) GetTask(ctx context.Context, taskID string) (*task.Task, error) {
	var status string
	var payload []byte

	query := `SELECT status, payload FROM tasks WHERE id = $1`
	err := p.db.QueryRowContext(ctx, query, taskID).Scan(&status, &payload)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("task %s not found", taskID)
	}
	if err != nil {
		return nil, fmt.Errorf("getting task %s: %w", taskID, err)
	}

	var row taskRow
	if err := json.Unmarshal(payload, &row); err != nil {
		return nil, fmt.Errorf("unmarshalling task %s payload: %w", taskID, err)
	}

	return &task.Task{
		ID:          taskID,
		Request:     row.Request,
		Constraints: row.Constraints,
		Status:      task.Status(status),
	}, nil
}

// UpdateTaskStatus moves a task through its lifecycle (SPEC_FULL.md §12's
// supplemented status enum).
func (p *Postgres) UpdateTaskStatus(ctx context.Context, taskID string, status task.Status) error {
	query := `UPDATE tasks SET status = $1, updated_at = now() WHERE id = $2`
	res, err := p.db.ExecContext(ctx, query, string(status), taskID)
	if err != nil {
		return fmt.Errorf("updating status for task %s: %w", taskID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result for task %s: %w", taskID, err)
	}
	if n == 0 {
		return fmt.Errorf("task %s not found", taskID)
	}
	return nil
}

// SaveTimetable records a robot's current dispatchable-graph makespan and
// task ordering, as a durability checkpoint (spec.md §6 names persistence
// as a collaborator without prescribing its schema).
func (p *Postgres) SaveTimetable(ctx context.Context, robotID string, dispatchableMakespan float64, taskOrder []string) error {
	orderJSON, err := json.Marshal(taskOrder)
	if err != nil {
		return fmt.Errorf("marshalling task order for robot %s: %w", robotID, err)
	}

	query := `
		INSERT INTO timetables (robot_id, makespan, task_order, archived, updated_at)
		VALUES ($1, $2, $3, false, now())
		ON CONFLICT (robot_id) DO UPDATE
		SET makespan = EXCLUDED.makespan, task_order = EXCLUDED.task_order, archived = false, updated_at = now()`

	if _, err := p.db.ExecContext(ctx, query, robotID, dispatchableMakespan, orderJSON); err != nil {
		return fmt.Errorf("saving timetable for robot %s: %w", robotID, err)
	}
	return nil
}

// ArchiveTimetable marks a robot's timetable row archived rather than
// deleting it, preserving the audit trail the way the teacher's
// MigrationsComplete-style bookkeeping tables do.
func (p *Postgres) ArchiveTimetable(ctx context.Context, robotID string) error {
	query := `UPDATE timetables SET archived = true, updated_at = now() WHERE robot_id = $1`
	if _, err := p.db.ExecContext(ctx, query, robotID); err != nil {
		return fmt.Errorf("archiving timetable for robot %s: %w", robotID, err)
	}
	return nil
}

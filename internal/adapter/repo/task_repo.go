package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"videocreator/internal/domain"
	"videocreator/internal/task"
)

// TaskRepositoryPG implements task.Store on PostgreSQL, giving task history
// durability across restarts. Input, params, and error payloads are stored
// as JSON columns; the lifecycle columns stay relational so they can be
// queried directly.
type TaskRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewTaskRepository creates a new task repository backed by PostgreSQL.
func NewTaskRepository(pool *pgxpool.Pool) *TaskRepositoryPG {
	return &TaskRepositoryPG{pool: pool}
}

// Create inserts a new task record.
func (r *TaskRepositoryPG) Create(ctx context.Context, t *domain.Task) error {
	input, err := json.Marshal(t.Input)
	if err != nil {
		return fmt.Errorf("encode input: %w", err)
	}
	params, err := json.Marshal(t.Params)
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}
	query := `
INSERT INTO tasks (id, mode, state, input_json, params_json, created_at)
VALUES ($1, $2, $3, $4, $5, $6);
`
	_, err = r.pool.Exec(ctx, query, t.ID, t.Mode, t.State, input, params, t.CreatedAt)
	return err
}

// Get fetches a task snapshot by id.
func (r *TaskRepositoryPG) Get(ctx context.Context, id string) (*domain.Task, error) {
	row := r.pool.QueryRow(ctx, selectTask+` WHERE id = $1;`, id)
	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

// Update applies the mutator to the current row under a row lock and writes
// the result back, preserving the single-writer transition discipline when
// several processes share the database.
func (r *TaskRepositoryPG) Update(ctx context.Context, id string, mutate func(*domain.Task) error) (*domain.Task, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, selectTask+` WHERE id = $1 FOR UPDATE;`, id)
	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if err := mutate(t); err != nil {
		return nil, err
	}

	var errJSON []byte
	if t.Error != nil {
		if errJSON, err = json.Marshal(t.Error); err != nil {
			return nil, fmt.Errorf("encode error: %w", err)
		}
	}
	query := `
UPDATE tasks
SET state = $2,
    progress = $3,
    enhanced_prompt = $4,
    remote_job_ref = $5,
    result_ref = $6,
    error_json = $7,
    submitted_at = $8,
    completed_at = $9
WHERE id = $1;
`
	if _, err := tx.Exec(ctx, query,
		t.ID,
		t.State,
		nullableString(t.Progress),
		nullableString(t.EnhancedPrompt),
		nullableString(t.RemoteJobRef),
		nullableString(t.ResultRef),
		errJSON,
		nullableTime(t.SubmittedAt),
		nullableTime(t.CompletedAt),
	); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return t, nil
}

// List returns all task snapshots, newest first.
func (r *TaskRepositoryPG) List(ctx context.Context) ([]*domain.Task, error) {
	rows, err := r.pool.Query(ctx, selectTask+` ORDER BY created_at DESC;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

const selectTask = `
SELECT id, mode, state, progress, input_json, params_json, enhanced_prompt, remote_job_ref, result_ref, error_json, created_at, submitted_at, completed_at
FROM tasks`

func scanTask(row pgx.Row) (*domain.Task, error) {
	var (
		t                                     domain.Task
		input, params, errJSON                []byte
		progress, enhanced, jobRef, resultRef *string
		submittedAt, completedAt              *time.Time
	)
	if err := row.Scan(
		&t.ID, &t.Mode, &t.State, &progress, &input, &params,
		&enhanced, &jobRef, &resultRef, &errJSON,
		&t.CreatedAt, &submittedAt, &completedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(input, &t.Input); err != nil {
		return nil, fmt.Errorf("decode input: %w", err)
	}
	if err := json.Unmarshal(params, &t.Params); err != nil {
		return nil, fmt.Errorf("decode params: %w", err)
	}
	if len(errJSON) > 0 {
		t.Error = &domain.TaskError{}
		if err := json.Unmarshal(errJSON, t.Error); err != nil {
			return nil, fmt.Errorf("decode error: %w", err)
		}
	}
	t.Progress = deref(progress)
	t.EnhancedPrompt = deref(enhanced)
	t.RemoteJobRef = deref(jobRef)
	t.ResultRef = deref(resultRef)
	if submittedAt != nil {
		t.SubmittedAt = *submittedAt
	}
	if completedAt != nil {
		t.CompletedAt = *completedAt
	}
	return &t, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

var _ task.Store = (*TaskRepositoryPG)(nil)

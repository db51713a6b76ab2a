package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/edvin/deployhub/internal/model"
)

type ExecutionService struct {
	db DB
}

func NewExecutionService(db DB) *ExecutionService {
	return &ExecutionService{db: db}
}

const executionColumns = `id, instance_id, operation, state, started_at, completed_at,
	duration_seconds, backend_job_id, backend_job_url, logs, config,
	from_version, to_version, result, error_message, rollback_of_id,
	actor, trigger_type, created_at`

func (s *ExecutionService) Create(ctx context.Context, exec *model.Execution) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO executions (id, instance_id, operation, state, started_at, completed_at,
		 duration_seconds, backend_job_id, backend_job_url, logs, config,
		 from_version, to_version, result, error_message, rollback_of_id,
		 actor, trigger_type, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		exec.ID, exec.InstanceID, exec.Operation, exec.State, exec.StartedAt, exec.CompletedAt,
		exec.DurationSeconds, exec.BackendJobID, exec.BackendJobURL, exec.Logs, exec.Config,
		exec.FromVersion, exec.ToVersion, exec.Result, exec.ErrorMessage, exec.RollbackOfID,
		exec.Actor, exec.TriggerType, exec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert execution: %w", err)
	}
	return nil
}

func (s *ExecutionService) scanRow(row pgx.Row) (*model.Execution, error) {
	var e model.Execution
	err := row.Scan(&e.ID, &e.InstanceID, &e.Operation, &e.State, &e.StartedAt, &e.CompletedAt,
		&e.DurationSeconds, &e.BackendJobID, &e.BackendJobURL, &e.Logs, &e.Config,
		&e.FromVersion, &e.ToVersion, &e.Result, &e.ErrorMessage, &e.RollbackOfID,
		&e.Actor, &e.TriggerType, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

// GetByID returns the execution or nil when no such execution exists.
func (s *ExecutionService) GetByID(ctx context.Context, id string) (*model.Execution, error) {
	exec, err := s.scanRow(s.db.QueryRow(ctx,
		`SELECT `+executionColumns+` FROM executions WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get execution %s: %w", id, err)
	}
	return exec, nil
}

// Finish completes a running execution. duration_seconds is computed from
// started_at in the database so clock skew between processes never produces
// negative durations.
type FinishParams struct {
	State         string
	Result        string
	ErrorMessage  *string
	Logs          *string
	BackendJobID  *string
	BackendJobURL *string
}

func (s *ExecutionService) Finish(ctx context.Context, id string, p FinishParams) error {
	_, err := s.db.Exec(ctx,
		`UPDATE executions SET state = $1, result = $2, error_message = $3, logs = $4,
		 backend_job_id = COALESCE($5, backend_job_id), backend_job_url = COALESCE($6, backend_job_url),
		 completed_at = now(), duration_seconds = EXTRACT(EPOCH FROM (now() - started_at))
		 WHERE id = $7 AND completed_at IS NULL`,
		p.State, p.Result, p.ErrorMessage, p.Logs, p.BackendJobID, p.BackendJobURL, id,
	)
	if err != nil {
		return fmt.Errorf("finish execution %s: %w", id, err)
	}
	return nil
}

// RunningByInstance returns the instance's in-flight execution, or nil when
// none is running. This is the durable half of the one-execution-per-instance
// guard.
func (s *ExecutionService) RunningByInstance(ctx context.Context, instanceID string) (*model.Execution, error) {
	exec, err := s.scanRow(s.db.QueryRow(ctx,
		`SELECT `+executionColumns+` FROM executions
		 WHERE instance_id = $1 AND state = $2
		 ORDER BY created_at DESC LIMIT 1`,
		instanceID, model.ExecutionRunning))
	if err != nil {
		return nil, fmt.Errorf("get running execution for instance %s: %w", instanceID, err)
	}
	return exec, nil
}

// LastSuccessfulAtVersion returns the most recent succeeded provision or
// upgrade execution whose to_version matches, or nil. Used to find a rollback
// target.
func (s *ExecutionService) LastSuccessfulAtVersion(ctx context.Context, instanceID, version string) (*model.Execution, error) {
	exec, err := s.scanRow(s.db.QueryRow(ctx,
		`SELECT `+executionColumns+` FROM executions
		 WHERE instance_id = $1 AND to_version = $2 AND state = $3
		 AND operation IN ($4, $5, $6)
		 ORDER BY created_at DESC LIMIT 1`,
		instanceID, version, model.ExecutionSucceeded,
		model.OpProvision, model.OpUpgrade, model.OpRollback))
	if err != nil {
		return nil, fmt.Errorf("get last successful execution at %s for instance %s: %w", version, instanceID, err)
	}
	return exec, nil
}

// ListByInstance returns the instance's execution history, newest first,
// cursor-paginated over created_at via the execution ID.
func (s *ExecutionService) ListByInstance(ctx context.Context, instanceID string, limit int, cursor string) ([]model.Execution, bool, error) {
	query := `SELECT ` + executionColumns + ` FROM executions WHERE instance_id = $1`
	args := []any{instanceID}
	argIdx := 2

	if cursor != "" {
		query += fmt.Sprintf(` AND created_at < (SELECT created_at FROM executions WHERE id = $%d)`, argIdx)
		args = append(args, cursor)
		argIdx++
	}

	query += ` ORDER BY created_at DESC`
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit+1)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("list executions for instance %s: %w", instanceID, err)
	}
	defer rows.Close()

	var executions []model.Execution
	for rows.Next() {
		var e model.Execution
		if err := rows.Scan(&e.ID, &e.InstanceID, &e.Operation, &e.State, &e.StartedAt, &e.CompletedAt,
			&e.DurationSeconds, &e.BackendJobID, &e.BackendJobURL, &e.Logs, &e.Config,
			&e.FromVersion, &e.ToVersion, &e.Result, &e.ErrorMessage, &e.RollbackOfID,
			&e.Actor, &e.TriggerType, &e.CreatedAt); err != nil {
			return nil, false, fmt.Errorf("scan execution: %w", err)
		}
		executions = append(executions, e)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate executions: %w", err)
	}

	hasMore := len(executions) > limit
	if hasMore {
		executions = executions[:limit]
	}
	return executions, hasMore, nil
}

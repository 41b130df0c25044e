package schedule

import (
	"database/sql"
	"time"

	"github.com/teranos/dawn/errors"
)

// ExecutionStore handles persistence of payload execution history
type ExecutionStore struct {
	db *sql.DB
}

// NewExecutionStore creates a new execution store
func NewExecutionStore(db *sql.DB) *ExecutionStore {
	return &ExecutionStore{db: db}
}

const executionColumns = `
		id, job_label, trigger_source, status, trigger_date,
		started_at, completed_at, duration_ms,
		exit_code, output_preview, error_message,
		created_at, updated_at`

// nullable converts an optional field to a driver value
func nullable[T any](v *T) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

// CreateExecution creates a new execution record
func (s *ExecutionStore) CreateExecution(exec *Execution) error {
	query := `INSERT INTO executions (` + executionColumns + `
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.Exec(query,
		exec.ID,
		exec.JobLabel,
		exec.Trigger,
		exec.Status,
		exec.TriggerDate,
		exec.StartedAt,
		nullable(exec.CompletedAt),
		nullable(exec.DurationMs),
		nullable(exec.ExitCode),
		nullable(exec.OutputPreview),
		nullable(exec.ErrorMessage),
		exec.CreatedAt,
		exec.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to create execution")
	}

	return nil
}

// UpdateExecution updates an existing execution record
func (s *ExecutionStore) UpdateExecution(exec *Execution) error {
	query := `
		UPDATE executions
		SET status = ?,
		    completed_at = ?,
		    duration_ms = ?,
		    exit_code = ?,
		    output_preview = ?,
		    error_message = ?,
		    updated_at = ?
		WHERE id = ?
	`

	result, err := s.db.Exec(query,
		exec.Status,
		nullable(exec.CompletedAt),
		nullable(exec.DurationMs),
		nullable(exec.ExitCode),
		nullable(exec.OutputPreview),
		nullable(exec.ErrorMessage),
		exec.UpdatedAt,
		exec.ID,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update execution")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to check rows affected")
	}

	if rowsAffected == 0 {
		return errors.Newf("execution not found: %s", exec.ID)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanExecution(row rowScanner) (*Execution, error) {
	var exec Execution
	var completedAt, outputPreview, errorMessage sql.NullString
	var durationMs, exitCode sql.NullInt64

	err := row.Scan(
		&exec.ID,
		&exec.JobLabel,
		&exec.Trigger,
		&exec.Status,
		&exec.TriggerDate,
		&exec.StartedAt,
		&completedAt,
		&durationMs,
		&exitCode,
		&outputPreview,
		&errorMessage,
		&exec.CreatedAt,
		&exec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	// Convert sql.Null* types to pointers
	if completedAt.Valid {
		exec.CompletedAt = &completedAt.String
	}
	if durationMs.Valid {
		duration := int(durationMs.Int64)
		exec.DurationMs = &duration
	}
	if exitCode.Valid {
		code := int(exitCode.Int64)
		exec.ExitCode = &code
	}
	if outputPreview.Valid {
		exec.OutputPreview = &outputPreview.String
	}
	if errorMessage.Valid {
		exec.ErrorMessage = &errorMessage.String
	}

	return &exec, nil
}

// GetExecution retrieves an execution by ID
func (s *ExecutionStore) GetExecution(id string) (*Execution, error) {
	query := `SELECT ` + executionColumns + ` FROM executions WHERE id = ?`

	exec, err := scanExecution(s.db.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.Newf("execution not found: %s", id)
		}
		return nil, errors.Wrap(err, "failed to get execution")
	}
	return exec, nil
}

// ListExecutions retrieves executions for a job label, newest first, with
// pagination and an optional status filter. Returns the page and the total count.
func (s *ExecutionStore) ListExecutions(jobLabel string, limit, offset int, statusFilter string) ([]*Execution, int, error) {
	baseQuery := `
		FROM executions
		WHERE job_label = ?
	`
	args := []interface{}{jobLabel}

	if statusFilter != "" {
		baseQuery += " AND status = ?"
		args = append(args, statusFilter)
	}

	var total int
	if err := s.db.QueryRow("SELECT COUNT(*)"+baseQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count executions")
	}

	query := `SELECT ` + executionColumns + baseQuery + `
		ORDER BY started_at DESC
		LIMIT ? OFFSET ?
	`
	args = append(args, limit, offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list executions")
	}
	defer rows.Close()

	var executions []*Execution
	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, 0, errors.Wrap(err, "failed to scan execution")
		}
		executions = append(executions, exec)
	}

	if err = rows.Err(); err != nil {
		return nil, 0, errors.Wrap(err, "error iterating executions")
	}

	return executions, total, nil
}

// LastExecution returns the most recent execution for a job, or nil if none.
func (s *ExecutionStore) LastExecution(jobLabel string) (*Execution, error) {
	executions, _, err := s.ListExecutions(jobLabel, 1, 0, "")
	if err != nil {
		return nil, err
	}
	if len(executions) == 0 {
		return nil, nil
	}
	return executions[0], nil
}

// LastTriggerDate returns the latest date the schedule fired for a job
// ("" if it never has). Manual runs do not count.
func (s *ExecutionStore) LastTriggerDate(jobLabel string) (string, error) {
	var date sql.NullString
	err := s.db.QueryRow(
		`SELECT MAX(trigger_date) FROM executions WHERE job_label = ? AND trigger_source = ?`,
		jobLabel, TriggerSchedule,
	).Scan(&date)
	if err != nil {
		return "", errors.Wrap(err, "failed to read last trigger date")
	}
	return date.String, nil
}

// CleanupOldExecutions deletes execution records older than the retention period.
// Returns the number of executions deleted.
func (s *ExecutionStore) CleanupOldExecutions(retentionDays int) (int, error) {
	cutoffTime := time.Now().AddDate(0, 0, -retentionDays).Format(time.RFC3339)

	result, err := s.db.Exec(`DELETE FROM executions WHERE started_at < ?`, cutoffTime)
	if err != nil {
		return 0, errors.Wrap(err, "failed to cleanup old executions")
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to get rows affected")
	}

	return int(deleted), nil
}

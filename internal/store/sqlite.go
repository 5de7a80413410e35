package store

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // sqlite driver

	"github.com/voyagerhq/voyager/internal/constants"
	"github.com/voyagerhq/voyager/internal/domain"
	voyagererrors "github.com/voyagerhq/voyager/internal/errors"
)

// SQLiteDatabase implements Database on a single SQLite file in WAL mode.
type SQLiteDatabase struct {
	db *sql.DB
}

// Compile-time interface check.
var _ Database = (*SQLiteDatabase)(nil)

// Open opens (creating if needed) the database at path, configures pragmas
// for WAL-mode concurrent access and applies pending migrations.
func Open(path string) (*SQLiteDatabase, error) {
	db, err := sql.Open("sqlite", normalizeDSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single-writer engine scale; WAL still allows concurrent readers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA journal_mode=WAL",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(context.Background(), pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteDatabase{db: db}, nil
}

// Close runs PRAGMA optimize then closes the connection.
func (s *SQLiteDatabase) Close() error {
	_, _ = s.db.ExecContext(context.Background(), "PRAGMA optimize")
	return s.db.Close()
}

// normalizeDSN builds a writeable file URI with immediate transactions.
// In-memory DSNs (tests) are passed through with a shared cache.
func normalizeDSN(path string) string {
	if path == ":memory:" {
		return "file::memory:?cache=shared"
	}
	return "file:" + path + "?mode=rwc&_txlock=immediate"
}

// CreateTask persists a new task and returns the stored copy.
func (s *SQLiteDatabase) CreateTask(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	now := time.Now().UTC()
	task.CreatedAt = now
	task.ModifiedAt = now

	navigationPayload, err := marshalJSON(task.NavigationPayload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode navigation payload: %w", err)
	}
	schema, err := marshalJSON(task.ExtractedInformationSchema)
	if err != nil {
		return nil, fmt.Errorf("failed to encode extraction schema: %w", err)
	}
	errorCodeMapping, err := marshalJSON(task.ErrorCodeMapping)
	if err != nil {
		return nil, fmt.Errorf("failed to encode error code mapping: %w", err)
	}
	taskErrors, err := marshalJSON(task.Errors)
	if err != nil {
		return nil, fmt.Errorf("failed to encode task errors: %w", err)
	}

	err = retryWithBackoff(ctx, func() error {
		_, execErr := s.db.ExecContext(ctx, `
			INSERT INTO tasks (
				task_id, organization_id, workflow_run_id, status, url, title,
				navigation_goal, data_extraction_goal, navigation_payload,
				extracted_information_schema, error_code_mapping, proxy_location,
				webhook_callback_url, extracted_information, failure_reason,
				errors, created_at, modified_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, '', ?, ?, ?)
		`, task.ID, task.OrganizationID, task.WorkflowRunID, task.Status, task.URL,
			task.Title, task.NavigationGoal, task.DataExtractionGoal,
			navigationPayload, schema, errorCodeMapping, task.ProxyLocation,
			task.WebhookCallbackURL, taskErrors, task.CreatedAt, task.ModifiedAt)
		return execErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create task %s: %w", task.ID, err)
	}
	return s.GetTask(ctx, task.ID, task.OrganizationID)
}

// GetTask returns a task by id, or ErrTaskNotFound.
func (s *SQLiteDatabase) GetTask(ctx context.Context, taskID, organizationID string) (*domain.Task, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT task_id, organization_id, workflow_run_id, status, url, title,
		       navigation_goal, data_extraction_goal, navigation_payload,
		       extracted_information_schema, error_code_mapping, proxy_location,
		       webhook_callback_url, extracted_information, failure_reason,
		       errors, created_at, modified_at
		FROM tasks WHERE task_id = ? AND organization_id = ?
	`, taskID, organizationID)
	task, err := scanTask(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", taskID, voyagererrors.ErrTaskNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task %s: %w", taskID, err)
	}
	return task, nil
}

// UpdateTask applies the update and returns the stored copy. Transition
// validation is the caller's responsibility (see engine.Recorder).
func (s *SQLiteDatabase) UpdateTask(ctx context.Context, taskID, organizationID string, updates TaskUpdate) (*domain.Task, error) {
	setClauses := []string{"modified_at = ?"}
	args := []any{time.Now().UTC()}

	if updates.Status != nil {
		setClauses = append(setClauses, "status = ?")
		args = append(args, *updates.Status)
	}
	if updates.ExtractedInformation != nil {
		encoded, err := marshalJSON(updates.ExtractedInformation)
		if err != nil {
			return nil, fmt.Errorf("failed to encode extracted information: %w", err)
		}
		setClauses = append(setClauses, "extracted_information = ?")
		args = append(args, encoded)
	}
	if updates.FailureReason != nil {
		setClauses = append(setClauses, "failure_reason = ?")
		args = append(args, *updates.FailureReason)
	}
	if updates.Errors != nil {
		encoded, err := marshalJSON(updates.Errors)
		if err != nil {
			return nil, fmt.Errorf("failed to encode task errors: %w", err)
		}
		setClauses = append(setClauses, "errors = ?")
		args = append(args, encoded)
	}

	query := "UPDATE tasks SET " + joinClauses(setClauses) + " WHERE task_id = ? AND organization_id = ?"
	args = append(args, taskID, organizationID)

	err := retryWithBackoff(ctx, func() error {
		result, execErr := s.db.ExecContext(ctx, query, args...)
		if execErr != nil {
			return execErr
		}
		affected, execErr := result.RowsAffected()
		if execErr != nil {
			return execErr
		}
		if affected == 0 {
			return fmt.Errorf("task %s: %w", taskID, voyagererrors.ErrTaskNotFound)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetTask(ctx, taskID, organizationID)
}

// CreateStep persists a new created step at (order, retryIndex).
func (s *SQLiteDatabase) CreateStep(ctx context.Context, taskID, organizationID string, order, retryIndex int) (*domain.Step, error) {
	now := time.Now().UTC()
	step := &domain.Step{
		ID:             domain.NewStepID(),
		TaskID:         taskID,
		OrganizationID: organizationID,
		Status:         constants.StepStatusCreated,
		Order:          order,
		RetryIndex:     retryIndex,
		CreatedAt:      now,
		ModifiedAt:     now,
	}

	err := retryWithBackoff(ctx, func() error {
		_, execErr := s.db.ExecContext(ctx, `
			INSERT INTO steps (
				step_id, task_id, organization_id, status, step_order,
				retry_index, is_last, output, created_at, modified_at
			) VALUES (?, ?, ?, ?, ?, ?, 0, NULL, ?, ?)
		`, step.ID, step.TaskID, step.OrganizationID, step.Status, step.Order,
			step.RetryIndex, step.CreatedAt, step.ModifiedAt)
		return execErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create step (task %s, order %d, retry %d): %w",
			taskID, order, retryIndex, err)
	}
	return step, nil
}

// GetStep returns a step by id, or ErrStepNotFound.
func (s *SQLiteDatabase) GetStep(ctx context.Context, taskID, stepID, organizationID string) (*domain.Step, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT step_id, task_id, organization_id, status, step_order,
		       retry_index, is_last, output, created_at, modified_at
		FROM steps WHERE step_id = ? AND task_id = ? AND organization_id = ?
	`, stepID, taskID, organizationID)
	step, err := scanStep(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("step %s: %w", stepID, voyagererrors.ErrStepNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get step %s: %w", stepID, err)
	}
	return step, nil
}

// GetTaskSteps returns all steps of a task in ascending (order, retry_index).
func (s *SQLiteDatabase) GetTaskSteps(ctx context.Context, taskID, organizationID string) ([]*domain.Step, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT step_id, task_id, organization_id, status, step_order,
		       retry_index, is_last, output, created_at, modified_at
		FROM steps WHERE task_id = ? AND organization_id = ?
		ORDER BY step_order ASC, retry_index ASC
	`, taskID, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list steps for task %s: %w", taskID, err)
	}
	defer func() { _ = rows.Close() }()

	var steps []*domain.Step
	for rows.Next() {
		step, scanErr := scanStep(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan step row: %w", scanErr)
		}
		steps = append(steps, step)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate step rows: %w", err)
	}
	return steps, nil
}

// UpdateStep applies the update and returns the stored copy.
func (s *SQLiteDatabase) UpdateStep(ctx context.Context, taskID, stepID, organizationID string, updates StepUpdate) (*domain.Step, error) {
	setClauses := []string{"modified_at = ?"}
	args := []any{time.Now().UTC()}

	if updates.Status != nil {
		setClauses = append(setClauses, "status = ?")
		args = append(args, *updates.Status)
	}
	if updates.Output != nil {
		encoded, err := marshalJSON(updates.Output)
		if err != nil {
			return nil, fmt.Errorf("failed to encode step output: %w", err)
		}
		setClauses = append(setClauses, "output = ?")
		args = append(args, encoded)
	}
	if updates.IsLast != nil {
		setClauses = append(setClauses, "is_last = ?")
		args = append(args, boolToInt(*updates.IsLast))
	}
	if updates.RetryIndex != nil {
		setClauses = append(setClauses, "retry_index = ?")
		args = append(args, *updates.RetryIndex)
	}

	query := "UPDATE steps SET " + joinClauses(setClauses) +
		" WHERE step_id = ? AND task_id = ? AND organization_id = ?"
	args = append(args, stepID, taskID, organizationID)

	err := retryWithBackoff(ctx, func() error {
		result, execErr := s.db.ExecContext(ctx, query, args...)
		if execErr != nil {
			return execErr
		}
		affected, execErr := result.RowsAffected()
		if execErr != nil {
			return execErr
		}
		if affected == 0 {
			return fmt.Errorf("step %s: %w", stepID, voyagererrors.ErrStepNotFound)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetStep(ctx, taskID, stepID, organizationID)
}

// CreateArtifact persists an artifact record.
func (s *SQLiteDatabase) CreateArtifact(ctx context.Context, artifact *domain.Artifact) (*domain.Artifact, error) {
	now := time.Now().UTC()
	artifact.CreatedAt = now
	artifact.ModifiedAt = now

	err := retryWithBackoff(ctx, func() error {
		_, execErr := s.db.ExecContext(ctx, `
			INSERT INTO artifacts (
				artifact_id, task_id, step_id, organization_id,
				artifact_type, uri, created_at, modified_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, artifact.ID, artifact.TaskID, artifact.StepID, artifact.OrganizationID,
			artifact.Type, artifact.URI, artifact.CreatedAt, artifact.ModifiedAt)
		return execErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create artifact %s: %w", artifact.ID, err)
	}
	return artifact, nil
}

// UpdateArtifactURI records the durable location of an uploaded artifact.
func (s *SQLiteDatabase) UpdateArtifactURI(ctx context.Context, artifactID, organizationID, uri string) error {
	return retryWithBackoff(ctx, func() error {
		result, execErr := s.db.ExecContext(ctx, `
			UPDATE artifacts SET uri = ?, modified_at = ?
			WHERE artifact_id = ? AND organization_id = ?
		`, uri, time.Now().UTC(), artifactID, organizationID)
		if execErr != nil {
			return execErr
		}
		affected, execErr := result.RowsAffected()
		if execErr != nil {
			return execErr
		}
		if affected == 0 {
			return fmt.Errorf("artifact %s: %w", artifactID, voyagererrors.ErrArtifactNotFound)
		}
		return nil
	})
}

// GetArtifact returns the newest artifact of the given type for a
// (task, step) pair, or ErrArtifactNotFound.
func (s *SQLiteDatabase) GetArtifact(ctx context.Context, taskID, stepID, organizationID string, artifactType constants.ArtifactType) (*domain.Artifact, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT artifact_id, task_id, step_id, organization_id,
		       artifact_type, uri, created_at, modified_at
		FROM artifacts
		WHERE task_id = ? AND step_id = ? AND organization_id = ? AND artifact_type = ?
		ORDER BY created_at DESC LIMIT 1
	`, taskID, stepID, organizationID, artifactType)

	var artifact domain.Artifact
	err := row.Scan(&artifact.ID, &artifact.TaskID, &artifact.StepID,
		&artifact.OrganizationID, &artifact.Type, &artifact.URI,
		&artifact.CreatedAt, &artifact.ModifiedAt)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("artifact %s for step %s: %w",
			artifactType, stepID, voyagererrors.ErrArtifactNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get artifact: %w", err)
	}
	return &artifact, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for the scan helpers.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanTask decodes one task row including its JSON columns.
func scanTask(row rowScanner) (*domain.Task, error) {
	var task domain.Task
	var navigationPayload, schema, errorCodeMapping, extracted, taskErrors sql.NullString

	err := row.Scan(&task.ID, &task.OrganizationID, &task.WorkflowRunID,
		&task.Status, &task.URL, &task.Title, &task.NavigationGoal,
		&task.DataExtractionGoal, &navigationPayload, &schema,
		&errorCodeMapping, &task.ProxyLocation, &task.WebhookCallbackURL,
		&extracted, &task.FailureReason, &taskErrors,
		&task.CreatedAt, &task.ModifiedAt)
	if err != nil {
		return nil, err
	}

	if err := unmarshalJSON(navigationPayload, &task.NavigationPayload); err != nil {
		return nil, fmt.Errorf("failed to decode navigation payload: %w", err)
	}
	if err := unmarshalJSON(schema, &task.ExtractedInformationSchema); err != nil {
		return nil, fmt.Errorf("failed to decode extraction schema: %w", err)
	}
	if err := unmarshalJSON(errorCodeMapping, &task.ErrorCodeMapping); err != nil {
		return nil, fmt.Errorf("failed to decode error code mapping: %w", err)
	}
	if err := unmarshalJSON(extracted, &task.ExtractedInformation); err != nil {
		return nil, fmt.Errorf("failed to decode extracted information: %w", err)
	}
	if err := unmarshalJSON(taskErrors, &task.Errors); err != nil {
		return nil, fmt.Errorf("failed to decode task errors: %w", err)
	}
	return &task, nil
}

// scanStep decodes one step row including the JSON output column.
func scanStep(row rowScanner) (*domain.Step, error) {
	var step domain.Step
	var isLast int
	var output sql.NullString

	err := row.Scan(&step.ID, &step.TaskID, &step.OrganizationID, &step.Status,
		&step.Order, &step.RetryIndex, &isLast, &output,
		&step.CreatedAt, &step.ModifiedAt)
	if err != nil {
		return nil, err
	}
	step.IsLast = isLast != 0

	if output.Valid && output.String != "" {
		var decoded domain.AgentStepOutput
		if err := json.Unmarshal([]byte(output.String), &decoded); err != nil {
			return nil, fmt.Errorf("failed to decode step output: %w", err)
		}
		step.Output = &decoded
	}
	return &step, nil
}

// marshalJSON encodes a value as a nullable JSON column.
func marshalJSON(value any) (sql.NullString, error) {
	if value == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// unmarshalJSON decodes a nullable JSON column into target. A NULL or empty
// column leaves the target untouched.
func unmarshalJSON(column sql.NullString, target any) error {
	if !column.Valid || column.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(column.String), target)
}

// joinClauses joins SET clauses with commas.
func joinClauses(clauses []string) string {
	out := ""
	for i, clause := range clauses {
		if i > 0 {
			out += ", "
		}
		out += clause
	}
	return out
}

// boolToInt converts a bool to the 0/1 SQLite representation.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

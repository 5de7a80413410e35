package engine

import (
	"context"
	"reflect"

	"github.com/rs/zerolog"

	"github.com/voyagerhq/voyager/internal/domain"
	"github.com/voyagerhq/voyager/internal/store"
)

// Recorder persists Step and Task mutations. Fields that do not actually
// change are pruned first (an all-unchanged update is a no-op with an empty
// diff log), the remaining mutation is validated against the state
// machines, and a structured {field: {old, new}} diff is logged before the
// write.
type Recorder struct {
	db     store.Database
	logger zerolog.Logger
}

// NewRecorder creates a recorder over the database.
func NewRecorder(db store.Database, logger zerolog.Logger) *Recorder {
	return &Recorder{db: db, logger: logger}
}

// fieldDiff is one entry of the structured update log.
type fieldDiff struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// UpdateStep applies a step mutation, returning the stored copy. Invalid
// transitions fail with ErrInvalidStepTransition before anything is
// written.
func (r *Recorder) UpdateStep(ctx context.Context, step *domain.Step, updates store.StepUpdate) (*domain.Step, error) {
	diff := make(map[string]fieldDiff)
	if updates.Status != nil && *updates.Status != step.Status {
		diff["status"] = fieldDiff{Old: step.Status, New: *updates.Status}
	} else {
		updates.Status = nil
	}
	if updates.Output != nil && !reflect.DeepEqual(updates.Output, step.Output) {
		diff["output"] = fieldDiff{Old: step.Output, New: updates.Output}
	} else {
		updates.Output = nil
	}
	if updates.IsLast != nil && *updates.IsLast != step.IsLast {
		diff["is_last"] = fieldDiff{Old: step.IsLast, New: *updates.IsLast}
	} else {
		updates.IsLast = nil
	}
	if updates.RetryIndex != nil && *updates.RetryIndex != step.RetryIndex {
		diff["retry_index"] = fieldDiff{Old: step.RetryIndex, New: *updates.RetryIndex}
	} else {
		updates.RetryIndex = nil
	}

	if err := step.ValidateUpdate(updates.Status, updates.Output, updates.IsLast); err != nil {
		return nil, err
	}

	r.logger.Info().
		Str("task_id", step.TaskID).
		Str("step_id", step.ID).
		Interface("diff", diff).
		Msg("updating step")

	if len(diff) == 0 {
		return step, nil
	}
	return r.db.UpdateStep(ctx, step.TaskID, step.ID, step.OrganizationID, updates)
}

// UpdateTask applies a task mutation, returning the stored copy. Invalid
// transitions fail with ErrInvalidTaskTransition before anything is
// written.
func (r *Recorder) UpdateTask(ctx context.Context, task *domain.Task, updates store.TaskUpdate) (*domain.Task, error) {
	diff := make(map[string]fieldDiff)
	if updates.Status != nil && *updates.Status != task.Status {
		diff["status"] = fieldDiff{Old: task.Status, New: *updates.Status}
	} else {
		updates.Status = nil
	}
	if updates.ExtractedInformation != nil && !reflect.DeepEqual(updates.ExtractedInformation, task.ExtractedInformation) {
		diff["extracted_information"] = fieldDiff{Old: task.ExtractedInformation, New: updates.ExtractedInformation}
	} else {
		updates.ExtractedInformation = nil
	}
	if updates.FailureReason != nil && *updates.FailureReason != task.FailureReason {
		diff["failure_reason"] = fieldDiff{Old: task.FailureReason, New: *updates.FailureReason}
	} else {
		updates.FailureReason = nil
	}
	if updates.Errors != nil && !reflect.DeepEqual(updates.Errors, task.Errors) {
		diff["errors"] = fieldDiff{Old: task.Errors, New: updates.Errors}
	} else {
		updates.Errors = nil
	}

	if len(diff) == 0 {
		r.logger.Info().
			Str("task_id", task.ID).
			Interface("diff", diff).
			Msg("updating task")
		return task, nil
	}

	if err := task.ValidateUpdate(updates.Status); err != nil {
		return nil, err
	}

	r.logger.Info().
		Str("task_id", task.ID).
		Interface("diff", diff).
		Msg("updating task")

	return r.db.UpdateTask(ctx, task.ID, task.OrganizationID, updates)
}

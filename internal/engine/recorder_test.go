package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyagerhq/voyager/internal/constants"
	"github.com/voyagerhq/voyager/internal/domain"
	voyagererrors "github.com/voyagerhq/voyager/internal/errors"
	"github.com/voyagerhq/voyager/internal/store"
)

func TestRecorderUpdateStep_WritesOnlyChanges(t *testing.T) {
	h := newTestHarness()
	ctx := context.Background()
	task, step, err := h.newRunningTask(ctx, &domain.TaskRequest{URL: "https://x"})
	require.NoError(t, err)
	_ = task

	running := constants.StepStatusRunning
	updated, err := h.agent.recorder.UpdateStep(ctx, step, store.StepUpdate{Status: &running})
	require.NoError(t, err)
	assert.Equal(t, constants.StepStatusRunning, updated.Status)
	assert.Equal(t, 1, h.db.stepWrites)
}

// TestRecorderUpdateStep_NoOp verifies an update in which no field changes
// produces no write.
func TestRecorderUpdateStep_NoOp(t *testing.T) {
	h := newTestHarness()
	ctx := context.Background()
	_, step, err := h.newRunningTask(ctx, &domain.TaskRequest{URL: "https://x"})
	require.NoError(t, err)

	// Same status and same retry index: empty diff, no write.
	created := constants.StepStatusCreated
	zero := 0
	same, err := h.agent.recorder.UpdateStep(ctx, step, store.StepUpdate{Status: &created, RetryIndex: &zero})
	require.NoError(t, err)
	assert.Equal(t, step.ID, same.ID)
	assert.Equal(t, 0, h.db.stepWrites)
}

func TestRecorderUpdateStep_InvalidTransitionNotWritten(t *testing.T) {
	h := newTestHarness()
	ctx := context.Background()
	task, step, err := h.newRunningTask(ctx, &domain.TaskRequest{URL: "https://x"})
	require.NoError(t, err)

	running := constants.StepStatusRunning
	step, err = h.agent.recorder.UpdateStep(ctx, step, store.StepUpdate{Status: &running})
	require.NoError(t, err)
	completed := constants.StepStatusCompleted
	step, err = h.agent.recorder.UpdateStep(ctx, step, store.StepUpdate{Status: &completed})
	require.NoError(t, err)
	writesBefore := h.db.stepWrites

	// A frozen step rejects both status and output mutations.
	_, err = h.agent.recorder.UpdateStep(ctx, step, store.StepUpdate{Status: &running})
	require.Error(t, err)
	assert.ErrorIs(t, err, voyagererrors.ErrInvalidStepTransition)
	_, err = h.agent.recorder.UpdateStep(ctx, step, store.StepUpdate{Output: &domain.AgentStepOutput{}})
	require.Error(t, err)
	assert.ErrorIs(t, err, voyagererrors.ErrInvalidStepTransition)

	assert.Equal(t, writesBefore, h.db.stepWrites, "rejected updates must not write")

	got, err := h.db.GetStep(ctx, task.ID, step.ID, task.OrganizationID)
	require.NoError(t, err)
	assert.Equal(t, constants.StepStatusCompleted, got.Status)
}

func TestRecorderUpdateTask_DiffOnlyChangedFields(t *testing.T) {
	h := newTestHarness()
	ctx := context.Background()
	task, _, err := h.newRunningTask(ctx, &domain.TaskRequest{URL: "https://x"})
	require.NoError(t, err)
	writesBefore := h.db.taskWrites

	// Identical status: no write.
	running := constants.TaskStatusRunning
	_, err = h.agent.recorder.UpdateTask(ctx, task, store.TaskUpdate{Status: &running})
	require.NoError(t, err)
	assert.Equal(t, writesBefore, h.db.taskWrites)

	completed := constants.TaskStatusCompleted
	updated, err := h.agent.recorder.UpdateTask(ctx, task, store.TaskUpdate{
		Status:               &completed,
		ExtractedInformation: map[string]any{"name": "Alice"},
	})
	require.NoError(t, err)
	assert.Equal(t, constants.TaskStatusCompleted, updated.Status)
	assert.Equal(t, writesBefore+1, h.db.taskWrites)
}

func TestRecorderUpdateTask_TerminalTaskRejected(t *testing.T) {
	h := newTestHarness()
	ctx := context.Background()
	task, _, err := h.newRunningTask(ctx, &domain.TaskRequest{URL: "https://x"})
	require.NoError(t, err)

	completed := constants.TaskStatusCompleted
	task, err = h.agent.recorder.UpdateTask(ctx, task, store.TaskUpdate{Status: &completed})
	require.NoError(t, err)

	running := constants.TaskStatusRunning
	_, err = h.agent.recorder.UpdateTask(ctx, task, store.TaskUpdate{Status: &running})
	require.Error(t, err)
	assert.ErrorIs(t, err, voyagererrors.ErrInvalidTaskTransition)
}

package engine

import (
	"context"
	"fmt"
	"math"

	"github.com/voyagerhq/voyager/internal/constants"
	"github.com/voyagerhq/voyager/internal/domain"
	"github.com/voyagerhq/voyager/internal/store"
)

// Decision is what a finished step implies for its task.
type Decision int

// Step policy decisions. Retry and Advance carry a next step; the terminal
// decisions carry the task's last step.
const (
	// DecisionRetry re-attempts the same step order with retry_index+1.
	DecisionRetry Decision = iota

	// DecisionAdvance moves on to the next step order.
	DecisionAdvance

	// DecisionTaskCompleted concludes the task: goal achieved.
	DecisionTaskCompleted

	// DecisionTaskTerminated concludes the task: agent gave up.
	DecisionTaskTerminated

	// DecisionTaskFailed concludes the task: budget exhausted or internal
	// error.
	DecisionTaskFailed
)

// String implements fmt.Stringer.
func (d Decision) String() string {
	switch d {
	case DecisionRetry:
		return "retry"
	case DecisionAdvance:
		return "advance"
	case DecisionTaskCompleted:
		return "task_completed"
	case DecisionTaskTerminated:
		return "task_terminated"
	case DecisionTaskFailed:
		return "task_failed"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// IsTerminal reports whether the decision concludes the task.
func (d Decision) IsTerminal() bool {
	switch d {
	case DecisionTaskCompleted, DecisionTaskTerminated, DecisionTaskFailed:
		return true
	default:
		return false
	}
}

// handleFailedStep decides between retrying a failed step and failing the
// task. Returns (DecisionRetry, next retry step) while the retry budget
// lasts, and (DecisionTaskFailed, failed step) once it is exhausted.
func (a *Agent) handleFailedStep(ctx context.Context, task *domain.Task, step *domain.Step) (Decision, *domain.Step, error) {
	logger := a.stepLogger(step)
	if step.RetryIndex >= a.settings.MaxRetriesPerStep {
		logger.Warn().
			Int("max_retries", a.settings.MaxRetriesPerStep).
			Msg("step failed after max retries, marking task as failed")
		reason := fmt.Sprintf("Max retries per step (%d) exceeded", a.settings.MaxRetriesPerStep)
		if _, err := a.recorder.UpdateTask(ctx, task, store.TaskUpdate{
			Status:        taskStatusPtr(constants.TaskStatusFailed),
			FailureReason: &reason,
		}); err != nil {
			return DecisionTaskFailed, step, err
		}
		return DecisionTaskFailed, step, nil
	}

	logger.Warn().Msg("step failed, retrying")
	nextStep, err := a.db.CreateStep(ctx, task.ID, task.OrganizationID, step.Order, step.RetryIndex+1)
	if err != nil {
		return DecisionRetry, nil, err
	}
	return DecisionRetry, nextStep, nil
}

// handleCompletedStep classifies a completed step: goal achieved, agent
// terminated, step budget exhausted, or advance to the next step.
func (a *Agent) handleCompletedStep(ctx context.Context, org *domain.Organization, task *domain.Task, step *domain.Step) (Decision, *domain.Step, error) {
	logger := a.stepLogger(step)

	if step.IsGoalAchieved() {
		logger.Info().Msg("step completed and goal achieved, marking task as completed")
		lastStep, err := a.recorder.UpdateStep(ctx, step, store.StepUpdate{IsLast: boolPtr(true)})
		if err != nil {
			return DecisionTaskCompleted, step, err
		}
		extracted, err := a.getExtractedInformationForTask(ctx, task)
		if err != nil {
			return DecisionTaskCompleted, lastStep, err
		}
		if _, err := a.recorder.UpdateTask(ctx, task, store.TaskUpdate{
			Status:               taskStatusPtr(constants.TaskStatusCompleted),
			ExtractedInformation: extracted,
		}); err != nil {
			return DecisionTaskCompleted, lastStep, err
		}
		return DecisionTaskCompleted, lastStep, nil
	}

	if step.IsTerminated() {
		logger.Info().Msg("step completed and terminated by the agent, marking task as terminated")
		lastStep, err := a.recorder.UpdateStep(ctx, step, store.StepUpdate{IsLast: boolPtr(true)})
		if err != nil {
			return DecisionTaskTerminated, step, err
		}
		reason := a.getFailureReasonForTask(ctx, task)
		if _, err := a.recorder.UpdateTask(ctx, task, store.TaskUpdate{
			Status:        taskStatusPtr(constants.TaskStatusTerminated),
			FailureReason: &reason,
		}); err != nil {
			return DecisionTaskTerminated, lastStep, err
		}
		return DecisionTaskTerminated, lastStep, nil
	}

	maxSteps := a.effectiveMaxSteps(ctx, org)
	if step.Order+1 >= maxSteps {
		logger.Info().Int("max_steps", maxSteps).Msg("step completed but max steps reached, marking task as failed")
		lastStep, err := a.recorder.UpdateStep(ctx, step, store.StepUpdate{IsLast: boolPtr(true)})
		if err != nil {
			return DecisionTaskFailed, step, err
		}
		reason := fmt.Sprintf("Max steps per task (%d) exceeded", maxSteps)
		if _, err := a.recorder.UpdateTask(ctx, task, store.TaskUpdate{
			Status:        taskStatusPtr(constants.TaskStatusFailed),
			FailureReason: &reason,
		}); err != nil {
			return DecisionTaskFailed, lastStep, err
		}
		return DecisionTaskFailed, lastStep, nil
	}

	logger.Info().Msg("step completed, creating next step")
	nextStep, err := a.db.CreateStep(ctx, task.ID, task.OrganizationID, step.Order+1, 0)
	if err != nil {
		return DecisionAdvance, nil, err
	}

	if step.Order == int(math.Floor(float64(maxSteps)*a.settings.LongRunningTaskWarningRatio))-1 {
		logger.Warn().
			Int("max_steps", maxSteps).
			Float64("warning_ratio", a.settings.LongRunningTaskWarningRatio).
			Msg("long running task warning")
	}
	return DecisionAdvance, nextStep, nil
}

// effectiveMaxSteps resolves the step ceiling: context override, then the
// organization's cap, then the configured default — first defined wins.
func (a *Agent) effectiveMaxSteps(ctx context.Context, org *domain.Organization) int {
	if override, ok := MaxStepsOverrideFromContext(ctx); ok {
		return override
	}
	if org != nil && org.MaxStepsPerRun != nil {
		return *org.MaxStepsPerRun
	}
	return a.settings.MaxStepsPerRun
}

// getExtractedInformationForTask finds the most recent successful COMPLETE
// action across the task's steps and returns its data.
func (a *Agent) getExtractedInformationForTask(ctx context.Context, task *domain.Task) (any, error) {
	steps, err := a.db.GetTaskSteps(ctx, task.ID, task.OrganizationID)
	if err != nil {
		return nil, err
	}
	for i := len(steps) - 1; i >= 0; i-- {
		step := steps[i]
		if step.Status != constants.StepStatusCompleted || step.Output == nil {
			continue
		}
		for _, pair := range step.Output.ActionsAndResults {
			if pair.Action.Type != constants.ActionTypeComplete {
				continue
			}
			for _, result := range pair.Results {
				if result.Success {
					return result.Data, nil
				}
			}
		}
	}
	a.logger.Warn().Str("task_id", task.ID).Msg("failed to find extracted information for task")
	return nil, nil
}

// getFailureReasonForTask finds the TERMINATE action across the task's
// steps and returns its reasoning, or an empty string.
func (a *Agent) getFailureReasonForTask(ctx context.Context, task *domain.Task) string {
	steps, err := a.db.GetTaskSteps(ctx, task.ID, task.OrganizationID)
	if err != nil {
		a.logger.Error().Err(err).Str("task_id", task.ID).Msg("failed to load steps for failure reason")
		return ""
	}
	for i := len(steps) - 1; i >= 0; i-- {
		step := steps[i]
		if step.Status != constants.StepStatusCompleted || step.Output == nil {
			continue
		}
		for _, pair := range step.Output.ActionsAndResults {
			if pair.Action.Type == constants.ActionTypeTerminate {
				return pair.Action.Reasoning
			}
		}
	}
	a.logger.Error().Str("task_id", task.ID).Msg("failed to find failure reasoning for task")
	return ""
}

// taskStatusPtr returns a pointer to a task status literal.
func taskStatusPtr(status constants.TaskStatus) *constants.TaskStatus {
	return &status
}

// boolPtr returns a pointer to a bool literal.
func boolPtr(b bool) *bool {
	return &b
}

package engine

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/voyagerhq/voyager/internal/constants"
	"github.com/voyagerhq/voyager/internal/domain"
	voyagererrors "github.com/voyagerhq/voyager/internal/errors"
	"github.com/voyagerhq/voyager/internal/store"
)

// internalNoOutcomeReason fails a task whose completed step produced
// neither a terminal outcome nor a next step. This is an engine invariant
// violation, failed explicitly rather than left stalling in running.
const internalNoOutcomeReason = "internal error: completed step produced no outcome"

// ExecuteStepOptions carries the per-call inputs of the driver loop.
type ExecuteStepOptions struct {
	// APIKey signs the outcome webhook. Without it no webhook is sent.
	APIKey string

	// WorkflowRun, when set, scopes the browser state to the run instead
	// of the task.
	WorkflowRun *domain.WorkflowRun

	// CloseBrowserOnCompletion tears the browser down when the task
	// concludes.
	CloseBrowserOnCompletion bool
}

// ExecuteStepResult is what the driver hands back to its caller.
type ExecuteStepResult struct {
	// LastExecutedStep is the most recent step the driver ran.
	LastExecutedStep *domain.Step

	// DetailedOutput is the working aggregate of that step.
	DetailedOutput *domain.DetailedAgentStepOutput

	// NextStep is set when the task is not terminal and step chaining is
	// disabled: the caller drives the next step itself.
	NextStep *domain.Step
}

// ExecuteStep drives the task from the given step until it concludes, a
// chaining boundary is reached, or an error surfaces.
//
// Retries are always driven to completion regardless of the
// execute_all_steps setting: a dropped retry would strand the task in
// running. Only Advance honors the flag.
func (a *Agent) ExecuteStep(ctx context.Context, org *domain.Organization, task *domain.Task, step *domain.Step, opts ExecuteStepOptions) (*ExecuteStepResult, error) {
	current := step
	for {
		if err := a.validateStepExecution(ctx, task, current); err != nil {
			return nil, err
		}

		state, err := a.initializeExecutionState(ctx, task, current, opts.WorkflowRun)
		if err != nil {
			return nil, err
		}

		executed, detailed := a.AgentStep(ctx, task, current, state, org)

		task, err = a.mergeStepErrorsIntoTask(ctx, task, detailed)
		if err != nil {
			a.logger.Error().Err(err).Str("task_id", task.ID).Msg("failed to merge step errors into task")
		}

		result := &ExecuteStepResult{LastExecutedStep: executed, DetailedOutput: detailed}

		switch executed.Status {
		case constants.StepStatusFailed:
			decision, next, policyErr := a.handleFailedStep(ctx, task, executed)
			if policyErr != nil {
				return result, policyErr
			}
			if decision == DecisionTaskFailed {
				return result, a.respond(ctx, task, executed, opts)
			}
			// Retry: always driven, never gated by execute_all_steps.
			current = next
			continue

		case constants.StepStatusCompleted:
			decision, next, policyErr := a.handleCompletedStep(ctx, org, task, executed)
			if policyErr != nil {
				return result, a.failTaskForBrokenPolicy(ctx, task, executed, opts, policyErr)
			}
			if decision.IsTerminal() {
				result.LastExecutedStep = next
				return result, a.respond(ctx, task, next, opts)
			}
			if a.settings.ExecuteAllSteps {
				current = next
				continue
			}
			a.logger.Info().
				Str("task_id", task.ID).
				Str("step_id", executed.ID).
				Str("next_step_id", next.ID).
				Msg("step executed but continuous execution is disabled")
			result.NextStep = next
			return result, nil

		default:
			a.logger.Error().
				Str("task_id", task.ID).
				Str("step_id", executed.ID).
				Str("step_status", executed.Status.String()).
				Msg("unexpected step status after agent step")
			return result, fmt.Errorf("unexpected step status %s after agent step", executed.Status)
		}
	}
}

// respond runs the responder and absorbs webhook transport failures the way
// the driver contract requires: the task outcome is already durable, so a
// failed webhook is logged, not propagated as a task failure.
func (a *Agent) respond(ctx context.Context, task *domain.Task, lastStep *domain.Step, opts ExecuteStepOptions) error {
	err := a.SendTaskResponse(ctx, task, lastStep, opts)
	if err == nil {
		return nil
	}
	if stderrors.Is(err, voyagererrors.ErrFailedToSendWebhook) {
		a.logger.Error().Err(err).
			Str("task_id", task.ID).
			Str("step_id", lastStep.ID).
			Msg("failed to send webhook")
		return nil
	}
	return err
}

// failTaskForBrokenPolicy explicitly fails a task whose completed step
// could not be classified (an internal invariant violation) and responds.
func (a *Agent) failTaskForBrokenPolicy(ctx context.Context, task *domain.Task, step *domain.Step, opts ExecuteStepOptions, policyErr error) error {
	a.logger.Error().Err(policyErr).
		Str("task_id", task.ID).
		Str("step_id", step.ID).
		Msg("completed step produced no outcome, failing task")

	reason := internalNoOutcomeReason
	if _, err := a.recorder.UpdateTask(ctx, task, store.TaskUpdate{
		Status:        taskStatusPtr(constants.TaskStatusFailed),
		FailureReason: &reason,
	}); err != nil {
		a.logger.Error().Err(err).Str("task_id", task.ID).Msg("failed to mark task failed")
		return policyErr
	}
	if err := a.respond(ctx, task, step, opts); err != nil {
		a.logger.Error().Err(err).Str("task_id", task.ID).Msg("failed to send response for failed task")
	}
	return policyErr
}

// validateStepExecution checks the preconditions of a step run: the task is
// running, the step is created or failed, and no other step of the task is
// running. Violations fail with ErrCannotExecuteStep before any side
// effects.
func (a *Agent) validateStepExecution(ctx context.Context, task *domain.Task, step *domain.Step) error {
	var reasons []string

	if task.Status != constants.TaskStatusRunning {
		reasons = append(reasons, fmt.Sprintf("invalid_task_status:%s", task.Status))
	}
	if step.Status != constants.StepStatusCreated && step.Status != constants.StepStatusFailed {
		reasons = append(reasons, fmt.Sprintf("invalid_step_status:%s", step.Status))
	}

	steps, err := a.db.GetTaskSteps(ctx, task.ID, task.OrganizationID)
	if err != nil {
		return err
	}
	for _, other := range steps {
		if other.Status == constants.StepStatusRunning {
			reasons = append(reasons, fmt.Sprintf("another_step_is_running_for_task:%s", task.ID))
			break
		}
	}

	if len(reasons) > 0 {
		return fmt.Errorf("%w: reasons %v, step %s",
			voyagererrors.ErrCannotExecuteStep, reasons, step.ID)
	}
	return nil
}

// mergeStepErrorsIntoTask appends the step's user-defined errors to the
// task's append-only error sequence.
func (a *Agent) mergeStepErrorsIntoTask(ctx context.Context, task *domain.Task, detailed *domain.DetailedAgentStepOutput) (*domain.Task, error) {
	if detailed == nil || len(detailed.Errors) == 0 {
		return task, nil
	}
	merged := make([]domain.UserDefinedError, 0, len(task.Errors)+len(detailed.Errors))
	merged = append(merged, task.Errors...)
	merged = append(merged, detailed.Errors...)
	return a.recorder.UpdateTask(ctx, task, store.TaskUpdate{Errors: merged})
}

// CreateTask persists a new created task from a request.
func (a *Agent) CreateTask(ctx context.Context, req *domain.TaskRequest, organizationID string) (*domain.Task, error) {
	task, err := a.db.CreateTask(ctx, domain.NewTaskFromRequest(req, organizationID))
	if err != nil {
		return nil, err
	}
	a.logger.Info().
		Str("task_id", task.ID).
		Str("url", task.URL).
		Str("title", task.Title).
		Msg("created new task")
	return task, nil
}

// CreateTaskAndStepFromBlock constructs the initial task and step for a
// workflow task block: the navigation payload is resolved from the run
// context, the URL is inherited from the current page when the block has
// none, the task is created running, and step (order 0, retry 0) is
// created.
func (a *Agent) CreateTaskAndStepFromBlock(ctx context.Context, block *domain.TaskBlock, workflow *domain.Workflow, run *domain.WorkflowRun, runContext *domain.WorkflowRunContext) (*domain.Task, *domain.Step, error) {
	payload := make(map[string]any, len(block.Parameters))
	for _, parameter := range block.Parameters {
		payload[parameter.Key] = runContext.GetValue(parameter.Key)
	}

	taskURL := block.URL
	if taskURL == "" {
		state, err := a.browsers.GetOrCreateForWorkflowRun(ctx, run, "")
		if err != nil {
			return nil, nil, err
		}
		if !state.HasPage() {
			a.logger.Error().Str("workflow_run_id", run.ID).Msg("browser state has no page")
			return nil, nil, fmt.Errorf("workflow run %s: %w", run.ID, voyagererrors.ErrBrowserStateMissingPage)
		}
		if state.CurrentURL() == constants.AboutBlankURL {
			return nil, nil, fmt.Errorf("workflow run %s: %w", run.ID, voyagererrors.ErrInvalidWorkflowTaskURLState)
		}
		taskURL = state.CurrentURL()
	}

	task, err := a.db.CreateTask(ctx, &domain.Task{
		ID:                         domain.NewTaskID(),
		OrganizationID:             workflow.OrganizationID,
		WorkflowRunID:              run.ID,
		Status:                     constants.TaskStatusCreated,
		URL:                        taskURL,
		Title:                      block.Title,
		NavigationGoal:             block.NavigationGoal,
		DataExtractionGoal:         block.DataExtractionGoal,
		NavigationPayload:          payload,
		ExtractedInformationSchema: block.DataSchema,
		ErrorCodeMapping:           block.ErrorCodeMapping,
		ProxyLocation:              run.ProxyLocation,
	})
	if err != nil {
		return nil, nil, err
	}
	a.logger.Info().
		Str("workflow_id", workflow.ID).
		Str("workflow_run_id", run.ID).
		Str("task_id", task.ID).
		Str("url", task.URL).
		Msg("created new task for workflow run")

	task, err = a.recorder.UpdateTask(ctx, task, store.TaskUpdate{
		Status: taskStatusPtr(constants.TaskStatusRunning),
	})
	if err != nil {
		return nil, nil, err
	}

	step, err := a.db.CreateStep(ctx, task.ID, task.OrganizationID, 0, 0)
	if err != nil {
		return nil, nil, err
	}
	a.logger.Info().
		Str("workflow_run_id", run.ID).
		Str("task_id", task.ID).
		Str("step_id", step.ID).
		Msg("created new step for workflow run")
	return task, step, nil
}

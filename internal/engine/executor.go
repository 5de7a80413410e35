package engine

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/voyagerhq/voyager/internal/actions"
	"github.com/voyagerhq/voyager/internal/browser"
	"github.com/voyagerhq/voyager/internal/constants"
	"github.com/voyagerhq/voyager/internal/domain"
	voyagererrors "github.com/voyagerhq/voyager/internal/errors"
	"github.com/voyagerhq/voyager/internal/llm"
	"github.com/voyagerhq/voyager/internal/prompt"
	"github.com/voyagerhq/voyager/internal/store"
)

// AgentStep executes one build/act/judge cycle: render the prompt, query
// the LLM, execute the proposed actions in order, and classify the outcome.
//
// No error escapes AgentStep. Any failure along the way marks the step
// failed with whatever output has accumulated and returns; the caller's
// policy decides whether to retry.
func (a *Agent) AgentStep(ctx context.Context, task *domain.Task, step *domain.Step, state browser.Session, _ *domain.Organization) (*domain.Step, *domain.DetailedAgentStepOutput) {
	detailed := &domain.DetailedAgentStepOutput{}
	logger := a.stepLogger(step)

	logger.Info().Msg("starting agent step")

	step, err := a.recorder.UpdateStep(ctx, step, store.StepUpdate{Status: statusPtr(constants.StepStatusRunning)})
	if err != nil {
		logger.Error().Err(err).Msg("failed to mark step running")
		return a.failStep(ctx, step, detailed, logger), detailed
	}

	page, extractActionPrompt, err := a.buildAndRecordStepPrompt(ctx, task, step, state)
	if err != nil {
		logger.Error().Err(err).Msg("failed to build step prompt")
		return a.failStep(ctx, step, detailed, logger), detailed
	}
	detailed.ScrapedPage = page
	detailed.ExtractActionPrompt = extractActionPrompt

	var parsed []domain.Action
	if task.NavigationGoal != "" {
		llmCtx, cancel := context.WithTimeout(ctx, a.settings.LLMTimeout)
		response, llmErr := a.llm.Call(llmCtx, extractActionPrompt, step, page.Screenshots)
		cancel()
		if llmErr != nil {
			logger.Error().Err(llmErr).Msg("llm call failed")
			return a.failStep(ctx, step, detailed, logger), detailed
		}
		detailed.LLMResponse = response

		raw, respErr := llm.ResponseActions(response)
		if respErr != nil {
			logger.Error().Err(respErr).Msg("llm response has no usable actions")
			return a.failStep(ctx, step, detailed, logger), detailed
		}
		parsed, err = actions.Parse(raw)
		if err != nil {
			logger.Error().Err(err).Msg("failed to parse llm actions")
			return a.failStep(ctx, step, detailed, logger), detailed
		}
		detailed.Errors = llm.ResponseErrors(response)
	} else {
		parsed = []domain.Action{{
			Type:               constants.ActionTypeComplete,
			Reasoning:          "Task has no navigation goal.",
			DataExtractionGoal: task.DataExtractionGoal,
		}}
	}
	detailed.Actions = parsed

	if len(parsed) == 0 {
		logger.Info().Msg("no actions to execute, marking step as failed")
		return a.failStep(ctx, step, detailed, logger), detailed
	}

	executable := pruneWaitActions(parsed, logger)

	// Pre-populate pairs with empty result lists so a crash still reveals
	// the attempted action list.
	detailed.ActionsAndResults = make([]domain.ActionAndResults, len(executable))
	for i, action := range executable {
		detailed.ActionsAndResults[i] = domain.ActionAndResults{Action: action, Results: []domain.ActionResult{}}
	}

	logger.Info().Int("action_count", len(executable)).Msg("executing actions")

	targetedElements := make(map[string]bool)
	for idx, action := range executable {
		if action.IsWebAction() {
			if targetedElements[action.ElementID] {
				logger.Error().
					Str("element_id", action.ElementID).
					Int("action_idx", idx).
					Msg("duplicate action element id, action handling stops")
				break
			}
			targetedElements[action.ElementID] = true
		}

		results, handleErr := a.handlers.Handle(ctx, page, task, step, state, action)
		if handleErr != nil {
			logger.Error().Err(handleErr).Int("action_idx", idx).Msg("action handler failed")
			return a.failStep(ctx, step, detailed, logger), detailed
		}
		for i := range results {
			results[i].StepOrder = step.Order
			results[i].StepRetryNumber = step.RetryIndex
		}
		detailed.ActionsAndResults[idx] = domain.ActionAndResults{Action: action, Results: results}
		detailed.ActionResults = append(detailed.ActionResults, results...)

		// Wait a random interval between actions to avoid detection.
		a.sleepJitter(ctx)

		if artErr := a.recordArtifactsAfterAction(ctx, task, step, state); artErr != nil {
			logger.Error().Err(artErr).Msg("failed recording artifacts after action")
			return a.failStep(ctx, step, detailed, logger), detailed
		}

		// Judge the action on its last result.
		if len(results) > 0 && results[len(results)-1].Success {
			logger.Info().Int("action_idx", idx).Str("action_type", action.Type.String()).Msg("action succeeded")
			if results[len(results)-1].JavascriptTriggered {
				// JS side effects may invalidate the remaining planned
				// actions; end the step here as successful.
				logger.Info().Int("action_idx", idx).Msg("action triggered javascript, stopping remaining actions")
				break
			}
			continue
		}

		logger.Warn().Int("action_idx", idx).Str("action_type", action.Type.String()).Msg("action failed, marking step as failed")
		return a.failStep(ctx, step, detailed, logger), detailed
	}

	logger.Info().Msg("actions executed successfully, marking step as completed")
	completed, err := a.recorder.UpdateStep(ctx, step, store.StepUpdate{
		Status: statusPtr(constants.StepStatusCompleted),
		Output: detailed.ToAgentStepOutput(),
	})
	if err != nil {
		logger.Error().Err(err).Msg("failed to mark step completed")
		return a.failStep(ctx, step, detailed, logger), detailed
	}
	return completed, detailed
}

// pruneWaitActions drops WAIT actions when mixed with real ones. WAIT is
// treated as non-success, so leaving it in a mixed sequence would
// incorrectly fail the step; a sequence of only WAITs is preserved.
func pruneWaitActions(parsed []domain.Action, logger *zerolog.Logger) []domain.Action {
	if len(parsed) <= 1 {
		return parsed
	}
	waitCount := 0
	for _, action := range parsed {
		if action.Type == constants.ActionTypeWait {
			waitCount++
		}
	}
	if waitCount == 0 || waitCount == len(parsed) {
		return parsed
	}
	pruned := make([]domain.Action, 0, len(parsed)-waitCount)
	for _, action := range parsed {
		if action.Type != constants.ActionTypeWait {
			pruned = append(pruned, action)
		}
	}
	logger.Info().Int("skipped_wait_actions", waitCount).Msg("skipping wait actions mixed with real actions")
	return pruned
}

// failStep marks the step failed with the accumulated output. Used on every
// failure path of AgentStep; recorder errors here are logged and the
// in-memory step returned so the caller can still apply policy.
func (a *Agent) failStep(ctx context.Context, step *domain.Step, detailed *domain.DetailedAgentStepOutput, logger *zerolog.Logger) *domain.Step {
	failed, err := a.recorder.UpdateStep(ctx, step, store.StepUpdate{
		Status: statusPtr(constants.StepStatusFailed),
		Output: detailed.ToAgentStepOutput(),
	})
	if err != nil {
		logger.Error().Err(err).Msg("failed to mark step failed")
		step.Status = constants.StepStatusFailed
		return step
	}
	return failed
}

// buildAndRecordStepPrompt scrapes the page, assembles the action history
// window and renders the extract-action prompt, persisting the scrape
// artifacts along the way. The prompt is pure in (task, step, browser
// state, prior steps); only the UTC timestamp varies between invocations.
func (a *Agent) buildAndRecordStepPrompt(ctx context.Context, task *domain.Task, step *domain.Step, state browser.Session) (*domain.ScrapedPage, string, error) {
	page, err := a.scraper.Scrape(ctx, state, task.URL)
	if err != nil {
		return nil, "", err
	}
	a.createArtifactLogged(ctx, step, constants.ArtifactTypeHTMLScrape, []byte(page.HTML))

	a.stepLogger(step).Info().
		Int("num_elements", len(page.ElementTree)).
		Str("url", task.URL).
		Msg("scraped website")

	// Collect action results from the most recent steps before this one into
	// the prompt's action history.
	steps, err := a.db.GetTaskSteps(ctx, task.ID, task.OrganizationID)
	if err != nil {
		return nil, "", err
	}
	window := make([]*domain.Step, 0, len(steps))
	for _, prior := range steps {
		if prior.ID != step.ID {
			window = append(window, prior)
		}
	}
	if len(window) > a.settings.PromptActionHistoryWindow {
		window = window[len(window)-a.settings.PromptActionHistoryWindow:]
	}
	history := make([]domain.ActionResult, 0)
	for _, windowStep := range window {
		if windowStep.Output != nil {
			history = append(history, windowStep.Output.ActionResults...)
		}
	}
	historyJSON, err := json.Marshal(history)
	if err != nil {
		return nil, "", err
	}

	vars := map[string]any{
		"navigation_goal":      task.NavigationGoal,
		"navigation_payload":   marshalOrEmpty(task.NavigationPayload),
		"url":                  task.URL,
		"elements":             marshalOrEmpty(page.ElementTreeTrimmed),
		"data_extraction_goal": task.DataExtractionGoal,
		"action_history":       string(historyJSON),
		"error_code_mapping":   marshalOrEmpty(task.ErrorCodeMapping),
		"utc_datetime":         time.Now().UTC().Format("2006-01-02 15:04:05"),
	}
	extractActionPrompt, err := a.prompts.LoadPrompt(prompt.ExtractAction, vars)
	if err != nil {
		return nil, "", err
	}

	a.createArtifactLogged(ctx, step, constants.ArtifactTypeVisibleElementsIDXPathMap, marshalIndent(page.IDToXPath))
	a.createArtifactLogged(ctx, step, constants.ArtifactTypeVisibleElementsTree, marshalIndent(page.ElementTree))
	a.createArtifactLogged(ctx, step, constants.ArtifactTypeVisibleElementsTreeTrimmed, marshalIndent(page.ElementTreeTrimmed))

	return page, extractActionPrompt, nil
}

// recordArtifactsAfterAction captures the post-action screenshot and HTML
// and refreshes the running video artifact. Individual capture failures are
// logged and swallowed; a missing page is an error the caller treats as
// fatal for the step.
func (a *Agent) recordArtifactsAfterAction(ctx context.Context, task *domain.Task, step *domain.Step, state browser.Session) error {
	if !state.HasPage() {
		return voyagererrors.ErrBrowserStateMissingPage
	}

	if screenshot, err := state.TakeScreenshot(ctx, true); err != nil {
		a.stepLogger(step).Error().Err(err).Msg("failed to record screenshot after action")
	} else {
		a.createArtifactLogged(ctx, step, constants.ArtifactTypeScreenshotAction, screenshot)
	}

	if html, err := state.PageContent(ctx); err != nil {
		a.stepLogger(step).Error().Err(err).Msg("failed to record html after action")
	} else {
		a.createArtifactLogged(ctx, step, constants.ArtifactTypeHTMLAction, []byte(html))
	}

	if state.VideoArtifactID() != "" {
		if video, err := a.browsers.GetVideoData(ctx, task.ID, state); err != nil {
			a.stepLogger(step).Error().Err(err).Msg("failed to record video after action")
		} else {
			a.artifacts.UpdateArtifactData(ctx, state.VideoArtifactID(), task.ID, step.ID,
				task.OrganizationID, constants.ArtifactTypeRecording, video)
		}
	}
	return nil
}

// initializeExecutionState acquires the browser state for the step and
// registers the task's video artifact on first use.
func (a *Agent) initializeExecutionState(ctx context.Context, task *domain.Task, step *domain.Step, workflowRun *domain.WorkflowRun) (browser.Session, error) {
	var state browser.Session
	var err error
	if workflowRun != nil {
		state, err = a.browsers.GetOrCreateForWorkflowRun(ctx, workflowRun, task.URL)
	} else {
		state, err = a.browsers.GetOrCreateForTask(ctx, task)
	}
	if err != nil {
		return nil, err
	}

	if state.VideoArtifactID() == "" {
		video, videoErr := a.browsers.GetVideoData(ctx, task.ID, state)
		if videoErr != nil {
			a.stepLogger(step).Warn().Err(videoErr).Msg("video recording not available yet")
			return state, nil
		}
		artifactID, artErr := a.artifacts.CreateArtifact(ctx, step, constants.ArtifactTypeRecording, video)
		if artErr != nil {
			a.stepLogger(step).Error().Err(artErr).Msg("failed to register video artifact")
			return state, nil
		}
		state.SetVideoArtifactID(artifactID)
	}
	return state, nil
}

// createArtifactLogged enqueues an artifact capture, logging and swallowing
// failures: artifact recording must never abort a step.
func (a *Agent) createArtifactLogged(ctx context.Context, step *domain.Step, artifactType constants.ArtifactType, data []byte) {
	if _, err := a.artifacts.CreateArtifact(ctx, step, artifactType, data); err != nil {
		a.stepLogger(step).Error().Err(err).
			Str("artifact_type", artifactType.String()).
			Msg("failed to create artifact")
	}
}

// stepLogger returns the engine logger annotated with step coordinates.
func (a *Agent) stepLogger(step *domain.Step) *zerolog.Logger {
	logger := a.logger.With().
		Str("task_id", step.TaskID).
		Str("step_id", step.ID).
		Int("step_order", step.Order).
		Int("step_retry", step.RetryIndex).
		Logger()
	return &logger
}

// statusPtr returns a pointer to a step status literal.
func statusPtr(status constants.StepStatus) *constants.StepStatus {
	return &status
}

// marshalOrEmpty renders a value as compact JSON, or an empty string for
// nil or empty values, so templates can treat absence as falsy.
func marshalOrEmpty(value any) string {
	if value == nil {
		return ""
	}
	data, err := json.Marshal(value)
	if err != nil {
		return ""
	}
	encoded := string(data)
	if encoded == "null" || encoded == "{}" || encoded == "[]" {
		return ""
	}
	return encoded
}

// marshalIndent renders a value as indented JSON for artifact payloads.
func marshalIndent(value any) []byte {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return nil
	}
	return data
}

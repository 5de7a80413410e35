package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/voyagerhq/voyager/internal/analytics"
	"github.com/voyagerhq/voyager/internal/browser"
	"github.com/voyagerhq/voyager/internal/constants"
	"github.com/voyagerhq/voyager/internal/domain"
	voyagererrors "github.com/voyagerhq/voyager/internal/errors"
)

// SendTaskResponse concludes a terminal task: final screenshot, analytics,
// browser teardown with recording capture, the artifact upload barrier, and
// the signed outcome webhook. Tasks embedded in a workflow run stop after
// the screenshot — the workflow publishes the outcome, not the task.
func (a *Agent) SendTaskResponse(ctx context.Context, task *domain.Task, lastStep *domain.Step, opts ExecuteStepOptions) error {
	// Refresh from storage for the authoritative status.
	refreshed, err := a.db.GetTask(ctx, task.ID, task.OrganizationID)
	if err != nil {
		a.logger.Error().Err(err).Str("task_id", task.ID).
			Msg("failed to get task from db when sending task response")
		return fmt.Errorf("task %s: %w", task.ID, voyagererrors.ErrTaskNotFound)
	}
	task = refreshed

	a.analytics.Capture(analytics.TaskStatusEvent, map[string]any{
		"task_id": task.ID,
		"status":  task.Status.String(),
	})

	// One last screenshot of the final page state before teardown.
	state, err := a.browsers.GetOrCreateForTask(ctx, task)
	if err != nil {
		return err
	}
	if err := state.EnsurePage(ctx); err != nil {
		a.logger.Warn().Err(err).Str("task_id", task.ID).Msg("failed to open final page")
	}
	if screenshot, err := state.TakeScreenshot(ctx, true); err != nil {
		a.logger.Warn().Err(err).
			Str("task_id", task.ID).
			Str("step_id", lastStep.ID).
			Msg("failed to take final screenshot, page is closed")
	} else {
		a.createArtifactLogged(ctx, lastStep, constants.ArtifactTypeScreenshotFinal, screenshot)
	}

	if task.WorkflowRunID != "" {
		a.logger.Info().
			Str("task_id", task.ID).
			Str("workflow_run_id", task.WorkflowRunID).
			Msg("task is part of a workflow run, not sending a webhook response")
		return nil
	}

	a.cleanupBrowserAndCreateArtifacts(ctx, opts.CloseBrowserOnCompletion, lastStep, task)

	// Barrier: every artifact referenced below must be durable before the
	// webhook publishes links to it.
	a.artifacts.WaitForUploads(task.ID)

	return a.executeTaskWebhook(ctx, task, lastStep, opts.APIKey)
}

// executeTaskWebhook composes and POSTs the signed task response. Missing
// api key or callback url skip delivery with a warning.
func (a *Agent) executeTaskWebhook(ctx context.Context, task *domain.Task, lastStep *domain.Step, apiKey string) error {
	if apiKey == "" {
		a.logger.Warn().Str("task_id", task.ID).
			Msg("request has no api key, not sending task response")
		return nil
	}
	if task.WebhookCallbackURL == "" {
		a.logger.Warn().Str("task_id", task.ID).
			Msg("task has no webhook callback url, not sending task response")
		return nil
	}

	screenshotURL := a.shareLinkFor(ctx, task, lastStep, constants.ArtifactTypeScreenshotFinal)
	recordingURL := a.shareLinkFor(ctx, task, lastStep, constants.ArtifactTypeRecording)

	// Re-fetch for the latest extracted information and failure reason.
	task, err := a.db.GetTask(ctx, task.ID, task.OrganizationID)
	if err != nil {
		return fmt.Errorf("task: %w", voyagererrors.ErrTaskNotFound)
	}

	response := task.ToTaskResponse(screenshotURL, recordingURL)
	// The navigation payload may carry user secrets; it is excluded from
	// the signed body.
	response.Request.NavigationPayload = nil

	payload, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("failed to encode task response: %w", err)
	}

	a.logger.Info().
		Str("task_id", task.ID).
		Str("webhook_url", task.WebhookCallbackURL).
		Msg("sending task response to webhook callback url")

	webhookCtx, cancel := context.WithTimeout(ctx, a.settings.WebhookTimeout)
	defer cancel()
	return a.webhooks.Send(webhookCtx, task.WebhookCallbackURL, payload, apiKey)
}

// shareLinkFor resolves the share link of the newest artifact of a type on
// the last step, or an empty string.
func (a *Agent) shareLinkFor(ctx context.Context, task *domain.Task, lastStep *domain.Step, artifactType constants.ArtifactType) string {
	artifact, err := a.db.GetArtifact(ctx, task.ID, lastStep.ID, task.OrganizationID, artifactType)
	if err != nil {
		a.logger.Debug().Err(err).
			Str("task_id", task.ID).
			Str("artifact_type", artifactType.String()).
			Msg("no artifact for share link")
		return ""
	}
	link, err := a.artifacts.GetShareLink(artifact)
	if err != nil {
		a.logger.Warn().Err(err).
			Str("artifact_id", artifact.ID).
			Msg("failed to resolve artifact share link")
		return ""
	}
	return link
}

// cleanupBrowserAndCreateArtifacts tears down the task's browser and
// captures the final recording, HAR and trace. Every capture failure is
// logged, never fatal.
func (a *Agent) cleanupBrowserAndCreateArtifacts(ctx context.Context, closeBrowser bool, lastStep *domain.Step, task *domain.Task) {
	state, err := a.browsers.CleanupForTask(ctx, task.ID, closeBrowser)
	if err != nil {
		a.logger.Warn().Err(err).Str("task_id", task.ID).Msg("browser cleanup failed")
	}
	if state == nil {
		a.logger.Warn().
			Str("task_id", task.ID).
			Str("webhook_url", task.WebhookCallbackURL).
			Msg("browser state is missing before sending response")
		return
	}

	a.captureFinalRecordings(ctx, state, lastStep, task)
}

// captureFinalRecordings refreshes the video artifact and captures HAR and
// trace after teardown, when the files are complete.
func (a *Agent) captureFinalRecordings(ctx context.Context, state browser.Session, lastStep *domain.Step, task *domain.Task) {
	if state.VideoArtifactID() != "" {
		if video, err := a.browsers.GetVideoData(ctx, task.ID, state); err != nil {
			a.logger.Warn().Err(err).Str("task_id", task.ID).Msg("failed to capture final video")
		} else if len(video) > 0 {
			a.artifacts.UpdateArtifactData(ctx, state.VideoArtifactID(), task.ID, lastStep.ID,
				task.OrganizationID, constants.ArtifactTypeRecording, video)
		}
	}

	if har, err := a.browsers.GetHARData(ctx, task.ID, state); err != nil {
		a.logger.Warn().Err(err).Str("task_id", task.ID).Msg("failed to capture har")
	} else if len(har) > 0 {
		a.createArtifactLogged(ctx, lastStep, constants.ArtifactTypeHAR, har)
	}

	if state.TracesDir() != "" {
		tracePath := filepath.Join(state.TracesDir(), task.ID+".zip")
		if _, err := a.artifacts.CreateArtifactFromPath(ctx, lastStep, constants.ArtifactTypeTrace, tracePath); err != nil {
			a.logger.Warn().Err(err).Str("task_id", task.ID).Msg("failed to capture trace")
		}
	}
}

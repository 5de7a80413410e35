package domain

import (
	"fmt"
	"time"

	"github.com/voyagerhq/voyager/internal/constants"
	voyagererrors "github.com/voyagerhq/voyager/internal/errors"
)

// TaskRequest is the user's declarative request: where to go, what to do,
// and optionally what to extract and how to report back.
type TaskRequest struct {
	// URL may be empty when the task is embedded in a workflow and inherits
	// the URL from the current browser page.
	URL string `json:"url,omitempty"`

	Title              string `json:"title,omitempty"`
	NavigationGoal     string `json:"navigation_goal,omitempty"`
	DataExtractionGoal string `json:"data_extraction_goal,omitempty"`

	// NavigationPayload maps arbitrary user-supplied keys to values that
	// are made available to the model while navigating.
	NavigationPayload map[string]any `json:"navigation_payload,omitempty"`

	// ExtractedInformationSchema optionally types the extraction output.
	ExtractedInformationSchema any `json:"extracted_information_schema,omitempty"`

	// ErrorCodeMapping maps user-defined error codes to descriptions the
	// model can raise against.
	ErrorCodeMapping map[string]string `json:"error_code_mapping,omitempty"`

	ProxyLocation      string `json:"proxy_location,omitempty"`
	WebhookCallbackURL string `json:"webhook_callback_url,omitempty"`
}

// Task is the user request plus its mutable execution state.
type Task struct {
	ID             string `json:"task_id"`
	OrganizationID string `json:"organization_id,omitempty"`

	// WorkflowRunID is set when the task is nested in a workflow run.
	// Such a task never triggers a webhook.
	WorkflowRunID string `json:"workflow_run_id,omitempty"`

	Status constants.TaskStatus `json:"status"`

	URL                        string            `json:"url"`
	Title                      string            `json:"title,omitempty"`
	NavigationGoal             string            `json:"navigation_goal,omitempty"`
	DataExtractionGoal         string            `json:"data_extraction_goal,omitempty"`
	NavigationPayload          map[string]any    `json:"navigation_payload,omitempty"`
	ExtractedInformationSchema any               `json:"extracted_information_schema,omitempty"`
	ErrorCodeMapping           map[string]string `json:"error_code_mapping,omitempty"`
	ProxyLocation              string            `json:"proxy_location,omitempty"`
	WebhookCallbackURL         string            `json:"webhook_callback_url,omitempty"`

	// ExtractedInformation is the data of the most recent successful
	// COMPLETE action, resolved when the task completes.
	ExtractedInformation any `json:"extracted_information,omitempty"`

	// FailureReason explains a failed or terminated task.
	FailureReason string `json:"failure_reason,omitempty"`

	// Errors is the append-only sequence of user-defined errors raised
	// across all steps.
	Errors []UserDefinedError `json:"errors,omitempty"`

	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
}

// NewTaskFromRequest builds a created task from a request.
func NewTaskFromRequest(req *TaskRequest, organizationID string) *Task {
	return &Task{
		ID:                         NewTaskID(),
		OrganizationID:             organizationID,
		Status:                     constants.TaskStatusCreated,
		URL:                        req.URL,
		Title:                      req.Title,
		NavigationGoal:             req.NavigationGoal,
		DataExtractionGoal:         req.DataExtractionGoal,
		NavigationPayload:          req.NavigationPayload,
		ExtractedInformationSchema: req.ExtractedInformationSchema,
		ErrorCodeMapping:           req.ErrorCodeMapping,
		ProxyLocation:              req.ProxyLocation,
		WebhookCallbackURL:         req.WebhookCallbackURL,
	}
}

// Request reconstructs the original request view of the task for response
// payloads.
func (t *Task) Request() *TaskRequest {
	return &TaskRequest{
		URL:                        t.URL,
		Title:                      t.Title,
		NavigationGoal:             t.NavigationGoal,
		DataExtractionGoal:         t.DataExtractionGoal,
		NavigationPayload:          t.NavigationPayload,
		ExtractedInformationSchema: t.ExtractedInformationSchema,
		ErrorCodeMapping:           t.ErrorCodeMapping,
		ProxyLocation:              t.ProxyLocation,
		WebhookCallbackURL:         t.WebhookCallbackURL,
	}
}

// ValidateUpdate checks a proposed mutation against the task state machine.
// Mutating a terminal task is rejected; a status change must follow
// ValidTaskTransitions. Returns a wrapped ErrInvalidTaskTransition
// otherwise.
func (t *Task) ValidateUpdate(status *constants.TaskStatus) error {
	if IsTerminalTaskStatus(t.Status) {
		return fmt.Errorf("%w: task %s is %s and cannot be modified",
			voyagererrors.ErrInvalidTaskTransition, t.ID, t.Status)
	}
	if status != nil {
		if err := ValidateTaskTransition(t.Status, *status); err != nil {
			return err
		}
	}
	return nil
}

// TaskResponse is the outcome payload published over the webhook and the
// API. NavigationPayload is stripped from the embedded request before the
// webhook body is signed (it may carry secrets).
type TaskResponse struct {
	Request              *TaskRequest         `json:"request"`
	TaskID               string               `json:"task_id"`
	Status               constants.TaskStatus `json:"status"`
	ExtractedInformation any                  `json:"extracted_information,omitempty"`
	FailureReason        string               `json:"failure_reason,omitempty"`
	Errors               []UserDefinedError   `json:"errors,omitempty"`
	ScreenshotURL        string               `json:"screenshot_url,omitempty"`
	RecordingURL         string               `json:"recording_url,omitempty"`
}

// ToTaskResponse composes the response payload for this task, attaching the
// share links resolved for the final screenshot and the recording.
func (t *Task) ToTaskResponse(screenshotURL, recordingURL string) *TaskResponse {
	return &TaskResponse{
		Request:              t.Request(),
		TaskID:               t.ID,
		Status:               t.Status,
		ExtractedInformation: t.ExtractedInformation,
		FailureReason:        t.FailureReason,
		Errors:               t.Errors,
		ScreenshotURL:        screenshotURL,
		RecordingURL:         recordingURL,
	}
}

// Organization scopes tasks and may cap their step budget.
type Organization struct {
	ID   string `json:"organization_id"`
	Name string `json:"organization_name,omitempty"`

	// MaxStepsPerRun overrides the configured step ceiling when set.
	MaxStepsPerRun *int `json:"max_steps_per_run,omitempty"`
}

// Package errors provides centralized error handling for Voyager.
//
// This package defines sentinel errors used for programmatic error
// categorization throughout the engine. All error types can be checked
// using errors.Is().
//
// IMPORTANT: This package MUST NOT import any other internal packages.
// Only standard library imports are allowed.
package errors

import "errors"

// Sentinel errors for error categorization.
// These allow callers to check error types with errors.Is().
// All errors use lowercase descriptions per Go conventions.
var (
	// ErrInvalidTaskTransition indicates an attempted task status change
	// that violates the task state machine. Raised before anything is
	// written.
	ErrInvalidTaskTransition = errors.New("invalid task status transition")

	// ErrInvalidStepTransition indicates an attempted step status change
	// that violates the step state machine, including any mutation of a
	// completed or failed step.
	ErrInvalidStepTransition = errors.New("invalid step status transition")

	// ErrCannotExecuteStep indicates that step execution preconditions do
	// not hold: the task is not running, the step is not created/failed, or
	// another step of the task is already running.
	ErrCannotExecuteStep = errors.New("cannot execute step")

	// ErrTaskNotFound indicates the requested task does not exist.
	ErrTaskNotFound = errors.New("task not found")

	// ErrStepNotFound indicates the requested step does not exist.
	ErrStepNotFound = errors.New("step not found")

	// ErrArtifactNotFound indicates the requested artifact does not exist.
	ErrArtifactNotFound = errors.New("artifact not found")

	// ErrOrganizationNotFound indicates the requested organization does not
	// exist.
	ErrOrganizationNotFound = errors.New("organization not found")

	// ErrBrowserStateMissingPage indicates a browser state without an open
	// page where one is required.
	ErrBrowserStateMissingPage = errors.New("browser state has no page")

	// ErrInvalidWorkflowTaskURLState indicates a workflow task block without
	// a URL whose shared browser page is still about:blank, so no URL can be
	// inherited.
	ErrInvalidWorkflowTaskURLState = errors.New("workflow task has no url and the browser page is blank")

	// ErrFailedToSendWebhook wraps a transport-level failure delivering the
	// task outcome webhook. Non-2xx responses are logged, not raised.
	ErrFailedToSendWebhook = errors.New("failed to send webhook")

	// ErrUnknownActionType indicates an LLM response containing an action
	// whose action_type tag is not a known variant.
	ErrUnknownActionType = errors.New("unknown action type")

	// ErrNoActionHandler indicates a parsed action with no registered
	// handler to dispatch it to.
	ErrNoActionHandler = errors.New("no handler registered for action type")

	// ErrPromptNotFound indicates a prompt template name that is not in the
	// embedded template set.
	ErrPromptNotFound = errors.New("prompt template not found")

	// ErrEmptyValue indicates that a required value was empty.
	ErrEmptyValue = errors.New("value cannot be empty")

	// ErrValueOutOfRange indicates that a configuration value is outside
	// the allowed range.
	ErrValueOutOfRange = errors.New("value out of range")

	// ErrConfigNil indicates that a nil config was passed to validation.
	ErrConfigNil = errors.New("config is nil")

	// ErrUploadFailed indicates an artifact upload that permanently failed
	// after retries. Observable via the wait barrier, never fatal.
	ErrUploadFailed = errors.New("artifact upload failed")
)

package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyagerhq/voyager/internal/constants"
	voyagererrors "github.com/voyagerhq/voyager/internal/errors"
)

func TestNewTaskFromRequest(t *testing.T) {
	req := &TaskRequest{
		URL:                "https://example.com",
		Title:              "login",
		NavigationGoal:     "click login",
		DataExtractionGoal: "extract the account name",
		NavigationPayload:  map[string]any{"username": "alice"},
		ErrorCodeMapping:   map[string]string{"BLOCKED": "access denied by the site"},
		WebhookCallbackURL: "https://callback.example.com/hook",
	}

	task := NewTaskFromRequest(req, "org1")

	assert.NotEmpty(t, task.ID)
	assert.True(t, len(task.ID) > len(constants.TaskIDPrefix))
	assert.Equal(t, constants.TaskStatusCreated, task.Status)
	assert.Equal(t, "org1", task.OrganizationID)
	assert.Equal(t, req.URL, task.URL)
	assert.Equal(t, req.NavigationGoal, task.NavigationGoal)
	assert.Equal(t, req.NavigationPayload, task.NavigationPayload)
	assert.Empty(t, task.WorkflowRunID)
}

func TestTaskValidateUpdate_TerminalTaskRejectsAll(t *testing.T) {
	running := constants.TaskStatusRunning
	for _, terminal := range []constants.TaskStatus{
		constants.TaskStatusCompleted,
		constants.TaskStatusFailed,
		constants.TaskStatusTerminated,
	} {
		task := &Task{ID: NewTaskID(), Status: terminal}

		err := task.ValidateUpdate(&running)
		require.Error(t, err)
		assert.ErrorIs(t, err, voyagererrors.ErrInvalidTaskTransition)

		// Even a status-less mutation of a terminal task is rejected.
		err = task.ValidateUpdate(nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, voyagererrors.ErrInvalidTaskTransition)
	}
}

func TestTaskToTaskResponse(t *testing.T) {
	task := &Task{
		ID:                   NewTaskID(),
		Status:               constants.TaskStatusCompleted,
		URL:                  "https://example.com",
		NavigationGoal:       "click login",
		NavigationPayload:    map[string]any{"password": "hunter2"},
		ExtractedInformation: map[string]any{"name": "Alice"},
		Errors:               []UserDefinedError{{ErrorCode: "SLOW_PAGE"}},
	}

	response := task.ToTaskResponse("https://share/screenshot.png", "https://share/video.webm")

	assert.Equal(t, task.ID, response.TaskID)
	assert.Equal(t, constants.TaskStatusCompleted, response.Status)
	assert.Equal(t, task.ExtractedInformation, response.ExtractedInformation)
	assert.Equal(t, "https://share/screenshot.png", response.ScreenshotURL)
	assert.Equal(t, "https://share/video.webm", response.RecordingURL)
	require.NotNil(t, response.Request)
	assert.Equal(t, task.URL, response.Request.URL)
}

// TestTaskResponse_NavigationPayloadExcludable verifies the webhook body
// contract: clearing the embedded request's navigation payload removes it
// from the serialized body entirely.
func TestTaskResponse_NavigationPayloadExcludable(t *testing.T) {
	task := &Task{
		ID:                NewTaskID(),
		Status:            constants.TaskStatusCompleted,
		URL:               "https://example.com",
		NavigationPayload: map[string]any{"password": "hunter2"},
	}

	response := task.ToTaskResponse("", "")
	response.Request.NavigationPayload = nil

	body, err := json.Marshal(response)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "navigation_payload")
	assert.NotContains(t, string(body), "hunter2")
}

func TestActionIsWebAction(t *testing.T) {
	web := []constants.ActionType{
		constants.ActionTypeClick,
		constants.ActionTypeInputText,
		constants.ActionTypeUploadFile,
		constants.ActionTypeSelectOption,
		constants.ActionTypeCheckbox,
	}
	nonWeb := []constants.ActionType{
		constants.ActionTypeWait,
		constants.ActionTypeNullAction,
		constants.ActionTypeSolveCaptcha,
		constants.ActionTypeTerminate,
		constants.ActionTypeComplete,
	}

	for _, actionType := range web {
		assert.True(t, Action{Type: actionType}.IsWebAction(), "%s should be a web action", actionType)
	}
	for _, actionType := range nonWeb {
		assert.False(t, Action{Type: actionType}.IsWebAction(), "%s should not be a web action", actionType)
	}
}

package domain

import (
	"github.com/google/uuid"

	"github.com/voyagerhq/voyager/internal/constants"
)

// NewTaskID generates a unique task identifier.
func NewTaskID() string {
	return constants.TaskIDPrefix + uuid.NewString()
}

// NewStepID generates a unique step identifier.
func NewStepID() string {
	return constants.StepIDPrefix + uuid.NewString()
}

// NewArtifactID generates a unique artifact identifier.
func NewArtifactID() string {
	return constants.ArtifactIDPrefix + uuid.NewString()
}

// NewWorkflowRunID generates a unique workflow run identifier.
func NewWorkflowRunID() string {
	return constants.WorkflowRunIDPrefix + uuid.NewString()
}

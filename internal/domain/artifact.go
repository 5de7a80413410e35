package domain

import (
	"time"

	"github.com/voyagerhq/voyager/internal/constants"
)

// Artifact is a durable blob captured during task execution, attached to a
// (task, step) pair and uploaded asynchronously. URI points into the
// artifact storage backend once the upload is durable.
type Artifact struct {
	ID             string                 `json:"artifact_id"`
	TaskID         string                 `json:"task_id"`
	StepID         string                 `json:"step_id"`
	OrganizationID string                 `json:"organization_id,omitempty"`
	Type           constants.ArtifactType `json:"artifact_type"`
	URI            string                 `json:"uri,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
	ModifiedAt     time.Time              `json:"modified_at"`
}

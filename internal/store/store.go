// Package store implements task persistence for Voyager on SQLite.
//
// Every Step/Task mutation is durable before the engine's next decision
// uses it. The Database interface is the capability set the engine consumes;
// tests supply in-memory fakes.
package store

import (
	"context"

	"github.com/voyagerhq/voyager/internal/constants"
	"github.com/voyagerhq/voyager/internal/domain"
)

// TaskUpdate enumerates the mutable task fields. Nil pointer fields (and a
// nil ExtractedInformation / Errors) are left untouched.
type TaskUpdate struct {
	Status               *constants.TaskStatus
	ExtractedInformation any
	FailureReason        *string
	Errors               []domain.UserDefinedError
}

// StepUpdate enumerates the mutable step fields. Nil fields are left
// untouched.
type StepUpdate struct {
	Status     *constants.StepStatus
	Output     *domain.AgentStepOutput
	IsLast     *bool
	RetryIndex *int
}

// Database is the persistence capability set consumed by the engine.
// Implementations must be safe for concurrent use across tasks.
type Database interface {
	// CreateTask persists a new task and returns the stored copy.
	CreateTask(ctx context.Context, task *domain.Task) (*domain.Task, error)

	// GetTask returns a task by id, or ErrTaskNotFound.
	GetTask(ctx context.Context, taskID, organizationID string) (*domain.Task, error)

	// UpdateTask applies the update and returns the stored copy.
	// The caller is responsible for transition validation.
	UpdateTask(ctx context.Context, taskID, organizationID string, updates TaskUpdate) (*domain.Task, error)

	// CreateStep persists a new created step at (order, retryIndex).
	// (taskID, order, retryIndex) is unique.
	CreateStep(ctx context.Context, taskID, organizationID string, order, retryIndex int) (*domain.Step, error)

	// GetStep returns a step by id, or ErrStepNotFound.
	GetStep(ctx context.Context, taskID, stepID, organizationID string) (*domain.Step, error)

	// GetTaskSteps returns all steps of a task ordered by creation:
	// ascending (order, retry_index).
	GetTaskSteps(ctx context.Context, taskID, organizationID string) ([]*domain.Step, error)

	// UpdateStep applies the update and returns the stored copy.
	// The caller is responsible for transition validation.
	UpdateStep(ctx context.Context, taskID, stepID, organizationID string, updates StepUpdate) (*domain.Step, error)

	// CreateArtifact persists an artifact record.
	CreateArtifact(ctx context.Context, artifact *domain.Artifact) (*domain.Artifact, error)

	// UpdateArtifactURI records the durable location of an uploaded
	// artifact.
	UpdateArtifactURI(ctx context.Context, artifactID, organizationID, uri string) error

	// GetArtifact returns the newest artifact of the given type for a
	// (task, step) pair, or ErrArtifactNotFound.
	GetArtifact(ctx context.Context, taskID, stepID, organizationID string, artifactType constants.ArtifactType) (*domain.Artifact, error)
}

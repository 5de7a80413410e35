// Package domain defines the core data model for Voyager: tasks, steps,
// actions, scraped pages, artifacts and organizations.
//
// This file implements the two-level state machine. Task and Step are
// distinct finite-state machines; all transition validation lives here so
// that callers (the step recorder, the store) share a single source of
// truth.
//
// Import rules:
//   - CAN import: internal/constants, internal/errors, std lib
//   - MUST NOT import: internal/store, internal/engine, internal/browser
package domain

import (
	"fmt"

	"github.com/voyagerhq/voyager/internal/constants"
	voyagererrors "github.com/voyagerhq/voyager/internal/errors"
)

// ValidTaskTransitions defines all allowed transitions in the task lifecycle.
// Format: from_status -> []to_statuses
//
// The state machine is strictly monotone:
//
//	Created → Running
//	Running → Completed, Failed, Terminated
//
//nolint:gochecknoglobals // Read-only lookup table
var ValidTaskTransitions = map[constants.TaskStatus][]constants.TaskStatus{
	constants.TaskStatusCreated: {constants.TaskStatusRunning},
	constants.TaskStatusRunning: {
		constants.TaskStatusCompleted,
		constants.TaskStatusFailed,
		constants.TaskStatusTerminated,
	},
}

// ValidStepTransitions defines all allowed transitions in the step lifecycle.
//
//	Created → Running, Failed
//	Running → Completed, Failed
//
// Created → Failed lets a step whose move to Running was never recorded
// still be marked failed.
//
//nolint:gochecknoglobals // Read-only lookup table
var ValidStepTransitions = map[constants.StepStatus][]constants.StepStatus{
	constants.StepStatusCreated: {constants.StepStatusRunning, constants.StepStatusFailed},
	constants.StepStatusRunning: {constants.StepStatusCompleted, constants.StepStatusFailed},
}

// IsValidTaskTransition checks whether a task status change is allowed.
// Returns false for transitions out of terminal states or to the same state.
func IsValidTaskTransition(from, to constants.TaskStatus) bool {
	if from == to {
		return false
	}
	for _, target := range ValidTaskTransitions[from] {
		if target == to {
			return true
		}
	}
	return false
}

// IsTerminalTaskStatus returns true for states with no outgoing transitions:
// Completed, Failed, Terminated.
func IsTerminalTaskStatus(status constants.TaskStatus) bool {
	_, hasOutgoing := ValidTaskTransitions[status]
	return !hasOutgoing
}

// IsValidStepTransition checks whether a step status change is allowed.
func IsValidStepTransition(from, to constants.StepStatus) bool {
	if from == to {
		return false
	}
	for _, target := range ValidStepTransitions[from] {
		if target == to {
			return true
		}
	}
	return false
}

// IsFrozenStepStatus returns true for step states that admit no further
// mutation: Completed and Failed.
func IsFrozenStepStatus(status constants.StepStatus) bool {
	_, hasOutgoing := ValidStepTransitions[status]
	return !hasOutgoing
}

// ValidateTaskTransition returns a wrapped ErrInvalidTaskTransition when the
// change is not allowed by the task state machine.
func ValidateTaskTransition(from, to constants.TaskStatus) error {
	if !IsValidTaskTransition(from, to) {
		return fmt.Errorf("%w: cannot transition from %s to %s",
			voyagererrors.ErrInvalidTaskTransition, from, to)
	}
	return nil
}

// ValidateStepTransition returns a wrapped ErrInvalidStepTransition when the
// change is not allowed by the step state machine.
func ValidateStepTransition(from, to constants.StepStatus) error {
	if !IsValidStepTransition(from, to) {
		return fmt.Errorf("%w: cannot transition from %s to %s",
			voyagererrors.ErrInvalidStepTransition, from, to)
	}
	return nil
}

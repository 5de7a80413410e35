package domain

import (
	"fmt"
	"time"

	"github.com/voyagerhq/voyager/internal/constants"
	voyagererrors "github.com/voyagerhq/voyager/internal/errors"
)

// AgentStepOutput is the persisted output of one step: the actions the model
// proposed, the flat result sequence, the per-action result pairing, and any
// user-defined errors the model raised.
type AgentStepOutput struct {
	Actions           []Action           `json:"actions,omitempty"`
	ActionResults     []ActionResult     `json:"action_results,omitempty"`
	ActionsAndResults []ActionAndResults `json:"actions_and_results,omitempty"`
	Errors            []UserDefinedError `json:"errors,omitempty"`
}

// Step is one build/act/judge cycle of a task. Retries of the same position
// share Order and increment RetryIndex; (TaskID, Order, RetryIndex) is
// unique.
type Step struct {
	ID             string               `json:"step_id"`
	TaskID         string               `json:"task_id"`
	OrganizationID string               `json:"organization_id,omitempty"`
	Status         constants.StepStatus `json:"status"`
	Order          int                  `json:"order"`
	RetryIndex     int                  `json:"retry_index"`
	IsLast         bool                 `json:"is_last"`
	Output         *AgentStepOutput     `json:"output,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
	ModifiedAt     time.Time            `json:"modified_at"`
}

// IsGoalAchieved reports whether this step contains a COMPLETE action with a
// successful result.
func (s *Step) IsGoalAchieved() bool {
	if s.Status != constants.StepStatusCompleted || s.Output == nil {
		return false
	}
	for _, pair := range s.Output.ActionsAndResults {
		if pair.Action.Type != constants.ActionTypeComplete {
			continue
		}
		for _, result := range pair.Results {
			if result.Success {
				return true
			}
		}
	}
	return false
}

// IsTerminated reports whether this step contains a TERMINATE action,
// meaning the agent gave up with stated reasoning.
func (s *Step) IsTerminated() bool {
	if s.Status != constants.StepStatusCompleted || s.Output == nil {
		return false
	}
	for _, pair := range s.Output.ActionsAndResults {
		if pair.Action.Type == constants.ActionTypeTerminate {
			return true
		}
	}
	return false
}

// ValidateUpdate checks a proposed mutation against the step state machine.
// A frozen step (completed or failed) admits no mutation at all; a status
// change must follow ValidStepTransitions. Returns a wrapped
// ErrInvalidStepTransition otherwise. Nothing is written on failure.
func (s *Step) ValidateUpdate(status *constants.StepStatus, output *AgentStepOutput, isLast *bool) error {
	if IsFrozenStepStatus(s.Status) {
		if status != nil || output != nil {
			return fmt.Errorf("%w: step %s is %s and cannot be modified",
				voyagererrors.ErrInvalidStepTransition, s.ID, s.Status)
		}
		// is_last may still be stamped on a frozen step: the step policy
		// marks the concluding step after it has completed.
	}
	if status != nil {
		if err := ValidateStepTransition(s.Status, *status); err != nil {
			return err
		}
	}
	return nil
}

// DetailedAgentStepOutput is the in-memory working aggregate across one
// step. It carries everything the persisted AgentStepOutput drops: the
// scraped page, the rendered prompt and the raw LLM response.
type DetailedAgentStepOutput struct {
	ScrapedPage         *ScrapedPage
	ExtractActionPrompt string
	LLMResponse         map[string]any
	Actions             []Action
	ActionResults       []ActionResult
	ActionsAndResults   []ActionAndResults
	Errors              []UserDefinedError
}

// ToAgentStepOutput projects the working aggregate onto the persisted
// output shape.
func (o *DetailedAgentStepOutput) ToAgentStepOutput() *AgentStepOutput {
	if o == nil {
		return nil
	}
	return &AgentStepOutput{
		Actions:           o.Actions,
		ActionResults:     o.ActionResults,
		ActionsAndResults: o.ActionsAndResults,
		Errors:            o.Errors,
	}
}

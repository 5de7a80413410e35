package domain

import (
	"github.com/voyagerhq/voyager/internal/constants"
)

// SelectOption identifies the choice of a SELECT_OPTION action. Any one of
// the fields may be set; handlers try value, then label, then index.
type SelectOption struct {
	Value string `json:"value,omitempty"`
	Label string `json:"label,omitempty"`
	Index *int   `json:"index,omitempty"`
}

// Action is one atomic browser operation proposed by the LLM. It is a tagged
// union: Type selects the variant, and only that variant's fields are
// meaningful. Dispatch is a total match on Type (see internal/actions).
type Action struct {
	// Type is the variant tag. Parsing rejects unknown tags explicitly.
	Type constants.ActionType `json:"action_type"`

	// ElementID refers into the current ScrapedPage. Set on web-targeted
	// variants only (see IsWebAction).
	ElementID string `json:"element_id,omitempty"`

	// Text is the input for INPUT_TEXT.
	Text string `json:"text,omitempty"`

	// FileURL is the source for UPLOAD_FILE.
	FileURL string `json:"file_url,omitempty"`

	// Option is the choice for SELECT_OPTION.
	Option *SelectOption `json:"option,omitempty"`

	// IsChecked is the target state for CHECKBOX.
	IsChecked bool `json:"is_checked,omitempty"`

	// Seconds is the requested pause for WAIT. Zero means a default pause.
	Seconds float64 `json:"seconds,omitempty"`

	// Data carries the extraction payload proposed with COMPLETE.
	Data any `json:"data,omitempty"`

	// DataExtractionGoal echoes the task's extraction goal on COMPLETE.
	DataExtractionGoal string `json:"data_extraction_goal,omitempty"`

	// Reasoning is the model's stated rationale for the action.
	Reasoning string `json:"reasoning,omitempty"`
}

// IsWebAction reports whether the action targets a page element and
// therefore carries an ElementID.
func (a Action) IsWebAction() bool {
	switch a.Type {
	case constants.ActionTypeClick,
		constants.ActionTypeInputText,
		constants.ActionTypeUploadFile,
		constants.ActionTypeSelectOption,
		constants.ActionTypeCheckbox:
		return true
	default:
		return false
	}
}

// ActionResult is one outcome produced while handling an action. A handler
// may yield several results for a single action; the last one is its
// verdict.
type ActionResult struct {
	// Success reports whether this result represents a successful outcome.
	Success bool `json:"success"`

	// Data carries extracted information, set by COMPLETE handlers.
	Data any `json:"data,omitempty"`

	// ExceptionMessage describes the failure when Success is false.
	ExceptionMessage string `json:"exception_message,omitempty"`

	// JavascriptTriggered reports that the action fired page JavaScript
	// whose side effects may invalidate the remaining planned actions.
	JavascriptTriggered bool `json:"javascript_triggered"`

	// StepOrder and StepRetryNumber locate the result within the task.
	// Stamped by the executor before the result is recorded.
	StepOrder       int `json:"step_order"`
	StepRetryNumber int `json:"step_retry_number"`
}

// UserDefinedError is an error surfaced by the model against the task's
// error code mapping. Accumulated on the task, reported in the response
// payload; never affects task status.
type UserDefinedError struct {
	ErrorCode string `json:"error_code"`
	Reasoning string `json:"reasoning,omitempty"`
}

// ActionAndResults pairs an action with the ordered results of handling it.
// The executor pre-populates pairs with empty result lists so a crash still
// preserves the attempted action list.
type ActionAndResults struct {
	Action  Action         `json:"action"`
	Results []ActionResult `json:"results"`
}

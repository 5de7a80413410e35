// Package actions parses LLM-proposed actions and dispatches them to
// registered handlers.
//
// Handlers are registered into a Registry at initialization; dispatch is a
// total match on the action type tag, and parsing rejects unknown tags
// explicitly.
package actions

import (
	"encoding/json"
	"fmt"

	"github.com/voyagerhq/voyager/internal/constants"
	"github.com/voyagerhq/voyager/internal/domain"
	voyagererrors "github.com/voyagerhq/voyager/internal/errors"
)

// knownActionTypes is the closed set of action variants.
//
//nolint:gochecknoglobals // Read-only lookup table
var knownActionTypes = map[constants.ActionType]bool{
	constants.ActionTypeClick:        true,
	constants.ActionTypeInputText:    true,
	constants.ActionTypeUploadFile:   true,
	constants.ActionTypeSelectOption: true,
	constants.ActionTypeCheckbox:     true,
	constants.ActionTypeWait:         true,
	constants.ActionTypeNullAction:   true,
	constants.ActionTypeSolveCaptcha: true,
	constants.ActionTypeTerminate:    true,
	constants.ActionTypeComplete:     true,
}

// Parse decodes raw action objects from an LLM response into the typed
// union. An unknown or missing action_type tag fails the whole parse with a
// wrapped ErrUnknownActionType.
func Parse(raw []json.RawMessage) ([]domain.Action, error) {
	parsed := make([]domain.Action, 0, len(raw))
	for i, message := range raw {
		var action domain.Action
		if err := json.Unmarshal(message, &action); err != nil {
			return nil, fmt.Errorf("failed to decode action %d: %w", i, err)
		}
		if !knownActionTypes[action.Type] {
			return nil, fmt.Errorf("%w: %q (action %d)",
				voyagererrors.ErrUnknownActionType, action.Type, i)
		}
		parsed = append(parsed, action)
	}
	return parsed, nil
}

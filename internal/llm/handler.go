// Package llm defines the contract between the engine and its LLM backend.
//
// The concrete client (provider, auth, retries) is an external collaborator;
// the engine only depends on Handler and on the response shape helpers here.
package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/voyagerhq/voyager/internal/domain"
)

// Handler issues one LLM call per step: the rendered extract-action prompt
// plus the page screenshots, returning the decoded JSON object the model
// produced. The response must contain an "actions" array.
type Handler interface {
	Call(ctx context.Context, prompt string, step *domain.Step, screenshots [][]byte) (map[string]any, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, prompt string, step *domain.Step, screenshots [][]byte) (map[string]any, error)

// Call implements Handler.
func (f HandlerFunc) Call(ctx context.Context, prompt string, step *domain.Step, screenshots [][]byte) (map[string]any, error) {
	return f(ctx, prompt, step, screenshots)
}

// ResponseActions extracts the raw action objects from a decoded LLM
// response, re-encoding each element so callers can unmarshal it into the
// typed action union.
func ResponseActions(response map[string]any) ([]json.RawMessage, error) {
	value, ok := response["actions"]
	if !ok {
		return nil, fmt.Errorf("llm response has no actions field")
	}
	list, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("llm response actions is not an array")
	}
	raw := make([]json.RawMessage, 0, len(list))
	for i, item := range list {
		encoded, err := json.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("failed to re-encode action %d: %w", i, err)
		}
		raw = append(raw, encoded)
	}
	return raw, nil
}

// ResponseErrors extracts the user-defined errors the model raised, if any.
// A missing or malformed errors field yields no errors.
func ResponseErrors(response map[string]any) []domain.UserDefinedError {
	value, ok := response["errors"]
	if !ok {
		return nil
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil
	}
	var errors []domain.UserDefinedError
	if err := json.Unmarshal(encoded, &errors); err != nil {
		return nil
	}
	return errors
}

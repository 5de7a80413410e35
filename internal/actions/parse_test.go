package actions

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyagerhq/voyager/internal/constants"
	voyagererrors "github.com/voyagerhq/voyager/internal/errors"
)

func rawActions(t *testing.T, objects ...string) []json.RawMessage {
	t.Helper()
	raw := make([]json.RawMessage, 0, len(objects))
	for _, object := range objects {
		raw = append(raw, json.RawMessage(object))
	}
	return raw
}

func TestParse_TypedVariants(t *testing.T) {
	parsed, err := Parse(rawActions(t,
		`{"action_type": "CLICK", "element_id": "e1", "reasoning": "open the form"}`,
		`{"action_type": "INPUT_TEXT", "element_id": "e2", "text": "alice"}`,
		`{"action_type": "SELECT_OPTION", "element_id": "e3", "option": {"label": "Canada"}}`,
		`{"action_type": "COMPLETE", "data": {"name": "Alice"}}`,
		`{"action_type": "TERMINATE", "reasoning": "blocked by captcha"}`,
	))
	require.NoError(t, err)
	require.Len(t, parsed, 5)

	assert.Equal(t, constants.ActionTypeClick, parsed[0].Type)
	assert.Equal(t, "e1", parsed[0].ElementID)
	assert.Equal(t, "open the form", parsed[0].Reasoning)

	assert.Equal(t, constants.ActionTypeInputText, parsed[1].Type)
	assert.Equal(t, "alice", parsed[1].Text)

	require.NotNil(t, parsed[2].Option)
	assert.Equal(t, "Canada", parsed[2].Option.Label)

	assert.Equal(t, map[string]any{"name": "Alice"}, parsed[3].Data)
	assert.Equal(t, "blocked by captcha", parsed[4].Reasoning)
}

func TestParse_RejectsUnknownTag(t *testing.T) {
	_, err := Parse(rawActions(t,
		`{"action_type": "CLICK", "element_id": "e1"}`,
		`{"action_type": "TELEPORT", "element_id": "e2"}`,
	))
	require.Error(t, err)
	assert.ErrorIs(t, err, voyagererrors.ErrUnknownActionType)
}

func TestParse_RejectsMissingTag(t *testing.T) {
	_, err := Parse(rawActions(t, `{"element_id": "e1"}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, voyagererrors.ErrUnknownActionType)
}

func TestParse_RejectsMalformedJSON(t *testing.T) {
	_, err := Parse(rawActions(t, `{"action_type": "CLICK"`))
	require.Error(t, err)
}

func TestParse_EmptyList(t *testing.T) {
	parsed, err := Parse(nil)
	require.NoError(t, err)
	assert.Empty(t, parsed)
}

package actions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyagerhq/voyager/internal/browser"
	"github.com/voyagerhq/voyager/internal/constants"
	"github.com/voyagerhq/voyager/internal/domain"
	voyagererrors "github.com/voyagerhq/voyager/internal/errors"
)

func TestRegistryDispatch(t *testing.T) {
	registry := NewRegistry()
	var handled domain.Action
	registry.Register(constants.ActionTypeClick, func(_ context.Context, _ *domain.ScrapedPage, _ *domain.Task, _ *domain.Step, _ browser.Session, action domain.Action) ([]domain.ActionResult, error) {
		handled = action
		return []domain.ActionResult{{Success: true}}, nil
	})

	action := domain.Action{Type: constants.ActionTypeClick, ElementID: "e1"}
	results, err := registry.Handle(context.Background(), &domain.ScrapedPage{}, &domain.Task{}, &domain.Step{}, nil, action)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
	assert.Equal(t, "e1", handled.ElementID)
}

func TestRegistryUnregisteredType(t *testing.T) {
	registry := NewRegistry()
	_, err := registry.Handle(context.Background(), &domain.ScrapedPage{}, &domain.Task{}, &domain.Step{}, nil,
		domain.Action{Type: constants.ActionTypeClick})
	require.Error(t, err)
	assert.ErrorIs(t, err, voyagererrors.ErrNoActionHandler)
}

// TestDefaultRegistryCoversAllVariants verifies the dispatch is total over
// the action union.
func TestDefaultRegistryCoversAllVariants(t *testing.T) {
	registry := NewDefaultRegistry()
	allTypes := []constants.ActionType{
		constants.ActionTypeClick,
		constants.ActionTypeInputText,
		constants.ActionTypeUploadFile,
		constants.ActionTypeSelectOption,
		constants.ActionTypeCheckbox,
		constants.ActionTypeWait,
		constants.ActionTypeNullAction,
		constants.ActionTypeSolveCaptcha,
		constants.ActionTypeTerminate,
		constants.ActionTypeComplete,
	}
	for _, actionType := range allTypes {
		_, registered := registry.handlers[actionType]
		assert.True(t, registered, "no handler for %s", actionType)
	}
}

func TestCompleteHandlerCarriesData(t *testing.T) {
	registry := NewDefaultRegistry()
	results, err := registry.Handle(context.Background(), &domain.ScrapedPage{}, &domain.Task{}, &domain.Step{}, nil,
		domain.Action{Type: constants.ActionTypeComplete, Data: map[string]any{"name": "Alice"}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
	assert.Equal(t, map[string]any{"name": "Alice"}, results[0].Data)
}

// TestWaitHandlerReportsNonSuccess verifies WAIT's verdict is non-success,
// which routes a wait-only step into the retry path.
func TestWaitHandlerReportsNonSuccess(t *testing.T) {
	registry := NewDefaultRegistry()
	results, err := registry.Handle(context.Background(), &domain.ScrapedPage{}, &domain.Task{}, &domain.Step{}, nil,
		domain.Action{Type: constants.ActionTypeWait, Seconds: 0.01})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
}

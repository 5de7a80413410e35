package actions

import (
	"context"
	"fmt"

	"github.com/voyagerhq/voyager/internal/browser"
	"github.com/voyagerhq/voyager/internal/constants"
	"github.com/voyagerhq/voyager/internal/domain"
	voyagererrors "github.com/voyagerhq/voyager/internal/errors"
)

// HandlerFunc executes one action against the browser, returning the ordered
// results. The last result is the action's verdict.
type HandlerFunc func(ctx context.Context, page *domain.ScrapedPage, task *domain.Task, step *domain.Step, state browser.Session, action domain.Action) ([]domain.ActionResult, error)

// Registry maps action types to their handlers. It is populated at
// initialization; dispatch on an unregistered type is an error, which keeps
// the match over the union total and explicit.
type Registry struct {
	handlers map[constants.ActionType]HandlerFunc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[constants.ActionType]HandlerFunc)}
}

// Register binds a handler to an action type, replacing any previous one.
func (r *Registry) Register(actionType constants.ActionType, handler HandlerFunc) {
	r.handlers[actionType] = handler
}

// Handle dispatches the action to its registered handler.
func (r *Registry) Handle(ctx context.Context, page *domain.ScrapedPage, task *domain.Task, step *domain.Step, state browser.Session, action domain.Action) ([]domain.ActionResult, error) {
	handler, ok := r.handlers[action.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %s", voyagererrors.ErrNoActionHandler, action.Type)
	}
	return handler(ctx, page, task, step, state, action)
}

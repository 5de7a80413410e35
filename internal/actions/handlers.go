package actions

import (
	"context"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/voyagerhq/voyager/internal/browser"
	"github.com/voyagerhq/voyager/internal/constants"
	"github.com/voyagerhq/voyager/internal/domain"
	voyagererrors "github.com/voyagerhq/voyager/internal/errors"
)

// defaultWaitSeconds is the pause for a WAIT action with no duration.
const defaultWaitSeconds = 5

// NewDefaultRegistry returns a registry with the built-in playwright-backed
// handlers for every action variant.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(constants.ActionTypeClick, handleClick)
	r.Register(constants.ActionTypeInputText, handleInputText)
	r.Register(constants.ActionTypeUploadFile, handleUploadFile)
	r.Register(constants.ActionTypeSelectOption, handleSelectOption)
	r.Register(constants.ActionTypeCheckbox, handleCheckbox)
	r.Register(constants.ActionTypeWait, handleWait)
	r.Register(constants.ActionTypeNullAction, handleNullAction)
	r.Register(constants.ActionTypeSolveCaptcha, handleSolveCaptcha)
	r.Register(constants.ActionTypeTerminate, handleTerminate)
	r.Register(constants.ActionTypeComplete, handleComplete)
	return r
}

// locate resolves an action's element id through the scraped page's
// id→xpath map into a playwright locator.
func locate(page *domain.ScrapedPage, state browser.Session, elementID string) (playwright.Locator, error) {
	if state.Page() == nil {
		return nil, voyagererrors.ErrBrowserStateMissingPage
	}
	xpath, ok := page.XPathForElement(elementID)
	if !ok {
		return nil, fmt.Errorf("element %q is not on the scraped page", elementID)
	}
	return state.Page().Locator("xpath=" + xpath).First(), nil
}

// failure builds the single failed result for an element-level error.
func failure(err error) []domain.ActionResult {
	return []domain.ActionResult{{Success: false, ExceptionMessage: err.Error()}}
}

// success builds a single successful result.
func success() []domain.ActionResult {
	return []domain.ActionResult{{Success: true}}
}

func handleClick(ctx context.Context, page *domain.ScrapedPage, _ *domain.Task, _ *domain.Step, state browser.Session, action domain.Action) ([]domain.ActionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	locator, err := locate(page, state, action.ElementID)
	if err != nil {
		return failure(err), nil
	}
	if err := locator.ScrollIntoViewIfNeeded(); err != nil {
		// Click may still land; playwright scrolls on click as well.
		_ = err
	}
	if err := locator.Click(); err != nil {
		return failure(fmt.Errorf("playwright: %w", err)), nil
	}
	return success(), nil
}

func handleInputText(ctx context.Context, page *domain.ScrapedPage, _ *domain.Task, _ *domain.Step, state browser.Session, action domain.Action) ([]domain.ActionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	locator, err := locate(page, state, action.ElementID)
	if err != nil {
		return failure(err), nil
	}
	if err := locator.Fill(action.Text); err != nil {
		return failure(fmt.Errorf("playwright: %w", err)), nil
	}
	return success(), nil
}

func handleUploadFile(ctx context.Context, page *domain.ScrapedPage, _ *domain.Task, _ *domain.Step, state browser.Session, action domain.Action) ([]domain.ActionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	locator, err := locate(page, state, action.ElementID)
	if err != nil {
		return failure(err), nil
	}
	if err := locator.SetInputFiles(action.FileURL); err != nil {
		return failure(fmt.Errorf("playwright: %w", err)), nil
	}
	return success(), nil
}

func handleSelectOption(ctx context.Context, page *domain.ScrapedPage, _ *domain.Task, _ *domain.Step, state browser.Session, action domain.Action) ([]domain.ActionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	locator, err := locate(page, state, action.ElementID)
	if err != nil {
		return failure(err), nil
	}
	values := playwright.SelectOptionValues{}
	switch {
	case action.Option == nil:
		return failure(fmt.Errorf("select_option action has no option")), nil
	case action.Option.Value != "":
		values.Values = &[]string{action.Option.Value}
	case action.Option.Label != "":
		values.Labels = &[]string{action.Option.Label}
	case action.Option.Index != nil:
		values.Indexes = &[]int{*action.Option.Index}
	default:
		return failure(fmt.Errorf("select_option action has an empty option")), nil
	}
	if _, err := locator.SelectOption(values); err != nil {
		return failure(fmt.Errorf("playwright: %w", err)), nil
	}
	return success(), nil
}

func handleCheckbox(ctx context.Context, page *domain.ScrapedPage, _ *domain.Task, _ *domain.Step, state browser.Session, action domain.Action) ([]domain.ActionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	locator, err := locate(page, state, action.ElementID)
	if err != nil {
		return failure(err), nil
	}
	if err := locator.SetChecked(action.IsChecked); err != nil {
		return failure(fmt.Errorf("playwright: %w", err)), nil
	}
	return success(), nil
}

// handleWait pauses and reports non-success: WAIT is the model's "nothing to
// do yet" signal, and treating it as a failure routes the step into the
// retry path.
func handleWait(ctx context.Context, _ *domain.ScrapedPage, _ *domain.Task, _ *domain.Step, _ browser.Session, action domain.Action) ([]domain.ActionResult, error) {
	seconds := action.Seconds
	if seconds <= 0 {
		seconds = defaultWaitSeconds
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(time.Duration(seconds * float64(time.Second))):
	}
	return []domain.ActionResult{{
		Success:          false,
		ExceptionMessage: "waited for the page with nothing to do",
	}}, nil
}

func handleNullAction(ctx context.Context, _ *domain.ScrapedPage, _ *domain.Task, _ *domain.Step, _ browser.Session, _ domain.Action) ([]domain.ActionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return success(), nil
}

// handleSolveCaptcha waits out the captcha challenge. Actual solving is
// delegated to the proxy layer or a human; the handler just gives the page
// time to settle.
func handleSolveCaptcha(ctx context.Context, _ *domain.ScrapedPage, _ *domain.Task, _ *domain.Step, _ browser.Session, _ domain.Action) ([]domain.ActionResult, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(30 * time.Second):
	}
	return success(), nil
}

func handleTerminate(ctx context.Context, _ *domain.ScrapedPage, _ *domain.Task, _ *domain.Step, _ browser.Session, _ domain.Action) ([]domain.ActionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return success(), nil
}

// handleComplete succeeds with the extraction payload the model attached to
// the action.
func handleComplete(ctx context.Context, _ *domain.ScrapedPage, _ *domain.Task, _ *domain.Step, _ browser.Session, action domain.Action) ([]domain.ActionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []domain.ActionResult{{Success: true, Data: action.Data}}, nil
}

// Package browser owns the playwright lifecycle for Voyager: one browser
// process per engine, one browser context per task (or per workflow run,
// shared sequentially across its task blocks).
package browser

import (
	"context"
	"fmt"

	"github.com/playwright-community/playwright-go"

	voyagererrors "github.com/voyagerhq/voyager/internal/errors"
)

// Artifacts tracks the recording outputs attached to a browser state.
type Artifacts struct {
	// VideoArtifactID is the artifact registered for the session recording.
	// Set once by the task driver, then progressively refreshed.
	VideoArtifactID string

	// HARPath is the file the context records its HAR into.
	HARPath string

	// TracesDir is the directory traces are exported to on cleanup.
	TracesDir string
}

// Session is the browser surface the engine, scraper and action handlers
// consume. *State is the playwright-backed implementation; tests supply
// fakes.
type Session interface {
	// Page returns the raw playwright page, or nil when none is open.
	Page() playwright.Page

	// HasPage reports whether the session has an open page.
	HasPage() bool

	// CurrentURL returns the page URL, or an empty string without a page.
	CurrentURL() string

	// PageContent returns the page's full HTML.
	PageContent(ctx context.Context) (string, error)

	// TakeScreenshot captures a PNG screenshot of the page.
	TakeScreenshot(ctx context.Context, fullPage bool) ([]byte, error)

	// EnsurePage opens a page when none is open.
	EnsurePage(ctx context.Context) error

	// VideoArtifactID returns the registered recording artifact id, if any.
	VideoArtifactID() string

	// SetVideoArtifactID registers the recording artifact for the session.
	SetVideoArtifactID(id string)

	// HARPath returns the HAR capture file, if recording.
	HARPath() string

	// TracesDir returns the trace export directory, if tracing.
	TracesDir() string
}

// State is the live browser handle shared with the engine for the duration
// of a task. It is owned by the Manager and must not be used concurrently.
type State struct {
	browserContext playwright.BrowserContext
	page           playwright.Page
	artifacts      Artifacts
}

// Compile-time interface check.
var _ Session = (*State)(nil)

// NewState builds a state over an existing context and page. Used by the
// Manager; tests may construct a zero State whose page-dependent methods
// fail with ErrBrowserStateMissingPage.
func NewState(browserContext playwright.BrowserContext, page playwright.Page, artifacts Artifacts) *State {
	return &State{
		browserContext: browserContext,
		page:           page,
		artifacts:      artifacts,
	}
}

// Page returns the current page, or nil.
func (s *State) Page() playwright.Page {
	return s.page
}

// BrowserContext returns the underlying context, or nil.
func (s *State) BrowserContext() playwright.BrowserContext {
	return s.browserContext
}

// HasPage reports whether the state has an open page.
func (s *State) HasPage() bool {
	return s.page != nil
}

// CurrentURL returns the page URL, or an empty string without a page.
func (s *State) CurrentURL() string {
	if s.page == nil {
		return ""
	}
	return s.page.URL()
}

// PageContent returns the page's full HTML.
func (s *State) PageContent(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.page == nil {
		return "", voyagererrors.ErrBrowserStateMissingPage
	}
	content, err := s.page.Content()
	if err != nil {
		return "", fmt.Errorf("playwright: %w", err)
	}
	return content, nil
}

// TakeScreenshot captures a PNG screenshot of the page.
func (s *State) TakeScreenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.page == nil {
		return nil, voyagererrors.ErrBrowserStateMissingPage
	}
	data, err := s.page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(fullPage),
	})
	if err != nil {
		return nil, fmt.Errorf("playwright: %w", err)
	}
	return data, nil
}

// EnsurePage opens a page on the context when none is open.
func (s *State) EnsurePage(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.page != nil {
		return nil
	}
	if s.browserContext == nil {
		return voyagererrors.ErrBrowserStateMissingPage
	}
	page, err := s.browserContext.NewPage()
	if err != nil {
		return fmt.Errorf("playwright: %w", err)
	}
	s.page = page
	return nil
}

// VideoArtifactID returns the registered recording artifact id, if any.
func (s *State) VideoArtifactID() string {
	return s.artifacts.VideoArtifactID
}

// SetVideoArtifactID registers the recording artifact for this state.
func (s *State) SetVideoArtifactID(id string) {
	s.artifacts.VideoArtifactID = id
}

// HARPath returns the HAR capture file of this state, if recording.
func (s *State) HARPath() string {
	return s.artifacts.HARPath
}

// TracesDir returns the trace export directory of this state, if tracing.
func (s *State) TracesDir() string {
	return s.artifacts.TracesDir
}

package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/playwright-community/playwright-go"
	"github.com/rs/zerolog"

	"github.com/voyagerhq/voyager/internal/config"
	"github.com/voyagerhq/voyager/internal/constants"
	"github.com/voyagerhq/voyager/internal/domain"
)

// Manager launches and tracks browser states. A task owns an exclusive
// state; a workflow run shares one state sequentially across its task
// blocks.
type Manager struct {
	settings config.BrowserSettings
	logger   zerolog.Logger

	mu            sync.Mutex
	pw            *playwright.Playwright
	browser       playwright.Browser
	taskStates    map[string]*State
	workflowState map[string]*State
}

// NewManager creates a browser manager. The browser process is launched
// lazily on first use.
func NewManager(settings config.BrowserSettings, logger zerolog.Logger) *Manager {
	return &Manager{
		settings:      settings,
		logger:        logger,
		taskStates:    make(map[string]*State),
		workflowState: make(map[string]*State),
	}
}

// GetOrCreateForTask returns the task's browser state, creating it (and
// navigating to the task URL) on first use.
func (m *Manager) GetOrCreateForTask(ctx context.Context, task *domain.Task) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if state, ok := m.taskStates[task.ID]; ok {
		return state, nil
	}
	state, err := m.newState(ctx, task.ID, task.URL)
	if err != nil {
		return nil, err
	}
	m.taskStates[task.ID] = state
	return state, nil
}

// GetOrCreateForWorkflowRun returns the run's shared browser state. On
// first use the state is created and, when url is non-empty, navigated
// there; subsequent task blocks inherit whatever page the previous block
// left behind.
func (m *Manager) GetOrCreateForWorkflowRun(ctx context.Context, run *domain.WorkflowRun, url string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if state, ok := m.workflowState[run.ID]; ok {
		if url != "" && state.page != nil {
			if _, err := state.page.Goto(url, playwright.PageGotoOptions{
				WaitUntil: playwright.WaitUntilStateLoad,
				Timeout:   playwright.Float(float64(m.settings.ActionTimeout.Milliseconds())),
			}); err != nil {
				return nil, fmt.Errorf("playwright: %w", err)
			}
		}
		return state, nil
	}
	state, err := m.newState(ctx, run.ID, url)
	if err != nil {
		return nil, err
	}
	m.workflowState[run.ID] = state
	return state, nil
}

// GetVideoData reads the session recording captured so far. The recording
// file is only guaranteed complete after the context closes; earlier reads
// may fail and are treated as best-effort by callers.
func (m *Manager) GetVideoData(ctx context.Context, taskID string, state Session) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if state == nil || state.Page() == nil {
		return nil, fmt.Errorf("no page to read video from for task %s", taskID)
	}
	video := state.Page().Video()
	if video == nil {
		return nil, fmt.Errorf("no video recording for task %s", taskID)
	}
	path, err := video.Path()
	if err != nil {
		return nil, fmt.Errorf("playwright: %w", err)
	}
	data, err := os.ReadFile(path) //#nosec G304 -- path produced by playwright
	if err != nil {
		return nil, fmt.Errorf("failed to read video file: %w", err)
	}
	return data, nil
}

// GetHARData reads the HAR capture of the state. HAR files are flushed on
// context close.
func (m *Manager) GetHARData(ctx context.Context, taskID string, state Session) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if state == nil || state.HARPath() == "" {
		return nil, fmt.Errorf("no har capture for task %s", taskID)
	}
	data, err := os.ReadFile(state.HARPath()) //#nosec G304 -- path constructed internally
	if err != nil {
		return nil, fmt.Errorf("failed to read har file: %w", err)
	}
	return data, nil
}

// CleanupForTask tears down the task's browser state. When
// closeOnCompletion is true the trace is exported and the context closed.
// The state is returned so callers can collect final recordings; nil when
// the task had no state.
func (m *Manager) CleanupForTask(ctx context.Context, taskID string, closeOnCompletion bool) (Session, error) {
	m.mu.Lock()
	state, ok := m.taskStates[taskID]
	if ok {
		delete(m.taskStates, taskID)
	}
	m.mu.Unlock()

	if !ok {
		return nil, nil
	}
	if !closeOnCompletion {
		return state, nil
	}
	if err := ctx.Err(); err != nil {
		return state, err
	}

	if state.browserContext != nil {
		if state.artifacts.TracesDir != "" {
			tracePath := filepath.Join(state.artifacts.TracesDir, taskID+".zip")
			if err := state.browserContext.Tracing().Stop(tracePath); err != nil {
				m.logger.Warn().Err(err).Str("task_id", taskID).Msg("failed to export trace")
			}
		}
		if err := state.browserContext.Close(); err != nil {
			m.logger.Warn().Err(err).Str("task_id", taskID).Msg("failed to close browser context")
		}
	}
	return state, nil
}

// Close shuts down the browser process and the playwright driver.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.browser != nil {
		_ = m.browser.Close()
		m.browser = nil
	}
	if m.pw != nil {
		err := m.pw.Stop()
		m.pw = nil
		return err
	}
	return nil
}

// newState launches a recording browser context and opens its first page.
// Caller holds m.mu.
func (m *Manager) newState(ctx context.Context, ownerID, url string) (*State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := m.ensureBrowser(); err != nil {
		return nil, err
	}

	opts := playwright.BrowserNewContextOptions{
		IgnoreHttpsErrors: playwright.Bool(true),
	}
	artifacts := Artifacts{TracesDir: m.settings.TracesDir}
	if m.settings.VideoPath != "" {
		opts.RecordVideo = &playwright.RecordVideo{
			Dir: filepath.Join(m.settings.VideoPath, ownerID),
		}
	}
	if m.settings.HARPath != "" {
		if err := os.MkdirAll(m.settings.HARPath, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create har directory: %w", err)
		}
		artifacts.HARPath = filepath.Join(m.settings.HARPath, ownerID+".har")
		opts.RecordHarPath = playwright.String(artifacts.HARPath)
	}

	browserContext, err := m.browser.NewContext(opts)
	if err != nil {
		return nil, fmt.Errorf("playwright: new context: %w", err)
	}
	if m.settings.TracesDir != "" {
		if err := browserContext.Tracing().Start(playwright.TracingStartOptions{
			Screenshots: playwright.Bool(true),
			Snapshots:   playwright.Bool(true),
		}); err != nil {
			m.logger.Warn().Err(err).Msg("failed to start tracing")
			artifacts.TracesDir = ""
		}
	}

	page, err := browserContext.NewPage()
	if err != nil {
		_ = browserContext.Close()
		return nil, fmt.Errorf("playwright: new page: %w", err)
	}
	page.SetDefaultTimeout(float64(m.settings.ActionTimeout.Milliseconds()))

	if url != "" {
		if _, err := page.Goto(url, playwright.PageGotoOptions{
			WaitUntil: playwright.WaitUntilStateLoad,
		}); err != nil {
			_ = browserContext.Close()
			return nil, fmt.Errorf("playwright: goto %s: %w", url, err)
		}
	}

	return NewState(browserContext, page, artifacts), nil
}

// ensureBrowser starts playwright and launches the configured browser
// engine once. Caller holds m.mu.
func (m *Manager) ensureBrowser() error {
	if m.browser != nil {
		return nil
	}
	if m.pw == nil {
		pw, err := playwright.Run()
		if err != nil {
			return fmt.Errorf("start playwright: %w", err)
		}
		m.pw = pw
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(m.settings.Headless),
		Args: []string{
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	}

	var browserType playwright.BrowserType
	switch m.settings.Type {
	case constants.BrowserTypeFirefox:
		browserType = m.pw.Firefox
		launchOpts.Args = nil
	default:
		browserType = m.pw.Chromium
	}

	browser, err := browserType.Launch(launchOpts)
	if err != nil {
		return fmt.Errorf("launch %s: %w", m.settings.Type, err)
	}
	m.browser = browser
	return nil
}

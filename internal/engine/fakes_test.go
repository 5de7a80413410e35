package engine

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/voyagerhq/voyager/internal/browser"
	"github.com/voyagerhq/voyager/internal/config"
	"github.com/voyagerhq/voyager/internal/constants"
	"github.com/voyagerhq/voyager/internal/domain"
	voyagererrors "github.com/voyagerhq/voyager/internal/errors"
	"github.com/voyagerhq/voyager/internal/logging"
	"github.com/voyagerhq/voyager/internal/store"
)

// fakeDB is an in-memory store.Database.
type fakeDB struct {
	mu          sync.Mutex
	tasks       map[string]*domain.Task
	steps       map[string]*domain.Step
	artifacts   []*domain.Artifact
	stepWrites  int
	taskWrites  int
	failCreates bool
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		tasks: make(map[string]*domain.Task),
		steps: make(map[string]*domain.Step),
	}
}

func copyTask(task *domain.Task) *domain.Task {
	dup := *task
	return &dup
}

func copyStep(step *domain.Step) *domain.Step {
	dup := *step
	return &dup
}

func (db *fakeDB) CreateTask(_ context.Context, task *domain.Task) (*domain.Task, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	task.CreatedAt = time.Now().UTC()
	db.tasks[task.ID] = copyTask(task)
	return copyTask(task), nil
}

func (db *fakeDB) GetTask(_ context.Context, taskID, _ string) (*domain.Task, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	task, ok := db.tasks[taskID]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", taskID, voyagererrors.ErrTaskNotFound)
	}
	return copyTask(task), nil
}

func (db *fakeDB) UpdateTask(_ context.Context, taskID, _ string, updates store.TaskUpdate) (*domain.Task, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	task, ok := db.tasks[taskID]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", taskID, voyagererrors.ErrTaskNotFound)
	}
	db.taskWrites++
	if updates.Status != nil {
		task.Status = *updates.Status
	}
	if updates.ExtractedInformation != nil {
		task.ExtractedInformation = updates.ExtractedInformation
	}
	if updates.FailureReason != nil {
		task.FailureReason = *updates.FailureReason
	}
	if updates.Errors != nil {
		task.Errors = updates.Errors
	}
	return copyTask(task), nil
}

func (db *fakeDB) CreateStep(_ context.Context, taskID, organizationID string, order, retryIndex int) (*domain.Step, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.failCreates {
		return nil, fmt.Errorf("db unavailable")
	}
	for _, existing := range db.steps {
		if existing.TaskID == taskID && existing.Order == order && existing.RetryIndex == retryIndex {
			return nil, fmt.Errorf("step (%s, %d, %d) already exists", taskID, order, retryIndex)
		}
	}
	step := &domain.Step{
		ID:             domain.NewStepID(),
		TaskID:         taskID,
		OrganizationID: organizationID,
		Status:         constants.StepStatusCreated,
		Order:          order,
		RetryIndex:     retryIndex,
		CreatedAt:      time.Now().UTC(),
	}
	db.steps[step.ID] = copyStep(step)
	return copyStep(step), nil
}

func (db *fakeDB) GetStep(_ context.Context, taskID, stepID, _ string) (*domain.Step, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	step, ok := db.steps[stepID]
	if !ok || step.TaskID != taskID {
		return nil, fmt.Errorf("step %s: %w", stepID, voyagererrors.ErrStepNotFound)
	}
	return copyStep(step), nil
}

func (db *fakeDB) GetTaskSteps(_ context.Context, taskID, _ string) ([]*domain.Step, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	var steps []*domain.Step
	for _, step := range db.steps {
		if step.TaskID == taskID {
			steps = append(steps, copyStep(step))
		}
	}
	sort.Slice(steps, func(i, j int) bool {
		if steps[i].Order != steps[j].Order {
			return steps[i].Order < steps[j].Order
		}
		return steps[i].RetryIndex < steps[j].RetryIndex
	})
	return steps, nil
}

func (db *fakeDB) UpdateStep(_ context.Context, taskID, stepID, _ string, updates store.StepUpdate) (*domain.Step, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	step, ok := db.steps[stepID]
	if !ok || step.TaskID != taskID {
		return nil, fmt.Errorf("step %s: %w", stepID, voyagererrors.ErrStepNotFound)
	}
	db.stepWrites++
	if updates.Status != nil {
		step.Status = *updates.Status
	}
	if updates.Output != nil {
		step.Output = updates.Output
	}
	if updates.IsLast != nil {
		step.IsLast = *updates.IsLast
	}
	if updates.RetryIndex != nil {
		step.RetryIndex = *updates.RetryIndex
	}
	return copyStep(step), nil
}

func (db *fakeDB) CreateArtifact(_ context.Context, artifact *domain.Artifact) (*domain.Artifact, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	artifact.CreatedAt = time.Now().UTC()
	db.artifacts = append(db.artifacts, artifact)
	return artifact, nil
}

func (db *fakeDB) UpdateArtifactURI(_ context.Context, artifactID, _, uri string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, artifact := range db.artifacts {
		if artifact.ID == artifactID {
			artifact.URI = uri
			return nil
		}
	}
	return voyagererrors.ErrArtifactNotFound
}

func (db *fakeDB) GetArtifact(_ context.Context, taskID, stepID, _ string, artifactType constants.ArtifactType) (*domain.Artifact, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for i := len(db.artifacts) - 1; i >= 0; i-- {
		artifact := db.artifacts[i]
		if artifact.TaskID == taskID && artifact.StepID == stepID && artifact.Type == artifactType {
			return artifact, nil
		}
	}
	return nil, voyagererrors.ErrArtifactNotFound
}

// fakeSession is an in-memory browser.Session.
type fakeSession struct {
	url             string
	html            string
	screenshotErr   error
	videoArtifactID string
	tracesDir       string
}

func (s *fakeSession) Page() playwright.Page { return nil }
func (s *fakeSession) HasPage() bool         { return true }
func (s *fakeSession) CurrentURL() string    { return s.url }
func (s *fakeSession) PageContent(context.Context) (string, error) {
	return s.html, nil
}
func (s *fakeSession) TakeScreenshot(context.Context, bool) ([]byte, error) {
	if s.screenshotErr != nil {
		return nil, s.screenshotErr
	}
	return []byte("png"), nil
}
func (s *fakeSession) EnsurePage(context.Context) error { return nil }
func (s *fakeSession) VideoArtifactID() string          { return s.videoArtifactID }
func (s *fakeSession) SetVideoArtifactID(id string)     { s.videoArtifactID = id }
func (s *fakeSession) HARPath() string                  { return "" }
func (s *fakeSession) TracesDir() string                { return s.tracesDir }

// fakeBrowsers is an in-memory BrowserManager handing out one session per
// task or workflow run.
type fakeBrowsers struct {
	mu           sync.Mutex
	sessions     map[string]*fakeSession
	cleanupCalls []bool
	videoData    []byte
}

func newFakeBrowsers() *fakeBrowsers {
	return &fakeBrowsers{sessions: make(map[string]*fakeSession)}
}

func (b *fakeBrowsers) sessionFor(ownerID, url string) *fakeSession {
	b.mu.Lock()
	defer b.mu.Unlock()
	if session, ok := b.sessions[ownerID]; ok {
		return session
	}
	session := &fakeSession{url: url, html: "<html/>"}
	b.sessions[ownerID] = session
	return session
}

func (b *fakeBrowsers) GetOrCreateForTask(_ context.Context, task *domain.Task) (browser.Session, error) {
	return b.sessionFor(task.ID, task.URL), nil
}

func (b *fakeBrowsers) GetOrCreateForWorkflowRun(_ context.Context, run *domain.WorkflowRun, url string) (browser.Session, error) {
	return b.sessionFor(run.ID, url), nil
}

func (b *fakeBrowsers) GetVideoData(context.Context, string, browser.Session) ([]byte, error) {
	if b.videoData == nil {
		return nil, fmt.Errorf("no video recording")
	}
	return b.videoData, nil
}

func (b *fakeBrowsers) GetHARData(context.Context, string, browser.Session) ([]byte, error) {
	return nil, fmt.Errorf("no har capture")
}

func (b *fakeBrowsers) CleanupForTask(_ context.Context, taskID string, closeOnCompletion bool) (browser.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cleanupCalls = append(b.cleanupCalls, closeOnCompletion)
	session, ok := b.sessions[taskID]
	if !ok {
		return nil, nil
	}
	delete(b.sessions, taskID)
	return session, nil
}

// fakeArtifacts records captures and barrier calls in one shared event log
// so ordering against the webhook can be asserted.
type fakeArtifacts struct {
	mu       sync.Mutex
	events   *eventLog
	captured []constants.ArtifactType
}

func newFakeArtifacts(events *eventLog) *fakeArtifacts {
	return &fakeArtifacts{events: events}
}

func (a *fakeArtifacts) CreateArtifact(_ context.Context, step *domain.Step, artifactType constants.ArtifactType, _ []byte) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.captured = append(a.captured, artifactType)
	_ = step
	return domain.NewArtifactID(), nil
}

func (a *fakeArtifacts) CreateArtifactFromPath(ctx context.Context, step *domain.Step, artifactType constants.ArtifactType, _ string) (string, error) {
	return a.CreateArtifact(ctx, step, artifactType, nil)
}

func (a *fakeArtifacts) UpdateArtifactData(_ context.Context, _, _, _, _ string, artifactType constants.ArtifactType, _ []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.captured = append(a.captured, artifactType)
}

func (a *fakeArtifacts) WaitForUploads(string) {
	a.events.record("wait_for_uploads")
}

func (a *fakeArtifacts) GetShareLink(artifact *domain.Artifact) (string, error) {
	return "https://share/" + artifact.ID, nil
}

func (a *fakeArtifacts) count(artifactType constants.ArtifactType) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, captured := range a.captured {
		if captured == artifactType {
			n++
		}
	}
	return n
}

// fakeScraper returns a canned page.
type fakeScraper struct {
	page *domain.ScrapedPage
	err  error
}

func newFakeScraper() *fakeScraper {
	return &fakeScraper{page: &domain.ScrapedPage{
		URL:  "https://x",
		HTML: "<html><body><button id=\"login\">Login</button></body></html>",
		ElementTree: []domain.Element{
			{ID: "e1", Tag: "button", Text: "Login", Interactable: true},
			{ID: "e2", Tag: "a", Text: "Help", Interactable: true},
		},
		ElementTreeTrimmed: []domain.Element{
			{ID: "e1", Tag: "button", Text: "Login", Interactable: true},
		},
		IDToXPath:   map[string]string{"e1": "/html/body/button[1]", "e2": "/html/body/a[1]"},
		Screenshots: [][]byte{[]byte("png")},
	}}
}

func (s *fakeScraper) Scrape(context.Context, browser.Session, string) (*domain.ScrapedPage, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.page, nil
}

// fakePrompts renders a fixed prompt, recording the last variables so
// tests can assert on the assembled prompt context.
type fakePrompts struct {
	mu       sync.Mutex
	lastVars map[string]any
}

func (p *fakePrompts) LoadPrompt(name string, vars map[string]any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastVars = vars
	return "prompt:" + name, nil
}

func (p *fakePrompts) lastVar(key string) any {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lastVars == nil {
		return nil
	}
	return p.lastVars[key]
}

// updateWithStatus builds a StepUpdate for a status change with optional
// output.
func updateWithStatus(status constants.StepStatus, output *domain.AgentStepOutput) store.StepUpdate {
	return store.StepUpdate{Status: &status, Output: output}
}

// fakeLLM returns queued responses in order, then repeats the last one.
type fakeLLM struct {
	mu        sync.Mutex
	responses []map[string]any
	err       error
	calls     int
}

func (l *fakeLLM) Call(context.Context, string, *domain.Step, [][]byte) (map[string]any, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	if len(l.responses) == 0 {
		return map[string]any{"actions": []any{}}, nil
	}
	response := l.responses[0]
	if len(l.responses) > 1 {
		l.responses = l.responses[1:]
	}
	return response, nil
}

// actionsResponse builds an LLM response proposing the given actions.
func actionsResponse(actions ...map[string]any) map[string]any {
	list := make([]any, 0, len(actions))
	for _, action := range actions {
		list = append(list, action)
	}
	return map[string]any{"actions": list}
}

// fakeHandlers resolves results per action, recording the dispatch order.
type fakeHandlers struct {
	mu         sync.Mutex
	dispatched []domain.Action
	resolve    func(action domain.Action) ([]domain.ActionResult, error)
}

func (h *fakeHandlers) Handle(_ context.Context, _ *domain.ScrapedPage, _ *domain.Task, _ *domain.Step, _ browser.Session, action domain.Action) ([]domain.ActionResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dispatched = append(h.dispatched, action)
	if h.resolve != nil {
		return h.resolve(action)
	}
	return []domain.ActionResult{{Success: true}}, nil
}

func (h *fakeHandlers) dispatchedTypes() []constants.ActionType {
	h.mu.Lock()
	defer h.mu.Unlock()
	types := make([]constants.ActionType, 0, len(h.dispatched))
	for _, action := range h.dispatched {
		types = append(types, action.Type)
	}
	return types
}

// fakeWebhooks records sends in the shared event log.
type fakeWebhooks struct {
	mu       sync.Mutex
	events   *eventLog
	payloads [][]byte
	urls     []string
	err      error
}

func newFakeWebhooks(events *eventLog) *fakeWebhooks {
	return &fakeWebhooks{events: events}
}

func (w *fakeWebhooks) Send(_ context.Context, url string, payload []byte, _ string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.events.record("webhook_send")
	w.urls = append(w.urls, url)
	w.payloads = append(w.payloads, payload)
	return w.err
}

// fakeAnalytics records captured events.
type fakeAnalytics struct {
	mu     sync.Mutex
	events []string
	props  []map[string]any
}

func (a *fakeAnalytics) Capture(event string, properties map[string]any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
	a.props = append(a.props, properties)
}

// eventLog is a shared ordered record used to assert cross-fake ordering.
type eventLog struct {
	mu      sync.Mutex
	entries []string
}

func (l *eventLog) record(entry string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
}

func (l *eventLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.entries...)
}

// testHarness bundles the agent with its fakes.
type testHarness struct {
	agent     *Agent
	db        *fakeDB
	browsers  *fakeBrowsers
	artifacts *fakeArtifacts
	llm       *fakeLLM
	scraper   *fakeScraper
	handlers  *fakeHandlers
	prompts   *fakePrompts
	webhooks  *fakeWebhooks
	analytics *fakeAnalytics
	events    *eventLog
	settings  *config.Settings
}

// newTestHarness wires an Agent over fakes. Settings use a retry budget of
// 2 and no real sleeping.
func newTestHarness() *testHarness {
	events := &eventLog{}
	h := &testHarness{
		db:        newFakeDB(),
		browsers:  newFakeBrowsers(),
		artifacts: newFakeArtifacts(events),
		llm:       &fakeLLM{},
		scraper:   newFakeScraper(),
		handlers:  &fakeHandlers{},
		prompts:   &fakePrompts{},
		webhooks:  newFakeWebhooks(events),
		analytics: &fakeAnalytics{},
		events:    events,
	}
	settings := config.DefaultSettings()
	settings.MaxRetriesPerStep = 2
	h.settings = settings

	h.agent = NewAgent(Capabilities{
		Database:  h.db,
		Browsers:  h.browsers,
		Artifacts: h.artifacts,
		LLM:       h.llm,
		Scraper:   h.scraper,
		Prompts:   h.prompts,
		Handlers:  h.handlers,
		Webhooks:  h.webhooks,
		Analytics: h.analytics,
	}, settings, logging.NewTestLogger(io.Discard),
		WithSleeper(func(context.Context, time.Duration) {}))
	return h
}

// newRunningTask creates a running task with step (0, 0).
func (h *testHarness) newRunningTask(ctx context.Context, req *domain.TaskRequest) (*domain.Task, *domain.Step, error) {
	task, err := h.agent.CreateTask(ctx, req, "org1")
	if err != nil {
		return nil, nil, err
	}
	running := constants.TaskStatusRunning
	task, err = h.agent.recorder.UpdateTask(ctx, task, store.TaskUpdate{Status: &running})
	if err != nil {
		return nil, nil, err
	}
	step, err := h.db.CreateStep(ctx, task.ID, task.OrganizationID, 0, 0)
	if err != nil {
		return nil, nil, err
	}
	return task, step, nil
}

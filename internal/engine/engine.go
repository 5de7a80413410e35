// Package engine implements the Voyager task execution engine: the
// two-level (task × step) state machine that drives a task from created to
// terminal through repeated build/act/judge cycles.
//
// # Concurrency Model
//
// A task is executed by a single logical goroutine; the engine never fans
// out inside a step. Multiple tasks may run in parallel in the same
// process, each owning an independent browser state (or sharing one scoped
// to a workflow run). The at-most-one-running-step invariant is enforced by
// validateStepExecution reading the latest persisted state.
//
// # Import rules
//
//   - CAN import: internal/domain, internal/store, internal/browser,
//     internal/scrape, internal/llm, internal/actions, internal/prompt,
//     internal/webhook,
//     internal/analytics, internal/config, internal/constants,
//     internal/errors, std lib
package engine

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"

	"github.com/voyagerhq/voyager/internal/analytics"
	"github.com/voyagerhq/voyager/internal/browser"
	"github.com/voyagerhq/voyager/internal/config"
	"github.com/voyagerhq/voyager/internal/constants"
	"github.com/voyagerhq/voyager/internal/domain"
	"github.com/voyagerhq/voyager/internal/llm"
	"github.com/voyagerhq/voyager/internal/scrape"
	"github.com/voyagerhq/voyager/internal/store"
)

// BrowserManager is the browser lifecycle capability the engine consumes.
// internal/browser.Manager is the production implementation.
type BrowserManager interface {
	GetOrCreateForTask(ctx context.Context, task *domain.Task) (browser.Session, error)
	GetOrCreateForWorkflowRun(ctx context.Context, run *domain.WorkflowRun, url string) (browser.Session, error)
	GetVideoData(ctx context.Context, taskID string, state browser.Session) ([]byte, error)
	GetHARData(ctx context.Context, taskID string, state browser.Session) ([]byte, error)
	CleanupForTask(ctx context.Context, taskID string, closeOnCompletion bool) (browser.Session, error)
}

// ArtifactManager is the artifact capture capability the engine consumes.
// internal/artifact.Manager is the production implementation.
type ArtifactManager interface {
	CreateArtifact(ctx context.Context, step *domain.Step, artifactType constants.ArtifactType, data []byte) (string, error)
	CreateArtifactFromPath(ctx context.Context, step *domain.Step, artifactType constants.ArtifactType, path string) (string, error)
	UpdateArtifactData(ctx context.Context, artifactID, taskID, stepID, organizationID string, artifactType constants.ArtifactType, data []byte)
	WaitForUploads(taskID string)
	GetShareLink(artifact *domain.Artifact) (string, error)
}

// ActionHandler dispatches one parsed action against the browser.
// internal/actions.Registry is the production implementation.
type ActionHandler interface {
	Handle(ctx context.Context, page *domain.ScrapedPage, task *domain.Task, step *domain.Step, state browser.Session, action domain.Action) ([]domain.ActionResult, error)
}

// PromptEngine renders named prompt templates.
// internal/prompt.Engine is the production implementation.
type PromptEngine interface {
	LoadPrompt(name string, vars map[string]any) (string, error)
}

// WebhookSender delivers the signed outcome callback.
// internal/webhook.Sender is the production implementation.
type WebhookSender interface {
	Send(ctx context.Context, url string, payload []byte, apiKey string) error
}

// Capabilities bundles every external collaborator the engine needs.
// Tests supply fakes; production wiring lives in cmd/voyager.
type Capabilities struct {
	Database  store.Database
	Browsers  BrowserManager
	Artifacts ArtifactManager
	LLM       llm.Handler
	Scraper   scrape.Scraper
	Prompts   PromptEngine
	Handlers  ActionHandler
	Webhooks  WebhookSender
	Analytics analytics.Capturer
}

// Agent is the task execution engine. It is safe for concurrent use across
// different tasks; a single task must not be driven by multiple goroutines.
type Agent struct {
	db        store.Database
	browsers  BrowserManager
	artifacts ArtifactManager
	llm       llm.Handler
	scraper   scrape.Scraper
	prompts   PromptEngine
	handlers  ActionHandler
	webhooks  WebhookSender
	analytics analytics.Capturer
	settings  *config.Settings
	logger    zerolog.Logger
	recorder  *Recorder

	// sleep suspends between actions; replaced in tests.
	sleep func(ctx context.Context, d time.Duration)
}

// AgentOption configures an Agent.
type AgentOption func(*Agent)

// WithSleeper replaces the inter-action sleep, so tests do not pay the
// anti-bot jitter.
func WithSleeper(sleep func(ctx context.Context, d time.Duration)) AgentOption {
	return func(a *Agent) {
		a.sleep = sleep
	}
}

// NewAgent creates the engine over the given capability bundle.
func NewAgent(caps Capabilities, settings *config.Settings, logger zerolog.Logger, opts ...AgentOption) *Agent {
	a := &Agent{
		db:        caps.Database,
		browsers:  caps.Browsers,
		artifacts: caps.Artifacts,
		llm:       caps.LLM,
		scraper:   caps.Scraper,
		prompts:   caps.Prompts,
		handlers:  caps.Handlers,
		webhooks:  caps.Webhooks,
		analytics: caps.Analytics,
		settings:  settings,
		logger:    logger,
		recorder:  NewRecorder(caps.Database, logger),
		sleep:     sleepWithContext,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Recorder exposes the engine's step recorder, for callers that mutate
// steps outside the driver loop.
func (a *Agent) Recorder() *Recorder {
	return a.recorder
}

// sleepJitter pauses a uniformly random duration within the anti-bot jitter
// bounds. The sleep itself is not cancellable mid-way; cancellation is
// observed at the next external boundary.
func (a *Agent) sleepJitter(ctx context.Context) {
	spread := constants.ActionJitterMax - constants.ActionJitterMin
	jitter := constants.ActionJitterMin + time.Duration(rand.Float64()*float64(spread))
	a.sleep(context.WithoutCancel(ctx), jitter)
}

// sleepWithContext sleeps for d, returning early only on context
// cancellation.
func sleepWithContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// Package constants defines shared constants for Voyager.
//
// This package MUST NOT import any other internal packages.
package constants

import "time"

// ID prefixes for the entity identifiers generated in internal/domain.
const (
	// TaskIDPrefix prefixes task identifiers (e.g. "tsk_3f2a...").
	TaskIDPrefix = "tsk_"

	// StepIDPrefix prefixes step identifiers.
	StepIDPrefix = "stp_"

	// ArtifactIDPrefix prefixes artifact identifiers.
	ArtifactIDPrefix = "art_"

	// WorkflowRunIDPrefix prefixes workflow run identifiers.
	WorkflowRunIDPrefix = "wr_"
)

// Engine defaults. Each of these can be overridden through configuration
// (see internal/config).
const (
	// DefaultMaxRetriesPerStep is the ceiling on a step's retry_index.
	DefaultMaxRetriesPerStep = 3

	// DefaultMaxStepsPerRun is the fallback ceiling on steps per task,
	// used when neither the runtime context nor the organization sets one.
	DefaultMaxStepsPerRun = 10

	// DefaultPromptActionHistoryWindow is the number of recent steps whose
	// action results are inlined into the extract-action prompt.
	DefaultPromptActionHistoryWindow = 5

	// DefaultLongRunningTaskWarningRatio is the fraction of the step ceiling
	// at which a long-running-task warning is logged.
	DefaultLongRunningTaskWarningRatio = 0.95

	// DefaultBrowserActionTimeout bounds individual browser RPCs.
	DefaultBrowserActionTimeout = 5 * time.Second

	// DefaultLLMTimeout bounds a single LLM call.
	DefaultLLMTimeout = 2 * time.Minute

	// DefaultWebhookTimeout bounds the outcome webhook POST.
	DefaultWebhookTimeout = 30 * time.Second
)

// Inter-action jitter bounds. The executor sleeps a uniformly random
// duration in [ActionJitterMin, ActionJitterMax] between actions.
const (
	ActionJitterMin = 1 * time.Second
	ActionJitterMax = 2 * time.Second
)

// Webhook header names. These are part of the signed-webhook wire format and
// must match what receivers validate against.
const (
	// WebhookTimestampHeader carries the epoch-seconds send time.
	WebhookTimestampHeader = "x-skyvern-timestamp"

	// WebhookSignatureHeader carries the hex HMAC-SHA256 of the body.
	WebhookSignatureHeader = "x-skyvern-signature"
)

// Logging defaults for the rotating CLI log file.
const (
	LogsDir        = "logs"
	CLILogFileName = "voyager.log"
	LogMaxSizeMB   = 50
	LogMaxBackups  = 5
	LogMaxAgeDays  = 30
	LogCompress    = true
)

// VoyagerHome is the default home directory name under $HOME.
const VoyagerHome = ".voyager"

// BrowserType values accepted by configuration.
const (
	BrowserTypeChromium = "chromium"
	BrowserTypeFirefox  = "firefox"
)

// AboutBlankURL is the URL of an empty page. A workflow task block without a
// URL cannot inherit it from a page that is still blank.
const AboutBlankURL = "about:blank"

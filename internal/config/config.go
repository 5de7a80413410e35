// Package config provides configuration management for Voyager with layered
// precedence.
//
// Configuration sources are loaded in the following order (highest
// precedence first):
//  1. Environment variables (VOYAGER_* prefix)
//  2. Config file (voyager.yaml in the working directory or ~/.voyager)
//  3. Built-in defaults
//
// IMPORTANT: This package may import internal/constants and internal/errors,
// but MUST NOT import internal/domain or other internal packages.
package config

import "time"

// Settings is the root configuration structure for the engine.
type Settings struct {
	// Env names the deployment environment ("local", "staging", "prod").
	Env string `yaml:"env" mapstructure:"env"`

	// DebugMode enables verbose logging and console output.
	DebugMode bool `yaml:"debug_mode" mapstructure:"debug_mode"`

	// ExecuteAllSteps controls step chaining in the task driver. When true
	// the driver keeps advancing until the task is terminal; when false it
	// returns after each step with the next step attached for the caller.
	// Retries are always driven regardless of this flag.
	ExecuteAllSteps bool `yaml:"execute_all_steps" mapstructure:"execute_all_steps"`

	// MaxRetriesPerStep is the ceiling on a step's retry index.
	MaxRetriesPerStep int `yaml:"max_retries_per_step" mapstructure:"max_retries_per_step"`

	// MaxStepsPerRun is the fallback step ceiling per task, used when
	// neither the runtime context nor the organization overrides it.
	MaxStepsPerRun int `yaml:"max_steps_per_run" mapstructure:"max_steps_per_run"`

	// PromptActionHistoryWindow is the number of recent steps whose action
	// results are inlined into the extract-action prompt.
	PromptActionHistoryWindow int `yaml:"prompt_action_history_window" mapstructure:"prompt_action_history_window"`

	// LongRunningTaskWarningRatio is the fraction of the step ceiling at
	// which a long-running warning is logged. Must be in (0, 1].
	LongRunningTaskWarningRatio float64 `yaml:"long_running_task_warning_ratio" mapstructure:"long_running_task_warning_ratio"`

	// Browser contains browser lifecycle settings.
	Browser BrowserSettings `yaml:"browser" mapstructure:"browser"`

	// LLMTimeout bounds a single LLM call.
	LLMTimeout time.Duration `yaml:"llm_timeout" mapstructure:"llm_timeout"`

	// WebhookTimeout bounds the outcome webhook POST.
	WebhookTimeout time.Duration `yaml:"webhook_timeout" mapstructure:"webhook_timeout"`

	// DatabasePath locates the SQLite database file.
	DatabasePath string `yaml:"database_path" mapstructure:"database_path"`

	// Artifact contains artifact storage settings.
	Artifact ArtifactSettings `yaml:"artifact" mapstructure:"artifact"`
}

// BrowserSettings controls how browser states are launched and recorded.
type BrowserSettings struct {
	// Type selects the browser engine: "chromium" or "firefox".
	Type string `yaml:"type" mapstructure:"type"`

	// Headless launches the browser without a visible window.
	Headless bool `yaml:"headless" mapstructure:"headless"`

	// ActionTimeout bounds individual browser RPCs.
	ActionTimeout time.Duration `yaml:"action_timeout" mapstructure:"action_timeout"`

	// VideoPath is the directory for session video recordings. Empty
	// disables video capture.
	VideoPath string `yaml:"video_path" mapstructure:"video_path"`

	// HARPath is the directory for HAR captures. Empty disables HAR.
	HARPath string `yaml:"har_path" mapstructure:"har_path"`

	// TracesDir is the directory for playwright traces. Empty disables
	// tracing.
	TracesDir string `yaml:"traces_dir" mapstructure:"traces_dir"`
}

// ArtifactSettings controls where artifact blobs are stored.
type ArtifactSettings struct {
	// StorageRoot is the base directory of the local storage backend.
	StorageRoot string `yaml:"storage_root" mapstructure:"storage_root"`

	// ShareBaseURL prefixes share links returned for uploaded artifacts.
	// Empty means file:// links into the storage root.
	ShareBaseURL string `yaml:"share_base_url" mapstructure:"share_base_url"`
}

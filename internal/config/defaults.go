package config

import (
	"github.com/voyagerhq/voyager/internal/constants"
)

// DefaultSettings returns the built-in defaults. They favor a local,
// single-process deployment; production overrides come from the config file
// or VOYAGER_* environment variables.
func DefaultSettings() *Settings {
	return &Settings{
		Env:                         "local",
		DebugMode:                   false,
		ExecuteAllSteps:             true,
		MaxRetriesPerStep:           constants.DefaultMaxRetriesPerStep,
		MaxStepsPerRun:              constants.DefaultMaxStepsPerRun,
		PromptActionHistoryWindow:   constants.DefaultPromptActionHistoryWindow,
		LongRunningTaskWarningRatio: constants.DefaultLongRunningTaskWarningRatio,
		Browser: BrowserSettings{
			Type:          constants.BrowserTypeChromium,
			Headless:      true,
			ActionTimeout: constants.DefaultBrowserActionTimeout,
			VideoPath:     "./videos",
			HARPath:       "./har",
			TracesDir:     "./traces",
		},
		LLMTimeout:     constants.DefaultLLMTimeout,
		WebhookTimeout: constants.DefaultWebhookTimeout,
		DatabasePath:   "voyager.db",
		Artifact: ArtifactSettings{
			StorageRoot: "./artifacts",
		},
	}
}

package config

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/voyagerhq/voyager/internal/constants"
	"github.com/voyagerhq/voyager/internal/errors"
)

// Load reads configuration from all available sources with proper
// precedence: environment variables (VOYAGER_* prefix), then a config file,
// then built-in defaults.
//
// The function returns an error only for actual configuration problems, not
// for missing config files (which are expected in many scenarios).
func Load() (*Settings, error) {
	return LoadFromFile("")
}

// LoadFromFile loads configuration with an explicit config file path. An
// empty path falls back to voyager.yaml in the working directory, then
// ~/.voyager/voyager.yaml.
func LoadFromFile(path string) (*Settings, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("VOYAGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !stderrors.As(err, &notFound) && !os.IsNotExist(err) {
				return nil, errors.Wrap(err, "failed to read config file")
			}
		}
	}

	var settings Settings
	if err := v.Unmarshal(&settings, viperDecoderOption()); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	if err := Validate(&settings); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	return &settings, nil
}

// findConfigFile locates the first existing config file, or returns "".
func findConfigFile() string {
	candidates := []string{"voyager.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, constants.VoyagerHome, "voyager.yaml"))
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// setDefaults configures all default values on the Viper instance.
// IMPORTANT: keys must match the mapstructure tag names exactly.
func setDefaults(v *viper.Viper) {
	defaults := DefaultSettings()

	v.SetDefault("env", defaults.Env)
	v.SetDefault("debug_mode", defaults.DebugMode)
	v.SetDefault("execute_all_steps", defaults.ExecuteAllSteps)
	v.SetDefault("max_retries_per_step", defaults.MaxRetriesPerStep)
	v.SetDefault("max_steps_per_run", defaults.MaxStepsPerRun)
	v.SetDefault("prompt_action_history_window", defaults.PromptActionHistoryWindow)
	v.SetDefault("long_running_task_warning_ratio", defaults.LongRunningTaskWarningRatio)
	v.SetDefault("browser.type", defaults.Browser.Type)
	v.SetDefault("browser.headless", defaults.Browser.Headless)
	v.SetDefault("browser.action_timeout", defaults.Browser.ActionTimeout)
	v.SetDefault("browser.video_path", defaults.Browser.VideoPath)
	v.SetDefault("browser.har_path", defaults.Browser.HARPath)
	v.SetDefault("browser.traces_dir", defaults.Browser.TracesDir)
	v.SetDefault("llm_timeout", defaults.LLMTimeout)
	v.SetDefault("webhook_timeout", defaults.WebhookTimeout)
	v.SetDefault("database_path", defaults.DatabasePath)
	v.SetDefault("artifact.storage_root", defaults.Artifact.StorageRoot)
	v.SetDefault("artifact.share_base_url", defaults.Artifact.ShareBaseURL)
}

// viperDecoderOption returns the decoder options for Viper unmarshal.
// This configures mapstructure to handle time.Duration conversion from
// strings.
func viperDecoderOption() viper.DecoderConfigOption {
	return viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
		),
	)
}

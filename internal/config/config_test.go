package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyagerhq/voyager/internal/constants"
	voyagererrors "github.com/voyagerhq/voyager/internal/errors"
)

func TestDefaultSettingsAreValid(t *testing.T) {
	settings := DefaultSettings()
	require.NoError(t, Validate(settings))

	assert.Equal(t, constants.DefaultMaxRetriesPerStep, settings.MaxRetriesPerStep)
	assert.Equal(t, constants.DefaultMaxStepsPerRun, settings.MaxStepsPerRun)
	assert.Equal(t, constants.DefaultPromptActionHistoryWindow, settings.PromptActionHistoryWindow)
	assert.True(t, settings.ExecuteAllSteps)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr error
	}{
		{"nil config", nil, voyagererrors.ErrConfigNil},
		{"negative retries", func(s *Settings) { s.MaxRetriesPerStep = -1 }, voyagererrors.ErrValueOutOfRange},
		{"zero max steps", func(s *Settings) { s.MaxStepsPerRun = 0 }, voyagererrors.ErrValueOutOfRange},
		{"ratio above one", func(s *Settings) { s.LongRunningTaskWarningRatio = 1.5 }, voyagererrors.ErrValueOutOfRange},
		{"ratio zero", func(s *Settings) { s.LongRunningTaskWarningRatio = 0 }, voyagererrors.ErrValueOutOfRange},
		{"unknown browser", func(s *Settings) { s.Browser.Type = "netscape" }, voyagererrors.ErrValueOutOfRange},
		{"empty database path", func(s *Settings) { s.DatabasePath = "" }, voyagererrors.ErrEmptyValue},
		{"empty storage root", func(s *Settings) { s.Artifact.StorageRoot = "" }, voyagererrors.ErrEmptyValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.mutate == nil {
				assert.ErrorIs(t, Validate(nil), tt.wantErr)
				return
			}
			settings := DefaultSettings()
			tt.mutate(settings)
			assert.ErrorIs(t, Validate(settings), tt.wantErr)
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "voyager.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
max_retries_per_step: 2
max_steps_per_run: 25
browser:
  type: firefox
  action_timeout: 10s
`), 0o600))

	settings, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 2, settings.MaxRetriesPerStep)
	assert.Equal(t, 25, settings.MaxStepsPerRun)
	assert.Equal(t, constants.BrowserTypeFirefox, settings.Browser.Type)
	assert.Equal(t, 10*time.Second, settings.Browser.ActionTimeout)
	// Untouched keys keep their defaults.
	assert.Equal(t, constants.DefaultPromptActionHistoryWindow, settings.PromptActionHistoryWindow)
}

func TestLoadFromFile_EnvOverride(t *testing.T) {
	t.Setenv("VOYAGER_MAX_STEPS_PER_RUN", "42")

	settings, err := LoadFromFile("")
	require.NoError(t, err)
	assert.Equal(t, 42, settings.MaxStepsPerRun)
}

func TestLoadFromFile_InvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "voyager.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_steps_per_run: 0\n"), 0o600))

	_, err := LoadFromFile(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, voyagererrors.ErrValueOutOfRange)
}

package config

import (
	"fmt"

	"github.com/voyagerhq/voyager/internal/constants"
	"github.com/voyagerhq/voyager/internal/errors"
)

// Validate checks a Settings value for internal consistency. It returns a
// wrapped sentinel error naming the first offending field.
func Validate(s *Settings) error {
	if s == nil {
		return errors.ErrConfigNil
	}
	if s.MaxRetriesPerStep < 0 {
		return fmt.Errorf("%w: max_retries_per_step must be >= 0, got %d",
			errors.ErrValueOutOfRange, s.MaxRetriesPerStep)
	}
	if s.MaxStepsPerRun < 1 {
		return fmt.Errorf("%w: max_steps_per_run must be >= 1, got %d",
			errors.ErrValueOutOfRange, s.MaxStepsPerRun)
	}
	if s.PromptActionHistoryWindow < 0 {
		return fmt.Errorf("%w: prompt_action_history_window must be >= 0, got %d",
			errors.ErrValueOutOfRange, s.PromptActionHistoryWindow)
	}
	if s.LongRunningTaskWarningRatio <= 0 || s.LongRunningTaskWarningRatio > 1 {
		return fmt.Errorf("%w: long_running_task_warning_ratio must be in (0, 1], got %g",
			errors.ErrValueOutOfRange, s.LongRunningTaskWarningRatio)
	}
	switch s.Browser.Type {
	case constants.BrowserTypeChromium, constants.BrowserTypeFirefox:
	default:
		return fmt.Errorf("%w: browser.type must be %q or %q, got %q",
			errors.ErrValueOutOfRange, constants.BrowserTypeChromium,
			constants.BrowserTypeFirefox, s.Browser.Type)
	}
	if s.Browser.ActionTimeout <= 0 {
		return fmt.Errorf("%w: browser.action_timeout must be positive",
			errors.ErrValueOutOfRange)
	}
	if s.DatabasePath == "" {
		return fmt.Errorf("%w: database_path", errors.ErrEmptyValue)
	}
	if s.Artifact.StorageRoot == "" {
		return fmt.Errorf("%w: artifact.storage_root", errors.ErrEmptyValue)
	}
	return nil
}

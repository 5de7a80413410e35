// Package analytics captures engine telemetry events.
//
// The default backend writes events to the structured log; deployments with
// a real analytics pipeline supply their own Capturer.
package analytics

import "github.com/rs/zerolog"

// TaskStatusEvent is emitted on every terminal task transition.
const TaskStatusEvent = "task-status"

// Capturer records telemetry events.
type Capturer interface {
	Capture(event string, properties map[string]any)
}

// LogCapturer writes events to the structured log.
type LogCapturer struct {
	logger zerolog.Logger
}

// NewLogCapturer creates a log-backed capturer.
func NewLogCapturer(logger zerolog.Logger) *LogCapturer {
	return &LogCapturer{logger: logger}
}

// Capture implements Capturer.
func (c *LogCapturer) Capture(event string, properties map[string]any) {
	c.logger.Info().Str("event", event).Fields(properties).Msg("analytics event")
}

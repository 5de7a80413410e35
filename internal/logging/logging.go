// Package logging initializes the zerolog logger used across Voyager.
//
// The logger writes to stderr (console format when debug mode is on, JSON
// otherwise) and, when a home directory is available, to a rotating log
// file under ~/.voyager/logs.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/voyagerhq/voyager/internal/constants"
)

// Init creates and configures the root logger. Debug mode selects the debug
// level and human-readable console output. If the log file cannot be
// created, the logger continues with console-only output.
func Init(debug bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	console := selectOutput(debug)

	writer := console
	if fileWriter, err := newFileWriter(); err == nil {
		writer = zerolog.MultiLevelWriter(console, fileWriter)
	}

	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}

// NewTestLogger returns a logger writing to the given writer, for tests.
func NewTestLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(w).Level(zerolog.DebugLevel).With().Timestamp().Logger()
}

// selectOutput picks console formatting in debug mode, JSON otherwise.
func selectOutput(debug bool) io.Writer {
	if debug && os.Getenv("NO_COLOR") == "" {
		return zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.Kitchen,
		}
	}
	return os.Stderr
}

// newFileWriter creates the rotating log file writer under the voyager home.
func newFileWriter() (io.Writer, error) {
	home := os.Getenv("VOYAGER_HOME")
	if home == "" {
		userHome, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		home = filepath.Join(userHome, constants.VoyagerHome)
	}

	logDir := filepath.Join(home, constants.LogsDir)
	if err := os.MkdirAll(logDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	return &lumberjack.Logger{
		Filename:   filepath.Join(logDir, constants.CLILogFileName),
		MaxSize:    constants.LogMaxSizeMB,
		MaxBackups: constants.LogMaxBackups,
		MaxAge:     constants.LogMaxAgeDays,
		Compress:   constants.LogCompress,
	}, nil
}

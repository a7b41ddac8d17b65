// Package logging configures the daemon's structured logger.
//
// It follows the split used by the teacher's own log package: a
// diagnostics stream for operational events and a separate append-only
// transcript stream that records only recognized text, never audio.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu             sync.Mutex
	diagLog        zerolog.Logger
	diagFile       *os.File
	transcriptFile *os.File
	ready          bool
	dir            string
)

// ResolveDir picks the log directory: an explicit override, then
// $XDG_STATE_HOME/croaker, then ~/.local/state/croaker.
func ResolveDir(override string) (string, error) {
	if override != "" {
		if !filepath.IsAbs(override) {
			wd, err := os.Getwd()
			if err != nil {
				return "", err
			}
			return filepath.Join(wd, override), nil
		}
		return override, nil
	}
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "croaker"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "state", "croaker"), nil
}

// Init opens the diagnostics and transcript log files and wires the
// package-level logger. Safe to call once at daemon startup.
func Init(logDir string, console bool) error {
	mu.Lock()
	defer mu.Unlock()

	dir = logDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}

	var err error
	diagFile, err = os.OpenFile(filepath.Join(dir, "diagnostics.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening diagnostics log: %w", err)
	}

	transcriptFile, err = os.OpenFile(filepath.Join(dir, "transcript.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		diagFile.Close()
		return fmt.Errorf("opening transcript log: %w", err)
	}

	consoleWriter := zerolog.ConsoleWriter{Out: diagFile, TimeFormat: "2006-01-02 15:04:05", NoColor: true}
	var out zerolog.LevelWriter
	if console {
		out = zerolog.MultiLevelWriter(consoleWriter, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	} else {
		out = zerolog.MultiLevelWriter(consoleWriter)
	}

	diagLog = zerolog.New(out).With().Timestamp().Int("pid", os.Getpid()).Logger()
	ready = true
	return nil
}

// Close flushes and closes the log files.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	if transcriptFile != nil {
		transcriptFile.Close()
		transcriptFile = nil
	}
	ready = false
}

func Info(msg string) {
	if ready {
		diagLog.Info().Msg(msg)
	}
}

func Warn(msg string) {
	if ready {
		diagLog.Warn().Msg(msg)
	}
}

func Error(msg string) {
	if ready {
		diagLog.Error().Msg(msg)
	}
}

func Infof(format string, args ...any) {
	if ready {
		diagLog.Info().Msg(fmt.Sprintf(format, args...))
	}
}

func Warnf(format string, args ...any) {
	if ready {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

func Errorf(format string, args ...any) {
	if ready {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

// Event logs a structured phase-transition or session event.
func Event(sessionID uint64, name string, fields map[string]any) {
	if !ready {
		return
	}
	e := diagLog.Info().Uint64("session", sessionID).Str("event", name)
	for k, v := range fields {
		e = e.Interface(k, v)
	}
	e.Msg(name)
}

// Transcript appends recognized text to the transcript-only log.
func Transcript(sessionID uint64, text string) {
	mu.Lock()
	defer mu.Unlock()
	if transcriptFile == nil {
		return
	}
	line := fmt.Sprintf("%s\t[%d]\t%s\n", time.Now().Format(time.RFC3339), sessionID, text)
	transcriptFile.WriteString(line)
}

// Package session implements the daemon's single-writer state machine: the
// SessionController from spec.md §4.7, plus the data model from spec.md §3.
package session

import (
	"context"
	"time"

	"github.com/kumralcem/croaker/internal/audiorec"
	"github.com/kumralcem/croaker/internal/config"
	"github.com/kumralcem/croaker/internal/transcribe"
)

// Phase is the controller's current position in the recording pipeline.
type Phase int

const (
	Idle Phase = iota
	Recording
	Processing
	Outputting
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Processing:
		return "processing"
	case Outputting:
		return "outputting"
	default:
		return "unknown"
	}
}

// EventKind tags an Event's payload.
type EventKind int

const (
	EvStartRecording EventKind = iota
	EvStopRecording
	EvCancel
	EvToggleOutputMode
	EvToggleLanguage
	EvProcessingComplete
	EvOutputComplete
	EvFailed
)

// Event is the single wire type carried on the controller's unified
// channel — from InputSources, from pipeline tasks, and from the
// injector task. SessionID is zero for user-originated events and is
// checked against the active session for completion events, so a
// completion arriving after a Cancel is discarded (spec.md §4.7).
type Event struct {
	Kind      EventKind
	SessionID uint64
	Text      string
	NoSpeech  bool
	Err       error
}

// RuntimeSettings is the controller-owned mutable configuration: the
// fields a user can toggle at runtime, plus the immutable configuration
// pipeline stages need. Only the controller goroutine mutates it; other
// goroutines only ever see an immutable Snapshot.
type RuntimeSettings struct {
	Languages        []string
	CurrentLanguage  string
	OutputMode       config.OutputMode
	KeystrokeDelay   time.Duration
	ClipboardRestore bool
}

// Snapshot is the frozen view of settings an ActiveSession captures the
// moment it enters Recording (spec.md §3 invariant).
type Snapshot struct {
	Language   string
	OutputMode config.OutputMode
}

// ToggleLanguage advances to the next configured language, wrapping
// around — n applications of len(Languages) return to the start.
func (s *RuntimeSettings) ToggleLanguage() {
	if len(s.Languages) == 0 {
		return
	}
	for i, l := range s.Languages {
		if l == s.CurrentLanguage {
			s.CurrentLanguage = s.Languages[(i+1)%len(s.Languages)]
			return
		}
	}
	s.CurrentLanguage = s.Languages[0]
}

// ToggleOutputMode advances the output mode through its 3-cycle.
func (s *RuntimeSettings) ToggleOutputMode() {
	s.OutputMode = s.OutputMode.Cycle()
}

// ActiveSession exists iff Phase != Idle. It owns the temp audio file and
// the cancel token for whatever pipeline is currently running.
type ActiveSession struct {
	ID        uint64
	Start     time.Time
	AudioPath string // empty until capture starts producing a real path
	Snapshot  Snapshot
	Handle    *audiorec.Handle
	ctx       context.Context
	cancel    context.CancelFunc
}

// FeedbackState is the derived, observable view published to FeedbackSink
// after every committed phase or settings change.
type FeedbackState struct {
	Phase      Phase
	Language   string
	OutputMode config.OutputMode
}

// Recorder is the AudioRecorder contract the controller drives (spec.md
// §4.1). Implemented by *audiorec.Recorder.
type Recorder interface {
	Start(ctx context.Context) (*audiorec.Handle, error)
	Stop(ctx context.Context, h *audiorec.Handle) (string, error)
	Abort(h *audiorec.Handle)
}

// Transcriber is the TranscriptionClient contract (spec.md §4.2).
type Transcriber interface {
	Transcribe(ctx context.Context, path, language string) (transcribe.Result, error)
}

// Cleaner is the CleanupClient contract (spec.md §4.3). A nil Cleaner
// held by the controller means cleanup_enabled = false.
type Cleaner interface {
	Clean(ctx context.Context, raw string) (string, error)
}

// Injector is the TextInjector contract (spec.md §4.4).
type Injector interface {
	Inject(ctx context.Context, text string, mode config.OutputMode) error
}

// FeedbackSink is the observer contract (spec.md §4.6). Publish must not
// block the controller for long; implementations keep only the latest
// state and let slow consumers drop stale ones. NotifyError surfaces a
// user-visible failure message (spec.md §7 propagation) — it is called
// on every pipeline failure the user would otherwise never see.
type FeedbackSink interface {
	Publish(state FeedbackState)
	NotifyError(msg string)
}

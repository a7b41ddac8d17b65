package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kumralcem/croaker/internal/audiorec"
	"github.com/kumralcem/croaker/internal/logging"
	"github.com/kumralcem/croaker/internal/transcribe"
)

const eventChanCapacity = 8

// Controller is the single-instance session state machine described in
// spec.md §4.7. Exactly one goroutine — the one running Run — ever reads
// events or mutates phase/session/settings; every other goroutine only
// ever writes to the events channel via Submit.
type Controller struct {
	events chan Event

	recorder    Recorder
	transcriber Transcriber
	cleaner     Cleaner
	injector    Injector
	sink        FeedbackSink

	mu       sync.Mutex // guards settings and phase against Snapshot reads from other goroutines; only Run's goroutine writes them, so this stays cheap and uncontended
	settings RuntimeSettings

	phase   Phase
	session *ActiveSession
	nextID  uint64
}

// New builds a Controller wired to its collaborators. cleaner may be nil
// when cleanup is disabled — the raw transcript is then used verbatim.
func New(recorder Recorder, transcriber Transcriber, cleaner Cleaner, injector Injector, sink FeedbackSink, initial RuntimeSettings) *Controller {
	return &Controller{
		events:      make(chan Event, eventChanCapacity),
		recorder:    recorder,
		transcriber: transcriber,
		cleaner:     cleaner,
		injector:    injector,
		sink:        sink,
		settings:    initial,
		phase:       Idle,
	}
}

// Submit enqueues an event for the controller. It never blocks: on a full
// channel the event is dropped and the caller should log a warning, per
// spec.md §4.5's overflow policy.
func (c *Controller) Submit(e Event) bool {
	select {
	case c.events <- e:
		return true
	default:
		return false
	}
}

// Snapshot returns the current phase, language and output mode. Safe to
// call from any goroutine. Besides the socket server's "status" reply and
// tests, the socket "toggle" command and the portal listener read it to
// choose between StartRecording and StopRecording; the state table in
// Run's goroutine still decides whether that event is acted on.
func (c *Controller) Snapshot() FeedbackState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return FeedbackState{Phase: c.phase, Language: c.settings.CurrentLanguage, OutputMode: c.settings.OutputMode}
}

// Run drains the event channel until ctx is cancelled. It is the only
// goroutine that mutates phase, session, or settings.
func (c *Controller) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-c.events:
			c.handle(ctx, e)
		}
	}
}

func (c *Controller) handle(ctx context.Context, e Event) {
	switch e.Kind {
	case EvStartRecording:
		if c.phase == Idle {
			c.startRecording(ctx)
		}
	case EvStopRecording:
		if c.phase == Recording {
			c.stopRecording(ctx)
		}
	case EvCancel:
		c.cancel()
	case EvToggleOutputMode:
		c.mu.Lock()
		c.settings.ToggleOutputMode()
		c.mu.Unlock()
		c.publish()
	case EvToggleLanguage:
		c.mu.Lock()
		c.settings.ToggleLanguage()
		c.mu.Unlock()
		c.publish()
	case EvProcessingComplete:
		if c.phase == Processing && c.session != nil && c.session.ID == e.SessionID {
			c.output(ctx, e.Text, e.NoSpeech)
		}
	case EvOutputComplete:
		if c.phase == Outputting && c.session != nil && c.session.ID == e.SessionID {
			c.finishSession()
		}
	case EvFailed:
		if c.session != nil && c.session.ID == e.SessionID {
			logging.Errorf("session %d failed: %v", e.SessionID, e.Err)
			c.notifyError(e.Err)
			c.cleanupSession()
			c.setPhase(Idle)
		} else {
			logging.Warnf("discarding stale failure for session %d: %v", e.SessionID, e.Err)
		}
	}
}

func (c *Controller) startRecording(ctx context.Context) {
	c.nextID++
	id := c.nextID

	c.mu.Lock()
	snap := Snapshot{Language: c.settings.CurrentLanguage, OutputMode: c.settings.OutputMode}
	c.mu.Unlock()

	sessCtx, cancel := context.WithCancel(context.Background())
	c.session = &ActiveSession{ID: id, Start: time.Now(), Snapshot: snap, ctx: sessCtx, cancel: cancel}

	handle, err := c.recorder.Start(sessCtx)
	if err != nil {
		logging.Errorf("session %d: start capture: %v", id, err)
		c.notifyError(err)
		cancel()
		c.session = nil
		return
	}
	c.session.Handle = handle
	c.session.AudioPath = handle.Path

	logging.Event(id, "recording_start", map[string]any{"language": snap.Language})
	c.setPhase(Recording)
}

func (c *Controller) stopRecording(ctx context.Context) {
	sess := c.session
	path, err := c.recorder.Stop(sess.ctx, sess.Handle)
	if err != nil {
		logging.Errorf("session %d: stop capture: %v", sess.ID, err)
		c.notifyError(err)
		c.cleanupSession()
		c.setPhase(Idle)
		return
	}
	sess.AudioPath = path
	c.setPhase(Processing)

	id := sess.ID
	lang := sess.Snapshot.Language
	sessCtx := sess.ctx
	go c.runPipeline(sessCtx, id, path, lang)
}

func (c *Controller) runPipeline(ctx context.Context, id uint64, path, lang string) {
	result, err := c.transcriber.Transcribe(ctx, path, lang)
	if err != nil {
		c.Submit(Event{Kind: EvFailed, SessionID: id, Err: err})
		return
	}

	text := result.Text
	if c.cleaner != nil && !result.NoSpeech {
		cleaned, err := c.cleaner.Clean(ctx, text)
		if err != nil {
			logging.Warnf("session %d: cleanup failed, using raw transcript: %v", id, err)
		} else {
			text = cleaned
		}
	}

	c.Submit(Event{Kind: EvProcessingComplete, SessionID: id, Text: text, NoSpeech: result.NoSpeech})
}

func (c *Controller) output(ctx context.Context, text string, noSpeech bool) {
	sess := c.session

	// The temp file's owner is transcription; once we've reached a
	// decision on the text it must be gone, per the §3 invariant that it
	// exists only while phase is Recording or Processing.
	if sess.AudioPath != "" {
		removeQuiet(sess.AudioPath)
		sess.AudioPath = ""
	}
	c.setPhase(Outputting)

	if noSpeech || text == "" {
		logging.Event(sess.ID, "no_speech", nil)
		c.Submit(Event{Kind: EvOutputComplete, SessionID: sess.ID})
		return
	}

	logging.Transcript(sess.ID, text)
	mode := sess.Snapshot.OutputMode
	id := sess.ID
	sessCtx := sess.ctx
	go func() {
		// A totally failed injection still reaches OutputComplete: the
		// controller returns to Idle once the injector task exits
		// regardless of outcome (spec.md §4.7 tie-breaks).
		if err := c.injector.Inject(sessCtx, text, mode); err != nil {
			logging.Errorf("session %d: injection failed: %v", id, err)
		}
		c.Submit(Event{Kind: EvOutputComplete, SessionID: id})
	}()
}

func (c *Controller) cancel() {
	switch c.phase {
	case Idle:
		// no-op, ok reply
	case Recording:
		c.recorder.Abort(c.session.Handle)
		c.cleanupSession()
		c.setPhase(Idle)
	case Processing:
		c.session.cancel()
		c.cleanupSession()
		c.setPhase(Idle)
	case Outputting:
		// best-effort: keystrokes may already be in flight; the
		// injector task still owns the OutputComplete transition.
		logging.Event(c.session.ID, "cancel_during_output", nil)
	}
}

func (c *Controller) finishSession() {
	if c.session != nil {
		logging.Event(c.session.ID, "session_complete", map[string]any{"elapsed_ms": time.Since(c.session.Start).Milliseconds()})
	}
	c.cleanupSession()
	c.setPhase(Idle)
}

func (c *Controller) cleanupSession() {
	if c.session == nil {
		return
	}
	if c.session.AudioPath != "" {
		removeQuiet(c.session.AudioPath)
	}
	c.session.cancel()
	c.session = nil
}

// notifyError turns a pipeline error into the short human-readable
// message spec.md §7 requires the feedback sink to surface, e.g.
// "Transcription failed: unauthorized".
func (c *Controller) notifyError(err error) {
	if c.sink == nil || err == nil {
		return
	}
	c.sink.NotifyError(describeError(err))
}

func describeError(err error) string {
	switch {
	case errors.Is(err, transcribe.ErrAuthError):
		return "Transcription failed: unauthorized"
	case errors.Is(err, transcribe.ErrRateLimited):
		return "Transcription failed: rate limited"
	case errors.Is(err, transcribe.ErrNetworkError):
		return "Transcription failed: network error"
	case errors.Is(err, transcribe.ErrServiceError):
		return "Transcription failed: service unavailable"
	case errors.Is(err, transcribe.ErrTimeout):
		return "Transcription failed: timed out"
	case errors.Is(err, transcribe.ErrMalformedResponse):
		return "Transcription failed: malformed response"
	case errors.Is(err, audiorec.ErrCaptureEmpty):
		return "Recording failed: no audio captured"
	case errors.Is(err, audiorec.ErrSpawnFailed):
		return "Recording failed: could not start capture"
	default:
		return fmt.Sprintf("Failed: %v", err)
	}
}

func (c *Controller) setPhase(p Phase) {
	c.mu.Lock()
	c.phase = p
	c.mu.Unlock()
	c.publish()
}

func (c *Controller) publish() {
	if c.sink == nil {
		return
	}
	c.sink.Publish(c.Snapshot())
}

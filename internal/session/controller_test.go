package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kumralcem/croaker/internal/audiorec"
	"github.com/kumralcem/croaker/internal/config"
	"github.com/kumralcem/croaker/internal/transcribe"
)

type fakeRecorder struct {
	mu       sync.Mutex
	started  int
	aborted  int
	startErr error
	stopErr  error
}

func (f *fakeRecorder) Start(ctx context.Context) (*audiorec.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started++
	if f.startErr != nil {
		return nil, f.startErr
	}
	return &audiorec.Handle{Path: "/tmp/fake.wav"}, nil
}

func (f *fakeRecorder) Stop(ctx context.Context, h *audiorec.Handle) (string, error) {
	if f.stopErr != nil {
		return "", f.stopErr
	}
	return h.Path, nil
}

func (f *fakeRecorder) Abort(h *audiorec.Handle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aborted++
}

type fakeTranscriber struct {
	result transcribe.Result
	err    error
	delay  time.Duration
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, path, language string) (transcribe.Result, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return transcribe.Result{}, ctx.Err()
		}
	}
	if f.err != nil {
		return transcribe.Result{}, f.err
	}
	return f.result, nil
}

type fakeCleaner struct{ prefix string }

func (f *fakeCleaner) Clean(ctx context.Context, raw string) (string, error) {
	return f.prefix + raw, nil
}

type fakeInjector struct {
	mu    sync.Mutex
	calls []string
	modes []config.OutputMode
	err   error
}

func (f *fakeInjector) Inject(ctx context.Context, text string, mode config.OutputMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, text)
	f.modes = append(f.modes, mode)
	return f.err
}

type fakeSink struct {
	mu     sync.Mutex
	states []FeedbackState
	errors []string
}

func (f *fakeSink) Publish(s FeedbackState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, s)
}

func (f *fakeSink) NotifyError(msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, msg)
}

func (f *fakeSink) last() FeedbackState {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.states) == 0 {
		return FeedbackState{}
	}
	return f.states[len(f.states)-1]
}

func waitForPhase(t *testing.T, c *Controller, want Phase) {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		if c.Snapshot().Phase == want {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for phase %s, currently %s", want, c.Snapshot().Phase)
		case <-time.After(time.Millisecond):
		}
	}
}

func newTestController(rec Recorder, tr Transcriber, cl Cleaner, inj Injector, sink FeedbackSink) (*Controller, context.CancelFunc) {
	settings := RuntimeSettings{
		Languages:       []string{"en", "tr", "es"},
		CurrentLanguage: "en",
		OutputMode:      config.OutputBoth,
	}
	c := New(rec, tr, cl, inj, sink, settings)
	ctx, cancel := context.WithCancel(context.Background())
	go c.Run(ctx)
	return c, cancel
}

func TestHappyPath(t *testing.T) {
	rec := &fakeRecorder{}
	tr := &fakeTranscriber{result: transcribe.Result{Text: "hello world"}}
	inj := &fakeInjector{}
	sink := &fakeSink{}
	c, cancel := newTestController(rec, tr, nil, inj, sink)
	defer cancel()

	c.Submit(Event{Kind: EvStartRecording})
	waitForPhase(t, c, Recording)

	c.Submit(Event{Kind: EvStopRecording})
	waitForPhase(t, c, Idle)

	inj.mu.Lock()
	defer inj.mu.Unlock()
	if len(inj.calls) != 1 || inj.calls[0] != "hello world" {
		t.Fatalf("expected one injection of 'hello world', got %v", inj.calls)
	}
}

func TestCleanupRewritesText(t *testing.T) {
	rec := &fakeRecorder{}
	tr := &fakeTranscriber{result: transcribe.Result{Text: "raw"}}
	cl := &fakeCleaner{prefix: "clean:"}
	inj := &fakeInjector{}
	c, cancel := newTestController(rec, tr, cl, inj, &fakeSink{})
	defer cancel()

	c.Submit(Event{Kind: EvStartRecording})
	waitForPhase(t, c, Recording)
	c.Submit(Event{Kind: EvStopRecording})
	waitForPhase(t, c, Idle)

	inj.mu.Lock()
	defer inj.mu.Unlock()
	if len(inj.calls) != 1 || inj.calls[0] != "clean:raw" {
		t.Fatalf("expected cleaned text, got %v", inj.calls)
	}
}

func TestNoSpeechSkipsInjection(t *testing.T) {
	rec := &fakeRecorder{}
	tr := &fakeTranscriber{result: transcribe.Result{NoSpeech: true}}
	inj := &fakeInjector{}
	c, cancel := newTestController(rec, tr, nil, inj, &fakeSink{})
	defer cancel()

	c.Submit(Event{Kind: EvStartRecording})
	waitForPhase(t, c, Recording)
	c.Submit(Event{Kind: EvStopRecording})
	waitForPhase(t, c, Idle)

	inj.mu.Lock()
	defer inj.mu.Unlock()
	if len(inj.calls) != 0 {
		t.Fatalf("expected no injection on no-speech result, got %v", inj.calls)
	}
}

func TestTranscribeFailureReturnsToIdle(t *testing.T) {
	rec := &fakeRecorder{}
	tr := &fakeTranscriber{err: transcribe.ErrAuthError}
	inj := &fakeInjector{}
	sink := &fakeSink{}
	c, cancel := newTestController(rec, tr, nil, inj, sink)
	defer cancel()

	c.Submit(Event{Kind: EvStartRecording})
	waitForPhase(t, c, Recording)
	c.Submit(Event{Kind: EvStopRecording})
	waitForPhase(t, c, Idle)

	inj.mu.Lock()
	if len(inj.calls) != 0 {
		t.Fatalf("expected no injection on failure, got %v", inj.calls)
	}
	inj.mu.Unlock()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.errors) != 1 || sink.errors[0] != "Transcription failed: unauthorized" {
		t.Fatalf("expected a user-visible auth failure notification, got %v", sink.errors)
	}
}

func TestCancelDuringRecordingAbortsAndCleansUp(t *testing.T) {
	rec := &fakeRecorder{}
	tr := &fakeTranscriber{result: transcribe.Result{Text: "unused"}}
	c, cancel := newTestController(rec, tr, nil, &fakeInjector{}, &fakeSink{})
	defer cancel()

	c.Submit(Event{Kind: EvStartRecording})
	waitForPhase(t, c, Recording)

	c.Submit(Event{Kind: EvCancel})
	waitForPhase(t, c, Idle)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.aborted != 1 {
		t.Fatalf("expected recorder.Abort to be called once, got %d", rec.aborted)
	}
}

func TestCancelDuringProcessingStopsPipeline(t *testing.T) {
	rec := &fakeRecorder{}
	tr := &fakeTranscriber{result: transcribe.Result{Text: "slow"}, delay: 200 * time.Millisecond}
	inj := &fakeInjector{}
	c, cancel := newTestController(rec, tr, nil, inj, &fakeSink{})
	defer cancel()

	c.Submit(Event{Kind: EvStartRecording})
	waitForPhase(t, c, Recording)
	c.Submit(Event{Kind: EvStopRecording})
	waitForPhase(t, c, Processing)

	c.Submit(Event{Kind: EvCancel})
	waitForPhase(t, c, Idle)

	time.Sleep(300 * time.Millisecond)
	inj.mu.Lock()
	defer inj.mu.Unlock()
	if len(inj.calls) != 0 {
		t.Fatalf("expected cancelled pipeline to never reach injection, got %v", inj.calls)
	}
}

func TestCancelInIdleIsNoop(t *testing.T) {
	c, cancel := newTestController(&fakeRecorder{}, &fakeTranscriber{}, nil, &fakeInjector{}, &fakeSink{})
	defer cancel()

	c.Submit(Event{Kind: EvCancel})
	time.Sleep(20 * time.Millisecond)
	if got := c.Snapshot().Phase; got != Idle {
		t.Fatalf("expected phase to remain idle, got %s", got)
	}
}

func TestStaleCompletionIsDiscarded(t *testing.T) {
	rec := &fakeRecorder{}
	tr := &fakeTranscriber{result: transcribe.Result{Text: "one"}}
	inj := &fakeInjector{}
	c, cancel := newTestController(rec, tr, nil, inj, &fakeSink{})
	defer cancel()

	// Simulate a completion event for a session that never existed.
	c.Submit(Event{Kind: EvProcessingComplete, SessionID: 999, Text: "ghost"})
	time.Sleep(20 * time.Millisecond)
	if got := c.Snapshot().Phase; got != Idle {
		t.Fatalf("expected stale completion to be ignored, phase is %s", got)
	}

	inj.mu.Lock()
	defer inj.mu.Unlock()
	if len(inj.calls) != 0 {
		t.Fatalf("expected no injection from stale completion, got %v", inj.calls)
	}
}

func TestToggleLanguageWraps(t *testing.T) {
	s := RuntimeSettings{Languages: []string{"en", "tr", "es"}, CurrentLanguage: "en"}
	s.ToggleLanguage()
	if s.CurrentLanguage != "tr" {
		t.Fatalf("expected tr, got %s", s.CurrentLanguage)
	}
	s.ToggleLanguage()
	if s.CurrentLanguage != "es" {
		t.Fatalf("expected es, got %s", s.CurrentLanguage)
	}
	s.ToggleLanguage()
	if s.CurrentLanguage != "en" {
		t.Fatalf("expected wraparound to en, got %s", s.CurrentLanguage)
	}
}

func TestToggleOutputModeCycle(t *testing.T) {
	m := config.OutputBoth
	seq := []config.OutputMode{}
	for i := 0; i < 3; i++ {
		m = m.Cycle()
		seq = append(seq, m)
	}
	want := []config.OutputMode{config.OutputClipboard, config.OutputDirect, config.OutputBoth}
	for i := range want {
		if seq[i] != want[i] {
			t.Fatalf("cycle mismatch at %d: got %s, want %s", i, seq[i], want[i])
		}
	}
}

func TestSettingsToggleDoesNotAffectInFlightSession(t *testing.T) {
	rec := &fakeRecorder{}
	tr := &fakeTranscriber{result: transcribe.Result{Text: "hi"}, delay: 100 * time.Millisecond}
	inj := &fakeInjector{}
	c, cancel := newTestController(rec, tr, nil, inj, &fakeSink{})
	defer cancel()

	c.Submit(Event{Kind: EvStartRecording})
	waitForPhase(t, c, Recording)
	c.Submit(Event{Kind: EvStopRecording})
	waitForPhase(t, c, Processing)

	// Toggling mid-flight must not retroactively change the session's
	// frozen output mode; only the *next* recording should observe it.
	c.Submit(Event{Kind: EvToggleOutputMode})
	waitForPhase(t, c, Idle)

	inj.mu.Lock()
	defer inj.mu.Unlock()
	if len(inj.calls) != 1 {
		t.Fatalf("expected exactly one injection, got %v", inj.calls)
	}
	if inj.modes[0] != config.OutputBoth {
		t.Fatalf("expected in-flight session to keep its frozen mode %s, got %s", config.OutputBoth, inj.modes[0])
	}
	if got := c.Snapshot().OutputMode; got != config.OutputClipboard {
		t.Fatalf("expected toggled mode %s for the next session, got %s", config.OutputClipboard, got)
	}
}

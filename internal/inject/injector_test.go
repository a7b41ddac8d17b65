package inject

import (
	"context"
	"errors"
	"testing"

	"github.com/kumralcem/croaker/internal/config"
)

type fakeTyper struct {
	available  bool
	typeErr    error
	pasteErr   error
	typed      []string
	pasteCalls int
}

func (f *fakeTyper) Available() bool { return f.available }

func (f *fakeTyper) Type(ctx context.Context, text string) error {
	if f.typeErr != nil {
		return f.typeErr
	}
	f.typed = append(f.typed, text)
	return nil
}

func (f *fakeTyper) PasteChord(ctx context.Context) error {
	f.pasteCalls++
	return f.pasteErr
}

type fakeClipboard struct {
	content string
	copyErr error
}

func (f *fakeClipboard) Copy(text string) error {
	if f.copyErr != nil {
		return f.copyErr
	}
	f.content = text
	return nil
}

func (f *fakeClipboard) Read() (string, error) { return f.content, nil }

func TestInjectClipboardMode(t *testing.T) {
	clip := &fakeClipboard{}
	in := New(nil, nil, clip, false, nil)

	if err := in.Inject(context.Background(), "hello", config.OutputClipboard); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if clip.content != "hello" {
		t.Fatalf("expected clipboard to contain 'hello', got %q", clip.content)
	}
}

func TestInjectDirectPrefersWayland(t *testing.T) {
	wl := &fakeTyper{available: true}
	x11 := &fakeTyper{available: true}
	clip := &fakeClipboard{}
	in := New(wl, x11, clip, false, nil)

	if err := in.Inject(context.Background(), "hi", config.OutputDirect); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(wl.typed) != 1 || wl.typed[0] != "hi" {
		t.Fatalf("expected wayland typer to receive text, got %v", wl.typed)
	}
	if len(x11.typed) != 0 {
		t.Fatalf("expected x11 typer not to be used when wayland succeeds, got %v", x11.typed)
	}
}

func TestInjectDirectFallsBackToX11(t *testing.T) {
	wl := &fakeTyper{available: true, typeErr: errors.New("no compositor support")}
	x11 := &fakeTyper{available: true}
	clip := &fakeClipboard{}
	in := New(wl, x11, clip, false, nil)

	if err := in.Inject(context.Background(), "hi", config.OutputDirect); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(x11.typed) != 1 {
		t.Fatalf("expected x11 fallback to be used, got %v", x11.typed)
	}
}

func TestInjectDirectFallsBackToClipboardNotify(t *testing.T) {
	wl := &fakeTyper{available: false}
	x11 := &fakeTyper{available: false}
	clip := &fakeClipboard{}
	var notified string
	in := New(wl, x11, clip, false, func(text string) { notified = text })

	if err := in.Inject(context.Background(), "hi", config.OutputDirect); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if clip.content != "hi" {
		t.Fatalf("expected clipboard fallback, got %q", clip.content)
	}
	if notified != "hi" {
		t.Fatalf("expected manual-paste notification, got %q", notified)
	}
}

func TestInjectDirectAllFailuresReturnsInjectionFailed(t *testing.T) {
	wl := &fakeTyper{available: false}
	x11 := &fakeTyper{available: false}
	clip := &fakeClipboard{copyErr: errors.New("no clipboard tool")}
	in := New(wl, x11, clip, false, nil)

	err := in.Inject(context.Background(), "hi", config.OutputDirect)
	if !errors.Is(err, ErrInjectionFailed) {
		t.Fatalf("expected ErrInjectionFailed, got %v", err)
	}
}

func TestInjectBothPastesAfterCopy(t *testing.T) {
	wl := &fakeTyper{available: true}
	clip := &fakeClipboard{}
	in := New(wl, nil, clip, false, nil)

	if err := in.Inject(context.Background(), "hi", config.OutputBoth); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if clip.content != "hi" {
		t.Fatalf("expected clipboard copy in both mode, got %q", clip.content)
	}
	if wl.pasteCalls != 1 {
		t.Fatalf("expected one paste chord attempt, got %d", wl.pasteCalls)
	}
}

func TestInjectBothPasteFailureStillSucceedsOverall(t *testing.T) {
	wl := &fakeTyper{available: true, pasteErr: errors.New("paste blocked")}
	clip := &fakeClipboard{}
	var notified string
	in := New(wl, nil, clip, false, func(text string) { notified = text })

	err := in.Inject(context.Background(), "hi", config.OutputBoth)
	if err != nil {
		t.Fatalf("expected both-mode to succeed overall despite paste failure, got %v", err)
	}
	if notified != "hi" {
		t.Fatalf("expected manual-paste notification after failed paste, got %q", notified)
	}
}

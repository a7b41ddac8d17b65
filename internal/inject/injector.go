// Package inject implements TextInjector (spec.md §4.4): delivering
// transcribed text to the focused window via clipboard, synthetic
// keystrokes, or both, with the strategy ladder falling back whenever a
// step is unavailable in the current session.
package inject

import (
	"context"
	"errors"

	"github.com/kumralcem/croaker/internal/config"
	"github.com/kumralcem/croaker/internal/logging"
)

// ErrInjectionFailed is returned only when every step in the ladder for
// the requested mode has failed.
var ErrInjectionFailed = errors.New("inject: no delivery path succeeded")

// Typer is a synthetic-keyboard backend: types text character by
// character, or presses Ctrl+V once for pasting.
type Typer interface {
	Available() bool
	Type(ctx context.Context, text string) error
	PasteChord(ctx context.Context) error
}

// Clipboarder is the system clipboard backend.
type Clipboarder interface {
	Copy(text string) error
	Read() (string, error)
}

// Injector implements session.Injector. Direct mode tries backends in
// order: Wayland virtual keyboard, then X11 uinput, then clipboard with a
// "paste manually" notice; Both copies first, then attempts the same
// typing chain as a Ctrl+V paste.
type Injector struct {
	Wayland          Typer
	X11              Typer
	Clipboard        Clipboarder
	ClipboardRestore bool
	Notify           func(text string) // best-effort "text ready" notice; nil is fine

	restore *clipboardRestorer
}

// New builds an Injector. wayland or x11 may be nil when unavailable on
// the current platform/session; clipboard must not be nil. The
// per-keystroke delay lives on the Typer implementations themselves
// (e.g. X11Typer), not here.
func New(wayland, x11 Typer, clip Clipboarder, clipboardRestore bool, notify func(string)) *Injector {
	return &Injector{
		Wayland:          wayland,
		X11:              x11,
		Clipboard:        clip,
		ClipboardRestore: clipboardRestore,
		Notify:           notify,
		restore:          newClipboardRestorer(),
	}
}

// Inject delivers text according to mode.
func (in *Injector) Inject(ctx context.Context, text string, mode config.OutputMode) error {
	switch mode {
	case config.OutputClipboard:
		return in.copyToClipboard(text)
	case config.OutputDirect:
		return in.direct(ctx, text)
	case config.OutputBoth:
		if err := in.copyToClipboard(text); err != nil {
			return err
		}
		if err := in.paste(ctx); err != nil {
			// Both mode treats a failed paste as an overall success once
			// the clipboard copy succeeded, per spec.md §4.4.
			logging.Warnf("inject: paste step failed after clipboard copy: %v", err)
			in.notifyManualPaste(text)
		}
		return nil
	default:
		return in.copyToClipboard(text)
	}
}

func (in *Injector) direct(ctx context.Context, text string) error {
	if isASCII(text) {
		if in.Wayland != nil && in.Wayland.Available() {
			if err := in.Wayland.Type(ctx, text); err == nil {
				return nil
			} else {
				logging.Warnf("inject: wayland typing failed, falling back: %v", err)
			}
		}
		if in.X11 != nil && in.X11.Available() {
			if err := in.X11.Type(ctx, text); err == nil {
				return nil
			} else {
				logging.Warnf("inject: uinput typing failed, falling back: %v", err)
			}
		}
	} else {
		logging.Warnf("inject: non-ASCII text, skipping typing paths")
	}

	if err := in.copyToClipboard(text); err != nil {
		return ErrInjectionFailed
	}
	in.notifyManualPaste(text)
	return nil
}

func (in *Injector) paste(ctx context.Context) error {
	if in.Wayland != nil && in.Wayland.Available() {
		if err := in.Wayland.PasteChord(ctx); err == nil {
			return nil
		}
	}
	if in.X11 != nil && in.X11.Available() {
		if err := in.X11.PasteChord(ctx); err == nil {
			return nil
		}
	}
	return ErrInjectionFailed
}

func (in *Injector) copyToClipboard(text string) error {
	if in.ClipboardRestore {
		if prior, err := in.Clipboard.Read(); err == nil {
			in.restore.schedule(in.Clipboard, prior)
		}
	}
	if err := in.Clipboard.Copy(text); err != nil {
		return ErrInjectionFailed
	}
	return nil
}

func (in *Injector) notifyManualPaste(text string) {
	if in.Notify != nil {
		in.Notify(text)
	}
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 127 {
			return false
		}
	}
	return true
}

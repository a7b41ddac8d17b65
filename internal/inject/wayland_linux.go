//go:build linux

package inject

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	execute "github.com/alexellis/go-execute/v2"
)

// WaylandTyper drives the compositor's virtual-keyboard protocol through
// the wtype command-line tool rather than speaking the wire protocol
// directly — no Wayland client library was available to build against,
// so this follows the same "delegate to an external one-shot binary"
// shape as internal/diag's doctor checks, using go-execute the way
// kdepsexec.KdepsExec runs short-lived commands to completion.
type WaylandTyper struct {
	bin string
}

// NewWaylandTyper builds a WaylandTyper. Available() is false when the
// wtype binary isn't on PATH or WAYLAND_DISPLAY isn't set.
func NewWaylandTyper() *WaylandTyper {
	bin, _ := exec.LookPath("wtype")
	return &WaylandTyper{bin: bin}
}

// Available reports whether this looks like a Wayland session with wtype
// installed.
func (t *WaylandTyper) Available() bool {
	return t.bin != "" && os.Getenv("WAYLAND_DISPLAY") != ""
}

func (t *WaylandTyper) run(ctx context.Context, args []string) error {
	task := execute.ExecTask{
		Command:     t.bin,
		Args:        args,
		StreamStdio: false,
	}
	result, err := task.Execute(ctx)
	if err != nil {
		return fmt.Errorf("inject: wtype: %w", err)
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("inject: wtype exited %d: %s", result.ExitCode, result.Stderr)
	}
	return nil
}

// Type sends text character by character through wtype.
func (t *WaylandTyper) Type(ctx context.Context, text string) error {
	return t.run(ctx, []string{text})
}

// PasteChord presses Ctrl+V via wtype's modifier flags.
func (t *WaylandTyper) PasteChord(ctx context.Context) error {
	return t.run(ctx, []string{"-M", "ctrl", "-P", "v", "-m", "ctrl", "-p", "v"})
}

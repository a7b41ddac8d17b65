// Package feedback implements FeedbackSink (spec.md §4.6): tray icon and
// desktop notification backends subscribed to phase changes.
package feedback

import (
	"fmt"
	"sync"

	"fyne.io/systray"
	"github.com/kumralcem/croaker/internal/session"
)

// Tray publishes a StatusNotifierItem-compatible tray icon on the
// session bus via fyne.io/systray, chosen over the teacher's
// energye/systray fork (tray/tray_darwin.go) because it is cross-platform
// and speaks StatusNotifierItem natively on Linux without a Darwin-only
// dependency.
type Tray struct {
	mu       sync.Mutex
	quitItem *systray.MenuItem
	status   *systray.MenuItem
	ready    chan struct{}
	quit     chan struct{}
}

// NewTray constructs a Tray. Call Run in its own goroutine once the
// systray host (if any) is expected to be reachable.
func NewTray() *Tray {
	return &Tray{ready: make(chan struct{}), quit: make(chan struct{})}
}

// Run blocks running the systray event loop until Quit is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit tears the tray icon down.
func (t *Tray) Quit() {
	systray.Quit()
}

// Done reports when the user has clicked Quit in the tray menu.
func (t *Tray) Done() <-chan struct{} {
	return t.quit
}

func (t *Tray) onReady() {
	systray.SetTitle("croaker")
	systray.SetTooltip("croaker – push to talk")
	setIcon(session.Idle)

	t.status = systray.AddMenuItem("phase=idle lang=- mode=-", "current status")
	t.status.Disable()
	systray.AddSeparator()
	t.quitItem = systray.AddMenuItem("Quit", "stop croaker")

	go func() {
		<-t.quitItem.ClickedCh
		close(t.quit)
		systray.Quit()
	}()
	close(t.ready)
}

func (t *Tray) onExit() {}

// Publish implements session.FeedbackSink. It always reflects the
// latest state; a slow or absent tray host never blocks the controller
// since systray's SetIcon/SetTooltip calls are non-blocking sends to its
// own internal loop.
func (t *Tray) Publish(state session.FeedbackState) {
	select {
	case <-t.ready:
	default:
		return // tray not up yet; state will be stale until next Publish
	}

	setIcon(state.Phase)
	systray.SetTooltip(fmt.Sprintf("mode=%s, lang=%s", state.OutputMode, state.Language))
	if t.status != nil {
		t.status.SetTitle(fmt.Sprintf("phase=%s lang=%s mode=%s", state.Phase, state.Language, state.OutputMode))
	}
}

// NotifyError implements session.FeedbackSink. The tray has no popup
// mechanism of its own, so the message is surfaced on the status menu
// item — the next Publish call overwrites it with the current phase.
func (t *Tray) NotifyError(msg string) {
	select {
	case <-t.ready:
	default:
		return
	}
	if t.status != nil {
		t.status.SetTitle(msg)
	}
}

// setIcon follows the phase color coding from spec.md §4.6: grey=Idle,
// red=Recording, orange=Processing, green=Outputting.
func setIcon(phase session.Phase) {
	switch phase {
	case session.Recording:
		systray.SetIcon(iconRed)
	case session.Processing:
		systray.SetIcon(iconOrange)
	case session.Outputting:
		systray.SetIcon(iconGreen)
	default:
		systray.SetIcon(iconGrey)
	}
}

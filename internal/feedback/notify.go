package feedback

import (
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/kumralcem/croaker/internal/session"
)

const (
	notifyBusName  = "org.freedesktop.Notifications"
	notifyObjPath  = "/org/freedesktop/Notifications"
	notifyIface    = "org.freedesktop.Notifications"
	notifyAppName  = "croaker"
	notifyIconName = "audio-input-microphone"
)

// Notifier emits a desktop notification on each phase transition and on
// mode/language toggles, per spec.md §4.6's notification backend.
type Notifier struct {
	conn    *dbus.Conn
	last    session.FeedbackState
	haveOne bool
}

// NewNotifier connects to the session bus for org.freedesktop.Notifications.
// A connection failure is non-fatal — the returned Notifier degrades to a
// no-op so daemon startup never depends on notification availability.
func NewNotifier() *Notifier {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return &Notifier{}
	}
	return &Notifier{conn: conn}
}

// Publish implements session.FeedbackSink. It dedupes on the full state —
// phase, output mode, and language — so a mode or language toggle that
// leaves phase unchanged still produces a notification, per spec.md
// §4.6's "on each phase transition and on mode/language toggles".
func (n *Notifier) Publish(state session.FeedbackState) {
	if n.conn == nil {
		return
	}
	if n.haveOne && state == n.last {
		return
	}
	n.last = state
	n.haveOne = true
	n.send(fmt.Sprintf("croaker: %s", state.Phase), fmt.Sprintf("mode=%s lang=%s", state.OutputMode, state.Language))
}

// NotifyManualPaste tells the user their text is on the clipboard because
// no typing backend was available, the spec.md §4.4 fallback notice.
func (n *Notifier) NotifyManualPaste(text string) {
	if n.conn == nil {
		return
	}
	n.send("croaker: text ready", "paste manually (Ctrl+V) — typing backend unavailable")
}

// NotifyError implements session.FeedbackSink, surfacing a pipeline
// failure per spec.md §7's propagation rule.
func (n *Notifier) NotifyError(msg string) {
	if n.conn == nil {
		return
	}
	n.send("croaker: error", msg)
}

func (n *Notifier) send(summary, body string) {
	obj := n.conn.Object(notifyBusName, dbus.ObjectPath(notifyObjPath))
	call := obj.Call(notifyIface+".Notify", 0,
		notifyAppName,
		uint32(0),
		notifyIconName,
		summary,
		body,
		[]string{},
		map[string]dbus.Variant{},
		int32(4000),
	)
	_ = call.Err // best-effort; a missing notification daemon must not affect the session
}

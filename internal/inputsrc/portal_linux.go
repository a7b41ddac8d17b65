//go:build linux

package inputsrc

import (
	"context"
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/kumralcem/croaker/internal/logging"
	"github.com/kumralcem/croaker/internal/session"
)

const (
	portalBusName    = "org.freedesktop.portal.Desktop"
	portalObjectPath = "/org/freedesktop/portal/desktop"
	portalIface      = "org.freedesktop.portal.GlobalShortcuts"
	requestIface     = "org.freedesktop.portal.Request"
	toggleShortcutID = "croaker-toggle"
)

// PortalSource registers a single global shortcut ("toggle") with the
// session's xdg-desktop-portal GlobalShortcuts interface and translates
// its activation into StartRecording/StopRecording, per spec.md §4.5.
// Absence of the portal is logged and non-fatal — the daemon still works
// through evdev and the socket.
type PortalSource struct {
	sink Sink
	ctrl *session.Controller
}

// NewPortalSource builds a PortalSource. ctrl is consulted only to decide
// whether an activation means start or stop.
func NewPortalSource(sink Sink, ctrl *session.Controller) *PortalSource {
	return &PortalSource{sink: sink, ctrl: ctrl}
}

// Run connects to the session bus and listens for shortcut activations
// until ctx is cancelled. It restarts the whole handshake with capped
// backoff if the portal is unavailable or the bus connection drops.
func (p *PortalSource) Run(ctx context.Context) {
	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := p.listen(ctx); err != nil {
			logging.Warnf("portal: global shortcuts unavailable: %v (retrying in %s)", err, backoff)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > 30*time.Second {
				backoff = 30 * time.Second
			}
			continue
		}
		backoff = time.Second
	}
}

func (p *PortalSource) listen(ctx context.Context) error {
	conn, err := dbus.ConnectSessionBus(dbus.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("connecting to session bus: %w", err)
	}
	defer conn.Close()

	sessionHandle, err := p.createSession(conn)
	if err != nil {
		return fmt.Errorf("creating portal session: %w", err)
	}

	if err := p.bindShortcuts(conn, sessionHandle); err != nil {
		return fmt.Errorf("binding shortcuts: %w", err)
	}

	activated := make(chan *dbus.Signal, 8)
	conn.Signal(activated)
	matchRule := fmt.Sprintf("type='signal',interface='%s',member='Activated'", portalIface)
	if err := conn.BusObject().Call("org.freedesktop.DBus.AddMatch", 0, matchRule).Err; err != nil {
		return fmt.Errorf("subscribing to Activated: %w", err)
	}

	logging.Info("portal: global shortcuts registered")
	for {
		select {
		case <-ctx.Done():
			return nil
		case sig, ok := <-activated:
			if !ok {
				return fmt.Errorf("session bus connection closed")
			}
			if sig == nil || sig.Name != portalIface+".Activated" {
				continue
			}
			p.onActivated(sig)
		}
	}
}

func (p *PortalSource) onActivated(sig *dbus.Signal) {
	if len(sig.Body) < 2 {
		return
	}
	shortcutID, _ := sig.Body[1].(string)
	if shortcutID != toggleShortcutID {
		return
	}
	switch p.ctrl.Snapshot().Phase {
	case session.Idle:
		p.sink.Submit(session.Event{Kind: session.EvStartRecording})
	case session.Recording:
		p.sink.Submit(session.Event{Kind: session.EvStopRecording})
	}
}

// createSession performs the portal's CreateSession request/response
// dance: call the method, wait for the paired org.freedesktop.portal.Request
// object to emit its Response signal, and pull session_handle out of the
// results map.
func (p *PortalSource) createSession(conn *dbus.Conn) (dbus.ObjectPath, error) {
	obj := conn.Object(portalBusName, portalObjectPath)
	token := "croaker_session"

	var requestPath dbus.ObjectPath
	err := obj.Call(portalIface+".CreateSession", 0, map[string]dbus.Variant{
		"session_handle_token": dbus.MakeVariant(token),
		"handle_token":         dbus.MakeVariant(token),
	}).Store(&requestPath)
	if err != nil {
		return "", err
	}

	results, err := awaitPortalResponse(conn, requestPath)
	if err != nil {
		return "", err
	}
	handle, ok := results["session_handle"].Value().(string)
	if !ok {
		return "", fmt.Errorf("response missing session_handle")
	}
	return dbus.ObjectPath(handle), nil
}

func (p *PortalSource) bindShortcuts(conn *dbus.Conn, sessionHandle dbus.ObjectPath) error {
	obj := conn.Object(portalBusName, portalObjectPath)

	shortcuts := []struct {
		ID          string
		Description map[string]dbus.Variant
	}{
		{ID: toggleShortcutID, Description: map[string]dbus.Variant{
			"description": dbus.MakeVariant("Start or stop dictation"),
		}},
	}

	type shortcutEntry struct {
		ID   string
		Opts map[string]dbus.Variant
	}
	entries := make([]shortcutEntry, 0, len(shortcuts))
	for _, s := range shortcuts {
		entries = append(entries, shortcutEntry{ID: s.ID, Opts: s.Description})
	}

	var requestPath dbus.ObjectPath
	err := obj.Call(portalIface+".BindShortcuts", 0, sessionHandle, entries, "", map[string]dbus.Variant{
		"handle_token": dbus.MakeVariant("croaker_bind"),
	}).Store(&requestPath)
	if err != nil {
		return err
	}

	_, err = awaitPortalResponse(conn, requestPath)
	return err
}

// awaitPortalResponse subscribes to the given Request object's Response
// signal and returns its results map, per the xdg-desktop-portal request
// pattern every portal method follows.
func awaitPortalResponse(conn *dbus.Conn, requestPath dbus.ObjectPath) (map[string]dbus.Variant, error) {
	ch := make(chan *dbus.Signal, 1)
	conn.Signal(ch)
	defer conn.RemoveSignal(ch)

	rule := fmt.Sprintf("type='signal',interface='%s',member='Response',path='%s'", requestIface, requestPath)
	if err := conn.BusObject().Call("org.freedesktop.DBus.AddMatch", 0, rule).Err; err != nil {
		return nil, err
	}
	defer conn.BusObject().Call("org.freedesktop.DBus.RemoveMatch", 0, rule)

	select {
	case sig := <-ch:
		if sig == nil || len(sig.Body) < 2 {
			return nil, fmt.Errorf("malformed portal response")
		}
		code, _ := sig.Body[0].(uint32)
		if code != 0 {
			return nil, fmt.Errorf("portal request failed with code %d", code)
		}
		results, _ := sig.Body[1].(map[string]dbus.Variant)
		return results, nil
	case <-time.After(5 * time.Second):
		return nil, fmt.Errorf("timed out waiting for portal response")
	}
}

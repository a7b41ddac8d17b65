// Package inputsrc implements the three InputSources producers from
// spec.md §4.5: the evdev push-to-talk/chord monitor, the compositor
// global-shortcuts portal listener, and the Unix-domain command socket.
// Each runs as an independent long-lived task feeding a single Sink.
package inputsrc

import (
	"strings"

	"github.com/kumralcem/croaker/internal/session"
)

// Sink is the single unified event channel every source feeds. It is
// satisfied by *session.Controller.
type Sink interface {
	Submit(e session.Event) bool
}

// keyNames maps the subset of linux/input-event-codes.h names used in
// config strings to their evdev keycodes.
var keyNames = map[string]uint16{
	"leftctrl": 29, "rightctrl": 97, "ctrl": 29,
	"leftshift": 42, "rightshift": 54, "shift": 42,
	"leftalt": 56, "rightalt": 100, "alt": 56,
	"leftmeta": 125, "rightmeta": 126, "super": 125, "meta": 125,
	"escape": 1, "space": 57, "enter": 28, "tab": 15,
	"a": 30, "b": 48, "c": 46, "d": 32, "e": 18, "f": 33, "g": 34, "h": 35,
	"i": 23, "j": 36, "k": 37, "l": 38, "m": 50, "n": 49, "o": 24, "p": 25,
	"q": 16, "r": 19, "s": 31, "t": 20, "u": 22, "v": 47, "w": 17, "x": 45,
	"y": 21, "z": 44,
}

// ParseChord splits a "Modifier+Modifier+Key" shortcut string (as found
// in Config.Hotkeys) into a Chord's modifier and trigger keycodes.
func ParseChord(spec string, kind session.EventKind) (Chord, bool) {
	parts := strings.Split(spec, "+")
	if len(parts) == 0 {
		return Chord{}, false
	}
	trigger, ok := lookupKey(parts[len(parts)-1])
	if !ok {
		return Chord{}, false
	}
	var mods []uint16
	for _, p := range parts[:len(parts)-1] {
		code, ok := lookupKey(p)
		if !ok {
			return Chord{}, false
		}
		mods = append(mods, code)
	}
	return Chord{Modifiers: mods, Trigger: trigger, Kind: kind}, true
}

// ParseKey resolves a single key name (e.g. the push-to-talk key) to its
// evdev keycode.
func ParseKey(name string) (uint16, bool) {
	return lookupKey(name)
}

func lookupKey(name string) (uint16, bool) {
	code, ok := keyNames[strings.ToLower(name)]
	return code, ok
}

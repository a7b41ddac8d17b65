//go:build linux

package inputsrc

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kumralcem/croaker/internal/logging"
	"github.com/kumralcem/croaker/internal/session"
)

const (
	evKey          = 1
	keyPress       = 1
	keyRepeat      = 2
	keyRelease     = 0
	inputEventSize = 24
)

// rescanInterval controls how often the device list is refreshed to pick
// up keyboards attached after startup, per spec.md §4.5's hot-plug note.
const rescanInterval = 10 * time.Second

// Chord is a modifier set plus a trigger key that fires a single event on
// full press.
type Chord struct {
	Modifiers []uint16
	Trigger   uint16
	Kind      session.EventKind
}

// EvdevSource watches every readable keyboard-capable /dev/input/event*
// device for a configured push-to-talk key and a set of chorded
// shortcuts, grounded on hotkey/hotkey_linux.go generalized from a single
// hardcoded Ctrl+Shift+Space chord to a configurable key plus an
// arbitrary chord list.
type EvdevSource struct {
	pushToTalkKey uint16
	chords        []Chord
	sink          Sink

	stop chan struct{}
	done chan struct{}
}

// NewEvdevSource builds a source watching pushToTalkKey for press/release
// and firing chords on full press.
func NewEvdevSource(pushToTalkKey uint16, chords []Chord, sink Sink) *EvdevSource {
	return &EvdevSource{
		pushToTalkKey: pushToTalkKey,
		chords:        chords,
		sink:          sink,
	}
}

// Run watches devices until ctx is cancelled, restarting the device scan
// on recoverable errors with backoff capped at 30s.
func (s *EvdevSource) Run(ctx context.Context) {
	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := s.watch(ctx); err != nil {
			logging.Warnf("evdev: %v, retrying in %s", err, backoff)
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

func (s *EvdevSource) watch(ctx context.Context) error {
	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	openFiles := map[string]*os.File{}
	defer func() {
		for _, f := range openFiles {
			f.Close()
		}
	}()

	rescan := time.NewTicker(rescanInterval)
	defer rescan.Stop()

	for {
		keyboards, err := findKeyboards()
		if err != nil {
			return err
		}
		for _, path := range keyboards {
			if _, open := openFiles[path]; open {
				continue
			}
			f, err := os.Open(path)
			if err != nil {
				continue
			}
			openFiles[path] = f
			go s.readEvents(watchCtx, f)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-rescan.C:
		}
	}
}

func (s *EvdevSource) readEvents(ctx context.Context, f *os.File) {
	buf := make([]byte, inputEventSize*16)
	held := map[uint16]bool{}
	fired := map[int]bool{} // chord index -> already fired for this hold
	ptaHeld := false

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := f.Read(buf)
		if err != nil {
			return
		}

		for i := 0; i+inputEventSize <= n; i += inputEventSize {
			evType := binary.LittleEndian.Uint16(buf[i+16:])
			evCode := binary.LittleEndian.Uint16(buf[i+18:])
			evValue := int32(binary.LittleEndian.Uint32(buf[i+20:]))
			if evType != evKey {
				continue
			}

			switch evValue {
			case keyPress:
				held[evCode] = true
			case keyRelease:
				held[evCode] = false
			case keyRepeat:
				continue // auto-repeat never fires a chord, per spec.md §4.5
			}

			if evCode == s.pushToTalkKey {
				if evValue == keyPress && !ptaHeld {
					ptaHeld = true
					s.sink.Submit(session.Event{Kind: session.EvStartRecording})
				} else if evValue == keyRelease && ptaHeld {
					ptaHeld = false
					s.sink.Submit(session.Event{Kind: session.EvStopRecording})
				}
			}

			for idx, chord := range s.chords {
				if evCode != chord.Trigger {
					continue
				}
				if evValue == keyRelease {
					fired[idx] = false
					continue
				}
				if evValue != keyPress || fired[idx] {
					continue
				}
				if allHeld(held, chord.Modifiers) {
					fired[idx] = true
					s.sink.Submit(session.Event{Kind: chord.Kind})
				}
			}
		}
	}
}

func allHeld(held map[uint16]bool, keys []uint16) bool {
	for _, k := range keys {
		if !held[k] {
			return false
		}
	}
	return true
}

func findKeyboards() ([]string, error) {
	entries, err := os.ReadDir("/dev/input")
	if err != nil {
		return nil, err
	}

	var keyboards []string
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), "event") {
			continue
		}
		if isKeyboard(e.Name()) {
			keyboards = append(keyboards, filepath.Join("/dev/input", e.Name()))
		}
	}
	return keyboards, nil
}

func isKeyboard(eventName string) bool {
	capsPath := filepath.Join("/sys/class/input", eventName, "device", "capabilities", "key")
	data, err := os.ReadFile(capsPath)
	if err != nil {
		return false
	}
	return len(strings.TrimSpace(string(data))) > 10
}

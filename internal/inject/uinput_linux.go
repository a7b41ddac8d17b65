//go:build linux

package inject

import (
	"context"
	"encoding/binary"
	"errors"
	"os"
	"sync"
	"syscall"
	"time"
)

// ioctl constants from linux/uinput.h, matching clipboard/clipboard_linux.go.
const (
	uiSetEvbit  = 0x40045564
	uiSetKeybit = 0x40045565
	uiDevCreate = 0x5501
)

// input event types from linux/input-event-codes.h
const (
	evSyn = 0x00
	evKey = 0x01
)

const busUSB = 0x03

const (
	keyLeftCtrl = 29
	keyV        = 47
)

type inputEvent struct {
	Time  syscall.Timeval
	Type  uint16
	Code  uint16
	Value int32
}

type inputID struct {
	Bustype uint16
	Vendor  uint16
	Product uint16
	Version uint16
}

type uinputUserDev struct {
	Name         [80]byte
	ID           inputID
	FfEffectsMax uint32
	Absmax       [64]int32
	Absmin       [64]int32
	Absfuzz      [64]int32
	Absflat      [64]int32
}

// X11Typer synthesizes key events through the kernel uinput device, the
// Direct-mode fallback for X11 sessions once the Wayland virtual-keyboard
// path is unavailable.
type X11Typer struct {
	keystrokeDelay time.Duration

	once sync.Once
	fd   *os.File
	err  error
}

// NewX11Typer builds an X11Typer. keystrokeDelay mitigates key drop by
// fast listeners, per spec.md §4.4 (default 5ms).
func NewX11Typer(keystrokeDelay time.Duration) *X11Typer {
	return &X11Typer{keystrokeDelay: keystrokeDelay}
}

// Available reports whether /dev/uinput could plausibly be opened,
// without paying the cost of registering the virtual device.
func (t *X11Typer) Available() bool {
	for _, path := range []string{"/dev/uinput", "/dev/input/uinput"} {
		if _, err := os.Stat(path); err == nil {
			return true
		}
	}
	return false
}

func (t *X11Typer) init() error {
	t.once.Do(func() {
		path := "/dev/uinput"
		if _, err := os.Stat(path); err != nil {
			path = "/dev/input/uinput"
			if _, err := os.Stat(path); err != nil {
				t.err = errors.New("inject: uinput device not found, try: sudo modprobe uinput")
				return
			}
		}
		f, err := os.OpenFile(path, os.O_WRONLY|syscall.O_NONBLOCK, os.ModeDevice)
		if err != nil {
			t.err = err
			return
		}
		if _, _, errno := syscall.Syscall(syscall.SYS_IOCTL, f.Fd(), uiSetEvbit, evKey); errno != 0 {
			t.err = errno
			f.Close()
			return
		}
		if _, _, errno := syscall.Syscall(syscall.SYS_IOCTL, f.Fd(), uiSetEvbit, evSyn); errno != 0 {
			t.err = errno
			f.Close()
			return
		}
		for i := uintptr(0); i < 256; i++ {
			if _, _, errno := syscall.Syscall(syscall.SYS_IOCTL, f.Fd(), uiSetKeybit, i); errno != 0 {
				t.err = errno
				f.Close()
				return
			}
		}
		dev := uinputUserDev{}
		copy(dev.Name[:], "croaker-inject")
		dev.ID.Bustype = busUSB
		dev.ID.Vendor = 0x1234
		dev.ID.Product = 0x5678
		dev.ID.Version = 1
		if err := binary.Write(f, binary.LittleEndian, &dev); err != nil {
			t.err = err
			f.Close()
			return
		}
		if _, _, errno := syscall.Syscall(syscall.SYS_IOCTL, f.Fd(), uiDevCreate, 0); errno != 0 {
			t.err = errno
			f.Close()
			return
		}
		t.fd = f
		time.Sleep(200 * time.Millisecond)
	})
	return t.err
}

func (t *X11Typer) writeEvent(typ, code uint16, value int32) error {
	ev := inputEvent{Type: typ, Code: code, Value: value}
	return binary.Write(t.fd, binary.LittleEndian, &ev)
}

func (t *X11Typer) syn() error {
	return t.writeEvent(evSyn, 0, 0)
}

func (t *X11Typer) keyTap(code uint16, shift bool) error {
	if shift {
		if err := t.writeEvent(evKey, 42, 1); err != nil { // KEY_LEFTSHIFT
			return err
		}
		t.syn()
	}
	if err := t.writeEvent(evKey, code, 1); err != nil {
		return err
	}
	t.syn()
	time.Sleep(t.keystrokeDelay)
	if err := t.writeEvent(evKey, code, 0); err != nil {
		return err
	}
	t.syn()
	if shift {
		t.writeEvent(evKey, 42, 0)
		t.syn()
	}
	time.Sleep(t.keystrokeDelay)
	return nil
}

// Type sends each character of text as a keystroke via uinput, matching
// clipboard/type_linux.go's keymap. Callers must pre-filter to ASCII.
func (t *X11Typer) Type(ctx context.Context, text string) error {
	if err := t.init(); err != nil {
		return err
	}
	for i := 0; i < len(text); i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		code, shift, ok := charToKey(text[i])
		if !ok {
			continue
		}
		if err := t.keyTap(code, shift); err != nil {
			return err
		}
	}
	return nil
}

// PasteChord presses Ctrl, then V, then releases both.
func (t *X11Typer) PasteChord(ctx context.Context) error {
	if err := t.init(); err != nil {
		return err
	}
	if err := t.writeEvent(evKey, keyLeftCtrl, 1); err != nil {
		return err
	}
	t.syn()
	time.Sleep(5 * time.Millisecond)
	if err := t.writeEvent(evKey, keyV, 1); err != nil {
		return err
	}
	t.syn()
	time.Sleep(5 * time.Millisecond)
	if err := t.writeEvent(evKey, keyV, 0); err != nil {
		return err
	}
	t.syn()
	time.Sleep(5 * time.Millisecond)
	if err := t.writeEvent(evKey, keyLeftCtrl, 0); err != nil {
		return err
	}
	return t.syn()
}

// a=30, b=48, ... matching clipboard/type_linux.go's keymap.
var keymap = [26]uint16{
	30, 48, 46, 32, 18, 33, 34, 35, 23, 36,
	37, 38, 50, 49, 24, 25, 16, 19, 31, 20,
	22, 47, 17, 45, 21, 44,
}

var nummap = [10]uint16{11, 2, 3, 4, 5, 6, 7, 8, 9, 10}

func charToKey(c byte) (code uint16, shift bool, ok bool) {
	switch {
	case c >= 'a' && c <= 'z':
		return keymap[c-'a'], false, true
	case c >= 'A' && c <= 'Z':
		return keymap[c-'A'], true, true
	case c >= '0' && c <= '9':
		return nummap[c-'0'], false, true
	case c == ' ':
		return 57, false, true
	case c == '\n':
		return 28, false, true
	case c == '\t':
		return 15, false, true
	default:
		return punctKey(c)
	}
}

func punctKey(c byte) (uint16, bool, bool) {
	type km struct {
		code  uint16
		shift bool
	}
	m := map[byte]km{
		'.': {52, false}, ',': {51, false}, '/': {53, false},
		';': {39, false}, '\'': {40, false}, '[': {26, false},
		']': {27, false}, '-': {12, false}, '=': {13, false},
		'\\': {43, false}, '`': {41, false},
		'!': {2, true}, '@': {3, true}, '#': {4, true},
		'$': {5, true}, '%': {6, true}, '^': {7, true},
		'&': {8, true}, '*': {9, true}, '(': {10, true},
		')': {11, true}, '_': {12, true}, '+': {13, true},
		'{': {26, true}, '}': {27, true}, '|': {43, true},
		':': {39, true}, '"': {40, true}, '<': {51, true},
		'>': {52, true}, '?': {53, true}, '~': {41, true},
	}
	if k, ok := m[c]; ok {
		return k.code, k.shift, true
	}
	return 0, false, false
}

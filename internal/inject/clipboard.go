package inject

import (
	"sync"
	"time"

	cb "github.com/atotto/clipboard"
)

// clipboardRestoreDelay gives the target application time to read the
// fresh clipboard content before putting the old value back.
const clipboardRestoreDelay = 200 * time.Millisecond

// SystemClipboard wraps atotto/clipboard, grounded on
// clipboard/clipboard.go.
type SystemClipboard struct{}

func (SystemClipboard) Read() (string, error)  { return cb.ReadAll() }
func (SystemClipboard) Copy(text string) error { return cb.WriteAll(text) }

// clipboardRestorer serializes pending restores so a burst of dictation
// sessions doesn't leave two competing timers racing to write the
// clipboard.
type clipboardRestorer struct {
	mu    sync.Mutex
	timer *time.Timer
}

func newClipboardRestorer() *clipboardRestorer {
	return &clipboardRestorer{}
}

func (r *clipboardRestorer) schedule(clip Clipboarder, prior string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(clipboardRestoreDelay, func() {
		_ = clip.Copy(prior)
	})
}

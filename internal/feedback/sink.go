package feedback

import "github.com/kumralcem/croaker/internal/session"

// MultiSink fans a single FeedbackState out to every configured backend.
// Backends are called one after another on the caller's goroutine, so
// Publish returns only after the last backend returns and a slow backend
// delays the ones after it.
type MultiSink struct {
	backends []session.FeedbackSink
}

// NewMultiSink builds a sink broadcasting to every non-nil backend.
func NewMultiSink(backends ...session.FeedbackSink) *MultiSink {
	m := &MultiSink{}
	for _, b := range backends {
		if b != nil {
			m.backends = append(m.backends, b)
		}
	}
	return m
}

// Publish implements session.FeedbackSink.
func (m *MultiSink) Publish(state session.FeedbackState) {
	for _, b := range m.backends {
		b.Publish(state)
	}
}

// NotifyError implements session.FeedbackSink.
func (m *MultiSink) NotifyError(msg string) {
	for _, b := range m.backends {
		b.NotifyError(msg)
	}
}

package transcribe

import "context"

// Fake is a Transcriber test double, grounded on transcriber/fake.go's
// FakeTranscriber but reduced to the batch, single-shot shape this
// package's Transcribe needs.
type Fake struct {
	Text     string
	NoSpeech bool
	Err      error
}

// Transcribe returns the fixture Result, ignoring path and language.
func (f *Fake) Transcribe(_ context.Context, _ string, _ string) (Result, error) {
	if f.Err != nil {
		return Result{}, f.Err
	}
	return Result{Text: f.Text, NoSpeech: f.NoSpeech}, nil
}

package transcribe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestFirstNonEmpty(t *testing.T) {
	h := http.Header{}
	h.Set("X-Rate-Limit", "100")

	if got := firstNonEmpty(h, "X-Missing", "X-Rate-Limit"); got != "100" {
		t.Errorf("got %q, want %q", got, "100")
	}
	if got := firstNonEmpty(h, "X-A", "X-B"); got != "?" {
		t.Errorf("got %q, want %q", got, "?")
	}
}

func writeTempWav(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.wav")
	if err := os.WriteFile(path, []byte("RIFF....WAVEfmt "), 0o644); err != nil {
		t.Fatalf("writing fixture wav: %v", err)
	}
	return path
}

func TestTranscribeAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"invalid api key"}}`))
	}))
	defer srv.Close()

	c := NewClient("bad-key", "whisper-large-v3-turbo", 0)
	c.apiURL = srv.URL
	c.http = NewTracedClient(srv.URL, 0)

	_, err := c.Transcribe(context.Background(), writeTempWav(t), "en")
	if !errors.Is(err, ErrAuthError) {
		t.Fatalf("expected ErrAuthError, got %v", err)
	}
}

func TestTranscribeRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient("key", "whisper-large-v3-turbo", 0)
	c.apiURL = srv.URL
	c.http = NewTracedClient(srv.URL, 0)

	_, err := c.Transcribe(context.Background(), writeTempWav(t), "en")
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestTranscribeSuccessDerivesNoSpeech(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-ratelimit-remaining-requests", "9")
		w.Header().Set("x-ratelimit-limit-requests", "10")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"text":"","duration":2.5,"segments":[{"text":"","no_speech_prob":0.92,"avg_logprob":-1.1}]}`))
	}))
	defer srv.Close()

	c := NewClient("key", "whisper-large-v3-turbo", 0)
	c.apiURL = srv.URL
	c.http = NewTracedClient(srv.URL, 0)

	result, err := c.Transcribe(context.Background(), writeTempWav(t), "en")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.NoSpeech {
		t.Fatalf("expected NoSpeech to be derived true, got result %+v", result)
	}
	if result.RateLimit != "9/10" {
		t.Fatalf("expected rate limit 9/10, got %q", result.RateLimit)
	}
}

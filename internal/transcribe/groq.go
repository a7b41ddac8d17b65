package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// Error kinds from spec.md §7, distinguished so the controller can report
// them without parsing strings.
var (
	ErrAuthError         = errors.New("transcribe: authentication rejected")
	ErrRateLimited       = errors.New("transcribe: rate limited")
	ErrNetworkError      = errors.New("transcribe: network error")
	ErrServiceError      = errors.New("transcribe: upstream service error")
	ErrTimeout           = errors.New("transcribe: request timed out")
	ErrMalformedResponse = errors.New("transcribe: malformed response")
)

// Segment is one Whisper verbose_json segment.
type Segment struct {
	Text             string
	NoSpeechProb     float64
	AvgLogProb       float64
	CompressionRatio float64
	Temperature      float64
	Start            float64
	End              float64
}

// Result is what TranscriptionClient hands back to the controller.
// NoSpeech is derived rather than a raw API field: Groq has no dedicated
// "no speech" flag, so it is inferred from an empty transcript combined
// with the highest no_speech_prob across all segments being at or above
// noSpeechThreshold.
type Result struct {
	Text      string
	NoSpeech  bool
	RateLimit string
	Duration  float64
	Metrics   *NetworkMetrics
	Segments  []Segment
}

// noSpeechThreshold is the no_speech_prob at or above which an empty
// transcript is treated as silence rather than a transcription failure.
const noSpeechThreshold = 0.6

// Client is the Groq Whisper TranscriptionClient.
type Client struct {
	http   *TracedClient
	apiURL string
	apiKey string
	model  string
}

// NewClient builds a Groq-backed TranscriptionClient. apiKey is read once
// at startup by config.LoadAPIKey, never re-read per request. A
// non-positive timeout falls back to DefaultTimeout (spec.md §4.2's 60s
// default upper bound on a transcription request).
func NewClient(apiKey, model string, timeout time.Duration) *Client {
	apiURL := "https://api.groq.com/openai/v1/audio/transcriptions"
	return &Client{
		http:   NewTracedClient(apiURL, timeout),
		apiURL: apiURL,
		apiKey: apiKey,
		model:  model,
	}
}

// Warm pre-establishes the TLS connection to Groq; call once at startup
// and again after any sustained idle period.
func (c *Client) Warm() { c.http.Warm() }

type groqResponse struct {
	Text     string  `json:"text"`
	Duration float64 `json:"duration"`
	Segments []struct {
		Text             string  `json:"text"`
		Start            float64 `json:"start"`
		End              float64 `json:"end"`
		NoSpeechProb     float64 `json:"no_speech_prob"`
		AvgLogProb       float64 `json:"avg_logprob"`
		CompressionRatio float64 `json:"compression_ratio"`
		Temperature      float64 `json:"temperature"`
	} `json:"segments"`
}

type groqError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Transcribe uploads the WAV file at path and returns the parsed result.
func (c *Client) Transcribe(ctx context.Context, path, language string) (Result, error) {
	audio, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("%w: reading %s: %v", ErrNetworkError, path, err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if _, err := part.Write(audio); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	writer.WriteField("model", c.model)
	writer.WriteField("response_format", "verbose_json")
	if language != "" {
		writer.WriteField("language", language)
	}
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, &body)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return Result{}, fmt.Errorf("%w: %v", ErrNetworkError, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Result{}, fmt.Errorf("%w: %s", ErrAuthError, describeGroqError(resp.Body))
	case resp.StatusCode == http.StatusTooManyRequests:
		return Result{}, fmt.Errorf("%w: %s", ErrRateLimited, describeGroqError(resp.Body))
	case resp.StatusCode >= 500:
		return Result{}, fmt.Errorf("%w: status %d: %s", ErrServiceError, resp.StatusCode, describeGroqError(resp.Body))
	case resp.StatusCode != http.StatusOK:
		return Result{}, fmt.Errorf("%w: status %d: %s", ErrServiceError, resp.StatusCode, describeGroqError(resp.Body))
	}

	var gResp groqResponse
	if err := json.Unmarshal(resp.Body, &gResp); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	var maxNoSpeech, logProbSum float64
	segments := make([]Segment, 0, len(gResp.Segments))
	for _, seg := range gResp.Segments {
		if seg.NoSpeechProb > maxNoSpeech {
			maxNoSpeech = seg.NoSpeechProb
		}
		logProbSum += seg.AvgLogProb
		segments = append(segments, Segment{
			Text:             seg.Text,
			NoSpeechProb:     seg.NoSpeechProb,
			AvgLogProb:       seg.AvgLogProb,
			CompressionRatio: seg.CompressionRatio,
			Temperature:      seg.Temperature,
			Start:            seg.Start,
			End:              seg.End,
		})
	}

	remaining := firstNonEmpty(resp.Header, "x-ratelimit-remaining-requests")
	limit := firstNonEmpty(resp.Header, "x-ratelimit-limit-requests")

	return Result{
		Text:      gResp.Text,
		NoSpeech:  len(gResp.Text) == 0 && maxNoSpeech >= noSpeechThreshold,
		RateLimit: remaining + "/" + limit,
		Duration:  gResp.Duration,
		Metrics:   resp.Metrics,
		Segments:  segments,
	}, nil
}

func describeGroqError(body []byte) string {
	var e groqError
	if json.Unmarshal(body, &e) == nil && e.Error.Message != "" {
		return e.Error.Message
	}
	return string(body)
}

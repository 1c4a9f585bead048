package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/codebuildervaibhav/transcriptor/internal/types"
)

// DefaultBaseURL is the Lemonfox OpenAI-compatible endpoint.
const DefaultBaseURL = "https://api.lemonfox.ai/v1"

// Options carries per-request transcription parameters. APIKey is required.
type Options struct {
	APIKey        string
	Model         string
	Language      string
	Prompt        string
	Temperature   float64
	SpeakerLabels bool
}

// Client calls the Lemonfox speech-to-text API. It is safe for concurrent
// use by multiple jobs.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *logrus.Entry
}

// NewClient creates an API client. An empty baseURL selects the production
// endpoint; timeout bounds each transcription request end to end.
func NewClient(baseURL string, timeout time.Duration, log *logrus.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		log:        log.WithField("component", "transcriber"),
	}
}

// apiResponse mirrors the verbose_json response shape of the API.
type apiResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
	Segments []struct {
		Start   float64 `json:"start"`
		End     float64 `json:"end"`
		Text    string  `json:"text"`
		Speaker string  `json:"speaker"`
		Words   []struct {
			Start float64 `json:"start"`
			End   float64 `json:"end"`
			Word  string  `json:"word"`
		} `json:"words"`
	} `json:"segments"`
}

// Transcribe uploads the audio file and returns the structured transcript.
func (c *Client) Transcribe(ctx context.Context, audioPath string, opts Options) (*types.Transcript, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("transcription API key is not configured")
	}

	body, contentType, err := c.buildRequestBody(audioPath, opts)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/audio/transcriptions", body)
	if err != nil {
		return nil, fmt.Errorf("failed to build transcription request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+opts.APIKey)
	req.Header.Set("Content-Type", contentType)

	c.log.Infof("Transcribing %s (model: %s)", filepath.Base(audioPath), opts.Model)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transcription request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read transcription response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("transcription API returned %d: %s", resp.StatusCode, excerpt(data))
	}

	var parsed apiResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse transcription response: %w", err)
	}

	out := &types.Transcript{
		Text:     parsed.Text,
		Language: parsed.Language,
		Duration: parsed.Duration,
		Segments: make([]types.Segment, len(parsed.Segments)),
	}
	for i, seg := range parsed.Segments {
		s := types.Segment{
			Start:   seg.Start,
			End:     seg.End,
			Text:    seg.Text,
			Speaker: seg.Speaker,
		}
		for _, w := range seg.Words {
			s.Words = append(s.Words, types.Word{Start: w.Start, End: w.End, Word: w.Word})
		}
		out.Segments[i] = s
	}

	c.log.Infof("Transcription completed: %d segments, %.2fs duration",
		len(out.Segments), out.Duration)
	return out, nil
}

// buildRequestBody assembles the multipart form with the audio file and
// transcription parameters.
func (c *Client) buildRequestBody(audioPath string, opts Options) (*bytes.Buffer, string, error) {
	file, err := os.Open(audioPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open audio file: %w", err)
	}
	defer file.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, "", fmt.Errorf("failed to build multipart body: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, "", fmt.Errorf("failed to read audio file: %w", err)
	}

	fields := map[string]string{
		"model":           opts.Model,
		"response_format": "verbose_json",
		"temperature":     strconv.FormatFloat(opts.Temperature, 'f', -1, 64),
	}
	if opts.Language != "" {
		fields["language"] = opts.Language
	}
	if opts.Prompt != "" {
		fields["prompt"] = opts.Prompt
	}
	if opts.SpeakerLabels {
		fields["speaker_labels"] = "true"
	}
	for name, value := range fields {
		if err := w.WriteField(name, value); err != nil {
			return nil, "", fmt.Errorf("failed to write form field %s: %w", name, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finalize multipart body: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

// excerpt trims an error body for log-friendly messages.
func excerpt(data []byte) string {
	const max = 300
	if len(data) > max {
		return string(data[:max]) + "..."
	}
	return string(data)
}

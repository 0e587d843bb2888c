// Package lemonfox is a client for the Lemonfox speech-to-text API, an
// OpenAI-compatible audio/transcriptions endpoint.
package lemonfox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"transcriptor/internal/transcript"
)

// DefaultBaseURL is the production Lemonfox endpoint.
const DefaultBaseURL = "https://api.lemonfox.ai/v1"

// Options are the optional transcription parameters. Zero-valued fields are
// omitted from the request rather than sent as empty placeholders;
// temperature is always sent.
type Options struct {
	Language      string
	Prompt        string
	Temperature   float64
	SpeakerLabels bool
}

// Client calls the transcription API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Client. The API key must be non-empty.
func NewClient(apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("lemonfox api key empty")
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Minute},
	}, nil
}

// WithBaseURL overrides the API endpoint. Used for self-hosted gateways and
// tests.
func (c *Client) WithBaseURL(baseURL string) *Client {
	c.baseURL = baseURL
	return c
}

// Transcribe uploads the audio file and returns the structured transcript.
// It always requests the verbose representation so segments carry start/end
// timestamps for subtitle output.
func (c *Client) Transcribe(ctx context.Context, audioPath, model string, opts Options) (*transcript.Transcript, error) {
	file, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer file.Close()

	var body bytes.Buffer
	form := multipart.NewWriter(&body)

	part, err := form.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, fmt.Errorf("failed to build form: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("failed to read audio file: %w", err)
	}

	fields := map[string]string{
		"model":           model,
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
	for k, v := range fields {
		if err := form.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("failed to build form: %w", err)
		}
	}
	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("failed to build form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transcription request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("lemonfox http %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var result transcript.Transcript
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode transcription: %w", err)
	}
	if result.Text == "" && len(result.Segments) == 0 {
		return nil, errors.New("transcription response was empty")
	}
	return &result, nil
}

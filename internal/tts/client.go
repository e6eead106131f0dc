// Package tts provides the speech-synthesis providers behind core.Synthesizer:
// a standalone HTTP speech service, the OpenAI speech endpoint and a local
// chatllm binary, plus a rate-limiting decorator.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/book-expert/tts-cache/internal/core"
)

// API endpoints and paths.
const (
	apiGenerateSpeech = "/v1/generate/speech"
	apiHealth         = "/health"
)

// HTTP headers.
const (
	headerContentType = "Content-Type"
	headerAccept      = "Accept"
	contentTypeJSON   = "application/json"
	contentTypeAudio  = "audio/"
)

// Default values.
const (
	defaultTemperature = 0.75
	defaultLanguage    = "en"
	defaultHTTPFormat  = "wav"
)

// Error messages.
const (
	errFmtUnexpectedContentType = "unexpected content type: expected audio/%s, got %q"
	errFmtServiceErrorWithCode  = "TTS service error (%s): %s (code: %s)"
	errFmtServiceNonOKStatus    = "TTS service returned non-OK status: %s, body: %s"
)

// audioSubtypeAliases maps Content-Type subtypes onto container extensions.
var audioSubtypeAliases = map[string]string{
	"x-wav":    "wav",
	"wave":     "wav",
	"vnd.wave": "wav",
	"mpeg":     "mp3",
}

// HTTPClient is a core.Synthesizer backed by the standalone TTS HTTP service.
type HTTPClient struct {
	httpClient  *http.Client
	baseURL     string
	language    string
	temperature float64
	format      string
}

// TTSRequest is the JSON payload of a speech generation request.
type TTSRequest struct {
	Text string `json:"text"`
	// SpeakerRefPath optionally names a server-side speaker reference file.
	SpeakerRefPath string  `json:"speaker_ref_path,omitempty"`
	Language       string  `json:"language"`
	Temperature    float64 `json:"temperature"`
}

// TTSErrorResponse is the structured error body returned by the service.
type TTSErrorResponse struct {
	Detail    string `json:"detail"`
	ErrorCode string `json:"error_code,omitempty"`
}

// HTTPClientConfig configures an HTTPClient. Zero values take defaults.
type HTTPClientConfig struct {
	BaseURL     string
	Language    string
	Temperature float64
	Format      string
	Timeout     time.Duration
}

// NewHTTPClient creates a client for the service at cfg.BaseURL, which
// includes the scheme and port (e.g. "http://localhost:8000").
func NewHTTPClient(cfg HTTPClientConfig) *HTTPClient {
	client := &HTTPClient{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		language:    cfg.Language,
		temperature: cfg.Temperature,
		format:      cfg.Format,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}

	if client.language == "" {
		client.language = defaultLanguage
	}

	if client.temperature == 0 {
		client.temperature = defaultTemperature
	}

	if client.format == "" {
		client.format = defaultHTTPFormat
	}

	return client
}

// Format returns the container the service is asked to produce.
func (c *HTTPClient) Format() string {
	return c.format
}

// Synthesize converts one chunk of text into audio.
func (c *HTTPClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	return c.GenerateSpeech(ctx, TTSRequest{
		Text:        text,
		Language:    c.language,
		Temperature: c.temperature,
	})
}

// GenerateSpeech sends a generation request and returns the raw audio.
// Errors match core.ErrValidation for empty text and core.ErrProvider for
// everything the service or transport reports.
func (c *HTTPClient) GenerateSpeech(ctx context.Context, req TTSRequest) ([]byte, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", core.ErrValidation)
	}

	if req.Temperature == 0 {
		req.Temperature = defaultTemperature
	}

	if req.Language == "" {
		req.Language = defaultLanguage
	}

	requestBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+apiGenerateSpeech, bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set(headerContentType, contentTypeJSON)
	httpReq.Header.Set(headerAccept, contentTypeAudio+c.format)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to send request to TTS service at %s: %w", core.ErrProvider, c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %w", core.ErrProvider, parseErrorResponse(resp))
	}

	contentType := resp.Header.Get(headerContentType)
	if format, ok := formatFromContentType(contentType); !ok || format != c.format {
		return nil, fmt.Errorf("%w: "+errFmtUnexpectedContentType, core.ErrProvider, c.format, contentType)
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read audio data: %w", core.ErrProvider, err)
	}

	if len(audioData) == 0 {
		return nil, fmt.Errorf("%w: received empty audio data", core.ErrProvider)
	}

	return audioData, nil
}

// HealthCheck verifies that the service answers on its health endpoint.
func (c *HTTPClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+apiHealth, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: health check failed for service at %s: %w", core.ErrProvider, c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health check failed with status: %s", core.ErrProvider, resp.Status)
	}

	return nil
}

// formatFromContentType returns the container extension named by an audio
// Content-Type, e.g. "wav" for "audio/x-wav".
func formatFromContentType(contentType string) (string, bool) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", false
	}

	subtype, ok := strings.CutPrefix(mediaType, contentTypeAudio)
	if !ok || subtype == "" {
		return "", false
	}

	if format, aliased := audioSubtypeAliases[subtype]; aliased {
		return format, true
	}

	return subtype, true
}

// parseErrorResponse decodes a structured error body, falling back to the
// raw body when it is not JSON.
func parseErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errorResp TTSErrorResponse

	err := json.Unmarshal(body, &errorResp)
	if err == nil && errorResp.Detail != "" {
		return fmt.Errorf(errFmtServiceErrorWithCode, resp.Status, errorResp.Detail, errorResp.ErrorCode)
	}

	return fmt.Errorf(errFmtServiceNonOKStatus, resp.Status, string(body))
}

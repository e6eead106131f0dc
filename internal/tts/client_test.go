package tts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/book-expert/tts-cache/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test constants.
const (
	testHelloWorld       = "Hello, world!"
	testWAVHeaderMinimal = "RIFF....WAVE"
	contentTypeWAV       = "audio/wav"
)

func newTestHTTPClient(serverURL string, timeout time.Duration) *HTTPClient {
	return NewHTTPClient(HTTPClientConfig{
		BaseURL:     serverURL,
		Language:    "en",
		Temperature: 0.8,
		Format:      "wav",
		Timeout:     timeout,
	})
}

func TestHTTPClient_Synthesize_Success(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		assert.Equal(t, http.MethodPost, request.Method)
		assert.Equal(t, apiGenerateSpeech, request.URL.Path)
		assert.Equal(t, contentTypeJSON, request.Header.Get(headerContentType))
		assert.Equal(t, contentTypeWAV, request.Header.Get(headerAccept))

		var req TTSRequest
		assert.NoError(t, json.NewDecoder(request.Body).Decode(&req))
		assert.Equal(t, testHelloWorld, req.Text)
		assert.InDelta(t, 0.8, req.Temperature, 1e-9)
		assert.Equal(t, "en", req.Language)

		responseWriter.Header().Set(headerContentType, contentTypeWAV)
		responseWriter.WriteHeader(http.StatusOK)
		_, _ = responseWriter.Write([]byte(testWAVHeaderMinimal))
	}))
	defer server.Close()

	client := newTestHTTPClient(server.URL, 10*time.Second)

	audioData, err := client.Synthesize(context.Background(), testHelloWorld)
	require.NoError(t, err)
	assert.Equal(t, []byte(testWAVHeaderMinimal), audioData)
	assert.Equal(t, "wav", client.Format())
}

func TestHTTPClient_GenerateSpeech_Defaults(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		var req TTSRequest
		assert.NoError(t, json.NewDecoder(request.Body).Decode(&req))
		assert.InDelta(t, defaultTemperature, req.Temperature, 1e-9)
		assert.Equal(t, defaultLanguage, req.Language)

		responseWriter.Header().Set(headerContentType, "audio/x-wav")
		_, _ = responseWriter.Write([]byte(testWAVHeaderMinimal))
	}))
	defer server.Close()

	client := NewHTTPClient(HTTPClientConfig{BaseURL: server.URL + "/", Timeout: time.Second})

	_, err := client.GenerateSpeech(context.Background(), TTSRequest{Text: testHelloWorld})
	require.NoError(t, err)
}

func TestHTTPClient_Synthesize_EmptyText(t *testing.T) {
	t.Parallel()

	client := newTestHTTPClient("http://127.0.0.1:1", time.Second)

	_, err := client.Synthesize(context.Background(), "   ")
	require.ErrorIs(t, err, core.ErrValidation)
}

func TestHTTPClient_Synthesize_ServiceError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, _ *http.Request) {
		responseWriter.Header().Set(headerContentType, contentTypeJSON)
		responseWriter.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(responseWriter).Encode(TTSErrorResponse{
			Detail:    "Invalid speaker reference path",
			ErrorCode: "INVALID_SPEAKER_PATH",
		})
	}))
	defer server.Close()

	_, err := newTestHTTPClient(server.URL, time.Second).Synthesize(context.Background(), testHelloWorld)
	require.ErrorIs(t, err, core.ErrProvider)
	assert.Contains(t, err.Error(), "Invalid speaker reference path")
	assert.Contains(t, err.Error(), "INVALID_SPEAKER_PATH")
}

func TestHTTPClient_Synthesize_PlainTextError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, _ *http.Request) {
		http.Error(responseWriter, "upstream exploded", http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := newTestHTTPClient(server.URL, time.Second).Synthesize(context.Background(), testHelloWorld)
	require.ErrorIs(t, err, core.ErrProvider)
	assert.Contains(t, err.Error(), "upstream exploded")
}

func TestHTTPClient_Synthesize_WrongContentType(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, _ *http.Request) {
		responseWriter.Header().Set(headerContentType, contentTypeJSON)
		_, _ = responseWriter.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	_, err := newTestHTTPClient(server.URL, time.Second).Synthesize(context.Background(), testHelloWorld)
	require.ErrorIs(t, err, core.ErrProvider)
	assert.Contains(t, err.Error(), "unexpected content type")
}

func TestHTTPClient_Synthesize_RejectsOtherAudioFormat(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, _ *http.Request) {
		responseWriter.Header().Set(headerContentType, contentTypeWAV)
		_, _ = responseWriter.Write([]byte(testWAVHeaderMinimal))
	}))
	defer server.Close()

	client := NewHTTPClient(HTTPClientConfig{BaseURL: server.URL, Format: "mp3", Timeout: time.Second})

	_, err := client.Synthesize(context.Background(), testHelloWorld)
	require.ErrorIs(t, err, core.ErrProvider)
	assert.Contains(t, err.Error(), "expected audio/mp3")
}

func TestFormatFromContentType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		contentType string
		want        string
		ok          bool
	}{
		{"audio/wav", "wav", true},
		{"audio/x-wav", "wav", true},
		{"audio/wave", "wav", true},
		{"Audio/WAV; codecs=1", "wav", true},
		{"audio/mpeg", "mp3", true},
		{"audio/opus", "opus", true},
		{"application/json", "", false},
		{"audio/", "", false},
		{"", "", false},
	}

	for _, testCase := range tests {
		format, ok := formatFromContentType(testCase.contentType)
		assert.Equal(t, testCase.ok, ok, testCase.contentType)
		assert.Equal(t, testCase.want, format, testCase.contentType)
	}
}

func TestHTTPClient_Synthesize_EmptyAudio(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, _ *http.Request) {
		responseWriter.Header().Set(headerContentType, contentTypeWAV)
		responseWriter.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	_, err := newTestHTTPClient(server.URL, time.Second).Synthesize(context.Background(), testHelloWorld)
	require.ErrorIs(t, err, core.ErrProvider)
}

func TestHTTPClient_Synthesize_Timeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		select {
		case <-release:
		case <-request.Context().Done():
		}

		responseWriter.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	defer close(release)

	client := newTestHTTPClient(server.URL, 100*time.Millisecond)

	_, err := client.Synthesize(context.Background(), testHelloWorld)
	require.ErrorIs(t, err, core.ErrProvider)
}

func TestHTTPClient_HealthCheck(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		assert.Equal(t, http.MethodGet, request.Method)
		assert.Equal(t, apiHealth, request.URL.Path)
		responseWriter.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	require.NoError(t, newTestHTTPClient(server.URL, time.Second).HealthCheck(context.Background()))
}

func TestHTTPClient_HealthCheck_ServiceDown(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, _ *http.Request) {
		responseWriter.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	err := newTestHTTPClient(server.URL, time.Second).HealthCheck(context.Background())
	require.ErrorIs(t, err, core.ErrProvider)

	err = newTestHTTPClient("http://127.0.0.1:1", 100*time.Millisecond).HealthCheck(context.Background())
	require.ErrorIs(t, err, core.ErrProvider)
}

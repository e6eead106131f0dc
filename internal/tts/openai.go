package tts

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/book-expert/tts-cache/internal/core"
	"github.com/sashabaranov/go-openai"
)

const (
	defaultOpenAIModel  = openai.TTSModel1
	defaultOpenAIVoice  = openai.VoiceAlloy
	defaultOpenAIFormat = openai.SpeechResponseFormatMp3
)

// OpenAIConfig configures an OpenAISynthesizer. Zero values take defaults.
type OpenAIConfig struct {
	APIKey string
	// BaseURL overrides the API endpoint, e.g. for a compatible local server.
	BaseURL string
	Model   string
	Voice   string
	Format  string
	Speed   float64
}

// OpenAISynthesizer is a core.Synthesizer backed by the OpenAI speech API.
type OpenAISynthesizer struct {
	client *openai.Client
	model  openai.SpeechModel
	voice  openai.SpeechVoice
	format openai.SpeechResponseFormat
	speed  float64
}

// NewOpenAISynthesizer creates a synthesizer from cfg.
func NewOpenAISynthesizer(cfg OpenAIConfig) *OpenAISynthesizer {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	synth := &OpenAISynthesizer{
		client: openai.NewClientWithConfig(clientConfig),
		model:  openai.SpeechModel(cfg.Model),
		voice:  openai.SpeechVoice(cfg.Voice),
		format: openai.SpeechResponseFormat(cfg.Format),
		speed:  cfg.Speed,
	}

	if synth.model == "" {
		synth.model = defaultOpenAIModel
	}

	if synth.voice == "" {
		synth.voice = defaultOpenAIVoice
	}

	if synth.format == "" {
		synth.format = defaultOpenAIFormat
	}

	return synth
}

// Format returns the requested response format.
func (s *OpenAISynthesizer) Format() string {
	return string(s.format)
}

// Synthesize converts one chunk of text into audio.
func (s *OpenAISynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", core.ErrValidation)
	}

	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          s.model,
		Input:          text,
		Voice:          s.voice,
		ResponseFormat: s.format,
		Speed:          s.speed,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: openai speech request failed: %w", core.ErrProvider, err)
	}
	defer resp.Close()

	audioData, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read openai speech response: %w", core.ErrProvider, err)
	}

	if len(audioData) == 0 {
		return nil, fmt.Errorf("%w: received empty audio data", core.ErrProvider)
	}

	return audioData, nil
}

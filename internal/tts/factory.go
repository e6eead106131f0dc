package tts

import (
	"context"
	"fmt"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-cache/internal/config"
	"github.com/book-expert/tts-cache/internal/core"
)

// HealthChecker is implemented by providers that expose a liveness probe.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// NewSynthesizer builds the provider named by cfg.TTS.Provider and wraps it
// in a RateLimited decorator.
func NewSynthesizer(cfg *config.Config, log *logger.Logger) (*RateLimited, error) {
	var provider core.Synthesizer

	timeout := time.Duration(cfg.TTS.TimeoutSeconds) * time.Second

	switch cfg.TTS.Provider {
	case config.ProviderHTTP:
		provider = NewHTTPClient(HTTPClientConfig{
			BaseURL:     cfg.TTS.ServiceURL,
			Language:    cfg.TTS.Language,
			Temperature: cfg.TTS.Temperature,
			Format:      cfg.TTS.AudioFormat,
			Timeout:     timeout,
		})
	case config.ProviderOpenAI:
		provider = NewOpenAISynthesizer(OpenAIConfig{
			APIKey:  cfg.TTS.APIKey,
			BaseURL: cfg.TTS.BaseURL,
			Model:   cfg.TTS.Model,
			Voice:   cfg.TTS.Voice,
			Format:  cfg.TTS.AudioFormat,
			Speed:   cfg.TTS.Speed,
		})
	case config.ProviderChatLLM:
		provider = NewChatLLMProcessor(ChatLLMConfig{
			BinaryPath:    cfg.TTS.BinaryPath,
			ModelPath:     cfg.TTS.ModelPath,
			SnacModelPath: cfg.TTS.SnacModelPath,
			Voice:         cfg.TTS.Voice,
			Temperature:   cfg.TTS.Temperature,
		}, log)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", config.ErrInvalidConfig, cfg.TTS.Provider)
	}

	log.Info("Using %s speech provider (format %s, %d requests/min)",
		cfg.TTS.Provider, provider.Format(), cfg.TTS.RequestsPerMinute)

	return NewRateLimited(provider, cfg.TTS.RequestsPerMinute), nil
}

// CheckHealth probes synth, unwrapping decorators. Providers without a probe
// are reported healthy.
func CheckHealth(ctx context.Context, synth core.Synthesizer) error {
	for {
		if checker, ok := synth.(HealthChecker); ok {
			return checker.HealthCheck(ctx)
		}

		wrapper, ok := synth.(interface{ Unwrap() core.Synthesizer })
		if !ok {
			return nil
		}

		synth = wrapper.Unwrap()
	}
}

// Package config provides the configuration structure for the tts-cache service.
package config

import (
	"errors"
	"fmt"
	"slices"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
	"github.com/book-expert/tts-cache/internal/tts/audio"
	"github.com/caarlos0/env/v11"
)

// Provider names.
const (
	ProviderHTTP    = "http"
	ProviderOpenAI  = "openai"
	ProviderChatLLM = "chatllm"
)

// Backend names.
const (
	BackendNATS       = "nats"
	BackendFilesystem = "filesystem"
	BackendSQLite     = "sqlite"
	BackendMemory     = "memory"
)

// Retention policies for artifacts superseded by a content change.
const (
	RetentionKeepLatest = "keep-latest"
	RetentionKeepAll    = "keep-all"
)

// Defaults.
const (
	defaultChunkMaxBytes         = 4500
	defaultSingleRequestMaxBytes = 5000
	defaultMaxConcurrency        = 4
	defaultRequestsPerMinute     = 120
	defaultTimeoutSeconds        = 120
	defaultSecondsPerChar        = 0.06
	defaultAudioFormat           = "wav"
	defaultOpenAIAudioFormat     = "mp3"
	defaultVoice                 = "alloy"
	defaultLanguage              = "en"
	defaultNATSURL               = "nats://127.0.0.1:4222"
	defaultQueueGroup            = "tts-cache"
	defaultGenerateSubject       = "tts.generate"
	defaultStatusSubject         = "tts.status"
	defaultSpeakSubject          = "tts.speak"
	defaultArtifactBucket        = "TTS_ARTIFACTS"
	defaultMetadataBucket        = "TTS_METADATA"
	defaultPublicURLPrefix       = "/uploads/tts"
	defaultPublicDir             = "public/uploads/tts"
	defaultSQLitePath            = "data/tts-cache.db"
)

// ErrInvalidConfig indicates that a configuration value is missing or out of range.
var ErrInvalidConfig = errors.New("invalid configuration")

// NATSConfig holds the configuration for NATS.
type NATSConfig struct {
	URL                   string `toml:"url"                     env:"TTS_NATS_URL"`
	QueueGroup            string `toml:"queue_group"`
	GenerateSubject       string `toml:"generate_subject"`
	StatusSubject         string `toml:"status_subject"`
	SpeakSubject          string `toml:"speak_subject"`
	ArtifactBucket        string `toml:"artifact_bucket"`
	MetadataBucket        string `toml:"metadata_bucket"`
	MetadataTTLSeconds    int    `toml:"metadata_ttl_seconds"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

// StorageConfig selects the artifact and metadata backends.
type StorageConfig struct {
	ArtifactBackend string `toml:"artifact_backend" env:"TTS_ARTIFACT_BACKEND"`
	MetadataBackend string `toml:"metadata_backend" env:"TTS_METADATA_BACKEND"`
	PublicDir       string `toml:"public_dir"`
	PublicURLPrefix string `toml:"public_url_prefix"`
	SQLitePath      string `toml:"sqlite_path"`
	Retention       string `toml:"retention"`
}

// TTSServiceConfig holds the synthesis and pipeline settings.
type TTSServiceConfig struct {
	Provider              string  `toml:"provider"                 env:"TTS_PROVIDER"`
	ServiceURL            string  `toml:"service_url"`
	APIKey                string  `toml:"-"                        env:"OPENAI_API_KEY"`
	BaseURL               string  `toml:"base_url"`
	Model                 string  `toml:"model"`
	Voice                 string  `toml:"voice"`
	Language              string  `toml:"language"`
	AudioFormat           string  `toml:"audio_format"`
	Temperature           float64 `toml:"temperature"`
	Speed                 float64 `toml:"speed"`
	TimeoutSeconds        int     `toml:"timeout_seconds"`
	ChunkMaxBytes         int     `toml:"chunk_max_bytes"`
	SingleRequestMaxBytes int     `toml:"single_request_max_bytes"`
	MaxConcurrency        int     `toml:"max_concurrency"`
	RequestsPerMinute     int     `toml:"requests_per_minute"`
	SecondsPerChar        float64 `toml:"seconds_per_char"`
	BinaryPath            string  `toml:"binary_path"`
	ModelPath             string  `toml:"model_path"`
	SnacModelPath         string  `toml:"snac_model_path"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir" env:"TTS_LOGS_DIR"`
}

// Config is the root configuration structure.
type Config struct {
	NATS    NATSConfig       `toml:"nats"`
	Storage StorageConfig    `toml:"storage"`
	TTS     TTSServiceConfig `toml:"tts_service"`
	Paths   PathsConfig      `toml:"paths"`
}

// Load loads the configuration for the tts-cache service, overlays
// environment variables, fills defaults and validates the result.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	err = ApplyEnv(&cfg)
	if err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()

	err = cfg.Validate()
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ApplyEnv overlays environment variables onto cfg. Unset variables leave
// loaded values untouched.
func ApplyEnv(cfg *Config) error {
	err := env.Parse(cfg)
	if err != nil {
		return fmt.Errorf("failed to parse environment overrides: %w", err)
	}

	return nil
}

// ApplyDefaults fills every zero-valued setting that has a default.
func (c *Config) ApplyDefaults() {
	setDefault(&c.NATS.URL, defaultNATSURL)
	setDefault(&c.NATS.QueueGroup, defaultQueueGroup)
	setDefault(&c.NATS.GenerateSubject, defaultGenerateSubject)
	setDefault(&c.NATS.StatusSubject, defaultStatusSubject)
	setDefault(&c.NATS.SpeakSubject, defaultSpeakSubject)
	setDefault(&c.NATS.ArtifactBucket, defaultArtifactBucket)
	setDefault(&c.NATS.MetadataBucket, defaultMetadataBucket)
	setDefault(&c.NATS.RequestTimeoutSeconds, defaultTimeoutSeconds)

	setDefault(&c.Storage.ArtifactBackend, BackendNATS)
	setDefault(&c.Storage.MetadataBackend, BackendNATS)
	setDefault(&c.Storage.PublicDir, defaultPublicDir)
	setDefault(&c.Storage.PublicURLPrefix, defaultPublicURLPrefix)
	setDefault(&c.Storage.SQLitePath, defaultSQLitePath)
	setDefault(&c.Storage.Retention, RetentionKeepLatest)

	setDefault(&c.TTS.Provider, ProviderHTTP)
	setDefault(&c.TTS.Voice, defaultVoice)
	setDefault(&c.TTS.Language, defaultLanguage)
	if c.TTS.Provider == ProviderOpenAI {
		setDefault(&c.TTS.AudioFormat, defaultOpenAIAudioFormat)
	}

	setDefault(&c.TTS.AudioFormat, defaultAudioFormat)
	setDefault(&c.TTS.TimeoutSeconds, defaultTimeoutSeconds)
	setDefault(&c.TTS.ChunkMaxBytes, defaultChunkMaxBytes)
	setDefault(&c.TTS.SingleRequestMaxBytes, defaultSingleRequestMaxBytes)
	setDefault(&c.TTS.MaxConcurrency, defaultMaxConcurrency)
	setDefault(&c.TTS.RequestsPerMinute, defaultRequestsPerMinute)
	setDefault(&c.TTS.SecondsPerChar, defaultSecondsPerChar)
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if !slices.Contains([]string{ProviderHTTP, ProviderOpenAI, ProviderChatLLM}, c.TTS.Provider) {
		return fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, c.TTS.Provider)
	}

	if !slices.Contains([]string{BackendNATS, BackendFilesystem, BackendMemory}, c.Storage.ArtifactBackend) {
		return fmt.Errorf("%w: unknown artifact backend %q", ErrInvalidConfig, c.Storage.ArtifactBackend)
	}

	if !slices.Contains([]string{BackendNATS, BackendSQLite, BackendMemory}, c.Storage.MetadataBackend) {
		return fmt.Errorf("%w: unknown metadata backend %q", ErrInvalidConfig, c.Storage.MetadataBackend)
	}

	if !slices.Contains([]string{RetentionKeepLatest, RetentionKeepAll}, c.Storage.Retention) {
		return fmt.Errorf("%w: unknown retention policy %q", ErrInvalidConfig, c.Storage.Retention)
	}

	_, err := audio.ParseFormat(c.TTS.AudioFormat)
	if err != nil {
		return fmt.Errorf("%w: audio_format: %w", ErrInvalidConfig, err)
	}

	if c.TTS.ChunkMaxBytes > c.TTS.SingleRequestMaxBytes {
		return fmt.Errorf("%w: chunk_max_bytes (%d) must not exceed single_request_max_bytes (%d)",
			ErrInvalidConfig, c.TTS.ChunkMaxBytes, c.TTS.SingleRequestMaxBytes)
	}

	if c.TTS.MaxConcurrency < 1 {
		return fmt.Errorf("%w: max_concurrency must be positive", ErrInvalidConfig)
	}

	return c.validateProvider()
}

func (c *Config) validateProvider() error {
	switch c.TTS.Provider {
	case ProviderHTTP:
		if c.TTS.ServiceURL == "" {
			return fmt.Errorf("%w: service_url is required for the http provider", ErrInvalidConfig)
		}
	case ProviderOpenAI:
		if c.TTS.APIKey == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY is required for the openai provider", ErrInvalidConfig)
		}
	case ProviderChatLLM:
		if c.TTS.ModelPath == "" || c.TTS.SnacModelPath == "" {
			return fmt.Errorf("%w: model_path and snac_model_path are required for chatllm", ErrInvalidConfig)
		}

		if c.TTS.AudioFormat != string(audio.FormatWAV) {
			return fmt.Errorf("%w: chatllm only produces wav, got audio_format %q", ErrInvalidConfig, c.TTS.AudioFormat)
		}
	}

	return nil
}

func setDefault[T comparable](field *T, value T) {
	var zero T
	if *field == zero {
		*field = value
	}
}

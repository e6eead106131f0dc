// Package config_test tests the configuration loading for the tts-cache service.
package config_test

import (
	"testing"

	"github.com/book-expert/tts-cache/internal/config"
	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTOML = `
[nats]
url = "nats://127.0.0.1:4222"
queue_group = "tts-workers"
generate_subject = "tts.generate"
status_subject = "tts.status"
speak_subject = "tts.speak"
artifact_bucket = "AUDIO_FILES"
metadata_bucket = "AUDIO_META"
metadata_ttl_seconds = 86400

[storage]
artifact_backend = "filesystem"
metadata_backend = "sqlite"
public_dir = "/srv/public/uploads/tts"
public_url_prefix = "/uploads/tts"
sqlite_path = "/var/lib/tts/meta.db"
retention = "keep-all"

[tts_service]
provider = "http"
service_url = "http://127.0.0.1:8000"
voice = "female1"
audio_format = "wav"
temperature = 0.7
timeout_seconds = 300
chunk_max_bytes = 4500
single_request_max_bytes = 5000
max_concurrency = 3
requests_per_minute = 60
seconds_per_char = 0.08

[paths]
base_logs_dir = "/var/log/tts"
`

func decodeTestConfig(t *testing.T) config.Config {
	t.Helper()

	var cfg config.Config

	err := toml.Unmarshal([]byte(testTOML), &cfg)
	require.NoError(t, err)

	return cfg
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	cfg := decodeTestConfig(t)

	assert.Equal(t, "nats://127.0.0.1:4222", cfg.NATS.URL)
	assert.Equal(t, "tts-workers", cfg.NATS.QueueGroup)
	assert.Equal(t, "tts.generate", cfg.NATS.GenerateSubject)
	assert.Equal(t, "AUDIO_FILES", cfg.NATS.ArtifactBucket)
	assert.Equal(t, "AUDIO_META", cfg.NATS.MetadataBucket)
	assert.Equal(t, 86400, cfg.NATS.MetadataTTLSeconds)
	assert.Equal(t, config.BackendFilesystem, cfg.Storage.ArtifactBackend)
	assert.Equal(t, config.BackendSQLite, cfg.Storage.MetadataBackend)
	assert.Equal(t, config.RetentionKeepAll, cfg.Storage.Retention)
	assert.Equal(t, "http://127.0.0.1:8000", cfg.TTS.ServiceURL)
	assert.Equal(t, "wav", cfg.TTS.AudioFormat)
	assert.InEpsilon(t, 0.7, cfg.TTS.Temperature, 0.001)
	assert.Equal(t, 300, cfg.TTS.TimeoutSeconds)
	assert.Equal(t, 4500, cfg.TTS.ChunkMaxBytes)
	assert.Equal(t, 5000, cfg.TTS.SingleRequestMaxBytes)
	assert.Equal(t, 3, cfg.TTS.MaxConcurrency)
	assert.InEpsilon(t, 0.08, cfg.TTS.SecondsPerChar, 0.001)
	assert.Equal(t, "/var/log/tts", cfg.Paths.BaseLogsDir)

	require.NoError(t, cfg.Validate())
}

func TestApplyDefaults(t *testing.T) {
	t.Parallel()

	cfg := config.Config{}
	cfg.TTS.ServiceURL = "http://localhost:8000"
	cfg.ApplyDefaults()

	assert.Equal(t, config.ProviderHTTP, cfg.TTS.Provider)
	assert.Equal(t, 4500, cfg.TTS.ChunkMaxBytes)
	assert.Equal(t, 5000, cfg.TTS.SingleRequestMaxBytes)
	assert.Equal(t, 4, cfg.TTS.MaxConcurrency)
	assert.Equal(t, "wav", cfg.TTS.AudioFormat, "the speech service answers with wav")
	assert.Equal(t, config.BackendNATS, cfg.Storage.ArtifactBackend)
	assert.Equal(t, config.RetentionKeepLatest, cfg.Storage.Retention)
	assert.Equal(t, "tts.status", cfg.NATS.StatusSubject)

	require.NoError(t, cfg.Validate())
}

func TestApplyDefaults_OpenAIFormat(t *testing.T) {
	t.Parallel()

	cfg := config.Config{}
	cfg.TTS.Provider = config.ProviderOpenAI
	cfg.TTS.APIKey = "sk-test"
	cfg.ApplyDefaults()

	assert.Equal(t, "mp3", cfg.TTS.AudioFormat)
	require.NoError(t, cfg.Validate())
}

func TestValidate_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(cfg *config.Config)
	}{
		{"unknown provider", func(cfg *config.Config) { cfg.TTS.Provider = "espeak" }},
		{"unknown artifact backend", func(cfg *config.Config) { cfg.Storage.ArtifactBackend = "s3" }},
		{"unknown metadata backend", func(cfg *config.Config) { cfg.Storage.MetadataBackend = "redis" }},
		{"unknown retention", func(cfg *config.Config) { cfg.Storage.Retention = "forever" }},
		{"chunk budget above ceiling", func(cfg *config.Config) { cfg.TTS.ChunkMaxBytes = 6000 }},
		{"zero concurrency", func(cfg *config.Config) { cfg.TTS.MaxConcurrency = -1 }},
		{"http without url", func(cfg *config.Config) { cfg.TTS.ServiceURL = "" }},
		{"openai without key", func(cfg *config.Config) { cfg.TTS.Provider = config.ProviderOpenAI }},
		{"chatllm without models", func(cfg *config.Config) { cfg.TTS.Provider = config.ProviderChatLLM }},
		{"chatllm with mp3", func(cfg *config.Config) {
			cfg.TTS.Provider = config.ProviderChatLLM
			cfg.TTS.ModelPath = "m"
			cfg.TTS.SnacModelPath = "s"
			cfg.TTS.AudioFormat = "mp3"
		}},
		{"unsupported audio format", func(cfg *config.Config) { cfg.TTS.AudioFormat = "ogg" }},
		{"upper-case audio format", func(cfg *config.Config) { cfg.TTS.AudioFormat = "WAV" }},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			cfg := decodeTestConfig(t)
			cfg.ApplyDefaults()
			testCase.mutate(&cfg)

			require.ErrorIs(t, cfg.Validate(), config.ErrInvalidConfig)
		})
	}
}

func TestApplyEnv_Overrides(t *testing.T) {
	t.Setenv("TTS_NATS_URL", "nats://override:4222")
	t.Setenv("TTS_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg := decodeTestConfig(t)

	require.NoError(t, config.ApplyEnv(&cfg))

	assert.Equal(t, "nats://override:4222", cfg.NATS.URL)
	assert.Equal(t, config.ProviderOpenAI, cfg.TTS.Provider)
	assert.Equal(t, "sk-test", cfg.TTS.APIKey)
	assert.Equal(t, "tts-workers", cfg.NATS.QueueGroup, "unset variables keep loaded values")
	require.NoError(t, cfg.Validate())
}

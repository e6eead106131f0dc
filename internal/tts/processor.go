package tts

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-cache/internal/core"
)

const defaultChatLLMBinary = "chatllm"

// ChatLLMConfig configures a ChatLLMProcessor.
type ChatLLMConfig struct {
	// BinaryPath defaults to "chatllm" resolved through PATH.
	BinaryPath    string
	ModelPath     string
	SnacModelPath string
	Voice         string
	Temperature   float64
}

// ChatLLMProcessor is a core.Synthesizer that shells out to a local chatllm
// binary and reads back the exported WAV file.
type ChatLLMProcessor struct {
	config ChatLLMConfig
	log    *logger.Logger
}

// NewChatLLMProcessor creates a new ChatLLMProcessor.
func NewChatLLMProcessor(cfg ChatLLMConfig, log *logger.Logger) *ChatLLMProcessor {
	if cfg.BinaryPath == "" {
		cfg.BinaryPath = defaultChatLLMBinary
	}

	if cfg.Temperature == 0 {
		cfg.Temperature = defaultTemperature
	}

	return &ChatLLMProcessor{
		config: cfg,
		log:    log,
	}
}

// Format returns "wav".
func (p *ChatLLMProcessor) Format() string {
	return "wav"
}

// Synthesize renders text through the chatllm binary.
func (p *ChatLLMProcessor) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", core.ErrValidation)
	}

	tempFile, err := os.CreateTemp("", "tts-output-*.wav")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file for tts output: %w", err)
	}

	_ = tempFile.Close()

	defer func() {
		removeErr := os.Remove(tempFile.Name())
		if removeErr != nil {
			p.log.Warn("Failed to remove temp file '%s': %v", tempFile.Name(), removeErr)
		}
	}()

	prompt := text
	if p.config.Voice != "" {
		prompt = fmt.Sprintf("{%s}: %s", p.config.Voice, text)
	}

	args := []string{
		"-m", p.config.ModelPath,
		"--snac_model", p.config.SnacModelPath,
		"-p", prompt,
		"--tts_export", tempFile.Name(),
		"--temp", fmt.Sprintf("%.2f", p.config.Temperature),
	}

	// #nosec G204 -- binary and model paths come from service configuration
	cmd := exec.CommandContext(ctx, p.config.BinaryPath, args...)

	output, err := cmd.CombinedOutput()
	if err != nil {
		p.log.Error("chatllm failed: %v - output: %s", err, string(output))

		return nil, fmt.Errorf("%w: chatllm binary execution failed: %w", core.ErrProvider, err)
	}

	audioData, err := os.ReadFile(tempFile.Name())
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read audio data from temp file: %w", core.ErrProvider, err)
	}

	if len(audioData) == 0 {
		return nil, fmt.Errorf("%w: chatllm exported no audio", core.ErrProvider)
	}

	return audioData, nil
}

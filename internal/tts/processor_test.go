package tts_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-cache/internal/core"
	"github.com/book-expert/tts-cache/internal/tts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeChatLLM writes payload to the path following --tts_export and records
// its arguments next to itself.
const fakeChatLLM = `#!/bin/sh
printf '%s\n' "$@" > "$(dirname "$0")/args.txt"
while [ $# -gt 0 ]; do
	if [ "$1" = "--tts_export" ]; then
		printf 'RIFFfake' > "$2"
	fi
	shift
done
`

func createTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	log, err := logger.New(t.TempDir(), "test.log")
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })

	return log
}

func writeScript(t *testing.T, body string) string {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not executable on windows")
	}

	path := filepath.Join(t.TempDir(), "chatllm")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o755))

	return path
}

func TestChatLLMProcessor_Synthesize(t *testing.T) {
	t.Parallel()

	binary := writeScript(t, fakeChatLLM)
	processor := tts.NewChatLLMProcessor(tts.ChatLLMConfig{
		BinaryPath:    binary,
		ModelPath:     "model.bin",
		SnacModelPath: "snac.bin",
		Voice:         "tara",
	}, createTestLogger(t))

	assert.Equal(t, "wav", processor.Format())

	audio, err := processor.Synthesize(context.Background(), "Hello there.")
	require.NoError(t, err)
	assert.Equal(t, []byte("RIFFfake"), audio)

	args, err := os.ReadFile(filepath.Join(filepath.Dir(binary), "args.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(args), "{tara}: Hello there.")
	assert.Contains(t, string(args), "snac.bin")
	assert.Contains(t, string(args), "0.75")
}

func TestChatLLMProcessor_BinaryFailure(t *testing.T) {
	t.Parallel()

	binary := writeScript(t, "#!/bin/sh\necho 'model not found' >&2\nexit 3\n")
	processor := tts.NewChatLLMProcessor(tts.ChatLLMConfig{BinaryPath: binary}, createTestLogger(t))

	_, err := processor.Synthesize(context.Background(), "Hello there.")
	require.ErrorIs(t, err, core.ErrProvider)
}

func TestChatLLMProcessor_NoAudioExported(t *testing.T) {
	t.Parallel()

	binary := writeScript(t, "#!/bin/sh\nexit 0\n")
	processor := tts.NewChatLLMProcessor(tts.ChatLLMConfig{BinaryPath: binary}, createTestLogger(t))

	_, err := processor.Synthesize(context.Background(), "Hello there.")
	require.ErrorIs(t, err, core.ErrProvider)
}

func TestChatLLMProcessor_EmptyText(t *testing.T) {
	t.Parallel()

	processor := tts.NewChatLLMProcessor(tts.ChatLLMConfig{}, createTestLogger(t))

	_, err := processor.Synthesize(context.Background(), "")
	require.ErrorIs(t, err, core.ErrValidation)
}

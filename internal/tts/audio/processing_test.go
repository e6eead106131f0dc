package audio_test

import (
	"encoding/binary"
	"testing"

	"github.com/book-expert/tts-cache/internal/tts/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testWAV builds a minimal PCM WAV file around the given samples.
func testWAV(sampleRate uint32, samples []byte) []byte {
	format := make([]byte, 16)
	binary.LittleEndian.PutUint16(format[0:2], 1)
	binary.LittleEndian.PutUint16(format[2:4], 1)
	binary.LittleEndian.PutUint32(format[4:8], sampleRate)
	binary.LittleEndian.PutUint32(format[8:12], sampleRate*2)
	binary.LittleEndian.PutUint16(format[12:14], 2)
	binary.LittleEndian.PutUint16(format[14:16], 16)

	out := []byte("RIFF")
	out = binary.LittleEndian.AppendUint32(out, uint32(4+8+len(format)+8+len(samples)))
	out = append(out, "WAVE"...)
	out = append(out, "fmt "...)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(format)))
	out = append(out, format...)
	out = append(out, "data"...)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(samples)))

	return append(out, samples...)
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	format, err := audio.ParseFormat("mp3")
	require.NoError(t, err)
	assert.Equal(t, audio.FormatMP3, format)

	_, err = audio.ParseFormat("midi")
	require.ErrorIs(t, err, audio.ErrUnsupportedFormat)
}

func TestAssembler_ConcatenatesInOrder(t *testing.T) {
	t.Parallel()

	assembler := audio.NewAssembler(audio.FormatMP3)

	result, err := assembler.Assemble([][]byte{[]byte("one-"), []byte("two-"), []byte("three")})
	require.NoError(t, err)
	assert.Equal(t, []byte("one-two-three"), result)
}

func TestAssembler_RejectsMissingParts(t *testing.T) {
	t.Parallel()

	assembler := audio.NewAssembler(audio.FormatMP3)

	_, err := assembler.Assemble(nil)
	require.ErrorIs(t, err, audio.ErrNoParts)

	_, err = assembler.Assemble([][]byte{[]byte("a"), nil, []byte("c")})
	require.ErrorIs(t, err, audio.ErrEmptyPart)
}

func TestAssembler_MergesWAV(t *testing.T) {
	t.Parallel()

	assembler := audio.NewAssembler(audio.FormatWAV)

	result, err := assembler.Assemble([][]byte{
		testWAV(22050, []byte{1, 2, 3, 4}),
		testWAV(22050, []byte{5, 6}),
	})
	require.NoError(t, err)

	assert.Equal(t, testWAV(22050, []byte{1, 2, 3, 4, 5, 6}), result)
}

func TestAssembler_RejectsMismatchedWAV(t *testing.T) {
	t.Parallel()

	assembler := audio.NewAssembler(audio.FormatWAV)

	_, err := assembler.Assemble([][]byte{
		testWAV(22050, []byte{1, 2}),
		testWAV(44100, []byte{3, 4}),
	})
	require.ErrorIs(t, err, audio.ErrInvalidWAV)

	_, err = assembler.Assemble([][]byte{testWAV(22050, []byte{1, 2}), []byte("not a wav")})
	require.ErrorIs(t, err, audio.ErrInvalidWAV)
}

func TestEstimateDuration(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 6.0, audio.EstimateDuration(100, 0.06), 0.001)
	assert.InDelta(t, 0.1, audio.EstimateDuration(1, 0.06), 0.001)
	assert.Zero(t, audio.EstimateDuration(0, 0.06))
	assert.Zero(t, audio.EstimateDuration(10, 0))
}

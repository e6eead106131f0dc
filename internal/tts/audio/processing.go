// Package audio assembles per-chunk synthesis output into one playable
// artifact and estimates its playback duration.
package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Format represents supported audio container formats.
type Format string

const (
	FormatWAV  Format = "wav"
	FormatMP3  Format = "mp3"
	FormatOpus Format = "opus"
	FormatFLAC Format = "flac"
	FormatAAC  Format = "aac"
	FormatPCM  Format = "pcm"
)

// RIFF layout constants.
const (
	riffHeaderSize  = 12
	chunkHeaderSize = 8
	riffTag         = "RIFF"
	waveTag         = "WAVE"
	fmtTag          = "fmt "
	dataTag         = "data"
)

// Error messages.
const (
	errFmtEmptyPart        = "%w: part %d is empty"
	errFmtInvalidWAV       = "%w: part %d: %w"
	errFmtMismatchedFormat = "%w: part %d has a different fmt chunk than part 0"
)

// Common errors for the audio package.
var (
	ErrNoParts           = errors.New("no audio parts to assemble")
	ErrEmptyPart         = errors.New("empty audio part")
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrInvalidWAV        = errors.New("invalid wav data")
	errMissingChunk      = errors.New("missing fmt or data chunk")
	errTruncatedChunk    = errors.New("truncated chunk")
	errNotRIFF           = errors.New("not a RIFF/WAVE container")
)

// ParseFormat validates a configured format name.
func ParseFormat(name string) (Format, error) {
	format := Format(name)

	switch format {
	case FormatWAV, FormatMP3, FormatOpus, FormatFLAC, FormatAAC, FormatPCM:
		return format, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
	}
}

// Assembler joins ordered audio parts produced with identical voice, sample
// rate and encoding parameters.
type Assembler struct {
	format Format
}

// NewAssembler returns an assembler for the given container format.
func NewAssembler(format Format) *Assembler {
	return &Assembler{format: format}
}

// Assemble concatenates parts in slice order. Stream formats are joined
// byte-for-byte, which plays back continuously because every part shares the
// same encoding. WAV parts are merged under a single RIFF header.
func (a *Assembler) Assemble(parts [][]byte) ([]byte, error) {
	if len(parts) == 0 {
		return nil, ErrNoParts
	}

	for i, part := range parts {
		if len(part) == 0 {
			return nil, fmt.Errorf(errFmtEmptyPart, ErrEmptyPart, i)
		}
	}

	if len(parts) == 1 {
		return parts[0], nil
	}

	if a.format == FormatWAV {
		return mergeWAV(parts)
	}

	return bytes.Join(parts, nil), nil
}

// EstimateDuration approximates playback length in seconds from the
// normalized character count. It is not measured from decoded audio and
// callers must present it as an estimate.
func EstimateDuration(charCount int, secondsPerChar float64) float64 {
	if charCount <= 0 || secondsPerChar <= 0 {
		return 0
	}

	return math.Round(float64(charCount)*secondsPerChar*10) / 10
}

type wavParts struct {
	format []byte
	data   []byte
}

func mergeWAV(parts [][]byte) ([]byte, error) {
	var (
		format []byte
		pcm    bytes.Buffer
	)

	for i, part := range parts {
		parsed, parseErr := parseWAV(part)
		if parseErr != nil {
			return nil, fmt.Errorf(errFmtInvalidWAV, ErrInvalidWAV, i, parseErr)
		}

		if i == 0 {
			format = parsed.format
		} else if !bytes.Equal(format, parsed.format) {
			return nil, fmt.Errorf(errFmtMismatchedFormat, ErrInvalidWAV, i)
		}

		pcm.Write(parsed.data)
	}

	return buildWAV(format, pcm.Bytes()), nil
}

func parseWAV(data []byte) (wavParts, error) {
	var parsed wavParts

	if len(data) < riffHeaderSize || string(data[0:4]) != riffTag || string(data[8:12]) != waveTag {
		return parsed, errNotRIFF
	}

	offset := riffHeaderSize

	for offset+chunkHeaderSize <= len(data) {
		tag := string(data[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		start := offset + chunkHeaderSize

		if size < 0 || start+size > len(data) {
			return parsed, errTruncatedChunk
		}

		switch tag {
		case fmtTag:
			parsed.format = data[start : start+size]
		case dataTag:
			parsed.data = data[start : start+size]
		}

		// Chunks are word aligned.
		offset = start + size + size%2
	}

	if parsed.format == nil || parsed.data == nil {
		return parsed, errMissingChunk
	}

	return parsed, nil
}

func buildWAV(format, pcm []byte) []byte {
	total := riffHeaderSize + chunkHeaderSize + len(format) + chunkHeaderSize + len(pcm)
	out := make([]byte, 0, total)

	out = append(out, riffTag...)
	out = binary.LittleEndian.AppendUint32(out, uint32(total-chunkHeaderSize))
	out = append(out, waveTag...)

	out = append(out, fmtTag...)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(format)))
	out = append(out, format...)

	out = append(out, dataTag...)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(pcm)))
	out = append(out, pcm...)

	return out
}

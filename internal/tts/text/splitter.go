package text

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/book-expert/tts-cache/internal/core"
)

// Boundary search windows, as fractions of the candidate span.
const (
	sentenceWindowRatio = 0.2
	wordWindowRatio     = 0.1
)

// Chunk is one byte-bounded segment of normalized text.
type Chunk struct {
	Index int
	Text  string
	Bytes int
}

// Splitter cuts normalized text into ordered chunks whose UTF-8 encoding
// never exceeds MaxBytes.
type Splitter struct {
	maxBytes int
}

// NewSplitter returns a splitter for the given byte budget. The budget must
// hold at least one rune of any script.
func NewSplitter(maxBytes int) (*Splitter, error) {
	if maxBytes < utf8.UTFMax {
		return nil, fmt.Errorf("%w: chunk budget must be at least %d bytes, got %d",
			core.ErrValidation, utf8.UTFMax, maxBytes)
	}

	return &Splitter{maxBytes: maxBytes}, nil
}

// MaxBytes returns the per-chunk byte budget.
func (s *Splitter) MaxBytes() int {
	return s.maxBytes
}

// Split divides text into chunks. Text within budget is returned as a single
// chunk equal to the input. Longer text is cut preferably after a sentence
// terminator, then at whitespace, and otherwise at the last rune that fits.
func (s *Splitter) Split(text string) []Chunk {
	if text == "" {
		return nil
	}

	if len(text) <= s.maxBytes {
		return []Chunk{{Index: 0, Text: text, Bytes: len(text)}}
	}

	runes := []rune(text)
	offsets := byteOffsets(runes)
	avgBytesPerRune := float64(len(text)) / float64(len(runes))

	var chunks []Chunk

	for cursor := 0; cursor < len(runes); {
		end := s.fitEnd(offsets, cursor, avgBytesPerRune)
		cut := end

		if end < len(runes) {
			cut = findCut(runes, cursor, end)
		}

		piece := strings.TrimSpace(string(runes[cursor:cut]))
		if piece != "" {
			chunks = append(chunks, Chunk{Index: len(chunks), Text: piece, Bytes: len(piece)})
		}

		cursor = cut
	}

	return chunks
}

// fitEnd estimates a candidate end rune index from the average rune width and
// shrinks it until the span fits the byte budget. The result is always
// greater than cursor.
func (s *Splitter) fitEnd(offsets []int, cursor int, avgBytesPerRune float64) int {
	total := len(offsets) - 1

	estimate := max(int(float64(s.maxBytes)/avgBytesPerRune), 1)
	end := min(cursor+estimate, total)

	for end > cursor+1 && offsets[end]-offsets[cursor] > s.maxBytes {
		end--
	}

	return end
}

// findCut looks backward from end for a natural break inside the candidate
// span [cursor, end). It returns end when no break is found.
func findCut(runes []rune, cursor, end int) int {
	span := end - cursor

	sentenceFloor := max(end-int(float64(span)*sentenceWindowRatio), cursor)
	for i := end - 1; i >= sentenceFloor; i-- {
		if isSentenceTerminator(runes[i]) {
			return i + 1
		}
	}

	wordFloor := max(end-int(float64(span)*wordWindowRatio), cursor+1)
	for i := end - 1; i >= wordFloor; i-- {
		if unicode.IsSpace(runes[i]) {
			return i
		}
	}

	return end
}

func isSentenceTerminator(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？', '．':
		return true
	default:
		return false
	}
}

// byteOffsets returns the UTF-8 byte offset of every rune boundary;
// offsets[i] is the encoded length of runes[:i].
func byteOffsets(runes []rune) []int {
	offsets := make([]int, len(runes)+1)

	for i, r := range runes {
		offsets[i+1] = offsets[i] + utf8.RuneLen(r)
	}

	return offsets
}

// Package text provides text normalization and byte-bounded chunking for TTS
// applications.
//
// The Normalizer turns article markup into plain, speakable text. The Splitter
// cuts that text into segments that each fit a synthesis provider's
// per-request byte budget.
package text

import (
	"bytes"
	"html"
	"regexp"
	"strings"

	"github.com/book-expert/tts-cache/internal/core"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"golang.org/x/text/unicode/norm"
)

// Regex patterns for text normalization.
const (
	blockTagRegexPattern = `(?i)<(?:br|hr|/?p|/?div|/?li|/?ul|/?ol|/?h[1-6]|/?tr|/?td|/?th|` +
		`/?blockquote|/?pre|/?section|/?article|/?figcaption)\b[^>]*>`
	terminalRunRegexPattern = `([.!?。！？．])[.!?。！？．]+`
	commaRunRegexPattern    = `([,，、])[,，、]+`
	disruptiveRegexPattern  = "[*#_~`|^<>\\[\\]{}\\\\=+]"
	unspeakableRegexPattern = `[^\p{L}\p{M}\p{N}\p{P}\p{Z}\s%$&@/]`
	digitLetterRegexPattern = `(\p{N})(\p{L})`
	letterDigitRegexPattern = `(\p{L})(\p{N})`
	whitespaceRegexPattern  = `\s+`
)

// Punctuation constants.
const (
	ellipsisChar     = "…"
	ellipsisReplaced = "."
	spacedMatch      = "$0 "
	spacedPair       = "$1 $2"
	firstGroup       = "$1"
)

// maxEntityPasses bounds entity decoding of markup that was escaped more than once.
const maxEntityPasses = 3

// Normalizer strips markup and reshapes text for speech synthesis. It is safe
// for concurrent use.
type Normalizer struct {
	markdown goldmark.Markdown
	policy   *bluemonday.Policy

	// Precompiled regex patterns.
	blockTagPattern    *regexp.Regexp
	terminalRunPattern *regexp.Regexp
	commaRunPattern    *regexp.Regexp
	disruptivePattern  *regexp.Regexp
	unspeakablePattern *regexp.Regexp
	digitLetterPattern *regexp.Regexp
	letterDigitPattern *regexp.Regexp
	whitespacePattern  *regexp.Regexp
}

// NewNormalizer creates a normalizer with compiled patterns and a strict
// sanitizer policy that removes every tag.
func NewNormalizer() *Normalizer {
	return &Normalizer{
		markdown:           goldmark.New(),
		policy:             bluemonday.StrictPolicy(),
		blockTagPattern:    regexp.MustCompile(blockTagRegexPattern),
		terminalRunPattern: regexp.MustCompile(terminalRunRegexPattern),
		commaRunPattern:    regexp.MustCompile(commaRunRegexPattern),
		disruptivePattern:  regexp.MustCompile(disruptiveRegexPattern),
		unspeakablePattern: regexp.MustCompile(unspeakableRegexPattern),
		digitLetterPattern: regexp.MustCompile(digitLetterRegexPattern),
		letterDigitPattern: regexp.MustCompile(letterDigitRegexPattern),
		whitespacePattern:  regexp.MustCompile(whitespaceRegexPattern),
	}
}

// Normalize converts markup in the given format to plain speakable text.
// Empty input yields empty output. Unknown formats are treated as HTML.
func (n *Normalizer) Normalize(markup string, format core.Format) string {
	if strings.TrimSpace(markup) == "" {
		return ""
	}

	plain := markup

	switch format {
	case core.FormatPlain:
	case core.FormatMarkdown:
		plain = n.stripMarkup(n.renderMarkdown(markup))
	case core.FormatHTML:
		plain = n.stripMarkup(markup)
	default:
		plain = n.stripMarkup(markup)
	}

	plain = norm.NFC.String(plain)

	plain = n.collapsePunctuation(plain)
	plain = n.removeDisruptiveSymbols(plain)
	plain = n.separateDigitsAndLetters(plain)

	return n.normalizeWhitespace(plain)
}

// renderMarkdown renders Markdown to HTML. Rendering into a buffer cannot
// fail for well-formed input; on error the source is returned unchanged so
// the tag stripper still sees it.
func (n *Normalizer) renderMarkdown(source string) string {
	var buf bytes.Buffer

	err := n.markdown.Convert([]byte(source), &buf)
	if err != nil {
		return source
	}

	return buf.String()
}

// stripMarkup removes tags and decodes entities. Block-level tags are padded
// first so that words in adjacent blocks stay separated.
func (n *Normalizer) stripMarkup(markup string) string {
	padded := n.blockTagPattern.ReplaceAllString(markup, spacedMatch)
	stripped := n.policy.Sanitize(padded)

	return decodeEntities(stripped)
}

func decodeEntities(text string) string {
	for range maxEntityPasses {
		decoded := html.UnescapeString(text)
		if decoded == text {
			break
		}

		text = decoded
	}

	return text
}

// collapsePunctuation reduces runs of terminal punctuation and commas to
// their first character.
func (n *Normalizer) collapsePunctuation(text string) string {
	text = strings.ReplaceAll(text, ellipsisChar, ellipsisReplaced)
	text = n.terminalRunPattern.ReplaceAllString(text, firstGroup)

	return n.commaRunPattern.ReplaceAllString(text, firstGroup)
}

// removeDisruptiveSymbols drops markup leftovers and emoji.
func (n *Normalizer) removeDisruptiveSymbols(text string) string {
	text = n.disruptivePattern.ReplaceAllString(text, " ")

	return n.unspeakablePattern.ReplaceAllString(text, "")
}

// separateDigitsAndLetters inserts a space at every digit/letter boundary so
// units like "10kg" are read as "10 kg".
func (n *Normalizer) separateDigitsAndLetters(text string) string {
	text = n.digitLetterPattern.ReplaceAllString(text, spacedPair)

	return n.letterDigitPattern.ReplaceAllString(text, spacedPair)
}

func (n *Normalizer) normalizeWhitespace(text string) string {
	text = n.whitespacePattern.ReplaceAllString(text, " ")

	return strings.TrimSpace(text)
}

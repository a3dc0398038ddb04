// Package script provides Unicode script detection and romanization for Indic text.
package script

import (
	"fmt"
	"sort"
	"unicode"
)

// Script names
const (
	Devanagari = "devanagari"
	Bengali    = "bengali"
	Gurmukhi   = "gurmukhi"
	Gujarati   = "gujarati"
	Odia       = "odia"
	Tamil      = "tamil"
	Telugu     = "telugu"
	Kannada    = "kannada"
	Malayalam  = "malayalam"
	Latin      = "latin"
	Unknown    = "unknown"
)

// block is a contiguous Unicode range belonging to one script
type block struct {
	name  string
	start rune
	end   rune
}

// brahmicBlocks share the ISCII-derived layout of the Devanagari block, so a code
// point's offset from its block start identifies the same letter across scripts.
var brahmicBlocks = []block{
	{Devanagari, 0x0900, 0x097F},
	{Bengali, 0x0980, 0x09FF},
	{Gurmukhi, 0x0A00, 0x0A7F},
	{Gujarati, 0x0A80, 0x0AFF},
	{Odia, 0x0B00, 0x0B7F},
	{Tamil, 0x0B80, 0x0BFF},
	{Telugu, 0x0C00, 0x0C7F},
	{Kannada, 0x0C80, 0x0CFF},
	{Malayalam, 0x0D00, 0x0D7F},
}

// languageScripts maps each supported language to its primary script
var languageScripts = map[string]string{
	"hindi":     Devanagari,
	"marathi":   Devanagari,
	"sanskrit":  Devanagari,
	"bengali":   Bengali,
	"punjabi":   Gurmukhi,
	"gujarati":  Gujarati,
	"odia":      Odia,
	"tamil":     Tamil,
	"telugu":    Telugu,
	"kannada":   Kannada,
	"malayalam": Malayalam,
}

// DefaultLanguages is the configured language set used when none is specified.
var DefaultLanguages = []string{"hindi", "bengali", "tamil", "telugu", "kannada", "malayalam"}

// SupportedLanguages returns every language with a known script, sorted.
func SupportedLanguages() []string {
	langs := make([]string, 0, len(languageScripts))
	for lang := range languageScripts {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

// ForLanguage returns the primary script of a language.
func ForLanguage(language string) (string, error) {
	s, ok := languageScripts[language]
	if !ok {
		return "", fmt.Errorf("unsupported language: %s", language)
	}
	return s, nil
}

// Of returns the script a single rune belongs to.
func Of(r rune) string {
	for _, b := range brahmicBlocks {
		if r >= b.start && r <= b.end {
			return b.name
		}
	}
	if unicode.Is(unicode.Latin, r) {
		return Latin
	}
	return Unknown
}

// Detect returns the dominant script of text. Whitespace, punctuation and digits are
// ignored; ties go to the script listed first in the block table.
func Detect(text string) string {
	counts := make(map[string]int)
	for _, r := range text {
		if unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsDigit(r) {
			continue
		}
		if s := Of(r); s != Unknown {
			counts[s]++
		}
	}

	best, bestCount := Unknown, 0
	for _, b := range brahmicBlocks {
		if counts[b.name] > bestCount {
			best, bestCount = b.name, counts[b.name]
		}
	}
	if counts[Latin] > bestCount {
		best = Latin
	}
	return best
}

// IsBrahmic reports whether r is in one of the Indic script blocks.
func IsBrahmic(r rune) bool {
	return r >= 0x0900 && r <= 0x0D7F
}

// ContainsBrahmic reports whether text has any Indic-script code point.
func ContainsBrahmic(text string) bool {
	for _, r := range text {
		if IsBrahmic(r) {
			return true
		}
	}
	return false
}

// ToDevanagari maps code points from any Brahmic block onto the Devanagari block.
// Non-Brahmic runes pass through unchanged.
func ToDevanagari(text string) string {
	out := make([]rune, 0, len(text))
	for _, r := range text {
		if IsBrahmic(r) && r >= 0x0980 {
			r = 0x0900 + (r-0x0900)%0x80
		}
		out = append(out, r)
	}
	return string(out)
}

// Package roots normalizes Sanskrit root spellings so that verifiers proposing the same
// root in different scripts or romanizations can be grouped together.
package roots

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/jonathan/shabda-setu/internal/script"
)

// foldings are applied in order to the diacritic-free romanization. They collapse the
// common ad-hoc spellings (manushya, krishna, sanskrit) onto their IAST skeletons.
var foldings = []struct {
	from string
	to   string
}{
	{"sh", "s"},
	{"ch", "c"},
	{"ee", "i"},
	{"oo", "u"},
	{"aa", "a"},
	{"ii", "i"},
	{"uu", "u"},
	{"w", "v"},
}

// decorations are stripped before comparison
var decorations = strings.NewReplacer(
	"√", "",
	"-", "",
	" ", "",
	"'", "",
	"’", "",
	".", "",
)

// Normalizer builds grouping keys for Sanskrit roots.
type Normalizer struct {
	// Transliteration enables script and romanization equivalence. When false only
	// case and diacritic differences are ignored.
	Transliteration bool
}

// NewNormalizer creates a Normalizer.
func NewNormalizer(transliteration bool) *Normalizer {
	return &Normalizer{Transliteration: transliteration}
}

// Key returns the grouping key for a root. Two roots belong to the same group
// exactly when their keys are equal. An empty or blank root yields "".
func (n *Normalizer) Key(root string) string {
	s := decorations.Replace(norm.NFC.String(strings.TrimSpace(root)))
	if s == "" {
		return ""
	}

	if !n.Transliteration {
		if script.ContainsBrahmic(s) {
			return s
		}
		return StripDiacritics(strings.ToLower(s))
	}

	s = StripDiacritics(strings.ToLower(script.Romanize(s)))
	for _, f := range foldings {
		s = strings.ReplaceAll(s, f.from, f.to)
	}
	s = foldVocalicR(s)
	s = foldAnusvara(s)
	return dropFinalSchwa(s)
}

// Equivalent reports whether two roots normalize to the same key.
func (n *Normalizer) Equivalent(a, b string) bool {
	ka := n.Key(a)
	return ka != "" && ka == n.Key(b)
}

// StripDiacritics removes combining marks from Latin text (ā → a, ṣ → s).
func StripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func isVowel(b byte) bool {
	return strings.IndexByte("aeiou", b) >= 0
}

func isConsonant(b byte) bool {
	return b >= 'a' && b <= 'z' && !isVowel(b)
}

// foldVocalicR turns the "ri" spelling of vocalic r between consonants into "r",
// matching the stripped IAST ṛ (krishna → krsna, sanskrit → sanskrt).
func foldVocalicR(s string) string {
	b := []byte(s)
	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); i++ {
		if b[i] == 'r' && i+1 < len(b) && b[i+1] == 'i' && i > 0 && isConsonant(b[i-1]) &&
			(i+2 == len(b) || isConsonant(b[i+2])) {
			out = append(out, 'r')
			i++
			continue
		}
		out = append(out, b[i])
	}
	return string(out)
}

// foldAnusvara spells a nasal before a consonant as "n" (samskrta → sanskrta).
func foldAnusvara(s string) string {
	b := []byte(s)
	for i := 0; i+1 < len(b); i++ {
		if b[i] == 'm' && i > 0 && isVowel(b[i-1]) && isConsonant(b[i+1]) && b[i+1] != 'y' && b[i+1] != 'v' {
			b[i] = 'n'
		}
	}
	return string(b)
}

// dropFinalSchwa removes a trailing inherent "a" after a consonant (karma → karm).
func dropFinalSchwa(s string) string {
	if len(s) > 2 && s[len(s)-1] == 'a' && isConsonant(s[len(s)-2]) {
		return s[:len(s)-1]
	}
	return s
}

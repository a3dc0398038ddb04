package script

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

const (
	virama = '\u094D'
	nukta  = '\u093C'
)

var consonants = map[rune]string{
	'\u0915': "k", '\u0916': "kh", '\u0917': "g", '\u0918': "gh", '\u0919': "ṅ",
	'\u091A': "c", '\u091B': "ch", '\u091C': "j", '\u091D': "jh", '\u091E': "ñ",
	'\u091F': "ṭ", '\u0920': "ṭh", '\u0921': "ḍ", '\u0922': "ḍh", '\u0923': "ṇ",
	'\u0924': "t", '\u0925': "th", '\u0926': "d", '\u0927': "dh", '\u0928': "n", '\u0929': "ṉ",
	'\u092A': "p", '\u092B': "ph", '\u092C': "b", '\u092D': "bh", '\u092E': "m",
	'\u092F': "y", '\u0930': "r", '\u0931': "ṟ", '\u0932': "l", '\u0933': "ḷ", '\u0934': "ḻ", '\u0935': "v",
	'\u0936': "ś", '\u0937': "ṣ", '\u0938': "s", '\u0939': "h",
	'\u0958': "q", '\u0959': "kh", '\u095A': "g", '\u095B': "z",
	'\u095C': "ṛ", '\u095D': "ṛh", '\u095E': "f", '\u095F': "y",
}

var vowels = map[rune]string{
	'\u0905': "a", '\u0906': "ā", '\u0907': "i", '\u0908': "ī", '\u0909': "u", '\u090A': "ū",
	'\u090B': "ṛ", '\u0960': "ṝ", '\u090C': "ḷ", '\u0961': "ḹ",
	'\u090D': "e", '\u090E': "e", '\u090F': "e", '\u0910': "ai",
	'\u0911': "o", '\u0912': "o", '\u0913': "o", '\u0914': "au",
}

var matras = map[rune]string{
	'\u093E': "ā", '\u093F': "i", '\u0940': "ī", '\u0941': "u", '\u0942': "ū",
	'\u0943': "ṛ", '\u0944': "ṝ", '\u0962': "ḷ", '\u0963': "ḹ",
	'\u0945': "e", '\u0946': "e", '\u0947': "e", '\u0948': "ai",
	'\u0949': "o", '\u094A': "o", '\u094B': "o", '\u094C': "au",
}

var signs = map[rune]string{
	'\u0901': "ṃ", // candrabindu
	'\u0902': "ṃ", // anusvara
	'\u0903': "ḥ", // visarga
	'\u093D': "'", // avagraha
	'\u0950': "oṃ",
	'\u0964': ".",
	'\u0965': ".",
}

// Romanize converts Indic text to IAST. Text in any Brahmic script is first mapped onto
// Devanagari; Latin text is returned NFC-normalized and otherwise unchanged.
func Romanize(text string) string {
	runes := []rune(norm.NFC.String(ToDevanagari(text)))

	var sb strings.Builder
	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if c, ok := consonants[r]; ok {
			sb.WriteString(c)
			j := i + 1
			for j < len(runes) && runes[j] == nukta {
				j++
			}
			if j < len(runes) {
				if m, ok := matras[runes[j]]; ok {
					sb.WriteString(m)
					i = j
					continue
				}
				if runes[j] == virama {
					i = j
					continue
				}
			}
			sb.WriteString("a") // inherent vowel
			i = j - 1
			continue
		}

		if v, ok := vowels[r]; ok {
			sb.WriteString(v)
			continue
		}
		if m, ok := matras[r]; ok {
			sb.WriteString(m)
			continue
		}
		if s, ok := signs[r]; ok {
			sb.WriteString(s)
			continue
		}
		if r >= '\u0966' && r <= '\u096F' {
			sb.WriteRune('0' + (r - '\u0966'))
			continue
		}
		if IsBrahmic(r) {
			// accents, length marks and stray nuktas carry no romanized letter
			continue
		}
		sb.WriteRune(r)
	}

	return sb.String()
}

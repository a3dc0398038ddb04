package roots

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKey_TransliterationEquivalence(t *testing.T) {
	n := NewNormalizer(true)

	groups := [][]string{
		{"मनुष्य", "manuṣya", "Manushya", "MANUSYA", "ಮನುಷ್ಯ"},
		{"संस्कृत", "saṃskṛta", "sanskrit", "Sanskrit"},
		{"कृष्ण", "kṛṣṇa", "krishna"},
		{"धर्म", "dharma", "dharm", "√dharma"},
	}

	for _, group := range groups {
		want := n.Key(group[0])
		assert.NotEmpty(t, want)
		for _, root := range group[1:] {
			assert.Equal(t, want, n.Key(root), "%q should group with %q", root, group[0])
		}
	}
}

func TestKey_DistinctRootsStayApart(t *testing.T) {
	n := NewNormalizer(true)

	assert.NotEqual(t, n.Key("मनुष्य"), n.Key("मानव"))
	assert.NotEqual(t, n.Key("karma"), n.Key("dharma"))
	assert.False(t, n.Equivalent("deva", "veda"))
}

func TestKey_WithoutTransliteration(t *testing.T) {
	n := NewNormalizer(false)

	// case and diacritics still fold
	assert.Equal(t, n.Key("Manuṣya"), n.Key("manusya"))
	// but scripts are not bridged
	assert.NotEqual(t, n.Key("मनुष्य"), n.Key("manusya"))
	// Devanagari is compared as-is after NFC
	assert.Equal(t, "मनुष्य", n.Key(" मनुष्य "))
}

func TestKey_Empty(t *testing.T) {
	n := NewNormalizer(true)

	assert.Equal(t, "", n.Key(""))
	assert.Equal(t, "", n.Key("   "))
	assert.False(t, n.Equivalent("", ""))
}

func TestStripDiacritics(t *testing.T) {
	assert.Equal(t, "atma", StripDiacritics("ātmā"))
	assert.Equal(t, "krsna", StripDiacritics("kṛṣṇa"))
}

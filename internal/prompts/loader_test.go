package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_ValidPrompt(t *testing.T) {
	prompt, err := Get(VerificationFile, VerifyEtymologyKey)
	require.NoError(t, err)
	assert.Contains(t, prompt, "derived from Sanskrit")
	assert.Contains(t, prompt, "sanskrit_root")
}

func TestGet_InvalidFile(t *testing.T) {
	_, err := Get("nonexistent.json", "some-key")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read prompt file")
}

func TestGet_InvalidKey(t *testing.T) {
	_, err := Get(VerificationFile, "nonexistent-key")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestVersion(t *testing.T) {
	v, err := Version(VerificationFile)
	require.NoError(t, err)
	assert.NotEmpty(t, v)

	_, err = Version("nonexistent.json")
	assert.Error(t, err)
}

func TestFormat(t *testing.T) {
	template := "Word {{.Word}} in {{.Language}}"
	result := Format(template, map[string]string{"Word": "मनुष्य", "Language": "hindi"})
	assert.Equal(t, "Word मनुष्य in hindi", result)
}

func TestFormat_EmptyData(t *testing.T) {
	template := "Hello {{.Name}}"
	assert.Equal(t, template, Format(template, map[string]string{}))
}

func TestRender(t *testing.T) {
	out, err := Render(VerificationFile, VerifyEtymologyKey, map[string]string{
		"Word":      "மனிதன்",
		"Language":  "tamil",
		"Script":    "tamil",
		"Romanized": "manitaṉ",
		"Meaning":   "human",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "Word: மனிதன்")
	assert.NotContains(t, out, "{{.")
}

func TestRender_MissingPlaceholder(t *testing.T) {
	_, err := Render(VerificationFile, VerifyEtymologyKey, map[string]string{"Word": "x"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unfilled placeholders")
}

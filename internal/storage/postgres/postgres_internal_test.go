package postgres

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestCheckLength(t *testing.T) {
	assert.NoError(t, checkLength("uvar", "abc", 3))
	assert.ErrorIs(t, checkLength("uvar", "abcd", 3), ErrValueTooLong)
	assert.NoError(t, checkLength("uvar", "◉◉◉", 3), "limits count characters, not bytes")
	assert.NoError(t, checkLength("uvar", strings.Repeat("x", 100), 0), "zero disables the limit")
}

// Property: checkLength fails exactly when the rune count exceeds the limit.
func TestPropertyCheckLength(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		value := rapid.String().Draw(t, "value")
		limit := rapid.IntRange(1, 40).Draw(t, "limit")
		err := checkLength("v", value, limit)
		if want := utf8.RuneCountInString(value) > limit; (err != nil) != want {
			t.Fatalf("checkLength(%q, %d) = %v, want error %v", value, limit, err, want)
		}
	})
}

func TestValidScriptName(t *testing.T) {
	assert.True(t, validScriptName("attack"))
	assert.True(t, validScriptName("sneak-attack"))
	assert.False(t, validScriptName(""))
	assert.False(t, validScriptName("two words"))
	assert.False(t, validScriptName(strings.Repeat("x", 101)))
}

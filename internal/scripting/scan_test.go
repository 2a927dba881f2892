package scripting_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/draconic/internal/scripting"
)

type tok struct {
	kind  scripting.TokenKind
	inner string
}

func scanKinds(text string) []tok {
	var out []tok
	for _, t := range scripting.Scan(text) {
		out = append(out, tok{t.Kind, t.Inner})
	}
	return out
}

func TestScan_Forms(t *testing.T) {
	tests := []struct {
		in   string
		want []tok
	}{
		{"plain text", []tok{{scripting.TokenText, "plain text"}}},
		{"a {{x + 1}} b", []tok{
			{scripting.TokenText, "a "},
			{scripting.TokenDoubleCurly, "x + 1"},
			{scripting.TokenText, " b"},
		}},
		{"hit {1d20+5}", []tok{{scripting.TokenText, "hit "}, {scripting.TokenLegacyCurly, "1d20+5"}}},
		{"<drac2>return 1</drac2>", []tok{{scripting.TokenDrac2, "return 1"}}},
		{"hi <name>!", []tok{
			{scripting.TokenText, "hi "},
			{scripting.TokenLookup, "name"},
			{scripting.TokenText, "!"},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, scanKinds(tt.in))
		})
	}
}

func TestScan_DoubleCurlyWinsOverLegacy(t *testing.T) {
	toks := scripting.Scan("{{a}}")
	require.Len(t, toks, 1)
	assert.Equal(t, scripting.TokenDoubleCurly, toks[0].Kind)
	assert.Equal(t, "{{a}}", toks[0].Raw)
	assert.Equal(t, 0, toks[0].Pos)
}

func TestScan_MentionsAndEmojiAreText(t *testing.T) {
	for _, in := range []string{"<@123>", "<@!123>", "<@&42>", "<#99>", "<:smile:123>", "<a:wave:456>", "<a b>", "<>"} {
		toks := scripting.Scan(in)
		require.Len(t, toks, 1, in)
		assert.Equal(t, scripting.TokenText, toks[0].Kind, in)
		assert.Equal(t, in, toks[0].Raw, in)
	}
}

func TestScan_EscapedMatchIsLiteral(t *testing.T) {
	toks := scripting.Scan(`say \{{x}} and {{y}}`)
	require.Len(t, toks, 2)
	assert.Equal(t, scripting.TokenText, toks[0].Kind)
	assert.Equal(t, "say {{x}} and ", toks[0].Raw)
	assert.Equal(t, scripting.TokenDoubleCurly, toks[1].Kind)
	assert.Equal(t, "y", toks[1].Inner)
}

func TestScan_LegacyCurlyIsSingleLine(t *testing.T) {
	toks := scripting.Scan("{a\nb}")
	require.Len(t, toks, 1)
	assert.Equal(t, scripting.TokenText, toks[0].Kind)
}

func TestScan_UnclosedFormsAreText(t *testing.T) {
	for _, in := range []string{"{{x", "<drac2>return 1", "<drac2></drac2>", "{"} {
		for _, tk := range scripting.Scan(in) {
			assert.NotEqual(t, scripting.TokenDoubleCurly, tk.Kind, in)
			assert.NotEqual(t, scripting.TokenDrac2, tk.Kind, in)
		}
	}
}

func TestScan_TokensStopsEarly(t *testing.T) {
	n := 0
	for range scripting.Tokens("a {{b}} c {{d}}") {
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
}

func TestProperty_ScanReassemblesInput(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		text := rapid.StringOfN(rapid.SampledFrom([]rune("ab {}<>/drac2:@1\n")), 0, 40, -1).Draw(t, "text")
		var b strings.Builder
		last := -1
		for _, tk := range scripting.Scan(text) {
			if tk.Pos <= last {
				t.Fatalf("tokens out of order at %d", tk.Pos)
			}
			last = tk.Pos
			b.WriteString(tk.Raw)
		}
		if b.String() != text {
			t.Fatalf("reassembled %q, want %q", b.String(), text)
		}
	})
}

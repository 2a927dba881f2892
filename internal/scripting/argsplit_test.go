package scripting_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/draconic/internal/scripting"
)

func TestArgSplit(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"  a   b ", []string{"a", "b"}},
		{`"a b" c`, []string{"a b", "c"}},
		{`'it is' it's`, []string{"it is", "it's"}},
		{`"say \"hi\""`, []string{`say "hi"`}},
		{"“smart quotes” x", []string{"smart quotes", "x"}},
		{`-t "goblin 1" adv`, []string{"-t", "goblin 1", "adv"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := scripting.ArgSplit(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestArgSplit_UnclosedQuote(t *testing.T) {
	_, err := scripting.ArgSplit(`a "b c`)
	assert.ErrorIs(t, err, scripting.ErrUnclosedQuote)
}

func TestJoinArgs(t *testing.T) {
	assert.Equal(t, `a "b c" "\"q"`, scripting.JoinArgs([]string{"a", "b c", `"q`}))
	assert.Equal(t, `""`, scripting.JoinArgs([]string{""}))
}

func TestProperty_JoinArgsRoundTrips(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		args := rapid.SliceOfN(
			rapid.StringOfN(rapid.SampledFrom([]rune(`ab "' 1`)), 0, 8, -1), 0, 6,
		).Draw(t, "args")
		got, err := scripting.ArgSplit(scripting.JoinArgs(args))
		if err != nil {
			t.Fatalf("split: %v", err)
		}
		if len(args) == 0 {
			args = nil
		}
		if len(got) != len(args) {
			t.Fatalf("got %q, want %q", got, args)
		}
		for i := range args {
			if got[i] != args[i] {
				t.Fatalf("arg %d: got %q, want %q", i, got[i], args[i])
			}
		}
	})
}

func TestApplyAliasArguments(t *testing.T) {
	tests := []struct {
		name string
		body string
		args string
		want string
	}{
		{"positional", "attack %1% -d %2%", "longsword 1d6", "attack longsword -d 1d6"},
		{"positional quoted", "cast %1%", `"magic missile" -l 3`, `cast "magic missile" -l 3`},
		{"escaped", `echo "&1&"`, `"say \"hi\""`, `echo "say \"hi\""`},
		{"all raw", "echo %*%", "a b", `echo "a b"`},
		{"all escaped", `echo "&*&"`, `it's`, `echo "it\'s"`},
		{"args list", "echo {{&ARGS&}}", `a "b c"`, "echo {{['a', 'b c']}}"},
		{"unused appended", "roll 1d20", "adv -b 2", "roll 1d20 adv -b 2"},
		{"no args", "roll 1d20", "", "roll 1d20"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := scripting.ApplyAliasArguments(tt.body, tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

package scripting_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cory-johannsen/draconic/internal/config"
	"github.com/cory-johannsen/draconic/internal/dice"
	"github.com/cory-johannsen/draconic/internal/observability"
	"github.com/cory-johannsen/draconic/internal/scripting"
	"github.com/cory-johannsen/draconic/internal/scripting/draconic"
	"github.com/cory-johannsen/draconic/internal/signature"
)

type expanderFixture struct {
	x       *scripting.Expander
	vars    *memVars
	chars   *memChars
	scripts *memScripts
	logs    *observer.ObservedLogs
	reader  *sdkmetric.ManualReader
}

func newExpanderFixture(t *testing.T, mutate func(cfg *config.ScriptingConfig)) *expanderFixture {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	met, err := observability.NewMetrics(mp)
	require.NoError(t, err)

	f := &expanderFixture{
		vars:  newMemVars(),
		chars: &memChars{c: newTestCharacter()},
		scripts: &memScripts{
			personalSnippets: map[string]string{},
			serverSnippets:   map[string]string{},
			personalAliases:  map[string]string{},
			serverAliases:    map[string]string{},
		},
		logs:   logs,
		reader: reader,
	}
	cfg := testScriptingConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	codec, err := signature.NewCodec([]byte("test-secret"))
	require.NoError(t, err)
	f.x = scripting.NewExpander(cfg, dice.NewLoggedRoller(maxSource{}, logger), logger,
		scripting.WithVariableStore(f.vars),
		scripting.WithSnippetStore(f.scripts),
		scripting.WithAliasStore(f.scripts),
		scripting.WithCodec(codec),
		scripting.WithMetrics(met),
		scripting.WithRandomSource(dice.NewSeededSource(7)),
	)
	return f
}

func (f *expanderFixture) invocation() scripting.Invocation {
	return scripting.Invocation{Context: testInvocation, Characters: f.chars}
}

func (f *expanderFixture) sum(t *testing.T, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, f.reader.Collect(context.Background(), &rm))
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "metric %s is not an int64 sum", name)
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

func TestExpand_Substitutions(t *testing.T) {
	f := newExpanderFixture(t, nil)
	f.vars.uvars["222"] = map[string]string{"bonus": "3"}
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text", "just words", "just words"},
		{"double curly", "Hello {{name}}, you rolled {{vroll('1d1').total}}!", "Hello Bob, you rolled 1!"},
		{"none removed", "a{{None}}b", "ab"},
		{"lookup hit", "wielding <weapon>", "wielding longsword"},
		{"lookup miss kept", "<nope> stays", "<nope> stays"},
		{"mention kept", "hi <@222>", "hi <@222>"},
		{"legacy roll", "{1d20+1}", "21"},
		{"legacy names", "{1d4+bonus}", "7"},
		{"sheet names", "{1d20+dexterityMod} <currenthp>/<hp>", "23 30/40"},
		{"legacy failure is zero", "{1d}", "0"},
		{"drac2 block", "<drac2>\n  x = 2\n  return x * 3\n</drac2>", "6"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.x.Expand(context.Background(), f.invocation(), tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Text)
		})
	}
}

func TestExpand_FlushesMutationsOnSuccess(t *testing.T) {
	f := newExpanderFixture(t, nil)
	res, err := f.x.Expand(context.Background(), f.invocation(),
		"{{set_uvar('a', 1)}}{{character().modify_hp(-5)}}")
	require.NoError(t, err)
	assert.Equal(t, "25/40", res.Text)
	assert.Equal(t, map[string]string{"a": "1"}, f.vars.uvars["222"])
	assert.Equal(t, 25, f.chars.c.HP)
	assert.Equal(t, 1, f.chars.saves)
	assert.Len(t, res.Mutations, 2)
	assert.Equal(t, int64(2), f.sum(t, "draconic.mutations.flushed"))
}

func TestExpand_NoFlushOnError(t *testing.T) {
	f := newExpanderFixture(t, nil)
	_, err := f.x.Expand(context.Background(), f.invocation(),
		"{{set_uvar('a', 1)}}{{character().modify_hp(-5)}}{{1/0}}")
	require.Error(t, err)
	assert.Empty(t, f.vars.uvars["222"])
	assert.Equal(t, 30, f.chars.c.HP)
	assert.Zero(t, f.chars.saves)
	assert.Equal(t, "runtime", scripting.ErrorKind(err))
	assert.Equal(t, int64(1), f.sum(t, "draconic.expansion.errors"))
}

func TestExpand_ErrorMessages(t *testing.T) {
	f := newExpanderFixture(t, nil)
	_, err := f.x.Expand(context.Background(), f.invocation(), "{{1/0}}")
	require.Error(t, err)

	var ee *scripting.EvaluationError
	require.ErrorAs(t, err, &ee)
	msg, private := scripting.UserMessage(err)
	assert.False(t, private)
	assert.Contains(t, msg, "`1/0`")
	assert.Contains(t, msg, draconic.ZeroDivisionError)
	assert.Contains(t, ee.AuthorDetail(2000), "   1 | 1/0")
	assert.LessOrEqual(t, len(ee.AuthorDetail(10)), 10)
}

func TestExpand_UserAbort(t *testing.T) {
	f := newExpanderFixture(t, nil)
	_, err := f.x.Expand(context.Background(), f.invocation(), "<drac2>err('nope', True)</drac2>")
	require.Error(t, err)
	msg, private := scripting.UserMessage(err)
	assert.Equal(t, "nope", msg)
	assert.True(t, private)
	assert.Equal(t, "user_abort", scripting.ErrorKind(err))
}

func TestExpand_Timeout(t *testing.T) {
	f := newExpanderFixture(t, func(cfg *config.ScriptingConfig) {
		cfg.Timeout = 20 * time.Millisecond
	})
	start := time.Now()
	_, err := f.x.Expand(context.Background(), f.invocation(), "<drac2>\nx = 0\nwhile True:\n    x += 1\n</drac2>")
	require.Error(t, err)
	assert.Equal(t, "limit", scripting.ErrorKind(err))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestExpand_LogsExpansion(t *testing.T) {
	f := newExpanderFixture(t, nil)
	_, err := f.x.Expand(context.Background(), f.invocation(), "{{roll('3d6')}}")
	require.NoError(t, err)

	entries := f.logs.FilterMessage("expansion").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	assert.Equal(t, int64(3), fields["rolls"])
	assert.Equal(t, "", fields["error_kind"])
	assert.Equal(t, int64(1), f.sum(t, "draconic.expansions"))
	assert.Equal(t, int64(3), f.sum(t, "draconic.dice.rolled"))
}

func TestExpandArgs_Snippets(t *testing.T) {
	f := newExpanderFixture(t, nil)
	f.scripts.personalSnippets["adv"] = `adv -b "{{1+1}}"`
	f.scripts.serverSnippets["adv"] = "dis"
	f.scripts.serverSnippets["sneak"] = "-d 3d6"

	res, err := f.x.ExpandArgs(context.Background(), f.invocation(), []string{"attack", "adv", "sneak", "-t {{name}}"})
	require.NoError(t, err)
	assert.Equal(t, []string{"attack", "adv", "-b", "2", "-d", "3d6", "-t Bob"}, res.Args)
	assert.Equal(t, `attack adv -b 2 -d 3d6 "-t Bob"`, res.Text)
}

func TestExpandArgs_SnippetOutputIsTransformedOnce(t *testing.T) {
	f := newExpanderFixture(t, nil)
	f.vars.uvars["222"] = map[string]string{"payload": "{{name}}"}
	f.scripts.personalSnippets["lit"] = `\{1d20}`
	f.scripts.personalSnippets["echo"] = "{{payload}}"

	res, err := f.x.ExpandArgs(context.Background(), f.invocation(), []string{"attack", "lit", "echo", "{1d20}"})
	require.NoError(t, err)
	assert.Equal(t, []string{"attack", "{1d20}", "{{name}}", "20"}, res.Args)
	assert.Equal(t, int64(1), f.sum(t, "draconic.dice.rolled"))
}

func TestExpandArgs_ServerSnippetsNeedGuild(t *testing.T) {
	f := newExpanderFixture(t, nil)
	f.scripts.serverSnippets["sneak"] = "-d 3d6"
	inv := f.invocation()
	inv.Context.GuildID = 0

	res, err := f.x.ExpandArgs(context.Background(), inv, []string{"sneak"})
	require.NoError(t, err)
	assert.Equal(t, []string{"sneak"}, res.Args)
}

func TestExpandArgs_SnippetScope(t *testing.T) {
	f := newExpanderFixture(t, nil)
	f.scripts.personalSnippets["sig"] = "{{verify_signature(signature())['scope']}}"
	res, err := f.x.ExpandArgs(context.Background(), f.invocation(), []string{"sig"})
	require.NoError(t, err)
	assert.Equal(t, []string{"PERSONAL_SNIPPET"}, res.Args)
}

func TestExpandAlias(t *testing.T) {
	f := newExpanderFixture(t, nil)
	f.scripts.personalAliases["hit"] = "{{ctx.alias}} %1% for {{%2% * 2}}"
	f.scripts.serverAliases["hit"] = "server"
	f.scripts.serverAliases["guild"] = "<drac2>return verify_signature(signature())['scope']</drac2>"

	res, err := f.x.ExpandAlias(context.Background(), f.invocation(), "hit", "goblin 4 extra")
	require.NoError(t, err)
	assert.Equal(t, "hit goblin for 8 extra", res.Text)

	res, err = f.x.ExpandAlias(context.Background(), f.invocation(), "guild", "")
	require.NoError(t, err)
	assert.Equal(t, "SERVER_ALIAS", res.Text)

	_, err = f.x.ExpandAlias(context.Background(), f.invocation(), "missing", "")
	assert.ErrorIs(t, err, scripting.ErrNoAlias)
}

func TestExpandAlias_RequiresStore(t *testing.T) {
	logger := zap.NewNop()
	x := scripting.NewExpander(testScriptingConfig(), dice.NewLoggedRoller(maxSource{}, logger), logger)
	_, err := x.ExpandAlias(context.Background(), scripting.Invocation{Context: testInvocation}, "hit", "")
	var capErr *scripting.CapabilityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, scripting.NotConfigured, capErr.Reason)
}

func TestExpand_ConcurrentInvocations(t *testing.T) {
	logger := zap.NewNop()
	x := scripting.NewExpander(testScriptingConfig(), dice.NewLoggedRoller(maxSource{}, logger), logger)
	done := make(chan string, 8)
	for range 8 {
		go func() {
			res, err := x.Expand(context.Background(), scripting.Invocation{Context: testInvocation}, "{{roll('2d6')}} {{ctx.author.name}}")
			if err != nil {
				done <- err.Error()
				return
			}
			done <- res.Text
		}()
	}
	for range 8 {
		assert.Equal(t, "12 bob", <-done)
	}
}

func TestExpand_WarningsReturned(t *testing.T) {
	f := newExpanderFixture(t, nil)
	res, err := f.x.Expand(context.Background(), f.invocation(), "{{set('x', 1)}}")
	require.NoError(t, err)
	require.NotEmpty(t, res.Warnings)
	assert.True(t, strings.Contains(strings.Join(res.Warnings, "\n"), "set"))
}

func TestExpand_TotalRollBudgetDiscardsMutations(t *testing.T) {
	f := newExpanderFixture(t, nil)
	_, err := f.x.Expand(context.Background(), f.invocation(), `<drac2>
set_uvar('a', 1)
character().modify_hp(-5)
for i in range(101):
    for j in range(100):
        roll('1d1')
return 'done'
</drac2>`)
	require.ErrorIs(t, err, dice.ErrTooManyRolls)
	assert.Equal(t, "limit", scripting.ErrorKind(err))
	assert.Empty(t, f.vars.uvars["222"])
	assert.Zero(t, f.vars.sets)
	assert.Equal(t, 30, f.chars.c.HP)
	assert.Zero(t, f.chars.saves)
	assert.Zero(t, f.sum(t, "draconic.mutations.flushed"))
}

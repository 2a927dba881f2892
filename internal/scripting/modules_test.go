package scripting_test

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/draconic/internal/dice"
	"github.com/cory-johannsen/draconic/internal/scripting"
	"github.com/cory-johannsen/draconic/internal/scripting/draconic"
	"github.com/cory-johannsen/draconic/internal/signature"
)

func evalOK(t *testing.T, ev *scripting.Evaluator, src string) draconic.Value {
	t.Helper()
	v, err := ev.Evaluate(context.Background(), src)
	require.NoError(t, err, src)
	return v
}

func execOK(t *testing.T, ev *scripting.Evaluator, src string) string {
	t.Helper()
	out, err := ev.Execute(context.Background(), src)
	require.NoError(t, err, src)
	return out
}

func TestRoll_ReturnsTotal(t *testing.T) {
	ev, logs := newTestEvaluator(nil, nil, scripting.Options{})
	assert.Equal(t, int64(12), evalOK(t, ev, "roll('2d6')"))
	assert.Equal(t, 2, ev.RollContext().TotalRolls())
	assert.NotEmpty(t, logs.FilterMessage("dice roll").All())
}

func TestVroll_Attributes(t *testing.T) {
	ev, _ := newTestEvaluator(nil, nil, scripting.Options{})
	assert.Equal(t, int64(21), evalOK(t, ev, "vroll('1d20+1').total"))
	assert.Equal(t, "1d20 (**20**) + 1", evalOK(t, ev, "vroll('1d20+1').dice"))
	assert.Equal(t, "1d20 (**20**) + 1 = `21`", evalOK(t, ev, "vroll('1d20+1').full"))
	assert.Equal(t, "1d4 (**4**) = `4`", evalOK(t, ev, "str(vroll('1d4'))"))
	assert.Equal(t, "1d20 + 1", evalOK(t, ev, "vroll('1d20 + 1').raw"))
	assert.Equal(t, int64(1), evalOK(t, ev, "vroll('1d20').crit"))
	assert.Contains(t, evalOK(t, ev, "vroll('1d6 + 1d6').consolidated()"), "= `12`")
}

func TestVroll_Scaling(t *testing.T) {
	ev, _ := newTestEvaluator(nil, nil, scripting.Options{})
	assert.Equal(t, "5d6", evalOK(t, ev, "vroll('2d6', 2, 1).raw"))
	assert.Equal(t, int64(30), evalOK(t, ev, "vroll('2d6', multiply=2, add=1).total"))
	assert.Equal(t, "1d6", evalOK(t, ev, "vroll('2d6', 0).raw"))
}

func TestRoll_BadDiceIsCatchable(t *testing.T) {
	ev, _ := newTestEvaluator(nil, nil, scripting.Options{})
	out := execOK(t, ev, "try:\n    roll('1d')\nexcept ValueError:\n    return 'bad'")
	assert.Equal(t, "bad", out)

	_, err := ev.Evaluate(context.Background(), "roll('1d')")
	var dsyn *dice.SyntaxError
	assert.ErrorAs(t, err, &dsyn)
	assert.Equal(t, "syntax", scripting.ErrorKind(err))
}

func TestRoll_OversizedGroupIsCatchable(t *testing.T) {
	ev, _ := newTestEvaluator(nil, nil, scripting.Options{})
	out := execOK(t, ev, "try:\n    roll('1001d6')\nexcept ValueError:\n    return 'too big'")
	assert.Equal(t, "too big", out)
	assert.Zero(t, ev.RollContext().TotalRolls())
}

func TestRoll_BudgetIsSharedAndNotCatchable(t *testing.T) {
	ev, _ := newTestEvaluator(nil, nil, scripting.Options{MaxRolls: 100, MaxTotalRolls: 150})
	evalOK(t, ev, "roll('100d6')")
	out := execOK(t, ev, "return vroll('50d6').total")
	assert.Equal(t, "300", out)

	_, err := ev.Execute(context.Background(), "try:\n    roll('1d6')\nexcept:\n    return 'caught'")
	require.Error(t, err)
	assert.ErrorIs(t, err, dice.ErrTooManyRolls)
	assert.Equal(t, "limit", scripting.ErrorKind(err))
}

func TestRoll_TenThousandAndOneCallsExceedTotalBudget(t *testing.T) {
	ev, _ := newTestEvaluator(nil, nil, scripting.Options{})
	_, err := ev.Execute(context.Background(), "for i in range(101):\n    for j in range(100):\n        roll('1d4')")
	assert.ErrorIs(t, err, dice.ErrTooManyRolls)
	assert.Equal(t, dice.DefaultMaxTotalRolls+1, ev.RollContext().TotalRolls())
}

func TestExistsAndGet(t *testing.T) {
	vars := newMemVars()
	vars.uvars["222"] = map[string]string{"color": "red"}
	ev, _ := newTestEvaluator(nil, vars, scripting.Options{})
	assert.Equal(t, true, evalOK(t, ev, "exists('color')"))
	assert.Equal(t, false, evalOK(t, ev, "exists('nope')"))
	assert.Equal(t, "red", evalOK(t, ev, "get('color')"))
	assert.Equal(t, "dflt", evalOK(t, ev, "get('nope', 'dflt')"))
	assert.Nil(t, evalOK(t, ev, "get('nope')"))
	evalOK(t, ev, "local = 4")
	assert.Equal(t, int64(4), evalOK(t, ev, "get('local')"))
}

func TestSetBuiltinNameFails(t *testing.T) {
	ev, _ := newTestEvaluator(nil, nil, scripting.Options{})
	_, err := ev.Evaluate(context.Background(), "set('roll', 5)")
	require.ErrorIs(t, err, draconic.ErrReservedName)
	assert.Equal(t, int64(12), evalOK(t, ev, "roll('2d6')"), "roll still resolves to the builtin")
	assert.NotEmpty(t, ev.Warnings())
}

func TestUvarBuiltins(t *testing.T) {
	vars := newMemVars()
	vars.uvars["222"] = map[string]string{"keep": "1"}
	ev, _ := newTestEvaluator(nil, vars, scripting.Options{})

	out := execOK(t, ev, `
set_uvar("a", 5)
set_uvar_nx("a", 6)
set_uvar_nx("b", "x")
delete_uvar("keep")
return [get_uvar("a"), get_uvar("b"), uvar_exists("keep"), get_uvar("keep", "gone"), get_uvars()]
`)
	assert.Equal(t, `['5', 'x', False, 'gone', {'a': '5', 'b': 'x'}]`, out)
	assert.Equal(t, map[string]string{"keep": "1"}, vars.uvars["222"], "nothing persisted before flush")

	n, err := ev.Environment().Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, map[string]string{"a": "5", "b": "x"}, vars.uvars["222"])
}

func TestSvarAndGvar(t *testing.T) {
	vars := newMemVars()
	vars.svars["333"] = map[string]string{"dc": "15"}
	vars.gvars["abc-123"] = "global body"
	ev, _ := newTestEvaluator(nil, vars, scripting.Options{})
	assert.Equal(t, "15", evalOK(t, ev, "get_svar('dc')"))
	assert.Equal(t, "x", evalOK(t, ev, "get_svar('nope', 'x')"))
	assert.Equal(t, "global body", evalOK(t, ev, "get_gvar('abc-123')"))
	assert.Nil(t, evalOK(t, ev, "get_gvar('missing')"))
}

func TestCharacter_RequiresCharacter(t *testing.T) {
	ev, _ := newTestEvaluator(&memChars{}, nil, scripting.Options{})
	_, err := ev.Evaluate(context.Background(), "character().name")
	var capErr *scripting.CapabilityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, scripting.FunctionRequiresCharacter, capErr.Reason)
	assert.Equal(t, "character", capErr.Function)

	_, err = ev.Execute(context.Background(), "try:\n    set_cvar('a', 1)\nexcept:\n    pass")
	assert.ErrorAs(t, err, &capErr, "capability errors are not catchable")
}

func TestCharacter_Attributes(t *testing.T) {
	chars := &memChars{c: newTestCharacter()}
	ev, _ := newTestEvaluator(chars, nil, scripting.Options{})
	assert.Equal(t, "Bob", evalOK(t, ev, "character().name"))
	assert.Equal(t, int64(30), evalOK(t, ev, "character().hp"))
	assert.Equal(t, int64(40), evalOK(t, ev, "character().max_hp"))
	assert.Equal(t, int64(16), evalOK(t, ev, "character().stats['dexterity']"))
	assert.Equal(t, int64(3), evalOK(t, ev, "character().stats['prof_bonus']"))
	assert.Equal(t, "longsword", evalOK(t, ev, "character().cvars['weapon']"))
	assert.Equal(t, "longsword", evalOK(t, ev, "weapon"), "cvars resolve as names")
	assert.Equal(t, true, evalOK(t, ev, "character().cc_exists('ki')"))
	assert.Equal(t, "3/5", evalOK(t, ev, "character().cc_str('Ki')"))
	assert.Equal(t, int64(5), evalOK(t, ev, "character().get_cc_max('Ki')"))
	assert.Equal(t, "◉◉〇〇", evalOK(t, ev, "character().slots_str(1)"))

	_, err := ev.Evaluate(context.Background(), "character().nope")
	var rt *draconic.RuntimeError
	require.ErrorAs(t, err, &rt)
	assert.Equal(t, draconic.AttributeError, rt.Kind)
}

func TestCharacter_MutationsFlushOnce(t *testing.T) {
	chars := &memChars{c: newTestCharacter()}
	ev, _ := newTestEvaluator(chars, nil, scripting.Options{})
	out := execOK(t, ev, `
ch = character()
ch.mod_cc("Ki", -2)
ch.set_cc("Ki", 99)
ch.modify_hp(-5)
ch.set_temp_hp(4)
ch.use_slot(1)
ch.set_cvar("mood", "grim")
set_cvar_nx("mood", "happy")
return [ch.get_cc("Ki"), ch.hp, ch.temp_hp, ch.get_slots(1), mood]
`)
	assert.Equal(t, `[5, 25, 4, 1, 'grim']`, out)
	assert.Equal(t, 30, chars.c.HP, "stored character untouched before flush")

	_, err := ev.Execute(context.Background(), "character().set_cc('Ki', 99, True)")
	var rt *draconic.RuntimeError
	require.ErrorAs(t, err, &rt)
	assert.Equal(t, draconic.ValueError, rt.Kind)

	_, err = ev.Environment().Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, chars.saves)
	assert.Equal(t, 25, chars.c.HP)
	assert.Equal(t, "grim", chars.c.CVars["mood"])
	ki, _ := chars.c.Counter("Ki")
	assert.Equal(t, 5, ki.Value)
}

func TestCombat(t *testing.T) {
	ev, _ := newTestEvaluator(nil, nil, scripting.Options{})
	assert.Nil(t, evalOK(t, ev, "combat()"))

	env := scripting.NewEnvironment(testInvocation, scripting.WithCombat(staticCombat{&scripting.CombatState{
		Round: 2, Turn: 14, Combatants: []string{"Bob", "Goblin"}, Current: "Goblin",
	}}))
	ev = scripting.NewEvaluator(env, dice.NewLoggedRoller(maxSource{}, zap.NewNop()), zap.NewNop(), scripting.Options{})
	assert.Equal(t, int64(2), evalOK(t, ev, "combat().round_num"))
	assert.Equal(t, "Goblin", evalOK(t, ev, "combat().current"))
	assert.Equal(t, "Bob", evalOK(t, ev, "combat().get_combatant('bob')"))
	assert.Equal(t, int64(2), evalOK(t, ev, "len(combat().combatants)"))
}

func TestCtx(t *testing.T) {
	ev, _ := newTestEvaluator(nil, nil, scripting.Options{})
	assert.Equal(t, int64(222), evalOK(t, ev, "ctx.author.id"))
	assert.Equal(t, "bob", evalOK(t, ev, "ctx.author.name"))
	assert.Equal(t, int64(333), evalOK(t, ev, "ctx.guild.id"))
	assert.Equal(t, "!", evalOK(t, ev, "ctx.prefix"))
	assert.Equal(t, "test", evalOK(t, ev, "ctx.alias"))
	_, err := ev.Evaluate(context.Background(), "ctx = 1")
	assert.ErrorIs(t, err, draconic.ErrReservedName)
}

func TestSignature_RoundTrip(t *testing.T) {
	codec, err := signature.NewCodec([]byte("secret"))
	require.NoError(t, err)
	ev, _ := newTestEvaluator(nil, nil, scripting.Options{Codec: codec})
	out := execOK(t, ev, `
v = verify_signature(signature(7))
return [v["author_id"], v["channel_id"], v["user_data"], v["scope"], v["workshop_collection_id"]]
`)
	assert.Equal(t, "[222, 111, 7, 'UNKNOWN', None]", out)

	out = execOK(t, ev, "try:\n    verify_signature('garbage')\nexcept ValueError:\n    return 'invalid'")
	assert.Equal(t, "invalid", out)

	_, err = ev.Evaluate(context.Background(), "signature(32)")
	var rt *draconic.RuntimeError
	require.ErrorAs(t, err, &rt)
	assert.True(t, errors.Is(err, signature.ErrPayloadRange))
}

func TestSignature_NotConfigured(t *testing.T) {
	ev, _ := newTestEvaluator(nil, nil, scripting.Options{})
	_, err := ev.Evaluate(context.Background(), "signature()")
	var capErr *scripting.CapabilityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, scripting.NotConfigured, capErr.Reason)
}

func TestProperty_RollTotalsMatchMaxFaces(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 20).Draw(t, "n")
		size := rapid.IntRange(1, 100).Draw(t, "size")
		ev, _ := newTestEvaluator(nil, nil, scripting.Options{})
		v, err := ev.Evaluate(context.Background(), "roll('"+strconv.Itoa(n)+"d"+strconv.Itoa(size)+"')")
		if err != nil {
			t.Fatal(err)
		}
		if v != int64(n*size) {
			t.Fatalf("roll(%dd%d) = %v, want %d", n, size, v, n*size)
		}
	})
}

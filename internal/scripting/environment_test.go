package scripting_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/cory-johannsen/draconic/internal/character"
	"github.com/cory-johannsen/draconic/internal/scripting"
	"github.com/cory-johannsen/draconic/internal/scripting/draconic"
	scriptingmock "github.com/cory-johannsen/draconic/internal/scripting/mock"
)

var testInvocation = scripting.InvocationContext{
	MessageID:  1234567890123456789,
	ChannelID:  111,
	AuthorID:   222,
	AuthorName: "bob",
	GuildID:    333,
	Prefix:     "!",
	Alias:      "test",
}

func newTestCharacter() *character.Character {
	maxKi := 5
	minKi := 0
	return &character.Character{
		ID:      "c1",
		OwnerID: "222",
		Name:    "Bob",
		Level:   5,
		HP:      30,
		MaxHP:   40,
		AC:      15,
		Abilities: character.Abilities{
			Strength: 10, Dexterity: 16, Constitution: 14,
			Intelligence: 8, Wisdom: 12, Charisma: 10, ProfBonus: 3,
		},
		Counters: []character.Counter{{Name: "Ki", Value: 3, Min: &minKi, Max: &maxKi}},
		Slots:    map[int]character.SpellSlots{1: {Max: 4, Current: 2}},
		CVars:    map[string]string{"weapon": "longsword"},
	}
}

func TestMutationSet_FlushOnce(t *testing.T) {
	var s scripting.MutationSet
	s.Add(scripting.Mutation{Kind: scripting.MutationSetUvar, Key: "a", Value: "1"})
	s.Add(scripting.Mutation{Kind: scripting.MutationDeleteUvar, Key: "b"})
	assert.False(t, s.HasCharacterChanges())

	var applied []string
	n, err := s.Flush(context.Background(), func(_ context.Context, m scripting.Mutation) error {
		applied = append(applied, m.Kind.String()+":"+m.Key)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"set_uvar:a", "delete_uvar:b"}, applied)

	_, err = s.Flush(context.Background(), func(context.Context, scripting.Mutation) error {
		t.Fatal("apply called on second flush")
		return nil
	})
	assert.ErrorIs(t, err, scripting.ErrAlreadyFlushed)

	s.Add(scripting.Mutation{Kind: scripting.MutationCharacter})
	assert.Equal(t, 2, s.Len(), "closed set ignores new mutations")
}

func TestMutationSet_FlushStopsAtFirstError(t *testing.T) {
	var s scripting.MutationSet
	for _, k := range []string{"a", "b", "c"} {
		s.Add(scripting.Mutation{Kind: scripting.MutationSetUvar, Key: k})
	}
	boom := errors.New("boom")
	n, err := s.Flush(context.Background(), func(_ context.Context, m scripting.Mutation) error {
		if m.Key == "b" {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, n)
}

func TestMutationSet_Discard(t *testing.T) {
	var s scripting.MutationSet
	s.Add(scripting.Mutation{Kind: scripting.MutationCharacter, Op: "set_hp"})
	assert.True(t, s.HasCharacterChanges())
	s.Discard()
	assert.Zero(t, s.Len())
	_, err := s.Flush(context.Background(), func(context.Context, scripting.Mutation) error { return nil })
	assert.ErrorIs(t, err, scripting.ErrAlreadyFlushed)
}

func TestEnvironment_ResolveOrder(t *testing.T) {
	ctrl := gomock.NewController(t)
	vars := scriptingmock.NewMockVariableStore(ctrl)
	chars := scriptingmock.NewMockCharacterProvider(ctrl)
	chars.EXPECT().Character(gomock.Any()).Return(newTestCharacter(), nil).Times(1)
	vars.EXPECT().Uvars(gomock.Any(), "222").
		Return(map[string]string{"weapon": "dagger", "color": "red"}, nil).Times(1)

	env := scripting.NewEnvironment(testInvocation, scripting.WithCharacters(chars), scripting.WithVariables(vars))
	ctx := context.Background()

	v, ok, err := env.Resolve(ctx, "weapon")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "longsword", v, "cvars shadow uvars")

	v, ok, err = env.Resolve(ctx, "color")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "red", v)

	_, ok, err = env.Resolve(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEnvironment_NoCharacterFallsThroughToUvars(t *testing.T) {
	ctrl := gomock.NewController(t)
	vars := scriptingmock.NewMockVariableStore(ctrl)
	vars.EXPECT().Uvars(gomock.Any(), "222").Return(map[string]string{"x": "1"}, nil)

	env := scripting.NewEnvironment(testInvocation, scripting.WithVariables(vars))
	v, ok, err := env.Resolve(context.Background(), "x")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1", v)

	_, err = env.Character(context.Background())
	assert.ErrorIs(t, err, scripting.ErrNoCharacter)
}

func TestEnvironment_CharacterIsWorkingCopy(t *testing.T) {
	ctrl := gomock.NewController(t)
	stored := newTestCharacter()
	chars := scriptingmock.NewMockCharacterProvider(ctrl)
	chars.EXPECT().Character(gomock.Any()).Return(stored, nil)

	env := scripting.NewEnvironment(testInvocation, scripting.WithCharacters(chars))
	c, err := env.Character(context.Background())
	require.NoError(t, err)
	c.SetHP(1)
	assert.Equal(t, 30, stored.HP)
}

func TestEnvironment_UvarWritesFlushInOrder(t *testing.T) {
	ctrl := gomock.NewController(t)
	vars := scriptingmock.NewMockVariableStore(ctrl)
	vars.EXPECT().Uvars(gomock.Any(), "222").Return(map[string]string{}, nil)
	gomock.InOrder(
		vars.EXPECT().SetUvar(gomock.Any(), "222", "a", "1").Return(nil),
		vars.EXPECT().DeleteUvar(gomock.Any(), "222", "a").Return(nil),
		vars.EXPECT().SetUvar(gomock.Any(), "222", "b", "2").Return(nil),
	)

	env := scripting.NewEnvironment(testInvocation, scripting.WithVariables(vars))
	ctx := context.Background()
	require.NoError(t, env.SetUvar(ctx, "a", "1"))
	require.NoError(t, env.DeleteUvar(ctx, "a"))
	require.NoError(t, env.SetUvar(ctx, "b", "2"))

	uvars, err := env.Uvars(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"b": "2"}, uvars)

	n, err := env.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	_, err = env.Flush(ctx)
	assert.ErrorIs(t, err, scripting.ErrAlreadyFlushed)
}

func TestEnvironment_CharacterSavedOnceOnFlush(t *testing.T) {
	ctrl := gomock.NewController(t)
	chars := scriptingmock.NewMockCharacterProvider(ctrl)
	chars.EXPECT().Character(gomock.Any()).Return(newTestCharacter(), nil)
	chars.EXPECT().Save(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, c *character.Character) error {
			assert.Equal(t, "2", c.CVars["a"])
			assert.Equal(t, "x", c.CVars["b"])
			return nil
		}).Times(1)

	env := scripting.NewEnvironment(testInvocation, scripting.WithCharacters(chars))
	ctx := context.Background()
	require.NoError(t, env.SetCvar(ctx, "set_cvar", "a", "1"))
	require.NoError(t, env.SetCvar(ctx, "set_cvar", "a", "2"))
	require.NoError(t, env.SetCvar(ctx, "set_cvar", "b", "x"))

	_, err := env.Flush(ctx)
	require.NoError(t, err)
}

func TestEnvironment_DiscardWritesNothing(t *testing.T) {
	ctrl := gomock.NewController(t)
	vars := scriptingmock.NewMockVariableStore(ctrl)
	vars.EXPECT().Uvars(gomock.Any(), gomock.Any()).Return(nil, nil)

	env := scripting.NewEnvironment(testInvocation, scripting.WithVariables(vars))
	require.NoError(t, env.SetUvar(context.Background(), "a", "1"))
	env.Discard()
	_, err := env.Flush(context.Background())
	assert.ErrorIs(t, err, scripting.ErrAlreadyFlushed)
}

func TestEnvironment_VariableValidation(t *testing.T) {
	ctrl := gomock.NewController(t)
	vars := scriptingmock.NewMockVariableStore(ctrl)
	vars.EXPECT().Uvars(gomock.Any(), gomock.Any()).Return(nil, nil).AnyTimes()
	limits := scripting.DefaultVarLimits()
	limits.Uvar = 5

	env := scripting.NewEnvironment(testInvocation, scripting.WithVariables(vars), scripting.WithVarLimits(limits))
	ctx := context.Background()

	err := env.SetUvar(ctx, "1bad", "x")
	var rt *draconic.RuntimeError
	require.ErrorAs(t, err, &rt)
	assert.Equal(t, draconic.ValueError, rt.Kind)

	err = env.SetUvar(ctx, "ok", strings.Repeat("x", 6))
	assert.ErrorIs(t, err, &draconic.LimitError{Kind: draconic.TooLong})

	require.NoError(t, env.SetUvar(ctx, "ok", strings.Repeat("x", 5)))
	assert.Equal(t, 1, env.Mutations().Len())
}

func TestEnvironment_WithoutStores(t *testing.T) {
	env := scripting.NewEnvironment(testInvocation)
	ctx := context.Background()

	var capErr *scripting.CapabilityError
	require.ErrorAs(t, env.SetUvar(ctx, "a", "1"), &capErr)
	assert.Equal(t, scripting.NotConfigured, capErr.Reason)

	require.ErrorAs(t, env.SetCvar(ctx, "set_cvar", "a", "1"), &capErr)
	assert.Equal(t, scripting.FunctionRequiresCharacter, capErr.Reason)

	_, ok, err := env.Svar(ctx, "x")
	require.NoError(t, err)
	assert.False(t, ok)

	combat, err := env.Combat(ctx)
	require.NoError(t, err)
	assert.Nil(t, combat)
}

func TestEnvironment_SvarOutsideGuild(t *testing.T) {
	ctrl := gomock.NewController(t)
	vars := scriptingmock.NewMockVariableStore(ctrl)
	inv := testInvocation
	inv.GuildID = 0

	env := scripting.NewEnvironment(inv, scripting.WithVariables(vars))
	_, ok, err := env.Svar(context.Background(), "x")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEnvironment_GvarCachedPerInvocation(t *testing.T) {
	ctrl := gomock.NewController(t)
	vars := scriptingmock.NewMockVariableStore(ctrl)
	vars.EXPECT().Gvar(gomock.Any(), "abc").Return("body", true, nil).Times(1)
	vars.EXPECT().Gvar(gomock.Any(), "nope").Return("", false, nil).Times(1)

	env := scripting.NewEnvironment(testInvocation, scripting.WithVariables(vars))
	ctx := context.Background()
	for range 3 {
		v, ok, err := env.Gvar(ctx, "abc")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "body", v)
		_, ok, err = env.Gvar(ctx, "nope")
		require.NoError(t, err)
		assert.False(t, ok)
	}
}

func TestFromDiscordMessage(t *testing.T) {
	m := &discordgo.Message{
		ID:        "1234567890123456789",
		ChannelID: "111",
		GuildID:   "333",
		Author:    &discordgo.User{ID: "222", Username: "bob"},
	}
	inv, err := scripting.FromDiscordMessage(m, "!", "attack")
	require.NoError(t, err)
	assert.Equal(t, uint64(1234567890123456789), inv.MessageID)
	assert.Equal(t, uint64(111), inv.ChannelID)
	assert.Equal(t, uint64(222), inv.AuthorID)
	assert.Equal(t, uint64(333), inv.GuildID)
	assert.Equal(t, "bob", inv.AuthorName)
	assert.Equal(t, "222", inv.UserKey())
	assert.Equal(t, "333", inv.GuildKey())

	m.GuildID = ""
	inv, err = scripting.FromDiscordMessage(m, "!", "attack")
	require.NoError(t, err)
	assert.Zero(t, inv.GuildID)
	assert.Empty(t, inv.GuildKey())

	m.ChannelID = "general"
	_, err = scripting.FromDiscordMessage(m, "!", "attack")
	assert.ErrorContains(t, err, "channel id")

	_, err = scripting.FromDiscordMessage(&discordgo.Message{}, "!", "x")
	assert.Error(t, err)
}

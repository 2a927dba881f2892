package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cory-johannsen/draconic/internal/character"
	"github.com/cory-johannsen/draconic/internal/config"
	"github.com/cory-johannsen/draconic/internal/dice"
	"github.com/cory-johannsen/draconic/internal/scripting"
	"github.com/cory-johannsen/draconic/internal/storage/redis"
	"github.com/cory-johannsen/draconic/internal/testutil"
)

func testCharacter() *character.Character {
	maxKi := 5
	return &character.Character{
		ID:       "c1",
		OwnerID:  "222",
		Name:     "Bob",
		Level:    5,
		HP:       30,
		MaxHP:    40,
		Counters: []character.Counter{{Name: "Ki", Value: 3, Max: &maxKi}},
		Slots:    map[int]character.SpellSlots{1: {Max: 4, Current: 2}},
		CVars:    map[string]string{"weapon": "longsword"},
	}
}

func TestStore_PutGet(t *testing.T) {
	client, mr := testutil.NewRedis(t)
	store := redis.NewStore(client, "test")
	ctx := context.Background()

	c := testCharacter()
	require.NoError(t, store.Put(ctx, c))
	assert.True(t, mr.Exists("test:character:c1"))

	got, err := store.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, c, got)

	ids, err := store.List(ctx, "222")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, ids)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, redis.ErrCharacterNotFound)
}

func TestStore_PutRejectsInvalid(t *testing.T) {
	client, _ := testutil.NewRedis(t)
	store := redis.NewStore(client, "test")
	c := testCharacter()
	c.MaxHP = 0
	assert.Error(t, store.Put(context.Background(), c))
}

func TestStore_ActiveCharacter(t *testing.T) {
	client, _ := testutil.NewRedis(t)
	store := redis.NewStore(client, "test")
	ctx := context.Background()

	_, err := store.Characters("222").Character(ctx)
	assert.ErrorIs(t, err, scripting.ErrNoCharacter)
	assert.ErrorIs(t, store.SetActive(ctx, "222", "c1"), redis.ErrCharacterNotFound)

	require.NoError(t, store.Put(ctx, testCharacter()))
	require.NoError(t, store.SetActive(ctx, "222", "c1"))

	c, err := store.Characters("222").Character(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Bob", c.Name)
}

func TestStore_Combat(t *testing.T) {
	client, _ := testutil.NewRedis(t)
	store := redis.NewStore(client, "test")
	ctx := context.Background()

	state, err := store.Combat("111").Combat(ctx)
	require.NoError(t, err)
	assert.Nil(t, state)

	want := &scripting.CombatState{Round: 2, Turn: 1, Combatants: []string{"Bob", "Goblin"}, Current: "Goblin"}
	require.NoError(t, store.PutCombat(ctx, "111", want))
	state, err = store.Combat("111").Combat(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, state)

	require.NoError(t, store.PutCombat(ctx, "111", nil))
	state, err = store.Combat("111").Combat(ctx)
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestStore_ExpansionPersistsCharacter(t *testing.T) {
	client, _ := testutil.NewRedis(t)
	store := redis.NewStore(client, "test")
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, testCharacter()))
	require.NoError(t, store.SetActive(ctx, "222", "c1"))

	logger := zap.NewNop()
	x := scripting.NewExpander(config.ScriptingConfig{Timeout: 5 * time.Second},
		dice.NewLoggedRoller(dice.NewSeededSource(1), logger), logger)
	inv := scripting.Invocation{
		Context:    scripting.InvocationContext{AuthorID: 222, ChannelID: 111},
		Characters: store.Characters("222"),
		Combat:     store.Combat("111"),
	}
	res, err := x.Expand(ctx, inv, "<drac2>\nch = character()\nch.mod_cc('Ki', -1)\nch.modify_hp(-10)\nreturn ch.hp_str()\n</drac2>")
	require.NoError(t, err)
	assert.Equal(t, "20/40", res.Text)

	c, err := store.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 20, c.HP)
	assert.Equal(t, 2, c.Counters[0].Value)
}

package character_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/draconic/internal/character"
)

const fixture = `
id: char-1
owner_id: "1001"
name: Bob
level: 5
hp: 30
max_hp: 38
temp_hp: 0
ac: 16
abilities:
  strength: 16
  dexterity: 12
  constitution: 14
  intelligence: 8
  wisdom: 10
  charisma: 13
  prof_bonus: 3
counters:
  - name: Ki Points
    value: 5
    min: 0
    max: 5
    reset: short
spell_slots:
  1: {max: 4, current: 4}
  2: {max: 2, current: 1}
cvars:
  weapon: longsword
`

func loadFixture(t testing.TB) *character.Character {
	t.Helper()
	c, err := character.LoadFromBytes([]byte(fixture))
	require.NoError(t, err)
	return c
}

func TestLoadFromBytes(t *testing.T) {
	c := loadFixture(t)
	assert.Equal(t, "Bob", c.Name)
	assert.Equal(t, 16, c.Abilities.Strength)
	assert.Equal(t, "longsword", c.CVars["weapon"])
	assert.Equal(t, []int{1, 2}, c.SlotLevels())
	cc, ok := c.Counter("ki points")
	require.True(t, ok)
	assert.Equal(t, 5, cc.Value)
}

func TestLoadFromBytes_Invalid(t *testing.T) {
	for name, doc := range map[string]string{
		"no id":          "name: x\nlevel: 1\nmax_hp: 1",
		"no name":        "id: a\nlevel: 1\nmax_hp: 1",
		"zero level":     "id: a\nname: x\nlevel: 0\nmax_hp: 1",
		"counter bounds": "id: a\nname: x\nlevel: 1\nmax_hp: 1\ncounters: [{name: c, value: 9, max: 3}]",
		"bad slots":      "id: a\nname: x\nlevel: 1\nmax_hp: 1\nspell_slots: {1: {max: 1, current: 2}}",
		"not yaml":       "{",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := character.LoadFromBytes([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bob.yaml"), []byte(fixture), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644))
	chars, err := character.LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, chars, 1)
	assert.Equal(t, "char-1", chars[0].ID)
}

func TestClone_IsDeep(t *testing.T) {
	c := loadFixture(t)
	cp := c.Clone()
	cp.SetCVar("weapon", "axe")
	_, err := cp.SetCounter("Ki Points", 1, true)
	require.NoError(t, err)
	require.NoError(t, cp.UseSlot(1))
	*cp.Counters[0].Max = 99

	assert.Equal(t, "longsword", c.CVars["weapon"])
	assert.Equal(t, 5, c.Counters[0].Value)
	assert.Equal(t, 5, *c.Counters[0].Max)
	assert.Equal(t, 4, c.Slots[1].Current)
}

func TestCounters(t *testing.T) {
	c := loadFixture(t)
	_, err := c.SetCounter("Ki Points", 6, true)
	assert.ErrorIs(t, err, character.ErrCounterBounds)
	v, err := c.SetCounter("Ki Points", 6, false)
	require.NoError(t, err)
	assert.Equal(t, 5, v)
	v, err = c.SetCounter("Ki Points", -3, false)
	require.NoError(t, err)
	assert.Equal(t, 0, v)
	_, err = c.SetCounter("Rage", 1, false)
	assert.ErrorIs(t, err, character.ErrNoCounter)
}

func TestHitPoints(t *testing.T) {
	c := loadFixture(t)
	c.SetTempHP(5)
	c.ModifyHP(-8, false)
	assert.Equal(t, 0, c.TempHP)
	assert.Equal(t, 27, c.HP)
	c.ModifyHP(100, false)
	assert.Equal(t, 38, c.HP)
	c.ModifyHP(2, true)
	assert.Equal(t, 40, c.HP)
	c.ModifyHP(-100, false)
	assert.Equal(t, 0, c.HP)
}

func TestSlots(t *testing.T) {
	c := loadFixture(t)
	require.NoError(t, c.UseSlot(2))
	assert.ErrorIs(t, c.UseSlot(2), character.ErrNoSlots)
	assert.ErrorIs(t, c.UseSlot(3), character.ErrNoSlots)
	assert.Error(t, c.SetSlots(1, 5))
	require.NoError(t, c.SetSlots(1, 2))
	assert.Equal(t, 2, c.Slots[1].Current)
}

func TestMod(t *testing.T) {
	assert.Equal(t, 3, character.Mod(16))
	assert.Equal(t, 0, character.Mod(10))
	assert.Equal(t, -1, character.Mod(9))
	assert.Equal(t, -1, character.Mod(8))
	assert.Equal(t, -5, character.Mod(1))
}

func TestProperty_HPNeverNegative(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		c := &character.Character{ID: "x", Name: "x", Level: 1, MaxHP: rapid.IntRange(1, 200).Draw(rt, "max")}
		c.SetHP(rapid.IntRange(0, 200).Draw(rt, "hp"))
		c.SetTempHP(rapid.IntRange(0, 50).Draw(rt, "temp"))
		for _, d := range rapid.SliceOf(rapid.IntRange(-300, 300)).Draw(rt, "deltas") {
			c.ModifyHP(d, false)
			if c.HP < 0 || c.TempHP < 0 {
				rt.Fatalf("negative hp %d / temp %d", c.HP, c.TempHP)
			}
			if d > 0 && c.HP > c.MaxHP && c.HP > 200 {
				rt.Fatalf("healing overflowed: %d > %d", c.HP, c.MaxHP)
			}
		}
	})
}

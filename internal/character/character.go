// Package character provides the character sheet model that scripts read and
// mutate, and the YAML loader used for fixtures and imports.
package character

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	// ErrNoCounter is returned when a named custom counter does not exist.
	ErrNoCounter = errors.New("character: no such counter")
	// ErrCounterBounds is returned when a counter value falls outside its limits.
	ErrCounterBounds = errors.New("character: counter value out of bounds")
	// ErrNoSlots is returned for a spell slot level the character lacks or has used up.
	ErrNoSlots = errors.New("character: no spell slots remaining")
)

// Abilities holds the six ability scores.
type Abilities struct {
	Strength     int `yaml:"strength" json:"strength"`
	Dexterity    int `yaml:"dexterity" json:"dexterity"`
	Constitution int `yaml:"constitution" json:"constitution"`
	Intelligence int `yaml:"intelligence" json:"intelligence"`
	Wisdom       int `yaml:"wisdom" json:"wisdom"`
	Charisma     int `yaml:"charisma" json:"charisma"`
	ProfBonus    int `yaml:"prof_bonus" json:"prof_bonus"`
}

// Mod returns the ability modifier for score.
func Mod(score int) int {
	if score >= 10 {
		return (score - 10) / 2
	}
	return (score - 11) / 2
}

// Counter is a custom counter (uses of a feature, ki points, and so on).
type Counter struct {
	Name  string `yaml:"name" json:"name"`
	Value int    `yaml:"value" json:"value"`
	Min   *int   `yaml:"min,omitempty" json:"min,omitempty"`
	Max   *int   `yaml:"max,omitempty" json:"max,omitempty"`
	// Reset is "short", "long" or empty for counters reset manually.
	Reset string `yaml:"reset,omitempty" json:"reset,omitempty"`
}

// SpellSlots tracks one spell level.
type SpellSlots struct {
	Max     int `yaml:"max" json:"max"`
	Current int `yaml:"current" json:"current"`
}

// Character is a player character sheet.
type Character struct {
	ID        string             `yaml:"id" json:"id"`
	OwnerID   string             `yaml:"owner_id" json:"owner_id"`
	Name      string             `yaml:"name" json:"name"`
	Level     int                `yaml:"level" json:"level"`
	HP        int                `yaml:"hp" json:"hp"`
	MaxHP     int                `yaml:"max_hp" json:"max_hp"`
	TempHP    int                `yaml:"temp_hp" json:"temp_hp"`
	AC        int                `yaml:"ac" json:"ac"`
	Abilities Abilities          `yaml:"abilities" json:"abilities"`
	Counters  []Counter          `yaml:"counters" json:"counters"`
	Slots     map[int]SpellSlots `yaml:"spell_slots" json:"spell_slots"`
	CVars     map[string]string  `yaml:"cvars" json:"cvars"`
}

// Validate checks that the character satisfies basic invariants.
//
// Precondition: c must not be nil.
// Postcondition: Returns nil iff ID and Name are non-empty, Level >= 1,
// MaxHP >= 1, counters are uniquely named and within bounds, and slots are
// consistent; returns an error on the first violation otherwise.
func (c *Character) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("character: id must not be empty")
	}
	if c.Name == "" {
		return fmt.Errorf("character %q: name must not be empty", c.ID)
	}
	if c.Level < 1 {
		return fmt.Errorf("character %q: level must be >= 1", c.ID)
	}
	if c.MaxHP < 1 {
		return fmt.Errorf("character %q: max_hp must be >= 1", c.ID)
	}
	seen := make(map[string]bool, len(c.Counters))
	for _, cc := range c.Counters {
		key := strings.ToLower(cc.Name)
		if cc.Name == "" || seen[key] {
			return fmt.Errorf("character %q: counter names must be unique and non-empty", c.ID)
		}
		seen[key] = true
		if err := cc.check(cc.Value); err != nil {
			return fmt.Errorf("character %q: counter %q: %w", c.ID, cc.Name, err)
		}
	}
	for lvl, s := range c.Slots {
		if lvl < 1 || lvl > 9 || s.Max < 0 || s.Current < 0 || s.Current > s.Max {
			return fmt.Errorf("character %q: invalid spell slots at level %d", c.ID, lvl)
		}
	}
	return nil
}

func (cc *Counter) check(v int) error {
	if cc.Min != nil && v < *cc.Min {
		return fmt.Errorf("%w: %d < min %d", ErrCounterBounds, v, *cc.Min)
	}
	if cc.Max != nil && v > *cc.Max {
		return fmt.Errorf("%w: %d > max %d", ErrCounterBounds, v, *cc.Max)
	}
	return nil
}

// Clone returns a deep copy of c.
func (c *Character) Clone() *Character {
	out := *c
	out.Counters = make([]Counter, len(c.Counters))
	for i, cc := range c.Counters {
		out.Counters[i] = cc
		if cc.Min != nil {
			m := *cc.Min
			out.Counters[i].Min = &m
		}
		if cc.Max != nil {
			m := *cc.Max
			out.Counters[i].Max = &m
		}
	}
	out.Slots = maps.Clone(c.Slots)
	out.CVars = maps.Clone(c.CVars)
	return &out
}

// Counter returns the counter named name, case-insensitively.
func (c *Character) Counter(name string) (*Counter, bool) {
	for i := range c.Counters {
		if strings.EqualFold(c.Counters[i].Name, name) {
			return &c.Counters[i], true
		}
	}
	return nil, false
}

// SetCounter sets a counter's value. With strict, an out-of-bounds value is
// an error; otherwise it is clamped.
//
// Postcondition: on success returns the stored value.
func (c *Character) SetCounter(name string, v int, strict bool) (int, error) {
	cc, ok := c.Counter(name)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrNoCounter, name)
	}
	if err := cc.check(v); err != nil {
		if strict {
			return 0, err
		}
		if cc.Min != nil {
			v = max(v, *cc.Min)
		}
		if cc.Max != nil {
			v = min(v, *cc.Max)
		}
	}
	cc.Value = v
	return v, nil
}

// CounterNames returns the counter names in sheet order.
func (c *Character) CounterNames() []string {
	names := make([]string, len(c.Counters))
	for i, cc := range c.Counters {
		names[i] = cc.Name
	}
	return names
}

// SetHP sets current hit points, never below zero.
func (c *Character) SetHP(hp int) {
	c.HP = max(hp, 0)
}

// ModifyHP adds delta to current hit points. Damage is taken from temporary
// hit points first; unless overflow is set, healing stops at MaxHP.
func (c *Character) ModifyHP(delta int, overflow bool) {
	if delta < 0 && c.TempHP > 0 {
		absorbed := min(c.TempHP, -delta)
		c.TempHP -= absorbed
		delta += absorbed
	}
	hp := c.HP + delta
	if !overflow && delta > 0 {
		hp = min(hp, max(c.MaxHP, c.HP))
	}
	c.SetHP(hp)
}

// SetTempHP sets temporary hit points, never below zero.
func (c *Character) SetTempHP(v int) {
	c.TempHP = max(v, 0)
}

// UseSlot spends one slot of the given level.
func (c *Character) UseSlot(level int) error {
	s, ok := c.Slots[level]
	if !ok || s.Current <= 0 {
		return fmt.Errorf("%w: level %d", ErrNoSlots, level)
	}
	s.Current--
	c.Slots[level] = s
	return nil
}

// SetSlots sets the remaining slots at level, bounded by the maximum.
func (c *Character) SetSlots(level, v int) error {
	s, ok := c.Slots[level]
	if !ok {
		return fmt.Errorf("%w: level %d", ErrNoSlots, level)
	}
	if v < 0 || v > s.Max {
		return fmt.Errorf("character: %d slots at level %d outside [0, %d]", v, level, s.Max)
	}
	s.Current = v
	c.Slots[level] = s
	return nil
}

// SlotLevels returns the levels the character has slots for, ascending.
func (c *Character) SlotLevels() []int {
	return slices.Sorted(maps.Keys(c.Slots))
}

// SetCVar sets a character variable.
func (c *Character) SetCVar(name, value string) {
	if c.CVars == nil {
		c.CVars = make(map[string]string)
	}
	c.CVars[name] = value
}

// DeleteCVar removes a character variable and reports whether it existed.
func (c *Character) DeleteCVar(name string) bool {
	_, ok := c.CVars[name]
	delete(c.CVars, name)
	return ok
}

// LoadFromBytes parses a single character from raw YAML bytes.
//
// Precondition: data must be valid YAML for a single Character.
// Postcondition: Returns a validated *Character, or an error.
func LoadFromBytes(data []byte) (*Character, error) {
	var c Character
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing character YAML: %w", err)
	}
	if c.Slots == nil {
		c.Slots = make(map[int]SpellSlots)
	}
	if c.CVars == nil {
		c.CVars = make(map[string]string)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadDir reads all *.yaml files in dir and returns the parsed characters.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns all characters or an error on the first parse or
// validate failure; on error, the partial result is discarded.
func LoadDir(dir string) ([]*Character, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading character dir %q: %w", dir, err)
	}
	var out []*Character
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}
		c, err := LoadFromBytes(data)
		if err != nil {
			return nil, fmt.Errorf("loading %q: %w", path, err)
		}
		out = append(out, c)
	}
	return out, nil
}

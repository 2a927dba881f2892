package scripting

import (
	"slices"
	"strconv"
	"strings"

	"github.com/cory-johannsen/draconic/internal/character"
	"github.com/cory-johannsen/draconic/internal/dice"
	"github.com/cory-johannsen/draconic/internal/scripting/draconic"
)

// characterError turns a character rule violation into a catchable script error.
func characterError(err error) error {
	return &draconic.RuntimeError{Kind: draconic.ValueError, Msg: err.Error(), Err: err}
}

// AliasCharacter exposes the active character to scripts. Attributes read
// the invocation's working copy, so they reflect earlier mutations.
type AliasCharacter struct {
	env *Environment
	c   *character.Character
}

// TypeName implements draconic.HostObject.
func (a *AliasCharacter) TypeName() string { return "AliasCharacter" }

// Attr implements draconic.HostObject.
func (a *AliasCharacter) Attr(name string) (draconic.Value, bool) {
	c := a.c
	switch name {
	case "name":
		return c.Name, true
	case "level":
		return int64(c.Level), true
	case "hp":
		return int64(c.HP), true
	case "max_hp":
		return int64(c.MaxHP), true
	case "temp_hp":
		return int64(c.TempHP), true
	case "ac":
		return int64(c.AC), true
	case "stats":
		return statsDict(c.Abilities), true
	case "cvars":
		d := draconic.NewDict()
		keys := make([]string, 0, len(c.CVars))
		for k := range c.CVars {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			d.SetString(k, c.CVars[k])
		}
		return d, true
	case "counters":
		names := c.CounterNames()
		items := make([]draconic.Value, len(names))
		for i, n := range names {
			items[i] = n
		}
		return draconic.NewList(items...), true
	}
	if fn, ok := a.method(name); ok {
		return draconic.NewBuiltin(name, fn), true
	}
	return nil, false
}

func statsDict(ab character.Abilities) *draconic.Dict {
	d := draconic.NewDict()
	for _, s := range []struct {
		name  string
		score int
	}{
		{"strength", ab.Strength},
		{"dexterity", ab.Dexterity},
		{"constitution", ab.Constitution},
		{"intelligence", ab.Intelligence},
		{"wisdom", ab.Wisdom},
		{"charisma", ab.Charisma},
	} {
		d.SetString(s.name, int64(s.score))
	}
	d.SetString("prof_bonus", int64(ab.ProfBonus))
	return d
}

func (a *AliasCharacter) counter(c *draconic.Call) (*character.Counter, error) {
	name, err := c.Str(0, "name")
	if err != nil {
		return nil, err
	}
	cc, ok := a.c.Counter(name)
	if !ok {
		return nil, draconic.Errorf(draconic.ValueError, "could not find a counter named %q", name)
	}
	return cc, nil
}

func optBool(c *draconic.Call, i int, name string, def bool) bool {
	v, ok := c.Arg(i, name)
	if !ok || v == nil {
		return def
	}
	return draconic.Truthy(v)
}

func (a *AliasCharacter) method(name string) (draconic.BuiltinFunc, bool) {
	ch := a.c
	switch name {
	case "get_cc":
		return func(c *draconic.Call) (draconic.Value, error) {
			cc, err := a.counter(c)
			if err != nil {
				return nil, err
			}
			return int64(cc.Value), nil
		}, true
	case "get_cc_max", "get_cc_min":
		return func(c *draconic.Call) (draconic.Value, error) {
			cc, err := a.counter(c)
			if err != nil {
				return nil, err
			}
			bound := cc.Max
			if name == "get_cc_min" {
				bound = cc.Min
			}
			if bound == nil {
				return nil, nil
			}
			return int64(*bound), nil
		}, true
	case "cc_exists":
		return func(c *draconic.Call) (draconic.Value, error) {
			n, err := c.Str(0, "name")
			if err != nil {
				return nil, err
			}
			_, ok := ch.Counter(n)
			return ok, nil
		}, true
	case "cc_str":
		return func(c *draconic.Call) (draconic.Value, error) {
			cc, err := a.counter(c)
			if err != nil {
				return nil, err
			}
			if cc.Max != nil {
				return strconv.Itoa(cc.Value) + "/" + strconv.Itoa(*cc.Max), nil
			}
			return strconv.Itoa(cc.Value), nil
		}, true
	case "set_cc", "mod_cc":
		return func(c *draconic.Call) (draconic.Value, error) {
			cc, err := a.counter(c)
			if err != nil {
				return nil, err
			}
			v, err := c.Int(1, "value")
			if err != nil {
				return nil, err
			}
			target := int(v)
			if name == "mod_cc" {
				target += cc.Value
			}
			stored, err := ch.SetCounter(cc.Name, target, optBool(c, 2, "strict", false))
			if err != nil {
				return nil, characterError(err)
			}
			a.env.CharacterChanged(name, cc.Name)
			return int64(stored), nil
		}, true
	case "set_hp", "set_temp_hp":
		return func(c *draconic.Call) (draconic.Value, error) {
			v, err := c.Int(0, "value")
			if err != nil {
				return nil, err
			}
			if name == "set_hp" {
				ch.SetHP(int(v))
			} else {
				ch.SetTempHP(int(v))
			}
			a.env.CharacterChanged(name, "")
			return nil, nil
		}, true
	case "modify_hp":
		return func(c *draconic.Call) (draconic.Value, error) {
			v, err := c.Int(0, "amount")
			if err != nil {
				return nil, err
			}
			ch.ModifyHP(int(v), optBool(c, 1, "overflow", true))
			a.env.CharacterChanged(name, "")
			return a.hpString(), nil
		}, true
	case "hp_str":
		return func(*draconic.Call) (draconic.Value, error) { return a.hpString(), nil }, true
	case "get_slots", "get_max_slots":
		return func(c *draconic.Call) (draconic.Value, error) {
			lvl, err := c.Int(0, "level")
			if err != nil {
				return nil, err
			}
			s := ch.Slots[int(lvl)]
			if name == "get_max_slots" {
				return int64(s.Max), nil
			}
			return int64(s.Current), nil
		}, true
	case "use_slot":
		return func(c *draconic.Call) (draconic.Value, error) {
			lvl, err := c.Int(0, "level")
			if err != nil {
				return nil, err
			}
			if err := ch.UseSlot(int(lvl)); err != nil {
				return nil, characterError(err)
			}
			a.env.CharacterChanged(name, strconv.FormatInt(lvl, 10))
			return nil, nil
		}, true
	case "set_slots":
		return func(c *draconic.Call) (draconic.Value, error) {
			lvl, err := c.Int(0, "level")
			if err != nil {
				return nil, err
			}
			v, err := c.Int(1, "value")
			if err != nil {
				return nil, err
			}
			if err := ch.SetSlots(int(lvl), int(v)); err != nil {
				return nil, characterError(err)
			}
			a.env.CharacterChanged(name, strconv.FormatInt(lvl, 10))
			return nil, nil
		}, true
	case "slots_str":
		return func(c *draconic.Call) (draconic.Value, error) {
			lvl, err := c.Int(0, "level")
			if err != nil {
				return nil, err
			}
			s := ch.Slots[int(lvl)]
			return strings.Repeat("◉", max(s.Current, 0)) + strings.Repeat("〇", max(s.Max-s.Current, 0)), nil
		}, true
	case "get_cvar":
		return func(c *draconic.Call) (draconic.Value, error) {
			n, err := c.Str(0, "name")
			if err != nil {
				return nil, err
			}
			if v, ok := ch.CVars[n]; ok {
				return v, nil
			}
			def, _ := c.Arg(1, "default")
			return def, nil
		}, true
	case "set_cvar", "set_cvar_nx":
		return func(c *draconic.Call) (draconic.Value, error) {
			return nil, setCvar(c, a.env, name)
		}, true
	case "delete_cvar":
		return func(c *draconic.Call) (draconic.Value, error) {
			n, err := c.Str(0, "name")
			if err != nil {
				return nil, err
			}
			return nil, a.env.DeleteCvar(c.Ctx, name, n)
		}, true
	}
	return nil, false
}

func (a *AliasCharacter) hpString() string {
	s := strconv.Itoa(a.c.HP) + "/" + strconv.Itoa(a.c.MaxHP)
	if a.c.TempHP > 0 {
		s += " (+" + strconv.Itoa(a.c.TempHP) + " temp)"
	}
	return s
}

// setCvar implements set_cvar and set_cvar_nx, shared by the builtin and the
// character method.
func setCvar(c *draconic.Call, env *Environment, fn string) error {
	n, err := c.Str(0, "name")
	if err != nil {
		return err
	}
	v, err := c.Require(1, "value")
	if err != nil {
		return err
	}
	if fn == "set_cvar_nx" {
		ch, err := env.requireCharacter(c.Ctx, fn)
		if err != nil {
			return err
		}
		if _, ok := ch.CVars[n]; ok {
			return nil
		}
	}
	return env.SetCvar(c.Ctx, fn, n, draconic.Str(v))
}

// discordEntity is a user, channel or guild reference on AliasContext.
type discordEntity struct {
	kind string
	id   uint64
	name string
}

// TypeName implements draconic.HostObject.
func (d *discordEntity) TypeName() string { return d.kind }

// Attr implements draconic.HostObject.
func (d *discordEntity) Attr(name string) (draconic.Value, bool) {
	switch name {
	case "id":
		return int64(d.id), true
	case "name":
		return d.name, true
	}
	return nil, false
}

// String renders the entity the way it is mentioned in chat.
func (d *discordEntity) String() string {
	if d.name != "" {
		return d.name
	}
	return strconv.FormatUint(d.id, 10)
}

// AliasContext exposes the invocation's identifiers as ctx.
type AliasContext struct {
	inv InvocationContext
}

// TypeName implements draconic.HostObject.
func (a *AliasContext) TypeName() string { return "AliasContext" }

// Attr implements draconic.HostObject.
func (a *AliasContext) Attr(name string) (draconic.Value, bool) {
	switch name {
	case "author":
		return &discordEntity{kind: "AliasAuthor", id: a.inv.AuthorID, name: a.inv.AuthorName}, true
	case "channel":
		return &discordEntity{kind: "AliasChannel", id: a.inv.ChannelID}, true
	case "guild":
		if a.inv.GuildID == 0 {
			return nil, true
		}
		return &discordEntity{kind: "AliasGuild", id: a.inv.GuildID}, true
	case "message_id":
		return int64(a.inv.MessageID), true
	case "prefix":
		return a.inv.Prefix, true
	case "alias":
		return a.inv.Alias, true
	}
	return nil, false
}

// AliasCombat exposes a read-only snapshot of the channel's combat.
type AliasCombat struct {
	state *CombatState
}

// TypeName implements draconic.HostObject.
func (a *AliasCombat) TypeName() string { return "AliasCombat" }

// Attr implements draconic.HostObject.
func (a *AliasCombat) Attr(name string) (draconic.Value, bool) {
	switch name {
	case "round_num":
		return int64(a.state.Round), true
	case "turn_num":
		return int64(a.state.Turn), true
	case "combatants":
		items := make([]draconic.Value, len(a.state.Combatants))
		for i, n := range a.state.Combatants {
			items[i] = n
		}
		return draconic.NewList(items...), true
	case "current":
		if a.state.Current == "" {
			return nil, true
		}
		return a.state.Current, true
	case "get_combatant":
		return draconic.NewBuiltin(name, func(c *draconic.Call) (draconic.Value, error) {
			n, err := c.Str(0, "name")
			if err != nil {
				return nil, err
			}
			for _, cn := range a.state.Combatants {
				if strings.EqualFold(cn, n) {
					return cn, nil
				}
			}
			return nil, nil
		}), true
	}
	return nil, false
}

// SimpleRollResult is the script view of a vroll.
type SimpleRollResult struct {
	raw    string
	result dice.RollResult
}

// TypeName implements draconic.HostObject.
func (r *SimpleRollResult) TypeName() string { return "SimpleRollResult" }

// Attr implements draconic.HostObject.
func (r *SimpleRollResult) Attr(name string) (draconic.Value, bool) {
	switch name {
	case "total":
		return int64(r.result.Total), true
	case "full":
		return r.result.Result, true
	case "dice":
		return dice.Stringify(r.result.Expr.Root), true
	case "raw":
		return r.raw, true
	case "crit":
		return int64(r.result.Crit()), true
	case "consolidated":
		return draconic.NewBuiltin(name, func(*draconic.Call) (draconic.Value, error) {
			return dice.Consolidate(r.result).Result, nil
		}), true
	}
	return nil, false
}

// String renders the full roll.
func (r *SimpleRollResult) String() string { return r.result.Result }

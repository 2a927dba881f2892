package scripting

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"

	"github.com/cory-johannsen/draconic/internal/character"
	"github.com/cory-johannsen/draconic/internal/scripting/draconic"
	"github.com/cory-johannsen/draconic/internal/signature"
)

// VarLimits bounds the length of persisted values, in characters.
type VarLimits struct {
	Cvar int
	Uvar int
	Svar int
	Gvar int
	// Body bounds alias and snippet bodies.
	Body int
}

// DefaultVarLimits returns the production size limits.
func DefaultVarLimits() VarLimits {
	return VarLimits{Cvar: 10_000, Uvar: 10_000, Svar: 10_000, Gvar: 100_000, Body: 5_000}
}

// Environment is the per-invocation view of persisted state. Reads are loaded
// lazily and cached; writes update the cache and enqueue a Mutation.
//
// An Environment belongs to one invocation and is not safe for concurrent use.
type Environment struct {
	inv      InvocationContext
	chars    CharacterProvider
	vars     VariableStore
	combats  CombatProvider
	limits   VarLimits
	pending  MutationSet
	loadChar bool

	char    *character.Character
	charErr error

	uvars map[string]string

	combat       *CombatState
	combatLoaded bool

	gvars map[string]*string
}

// EnvironmentOption configures an Environment.
type EnvironmentOption func(*Environment)

// WithCharacters supplies the active character.
func WithCharacters(p CharacterProvider) EnvironmentOption {
	return func(e *Environment) { e.chars = p }
}

// WithVariables supplies user, server and global variables.
func WithVariables(s VariableStore) EnvironmentOption {
	return func(e *Environment) { e.vars = s }
}

// WithCombat supplies the channel's combat state.
func WithCombat(p CombatProvider) EnvironmentOption {
	return func(e *Environment) { e.combats = p }
}

// WithVarLimits overrides DefaultVarLimits.
func WithVarLimits(l VarLimits) EnvironmentOption {
	return func(e *Environment) { e.limits = l }
}

// NewEnvironment returns an Environment for one invocation.
//
// Postcondition: collaborators not supplied behave as empty: no character,
// no variables, no combat.
func NewEnvironment(inv InvocationContext, opts ...EnvironmentOption) *Environment {
	e := &Environment{inv: inv, limits: DefaultVarLimits(), gvars: make(map[string]*string)}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Invocation returns the invocation's identifiers.
func (e *Environment) Invocation() InvocationContext { return e.inv }

// withScope switches the execution scope, as nested snippets do, until the
// returned func restores it.
func (e *Environment) withScope(scope signature.ExecutionScope, collection *[12]byte) (restore func()) {
	prevScope, prevColl := e.inv.Scope, e.inv.CollectionID
	e.inv.Scope, e.inv.CollectionID = scope, collection
	return func() { e.inv.Scope, e.inv.CollectionID = prevScope, prevColl }
}

// Limits returns the persisted value size limits.
func (e *Environment) Limits() VarLimits { return e.limits }

// Mutations returns the pending mutation set.
func (e *Environment) Mutations() *MutationSet { return &e.pending }

// Character returns the invocation's working copy of the active character,
// loading it on first use. Changes to the copy reach storage only on Flush.
func (e *Environment) Character(ctx context.Context) (*character.Character, error) {
	if !e.loadChar {
		e.loadChar = true
		if e.chars == nil {
			e.charErr = ErrNoCharacter
		} else if c, err := e.chars.Character(ctx); err != nil {
			e.charErr = err
		} else if c == nil {
			e.charErr = ErrNoCharacter
		} else {
			e.char = c.Clone()
		}
	}
	return e.char, e.charErr
}

// requireCharacter is Character with ErrNoCharacter reported as a
// CapabilityError naming fn.
func (e *Environment) requireCharacter(ctx context.Context, fn string) (*character.Character, error) {
	c, err := e.Character(ctx)
	if errors.Is(err, ErrNoCharacter) {
		return nil, &CapabilityError{Function: fn, Reason: FunctionRequiresCharacter}
	}
	return c, err
}

// Combat returns the channel's combat, or nil, loading it on first use.
func (e *Environment) Combat(ctx context.Context) (*CombatState, error) {
	if !e.combatLoaded {
		if e.combats != nil {
			c, err := e.combats.Combat(ctx)
			if err != nil {
				return nil, fmt.Errorf("scripting: loading combat: %w", err)
			}
			e.combat = c
		}
		e.combatLoaded = true
	}
	return e.combat, nil
}

// Uvars returns the invoking user's variables, loading them on first use.
// The returned map is the cache itself.
func (e *Environment) Uvars(ctx context.Context) (map[string]string, error) {
	if e.uvars == nil {
		e.uvars = make(map[string]string)
		if e.vars != nil {
			vs, err := e.vars.Uvars(ctx, e.inv.UserKey())
			if err != nil {
				e.uvars = nil
				return nil, fmt.Errorf("scripting: loading uvars: %w", err)
			}
			maps.Copy(e.uvars, vs)
		}
	}
	return e.uvars, nil
}

// Resolve looks name up as a character variable, then as a user variable.
// It implements draconic.NameResolver.
func (e *Environment) Resolve(ctx context.Context, name string) (draconic.Value, bool, error) {
	c, err := e.Character(ctx)
	switch {
	case err == nil:
		if v, ok := c.CVars[name]; ok {
			return v, true, nil
		}
		if v, ok := sheetName(c, name); ok {
			return v, true, nil
		}
	case !errors.Is(err, ErrNoCharacter):
		return nil, false, err
	}
	uvars, err := e.Uvars(ctx)
	if err != nil {
		return nil, false, err
	}
	if v, ok := uvars[name]; ok {
		return v, true, nil
	}
	return nil, false, nil
}

// sheetName resolves the names every character sheet defines.
func sheetName(c *character.Character, name string) (draconic.Value, bool) {
	a := c.Abilities
	scores := map[string]int{
		"strength": a.Strength, "dexterity": a.Dexterity, "constitution": a.Constitution,
		"intelligence": a.Intelligence, "wisdom": a.Wisdom, "charisma": a.Charisma,
	}
	switch name {
	case "name":
		return c.Name, true
	case "level":
		return int64(c.Level), true
	case "hp":
		// hp is the maximum; currenthp tracks damage.
		return int64(c.MaxHP), true
	case "currenthp":
		return int64(c.HP), true
	case "armor":
		return int64(c.AC), true
	case "proficiencyBonus":
		return int64(a.ProfBonus), true
	}
	if score, ok := scores[name]; ok {
		return int64(score), true
	}
	if stat, ok := strings.CutSuffix(name, "Mod"); ok {
		if score, ok := scores[stat]; ok {
			return int64(character.Mod(score)), true
		}
	}
	return nil, false
}

// SetUvar stores a user variable and enqueues the write.
func (e *Environment) SetUvar(ctx context.Context, name, value string) error {
	if e.vars == nil {
		return &CapabilityError{Function: "set_uvar", Reason: NotConfigured}
	}
	if err := checkVar("uvar", name, value, e.limits.Uvar); err != nil {
		return err
	}
	uvars, err := e.Uvars(ctx)
	if err != nil {
		return err
	}
	uvars[name] = value
	e.pending.Add(Mutation{Kind: MutationSetUvar, Key: name, Value: value})
	return nil
}

// DeleteUvar removes a user variable and enqueues the delete.
func (e *Environment) DeleteUvar(ctx context.Context, name string) error {
	if e.vars == nil {
		return &CapabilityError{Function: "delete_uvar", Reason: NotConfigured}
	}
	uvars, err := e.Uvars(ctx)
	if err != nil {
		return err
	}
	delete(uvars, name)
	e.pending.Add(Mutation{Kind: MutationDeleteUvar, Key: name})
	return nil
}

// Svar returns a variable of the invoking guild. Outside a guild nothing exists.
func (e *Environment) Svar(ctx context.Context, name string) (string, bool, error) {
	if e.vars == nil || e.inv.GuildID == 0 {
		return "", false, nil
	}
	return e.vars.Svar(ctx, e.inv.GuildKey(), name)
}

// Gvar returns a global variable, caching it for the rest of the invocation.
func (e *Environment) Gvar(ctx context.Context, id string) (string, bool, error) {
	if v, ok := e.gvars[id]; ok {
		if v == nil {
			return "", false, nil
		}
		return *v, true, nil
	}
	if e.vars == nil {
		return "", false, nil
	}
	v, ok, err := e.vars.Gvar(ctx, id)
	if err != nil {
		return "", false, err
	}
	if !ok {
		e.gvars[id] = nil
		return "", false, nil
	}
	e.gvars[id] = &v
	return v, true, nil
}

// SetCvar sets a variable on the active character and enqueues the change.
func (e *Environment) SetCvar(ctx context.Context, fn, name, value string) error {
	c, err := e.requireCharacter(ctx, fn)
	if err != nil {
		return err
	}
	if err := checkVar("cvar", name, value, e.limits.Cvar); err != nil {
		return err
	}
	c.SetCVar(name, value)
	e.CharacterChanged(fn, name)
	return nil
}

// DeleteCvar removes a variable from the active character.
func (e *Environment) DeleteCvar(ctx context.Context, fn, name string) error {
	c, err := e.requireCharacter(ctx, fn)
	if err != nil {
		return err
	}
	if c.DeleteCVar(name) {
		e.CharacterChanged(fn, name)
	}
	return nil
}

// CharacterChanged enqueues a character mutation requested by op.
func (e *Environment) CharacterChanged(op, key string) {
	e.pending.Add(Mutation{Kind: MutationCharacter, Op: op, Key: key})
}

// Flush writes every pending mutation in request order, then saves the
// character once if any mutation touched it.
//
// Precondition: the invocation finished without error.
// Postcondition: returns the number of mutations written. A second call
// returns ErrAlreadyFlushed.
func (e *Environment) Flush(ctx context.Context) (int, error) {
	saveChar := e.pending.HasCharacterChanges()
	n, err := e.pending.Flush(ctx, func(ctx context.Context, m Mutation) error {
		switch m.Kind {
		case MutationSetUvar:
			return e.vars.SetUvar(ctx, e.inv.UserKey(), m.Key, m.Value)
		case MutationDeleteUvar:
			return e.vars.DeleteUvar(ctx, e.inv.UserKey(), m.Key)
		}
		return nil
	})
	if err != nil {
		return n, err
	}
	if saveChar {
		if err := e.chars.Save(ctx, e.char); err != nil {
			return n, fmt.Errorf("scripting: saving character: %w", err)
		}
	}
	return n, nil
}

// Discard drops every pending mutation.
func (e *Environment) Discard() {
	e.pending.Discard()
}

func checkVar(kind, name, value string, max int) error {
	if !isIdentifier(name) {
		return draconic.Errorf(draconic.ValueError, "%s name %q must be a valid identifier", kind, name)
	}
	if n := len([]rune(value)); n > max {
		return &draconic.LimitError{Kind: draconic.TooLong, Msg: fmt.Sprintf("%s %q is %d characters, limit %d", kind, name, n, max)}
	}
	return nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

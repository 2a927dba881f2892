package scripting_test

import (
	"context"
	"maps"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cory-johannsen/draconic/internal/character"
	"github.com/cory-johannsen/draconic/internal/config"
	"github.com/cory-johannsen/draconic/internal/dice"
	"github.com/cory-johannsen/draconic/internal/scripting"
)

// memVars is an in-memory VariableStore.
type memVars struct {
	uvars map[string]map[string]string
	svars map[string]map[string]string
	gvars map[string]string
	sets  int
}

func newMemVars() *memVars {
	return &memVars{
		uvars: map[string]map[string]string{},
		svars: map[string]map[string]string{},
		gvars: map[string]string{},
	}
}

func (m *memVars) Uvars(_ context.Context, userID string) (map[string]string, error) {
	return maps.Clone(m.uvars[userID]), nil
}

func (m *memVars) SetUvar(_ context.Context, userID, name, value string) error {
	if m.uvars[userID] == nil {
		m.uvars[userID] = map[string]string{}
	}
	m.uvars[userID][name] = value
	m.sets++
	return nil
}

func (m *memVars) DeleteUvar(_ context.Context, userID, name string) error {
	delete(m.uvars[userID], name)
	return nil
}

func (m *memVars) Svar(_ context.Context, guildID, name string) (string, bool, error) {
	v, ok := m.svars[guildID][name]
	return v, ok, nil
}

func (m *memVars) Gvar(_ context.Context, id string) (string, bool, error) {
	v, ok := m.gvars[id]
	return v, ok, nil
}

// memChars holds one active character.
type memChars struct {
	c     *character.Character
	saves int
}

func (m *memChars) Character(context.Context) (*character.Character, error) {
	if m.c == nil {
		return nil, scripting.ErrNoCharacter
	}
	return m.c, nil
}

func (m *memChars) Save(_ context.Context, c *character.Character) error {
	m.c = c.Clone()
	m.saves++
	return nil
}

type memScripts struct {
	personalSnippets map[string]string
	serverSnippets   map[string]string
	personalAliases  map[string]string
	serverAliases    map[string]string
}

func (m *memScripts) PersonalSnippet(_ context.Context, _, name string) (scripting.Snippet, bool, error) {
	b, ok := m.personalSnippets[name]
	return scripting.Snippet{Name: name, Body: b}, ok, nil
}

func (m *memScripts) ServerSnippet(_ context.Context, _, name string) (scripting.Snippet, bool, error) {
	b, ok := m.serverSnippets[name]
	return scripting.Snippet{Name: name, Body: b}, ok, nil
}

func (m *memScripts) PersonalAlias(_ context.Context, _, name string) (scripting.Alias, bool, error) {
	b, ok := m.personalAliases[name]
	return scripting.Alias{Name: name, Body: b}, ok, nil
}

func (m *memScripts) ServerAlias(_ context.Context, _, name string) (scripting.Alias, bool, error) {
	b, ok := m.serverAliases[name]
	return scripting.Alias{Name: name, Body: b, Server: true}, ok, nil
}

type staticCombat struct{ state *scripting.CombatState }

func (s staticCombat) Combat(context.Context) (*scripting.CombatState, error) { return s.state, nil }

func testScriptingConfig() config.ScriptingConfig {
	return config.ScriptingConfig{
		Timeout:       5 * time.Second,
		MaxRolls:      dice.DefaultMaxRolls,
		MaxTotalRolls: dice.DefaultMaxTotalRolls,
	}
}

// newTestEvaluator builds an Evaluator over in-memory stores with dice that
// always roll their maximum face.
func newTestEvaluator(chars *memChars, vars *memVars, opts scripting.Options) (*scripting.Evaluator, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)
	envOpts := []scripting.EnvironmentOption{}
	if chars != nil {
		envOpts = append(envOpts, scripting.WithCharacters(chars))
	}
	if vars != nil {
		envOpts = append(envOpts, scripting.WithVariables(vars))
	}
	env := scripting.NewEnvironment(testInvocation, envOpts...)
	roller := dice.NewLoggedRoller(maxSource{}, logger)
	return scripting.NewEvaluator(env, roller, logger, opts), logs
}

// maxSource always returns the highest face.
type maxSource struct{}

func (maxSource) Intn(n int) int { return n - 1 }

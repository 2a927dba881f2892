// Package scripting hosts user scripts embedded in chat commands. It scans
// text for substitutions, evaluates them in a sandboxed draconic interpreter
// bound to one invocation's Environment, and persists the requested side
// effects once the whole invocation has succeeded.
package scripting

import (
	"github.com/cory-johannsen/draconic/internal/config"
	"github.com/cory-johannsen/draconic/internal/dice"
	"github.com/cory-johannsen/draconic/internal/scripting/draconic"
)

// LimitsFromConfig converts the configured interpreter ceilings.
//
// Postcondition: zero fields fall back to draconic.DefaultLimits inside NewSandbox.
func LimitsFromConfig(cfg config.ScriptingConfig) draconic.Limits {
	return draconic.Limits{
		MaxStatements:     cfg.MaxStatements,
		MaxLoops:          cfg.MaxLoops,
		MaxIterLength:     cfg.MaxIterLength,
		MaxConstLen:       cfg.MaxConstLen,
		MaxRecursionDepth: cfg.MaxRecursionDepth,
	}
}

// VarLimitsFromConfig converts the configured persisted value size limits.
func VarLimitsFromConfig(cfg config.ScriptingConfig) VarLimits {
	l := DefaultVarLimits()
	for _, f := range []struct {
		dst *int
		v   int
	}{
		{&l.Cvar, cfg.MaxCvarLength},
		{&l.Uvar, cfg.MaxUvarLength},
		{&l.Svar, cfg.MaxSvarLength},
		{&l.Gvar, cfg.MaxGvarLength},
		{&l.Body, cfg.MaxBodyLength},
	} {
		if f.v > 0 {
			*f.dst = f.v
		}
	}
	return l
}

// NewSandbox creates an interpreter holding only the pure builtins:
//   - no file, network or process access
//   - every call bounded by limits and the caller's context
//   - unresolved names fall through to resolver
//
// Precondition: src may be nil to use crypto randomness; resolver may be nil.
// Postcondition: Returns a non-nil Interpreter ready for RegisterModules.
func NewSandbox(limits draconic.Limits, src dice.Source, resolver draconic.NameResolver) *draconic.Interpreter {
	if src == nil {
		src = dice.NewCryptoSource()
	}
	opts := []draconic.Option{draconic.WithLimits(limits), draconic.WithSource(src)}
	if resolver != nil {
		opts = append(opts, draconic.WithResolver(resolver))
	}
	return draconic.New(opts...)
}

package scripting

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/cory-johannsen/draconic/internal/config"
	"github.com/cory-johannsen/draconic/internal/dice"
	"github.com/cory-johannsen/draconic/internal/observability"
	"github.com/cory-johannsen/draconic/internal/scripting/draconic"
	"github.com/cory-johannsen/draconic/internal/signature"
)

// Options configures an Evaluator.
type Options struct {
	Limits        draconic.Limits
	MaxRolls      int
	MaxTotalRolls int
	// Source feeds rand, randint and friends; nil uses crypto randomness.
	Source dice.Source
	// Codec signs and verifies capability tokens; nil disables signature().
	Codec    *signature.Codec
	Snippets SnippetStore
	// Metrics may be nil.
	Metrics *observability.Metrics
}

// OptionsFromConfig converts the scripting configuration.
func OptionsFromConfig(cfg config.ScriptingConfig) Options {
	return Options{
		Limits:        LimitsFromConfig(cfg),
		MaxRolls:      cfg.MaxRolls,
		MaxTotalRolls: cfg.MaxTotalRolls,
	}
}

// Evaluator runs every script of one top-level invocation against a single
// interpreter, environment and roll budget.
//
// An Evaluator belongs to one invocation and is not safe for concurrent use.
// Nested snippet expansion reuses it synchronously.
type Evaluator struct {
	interp   *draconic.Interpreter
	env      *Environment
	roller   *dice.Roller
	rollCtx  *dice.PersistentRollContext
	codec    *signature.Codec
	snippets SnippetStore
	logger   *zap.Logger
	metrics  *observability.Metrics

	char *AliasCharacter
}

// NewEvaluator creates an Evaluator with every host builtin registered.
//
// Precondition: env, roller and logger must be non-nil.
// Postcondition: Returns a non-nil Evaluator whose roll budget is fresh.
func NewEvaluator(env *Environment, roller *dice.Roller, logger *zap.Logger, opts Options) *Evaluator {
	e := &Evaluator{
		interp:   NewSandbox(opts.Limits, opts.Source, env),
		env:      env,
		roller:   roller,
		rollCtx:  dice.NewPersistentRollContext(opts.MaxRolls, opts.MaxTotalRolls),
		codec:    opts.Codec,
		snippets: opts.Snippets,
		logger:   logger,
		metrics:  opts.Metrics,
	}
	e.RegisterModules(e.interp)
	return e
}

// Environment returns the invocation's environment.
func (e *Evaluator) Environment() *Environment { return e.env }

// Interpreter returns the underlying interpreter.
func (e *Evaluator) Interpreter() *draconic.Interpreter { return e.interp }

// RollContext returns the roll budget shared by roll, vroll and legacy substitutions.
func (e *Evaluator) RollContext() *dice.PersistentRollContext { return e.rollCtx }

// Warnings returns the warnings recorded so far.
func (e *Evaluator) Warnings() []string { return e.interp.Warnings() }

// Evaluate evaluates a {{ }} expression.
//
// Postcondition: every failure is an *EvaluationError carrying src.
func (e *Evaluator) Evaluate(ctx context.Context, src string) (draconic.Value, error) {
	v, err := e.interp.Eval(ctx, src)
	if err != nil {
		return nil, wrapEvaluation(err, src)
	}
	return v, nil
}

// Execute runs a <drac2> block and returns its output.
//
// Postcondition: every failure is an *EvaluationError carrying src.
func (e *Evaluator) Execute(ctx context.Context, src string) (string, error) {
	out, err := e.interp.Execute(ctx, src)
	if err != nil {
		return "", wrapEvaluation(err, src)
	}
	return out, nil
}

// wrapEvaluation attaches src unless err already came from a nested evaluation.
func wrapEvaluation(err error, src string) error {
	var ee *EvaluationError
	if errors.As(err, &ee) {
		return err
	}
	return &EvaluationError{Err: err, Source: src}
}

// roll rolls expr against the shared budget and counts the dice.
func (e *Evaluator) roll(ctx context.Context, expr *dice.Expression) (dice.RollResult, error) {
	before := e.rollCtx.TotalRolls()
	res, err := e.roller.RollExpression(expr, dice.WithContext(e.rollCtx))
	if e.metrics != nil {
		if n := e.rollCtx.TotalRolls() - before; n > 0 {
			e.metrics.DiceRolled.Add(ctx, int64(n))
		}
	}
	return res, err
}

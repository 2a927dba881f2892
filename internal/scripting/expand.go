package scripting

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/draconic/internal/config"
	"github.com/cory-johannsen/draconic/internal/dice"
	"github.com/cory-johannsen/draconic/internal/observability"
	"github.com/cory-johannsen/draconic/internal/scripting/draconic"
	"github.com/cory-johannsen/draconic/internal/signature"
)

// ErrNoAlias is returned by ExpandAlias when no alias has the given name.
var ErrNoAlias = errors.New("scripting: no such alias")

// TransformString replaces every substitution in text in one left-to-right pass.
//
// Postcondition: literal text is preserved; substitutions yielding None are
// removed; the first evaluation failure aborts the pass.
func (e *Evaluator) TransformString(ctx context.Context, text string) (string, error) {
	var b strings.Builder
	for tok := range Tokens(text) {
		switch tok.Kind {
		case TokenText:
			b.WriteString(tok.Raw)
		case TokenLookup:
			v, ok, err := e.interp.Lookup(ctx, tok.Inner)
			if err != nil {
				return "", wrapEvaluation(err, tok.Raw)
			}
			if ok {
				b.WriteString(draconic.Str(v))
			} else {
				b.WriteString(tok.Raw)
			}
		case TokenLegacyCurly:
			b.WriteString(e.legacyRoll(ctx, tok.Inner))
		case TokenDoubleCurly:
			v, err := e.Evaluate(ctx, tok.Inner)
			if err != nil {
				return "", err
			}
			if v != nil {
				b.WriteString(draconic.Str(v))
			}
		case TokenDrac2:
			out, err := e.Execute(ctx, dedent(tok.Inner))
			if err != nil {
				return "", err
			}
			b.WriteString(out)
		}
	}
	return b.String(), nil
}

const legacyOperators = "-+*/().<>="

// legacyRoll substitutes names into a {roll} body and rolls it. Any failure
// renders as 0.
func (e *Evaluator) legacyRoll(ctx context.Context, body string) string {
	var parts []string
	rest := body
	for rest != "" {
		i := strings.IndexAny(rest, legacyOperators)
		if i < 0 {
			parts = append(parts, e.legacyName(ctx, rest))
			break
		}
		if i > 0 {
			parts = append(parts, e.legacyName(ctx, rest[:i]))
		}
		parts = append(parts, rest[i:i+1])
		rest = rest[i+1:]
	}
	expr, err := dice.Parse(strings.Join(parts, " "))
	if err != nil {
		return "0"
	}
	res, err := e.roll(ctx, expr)
	if err != nil {
		return "0"
	}
	return strconv.Itoa(res.Total)
}

func (e *Evaluator) legacyName(ctx context.Context, s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if v, ok, err := e.interp.Lookup(ctx, s); err == nil && ok {
		return draconic.Str(v)
	}
	return s
}

// dedent removes the whitespace prefix common to every non-blank line.
func dedent(s string) string {
	lines := strings.Split(s, "\n")
	prefix := ""
	first := true
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		indent := l[:len(l)-len(strings.TrimLeft(l, " \t"))]
		if first {
			prefix, first = indent, false
			continue
		}
		for !strings.HasPrefix(indent, prefix) {
			prefix = prefix[:len(prefix)-1]
		}
	}
	if prefix == "" {
		return s
	}
	for i, l := range lines {
		lines[i] = strings.TrimPrefix(l, prefix)
	}
	return strings.Join(lines, "\n")
}

// ExpandSnippets replaces every argument naming a snippet with the split
// expansion of its body. Personal snippets shadow server snippets.
//
// Postcondition: non-snippet arguments are returned unchanged and in order.
func (e *Evaluator) ExpandSnippets(ctx context.Context, args []string) ([]string, error) {
	if e.snippets == nil {
		return args, nil
	}
	return e.expandArgs(ctx, args, false)
}

// expandArgs makes the single transform pass over args. Snippet bodies are
// transformed and spliced in as-is; other arguments are transformed only
// when transformPlain is set.
func (e *Evaluator) expandArgs(ctx context.Context, args []string, transformPlain bool) ([]string, error) {
	out := make([]string, 0, len(args))
	for _, arg := range args {
		snip, scope, ok, err := e.findSnippet(ctx, arg)
		if err != nil {
			return nil, err
		}
		if !ok {
			if transformPlain {
				if arg, err = e.TransformString(ctx, arg); err != nil {
					return nil, err
				}
			}
			out = append(out, arg)
			continue
		}
		restore := e.env.withScope(scope, nil)
		text, err := e.TransformString(ctx, snip.Body)
		restore()
		if err != nil {
			return nil, err
		}
		parts, err := ArgSplit(text)
		if err != nil {
			return nil, fmt.Errorf("scripting: splitting snippet %q: %w", snip.Name, err)
		}
		out = append(out, parts...)
	}
	return out, nil
}

func (e *Evaluator) findSnippet(ctx context.Context, name string) (Snippet, signature.ExecutionScope, bool, error) {
	if e.snippets == nil {
		return Snippet{}, 0, false, nil
	}
	inv := e.env.Invocation()
	s, ok, err := e.snippets.PersonalSnippet(ctx, inv.UserKey(), name)
	if err != nil || ok {
		return s, signature.ScopePersonalSnippet, ok, err
	}
	if inv.GuildID == 0 {
		return Snippet{}, 0, false, nil
	}
	s, ok, err = e.snippets.ServerSnippet(ctx, inv.GuildKey(), name)
	return s, signature.ScopeServerSnippet, ok, err
}

// Invocation carries the per-message collaborators of one expansion.
type Invocation struct {
	Context InvocationContext
	// Characters may be nil when the user has no character.
	Characters CharacterProvider
	// Combat may be nil outside a channel with combat.
	Combat CombatProvider
}

// Result is the outcome of one successful expansion.
type Result struct {
	Text string
	// Args is set by ExpandArgs.
	Args     []string
	Warnings []string
	// Mutations are the side effects written by the flush.
	Mutations []Mutation
}

// Expander runs top-level invocations. It is safe for concurrent use; each
// call builds its own Evaluator.
type Expander struct {
	opts      Options
	varLimits VarLimits
	timeout   time.Duration
	roller    *dice.Roller
	vars      VariableStore
	aliases   AliasStore
	logger    *zap.Logger
	metrics   *observability.Metrics
}

// ExpanderOption configures an Expander.
type ExpanderOption func(*Expander)

// WithVariableStore supplies user, server and global variables.
func WithVariableStore(s VariableStore) ExpanderOption {
	return func(x *Expander) { x.vars = s }
}

// WithSnippetStore enables snippet expansion in ExpandArgs.
func WithSnippetStore(s SnippetStore) ExpanderOption {
	return func(x *Expander) { x.opts.Snippets = s }
}

// WithAliasStore enables ExpandAlias.
func WithAliasStore(s AliasStore) ExpanderOption {
	return func(x *Expander) { x.aliases = s }
}

// WithCodec enables signature() and verify_signature().
func WithCodec(c *signature.Codec) ExpanderOption {
	return func(x *Expander) { x.opts.Codec = c }
}

// WithMetrics records expansion metrics.
func WithMetrics(m *observability.Metrics) ExpanderOption {
	return func(x *Expander) { x.metrics = m; x.opts.Metrics = m }
}

// WithRandomSource overrides the randomness of rand and friends.
func WithRandomSource(src dice.Source) ExpanderOption {
	return func(x *Expander) { x.opts.Source = src }
}

// NewExpander creates an Expander from the scripting configuration.
//
// Precondition: roller and logger must be non-nil.
func NewExpander(cfg config.ScriptingConfig, roller *dice.Roller, logger *zap.Logger, opts ...ExpanderOption) *Expander {
	x := &Expander{
		opts:      OptionsFromConfig(cfg),
		varLimits: VarLimitsFromConfig(cfg),
		timeout:   cfg.Timeout,
		roller:    roller,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Expand transforms text as one invocation.
//
// Postcondition: on success every pending mutation has been flushed exactly
// once; on any error nothing has been written.
func (x *Expander) Expand(ctx context.Context, inv Invocation, text string) (Result, error) {
	return x.run(ctx, inv, func(ctx context.Context, ev *Evaluator, res *Result) error {
		out, err := ev.TransformString(ctx, text)
		res.Text = out
		return err
	})
}

// ExpandArgs transforms every argument once. An argument naming a snippet
// is replaced by the split expansion of the snippet's body, which is not
// transformed again.
func (x *Expander) ExpandArgs(ctx context.Context, inv Invocation, args []string) (Result, error) {
	return x.run(ctx, inv, func(ctx context.Context, ev *Evaluator, res *Result) error {
		expanded, err := ev.expandArgs(ctx, args, true)
		if err != nil {
			return err
		}
		res.Args = expanded
		res.Text = JoinArgs(expanded)
		return nil
	})
}

// ExpandAlias looks an alias up, personal before server, substitutes its
// arguments and transforms the result.
//
// Postcondition: returns ErrNoAlias when neither store has the alias.
func (x *Expander) ExpandAlias(ctx context.Context, inv Invocation, name, rawArgs string) (Result, error) {
	if x.aliases == nil {
		return Result{}, &CapabilityError{Function: "alias", Reason: NotConfigured}
	}
	alias, ok, err := x.aliases.PersonalAlias(ctx, inv.Context.UserKey(), name)
	if err == nil && !ok && inv.Context.GuildID != 0 {
		alias, ok, err = x.aliases.ServerAlias(ctx, inv.Context.GuildKey(), name)
	}
	if err != nil {
		return Result{}, fmt.Errorf("scripting: looking up alias %q: %w", name, err)
	}
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrNoAlias, name)
	}
	body, err := ApplyAliasArguments(alias.Body, rawArgs)
	if err != nil {
		return Result{}, err
	}
	inv.Context.Alias = alias.Name
	inv.Context.Scope = signature.ScopePersonalAlias
	if alias.Server {
		inv.Context.Scope = signature.ScopeServerAlias
	}
	inv.Context.CollectionID = alias.CollectionID
	return x.Expand(ctx, inv, body)
}

func (x *Expander) run(ctx context.Context, inv Invocation, body func(context.Context, *Evaluator, *Result) error) (Result, error) {
	start := time.Now()
	scope := inv.Context.Scope.String()

	envOpts := []EnvironmentOption{WithVarLimits(x.varLimits)}
	if inv.Characters != nil {
		envOpts = append(envOpts, WithCharacters(inv.Characters))
	}
	if inv.Combat != nil {
		envOpts = append(envOpts, WithCombat(inv.Combat))
	}
	if x.vars != nil {
		envOpts = append(envOpts, WithVariables(x.vars))
	}
	env := NewEnvironment(inv.Context, envOpts...)
	ev := NewEvaluator(env, x.roller, x.logger, x.opts)

	var res Result
	err := x.evaluate(ctx, ev, &res, body)
	res.Warnings = ev.Warnings()
	if err == nil {
		res.Mutations = env.Mutations().Items()
		var n int
		n, err = env.Flush(ctx)
		if x.metrics != nil && n > 0 {
			x.metrics.MutationsFlushed.Add(ctx, int64(n))
		}
		if err != nil {
			x.logger.Error("flushing mutations failed",
				zap.String("scope", scope),
				zap.Int("flushed", n),
				zap.Error(err),
			)
		}
	} else {
		env.Discard()
	}

	kind := ErrorKind(err)
	if x.metrics != nil {
		x.metrics.RecordExpansion(ctx, scope, kind, time.Since(start).Seconds())
	}
	if kind == "internal" {
		x.logger.Warn("expansion failed", zap.String("scope", scope), zap.Error(err))
	} else {
		x.logger.Debug("expansion",
			zap.String("scope", scope),
			zap.String("alias", inv.Context.Alias),
			zap.String("error_kind", kind),
			zap.Int("rolls", ev.RollContext().TotalRolls()),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
	if err != nil {
		return Result{Warnings: res.Warnings}, err
	}
	return res, nil
}

// evaluate runs body under the configured timeout. A deadline hit inside a
// persistence call is reported as a Timeout limit.
func (x *Expander) evaluate(ctx context.Context, ev *Evaluator, res *Result, body func(context.Context, *Evaluator, *Result) error) error {
	tctx := ctx
	if x.timeout > 0 {
		var cancel context.CancelFunc
		tctx, cancel = context.WithTimeout(ctx, x.timeout)
		defer cancel()
	}
	err := body(tctx, ev, res)
	var le *draconic.LimitError
	if err != nil && !errors.As(err, &le) && errors.Is(tctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return &draconic.LimitError{Kind: draconic.Timeout, Msg: "script took too long"}
	}
	return err
}

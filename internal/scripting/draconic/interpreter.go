// Package draconic implements a small, sandboxed, Python-like expression and
// statement language for user scripts. Every evaluation runs under an
// operation budget, loop and recursion ceilings, size limits and the caller's
// context deadline.
package draconic

import (
	"context"
	"fmt"
	"strings"

	"github.com/cory-johannsen/draconic/internal/dice"
)

// NameResolver supplies values for names that are neither builtins nor
// assigned by the script, such as character and user variables.
type NameResolver interface {
	Resolve(ctx context.Context, name string) (Value, bool, error)
}

// ResolverFunc adapts a function to NameResolver.
type ResolverFunc func(ctx context.Context, name string) (Value, bool, error)

// Resolve implements NameResolver.
func (f ResolverFunc) Resolve(ctx context.Context, name string) (Value, bool, error) {
	return f(ctx, name)
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithLimits overrides the resource limits; zero fields keep their defaults.
func WithLimits(l Limits) Option {
	return func(in *Interpreter) { in.limits = l.withDefaults() }
}

// WithResolver sets the fallback name resolver.
func WithResolver(r NameResolver) Option {
	return func(in *Interpreter) { in.resolver = r }
}

// WithSource sets the randomness used by rand, randint and friends.
func WithSource(src dice.Source) Option {
	return func(in *Interpreter) { in.src = src }
}

type scope struct {
	vars   map[string]Value
	parent *scope
}

func newScope(parent *scope) *scope {
	return &scope{vars: make(map[string]Value), parent: parent}
}

func (s *scope) lookup(name string) (Value, bool) {
	for sc := s; sc != nil; sc = sc.parent {
		if v, ok := sc.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// Interpreter evaluates draconic source. Names assigned at top level persist
// across Eval and Execute calls on the same Interpreter.
//
// An Interpreter is not safe for concurrent use.
type Interpreter struct {
	limits   Limits
	builtins map[string]Value
	globals  *scope
	resolver NameResolver
	src      dice.Source
	out      strings.Builder
	warnings []string
	loops    int
	depth    int
}

// New returns an Interpreter with the pure builtins registered.
//
// Postcondition: returns a non-nil Interpreter using DefaultLimits unless overridden.
func New(opts ...Option) *Interpreter {
	in := &Interpreter{
		limits:   DefaultLimits(),
		builtins: make(map[string]Value),
		globals:  newScope(nil),
		src:      dice.NewCryptoSource(),
	}
	for _, opt := range opts {
		opt(in)
	}
	registerBuiltins(in)
	return in
}

// Limits returns the interpreter's resource limits.
func (in *Interpreter) Limits() Limits { return in.limits }

// Source returns the interpreter's randomness.
func (in *Interpreter) Source() dice.Source { return in.src }

// Register exposes fn to scripts under a reserved name.
func (in *Interpreter) Register(name string, fn BuiltinFunc) {
	in.builtins[name] = NewBuiltin(name, fn)
}

// RegisterValue exposes a fixed value, such as a host object, under a reserved name.
func (in *Interpreter) RegisterValue(name string, v Value) {
	in.builtins[name] = v
}

// IsBuiltin reports whether name is reserved.
func (in *Interpreter) IsBuiltin(name string) bool {
	_, ok := in.builtins[name]
	return ok
}

// SetName binds a top-level name.
func (in *Interpreter) SetName(name string, v Value) error {
	if in.IsBuiltin(name) {
		return reservedError(name)
	}
	in.globals.vars[name] = v
	return nil
}

// Name returns a top-level name bound by the script or SetName.
func (in *Interpreter) Name(name string) (Value, bool) {
	v, ok := in.globals.vars[name]
	return v, ok
}

// Lookup resolves name as a variable, ignoring builtins: top-level names
// first, then the resolver.
func (in *Interpreter) Lookup(ctx context.Context, name string) (Value, bool, error) {
	if v, ok := in.globals.vars[name]; ok {
		return v, true, nil
	}
	if in.resolver != nil {
		return in.resolver.Resolve(ctx, name)
	}
	return nil, false, nil
}

// Warn records a non-fatal warning for the invoking user.
func (in *Interpreter) Warn(msg string) {
	in.warnings = append(in.warnings, msg)
}

// Warnings returns the warnings recorded so far.
func (in *Interpreter) Warnings() []string {
	return in.warnings
}

// Print appends s to the output of the current Execute call.
func (in *Interpreter) Print(s string) error {
	if in.out.Len()+len(s) > in.limits.MaxConstLen {
		return limitf(TooLong, "printed output longer than %d characters", in.limits.MaxConstLen)
	}
	in.out.WriteString(s)
	return nil
}

func reservedError(name string) error {
	return &RuntimeError{Kind: ValueError, Msg: fmt.Sprintf("cannot assign to builtin name '%s'", name), Err: ErrReservedName}
}

func (in *Interpreter) begin(ctx context.Context) (context.Context, context.CancelFunc) {
	in.loops = 0
	in.depth = 0
	in.out.Reset()
	return newCountingContext(ctx, in.limits.MaxStatements)
}

// Eval evaluates one line of simple statements, as found inside {{ }}, and
// returns the value of the final expression statement (nil after an assignment).
//
// Precondition: ctx must be non-nil.
// Postcondition: returns a value, or a *SyntaxError, *LimitError, *UserAbort,
// *RuntimeError or host error.
func (in *Interpreter) Eval(ctx context.Context, src string) (_ Value, err error) {
	defer recoverInternal(&err)
	prog, err := Parse(strings.TrimSpace(src), in.limits.MaxConstLen)
	if err != nil {
		return nil, err
	}
	for _, s := range prog.Body {
		switch s.(type) {
		case *If, *For, *While, *FunctionDef, *Try:
			return nil, &SyntaxError{Line: s.line(), Col: 1, Msg: "only simple statements are allowed here"}
		}
	}
	ctx, cancel := in.begin(ctx)
	defer cancel()

	var last Value
	for _, s := range prog.Body {
		last = nil
		switch st := s.(type) {
		case *ExprStmt:
			v, err := in.eval(ctx, in.globals, st.Value)
			if err != nil {
				return nil, withLine(err, s.line())
			}
			last = v
		case *Return:
			if st.Value == nil {
				return nil, nil
			}
			v, err := in.eval(ctx, in.globals, st.Value)
			return v, withLine(err, s.line())
		default:
			if _, _, err := in.exec(ctx, in.globals, s); err != nil {
				return nil, withLine(err, s.line())
			}
		}
	}
	return last, nil
}

// Execute runs a block of statements, as found inside <drac2> tags, and
// returns everything printed followed by the str() of the returned value.
// A None return adds nothing.
//
// Precondition: ctx must be non-nil.
func (in *Interpreter) Execute(ctx context.Context, src string) (_ string, err error) {
	defer recoverInternal(&err)
	prog, err := Parse(src, in.limits.MaxConstLen)
	if err != nil {
		return "", err
	}
	ctx, cancel := in.begin(ctx)
	defer cancel()

	fl, ret, err := in.execBlock(ctx, in.globals, prog.Body)
	if err != nil {
		return "", err
	}
	switch fl {
	case flowBreak:
		return "", &SyntaxError{Line: 1, Col: 1, Msg: "'break' outside loop"}
	case flowContinue:
		return "", &SyntaxError{Line: 1, Col: 1, Msg: "'continue' outside loop"}
	}
	out := in.out.String()
	if ret != nil {
		out += Str(ret)
	}
	return out, nil
}

// recoverInternal turns a panic during evaluation into an ErrInternal.
func recoverInternal(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%w: %v", ErrInternal, r)
	}
}

// Call invokes a callable script value.
func (in *Interpreter) Call(ctx context.Context, fn Value, args []Value, kwargs map[string]Value) (Value, error) {
	switch f := fn.(type) {
	case *Builtin:
		return f.Fn(&Call{Ctx: ctx, Interp: in, Name: f.Name, Args: args, Kwargs: kwargs})
	case *Function:
		return in.callFunction(ctx, f, args, kwargs)
	}
	return nil, typeErrorf("'%s' object is not callable", TypeName(fn))
}

func (in *Interpreter) callFunction(ctx context.Context, fn *Function, args []Value, kwargs map[string]Value) (Value, error) {
	in.depth++
	defer func() { in.depth-- }()
	if in.depth > in.limits.MaxRecursionDepth {
		return nil, limitf(RecursionDepth, "maximum recursion depth of %d exceeded", in.limits.MaxRecursionDepth)
	}

	def := fn.def
	local := newScope(fn.closure)
	nParams := len(def.Params)
	if len(args) > nParams && def.Vararg == "" {
		return nil, typeErrorf("%s() takes %d positional arguments but %d were given", def.Name, nParams, len(args))
	}
	for i, p := range def.Params {
		if i < len(args) {
			local.vars[p] = args[i]
		}
	}
	if def.Vararg != "" {
		var extra []Value
		if len(args) > nParams {
			extra = append(extra, args[nParams:]...)
		}
		local.vars[def.Vararg] = NewList(extra...)
	}
	for k, v := range kwargs {
		found := false
		for _, p := range def.Params {
			if p == k {
				found = true
				break
			}
		}
		if !found {
			return nil, typeErrorf("%s() got an unexpected keyword argument '%s'", def.Name, k)
		}
		if _, dup := local.vars[k]; dup {
			return nil, typeErrorf("%s() got multiple values for argument '%s'", def.Name, k)
		}
		local.vars[k] = v
	}
	firstDefault := nParams - len(fn.defaults)
	for i, p := range def.Params {
		if _, ok := local.vars[p]; ok {
			continue
		}
		if i >= firstDefault {
			local.vars[p] = fn.defaults[i-firstDefault]
			continue
		}
		return nil, typeErrorf("%s() missing required argument '%s'", def.Name, p)
	}

	fl, v, err := in.execBlock(ctx, local, def.Body)
	if err != nil {
		return nil, err
	}
	if fl == flowReturn {
		return v, nil
	}
	return nil, nil
}

// withLine attaches a line number to runtime errors that lack one.
func withLine(err error, line int) error {
	if rt, ok := err.(*RuntimeError); ok && rt.Line == 0 {
		rt.Line = line
	}
	return err
}

func (in *Interpreter) loopTick() error {
	in.loops++
	if in.loops > in.limits.MaxLoops {
		return limitf(TooManyLoops, "more than %d loop iterations", in.limits.MaxLoops)
	}
	return nil
}

func (in *Interpreter) checkLen(n int) error {
	if n > in.limits.MaxConstLen {
		return limitf(TooLong, "value longer than %d", in.limits.MaxConstLen)
	}
	return nil
}

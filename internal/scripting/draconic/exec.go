package draconic

import (
	"context"
	"slices"
)

type flow int

const (
	flowNormal flow = iota
	flowBreak
	flowContinue
	flowReturn
)

func (in *Interpreter) execBlock(ctx context.Context, sc *scope, body []Stmt) (flow, Value, error) {
	for _, s := range body {
		fl, v, err := in.exec(ctx, sc, s)
		if err != nil {
			return flowNormal, nil, withLine(err, s.line())
		}
		if fl != flowNormal {
			return fl, v, nil
		}
	}
	return flowNormal, nil, nil
}

func (in *Interpreter) exec(ctx context.Context, sc *scope, s Stmt) (flow, Value, error) {
	if err := tick(ctx); err != nil {
		return flowNormal, nil, err
	}
	switch s := s.(type) {
	case *ExprStmt:
		_, err := in.eval(ctx, sc, s.Value)
		return flowNormal, nil, err

	case *Assign:
		v, err := in.eval(ctx, sc, s.Value)
		if err != nil {
			return flowNormal, nil, err
		}
		for _, t := range s.Targets {
			if err := in.assign(ctx, sc, t, v); err != nil {
				return flowNormal, nil, err
			}
		}
		return flowNormal, nil, nil

	case *AugAssign:
		return flowNormal, nil, in.augAssign(ctx, sc, s)

	case *If:
		test, err := in.eval(ctx, sc, s.Test)
		if err != nil {
			return flowNormal, nil, err
		}
		if Truthy(test) {
			return in.execBlock(ctx, sc, s.Body)
		}
		return in.execBlock(ctx, sc, s.Orelse)

	case *For:
		iter, err := in.eval(ctx, sc, s.Iter)
		if err != nil {
			return flowNormal, nil, err
		}
		items, err := in.iterate(iter)
		if err != nil {
			return flowNormal, nil, err
		}
		for _, item := range items {
			if err := in.loopTick(); err != nil {
				return flowNormal, nil, err
			}
			if err := in.assign(ctx, sc, s.Target, item); err != nil {
				return flowNormal, nil, err
			}
			fl, v, err := in.execBlock(ctx, sc, s.Body)
			if err != nil {
				return flowNormal, nil, err
			}
			switch fl {
			case flowBreak:
				return flowNormal, nil, nil
			case flowReturn:
				return fl, v, nil
			}
		}
		return flowNormal, nil, nil

	case *While:
		for {
			if err := in.loopTick(); err != nil {
				return flowNormal, nil, err
			}
			test, err := in.eval(ctx, sc, s.Test)
			if err != nil {
				return flowNormal, nil, err
			}
			if !Truthy(test) {
				return flowNormal, nil, nil
			}
			fl, v, err := in.execBlock(ctx, sc, s.Body)
			if err != nil {
				return flowNormal, nil, err
			}
			switch fl {
			case flowBreak:
				return flowNormal, nil, nil
			case flowReturn:
				return fl, v, nil
			}
		}

	case *Break:
		return flowBreak, nil, nil
	case *Continue:
		return flowContinue, nil, nil
	case *Pass:
		return flowNormal, nil, nil

	case *Return:
		if s.Value == nil {
			return flowReturn, nil, nil
		}
		v, err := in.eval(ctx, sc, s.Value)
		if err != nil {
			return flowNormal, nil, err
		}
		return flowReturn, v, nil

	case *FunctionDef:
		if in.IsBuiltin(s.Name) {
			return flowNormal, nil, reservedError(s.Name)
		}
		fn := &Function{def: s, closure: sc}
		for _, d := range s.Defaults {
			v, err := in.eval(ctx, sc, d)
			if err != nil {
				return flowNormal, nil, err
			}
			fn.defaults = append(fn.defaults, v)
		}
		sc.vars[s.Name] = fn
		return flowNormal, nil, nil

	case *Try:
		return in.execTry(ctx, sc, s)
	}
	return flowNormal, nil, Errorf(FeatureNotAvailable, "unsupported statement %T", s)
}

func (in *Interpreter) execTry(ctx context.Context, sc *scope, s *Try) (flow, Value, error) {
	fl, v, err := in.execBlock(ctx, sc, s.Body)
	if err != nil {
		if rt, ok := err.(*RuntimeError); ok {
			for _, h := range s.Handlers {
				if !handles(h, rt.Kind) {
					continue
				}
				if h.Name != "" {
					sc.vars[h.Name] = rt.Msg
				}
				fl, v, err = in.execBlock(ctx, sc, h.Body)
				break
			}
		}
	} else if len(s.Orelse) > 0 {
		fl, v, err = in.execBlock(ctx, sc, s.Orelse)
	}
	if len(s.Finally) > 0 {
		ffl, fv, ferr := in.execBlock(ctx, sc, s.Finally)
		if ferr != nil {
			return flowNormal, nil, ferr
		}
		if ffl != flowNormal {
			return ffl, fv, nil
		}
	}
	return fl, v, err
}

func handles(h ExceptHandler, kind string) bool {
	if len(h.Types) == 0 {
		return true
	}
	return slices.Contains(h.Types, kind) || slices.Contains(h.Types, "Exception")
}

// assign binds v to a name, subscript or unpacking target.
func (in *Interpreter) assign(ctx context.Context, sc *scope, target Expr, v Value) error {
	switch t := target.(type) {
	case *Name:
		if in.IsBuiltin(t.ID) {
			return reservedError(t.ID)
		}
		sc.vars[t.ID] = v
		return nil
	case *SubscriptExpr:
		obj, err := in.eval(ctx, sc, t.Value)
		if err != nil {
			return err
		}
		idx, err := in.eval(ctx, sc, t.Index)
		if err != nil {
			return err
		}
		return setItem(obj, idx, v)
	case *TupleExpr:
		return in.unpack(ctx, sc, t.Elts, v)
	case *ListExpr:
		return in.unpack(ctx, sc, t.Elts, v)
	}
	return Errorf(TypeError, "cannot assign to %T", target)
}

func (in *Interpreter) unpack(ctx context.Context, sc *scope, targets []Expr, v Value) error {
	items, err := in.iterate(v)
	if err != nil {
		return typeErrorf("cannot unpack non-iterable %s object", TypeName(v))
	}
	switch {
	case len(items) < len(targets):
		return valueErrorf("not enough values to unpack (expected %d, got %d)", len(targets), len(items))
	case len(items) > len(targets):
		return valueErrorf("too many values to unpack (expected %d)", len(targets))
	}
	for i, t := range targets {
		if err := in.assign(ctx, sc, t, items[i]); err != nil {
			return err
		}
	}
	return nil
}

func (in *Interpreter) augAssign(ctx context.Context, sc *scope, s *AugAssign) error {
	var (
		obj, idx Value
		cur      Value
		err      error
	)
	switch t := s.Target.(type) {
	case *Name:
		if cur, err = in.lookup(ctx, sc, t.ID); err != nil {
			return err
		}
	case *SubscriptExpr:
		if obj, err = in.eval(ctx, sc, t.Value); err != nil {
			return err
		}
		if idx, err = in.eval(ctx, sc, t.Index); err != nil {
			return err
		}
		if cur, err = in.getItem(obj, idx); err != nil {
			return err
		}
	default:
		return Errorf(TypeError, "illegal expression for augmented assignment")
	}
	rhs, err := in.eval(ctx, sc, s.Value)
	if err != nil {
		return err
	}

	var result Value
	if l, ok := cur.(*List); ok && s.Op == "+" {
		// list += iterable extends in place
		items, err := in.iterate(rhs)
		if err != nil {
			return err
		}
		if err := in.checkLen(len(l.Items) + len(items)); err != nil {
			return err
		}
		l.Items = append(l.Items, items...)
		result = l
	} else if result, err = in.binaryOp(s.Op, cur, rhs); err != nil {
		return err
	}

	if obj != nil {
		return setItem(obj, idx, result)
	}
	return in.assign(ctx, sc, s.Target, result)
}

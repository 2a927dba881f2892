package draconic

import (
	"context"
	"strings"
)

func (in *Interpreter) lookup(ctx context.Context, sc *scope, name string) (Value, error) {
	if v, ok := in.builtins[name]; ok {
		return v, nil
	}
	if v, ok := sc.lookup(name); ok {
		return v, nil
	}
	if in.resolver != nil {
		v, ok, err := in.resolver.Resolve(ctx, name)
		if err != nil {
			return nil, err
		}
		if ok {
			return v, nil
		}
	}
	return nil, Errorf(NameError, "name '%s' is not defined", name)
}

func (in *Interpreter) eval(ctx context.Context, sc *scope, e Expr) (Value, error) {
	if err := tick(ctx); err != nil {
		return nil, err
	}
	switch e := e.(type) {
	case *Const:
		return e.Value, nil

	case *Name:
		return in.lookup(ctx, sc, e.ID)

	case *FString:
		return in.evalFString(ctx, sc, e)

	case *ListExpr:
		items, err := in.evalAll(ctx, sc, e.Elts)
		if err != nil {
			return nil, err
		}
		return NewList(items...), nil

	case *TupleExpr:
		items, err := in.evalAll(ctx, sc, e.Elts)
		if err != nil {
			return nil, err
		}
		return NewList(items...), nil

	case *DictExpr:
		d := NewDict()
		for i := range e.Keys {
			k, err := in.eval(ctx, sc, e.Keys[i])
			if err != nil {
				return nil, err
			}
			v, err := in.eval(ctx, sc, e.Values[i])
			if err != nil {
				return nil, err
			}
			if err := d.Set(k, v); err != nil {
				return nil, err
			}
		}
		return d, nil

	case *BinaryExpr:
		l, err := in.eval(ctx, sc, e.Left)
		if err != nil {
			return nil, err
		}
		r, err := in.eval(ctx, sc, e.Right)
		if err != nil {
			return nil, err
		}
		return in.binaryOp(e.Op, l, r)

	case *UnaryExpr:
		v, err := in.eval(ctx, sc, e.Operand)
		if err != nil {
			return nil, err
		}
		return unaryOp(e.Op, v)

	case *BoolExpr:
		var v Value
		for _, operand := range e.Values {
			var err error
			if v, err = in.eval(ctx, sc, operand); err != nil {
				return nil, err
			}
			if (e.Op == "and") != Truthy(v) {
				return v, nil
			}
		}
		return v, nil

	case *CompareExpr:
		left, err := in.eval(ctx, sc, e.Left)
		if err != nil {
			return nil, err
		}
		for i, op := range e.Ops {
			right, err := in.eval(ctx, sc, e.Comparators[i])
			if err != nil {
				return nil, err
			}
			ok, err := in.compareOp(op, left, right)
			if err != nil {
				return nil, err
			}
			if !ok {
				return false, nil
			}
			left = right
		}
		return true, nil

	case *IfExpr:
		test, err := in.eval(ctx, sc, e.Test)
		if err != nil {
			return nil, err
		}
		if Truthy(test) {
			return in.eval(ctx, sc, e.Body)
		}
		return in.eval(ctx, sc, e.Orelse)

	case *CallExpr:
		return in.evalCall(ctx, sc, e)

	case *AttributeExpr:
		obj, err := in.eval(ctx, sc, e.Value)
		if err != nil {
			return nil, err
		}
		return in.getAttr(obj, e.Attr)

	case *SubscriptExpr:
		obj, err := in.eval(ctx, sc, e.Value)
		if err != nil {
			return nil, err
		}
		if sl, ok := e.Index.(*SliceExpr); ok {
			return in.evalSlice(ctx, sc, obj, sl)
		}
		idx, err := in.eval(ctx, sc, e.Index)
		if err != nil {
			return nil, err
		}
		return in.getItem(obj, idx)

	case *ListComp:
		var out []Value
		err := in.comprehend(ctx, newScope(sc), e.Generators, func(csc *scope) error {
			v, err := in.eval(ctx, csc, e.Elt)
			if err != nil {
				return err
			}
			out = append(out, v)
			return in.checkLen(len(out))
		})
		if err != nil {
			return nil, err
		}
		return NewList(out...), nil

	case *DictComp:
		d := NewDict()
		err := in.comprehend(ctx, newScope(sc), e.Generators, func(csc *scope) error {
			k, err := in.eval(ctx, csc, e.Key)
			if err != nil {
				return err
			}
			v, err := in.eval(ctx, csc, e.Value)
			if err != nil {
				return err
			}
			if err := d.Set(k, v); err != nil {
				return err
			}
			return in.checkLen(d.Len())
		})
		if err != nil {
			return nil, err
		}
		return d, nil

	case *Starred:
		return nil, Errorf(TypeError, "can't use starred expression here")

	case *SliceExpr:
		return nil, Errorf(TypeError, "slice is not allowed here")
	}
	return nil, Errorf(FeatureNotAvailable, "unsupported expression %T", e)
}

func (in *Interpreter) evalAll(ctx context.Context, sc *scope, exprs []Expr) ([]Value, error) {
	out := make([]Value, 0, len(exprs))
	for _, e := range exprs {
		v, err := in.eval(ctx, sc, e)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (in *Interpreter) evalCall(ctx context.Context, sc *scope, c *CallExpr) (Value, error) {
	fn, err := in.eval(ctx, sc, c.Func)
	if err != nil {
		return nil, err
	}
	var args []Value
	for _, a := range c.Args {
		if st, ok := a.(*Starred); ok {
			v, err := in.eval(ctx, sc, st.Value)
			if err != nil {
				return nil, err
			}
			items, err := in.iterate(v)
			if err != nil {
				return nil, err
			}
			args = append(args, items...)
			continue
		}
		v, err := in.eval(ctx, sc, a)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	var kwargs map[string]Value
	if len(c.Keywords) > 0 {
		kwargs = make(map[string]Value, len(c.Keywords))
		for _, kw := range c.Keywords {
			if _, dup := kwargs[kw.Name]; dup {
				return nil, Errorf(TypeError, "keyword argument repeated: %s", kw.Name)
			}
			v, err := in.eval(ctx, sc, kw.Value)
			if err != nil {
				return nil, err
			}
			kwargs[kw.Name] = v
		}
	}
	return in.Call(ctx, fn, args, kwargs)
}

// comprehend runs emit once per combination of the generators' items.
func (in *Interpreter) comprehend(ctx context.Context, sc *scope, gens []Comprehension, emit func(*scope) error) error {
	if len(gens) == 0 {
		return emit(sc)
	}
	g := gens[0]
	iter, err := in.eval(ctx, sc, g.Iter)
	if err != nil {
		return err
	}
	items, err := in.iterate(iter)
	if err != nil {
		return err
	}
outer:
	for _, item := range items {
		if err := in.loopTick(); err != nil {
			return err
		}
		if err := in.assign(ctx, sc, g.Target, item); err != nil {
			return err
		}
		for _, cond := range g.Ifs {
			ok, err := in.eval(ctx, sc, cond)
			if err != nil {
				return err
			}
			if !Truthy(ok) {
				continue outer
			}
		}
		if err := in.comprehend(ctx, sc, gens[1:], emit); err != nil {
			return err
		}
	}
	return nil
}

func (in *Interpreter) evalFString(ctx context.Context, sc *scope, f *FString) (Value, error) {
	var b strings.Builder
	for _, part := range f.Parts {
		fv, ok := part.(*FormattedValue)
		if !ok {
			v, err := in.eval(ctx, sc, part)
			if err != nil {
				return nil, err
			}
			b.WriteString(Str(v))
			continue
		}
		v, err := in.eval(ctx, sc, fv.Value)
		if err != nil {
			return nil, err
		}
		switch fv.Conv {
		case 'r', 'a':
			v = Repr(v)
		case 's':
			v = Str(v)
		}
		s, err := FormatValue(v, fv.Spec)
		if err != nil {
			return nil, err
		}
		b.WriteString(s)
		if err := in.checkLen(b.Len()); err != nil {
			return nil, err
		}
	}
	return b.String(), nil
}

// iterate returns the items of an iterable value. Lists are copied so the
// loop body may mutate them.
func (in *Interpreter) iterate(v Value) ([]Value, error) {
	switch x := v.(type) {
	case *List:
		return append([]Value(nil), x.Items...), nil
	case string:
		out := make([]Value, 0, len(x))
		for _, r := range x {
			out = append(out, string(r))
		}
		return out, nil
	case *Dict:
		return x.Keys(), nil
	case Iterable:
		return x.Items(), nil
	}
	return nil, typeErrorf("'%s' object is not iterable", TypeName(v))
}

// Iterate exposes iterate to host builtins.
func (in *Interpreter) Iterate(v Value) ([]Value, error) {
	return in.iterate(v)
}

func (in *Interpreter) getItem(obj, idx Value) (Value, error) {
	switch x := obj.(type) {
	case *List:
		i, err := seqIndex(idx, len(x.Items), "list")
		if err != nil {
			return nil, err
		}
		return x.Items[i], nil
	case string:
		runes := []rune(x)
		i, err := seqIndex(idx, len(runes), "string")
		if err != nil {
			return nil, err
		}
		return string(runes[i]), nil
	case *Dict:
		v, ok, err := x.Get(idx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, Errorf(KeyError, "%s", Repr(idx))
		}
		return v, nil
	case Iterable:
		items := x.Items()
		i, err := seqIndex(idx, len(items), TypeName(obj))
		if err != nil {
			return nil, err
		}
		return items[i], nil
	}
	return nil, typeErrorf("'%s' object is not subscriptable", TypeName(obj))
}

func seqIndex(idx Value, n int, what string) (int, error) {
	i, err := toInt(idx)
	if err != nil {
		return 0, typeErrorf("%s indices must be integers, not %s", what, TypeName(idx))
	}
	if i < 0 {
		i += int64(n)
	}
	if i < 0 || i >= int64(n) {
		return 0, Errorf(IndexError, "%s index out of range", what)
	}
	return int(i), nil
}

func setItem(obj, idx, v Value) error {
	switch x := obj.(type) {
	case *List:
		i, err := seqIndex(idx, len(x.Items), "list assignment")
		if err != nil {
			return err
		}
		x.Items[i] = v
		return nil
	case *Dict:
		return x.Set(idx, v)
	}
	return typeErrorf("'%s' object does not support item assignment", TypeName(obj))
}

func (in *Interpreter) evalSlice(ctx context.Context, sc *scope, obj Value, sl *SliceExpr) (Value, error) {
	bound := func(e Expr) (*int64, error) {
		if e == nil {
			return nil, nil
		}
		v, err := in.eval(ctx, sc, e)
		if err != nil || v == nil {
			return nil, err
		}
		i, err := toInt(v)
		if err != nil {
			return nil, typeErrorf("slice indices must be integers or None")
		}
		return &i, nil
	}
	lo, err := bound(sl.Lower)
	if err != nil {
		return nil, err
	}
	hi, err := bound(sl.Upper)
	if err != nil {
		return nil, err
	}
	step, err := bound(sl.Step)
	if err != nil {
		return nil, err
	}

	switch x := obj.(type) {
	case *List:
		idx, err := sliceIndices(len(x.Items), lo, hi, step)
		if err != nil {
			return nil, err
		}
		out := make([]Value, len(idx))
		for i, j := range idx {
			out[i] = x.Items[j]
		}
		return NewList(out...), nil
	case string:
		runes := []rune(x)
		idx, err := sliceIndices(len(runes), lo, hi, step)
		if err != nil {
			return nil, err
		}
		out := make([]rune, len(idx))
		for i, j := range idx {
			out[i] = runes[j]
		}
		return string(out), nil
	}
	return nil, typeErrorf("'%s' object is not subscriptable", TypeName(obj))
}

// sliceIndices resolves Python slice bounds against a sequence of length n.
func sliceIndices(n int, lo, hi, step *int64) ([]int, error) {
	st := int64(1)
	if step != nil {
		st = *step
	}
	if st == 0 {
		return nil, valueErrorf("slice step cannot be zero")
	}
	length := int64(n)
	// Any stride longer than the sequence selects at most one item.
	st = max(min(st, length+1), -(length + 1))
	clamp := func(p *int64, def, min, max int64) int64 {
		if p == nil {
			return def
		}
		v := *p
		if v < 0 {
			v += length
			if v < min {
				v = min
			}
		} else if v > max {
			v = max
		}
		return v
	}
	var start, stop int64
	if st > 0 {
		start = clamp(lo, 0, 0, length)
		stop = clamp(hi, length, 0, length)
	} else {
		start = clamp(lo, length-1, -1, length-1)
		stop = clamp(hi, -1, -1, length-1)
	}
	var out []int
	for i := start; (st > 0 && i < stop) || (st < 0 && i > stop); i += st {
		out = append(out, int(i))
	}
	return out, nil
}

func (in *Interpreter) contains(container, item Value) (bool, error) {
	switch x := container.(type) {
	case string:
		s, ok := item.(string)
		if !ok {
			return false, typeErrorf("'in <string>' requires string as left operand, not %s", TypeName(item))
		}
		return strings.Contains(x, s), nil
	case *Dict:
		_, ok, err := x.Get(item)
		return ok, err
	}
	items, err := in.iterate(container)
	if err != nil {
		return false, typeErrorf("argument of type '%s' is not iterable", TypeName(container))
	}
	for _, v := range items {
		if Equal(v, item) {
			return true, nil
		}
	}
	return false, nil
}

func (in *Interpreter) getAttr(obj Value, name string) (Value, error) {
	var (
		v  Value
		ok bool
	)
	switch x := obj.(type) {
	case string:
		v, ok = in.strMethod(x, name)
	case *List:
		v, ok = in.listMethod(x, name)
	case *Dict:
		v, ok = in.dictMethod(x, name)
	case HostObject:
		v, ok = x.Attr(name)
	}
	if !ok {
		return nil, Errorf(AttributeError, "'%s' object has no attribute '%s'", TypeName(obj), name)
	}
	return v, nil
}

func method(name string, fn BuiltinFunc) (Value, bool) {
	return NewBuiltin(name, fn), true
}

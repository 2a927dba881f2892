package draconic

import (
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
)

func registerBuiltins(in *Interpreter) {
	for name, fn := range map[string]BuiltinFunc{
		"abs":         builtinAbs,
		"all":         builtinAll,
		"any":         builtinAny,
		"bool":        builtinBool,
		"ceil":        builtinCeil,
		"dict":        builtinDict,
		"enumerate":   builtinEnumerate,
		"err":         builtinErr,
		"float":       builtinFloat,
		"floor":       builtinFloor,
		"int":         builtinInt,
		"len":         builtinLen,
		"list":        builtinList,
		"max":         builtinMax,
		"min":         builtinMin,
		"rand":        builtinRand,
		"randchoice":  builtinRandChoice,
		"randchoices": builtinRandChoices,
		"randint":     builtinRandInt,
		"range":       builtinRange,
		"reversed":    builtinReversed,
		"round":       builtinRound,
		"sorted":      builtinSorted,
		"sqrt":        builtinSqrt,
		"str":         builtinStr,
		"sum":         builtinSum,
		"time":        builtinTime,
		"typeof":      builtinTypeof,
		"zip":         builtinZip,
		"print":       builtinPrint,
		"set":         builtinSet,
		"load_json":   builtinLoadJSON,
		"dump_json":   builtinDumpJSON,
		"load_yaml":   builtinLoadYAML,
		"dump_yaml":   builtinDumpYAML,
	} {
		in.Register(name, fn)
	}
}

func builtinAbs(c *Call) (Value, error) {
	if err := c.ArgCount(1, 1); err != nil {
		return nil, err
	}
	switch x := c.Args[0].(type) {
	case bool, int64:
		i, _ := intLike(x)
		if i < 0 {
			return unaryOp("-", i)
		}
		return i, nil
	case float64:
		return math.Abs(x), nil
	}
	return nil, typeErrorf("bad operand type for abs(): '%s'", TypeName(c.Args[0]))
}

func builtinAll(c *Call) (Value, error) {
	if err := c.ArgCount(1, 1); err != nil {
		return nil, err
	}
	items, err := c.Interp.iterate(c.Args[0])
	if err != nil {
		return nil, err
	}
	for _, v := range items {
		if !Truthy(v) {
			return false, nil
		}
	}
	return true, nil
}

func builtinAny(c *Call) (Value, error) {
	if err := c.ArgCount(1, 1); err != nil {
		return nil, err
	}
	items, err := c.Interp.iterate(c.Args[0])
	if err != nil {
		return nil, err
	}
	for _, v := range items {
		if Truthy(v) {
			return true, nil
		}
	}
	return false, nil
}

func builtinBool(c *Call) (Value, error) {
	if err := c.ArgCount(0, 1); err != nil {
		return nil, err
	}
	if len(c.Args) == 0 {
		return false, nil
	}
	return Truthy(c.Args[0]), nil
}

func floatArg(c *Call, i int, name string) (float64, error) {
	v, err := c.Require(i, name)
	if err != nil {
		return 0, err
	}
	f, ok := toFloat(v)
	if !ok {
		return 0, typeErrorf("must be real number, not %s", TypeName(v))
	}
	return f, nil
}

func floatToInt(f float64) (Value, error) {
	if math.IsInf(f, 0) {
		return nil, Errorf(OverflowError, "cannot convert float infinity to integer")
	}
	if math.IsNaN(f) {
		return nil, valueErrorf("cannot convert float NaN to integer")
	}
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return nil, overflow()
	}
	return int64(f), nil
}

func builtinCeil(c *Call) (Value, error) {
	if err := c.ArgCount(1, 1); err != nil {
		return nil, err
	}
	if i, ok := intLike(c.Args[0]); ok {
		return i, nil
	}
	f, err := floatArg(c, 0, "x")
	if err != nil {
		return nil, err
	}
	return floatToInt(math.Ceil(f))
}

func builtinFloor(c *Call) (Value, error) {
	if err := c.ArgCount(1, 1); err != nil {
		return nil, err
	}
	if i, ok := intLike(c.Args[0]); ok {
		return i, nil
	}
	f, err := floatArg(c, 0, "x")
	if err != nil {
		return nil, err
	}
	return floatToInt(math.Floor(f))
}

func builtinSqrt(c *Call) (Value, error) {
	if err := c.ArgCount(1, 1); err != nil {
		return nil, err
	}
	f, err := floatArg(c, 0, "x")
	if err != nil {
		return nil, err
	}
	if f < 0 {
		return nil, valueErrorf("math domain error")
	}
	return math.Sqrt(f), nil
}

func builtinDict(c *Call) (Value, error) {
	if err := c.ArgCount(0, 1); err != nil {
		return nil, err
	}
	d := NewDict()
	if len(c.Args) == 1 {
		switch src := c.Args[0].(type) {
		case *Dict:
			d = src.copy()
		default:
			items, err := c.Interp.iterate(src)
			if err != nil {
				return nil, err
			}
			for i, item := range items {
				pair, err := c.Interp.iterate(item)
				if err != nil || len(pair) != 2 {
					return nil, valueErrorf("dictionary update sequence element #%d has wrong length", i)
				}
				if err := d.Set(pair[0], pair[1]); err != nil {
					return nil, err
				}
			}
		}
	}
	for _, k := range sortedKeys(c.Kwargs) {
		d.SetString(k, c.Kwargs[k])
	}
	return d, nil
}

func sortedKeys(m map[string]Value) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func builtinEnumerate(c *Call) (Value, error) {
	v, err := c.Require(0, "iterable")
	if err != nil {
		return nil, err
	}
	start, err := c.OptInt(1, "start", 0)
	if err != nil {
		return nil, err
	}
	items, err := c.Interp.iterate(v)
	if err != nil {
		return nil, err
	}
	out := make([]Value, len(items))
	for i, item := range items {
		out[i] = NewList(start+int64(i), item)
	}
	return NewList(out...), nil
}

func builtinErr(c *Call) (Value, error) {
	v, err := c.Require(0, "reason")
	if err != nil {
		return nil, err
	}
	pm, _ := c.Arg(1, "pm_user")
	return nil, &UserAbort{Message: Str(v), PrivateMessage: Truthy(pm)}
}

func builtinFloat(c *Call) (Value, error) {
	if err := c.ArgCount(0, 1); err != nil {
		return nil, err
	}
	if len(c.Args) == 0 {
		return 0.0, nil
	}
	switch x := c.Args[0].(type) {
	case string:
		s := strings.ToLower(strings.TrimSpace(x))
		switch s {
		case "inf", "+inf", "infinity":
			return math.Inf(1), nil
		case "-inf", "-infinity":
			return math.Inf(-1), nil
		case "nan":
			return math.NaN(), nil
		}
		f, err := strconv.ParseFloat(strings.ReplaceAll(s, "_", ""), 64)
		if err != nil {
			return nil, valueErrorf("could not convert string to float: %s", quote(x))
		}
		return f, nil
	default:
		if f, ok := toFloat(x); ok {
			return f, nil
		}
	}
	return nil, typeErrorf("float() argument must be a string or a number, not '%s'", TypeName(c.Args[0]))
}

func builtinInt(c *Call) (Value, error) {
	if err := c.ArgCount(0, 2); err != nil {
		return nil, err
	}
	if len(c.Args) == 0 {
		return int64(0), nil
	}
	base, err := c.OptInt(1, "base", 10)
	if err != nil {
		return nil, err
	}
	switch x := c.Args[0].(type) {
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(x), "_", "")
		i, err := strconv.ParseInt(s, int(base), 64)
		if err != nil {
			if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
				return nil, overflow()
			}
			return nil, valueErrorf("invalid literal for int() with base %d: %s", base, quote(x))
		}
		return i, nil
	case float64:
		return floatToInt(math.Trunc(x))
	case bool, int64:
		i, _ := intLike(x)
		return i, nil
	}
	return nil, typeErrorf("int() argument must be a string or a number, not '%s'", TypeName(c.Args[0]))
}

func builtinLen(c *Call) (Value, error) {
	if err := c.ArgCount(1, 1); err != nil {
		return nil, err
	}
	switch x := c.Args[0].(type) {
	case string:
		return int64(len([]rune(x))), nil
	case *List:
		return int64(len(x.Items)), nil
	case *Dict:
		return int64(x.Len()), nil
	case Iterable:
		return int64(len(x.Items())), nil
	}
	return nil, typeErrorf("object of type '%s' has no len()", TypeName(c.Args[0]))
}

func builtinList(c *Call) (Value, error) {
	if err := c.ArgCount(0, 1); err != nil {
		return nil, err
	}
	if len(c.Args) == 0 {
		return NewList(), nil
	}
	items, err := c.Interp.iterate(c.Args[0])
	if err != nil {
		return nil, err
	}
	return NewList(items...), nil
}

// extremum implements min and max; want is the sign of compare that wins.
func extremum(c *Call, want int) (Value, error) {
	var items []Value
	switch len(c.Args) {
	case 0:
		return nil, typeErrorf("%s expected at least 1 argument, got 0", c.Name)
	case 1:
		var err error
		if items, err = c.Interp.iterate(c.Args[0]); err != nil {
			return nil, err
		}
	default:
		items = c.Args
	}
	if len(items) == 0 {
		if def, ok := c.Kwargs["default"]; ok {
			return def, nil
		}
		return nil, valueErrorf("%s() arg is an empty sequence", c.Name)
	}
	key := c.Kwargs["key"]
	keyOf := func(v Value) (Value, error) {
		if key == nil {
			return v, nil
		}
		return c.Interp.Call(c.Ctx, key, []Value{v}, nil)
	}
	best := items[0]
	bestKey, err := keyOf(best)
	if err != nil {
		return nil, err
	}
	for _, v := range items[1:] {
		k, err := keyOf(v)
		if err != nil {
			return nil, err
		}
		cmp, err := compare(k, bestKey)
		if err != nil {
			return nil, err
		}
		if cmp == want {
			best, bestKey = v, k
		}
	}
	return best, nil
}

func builtinMax(c *Call) (Value, error) { return extremum(c, 1) }
func builtinMin(c *Call) (Value, error) { return extremum(c, -1) }

func builtinRand(c *Call) (Value, error) {
	if err := c.ArgCount(0, 0); err != nil {
		return nil, err
	}
	return float64(c.Interp.src.Intn(1<<53)) / (1 << 53), nil
}

func builtinRandChoice(c *Call) (Value, error) {
	if err := c.ArgCount(1, 1); err != nil {
		return nil, err
	}
	items, err := c.Interp.iterate(c.Args[0])
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, Errorf(IndexError, "cannot choose from an empty sequence")
	}
	return items[c.Interp.src.Intn(len(items))], nil
}

func builtinRandChoices(c *Call) (Value, error) {
	pop, err := c.Require(0, "population")
	if err != nil {
		return nil, err
	}
	items, err := c.Interp.iterate(pop)
	if err != nil {
		return nil, err
	}
	k, err := c.OptInt(-1, "k", 1)
	if err != nil {
		return nil, err
	}
	if k < 0 {
		return nil, valueErrorf("k must be non-negative")
	}
	if k > int64(c.Interp.limits.MaxIterLength) {
		return nil, limitf(IterableTooLong, "k larger than %d", c.Interp.limits.MaxIterLength)
	}
	if len(items) == 0 {
		return nil, Errorf(IndexError, "cannot choose from an empty population")
	}

	var cum []float64
	if w, ok := c.Arg(1, "weights"); ok && w != nil {
		ws, err := c.Interp.iterate(w)
		if err != nil {
			return nil, err
		}
		if len(ws) != len(items) {
			return nil, valueErrorf("the number of weights does not match the population")
		}
		total := 0.0
		for _, x := range ws {
			f, ok := toFloat(x)
			if !ok {
				return nil, typeErrorf("weights must be numbers")
			}
			total += f
			cum = append(cum, total)
		}
		if total <= 0 {
			return nil, valueErrorf("total of weights must be greater than zero")
		}
	}

	out := make([]Value, 0, k)
	for range k {
		if cum == nil {
			out = append(out, items[c.Interp.src.Intn(len(items))])
			continue
		}
		r := float64(c.Interp.src.Intn(1<<53)) / (1 << 53) * cum[len(cum)-1]
		i, _ := slices.BinarySearch(cum, r)
		for i < len(cum)-1 && cum[i] <= r {
			i++
		}
		out = append(out, items[i])
	}
	return NewList(out...), nil
}

// builtinRandInt returns a random integer in [start, stop), or [0, start)
// with one argument.
func builtinRandInt(c *Call) (Value, error) {
	if err := c.ArgCount(1, 3); err != nil {
		return nil, err
	}
	start, err := c.Int(0, "start")
	if err != nil {
		return nil, err
	}
	stop, hasStop := int64(0), len(c.Args) > 1
	if hasStop {
		if stop, err = c.Int(1, "stop"); err != nil {
			return nil, err
		}
	} else {
		start, stop = 0, start
	}
	step, err := c.OptInt(2, "step", 1)
	if err != nil {
		return nil, err
	}
	n, err := rangeLen(start, stop, step)
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, valueErrorf("empty range for randint(%d, %d)", start, stop)
	}
	if n > math.MaxInt32 {
		return nil, limitf(NumberTooHigh, "randint range too large")
	}
	return start + step*int64(c.Interp.src.Intn(int(n))), nil
}

// rangeLen is ceil((stop-start)/step), clamped at zero. The distance is
// taken in uint64 so extreme bounds cannot wrap negative.
func rangeLen(start, stop, step int64) (int64, error) {
	if step == 0 {
		return 0, valueErrorf("range() arg 3 must not be zero")
	}
	var dist, stride uint64
	switch {
	case step > 0 && start < stop:
		dist, stride = uint64(stop)-uint64(start), uint64(step)
	case step < 0 && start > stop:
		dist, stride = uint64(start)-uint64(stop), uint64(-(step+1))+1
	default:
		return 0, nil
	}
	n := (dist-1)/stride + 1
	if n > math.MaxInt64 {
		return math.MaxInt64, nil
	}
	return int64(n), nil
}

func builtinRange(c *Call) (Value, error) {
	if err := c.ArgCount(1, 3); err != nil {
		return nil, err
	}
	var start, stop, step int64 = 0, 0, 1
	var err error
	if len(c.Args) == 1 {
		if stop, err = c.Int(0, "stop"); err != nil {
			return nil, err
		}
	} else {
		if start, err = c.Int(0, "start"); err != nil {
			return nil, err
		}
		if stop, err = c.Int(1, "stop"); err != nil {
			return nil, err
		}
		if step, err = c.OptInt(2, "step", 1); err != nil {
			return nil, err
		}
	}
	n, err := rangeLen(start, stop, step)
	if err != nil {
		return nil, err
	}
	if n > int64(c.Interp.limits.MaxIterLength) {
		return nil, limitf(IterableTooLong, "range of %d items is longer than %d", n, c.Interp.limits.MaxIterLength)
	}
	out := make([]Value, n)
	for i := range n {
		out[i] = start + i*step
	}
	return NewList(out...), nil
}

func builtinReversed(c *Call) (Value, error) {
	if err := c.ArgCount(1, 1); err != nil {
		return nil, err
	}
	items, err := c.Interp.iterate(c.Args[0])
	if err != nil {
		return nil, err
	}
	slices.Reverse(items)
	return NewList(items...), nil
}

func builtinRound(c *Call) (Value, error) {
	if err := c.ArgCount(1, 2); err != nil {
		return nil, err
	}
	v := c.Args[0]
	nd, hasDigits := c.Arg(1, "ndigits")
	if hasDigits && nd != nil {
		digits, err := toInt(nd)
		if err != nil {
			return nil, err
		}
		if i, ok := intLike(v); ok {
			if digits >= 0 {
				return i, nil
			}
			if digits < -19 {
				return int64(0), nil
			}
			p := math.Pow(10, float64(-digits))
			return floatToInt(math.RoundToEven(float64(i)/p) * p)
		}
		f, ok := toFloat(v)
		if !ok {
			return nil, typeErrorf("type %s doesn't define __round__ method", TypeName(v))
		}
		if digits > 323 || math.IsInf(f, 0) || math.IsNaN(f) {
			return f, nil
		}
		if digits < -308 {
			return math.Copysign(0, f), nil
		}
		p := math.Pow(10, float64(digits))
		scaled := f * p
		if math.IsInf(scaled, 0) || math.IsNaN(scaled) {
			return f, nil
		}
		return math.RoundToEven(scaled) / p, nil
	}
	if i, ok := intLike(v); ok {
		return i, nil
	}
	f, ok := toFloat(v)
	if !ok {
		return nil, typeErrorf("type %s doesn't define __round__ method", TypeName(v))
	}
	return floatToInt(math.RoundToEven(f))
}

func builtinSorted(c *Call) (Value, error) {
	if err := c.ArgCount(1, 1); err != nil {
		return nil, err
	}
	items, err := c.Interp.iterate(c.Args[0])
	if err != nil {
		return nil, err
	}
	if err := c.Interp.sortValues(c, items, c.Kwargs["key"], Truthy(c.Kwargs["reverse"])); err != nil {
		return nil, err
	}
	return NewList(items...), nil
}

// sortValues stably sorts items in place, optionally by key(item).
func (in *Interpreter) sortValues(c *Call, items []Value, key Value, reverse bool) error {
	keys := items
	if key != nil {
		keys = make([]Value, len(items))
		for i, v := range items {
			k, err := in.Call(c.Ctx, key, []Value{v}, nil)
			if err != nil {
				return err
			}
			keys[i] = k
		}
	}
	idx := make([]int, len(items))
	for i := range idx {
		idx[i] = i
	}
	var sortErr error
	slices.SortStableFunc(idx, func(a, b int) int {
		cmp, err := compare(keys[a], keys[b])
		if err != nil && sortErr == nil {
			sortErr = err
		}
		if reverse {
			return -cmp
		}
		return cmp
	})
	if sortErr != nil {
		return sortErr
	}
	sorted := make([]Value, len(items))
	for i, j := range idx {
		sorted[i] = items[j]
	}
	copy(items, sorted)
	return nil
}

func builtinStr(c *Call) (Value, error) {
	if err := c.ArgCount(0, 1); err != nil {
		return nil, err
	}
	if len(c.Args) == 0 {
		return "", nil
	}
	s := Str(c.Args[0])
	if err := c.Interp.checkLen(len(s)); err != nil {
		return nil, err
	}
	return s, nil
}

func builtinSum(c *Call) (Value, error) {
	if err := c.ArgCount(1, 2); err != nil {
		return nil, err
	}
	items, err := c.Interp.iterate(c.Args[0])
	if err != nil {
		return nil, err
	}
	acc, ok := c.Arg(1, "start")
	if !ok {
		acc = int64(0)
	}
	if _, isStr := acc.(string); isStr {
		return nil, typeErrorf("sum() can't sum strings [use ''.join(seq) instead]")
	}
	for _, v := range items {
		if acc, err = c.Interp.binaryOp("+", acc, v); err != nil {
			return nil, err
		}
	}
	return acc, nil
}

func builtinTime(c *Call) (Value, error) {
	if err := c.ArgCount(0, 0); err != nil {
		return nil, err
	}
	return float64(time.Now().UnixNano()) / 1e9, nil
}

func builtinTypeof(c *Call) (Value, error) {
	if err := c.ArgCount(1, 1); err != nil {
		return nil, err
	}
	return TypeName(c.Args[0]), nil
}

func builtinZip(c *Call) (Value, error) {
	if len(c.Args) == 0 {
		return NewList(), nil
	}
	cols := make([][]Value, len(c.Args))
	n := math.MaxInt
	for i, a := range c.Args {
		items, err := c.Interp.iterate(a)
		if err != nil {
			return nil, err
		}
		cols[i] = items
		n = min(n, len(items))
	}
	out := make([]Value, n)
	for i := range n {
		row := make([]Value, len(cols))
		for j := range cols {
			row[j] = cols[j][i]
		}
		out[i] = NewList(row...)
	}
	return NewList(out...), nil
}

func builtinPrint(c *Call) (Value, error) {
	sep, err := optKwStr(c, "sep", " ")
	if err != nil {
		return nil, err
	}
	end, err := optKwStr(c, "end", "\n")
	if err != nil {
		return nil, err
	}
	parts := make([]string, len(c.Args))
	for i, a := range c.Args {
		parts[i] = Str(a)
	}
	return nil, c.Interp.Print(strings.Join(parts, sep) + end)
}

func optKwStr(c *Call, name, def string) (string, error) {
	v, ok := c.Kwargs[name]
	if !ok || v == nil {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", typeErrorf("%s must be None or a string, not %s", name, TypeName(v))
	}
	return s, nil
}

// builtinSet is the deprecated set(name, value); assignment is preferred.
func builtinSet(c *Call) (Value, error) {
	if err := c.ArgCount(2, 2); err != nil {
		return nil, err
	}
	name, err := c.Str(0, "name")
	if err != nil {
		return nil, err
	}
	c.Interp.Warn("set() is deprecated, use assignment instead")
	return nil, c.Interp.SetName(name, c.Args[1])
}

package draconic

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// Value is any draconic runtime value: nil, bool, int64, float64, string,
// *List, *Dict, *Function, *Builtin or a HostObject.
type Value = any

// HostObject exposes a fixed attribute table to scripts. Methods are returned
// from Attr as *Builtin values.
type HostObject interface {
	TypeName() string
	Attr(name string) (Value, bool)
}

// Iterable is implemented by host objects that can be looped over.
type Iterable interface {
	Items() []Value
}

// List is a mutable sequence (SafeList).
type List struct {
	Items []Value
}

// NewList returns a List holding items.
func NewList(items ...Value) *List {
	return &List{Items: items}
}

type dictEntry struct {
	key   Value
	value Value
}

// Dict is an insertion-ordered mapping (SafeDict).
type Dict struct {
	entries []dictEntry
	index   map[any]int
}

// NewDict returns an empty Dict.
func NewDict() *Dict {
	return &Dict{index: make(map[any]int)}
}

// hashKey normalizes a key so that equal numbers share one slot.
func hashKey(k Value) (any, error) {
	switch v := k.(type) {
	case nil, string, int64:
		return v, nil
	case bool:
		if v {
			return int64(1), nil
		}
		return int64(0), nil
	case float64:
		if v == math.Trunc(v) && !math.IsInf(v, 0) && math.Abs(v) < 1<<62 {
			return int64(v), nil
		}
		return v, nil
	}
	return nil, typeErrorf("unhashable type: '%s'", TypeName(k))
}

// Len returns the number of entries.
func (d *Dict) Len() int { return len(d.entries) }

// Get looks up k.
func (d *Dict) Get(k Value) (Value, bool, error) {
	h, err := hashKey(k)
	if err != nil {
		return nil, false, err
	}
	i, ok := d.index[h]
	if !ok {
		return nil, false, nil
	}
	return d.entries[i].value, true, nil
}

// Set inserts or replaces k, keeping the original insertion position.
func (d *Dict) Set(k, v Value) error {
	h, err := hashKey(k)
	if err != nil {
		return err
	}
	if i, ok := d.index[h]; ok {
		d.entries[i].value = v
		return nil
	}
	d.index[h] = len(d.entries)
	d.entries = append(d.entries, dictEntry{key: k, value: v})
	return nil
}

// SetString is Set for string keys, which cannot fail.
func (d *Dict) SetString(k string, v Value) {
	_ = d.Set(k, v)
}

// Delete removes k and reports whether it was present.
func (d *Dict) Delete(k Value) (bool, error) {
	h, err := hashKey(k)
	if err != nil {
		return false, err
	}
	i, ok := d.index[h]
	if !ok {
		return false, nil
	}
	d.entries = slices.Delete(d.entries, i, i+1)
	delete(d.index, h)
	for j := i; j < len(d.entries); j++ {
		hk, _ := hashKey(d.entries[j].key)
		d.index[hk] = j
	}
	return true, nil
}

// Keys returns the keys in insertion order.
func (d *Dict) Keys() []Value {
	out := make([]Value, len(d.entries))
	for i, e := range d.entries {
		out[i] = e.key
	}
	return out
}

// Values returns the values in insertion order.
func (d *Dict) Values() []Value {
	out := make([]Value, len(d.entries))
	for i, e := range d.entries {
		out[i] = e.value
	}
	return out
}

func (d *Dict) clear() {
	d.entries = nil
	d.index = make(map[any]int)
}

func (d *Dict) copy() *Dict {
	c := &Dict{entries: slices.Clone(d.entries), index: make(map[any]int, len(d.index))}
	for k, v := range d.index {
		c.index[k] = v
	}
	return c
}

// Function is a user-defined function closed over its defining scope.
type Function struct {
	def      *FunctionDef
	defaults []Value
	closure  *scope
}

// Name returns the function's name.
func (f *Function) Name() string { return f.def.Name }

// Call holds the arguments passed to a builtin.
type Call struct {
	Ctx    context.Context
	Interp *Interpreter
	Name   string
	Args   []Value
	Kwargs map[string]Value
}

// BuiltinFunc implements a builtin function or bound method.
type BuiltinFunc func(c *Call) (Value, error)

// Builtin is a native function exposed to scripts.
type Builtin struct {
	Name string
	Fn   BuiltinFunc
}

// NewBuiltin wraps fn as a named builtin.
func NewBuiltin(name string, fn BuiltinFunc) *Builtin {
	return &Builtin{Name: name, Fn: fn}
}

// Arg returns positional argument i, falling back to keyword name. A
// negative i makes the argument keyword-only.
func (c *Call) Arg(i int, name string) (Value, bool) {
	if i >= 0 && i < len(c.Args) {
		return c.Args[i], true
	}
	if name != "" {
		v, ok := c.Kwargs[name]
		return v, ok
	}
	return nil, false
}

// Require is Arg that fails when the argument is missing.
func (c *Call) Require(i int, name string) (Value, error) {
	v, ok := c.Arg(i, name)
	if !ok {
		return nil, typeErrorf("%s() missing required argument '%s' (pos %d)", c.Name, name, i+1)
	}
	return v, nil
}

// ArgCount fails unless between min and max positional arguments were passed.
func (c *Call) ArgCount(minArgs, maxArgs int) error {
	n := len(c.Args)
	if n < minArgs || (maxArgs >= 0 && n > maxArgs) {
		if minArgs == maxArgs {
			return typeErrorf("%s() takes exactly %d argument(s) (%d given)", c.Name, minArgs, n)
		}
		return typeErrorf("%s() takes from %d to %d arguments (%d given)", c.Name, minArgs, maxArgs, n)
	}
	return nil
}

// Int returns argument i as an int64.
func (c *Call) Int(i int, name string) (int64, error) {
	v, err := c.Require(i, name)
	if err != nil {
		return 0, err
	}
	return toInt(v)
}

// Str returns argument i, which must be a str.
func (c *Call) Str(i int, name string) (string, error) {
	v, err := c.Require(i, name)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", typeErrorf("%s() argument '%s' must be str, not %s", c.Name, name, TypeName(v))
	}
	return s, nil
}

// OptStr returns argument i as a string, or def if absent or None.
func (c *Call) OptStr(i int, name, def string) (string, error) {
	v, ok := c.Arg(i, name)
	if !ok || v == nil {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", typeErrorf("%s() argument '%s' must be str, not %s", c.Name, name, TypeName(v))
	}
	return s, nil
}

// OptInt returns argument i as an int64, or def if absent or None.
func (c *Call) OptInt(i int, name string, def int64) (int64, error) {
	v, ok := c.Arg(i, name)
	if !ok || v == nil {
		return def, nil
	}
	return toInt(v)
}

// TypeName returns the script-visible type name of v.
func TypeName(v Value) string {
	switch x := v.(type) {
	case nil:
		return "NoneType"
	case bool:
		return "bool"
	case int64:
		return "int"
	case float64:
		return "float"
	case string:
		return "str"
	case *List:
		return "SafeList"
	case *Dict:
		return "SafeDict"
	case *Function:
		return "function"
	case *Builtin:
		return "builtin_function_or_method"
	case HostObject:
		return x.TypeName()
	}
	return fmt.Sprintf("%T", v)
}

// Truthy implements Python truthiness.
func Truthy(v Value) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case int64:
		return x != 0
	case float64:
		return x != 0
	case string:
		return x != ""
	case *List:
		return len(x.Items) > 0
	case *Dict:
		return x.Len() > 0
	}
	return true
}

// Str renders v the way Python's str() does.
func Str(v Value) string {
	if s, ok := v.(string); ok {
		return s
	}
	return Repr(v)
}

// Repr renders v the way Python's repr() does.
func Repr(v Value) string {
	var b strings.Builder
	writeRepr(&b, v, 0)
	return b.String()
}

func writeRepr(b *strings.Builder, v Value, depth int) {
	if depth > 50 {
		b.WriteString("...")
		return
	}
	switch x := v.(type) {
	case nil:
		b.WriteString("None")
	case bool:
		if x {
			b.WriteString("True")
		} else {
			b.WriteString("False")
		}
	case int64:
		b.WriteString(strconv.FormatInt(x, 10))
	case float64:
		b.WriteString(formatFloat(x))
	case string:
		b.WriteString(quote(x))
	case *List:
		b.WriteByte('[')
		for i, item := range x.Items {
			if i > 0 {
				b.WriteString(", ")
			}
			writeRepr(b, item, depth+1)
		}
		b.WriteByte(']')
	case *Dict:
		b.WriteByte('{')
		for i, e := range x.entries {
			if i > 0 {
				b.WriteString(", ")
			}
			writeRepr(b, e.key, depth+1)
			b.WriteString(": ")
			writeRepr(b, e.value, depth+1)
		}
		b.WriteByte('}')
	case *Function:
		fmt.Fprintf(b, "<function %s>", x.def.Name)
	case *Builtin:
		fmt.Fprintf(b, "<built-in function %s>", x.Name)
	case fmt.Stringer:
		b.WriteString(x.String())
	case HostObject:
		fmt.Fprintf(b, "<%s>", x.TypeName())
	default:
		fmt.Fprintf(b, "%v", x)
	}
}

// formatFloat renders f like Python's float repr.
func formatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	}
	abs := math.Abs(f)
	if abs != 0 && (abs >= 1e16 || abs < 1e-4) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".") {
		s += ".0"
	}
	return s
}

// quote renders s as a Python string literal.
func quote(s string) string {
	q := byte('\'')
	if strings.ContainsRune(s, '\'') && !strings.ContainsRune(s, '"') {
		q = '"'
	}
	var b strings.Builder
	b.WriteByte(q)
	for _, r := range s {
		switch {
		case r == '\\':
			b.WriteString(`\\`)
		case r == rune(q):
			b.WriteByte('\\')
			b.WriteRune(r)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\t':
			b.WriteString(`\t`)
		case r == '\r':
			b.WriteString(`\r`)
		case r < 0x20 || r == 0x7f:
			fmt.Fprintf(&b, `\x%02x`, r)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte(q)
	return b.String()
}

func isNumber(v Value) bool {
	switch v.(type) {
	case bool, int64, float64:
		return true
	}
	return false
}

func toFloat(v Value) (float64, bool) {
	switch x := v.(type) {
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case int64:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

// toInt converts an int-like value (int or bool) to int64.
func toInt(v Value) (int64, error) {
	switch x := v.(type) {
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case int64:
		return x, nil
	}
	return 0, typeErrorf("'%s' object cannot be interpreted as an integer", TypeName(v))
}

// Equal implements Python ==.
func Equal(a, b Value) bool {
	if isNumber(a) && isNumber(b) {
		ai, aInt := intLike(a)
		bi, bInt := intLike(b)
		if aInt && bInt {
			return ai == bi
		}
		af, _ := toFloat(a)
		bf, _ := toFloat(b)
		return af == bf
	}
	switch x := a.(type) {
	case nil:
		return b == nil
	case string:
		y, ok := b.(string)
		return ok && x == y
	case *List:
		y, ok := b.(*List)
		if !ok || len(x.Items) != len(y.Items) {
			return false
		}
		if x == y {
			return true
		}
		for i := range x.Items {
			if !Equal(x.Items[i], y.Items[i]) {
				return false
			}
		}
		return true
	case *Dict:
		y, ok := b.(*Dict)
		if !ok || x.Len() != y.Len() {
			return false
		}
		for _, e := range x.entries {
			v, found, err := y.Get(e.key)
			if err != nil || !found || !Equal(e.value, v) {
				return false
			}
		}
		return true
	}
	return identical(a, b)
}

func intLike(v Value) (int64, bool) {
	switch x := v.(type) {
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case int64:
		return x, true
	}
	return 0, false
}

// identical implements Python's is.
func identical(a, b Value) (same bool) {
	defer func() {
		if recover() != nil {
			same = false
		}
	}()
	return a == b
}

// compare orders a and b for <, sorting, min and max.
func compare(a, b Value) (int, error) {
	if isNumber(a) && isNumber(b) {
		ai, aInt := intLike(a)
		bi, bInt := intLike(b)
		if aInt && bInt {
			return cmpOrdered(ai, bi), nil
		}
		af, _ := toFloat(a)
		bf, _ := toFloat(b)
		return cmpOrdered(af, bf), nil
	}
	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y), nil
		}
	case *List:
		if y, ok := b.(*List); ok {
			for i := 0; i < len(x.Items) && i < len(y.Items); i++ {
				if Equal(x.Items[i], y.Items[i]) {
					continue
				}
				return compare(x.Items[i], y.Items[i])
			}
			return cmpOrdered(len(x.Items), len(y.Items)), nil
		}
	}
	return 0, typeErrorf("'<' not supported between instances of '%s' and '%s'", TypeName(a), TypeName(b))
}

func cmpOrdered[T int | int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

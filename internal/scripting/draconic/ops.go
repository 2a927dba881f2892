package draconic

import (
	"math"
	"strings"
)

func unsupportedOperands(op string, l, r Value) error {
	return typeErrorf("unsupported operand type(s) for %s: '%s' and '%s'", op, TypeName(l), TypeName(r))
}

func (in *Interpreter) binaryOp(op string, l, r Value) (Value, error) {
	switch op {
	case "+":
		switch x := l.(type) {
		case string:
			if y, ok := r.(string); ok {
				if err := in.checkLen(len(x) + len(y)); err != nil {
					return nil, err
				}
				return x + y, nil
			}
		case *List:
			if y, ok := r.(*List); ok {
				if err := in.checkLen(len(x.Items) + len(y.Items)); err != nil {
					return nil, err
				}
				out := make([]Value, 0, len(x.Items)+len(y.Items))
				out = append(append(out, x.Items...), y.Items...)
				return NewList(out...), nil
			}
		}
	case "*":
		if v, ok, err := in.repeat(l, r); ok || err != nil {
			return v, err
		}
		if v, ok, err := in.repeat(r, l); ok || err != nil {
			return v, err
		}
	case "**":
		return in.power(l, r)
	case "%":
		if s, ok := l.(string); ok {
			return percentFormat(s, r)
		}
	case "&", "|", "^", "<<", ">>":
		return bitwise(op, l, r)
	}
	if !isNumber(l) || !isNumber(r) {
		return nil, unsupportedOperands(op, l, r)
	}
	return arith(op, l, r)
}

// repeat implements seq * n.
func (in *Interpreter) repeat(seq, count Value) (Value, bool, error) {
	n, isInt := intLike(count)
	if !isInt {
		return nil, false, nil
	}
	if n < 0 {
		n = 0
	}
	switch x := seq.(type) {
	case string:
		if len(x) > 0 && n > int64(in.limits.MaxConstLen/len(x)) {
			return nil, true, limitf(TooLong, "string longer than %d characters", in.limits.MaxConstLen)
		}
		return strings.Repeat(x, int(n)), true, nil
	case *List:
		if len(x.Items) == 0 {
			return NewList(), true, nil
		}
		if n > int64(in.limits.MaxIterLength/len(x.Items)) {
			return nil, true, limitf(IterableTooLong, "list longer than %d items", in.limits.MaxIterLength)
		}
		out := make([]Value, 0, len(x.Items)*int(n))
		for range n {
			out = append(out, x.Items...)
		}
		return NewList(out...), true, nil
	}
	return nil, false, nil
}

func arith(op string, l, r Value) (Value, error) {
	a, aInt := intLike(l)
	b, bInt := intLike(r)
	if aInt && bInt {
		return intArith(op, a, b)
	}
	x, _ := toFloat(l)
	y, _ := toFloat(r)
	switch op {
	case "+":
		return x + y, nil
	case "-":
		return x - y, nil
	case "*":
		return x * y, nil
	case "/":
		if y == 0 {
			return nil, Errorf(ZeroDivisionError, "float division by zero")
		}
		return x / y, nil
	case "//":
		if y == 0 {
			return nil, Errorf(ZeroDivisionError, "float floor division by zero")
		}
		return math.Floor(x / y), nil
	case "%":
		if y == 0 {
			return nil, Errorf(ZeroDivisionError, "float modulo")
		}
		m := math.Mod(x, y)
		if m != 0 && (m < 0) != (y < 0) {
			m += y
		}
		return m, nil
	}
	return nil, unsupportedOperands(op, l, r)
}

func overflow() error {
	return Errorf(OverflowError, "integer result out of range")
}

func intArith(op string, a, b int64) (Value, error) {
	switch op {
	case "+":
		s := a + b
		if (a > 0 && b > 0 && s < 0) || (a < 0 && b < 0 && s >= 0) {
			return nil, overflow()
		}
		return s, nil
	case "-":
		s := a - b
		if (a >= 0 && b < 0 && s < 0) || (a < 0 && b > 0 && s >= 0) {
			return nil, overflow()
		}
		return s, nil
	case "*":
		return mulInt(a, b)
	case "/":
		if b == 0 {
			return nil, Errorf(ZeroDivisionError, "division by zero")
		}
		return float64(a) / float64(b), nil
	case "//":
		if b == 0 {
			return nil, Errorf(ZeroDivisionError, "integer division or modulo by zero")
		}
		if a == math.MinInt64 && b == -1 {
			return nil, overflow()
		}
		q := a / b
		if (a%b != 0) && ((a < 0) != (b < 0)) {
			q--
		}
		return q, nil
	case "%":
		if b == 0 {
			return nil, Errorf(ZeroDivisionError, "integer division or modulo by zero")
		}
		if b == -1 {
			return int64(0), nil
		}
		m := a % b
		if m != 0 && (m < 0) != (b < 0) {
			m += b
		}
		return m, nil
	}
	return nil, typeErrorf("unsupported operand type(s) for %s: 'int' and 'int'", op)
}

func mulInt(a, b int64) (Value, error) {
	if a == 0 || b == 0 {
		return int64(0), nil
	}
	p := a * b
	if p/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return nil, overflow()
	}
	return p, nil
}

func (in *Interpreter) power(l, r Value) (Value, error) {
	if !isNumber(l) || !isNumber(r) {
		return nil, unsupportedOperands("** or pow()", l, r)
	}
	x, _ := toFloat(l)
	y, _ := toFloat(r)
	if math.Abs(x) > float64(in.limits.MaxPowerBase) || math.Abs(y) > float64(in.limits.MaxPower) {
		return nil, limitf(NumberTooHigh, "exponent or base too large")
	}
	base, bInt := intLike(l)
	exp, eInt := intLike(r)
	if bInt && eInt && exp >= 0 {
		result := int64(1)
		for range exp {
			v, err := mulInt(result, base)
			if err != nil {
				return nil, err
			}
			result = v.(int64)
		}
		return result, nil
	}
	if x == 0 && y < 0 {
		return nil, Errorf(ZeroDivisionError, "0.0 cannot be raised to a negative power")
	}
	if x < 0 && y != math.Trunc(y) {
		return nil, valueErrorf("negative number cannot be raised to a fractional power")
	}
	return math.Pow(x, y), nil
}

func bitwise(op string, l, r Value) (Value, error) {
	a, aInt := intLike(l)
	b, bInt := intLike(r)
	if !aInt || !bInt {
		return nil, unsupportedOperands(op, l, r)
	}
	switch op {
	case "&":
		return a & b, nil
	case "|":
		return a | b, nil
	case "^":
		return a ^ b, nil
	case "<<":
		if b < 0 {
			return nil, valueErrorf("negative shift count")
		}
		if b >= 63 || (a != 0 && (a<<b)>>b != a) {
			if a == 0 {
				return int64(0), nil
			}
			return nil, overflow()
		}
		return a << b, nil
	case ">>":
		if b < 0 {
			return nil, valueErrorf("negative shift count")
		}
		if b > 63 {
			b = 63
		}
		return a >> b, nil
	}
	return nil, unsupportedOperands(op, l, r)
}

func unaryOp(op string, v Value) (Value, error) {
	switch op {
	case "not":
		return !Truthy(v), nil
	case "-":
		if i, ok := intLike(v); ok {
			if i == math.MinInt64 {
				return nil, overflow()
			}
			return -i, nil
		}
		if f, ok := v.(float64); ok {
			return -f, nil
		}
	case "+":
		if i, ok := intLike(v); ok {
			return i, nil
		}
		if f, ok := v.(float64); ok {
			return f, nil
		}
	case "~":
		if i, ok := intLike(v); ok {
			return ^i, nil
		}
	}
	return nil, typeErrorf("bad operand type for unary %s: '%s'", op, TypeName(v))
}

func (in *Interpreter) compareOp(op string, l, r Value) (bool, error) {
	switch op {
	case "==":
		return Equal(l, r), nil
	case "!=":
		return !Equal(l, r), nil
	case "is":
		return identical(l, r), nil
	case "is not":
		return !identical(l, r), nil
	case "in":
		return in.contains(r, l)
	case "not in":
		ok, err := in.contains(r, l)
		return !ok, err
	}
	c, err := compare(l, r)
	if err != nil {
		return false, typeErrorf("'%s' not supported between instances of '%s' and '%s'", op, TypeName(l), TypeName(r))
	}
	switch op {
	case "<":
		return c < 0, nil
	case "<=":
		return c <= 0, nil
	case ">":
		return c > 0, nil
	case ">=":
		return c >= 0, nil
	}
	return false, typeErrorf("unknown comparison %s", op)
}

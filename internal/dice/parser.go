package dice

import (
	"fmt"
	"strconv"
	"strings"
)

// Parse parses a dice expression string into an Expression.
//
// Supported forms include "d20", "2d6+3", "4d6kh3", "1d20rr1ro2", "(1d4, 3)kh1",
// "1d6[fire] + 2d8 [necrotic]", "d%", and comparisons such as "1d20 >= 10".
//
// Precondition: expr must be a non-empty string.
// Postcondition: Returns a non-nil Expression or a *SyntaxError.
func Parse(expr string) (*Expression, error) {
	return parse(expr, false)
}

// ParseWithComment parses expr, treating any trailing text that is not part of
// the expression as a free-form comment ("1d20+5 to hit" has comment "to hit").
func ParseWithComment(expr string) (*Expression, error) {
	return parse(expr, true)
}

// MustParse parses expr and panics on error. Useful for package-level constants.
//
// Precondition: expr must be a valid dice expression.
func MustParse(expr string) *Expression {
	e, err := Parse(expr)
	if err != nil {
		panic("dice: MustParse failed for expression " + expr + ": " + err.Error())
	}
	return e
}

type parser struct {
	src           string
	pos           int
	allowComments bool
}

func parse(expr string, allowComments bool) (*Expression, error) {
	p := &parser{src: expr, allowComments: allowComments}
	p.skipSpace()
	if p.eof() {
		return nil, p.errorf("empty expression")
	}
	root, err := p.comparison()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	out := &Expression{Raw: expr, Root: root}
	if !p.eof() {
		if !allowComments {
			return nil, p.errorf("unexpected %q", p.src[p.pos:p.pos+1])
		}
		out.Comment = strings.TrimSpace(p.src[p.pos:])
	}
	return out, nil
}

func (p *parser) errorf(format string, args ...any) error {
	return &SyntaxError{Expr: p.src, Pos: p.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) skipSpace() {
	for !p.eof() && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t' || p.src[p.pos] == '\n' || p.src[p.pos] == '\r') {
		p.pos++
	}
}

// accept consumes one of ops at the current position (after whitespace) and
// returns it, or "" if none matched. Longer operators must come first in ops.
func (p *parser) accept(ops ...string) string {
	p.skipSpace()
	for _, op := range ops {
		if strings.HasPrefix(p.src[p.pos:], op) {
			p.pos += len(op)
			return op
		}
	}
	return ""
}

// binary parses a left-associative chain of ops over next. When comments are
// allowed, a dangling operator is left for the comment instead of failing.
func (p *parser) binary(next func() (Node, error), ops ...string) (Node, error) {
	left, err := next()
	if err != nil {
		return nil, err
	}
	for {
		save := p.pos
		op := p.accept(ops...)
		if op == "" {
			p.pos = save
			return left, nil
		}
		right, err := next()
		if err != nil {
			if p.allowComments {
				p.pos = save
				return left, nil
			}
			return nil, err
		}
		left = &BinOp{Op: op, Left: left, Right: right}
	}
}

func (p *parser) comparison() (Node, error) {
	return p.binary(p.additive, "==", "!=", ">=", "<=", ">", "<")
}

func (p *parser) additive() (Node, error) {
	return p.binary(p.multiplicative, "+", "-")
}

func (p *parser) multiplicative() (Node, error) {
	return p.binary(p.unary, "*", "//", "/", "%")
}

func (p *parser) unary() (Node, error) {
	if op := p.accept("+", "-"); op != "" {
		v, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &UnOp{Op: op, Value: v}, nil
	}
	return p.atom()
}

func (p *parser) atom() (Node, error) {
	p.skipSpace()
	var (
		n   Node
		err error
	)
	switch c := p.peek(); {
	case c == '(':
		n, err = p.setOrParen()
	case c == 'd' || c == 'D':
		n, err = p.dice(1)
	case isDigit(c) || c == '.':
		n, err = p.number()
	case c == 0:
		return nil, p.errorf("unexpected end of expression")
	default:
		return nil, p.errorf("unexpected %q", string(c))
	}
	if err != nil {
		return nil, err
	}
	ann, err := p.annotations()
	if err != nil {
		return nil, err
	}
	if ann != "" {
		setAnnotation(n, ann)
	}
	return n, nil
}

func setAnnotation(n Node, ann string) {
	switch v := n.(type) {
	case *Literal:
		v.Annotation = joinAnnotation(v.Annotation, ann)
	case *Dice:
		v.Annotation = joinAnnotation(v.Annotation, ann)
	case *Set:
		v.Annotation = joinAnnotation(v.Annotation, ann)
	case *Parenthetical:
		v.Annotation = joinAnnotation(v.Annotation, ann)
	}
}

func joinAnnotation(a, b string) string {
	if a == "" {
		return b
	}
	return a + " " + b
}

func (p *parser) annotations() (string, error) {
	var parts []string
	for {
		save := p.pos
		p.skipSpace()
		if p.peek() != '[' {
			p.pos = save
			break
		}
		end := strings.IndexByte(p.src[p.pos:], ']')
		if end < 0 {
			return "", p.errorf("unterminated annotation")
		}
		parts = append(parts, p.src[p.pos:p.pos+end+1])
		p.pos += end + 1
	}
	return strings.Join(parts, " "), nil
}

func (p *parser) setOrParen() (Node, error) {
	p.pos++ // (
	var values []Node
	sawComma := false
	p.skipSpace()
	for p.peek() != ')' {
		v, err := p.comparison()
		if err != nil {
			return nil, err
		}
		values = append(values, v)
		p.skipSpace()
		if p.peek() == ',' {
			sawComma = true
			p.pos++
			p.skipSpace()
			continue
		}
		if p.peek() != ')' {
			return nil, p.errorf("expected ',' or ')'")
		}
	}
	p.pos++ // )
	ops, err := p.ops(true)
	if err != nil {
		return nil, err
	}
	if len(values) == 1 && !sawComma && len(ops) == 0 {
		return &Parenthetical{Value: values[0]}, nil
	}
	return &Set{Values: values, Ops: ops}, nil
}

func (p *parser) number() (Node, error) {
	start := p.pos
	for isDigit(p.peek()) {
		p.pos++
	}
	isInt := true
	if p.peek() == '.' {
		isInt = false
		p.pos++
		for isDigit(p.peek()) {
			p.pos++
		}
	}
	text := p.src[start:p.pos]
	if text == "." {
		p.pos = start
		return nil, p.errorf("invalid number")
	}
	if c := p.peek(); c == 'd' || c == 'D' {
		if !isInt {
			return nil, p.errorf("dice count must be an integer")
		}
		num, err := strconv.Atoi(text)
		if err != nil {
			p.pos = start
			return nil, p.errorf("invalid dice count %q", text)
		}
		return p.dice(num)
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		p.pos = start
		return nil, p.errorf("invalid number %q", text)
	}
	return &Literal{Value: v, IsInt: isInt}, nil
}

func (p *parser) dice(num int) (Node, error) {
	p.pos++ // d
	d := &Dice{Num: num}
	if p.peek() == '%' {
		p.pos++
		d.Size = 100
		d.Percentile = true
	} else {
		n, ok, err := p.integer()
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, p.errorf("expected die size")
		}
		d.Size = n
	}
	ops, err := p.ops(false)
	if err != nil {
		return nil, err
	}
	d.Ops = ops
	return d, nil
}

var diceOps = []string{"rr", "ro", "ra", "mi", "ma", "k", "p", "e"}

func (p *parser) ops(setOnly bool) ([]SetOp, error) {
	var out []SetOp
	for {
		op := ""
		for _, candidate := range diceOps {
			if strings.HasPrefix(p.src[p.pos:], candidate) {
				op = candidate
				break
			}
		}
		if op == "" {
			return out, nil
		}
		if setOnly && op != "k" && op != "p" {
			return nil, p.errorf("operator %q is not valid on a set", op)
		}
		p.pos += len(op)
		sel := Selector{}
		switch c := p.peek(); c {
		case 'h', 'l', '<', '>':
			sel.Category = c
			p.pos++
		}
		if (op == "mi" || op == "ma") && sel.Category != 0 {
			return nil, p.errorf("operator %q takes a plain number", op)
		}
		n, ok, err := p.integer()
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, p.errorf("expected selector value after %q", op)
		}
		sel.N = n
		out = append(out, SetOp{Op: op, Sel: sel})
	}
}

func (p *parser) integer() (int, bool, error) {
	start := p.pos
	for isDigit(p.peek()) {
		p.pos++
	}
	if start == p.pos {
		return 0, false, nil
	}
	n, err := strconv.Atoi(p.src[start:p.pos])
	if err != nil {
		p.pos = start
		return 0, false, p.errorf("integer out of range")
	}
	return n, true, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

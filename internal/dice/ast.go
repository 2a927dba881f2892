package dice

import (
	"strconv"
	"strings"
)

// Expression is a parsed, immutable dice expression.
//
// Invariant: an Expression is never mutated after Parse returns it; rewrites
// such as advantage operate on the result of Clone.
type Expression struct {
	Raw     string
	Root    Node
	Comment string
}

// Clone returns a deep copy of e.
func (e *Expression) Clone() *Expression {
	return &Expression{Raw: e.Raw, Root: e.Root.clone(), Comment: e.Comment}
}

// String renders the expression in canonical notation.
func (e *Expression) String() string {
	return e.Root.String()
}

// Node is one term of a parsed dice expression.
type Node interface {
	String() string
	clone() Node
}

// Selector chooses a subset of a set's kept values.
//
// Category is 0 for a literal match, or one of 'h', 'l', '>', '<'.
type Selector struct {
	Category byte
	N        int
}

func (s Selector) String() string {
	if s.Category == 0 {
		return strconv.Itoa(s.N)
	}
	return string(s.Category) + strconv.Itoa(s.N)
}

// SetOp is a postfix operator such as "kh3" or "rr1".
type SetOp struct {
	Op  string // one of k, p, rr, ro, ra, e, mi, ma
	Sel Selector
}

func (o SetOp) String() string {
	return o.Op + o.Sel.String()
}

func opsString(ops []SetOp) string {
	var b strings.Builder
	for _, o := range ops {
		b.WriteString(o.String())
	}
	return b.String()
}

func cloneOps(ops []SetOp) []SetOp {
	if ops == nil {
		return nil
	}
	out := make([]SetOp, len(ops))
	copy(out, ops)
	return out
}

// Literal is a numeric constant.
type Literal struct {
	Value      float64
	IsInt      bool
	Annotation string
}

func (l *Literal) String() string {
	return formatNumber(l.Value, l.IsInt) + annotationSuffix(l.Annotation)
}

func (l *Literal) clone() Node {
	c := *l
	return &c
}

// Dice is a group such as "4d6kh3".
type Dice struct {
	Num        int
	Size       int
	Percentile bool // written as d%
	Ops        []SetOp
	Annotation string
}

func (d *Dice) String() string {
	size := strconv.Itoa(d.Size)
	if d.Percentile {
		size = "%"
	}
	return strconv.Itoa(d.Num) + "d" + size + opsString(d.Ops) + annotationSuffix(d.Annotation)
}

func (d *Dice) clone() Node {
	c := *d
	c.Ops = cloneOps(d.Ops)
	return &c
}

// Set is a comma-separated group such as "(1d4, 3)kh1".
type Set struct {
	Values     []Node
	Ops        []SetOp
	Annotation string
}

func (s *Set) String() string {
	parts := make([]string, len(s.Values))
	for i, v := range s.Values {
		parts[i] = v.String()
	}
	inner := strings.Join(parts, ", ")
	if len(parts) == 1 {
		inner += ","
	}
	return "(" + inner + ")" + opsString(s.Ops) + annotationSuffix(s.Annotation)
}

func (s *Set) clone() Node {
	c := &Set{Ops: cloneOps(s.Ops), Annotation: s.Annotation, Values: make([]Node, len(s.Values))}
	for i, v := range s.Values {
		c.Values[i] = v.clone()
	}
	return c
}

// Parenthetical is a grouped sub-expression.
type Parenthetical struct {
	Value      Node
	Annotation string
}

func (p *Parenthetical) String() string {
	return "(" + p.Value.String() + ")" + annotationSuffix(p.Annotation)
}

func (p *Parenthetical) clone() Node {
	return &Parenthetical{Value: p.Value.clone(), Annotation: p.Annotation}
}

// UnOp is a unary plus or minus.
type UnOp struct {
	Op    string
	Value Node
}

func (u *UnOp) String() string {
	return u.Op + u.Value.String()
}

func (u *UnOp) clone() Node {
	return &UnOp{Op: u.Op, Value: u.Value.clone()}
}

// BinOp is an arithmetic or comparison operation.
type BinOp struct {
	Op          string
	Left, Right Node
}

func (b *BinOp) String() string {
	return b.Left.String() + " " + b.Op + " " + b.Right.String()
}

func (b *BinOp) clone() Node {
	return &BinOp{Op: b.Op, Left: b.Left.clone(), Right: b.Right.clone()}
}

func annotationSuffix(a string) string {
	if a == "" {
		return ""
	}
	return " " + a
}

func formatNumber(v float64, isInt bool) string {
	if isInt {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

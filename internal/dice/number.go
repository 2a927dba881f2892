package dice

// Number is one node of a rolled expression tree. Dropped nodes contribute
// zero to their parent's total but remain in the tree for rendering.
type Number interface {
	// Total is the node's value, or 0 if it was dropped.
	Total() float64
	Kept() bool
	Annotation() string
	drop()
}

type numberBase struct {
	annotation string
	dropped    bool
}

func (b *numberBase) Kept() bool         { return !b.dropped }
func (b *numberBase) Annotation() string { return b.annotation }
func (b *numberBase) drop()              { b.dropped = true }

// RolledExpression is the root of a rolled tree.
type RolledExpression struct {
	Root    Number
	Comment string
}

// Total returns the root's total.
func (e *RolledExpression) Total() float64 { return e.Root.Total() }

// RolledLiteral is a constant, or one face value in a die's history.
type RolledLiteral struct {
	numberBase
	Value    float64
	IsInt    bool
	Exploded bool
}

// Total implements Number.
func (l *RolledLiteral) Total() float64 {
	if l.dropped {
		return 0
	}
	return l.Value
}

// Die is a single die. Values holds every face it showed; all but the last
// were superseded by a reroll or clamp.
type Die struct {
	numberBase
	Size   int
	Values []*RolledLiteral
}

// Value returns the die's current face.
func (d *Die) Value() int {
	return int(d.Values[len(d.Values)-1].Value)
}

// Total implements Number.
func (d *Die) Total() float64 {
	if d.dropped {
		return 0
	}
	return float64(d.Value())
}

func (d *Die) exploded() bool {
	return d.Values[len(d.Values)-1].Exploded
}

// setValue supersedes the current face with v.
func (d *Die) setValue(v int) {
	d.Values[len(d.Values)-1].drop()
	d.Values = append(d.Values, &RolledLiteral{Value: float64(v), IsInt: true})
}

// RolledDice is a rolled dice group.
type RolledDice struct {
	numberBase
	Num        int
	Size       int
	Percentile bool
	Ops        []SetOp
	Dice       []*Die
}

// Total implements Number.
func (d *RolledDice) Total() float64 {
	if d.dropped {
		return 0
	}
	var t float64
	for _, die := range d.Dice {
		t += die.Total()
	}
	return t
}

func (d *RolledDice) keptDice() []*Die {
	var out []*Die
	for _, die := range d.Dice {
		if die.Kept() {
			out = append(out, die)
		}
	}
	return out
}

// RolledSet is a rolled set of sub-expressions.
type RolledSet struct {
	numberBase
	Values []Number
	Ops    []SetOp
}

// Total implements Number.
func (s *RolledSet) Total() float64 {
	if s.dropped {
		return 0
	}
	var t float64
	for _, v := range s.Values {
		t += v.Total()
	}
	return t
}

// RolledParen is a rolled parenthetical.
type RolledParen struct {
	numberBase
	Value Number
}

// Total implements Number.
func (p *RolledParen) Total() float64 {
	if p.dropped {
		return 0
	}
	return p.Value.Total()
}

// RolledUnOp is a rolled unary operation.
type RolledUnOp struct {
	numberBase
	Op    string
	Value Number
	total float64
}

// Total implements Number.
func (u *RolledUnOp) Total() float64 {
	if u.dropped {
		return 0
	}
	return u.total
}

// RolledBinOp is a rolled binary operation; its total is computed once at roll time.
type RolledBinOp struct {
	numberBase
	Op          string
	Left, Right Number
	total       float64
}

// Total implements Number.
func (b *RolledBinOp) Total() float64 {
	if b.dropped {
		return 0
	}
	return b.total
}

package dice

import (
	"fmt"
	"math"
	"slices"
)

// AdvType selects advantage-style rewriting of the leftmost 1d20.
type AdvType int

const (
	AdvNone AdvType = iota
	// Advantage rolls 2d20kh1.
	Advantage
	// Disadvantage rolls 2d20kl1.
	Disadvantage
	// ElvenAccuracy rolls 3d20kh1.
	ElvenAccuracy
)

type rollOptions struct {
	adv AdvType
	ctx RollContext
}

// RollOption configures a single roll.
type RollOption func(*rollOptions)

// WithAdvantage rewrites the leftmost 1d20 of the expression before rolling.
func WithAdvantage(adv AdvType) RollOption {
	return func(o *rollOptions) { o.adv = adv }
}

// WithContext meters the roll against ctx instead of a fresh per-call context.
func WithContext(ctx RollContext) RollOption {
	return func(o *rollOptions) { o.ctx = ctx }
}

// Roll evaluates expr using src.
//
// Precondition: expr must come from Parse; src must be non-nil.
// Postcondition: expr is not modified; result.Total == int(trunc(result.Expr.Total())).
func Roll(expr *Expression, src Source, opts ...RollOption) (RollResult, error) {
	o := rollOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.ctx == nil {
		o.ctx = NewRollContext(DefaultMaxRolls)
	}
	o.ctx.Reset()

	root := expr.Root
	if o.adv != AdvNone {
		root = applyAdvantage(expr.Clone(), o.adv).Root
	}

	ev := &evaluator{src: src, ctx: o.ctx}
	rolled, err := ev.eval(root)
	if err != nil {
		return RollResult{}, err
	}
	re := &RolledExpression{Root: rolled, Comment: expr.Comment}
	return newResult(re), nil
}

// RollExpr parses expr and rolls it using src in a single call.
//
// Precondition: expr must be a valid dice expression string; src must be non-nil.
// Postcondition: Returns a RollResult or a parse/roll error.
func RollExpr(expr string, src Source, opts ...RollOption) (RollResult, error) {
	e, err := Parse(expr)
	if err != nil {
		return RollResult{}, err
	}
	return Roll(e, src, opts...)
}

func newResult(re *RolledExpression) RollResult {
	total := int(math.Trunc(re.Total()))
	return RollResult{
		Expr:   re,
		Total:  total,
		Result: fmt.Sprintf("%s = `%d`", Stringify(re.Root), total),
	}
}

// applyAdvantage rewrites e in place. Only a leftmost 1d20 is affected.
func applyAdvantage(e *Expression, adv AdvType) *Expression {
	d := leftmostDiceNode(e.Root)
	if d == nil || d.Num != 1 || d.Size != 20 {
		return e
	}
	var op SetOp
	switch adv {
	case Advantage:
		d.Num = 2
		op = SetOp{Op: "k", Sel: Selector{Category: 'h', N: 1}}
	case Disadvantage:
		d.Num = 2
		op = SetOp{Op: "k", Sel: Selector{Category: 'l', N: 1}}
	case ElvenAccuracy:
		d.Num = 3
		op = SetOp{Op: "k", Sel: Selector{Category: 'h', N: 1}}
	default:
		return e
	}
	d.Ops = append([]SetOp{op}, d.Ops...)
	return e
}

func leftmostDiceNode(n Node) *Dice {
	switch v := n.(type) {
	case *Dice:
		return v
	case *BinOp:
		return leftmostDiceNode(v.Left)
	case *UnOp:
		return leftmostDiceNode(v.Value)
	case *Parenthetical:
		return leftmostDiceNode(v.Value)
	case *Set:
		if len(v.Values) > 0 {
			return leftmostDiceNode(v.Values[0])
		}
	}
	return nil
}

type evaluator struct {
	src Source
	ctx RollContext
}

func (ev *evaluator) eval(n Node) (Number, error) {
	switch v := n.(type) {
	case *Literal:
		return &RolledLiteral{numberBase: numberBase{annotation: v.Annotation}, Value: v.Value, IsInt: v.IsInt}, nil
	case *Dice:
		return ev.rollDice(v)
	case *Set:
		return ev.rollSet(v)
	case *Parenthetical:
		inner, err := ev.eval(v.Value)
		if err != nil {
			return nil, err
		}
		return &RolledParen{numberBase: numberBase{annotation: v.Annotation}, Value: inner}, nil
	case *UnOp:
		inner, err := ev.eval(v.Value)
		if err != nil {
			return nil, err
		}
		t := inner.Total()
		if v.Op == "-" {
			t = -t
		}
		return &RolledUnOp{Op: v.Op, Value: inner, total: t}, nil
	case *BinOp:
		left, err := ev.eval(v.Left)
		if err != nil {
			return nil, err
		}
		right, err := ev.eval(v.Right)
		if err != nil {
			return nil, err
		}
		t, err := binop(v.Op, left.Total(), right.Total())
		if err != nil {
			return nil, err
		}
		return &RolledBinOp{Op: v.Op, Left: left, Right: right, total: t}, nil
	}
	return nil, fmt.Errorf("%w: unknown node %T", ErrInvalidRoll, n)
}

func binop(op string, l, r float64) (float64, error) {
	b2f := func(b bool) float64 {
		if b {
			return 1
		}
		return 0
	}
	switch op {
	case "+":
		return l + r, nil
	case "-":
		return l - r, nil
	case "*":
		return l * r, nil
	case "/":
		if r == 0 {
			return 0, ErrDivisionByZero
		}
		return l / r, nil
	case "//":
		if r == 0 {
			return 0, ErrDivisionByZero
		}
		return math.Floor(l / r), nil
	case "%":
		if r == 0 {
			return 0, ErrDivisionByZero
		}
		m := math.Mod(l, r)
		if m != 0 && (m < 0) != (r < 0) {
			m += r
		}
		return m, nil
	case "==":
		return b2f(l == r), nil
	case "!=":
		return b2f(l != r), nil
	case ">=":
		return b2f(l >= r), nil
	case "<=":
		return b2f(l <= r), nil
	case ">":
		return b2f(l > r), nil
	case "<":
		return b2f(l < r), nil
	}
	return 0, fmt.Errorf("%w: unknown operator %q", ErrInvalidRoll, op)
}

func (ev *evaluator) newDie(size int) (*Die, error) {
	if err := ev.ctx.CountRoll(); err != nil {
		return nil, err
	}
	face := ev.src.Intn(size) + 1
	return &Die{Size: size, Values: []*RolledLiteral{{Value: float64(face), IsInt: true}}}, nil
}

func (ev *evaluator) reroll(d *Die) error {
	if err := ev.ctx.CountRoll(); err != nil {
		return err
	}
	d.setValue(ev.src.Intn(d.Size) + 1)
	return nil
}

func (ev *evaluator) rollDice(n *Dice) (*RolledDice, error) {
	if n.Size < 1 {
		return nil, fmt.Errorf("%w: a die must have at least one side", ErrInvalidRoll)
	}
	if n.Size > MaxDieSize {
		return nil, fmt.Errorf("%w: a die may have at most %d sides", ErrInvalidRoll, MaxDieSize)
	}
	if n.Num > MaxDiceCount {
		return nil, fmt.Errorf("%w: more than %d dice in one group", ErrInvalidRoll, MaxDiceCount)
	}
	rd := &RolledDice{
		numberBase: numberBase{annotation: n.Annotation},
		Num:        n.Num,
		Size:       n.Size,
		Percentile: n.Percentile,
		Ops:        cloneOps(n.Ops),
	}
	for range n.Num {
		d, err := ev.newDie(n.Size)
		if err != nil {
			return nil, err
		}
		rd.Dice = append(rd.Dice, d)
	}
	for _, op := range n.Ops {
		if err := ev.applyDiceOp(rd, op); err != nil {
			return nil, err
		}
	}
	return rd, nil
}

func (ev *evaluator) applyDiceOp(rd *RolledDice, op SetOp) error {
	switch op.Op {
	case "k":
		keep := selectNumbers(rd.keptDice(), op.Sel)
		for _, d := range rd.keptDice() {
			if !slices.Contains(keep, d) {
				d.drop()
			}
		}
	case "p":
		for _, d := range selectNumbers(rd.keptDice(), op.Sel) {
			d.drop()
		}
	case "rr":
		if op.Sel.Category == 'h' || op.Sel.Category == 'l' {
			return ev.rerollOnce(rd, op.Sel)
		}
		for {
			targets := selectNumbers(rd.keptDice(), op.Sel)
			if len(targets) == 0 {
				return nil
			}
			for _, d := range targets {
				if err := ev.reroll(d); err != nil {
					return err
				}
			}
		}
	case "ro":
		return ev.rerollOnce(rd, op.Sel)
	case "ra":
		targets := selectNumbers(rd.keptDice(), op.Sel)
		if len(targets) == 0 {
			return nil
		}
		targets[0].Values[len(targets[0].Values)-1].Exploded = true
		d, err := ev.newDie(rd.Size)
		if err != nil {
			return err
		}
		rd.Dice = append(rd.Dice, d)
	case "e":
		for {
			var fresh []*Die
			for _, d := range selectNumbers(rd.keptDice(), op.Sel) {
				if d.exploded() {
					continue
				}
				d.Values[len(d.Values)-1].Exploded = true
				fresh = append(fresh, d)
			}
			if len(fresh) == 0 {
				return nil
			}
			for range fresh {
				d, err := ev.newDie(rd.Size)
				if err != nil {
					return err
				}
				rd.Dice = append(rd.Dice, d)
			}
		}
	case "mi":
		for _, d := range rd.keptDice() {
			if d.Value() < op.Sel.N {
				d.setValue(op.Sel.N)
			}
		}
	case "ma":
		for _, d := range rd.keptDice() {
			if d.Value() > op.Sel.N {
				d.setValue(op.Sel.N)
			}
		}
	default:
		return fmt.Errorf("%w: unknown operator %q", ErrInvalidRoll, op.Op)
	}
	return nil
}

func (ev *evaluator) rerollOnce(rd *RolledDice, sel Selector) error {
	for _, d := range selectNumbers(rd.keptDice(), sel) {
		if err := ev.reroll(d); err != nil {
			return err
		}
	}
	return nil
}

func (ev *evaluator) rollSet(n *Set) (*RolledSet, error) {
	rs := &RolledSet{numberBase: numberBase{annotation: n.Annotation}, Ops: cloneOps(n.Ops)}
	for _, v := range n.Values {
		rv, err := ev.eval(v)
		if err != nil {
			return nil, err
		}
		rs.Values = append(rs.Values, rv)
	}
	for _, op := range n.Ops {
		kept := keptNumbers(rs.Values)
		switch op.Op {
		case "k":
			keep := selectNumbers(kept, op.Sel)
			for _, v := range kept {
				if !slices.Contains(keep, v) {
					v.drop()
				}
			}
		case "p":
			for _, v := range selectNumbers(kept, op.Sel) {
				v.drop()
			}
		default:
			return nil, fmt.Errorf("%w: operator %q is not valid on a set", ErrInvalidRoll, op.Op)
		}
	}
	return rs, nil
}

func keptNumbers(values []Number) []Number {
	var out []Number
	for _, v := range values {
		if v.Kept() {
			out = append(out, v)
		}
	}
	return out
}

// selectNumbers returns the members of kept matched by sel, in their original order.
//
// Invariant: h and l use a stable sort, so ties resolve by original position.
func selectNumbers[T Number](kept []T, sel Selector) []T {
	var out []T
	switch sel.Category {
	case 'h', 'l':
		idx := make([]int, len(kept))
		for i := range idx {
			idx[i] = i
		}
		slices.SortStableFunc(idx, func(a, b int) int {
			if sel.Category == 'h' {
				return cmpFloat(kept[b].Total(), kept[a].Total())
			}
			return cmpFloat(kept[a].Total(), kept[b].Total())
		})
		n := min(max(sel.N, 0), len(idx))
		chosen := make([]bool, len(kept))
		for _, i := range idx[:n] {
			chosen[i] = true
		}
		for i, v := range kept {
			if chosen[i] {
				out = append(out, v)
			}
		}
	case '>':
		for _, v := range kept {
			if v.Total() > float64(sel.N) {
				out = append(out, v)
			}
		}
	case '<':
		for _, v := range kept {
			if v.Total() < float64(sel.N) {
				out = append(out, v)
			}
		}
	default:
		for _, v := range kept {
			if v.Total() == float64(sel.N) {
				out = append(out, v)
			}
		}
	}
	return out
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Scale returns a copy of e in which every dice group rolls num*multiply+add
// dice. Groups that would drop below one die roll one.
//
// Postcondition: e is not modified; the result is a fresh Expression.
func Scale(e *Expression, multiply, add int) *Expression {
	out := e.Clone()
	if multiply == 1 && add == 0 {
		return out
	}
	scaleNode(out.Root, multiply, add)
	out.Raw = out.Root.String()
	return out
}

func scaleNode(n Node, multiply, add int) {
	switch v := n.(type) {
	case *Dice:
		v.Num = max(v.Num*multiply+add, 1)
	case *BinOp:
		scaleNode(v.Left, multiply, add)
		scaleNode(v.Right, multiply, add)
	case *UnOp:
		scaleNode(v.Value, multiply, add)
	case *Parenthetical:
		scaleNode(v.Value, multiply, add)
	case *Set:
		for _, sv := range v.Values {
			scaleNode(sv, multiply, add)
		}
	}
}

// Package dice parses and evaluates dice-roll expressions in d20 notation
// ("4d6kh3+2", "1d20[attack] + 5", "(1d4, 3)kh1") under a bounded roll budget.
package dice

import (
	"errors"
	"fmt"
)

// ErrTooManyRolls is returned once a RollContext's per-call or lifetime ceiling is exceeded.
var ErrTooManyRolls = errors.New("dice: too many dice rolled")

// ErrInvalidRoll is returned for rolls that parse but cannot be evaluated,
// such as a zero-sided die or an operator that does not apply to a set.
var ErrInvalidRoll = errors.New("dice: invalid roll")

// ErrDivisionByZero is returned when an expression divides by zero.
var ErrDivisionByZero = errors.New("dice: division by zero")

// SyntaxError reports a malformed dice expression.
type SyntaxError struct {
	Expr string // the full input
	Pos  int    // byte offset of the failure
	Msg  string
}

// Error implements error.
func (e *SyntaxError) Error() string {
	return fmt.Sprintf("dice: syntax error at position %d in %q: %s", e.Pos, e.Expr, e.Msg)
}

// Source is the randomness provider for dice rolls.
//
// Implementations MUST be safe for concurrent use.
type Source interface {
	// Intn returns a non-negative random int in [0, n).
	//
	// Precondition: n > 0.
	Intn(n int) int
}

// RollResult holds the full audit trail for a single dice roll evaluation.
//
// Postcondition: Total == int(Expr.Total()) truncated toward zero.
type RollResult struct {
	// Expr is the rolled tree, recording which values were kept, dropped and rerolled.
	Expr *RolledExpression
	// Total is the integer result of the roll.
	Total int
	// Result is the Markdown render, e.g. "1d20 (**20**) + 5 = `25`".
	Result string
}

// String returns the Markdown render of the roll.
func (r RollResult) String() string {
	return r.Result
}

// Crit reports whether the leftmost d20 in the roll landed on a natural 20 (1)
// or a natural 1 (-1). Zero means neither, or no d20 was rolled.
func (r RollResult) Crit() int {
	if r.Expr == nil {
		return 0
	}
	d := leftmostDice(r.Expr.Root)
	if d == nil || d.Size != 20 {
		return 0
	}
	kept := d.keptDice()
	if len(kept) != 1 {
		return 0
	}
	switch kept[0].Value() {
	case 20:
		return 1
	case 1:
		return -1
	}
	return 0
}

func leftmostDice(n Number) *RolledDice {
	switch v := n.(type) {
	case *RolledDice:
		return v
	case *RolledBinOp:
		return leftmostDice(v.Left)
	case *RolledUnOp:
		return leftmostDice(v.Value)
	case *RolledParen:
		return leftmostDice(v.Value)
	case *RolledSet:
		if len(v.Values) > 0 {
			return leftmostDice(v.Values[0])
		}
	}
	return nil
}

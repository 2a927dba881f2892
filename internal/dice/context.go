package dice

import (
	"fmt"
	"sync"
)

const (
	// DefaultMaxRolls is the per-call die budget.
	DefaultMaxRolls = 1000
	// DefaultMaxTotalRolls is the lifetime die budget of a PersistentRollContext.
	DefaultMaxTotalRolls = 10_000
	// MaxDiceCount bounds the number of dice in a single group.
	MaxDiceCount = 1000
	// MaxDieSize bounds the number of faces of a single die.
	MaxDieSize = 10_000
)

// RollContext meters how many dice a roll may use.
//
// Reset is called at the start of every roll; CountRoll once per die rolled,
// including rerolls and explosions.
type RollContext interface {
	Reset()
	CountRoll() error
}

// CallContext limits the dice rolled by a single roll call.
type CallContext struct {
	mu       sync.Mutex
	maxRolls int
	rolls    int
}

// NewRollContext returns a per-call RollContext allowing maxRolls dice.
//
// Precondition: maxRolls > 0; 0 uses DefaultMaxRolls.
func NewRollContext(maxRolls int) *CallContext {
	if maxRolls <= 0 {
		maxRolls = DefaultMaxRolls
	}
	return &CallContext{maxRolls: maxRolls}
}

// Reset zeroes the per-call counter.
func (c *CallContext) Reset() {
	c.mu.Lock()
	c.rolls = 0
	c.mu.Unlock()
}

// CountRoll records one die and fails once the per-call ceiling is passed.
func (c *CallContext) CountRoll() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rolls++
	if c.rolls > c.maxRolls {
		return fmt.Errorf("%w: more than %d dice in one roll", ErrTooManyRolls, c.maxRolls)
	}
	return nil
}

// PersistentRollContext limits dice per call and across its whole lifetime.
//
// Invariant: the lifetime counter is never reset; once it passes MaxTotalRolls
// every later CountRoll fails.
type PersistentRollContext struct {
	CallContext
	maxTotalRolls int
	totalRolls    int
}

// NewPersistentRollContext returns a context allowing maxRolls dice per call
// and maxTotalRolls dice in total.
//
// Precondition: non-positive values select the package defaults.
func NewPersistentRollContext(maxRolls, maxTotalRolls int) *PersistentRollContext {
	if maxTotalRolls <= 0 {
		maxTotalRolls = DefaultMaxTotalRolls
	}
	return &PersistentRollContext{
		CallContext:   *NewRollContext(maxRolls),
		maxTotalRolls: maxTotalRolls,
	}
}

// CountRoll records one die against both ceilings.
func (c *PersistentRollContext) CountRoll() error {
	if err := c.CallContext.CountRoll(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalRolls++
	if c.totalRolls > c.maxTotalRolls {
		return fmt.Errorf("%w: more than %d dice in total", ErrTooManyRolls, c.maxTotalRolls)
	}
	return nil
}

// TotalRolls returns the number of dice counted over the context's lifetime.
func (c *PersistentRollContext) TotalRolls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalRolls
}

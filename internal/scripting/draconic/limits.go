package draconic

// Limits bounds the resources a single evaluation may consume.
type Limits struct {
	// MaxStatements is the operation budget per Eval or Execute call.
	MaxStatements int
	// MaxLoops bounds the total loop and comprehension iterations per call.
	MaxLoops int
	// MaxIterLength bounds range() and sequence repetition.
	MaxIterLength int
	// MaxConstLen bounds the length of any string or collection.
	MaxConstLen int
	// MaxRecursionDepth bounds nested user function calls.
	MaxRecursionDepth int
	MaxPowerBase      int64
	MaxPower          int64
}

// DefaultLimits returns the production limits.
func DefaultLimits() Limits {
	return Limits{
		MaxStatements:     1_200_000,
		MaxLoops:          1_000_000,
		MaxIterLength:     10_000,
		MaxConstLen:       200_000,
		MaxRecursionDepth: 50,
		MaxPowerBase:      1_000_000,
		MaxPower:          1000,
	}
}

// withDefaults fills zero fields from DefaultLimits.
func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.MaxStatements <= 0 {
		l.MaxStatements = d.MaxStatements
	}
	if l.MaxLoops <= 0 {
		l.MaxLoops = d.MaxLoops
	}
	if l.MaxIterLength <= 0 {
		l.MaxIterLength = d.MaxIterLength
	}
	if l.MaxConstLen <= 0 {
		l.MaxConstLen = d.MaxConstLen
	}
	if l.MaxRecursionDepth <= 0 {
		l.MaxRecursionDepth = d.MaxRecursionDepth
	}
	if l.MaxPowerBase <= 0 {
		l.MaxPowerBase = d.MaxPowerBase
	}
	if l.MaxPower <= 0 {
		l.MaxPower = d.MaxPower
	}
	return l
}

package dice

import (
	"sync"

	"go.uber.org/zap"
)

// parseCacheSize bounds the number of parsed expressions a Roller retains.
const parseCacheSize = 256

// Roller wraps a Source and logger to provide logged dice rolling.
// All rolls are logged at debug level with expression and total.
//
// Parsed expressions are cached; Expressions are immutable so sharing them
// between rolls is safe.
type Roller struct {
	src    Source
	logger *zap.Logger

	mu    sync.Mutex
	cache map[string]*Expression
	order []string
}

// NewLoggedRoller creates a Roller that rolls with src and logs each roll to logger.
//
// Precondition: src and logger must be non-nil.
func NewLoggedRoller(src Source, logger *zap.Logger) *Roller {
	return &Roller{src: src, logger: logger, cache: make(map[string]*Expression)}
}

// Roll parses expr, consulting the parse cache, and rolls it.
//
// Precondition: expr must be a valid dice expression string.
// Postcondition: Returns a RollResult or a parse/roll error.
func (r *Roller) Roll(expr string, opts ...RollOption) (RollResult, error) {
	e, err := r.parse(expr)
	if err != nil {
		return RollResult{}, err
	}
	return r.RollExpression(e, opts...)
}

// RollExpression rolls an already parsed expression and logs the result at debug level.
//
// Precondition: e must come from Parse or ParseWithComment.
// Postcondition: result logged; returns RollResult or error.
func (r *Roller) RollExpression(e *Expression, opts ...RollOption) (RollResult, error) {
	result, err := Roll(e, r.src, opts...)
	if err != nil {
		r.logger.Debug("dice roll failed", zap.String("expression", e.Raw), zap.Error(err))
		return RollResult{}, err
	}
	r.logger.Debug("dice roll",
		zap.String("expression", e.Raw),
		zap.String("result", result.Result),
		zap.Int("total", result.Total),
	)
	return result, nil
}

func (r *Roller) parse(expr string) (*Expression, error) {
	r.mu.Lock()
	if e, ok := r.cache[expr]; ok {
		r.mu.Unlock()
		return e, nil
	}
	r.mu.Unlock()

	e, err := Parse(expr)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.cache[expr]; !ok {
		if len(r.order) >= parseCacheSize {
			delete(r.cache, r.order[0])
			r.order = r.order[1:]
		}
		r.cache[expr] = e
		r.order = append(r.order, expr)
	}
	return e, nil
}

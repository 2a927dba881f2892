package scripting

import (
	"errors"
	"slices"

	"github.com/cory-johannsen/draconic/internal/dice"
	"github.com/cory-johannsen/draconic/internal/scripting/draconic"
	"github.com/cory-johannsen/draconic/internal/signature"
)

// RegisterModules registers every host builtin and the ctx object into in.
//
// Precondition: in must be from NewSandbox and bound to e's environment.
// Postcondition: all host names are reserved in in.
func (e *Evaluator) RegisterModules(in *draconic.Interpreter) {
	for name, fn := range map[string]draconic.BuiltinFunc{
		"roll":             e.builtinRoll,
		"vroll":            e.builtinVroll,
		"exists":           e.builtinExists,
		"get":              e.builtinGet,
		"character":        e.builtinCharacter,
		"combat":           e.builtinCombat,
		"get_uvar":         e.builtinGetUvar,
		"get_uvars":        e.builtinGetUvars,
		"set_uvar":         e.builtinSetUvar,
		"set_uvar_nx":      e.builtinSetUvar,
		"delete_uvar":      e.builtinDeleteUvar,
		"uvar_exists":      e.builtinUvarExists,
		"get_svar":         e.builtinGetSvar,
		"get_gvar":         e.builtinGetGvar,
		"set_cvar":         e.builtinSetCvar,
		"set_cvar_nx":      e.builtinSetCvar,
		"delete_cvar":      e.builtinDeleteCvar,
		"signature":        e.builtinSignature,
		"verify_signature": e.builtinVerifySignature,
	} {
		in.Register(name, fn)
	}
	in.RegisterValue("ctx", &AliasContext{inv: e.env.Invocation()})
}

// diceError makes malformed or impossible rolls catchable. Budget
// exhaustion stays a limit failure.
func diceError(err error) error {
	var syn *dice.SyntaxError
	switch {
	case errors.Is(err, dice.ErrTooManyRolls):
		return err
	case errors.Is(err, dice.ErrDivisionByZero):
		return &draconic.RuntimeError{Kind: draconic.ZeroDivisionError, Msg: "division by zero in roll", Err: err}
	case errors.As(err, &syn):
		return &draconic.RuntimeError{Kind: draconic.ValueError, Msg: syn.Msg, Err: err}
	}
	return &draconic.RuntimeError{Kind: draconic.ValueError, Msg: err.Error(), Err: err}
}

func (e *Evaluator) parseDice(c *draconic.Call) (*dice.Expression, error) {
	s, err := c.Str(0, "dice")
	if err != nil {
		return nil, err
	}
	expr, err := dice.Parse(s)
	if err != nil {
		return nil, diceError(err)
	}
	return expr, nil
}

func (e *Evaluator) builtinRoll(c *draconic.Call) (draconic.Value, error) {
	expr, err := e.parseDice(c)
	if err != nil {
		return nil, err
	}
	res, err := e.roll(c.Ctx, expr)
	if err != nil {
		return nil, diceError(err)
	}
	return int64(res.Total), nil
}

func (e *Evaluator) builtinVroll(c *draconic.Call) (draconic.Value, error) {
	expr, err := e.parseDice(c)
	if err != nil {
		return nil, err
	}
	mult, err := c.OptInt(1, "multiply", 1)
	if err != nil {
		return nil, err
	}
	add, err := c.OptInt(2, "add", 0)
	if err != nil {
		return nil, err
	}
	if mult != 1 || add != 0 {
		expr = dice.Scale(expr, int(mult), int(add))
	}
	res, err := e.roll(c.Ctx, expr)
	if err != nil {
		return nil, diceError(err)
	}
	return &SimpleRollResult{raw: expr.String(), result: res}, nil
}

func (e *Evaluator) builtinExists(c *draconic.Call) (draconic.Value, error) {
	name, err := c.Str(0, "name")
	if err != nil {
		return nil, err
	}
	_, ok, err := c.Interp.Lookup(c.Ctx, name)
	return ok, err
}

func (e *Evaluator) builtinGet(c *draconic.Call) (draconic.Value, error) {
	name, err := c.Str(0, "name")
	if err != nil {
		return nil, err
	}
	v, ok, err := c.Interp.Lookup(c.Ctx, name)
	if err != nil || ok {
		return v, err
	}
	def, _ := c.Arg(1, "default")
	return def, nil
}

func (e *Evaluator) builtinCharacter(c *draconic.Call) (draconic.Value, error) {
	if e.char != nil {
		return e.char, nil
	}
	ch, err := e.env.requireCharacter(c.Ctx, c.Name)
	if err != nil {
		return nil, err
	}
	e.char = &AliasCharacter{env: e.env, c: ch}
	return e.char, nil
}

func (e *Evaluator) builtinCombat(c *draconic.Call) (draconic.Value, error) {
	st, err := e.env.Combat(c.Ctx)
	if err != nil || st == nil {
		return nil, err
	}
	return &AliasCombat{state: st}, nil
}

func (e *Evaluator) builtinGetUvar(c *draconic.Call) (draconic.Value, error) {
	name, err := c.Str(0, "name")
	if err != nil {
		return nil, err
	}
	uvars, err := e.env.Uvars(c.Ctx)
	if err != nil {
		return nil, err
	}
	if v, ok := uvars[name]; ok {
		return v, nil
	}
	def, _ := c.Arg(1, "default")
	return def, nil
}

func (e *Evaluator) builtinGetUvars(c *draconic.Call) (draconic.Value, error) {
	uvars, err := e.env.Uvars(c.Ctx)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(uvars))
	for k := range uvars {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	d := draconic.NewDict()
	for _, k := range keys {
		d.SetString(k, uvars[k])
	}
	return d, nil
}

func (e *Evaluator) builtinSetUvar(c *draconic.Call) (draconic.Value, error) {
	name, err := c.Str(0, "name")
	if err != nil {
		return nil, err
	}
	v, err := c.Require(1, "value")
	if err != nil {
		return nil, err
	}
	if c.Name == "set_uvar_nx" {
		uvars, err := e.env.Uvars(c.Ctx)
		if err != nil {
			return nil, err
		}
		if _, ok := uvars[name]; ok {
			return nil, nil
		}
	}
	return nil, e.env.SetUvar(c.Ctx, name, draconic.Str(v))
}

func (e *Evaluator) builtinDeleteUvar(c *draconic.Call) (draconic.Value, error) {
	name, err := c.Str(0, "name")
	if err != nil {
		return nil, err
	}
	return nil, e.env.DeleteUvar(c.Ctx, name)
}

func (e *Evaluator) builtinUvarExists(c *draconic.Call) (draconic.Value, error) {
	name, err := c.Str(0, "name")
	if err != nil {
		return nil, err
	}
	uvars, err := e.env.Uvars(c.Ctx)
	if err != nil {
		return nil, err
	}
	_, ok := uvars[name]
	return ok, nil
}

func (e *Evaluator) builtinGetSvar(c *draconic.Call) (draconic.Value, error) {
	name, err := c.Str(0, "name")
	if err != nil {
		return nil, err
	}
	v, ok, err := e.env.Svar(c.Ctx, name)
	if err != nil {
		return nil, err
	}
	if ok {
		return v, nil
	}
	def, _ := c.Arg(1, "default")
	return def, nil
}

func (e *Evaluator) builtinGetGvar(c *draconic.Call) (draconic.Value, error) {
	id, err := c.Str(0, "address")
	if err != nil {
		return nil, err
	}
	v, ok, err := e.env.Gvar(c.Ctx, id)
	if err != nil || !ok {
		return nil, err
	}
	return v, nil
}

func (e *Evaluator) builtinSetCvar(c *draconic.Call) (draconic.Value, error) {
	return nil, setCvar(c, e.env, c.Name)
}

func (e *Evaluator) builtinDeleteCvar(c *draconic.Call) (draconic.Value, error) {
	name, err := c.Str(0, "name")
	if err != nil {
		return nil, err
	}
	return nil, e.env.DeleteCvar(c.Ctx, c.Name, name)
}

func (e *Evaluator) builtinSignature(c *draconic.Call) (draconic.Value, error) {
	if e.codec == nil {
		return nil, &CapabilityError{Function: c.Name, Reason: NotConfigured}
	}
	data, err := c.OptInt(0, "data", 0)
	if err != nil {
		return nil, err
	}
	inv := e.env.Invocation()
	tok, err := e.codec.Sign(signature.Claims{
		MessageID:    inv.MessageID,
		ChannelID:    inv.ChannelID,
		AuthorID:     inv.AuthorID,
		Scope:        inv.Scope,
		Payload:      int(data),
		CollectionID: inv.CollectionID,
	})
	if err != nil {
		return nil, &draconic.RuntimeError{Kind: draconic.ValueError, Msg: "data must be between 0 and 31", Err: err}
	}
	return tok, nil
}

func (e *Evaluator) builtinVerifySignature(c *draconic.Call) (draconic.Value, error) {
	if e.codec == nil {
		return nil, &CapabilityError{Function: c.Name, Reason: NotConfigured}
	}
	tok, err := c.Str(0, "data")
	if err != nil {
		return nil, err
	}
	v, err := e.codec.Verify(tok)
	if err != nil {
		return nil, &draconic.RuntimeError{Kind: draconic.ValueError, Msg: "invalid signature", Err: err}
	}
	d := draconic.NewDict()
	d.SetString("message_id", int64(v.MessageID))
	d.SetString("channel_id", int64(v.ChannelID))
	d.SetString("author_id", int64(v.AuthorID))
	d.SetString("timestamp", float64(v.Timestamp.UnixMilli())/1000)
	d.SetString("scope", v.Scope.String())
	d.SetString("user_data", int64(v.Payload))
	if coll := v.CollectionHex(); coll != "" {
		d.SetString("workshop_collection_id", coll)
	} else {
		d.SetString("workshop_collection_id", nil)
	}
	return d, nil
}

package draconic

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Program is a parsed block of statements.
type Program struct {
	Body []Stmt
}

var keywords = map[string]bool{
	"and": true, "as": true, "assert": true, "async": true, "await": true, "break": true,
	"class": true, "continue": true, "def": true, "del": true, "elif": true, "else": true,
	"except": true, "finally": true, "for": true, "from": true, "global": true, "if": true,
	"import": true, "in": true, "is": true, "lambda": true, "nonlocal": true, "not": true,
	"or": true, "pass": true, "raise": true, "return": true, "try": true, "while": true,
	"with": true, "yield": true, "None": true, "True": true, "False": true,
}

// unsupported keywords fail with a targeted message rather than a generic parse error.
var unsupported = map[string]bool{
	"assert": true, "async": true, "await": true, "class": true, "del": true, "from": true,
	"global": true, "import": true, "lambda": true, "nonlocal": true, "raise": true,
	"with": true, "yield": true,
}

var augOps = map[string]string{
	"+=": "+", "-=": "-", "*=": "*", "/=": "/", "//=": "//", "%=": "%", "**=": "**",
	"&=": "&", "|=": "|", "^=": "^", "<<=": "<<", ">>=": ">>",
}

// Parse parses a block of draconic statements.
//
// Postcondition: returns a non-nil Program or a *SyntaxError (a *LimitError
// for string literals longer than maxConstLen).
func Parse(src string, maxConstLen int) (*Program, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks, maxConstLen: maxConstLen}
	var body []Stmt
	for p.peek().kind != tokEOF {
		if p.peek().kind == tokNewline {
			p.next()
			continue
		}
		stmts, err := p.statement()
		if err != nil {
			return nil, err
		}
		body = append(body, stmts...)
	}
	return &Program{Body: body}, nil
}

type parser struct {
	toks        []token
	i           int
	maxConstLen int
}

func (p *parser) peek() token { return p.toks[p.i] }

func (p *parser) peekAt(n int) token {
	if p.i+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.i+n]
}

func (p *parser) next() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

func (p *parser) isOp(v string) bool {
	t := p.peek()
	return t.kind == tokOp && t.val == v
}

func (p *parser) isKw(v string) bool {
	t := p.peek()
	return t.kind == tokName && t.val == v
}

func (p *parser) acceptOp(v string) bool {
	if p.isOp(v) {
		p.next()
		return true
	}
	return false
}

func (p *parser) acceptKw(v string) bool {
	if p.isKw(v) {
		p.next()
		return true
	}
	return false
}

func (p *parser) expectOp(v string) error {
	if !p.acceptOp(v) {
		return p.unexpected(fmt.Sprintf("expected '%s'", v))
	}
	return nil
}

func (p *parser) expectKw(v string) error {
	if !p.acceptKw(v) {
		return p.unexpected(fmt.Sprintf("expected '%s'", v))
	}
	return nil
}

func (p *parser) expectName() (string, error) {
	t := p.peek()
	if t.kind != tokName || keywords[t.val] {
		return "", p.unexpected("expected a name")
	}
	p.next()
	return t.val, nil
}

func (p *parser) errorAt(t token, format string, args ...any) error {
	return &SyntaxError{Line: t.line, Col: t.col, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) unexpected(msg string) error {
	t := p.peek()
	what := t.kind.String()
	if t.val != "" {
		what = fmt.Sprintf("'%s'", t.val)
	}
	return p.errorAt(t, "%s, found %s", msg, what)
}

func (p *parser) endOfLine() error {
	switch p.peek().kind {
	case tokNewline:
		p.next()
		return nil
	case tokEOF, tokDedent:
		return nil
	}
	return p.unexpected("expected end of line")
}

// statement parses one compound statement or one line of simple statements.
func (p *parser) statement() ([]Stmt, error) {
	t := p.peek()
	if t.kind == tokIndent {
		return nil, p.errorAt(t, "unexpected indent")
	}
	if t.kind == tokName {
		var (
			s   Stmt
			err error
		)
		switch t.val {
		case "if":
			s, err = p.ifStmt()
		case "while":
			s, err = p.whileStmt()
		case "for":
			s, err = p.forStmt()
		case "def":
			s, err = p.defStmt()
		case "try":
			s, err = p.tryStmt()
		default:
			return p.simpleStatements()
		}
		if err != nil {
			return nil, err
		}
		return []Stmt{s}, nil
	}
	return p.simpleStatements()
}

func (p *parser) simpleStatements() ([]Stmt, error) {
	var out []Stmt
	for {
		s, err := p.smallStatement()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
		if !p.acceptOp(";") {
			break
		}
		if k := p.peek().kind; k == tokNewline || k == tokEOF {
			break
		}
	}
	return out, p.endOfLine()
}

func (p *parser) smallStatement() (Stmt, error) {
	t := p.peek()
	at := pos{t.line}
	if t.kind == tokName {
		if unsupported[t.val] {
			return nil, p.errorAt(t, "'%s' is not supported", t.val)
		}
		switch t.val {
		case "pass":
			p.next()
			return &Pass{at}, nil
		case "break":
			p.next()
			return &Break{at}, nil
		case "continue":
			p.next()
			return &Continue{at}, nil
		case "return":
			p.next()
			if k := p.peek().kind; k == tokNewline || k == tokEOF || p.isOp(";") {
				return &Return{pos: at}, nil
			}
			v, err := p.testList()
			if err != nil {
				return nil, err
			}
			return &Return{pos: at, Value: v}, nil
		}
	}

	first, err := p.testList()
	if err != nil {
		return nil, err
	}
	if op := p.peek(); op.kind == tokOp {
		if bin, ok := augOps[op.val]; ok {
			p.next()
			if err := p.checkTarget(first, false); err != nil {
				return nil, err
			}
			v, err := p.testList()
			if err != nil {
				return nil, err
			}
			return &AugAssign{pos: at, Target: first, Op: bin, Value: v}, nil
		}
	}
	if !p.isOp("=") {
		return &ExprStmt{pos: at, Value: first}, nil
	}
	exprs := []Expr{first}
	for p.acceptOp("=") {
		v, err := p.testList()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, v)
	}
	targets := exprs[:len(exprs)-1]
	for _, tgt := range targets {
		if err := p.checkTarget(tgt, true); err != nil {
			return nil, err
		}
	}
	return &Assign{pos: at, Targets: targets, Value: exprs[len(exprs)-1]}, nil
}

// checkTarget reports whether e may be assigned to.
func (p *parser) checkTarget(e Expr, allowUnpack bool) error {
	switch v := e.(type) {
	case *Name, *SubscriptExpr:
		return nil
	case *TupleExpr:
		if allowUnpack {
			for _, el := range v.Elts {
				if err := p.checkTarget(el, true); err != nil {
					return err
				}
			}
			return nil
		}
	case *ListExpr:
		if allowUnpack {
			for _, el := range v.Elts {
				if err := p.checkTarget(el, true); err != nil {
					return err
				}
			}
			return nil
		}
	case *AttributeExpr:
		return &SyntaxError{Line: v.Line, Col: 1, Msg: "assignment to attributes is not allowed"}
	}
	return &SyntaxError{Line: e.line(), Col: 1, Msg: "cannot assign to expression"}
}

func (p *parser) block() ([]Stmt, error) {
	if err := p.expectOp(":"); err != nil {
		return nil, err
	}
	if p.peek().kind != tokNewline {
		return p.simpleStatements()
	}
	p.next()
	if p.peek().kind != tokIndent {
		return nil, p.unexpected("expected an indented block")
	}
	p.next()
	var body []Stmt
	for p.peek().kind != tokDedent && p.peek().kind != tokEOF {
		if p.peek().kind == tokNewline {
			p.next()
			continue
		}
		stmts, err := p.statement()
		if err != nil {
			return nil, err
		}
		body = append(body, stmts...)
	}
	if p.peek().kind == tokDedent {
		p.next()
	}
	return body, nil
}

func (p *parser) ifStmt() (Stmt, error) {
	t := p.next() // if or elif
	test, err := p.test()
	if err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	s := &If{pos: pos{t.line}, Test: test, Body: body}
	switch {
	case p.isKw("elif"):
		elif, err := p.ifStmt()
		if err != nil {
			return nil, err
		}
		s.Orelse = []Stmt{elif}
	case p.acceptKw("else"):
		if s.Orelse, err = p.block(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (p *parser) whileStmt() (Stmt, error) {
	t := p.next()
	test, err := p.test()
	if err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	return &While{pos: pos{t.line}, Test: test, Body: body}, nil
}

func (p *parser) forStmt() (Stmt, error) {
	t := p.next()
	target, err := p.targetList()
	if err != nil {
		return nil, err
	}
	if err := p.expectKw("in"); err != nil {
		return nil, err
	}
	iter, err := p.testList()
	if err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	return &For{pos: pos{t.line}, Target: target, Iter: iter, Body: body}, nil
}

func (p *parser) defStmt() (Stmt, error) {
	t := p.next()
	name, err := p.expectName()
	if err != nil {
		return nil, err
	}
	fn := &FunctionDef{pos: pos{t.line}, Name: name}
	if err := p.expectOp("("); err != nil {
		return nil, err
	}
	for !p.isOp(")") {
		if p.acceptOp("*") {
			if fn.Vararg, err = p.expectName(); err != nil {
				return nil, err
			}
		} else {
			param, err := p.expectName()
			if err != nil {
				return nil, err
			}
			if fn.Vararg != "" {
				return nil, p.unexpected("parameters after *args are not supported")
			}
			fn.Params = append(fn.Params, param)
			if p.acceptOp("=") {
				d, err := p.test()
				if err != nil {
					return nil, err
				}
				fn.Defaults = append(fn.Defaults, d)
			} else if len(fn.Defaults) > 0 {
				return nil, p.unexpected("non-default parameter follows default parameter")
			}
		}
		if !p.acceptOp(",") {
			break
		}
	}
	if err := p.expectOp(")"); err != nil {
		return nil, err
	}
	if p.acceptOp("->") {
		if _, err := p.test(); err != nil {
			return nil, err
		}
	}
	if fn.Body, err = p.block(); err != nil {
		return nil, err
	}
	return fn, nil
}

func (p *parser) tryStmt() (Stmt, error) {
	t := p.next()
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	s := &Try{pos: pos{t.line}, Body: body}
	for p.acceptKw("except") {
		var h ExceptHandler
		if !p.isOp(":") {
			if p.acceptOp("(") {
				for !p.isOp(")") {
					name, err := p.expectName()
					if err != nil {
						return nil, err
					}
					h.Types = append(h.Types, name)
					if !p.acceptOp(",") {
						break
					}
				}
				if err := p.expectOp(")"); err != nil {
					return nil, err
				}
			} else {
				name, err := p.expectName()
				if err != nil {
					return nil, err
				}
				h.Types = []string{name}
			}
			if p.acceptKw("as") {
				if h.Name, err = p.expectName(); err != nil {
					return nil, err
				}
			}
		}
		if h.Body, err = p.block(); err != nil {
			return nil, err
		}
		s.Handlers = append(s.Handlers, h)
	}
	if len(s.Handlers) > 0 && p.acceptKw("else") {
		if s.Orelse, err = p.block(); err != nil {
			return nil, err
		}
	}
	if p.acceptKw("finally") {
		if s.Finally, err = p.block(); err != nil {
			return nil, err
		}
	}
	if len(s.Handlers) == 0 && s.Finally == nil {
		return nil, p.unexpected("expected 'except' or 'finally'")
	}
	return s, nil
}

// targetList parses the target of a for loop or comprehension.
func (p *parser) targetList() (Expr, error) {
	t := p.peek()
	first, err := p.bitOr()
	if err != nil {
		return nil, err
	}
	var target Expr = first
	if p.isOp(",") {
		elts := []Expr{first}
		for p.acceptOp(",") {
			if p.isKw("in") {
				break
			}
			e, err := p.bitOr()
			if err != nil {
				return nil, err
			}
			elts = append(elts, e)
		}
		target = &TupleExpr{pos: pos{t.line}, Elts: elts}
	}
	return target, p.checkTarget(target, true)
}

func canStartExpr(t token) bool {
	switch t.kind {
	case tokName:
		return !keywords[t.val] || t.val == "not" || t.val == "None" || t.val == "True" || t.val == "False"
	case tokInt, tokFloat, tokString:
		return true
	case tokOp:
		switch t.val {
		case "(", "[", "{", "-", "+", "~":
			return true
		}
	}
	return false
}

// testList parses one expression or a bare tuple.
func (p *parser) testList() (Expr, error) {
	t := p.peek()
	first, err := p.test()
	if err != nil {
		return nil, err
	}
	if !p.isOp(",") {
		return first, nil
	}
	elts := []Expr{first}
	for p.acceptOp(",") {
		if !canStartExpr(p.peek()) {
			break
		}
		e, err := p.test()
		if err != nil {
			return nil, err
		}
		elts = append(elts, e)
	}
	return &TupleExpr{pos: pos{t.line}, Elts: elts}, nil
}

func (p *parser) test() (Expr, error) {
	t := p.peek()
	if t.kind == tokName && unsupported[t.val] {
		return nil, p.errorAt(t, "'%s' is not supported", t.val)
	}
	body, err := p.orTest()
	if err != nil {
		return nil, err
	}
	if !p.acceptKw("if") {
		return body, nil
	}
	cond, err := p.orTest()
	if err != nil {
		return nil, err
	}
	if err := p.expectKw("else"); err != nil {
		return nil, err
	}
	orelse, err := p.test()
	if err != nil {
		return nil, err
	}
	return &IfExpr{pos: pos{t.line}, Test: cond, Body: body, Orelse: orelse}, nil
}

func (p *parser) boolChain(op string, next func() (Expr, error)) (Expr, error) {
	t := p.peek()
	first, err := next()
	if err != nil {
		return nil, err
	}
	if !p.isKw(op) {
		return first, nil
	}
	values := []Expr{first}
	for p.acceptKw(op) {
		v, err := next()
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return &BoolExpr{pos: pos{t.line}, Op: op, Values: values}, nil
}

func (p *parser) orTest() (Expr, error) {
	return p.boolChain("or", p.andTest)
}

func (p *parser) andTest() (Expr, error) {
	return p.boolChain("and", p.notTest)
}

func (p *parser) notTest() (Expr, error) {
	t := p.peek()
	if p.acceptKw("not") {
		v, err := p.notTest()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{pos: pos{t.line}, Op: "not", Operand: v}, nil
	}
	return p.comparison()
}

func (p *parser) compareOp() string {
	t := p.peek()
	switch {
	case t.kind == tokOp:
		switch t.val {
		case "<", ">", "==", ">=", "<=", "!=":
			p.next()
			return t.val
		}
	case t.kind == tokName && t.val == "in":
		p.next()
		return "in"
	case t.kind == tokName && t.val == "not":
		if n := p.peekAt(1); n.kind == tokName && n.val == "in" {
			p.next()
			p.next()
			return "not in"
		}
	case t.kind == tokName && t.val == "is":
		p.next()
		if p.acceptKw("not") {
			return "is not"
		}
		return "is"
	}
	return ""
}

func (p *parser) comparison() (Expr, error) {
	t := p.peek()
	left, err := p.bitOr()
	if err != nil {
		return nil, err
	}
	cmp := &CompareExpr{pos: pos{t.line}, Left: left}
	for {
		op := p.compareOp()
		if op == "" {
			break
		}
		right, err := p.bitOr()
		if err != nil {
			return nil, err
		}
		cmp.Ops = append(cmp.Ops, op)
		cmp.Comparators = append(cmp.Comparators, right)
	}
	if len(cmp.Ops) == 0 {
		return left, nil
	}
	return cmp, nil
}

func (p *parser) binary(next func() (Expr, error), ops ...string) (Expr, error) {
	left, err := next()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		matched := ""
		if t.kind == tokOp {
			for _, op := range ops {
				if t.val == op {
					matched = op
					break
				}
			}
		}
		if matched == "" {
			return left, nil
		}
		p.next()
		right, err := next()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{pos: pos{t.line}, Op: matched, Left: left, Right: right}
	}
}

func (p *parser) bitOr() (Expr, error)  { return p.binary(p.bitXor, "|") }
func (p *parser) bitXor() (Expr, error) { return p.binary(p.bitAnd, "^") }
func (p *parser) bitAnd() (Expr, error) { return p.binary(p.shift, "&") }
func (p *parser) shift() (Expr, error)  { return p.binary(p.arith, "<<", ">>") }
func (p *parser) arith() (Expr, error)  { return p.binary(p.term, "+", "-") }
func (p *parser) term() (Expr, error)   { return p.binary(p.factor, "*", "/", "//", "%") }

func (p *parser) factor() (Expr, error) {
	t := p.peek()
	if t.kind == tokOp && (t.val == "-" || t.val == "+" || t.val == "~") {
		p.next()
		v, err := p.factor()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{pos: pos{t.line}, Op: t.val, Operand: v}, nil
	}
	return p.power()
}

func (p *parser) power() (Expr, error) {
	t := p.peek()
	base, err := p.atomExpr()
	if err != nil {
		return nil, err
	}
	if !p.acceptOp("**") {
		return base, nil
	}
	exp, err := p.factor()
	if err != nil {
		return nil, err
	}
	return &BinaryExpr{pos: pos{t.line}, Op: "**", Left: base, Right: exp}, nil
}

func (p *parser) atomExpr() (Expr, error) {
	e, err := p.atom()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		switch {
		case p.acceptOp("("):
			if e, err = p.call(e, t); err != nil {
				return nil, err
			}
		case p.acceptOp("["):
			idx, err := p.subscript()
			if err != nil {
				return nil, err
			}
			if err := p.expectOp("]"); err != nil {
				return nil, err
			}
			e = &SubscriptExpr{pos: pos{t.line}, Value: e, Index: idx}
		case p.acceptOp("."):
			nt := p.peek()
			name, err := p.expectName()
			if err != nil {
				return nil, err
			}
			if strings.HasPrefix(name, "_") {
				return nil, p.errorAt(nt, "access to private attribute '%s' is not allowed", name)
			}
			e = &AttributeExpr{pos: pos{t.line}, Value: e, Attr: name}
		default:
			return e, nil
		}
	}
}

func (p *parser) call(fn Expr, open token) (Expr, error) {
	c := &CallExpr{pos: pos{open.line}, Func: fn}
	for !p.isOp(")") {
		t := p.peek()
		switch {
		case p.acceptOp("*"):
			v, err := p.test()
			if err != nil {
				return nil, err
			}
			c.Args = append(c.Args, &Starred{pos: pos{t.line}, Value: v})
		case p.isOp("**"):
			return nil, p.errorAt(t, "keyword argument unpacking is not supported")
		case t.kind == tokName && !keywords[t.val] && p.peekAt(1).kind == tokOp && p.peekAt(1).val == "=":
			p.next()
			p.next()
			v, err := p.test()
			if err != nil {
				return nil, err
			}
			c.Keywords = append(c.Keywords, Keyword{Name: t.val, Value: v})
		default:
			if len(c.Keywords) > 0 {
				return nil, p.errorAt(t, "positional argument follows keyword argument")
			}
			v, err := p.test()
			if err != nil {
				return nil, err
			}
			if p.isKw("for") {
				gens, err := p.comprehension()
				if err != nil {
					return nil, err
				}
				v = &ListComp{pos: pos{t.line}, Elt: v, Generators: gens}
			}
			c.Args = append(c.Args, v)
		}
		if !p.acceptOp(",") {
			break
		}
	}
	return c, p.expectOp(")")
}

func (p *parser) subscript() (Expr, error) {
	t := p.peek()
	var lower Expr
	var err error
	if !p.isOp(":") {
		if lower, err = p.test(); err != nil {
			return nil, err
		}
		if !p.isOp(":") {
			return lower, nil
		}
	}
	p.next()
	s := &SliceExpr{pos: pos{t.line}, Lower: lower}
	if !p.isOp(":") && !p.isOp("]") {
		if s.Upper, err = p.test(); err != nil {
			return nil, err
		}
	}
	if p.acceptOp(":") && !p.isOp("]") {
		if s.Step, err = p.test(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (p *parser) comprehension() ([]Comprehension, error) {
	var gens []Comprehension
	for p.acceptKw("for") {
		target, err := p.targetList()
		if err != nil {
			return nil, err
		}
		if err := p.expectKw("in"); err != nil {
			return nil, err
		}
		iter, err := p.orTest()
		if err != nil {
			return nil, err
		}
		g := Comprehension{Target: target, Iter: iter}
		for p.acceptKw("if") {
			cond, err := p.orTest()
			if err != nil {
				return nil, err
			}
			g.Ifs = append(g.Ifs, cond)
		}
		gens = append(gens, g)
	}
	return gens, nil
}

// sequence parses the inside of a ( or [ display up to close.
func (p *parser) sequence(open token, close string) (Expr, error) {
	at := pos{open.line}
	if p.acceptOp(close) {
		if close == ")" {
			return &TupleExpr{pos: at}, nil
		}
		return &ListExpr{pos: at}, nil
	}
	first, err := p.test()
	if err != nil {
		return nil, err
	}
	if p.isKw("for") {
		gens, err := p.comprehension()
		if err != nil {
			return nil, err
		}
		return &ListComp{pos: at, Elt: first, Generators: gens}, p.expectOp(close)
	}
	elts := []Expr{first}
	sawComma := false
	for p.acceptOp(",") {
		sawComma = true
		if p.isOp(close) {
			break
		}
		e, err := p.test()
		if err != nil {
			return nil, err
		}
		elts = append(elts, e)
	}
	if err := p.expectOp(close); err != nil {
		return nil, err
	}
	if close == "]" {
		return &ListExpr{pos: at, Elts: elts}, nil
	}
	if !sawComma {
		return first, nil
	}
	return &TupleExpr{pos: at, Elts: elts}, nil
}

func (p *parser) dict(open token) (Expr, error) {
	at := pos{open.line}
	d := &DictExpr{pos: at}
	if p.acceptOp("}") {
		return d, nil
	}
	key, err := p.test()
	if err != nil {
		return nil, err
	}
	if !p.acceptOp(":") {
		return nil, p.errorAt(open, "set literals are not supported")
	}
	val, err := p.test()
	if err != nil {
		return nil, err
	}
	if p.isKw("for") {
		gens, err := p.comprehension()
		if err != nil {
			return nil, err
		}
		return &DictComp{pos: at, Key: key, Value: val, Generators: gens}, p.expectOp("}")
	}
	d.Keys, d.Values = []Expr{key}, []Expr{val}
	for p.acceptOp(",") {
		if p.isOp("}") {
			break
		}
		k, err := p.test()
		if err != nil {
			return nil, err
		}
		if err := p.expectOp(":"); err != nil {
			return nil, err
		}
		v, err := p.test()
		if err != nil {
			return nil, err
		}
		d.Keys = append(d.Keys, k)
		d.Values = append(d.Values, v)
	}
	return d, p.expectOp("}")
}

func (p *parser) atom() (Expr, error) {
	t := p.peek()
	at := pos{t.line}
	switch t.kind {
	case tokOp:
		switch t.val {
		case "(":
			p.next()
			return p.sequence(t, ")")
		case "[":
			p.next()
			return p.sequence(t, "]")
		case "{":
			p.next()
			return p.dict(t)
		}
	case tokName:
		switch t.val {
		case "None":
			p.next()
			return &Const{pos: at, Value: nil}, nil
		case "True":
			p.next()
			return &Const{pos: at, Value: true}, nil
		case "False":
			p.next()
			return &Const{pos: at, Value: false}, nil
		}
		if keywords[t.val] {
			return nil, p.unexpected("expected an expression")
		}
		if strings.HasPrefix(t.val, "__") {
			return nil, p.errorAt(t, "access to '%s' is not allowed", t.val)
		}
		p.next()
		return &Name{pos: at, ID: t.val}, nil
	case tokInt:
		p.next()
		n, err := strconv.ParseInt(t.val, 10, 64)
		if err != nil {
			return nil, p.errorAt(t, "integer literal %s is too large", t.val)
		}
		return &Const{pos: at, Value: n}, nil
	case tokFloat:
		p.next()
		f, err := strconv.ParseFloat(t.val, 64)
		if err != nil {
			return nil, p.errorAt(t, "invalid number %s", t.val)
		}
		return &Const{pos: at, Value: f}, nil
	case tokString:
		return p.stringLiteral()
	}
	return nil, p.unexpected("expected an expression")
}

// stringLiteral parses one or more adjacent string literals.
func (p *parser) stringLiteral() (Expr, error) {
	first := p.peek()
	var parts []Expr
	for p.peek().kind == tokString {
		t := p.next()
		text, isF, err := unquote(t.val)
		if err != nil {
			return nil, p.errorAt(t, "%s", err.Error())
		}
		if !isF {
			parts = append(parts, &Const{pos: pos{t.line}, Value: text})
			continue
		}
		fparts, err := parseFString(text, t)
		if err != nil {
			return nil, err
		}
		parts = append(parts, fparts...)
	}

	allConst := true
	var b strings.Builder
	for _, part := range parts {
		c, ok := part.(*Const)
		if !ok {
			allConst = false
			break
		}
		b.WriteString(c.Value.(string))
	}
	if allConst {
		if p.maxConstLen > 0 && b.Len() > p.maxConstLen {
			return nil, limitf(TooLong, "string literal longer than %d characters", p.maxConstLen)
		}
		return &Const{pos: pos{first.line}, Value: b.String()}, nil
	}
	return &FString{pos: pos{first.line}, Parts: parts}, nil
}

// parseFString splits the body of an f-string into literal and formatted parts.
func parseFString(text string, t token) ([]Expr, error) {
	var (
		parts []Expr
		lit   strings.Builder
	)
	flush := func() {
		if lit.Len() > 0 {
			parts = append(parts, &Const{pos: pos{t.line}, Value: lit.String()})
			lit.Reset()
		}
	}
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c == '{' && i+1 < len(text) && text[i+1] == '{':
			lit.WriteByte('{')
			i++
		case c == '}' && i+1 < len(text) && text[i+1] == '}':
			lit.WriteByte('}')
			i++
		case c == '}':
			return nil, &SyntaxError{Line: t.line, Col: t.col, Msg: "f-string: single '}' is not allowed"}
		case c == '{':
			end := matchBrace(text, i)
			if end < 0 {
				return nil, &SyntaxError{Line: t.line, Col: t.col, Msg: "f-string: expecting '}'"}
			}
			fv, err := parseReplacementField(text[i+1:end], t)
			if err != nil {
				return nil, err
			}
			flush()
			parts = append(parts, fv)
			i = end
		default:
			lit.WriteByte(c)
		}
	}
	flush()
	return parts, nil
}

// matchBrace returns the index of the '}' closing the '{' at open, skipping
// nested brackets and quoted strings.
func matchBrace(s string, open int) int {
	depth := 0
	var quote byte
	for i := open + 1; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '(', '[', '{':
			depth++
		case ')', ']':
			depth--
		case '}':
			if depth == 0 {
				return i
			}
			depth--
		}
	}
	return -1
}

func parseReplacementField(field string, t token) (Expr, error) {
	expr, conv, spec := field, byte(0), ""
	depth := 0
	var quote byte
	for i := 0; i < len(field); i++ {
		c := field[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case '!':
			if depth == 0 && i+1 < len(field) && field[i+1] != '=' {
				expr = field[:i]
				conv = field[i+1]
				if i+2 < len(field) && field[i+2] == ':' {
					spec = field[i+3:]
				}
				i = len(field)
			}
		case ':':
			if depth == 0 {
				expr, spec = field[:i], field[i+1:]
				i = len(field)
			}
		}
	}
	if strings.TrimSpace(expr) == "" {
		return nil, &SyntaxError{Line: t.line, Col: t.col, Msg: "f-string: empty expression not allowed"}
	}
	if conv != 0 && conv != 'r' && conv != 's' && conv != 'a' {
		return nil, &SyntaxError{Line: t.line, Col: t.col, Msg: "f-string: invalid conversion character"}
	}
	if conv == 'a' {
		conv = 'r'
	}
	e, err := parseExpression(expr)
	if err != nil {
		var se *SyntaxError
		if errors.As(err, &se) {
			se.Line += t.line - 1
		}
		return nil, err
	}
	return &FormattedValue{pos: pos{t.line}, Value: e, Conv: conv, Spec: spec}, nil
}

// parseExpression parses src as a single expression list.
func parseExpression(src string) (Expr, error) {
	toks, err := tokenize(strings.TrimSpace(src))
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	e, err := p.testList()
	if err != nil {
		return nil, err
	}
	if p.peek().kind == tokNewline {
		p.next()
	}
	if p.peek().kind != tokEOF {
		return nil, p.unexpected("expected end of expression")
	}
	return e, nil
}

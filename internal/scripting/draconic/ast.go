package draconic

// Expr is an expression node.
type Expr interface{ line() int }

// Stmt is a statement node.
type Stmt interface{ line() int }

type pos struct{ Line int }

func (p pos) line() int { return p.Line }

type (
	Const struct {
		pos
		Value Value
	}
	Name struct {
		pos
		ID string
	}
	// FString is an f-string; Parts are string Consts and FormattedValues.
	FString struct {
		pos
		Parts []Expr
	}
	FormattedValue struct {
		pos
		Value Expr
		Conv  byte // 0, 'r' or 's'
		Spec  string
	}
	ListExpr struct {
		pos
		Elts []Expr
	}
	TupleExpr struct {
		pos
		Elts []Expr
	}
	DictExpr struct {
		pos
		Keys   []Expr
		Values []Expr
	}
	BinaryExpr struct {
		pos
		Op          string
		Left, Right Expr
	}
	UnaryExpr struct {
		pos
		Op      string
		Operand Expr
	}
	BoolExpr struct {
		pos
		Op     string // and, or
		Values []Expr
	}
	CompareExpr struct {
		pos
		Left        Expr
		Ops         []string
		Comparators []Expr
	}
	IfExpr struct {
		pos
		Test, Body, Orelse Expr
	}
	Keyword struct {
		Name  string
		Value Expr
	}
	CallExpr struct {
		pos
		Func     Expr
		Args     []Expr
		Keywords []Keyword
	}
	// Starred is *expr inside a call's argument list.
	Starred struct {
		pos
		Value Expr
	}
	AttributeExpr struct {
		pos
		Value Expr
		Attr  string
	}
	SubscriptExpr struct {
		pos
		Value Expr
		Index Expr
	}
	SliceExpr struct {
		pos
		Lower, Upper, Step Expr
	}
	Comprehension struct {
		Target Expr
		Iter   Expr
		Ifs    []Expr
	}
	ListComp struct {
		pos
		Elt        Expr
		Generators []Comprehension
	}
	DictComp struct {
		pos
		Key, Value Expr
		Generators []Comprehension
	}
)

type (
	ExprStmt struct {
		pos
		Value Expr
	}
	Assign struct {
		pos
		Targets []Expr
		Value   Expr
	}
	AugAssign struct {
		pos
		Target Expr
		Op     string
		Value  Expr
	}
	If struct {
		pos
		Test   Expr
		Body   []Stmt
		Orelse []Stmt
	}
	For struct {
		pos
		Target Expr
		Iter   Expr
		Body   []Stmt
	}
	While struct {
		pos
		Test Expr
		Body []Stmt
	}
	Break    struct{ pos }
	Continue struct{ pos }
	Pass     struct{ pos }
	Return   struct {
		pos
		Value Expr
	}
	FunctionDef struct {
		pos
		Name     string
		Params   []string
		Defaults []Expr // aligned to the last len(Defaults) params
		Vararg   string
		Body     []Stmt
	}
	ExceptHandler struct {
		Types []string // empty catches every runtime error
		Name  string
		Body  []Stmt
	}
	Try struct {
		pos
		Body     []Stmt
		Handlers []ExceptHandler
		Orelse   []Stmt
		Finally  []Stmt
	}
)

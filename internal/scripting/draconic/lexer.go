package draconic

import (
	"errors"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
)

// sourceLexer splits draconic source into raw tokens. Layout (INDENT, DEDENT,
// logical NEWLINE) is derived from these in tokenize.
var sourceLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `#[^\n]*`},
	{Name: "Continuation", Pattern: `\\\r?\n`},
	{Name: "Newline", Pattern: `\r?\n`},
	{Name: "Whitespace", Pattern: `[ \t\f]+`},
	{Name: "String", Pattern: `[fFrR]?(?:"""(?:[^\\]|\\.)*?"""|'''(?:[^\\]|\\.)*?'''|"(?:[^"\\\n]|\\.)*"|'(?:[^'\\\n]|\\.)*')`},
	{Name: "Float", Pattern: `(?:\d+\.\d*|\.\d+)(?:[eE][+-]?\d+)?|\d+[eE][+-]?\d+`},
	{Name: "Int", Pattern: `\d+`},
	{Name: "Name", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},
	{Name: "Op", Pattern: `\*\*=|//=|>>=|<<=|\*\*|//|==|!=|<=|>=|<<|>>|\+=|-=|\*=|/=|%=|&=|\|=|\^=|->|[-+*/%<>=()\[\]{}:,.;~&|^]`},
})

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNewline
	tokIndent
	tokDedent
	tokName
	tokInt
	tokFloat
	tokString
	tokOp
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of input"
	case tokNewline:
		return "newline"
	case tokIndent:
		return "indent"
	case tokDedent:
		return "dedent"
	case tokName:
		return "name"
	case tokInt, tokFloat:
		return "number"
	case tokString:
		return "string"
	}
	return "operator"
}

type token struct {
	kind tokenKind
	val  string
	line int
	col  int
}

// tokenize lexes src and inserts Python-style layout tokens.
func tokenize(src string) ([]token, error) {
	lex, err := sourceLexer.LexString("", src)
	if err != nil {
		return nil, lexError(err)
	}
	symbols := sourceLexer.Symbols()
	kinds := map[lexer.TokenType]tokenKind{
		symbols["String"]: tokString,
		symbols["Float"]:  tokFloat,
		symbols["Int"]:    tokInt,
		symbols["Name"]:   tokName,
		symbols["Op"]:     tokOp,
	}

	var (
		out         []token
		indents     = []int{0}
		depth       int
		atLineStart = true
		indent      int
		last        lexer.Position
	)
	for {
		t, err := lex.Next()
		if err != nil {
			return nil, lexError(err)
		}
		if t.EOF() {
			last = t.Pos
			break
		}
		switch t.Type {
		case symbols["Comment"], symbols["Continuation"]:
			continue
		case symbols["Whitespace"]:
			if atLineStart {
				indent = indentWidth(t.Value)
			}
			continue
		case symbols["Newline"]:
			if depth > 0 {
				continue
			}
			if !atLineStart {
				out = append(out, token{kind: tokNewline, line: t.Pos.Line, col: t.Pos.Column})
			}
			atLineStart = true
			indent = 0
			continue
		}

		if atLineStart && depth == 0 {
			switch top := indents[len(indents)-1]; {
			case indent > top:
				indents = append(indents, indent)
				out = append(out, token{kind: tokIndent, line: t.Pos.Line, col: 1})
			case indent < top:
				for indent < indents[len(indents)-1] {
					indents = indents[:len(indents)-1]
					out = append(out, token{kind: tokDedent, line: t.Pos.Line, col: 1})
				}
				if indent != indents[len(indents)-1] {
					return nil, &SyntaxError{Line: t.Pos.Line, Col: 1, Msg: "unindent does not match any outer indentation level"}
				}
			}
			atLineStart = false
		}

		kind := kinds[t.Type]
		if kind == tokOp {
			switch t.Value {
			case "(", "[", "{":
				depth++
			case ")", "]", "}":
				if depth > 0 {
					depth--
				}
			}
		}
		out = append(out, token{kind: kind, val: t.Value, line: t.Pos.Line, col: t.Pos.Column})
	}

	if depth > 0 {
		return nil, &SyntaxError{Line: last.Line, Col: last.Column, Msg: "unexpected end of input inside brackets"}
	}
	if !atLineStart {
		out = append(out, token{kind: tokNewline, line: last.Line, col: last.Column})
	}
	for len(indents) > 1 {
		indents = indents[:len(indents)-1]
		out = append(out, token{kind: tokDedent, line: last.Line, col: last.Column})
	}
	out = append(out, token{kind: tokEOF, line: last.Line, col: last.Column})
	return out, nil
}

func indentWidth(ws string) int {
	w := 0
	for _, c := range ws {
		if c == '\t' {
			w = (w/8 + 1) * 8
		} else {
			w++
		}
	}
	return w
}

func lexError(err error) error {
	var le *lexer.Error
	if errors.As(err, &le) {
		return &SyntaxError{Line: le.Pos.Line, Col: le.Pos.Column, Msg: le.Msg}
	}
	return &SyntaxError{Line: 1, Col: 1, Msg: err.Error()}
}

// unquote decodes a string token, returning the text and whether it was an f-string.
func unquote(raw string) (string, bool, error) {
	var fstring, rawString bool
	for len(raw) > 0 && raw[0] != '"' && raw[0] != '\'' {
		switch raw[0] {
		case 'f', 'F':
			fstring = true
		case 'r', 'R':
			rawString = true
		}
		raw = raw[1:]
	}
	q := 1
	if strings.HasPrefix(raw, `"""`) || strings.HasPrefix(raw, `'''`) {
		q = 3
	}
	body := raw[q : len(raw)-q]
	if rawString {
		return body, fstring, nil
	}
	var b strings.Builder
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' || i+1 >= len(body) {
			b.WriteByte(c)
			continue
		}
		i++
		switch e := body[i]; e {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case '0':
			b.WriteByte(0)
		case '\\', '\'', '"':
			b.WriteByte(e)
		case '\n':
		case 'x', 'u', 'U':
			n := map[byte]int{'x': 2, 'u': 4, 'U': 8}[e]
			if i+1+n > len(body) {
				return "", false, errors.New("truncated escape sequence")
			}
			var r rune
			for _, h := range body[i+1 : i+1+n] {
				d := hexDigit(byte(h))
				if d < 0 {
					return "", false, errors.New("invalid escape sequence")
				}
				r = r*16 + rune(d)
			}
			b.WriteRune(r)
			i += n
		default:
			b.WriteByte('\\')
			b.WriteByte(e)
		}
	}
	return b.String(), fstring, nil
}

func hexDigit(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10
	}
	return -1
}

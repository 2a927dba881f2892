package scripting

import (
	"iter"
	"strings"
	"unicode"
)

// TokenKind classifies a span of scanned text.
type TokenKind int

const (
	// TokenText is literal text copied through unchanged.
	TokenText TokenKind = iota
	// TokenLegacyCurly is a {roll} substitution.
	TokenLegacyCurly
	// TokenDoubleCurly is a {{expression}} substitution.
	TokenDoubleCurly
	// TokenDrac2 is a <drac2>...</drac2> statement block.
	TokenDrac2
	// TokenLookup is a <name> variable lookup.
	TokenLookup
)

func (k TokenKind) String() string {
	switch k {
	case TokenText:
		return "text"
	case TokenLegacyCurly:
		return "legacy_curly"
	case TokenDoubleCurly:
		return "double_curly"
	case TokenDrac2:
		return "drac2_block"
	case TokenLookup:
		return "angle_lookup"
	}
	return "unknown"
}

// Token is one span of scanned text. For TokenText, Raw and Inner are the
// literal text; for the other kinds Raw includes the delimiters.
type Token struct {
	Kind  TokenKind
	Raw   string
	Inner string
	// Pos is the byte offset of Raw in the scanned text. For text that
	// contains an escaped match, Pos is the offset of the span's first byte.
	Pos int
}

const (
	drac2Open  = "<drac2>"
	drac2Close = "</drac2>"
)

// Scan splits text into literal spans and substitution tokens.
//
// Postcondition: concatenating the Raw of every TokenText with the
// substitution Raw values reproduces text minus the escaping backslashes.
func Scan(text string) []Token {
	var out []Token
	for tok := range Tokens(text) {
		out = append(out, tok)
	}
	return out
}

// Tokens yields the tokens of text left to right. Matches never overlap and
// the earliest match wins; at a single position {{ }} is tried before { },
// then <drac2>, then <name>. Adjacent literal text is yielded as one token.
func Tokens(text string) iter.Seq[Token] {
	return func(yield func(Token) bool) {
		var lit strings.Builder
		litPos := 0
		flush := func() bool {
			if lit.Len() == 0 {
				return true
			}
			s := lit.String()
			lit.Reset()
			return yield(Token{Kind: TokenText, Raw: s, Inner: s, Pos: litPos})
		}
		addLit := func(pos int, s string) {
			if lit.Len() == 0 {
				litPos = pos
			}
			lit.WriteString(s)
		}

		for i := 0; i < len(text); {
			if text[i] == '\\' && i+1 < len(text) {
				if tok, ok := matchAt(text, i+1); ok {
					addLit(i, tok.Raw)
					i += 1 + len(tok.Raw)
					continue
				}
			}
			if tok, ok := matchAt(text, i); ok {
				if !flush() || !yield(tok) {
					return
				}
				i += len(tok.Raw)
				continue
			}
			addLit(i, text[i:i+1])
			i++
		}
		flush()
	}
}

// matchAt tries every substitution form at position i.
func matchAt(text string, i int) (Token, bool) {
	switch text[i] {
	case '{':
		if tok, ok := matchDoubleCurly(text, i); ok {
			return tok, true
		}
		return matchLegacyCurly(text, i)
	case '<':
		if tok, ok := matchDrac2(text, i); ok {
			return tok, true
		}
		return matchLookup(text, i)
	}
	return Token{}, false
}

func matchDoubleCurly(text string, i int) (Token, bool) {
	if !strings.HasPrefix(text[i:], "{{") || i+2 >= len(text) {
		return Token{}, false
	}
	// The body is at least one byte, so "{{}}}" closes at the last two braces.
	end := strings.Index(text[i+3:], "}}")
	if end < 0 {
		return Token{}, false
	}
	end += i + 3
	return Token{Kind: TokenDoubleCurly, Raw: text[i : end+2], Inner: text[i+2 : end], Pos: i}, true
}

func matchLegacyCurly(text string, i int) (Token, bool) {
	if i > 0 && text[i-1] == '{' {
		return Token{}, false
	}
	if i+1 >= len(text) {
		return Token{}, false
	}
	for j := i + 2; j < len(text); j++ {
		switch text[j] {
		case '\n':
			return Token{}, false
		case '}':
			if text[i+1] == '\n' {
				return Token{}, false
			}
			return Token{Kind: TokenLegacyCurly, Raw: text[i : j+1], Inner: text[i+1 : j], Pos: i}, true
		}
	}
	return Token{}, false
}

func matchDrac2(text string, i int) (Token, bool) {
	if !strings.HasPrefix(text[i:], drac2Open) {
		return Token{}, false
	}
	start := i + len(drac2Open)
	end := strings.Index(text[start:], drac2Close)
	if end < 0 || end == 0 {
		return Token{}, false
	}
	end += start
	return Token{Kind: TokenDrac2, Raw: text[i : end+len(drac2Close)], Inner: text[start:end], Pos: i}, true
}

func matchLookup(text string, i int) (Token, bool) {
	end := strings.IndexByte(text[i+1:], '>')
	if end <= 0 {
		return Token{}, false
	}
	end += i + 1
	name := text[i+1 : end]
	if strings.ContainsFunc(name, func(r rune) bool { return unicode.IsSpace(r) || r == '<' }) {
		return Token{}, false
	}
	if isMention(name) {
		return Token{}, false
	}
	return Token{Kind: TokenLookup, Raw: text[i : end+1], Inner: name, Pos: i}, true
}

// isMention reports whether the body of a <...> tag is a Discord user, role,
// channel or custom emoji mention.
func isMention(body string) bool {
	switch {
	case strings.HasPrefix(body, "@!"), strings.HasPrefix(body, "@&"):
		return isSnowflake(body[2:])
	case strings.HasPrefix(body, "@"), strings.HasPrefix(body, "#"):
		return isSnowflake(body[1:])
	}
	emoji := strings.TrimPrefix(body, "a")
	if !strings.HasPrefix(emoji, ":") {
		return false
	}
	name, id, ok := strings.Cut(emoji[1:], ":")
	return ok && name != "" && isSnowflake(id)
}

func isSnowflake(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

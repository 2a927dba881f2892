package scripting

import (
	"errors"
	"strconv"
	"strings"
	"unicode"

	"github.com/cory-johannsen/draconic/internal/scripting/draconic"
)

// ErrUnclosedQuote is returned by ArgSplit for a quoted argument with no closing quote.
var ErrUnclosedQuote = errors.New("scripting: expected closing quote")

// quotePairs maps every opening quote to its closing quote.
var quotePairs = map[rune]rune{
	'"':  '"',
	'\'': '\'',
	'“':  '”',
	'‘':  '’',
	'«':  '»',
}

// ArgSplit splits s on whitespace. An argument that starts with a quote runs
// to the matching closing quote, which a backslash escapes; quotes inside an
// argument are literal.
//
// Postcondition: returns ErrUnclosedQuote for an unterminated quoted argument.
func ArgSplit(s string) ([]string, error) {
	var (
		out []string
		cur strings.Builder
	)
	runes := []rune(s)
	for i := 0; i < len(runes); {
		for i < len(runes) && unicode.IsSpace(runes[i]) {
			i++
		}
		if i >= len(runes) {
			break
		}
		cur.Reset()
		if closing, ok := quotePairs[runes[i]]; ok {
			i++
			closed := false
			for i < len(runes) {
				r := runes[i]
				if r == '\\' && i+1 < len(runes) && runes[i+1] == closing {
					cur.WriteRune(closing)
					i += 2
					continue
				}
				i++
				if r == closing {
					closed = true
					break
				}
				cur.WriteRune(r)
			}
			if !closed {
				return nil, ErrUnclosedQuote
			}
			out = append(out, cur.String())
			continue
		}
		for i < len(runes) && !unicode.IsSpace(runes[i]) {
			cur.WriteRune(runes[i])
			i++
		}
		out = append(out, cur.String())
	}
	return out, nil
}

// JoinArgs joins args so that ArgSplit returns them unchanged.
func JoinArgs(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = quoteArg(a)
	}
	return strings.Join(quoted, " ")
}

func quoteArg(a string) string {
	if a != "" && !strings.ContainsFunc(a, unicode.IsSpace) {
		if _, ok := quotePairs[[]rune(a)[0]]; !ok {
			return a
		}
	}
	return `"` + strings.ReplaceAll(a, `"`, `\"`) + `"`
}

// ApplyAliasArguments substitutes the arguments of an alias call into body:
//
//	%N%    the Nth argument, quoted if it contains whitespace
//	&N&    the Nth argument with quotes backslash-escaped
//	%*%    the raw argument string, quoted if it contains whitespace
//	&*&    the raw argument string with quotes backslash-escaped
//	&ARGS& the argument list as a list literal
//
// Arguments not consumed by a placeholder are appended, quoted as JoinArgs
// does. %*%, &*& and &ARGS& consume every argument.
func ApplyAliasArguments(body, rawArgs string) (string, error) {
	rawArgs = strings.TrimSpace(rawArgs)
	args, err := ArgSplit(rawArgs)
	if err != nil {
		return "", err
	}
	rest := append([]string(nil), args...)
	out := body
	if strings.Contains(body, "%*%") {
		out = strings.ReplaceAll(out, "%*%", spaceQuote(rawArgs))
		rest = nil
	}
	if strings.Contains(body, "&*&") {
		out = strings.ReplaceAll(out, "&*&", escapeQuotes(rawArgs))
		rest = nil
	}
	if strings.Contains(body, "&ARGS&") {
		items := make([]draconic.Value, len(args))
		for i, a := range args {
			items[i] = a
		}
		out = strings.ReplaceAll(out, "&ARGS&", draconic.Repr(draconic.NewList(items...)))
		rest = nil
	}
	for i, a := range args {
		n := strconv.Itoa(i + 1)
		used := false
		if key := "%" + n + "%"; strings.Contains(body, key) {
			out = strings.ReplaceAll(out, key, spaceQuote(a))
			used = true
		}
		if key := "&" + n + "&"; strings.Contains(body, key) {
			out = strings.ReplaceAll(out, key, escapeQuotes(a))
			used = true
		}
		if used {
			rest = removeFirst(rest, a)
		}
	}
	if len(rest) == 0 {
		return strings.TrimSpace(out), nil
	}
	return strings.TrimSpace(out + " " + JoinArgs(rest)), nil
}

// spaceQuote quotes s for ArgSplit only when it contains whitespace.
func spaceQuote(s string) string {
	if !strings.ContainsFunc(s, unicode.IsSpace) {
		return s
	}
	return quoteArg(s)
}

func escapeQuotes(s string) string {
	return strings.NewReplacer(`"`, `\"`, `'`, `\'`).Replace(s)
}

func removeFirst(s []string, v string) []string {
	for i, x := range s {
		if x == v {
			return append(s[:i:i], s[i+1:]...)
		}
	}
	return s
}

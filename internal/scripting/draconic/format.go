package draconic

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// maxFormatWidth caps width and precision in a format specification. The
// formatted result is still held to MaxConstLen by the caller.
const maxFormatWidth = 200_000

type formatSpec struct {
	fill      rune
	align     byte
	sign      byte
	alt       bool
	zero      bool
	width     int
	grouping  byte
	precision int
	typ       byte
}

func isAlign(r rune) bool { return r == '<' || r == '>' || r == '=' || r == '^' }

func parseFormatSpec(spec string) (formatSpec, error) {
	fs := formatSpec{fill: ' ', precision: -1}
	rs := []rune(spec)
	i := 0
	switch {
	case len(rs) >= 2 && isAlign(rs[1]):
		fs.fill, fs.align = rs[0], byte(rs[1])
		i = 2
	case len(rs) >= 1 && isAlign(rs[0]):
		fs.align = byte(rs[0])
		i = 1
	}
	if i < len(rs) && (rs[i] == '+' || rs[i] == '-' || rs[i] == ' ') {
		fs.sign = byte(rs[i])
		i++
	}
	if i < len(rs) && rs[i] == '#' {
		fs.alt = true
		i++
	}
	if i < len(rs) && rs[i] == '0' {
		fs.zero = true
		i++
	}
	start := i
	for i < len(rs) && rs[i] >= '0' && rs[i] <= '9' {
		i++
	}
	if i > start {
		w, err := strconv.Atoi(string(rs[start:i]))
		if err != nil || w > maxFormatWidth {
			return fs, limitf(TooLong, "format width larger than %d", maxFormatWidth)
		}
		fs.width = w
	}
	if i < len(rs) && (rs[i] == ',' || rs[i] == '_') {
		fs.grouping = byte(rs[i])
		i++
	}
	if i < len(rs) && rs[i] == '.' {
		i++
		start = i
		for i < len(rs) && rs[i] >= '0' && rs[i] <= '9' {
			i++
		}
		if i == start {
			return fs, valueErrorf("format specifier missing precision")
		}
		p, err := strconv.Atoi(string(rs[start:i]))
		if err != nil || p > maxFormatWidth {
			return fs, limitf(TooLong, "format precision larger than %d", maxFormatWidth)
		}
		fs.precision = p
	}
	if i < len(rs) {
		if i != len(rs)-1 || !strings.ContainsRune("sdbcoxXeEfFgGn%", rs[i]) {
			return fs, valueErrorf("invalid format specifier '%s'", spec)
		}
		fs.typ = byte(rs[i])
	}
	return fs, nil
}

// FormatValue formats v according to a Python format specification, as used
// by f-strings and str.format.
func FormatValue(v Value, spec string) (string, error) {
	if spec == "" {
		return Str(v), nil
	}
	fs, err := parseFormatSpec(spec)
	if err != nil {
		return "", err
	}
	switch x := v.(type) {
	case string:
		if fs.typ != 0 && fs.typ != 's' {
			return "", valueErrorf("unknown format code '%c' for object of type 'str'", fs.typ)
		}
		if fs.sign != 0 || fs.alt || fs.grouping != 0 {
			return "", valueErrorf("invalid format specifier for object of type 'str'")
		}
		if fs.precision >= 0 && utf8.RuneCountInString(x) > fs.precision {
			x = string([]rune(x)[:fs.precision])
		}
		return pad(fs, "", x, '<'), nil
	case bool:
		if fs.typ == 0 || fs.typ == 's' {
			return pad(fs, "", Str(x), '<'), nil
		}
		i, _ := intLike(x)
		return formatInt(fs, i)
	case int64:
		return formatInt(fs, x)
	case float64:
		return formatFloatSpec(fs, x)
	}
	return "", typeErrorf("unsupported format string passed to %s.__format__", TypeName(v))
}

func formatInt(fs formatSpec, i int64) (string, error) {
	switch fs.typ {
	case 'e', 'E', 'f', 'F', 'g', 'G', '%':
		return formatFloatSpec(fs, float64(i))
	case 's':
		return "", valueErrorf("unknown format code 's' for object of type 'int'")
	}
	if fs.precision >= 0 {
		return "", valueErrorf("precision not allowed in integer format specifier")
	}
	neg := i < 0
	u := uint64(i)
	if neg {
		u = uint64(-i)
	}
	var digits, prefix string
	switch fs.typ {
	case 0, 'd', 'n':
		digits = strconv.FormatUint(u, 10)
		digits = group(digits, fs.grouping, 3)
	case 'b':
		digits, prefix = strconv.FormatUint(u, 2), "0b"
		digits = group(digits, fs.grouping, 4)
	case 'o':
		digits, prefix = strconv.FormatUint(u, 8), "0o"
		digits = group(digits, fs.grouping, 4)
	case 'x':
		digits, prefix = strconv.FormatUint(u, 16), "0x"
		digits = group(digits, fs.grouping, 4)
	case 'X':
		digits, prefix = strings.ToUpper(strconv.FormatUint(u, 16)), "0X"
		digits = group(digits, fs.grouping, 4)
	case 'c':
		if neg || u > utf8.MaxRune {
			return "", Errorf(OverflowError, "%%c arg not in range(0x110000)")
		}
		return pad(fs, "", string(rune(u)), '<'), nil
	}
	if !fs.alt {
		prefix = ""
	}
	return pad(fs, signOf(fs, neg)+prefix, digits, '>'), nil
}

func formatFloatSpec(fs formatSpec, f float64) (string, error) {
	if fs.typ == 's' || fs.typ == 'c' || fs.typ == 'b' || fs.typ == 'o' || fs.typ == 'x' || fs.typ == 'X' || fs.typ == 'd' {
		return "", valueErrorf("unknown format code '%c' for object of type 'float'", fs.typ)
	}
	neg := math.Signbit(f) && !math.IsNaN(f)
	a := math.Abs(f)
	prec := fs.precision
	var body string
	switch fs.typ {
	case 'f', 'F':
		if prec < 0 {
			prec = 6
		}
		body = strconv.FormatFloat(a, 'f', prec, 64)
	case 'e', 'E':
		if prec < 0 {
			prec = 6
		}
		body = strconv.FormatFloat(a, 'e', prec, 64)
	case 'g', 'G', 'n':
		if prec < 0 {
			prec = 6
		}
		if prec == 0 {
			prec = 1
		}
		body = strconv.FormatFloat(a, 'g', prec, 64)
	case '%':
		if prec < 0 {
			prec = 6
		}
		body = strconv.FormatFloat(a*100, 'f', prec, 64) + "%"
	default:
		if prec < 0 {
			body = formatFloat(a)
		} else {
			if prec == 0 {
				prec = 1
			}
			body = strconv.FormatFloat(a, 'g', prec, 64)
		}
	}
	switch {
	case math.IsInf(a, 0):
		body = "inf"
	case math.IsNaN(a):
		body = "nan"
	}
	if fs.typ == 'E' || fs.typ == 'F' || fs.typ == 'G' {
		body = strings.ToUpper(body)
	}
	if fs.grouping != 0 {
		intPart, rest := body, ""
		if i := strings.IndexAny(body, ".e%"); i >= 0 {
			intPart, rest = body[:i], body[i:]
		}
		body = group(intPart, fs.grouping, 3) + rest
	}
	return pad(fs, signOf(fs, neg), body, '>'), nil
}

func signOf(fs formatSpec, neg bool) string {
	switch {
	case neg:
		return "-"
	case fs.sign == '+':
		return "+"
	case fs.sign == ' ':
		return " "
	}
	return ""
}

// group inserts sep every n digits from the right.
func group(digits string, sep byte, n int) string {
	if sep == 0 || len(digits) <= n {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % n
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += n {
		if b.Len() > 0 {
			b.WriteByte(sep)
		}
		b.WriteString(digits[i : i+n])
	}
	return b.String()
}

// pad applies width, fill and alignment; prefix is the sign and base marker.
func pad(fs formatSpec, prefix, body string, defAlign byte) string {
	align, fill := fs.align, fs.fill
	if fs.zero && align == 0 {
		align, fill = '=', '0'
	}
	if align == 0 {
		align = defAlign
	}
	n := fs.width - utf8.RuneCountInString(prefix) - utf8.RuneCountInString(body)
	if n <= 0 {
		return prefix + body
	}
	fillStr := func(k int) string { return strings.Repeat(string(fill), k) }
	switch align {
	case '<':
		return prefix + body + fillStr(n)
	case '^':
		return fillStr(n/2) + prefix + body + fillStr(n-n/2)
	case '=':
		return prefix + fillStr(n) + body
	}
	return fillStr(n) + prefix + body
}

// percentFormat implements printf-style str % args.
func percentFormat(s string, arg Value) (Value, error) {
	args := []Value{arg}
	if l, ok := arg.(*List); ok {
		args = l.Items
	}
	var b strings.Builder
	next := 0
	for i := 0; i < len(s); i++ {
		if s[i] != '%' {
			b.WriteByte(s[i])
			continue
		}
		i++
		if i >= len(s) {
			return nil, valueErrorf("incomplete format")
		}
		var spec strings.Builder
		align := ""
		for ; i < len(s) && strings.IndexByte("-+ 0#", s[i]) >= 0; i++ {
			switch s[i] {
			case '-':
				align = "<"
			case '0':
				if align == "" {
					spec.WriteByte('0')
				}
			default:
				spec.WriteByte(s[i])
			}
		}
		for ; i < len(s) && (s[i] >= '0' && s[i] <= '9' || s[i] == '.'); i++ {
			spec.WriteByte(s[i])
		}
		if i >= len(s) {
			return nil, valueErrorf("incomplete format")
		}
		conv := s[i]
		if conv == '%' {
			b.WriteByte('%')
			continue
		}
		if next >= len(args) {
			return nil, typeErrorf("not enough arguments for format string")
		}
		v := args[next]
		next++
		var (
			out string
			err error
		)
		switch conv {
		case 's':
			out, err = FormatValue(Str(v), align+spec.String())
		case 'r':
			out, err = FormatValue(Repr(v), align+spec.String())
		case 'd', 'i', 'u':
			if f, ok := v.(float64); ok {
				v = int64(f)
			}
			if !isNumber(v) {
				return nil, typeErrorf("%%%c format: a number is required, not %s", conv, TypeName(v))
			}
			out, err = FormatValue(v, align+spec.String()+"d")
		case 'f', 'F', 'e', 'E', 'g', 'G', 'x', 'X', 'o':
			if !isNumber(v) {
				return nil, typeErrorf("%%%c format: a number is required, not %s", conv, TypeName(v))
			}
			out, err = FormatValue(v, align+spec.String()+string(conv))
		default:
			return nil, valueErrorf("unsupported format character '%c'", conv)
		}
		if err != nil {
			return nil, err
		}
		b.WriteString(out)
	}
	if next < len(args) {
		return nil, typeErrorf("not all arguments converted during string formatting")
	}
	return b.String(), nil
}

// formatString implements str.format.
func (in *Interpreter) formatString(tmpl string, args []Value, kwargs map[string]Value) (string, error) {
	var b strings.Builder
	auto := 0
	for i := 0; i < len(tmpl); i++ {
		c := tmpl[i]
		switch {
		case c == '{' && i+1 < len(tmpl) && tmpl[i+1] == '{':
			b.WriteByte('{')
			i++
			continue
		case c == '}' && i+1 < len(tmpl) && tmpl[i+1] == '}':
			b.WriteByte('}')
			i++
			continue
		case c == '}':
			return "", valueErrorf("single '}' encountered in format string")
		case c != '{':
			b.WriteByte(c)
			continue
		}
		end := strings.IndexByte(tmpl[i:], '}')
		if end < 0 {
			return "", valueErrorf("expected '}' before end of string")
		}
		field := tmpl[i+1 : i+end]
		i += end

		var spec string
		var conv byte
		if k := strings.IndexByte(field, ':'); k >= 0 {
			field, spec = field[:k], field[k+1:]
		}
		if k := strings.IndexByte(field, '!'); k >= 0 {
			if k+2 != len(field) {
				return "", valueErrorf("invalid conversion in format string")
			}
			field, conv = field[:k], field[k+1]
		}

		name, rest := field, ""
		if k := strings.IndexAny(field, ".["); k >= 0 {
			name, rest = field[:k], field[k:]
		}
		var v Value
		switch {
		case name == "":
			if auto >= len(args) {
				return "", Errorf(IndexError, "replacement index %d out of range", auto)
			}
			v = args[auto]
			auto++
		case name[0] >= '0' && name[0] <= '9':
			n, err := strconv.Atoi(name)
			if err != nil || n >= len(args) {
				return "", Errorf(IndexError, "replacement index %s out of range", name)
			}
			v = args[n]
		default:
			kv, ok := kwargs[name]
			if !ok {
				return "", Errorf(KeyError, "%s", quote(name))
			}
			v = kv
		}

		for rest != "" {
			var err error
			if rest[0] == '.' {
				k := strings.IndexAny(rest[1:], ".[")
				attr := rest[1:]
				if k >= 0 {
					attr, rest = rest[1:k+1], rest[k+1:]
				} else {
					rest = ""
				}
				if strings.HasPrefix(attr, "_") {
					return "", Errorf(AttributeError, "access to private attribute '%s' is not allowed", attr)
				}
				v, err = in.getAttr(v, attr)
			} else {
				k := strings.IndexByte(rest, ']')
				if k < 0 {
					return "", valueErrorf("missing ']' in format string")
				}
				key := rest[1:k]
				rest = rest[k+1:]
				var idx Value = key
				if n, perr := strconv.ParseInt(key, 10, 64); perr == nil {
					idx = n
				}
				v, err = in.getItem(v, idx)
			}
			if err != nil {
				return "", err
			}
		}

		switch conv {
		case 'r', 'a':
			v = Repr(v)
		case 's':
			v = Str(v)
		case 0:
		default:
			return "", valueErrorf("unknown conversion specifier %c", conv)
		}
		s, err := FormatValue(v, spec)
		if err != nil {
			return "", err
		}
		b.WriteString(s)
		if err := in.checkLen(b.Len()); err != nil {
			return "", err
		}
	}
	return b.String(), nil
}

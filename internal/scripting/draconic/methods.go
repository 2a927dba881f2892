package draconic

import (
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

func (in *Interpreter) strMethod(s string, name string) (Value, bool) {
	switch name {
	case "lower":
		return method(name, func(c *Call) (Value, error) { return strings.ToLower(s), c.ArgCount(0, 0) })
	case "upper":
		return method(name, func(c *Call) (Value, error) { return strings.ToUpper(s), c.ArgCount(0, 0) })
	case "swapcase":
		return method(name, func(c *Call) (Value, error) {
			return strings.Map(func(r rune) rune {
				if unicode.IsUpper(r) {
					return unicode.ToLower(r)
				}
				return unicode.ToUpper(r)
			}, s), c.ArgCount(0, 0)
		})
	case "title":
		return method(name, func(c *Call) (Value, error) { return titleCase(s), c.ArgCount(0, 0) })
	case "capitalize":
		return method(name, func(c *Call) (Value, error) {
			if s == "" {
				return s, nil
			}
			r, size := utf8.DecodeRuneInString(s)
			return string(unicode.ToUpper(r)) + strings.ToLower(s[size:]), c.ArgCount(0, 0)
		})
	case "strip", "lstrip", "rstrip":
		return method(name, func(c *Call) (Value, error) {
			trim := unicode.IsSpace
			if v, ok := c.Arg(0, "chars"); ok && v != nil {
				chars, err := c.Str(0, "chars")
				if err != nil {
					return nil, err
				}
				trim = func(r rune) bool { return strings.ContainsRune(chars, r) }
			}
			switch name {
			case "lstrip":
				return strings.TrimLeftFunc(s, trim), nil
			case "rstrip":
				return strings.TrimRightFunc(s, trim), nil
			}
			return strings.TrimFunc(s, trim), nil
		})
	case "split", "rsplit":
		return method(name, func(c *Call) (Value, error) {
			return in.split(c, s, name == "rsplit")
		})
	case "splitlines":
		return method(name, func(c *Call) (Value, error) {
			lines := strings.FieldsFunc(strings.ReplaceAll(s, "\r\n", "\n"), func(r rune) bool { return r == '\n' || r == '\r' })
			return stringList(lines), nil
		})
	case "join":
		return method(name, func(c *Call) (Value, error) {
			if err := c.ArgCount(1, 1); err != nil {
				return nil, err
			}
			items, err := in.iterate(c.Args[0])
			if err != nil {
				return nil, err
			}
			parts := make([]string, len(items))
			total := 0
			for i, item := range items {
				p, ok := item.(string)
				if !ok {
					return nil, typeErrorf("sequence item %d: expected str instance, %s found", i, TypeName(item))
				}
				parts[i] = p
				total += len(p) + len(s)
			}
			if err := in.checkLen(total); err != nil {
				return nil, err
			}
			return strings.Join(parts, s), nil
		})
	case "replace":
		return method(name, func(c *Call) (Value, error) {
			old, err := c.Str(0, "old")
			if err != nil {
				return nil, err
			}
			repl, err := c.Str(1, "new")
			if err != nil {
				return nil, err
			}
			count, err := c.OptInt(2, "count", -1)
			if err != nil {
				return nil, err
			}
			n := int64(strings.Count(s, old))
			if old == "" {
				n = int64(utf8.RuneCountInString(s)) + 1
			}
			if count >= 0 && count < n {
				n = count
			}
			if err := in.checkLen(len(s) + int(n)*(len(repl)-len(old))); err != nil {
				return nil, err
			}
			return strings.Replace(s, old, repl, int(count)), nil
		})
	case "startswith", "endswith":
		return method(name, func(c *Call) (Value, error) {
			arg, err := c.Require(0, "prefix")
			if err != nil {
				return nil, err
			}
			check := strings.HasPrefix
			if name == "endswith" {
				check = strings.HasSuffix
			}
			if affix, ok := arg.(string); ok {
				return check(s, affix), nil
			}
			items, err := in.iterate(arg)
			if err != nil {
				return nil, typeErrorf("%s first arg must be str or a tuple of str, not %s", name, TypeName(arg))
			}
			for _, item := range items {
				affix, ok := item.(string)
				if !ok {
					return nil, typeErrorf("tuple for %s must only contain str, not %s", name, TypeName(item))
				}
				if check(s, affix) {
					return true, nil
				}
			}
			return false, nil
		})
	case "find", "index", "rfind", "count":
		return method(name, func(c *Call) (Value, error) {
			sub, err := c.Str(0, "sub")
			if err != nil {
				return nil, err
			}
			var i int
			switch name {
			case "count":
				return int64(strings.Count(s, sub)), nil
			case "rfind":
				i = strings.LastIndex(s, sub)
			default:
				i = strings.Index(s, sub)
			}
			if i < 0 {
				if name == "index" {
					return nil, valueErrorf("substring not found")
				}
				return int64(-1), nil
			}
			return int64(utf8.RuneCountInString(s[:i])), nil
		})
	case "isdigit", "isnumeric", "isdecimal":
		return method(name, func(c *Call) (Value, error) { return allRunes(s, unicode.IsDigit), nil })
	case "isalpha":
		return method(name, func(c *Call) (Value, error) { return allRunes(s, unicode.IsLetter), nil })
	case "isalnum":
		return method(name, func(c *Call) (Value, error) {
			return allRunes(s, func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }), nil
		})
	case "isspace":
		return method(name, func(c *Call) (Value, error) { return allRunes(s, unicode.IsSpace), nil })
	case "islower":
		return method(name, func(c *Call) (Value, error) {
			return strings.ToLower(s) == s && strings.ToUpper(s) != s, nil
		})
	case "isupper":
		return method(name, func(c *Call) (Value, error) {
			return strings.ToUpper(s) == s && strings.ToLower(s) != s, nil
		})
	case "center", "ljust", "rjust":
		return method(name, func(c *Call) (Value, error) {
			width, err := c.Int(0, "width")
			if err != nil {
				return nil, err
			}
			fill, err := c.OptStr(1, "fillchar", " ")
			if err != nil {
				return nil, err
			}
			if utf8.RuneCountInString(fill) != 1 {
				return nil, typeErrorf("The fill character must be exactly one character long")
			}
			if err := in.checkLen(int(width)); err != nil {
				return nil, err
			}
			align := map[string]string{"center": "^", "ljust": "<", "rjust": ">"}[name]
			fs := formatSpec{fill: []rune(fill)[0], align: align[0], width: int(width), precision: -1}
			return pad(fs, "", s, align[0]), nil
		})
	case "zfill":
		return method(name, func(c *Call) (Value, error) {
			width, err := c.Int(0, "width")
			if err != nil {
				return nil, err
			}
			if err := in.checkLen(int(width)); err != nil {
				return nil, err
			}
			sign := ""
			body := s
			if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
				sign, body = s[:1], s[1:]
			}
			fs := formatSpec{fill: '0', align: '=', width: int(width), precision: -1}
			return pad(fs, sign, body, '='), nil
		})
	case "partition":
		return method(name, func(c *Call) (Value, error) {
			sep, err := c.Str(0, "sep")
			if err != nil {
				return nil, err
			}
			if sep == "" {
				return nil, valueErrorf("empty separator")
			}
			before, after, found := strings.Cut(s, sep)
			if !found {
				return NewList(s, "", ""), nil
			}
			return NewList(before, sep, after), nil
		})
	case "format":
		return method(name, func(c *Call) (Value, error) {
			return in.formatString(s, c.Args, c.Kwargs)
		})
	}
	return nil, false
}

func (in *Interpreter) split(c *Call, s string, fromRight bool) (Value, error) {
	sep, err := c.OptStr(0, "sep", "")
	if err != nil {
		return nil, err
	}
	maxsplit, err := c.OptInt(1, "maxsplit", -1)
	if err != nil {
		return nil, err
	}
	if v, ok := c.Arg(0, "sep"); ok && v != nil && sep == "" {
		return nil, valueErrorf("empty separator")
	}
	if sep == "" {
		fields := strings.Fields(s)
		if maxsplit < 0 || int(maxsplit) >= len(fields)-1 {
			return stringList(fields), nil
		}
		// Re-split by position so the remainder keeps its inner whitespace.
		if fromRight {
			rest := s
			var tail []string
			for range maxsplit {
				rest = strings.TrimRightFunc(rest, unicode.IsSpace)
				i := strings.LastIndexFunc(rest, unicode.IsSpace)
				tail = append([]string{rest[i+1:]}, tail...)
				rest = rest[:i+1]
			}
			return stringList(append([]string{strings.TrimRightFunc(rest, unicode.IsSpace)}, tail...)), nil
		}
		rest := s
		var head []string
		for range maxsplit {
			rest = strings.TrimLeftFunc(rest, unicode.IsSpace)
			i := strings.IndexFunc(rest, unicode.IsSpace)
			head = append(head, rest[:i])
			rest = rest[i:]
		}
		return stringList(append(head, strings.TrimLeftFunc(rest, unicode.IsSpace))), nil
	}
	if maxsplit < 0 {
		return stringList(strings.Split(s, sep)), nil
	}
	if !fromRight {
		return stringList(strings.SplitN(s, sep, int(maxsplit)+1)), nil
	}
	var parts []string
	rest := s
	for range maxsplit {
		i := strings.LastIndex(rest, sep)
		if i < 0 {
			break
		}
		parts = append([]string{rest[i+len(sep):]}, parts...)
		rest = rest[:i]
	}
	return stringList(append([]string{rest}, parts...)), nil
}

func stringList(ss []string) *List {
	out := make([]Value, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return NewList(out...)
}

func allRunes(s string, pred func(rune) bool) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !pred(r) {
			return false
		}
	}
	return true
}

func titleCase(s string) string {
	var b strings.Builder
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
			continue
		}
		prevLetter = false
		b.WriteRune(r)
	}
	return b.String()
}

func (in *Interpreter) listMethod(l *List, name string) (Value, bool) {
	switch name {
	case "append":
		return method(name, func(c *Call) (Value, error) {
			if err := c.ArgCount(1, 1); err != nil {
				return nil, err
			}
			if err := in.checkLen(len(l.Items) + 1); err != nil {
				return nil, err
			}
			l.Items = append(l.Items, c.Args[0])
			return nil, nil
		})
	case "extend":
		return method(name, func(c *Call) (Value, error) {
			if err := c.ArgCount(1, 1); err != nil {
				return nil, err
			}
			items, err := in.iterate(c.Args[0])
			if err != nil {
				return nil, err
			}
			if err := in.checkLen(len(l.Items) + len(items)); err != nil {
				return nil, err
			}
			l.Items = append(l.Items, items...)
			return nil, nil
		})
	case "insert":
		return method(name, func(c *Call) (Value, error) {
			if err := c.ArgCount(2, 2); err != nil {
				return nil, err
			}
			i, err := toInt(c.Args[0])
			if err != nil {
				return nil, err
			}
			if err := in.checkLen(len(l.Items) + 1); err != nil {
				return nil, err
			}
			n := int64(len(l.Items))
			if i < 0 {
				i = max(i+n, 0)
			}
			i = min(i, n)
			l.Items = slices.Insert(l.Items, int(i), c.Args[1])
			return nil, nil
		})
	case "pop":
		return method(name, func(c *Call) (Value, error) {
			if len(l.Items) == 0 {
				return nil, Errorf(IndexError, "pop from empty list")
			}
			idx, err := c.OptInt(0, "index", -1)
			if err != nil {
				return nil, err
			}
			i, err := seqIndex(idx, len(l.Items), "pop")
			if err != nil {
				return nil, err
			}
			v := l.Items[i]
			l.Items = slices.Delete(l.Items, i, i+1)
			return v, nil
		})
	case "remove":
		return method(name, func(c *Call) (Value, error) {
			if err := c.ArgCount(1, 1); err != nil {
				return nil, err
			}
			for i, v := range l.Items {
				if Equal(v, c.Args[0]) {
					l.Items = slices.Delete(l.Items, i, i+1)
					return nil, nil
				}
			}
			return nil, valueErrorf("list.remove(x): x not in list")
		})
	case "index":
		return method(name, func(c *Call) (Value, error) {
			if err := c.ArgCount(1, 1); err != nil {
				return nil, err
			}
			for i, v := range l.Items {
				if Equal(v, c.Args[0]) {
					return int64(i), nil
				}
			}
			return nil, valueErrorf("%s is not in list", Repr(c.Args[0]))
		})
	case "count":
		return method(name, func(c *Call) (Value, error) {
			if err := c.ArgCount(1, 1); err != nil {
				return nil, err
			}
			var n int64
			for _, v := range l.Items {
				if Equal(v, c.Args[0]) {
					n++
				}
			}
			return n, nil
		})
	case "sort":
		return method(name, func(c *Call) (Value, error) {
			if err := c.ArgCount(0, 0); err != nil {
				return nil, err
			}
			return nil, in.sortValues(c, l.Items, c.Kwargs["key"], Truthy(c.Kwargs["reverse"]))
		})
	case "reverse":
		return method(name, func(c *Call) (Value, error) {
			slices.Reverse(l.Items)
			return nil, c.ArgCount(0, 0)
		})
	case "clear":
		return method(name, func(c *Call) (Value, error) {
			l.Items = nil
			return nil, c.ArgCount(0, 0)
		})
	case "copy":
		return method(name, func(c *Call) (Value, error) {
			return NewList(slices.Clone(l.Items)...), c.ArgCount(0, 0)
		})
	}
	return nil, false
}

func (in *Interpreter) dictMethod(d *Dict, name string) (Value, bool) {
	switch name {
	case "get":
		return method(name, func(c *Call) (Value, error) {
			if err := c.ArgCount(1, 2); err != nil {
				return nil, err
			}
			v, ok, err := d.Get(c.Args[0])
			if err != nil {
				return nil, err
			}
			if !ok {
				def, _ := c.Arg(1, "default")
				return def, nil
			}
			return v, nil
		})
	case "keys":
		return method(name, func(c *Call) (Value, error) { return NewList(d.Keys()...), c.ArgCount(0, 0) })
	case "values":
		return method(name, func(c *Call) (Value, error) { return NewList(d.Values()...), c.ArgCount(0, 0) })
	case "items":
		return method(name, func(c *Call) (Value, error) {
			out := make([]Value, d.Len())
			for i, e := range d.entries {
				out[i] = NewList(e.key, e.value)
			}
			return NewList(out...), c.ArgCount(0, 0)
		})
	case "pop":
		return method(name, func(c *Call) (Value, error) {
			if err := c.ArgCount(1, 2); err != nil {
				return nil, err
			}
			v, ok, err := d.Get(c.Args[0])
			if err != nil {
				return nil, err
			}
			if !ok {
				if len(c.Args) == 2 {
					return c.Args[1], nil
				}
				return nil, Errorf(KeyError, "%s", Repr(c.Args[0]))
			}
			_, err = d.Delete(c.Args[0])
			return v, err
		})
	case "setdefault":
		return method(name, func(c *Call) (Value, error) {
			if err := c.ArgCount(1, 2); err != nil {
				return nil, err
			}
			v, ok, err := d.Get(c.Args[0])
			if err != nil || ok {
				return v, err
			}
			def, _ := c.Arg(1, "default")
			if err := in.checkLen(d.Len() + 1); err != nil {
				return nil, err
			}
			return def, d.Set(c.Args[0], def)
		})
	case "update":
		return method(name, func(c *Call) (Value, error) {
			if err := c.ArgCount(0, 1); err != nil {
				return nil, err
			}
			if len(c.Args) == 1 {
				src, ok := c.Args[0].(*Dict)
				if !ok {
					res, err := builtinDict(&Call{Ctx: c.Ctx, Interp: in, Name: "dict", Args: c.Args})
					if err != nil {
						return nil, err
					}
					src = res.(*Dict)
				}
				for _, e := range src.entries {
					if err := d.Set(e.key, e.value); err != nil {
						return nil, err
					}
				}
			}
			for _, k := range sortedKeys(c.Kwargs) {
				d.SetString(k, c.Kwargs[k])
			}
			return nil, in.checkLen(d.Len())
		})
	case "clear":
		return method(name, func(c *Call) (Value, error) {
			d.clear()
			return nil, c.ArgCount(0, 0)
		})
	case "copy":
		return method(name, func(c *Call) (Value, error) { return d.copy(), c.ArgCount(0, 0) })
	}
	return nil, false
}

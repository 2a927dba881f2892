package draconic

import (
	"bytes"
	"errors"
	"io"
	"math"
	"strconv"

	json "github.com/goccy/go-json"
)

// DecodeJSON decodes a JSON document into script values, keeping object key
// order.
func DecodeJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeJSONValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("draconic: trailing data after JSON value")
	}
	return v, nil
}

func decodeJSONValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '[':
			l := NewList()
			for dec.More() {
				v, err := decodeJSONValue(dec)
				if err != nil {
					return nil, err
				}
				l.Items = append(l.Items, v)
			}
			_, err := dec.Token()
			return l, err
		case '{':
			d := NewDict()
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := kt.(string)
				if !ok {
					return nil, errors.New("draconic: JSON object key is not a string")
				}
				v, err := decodeJSONValue(dec)
				if err != nil {
					return nil, err
				}
				d.SetString(key, v)
			}
			_, err := dec.Token()
			return d, err
		}
		return nil, errors.New("draconic: unexpected JSON delimiter")
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, nil
		}
		return t.Float64()
	case string, bool, nil:
		return t, nil
	}
	return nil, errors.New("draconic: unexpected JSON token")
}

// EncodeJSON encodes a script value as compact JSON.
func EncodeJSON(v Value) ([]byte, error) {
	plain, err := toJSONValue(v, 0)
	if err != nil {
		return nil, err
	}
	return json.Marshal(plain)
}

type jsonMember struct {
	key   string
	value any
}

// jsonObject marshals its members in order.
type jsonObject []jsonMember

// MarshalJSON implements json.Marshaler.
func (o jsonObject) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, m := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(m.key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		v, err := json.Marshal(m.value)
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func toJSONValue(v Value, depth int) (any, error) {
	if depth > 100 {
		return nil, valueErrorf("value nested too deeply to serialize")
	}
	switch x := v.(type) {
	case nil, bool, int64, string:
		return x, nil
	case float64:
		if math.IsInf(x, 0) || math.IsNaN(x) {
			return nil, valueErrorf("out of range float values are not JSON compliant")
		}
		return x, nil
	case *List:
		out := make([]any, len(x.Items))
		for i, item := range x.Items {
			p, err := toJSONValue(item, depth+1)
			if err != nil {
				return nil, err
			}
			out[i] = p
		}
		return out, nil
	case *Dict:
		out := make(jsonObject, 0, x.Len())
		for _, e := range x.entries {
			key, err := jsonKey(e.key)
			if err != nil {
				return nil, err
			}
			p, err := toJSONValue(e.value, depth+1)
			if err != nil {
				return nil, err
			}
			out = append(out, jsonMember{key: key, value: p})
		}
		return out, nil
	}
	return nil, typeErrorf("Object of type %s is not JSON serializable", TypeName(v))
}

func jsonKey(k Value) (string, error) {
	switch x := k.(type) {
	case string:
		return x, nil
	case nil:
		return "null", nil
	case bool:
		return strconv.FormatBool(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float64:
		return formatFloat(x), nil
	}
	return "", typeErrorf("keys must be str, int, float, bool or None, not %s", TypeName(k))
}

func builtinLoadJSON(c *Call) (Value, error) {
	s, err := c.Str(0, "jsonstr")
	if err != nil {
		return nil, err
	}
	if err := c.Interp.checkLen(len(s)); err != nil {
		return nil, err
	}
	v, err := DecodeJSON([]byte(s))
	if err != nil {
		return nil, &RuntimeError{Kind: ValueError, Msg: "invalid JSON: " + err.Error(), Err: err}
	}
	return v, nil
}

func builtinDumpJSON(c *Call) (Value, error) {
	v, err := c.Require(0, "obj")
	if err != nil {
		return nil, err
	}
	out, err := EncodeJSON(v)
	if err != nil {
		return nil, err
	}
	if err := c.Interp.checkLen(len(out)); err != nil {
		return nil, err
	}
	return string(out), nil
}

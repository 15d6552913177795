// Package payload turns inbound match telemetry into the canonical table of
// cells appended to the sink.
//
// Bodies arrive in several loosely-specified shapes (bare 2-D arrays,
// {"rows": ...} wrappers, structured match results, JSON encoded twice, and
// form fields carrying JSON). Everything is decoded into a Value first and
// then matched against an ordered list of shape matchers.
package payload

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
)

// Kind identifies the JSON type held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value is a parsed JSON value. Numbers keep their literal text.
type Value struct {
	kind Kind
	b    bool
	num  json.Number
	str  string
	arr  []Value
	obj  map[string]Value
}

// Null, String, Number, Bool, Array and Object build values directly;
// they are mostly useful in tests.
func Null() Value { return Value{kind: KindNull} }
func String(s string) Value { return Value{kind: KindString, str: s} }
func Number(n json.Number) Value { return Value{kind: KindNumber, num: n} }
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }
func Array(items ...Value) Value { return Value{kind: KindArray, arr: items} }
func Object(fields map[string]Value) Value { return Value{kind: KindObject, obj: fields} }

func (v Value) Kind() Kind { return v.kind }

// Str returns the string payload and whether v is a string.
func (v Value) Str() (string, bool) { return v.str, v.kind == KindString }

// Items returns the elements and whether v is an array.
func (v Value) Items() ([]Value, bool) { return v.arr, v.kind == KindArray }

// Field looks up key in an object. Missing keys and non-objects report false.
func (v Value) Field(key string) (Value, bool) {
	if v.kind != KindObject {
		return Value{}, false
	}
	f, ok := v.obj[key]
	return f, ok
}

// Text renders scalars as plain text: strings verbatim, numbers as their
// literal, booleans as true/false. Null renders empty; containers render
// as compact JSON.
func (v Value) Text() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindString:
		return v.str
	case KindNumber:
		return v.num.String()
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// MarshalJSON encodes the value back to JSON. Object keys are sorted.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindBool:
		return json.Marshal(v.b)
	case KindNumber:
		return []byte(v.num.String()), nil
	case KindString:
		return json.Marshal(v.str)
	case KindArray:
		if v.arr == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.arr)
	case KindObject:
		keys := make([]string, 0, len(v.obj))
		for k := range v.obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, _ := json.Marshal(k)
			buf.Write(kb)
			buf.WriteByte(':')
			vb, err := v.obj[k].MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(vb)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("marshal value: unknown kind %d", v.kind)
	}
}

var errTrailingData = errors.New("trailing data after JSON value")

// Parse decodes exactly one JSON document.
func Parse(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return Value{}, fmt.Errorf("decode json: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return Value{}, errTrailingData
	}
	return fromAny(raw), nil
}

// tryParse is Parse for the fallback paths, where a failure only means the
// shape did not match.
func tryParse(s string) (Value, bool) {
	v, err := Parse([]byte(s))
	if err != nil {
		return Value{}, false
	}
	return v, true
}

func fromAny(raw any) Value {
	switch x := raw.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(x)
	case json.Number:
		return Number(x)
	case string:
		return String(x)
	case []any:
		items := make([]Value, len(x))
		for i, e := range x {
			items[i] = fromAny(e)
		}
		return Array(items...)
	case map[string]any:
		fields := make(map[string]Value, len(x))
		for k, e := range x {
			fields[k] = fromAny(e)
		}
		return Object(fields)
	default:
		// Not produced by encoding/json with UseNumber.
		return String(fmt.Sprint(x))
	}
}

package wompi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Kind identifies which variant a Value holds.
type Kind int

const (
	KindAbsent Kind = iota
	KindNull
	KindBool
	KindNumber
	KindString
	KindObject
	KindArray
)

// Value is a decoded JSON tree node. Lookups that fall off the tree return an
// Absent value instead of failing, so a payload variant that lacks a signed
// property still produces a deterministic string-to-sign.
type Value struct {
	kind   Kind
	b      bool
	text   string // string contents or the number literal
	fields map[string]Value
	items  []Value
}

// Absent is the zero Value.
var Absent = Value{}

// ParseValue decodes raw JSON preserving number literals.
func ParseValue(raw []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return Absent, err
	}
	if dec.More() {
		return Absent, fmt.Errorf("unexpected data after JSON value")
	}
	return fromAny(v), nil
}

func fromAny(v any) Value {
	switch t := v.(type) {
	case nil:
		return Value{kind: KindNull}
	case bool:
		return Value{kind: KindBool, b: t}
	case json.Number:
		return Value{kind: KindNumber, text: t.String()}
	case string:
		return Value{kind: KindString, text: t}
	case map[string]any:
		fields := make(map[string]Value, len(t))
		for k, item := range t {
			fields[k] = fromAny(item)
		}
		return Value{kind: KindObject, fields: fields}
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = fromAny(item)
		}
		return Value{kind: KindArray, items: items}
	default:
		return Absent
	}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsAbsent() bool { return v.kind == KindAbsent }

// IsNullish reports whether the value is absent or JSON null.
func (v Value) IsNullish() bool { return v.kind == KindAbsent || v.kind == KindNull }

// Field returns the named member of an object, or the element at a decimal
// index of an array. Any other combination yields Absent.
func (v Value) Field(name string) Value {
	switch v.kind {
	case KindObject:
		if f, ok := v.fields[name]; ok {
			return f
		}
	case KindArray:
		i, err := strconv.Atoi(name)
		if err == nil && i >= 0 && i < len(v.items) {
			return v.items[i]
		}
	}
	return Absent
}

// Lookup walks a dotted path such as "transaction.amount_in_cents".
func (v Value) Lookup(path string) Value {
	cur := v
	for _, part := range strings.Split(path, ".") {
		cur = cur.Field(part)
		if cur.IsAbsent() {
			return Absent
		}
	}
	return cur
}

// Items returns the elements of an array value.
func (v Value) Items() ([]Value, bool) {
	if v.kind != KindArray {
		return nil, false
	}
	return v.items, true
}

// Str returns the contents of a string value.
func (v Value) Str() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.text, true
}

// Int64 returns the integral part of a number value, or parses a numeric string.
func (v Value) Int64() (int64, bool) {
	if v.kind != KindNumber && v.kind != KindString {
		return 0, false
	}
	d, err := decimal.NewFromString(strings.TrimSpace(v.text))
	if err != nil {
		return 0, false
	}
	return d.IntPart(), true
}

// SignatureString renders the value the way the processor concatenates it
// into the string-to-sign: absent and null become "", numbers are written in
// plain decimal notation.
func (v Value) SignatureString() string {
	switch v.kind {
	case KindAbsent, KindNull:
		return ""
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindString:
		return v.text
	case KindNumber:
		d, err := decimal.NewFromString(v.text)
		if err != nil {
			return v.text
		}
		return d.String()
	default:
		raw, err := json.Marshal(v.Interface())
		if err != nil {
			return ""
		}
		return string(raw)
	}
}

// Interface converts the value back into plain Go types.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return json.Number(v.text)
	case KindString:
		return v.text
	case KindObject:
		m := make(map[string]any, len(v.fields))
		for k, f := range v.fields {
			m[k] = f.Interface()
		}
		return m
	case KindArray:
		out := make([]any, len(v.items))
		for i, item := range v.items {
			out[i] = item.Interface()
		}
		return out
	}
	return nil
}

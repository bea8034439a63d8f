// Package coerce converts config values between their persisted wire form and
// the editable form shown in the flow editor, driven by an agent's ordered
// config schema.
package coerce

import (
	"encoding/json"

	"github.com/stn/agent-stream-app/internal/core/jsonnum"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindUntyped Kind = iota
	KindUnit
	KindBool
	KindInt
	KindNumber
	KindString
	KindPassword
	KindText
	KindObject
)

var kindNames = [...]string{
	KindUntyped:  "untyped",
	KindUnit:     "unit",
	KindBool:     "boolean",
	KindInt:      "integer",
	KindNumber:   "number",
	KindString:   "string",
	KindPassword: "password",
	KindText:     "text",
	KindObject:   "object",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Value is an editable config value. Integer, number and object values are
// held as their editable text; untyped and unit values keep the raw wire value.
type Value struct {
	kind Kind
	text string
	flag bool
	raw  any
}

// Untyped wraps a raw value that is carried through without coercion.
func Untyped(raw any) Value { return Value{kind: KindUntyped, raw: raw} }

// Unit wraps the raw value of a unit-typed field.
func Unit(raw any) Value { return Value{kind: KindUnit, raw: raw} }

func Bool(b bool) Value { return Value{kind: KindBool, flag: b} }
func Int(text string) Value { return Value{kind: KindInt, text: text} }
func Number(text string) Value { return Value{kind: KindNumber, text: text} }
func String(s string) Value { return Value{kind: KindString, text: s} }
func Password(s string) Value { return Value{kind: KindPassword, text: s} }
func Text(s string) Value { return Value{kind: KindText, text: s} }
func Object(pretty string) Value { return Value{kind: KindObject, text: pretty} }
func (v Value) Kind() Kind { return v.kind }
func (v Value) Raw() any { return v.raw }

// Text returns the editable text of text-bearing kinds.
func (v Value) Text() (string, bool) {
	switch v.kind {
	case KindInt, KindNumber, KindString, KindPassword, KindText, KindObject:
		return v.text, true
	}
	return "", false
}

// Bool returns the flag of a boolean value.
func (v Value) Bool() (bool, bool) {
	return v.flag, v.kind == KindBool
}

// Interface returns the plain Go value shown to editors.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.flag
	case KindUntyped, KindUnit:
		return v.raw
	default:
		return v.text
	}
}

// MarshalJSON encodes the plain value; the kind is not part of the encoding.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// UnmarshalJSON tags JSON booleans and strings; everything else is kept untyped.
// The declared schema type decides how the value is saved.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := jsonnum.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch x := raw.(type) {
	case bool:
		*v = Bool(x)
	case string:
		*v = String(x)
	default:
		*v = Untyped(jsonnum.Normalize(raw))
	}
	return nil
}

// Bag is an editable config bag keyed by config key.
type Bag map[string]Value

// UntypedBag copies a raw wire bag without coercing any value. A nil bag
// stays nil.
func UntypedBag(raw map[string]any) Bag {
	if raw == nil {
		return nil
	}
	bag := make(Bag, len(raw))
	for k, v := range raw {
		bag[k] = Untyped(clone(v))
	}
	return bag
}

// Interface returns the plain values of the bag.
func (b Bag) Interface() map[string]any {
	if b == nil {
		return nil
	}
	out := make(map[string]any, len(b))
	for k, v := range b {
		out[k] = v.Interface()
	}
	return out
}

// Clone deep-copies the bag.
func (b Bag) Clone() Bag {
	if b == nil {
		return nil
	}
	out := make(Bag, len(b))
	for k, v := range b {
		v.raw = clone(v.raw)
		out[k] = v
	}
	return out
}

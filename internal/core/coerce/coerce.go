package coerce

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/stn/agent-stream-app/internal/core/agent"
	"github.com/stn/agent-stream-app/internal/core/jsonnum"
)

// Load converts a wire value into its editable form for the declared type.
// Values whose Go type does not fit the declared type, and nil values, are
// kept untyped.
func Load(t agent.ConfigType, raw any) Value {
	if raw == nil {
		return Untyped(nil)
	}
	switch t {
	case agent.ConfigTypeBoolean:
		if b, ok := raw.(bool); ok {
			return Bool(b)
		}
	case agent.ConfigTypeInteger:
		if s, ok := numberText(raw); ok {
			return Int(s)
		}
	case agent.ConfigTypeNumber:
		if s, ok := numberText(raw); ok {
			return Number(s)
		}
	case agent.ConfigTypeString:
		if s, ok := raw.(string); ok {
			return String(s)
		}
	case agent.ConfigTypePassword:
		if s, ok := raw.(string); ok {
			return Password(s)
		}
	case agent.ConfigTypeText:
		if s, ok := raw.(string); ok {
			return Text(s)
		}
	case agent.ConfigTypeObject:
		if s, err := prettyJSON(raw); err == nil {
			return Object(s)
		}
	case agent.ConfigTypeUnit:
		return Unit(clone(raw))
	}
	return Untyped(clone(raw))
}

// Save converts an editable value back into its wire form for the declared
// type. The returned error is always a *Error.
func Save(nodeID, key string, t agent.ConfigType, v Value) (any, error) {
	out, cerr := save(nodeID, key, t, v)
	if cerr != nil {
		return nil, cerr
	}
	return out, nil
}

func save(nodeID, key string, t agent.ConfigType, v Value) (any, *Error) {
	fail := func(err error) *Error {
		return &Error{NodeID: nodeID, Key: key, Expected: t, Raw: v.Interface(), Err: err}
	}

	switch v.kind {
	case KindUnit:
		return clone(v.raw), nil
	case KindUntyped:
		out, err := saveRaw(t, clone(v.raw))
		if err != nil {
			return nil, fail(err)
		}
		return out, nil
	}

	switch t {
	case agent.ConfigTypeBoolean:
		b, ok := v.Bool()
		if !ok {
			return nil, fail(ErrWrongType)
		}
		return b, nil
	case agent.ConfigTypeInteger:
		s, ok := v.Text()
		if !ok {
			return nil, fail(ErrNotText)
		}
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return nil, fail(err)
		}
		return n, nil
	case agent.ConfigTypeNumber:
		s, ok := v.Text()
		if !ok {
			return nil, fail(ErrNotText)
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, fail(err)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fail(ErrNonFinite)
		}
		return f, nil
	case agent.ConfigTypeString, agent.ConfigTypePassword, agent.ConfigTypeText:
		s, ok := v.Text()
		if !ok {
			return nil, fail(ErrNotText)
		}
		return s, nil
	case agent.ConfigTypeObject:
		s, ok := v.Text()
		if !ok {
			return nil, fail(ErrNotText)
		}
		parsed, err := parseJSON(s)
		if err != nil {
			return nil, fail(err)
		}
		return parsed, nil
	default:
		return v.Interface(), nil
	}
}

// saveRaw checks a raw value kept untyped in the editor against the declared
// type. Nil is accepted for every type and means the key is unset.
func saveRaw(t agent.ConfigType, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	switch t {
	case agent.ConfigTypeBoolean:
		if _, ok := raw.(bool); !ok {
			return nil, ErrWrongType
		}
		return raw, nil
	case agent.ConfigTypeInteger:
		return rawInteger(raw)
	case agent.ConfigTypeNumber:
		s, ok := rawNumberText(raw)
		if !ok {
			return nil, ErrWrongType
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, err
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, ErrNonFinite
		}
		return f, nil
	case agent.ConfigTypeString, agent.ConfigTypePassword, agent.ConfigTypeText:
		if _, ok := raw.(string); !ok {
			return nil, ErrWrongType
		}
		return raw, nil
	case agent.ConfigTypeObject:
		switch x := raw.(type) {
		case map[string]any, []any:
			return x, nil
		case string:
			return parseJSON(x)
		}
		return nil, ErrWrongType
	}
	return raw, nil
}

// rawInteger accepts integral numbers of any Go numeric type.
func rawInteger(raw any) (int64, error) {
	s, ok := rawNumberText(raw)
	if !ok {
		return 0, ErrWrongType
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err == nil {
		return n, nil
	}
	if errors.Is(err, strconv.ErrRange) {
		return 0, err
	}
	f, ferr := strconv.ParseFloat(s, 64)
	if ferr != nil || math.IsNaN(f) || f != math.Trunc(f) {
		return 0, ErrNotIntegral
	}
	if f < -(1<<63) || f >= 1<<63 {
		return 0, &strconv.NumError{Func: "ParseInt", Num: s, Err: strconv.ErrRange}
	}
	return int64(f), nil
}

// rawNumberText formats numeric values. Strings are not numbers here.
func rawNumberText(raw any) (string, bool) {
	if _, ok := raw.(string); ok {
		return "", false
	}
	return numberText(raw)
}

// LoadBag builds the editable config bag of a node: schema defaults in schema
// order, then every wire key on top. Wire keys missing from the schema are
// carried through untyped.
func LoadBag(wire map[string]any, schema agent.ConfigSchema) Bag {
	bag := make(Bag, len(schema)+len(wire))
	for _, f := range schema {
		bag[f.Key] = Load(f.Entry.Type, f.Entry.Value)
	}
	for k, raw := range wire {
		if entry, ok := schema.Lookup(k); ok {
			bag[k] = Load(entry.Type, raw)
			continue
		}
		bag[k] = Untyped(clone(raw))
	}
	return bag
}

// SaveBag builds the wire config bag of a node. Keys that fail to coerce are
// left out of the result and reported together as Errors, in schema order.
// A nil bag saves as nil.
func SaveBag(nodeID string, bag Bag, schema agent.ConfigSchema) (map[string]any, error) {
	if bag == nil {
		return nil, nil
	}
	out := make(map[string]any, len(bag))
	var errs Errors
	for _, f := range schema {
		v, ok := bag[f.Key]
		if !ok {
			continue
		}
		w, cerr := save(nodeID, f.Key, f.Entry.Type, v)
		if cerr != nil {
			errs = append(errs, cerr)
			continue
		}
		out[f.Key] = w
	}
	for k, v := range bag {
		if _, declared := schema.Lookup(k); declared {
			continue
		}
		out[k] = clone(v.Interface())
	}
	if len(errs) > 0 {
		return out, errs
	}
	return out, nil
}

func numberText(raw any) (string, bool) {
	switch n := raw.(type) {
	case int:
		return strconv.FormatInt(int64(n), 10), true
	case int8:
		return strconv.FormatInt(int64(n), 10), true
	case int16:
		return strconv.FormatInt(int64(n), 10), true
	case int32:
		return strconv.FormatInt(int64(n), 10), true
	case int64:
		return strconv.FormatInt(n, 10), true
	case uint:
		return strconv.FormatUint(uint64(n), 10), true
	case uint8:
		return strconv.FormatUint(uint64(n), 10), true
	case uint16:
		return strconv.FormatUint(uint64(n), 10), true
	case uint32:
		return strconv.FormatUint(uint64(n), 10), true
	case uint64:
		return strconv.FormatUint(n, 10), true
	case float32:
		return strconv.FormatFloat(float64(n), 'f', -1, 32), true
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64), true
	case json.Number:
		return n.String(), true
	case string:
		return n, true
	}
	return "", false
}

func prettyJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func parseJSON(s string) (any, error) {
	var v any
	if err := jsonnum.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}
	return jsonnum.Normalize(v), nil
}

package coerce

import (
	"encoding/json"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stn/agent-stream-app/internal/core/agent"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name string
		typ  agent.ConfigType
		raw  any
		want Value
	}{
		{"boolean", agent.ConfigTypeBoolean, true, Bool(true)},
		{"integer from int", agent.ConfigTypeInteger, 42, Int("42")},
		{"integer from float", agent.ConfigTypeInteger, float64(7), Int("7")},
		{"integer from int8", agent.ConfigTypeInteger, int8(-3), Int("-3")},
		{"integer from text", agent.ConfigTypeInteger, "12", Int("12")},
		{"number", agent.ConfigTypeNumber, 1.5, Number("1.5")},
		{"number whole", agent.ConfigTypeNumber, float64(3), Number("3")},
		{"number from json.Number", agent.ConfigTypeNumber, json.Number("2.25"), Number("2.25")},
		{"string", agent.ConfigTypeString, "hi", String("hi")},
		{"password", agent.ConfigTypePassword, "s3cret", Password("s3cret")},
		{"text", agent.ConfigTypeText, "a\nb", Text("a\nb")},
		{"object", agent.ConfigTypeObject, map[string]any{"a": 1}, Object("{\n  \"a\": 1\n}")},
		{"object array", agent.ConfigTypeObject, []any{"<x>"}, Object("[\n  \"<x>\"\n]")},
		{"unit", agent.ConfigTypeUnit, map[string]any{}, Unit(map[string]any{})},
		{"untyped", "", 3.5, Untyped(3.5)},
		{"nil value", agent.ConfigTypeInteger, nil, Untyped(nil)},
		{"boolean mismatch", agent.ConfigTypeBoolean, "yes", Untyped("yes")},
		{"string mismatch", agent.ConfigTypeString, 5, Untyped(5)},
		{"unknown type", "float", 5, Untyped(5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Load(tt.typ, tt.raw))
		})
	}
}

func TestSave(t *testing.T) {
	tests := []struct {
		name string
		typ  agent.ConfigType
		in   Value
		want any
	}{
		{"boolean", agent.ConfigTypeBoolean, Bool(false), false},
		{"integer", agent.ConfigTypeInteger, Int("42"), int64(42)},
		{"integer trims space", agent.ConfigTypeInteger, Int(" -8 "), int64(-8)},
		{"integer from string kind", agent.ConfigTypeInteger, String("9"), int64(9)},
		{"number", agent.ConfigTypeNumber, Number("0.25"), 0.25},
		{"string", agent.ConfigTypeString, String("x"), "x"},
		{"password", agent.ConfigTypePassword, Password("p"), "p"},
		{"text", agent.ConfigTypeText, Text("t"), "t"},
		{"object", agent.ConfigTypeObject, Object(`{"a": 1, "b": [1.5, "c"]}`), map[string]any{"a": int64(1), "b": []any{1.5, "c"}}},
		{"object null", agent.ConfigTypeObject, Object("null"), nil},
		{"untyped integral float", agent.ConfigTypeInteger, Untyped(3.0), int64(3)},
		{"untyped json number", agent.ConfigTypeInteger, Untyped(json.Number("1e3")), int64(1000)},
		{"untyped large integer", agent.ConfigTypeInteger, Untyped(int64(9007199254740993)), int64(9007199254740993)},
		{"untyped integer as number", agent.ConfigTypeNumber, Untyped(int64(2)), 2.0},
		{"untyped map as object", agent.ConfigTypeObject, Untyped(map[string]any{"a": int64(1)}), map[string]any{"a": int64(1)}},
		{"untyped list as object", agent.ConfigTypeObject, Untyped([]any{"x"}), []any{"x"}},
		{"untyped nil", agent.ConfigTypeInteger, Untyped(nil), nil},
		{"untyped string", agent.ConfigTypeString, Untyped("s"), "s"},
		{"untyped for unrecognized type", "float", Untyped(3.5), 3.5},
		{"unit passes through", agent.ConfigTypeUnit, Unit("u"), "u"},
		{"unrecognized type is identity", "float", String("1.0"), "1.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Save("n1", "k", tt.typ, tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSave_Errors(t *testing.T) {
	tests := []struct {
		name    string
		typ     agent.ConfigType
		in      Value
		wantErr error
	}{
		{"integer not numeric", agent.ConfigTypeInteger, Int("abc"), strconv.ErrSyntax},
		{"integer fraction", agent.ConfigTypeInteger, Int("1.5"), strconv.ErrSyntax},
		{"integer from bool", agent.ConfigTypeInteger, Bool(true), ErrNotText},
		{"number not numeric", agent.ConfigTypeNumber, Number("one"), strconv.ErrSyntax},
		{"number NaN", agent.ConfigTypeNumber, Number("NaN"), ErrNonFinite},
		{"number Inf", agent.ConfigTypeNumber, Number("+Inf"), ErrNonFinite},
		{"object malformed", agent.ConfigTypeObject, Object("{a:"), nil},
		{"object trailing", agent.ConfigTypeObject, Object("{} {}"), ErrTrailingData},
		{"boolean from string", agent.ConfigTypeBoolean, String("yes"), ErrWrongType},
		{"text from bool", agent.ConfigTypeText, Bool(true), ErrNotText},
		{"untyped fraction for integer", agent.ConfigTypeInteger, Untyped(4.5), ErrNotIntegral},
		{"untyped object for integer", agent.ConfigTypeInteger, Untyped(map[string]any{"a": int64(1)}), ErrWrongType},
		{"untyped out of range integer", agent.ConfigTypeInteger, Untyped(1e20), strconv.ErrRange},
		{"untyped list for number", agent.ConfigTypeNumber, Untyped([]any{int64(1)}), ErrWrongType},
		{"untyped number for object", agent.ConfigTypeObject, Untyped(int64(5)), ErrWrongType},
		{"untyped number for boolean", agent.ConfigTypeBoolean, Untyped(int64(1)), ErrWrongType},
		{"untyped number for string", agent.ConfigTypeString, Untyped(int64(1)), ErrWrongType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Save("n1", "k", tt.typ, tt.in)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrCoercion)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}

			var cerr *Error
			require.True(t, errors.As(err, &cerr))
			assert.Equal(t, "n1", cerr.NodeID)
			assert.Equal(t, "k", cerr.Key)
			assert.Equal(t, tt.typ, cerr.Expected)
			assert.Equal(t, tt.in.Interface(), cerr.Raw)
		})
	}
}

func TestCoercionIdempotence(t *testing.T) {
	editable := []struct {
		typ agent.ConfigType
		v   Value
	}{
		{agent.ConfigTypeBoolean, Bool(true)},
		{agent.ConfigTypeInteger, Int("42")},
		{agent.ConfigTypeNumber, Number("-0.5")},
		{agent.ConfigTypeString, String("s")},
		{agent.ConfigTypeText, Text("multi\nline")},
		{agent.ConfigTypeObject, Object("{\n  \"a\": 1\n}")},
	}
	for _, tt := range editable {
		t.Run("load(save) "+string(tt.typ), func(t *testing.T) {
			w, err := Save("n", "k", tt.typ, tt.v)
			require.NoError(t, err)
			assert.Equal(t, tt.v, Load(tt.typ, w))
		})
	}

	wire := []struct {
		typ agent.ConfigType
		v   any
	}{
		{agent.ConfigTypeBoolean, false},
		{agent.ConfigTypeInteger, int64(-7)},
		{agent.ConfigTypeNumber, 2.5},
		{agent.ConfigTypePassword, "pw"},
		{agent.ConfigTypeObject, map[string]any{"list": []any{int64(1), "two"}, "nested": map[string]any{"ok": true}}},
	}
	for _, tt := range wire {
		t.Run("save(load) "+string(tt.typ), func(t *testing.T) {
			got, err := Save("n", "k", tt.typ, Load(tt.typ, tt.v))
			require.NoError(t, err)
			assert.Equal(t, tt.v, got)
		})
	}
}

func TestLoadBag_DefaultMergeOrder(t *testing.T) {
	schema := agent.ConfigSchema{
		{Key: "a", Entry: agent.ConfigEntry{Value: 1}},
		{Key: "b", Entry: agent.ConfigEntry{Value: 2}},
	}

	bag := LoadBag(map[string]any{"b": 99, "extra": "kept"}, schema)

	assert.Equal(t, Bag{
		"a":     Untyped(1),
		"b":     Untyped(99),
		"extra": Untyped("kept"),
	}, bag)
}

func TestLoadBag_TypedOverride(t *testing.T) {
	schema := agent.ConfigSchema{
		{Key: "count", Entry: agent.ConfigEntry{Value: 1, Type: agent.ConfigTypeInteger}},
		{Key: "opts", Entry: agent.ConfigEntry{Value: map[string]any{}, Type: agent.ConfigTypeObject}},
	}

	bag := LoadBag(map[string]any{"count": 5}, schema)
	assert.Equal(t, Int("5"), bag["count"])
	assert.Equal(t, Object("{}"), bag["opts"])

	empty := LoadBag(nil, nil)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestLoadBag_DoesNotAliasInput(t *testing.T) {
	nested := map[string]any{"x": 1}
	wire := map[string]any{"raw": nested}

	bag := LoadBag(wire, nil)
	nested["x"] = 2

	assert.Equal(t, map[string]any{"x": 1}, bag["raw"].Raw())
}

func TestSaveBag(t *testing.T) {
	schema := agent.ConfigSchema{
		{Key: "n", Entry: agent.ConfigEntry{Type: agent.ConfigTypeInteger}},
		{Key: "f", Entry: agent.ConfigEntry{Type: agent.ConfigTypeNumber}},
		{Key: "o", Entry: agent.ConfigEntry{Type: agent.ConfigTypeObject}},
		{Key: "missing", Entry: agent.ConfigEntry{Type: agent.ConfigTypeString}},
	}

	t.Run("all valid", func(t *testing.T) {
		out, err := SaveBag("node", Bag{"n": Int("1"), "f": Number("2"), "o": Object(`[]`), "x": Untyped("extra")}, schema)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"n": int64(1), "f": 2.0, "o": []any{}, "x": "extra"}, out)
	})

	t.Run("aggregates failures", func(t *testing.T) {
		out, err := SaveBag("node", Bag{"n": Int("one"), "f": Number("2"), "o": Object("{")}, schema)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrCoercion)

		errs, ok := AsErrors(err)
		require.True(t, ok)
		require.Len(t, errs, 2)
		assert.Equal(t, "n", errs[0].Key)
		assert.Equal(t, "o", errs[1].Key)
		assert.Equal(t, map[string]any{"f": 2.0}, out)
	})

	t.Run("editor numbers are checked", func(t *testing.T) {
		var bag Bag
		require.NoError(t, json.Unmarshal([]byte(`{"n": 4.5, "f": 7, "o": {"k": [1]}}`), &bag))
		out, err := SaveBag("node", bag, schema)
		errs, ok := AsErrors(err)
		require.True(t, ok)
		require.Len(t, errs, 1)
		assert.Equal(t, "n", errs[0].Key)
		assert.ErrorIs(t, errs[0], ErrNotIntegral)
		assert.Equal(t, map[string]any{"f": 7.0, "o": map[string]any{"k": []any{int64(1)}}}, out)

		require.NoError(t, json.Unmarshal([]byte(`{"n": {"a": 1}}`), &bag))
		_, err = SaveBag("node", bag, schema)
		assert.ErrorIs(t, err, ErrWrongType)
	})

	t.Run("no schema copies everything", func(t *testing.T) {
		bag := Bag{"n": Int("not a number"), "b": Bool(true), "u": Untyped(map[string]any{"k": "v"})}
		out, err := SaveBag("node", bag, nil)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"n": "not a number", "b": true, "u": map[string]any{"k": "v"}}, out)
	})

	t.Run("nil bag", func(t *testing.T) {
		out, err := SaveBag("node", nil, schema)
		require.NoError(t, err)
		assert.Nil(t, out)
	})
}

func TestValue_JSON(t *testing.T) {
	bag := Bag{"b": Bool(true), "i": Int("3"), "o": Object("{}"), "u": Untyped(nil)}
	data, err := json.Marshal(bag)
	require.NoError(t, err)
	assert.JSONEq(t, `{"b": true, "i": "3", "o": "{}", "u": null}`, string(data))

	var back Bag
	require.NoError(t, json.Unmarshal([]byte(`{"b": true, "i": "3", "n": 4, "f": 1.5, "m": {"k": 2}}`), &back))
	assert.Equal(t, Bool(true), back["b"])
	assert.Equal(t, String("3"), back["i"])
	assert.Equal(t, Untyped(int64(4)), back["n"])
	assert.Equal(t, Untyped(1.5), back["f"])
	assert.Equal(t, Untyped(map[string]any{"k": int64(2)}), back["m"])
}

func TestErrors_Message(t *testing.T) {
	var errs Errors
	assert.Equal(t, "no coercion errors", errs.Error())

	errs = Errors{{NodeID: "a", Key: "k", Expected: agent.ConfigTypeInteger, Raw: "x", Err: strconv.ErrSyntax}}
	assert.Contains(t, errs.Error(), `node "a" config "k": expected integer`)

	_, ok := AsErrors(errors.New("plain"))
	assert.False(t, ok)
}

func TestUntypedBag(t *testing.T) {
	assert.Nil(t, UntypedBag(nil))

	bag := UntypedBag(map[string]any{"n": 1, "s": "x"})
	assert.Equal(t, Bag{"n": Untyped(1), "s": Untyped("x")}, bag)
	assert.Equal(t, map[string]any{"n": 1, "s": "x"}, bag.Interface())

	cp := bag.Clone()
	cp["n"] = Int("2")
	assert.Equal(t, Untyped(1), bag["n"])
	assert.Nil(t, Bag(nil).Clone())
}

package coerce

// clone deep-copies the map and slice structure of a raw value so callers
// never share mutable state with their input.
func clone(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = clone(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = clone(e)
		}
		return out
	}
	return v
}

// CloneRaw deep-copies a raw wire config bag.
func CloneRaw(bag map[string]any) map[string]any {
	if bag == nil {
		return nil
	}
	return clone(bag).(map[string]any)
}

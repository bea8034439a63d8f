package agent

import (
	"encoding/json"
	"fmt"

	"github.com/stn/agent-stream-app/internal/core/jsonnum"
)

// ConfigField is one keyed entry of an ordered config schema.
// On the wire it is encoded as a two element array: [key, entry].
type ConfigField struct {
	Key   string      `validate:"required"`
	Entry ConfigEntry
}

// MarshalJSON encodes the field as a [key, entry] pair.
func (f ConfigField) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{f.Key, f.Entry})
}

// UnmarshalJSON decodes a [key, entry] pair.
func (f *ConfigField) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("config field: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("config field: %w: got %d elements", ErrMalformedSchemaPair, len(pair))
	}
	if err := json.Unmarshal(pair[0], &f.Key); err != nil {
		return fmt.Errorf("config field key: %w", err)
	}
	if err := json.Unmarshal(pair[1], &f.Entry); err != nil {
		return fmt.Errorf("config field %q: %w", f.Key, err)
	}
	return nil
}

// UnmarshalJSON keeps integer default values exact.
func (e *ConfigEntry) UnmarshalJSON(data []byte) error {
	type plain ConfigEntry
	var p plain
	if err := jsonnum.Unmarshal(data, &p); err != nil {
		return err
	}
	p.Value = jsonnum.Normalize(p.Value)
	*e = ConfigEntry(p)
	return nil
}

// ConfigSchema is an ordered list of config fields. Order is significant:
// defaults are applied in schema order.
type ConfigSchema []ConfigField

// Lookup returns the entry declared for key.
func (s ConfigSchema) Lookup(key string) (ConfigEntry, bool) {
	for _, f := range s {
		if f.Key == key {
			return f.Entry, true
		}
	}
	return ConfigEntry{}, false
}

// Keys returns the declared keys in schema order.
func (s ConfigSchema) Keys() []string {
	keys := make([]string, len(s))
	for i, f := range s {
		keys[i] = f.Key
	}
	return keys
}

func (s ConfigSchema) validate() error {
	seen := make(map[string]struct{}, len(s))
	for _, f := range s {
		if f.Key == "" {
			return ErrEmptySchemaKey
		}
		if _, dup := seen[f.Key]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateSchemaKey, f.Key)
		}
		seen[f.Key] = struct{}{}
		if !f.Entry.Type.Valid() {
			return fmt.Errorf("%w: %q for key %q", ErrInvalidConfigType, f.Entry.Type, f.Key)
		}
	}
	return nil
}

// DisplayField is one keyed entry of an ordered display schema.
type DisplayField struct {
	Key   string       `validate:"required"`
	Entry DisplayEntry
}

// MarshalJSON encodes the field as a [key, entry] pair.
func (f DisplayField) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{f.Key, f.Entry})
}

// UnmarshalJSON decodes a [key, entry] pair.
func (f *DisplayField) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("display field: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("display field: %w: got %d elements", ErrMalformedSchemaPair, len(pair))
	}
	if err := json.Unmarshal(pair[0], &f.Key); err != nil {
		return fmt.Errorf("display field key: %w", err)
	}
	if err := json.Unmarshal(pair[1], &f.Entry); err != nil {
		return fmt.Errorf("display field %q: %w", f.Key, err)
	}
	return nil
}

// DisplaySchema is an ordered list of display slots.
type DisplaySchema []DisplayField

// Keys returns the declared display keys in schema order.
func (s DisplaySchema) Keys() []string {
	keys := make([]string, len(s))
	for i, f := range s {
		keys[i] = f.Key
	}
	return keys
}

func (s DisplaySchema) validate() error {
	seen := make(map[string]struct{}, len(s))
	for _, f := range s {
		if f.Key == "" {
			return ErrEmptySchemaKey
		}
		if _, dup := seen[f.Key]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateSchemaKey, f.Key)
		}
		seen[f.Key] = struct{}{}
		if !f.Entry.Type.Valid() {
			return fmt.Errorf("%w: %q for key %q", ErrInvalidDisplayType, f.Entry.Type, f.Key)
		}
	}
	return nil
}

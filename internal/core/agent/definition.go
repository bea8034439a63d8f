// Package agent defines agent definitions, the schema catalog every flow is
// loaded and saved against. Zero external dependencies.
package agent

import "sort"

// ConfigType is the declared value type of a config schema entry.
// The empty ConfigType means the entry is untyped.
type ConfigType string

const (
	ConfigTypeUnit     ConfigType = "unit"
	ConfigTypeBoolean  ConfigType = "boolean"
	ConfigTypeInteger  ConfigType = "integer"
	ConfigTypeNumber   ConfigType = "number"
	ConfigTypeString   ConfigType = "string"
	ConfigTypePassword ConfigType = "password"
	ConfigTypeText     ConfigType = "text"
	ConfigTypeObject   ConfigType = "object"
)

// Valid reports whether t is a known config type or untyped.
func (t ConfigType) Valid() bool {
	switch t {
	case "", ConfigTypeUnit, ConfigTypeBoolean, ConfigTypeInteger, ConfigTypeNumber,
		ConfigTypeString, ConfigTypePassword, ConfigTypeText, ConfigTypeObject:
		return true
	}
	return false
}

// DisplayType is the declared type of a display slot.
type DisplayType string

const (
	DisplayTypeAny      DisplayType = "*"
	DisplayTypeBoolean  DisplayType = "boolean"
	DisplayTypeInteger  DisplayType = "integer"
	DisplayTypeNumber   DisplayType = "number"
	DisplayTypeString   DisplayType = "string"
	DisplayTypeText     DisplayType = "text"
	DisplayTypeObject   DisplayType = "object"
	DisplayTypeMessages DisplayType = "messages"
)

// Valid reports whether t is a known display type or unset.
func (t DisplayType) Valid() bool {
	switch t {
	case "", DisplayTypeAny, DisplayTypeBoolean, DisplayTypeInteger, DisplayTypeNumber,
		DisplayTypeString, DisplayTypeText, DisplayTypeObject, DisplayTypeMessages:
		return true
	}
	return false
}

// ConfigEntry describes one config field: its default value and declared type.
// Hidden entries still take part in coercion but cannot be connected to.
type ConfigEntry struct {
	Value       any        `json:"value" yaml:"value"`
	Type        ConfigType `json:"type,omitempty" yaml:"type,omitempty" validate:"omitempty,config_type"`
	Title       *string    `json:"title,omitempty" yaml:"title,omitempty"`
	Description *string    `json:"description,omitempty" yaml:"description,omitempty"`
	Hidden      bool       `json:"hidden,omitempty" yaml:"hidden,omitempty"`
}

// DisplayEntry describes one display slot of a node.
type DisplayEntry struct {
	Type        DisplayType `json:"type,omitempty" yaml:"type,omitempty" validate:"omitempty,display_type"`
	Title       *string     `json:"title,omitempty" yaml:"title,omitempty"`
	Description *string     `json:"description,omitempty" yaml:"description,omitempty"`
	HideTitle   bool        `json:"hideTitle,omitempty" yaml:"hideTitle,omitempty"`
}

// Definition is the schema of one agent type.
type Definition struct {
	Kind          string        `json:"kind"`
	Name          string        `json:"name" validate:"required"`
	Title         *string       `json:"title,omitempty"`
	Description   *string       `json:"description,omitempty"`
	Category      *string       `json:"category,omitempty"`
	Path          string        `json:"path"`
	Inputs        []string      `json:"inputs"`
	Outputs       []string      `json:"outputs"`
	DefaultConfig ConfigSchema  `json:"default_config" validate:"dive"`
	GlobalConfig  ConfigSchema  `json:"global_config" validate:"dive"`
	DisplayConfig DisplaySchema `json:"display_config" validate:"dive"`
}

// Validate checks the structural rules of a definition.
func (d *Definition) Validate() error {
	if d.Name == "" {
		return ErrInvalidDefinitionName
	}
	if err := d.DefaultConfig.validate(); err != nil {
		return err
	}
	if err := d.GlobalConfig.validate(); err != nil {
		return err
	}
	return d.DisplayConfig.validate()
}

// Definitions is the schema catalog, keyed by agent type name.
type Definitions map[string]*Definition

// Get resolves a definition by agent type name. A nil catalog resolves nothing.
func (d Definitions) Get(name string) (*Definition, bool) {
	def, ok := d[name]
	if !ok || def == nil {
		return nil, false
	}
	return def, true
}

// Names returns the agent type names in sorted order.
func (d Definitions) Names() []string {
	names := make([]string, 0, len(d))
	for name := range d {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

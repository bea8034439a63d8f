// Package capability derives the connectable handles of agent nodes from the
// schema catalog and repairs edge lists against them.
package capability

import (
	"strings"

	"github.com/stn/agent-stream-app/internal/core/agent"
)

// ConfigPortPrefix marks a target handle that connects to a config field
// rather than to an input.
const ConfigPortPrefix = "config:"

type set map[string]struct{}

func newSet(items []string) set {
	s := make(set, len(items))
	for _, it := range items {
		s[it] = struct{}{}
	}
	return s
}

func (s set) has(k string) bool {
	_, ok := s[k]
	return ok
}

// Index holds the handles a node exposes. An unmatched node exposes nothing.
type Index struct {
	Matched     bool
	Outputs     set
	Inputs      set
	ConfigPorts set
}

// Build resolves defName in defs and collects its outputs, inputs and
// non-hidden config keys.
func Build(defName string, defs agent.Definitions) Index {
	def, ok := defs.Get(defName)
	if !ok {
		return Index{Outputs: set{}, Inputs: set{}, ConfigPorts: set{}}
	}
	ports := make(set, len(def.DefaultConfig))
	for _, f := range def.DefaultConfig {
		if !f.Entry.Hidden {
			ports[f.Key] = struct{}{}
		}
	}
	return Index{
		Matched:     true,
		Outputs:     newSet(def.Outputs),
		Inputs:      newSet(def.Inputs),
		ConfigPorts: ports,
	}
}

func (i Index) HasOutput(h string) bool { return i.Outputs.has(h) }
func (i Index) HasInput(h string) bool { return i.Inputs.has(h) }
func (i Index) HasConfigPort(k string) bool { return i.ConfigPorts.has(k) }

// AcceptsTarget reports whether a target handle connects to this node, either
// as an input or, with the config prefix, as a config port.
func (i Index) AcceptsTarget(h string) bool {
	if key, ok := ConfigPortKey(h); ok {
		return i.HasConfigPort(key)
	}
	return i.HasInput(h)
}

// ConfigPortKey returns the config key of a config-port handle.
func ConfigPortKey(handle string) (string, bool) {
	return strings.CutPrefix(handle, ConfigPortPrefix)
}

// Package settings persists application settings in one JSON file: the core
// settings under "core" and the per agent type global configs under "agents".
package settings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"go.uber.org/zap"

	"github.com/stn/agent-stream-app/internal/app/dto"
	"github.com/stn/agent-stream-app/internal/core/coerce"
	"github.com/stn/agent-stream-app/internal/core/jsonnum"
	"github.com/stn/agent-stream-app/internal/infrastructure/logging"
)

// DefaultCoreSettings returns the settings used when nothing is stored.
func DefaultCoreSettings() dto.CoreSettings {
	autostart := false
	keys := map[string]string{
		"global_shortcut": "",
		"fullscreen":      "F11",
		"screenshot_only": " ",
		"search":          "Ctrl+K, Command+K",
	}
	if runtime.GOOS == "darwin" {
		// macOS binds fullscreen itself
		keys["fullscreen"] = ""
	}
	return dto.CoreSettings{Autostart: &autostart, ShortcutKeys: keys}
}

type document struct {
	Core   json.RawMessage           `json:"core,omitempty"`
	Agents map[string]map[string]any `json:"agents,omitempty"`
}

// Store is the settings file. It is safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	path   string
	core   dto.CoreSettings
	agents map[string]map[string]any
	logger *zap.Logger
}

// Open reads the settings file at path. A missing file yields the defaults.
// Stored core settings are merged over the defaults; if the result does not
// decode, the defaults are used and the problem is logged.
func Open(path string, logger *zap.Logger) (*Store, error) {
	s := &Store{
		path:   path,
		core:   DefaultCoreSettings(),
		agents: map[string]map[string]any{},
		logger: logging.OrNop(logger),
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	var doc document
	if err := jsonnum.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode settings %s: %w", path, err)
	}
	if doc.Agents != nil {
		for agentType, bag := range doc.Agents {
			doc.Agents[agentType] = jsonnum.Map(bag)
		}
		s.agents = doc.Agents
	}
	if len(doc.Core) > 0 {
		var stored any
		if err := jsonnum.Unmarshal(doc.Core, &stored); err != nil {
			return nil, fmt.Errorf("decode core settings: %w", err)
		}
		stored = jsonnum.Normalize(stored)
		core, err := mergeCore(DefaultCoreSettings(), stored)
		if err != nil {
			s.logger.Error("failed to load core settings, using defaults", zap.Error(err))
		} else {
			s.core = core
		}
	}
	return s, nil
}

// CoreSettings returns a copy of the current core settings.
func (s *Store) CoreSettings(ctx context.Context) (dto.CoreSettings, error) {
	if err := ctx.Err(); err != nil {
		return dto.CoreSettings{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneCore(s.core), nil
}

// PatchCoreSettings merges patch into the core settings and saves the file.
// A nil patch changes nothing; a null member removes that setting.
func (s *Store) PatchCoreSettings(ctx context.Context, patch any) (dto.CoreSettings, error) {
	if err := ctx.Err(); err != nil {
		return dto.CoreSettings{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if patch == nil {
		return cloneCore(s.core), nil
	}
	if _, ok := patch.(map[string]any); !ok {
		return dto.CoreSettings{}, ErrInvalidSettings
	}
	core, err := mergeCore(s.core, patch)
	if err != nil {
		return dto.CoreSettings{}, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	prev := s.core
	s.core = core
	if err := s.saveLocked(); err != nil {
		s.core = prev
		return dto.CoreSettings{}, err
	}
	return cloneCore(core), nil
}

// GlobalConfigs returns the stored global config of every agent type.
func (s *Store) GlobalConfigs(ctx context.Context) (map[string]map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]map[string]any, len(s.agents))
	for k, v := range s.agents {
		out[k] = coerce.CloneRaw(v)
	}
	return out, nil
}

// SetGlobalConfig replaces the global config of one agent type and saves the
// file.
func (s *Store) SetGlobalConfig(ctx context.Context, agentType string, bag map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if agentType == "" {
		return ErrAgentTypeRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.agents[agentType]
	s.agents[agentType] = coerce.CloneRaw(bag)
	if err := s.saveLocked(); err != nil {
		if had {
			s.agents[agentType] = prev
		} else {
			delete(s.agents, agentType)
		}
		return err
	}
	return nil
}

func (s *Store) saveLocked() error {
	core, err := json.Marshal(s.core)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(document{Core: core, Agents: s.agents}); err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	s.logger.Debug("settings saved", zap.String("path", s.path))
	return nil
}

// mergeCore merges patch over base through their JSON forms.
func mergeCore(base dto.CoreSettings, patch any) (dto.CoreSettings, error) {
	raw, err := json.Marshal(base)
	if err != nil {
		return dto.CoreSettings{}, err
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return dto.CoreSettings{}, err
	}
	value = Merge(value, patch)

	merged, err := json.Marshal(value)
	if err != nil {
		return dto.CoreSettings{}, err
	}
	var out dto.CoreSettings
	if err := json.Unmarshal(merged, &out); err != nil {
		return dto.CoreSettings{}, err
	}
	return out, nil
}

// Merge merges b into a. Objects merge key by key and a null member of b
// removes the key; any other b value replaces a.
func Merge(a, b any) any {
	am, aok := a.(map[string]any)
	bm, bok := b.(map[string]any)
	if !aok || !bok {
		return b
	}
	for k, v := range bm {
		if v == nil {
			delete(am, k)
			continue
		}
		am[k] = Merge(am[k], v)
	}
	return am
}

func cloneCore(c dto.CoreSettings) dto.CoreSettings {
	out := dto.CoreSettings{}
	if c.Autostart != nil {
		v := *c.Autostart
		out.Autostart = &v
	}
	if c.ShortcutKeys != nil {
		out.ShortcutKeys = make(map[string]string, len(c.ShortcutKeys))
		for k, v := range c.ShortcutKeys {
			out.ShortcutKeys[k] = v
		}
	}
	return out
}

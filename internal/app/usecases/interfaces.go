package usecases

import (
	"context"

	"github.com/stn/agent-stream-app/internal/app/dto"
	"github.com/stn/agent-stream-app/internal/core/agent"
	"github.com/stn/agent-stream-app/internal/core/flow"
)

// CatalogProvider supplies the schema catalog flows are loaded against.
type CatalogProvider interface {
	Definitions(ctx context.Context) (agent.Definitions, error)
}

// FlowRepository defines the interface for wire flow storage, keyed by name.
type FlowRepository interface {
	Get(ctx context.Context, name string) (*flow.Flow, error)
	List(ctx context.Context) ([]*flow.Flow, error)
	Save(ctx context.Context, f *flow.Flow) error
	// Rename moves a flow to a new name and returns the name it was stored under.
	Rename(ctx context.Context, oldName, newName string) (string, error)
	Remove(ctx context.Context, name string) error
}

// FlowImporter reads a wire flow from outside the repository.
type FlowImporter interface {
	Import(ctx context.Context, path string) (*flow.Flow, error)
}

// GlobalConfigStore persists per agent type global config bags in wire form.
type GlobalConfigStore interface {
	GlobalConfigs(ctx context.Context) (map[string]map[string]any, error)
	SetGlobalConfig(ctx context.Context, agentType string, bag map[string]any) error
}

// CoreSettingsStore persists the application level settings.
type CoreSettingsStore interface {
	CoreSettings(ctx context.Context) (dto.CoreSettings, error)
	PatchCoreSettings(ctx context.Context, patch any) (dto.CoreSettings, error)
}

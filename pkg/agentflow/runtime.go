package agentflow

import (
	"context"

	"github.com/stn/agent-stream-app/internal/adapters/catalog"
	"github.com/stn/agent-stream-app/internal/adapters/importer"
	"github.com/stn/agent-stream-app/internal/adapters/repository/memory"
	"github.com/stn/agent-stream-app/internal/app/dto"
	"github.com/stn/agent-stream-app/internal/app/services"
	"github.com/stn/agent-stream-app/internal/app/usecases"
	"github.com/stn/agent-stream-app/internal/core/agent"
	"github.com/stn/agent-stream-app/internal/core/capability"
	"github.com/stn/agent-stream-app/internal/core/coerce"
	"github.com/stn/agent-stream-app/internal/core/flow"
)

// Re-export flow and catalog types for convenience
type (
	Flow        = flow.Flow
	Node        = flow.Node
	Edge        = flow.Edge
	Viewport    = flow.Viewport
	EditorFlow  = flow.EditorFlow
	EditorNode  = flow.EditorNode
	EditorEdge  = flow.EditorEdge
	Definition  = agent.Definition
	Definitions = agent.Definitions
	LoadResult  = dto.LoadResult
	SaveResult  = dto.SaveResult
	SavePolicy  = dto.SavePolicy
	DroppedEdge = capability.DroppedEdge
	ConfigBag   = coerce.Bag
)

const (
	SaveAbort        = dto.SaveAbort
	SaveKeepPrevious = dto.SaveKeepPrevious
)

var (
	ErrCatalogUnavailable = usecases.ErrCatalogUnavailable
	ErrCoercion           = coerce.ErrCoercion
	ErrPartialSave        = dto.ErrPartialSave
	ErrFlowNotFound       = flow.ErrFlowNotFound
)

// Deserialize turns a wire flow into an editor flow against defs. Invalid
// edges are dropped and reported; nodes of unknown agent types are disabled.
func Deserialize(f *Flow, defs Definitions) (*LoadResult, error) {
	return usecases.Deserialize(f, defs)
}

// Serialize turns an editor flow back into its wire form. Coercion failures
// are returned together; the result holds every value that did coerce.
func Serialize(ed *EditorFlow, defs Definitions) (*Flow, error) {
	return usecases.Serialize(ed, defs)
}

// Runtime keeps flows in memory and loads and saves them against a catalog
// that can be replaced at any time.
type Runtime struct {
	catalog *catalog.Static
	repo    *memory.FlowStore
	flows   *services.FlowService
}

// NewRuntime constructs a runtime with an in-memory flow store.
func NewRuntime(defs Definitions) *Runtime {
	cat := catalog.NewStatic(defs)
	repo := memory.NewFlowStore()
	return &Runtime{
		catalog: cat,
		repo:    repo,
		flows:   services.NewFlowService(cat, repo, importer.New(), nil),
	}
}

// SetDefinitions replaces the agent catalog.
func (rt *Runtime) SetDefinitions(defs Definitions) {
	rt.catalog.Replace(defs)
}

// StoreFlow persists a wire flow as is.
func (rt *Runtime) StoreFlow(ctx context.Context, f *Flow) error {
	return rt.repo.Save(ctx, f)
}

// Load reads a stored flow and repairs it against the catalog.
func (rt *Runtime) Load(ctx context.Context, name string) (*LoadResult, error) {
	return rt.flows.Load(ctx, name)
}

// Save stores an editor flow under the given policy.
func (rt *Runtime) Save(ctx context.Context, ed *EditorFlow, policy SavePolicy) (*SaveResult, error) {
	return rt.flows.Save(ctx, ed, policy)
}

// Check loads every stored flow and returns those needing repair.
func (rt *Runtime) Check(ctx context.Context) (map[string]*LoadResult, error) {
	return rt.flows.Check(ctx)
}

// Import reads a JSON or YAML flow file into the runtime.
func (rt *Runtime) Import(ctx context.Context, path string) (*Flow, error) {
	return rt.flows.Import(ctx, path)
}

// NewNode creates a node of the given agent type with its default config.
func (rt *Runtime) NewNode(ctx context.Context, defName string) (*Node, error) {
	return rt.flows.NewNode(ctx, defName)
}

package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/stn/agent-stream-app/internal/app/dto"
	"github.com/stn/agent-stream-app/internal/app/usecases"
	"github.com/stn/agent-stream-app/internal/core/agent"
	"github.com/stn/agent-stream-app/internal/core/coerce"
	"github.com/stn/agent-stream-app/internal/core/flow"
	"github.com/stn/agent-stream-app/internal/infrastructure/logging"
	imetrics "github.com/stn/agent-stream-app/internal/infrastructure/metrics"
)

// MainFlow is the flow every installation starts with.
const MainFlow = "main"

// FlowService loads, saves and edits stored flows against the schema catalog.
type FlowService struct {
	catalog  usecases.CatalogProvider
	repo     usecases.FlowRepository
	importer usecases.FlowImporter
	logger   *zap.Logger

	// mu serializes read-modify-write sequences on the repository
	mu sync.Mutex
}

// NewFlowService creates a flow service. importer may be nil when imports
// are not offered.
func NewFlowService(catalog usecases.CatalogProvider, repo usecases.FlowRepository, importer usecases.FlowImporter, logger *zap.Logger) *FlowService {
	return &FlowService{
		catalog:  catalog,
		repo:     repo,
		importer: importer,
		logger:   logging.OrNop(logger).Named("flows"),
	}
}

// definitions fetches the catalog. Every operation that touches node
// configs calls it before reading any flow.
func (s *FlowService) definitions(ctx context.Context) (agent.Definitions, error) {
	if s.catalog == nil {
		return nil, usecases.ErrCatalogUnavailable
	}
	defs, err := s.catalog.Definitions(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", usecases.ErrCatalogUnavailable, err)
	}
	if defs == nil {
		return nil, usecases.ErrCatalogUnavailable
	}
	return defs, nil
}

// Definitions returns the schema catalog.
func (s *FlowService) Definitions(ctx context.Context) (agent.Definitions, error) {
	return s.definitions(ctx)
}

// Load reads a stored flow and prepares it for editing.
func (s *FlowService) Load(ctx context.Context, name string) (*dto.LoadResult, error) {
	defs, err := s.definitions(ctx)
	if err != nil {
		return nil, err
	}
	f, err := s.repo.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	return s.deserialize(f, defs)
}

// LoadAll prepares every stored flow for editing, keyed by flow name.
func (s *FlowService) LoadAll(ctx context.Context) (map[string]*dto.LoadResult, error) {
	defs, err := s.definitions(ctx)
	if err != nil {
		return nil, err
	}
	flows, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*dto.LoadResult, len(flows))
	for _, f := range flows {
		res, err := s.deserialize(f, defs)
		if err != nil {
			return nil, err
		}
		out[f.Name] = res
	}
	return out, nil
}

// Check loads every stored flow and returns only those that needed repair.
func (s *FlowService) Check(ctx context.Context) (map[string]*dto.LoadResult, error) {
	all, err := s.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	for name, res := range all {
		if res.Clean() {
			delete(all, name)
		}
	}
	return all, nil
}

func (s *FlowService) deserialize(f *flow.Flow, defs agent.Definitions) (*dto.LoadResult, error) {
	res, err := usecases.Deserialize(f, defs)
	if err != nil {
		return nil, err
	}
	imetrics.IncFlowsLoaded()
	imetrics.AddUnmatchedNodes(len(res.UnmatchedNodes))
	for _, d := range res.DroppedEdges {
		imetrics.EdgeDropped(string(d.Reason))
		s.logger.Warn("dropped edge",
			zap.String("flow", f.Name),
			zap.String("edge", d.Edge.ID),
			zap.String("reason", string(d.Reason)),
			zap.Bool("stale", d.Reason.Stale()))
	}
	if len(res.UnmatchedNodes) > 0 {
		s.logger.Warn("nodes without agent definition",
			zap.String("flow", f.Name),
			zap.Strings("nodes", res.UnmatchedNodes))
	}
	return res, nil
}

// Save converts an editor flow back to its wire form and stores it.
//
// Under SaveAbort a coercion failure stores nothing and the coerce.Errors are
// returned. Under SaveKeepPrevious each failed key keeps the value of the
// stored flow (or is left out when there is none), the flow is stored, and
// the failures come back both in the result and as an error wrapping
// dto.ErrPartialSave.
func (s *FlowService) Save(ctx context.Context, ed *flow.EditorFlow, policy dto.SavePolicy) (*dto.SaveResult, error) {
	policy, err := dto.ParseSavePolicy(string(policy))
	if err != nil {
		return nil, err
	}
	defs, err := s.definitions(ctx)
	if err != nil {
		return nil, err
	}
	if ed == nil {
		return nil, flow.ErrNilFlow
	}
	wire, err := usecases.Serialize(ed, defs)
	if err == nil {
		return s.store(ctx, wire)
	}

	errs, ok := coerce.AsErrors(err)
	if !ok {
		return nil, err
	}
	for _, e := range errs {
		imetrics.CoercionFailed(string(e.Expected))
	}
	s.logger.Info("config values failed to coerce",
		zap.String("flow", ed.Name),
		zap.Int("count", len(errs)),
		zap.String("policy", string(policy)))

	if policy != dto.SaveKeepPrevious {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	prev, gerr := s.repo.Get(ctx, ed.Name)
	if gerr != nil && !errors.Is(gerr, flow.ErrFlowNotFound) {
		return nil, gerr
	}
	restorePrevious(wire, prev, errs)
	if err := s.repo.Save(ctx, wire); err != nil {
		return nil, err
	}
	imetrics.IncFlowsSaved()
	res := &dto.SaveResult{Name: wire.Name, Restored: dto.CoercionFailures(errs)}
	return res, fmt.Errorf("%w: %w", dto.ErrPartialSave, errs)
}

func (s *FlowService) store(ctx context.Context, wire *flow.Flow) (*dto.SaveResult, error) {
	if err := s.repo.Save(ctx, wire); err != nil {
		return nil, err
	}
	imetrics.IncFlowsSaved()
	return &dto.SaveResult{Name: wire.Name}, nil
}

// restorePrevious fills each failed key of wire with the stored value.
func restorePrevious(wire, prev *flow.Flow, errs coerce.Errors) {
	if prev == nil {
		return
	}
	for _, e := range errs {
		old, ok := prev.Node(e.NodeID)
		if !ok {
			continue
		}
		v, ok := old.Config[e.Key]
		if !ok {
			continue
		}
		n, ok := wire.Node(e.NodeID)
		if !ok {
			continue
		}
		if n.Config == nil {
			n.Config = map[string]any{}
		}
		n.Config[e.Key] = coerce.CloneRaw(map[string]any{e.Key: v})[e.Key]
	}
}

// Rename moves a stored flow to a new name.
func (s *FlowService) Rename(ctx context.Context, oldName, newName string) (string, error) {
	return s.repo.Rename(ctx, oldName, newName)
}

// Remove deletes a stored flow.
func (s *FlowService) Remove(ctx context.Context, name string) error {
	return s.repo.Remove(ctx, name)
}

// NewFlow stores an empty flow. When the name is taken a numbered variant is
// used; the stored flow is returned.
func (s *FlowService) NewFlow(ctx context.Context, name string) (*flow.Flow, error) {
	if !flow.ValidName(name) {
		return nil, fmt.Errorf("%w: %q", flow.ErrInvalidFlowName, name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	unique, err := s.uniqueName(ctx, name)
	if err != nil {
		return nil, err
	}
	f := flow.New(unique)
	if err := s.repo.Save(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

// EnsureMain creates the main flow when it does not exist yet.
func (s *FlowService) EnsureMain(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.repo.Get(ctx, MainFlow)
	if !errors.Is(err, flow.ErrFlowNotFound) {
		return err
	}
	s.logger.Info("creating main flow")
	return s.repo.Save(ctx, flow.New(MainFlow))
}

// Import reads a flow file and stores it. Node and edge ids are regenerated,
// every node is disabled and the file name is made unique among stored flows.
func (s *FlowService) Import(ctx context.Context, path string) (*flow.Flow, error) {
	if s.importer == nil {
		return nil, ErrImportNotConfigured
	}
	f, err := s.importer.Import(ctx, path)
	if err != nil {
		return nil, err
	}
	f.Nodes, f.Edges = usecases.CopyWireSubFlow(f.Nodes, f.Edges)
	f.DisableAll()

	s.mu.Lock()
	defer s.mu.Unlock()
	if f.Name, err = s.uniqueName(ctx, f.Name); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, f); err != nil {
		return nil, err
	}
	s.logger.Info("imported flow", zap.String("flow", f.Name), zap.String("path", path))
	return f, nil
}

func (s *FlowService) uniqueName(ctx context.Context, name string) (string, error) {
	flows, err := s.repo.List(ctx)
	if err != nil {
		return "", err
	}
	taken := make(map[string]bool, len(flows))
	for _, f := range flows {
		taken[f.Name] = true
	}
	return usecases.UniqueName(name, func(n string) bool { return taken[n] }), nil
}

// NewNode creates a node of the given agent type with its default config.
func (s *FlowService) NewNode(ctx context.Context, defName string) (*flow.Node, error) {
	defs, err := s.definitions(ctx)
	if err != nil {
		return nil, err
	}
	return usecases.NewNode(defName, defs)
}

// AddNode appends a node to a stored flow.
func (s *FlowService) AddNode(ctx context.Context, flowName string, n flow.Node) error {
	return s.edit(ctx, flowName, func(f *flow.Flow) error { return f.AddNode(n) })
}

// RemoveNode removes a node and its edges from a stored flow.
func (s *FlowService) RemoveNode(ctx context.Context, flowName, nodeID string) error {
	return s.edit(ctx, flowName, func(f *flow.Flow) error { return f.RemoveNode(nodeID) })
}

// AddEdge appends an edge to a stored flow.
func (s *FlowService) AddEdge(ctx context.Context, flowName string, e flow.Edge) error {
	return s.edit(ctx, flowName, func(f *flow.Flow) error { return f.AddEdge(e) })
}

// RemoveEdge removes an edge from a stored flow.
func (s *FlowService) RemoveEdge(ctx context.Context, flowName, edgeID string) error {
	return s.edit(ctx, flowName, func(f *flow.Flow) error { return f.RemoveEdge(edgeID) })
}

func (s *FlowService) edit(ctx context.Context, flowName string, fn func(*flow.Flow) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.repo.Get(ctx, flowName)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		return err
	}
	return s.repo.Save(ctx, f)
}

// CopySubFlow duplicates selected editor nodes and the edges between them.
func (s *FlowService) CopySubFlow(nodes []flow.EditorNode, edges []flow.EditorEdge) ([]flow.EditorNode, []flow.EditorEdge) {
	return usecases.CopySubFlow(nodes, edges)
}

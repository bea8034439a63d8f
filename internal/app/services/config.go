package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/stn/agent-stream-app/internal/app/dto"
	"github.com/stn/agent-stream-app/internal/app/usecases"
	"github.com/stn/agent-stream-app/internal/core/agent"
	"github.com/stn/agent-stream-app/internal/core/coerce"
	"github.com/stn/agent-stream-app/internal/infrastructure/logging"
	imetrics "github.com/stn/agent-stream-app/internal/infrastructure/metrics"
)

// ConfigService edits global agent configs and core settings.
type ConfigService struct {
	catalog  usecases.CatalogProvider
	globals  usecases.GlobalConfigStore
	settings usecases.CoreSettingsStore
	logger   *zap.Logger
}

func NewConfigService(catalog usecases.CatalogProvider, globals usecases.GlobalConfigStore, settings usecases.CoreSettingsStore, logger *zap.Logger) *ConfigService {
	return &ConfigService{
		catalog:  catalog,
		globals:  globals,
		settings: settings,
		logger:   logging.OrNop(logger).Named("config"),
	}
}

func (s *ConfigService) definition(ctx context.Context, agentType string) (*agent.Definition, error) {
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
	def, ok := defs.Get(agentType)
	if !ok {
		return nil, fmt.Errorf("%w: %q", agent.ErrDefinitionNotFound, agentType)
	}
	return def, nil
}

// GlobalConfig returns the editable global config of an agent type: the
// schema defaults overlaid with the stored values.
func (s *ConfigService) GlobalConfig(ctx context.Context, agentType string) (coerce.Bag, error) {
	def, err := s.definition(ctx, agentType)
	if err != nil {
		return nil, err
	}
	stored, err := s.globals.GlobalConfigs(ctx)
	if err != nil {
		return nil, err
	}
	return coerce.LoadBag(stored[agentType], def.GlobalConfig), nil
}

// SetGlobalConfig coerces and stores the global config of an agent type.
// Nothing is stored when any value fails to coerce.
func (s *ConfigService) SetGlobalConfig(ctx context.Context, agentType string, bag coerce.Bag) error {
	def, err := s.definition(ctx, agentType)
	if err != nil {
		return err
	}
	if bag == nil {
		bag = coerce.Bag{}
	}
	wire, err := coerce.SaveBag(agentType, bag, def.GlobalConfig)
	if err != nil {
		if errs, ok := coerce.AsErrors(err); ok {
			for _, e := range errs {
				imetrics.CoercionFailed(string(e.Expected))
			}
		}
		return err
	}
	if err := s.globals.SetGlobalConfig(ctx, agentType, wire); err != nil {
		return err
	}
	s.logger.Info("global config saved", zap.String("agent", agentType), zap.Int("keys", len(wire)))
	return nil
}

func (s *ConfigService) CoreSettings(ctx context.Context) (dto.CoreSettings, error) {
	return s.settings.CoreSettings(ctx)
}

// PatchCoreSettings merges a JSON patch into the core settings. A null
// value removes its key.
func (s *ConfigService) PatchCoreSettings(ctx context.Context, patch any) (dto.CoreSettings, error) {
	return s.settings.PatchCoreSettings(ctx, patch)
}

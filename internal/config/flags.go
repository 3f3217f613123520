package config

import (
	"fmt"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/xavierca1/lead-dispatch/internal/entity"
)

// FlagSource serves the routing flags. Each Load returns an immutable
// snapshot; Reload swaps it atomically between requests.
type FlagSource struct {
	envFile string
	sinks   *entity.SinkRegistry
	current atomic.Pointer[entity.FeatureFlags]
	logger  *zap.Logger
}

// NewFlagSource serves initial until the first Reload. When sinks is non-nil,
// Reload refuses snapshots that route leads to a sink it does not hold.
func NewFlagSource(envFile string, initial FlagsConfig, sinks *entity.SinkRegistry, logger *zap.Logger) *FlagSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &FlagSource{envFile: envFile, sinks: sinks, logger: logger}
	f := initial.toEntity()
	s.current.Store(&f)
	return s
}

func (s *FlagSource) Load() entity.FeatureFlags {
	return *s.current.Load()
}

// Reload re-reads the env file, overriding the process environment, and
// publishes the new snapshot. On error, including a snapshot that would route
// to an unregistered sink, the previous snapshot stays active.
func (s *FlagSource) Reload() (entity.FeatureFlags, error) {
	if err := loadEnvFile(s.envFile, true); err != nil {
		s.logger.Error("❌ Falha ao recarregar feature flags", zap.Error(err))
		return s.Load(), err
	}

	f := flagsFromViper(newViper()).toEntity()
	if s.sinks != nil {
		if missing := s.sinks.Missing(f.RoutableSinks()); len(missing) > 0 {
			err := fmt.Errorf("flags apontam para sinks não configurados: %s", strings.Join(missing, ", "))
			s.logger.Error("❌ Feature flags recusadas, mantendo as anteriores", zap.Error(err))
			return s.Load(), err
		}
	}
	s.current.Store(&f)

	s.logger.Info("🔁 Feature flags recarregadas",
		zap.Bool("sales_crm_enabled", f.SalesCRMEnabled),
		zap.Bool("marketing_enabled", f.MarketingEnabled),
		zap.Bool("sync_sellers", f.SyncSellers),
		zap.Bool("skip_legacy_crm", f.SkipLegacyCRM),
	)
	return f, nil
}

func (f FlagsConfig) toEntity() entity.FeatureFlags {
	return entity.FeatureFlags{
		SalesCRMEnabled:  f.SalesCRMEnabled,
		MarketingEnabled: f.MarketingEnabled,
		SyncSellers:      f.SyncSellers,
		SkipLegacyCRM:    f.SkipLegacyCRM,
	}
}

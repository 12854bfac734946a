package providerfactory

import (
	"context"
	"fmt"
	"log/slog"

	"mercator-hq/relay/pkg/backends/openaicompat"
	"mercator-hq/relay/pkg/backends/sessionchat"
	"mercator-hq/relay/pkg/config"
	"mercator-hq/relay/pkg/credentials"
	"mercator-hq/relay/pkg/limits/ratelimit"
	"mercator-hq/relay/pkg/providers"
	"mercator-hq/relay/pkg/registry"
)

// Deps carries the cross-cutting collaborators adapters are wired with.
type Deps struct {
	// WaitObserver feeds rate-limiter wait telemetry. May be nil.
	WaitObserver ratelimit.WaitObserver

	// PoolMetrics feeds credential pool telemetry. May be nil.
	PoolMetrics credentials.PoolMetrics

	// Minters maps backend name to the external login flow that mints
	// its credentials. Session backends without a minter serve only
	// from persisted credentials.
	Minters map[string]credentials.Minter

	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// RegisterBackends registers one adapter factory per configured backend
// on reg. Construction happens at Build time; a backend whose factory
// fails is skipped by the registry, not fatal.
//
// ctx bounds the lifetime of background components built alongside
// adapters (balance refreshers).
func RegisterBackends(ctx context.Context, reg *registry.Registry, cfg *config.Config, deps Deps) {
	for i := range cfg.Backends {
		bcfg := cfg.Backends[i]
		reg.Register(func() (providers.Provider, error) {
			return NewBackend(ctx, bcfg, deps)
		})
	}
}

// NewBackend constructs the adapter for one backend configuration.
//
// Supported types:
//   - "openai-compatible": static-key HTTP adapter
//   - "session": credential-pool adapter with optional balance refresher
func NewBackend(ctx context.Context, bcfg config.BackendConfig, deps Deps) (providers.Provider, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	switch bcfg.Type {
	case config.BackendTypeOpenAICompatible:
		p, err := openaicompat.New(bcfg)
		if err != nil {
			return nil, err
		}
		if deps.WaitObserver != nil {
			p.SetWaitObserver(deps.WaitObserver)
		}
		return p, nil

	case config.BackendTypeSession:
		return newSessionBackend(ctx, bcfg, deps, logger)

	default:
		return nil, fmt.Errorf("backend %q: unsupported type %q", bcfg.Name, bcfg.Type)
	}
}

// newSessionBackend assembles a session adapter with its credential
// pool, store, and (when scheduled) balance refresher.
func newSessionBackend(ctx context.Context, bcfg config.BackendConfig, deps Deps, logger *slog.Logger) (providers.Provider, error) {
	store, err := newStore(bcfg.Credentials)
	if err != nil {
		return nil, fmt.Errorf("backend %q: %w", bcfg.Name, err)
	}

	pool := credentials.NewPool(credentials.Config{
		Backend:    bcfg.Name,
		MinBalance: bcfg.Credentials.MinBalance,
		Minter:     deps.Minters[bcfg.Name],
		Store:      store,
		Logger:     logger,
		Metrics:    deps.PoolMetrics,
	})

	p, err := sessionchat.New(bcfg, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	if deps.WaitObserver != nil {
		p.SetWaitObserver(deps.WaitObserver)
	}

	var refresher *credentials.Refresher
	if bcfg.Credentials.RefreshSchedule != "" {
		refresher = credentials.NewRefresher(pool, p, bcfg.Credentials.RefreshSchedule, logger)
		if err := refresher.Start(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("backend %q: %w", bcfg.Name, err)
		}
	}

	return &managedBackend{Provider: p, pool: pool, refresher: refresher}, nil
}

func newStore(ccfg config.CredentialConfig) (credentials.Store, error) {
	switch ccfg.Store {
	case "file":
		return credentials.NewFileStore(ccfg.Path)
	case "sqlite":
		return credentials.NewSQLiteStore(ccfg.Path)
	default:
		return nil, fmt.Errorf("unknown credential store %q", ccfg.Store)
	}
}

// managedBackend couples a session adapter with the components built
// alongside it so the registry's Shutdown tears everything down in
// order: refresher first, then the adapter, then the pool (which
// persists final state and closes the store).
type managedBackend struct {
	providers.Provider
	pool      *credentials.Pool
	refresher *credentials.Refresher
}

// Close implements providers.Provider.
func (m *managedBackend) Close() error {
	if m.refresher != nil {
		m.refresher.Stop()
	}
	err := m.Provider.Close()
	if poolErr := m.pool.Close(); err == nil {
		err = poolErr
	}
	return err
}

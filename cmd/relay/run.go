package main

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"mercator-hq/relay/pkg/config"
	"mercator-hq/relay/pkg/providerfactory"
	"mercator-hq/relay/pkg/providers"
	"mercator-hq/relay/pkg/registry"
	"mercator-hq/relay/pkg/routing"
	"mercator-hq/relay/pkg/server"
	"mercator-hq/relay/pkg/telemetry/logging"
	"mercator-hq/relay/pkg/telemetry/metrics"
	"mercator-hq/relay/pkg/tokens"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	watch         bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the relay gateway",
	Long: `Start the relay gateway with the specified configuration.

The gateway listens on the configured address and dispatches OpenAI
chat completion requests across the configured backends.

Examples:
  # Start with default config
  relay run

  # Start with custom config
  relay run --config /etc/relay/config.yaml

  # Override listen address
  relay run --listen 0.0.0.0:8080

  # Rebuild backends when the config file changes
  relay run --watch`,
	RunE: runGateway,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.watch, "watch", false, "reload backends on config file changes")
}

// registryHolder holds the live registry behind an atomic pointer so a
// config reload can swap in a rebuilt one while requests are in flight.
// It implements routing.ModelIndex and the catalog the server reads.
type registryHolder struct {
	v atomic.Pointer[registry.Registry]
}

// ProvidersFor implements routing.ModelIndex.
func (h *registryHolder) ProvidersFor(modelID string) ([]providers.Provider, error) {
	return h.v.Load().ProvidersFor(modelID)
}

// Catalog implements handlers.Catalog.
func (h *registryHolder) Catalog() []providers.ModelDescriptor {
	return h.v.Load().Catalog()
}

// Swap installs the new registry and returns the previous one.
func (h *registryHolder) Swap(r *registry.Registry) *registry.Registry {
	return h.v.Swap(r)
}

// retireRegistry shuts a replaced registry down once no in-flight
// request can still hold one of its borrowed handles. Every borrow is
// bounded by the request deadline, so waiting it out before closing the
// pools is sufficient.
func retireRegistry(old *registry.Registry, requestTimeout time.Duration) {
	grace := requestTimeout
	if grace <= 0 {
		grace = routing.DefaultRequestTimeout
	}
	time.AfterFunc(grace, old.Shutdown)
}

// buildRegistry constructs and builds a registry from the configured
// backends.
func buildRegistry(ctx context.Context, cfg *config.Config, deps providerfactory.Deps) (*registry.Registry, error) {
	reg := registry.New(
		registry.WithLogger(deps.Logger),
		registry.WithOwnerPriority(cfg.Routing.OwnerPriority),
	)
	providerfactory.RegisterBackends(ctx, reg, cfg, deps)

	if err := reg.Build(); err != nil {
		return nil, err
	}
	return reg, nil
}

func runGateway(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}

	logger, err := logging.Setup(cfg.Logging, os.Stdout)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}

	collector := metrics.NewCollector(cfg.Metrics, prometheus.NewRegistry())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps := providerfactory.Deps{
		WaitObserver: collector,
		PoolMetrics:  collector,
		Logger:       logger,
	}

	logger.Info("building backend registry", "backends", len(cfg.Backends))
	reg, err := buildRegistry(ctx, cfg, deps)
	if err != nil {
		return fmt.Errorf("failed to build registry: %w", err)
	}

	holder := &registryHolder{}
	holder.Swap(reg)
	defer func() {
		holder.v.Load().Shutdown()
	}()

	router := routing.New(holder,
		routing.WithTimeout(cfg.Routing.RequestTimeout),
		routing.WithLogger(logger),
		routing.WithMetrics(collector),
		routing.WithUsageEstimator(tokens.NewHeuristic(cfg.Routing.TokenRatios)),
	)

	if runFlags.watch {
		watcher, err := config.NewWatcher(cfgFile, func(newCfg *config.Config) {
			newReg, err := buildRegistry(ctx, newCfg, deps)
			if err != nil {
				logger.Error("config reload: registry rebuild failed, keeping current backends", "error", err)
				return
			}
			old := holder.Swap(newReg)
			retireRegistry(old, newCfg.Routing.RequestTimeout)
			logger.Info("config reload: backends rebuilt", "backends", len(newCfg.Backends))
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to create config watcher: %w", err)
		}
		if err := watcher.Start(ctx); err != nil {
			return fmt.Errorf("failed to start config watcher: %w", err)
		}
		defer watcher.Stop()
	}

	catalog := holder.Catalog()
	fmt.Printf("Relay v%s\n", Version)
	fmt.Printf("✓ Configuration loaded from %s\n", cfgFile)
	fmt.Printf("✓ Backends initialized (%d models)\n", len(catalog))
	fmt.Printf("✓ Listening on %s\n", cfg.Server.ListenAddress)
	fmt.Println("\nPress Ctrl+C to stop")

	srv := server.New(cfg.Server, cfg.Metrics, server.Deps{
		Dispatcher:     router,
		Catalog:        holder,
		MetricsHandler: collector.Handler(),
	})

	return srv.Start(ctx)
}

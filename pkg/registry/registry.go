package registry

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"mercator-hq/relay/pkg/providers"
)

// Factory constructs one backend adapter instance. Factories are
// registered explicitly (no reflection or file-system discovery) and are
// invoked once per Build.
type Factory func() (providers.Provider, error)

// Registry owns every live backend adapter for its process lifetime and
// indexes them by model id. It is built once with an explicit Build call;
// after Build the index and catalog are immutable and concurrent readers
// need no locking. Rebuilding requires a full re-scan: a fresh Registry
// built from the same factories.
type Registry struct {
	logger        *slog.Logger
	ownerPriority map[string]int

	mu        sync.Mutex
	factories []Factory
	built     bool

	// Immutable after Build.
	index   map[string][]providers.Provider
	catalog []providers.ModelDescriptor
	handles []providers.Provider
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger.With("component", "registry")
	}
}

// WithOwnerPriority sets the catalog ordering: models owned by earlier
// entries sort before models owned by later or unlisted ones.
func WithOwnerPriority(owners []string) Option {
	return func(r *Registry) {
		r.ownerPriority = make(map[string]int, len(owners))
		for i, owner := range owners {
			r.ownerPriority[owner] = i
		}
	}
}

// New creates an empty, unbuilt registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		logger:        slog.Default().With("component", "registry"),
		ownerPriority: make(map[string]int),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a factory. Must be called before Build.
func (r *Registry) Register(f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories = append(r.factories, f)
}

// Build instantiates one handle per registered factory and constructs the
// model index and the deduplicated catalog.
//
// A factory that fails, or a handle missing its model id, is logged and
// skipped rather than failing the whole build. Build fails only when
// called twice.
func (r *Registry) Build() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.built {
		return fmt.Errorf("registry already built")
	}

	index := make(map[string][]providers.Provider)

	for _, factory := range r.factories {
		handle, err := factory()
		if err != nil {
			r.logger.Warn("backend construction failed, skipping", "error", err)
			continue
		}

		desc := handle.Descriptor()
		if desc.ID == "" {
			r.logger.Warn("backend has no model id, skipping", "backend", handle.Name())
			handle.Close()
			continue
		}

		index[desc.ID] = append(index[desc.ID], handle)
		r.handles = append(r.handles, handle)

		r.logger.Info("backend registered",
			"backend", handle.Name(),
			"model", desc.ID,
			"streaming", handle.SupportsStreaming(),
		)
	}

	r.index = index
	r.catalog = r.buildCatalog(index)
	r.built = true

	r.logger.Info("registry built",
		"backends", len(r.handles),
		"models", len(r.catalog),
	)
	return nil
}

// ProvidersFor returns the handles serving modelID. Fails with
// *providers.NotFoundError when the id was never registered. Callers
// borrow the returned handles; the registry retains ownership.
func (r *Registry) ProvidersFor(modelID string) ([]providers.Provider, error) {
	handles, ok := r.index[modelID]
	if !ok || len(handles) == 0 {
		return nil, &providers.NotFoundError{Model: modelID}
	}
	return handles, nil
}

// Catalog returns the deduplicated model list in its stable order:
// owner-priority group first, then lexicographic model id. The order is
// deterministic for a fixed registry state.
func (r *Registry) Catalog() []providers.ModelDescriptor {
	return r.catalog
}

// Shutdown closes every handle the registry owns. Close failures are
// logged and do not stop the remaining handles from being closed.
func (r *Registry) Shutdown() {
	for _, handle := range r.handles {
		if err := handle.Close(); err != nil {
			r.logger.Warn("backend close failed", "backend", handle.Name(), "error", err)
		}
	}
	r.logger.Info("registry shut down", "backends", len(r.handles))
}

// buildCatalog merges duplicate model entries across handles serving the
// same id. The first handle's metadata wins for descriptive fields;
// ProviderCount records the redundancy.
func (r *Registry) buildCatalog(index map[string][]providers.Provider) []providers.ModelDescriptor {
	catalog := make([]providers.ModelDescriptor, 0, len(index))

	for id, handles := range index {
		desc := handles[0].Descriptor()
		desc.ID = id
		desc.ProviderCount = len(handles)

		// Prefer the first handle that actually filled the optional
		// descriptive fields.
		for _, h := range handles[1:] {
			d := h.Descriptor()
			if desc.Name == "" {
				desc.Name = d.Name
			}
			if desc.Description == "" {
				desc.Description = d.Description
			}
			if desc.ContextWindow == 0 {
				desc.ContextWindow = d.ContextWindow
			}
			if desc.OwnedBy == "" {
				desc.OwnedBy = d.OwnedBy
			}
		}
		if desc.Name == "" {
			desc.Name = id
		}

		catalog = append(catalog, desc)
	}

	sort.Slice(catalog, func(i, j int) bool {
		pi, pj := r.ownerRank(catalog[i].OwnedBy), r.ownerRank(catalog[j].OwnedBy)
		if pi != pj {
			return pi < pj
		}
		return catalog[i].ID < catalog[j].ID
	})

	return catalog
}

// ownerRank returns the priority group of an owner; unlisted owners sort
// after all listed ones.
func (r *Registry) ownerRank(owner string) int {
	if rank, ok := r.ownerPriority[owner]; ok {
		return rank
	}
	return len(r.ownerPriority)
}

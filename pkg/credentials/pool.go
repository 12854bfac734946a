package credentials

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"mercator-hq/relay/pkg/providers"
)

// Credential is one renewable upstream access credential: an auth code,
// its remaining usage balance, and the opaque session blob (cookies,
// tokens) the login flow produced.
type Credential struct {
	// Code is the unique auth code identifying this credential
	Code string `json:"code"`

	// Balance is the remaining usage quota as last observed
	Balance float64 `json:"balance"`

	// Session is the opaque session blob needed to use the credential
	Session string `json:"session,omitempty"`

	// CreatedAt is when the credential was minted
	CreatedAt time.Time `json:"created_at"`
}

// Minter drives the external login/registration flow that produces a new
// credential. Minting usually involves network round trips and may take
// arbitrarily long; the pool serializes calls so concurrent demand
// triggers at most one mint.
type Minter interface {
	Mint(ctx context.Context) (*Credential, error)
}

// PoolMetrics receives pool state changes. May be nil.
type PoolMetrics interface {
	SetCredentialCounts(backend string, active, blocked int)
	RecordMint(backend, outcome string)
}

// Pool manages the credentials of one backend: an active set ordered by
// age, an append-only blocked set, and a minimum-balance threshold.
//
// Invariants:
//   - every active credential has Balance >= minBalance
//   - a code is never simultaneously active and blocked
//   - a blocked code is never returned by GetValid again
//
// State is persisted wholesale through the Store after every mutation so
// a restart resumes from the last known pool state.
type Pool struct {
	backend    string
	minBalance float64
	minter     Minter
	store      Store
	logger     *slog.Logger
	metrics    PoolMetrics

	// mu guards active and blocked
	mu      sync.Mutex
	active  []*Credential
	blocked map[string]struct{}

	// mintMu serializes the mint path. Callers that found no valid
	// credential queue here; after the first mint completes the rest
	// re-check the active set and reuse the minted credential instead
	// of minting their own.
	mintMu sync.Mutex
}

// Config configures a Pool.
type Config struct {
	// Backend is the owning backend's name, used in logs and metrics
	Backend string

	// MinBalance is the threshold below which a credential is blocked
	MinBalance float64

	// Minter drives the external login flow; nil disables minting
	Minter Minter

	// Store persists pool state; nil disables persistence
	Store Store

	// Logger defaults to slog.Default
	Logger *slog.Logger

	// Metrics may be nil
	Metrics PoolMetrics
}

// NewPool creates a pool and loads its last persisted state. A missing or
// corrupt store is treated as an empty pool, never a fatal error.
func NewPool(cfg Config) *Pool {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "credentials", "backend", cfg.Backend)

	p := &Pool{
		backend:    cfg.Backend,
		minBalance: cfg.MinBalance,
		minter:     cfg.Minter,
		store:      cfg.Store,
		logger:     logger,
		metrics:    cfg.Metrics,
		blocked:    make(map[string]struct{}),
	}

	if p.store != nil {
		state, err := p.store.Load()
		if err != nil {
			logger.Warn("credential store unreadable, starting with empty pool", "error", err)
		} else {
			for i := range state.Active {
				cred := state.Active[i]
				p.active = append(p.active, &cred)
			}
			for _, code := range state.Blocked {
				p.blocked[code] = struct{}{}
			}
			logger.Info("credential state restored",
				"active", len(p.active),
				"blocked", len(p.blocked),
			)
		}
	}

	p.publishCounts()
	return p
}

// GetValid returns a credential with Balance >= minBalance, preferring to
// reuse an existing one over minting a new one. When none qualifies it
// synchronously drives the login flow; concurrent callers share the
// result of a single mint rather than each minting their own.
//
// Fails with *providers.CredentialExhaustedError when no credential can
// be supplied.
func (p *Pool) GetValid(ctx context.Context) (*Credential, error) {
	if cred := p.pick(); cred != nil {
		return cred, nil
	}

	p.mintMu.Lock()
	defer p.mintMu.Unlock()

	// A mint may have completed while this caller queued.
	if cred := p.pick(); cred != nil {
		return cred, nil
	}

	if p.minter == nil {
		return nil, &providers.CredentialExhaustedError{Backend: p.backend}
	}

	p.logger.Info("no valid credential available, minting")
	cred, err := p.minter.Mint(ctx)
	if err != nil {
		if p.metrics != nil {
			p.metrics.RecordMint(p.backend, "error")
		}
		return nil, &providers.CredentialExhaustedError{Backend: p.backend, Cause: err}
	}
	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = time.Now()
	}

	p.mu.Lock()
	if cred.Balance < p.minBalance {
		// Minted below threshold: record as blocked immediately, never
		// admit to the active set.
		p.blocked[cred.Code] = struct{}{}
		p.persistLocked()
		p.mu.Unlock()

		if p.metrics != nil {
			p.metrics.RecordMint(p.backend, "blocked")
		}
		p.logger.Warn("minted credential below minimum balance",
			"code", cred.Code,
			"balance", cred.Balance,
			"min_balance", p.minBalance,
		)
		return nil, &providers.CredentialExhaustedError{Backend: p.backend}
	}

	p.active = append(p.active, cred)
	p.persistLocked()
	p.mu.Unlock()

	if p.metrics != nil {
		p.metrics.RecordMint(p.backend, "success")
	}
	p.publishCounts()
	p.logger.Info("credential minted", "code", cred.Code, "balance", cred.Balance)
	return cred, nil
}

// pick returns the first active credential clearing the threshold, or nil.
// Stale entries whose balance fell below the threshold since admission
// (restored state saved under a lower threshold) are evicted on the way.
func (p *Pool) pick() *Credential {
	p.mu.Lock()

	var picked *Credential
	evicted := false
	for i := 0; i < len(p.active); {
		cred := p.active[i]
		if cred.Balance < p.minBalance {
			p.evictLocked(i, "stale balance below threshold")
			evicted = true
			continue
		}
		// Copy so callers never hold a pointer into guarded state.
		c := *cred
		picked = &c
		break
	}
	if evicted {
		p.persistLocked()
	}
	p.mu.Unlock()

	if evicted {
		p.publishCounts()
	}
	return picked
}

// ReportBalance records the balance observed after an upstream call.
// When the new balance drops below the threshold the credential moves to
// the blocked set; two concurrent low-balance observations for the same
// code result in exactly one eviction.
func (p *Pool) ReportBalance(code string, balance float64) {
	p.mu.Lock()

	idx := p.indexOfLocked(code)
	if idx < 0 {
		// Already evicted or unknown; nothing to update.
		p.mu.Unlock()
		return
	}

	p.active[idx].Balance = balance
	if balance < p.minBalance {
		p.evictLocked(idx, "balance below threshold")
	}
	p.persistLocked()
	p.mu.Unlock()

	p.publishCounts()
}

// ReportAuthFailure records an authentication-class rejection for code.
// The credential is evicted regardless of its last known balance and is
// never returned again.
func (p *Pool) ReportAuthFailure(code string) {
	p.mu.Lock()

	idx := p.indexOfLocked(code)
	if idx < 0 {
		p.mu.Unlock()
		return
	}

	p.evictLocked(idx, "auth failure")
	p.persistLocked()
	p.mu.Unlock()

	p.publishCounts()
}

// Snapshot returns a copy of the current pool state.
func (p *Pool) Snapshot() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stateLocked()
}

// Close persists the final state and closes the store.
func (p *Pool) Close() error {
	p.mu.Lock()
	p.persistLocked()
	p.mu.Unlock()

	if p.store != nil {
		return p.store.Close()
	}
	return nil
}

// indexOfLocked finds code in the active set. Caller must hold mu.
func (p *Pool) indexOfLocked(code string) int {
	for i, cred := range p.active {
		if cred.Code == code {
			return i
		}
	}
	return -1
}

// evictLocked moves active[idx] to the blocked set. Caller must hold mu.
func (p *Pool) evictLocked(idx int, reason string) {
	cred := p.active[idx]
	p.active = append(p.active[:idx], p.active[idx+1:]...)
	p.blocked[cred.Code] = struct{}{}

	p.logger.Info("credential blocked",
		"code", cred.Code,
		"balance", cred.Balance,
		"reason", reason,
	)
}

// stateLocked snapshots pool state. Caller must hold mu.
func (p *Pool) stateLocked() State {
	state := State{
		Active:  make([]Credential, 0, len(p.active)),
		Blocked: make([]string, 0, len(p.blocked)),
	}
	for _, cred := range p.active {
		state.Active = append(state.Active, *cred)
	}
	for code := range p.blocked {
		state.Blocked = append(state.Blocked, code)
	}
	return state
}

// persistLocked writes the current state through the store. Persistence
// failures are logged, not propagated; the in-memory pool stays
// authoritative for the life of the process. Caller must hold mu.
func (p *Pool) persistLocked() {
	if p.store == nil {
		return
	}
	if err := p.store.Save(p.stateLocked()); err != nil {
		p.logger.Error("failed to persist credential state", "error", err)
	}
}

func (p *Pool) publishCounts() {
	if p.metrics == nil {
		return
	}
	p.mu.Lock()
	active, blocked := len(p.active), len(p.blocked)
	p.mu.Unlock()
	p.metrics.SetCredentialCounts(p.backend, active, blocked)
}

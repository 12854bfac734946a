package credentials

import (
	"sort"
)

// State is the durable record of one pool: the active credentials and the
// append-only list of blocked codes. It is rewritten wholesale on every
// mutation; no incremental append format is required.
type State struct {
	Active  []Credential `json:"active"`
	Blocked []string     `json:"blocked"`
}

// normalize sorts the blocked list so persisted snapshots are stable
// across runs regardless of map iteration order.
func (s *State) normalize() {
	sort.Strings(s.Blocked)
}

// Store persists pool state across restarts. Implementations must treat
// a missing or corrupt record as recoverable: Load returns an empty State
// and an error describing the damage, and the pool starts empty.
type Store interface {
	// Save rewrites the full state.
	Save(state State) error

	// Load reads the last saved state. A store with no record yet
	// returns an empty State and nil error.
	Load() (State, error)

	// Close releases store resources.
	Close() error
}

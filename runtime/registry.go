// Package runtime contains the relay core: the connection registry, the
// event router and the call-signaling broker. It owns the only mutable
// shared state of the process and exposes it strictly through the
// contract interfaces.
package runtime

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"campus-relay/contract"
	"campus-relay/domain"
	"campus-relay/observability"
)

// Registry maps an identity to its set of live connections. An identity
// may hold several connections at once (multi-device); the first
// registered connection flips the identity online, removing the last one
// flips it offline.
//
// Online-flag persistence is decoupled on purpose: transitions are sent
// to a buffered channel drained by the presence worker, so a slow store
// can never stall register/unregister.
type Registry struct {
	mu          sync.RWMutex
	connections map[domain.IdentityID]map[string]contract.Connection

	log         *slog.Logger
	stats       *observability.RelayStats
	transitions chan<- domain.PresenceTransition

	hookMu       sync.RWMutex
	offlineHooks []func(domain.IdentityID)
}

func NewRegistry(log *slog.Logger, stats *observability.RelayStats,
	transitions chan<- domain.PresenceTransition) *Registry {
	return &Registry{
		connections: make(map[domain.IdentityID]map[string]contract.Connection),
		log:         log,
		stats:       stats,
		transitions: transitions,
	}
}

// OnOffline registers a hook invoked after an identity loses its last
// connection. The broker uses it to end orphaned call sessions. Hooks
// run outside the registry lock.
func (r *Registry) OnOffline(fn func(domain.IdentityID)) {
	r.hookMu.Lock()
	defer r.hookMu.Unlock()
	r.offlineHooks = append(r.offlineHooks, fn)
}

func (r *Registry) Register(conn contract.Connection) {
	identityID := conn.IdentityID()

	r.mu.Lock()
	set, ok := r.connections[identityID]
	if !ok {
		set = make(map[string]contract.Connection)
		r.connections[identityID] = set
	}
	first := len(set) == 0
	set[conn.ID()] = conn
	r.mu.Unlock()

	r.stats.ConnectionOpened()
	r.log.Info("connection registered",
		"identity_id", identityID,
		"connection_id", conn.ID(),
		"first", first,
	)

	if first {
		r.stats.IdentityOnline()
		r.emit(domain.PresenceTransition{IdentityID: identityID, Online: true, At: time.Now().UTC()})
	}
}

// Unregister removes one connection. It is idempotent: a connection that
// was already removed (for instance by a failed push racing the read
// pump teardown) is a no-op.
func (r *Registry) Unregister(conn contract.Connection) {
	identityID := conn.IdentityID()

	r.mu.Lock()
	set, ok := r.connections[identityID]
	if !ok {
		r.mu.Unlock()
		return
	}
	if _, ok := set[conn.ID()]; !ok {
		r.mu.Unlock()
		return
	}
	delete(set, conn.ID())
	last := len(set) == 0
	if last {
		// No empty sets are left behind, so the map never grows with
		// identities that churned through once.
		delete(r.connections, identityID)
	}
	r.mu.Unlock()

	r.stats.ConnectionClosed()
	r.log.Info("connection unregistered",
		"identity_id", identityID,
		"connection_id", conn.ID(),
		"last", last,
	)

	if !last {
		return
	}

	r.stats.IdentityOffline()
	r.emit(domain.PresenceTransition{IdentityID: identityID, Online: false, At: time.Now().UTC()})

	r.hookMu.RLock()
	hooks := r.offlineHooks
	r.hookMu.RUnlock()
	for _, hook := range hooks {
		hook(identityID)
	}
}

// ConnectionsFor returns a snapshot of the identity's live connections.
// The returned slice is a copy; it never reflects later mutations.
func (r *Registry) ConnectionsFor(id domain.IdentityID) []contract.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.connections[id]
	if !ok {
		return nil
	}
	conns := make([]contract.Connection, 0, len(set))
	for _, conn := range set {
		conns = append(conns, conn)
	}
	return conns
}

func (r *Registry) Online(id domain.IdentityID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connections[id]) > 0
}

func (r *Registry) emit(t domain.PresenceTransition) {
	select {
	case r.transitions <- t:
	default:
		// The store self-heals on the next transition; dropping here is
		// preferable to blocking a connect/disconnect.
		r.log.Warn(fmt.Sprintf("presence channel full, dropping transition for identity %d", t.IdentityID))
	}
}

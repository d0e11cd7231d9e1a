// Package hub holds the in-memory connection registry and broadcast groups
// for live websocket connections. All state is process-local; a restart
// drops every connection and clients reconnect.
package hub

import "sync"

// Sender is the minimal interface the hub needs from a connection: the
// ability to push one encoded frame to the client.
type Sender interface {
	Send(frame []byte) error
}

// Registry tracks which live connections belong to which user. A user may
// have several simultaneous connections (multiple tabs or devices), so the
// mapping is a multimap keyed by user id.
type Registry struct {
	mu    sync.RWMutex
	conns map[int64]map[string]Sender
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[int64]map[string]Sender)}
}

// Register adds a connection under the given user. Registering the same
// connection id twice is a no-op beyond refreshing the sender handle.
func (r *Registry) Register(userID int64, connID string, s Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[userID]; !ok {
		r.conns[userID] = make(map[string]Sender)
	}
	r.conns[userID][connID] = s
}

// Unregister removes a connection mapping. No-op if the connection is not
// registered.
func (r *Registry) Unregister(userID int64, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if conns, ok := r.conns[userID]; ok {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(r.conns, userID)
		}
	}
}

// ConnectionsFor returns a snapshot of the connection ids currently
// registered for the user.
func (r *Registry) ConnectionsFor(userID int64) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.conns[userID]))
	for id := range r.conns[userID] {
		ids = append(ids, id)
	}
	return ids
}

// Online reports whether the user has at least one live connection.
func (r *Registry) Online(userID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[userID]) > 0
}

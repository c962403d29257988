// Package presence tracks which identities currently hold a live
// connection. It is the sole source of truth for reachability: entries are
// memory-resident only and the index starts empty on every process restart,
// so all users appear offline until they reconnect.
package presence

import (
	"sync"
)

// Conn is the connection handle stored in the index. Handles are compared
// by connection id, which is generated per connect.
type Conn interface {
	ConnectionId() string
}

type Index struct {
	mu      sync.Mutex
	entries map[string]Conn
}

func NewIndex() *Index {
	return &Index{
		entries: make(map[string]Conn),
	}
}

// Register records conn as the live connection for identity,
// unconditionally overwriting any existing entry. A reconnecting identity
// therefore wins over its prior connection; the prior connection is not
// closed, it just stops being reachable via Lookup.
func (i *Index) Register(identity string, conn Conn) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.entries[identity] = conn
}

// Lookup returns the live connection for identity, if any. Pure read.
func (i *Index) Lookup(identity string) (Conn, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	conn, ok := i.entries[identity]
	return conn, ok
}

// Unregister removes the entry for identity only if it still points at
// conn. A disconnect whose cleanup races a newer connect for the same
// identity is a no-op, so the newer registration survives.
func (i *Index) Unregister(identity string, conn Conn) {
	i.mu.Lock()
	defer i.mu.Unlock()
	cur, ok := i.entries[identity]
	if !ok || cur.ConnectionId() != conn.ConnectionId() {
		return
	}
	delete(i.entries, identity)
}

// Len reports the number of registered identities.
func (i *Index) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.entries)
}

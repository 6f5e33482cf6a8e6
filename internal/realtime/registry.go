// Package realtime tracks live connections, who they belong to and which
// rooms they are in.
package realtime

import (
	"errors"
	"strconv"
	"sync"

	"github.com/Tobby-pro/New-Rental-Stack/internal/domain"
)

// ErrSendBufferFull is returned by Conn.Send when the outbound queue has no room.
var ErrSendBufferFull = errors.New("send buffer full")

// Conn is one live client connection. Send must not block.
type Conn interface {
	ID() string
	Send(msg []byte) error
	Close() error
}

// Identity is the (role, user id) a connection registers as.
type Identity struct {
	Role   domain.Role
	UserID int64
}

func (i Identity) String() string {
	return i.Role.Lower() + ":" + strconv.FormatInt(i.UserID, 10)
}

type Registry struct {
	mu       sync.RWMutex
	attached map[string]Conn
	byIdent  map[Identity]Conn
	idents   map[string]map[Identity]struct{} // conn id -> identities registered by it
}

func NewRegistry() *Registry {
	return &Registry{
		attached: make(map[string]Conn),
		byIdent:  make(map[Identity]Conn),
		idents:   make(map[string]map[Identity]struct{}),
	}
}

func (r *Registry) Attach(c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attached[c.ID()] = c
}

// Register binds id to c. A previous connection for the same identity is
// replaced and returned; it is not closed. Connections that are not attached
// are ignored.
func (r *Registry) Register(id Identity, c Conn) (prev Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.attached[c.ID()]; !ok {
		return nil
	}
	if old, ok := r.byIdent[id]; ok && old.ID() != c.ID() {
		prev = old
		if set := r.idents[old.ID()]; set != nil {
			delete(set, id)
		}
	}
	r.byIdent[id] = c

	set, ok := r.idents[c.ID()]
	if !ok {
		set = make(map[Identity]struct{})
		r.idents[c.ID()] = set
	}
	set[id] = struct{}{}
	return prev
}

// Attached reports whether c is attached and not yet unregistered.
func (r *Registry) Attached(c Conn) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.attached[c.ID()]
	return ok
}

// Lookup reports the live connection for id; offline is not an error.
func (r *Registry) Lookup(id Identity) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byIdent[id]
	return c, ok
}

// Identities returns what c registered as and still owns.
func (r *Registry) Identities(c Conn) []Identity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.idents[c.ID()]
	out := make([]Identity, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

// Unregister forgets c and every identity still pointing at it. Only the
// first call for a connection returns true.
func (r *Registry) Unregister(c Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cid := c.ID()
	_, attached := r.attached[cid]
	set, registered := r.idents[cid]
	if !attached && !registered {
		return false
	}

	for id := range set {
		if cur, ok := r.byIdent[id]; ok && cur.ID() == cid {
			delete(r.byIdent, id)
		}
	}
	delete(r.idents, cid)
	delete(r.attached, cid)
	return true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.attached)
}

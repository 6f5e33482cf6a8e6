package realtime

import "sync"

// Rooms is the membership table. Rooms exist while they have members.
type Rooms struct {
	mu     sync.RWMutex
	rooms  map[string]map[string]Conn     // room -> conn id -> conn
	joined map[string]map[string]struct{} // conn id -> rooms
}

func NewRooms() *Rooms {
	return &Rooms{
		rooms:  make(map[string]map[string]Conn),
		joined: make(map[string]map[string]struct{}),
	}
}

// Join is idempotent; it reports whether c was newly added.
func (r *Rooms) Join(c Conn, room string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[room]
	if !ok {
		members = make(map[string]Conn)
		r.rooms[room] = members
	}
	if _, ok := members[c.ID()]; ok {
		return false
	}
	members[c.ID()] = c

	set, ok := r.joined[c.ID()]
	if !ok {
		set = make(map[string]struct{})
		r.joined[c.ID()] = set
	}
	set[room] = struct{}{}
	return true
}

// Leave is idempotent; it reports whether c was a member.
func (r *Rooms) Leave(c Conn, room string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leaveLocked(c.ID(), room)
}

func (r *Rooms) leaveLocked(cid, room string) bool {
	members, ok := r.rooms[room]
	if !ok {
		return false
	}
	if _, ok := members[cid]; !ok {
		return false
	}
	delete(members, cid)
	if len(members) == 0 {
		delete(r.rooms, room)
	}
	if set := r.joined[cid]; set != nil {
		delete(set, room)
		if len(set) == 0 {
			delete(r.joined, cid)
		}
	}
	return true
}

// LeaveAll removes c from every room and returns the rooms it left.
func (r *Rooms) LeaveAll(c Conn) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	cid := c.ID()
	set := r.joined[cid]
	left := make([]string, 0, len(set))
	for room := range set {
		left = append(left, room)
	}
	for _, room := range left {
		r.leaveLocked(cid, room)
	}
	return left
}

func (r *Rooms) IsMember(c Conn, room string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[room][c.ID()]
	return ok
}

func (r *Rooms) Members(room string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[room])
}

// RoomsOf lists the rooms c is currently in.
func (r *Rooms) RoomsOf(c Conn) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.joined[c.ID()]
	out := make([]string, 0, len(set))
	for room := range set {
		out = append(out, room)
	}
	return out
}

func (r *Rooms) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// broadcast queues msg on every member except exclude while holding the read
// lock, so two broadcasts from one sender reach each member in order.
// Members whose queue rejected the message are returned for the caller to drop.
func (r *Rooms) broadcast(room string, msg []byte, exclude string) (sent int, failed []Conn) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for cid, c := range r.rooms[room] {
		if cid == exclude {
			continue
		}
		if err := c.Send(msg); err != nil {
			failed = append(failed, c)
			continue
		}
		sent++
	}
	return sent, failed
}

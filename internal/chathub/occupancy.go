package chathub

import (
	"sort"
	"sync"
)

// Occupancy tracks which connections are currently subscribed to which rooms.
// It is presence only; room membership is decided by the store.
type Occupancy struct {
	mu    sync.RWMutex
	rooms map[string]map[string]struct{}
}

func NewOccupancy() *Occupancy {
	return &Occupancy{rooms: make(map[string]map[string]struct{})}
}

// Join adds connID to roomID and returns the room's connection count.
func (o *Occupancy) Join(roomID, connID string) int {
	o.mu.Lock()
	defer o.mu.Unlock()

	conns, ok := o.rooms[roomID]
	if !ok {
		conns = make(map[string]struct{})
		o.rooms[roomID] = conns
	}
	conns[connID] = struct{}{}
	return len(conns)
}

// Leave removes connID from roomID. It reports the remaining count and
// whether the connection was present.
func (o *Occupancy) Leave(roomID, connID string) (int, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	conns, ok := o.rooms[roomID]
	if !ok {
		return 0, false
	}
	if _, ok := conns[connID]; !ok {
		return len(conns), false
	}
	delete(conns, connID)
	n := len(conns)
	if n == 0 {
		delete(o.rooms, roomID)
	}
	return n, true
}

// LeaveAll removes connID from every room and returns the remaining count per
// affected room.
func (o *Occupancy) LeaveAll(connID string) map[string]int {
	o.mu.Lock()
	defer o.mu.Unlock()

	affected := make(map[string]int)
	for roomID, conns := range o.rooms {
		if _, ok := conns[connID]; !ok {
			continue
		}
		delete(conns, connID)
		affected[roomID] = len(conns)
		if len(conns) == 0 {
			delete(o.rooms, roomID)
		}
	}
	return affected
}

// MembersOf returns the connection ids in roomID, sorted.
func (o *Occupancy) MembersOf(roomID string) []string {
	o.mu.RLock()
	defer o.mu.RUnlock()

	conns := o.rooms[roomID]
	ids := make([]string, 0, len(conns))
	for id := range conns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

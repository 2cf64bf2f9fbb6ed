// Package rooms tracks which live connections are interested in which
// conversation rooms, plus the per-user channel every authenticated
// connection belongs to. It is the only place room membership lives, so
// purging a connection here is what makes disconnect atomic.
package rooms

import "sync"

// Registry is an in-memory membership index, generic over the concrete
// connection type so the gateway can store its own client struct. All
// mutation is serialized under one lock; fan-out readers take snapshots.
type Registry[C comparable] struct {
	mu        sync.RWMutex
	rooms     map[string]map[C]bool
	connRooms map[C]map[string]bool
	userConns map[string]map[C]bool
	connUser  map[C]string
}

func NewRegistry[C comparable]() *Registry[C] {
	return &Registry[C]{
		rooms:     make(map[string]map[C]bool),
		connRooms: make(map[C]map[string]bool),
		userConns: make(map[string]map[C]bool),
		connUser:  make(map[C]string),
	}
}

// Bind admits an authenticated connection and places it on its user channel.
// Binding twice is a no-op.
func (r *Registry[C]) Bind(conn C, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.connUser[conn]; ok {
		return
	}
	r.connUser[conn] = userID
	if r.userConns[userID] == nil {
		r.userConns[userID] = make(map[C]bool)
	}
	r.userConns[userID][conn] = true
	r.connRooms[conn] = make(map[string]bool)
}

// Join adds the connection to a room. Idempotent; reports whether the
// membership is new. Joining before Bind is rejected.
func (r *Registry[C]) Join(conn C, roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	joined, bound := r.connRooms[conn]
	if !bound || joined[roomID] {
		return false
	}
	joined[roomID] = true
	if r.rooms[roomID] == nil {
		r.rooms[roomID] = make(map[C]bool)
	}
	r.rooms[roomID][conn] = true
	return true
}

// JoinAll bulk-joins rooms, typically all of a user's active conversations
// after connect or reconnect.
func (r *Registry[C]) JoinAll(conn C, roomIDs []string) {
	for _, id := range roomIDs {
		r.Join(conn, id)
	}
}

// Leave removes the connection from a room. Idempotent; reports whether a
// membership was actually removed.
func (r *Registry[C]) Leave(conn C, roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leaveLocked(conn, roomID)
}

func (r *Registry[C]) leaveLocked(conn C, roomID string) bool {
	joined, bound := r.connRooms[conn]
	if !bound || !joined[roomID] {
		return false
	}
	delete(joined, roomID)
	delete(r.rooms[roomID], conn)
	if len(r.rooms[roomID]) == 0 {
		delete(r.rooms, roomID)
	}
	return true
}

// Purge removes every membership of a disconnected connection in one
// critical section and returns the rooms it was in, so callers can clear
// derived state (viewer presence) afterwards. No partial removal is ever
// observable. The second return reports whether the connection was still
// bound: a connection can be sent for purging from more than one place,
// and only the first purge may run the caller's teardown.
func (r *Registry[C]) Purge(conn C) ([]string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, bound := r.connUser[conn]
	if !bound {
		return nil, false
	}

	joined := r.connRooms[conn]
	left := make([]string, 0, len(joined))
	for roomID := range joined {
		left = append(left, roomID)
		delete(r.rooms[roomID], conn)
		if len(r.rooms[roomID]) == 0 {
			delete(r.rooms, roomID)
		}
	}
	delete(r.connRooms, conn)

	delete(r.connUser, conn)
	delete(r.userConns[userID], conn)
	if len(r.userConns[userID]) == 0 {
		delete(r.userConns, userID)
	}
	return left, true
}

// InRoom reports whether the connection is currently joined to the room.
func (r *Registry[C]) InRoom(conn C, roomID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.connRooms[conn][roomID]
}

// RoomConns snapshots the connections joined to a room.
func (r *Registry[C]) RoomConns(roomID string) []C {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]C, 0, len(r.rooms[roomID]))
	for c := range r.rooms[roomID] {
		conns = append(conns, c)
	}
	return conns
}

// UserConns snapshots all live connections of one user.
func (r *Registry[C]) UserConns(userID string) []C {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]C, 0, len(r.userConns[userID]))
	for c := range r.userConns[userID] {
		conns = append(conns, c)
	}
	return conns
}

// UserOf returns the user a connection is bound to.
func (r *Registry[C]) UserOf(conn C) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	userID, ok := r.connUser[conn]
	return userID, ok
}

// Rooms returns the rooms a connection is joined to.
func (r *Registry[C]) Rooms(conn C) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	joined := r.connRooms[conn]
	out := make([]string, 0, len(joined))
	for roomID := range joined {
		out = append(out, roomID)
	}
	return out
}

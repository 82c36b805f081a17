package runtime

import (
	"chat-hub/contract"
	"chat-hub/domain"
	"sync"
)

type Set map[string]struct{}

type connection struct {
	userID string
	sink   contract.EventSink
	groups map[domain.GroupKey]struct{}
}

// Registry is the single owner of live connections and their groups.
// Every membership mutation happens under one lock, so a broadcast
// snapshot never observes a half-removed connection.
type Registry struct {
	mu          sync.RWMutex
	connections map[string]*connection  // map connection -> state
	groups      map[domain.GroupKey]Set // map group -> connections
	users       map[string]Set          // map user -> connections
}

func NewRegistry() *Registry {
	return &Registry{
		connections: make(map[string]*connection),
		groups:      make(map[domain.GroupKey]Set),
		users:       make(map[string]Set),
	}
}

// Register records a new connection and joins it to its personal user group.
// Returns true when it is the first live connection of the user.
func (r *Registry) Register(connID, userID string, sink contract.EventSink) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.connections[connID]; exists {
		return false
	}
	conn := &connection{userID: userID, sink: sink, groups: make(map[domain.GroupKey]struct{})}
	r.connections[connID] = conn
	r.join(connID, conn, domain.UserGroup(userID))

	if _, ok := r.users[userID]; !ok {
		r.users[userID] = make(Set)
	}
	r.users[userID][connID] = struct{}{}
	return len(r.users[userID]) == 1
}

// Unregister removes a connection from every group it belongs to in a single
// critical section and reports what it left behind.
func (r *Registry) Unregister(connID string) (contract.Departure, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.connections[connID]
	if !ok {
		return contract.Departure{}, false
	}

	var rooms []string
	for group := range conn.groups {
		if roomID, isRoom := group.RoomID(); isRoom {
			rooms = append(rooms, roomID)
		}
		r.leave(connID, conn, group)
	}
	delete(r.connections, connID)

	last := false
	if userConns, exists := r.users[conn.userID]; exists {
		delete(userConns, connID)
		if len(userConns) == 0 {
			delete(r.users, conn.userID)
			last = true
		}
	}

	return contract.Departure{
		ConnectionID:   connID,
		UserID:         conn.userID,
		Rooms:          rooms,
		LastConnection: last,
	}, true
}

// Join returns false when the connection is unknown or already a member.
func (r *Registry) Join(connID string, group domain.GroupKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.connections[connID]
	if !ok {
		return false
	}
	return r.join(connID, conn, group)
}

// Leave returns false when the connection was not a member.
func (r *Registry) Leave(connID string, group domain.GroupKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.connections[connID]
	if !ok {
		return false
	}
	return r.leave(connID, conn, group)
}

// Sinks returns a snapshot of the sinks of a group.
// The slice is owned by the caller and stays valid after membership changes.
func (r *Registry) Sinks(group domain.GroupKey) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.groups[group]
	if !ok {
		return nil
	}
	sinks := make([]contract.EventSink, 0, len(members))
	for connID := range members {
		if conn, exists := r.connections[connID]; exists {
			sinks = append(sinks, conn.sink)
		}
	}
	return sinks
}

func (r *Registry) Sink(connID string) (contract.EventSink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.connections[connID]
	if !ok {
		return nil, false
	}
	return conn.sink, true
}

func (r *Registry) UserOf(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.connections[connID]
	if !ok {
		return "", false
	}
	return conn.userID, true
}

func (r *Registry) IsMember(connID string, group domain.GroupKey) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.groups[group][connID]
	return ok
}

// Online reports whether the user has at least one live connection.
func (r *Registry) Online(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.users[userID]) > 0
}

func (r *Registry) Stats() contract.RegistryStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return contract.RegistryStats{
		Connections: len(r.connections),
		Users:       len(r.users),
		Groups:      len(r.groups),
	}
}

func (r *Registry) join(connID string, conn *connection, group domain.GroupKey) bool {
	if _, already := conn.groups[group]; already {
		return false
	}
	if _, ok := r.groups[group]; !ok {
		r.groups[group] = make(Set)
	}
	r.groups[group][connID] = struct{}{}
	conn.groups[group] = struct{}{}
	return true
}

// leave drops empty groups so the map does not grow with dead rooms.
func (r *Registry) leave(connID string, conn *connection, group domain.GroupKey) bool {
	if _, member := conn.groups[group]; !member {
		return false
	}
	delete(conn.groups, group)
	if members, ok := r.groups[group]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(r.groups, group)
		}
	}
	return true
}

package hub

import (
	"sync"

	"github.com/coder/websocket"
)

// statusReplaced closes a session superseded by a newer one for the same user.
const statusReplaced websocket.StatusCode = 4001

// Router tracks one live connection per user and the rooms each
// connection has joined.
type Router struct {
	mu           sync.RWMutex
	sessions     map[string]*Connection            // session id -> connection
	userSessions map[string]string                 // user id -> session id
	rooms        map[string]map[string]*Connection // conversation key -> session id -> connection
	sessionRooms map[string]map[string]struct{}    // session id -> conversation keys
}

// NewRouter constructs an empty Router.
func NewRouter() *Router {
	return &Router{
		sessions:     make(map[string]*Connection),
		userSessions: make(map[string]string),
		rooms:        make(map[string]map[string]*Connection),
		sessionRooms: make(map[string]map[string]struct{}),
	}
}

// Attach registers conn for its user. A previous session of the same user
// is detached and closed.
func (r *Router) Attach(conn *Connection) {
	var previous *Connection

	r.mu.Lock()
	if existingID, ok := r.userSessions[conn.UserID()]; ok && existingID != conn.ID {
		previous = r.sessions[existingID]
		r.detachLocked(existingID)
	}
	r.sessions[conn.ID] = conn
	r.userSessions[conn.UserID()] = conn.ID
	if r.sessionRooms[conn.ID] == nil {
		r.sessionRooms[conn.ID] = make(map[string]struct{})
	}
	r.mu.Unlock()

	if previous != nil {
		previous.Close(statusReplaced, "session replaced")
	}
}

// Detach removes conn if it is still tracked.
func (r *Router) Detach(conn *Connection) {
	r.mu.Lock()
	r.detachLocked(conn.ID)
	r.mu.Unlock()
}

// Join adds conn to the room for key.
func (r *Router) Join(key string, conn *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[conn.ID]; !ok {
		return
	}

	room := r.rooms[key]
	if room == nil {
		room = make(map[string]*Connection)
		r.rooms[key] = room
	}
	room[conn.ID] = conn

	memberships := r.sessionRooms[conn.ID]
	if memberships == nil {
		memberships = make(map[string]struct{})
		r.sessionRooms[conn.ID] = memberships
	}
	memberships[key] = struct{}{}
}

// Leave removes conn from the room for key.
func (r *Router) Leave(key string, conn *Connection) {
	r.mu.Lock()
	r.leaveLocked(key, conn.ID)
	r.mu.Unlock()
}

// InRoom reports whether userID's current session has joined key.
func (r *Router) InRoom(key, userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sessionID, ok := r.userSessions[userID]
	if !ok {
		return false
	}
	_, ok = r.rooms[key][sessionID]
	return ok
}

// Broadcast writes payload to every member of key except excludeUserID and
// returns how many connections accepted it.
func (r *Router) Broadcast(key string, payload []byte, excludeUserID string) int {
	r.mu.RLock()
	members := make([]*Connection, 0, len(r.rooms[key]))
	for _, conn := range r.rooms[key] {
		if excludeUserID != "" && conn.UserID() == excludeUserID {
			continue
		}
		members = append(members, conn)
	}
	r.mu.RUnlock()

	delivered := 0
	for _, conn := range members {
		if err := conn.Send(payload); err == nil {
			delivered++
		}
	}
	return delivered
}

// NotifyUser delivers payload to the current session of userID.
func (r *Router) NotifyUser(userID string, payload []byte) bool {
	r.mu.RLock()
	conn := r.sessions[r.userSessions[userID]]
	r.mu.RUnlock()
	if conn == nil {
		return false
	}
	return conn.Send(payload) == nil
}

// Close terminates every tracked connection and clears router state.
func (r *Router) Close() {
	r.mu.Lock()
	sessions := make([]*Connection, 0, len(r.sessions))
	for _, conn := range r.sessions {
		sessions = append(sessions, conn)
	}
	r.sessions = make(map[string]*Connection)
	r.userSessions = make(map[string]string)
	r.rooms = make(map[string]map[string]*Connection)
	r.sessionRooms = make(map[string]map[string]struct{})
	r.mu.Unlock()

	for _, conn := range sessions {
		conn.Close(websocket.StatusGoingAway, "server shutdown")
	}
}

func (r *Router) detachLocked(sessionID string) {
	conn, ok := r.sessions[sessionID]
	if !ok {
		return
	}
	delete(r.sessions, sessionID)

	if current, ok := r.userSessions[conn.UserID()]; ok && current == sessionID {
		delete(r.userSessions, conn.UserID())
	}
	for key := range r.sessionRooms[sessionID] {
		r.leaveLocked(key, sessionID)
	}
	delete(r.sessionRooms, sessionID)
}

func (r *Router) leaveLocked(key, sessionID string) {
	room := r.rooms[key]
	if room == nil {
		return
	}
	delete(room, sessionID)
	if len(room) == 0 {
		delete(r.rooms, key)
	}
	if memberships, ok := r.sessionRooms[sessionID]; ok {
		delete(memberships, key)
	}
}

package hub

import (
	"fmt"
	"sync"
)

// ConversationKey derives the canonical room key for a pair of users. The
// pair is unordered: both participants land in the same room no matter who
// joins first.
func ConversationKey(userA, userB int64) string {
	if userA > userB {
		userA, userB = userB, userA
	}
	return fmt.Sprintf("chat_%d_%d", userA, userB)
}

// PersonalKey derives the room key for a user's personal group: the room
// holding all of that user's simultaneously open connections.
func PersonalKey(userID int64) string {
	return fmt.Sprintf("user_%d", userID)
}

type member struct {
	userID int64
	sender Sender
}

// Rooms manages membership of connections in named broadcast groups and
// fans frames out to them. Membership changes race with broadcasts from
// other connections' handlers, so all access goes through the lock.
type Rooms struct {
	mu     sync.RWMutex
	groups map[string]map[string]member
	byConn map[string]map[string]struct{}
}

// NewRooms creates an empty room set.
func NewRooms() *Rooms {
	return &Rooms{
		groups: make(map[string]map[string]member),
		byConn: make(map[string]map[string]struct{}),
	}
}

// Join adds a connection to the named group. Idempotent per connection id.
func (r *Rooms) Join(key, connID string, userID int64, s Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.groups[key]; !ok {
		r.groups[key] = make(map[string]member)
	}
	r.groups[key][connID] = member{userID: userID, sender: s}

	if _, ok := r.byConn[connID]; !ok {
		r.byConn[connID] = make(map[string]struct{})
	}
	r.byConn[connID][key] = struct{}{}
}

// Leave removes a connection from the named group. A missing group or
// membership is a silent no-op; the group may already have been vacated.
func (r *Rooms) Leave(key, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(key, connID)
}

// LeaveAll removes a connection from every group it joined. Used on
// disconnect; safe to call repeatedly.
func (r *Rooms) LeaveAll(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key := range r.byConn[connID] {
		r.leaveLocked(key, connID)
	}
}

func (r *Rooms) leaveLocked(key, connID string) {
	if group, ok := r.groups[key]; ok {
		delete(group, connID)
		if len(group) == 0 {
			delete(r.groups, key)
		}
	}
	if keys, ok := r.byConn[connID]; ok {
		delete(keys, key)
		if len(keys) == 0 {
			delete(r.byConn, connID)
		}
	}
}

// Broadcast delivers one frame to every connection in the group and returns
// the number of successful deliveries. Connections whose send fails are
// removed from all groups so broken sockets don't linger.
func (r *Rooms) Broadcast(key string, frame []byte) int {
	return r.broadcast(key, frame, nil)
}

// BroadcastExcept is Broadcast skipping every connection that belongs to
// the excluded user.
func (r *Rooms) BroadcastExcept(key string, frame []byte, exceptUserID int64) int {
	return r.broadcast(key, frame, func(m member) bool { return m.userID == exceptUserID })
}

func (r *Rooms) broadcast(key string, frame []byte, skip func(member) bool) int {
	// Snapshot membership so slow sends don't hold the lock against joins
	// and leaves from other handlers.
	r.mu.RLock()
	targets := make(map[string]member, len(r.groups[key]))
	for id, m := range r.groups[key] {
		targets[id] = m
	}
	r.mu.RUnlock()

	delivered := 0
	var failed []string
	for id, m := range targets {
		if skip != nil && skip(m) {
			continue
		}
		if err := m.sender.Send(frame); err != nil {
			failed = append(failed, id)
			continue
		}
		delivered++
	}

	for _, id := range failed {
		r.LeaveAll(id)
	}
	return delivered
}

// Members returns a snapshot of the connection ids in the group.
func (r *Rooms) Members(key string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.groups[key]))
	for id := range r.groups[key] {
		ids = append(ids, id)
	}
	return ids
}

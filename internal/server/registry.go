package server

import (
	"encoding/json"
	"log"
	"strconv"
	"sync"

	"github.com/edumesh/commchat/internal/stats"
)

// ChatRoomKey is the registry key for a community's chat room.
func ChatRoomKey(slug string) string {
	return "chat_" + slug
}

// UserKey is the registry key for a user's notification channel.
func UserKey(userId int) string {
	return "user_" + strconv.Itoa(userId)
}

// RoomRegistry maps a room key to the set of sessions currently connected to
// that room. All methods are safe for concurrent use.
type RoomRegistry struct {
	mu    sync.Mutex
	rooms map[string]map[*Session]struct{}
	log   *log.Logger
	stats stats.StatsProvider
}

func NewRoomRegistry(l *log.Logger, sp stats.StatsProvider) *RoomRegistry {
	return &RoomRegistry{
		rooms: make(map[string]map[*Session]struct{}),
		log:   l,
		stats: sp,
	}
}

func (r *RoomRegistry) Join(roomKey string, sess *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessions, ok := r.rooms[roomKey]
	if !ok {
		sessions = make(map[*Session]struct{})
		r.rooms[roomKey] = sessions
	}
	sessions[sess] = struct{}{}
}

func (r *RoomRegistry) Leave(roomKey string, sess *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessions, ok := r.rooms[roomKey]
	if !ok {
		return
	}

	delete(sessions, sess)
	if len(sessions) == 0 {
		delete(r.rooms, roomKey)
	}
}

// Count reports the number of sessions currently in the room.
func (r *RoomRegistry) Count(roomKey string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.rooms[roomKey])
}

// Broadcast delivers event to every session in the room at call time. The
// session set is snapshotted under the lock and iterated without it, so a
// slow or dead peer never blocks the registry. Returns the number of
// sessions the event was queued for.
func (r *RoomRegistry) Broadcast(roomKey string, event any) int {
	bytes, err := json.Marshal(event)
	if err != nil {
		r.log.Println("failed to serialize broadcast:", err)
		return 0
	}

	r.mu.Lock()
	snapshot := make([]*Session, 0, len(r.rooms[roomKey]))
	for sess := range r.rooms[roomKey] {
		snapshot = append(snapshot, sess)
	}
	r.mu.Unlock()

	var delivered int
	for _, sess := range snapshot {
		if !sess.queueBytes(bytes) {
			r.stats.Incr(stats.BroadcastsDropped)
			r.log.Printf("broadcast to %q skipped session for %q", roomKey, sess.user.Username)
			continue
		}
		delivered++
	}

	return delivered
}

// NotificationRegistry maps a user key to that user's single live
// notification session.
type NotificationRegistry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	log      *log.Logger
}

func NewNotificationRegistry(l *log.Logger) *NotificationRegistry {
	return &NotificationRegistry{
		sessions: make(map[string]*Session),
		log:      l,
	}
}

// Register installs sess as the user's notification session. A previous
// session for the same user is replaced and closed.
func (r *NotificationRegistry) Register(userKey string, sess *Session) {
	r.mu.Lock()
	old := r.sessions[userKey]
	r.sessions[userKey] = sess
	r.mu.Unlock()

	if old != nil && old != sess {
		r.log.Printf("replacing notification session for %q", userKey)
		old.closeSession()
	}
}

// Unregister removes the mapping only if it still points at sess, so a
// racing replacement is never torn down by the old session's cleanup.
func (r *NotificationRegistry) Unregister(userKey string, sess *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sessions[userKey] == sess {
		delete(r.sessions, userKey)
	}
}

// Push queues event for the user's live session. A user with no session
// simply does not receive the event; the return value reports whether the
// event was queued.
func (r *NotificationRegistry) Push(userKey string, event any) bool {
	r.mu.Lock()
	sess := r.sessions[userKey]
	r.mu.Unlock()

	if sess == nil {
		return false
	}

	return sess.queueEvent(event)
}

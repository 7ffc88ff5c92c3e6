package server

import (
	"context"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/edumesh/commchat/internal/database"
	"github.com/edumesh/commchat/internal/stats"
	"github.com/edumesh/commchat/internal/types"
)

// ChatServer is the composition root for the messaging core: it owns the two
// registries, the fan-out worker and all live sessions.
type ChatServer struct {
	log           *log.Logger
	db            database.CommunityRepository
	Rooms         *RoomRegistry
	Notifications *NotificationRegistry
	notifier      *Notifier
	stats         stats.StatsProvider
	sessions      map[*Session]struct{}
	sessionsLock  sync.Mutex
}

func NewChatServer(logger *log.Logger, db database.CommunityRepository, sp stats.StatsProvider) (*ChatServer, error) {
	for _, metric := range []string{
		stats.ActiveChatSessions,
		stats.ActiveNotificationSessions,
		stats.MessagesPersisted,
		stats.NotificationsCreated,
		stats.NotificationsPushed,
		stats.BroadcastsDropped,
	} {
		sp.RegisterMetric(metric)
	}

	notificationRegistry := NewNotificationRegistry(logger)

	return &ChatServer{
		log:           logger,
		db:            db,
		Rooms:         NewRoomRegistry(logger, sp),
		Notifications: notificationRegistry,
		notifier:      NewNotifier(db, notificationRegistry, logger, sp),
		stats:         sp,
		sessions:      make(map[*Session]struct{}),
	}, nil
}

// Run starts the fan-out worker.
func (cs *ChatServer) Run() {
	cs.notifier.Run()
}

// ServeChat admits an authenticated user's connection into the community's
// chat room and starts its pumps. The community must already be resolved;
// an unknown slug never reaches the registry.
func (cs *ChatServer) ServeChat(conn *websocket.Conn, user types.User, community types.Community) {
	sess := newSession(user, conn, cs.log)

	cs.Rooms.Join(ChatRoomKey(community.Slug), sess)
	cs.trackSession(sess)
	sess.setState(StateOpen)
	cs.stats.Incr(stats.ActiveChatSessions)
	cs.log.Printf("user %q joined room %q", user.Username, community.Slug)

	go sess.writeLoop()
	go cs.readChat(sess, community)
}

// ServeNotifications registers an authenticated user's connection as their
// notification channel and starts its pumps.
func (cs *ChatServer) ServeNotifications(conn *websocket.Conn, user types.User) {
	sess := newSession(user, conn, cs.log)
	userKey := UserKey(user.Id)

	cs.Notifications.Register(userKey, sess)
	cs.trackSession(sess)
	sess.setState(StateOpen)
	cs.stats.Incr(stats.ActiveNotificationSessions)
	cs.log.Printf("notification session open for %q", userKey)

	go sess.writeLoop()
	go cs.readNotifications(sess, userKey)
}

func (cs *ChatServer) trackSession(s *Session) {
	cs.sessionsLock.Lock()
	defer cs.sessionsLock.Unlock()
	cs.sessions[s] = struct{}{}
}

func (cs *ChatServer) untrackSession(s *Session) {
	cs.sessionsLock.Lock()
	defer cs.sessionsLock.Unlock()
	delete(cs.sessions, s)
}

// Shutdown closes every live session and stops the fan-out worker once its
// queue is drained.
func (cs *ChatServer) Shutdown(ctx context.Context) error {
	cs.log.Println("closing sessions")
	cs.sessionsLock.Lock()
	for s := range cs.sessions {
		s.closeSession()
	}
	cs.sessionsLock.Unlock()

	stopped := make(chan struct{})
	go func() {
		cs.notifier.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

package server

import (
	"github.com/gorilla/websocket"

	"github.com/edumesh/commchat/internal/database"
	"github.com/edumesh/commchat/internal/stats"
	"github.com/edumesh/commchat/internal/types"
)

// readChat drives a chat session's inbound side. Malformed or invalid frames
// are answered with an error envelope and the connection stays open; only a
// transport error ends the loop.
func (cs *ChatServer) readChat(sess *Session, community types.Community) {
	defer func() {
		sess.closeSession()
		cs.Rooms.Leave(ChatRoomKey(community.Slug), sess)
		cs.untrackSession(sess)
		sess.setState(StateClosed)
		cs.stats.Decr(stats.ActiveChatSessions)
		cs.log.Printf("user %q left room %q", sess.user.Username, community.Slug)
	}()

	sess.configureRead()
	for {
		_, raw, err := sess.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				cs.log.Printf("ws read: %v", err)
			}
			sess.setState(StateClosing)
			break
		}

		event, err := decodeClientFrame(raw)
		if err != nil {
			sess.queueEvent(errInvalidMessageOrUser())
			continue
		}

		switch ev := event.(type) {
		case VideoCallEvent:
			cs.handleVideoCall(sess, community, ev)
		case ChatMessageEvent:
			cs.handleChatMessage(sess, community, ev)
		}
	}
}

// handleVideoCall relays signaling metadata to the room. Nothing is
// persisted and no notifications are generated.
func (cs *ChatServer) handleVideoCall(sess *Session, community types.Community, ev VideoCallEvent) {
	sender, err := cs.db.GetAccountById(ev.SenderId)
	if err != nil {
		sess.queueEvent(errInvalidMessageOrUser())
		return
	}

	cs.Rooms.Broadcast(ChatRoomKey(community.Slug), VideoCallBroadcast{
		Type:    EventTypeVideoCall,
		Message: ev.Payload,
		User:    sender.Username,
		UserID:  sender.Id,
	})
}

func (cs *ChatServer) handleChatMessage(sess *Session, community types.Community, ev ChatMessageEvent) {
	sender, err := cs.db.GetAccountById(ev.SenderId)
	if err != nil {
		sess.queueEvent(errInvalidMessageOrUser())
		return
	}

	// the community may have been deleted since the handshake
	current, err := cs.db.GetCommunityBySlug(community.Slug)
	if err != nil {
		sess.queueEvent(errCommunityUnavailable())
		return
	}

	// persist before broadcasting so history order matches accept order
	if _, err := cs.db.CreateMessage(database.Message{
		CommunityId: current.Id,
		SenderId:    sender.Id,
		Content:     ev.Content,
	}); err != nil {
		cs.log.Printf("save message in %q: %v", community.Slug, err)
		sess.queueEvent(errInternal())
		return
	}
	cs.stats.Incr(stats.MessagesPersisted)

	cs.Rooms.Broadcast(ChatRoomKey(community.Slug), ChatBroadcast{
		Type:    EventTypeChatMessage,
		Content: ev.Content,
		User:    sender.Username,
		UserID:  sender.Id,
	})

	cs.notifier.NotifyCommunityMembers(types.Community{
		Id:   current.Id,
		Slug: current.Slug,
		Name: current.Name,
	}, types.User{Id: sender.Id, Username: sender.Username})
}

// readNotifications drains a notification session's inbound side. The
// channel is push-only, so every inbound frame is discarded; the loop exists
// to process control frames and detect disconnect.
func (cs *ChatServer) readNotifications(sess *Session, userKey string) {
	defer func() {
		sess.closeSession()
		cs.Notifications.Unregister(userKey, sess)
		cs.untrackSession(sess)
		sess.setState(StateClosed)
		cs.stats.Decr(stats.ActiveNotificationSessions)
		cs.log.Printf("notification session closed for %q", userKey)
	}()

	sess.configureRead()
	for {
		if _, _, err := sess.conn.ReadMessage(); err != nil {
			sess.setState(StateClosing)
			return
		}
	}
}

package server

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/edumesh/commchat/internal/stats"
	"github.com/edumesh/commchat/internal/testutil"
	"github.com/edumesh/commchat/internal/types"
)

func newTestSession(t *testing.T, userId int, username string, buf int) *Session {
	t.Helper()
	s := &Session{
		log:  testutil.TestLogger(t),
		user: types.User{Id: userId, Username: username},
		send: make(chan []byte, buf),
		stop: make(chan struct{}),
	}
	s.setState(StateOpen)
	return s
}

func newTestStats() *stats.MockStatsUpdater {
	sp := &stats.MockStatsUpdater{}
	sp.On("Incr", mock.Anything).Maybe()
	sp.On("Decr", mock.Anything).Maybe()
	sp.On("Add", mock.Anything, mock.Anything).Maybe()
	sp.On("RegisterMetric", mock.Anything).Maybe()
	return sp
}

func Test_RoomRegistry_JoinLeave(t *testing.T) {
	r := NewRoomRegistry(testutil.TestLogger(t), newTestStats())

	s1 := newTestSession(t, 1, "alice", 1)
	s2 := newTestSession(t, 2, "bob", 1)

	key := ChatRoomKey("study-group")
	r.Join(key, s1)
	r.Join(key, s2)
	assert.Equal(t, 2, r.Count(key), "expected both sessions in room")

	r.Leave(key, s1)
	assert.Equal(t, 1, r.Count(key), "expected one session after leave")

	r.Leave(key, s2)
	assert.Equal(t, 0, r.Count(key), "expected empty room after both leave")
	assert.NotContains(t, r.rooms, key, "expected empty room entry to be pruned")

	// leaving a room never joined is a no-op
	r.Leave(ChatRoomKey("never-joined"), s1)
}

func Test_RoomRegistry_BroadcastIsolation(t *testing.T) {
	r := NewRoomRegistry(testutil.TestLogger(t), newTestStats())

	s1 := newTestSession(t, 1, "alice", 1)
	s2 := newTestSession(t, 2, "bob", 1)
	other := newTestSession(t, 3, "carol", 1)

	r.Join(ChatRoomKey("study-group"), s1)
	r.Join(ChatRoomKey("study-group"), s2)
	r.Join(ChatRoomKey("book-club"), other)

	delivered := r.Broadcast(ChatRoomKey("study-group"), ChatBroadcast{
		Type:    EventTypeChatMessage,
		Content: "hello",
		User:    "alice",
		UserID:  1,
	})
	assert.Equal(t, 2, delivered, "expected delivery to both room sessions")

	for _, s := range []*Session{s1, s2} {
		select {
		case raw := <-s.send:
			var bc ChatBroadcast
			require.NoError(t, json.Unmarshal(raw, &bc))
			assert.Equal(t, "hello", bc.Content, "expected broadcast content")
		default:
			t.Errorf("expected session for %q to receive broadcast", s.user.Username)
		}
	}

	select {
	case <-other.send:
		t.Error("expected session in another room not to receive broadcast")
	default:
	}
}

func Test_RoomRegistry_BroadcastSkipsFullSession(t *testing.T) {
	sp := newTestStats()
	r := NewRoomRegistry(testutil.TestLogger(t), sp)

	healthy := newTestSession(t, 1, "alice", 1)
	stuck := newTestSession(t, 2, "bob", 1)
	stuck.send <- []byte("backlog") // fill the buffer

	key := ChatRoomKey("study-group")
	r.Join(key, healthy)
	r.Join(key, stuck)

	delivered := r.Broadcast(key, ErrorEvent{Error: "x"})
	assert.Equal(t, 1, delivered, "expected delivery to the healthy session only")

	select {
	case <-healthy.send:
	default:
		t.Error("expected healthy session to receive broadcast")
	}
}

func Test_NotificationRegistry_RegisterReplaces(t *testing.T) {
	r := NewNotificationRegistry(testutil.TestLogger(t))

	old := newTestSession(t, 1, "alice", 1)
	replacement := newTestSession(t, 1, "alice", 1)

	key := UserKey(1)
	r.Register(key, old)
	r.Register(key, replacement)

	select {
	case <-old.stop:
		// replaced session was closed
	default:
		t.Error("expected replaced session to be closed")
	}

	ok := r.Push(key, NotificationPush{Type: "new_message"})
	assert.True(t, ok, "expected push to reach the replacement session")

	select {
	case <-replacement.send:
	default:
		t.Error("expected replacement session to receive push")
	}
	select {
	case <-old.send:
		t.Error("expected replaced session not to receive push")
	default:
	}
}

func Test_NotificationRegistry_UnregisterOnlyIfSame(t *testing.T) {
	r := NewNotificationRegistry(testutil.TestLogger(t))

	old := newTestSession(t, 1, "alice", 1)
	replacement := newTestSession(t, 1, "alice", 1)

	key := UserKey(1)
	r.Register(key, old)
	r.Register(key, replacement)

	// the old session's cleanup races the replacement; mapping must survive
	r.Unregister(key, old)
	assert.True(t, r.Push(key, ErrorEvent{}), "expected replacement mapping to survive old session cleanup")

	r.Unregister(key, replacement)
	assert.False(t, r.Push(key, ErrorEvent{}), "expected push to be a no-op after unregister")
}

func Test_NotificationRegistry_PushOffline(t *testing.T) {
	r := NewNotificationRegistry(testutil.TestLogger(t))
	assert.False(t, r.Push(UserKey(42), ErrorEvent{}), "expected push to an offline user to be a no-op")
}

func Test_registryKeys(t *testing.T) {
	assert.Equal(t, "chat_study-group", ChatRoomKey("study-group"))
	assert.Equal(t, "user_7", UserKey(7))
}

package server

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/edumesh/commchat/internal/testutil"
	"github.com/edumesh/commchat/internal/types"
)

func Test_queueEvent(t *testing.T) {
	t.Run("successful queue", func(t *testing.T) {
		s := newTestSession(t, 1, "alice", 1)

		ok := s.queueEvent(ErrorEvent{Error: "nope"})
		assert.True(t, ok, "expected queueEvent to succeed when buffer has room")

		select {
		case raw := <-s.send:
			assert.JSONEq(t, `{"error":"nope"}`, string(raw))
		default:
			t.Error("expected an event to be queued")
		}
	})

	t.Run("buffer full", func(t *testing.T) {
		s := newTestSession(t, 1, "alice", 1)
		s.send <- []byte("backlog")

		ok := s.queueEvent(ErrorEvent{Error: "nope"})
		assert.False(t, ok, "expected queueEvent to fail when buffer is full")
	})

	t.Run("unserializable event", func(t *testing.T) {
		s := newTestSession(t, 1, "alice", 1)

		ok := s.queueEvent(func() {})
		assert.False(t, ok, "expected queueEvent to fail for unserializable value")
	})
}

func Test_sessionStates(t *testing.T) {
	s := newSession(types.User{Id: 1, Username: "alice"}, nil, testutil.TestLogger(t))
	assert.Equal(t, StateConnecting, s.State(), "expected new session to be connecting")

	s.setState(StateOpen)
	assert.Equal(t, StateOpen, s.State())

	s.closeSession()
	assert.Equal(t, StateClosing, s.State(), "expected open session to be closing after close")

	// closing twice is safe
	s.closeSession()

	select {
	case <-s.stop:
	default:
		t.Error("expected stop channel to be closed")
	}

	s.setState(StateClosed)
	assert.Equal(t, "closed", s.State().String())
}

package server

import (
	"encoding/json"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/edumesh/commchat/internal/types"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 1024
)

type SessionState int32

const (
	StateConnecting SessionState = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session wraps one websocket connection. It owns the outbound write pump;
// inbound reading is driven by whichever handler admitted the session.
type Session struct {
	conn     *websocket.Conn
	log      *log.Logger
	user     types.User
	send     chan []byte
	stop     chan struct{}
	state    atomic.Int32
	stopOnce sync.Once
}

func newSession(user types.User, conn *websocket.Conn, l *log.Logger) *Session {
	s := &Session{
		conn: conn,
		log:  l,
		user: user,
		send: make(chan []byte, 256),
		stop: make(chan struct{}),
	}
	s.state.Store(int32(StateConnecting))

	return s
}

func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

func (s *Session) setState(state SessionState) {
	s.state.Store(int32(state))
}

// writeLoop serializes all outbound traffic on the connection, including
// keepalive pings.
func (s *Session) writeLoop() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-s.send:
			if !ok {
				return
			}

			if !s.writeMessage(websocket.TextMessage, msg) {
				return
			}
		case <-s.stop:
			return
		case <-ticker.C:
			if !s.writeMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

// queueEvent marshals event and queues it for delivery. It never blocks; a
// session whose send buffer is full misses the event.
func (s *Session) queueEvent(event any) bool {
	bytes, err := json.Marshal(event)
	if err != nil {
		s.log.Println("failed to serialize event:", err)
		return false
	}

	return s.queueBytes(bytes)
}

func (s *Session) queueBytes(msg []byte) bool {
	select {
	case s.send <- msg:
	default:
		s.log.Printf("send buffer full for %q, dropping event", s.user.Username)
		return false
	}

	return true
}

func (s *Session) writeMessage(msgType int, msg []byte) bool {
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := s.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			s.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

// configureRead installs the read limits and pong-refreshed deadline on the
// underlying connection.
func (s *Session) configureRead() {
	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
}

// closeSession tears the connection down. Safe to call from any goroutine,
// any number of times.
func (s *Session) closeSession() {
	s.stopOnce.Do(func() {
		if s.State() == StateOpen {
			s.setState(StateClosing)
		}
		close(s.stop)
		if s.conn != nil {
			s.conn.Close()
		}
	})
}

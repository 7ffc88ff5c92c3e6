package server

import (
	"encoding/json"
	"errors"
)

const (
	EventTypeChatMessage = "chat_message"
	EventTypeVideoCall   = "video_call"
)

var errInvalidFrame = errors.New("invalid message or user")

// clientFrame is the raw inbound wire format. The user field is a pointer so
// an explicit null can be told apart from a missing id.
type clientFrame struct {
	Message string `json:"message"`
	User    *int   `json:"user"`
	Type    string `json:"type,omitempty"`
}

// ClientEvent is the decoded form of an inbound frame. Frames are decoded
// once at the transport boundary and dispatched on the concrete type.
type ClientEvent interface {
	clientEvent()
}

type ChatMessageEvent struct {
	Content  string
	SenderId int
}

func (ChatMessageEvent) clientEvent() {}

// VideoCallEvent carries signaling metadata which is relayed verbatim and
// never persisted.
type VideoCallEvent struct {
	Payload  string
	SenderId int
}

func (VideoCallEvent) clientEvent() {}

// decodeClientFrame parses an inbound frame into its event type. A frame
// that is unparseable, has no user id or has an empty message is rejected
// with errInvalidFrame. Any type other than "video_call" selects the chat
// path.
func decodeClientFrame(raw []byte) (ClientEvent, error) {
	var frame clientFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, errInvalidFrame
	}

	if frame.User == nil || frame.Message == "" {
		return nil, errInvalidFrame
	}

	if frame.Type == EventTypeVideoCall {
		return VideoCallEvent{Payload: frame.Message, SenderId: *frame.User}, nil
	}

	return ChatMessageEvent{Content: frame.Message, SenderId: *frame.User}, nil
}

type ChatBroadcast struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	User    string `json:"user"`
	UserID  int    `json:"userID"`
}

type VideoCallBroadcast struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	User    string `json:"user"`
	UserID  int    `json:"userID"`
}

type NotificationPush struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Community string `json:"community"`
	Link      string `json:"link"`
}

type ErrorEvent struct {
	Error string `json:"error"`
}

func errInvalidMessageOrUser() ErrorEvent {
	return ErrorEvent{Error: "Invalid message or user"}
}

func errCommunityUnavailable() ErrorEvent {
	return ErrorEvent{Error: "User not authenticated or community not found"}
}

func errInternal() ErrorEvent {
	return ErrorEvent{Error: "internal server error"}
}

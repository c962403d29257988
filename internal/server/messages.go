package server

import (
	"time"

	"github.com/jmcardle/go-chatserver/internal/types"
)

type BaseMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ClientMessage is the inbound event envelope. Exactly one of the event
// pointers is set.
type ClientMessage struct {
	BaseMessage
	Join         *Join           `json:"join,omitempty"`
	Leave        *Leave          `json:"leave,omitempty"`
	Publish      *Publish        `json:"publish,omitempty"`
	LoadMessages *LoadMessages   `json:"loadMessages,omitempty"`
	Summary      *SummaryRequest `json:"summary,omitempty"`
}

type Join struct {
	RoomId string `json:"roomId"`
}

// Leave applies to the connection's current room.
type Leave struct{}

type Publish struct {
	Message string `json:"message"`
}

// LoadMessages applies to the connection's current room.
type LoadMessages struct{}

type SummaryRequest struct{}

// ServerMessage is the outbound envelope: either a response to an inbound
// event, a message payload push, or a server-initiated notification.
type ServerMessage struct {
	BaseMessage
	Response     *Response      `json:"response,omitempty"`
	Message      *types.Message `json:"message,omitempty"`
	Notification *Notification  `json:"notification,omitempty"`
}

type Response struct {
	Success  bool                 `json:"success"`
	Message  string               `json:"message,omitempty"`
	RoomId   string               `json:"roomId,omitempty"`
	Messages []types.Message      `json:"messages,omitempty"`
	Summary  *types.UnreadSummary `json:"summary,omitempty"`
}

type Notification struct {
	NewMessage *NewMessageNotice    `json:"newMessage,omitempty"`
	Summary    *types.UnreadSummary `json:"summary,omitempty"`
}

// NewMessageNotice tells a connected-but-elsewhere client that a room has
// a new message for it.
type NewMessageNotice struct {
	RoomId string `json:"roomId"`
}

func OkResponse(id int, text string) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			Success: true,
			Message: text,
		},
	}
}

func OkJoinResponse(id int, roomId string) *ServerMessage {
	msg := OkResponse(id, "joined room")
	msg.Response.RoomId = roomId
	return msg
}

func OkMessagesResponse(id int, messages []types.Message) *ServerMessage {
	msg := OkResponse(id, "")
	msg.Response.Messages = messages
	return msg
}

func OkSummaryResponse(id int, summary *types.UnreadSummary) *ServerMessage {
	msg := OkResponse(id, "")
	msg.Response.Summary = summary
	return msg
}

func FailResponse(id int, text string) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			Success: false,
			Message: text,
		},
	}
}

func MessagePush(m *types.Message) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		Message:     m,
	}
}

func NewMessagePush(roomId string) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		Notification: &Notification{
			NewMessage: &NewMessageNotice{RoomId: roomId},
		},
	}
}

func SummaryPush(summary *types.UnreadSummary) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		Notification: &Notification{
			Summary: summary,
		},
	}
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}

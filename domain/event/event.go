package event

import (
	"chat-hub/domain"
	"time"
)

type Name string

const (
	UserConnected    Name = "UserConnected"
	UserDisconnected Name = "UserDisconnected"
	UserJoinedRoom   Name = "UserJoinedRoom"
	UserLeftRoom     Name = "UserLeftRoom"
	MessageReceived  Name = "MessageReceived"
	MessageUpdated   Name = "MessageUpdated"
	MessageDeleted   Name = "MessageDeleted"
	TypingStarted    Name = "TypingStarted"
	TypingStopped    Name = "TypingStopped"
	MentionReceived  Name = "MentionReceived"
	MessageRead      Name = "MessageRead"
	Ack              Name = "Ack"
)

// Event is the envelope pushed to every connection of a group.
// Group is empty for direct deliveries such as acks.
type Event struct {
	Name    Name            `json:"event"`
	Group   domain.GroupKey `json:"group,omitempty"`
	Payload any             `json:"data"`
	At      time.Time       `json:"at"`
}

func New(name Name, group domain.GroupKey, payload any, at time.Time) Event {
	return Event{Name: name, Group: group, Payload: payload, At: at}
}

type Presence struct {
	UserID   string  `json:"userId"`
	UserName string  `json:"userName"`
	RoomID   *string `json:"roomId,omitempty"`
}

type Membership struct {
	RoomID   string `json:"roomId"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

type Typing struct {
	RoomID   string `json:"roomId"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	IsTyping bool   `json:"isTyping"`
}

type Deleted struct {
	MessageID string    `json:"messageId"`
	RoomID    *string   `json:"roomId,omitempty"`
	DeletedAt time.Time `json:"deletedAt"`
}

type Read struct {
	RoomID    string  `json:"roomId"`
	UserID    string  `json:"userId"`
	MessageID *string `json:"messageId,omitempty"`
}

// AckPayload answers a client operation carrying a request id.
// Code is the canonical gRPC code name ("OK", "PermissionDenied", ...).
type AckPayload struct {
	RequestID string `json:"requestId"`
	Op        string `json:"op"`
	OK        bool   `json:"ok"`
	Code      string `json:"code"`
	Error     string `json:"error,omitempty"`
	Data      any    `json:"result,omitempty"`
}

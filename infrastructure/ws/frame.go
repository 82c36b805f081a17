package ws

import (
	"chat-hub/domain"

	"github.com/samber/lo"
)

const (
	OpJoin        = "join"
	OpLeave       = "leave"
	OpSend        = "send"
	OpUpdate      = "update"
	OpDelete      = "delete"
	OpTypingStart = "typing_start"
	OpTypingStop  = "typing_stop"
	OpRead        = "read"
)

// Frame is a client request. Fields irrelevant to the op are ignored.
type Frame struct {
	Op          string              `json:"op"`
	RequestID   string              `json:"requestId,omitempty"`
	RoomID      string              `json:"roomId,omitempty"`
	MessageID   string              `json:"messageId,omitempty"`
	Content     string              `json:"content,omitempty"`
	ProjectID   *string             `json:"projectId,omitempty"`
	TaskID      *string             `json:"taskId,omitempty"`
	ReplyToID   *string             `json:"replyToMessageId,omitempty"`
	Mentions    []string            `json:"mentions,omitempty"`
	Attachments []domain.Attachment `json:"attachments,omitempty"`
	Kind        domain.MessageKind  `json:"kind,omitempty"`
}

func (f Frame) draft() domain.Draft {
	return domain.Draft{
		Content:     f.Content,
		RoomID:      lo.EmptyableToPtr(f.RoomID),
		ProjectID:   f.ProjectID,
		TaskID:      f.TaskID,
		ReplyToID:   f.ReplyToID,
		Kind:        f.Kind,
		Mentions:    f.Mentions,
		Attachments: f.Attachments,
	}
}

// Package domain contains core concepts of the messaging core.
// This file defines Message entities and the draft accepted on creation.
// Messages are soft-deleted, never physically removed.
package domain

import (
	"time"

	"github.com/samber/lo"
)

type MessageKind string

const (
	KindText          MessageKind = "text"
	KindImage         MessageKind = "image"
	KindFile          MessageKind = "file"
	KindSystem        MessageKind = "system"
	KindTaskUpdate    MessageKind = "task-update"
	KindProjectUpdate MessageKind = "project-update"
	KindMention       MessageKind = "mention"
)

var messageKinds = []MessageKind{KindText, KindImage, KindFile, KindSystem, KindTaskUpdate, KindProjectUpdate, KindMention}

func (k MessageKind) Valid() bool {
	return lo.Contains(messageKinds, k)
}

type Attachment struct {
	URL      string `json:"url" validate:"required"`
	Name     string `json:"name,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

// Message is the durable representation of a chat message.
type Message struct {
	ID          string       `json:"id"`
	Content     string       `json:"content"`
	SenderID    string       `json:"senderId"`
	SenderName  string       `json:"senderName"`
	Kind        MessageKind  `json:"kind"`
	RoomID      *string      `json:"roomId,omitempty"`
	ProjectID   *string      `json:"projectId,omitempty"`
	TaskID      *string      `json:"taskId,omitempty"`
	ReplyToID   *string      `json:"replyToMessageId,omitempty"`
	Mentions    []string     `json:"mentions"`
	Attachments []Attachment `json:"attachments"`
	IsEdited    bool         `json:"isEdited"`
	Language    string       `json:"language,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
	DeletedAt   *time.Time   `json:"deletedAt,omitempty"`
}

func (m Message) IsDeleted() bool {
	return m.DeletedAt != nil
}

func (m Message) InRoom(roomID string) bool {
	return m.RoomID != nil && *m.RoomID == roomID
}

// Draft is what a sender submits. Scoping needs a room or a project/task context.
type Draft struct {
	Content     string       `json:"content" validate:"required"`
	RoomID      *string      `json:"roomId,omitempty" validate:"required_without_all=ProjectID TaskID"`
	ProjectID   *string      `json:"projectId,omitempty"`
	TaskID      *string      `json:"taskId,omitempty"`
	ReplyToID   *string      `json:"replyToMessageId,omitempty"`
	Kind        MessageKind  `json:"kind,omitempty"`
	Mentions    []string     `json:"mentions,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty" validate:"dive"`
}

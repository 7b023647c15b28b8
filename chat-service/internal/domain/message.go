package domain

import "time"

// MessageKind classifies a chat message.
type MessageKind string

const (
	KindText       MessageKind = "text"
	KindAttachment MessageKind = "attachment"
	KindSystem     MessageKind = "system"
)

// ChatMessage is a persisted chat message. Content is immutable once stored.
type ChatMessage struct {
	ID                uint        `json:"id"`
	LinkID            uint        `json:"link_id"`
	SenderID          uint        `json:"sender_id"`
	Role              Role        `json:"role"`
	Content           string      `json:"content"`
	Kind              MessageKind `json:"message_type"`
	AttachmentURL     string      `json:"attachment_url,omitempty"`
	AttachmentType    string      `json:"attachment_type,omitempty"`
	RespondingStaffID *uint       `json:"responding_staff_id"`
	CreatedAt         time.Time   `json:"created_at"`
	ReadAt            *time.Time  `json:"read_at"`
}

// IsRead reports whether the message has been read.
func (m *ChatMessage) IsRead() bool {
	return m.ReadAt != nil
}

// NewUserMessage builds an unsaved message authored by id.
func NewUserMessage(linkID uint, id Identity, kind MessageKind, content, attachmentURL, attachmentType string) *ChatMessage {
	msg := &ChatMessage{
		LinkID:         linkID,
		SenderID:       id.UserID,
		Role:           id.Role,
		Content:        content,
		Kind:           kind,
		AttachmentURL:  attachmentURL,
		AttachmentType: attachmentType,
	}
	if id.Role.IsStaff() {
		staff := id.UserID
		msg.RespondingStaffID = &staff
	}
	return msg
}

// NewSystemMessage builds an unsaved server generated message.
func NewSystemMessage(linkID uint, content string) *ChatMessage {
	return &ChatMessage{
		LinkID:  linkID,
		Role:    RoleSystem,
		Content: content,
		Kind:    KindSystem,
	}
}

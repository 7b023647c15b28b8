package domain

import "time"

// MessageModel is the GORM model for the chat_messages table.
type MessageModel struct {
	ID                uint      `gorm:"primaryKey;autoIncrement"`
	LinkID            uint      `gorm:"index:idx_chat_messages_link_id_id,priority:1;not null"`
	SenderID          uint      `gorm:"index;not null"`
	SenderRole        string    `gorm:"type:varchar(32);not null"`
	Content           string    `gorm:"type:text;not null"`
	MessageType       string    `gorm:"type:varchar(16);not null;default:'text'"`
	AttachmentURL     string    `gorm:"type:varchar(512)"`
	AttachmentType    string    `gorm:"type:varchar(64)"`
	RespondingStaffID *uint     `gorm:"index"`
	IsRead            bool      `gorm:"not null;default:false"`
	CreatedAt         time.Time `gorm:"autoCreateTime;index"`
	ReadAt            *time.Time
}

func (MessageModel) TableName() string {
	return "chat_messages"
}

// ToDomain converts the row to a ChatMessage.
func (m *MessageModel) ToDomain() ChatMessage {
	return ChatMessage{
		ID:                m.ID,
		LinkID:            m.LinkID,
		SenderID:          m.SenderID,
		Role:              Role(m.SenderRole),
		Content:           m.Content,
		Kind:              MessageKind(m.MessageType),
		AttachmentURL:     m.AttachmentURL,
		AttachmentType:    m.AttachmentType,
		RespondingStaffID: m.RespondingStaffID,
		CreatedAt:         m.CreatedAt,
		ReadAt:            m.ReadAt,
	}
}

// MessageToModel converts a ChatMessage to its row.
func MessageToModel(msg *ChatMessage) *MessageModel {
	return &MessageModel{
		ID:                msg.ID,
		LinkID:            msg.LinkID,
		SenderID:          msg.SenderID,
		SenderRole:        string(msg.Role),
		Content:           msg.Content,
		MessageType:       string(msg.Kind),
		AttachmentURL:     msg.AttachmentURL,
		AttachmentType:    msg.AttachmentType,
		RespondingStaffID: msg.RespondingStaffID,
		IsRead:            msg.ReadAt != nil,
		CreatedAt:         msg.CreatedAt,
		ReadAt:            msg.ReadAt,
	}
}

// LinkModel maps the account service's links table.
type LinkModel struct {
	ID                 uint   `gorm:"primaryKey"`
	SupplierID         uint   `gorm:"index;not null"`
	ConsumerID         uint   `gorm:"index;not null"`
	Status             string `gorm:"type:varchar(16);index;not null"`
	AssignedSalesRepID *uint  `gorm:"index"`
	AssignedAt         *time.Time
	CreatedAt          time.Time
}

func (LinkModel) TableName() string {
	return "links"
}

func (m *LinkModel) ToDomain() *Link {
	return &Link{
		ID:                 m.ID,
		SupplierID:         m.SupplierID,
		ConsumerID:         m.ConsumerID,
		Status:             LinkStatus(m.Status),
		AssignedSalesRepID: m.AssignedSalesRepID,
		AssignedAt:         m.AssignedAt,
		CreatedAt:          m.CreatedAt,
	}
}

// UserModel maps the account service's users table.
type UserModel struct {
	ID         uint   `gorm:"primaryKey"`
	Role       string `gorm:"type:varchar(32);not null"`
	IsActive   bool   `gorm:"not null;default:true"`
	SupplierID *uint  `gorm:"index"`
	ConsumerID *uint  `gorm:"index"`
	FullName   string `gorm:"type:varchar(255)"`
}

func (UserModel) TableName() string {
	return "users"
}

func (m *UserModel) ToDomain() *User {
	return &User{
		ID:         m.ID,
		Role:       Role(m.Role),
		IsActive:   m.IsActive,
		SupplierID: m.SupplierID,
		ConsumerID: m.ConsumerID,
		FullName:   m.FullName,
	}
}

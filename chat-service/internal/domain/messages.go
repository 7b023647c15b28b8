package domain

import "time"

// Frame types sent by clients.
const (
	MsgTypeMessage = "message"
	MsgTypeTyping  = "typing"
	MsgTypePing    = "ping"
)

// Frame types sent by the server.
const (
	MsgTypeConnection  = "connection"
	MsgTypeNewMessage  = "new_message"
	MsgTypeMessageSent = "message_sent"
	MsgTypePong        = "pong"
	MsgTypeError       = "error"
)

// Error codes carried by error frames.
const (
	ErrCodeBadRequest  = "BAD_REQUEST"
	ErrCodeForbidden   = "FORBIDDEN"
	ErrCodeSendFailed  = "SEND_FAILED"
	ErrCodeRateLimited = "RATE_LIMITED"
)

// BaseMessage is decoded first to dispatch on Type.
type BaseMessage struct {
	Type string `json:"type"`
}

// Client -> Server

type MessageFrame struct {
	Type           string `json:"type"`
	Content        string `json:"content"`
	MessageType    string `json:"message_type"`
	AttachmentURL  string `json:"attachment_url"`
	AttachmentType string `json:"attachment_type"`
}

type TypingFrame struct {
	Type     string `json:"type"`
	IsTyping bool   `json:"is_typing"`
	LinkID   *uint  `json:"link_id"`
}

// Server -> Client

type ConnectionMessage struct {
	Type   string `json:"type"`
	Status string `json:"status"`
	LinkID uint   `json:"link_id"`
	UserID uint   `json:"user_id"`
}

func NewConnectionMessage(linkID, userID uint) *ConnectionMessage {
	return &ConnectionMessage{Type: MsgTypeConnection, Status: "connected", LinkID: linkID, UserID: userID}
}

type NewMessageOut struct {
	Type    string       `json:"type"`
	Message *ChatMessage `json:"message"`
}

func NewMessageBroadcast(msg *ChatMessage) *NewMessageOut {
	return &NewMessageOut{Type: MsgTypeNewMessage, Message: msg}
}

// MessageSentOut acknowledges a persisted message to its sender.
type MessageSentOut struct {
	Type      string       `json:"type"`
	MessageID uint         `json:"message_id"`
	Message   *ChatMessage `json:"message"`
}

func NewMessageSent(msg *ChatMessage) *MessageSentOut {
	return &MessageSentOut{Type: MsgTypeMessageSent, MessageID: msg.ID, Message: msg}
}

type TypingOut struct {
	Type     string `json:"type"`
	UserID   uint   `json:"user_id"`
	LinkID   uint   `json:"link_id"`
	IsTyping bool   `json:"is_typing"`
}

func NewTypingOut(linkID, userID uint, isTyping bool) *TypingOut {
	return &TypingOut{Type: MsgTypeTyping, UserID: userID, LinkID: linkID, IsTyping: isTyping}
}

type PongMessage struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

func NewPongMessage(now time.Time) *PongMessage {
	return &PongMessage{Type: MsgTypePong, Timestamp: now.UnixMilli()}
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewErrorMessage(code, message string) *ErrorMessage {
	return &ErrorMessage{Type: MsgTypeError, Code: code, Message: message}
}

// HTTP

type HistoryRequest struct {
	Skip  int `form:"skip"`
	Limit int `form:"limit"`
}

type ListLinksRequest struct {
	Skip  int `form:"skip"`
	Limit int `form:"limit"`
}

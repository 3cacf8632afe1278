package models

import (
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
)

// ClientMessage represents an inbound websocket frame from the client
type ClientMessage struct {
	Type           string                 `json:"type"` // "chat_message", "new_conversation", "resume_session"
	ConversationID string                 `json:"conversation_id,omitempty"`
	SessionID      string                 `json:"session_id,omitempty"`
	Content        string                 `json:"content,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// ServerMessage represents an outbound websocket frame to the client
type ServerMessage struct {
	Type           string     `json:"type"` // "message_saved", "session_ready", "context", "error"
	ConversationID string     `json:"conversation_id,omitempty"`
	SessionID      string     `json:"session_id,omitempty"`
	MessageID      string     `json:"message_id,omitempty"`
	Content        string     `json:"content,omitempty"`
	Contents       []*Content `json:"contents,omitempty"` // resumed conversation context
	Deduplicated   bool       `json:"deduplicated,omitempty"`
	ErrorCode      string     `json:"code,omitempty"`
	ErrorMessage   string     `json:"message,omitempty"`
}

// UserConnection represents a single WebSocket connection. Connections are
// tracked by the ConnectionManager under a generated connection id.
type UserConnection struct {
	ConnID         string
	UserID         string
	ClientID       string
	Conn           *websocket.Conn
	ConversationID string
	SessionID      string
	CreatedAt      time.Time
	WriteChan      chan ServerMessage
	StopChan       chan bool
	Mutex          sync.Mutex
	closed         bool
}

// SafeSend sends a message to WriteChan safely, returning false if the channel is closed
func (uc *UserConnection) SafeSend(msg ServerMessage) bool {
	uc.Mutex.Lock()
	if uc.closed {
		uc.Mutex.Unlock()
		return false
	}
	uc.Mutex.Unlock()

	// Recover from send on a channel closed by the connection manager
	defer func() {
		if r := recover(); r != nil {
			uc.Mutex.Lock()
			uc.closed = true
			uc.Mutex.Unlock()
		}
	}()

	uc.WriteChan <- msg
	return true
}

// MarkClosed marks the connection as closed
func (uc *UserConnection) MarkClosed() {
	uc.Mutex.Lock()
	uc.closed = true
	uc.Mutex.Unlock()
}

// IsClosed returns true if the connection has been marked as closed
func (uc *UserConnection) IsClosed() bool {
	uc.Mutex.Lock()
	defer uc.Mutex.Unlock()
	return uc.closed
}

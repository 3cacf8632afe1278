package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message senders
const (
	SenderUser   = "user"
	SenderAgent  = "agent"
	SenderSystem = "system"
)

// Message is one persisted chat turn belonging to a conversation.
// Messages are immutable after insert.
type Message struct {
	ID                primitive.ObjectID     `bson:"_id,omitempty" json:"id"`
	Conversation      primitive.ObjectID     `bson:"conversation" json:"conversation_id"`
	Sender            string                 `bson:"sender" json:"sender"`
	Content           string                 `bson:"content" json:"content"`
	StructuredContent map[string]interface{} `bson:"structuredContent,omitempty" json:"structured_content,omitempty"`
	IsImportant       bool                   `bson:"isImportant" json:"is_important,omitempty"`
	ReadByAdmin       bool                   `bson:"readByAdmin" json:"read_by_admin,omitempty"`
	HasAttachment     bool                   `bson:"hasAttachment" json:"has_attachment,omitempty"`
	Attachments       []MessageAttachment    `bson:"attachments" json:"attachments,omitempty"`
	Metadata          map[string]interface{} `bson:"metadata" json:"metadata,omitempty"`
	CreatedAt         time.Time              `bson:"createdAt" json:"created_at"`
	UpdatedAt         time.Time              `bson:"updatedAt" json:"updated_at"`
}

// MessageAttachment references an uploaded file attached to a message
type MessageAttachment struct {
	Type     string `bson:"type" json:"type"` // "image", "document", "audio"
	FileID   string `bson:"fileId" json:"file_id"`
	URL      string `bson:"url" json:"url"`
	MimeType string `bson:"mimeType" json:"mime_type"`
	Size     int64  `bson:"size" json:"size"`
	Filename string `bson:"filename" json:"filename"`
}

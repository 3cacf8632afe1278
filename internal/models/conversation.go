package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Conversation statuses
const (
	ConversationStatusActive    = "active"
	ConversationStatusCompleted = "completed"
	ConversationStatusArchived  = "archived"
)

// ValidConversationStatus reports whether s is a known conversation status
func ValidConversationStatus(s string) bool {
	switch s {
	case ConversationStatusActive, ConversationStatusCompleted, ConversationStatusArchived:
		return true
	}
	return false
}

// Conversation is a durable chat thread owned by a client. A conversation
// outlives any particular session that resumes it and is never hard-deleted
// (status only).
type Conversation struct {
	ID                   primitive.ObjectID     `bson:"_id,omitempty" json:"id"`
	Client               primitive.ObjectID     `bson:"client" json:"client_id"`
	Organization         primitive.ObjectID     `bson:"organization" json:"organization_id"`
	Title                string                 `bson:"title" json:"title"`
	Status               string                 `bson:"status" json:"status"`
	LastMessageAt        time.Time              `bson:"lastMessageAt" json:"last_message_at"`
	Metadata             map[string]interface{} `bson:"metadata" json:"metadata,omitempty"`
	Tags                 []string               `bson:"tags" json:"tags,omitempty"`
	MemoryContext        map[string]interface{} `bson:"memoryContext" json:"memory_context,omitempty"`
	ExtractedInformation map[string]interface{} `bson:"extractedInformation" json:"extracted_information,omitempty"`
	CreatedAt            time.Time              `bson:"createdAt" json:"created_at"`
	UpdatedAt            time.Time              `bson:"updatedAt" json:"updated_at"`
}

// ConversationSummary is a lightweight view of a conversation's activity
type ConversationSummary struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Status        string    `json:"status"`
	MessageCount  int64     `json:"message_count"`
	CreatedAt     time.Time `json:"created_at"`
	LastMessageAt time.Time `json:"last_message_at"`
	LatestMessage *Message  `json:"latest_message,omitempty"`
}

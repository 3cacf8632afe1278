package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Well-known session state keys. Underscore-prefixed keys are internal
// bookkeeping written by the store; everything else in the state map is
// caller-owned.
const (
	StateKeyClientID       = "_client_id"
	StateKeyConversationID = "_conversation_id"
	StateKeyOrganizationID = "_organization_id"
	StateKeyCreatedAt      = "_created_at"
)

// Session is the runtime context for one agent/user interaction thread.
// It is identified by the (app_name, user_id, session_id) triple and owns
// an append-only event log plus an arbitrary key/value state map.
type Session struct {
	ID             primitive.ObjectID     `bson:"_id,omitempty" json:"-"`
	SessionID      string                 `bson:"session_id" json:"session_id"`
	AppName        string                 `bson:"app_name" json:"app_name"`
	UserID         string                 `bson:"user_id" json:"user_id"`
	ClientID       string                 `bson:"client_id,omitempty" json:"client_id,omitempty"`
	ConversationID string                 `bson:"conversation_id,omitempty" json:"conversation_id,omitempty"`
	OrganizationID string                 `bson:"organization_id,omitempty" json:"organization_id,omitempty"`
	State          map[string]interface{} `bson:"state" json:"state"`
	Events         []*Event               `bson:"-" json:"events"` // reconstructed via the event codec, never decoded directly
	CreatedAt      time.Time              `bson:"created_at" json:"created_at"`
	LastActivity   time.Time              `bson:"last_activity" json:"last_activity"`
	LastUpdateTime float64                `bson:"last_update_time" json:"last_update_time"`
	IsActive       bool                   `bson:"is_active" json:"is_active"`
	Metadata       map[string]interface{} `bson:"metadata,omitempty" json:"metadata,omitempty"`
}

// SessionListItem is a summary for listing sessions without their event logs
type SessionListItem struct {
	SessionID      string    `json:"session_id"`
	ConversationID string    `json:"conversation_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	LastActivity   time.Time `json:"last_activity"`
	EventCount     int       `json:"event_count"`
}

package services

import (
	"context"
	"log"

	"taskpilot/internal/models"
)

// ContextBuilder bridges the durable chat transcript back into the ordered
// content list an agent runtime consumes when a session resumes. Sub-fetch
// failures degrade their own field; the overall build always succeeds.
type ContextBuilder struct {
	messages *MessageService
}

// NewContextBuilder creates a new context builder
func NewContextBuilder(messages *MessageService) *ContextBuilder {
	return &ContextBuilder{messages: messages}
}

// SessionContext bundles everything an agent needs to pick up a prior thread
type SessionContext struct {
	History             []*models.Content           `json:"history"`
	Summary             *models.ConversationSummary `json:"summary,omitempty"`
	RecentConversations []models.Conversation       `json:"recent_conversations,omitempty"`
}

// senderToRole maps transcript senders onto agent-runtime roles
func senderToRole(sender string) (string, bool) {
	switch sender {
	case models.SenderUser:
		return "user", true
	case models.SenderAgent, models.SenderSystem:
		return "model", true
	}
	return "", false
}

// messageToContent converts one persisted message into a content object.
// Returns false for messages that cannot be represented (unknown sender,
// empty text); the caller drops them individually.
func messageToContent(msg models.Message) (*models.Content, bool) {
	role, ok := senderToRole(msg.Sender)
	if !ok || msg.Content == "" {
		return nil, false
	}
	return &models.Content{
		Role:  role,
		Parts: []models.Part{{Text: msg.Content}},
	}, true
}

// BuildConversationContext loads a conversation's history (oldest first) and
// converts it into ordered content objects. A message that fails conversion
// is dropped; it never aborts the whole build.
func (b *ContextBuilder) BuildConversationContext(ctx context.Context, conversationID string, maxMessages int64) ([]*models.Content, error) {
	history, err := b.messages.LoadConversationHistory(ctx, conversationID, maxMessages, false)
	if err != nil {
		return nil, err
	}

	contents := make([]*models.Content, 0, len(history))
	dropped := 0
	for _, msg := range history {
		content, ok := messageToContent(msg)
		if !ok {
			dropped++
			continue
		}
		contents = append(contents, content)
	}
	if dropped > 0 {
		log.Printf("⚠️ [CONTEXT] Dropped %d of %d messages while building context for conversation %s",
			dropped, len(history), conversationID)
	}

	return contents, nil
}

// BuildSessionContext aggregates conversation history, the conversation
// summary and the client's recent sibling conversations into one bundle.
// Each sub-fetch degrades independently to an empty value on failure.
func (b *ContextBuilder) BuildSessionContext(ctx context.Context, clientID, conversationID string, maxMessages int64) (*SessionContext, error) {
	bundle := &SessionContext{History: []*models.Content{}}

	if conversationID != "" {
		history, err := b.BuildConversationContext(ctx, conversationID, maxMessages)
		if err != nil {
			log.Printf("⚠️ [CONTEXT] History fetch failed for conversation %s: %v", conversationID, err)
		} else {
			bundle.History = history
		}

		summary, err := b.messages.GetConversationSummary(ctx, conversationID)
		if err != nil {
			log.Printf("⚠️ [CONTEXT] Summary fetch failed for conversation %s: %v", conversationID, err)
		} else {
			bundle.Summary = summary
		}
	}

	recent, err := b.messages.GetClientConversations(ctx, clientID, 5)
	if err != nil {
		log.Printf("⚠️ [CONTEXT] Recent conversations fetch failed for client %s: %v", clientID, err)
	} else {
		bundle.RecentConversations = recent
	}

	return bundle, nil
}

// CreateConversationIfNeeded delegates to the message service's lazy
// conversation creation
func (b *ContextBuilder) CreateConversationIfNeeded(ctx context.Context, clientID, conversationID, title string) (*models.Conversation, error) {
	return b.messages.CreateOrGetConversation(ctx, clientID, conversationID, title)
}

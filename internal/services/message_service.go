package services

import (
	"context"
	"log"
	"strings"
	"time"

	"taskpilot/internal/database"
	"taskpilot/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MessageService maintains the durable chat transcript: conversations and
// their messages. Message inserts are idempotent under at-least-once
// delivery — an identical (conversation, sender, content) arriving within
// the dedup window returns the existing record.
type MessageService struct {
	conversations *mongo.Collection
	messages      *mongo.Collection
	directory     *DirectoryService
	dedupWindow   time.Duration
}

// NewMessageService creates a new message service
func NewMessageService(db *database.MongoDB, directory *DirectoryService, dedupWindow time.Duration) *MessageService {
	if dedupWindow <= 0 {
		dedupWindow = 5 * time.Second
	}
	return &MessageService{
		conversations: db.Collection(database.CollectionConversations),
		messages:      db.Collection(database.CollectionMessages),
		directory:     directory,
		dedupWindow:   dedupWindow,
	}
}

// SaveMessageOptions carries optional attributes for a saved message
type SaveMessageOptions struct {
	StructuredContent map[string]interface{}
	Metadata          map[string]interface{}
	Attachments       []models.MessageAttachment
}

// CreateOrGetConversation returns the conversation when an id is supplied
// and it belongs to the client; otherwise it creates a new conversation
// under the client's organization. Conversation creation cannot proceed
// without a resolvable client that has an owning organization.
func (s *MessageService) CreateOrGetConversation(ctx context.Context, clientID, conversationID, title string) (*models.Conversation, error) {
	client, org, err := s.directory.ResolveClientOrganization(ctx, clientID)
	if err != nil {
		if IsNotFound(err) {
			return nil, NewValidationError("client could not be resolved: %s", clientID)
		}
		return nil, err
	}

	if conversationID != "" {
		oid, err := primitive.ObjectIDFromHex(conversationID)
		if err != nil {
			return nil, NewValidationError("invalid conversation ID: %s", conversationID)
		}

		var conv models.Conversation
		err = s.conversations.FindOne(ctx, bson.M{"_id": oid, "client": client.ID}).Decode(&conv)
		if err == nil {
			return &conv, nil
		}
		if err != mongo.ErrNoDocuments {
			return nil, NewPersistenceError("get conversation", err)
		}
		// Unknown id for this client: fall through and create a fresh thread
		log.Printf("⚠️ [CONVERSATION] Conversation %s not found for client %s, creating a new one", conversationID, clientID)
	}

	if title == "" {
		title = "New conversation"
	}

	now := time.Now().UTC()
	conv := models.Conversation{
		Client:               client.ID,
		Organization:         org.ID,
		Title:                title,
		Status:               models.ConversationStatusActive,
		LastMessageAt:        now,
		Metadata:             map[string]interface{}{},
		Tags:                 []string{},
		MemoryContext:        map[string]interface{}{},
		ExtractedInformation: map[string]interface{}{},
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	result, err := s.conversations.InsertOne(ctx, conv)
	if err != nil {
		return nil, NewPersistenceError("create conversation", err)
	}
	conv.ID = result.InsertedID.(primitive.ObjectID)

	log.Printf("✅ [CONVERSATION] Created conversation %s for client %s", conv.ID.Hex(), clientID)
	return &conv, nil
}

// SaveUserMessage persists a user chat turn. The boolean reports whether the
// returned message is an absorbed duplicate rather than a fresh insert.
func (s *MessageService) SaveUserMessage(ctx context.Context, conversationID, content string, opts *SaveMessageOptions) (*models.Message, bool, error) {
	return s.saveMessage(ctx, conversationID, models.SenderUser, content, opts)
}

// SaveAgentMessage persists an agent chat turn
func (s *MessageService) SaveAgentMessage(ctx context.Context, conversationID, content string, opts *SaveMessageOptions) (*models.Message, bool, error) {
	return s.saveMessage(ctx, conversationID, models.SenderAgent, content, opts)
}

// SaveSystemMessage persists a system notice into the transcript
func (s *MessageService) SaveSystemMessage(ctx context.Context, conversationID, content string, opts *SaveMessageOptions) (*models.Message, bool, error) {
	return s.saveMessage(ctx, conversationID, models.SenderSystem, content, opts)
}

// saveMessage inserts one message, absorbing duplicate deliveries inside the
// dedup window. The boolean is true when the returned message already existed.
func (s *MessageService) saveMessage(ctx context.Context, conversationID, sender, content string, opts *SaveMessageOptions) (*models.Message, bool, error) {
	if strings.TrimSpace(content) == "" {
		return nil, false, NewValidationError("message content cannot be empty")
	}

	convOID, err := primitive.ObjectIDFromHex(conversationID)
	if err != nil {
		return nil, false, NewValidationError("invalid conversation ID: %s", conversationID)
	}

	now := time.Now().UTC()

	// Duplicate delivery guard: identical (conversation, sender, content)
	// inside the window returns the row that is already there.
	var existing models.Message
	err = s.messages.FindOne(ctx,
		bson.M{
			"conversation": convOID,
			"sender":       sender,
			"content":      content,
			"createdAt":    bson.M{"$gte": now.Add(-s.dedupWindow)},
		},
		options.FindOne().SetSort(bson.M{"createdAt": -1}),
	).Decode(&existing)
	if err == nil {
		log.Printf("🔁 [MESSAGE] Duplicate %s message in conversation %s within %v, returning existing %s",
			sender, conversationID, s.dedupWindow, existing.ID.Hex())
		GetMetrics().RecordMessageDeduplicated()
		return &existing, true, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, false, NewPersistenceError("check for duplicate message", err)
	}

	msg := models.Message{
		Conversation: convOID,
		Sender:       sender,
		Content:      content,
		CreatedAt:    now,
		UpdatedAt:    now,
		Metadata:     map[string]interface{}{},
	}
	if opts != nil {
		msg.StructuredContent = opts.StructuredContent
		if opts.Metadata != nil {
			msg.Metadata = opts.Metadata
		}
		msg.Attachments = opts.Attachments
		msg.HasAttachment = len(opts.Attachments) > 0
	}

	result, err := s.messages.InsertOne(ctx, msg)
	if err != nil {
		return nil, false, NewPersistenceError("save message", err)
	}
	msg.ID = result.InsertedID.(primitive.ObjectID)

	// Bump the parent's last-message time. The message itself is already
	// durable, so a failed bump is logged rather than surfaced.
	_, err = s.conversations.UpdateOne(ctx,
		bson.M{"_id": convOID},
		bson.M{"$set": bson.M{"lastMessageAt": now, "updatedAt": now}},
	)
	if err != nil {
		log.Printf("⚠️ [MESSAGE] Failed to bump lastMessageAt for conversation %s: %v", conversationID, err)
	}

	GetMetrics().RecordMessageSaved(sender)
	return &msg, false, nil
}

// LoadConversationHistory returns up to limit messages in ascending
// chronological order, optionally excluding non-user/agent senders
func (s *MessageService) LoadConversationHistory(ctx context.Context, conversationID string, limit int64, includeSystem bool) ([]models.Message, error) {
	convOID, err := primitive.ObjectIDFromHex(conversationID)
	if err != nil {
		return nil, NewValidationError("invalid conversation ID: %s", conversationID)
	}

	filter := bson.M{"conversation": convOID}
	if !includeSystem {
		filter["sender"] = bson.M{"$in": []string{models.SenderUser, models.SenderAgent}}
	}

	opts := options.Find().SetSort(bson.M{"createdAt": 1})
	if limit > 0 {
		opts = opts.SetLimit(limit)
	}

	cursor, err := s.messages.Find(ctx, filter, opts)
	if err != nil {
		return nil, NewPersistenceError("load conversation history", err)
	}
	defer cursor.Close(ctx)

	var history []models.Message
	for cursor.Next(ctx) {
		var msg models.Message
		if err := cursor.Decode(&msg); err != nil {
			log.Printf("⚠️ [MESSAGE] Failed to decode message during history load: %v", err)
			continue
		}
		history = append(history, msg)
	}

	return history, nil
}

// GetConversationSummary assembles a lightweight view of one conversation's
// activity
func (s *MessageService) GetConversationSummary(ctx context.Context, conversationID string) (*models.ConversationSummary, error) {
	convOID, err := primitive.ObjectIDFromHex(conversationID)
	if err != nil {
		return nil, NewValidationError("invalid conversation ID: %s", conversationID)
	}

	var conv models.Conversation
	err = s.conversations.FindOne(ctx, bson.M{"_id": convOID}).Decode(&conv)
	if err == mongo.ErrNoDocuments {
		return nil, NewNotFoundError("conversation", conversationID)
	}
	if err != nil {
		return nil, NewPersistenceError("get conversation", err)
	}

	count, err := s.messages.CountDocuments(ctx, bson.M{"conversation": convOID})
	if err != nil {
		return nil, NewPersistenceError("count messages", err)
	}

	summary := &models.ConversationSummary{
		ID:            conversationID,
		Title:         conv.Title,
		Status:        conv.Status,
		MessageCount:  count,
		CreatedAt:     conv.CreatedAt,
		LastMessageAt: conv.LastMessageAt,
	}

	var latest models.Message
	err = s.messages.FindOne(ctx,
		bson.M{"conversation": convOID},
		options.FindOne().SetSort(bson.M{"createdAt": -1}),
	).Decode(&latest)
	if err == nil {
		summary.LatestMessage = &latest
	} else if err != mongo.ErrNoDocuments {
		return nil, NewPersistenceError("get latest message", err)
	}

	return summary, nil
}

// UpdateConversationStatus moves a conversation between active, completed
// and archived
func (s *MessageService) UpdateConversationStatus(ctx context.Context, conversationID, status string) error {
	if !models.ValidConversationStatus(status) {
		return NewValidationError("invalid conversation status: %s", status)
	}

	convOID, err := primitive.ObjectIDFromHex(conversationID)
	if err != nil {
		return NewValidationError("invalid conversation ID: %s", conversationID)
	}

	result, err := s.conversations.UpdateOne(ctx,
		bson.M{"_id": convOID},
		bson.M{"$set": bson.M{"status": status, "updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return NewPersistenceError("update conversation status", err)
	}
	if result.MatchedCount == 0 {
		return NewNotFoundError("conversation", conversationID)
	}

	return nil
}

// GetClientConversations returns the client's conversations, most recently
// active first
func (s *MessageService) GetClientConversations(ctx context.Context, clientID string, limit int64) ([]models.Conversation, error) {
	clientOID, err := primitive.ObjectIDFromHex(clientID)
	if err != nil {
		return nil, NewValidationError("invalid client ID: %s", clientID)
	}

	opts := options.Find().SetSort(bson.M{"lastMessageAt": -1})
	if limit > 0 {
		opts = opts.SetLimit(limit)
	}

	cursor, err := s.conversations.Find(ctx, bson.M{"client": clientOID}, opts)
	if err != nil {
		return nil, NewPersistenceError("list client conversations", err)
	}
	defer cursor.Close(ctx)

	var conversations []models.Conversation
	for cursor.Next(ctx) {
		var conv models.Conversation
		if err := cursor.Decode(&conv); err != nil {
			log.Printf("⚠️ [CONVERSATION] Failed to decode conversation during list: %v", err)
			continue
		}
		conversations = append(conversations, conv)
	}

	return conversations, nil
}

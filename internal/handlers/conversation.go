package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"taskpilot/internal/services"
)

// ConversationHandler handles conversation and transcript HTTP requests
type ConversationHandler struct {
	messages       *services.MessageService
	contextBuilder *services.ContextBuilder
}

// NewConversationHandler creates a new conversation handler
func NewConversationHandler(messages *services.MessageService, contextBuilder *services.ContextBuilder) *ConversationHandler {
	return &ConversationHandler{
		messages:       messages,
		contextBuilder: contextBuilder,
	}
}

type createConversationBody struct {
	ClientID       string `json:"client_id"`
	ConversationID string `json:"conversation_id"`
	Title          string `json:"title"`
}

// Create returns an existing conversation or creates a new one for the client
// POST /api/conversations
func (h *ConversationHandler) Create(c *fiber.Ctx) error {
	if _, ok := requireUserID(c); !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	var body createConversationBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	clientID := body.ClientID
	if clientID == "" {
		clientID, _ = c.Locals("client_id").(string)
	}
	if clientID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Client ID is required",
		})
	}

	conversation, err := h.messages.CreateOrGetConversation(c.Context(), clientID, body.ConversationID, body.Title)
	if err != nil {
		log.Printf("❌ [CONVERSATION] Create failed for client %s: %v", clientID, err)
		return c.Status(statusForError(err)).JSON(fiber.Map{
			"error": "Failed to create conversation",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(conversation)
}

// GetHistory returns the conversation transcript in chronological order
// GET /api/conversations/:id/history
func (h *ConversationHandler) GetHistory(c *fiber.Ctx) error {
	conversationID := c.Params("id")
	if conversationID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Conversation ID is required",
		})
	}

	limit := int64(c.QueryInt("limit", 50))
	includeSystem := c.QueryBool("include_system", false)

	messages, err := h.messages.LoadConversationHistory(c.Context(), conversationID, limit, includeSystem)
	if err != nil {
		log.Printf("❌ [CONVERSATION] History load failed for %s: %v", conversationID, err)
		return c.Status(statusForError(err)).JSON(fiber.Map{
			"error": "Failed to load conversation history",
		})
	}

	return c.JSON(fiber.Map{
		"messages": messages,
		"count":    len(messages),
	})
}

// GetSummary returns conversation metadata, message count and latest message
// GET /api/conversations/:id/summary
func (h *ConversationHandler) GetSummary(c *fiber.Ctx) error {
	conversationID := c.Params("id")
	if conversationID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Conversation ID is required",
		})
	}

	summary, err := h.messages.GetConversationSummary(c.Context(), conversationID)
	if err != nil {
		if services.IsNotFound(err) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Conversation not found",
			})
		}
		log.Printf("❌ [CONVERSATION] Summary failed for %s: %v", conversationID, err)
		return c.Status(statusForError(err)).JSON(fiber.Map{
			"error": "Failed to get conversation summary",
		})
	}

	return c.JSON(summary)
}

// GetContext returns the model-ready context for a conversation
// GET /api/conversations/:id/context
func (h *ConversationHandler) GetContext(c *fiber.Ctx) error {
	conversationID := c.Params("id")
	if conversationID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Conversation ID is required",
		})
	}

	maxMessages := int64(c.QueryInt("limit", 50))

	// With a known client the response also carries the conversation summary
	// and the client's recent threads
	clientID := c.Query("client_id")
	if clientID == "" {
		clientID, _ = c.Locals("client_id").(string)
	}
	if clientID != "" {
		sessionCtx, err := h.contextBuilder.BuildSessionContext(c.Context(), clientID, conversationID, maxMessages)
		if err != nil {
			log.Printf("❌ [CONVERSATION] Context build failed for %s: %v", conversationID, err)
			return c.Status(statusForError(err)).JSON(fiber.Map{
				"error": "Failed to build conversation context",
			})
		}
		return c.JSON(sessionCtx)
	}

	history, err := h.contextBuilder.BuildConversationContext(c.Context(), conversationID, maxMessages)
	if err != nil {
		log.Printf("❌ [CONVERSATION] Context build failed for %s: %v", conversationID, err)
		return c.Status(statusForError(err)).JSON(fiber.Map{
			"error": "Failed to build conversation context",
		})
	}

	return c.JSON(fiber.Map{
		"history": history,
		"count":   len(history),
	})
}

type updateStatusBody struct {
	Status string `json:"status"`
}

// UpdateStatus transitions a conversation between active/completed/archived
// PUT /api/conversations/:id/status
func (h *ConversationHandler) UpdateStatus(c *fiber.Ctx) error {
	conversationID := c.Params("id")
	if conversationID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Conversation ID is required",
		})
	}

	var body updateStatusBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := h.messages.UpdateConversationStatus(c.Context(), conversationID, body.Status); err != nil {
		if services.IsValidation(err) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		if services.IsNotFound(err) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Conversation not found",
			})
		}
		log.Printf("❌ [CONVERSATION] Status update failed for %s: %v", conversationID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update conversation status",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Status updated",
		"status":  body.Status,
	})
}

// ListForClient returns a client's conversations, most recent first
// GET /api/clients/:id/conversations
func (h *ConversationHandler) ListForClient(c *fiber.Ctx) error {
	clientID := c.Params("id")
	if clientID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Client ID is required",
		})
	}

	limit := int64(c.QueryInt("limit", 20))

	conversations, err := h.messages.GetClientConversations(c.Context(), clientID, limit)
	if err != nil {
		log.Printf("❌ [CONVERSATION] List failed for client %s: %v", clientID, err)
		return c.Status(statusForError(err)).JSON(fiber.Map{
			"error": "Failed to list conversations",
		})
	}

	return c.JSON(fiber.Map{
		"conversations": conversations,
		"count":         len(conversations),
	})
}

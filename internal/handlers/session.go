package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"taskpilot/internal/models"
	"taskpilot/internal/services"
)

// SessionHandler handles session-related HTTP requests
type SessionHandler struct {
	store   *services.SessionStore
	appName string
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(store *services.SessionStore, appName string) *SessionHandler {
	return &SessionHandler{store: store, appName: appName}
}

// statusForError maps a service error onto an HTTP status code
func statusForError(err error) int {
	switch {
	case services.IsValidation(err):
		return fiber.StatusBadRequest
	case services.IsNotFound(err):
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

// requireUserID pulls the authenticated user id out of fiber Locals
func requireUserID(c *fiber.Ctx) (string, bool) {
	userID, ok := c.Locals("user_id").(string)
	return userID, ok && userID != "" && userID != "anonymous"
}

type createSessionBody struct {
	AppName        string                 `json:"app_name"`
	SessionID      string                 `json:"session_id"`
	State          map[string]interface{} `json:"state"`
	ClientID       string                 `json:"client_id"`
	ConversationID string                 `json:"conversation_id"`
}

// Create creates (or idempotently revives) a session
// POST /api/sessions
func (h *SessionHandler) Create(c *fiber.Ctx) error {
	userID, ok := requireUserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	var body createSessionBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	appName := body.AppName
	if appName == "" {
		appName = h.appName
	}

	clientID := body.ClientID
	if clientID == "" {
		clientID, _ = c.Locals("client_id").(string)
	}

	session, err := h.store.CreateSession(c.Context(), services.CreateSessionRequest{
		AppName:        appName,
		UserID:         userID,
		SessionID:      body.SessionID,
		State:          body.State,
		ClientID:       clientID,
		ConversationID: body.ConversationID,
	})
	if err != nil {
		log.Printf("❌ [SESSION] Create failed for user %s: %v", userID, err)
		return c.Status(statusForError(err)).JSON(fiber.Map{
			"error": "Failed to create session",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(session)
}

// List returns all active sessions for the authenticated user
// GET /api/sessions
func (h *SessionHandler) List(c *fiber.Ctx) error {
	userID, ok := requireUserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	appName := c.Query("app_name", h.appName)

	sessions, err := h.store.ListSessions(c.Context(), appName, userID)
	if err != nil {
		log.Printf("❌ [SESSION] List failed for user %s: %v", userID, err)
		return c.Status(statusForError(err)).JSON(fiber.Map{
			"error": "Failed to list sessions",
		})
	}

	// Listing never ships full event logs
	items := make([]models.SessionListItem, 0, len(sessions))
	for _, s := range sessions {
		items = append(items, models.SessionListItem{
			SessionID:      s.SessionID,
			ConversationID: s.ConversationID,
			CreatedAt:      s.CreatedAt,
			LastActivity:   s.LastActivity,
			EventCount:     len(s.Events),
		})
	}

	return c.JSON(fiber.Map{
		"sessions": items,
		"count":    len(items),
	})
}

// Get returns a single active session with its reconstructed events
// GET /api/sessions/:id
func (h *SessionHandler) Get(c *fiber.Ctx) error {
	userID, ok := requireUserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	sessionID := c.Params("id")
	if sessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Session ID is required",
		})
	}

	appName := c.Query("app_name", h.appName)

	session, err := h.store.GetSession(c.Context(), appName, userID, sessionID)
	if err != nil {
		log.Printf("❌ [SESSION] Get failed for %s: %v", sessionID, err)
		return c.Status(statusForError(err)).JSON(fiber.Map{
			"error": "Failed to get session",
		})
	}
	if session == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Session not found",
		})
	}

	return c.JSON(session)
}

// Delete removes a session permanently
// DELETE /api/sessions/:id
func (h *SessionHandler) Delete(c *fiber.Ctx) error {
	userID, ok := requireUserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	sessionID := c.Params("id")
	if sessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Session ID is required",
		})
	}

	appName := c.Query("app_name", h.appName)

	if err := h.store.DeleteSession(c.Context(), appName, userID, sessionID); err != nil {
		if services.IsNotFound(err) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Session not found",
			})
		}
		log.Printf("❌ [SESSION] Delete failed for %s: %v", sessionID, err)
		return c.Status(statusForError(err)).JSON(fiber.Map{
			"error": "Failed to delete session",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Session deleted",
	})
}

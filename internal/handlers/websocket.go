package handlers

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"

	"taskpilot/internal/logging"
	"taskpilot/internal/models"
	"taskpilot/internal/services"
)

const (
	readDeadline  = 120 * time.Second
	pingInterval  = 30 * time.Second
	writeDeadline = 10 * time.Second
)

// WebSocketHandler drives the chat persistence flow: inbound messages are
// saved to the transcript, mirrored into the active session as events, and
// acknowledged back on the same connection.
type WebSocketHandler struct {
	connManager    *services.ConnectionManager
	store          *services.SessionStore
	messages       *services.MessageService
	contextBuilder *services.ContextBuilder
	appName        string
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(connManager *services.ConnectionManager, store *services.SessionStore, messages *services.MessageService, contextBuilder *services.ContextBuilder, appName string) *WebSocketHandler {
	return &WebSocketHandler{
		connManager:    connManager,
		store:          store,
		messages:       messages,
		contextBuilder: contextBuilder,
		appName:        appName,
	}
}

// Handle handles a new WebSocket connection
func (h *WebSocketHandler) Handle(c *websocket.Conn) {
	connID := uuid.New().String()
	userID, _ := c.Locals("user_id").(string)
	clientID, _ := c.Locals("client_id").(string)

	done := make(chan struct{})

	userConn := &models.UserConnection{
		ConnID:    connID,
		UserID:    userID,
		ClientID:  clientID,
		Conn:      c,
		CreatedAt: time.Now(),
		WriteChan: make(chan models.ServerMessage, 100),
		StopChan:  make(chan bool, 1),
	}

	h.connManager.Add(userConn)
	services.GetMetrics().RecordWebSocketConnect()
	defer func() {
		close(done)
		h.connManager.Remove(connID)
		services.GetMetrics().RecordWebSocketDisconnect()
	}()

	c.SetReadDeadline(time.Now().Add(readDeadline))
	c.SetPongHandler(func(appData string) error {
		c.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	go h.pingLoop(userConn, done)
	go h.writeLoop(userConn)

	userConn.SafeSend(models.ServerMessage{
		Type:    "connected",
		Content: "WebSocket connected. Ready to receive messages.",
	})

	h.readLoop(userConn)
}

// pingLoop sends periodic pings to keep the connection alive
func (h *WebSocketHandler) pingLoop(userConn *models.UserConnection, done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			userConn.Mutex.Lock()
			err := userConn.Conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeDeadline))
			userConn.Mutex.Unlock()
			if err != nil {
				log.Printf("⚠️ Ping failed for %s: %v", userConn.ConnID, err)
				return
			}
		}
	}
}

// writeLoop drains the connection's write channel
func (h *WebSocketHandler) writeLoop(userConn *models.UserConnection) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("❌ Panic in writeLoop: %v", r)
		}
	}()

	for msg := range userConn.WriteChan {
		if err := userConn.Conn.WriteJSON(msg); err != nil {
			log.Printf("❌ WebSocket write error for %s: %v", userConn.ConnID, err)
			return
		}
		services.GetMetrics().RecordWebSocketMessage(msg.Type, "outbound")
	}
}

// readLoop handles incoming messages from the client
func (h *WebSocketHandler) readLoop(userConn *models.UserConnection) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("❌ Panic in readLoop: %v", r)
		}
	}()

	for {
		_, msg, err := userConn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("❌ WebSocket read error for %s: %v", userConn.ConnID, err)
			}
			break
		}

		userConn.Conn.SetReadDeadline(time.Now().Add(readDeadline))

		var clientMsg models.ClientMessage
		if err := json.Unmarshal(msg, &clientMsg); err != nil {
			log.Printf("⚠️  Invalid message format from %s: %v", userConn.ConnID, err)
			userConn.SafeSend(models.ServerMessage{
				Type:         "error",
				ErrorCode:    "invalid_format",
				ErrorMessage: "Invalid message format",
			})
			continue
		}

		services.GetMetrics().RecordWebSocketMessage(clientMsg.Type, "inbound")

		switch clientMsg.Type {
		case "ping":
			userConn.SafeSend(models.ServerMessage{Type: "pong"})
		case "chat_message":
			h.handleChatMessage(userConn, clientMsg)
		case "resume_session":
			h.handleResumeSession(userConn, clientMsg)
		case "get_context":
			h.handleGetContext(userConn, clientMsg)
		default:
			log.Printf("⚠️  Unknown message type: %s", clientMsg.Type)
			userConn.SafeSend(models.ServerMessage{
				Type:         "error",
				ErrorCode:    "unknown_type",
				ErrorMessage: "Unknown message type: " + clientMsg.Type,
			})
		}
	}
}

// sendError reports a failure back to the client without closing the connection
func (h *WebSocketHandler) sendError(userConn *models.UserConnection, code, message string) {
	userConn.SafeSend(models.ServerMessage{
		Type:         "error",
		ErrorCode:    code,
		ErrorMessage: message,
	})
}

// ensureSession returns the connection's active session, creating or reviving
// one keyed to the conversation when none is bound yet.
func (h *WebSocketHandler) ensureSession(ctx context.Context, userConn *models.UserConnection, conversationID string) (*models.Session, error) {
	if userConn.SessionID != "" {
		session, err := h.store.GetSession(ctx, h.appName, userConn.UserID, userConn.SessionID)
		if err != nil {
			return nil, err
		}
		if session != nil {
			return session, nil
		}
		// Bound session expired or was deleted; fall through and rebuild
		log.Printf("⚠️ [WS] Session %s no longer active for %s, creating a new one", userConn.SessionID, userConn.ConnID)
		userConn.SessionID = ""
	}

	session, err := h.store.CreateSession(ctx, services.CreateSessionRequest{
		AppName:        h.appName,
		UserID:         userConn.UserID,
		ClientID:       userConn.ClientID,
		ConversationID: conversationID,
	})
	if err != nil {
		return nil, err
	}

	userConn.SessionID = session.SessionID
	return session, nil
}

// handleChatMessage persists an inbound user message and mirrors it into the session
func (h *WebSocketHandler) handleChatMessage(userConn *models.UserConnection, msg models.ClientMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if userConn.ClientID == "" {
		h.sendError(userConn, "unauthorized", "Chat requires an authenticated client")
		return
	}

	conversationID := msg.ConversationID
	if conversationID == "" {
		conversationID = userConn.ConversationID
	}

	conversation, err := h.contextBuilder.CreateConversationIfNeeded(ctx, userConn.ClientID, conversationID, "")
	if err != nil {
		log.Printf("❌ [WS] Conversation resolution failed for %s: %v", userConn.ConnID, err)
		h.sendError(userConn, "conversation_failed", "Could not resolve conversation")
		return
	}
	userConn.ConversationID = conversation.ID.Hex()

	receivedAt := time.Now()
	saved, deduplicated, err := h.messages.SaveUserMessage(ctx, userConn.ConversationID, msg.Content, &services.SaveMessageOptions{
		Metadata: msg.Metadata,
	})
	if err != nil {
		if services.IsValidation(err) {
			h.sendError(userConn, "invalid_message", err.Error())
			return
		}
		log.Printf("❌ [WS] Message save failed for %s: %v", userConn.ConnID, err)
		h.sendError(userConn, "save_failed", "Could not save message")
		return
	}

	session, err := h.ensureSession(ctx, userConn, userConn.ConversationID)
	if err != nil {
		log.Printf("❌ [WS] Session setup failed for %s: %v", userConn.ConnID, err)
		h.sendError(userConn, "session_failed", "Could not establish session")
		return
	}

	// Event append is best-effort: a persistence failure is logged inside
	// the store and never surfaces to the chat flow.
	if !deduplicated {
		event := &models.Event{
			ID:           uuid.New().String(),
			Timestamp:    models.EpochSeconds(receivedAt),
			Author:       "user",
			InvocationID: uuid.New().String(),
			Content: &models.Content{
				Role:  "user",
				Parts: []models.Part{{Text: msg.Content}},
			},
		}
		if _, err := h.store.AppendEvent(ctx, session, event); err != nil {
			h.sendError(userConn, "invalid_event", err.Error())
			return
		}
	}

	userConn.SafeSend(models.ServerMessage{
		Type:           "message_saved",
		ConversationID: userConn.ConversationID,
		SessionID:      session.SessionID,
		MessageID:      saved.ID.Hex(),
		Deduplicated:   deduplicated,
	})
}

// handleResumeSession binds the connection to a conversation's session,
// reviving the stored session when one exists
func (h *WebSocketHandler) handleResumeSession(userConn *models.UserConnection, msg models.ClientMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if msg.ConversationID == "" {
		h.sendError(userConn, "missing_conversation", "conversation_id is required to resume")
		return
	}

	userConn.ConversationID = msg.ConversationID
	userConn.SessionID = msg.SessionID

	// Without an explicit session id, prefer the conversation's most recently
	// active session over minting a new one.
	if userConn.SessionID == "" {
		existing, err := h.store.GetSessionByConversationID(ctx, h.appName, userConn.UserID, msg.ConversationID)
		if err != nil {
			log.Printf("❌ [WS] Resume lookup failed for %s: %v", userConn.ConnID, err)
			h.sendError(userConn, "resume_failed", "Could not resume session")
			return
		}
		if existing != nil {
			userConn.SessionID = existing.SessionID
			userConn.SafeSend(models.ServerMessage{
				Type:           "session_ready",
				ConversationID: userConn.ConversationID,
				SessionID:      existing.SessionID,
			})
			return
		}
	}

	session, err := h.ensureSession(ctx, userConn, msg.ConversationID)
	if err != nil {
		log.Printf("❌ [WS] Resume failed for %s: %v", userConn.ConnID, err)
		h.sendError(userConn, "resume_failed", "Could not resume session")
		return
	}

	sessionLog := logging.WithSession(h.appName, userConn.UserID, session.SessionID)
	logging.WithConversation(sessionLog, userConn.ConversationID).Info("session resumed",
		"events", len(session.Events))

	userConn.SafeSend(models.ServerMessage{
		Type:           "session_ready",
		ConversationID: userConn.ConversationID,
		SessionID:      session.SessionID,
	})
}

// handleGetContext replays the conversation as model-ready content objects
func (h *WebSocketHandler) handleGetContext(userConn *models.UserConnection, msg models.ClientMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conversationID := msg.ConversationID
	if conversationID == "" {
		conversationID = userConn.ConversationID
	}
	if conversationID == "" {
		h.sendError(userConn, "missing_conversation", "No conversation bound to this connection")
		return
	}

	history, err := h.contextBuilder.BuildConversationContext(ctx, conversationID, 50)
	if err != nil {
		log.Printf("❌ [WS] Context build failed for %s: %v", userConn.ConnID, err)
		h.sendError(userConn, "context_failed", "Could not build conversation context")
		return
	}

	userConn.SafeSend(models.ServerMessage{
		Type:           "context",
		ConversationID: conversationID,
		SessionID:      userConn.SessionID,
		Contents:       history,
	})
}

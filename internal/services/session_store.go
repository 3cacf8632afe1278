package services

import (
	"context"
	"log"
	"time"

	"taskpilot/internal/database"
	"taskpilot/internal/events"
	"taskpilot/internal/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SessionStore handles MongoDB CRUD and lifecycle for agent sessions.
// The append-event hot path performs a single document write; no locks are
// held across I/O and no cross-collection transaction is ever used.
//
// There is no optimistic-concurrency guard on the session document:
// concurrent AppendEvent calls against the same session are last-writer-wins
// on the state map (event array pushes themselves never clobber each other).
type SessionStore struct {
	collection *mongo.Collection
	directory  *DirectoryService
	redis      *RedisService // optional; lifecycle notifications are best-effort
}

// NewSessionStore creates a new session store
func NewSessionStore(db *database.MongoDB, directory *DirectoryService, redis *RedisService) *SessionStore {
	return &SessionStore{
		collection: db.Collection(database.CollectionSessions),
		directory:  directory,
		redis:      redis,
	}
}

// CreateSessionRequest carries the inputs for CreateSession
type CreateSessionRequest struct {
	AppName        string
	UserID         string
	SessionID      string // generated when empty
	State          map[string]interface{}
	ClientID       string
	ConversationID string
}

// sessionRecord mirrors the stored session document. Events stay raw here
// so one corrupted event can never fail the whole decode; the codec
// reconstructs them individually.
type sessionRecord struct {
	ID             primitive.ObjectID     `bson:"_id,omitempty"`
	SessionID      string                 `bson:"session_id"`
	AppName        string                 `bson:"app_name"`
	UserID         string                 `bson:"user_id"`
	ClientID       string                 `bson:"client_id,omitempty"`
	ConversationID string                 `bson:"conversation_id,omitempty"`
	OrganizationID string                 `bson:"organization_id,omitempty"`
	State          map[string]interface{} `bson:"state"`
	Events         []bson.M               `bson:"events"`
	CreatedAt      time.Time              `bson:"created_at"`
	LastActivity   time.Time              `bson:"last_activity"`
	LastUpdateTime float64                `bson:"last_update_time"`
	IsActive       bool                   `bson:"is_active"`
	Metadata       map[string]interface{} `bson:"metadata,omitempty"`
}

// toSession reconstructs the in-memory session, skipping events the codec
// cannot rebuild
func (r *sessionRecord) toSession() *models.Session {
	evs, skipped := events.ReconstructAll(r.SessionID, r.Events)
	GetMetrics().RecordReconstructionSkips(skipped)

	state := r.State
	if state == nil {
		state = make(map[string]interface{})
	}

	return &models.Session{
		ID:             r.ID,
		SessionID:      r.SessionID,
		AppName:        r.AppName,
		UserID:         r.UserID,
		ClientID:       r.ClientID,
		ConversationID: r.ConversationID,
		OrganizationID: r.OrganizationID,
		State:          state,
		Events:         evs,
		CreatedAt:      r.CreatedAt,
		LastActivity:   r.LastActivity,
		LastUpdateTime: r.LastUpdateTime,
		IsActive:       r.IsActive,
		Metadata:       r.Metadata,
	}
}

// tripleFilter builds the composite-key filter for one session
func tripleFilter(appName, userID, sessionID string) bson.M {
	return bson.M{
		"app_name":   appName,
		"user_id":    userID,
		"session_id": sessionID,
	}
}

// CreateSession creates a session, or returns the existing one for the same
// (app_name, user_id, session_id) triple. When a conversation id is supplied
// and an inactive session exists for the same conversation, that session's
// storage row is reused under the new session id so event history survives a
// reconnect with a fresh id.
func (s *SessionStore) CreateSession(ctx context.Context, req CreateSessionRequest) (*models.Session, error) {
	if req.AppName == "" || req.UserID == "" {
		return nil, NewValidationError("app_name and user_id are required")
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	now := time.Now().UTC()

	// Idempotent create: an existing session for the same triple is
	// reactivated and returned, never duplicated.
	reactivated := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var record sessionRecord
	err := s.collection.FindOneAndUpdate(ctx,
		tripleFilter(req.AppName, req.UserID, sessionID),
		bson.M{"$set": bson.M{
			"is_active":     true,
			"last_activity": now,
		}},
		reactivated,
	).Decode(&record)
	if err == nil {
		log.Printf("🔄 [SESSION] Reactivated existing session %s (user: %s)", sessionID, req.UserID)
		GetMetrics().RecordSessionCreated("reactivated")
		s.redis.NotifySession(ctx, SessionNotification{Type: "reactivated", AppName: req.AppName, UserID: req.UserID, SessionID: sessionID})
		return record.toSession(), nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, NewPersistenceError("create session", err)
	}

	// Conversation-keyed resumption: rename an inactive session row in place
	// rather than stranding its event history behind a dead session id.
	if req.ConversationID != "" {
		err := s.collection.FindOneAndUpdate(ctx,
			bson.M{
				"app_name":  req.AppName,
				"user_id":   req.UserID,
				"is_active": false,
				"$or": []bson.M{
					{"conversation_id": req.ConversationID},
					{"state." + models.StateKeyConversationID: req.ConversationID},
					{"state.conversation_id": req.ConversationID},
				},
			},
			bson.M{"$set": bson.M{
				"session_id":       sessionID,
				"is_active":        true,
				"last_activity":    now,
				"last_update_time": models.EpochSeconds(now),
			}},
			options.FindOneAndUpdate().SetReturnDocument(options.After).SetSort(bson.M{"last_activity": -1}),
		).Decode(&record)
		if err == nil {
			log.Printf("🔄 [SESSION] Reused inactive session for conversation %s under new id %s (%d prior events)",
				req.ConversationID, sessionID, len(record.Events))
			GetMetrics().RecordSessionCreated("reused")
			s.redis.NotifySession(ctx, SessionNotification{Type: "reused", AppName: req.AppName, UserID: req.UserID, SessionID: sessionID})
			return record.toSession(), nil
		}
		if err != mongo.ErrNoDocuments {
			return nil, NewPersistenceError("create session", err)
		}
	}

	// Fresh session. Directory validation is best-effort: a failed client
	// lookup degrades the session rather than failing creation.
	organizationID := ""
	if req.ClientID != "" && s.directory != nil {
		_, org, err := s.directory.ResolveClientOrganization(ctx, req.ClientID)
		if err != nil {
			log.Printf("⚠️ [SESSION] Client lookup failed for %s, proceeding with degraded session: %v", req.ClientID, err)
		} else {
			organizationID = org.ID.Hex()
		}
	}

	state := make(map[string]interface{}, len(req.State)+4)
	for k, v := range req.State {
		state[k] = v
	}
	if req.ClientID != "" {
		state[models.StateKeyClientID] = req.ClientID
	}
	if req.ConversationID != "" {
		state[models.StateKeyConversationID] = req.ConversationID
	}
	if organizationID != "" {
		state[models.StateKeyOrganizationID] = organizationID
	}
	state[models.StateKeyCreatedAt] = models.EpochSeconds(now)

	record = sessionRecord{
		SessionID:      sessionID,
		AppName:        req.AppName,
		UserID:         req.UserID,
		ClientID:       req.ClientID,
		ConversationID: req.ConversationID,
		OrganizationID: organizationID,
		State:          state,
		Events:         []bson.M{},
		CreatedAt:      now,
		LastActivity:   now,
		LastUpdateTime: models.EpochSeconds(now),
		IsActive:       true,
		Metadata:       map[string]interface{}{},
	}

	result, err := s.collection.InsertOne(ctx, record)
	if err != nil {
		// Unique-index race: another request created the triple concurrently
		var existing sessionRecord
		if findErr := s.collection.FindOne(ctx, tripleFilter(req.AppName, req.UserID, sessionID)).Decode(&existing); findErr == nil {
			return existing.toSession(), nil
		}
		return nil, NewPersistenceError("create session", err)
	}
	record.ID, _ = result.InsertedID.(primitive.ObjectID)

	log.Printf("✅ [SESSION] Created session %s (user: %s, conversation: %s)", sessionID, req.UserID, req.ConversationID)
	GetMetrics().RecordSessionCreated("created")
	s.redis.NotifySession(ctx, SessionNotification{Type: "created", AppName: req.AppName, UserID: req.UserID, SessionID: sessionID})

	return record.toSession(), nil
}

// GetSession fetches an active session by its composite key, touching its
// last-activity timestamp. Returns (nil, nil) when no active session exists
// so callers can create-on-demand.
func (s *SessionStore) GetSession(ctx context.Context, appName, userID, sessionID string) (*models.Session, error) {
	filter := tripleFilter(appName, userID, sessionID)
	filter["is_active"] = true

	var record sessionRecord
	err := s.collection.FindOneAndUpdate(ctx,
		filter,
		bson.M{"$set": bson.M{"last_activity": time.Now().UTC()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&record)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, NewPersistenceError("get session", err)
	}

	return record.toSession(), nil
}

// GetSessionByConversationID fetches the most recently active session for a
// conversation. Needed after a reconnect when the caller only knows the
// conversation, not the ephemeral session id. Legacy sessions kept the
// conversation linkage only inside the state map, so those keys are checked
// as fallbacks.
func (s *SessionStore) GetSessionByConversationID(ctx context.Context, appName, userID, conversationID string) (*models.Session, error) {
	if conversationID == "" {
		return nil, NewValidationError("conversation_id is required")
	}

	filter := bson.M{
		"app_name":  appName,
		"user_id":   userID,
		"is_active": true,
		"$or": []bson.M{
			{"conversation_id": conversationID},
			{"state." + models.StateKeyConversationID: conversationID},
			{"state.conversation_id": conversationID},
		},
	}

	var record sessionRecord
	err := s.collection.FindOneAndUpdate(ctx,
		filter,
		bson.M{"$set": bson.M{"last_activity": time.Now().UTC()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After).SetSort(bson.M{"last_activity": -1}),
	).Decode(&record)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, NewPersistenceError("get session by conversation", err)
	}

	return record.toSession(), nil
}

// AppendEvent appends an event to the in-memory session and persists it with
// a single document write: the serialized event is pushed onto the stored
// array and the stored state is replaced with the session's current state.
//
// Persistence failure is logged but never returned: the in-memory session
// already reflects the event and the caller has no recovery action mid-turn.
// Until the next successful write reconciles the document, such an event
// lives only in memory — a known data-loss window on process crash.
func (s *SessionStore) AppendEvent(ctx context.Context, session *models.Session, ev *models.Event) (*models.Event, error) {
	if session == nil || ev == nil {
		return nil, NewValidationError("session and event are required")
	}
	// Partial events are streaming fragments; only the completed event is
	// part of the durable log.
	if ev.Partial {
		return ev, nil
	}

	now := time.Now().UTC()
	session.Events = append(session.Events, ev)
	session.LastActivity = now
	session.LastUpdateTime = models.EpochSeconds(now)

	start := time.Now()
	doc := events.Serialize(ev)
	_, err := s.collection.UpdateOne(ctx,
		tripleFilter(session.AppName, session.UserID, session.SessionID),
		bson.M{
			"$push": bson.M{"events": doc},
			"$set": bson.M{
				"state":            session.State,
				"last_activity":    now,
				"last_update_time": session.LastUpdateTime,
			},
		},
	)
	if err != nil {
		log.Printf("⚠️ [SESSION] Failed to persist event %s for session %s (kept in memory): %v",
			ev.ID, session.SessionID, err)
		GetMetrics().RecordAppendFailure()
		return ev, nil
	}

	GetMetrics().RecordEventAppended(time.Since(start).Seconds())
	return ev, nil
}

// ListSessions returns the active sessions for a user, most recent activity
// first
func (s *SessionStore) ListSessions(ctx context.Context, appName, userID string) ([]*models.Session, error) {
	opts := options.Find().SetSort(bson.M{"last_activity": -1})
	cursor, err := s.collection.Find(ctx, bson.M{
		"app_name":  appName,
		"user_id":   userID,
		"is_active": true,
	}, opts)
	if err != nil {
		return nil, NewPersistenceError("list sessions", err)
	}
	defer cursor.Close(ctx)

	var sessions []*models.Session
	for cursor.Next(ctx) {
		var record sessionRecord
		if err := cursor.Decode(&record); err != nil {
			log.Printf("⚠️ [SESSION] Failed to decode session during list: %v", err)
			continue
		}
		sessions = append(sessions, record.toSession())
	}

	return sessions, nil
}

// DeleteSession hard-deletes a session. This is the only terminal state; all
// other lifecycle transitions are soft.
func (s *SessionStore) DeleteSession(ctx context.Context, appName, userID, sessionID string) error {
	result, err := s.collection.DeleteOne(ctx, tripleFilter(appName, userID, sessionID))
	if err != nil {
		return NewPersistenceError("delete session", err)
	}
	if result.DeletedCount == 0 {
		return NewNotFoundError("session", sessionID)
	}

	log.Printf("🗑️ [SESSION] Deleted session %s (user: %s)", sessionID, userID)
	s.redis.NotifySession(ctx, SessionNotification{Type: "deleted", AppName: appName, UserID: userID, SessionID: sessionID})
	return nil
}

// CleanupExpiredSessions marks sessions inactive once their last activity is
// older than maxAge. Soft expiry only — the rows stay, ready for
// conversation-keyed reuse on the next reconnect.
func (s *SessionStore) CleanupExpiredSessions(ctx context.Context, appName string, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge)

	result, err := s.collection.UpdateMany(ctx,
		bson.M{
			"app_name":      appName,
			"is_active":     true,
			"last_activity": bson.M{"$lt": cutoff},
		},
		bson.M{"$set": bson.M{"is_active": false}},
	)
	if err != nil {
		return 0, NewPersistenceError("cleanup expired sessions", err)
	}

	if result.ModifiedCount > 0 {
		log.Printf("🧹 [SESSION] Marked %d sessions inactive (idle > %v)", result.ModifiedCount, maxAge)
		s.redis.NotifySession(ctx, SessionNotification{Type: "expired", AppName: appName, Count: result.ModifiedCount})
	}
	return result.ModifiedCount, nil
}

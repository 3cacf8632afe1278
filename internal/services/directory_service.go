package services

import (
	"context"
	"time"

	"taskpilot/internal/database"
	"taskpilot/internal/models"

	gocache "github.com/patrickmn/go-cache"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// DirectoryService provides read-only lookups against the client and
// organization directory, with a short read-through cache. The directory is
// owned by another system; this service never writes to it.
type DirectoryService struct {
	clients       *mongo.Collection
	organizations *mongo.Collection
	cache         *gocache.Cache
}

// NewDirectoryService creates a new directory service
func NewDirectoryService(db *database.MongoDB) *DirectoryService {
	return &DirectoryService{
		clients:       db.Collection(database.CollectionClients),
		organizations: db.Collection(database.CollectionOrganizations),
		cache:         gocache.New(5*time.Minute, 10*time.Minute),
	}
}

// GetClient resolves a client by id
func (s *DirectoryService) GetClient(ctx context.Context, clientID string) (*models.Client, error) {
	if cached, found := s.cache.Get("client:" + clientID); found {
		return cached.(*models.Client), nil
	}

	oid, err := primitive.ObjectIDFromHex(clientID)
	if err != nil {
		return nil, NewValidationError("invalid client ID: %s", clientID)
	}

	var client models.Client
	err = s.clients.FindOne(ctx, bson.M{"_id": oid}).Decode(&client)
	if err == mongo.ErrNoDocuments {
		return nil, NewNotFoundError("client", clientID)
	}
	if err != nil {
		return nil, NewPersistenceError("get client", err)
	}

	s.cache.SetDefault("client:"+clientID, &client)
	return &client, nil
}

// GetOrganization resolves an organization by id
func (s *DirectoryService) GetOrganization(ctx context.Context, orgID primitive.ObjectID) (*models.Organization, error) {
	if cached, found := s.cache.Get("org:" + orgID.Hex()); found {
		return cached.(*models.Organization), nil
	}

	var org models.Organization
	err := s.organizations.FindOne(ctx, bson.M{"_id": orgID}).Decode(&org)
	if err == mongo.ErrNoDocuments {
		return nil, NewNotFoundError("organization", orgID.Hex())
	}
	if err != nil {
		return nil, NewPersistenceError("get organization", err)
	}

	s.cache.SetDefault("org:"+orgID.Hex(), &org)
	return &org, nil
}

// ResolveClientOrganization returns the client and its owning organization.
// A client without an organization yields a validation error: conversations
// cannot be created without an owning organization.
func (s *DirectoryService) ResolveClientOrganization(ctx context.Context, clientID string) (*models.Client, *models.Organization, error) {
	client, err := s.GetClient(ctx, clientID)
	if err != nil {
		return nil, nil, err
	}
	if client.Organization.IsZero() {
		return nil, nil, NewValidationError("client %s has no organization", clientID)
	}
	org, err := s.GetOrganization(ctx, client.Organization)
	if err != nil {
		return nil, nil, err
	}
	return client, org, nil
}

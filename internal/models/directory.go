package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Client is a directory record for the person or system on whose behalf
// conversations are held. The directory is read-only from this service's
// point of view.
type Client struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Email        string             `bson:"email,omitempty" json:"email,omitempty"`
	Organization primitive.ObjectID `bson:"organization,omitempty" json:"organization_id,omitempty"`
	IsActive     bool               `bson:"isActive" json:"is_active"`
	CreatedAt    time.Time          `bson:"createdAt" json:"created_at"`
}

// Organization groups clients; every conversation is owned by one
type Organization struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name      string             `bson:"name" json:"name"`
	IsActive  bool               `bson:"isActive" json:"is_active"`
	CreatedAt time.Time          `bson:"createdAt" json:"created_at"`
}

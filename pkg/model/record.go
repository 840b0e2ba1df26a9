package model

import (
	"time"
)

// RecordID is the backend-assigned identifier of a record within a collection.
type RecordID string

func (x RecordID) String() string { return string(x) }

// CollectionName names a partition of records in the document database.
type CollectionName string

const (
	CollectionPages       CollectionName = "pages"
	CollectionEvents      CollectionName = "events"
	CollectionTeamMembers CollectionName = "teamMembers"
	CollectionPrograms    CollectionName = "programs"
	CollectionUsers       CollectionName = "users"
	CollectionSessions    CollectionName = "sessions"
)

// ContentCollections are the collections edited from the admin panel.
var ContentCollections = []CollectionName{
	CollectionPages,
	CollectionEvents,
	CollectionTeamMembers,
	CollectionPrograms,
}

// Meta holds the fields every stored record carries. It is embedded in each
// collection type so that the backend encoders flatten it into the document.
// ID is never written as a document field; it is the document key.
type Meta struct {
	ID        RecordID  `json:"id,omitempty" firestore:"-" bson:"-"`
	CreatedAt time.Time `json:"createdAt,omitzero" firestore:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt,omitzero" firestore:"updatedAt" bson:"updatedAt"`
}

// GetMeta returns the embedded metadata. Collection types get it promoted.
func (m *Meta) GetMeta() *Meta { return m }

// Document is implemented by a pointer to every collection type.
type Document interface {
	GetMeta() *Meta
}

// Fields is a partial set of document fields keyed by stored field name.
type Fields map[string]any

// Field names shared by all records.
const (
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

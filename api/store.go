package api

import (
	"context"
)

//Target is the database a driver connects to
type Target struct {
	URI      string
	Database string
}

//Driver establishes sessions against one kind of document store
type Driver interface {
	Name() string
	Connect(ctx context.Context, target Target) (Conn, error)
}

//Conn is an established database session
type Conn interface {
	Collection(name string) Collection
	Close(ctx context.Context) error
}

//Collection describes the operations a driver performs on one collection.
//Records go in and out with their identifier in the `id` field; drivers
//translate it to and from their native identifier.
type Collection interface {
	// FindOne returns false when no record matches.
	FindOne(ctx context.Context, q Query) (Record, bool, error)
	// Find returns an empty slice when no record matches.
	Find(ctx context.Context, q Query) ([]Record, error)

	InsertOne(ctx context.Context, r Record) (string, error)
	// InsertMany returns the assigned identifiers in input order.
	InsertMany(ctx context.Context, rs []Record) ([]string, error)

	// UpdateOne merges fields into the record id and reports how many records
	// matched and how many were actually modified.
	UpdateOne(ctx context.Context, id string, fields Record) (matched int64, modified int64, err error)

	DeleteOne(ctx context.Context, id string) (int64, error)
	DeleteMany(ctx context.Context, q Query) (int64, error)
}

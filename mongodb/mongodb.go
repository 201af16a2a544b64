// Package mongodb stores records in MongoDB collections. The native _id of
// documents is exposed as the hexadecimal string `id`.
package mongodb

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"

	"github.com/xdbsoft/docstore/api"
)

// Driver connects to a MongoDB deployment. The database is Target.Database,
// or the one named in the connection string.
type Driver struct{}

func (Driver) Name() string {
	return "mongodb"
}

func (Driver) Connect(ctx context.Context, target api.Target) (api.Conn, error) {

	if len(target.URI) == 0 {
		return nil, errors.New("missing connection string")
	}

	cs, err := connstring.ParseAndValidate(target.URI)
	if err != nil {
		return nil, errors.Wrap(err, "invalid connection string")
	}

	dbName := target.Database
	if len(dbName) == 0 {
		dbName = cs.Database
	}
	if len(dbName) == 0 {
		return nil, errors.New("no database in configuration nor connection string")
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(target.URI))
	if err != nil {
		return nil, errors.Wrap(err, "unable to connect")
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, errors.Wrap(err, "unable to reach server")
	}

	return &conn{
		client: client,
		db:     client.Database(dbName),
	}, nil
}

type conn struct {
	client *mongo.Client
	db     *mongo.Database
}

func (c *conn) Collection(name string) api.Collection {
	return &collection{col: c.db.Collection(name)}
}

func (c *conn) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

type collection struct {
	col *mongo.Collection
}

func (c *collection) FindOne(ctx context.Context, q api.Query) (api.Record, bool, error) {

	var doc bson.M
	err := c.col.FindOne(ctx, filter(q)).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "find one failed")
	}

	return fromDocument(doc), true, nil
}

func (c *collection) Find(ctx context.Context, q api.Query) ([]api.Record, error) {

	cursor, err := c.col.Find(ctx, filter(q))
	if err != nil {
		return nil, errors.Wrap(err, "find failed")
	}

	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "cursor iteration failed")
	}

	result := make([]api.Record, len(docs))
	for i, doc := range docs {
		result[i] = fromDocument(doc)
	}

	return result, nil
}

func (c *collection) InsertOne(ctx context.Context, r api.Record) (string, error) {

	res, err := c.col.InsertOne(ctx, toDocument(r))
	if err != nil {
		return "", errors.Wrap(err, "insert failed")
	}

	return formatID(res.InsertedID), nil
}

func (c *collection) InsertMany(ctx context.Context, rs []api.Record) ([]string, error) {

	docs := make([]interface{}, len(rs))
	for i, r := range rs {
		docs[i] = toDocument(r)
	}

	res, err := c.col.InsertMany(ctx, docs)
	if err != nil {
		return nil, errors.Wrap(err, "insert many failed")
	}

	ids := make([]string, len(res.InsertedIDs))
	for i, id := range res.InsertedIDs {
		ids[i] = formatID(id)
	}

	return ids, nil
}

func (c *collection) UpdateOne(ctx context.Context, id string, fields api.Record) (int64, int64, error) {

	res, err := c.col.UpdateOne(ctx, bson.M{idKey: nativeID(id)}, bson.M{"$set": toDocument(fields)})
	if err != nil {
		return 0, 0, errors.Wrap(err, "update failed")
	}

	return res.MatchedCount, res.ModifiedCount, nil
}

func (c *collection) DeleteOne(ctx context.Context, id string) (int64, error) {

	res, err := c.col.DeleteOne(ctx, bson.M{idKey: nativeID(id)})
	if err != nil {
		return 0, errors.Wrap(err, "delete failed")
	}

	return res.DeletedCount, nil
}

func (c *collection) DeleteMany(ctx context.Context, q api.Query) (int64, error) {

	res, err := c.col.DeleteMany(ctx, filter(q))
	if err != nil {
		return 0, errors.Wrap(err, "delete many failed")
	}

	return res.DeletedCount, nil
}

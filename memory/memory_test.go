package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xdbsoft/docstore/api"
)

func newCollection(t *testing.T, name string) (api.Conn, api.Collection) {
	t.Helper()
	c, err := NewDriver().Connect(context.Background(), api.Target{Database: "test"})
	require.NoError(t, err)
	return c, c.Collection(name)
}

func TestInsertFindOne(t *testing.T) {

	ctx := context.Background()
	_, col := newCollection(t, "test")

	id, err := col.InsertOne(ctx, api.Record{"k": "v", "n": 123})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	r, found, err := col.FindOne(ctx, api.ByID(id))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, api.Record{"id": id, "k": "v", "n": 123}, r)

	r["k"] = "changed"
	r, _, err = col.FindOne(ctx, api.ByID(id))
	require.NoError(t, err)
	assert.Equal(t, "v", r["k"], "returned records must be copies")

	_, found, err = col.FindOne(ctx, api.ByID("missing"))
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = col.FindOne(ctx, api.Where(api.Record{"id": id, "k": "other"}))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestInsertManyFindOrder(t *testing.T) {

	ctx := context.Background()
	_, col := newCollection(t, "test")

	ids, err := col.InsertMany(ctx, []api.Record{{"k": "a"}, {"k": "b"}, {"k": "a"}})
	require.NoError(t, err)
	require.Len(t, ids, 3)

	all, err := col.Find(ctx, api.Query{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i := range ids {
		assert.Equal(t, ids[i], all[i]["id"])
	}

	as, err := col.Find(ctx, api.Where(api.Record{"k": "a"}))
	require.NoError(t, err)
	require.Len(t, as, 2)
	assert.Equal(t, ids[0], as[0]["id"])
	assert.Equal(t, ids[2], as[1]["id"])

	none, err := col.Find(ctx, api.Where(api.Record{"k": "z"}))
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	empty, err := newCollectionFind(t, "other")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func newCollectionFind(t *testing.T, name string) ([]api.Record, error) {
	_, col := newCollection(t, name)
	return col.Find(context.Background(), api.Query{})
}

func TestUpdateOne(t *testing.T) {

	ctx := context.Background()
	_, col := newCollection(t, "test")

	id, err := col.InsertOne(ctx, api.Record{"k": "v", "n": 1})
	require.NoError(t, err)

	matched, modified, err := col.UpdateOne(ctx, id, api.Record{"k2": "v2", "n": 2})
	require.NoError(t, err)
	assert.EqualValues(t, 1, matched)
	assert.EqualValues(t, 1, modified)

	r, _, err := col.FindOne(ctx, api.ByID(id))
	require.NoError(t, err)
	assert.Equal(t, api.Record{"id": id, "k": "v", "k2": "v2", "n": 2}, r)

	matched, modified, err = col.UpdateOne(ctx, id, api.Record{"k": "v", "n": 2.0})
	require.NoError(t, err)
	assert.EqualValues(t, 1, matched)
	assert.EqualValues(t, 0, modified)

	matched, modified, err = col.UpdateOne(ctx, "missing", api.Record{"k": "v"})
	require.NoError(t, err)
	assert.EqualValues(t, 0, matched)
	assert.EqualValues(t, 0, modified)
}

func TestDelete(t *testing.T) {

	ctx := context.Background()
	_, col := newCollection(t, "test")

	ids, err := col.InsertMany(ctx, []api.Record{{"k": "a"}, {"k": "b"}, {"k": "a"}})
	require.NoError(t, err)

	n, err := col.DeleteOne(ctx, ids[1])
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = col.DeleteOne(ctx, ids[1])
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	n, err = col.DeleteMany(ctx, api.Where(api.Record{"k": "a"}))
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	all, err := col.Find(ctx, api.Query{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestSharedDatabaseAndClose(t *testing.T) {

	ctx := context.Background()
	d := NewDriver()

	c1, err := d.Connect(ctx, api.Target{URI: "db"})
	require.NoError(t, err)
	c2, err := d.Connect(ctx, api.Target{Database: "db"})
	require.NoError(t, err)

	id, err := c1.Collection("test").InsertOne(ctx, api.Record{"k": "v"})
	require.NoError(t, err)

	_, found, err := c2.Collection("test").FindOne(ctx, api.ByID(id))
	require.NoError(t, err)
	assert.True(t, found)

	require.NoError(t, c1.Close(ctx))
	_, _, err = c1.Collection("test").FindOne(ctx, api.ByID(id))
	assert.Error(t, err)

	_, found, err = c2.Collection("test").FindOne(ctx, api.ByID(id))
	require.NoError(t, err)
	assert.True(t, found)
}

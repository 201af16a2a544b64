package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xdbsoft/docstore/api"
)

func openCollection(t *testing.T) api.Collection {
	t.Helper()
	ctx := context.Background()

	c, err := Driver{}.Connect(ctx, api.Target{URI: filepath.Join(t.TempDir(), "records.db")})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close(ctx) })

	return c.Collection("test")
}

func TestConnect_MissingFile(t *testing.T) {
	_, err := Driver{}.Connect(context.Background(), api.Target{})
	assert.Error(t, err)
}

func TestRoundTrip(t *testing.T) {

	ctx := context.Background()
	col := openCollection(t)

	id, err := col.InsertOne(ctx, api.Record{"name": "a", "id": "ignored"})
	require.NoError(t, err)
	assert.NotEqual(t, "ignored", id)

	r, found, err := col.FindOne(ctx, api.ByID(id))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, api.Record{"id": id, "name": "a"}, r)

	matched, modified, err := col.UpdateOne(ctx, id, api.Record{"value": 1})
	require.NoError(t, err)
	assert.EqualValues(t, 1, matched)
	assert.EqualValues(t, 1, modified)

	_, modified, err = col.UpdateOne(ctx, id, api.Record{"value": 1})
	require.NoError(t, err)
	assert.EqualValues(t, 0, modified)

	r, _, err = col.FindOne(ctx, api.ByID(id))
	require.NoError(t, err)
	assert.Equal(t, api.Record{"id": id, "name": "a", "value": 1.0}, r)

	matched, _, err = col.UpdateOne(ctx, "missing", api.Record{"value": 1})
	require.NoError(t, err)
	assert.EqualValues(t, 0, matched)

	n, err := col.DeleteOne(ctx, id)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, found, err = col.FindOne(ctx, api.ByID(id))
	require.NoError(t, err)
	assert.False(t, found)

	n, err = col.DeleteOne(ctx, id)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
}

func TestFindAndDeleteMany(t *testing.T) {

	ctx := context.Background()
	col := openCollection(t)

	ids, err := col.InsertMany(ctx, []api.Record{{"k": "a"}, {"k": "b"}, {"k": "a", "n": 2}})
	require.NoError(t, err)
	require.Len(t, ids, 3)

	as, err := col.Find(ctx, api.Where(api.Record{"k": "a"}))
	require.NoError(t, err)
	require.Len(t, as, 2)
	assert.Equal(t, ids[0], as[0]["id"])
	assert.Equal(t, ids[2], as[1]["id"])

	r, found, err := col.FindOne(ctx, api.Where(api.Record{"n": 2}))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, ids[2], r["id"])

	none, err := col.Find(ctx, api.Where(api.Record{"k": "z"}))
	require.NoError(t, err)
	assert.Empty(t, none)

	n, err := col.DeleteMany(ctx, api.Where(api.Record{"k": "a"}))
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	rest, err := col.Find(ctx, api.Query{})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, ids[1], rest[0]["id"])
}

func TestConcurrentUpdates(t *testing.T) {

	ctx := context.Background()
	col := openCollection(t)

	id, err := col.InsertOne(ctx, api.Record{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, field := range []string{"a", "b", "c", "d"} {
		wg.Add(1)
		go func(field string) {
			defer wg.Done()
			_, _, err := col.UpdateOne(ctx, id, api.Record{field: true})
			assert.NoError(t, err)
		}(field)
	}
	wg.Wait()

	r, _, err := col.FindOne(ctx, api.ByID(id))
	require.NoError(t, err)
	assert.Equal(t, api.Record{"id": id, "a": true, "b": true, "c": true, "d": true}, r)
}

package api

import (
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuery(t *testing.T) {

	cases := []struct {
		name     string
		input    interface{}
		expected Query
	}{
		{"nil", nil, Query{Kind: Filter}},
		{"string", "x1", ByID("x1")},
		{"int", 42, ByID("42")},
		{"int64", int64(7), ByID("7")},
		{"float", 1.5, ByID("1.5")},
		{"record with id only", Record{"id": "x1"}, ByID("x1")},
		{"record with id", Record{"id": "x1", "name": "a"}, Query{Kind: FilterWithID, ID: "x1", Fields: Record{"name": "a"}}},
		{"map filter", map[string]interface{}{"name": "a"}, Query{Kind: Filter, Fields: Record{"name": "a"}}},
		{"string map", map[string]string{"name": "a"}, Query{Kind: Filter, Fields: Record{"name": "a"}}},
		{"numeric id in map", Record{"id": 3}, ByID("3")},
		{"query passthrough", ByID("y"), ByID("y")},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			q, err := ParseQuery(c.input)
			require.NoError(t, err)
			assert.Equal(t, c.expected, q)
		})
	}
}

func TestParseQuery_Invalid(t *testing.T) {

	for _, v := range []interface{}{"", []string{"a"}, true, struct{}{}} {
		_, err := ParseQuery(v)
		require.Error(t, err, "%#v", v)

		bad, ok := errors.Cause(err).(interface{ IsBadRequest() bool })
		require.True(t, ok)
		assert.True(t, bad.IsBadRequest())
	}
}

type hexID [2]byte

func (h hexID) String() string {
	return fmt.Sprintf("hexID(%x)", h[:])
}

func TestParseQuery_EmptyIdentifier(t *testing.T) {

	for name, v := range map[string]interface{}{
		"record empty id":     Record{"id": ""},
		"record nil id":       Record{"id": nil},
		"record empty id+k":   Record{"id": "", "k": "v"},
		"map empty id":        map[string]interface{}{"id": ""},
		"map nil id":          map[string]interface{}{"id": nil},
		"string map empty id": map[string]string{"id": ""},
		"record stringer id":  Record{"id": hexID{1, 2}},
	} {
		t.Run(name, func(t *testing.T) {
			q, err := ParseQuery(v)
			require.Error(t, err, "got %s", q)

			invalid, ok := errors.Cause(err).(InvalidQueryError)
			require.True(t, ok)
			assert.True(t, invalid.IsBadRequest())
		})
	}
}

func TestParseQuery_Stringer(t *testing.T) {

	_, err := ParseQuery(hexID{1, 2})
	require.Error(t, err)
	assert.True(t, errors.Cause(err).(InvalidQueryError).IsBadRequest())
}

func TestQueryMatches(t *testing.T) {

	r := Record{"name": "a", "n": 1}

	assert.True(t, Query{Kind: Filter}.Matches("x", r))
	assert.True(t, Where(Record{"name": "a"}).Matches("x", r))
	assert.True(t, Where(Record{"n": 1.0}).Matches("x", r))
	assert.False(t, Where(Record{"name": "b"}).Matches("x", r))
	assert.False(t, Where(Record{"missing": nil}).Matches("x", r))
	assert.True(t, ByID("x").Matches("x", r))
	assert.False(t, ByID("y").Matches("x", r))
	assert.False(t, Where(Record{"id": "x", "name": "b"}).Matches("x", r))
}

func TestRecordIDHelpers(t *testing.T) {

	r := Record{"id": "x1", "k": "v"}

	id, ok := r.ID()
	assert.True(t, ok)
	assert.Equal(t, "x1", id)
	assert.Equal(t, Record{"k": "v"}, r.WithoutID())
	assert.Equal(t, Record{"id": "x2", "k": "v"}, r.WithID("x2"))
	assert.Equal(t, "x1", r["id"], "helpers must not modify the receiver")

	_, ok = Record{"id": ""}.ID()
	assert.False(t, ok)
}

func TestEqual(t *testing.T) {

	assert.True(t, Equal(1, 1.0))
	assert.True(t, Equal(int64(3), uint8(3)))
	assert.False(t, Equal(1, "1"))
	assert.True(t, Equal(map[string]interface{}{"a": 1}, Record{"a": 1.0}))
	assert.False(t, Equal(Record{"a": 1}, Record{"a": 1, "b": 2}))
	assert.True(t, Equal([]interface{}{1, "x"}, []interface{}{1.0, "x"}))
	assert.False(t, Equal([]interface{}{1}, []interface{}{1, 2}))
	assert.True(t, Equal(nil, nil))
}

func TestParseObjectRef(t *testing.T) {

	ref, ok := ParseObjectRef("/test/doc1")
	require.True(t, ok)
	assert.True(t, ref.IsRecord())
	assert.Equal(t, "test", ref.Collection())
	assert.Equal(t, "doc1", ref.ID())

	ref, ok = ParseObjectRef("/test/")
	require.True(t, ok)
	assert.False(t, ref.IsRecord())
	assert.Equal(t, "", ref.ID())

	for _, p := range []string{"", "/", "/a//b", "/a/b/c"} {
		_, ok := ParseObjectRef(p)
		assert.False(t, ok, p)
	}
}

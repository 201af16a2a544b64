package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xdbsoft/docstore/api"
)

func TestIsVariable(t *testing.T) {

	ok, name := isVariable("{id}")
	assert.True(t, ok)
	assert.Equal(t, "id", name)

	for _, s := range []string{"{}", "id", "{id", "id}"} {
		ok, _ := isVariable(s)
		assert.False(t, ok, s)
	}
}

func TestCheck(t *testing.T) {

	c := NewChecker([]Rule{
		{
			Path: "private/{id}",
			Allow: []Allow{
				{Methods: []Method{READ, WRITE}, If: `user.id == "u1"`},
			},
		},
		{
			Path: "notes/{id}",
			Allow: []Allow{
				{Methods: []Method{READ}},
				{Methods: []Method{WRITE, DELETE}, If: `path.id == user.id`},
			},
		},
	})

	u1 := api.User{ID: "u1"}
	u2 := api.User{ID: "u2"}

	cases := []struct {
		target   api.ObjectRef
		user     api.User
		method   Method
		expected bool
	}{
		{api.ObjectRef{"private", "doc"}, u1, READ, true},
		{api.ObjectRef{"private", "doc"}, u2, READ, false},
		{api.ObjectRef{"private"}, u1, WRITE, true},
		{api.ObjectRef{"private"}, api.User{}, WRITE, false},
		{api.ObjectRef{"private", "doc"}, u1, DELETE, false},
		{api.ObjectRef{"notes", "u2"}, u1, READ, true},
		{api.ObjectRef{"notes", "u2"}, u2, WRITE, true},
		{api.ObjectRef{"notes", "u2"}, u1, WRITE, false},
		{api.ObjectRef{"notes", "u1"}, u1, DELETE, true},
		{api.ObjectRef{"open", "doc"}, api.User{}, DELETE, true},
	}

	for i, tc := range cases {
		ok, err := c.Check(tc.target, tc.user, tc.method)
		require.NoError(t, err, "case %d", i)
		assert.Equal(t, tc.expected, ok, "case %d: %s %s by %s", i, tc.method, tc.target, tc.user)
	}
}

func TestCheck_InvalidCondition(t *testing.T) {

	c := NewChecker([]Rule{
		{Path: "test/{id}", Allow: []Allow{{Methods: []Method{READ}, If: `"not a boolean"`}}},
	})

	_, err := c.Check(api.ObjectRef{"test", "doc"}, api.User{}, READ)
	assert.Error(t, err)
}

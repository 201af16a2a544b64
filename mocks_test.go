package docstore

import (
	"context"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/xdbsoft/docstore/api"
)

type mockedAuthenticator struct{}

func (a mockedAuthenticator) Authenticate(r *http.Request) (api.User, error) {
	formBearer := r.FormValue("auth")
	if len(formBearer) == 0 {
		return api.User{}, nil
	}

	tokens := strings.Split(formBearer, "|")
	if len(tokens) != 3 {
		return api.User{}, notAuthorizedError{}
	}

	return api.User{
		ID:    tokens[0],
		Name:  tokens[1],
		Email: tokens[2],
	}, nil
}

// countingDriver wraps a driver, counts connection attempts and fails the
// first `failures` of them.
type countingDriver struct {
	inner    api.Driver
	failures int32
	attempts int32
}

func (d *countingDriver) Name() string { return "counting" }

func (d *countingDriver) Connect(ctx context.Context, target api.Target) (api.Conn, error) {
	n := atomic.AddInt32(&d.attempts, 1)
	if n <= atomic.LoadInt32(&d.failures) {
		return nil, errors.New("connection refused")
	}
	return d.inner.Connect(ctx, target)
}

// failingDriver returns collections whose updates fail for the given ids
type failingDriver struct {
	inner api.Driver
	fail  map[string]bool
}

func (d failingDriver) Name() string { return "failing" }

func (d failingDriver) Connect(ctx context.Context, target api.Target) (api.Conn, error) {
	c, err := d.inner.Connect(ctx, target)
	if err != nil {
		return nil, err
	}
	return failingConn{Conn: c, fail: d.fail}, nil
}

type failingConn struct {
	api.Conn
	fail map[string]bool
}

func (c failingConn) Collection(name string) api.Collection {
	return failingCollection{Collection: c.Conn.Collection(name), fail: c.fail}
}

type failingCollection struct {
	api.Collection
	fail map[string]bool
}

func (c failingCollection) UpdateOne(ctx context.Context, id string, fields api.Record) (int64, int64, error) {
	if c.fail[id] {
		return 0, 0, errors.Errorf("write conflict on %s", id)
	}
	return c.Collection.UpdateOne(ctx, id, fields)
}

func (c failingCollection) InsertOne(ctx context.Context, r api.Record) (string, error) {
	if c.fail["insert"] {
		return "", errors.New("disk full")
	}
	return c.Collection.InsertOne(ctx, r)
}


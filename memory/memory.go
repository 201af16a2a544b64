// Package memory implements an in-process document store. Data is lost on
// restart. Safe for concurrent use.
package memory

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/xid"

	"github.com/xdbsoft/docstore/api"
)

// Shared is the driver used by the "memory" backend, so that every service of
// a process sees the same databases.
var Shared = NewDriver()

// Driver keeps databases in memory, named after Target.Database or, when
// empty, Target.URI.
type Driver struct {
	mu  sync.Mutex
	dbs map[string]*database
}

// NewDriver returns a driver with no database
func NewDriver() *Driver {
	return &Driver{dbs: make(map[string]*database)}
}

func (d *Driver) Name() string {
	return "memory"
}

func (d *Driver) Connect(ctx context.Context, target api.Target) (api.Conn, error) {

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name := target.Database
	if len(name) == 0 {
		name = target.URI
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	db, ok := d.dbs[name]
	if !ok {
		db = &database{collections: make(map[string]*collection)}
		d.dbs[name] = db
	}

	return &conn{db: db}, nil
}

type database struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

type collection struct {
	order   []string
	records map[string]api.Record
}

var errClosed = errors.New("connection closed")

type conn struct {
	db     *database
	mu     sync.RWMutex
	closed bool
}

func (c *conn) Collection(name string) api.Collection {
	return &handle{conn: c, name: name}
}

func (c *conn) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *conn) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errClosed
	}
	return nil
}

type handle struct {
	conn *conn
	name string
}

// get returns the collection, creating it when create is set. The database
// lock must be held.
func (h *handle) get(create bool) *collection {
	col, ok := h.conn.db.collections[h.name]
	if !ok && create {
		col = &collection{records: make(map[string]api.Record)}
		h.conn.db.collections[h.name] = col
	}
	return col
}

func (h *handle) FindOne(ctx context.Context, q api.Query) (api.Record, bool, error) {

	if err := h.conn.check(ctx); err != nil {
		return nil, false, err
	}

	db := h.conn.db
	db.mu.RLock()
	defer db.mu.RUnlock()

	col := h.get(false)
	if col == nil {
		return nil, false, nil
	}

	if q.HasID() {
		r, ok := col.records[q.ID]
		if !ok || !q.Matches(q.ID, r) {
			return nil, false, nil
		}
		return copyRecord(r).WithID(q.ID), true, nil
	}

	for _, id := range col.order {
		if r := col.records[id]; q.Matches(id, r) {
			return copyRecord(r).WithID(id), true, nil
		}
	}

	return nil, false, nil
}

func (h *handle) Find(ctx context.Context, q api.Query) ([]api.Record, error) {

	if err := h.conn.check(ctx); err != nil {
		return nil, err
	}

	db := h.conn.db
	db.mu.RLock()
	defer db.mu.RUnlock()

	result := []api.Record{}

	col := h.get(false)
	if col == nil {
		return result, nil
	}

	for _, id := range col.order {
		if r := col.records[id]; q.Matches(id, r) {
			result = append(result, copyRecord(r).WithID(id))
		}
	}

	return result, nil
}

func (h *handle) InsertOne(ctx context.Context, r api.Record) (string, error) {

	ids, err := h.InsertMany(ctx, []api.Record{r})
	if err != nil {
		return "", err
	}

	return ids[0], nil
}

func (h *handle) InsertMany(ctx context.Context, rs []api.Record) ([]string, error) {

	if err := h.conn.check(ctx); err != nil {
		return nil, err
	}

	db := h.conn.db
	db.mu.Lock()
	defer db.mu.Unlock()

	col := h.get(true)

	ids := make([]string, len(rs))
	for i, r := range rs {
		id := xid.New().String()
		col.records[id] = copyRecord(r.WithoutID())
		col.order = append(col.order, id)
		ids[i] = id
	}

	return ids, nil
}

func (h *handle) UpdateOne(ctx context.Context, id string, fields api.Record) (int64, int64, error) {

	if err := h.conn.check(ctx); err != nil {
		return 0, 0, err
	}

	db := h.conn.db
	db.mu.Lock()
	defer db.mu.Unlock()

	col := h.get(false)
	if col == nil {
		return 0, 0, nil
	}

	r, ok := col.records[id]
	if !ok {
		return 0, 0, nil
	}

	var modified int64
	for k, v := range fields {
		if k == api.IDField {
			continue
		}
		if stored, ok := r[k]; ok && api.Equal(stored, v) {
			continue
		}
		r[k] = copyValue(v)
		modified = 1
	}

	return 1, modified, nil
}

func (h *handle) DeleteOne(ctx context.Context, id string) (int64, error) {

	if err := h.conn.check(ctx); err != nil {
		return 0, err
	}

	db := h.conn.db
	db.mu.Lock()
	defer db.mu.Unlock()

	col := h.get(false)
	if col == nil {
		return 0, nil
	}

	if _, ok := col.records[id]; !ok {
		return 0, nil
	}

	col.remove(id)

	return 1, nil
}

func (h *handle) DeleteMany(ctx context.Context, q api.Query) (int64, error) {

	if err := h.conn.check(ctx); err != nil {
		return 0, err
	}

	db := h.conn.db
	db.mu.Lock()
	defer db.mu.Unlock()

	col := h.get(false)
	if col == nil {
		return 0, nil
	}

	var matching []string
	for _, id := range col.order {
		if q.Matches(id, col.records[id]) {
			matching = append(matching, id)
		}
	}

	for _, id := range matching {
		col.remove(id)
	}

	return int64(len(matching)), nil
}

func (c *collection) remove(id string) {
	delete(c.records, id)
	for i, o := range c.order {
		if o == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// copyRecord returns a deep copy of the mappings and sequences of r, leaving
// scalar values shared.
func copyRecord(r api.Record) api.Record {
	c := make(api.Record, len(r))
	for k, v := range r {
		c[k] = copyValue(v)
	}
	return c
}

func copyValue(v interface{}) interface{} {
	switch t := v.(type) {
	case api.Record:
		return copyRecord(t)
	case map[string]interface{}:
		return map[string]interface{}(copyRecord(api.Record(t)))
	case []interface{}:
		c := make([]interface{}, len(t))
		for i := range t {
			c[i] = copyValue(t[i])
		}
		return c
	}
	return v
}

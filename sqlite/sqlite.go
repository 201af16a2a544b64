// Package sqlite stores records as JSON text in a SQLite database file.
// Filters are evaluated on decoded records, which keeps the comparison rules
// identical to the memory backend.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/rs/xid"

	_ "github.com/mattn/go-sqlite3"

	"github.com/xdbsoft/docstore/api"
)

const schema = `
CREATE TABLE IF NOT EXISTS t_record (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	content    TEXT NOT NULL,
	created    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (collection, id)
);
`

// Driver opens the database file named by Target.URI (":memory:" works for a
// process local store).
type Driver struct{}

func (Driver) Name() string {
	return "sqlite"
}

func (Driver) Connect(ctx context.Context, target api.Target) (api.Conn, error) {

	if len(target.URI) == 0 {
		return nil, errors.New("missing database file")
	}

	db, err := sql.Open("sqlite3", target.URI)
	if err != nil {
		return nil, errors.Wrap(err, "unable to open database")
	}
	// SQLite allows a single writer; serialize access instead of failing with
	// "database is locked".
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "unable to create schema")
	}

	return &conn{db: db}, nil
}

type conn struct {
	db *sql.DB
}

func (c *conn) Collection(name string) api.Collection {
	return &collection{db: c.db, name: name}
}

func (c *conn) Close(ctx context.Context) error {
	return c.db.Close()
}

type collection struct {
	db   *sql.DB
	name string
}

type row struct {
	id     string
	record api.Record
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func (c *collection) scan(ctx context.Context, db querier, q api.Query) ([]row, error) {

	stmt := "SELECT id, content FROM t_record WHERE collection = ?"
	args := []interface{}{c.name}
	if q.HasID() {
		stmt += " AND id = ?"
		args = append(args, q.ID)
	}
	stmt += " ORDER BY seq"

	rows, err := db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, errors.Wrap(err, "select failed")
	}
	defer rows.Close()

	var result []row
	for rows.Next() {
		var id, content string
		if err := rows.Scan(&id, &content); err != nil {
			return nil, errors.Wrap(err, "scan failed")
		}

		r := make(api.Record)
		if err := json.Unmarshal([]byte(content), &r); err != nil {
			return nil, errors.Wrapf(err, "unable to decode record %s", id)
		}

		if q.Matches(id, r) {
			result = append(result, row{id: id, record: r})
		}
	}

	return result, errors.Wrap(rows.Err(), "select failed")
}

func (c *collection) FindOne(ctx context.Context, q api.Query) (api.Record, bool, error) {

	rows, err := c.scan(ctx, c.db, q)
	if err != nil {
		return nil, false, err
	}
	if len(rows) == 0 {
		return nil, false, nil
	}

	return rows[0].record.WithID(rows[0].id), true, nil
}

func (c *collection) Find(ctx context.Context, q api.Query) ([]api.Record, error) {

	rows, err := c.scan(ctx, c.db, q)
	if err != nil {
		return nil, err
	}

	result := make([]api.Record, len(rows))
	for i, r := range rows {
		result[i] = r.record.WithID(r.id)
	}

	return result, nil
}

func (c *collection) InsertOne(ctx context.Context, r api.Record) (string, error) {

	ids, err := c.InsertMany(ctx, []api.Record{r})
	if err != nil {
		return "", err
	}

	return ids[0], nil
}

func (c *collection) InsertMany(ctx context.Context, rs []api.Record) ([]string, error) {

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "unable to begin transaction")
	}
	defer tx.Rollback()

	ids := make([]string, len(rs))
	for i, r := range rs {
		b, err := json.Marshal(r.WithoutID())
		if err != nil {
			return nil, errors.Wrapf(err, "unable to encode record %d", i)
		}

		ids[i] = xid.New().String()
		if _, err := tx.ExecContext(ctx, "INSERT INTO t_record (collection, id, content) VALUES (?, ?, ?)", c.name, ids[i], string(b)); err != nil {
			return nil, errors.Wrapf(err, "unable to insert record %d", i)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "unable to commit inserts")
	}

	return ids, nil
}

func (c *collection) UpdateOne(ctx context.Context, id string, fields api.Record) (int64, int64, error) {

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, errors.Wrap(err, "unable to begin transaction")
	}
	defer tx.Rollback()

	rows, err := c.scan(ctx, tx, api.ByID(id))
	if err != nil {
		return 0, 0, err
	}
	if len(rows) == 0 {
		return 0, 0, nil
	}

	r := rows[0].record
	changed := false
	for k, v := range fields {
		if k == api.IDField {
			continue
		}
		if stored, ok := r[k]; ok && api.Equal(stored, v) {
			continue
		}
		r[k] = v
		changed = true
	}
	if !changed {
		return 1, 0, nil
	}

	b, err := json.Marshal(r)
	if err != nil {
		return 0, 0, errors.Wrap(err, "unable to encode record")
	}

	if _, err := tx.ExecContext(ctx, "UPDATE t_record SET content = ?, updated = CURRENT_TIMESTAMP WHERE collection = ? AND id = ?", string(b), c.name, id); err != nil {
		return 0, 0, errors.Wrap(err, "unable to update record")
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, errors.Wrap(err, "unable to commit update")
	}

	return 1, 1, nil
}

func (c *collection) DeleteOne(ctx context.Context, id string) (int64, error) {

	res, err := c.db.ExecContext(ctx, "DELETE FROM t_record WHERE collection = ? AND id = ?", c.name, id)
	if err != nil {
		return 0, errors.Wrap(err, "unable to delete record")
	}

	n, err := res.RowsAffected()
	return n, errors.Wrap(err, "unable to count deleted records")
}

func (c *collection) DeleteMany(ctx context.Context, q api.Query) (int64, error) {

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "unable to begin transaction")
	}
	defer tx.Rollback()

	rows, err := c.scan(ctx, tx, q)
	if err != nil {
		return 0, err
	}

	for _, r := range rows {
		if _, err := tx.ExecContext(ctx, "DELETE FROM t_record WHERE collection = ? AND id = ?", c.name, r.id); err != nil {
			return 0, errors.Wrapf(err, "unable to delete record %s", r.id)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "unable to commit deletes")
	}

	return int64(len(rows)), nil
}

// Package postgresql stores records as jsonb rows of a single t_record table,
// keyed by collection and xid identifier.
package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/xid"

	//we expect to depend on specific behaviour of github.com/lib/pq
	_ "github.com/lib/pq"

	"github.com/xdbsoft/docstore/api"
)

// Driver connects with a lib/pq connection string such as
// "user=nestor password=nestor dbname=nestor sslmode=disable". Target.Database
// is not used, the database is part of the connection string.
type Driver struct{}

func (Driver) Name() string {
	return "postgresql"
}

func (Driver) Connect(ctx context.Context, target api.Target) (api.Conn, error) {

	db, err := sql.Open("postgres", target.URI)
	if err != nil {
		return nil, errors.Wrap(err, "unable to connect")
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "unable to reach server")
	}

	c := &conn{db: db}
	if err := c.init(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return c, nil
}

type conn struct {
	db *sql.DB
}

func (c *conn) init(ctx context.Context) error {
	// Check if tables exists, if not create them
	var found sql.NullString
	if err := c.db.QueryRowContext(ctx, "SELECT to_regclass('t_record')").Scan(&found); err != nil {
		return errors.Wrap(err, "Select query for t_record failed")
	}
	if !found.Valid || len(found.String) == 0 {
		if _, err := c.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS t_record (
			collection text NOT NULL,
			id         character varying(126) NOT NULL,
			content    jsonb NOT NULL,
			created    timestamp with time zone NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated    timestamp with time zone NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT t_record_pkey PRIMARY KEY (collection, id)
		)`); err != nil {
			return errors.Wrap(err, "CREATE TABLE t_record failed")
		}
	}
	return nil
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

// where builds the condition selecting the records of q. Scalar field filters
// use jsonb containment; arrays and objects are compared with jsonb equality
// so that a stored superset does not match.
func (c *collection) where(q api.Query) (string, []interface{}, error) {

	conditions := []string{"collection=$1"}
	args := []interface{}{c.name}

	if q.HasID() {
		args = append(args, q.ID)
		conditions = append(conditions, fmt.Sprintf("id=$%d", len(args)))
	}

	scalars := make(map[string]interface{})
	for _, k := range q.Fields.Fields() {
		v := q.Fields[k]
		if !isCompound(v) {
			scalars[k] = v
			continue
		}
		b, err := json.Marshal(v)
		if err != nil {
			return "", nil, errors.Wrapf(err, "unable to encode filter on %s", k)
		}
		args = append(args, k, string(b))
		conditions = append(conditions, fmt.Sprintf("content->($%d::text) = $%d::jsonb", len(args)-1, len(args)))
	}

	if len(scalars) > 0 {
		b, err := json.Marshal(scalars)
		if err != nil {
			return "", nil, errors.Wrap(err, "unable to encode filter")
		}
		args = append(args, string(b))
		conditions = append(conditions, fmt.Sprintf("content @> $%d::jsonb", len(args)))
	}

	return strings.Join(conditions, " AND "), args, nil
}

func isCompound(v interface{}) bool {
	switch v.(type) {
	case map[string]interface{}, api.Record, []interface{}:
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		return true
	}
	return false
}

func (c *collection) query(ctx context.Context, q api.Query, limit int) ([]api.Record, error) {

	cond, args, err := c.where(q)
	if err != nil {
		return nil, err
	}

	stmt := "SELECT id, content FROM t_record WHERE " + cond + " ORDER BY created, id"
	if limit > 0 {
		stmt += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := c.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, errors.Wrap(err, "DB query failed")
	}
	defer rows.Close()

	result := []api.Record{}
	for rows.Next() {
		var id string
		var b []byte
		if err := rows.Scan(&id, &b); err != nil {
			return nil, errors.Wrap(err, "DB retrieval failed")
		}

		content := make(api.Record)
		if err := json.Unmarshal(b, &content); err != nil {
			return nil, errors.Wrap(err, "DB decoding failed")
		}
		content[api.IDField] = id

		result = append(result, content)
	}

	return result, errors.Wrap(rows.Err(), "DB retrieval failed")
}

func (c *collection) FindOne(ctx context.Context, q api.Query) (api.Record, bool, error) {

	result, err := c.query(ctx, q, 1)
	if err != nil {
		return nil, false, err
	}
	if len(result) == 0 {
		return nil, false, nil
	}

	return result[0], true, nil
}

func (c *collection) Find(ctx context.Context, q api.Query) ([]api.Record, error) {
	return c.query(ctx, q, 0)
}

func (c *collection) InsertOne(ctx context.Context, r api.Record) (string, error) {

	id := xid.New().String()

	b, err := json.Marshal(r.WithoutID())
	if err != nil {
		return "", errors.Wrap(err, "unable to encode payload")
	}

	if _, err := c.db.ExecContext(ctx, "INSERT INTO t_record (collection, id, content) VALUES ($1,$2,$3)", c.name, id, string(b)); err != nil {
		return "", errors.Wrap(err, "unable to insert record")
	}

	return id, nil
}

func (c *collection) InsertMany(ctx context.Context, rs []api.Record) ([]string, error) {

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "unable to begin transaction")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO t_record (collection, id, content) VALUES ($1,$2,$3)")
	if err != nil {
		return nil, errors.Wrap(err, "unable to prepare insert")
	}
	defer stmt.Close()

	ids := make([]string, len(rs))
	for i, r := range rs {
		b, err := json.Marshal(r.WithoutID())
		if err != nil {
			return nil, errors.Wrapf(err, "unable to encode payload %d", i)
		}

		ids[i] = xid.New().String()
		if _, err := stmt.ExecContext(ctx, c.name, ids[i], string(b)); err != nil {
			return nil, errors.Wrapf(err, "unable to insert record %d", i)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "unable to commit inserts")
	}

	return ids, nil
}

func (c *collection) UpdateOne(ctx context.Context, id string, fields api.Record) (int64, int64, error) {

	b, err := json.Marshal(fields.WithoutID())
	if err != nil {
		return 0, 0, errors.Wrap(err, "unable to encode payload")
	}

	res, err := c.db.ExecContext(ctx, `UPDATE t_record SET content = (content || $1::jsonb), updated=CURRENT_TIMESTAMP
		WHERE collection=$2 AND id=$3 AND (content || $1::jsonb) IS DISTINCT FROM content`, string(b), c.name, id)
	if err != nil {
		return 0, 0, errors.Wrap(err, "unable to update record")
	}

	modified, err := res.RowsAffected()
	if err != nil {
		return 0, 0, errors.Wrap(err, "unable to count updated records")
	}
	if modified > 0 {
		return modified, modified, nil
	}

	var exists bool
	if err := c.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM t_record WHERE collection=$1 AND id=$2)", c.name, id).Scan(&exists); err != nil {
		return 0, 0, errors.Wrap(err, "unable to check record existence")
	}
	if exists {
		return 1, 0, nil
	}

	return 0, 0, nil
}

func (c *collection) DeleteOne(ctx context.Context, id string) (int64, error) {

	res, err := c.db.ExecContext(ctx, "DELETE FROM t_record where collection=$1 and id=$2", c.name, id)
	if err != nil {
		return 0, errors.Wrap(err, "unable to delete record")
	}

	n, err := res.RowsAffected()
	return n, errors.Wrap(err, "unable to count deleted records")
}

func (c *collection) DeleteMany(ctx context.Context, q api.Query) (int64, error) {

	cond, args, err := c.where(q)
	if err != nil {
		return 0, err
	}

	res, err := c.db.ExecContext(ctx, "DELETE FROM t_record WHERE "+cond, args...)
	if err != nil {
		return 0, errors.Wrap(err, "unable to delete records")
	}

	n, err := res.RowsAffected()
	return n, errors.Wrap(err, "unable to count deleted records")
}

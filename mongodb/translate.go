package mongodb

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/xdbsoft/docstore/api"
)

const idKey = "_id"

// nativeID converts an identifier back to an ObjectID. Identifiers that are not
// ObjectIDs are kept as strings, they simply match nothing unless documents
// were stored with string _ids.
func nativeID(id string) interface{} {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return oid
	}
	return id
}

func formatID(v interface{}) string {
	switch id := v.(type) {
	case primitive.ObjectID:
		return id.Hex()
	case string:
		return id
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}

func filter(q api.Query) bson.M {
	f := bson.M{}
	for k, v := range q.Fields {
		f[k] = v
	}
	if q.HasID() {
		f[idKey] = nativeID(q.ID)
	}
	return f
}

func toDocument(r api.Record) bson.M {
	doc := make(bson.M, len(r))
	for k, v := range r {
		if k == api.IDField || k == idKey {
			continue
		}
		doc[k] = v
	}
	return doc
}

func fromDocument(doc bson.M) api.Record {
	r := make(api.Record, len(doc))
	for k, v := range doc {
		if k == idKey {
			continue
		}
		r[k] = fromValue(v)
	}
	r[api.IDField] = formatID(doc[idKey])
	return r
}

func fromValue(v interface{}) interface{} {
	switch t := v.(type) {
	case primitive.M:
		m := make(map[string]interface{}, len(t))
		for k, e := range t {
			m[k] = fromValue(e)
		}
		return m
	case primitive.D:
		m := make(map[string]interface{}, len(t))
		for _, e := range t {
			m[e.Key] = fromValue(e.Value)
		}
		return m
	case primitive.A:
		a := make([]interface{}, len(t))
		for i, e := range t {
			a[i] = fromValue(e)
		}
		return a
	case primitive.ObjectID:
		return t.Hex()
	case primitive.DateTime:
		return t.Time().UTC()
	}
	return v
}

package api

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"
)

//QueryKind tells how a query selects records
type QueryKind int

const (
	// Filter selects records whose fields equal the given ones.
	Filter QueryKind = iota
	// BareID selects the record with the given identifier.
	BareID
	// FilterWithID selects the record with the given identifier when its
	// fields also equal the given ones.
	FilterWithID
)

func (k QueryKind) String() string {
	switch k {
	case BareID:
		return "id"
	case FilterWithID:
		return "filter+id"
	default:
		return "filter"
	}
}

//Query is a normalized selector. Drivers translate it into a filter keyed on
//their native identifier.
type Query struct {
	Kind   QueryKind
	ID     string
	Fields Record
}

//ByID builds a query selecting a single identifier
func ByID(id string) Query {
	return Query{Kind: BareID, ID: id}
}

//Where builds a query from a filter mapping. An `id` entry in the mapping
//turns it into a FilterWithID query. ParseQuery also rejects mappings whose
//`id` entry is empty.
func Where(filter Record) Query {
	id, hasID := filter.ID()
	fields := filter.WithoutID()
	if !hasID {
		return Query{Kind: Filter, Fields: fields}
	}
	if len(fields) == 0 {
		return ByID(id)
	}
	return Query{Kind: FilterWithID, ID: id, Fields: fields}
}

//HasID returns whether the query is keyed on an identifier
func (q Query) HasID() bool {
	return q.Kind == BareID || q.Kind == FilterWithID
}

func (q Query) String() string {
	switch q.Kind {
	case BareID:
		return "id=" + q.ID
	case FilterWithID:
		return fmt.Sprintf("id=%s %v", q.ID, map[string]interface{}(q.Fields))
	default:
		return fmt.Sprintf("%v", map[string]interface{}(q.Fields))
	}
}

//Matches reports whether a record carrying id satisfies the query. Field values
//are compared with Equal.
func (q Query) Matches(id string, r Record) bool {
	if q.HasID() && q.ID != id {
		return false
	}
	for k, v := range q.Fields {
		stored, ok := r[k]
		if !ok || !Equal(stored, v) {
			return false
		}
	}
	return true
}

//InvalidQueryError is returned by ParseQuery for inputs that are neither an
//identifier nor a mapping
type InvalidQueryError struct {
	Value  interface{}
	Reason string
}

func (err InvalidQueryError) Error() string {
	if len(err.Reason) > 0 {
		return "invalid query: " + err.Reason
	}
	return fmt.Sprintf("invalid query of type %T", err.Value)
}

//IsBadRequest marks the error as caused by the caller
func (err InvalidQueryError) IsBadRequest() bool {
	return true
}

//ParseQuery resolves a loosely typed query (bare identifier, mapping with an
//`id` field, or raw filter) into a Query. A nil value selects everything.
func ParseQuery(v interface{}) (Query, error) {
	switch q := v.(type) {
	case nil:
		return Query{Kind: Filter}, nil
	case Query:
		return q, nil
	case string:
		if len(q) == 0 {
			return Query{}, errors.WithStack(InvalidQueryError{Value: q})
		}
		return ByID(q), nil
	case Record:
		return parseMapping(q)
	case map[string]interface{}:
		return parseMapping(Record(q))
	case map[string]string:
		r := make(Record, len(q))
		for k, v := range q {
			r[k] = v
		}
		return parseMapping(r)
	}
	if id := formatID(v); len(id) > 0 {
		return ByID(id), nil
	}
	return Query{}, errors.WithStack(InvalidQueryError{Value: v})
}

// parseMapping rejects a mapping whose `id` key is present without a usable
// identifier, which Where would otherwise turn into a plain field filter.
func parseMapping(r Record) (Query, error) {
	if v, present := r[IDField]; present {
		if _, ok := r.ID(); !ok {
			return Query{}, errors.WithStack(InvalidQueryError{Value: v, Reason: "empty or unsupported identifier"})
		}
	}
	return Where(r), nil
}

func formatID(v interface{}) string {
	switch n := v.(type) {
	case int:
		return strconv.Itoa(n)
	case int8, int16, int32, int64:
		return fmt.Sprintf("%d", n)
	case uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", n)
	case float32:
		return strconv.FormatFloat(float64(n), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return ""
}

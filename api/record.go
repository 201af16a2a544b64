package api

import (
	"sort"
)

// IDField is the name of the identifier field of every record crossing the
// adapter boundary.
const IDField = "id"

//Record represents one stored document, keyed by field name
type Record map[string]interface{}

//ID returns the string identifier carried by the record, if any
func (r Record) ID() (string, bool) {
	v, ok := r[IDField]
	if !ok || v == nil {
		return "", false
	}
	id, ok := v.(string)
	if !ok {
		id = formatID(v)
	}
	return id, len(id) > 0
}

//WithoutID returns a shallow copy of the record without its identifier field
func (r Record) WithoutID() Record {
	c := make(Record, len(r))
	for k, v := range r {
		if k == IDField {
			continue
		}
		c[k] = v
	}
	return c
}

//WithID returns a shallow copy of the record carrying the given identifier
func (r Record) WithID(id string) Record {
	c := make(Record, len(r)+1)
	for k, v := range r {
		c[k] = v
	}
	c[IDField] = id
	return c
}

//Fields returns the sorted field names of the record
func (r Record) Fields() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

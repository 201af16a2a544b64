package api

import (
	"strings"
)

//ObjectRef addresses either a collection (one segment) or a record inside a
//collection (two segments)
type ObjectRef []string

//ParseObjectRef splits a URL path into an ObjectRef. It returns false when the
//path is empty, has empty segments or is deeper than a record.
func ParseObjectRef(path string) (ObjectRef, bool) {
	path = strings.TrimPrefix(path, "/")
	path = strings.TrimSuffix(path, "/")
	if len(path) == 0 {
		return nil, false
	}
	items := strings.Split(path, "/")
	if len(items) > 2 {
		return nil, false
	}
	for _, item := range items {
		if len(item) == 0 {
			return nil, false
		}
	}
	return ObjectRef(items), true
}

func (o ObjectRef) String() string {
	return strings.Join(o, "/")
}

//IsRecord returns whether the reference targets a single record
func (o ObjectRef) IsRecord() bool {
	return len(o) == 2
}

//Collection returns the collection name
func (o ObjectRef) Collection() string {
	if len(o) == 0 {
		return ""
	}
	return o[0]
}

//ID returns the record identifier, or an empty string for a collection
func (o ObjectRef) ID() string {
	if !o.IsRecord() {
		return ""
	}
	return o[1]
}

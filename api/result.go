package api

import (
	"encoding/json"
)

//Status is the outcome of a write on one record
type Status int

const (
	// Applied means the write changed the record identified by WriteResult.ID.
	Applied Status = iota + 1
	// NoOp means the write matched no record or changed nothing.
	NoOp
	// Failed is only used inside batch results collected with the Settle policy.
	Failed
)

func (s Status) String() string {
	switch s {
	case Applied:
		return "applied"
	case NoOp:
		return "noop"
	case Failed:
		return "failed"
	}
	return "unknown"
}

//MarshalJSON encodes the status by name
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

//WriteResult is the outcome of an update or a removal
type WriteResult struct {
	ID     string `json:"id"`
	Status Status `json:"status"`
	Err    error  `json:"-"`
}

//AppliedTo builds the result of a write that changed the record id
func AppliedTo(id string) WriteResult {
	return WriteResult{ID: id, Status: Applied}
}

//NoOpOn builds the result of a write on id that changed nothing
func NoOpOn(id string) WriteResult {
	return WriteResult{ID: id, Status: NoOp}
}

//IsNoOp returns whether the write changed nothing
func (r WriteResult) IsNoOp() bool {
	return r.Status == NoOp
}

//IsApplied returns whether the write changed a record
func (r WriteResult) IsApplied() bool {
	return r.Status == Applied
}

package rules

// Rule grants methods on the records whose reference matches Path. Path
// segments written {name} match anything and expose the matched value to
// conditions as path.name. A collection-wide request is matched as the record
// "*" of the collection.
type Rule struct {
	Path  string  `json:"path"`
	Allow []Allow `json:"allow"`
}

// Allow lists methods permitted when If, a gript boolean expression over
// `path`, `user` and `method`, holds. An empty If always holds.
type Allow struct {
	Methods []Method `json:"methods"`
	If      string   `json:"if"`
}

type Method string

const (
	READ   Method = "READ"
	WRITE  Method = "WRITE"
	DELETE Method = "DELETE"
)

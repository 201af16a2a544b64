package docstore

import (
	"fmt"

	"github.com/xdbsoft/docstore/api"
	"github.com/xdbsoft/docstore/memory"
	"github.com/xdbsoft/docstore/mongodb"
	"github.com/xdbsoft/docstore/postgresql"
	"github.com/xdbsoft/docstore/sqlite"
)

// NewDriver returns the driver of the named backend.
//
// Supported backends:
//
//	"mongodb"    - MongoDB, Store.URI is a mongodb:// connection string
//	"postgresql" - PostgreSQL, Store.URI is a lib/pq connection string
//	"sqlite"     - SQLite, Store.URI is the database file
//	"memory"     - process wide in-memory store (default)
func NewDriver(backend string) (api.Driver, error) {
	switch backend {
	case "mongodb":
		return mongodb.Driver{}, nil
	case "postgresql":
		return postgresql.Driver{}, nil
	case "sqlite":
		return sqlite.Driver{}, nil
	case "memory", "":
		return memory.Shared, nil
	default:
		return nil, badRequest(fmt.Sprintf("unknown store backend: %q (supported: mongodb, postgresql, sqlite, memory)", backend))
	}
}

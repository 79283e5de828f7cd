// Package introspect contains the introspecter interface that reads the §3
// schema descriptor from a live database connection, adapted from the
// teacher's introspect registry (same register-by-dialect pattern), now
// keyed by the much smaller schema.Database this repo's rules consume
// instead of full DDL.
package introspect

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"etm/internal/schema"
)

// Dialect names a supported live schema source.
type Dialect string

const (
	DialectSQLite Dialect = "sqlite"
	DialectMySQL  Dialect = "mysql"
)

// Introspecter reads every table this database exposes into a
// schema.Database.
type Introspecter interface {
	Introspect(ctx context.Context, db *sql.DB) (*schema.Database, error)
}

var (
	registry = make(map[Dialect]func() Introspecter)
	mu       sync.RWMutex
)

// Register is called from each dialect package's init(), mirroring the
// teacher's introspect.Register.
func Register(dialect Dialect, fn func() Introspecter) {
	mu.Lock()
	defer mu.Unlock()
	registry[dialect] = fn
}

func New(dialect Dialect) (Introspecter, error) {
	mu.RLock()
	fn, ok := registry[dialect]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("introspect: unsupported dialect %q", dialect)
	}
	return fn(), nil
}

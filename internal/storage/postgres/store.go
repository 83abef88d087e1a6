// Package postgres is the production storage implementation. The ledger
// batch uniqueness constraint lives here: splitting idempotency is a
// storage-level "insert, on conflict return existing", never an
// application-level lock.
package postgres

import (
	"database/sql"
)

// Store serves all storage interfaces off one *sql.DB. lib/pq's pool is
// safe for concurrent use.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

package sqlite

import (
	"database/sql"

	"github.com/mtorresweb/spotlight-server/internal/store"
)

// tx implements store.Tx over one IMMEDIATE transaction. Its methods live
// next to the matching Store reads in users.go, posts.go, relations.go and
// comments.go.
type tx struct {
	q *sql.Tx
}

var _ store.Tx = (*tx)(nil)

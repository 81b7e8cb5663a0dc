package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/convomesh/memoryd/internal/store"
)

// sqlxTx adapts *sqlx.Tx to the store.Tx interface and exposes itself so
// the Repository methods can recover the underlying *sqlx.Tx to execute
// queries on.
type sqlxTx struct {
	tx *sqlx.Tx
}

func (t *sqlxTx) Commit() error   { return t.tx.Commit() }
func (t *sqlxTx) Rollback() error { return t.tx.Rollback() }

// unwrap extracts the *sqlx.Tx from a store.Tx produced by this package.
// It panics on a foreign Tx implementation, which would be a programmer
// error (mixing store backends within one call).
func unwrap(tx store.Tx) *sqlx.Tx {
	sx, ok := tx.(*sqlxTx)
	if !ok {
		panic("postgres: store.Tx did not originate from this package")
	}
	return sx.tx
}

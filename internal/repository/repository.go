// Package repository implements SQLite persistence for the invoice,
// project and approval request entities.
package repository

import "database/sql"

// querier is satisfied by both *sql.DB and *sql.Tx so repository methods
// can run standalone or join a caller-owned transaction.
type querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// on picks the transaction when one is given, the pool otherwise.
func on(db *sql.DB, tx *sql.Tx) querier {
	if tx != nil {
		return tx
	}
	return db
}

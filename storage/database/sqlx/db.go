package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/mrdawstar/LinguaLab-sub000/core"
)

// postgres error codes signalling a lost race
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
)

// executor is implemented by both *sqlx.DB and *sqlx.Tx.
type executor interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// DB runs repository queries on a postgres database, inside the transaction carried by the
// context if there is one.
type DB struct {
	db *sqlx.DB
}

var (
	_ core.Transactor = (*DB)(nil)
	_ core.Pinger     = (*DB)(nil)
)

func NewDB(db *sqlx.DB) *DB {
	return &DB{db: db}
}

func (db *DB) PingContext(ctx context.Context) error {
	return db.db.PingContext(ctx)
}

func (db *DB) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := core.TxFromContext(ctx).(*sqlx.Tx); ok {
		return fn(ctx)
	}

	tx, err := db.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if err = fn(core.ContextWithTx(ctx, tx)); err != nil {
		return translateErr(err)
	}
	return translateErr(errors.Wrap(tx.Commit(), "committing transaction"))
}

func (db *DB) conn(ctx context.Context) executor {
	if tx, ok := core.TxFromContext(ctx).(*sqlx.Tx); ok {
		return tx
	}
	return db.db
}

// translateErr maps lost races reported by postgres to core.ErrConflict.
func translateErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
			return errors.Wrap(core.ErrConflict, pgErr.Message)
		}
	}
	return err
}

// rowsAffected reports how many rows an UPDATE or DELETE touched.
func rowsAffected(res sql.Result, err error) (int, error) {
	if err != nil {
		return 0, translateErr(err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

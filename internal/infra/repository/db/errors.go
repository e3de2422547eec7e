package db

import (
	"errors"

	"github.com/RoyceAzure/lab/storefront/internal/ledger"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
)

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == sqlStateSerializationFailure || pgErr.Code == sqlStateDeadlockDetected
	}
	return false
}

// mapDBError serialization failure 轉成可重試的衝突，其餘視為 store 無法使用
func mapDBError(err error) error {
	switch {
	case err == nil:
		return nil
	case isSerializationFailure(err):
		return ledger.Conflict(err)
	default:
		return ledger.Unavailable(err)
	}
}

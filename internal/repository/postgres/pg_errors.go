package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/xela07ax/retention-registry/internal/domain"
)

const (
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
	pgInvalidTextRepr     = "22P02"
	pgNumericOutOfRange   = "22003"
)

// classify переводит коды ошибок Postgres в виды отказов домена.
// Остальные ошибки возвращаются как есть и станут ErrStorage в движке.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgForeignKeyViolation:
		return fmt.Errorf("%w: %s", domain.ErrDanglingReference, pgErr.Message)
	case pgCheckViolation, pgInvalidTextRepr, pgNumericOutOfRange:
		return fmt.Errorf("%w: %s", domain.ErrValidation, pgErr.Message)
	}
	return err
}

package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	pkgerrors "github.com/RaduRoibu23/timetable-distributed-system/pkg/errors"
)

// PostgreSQL SQLSTATE
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// translateError 将 PostgreSQL 约束错误转换为领域错误，其余原样返回
func translateError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return &pkgerrors.ConstraintError{Err: pkgerrors.ErrDuplicate, Constraint: pgErr.ConstraintName}
		case pgForeignKeyViolation:
			return &pkgerrors.ConstraintError{Err: pkgerrors.ErrReferenceMissing, Constraint: pgErr.ConstraintName}
		}
	}
	return err
}

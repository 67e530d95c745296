// Package repository maps the lounge tables onto model types with plain
// database/sql. Driver errors are translated so higher layers only see
// apperr sentinels: missing rows become apperr.ErrNotFound and InnoDB lock
// wait timeouts or deadlocks become apperr.ErrConflict.
package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/lounge-reservation/internal/apperr"
)

// MySQL server error numbers the repositories translate.
const (
	errLockWaitTimeout = 1205
	errDeadlock        = 1213
)

// translate maps driver errors onto apperr sentinels. Other errors are
// returned unchanged.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.ErrNotFound
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) && (me.Number == errLockWaitTimeout || me.Number == errDeadlock) {
		return fmt.Errorf("%w: %v", apperr.ErrConflict, err)
	}
	return err
}

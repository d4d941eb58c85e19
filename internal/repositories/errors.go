package repositories

import (
	"errors"

	"github.com/go-sql-driver/mysql"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	ErrCatNotFound     = errors.New("cat not found")
	ErrMissionNotFound = errors.New("mission not found")
	ErrTargetNotFound  = errors.New("target not found")
	ErrDuplicateName   = errors.New("duplicate name")
)

const mysqlDuplicateEntry = 1062

func isUniqueViolation(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlDuplicateEntry
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}

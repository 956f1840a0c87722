package database

import (
	"database/sql"
	"errors"

	"modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"
)

// SQLitePureDialect implements Dialect for SQLite through the pure Go driver,
// for builds without CGO. It shares the schema with SQLiteDialect.
type SQLitePureDialect struct{}

// NewSQLitePureDialect creates a new CGO-free SQLite dialect
func NewSQLitePureDialect() *SQLitePureDialect {
	return &SQLitePureDialect{}
}

func (d *SQLitePureDialect) DriverName() string {
	return "sqlite"
}

func (d *SQLitePureDialect) DSN(config DialectConfig) string {
	return "file:" + config.Path +
		"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_txlock=immediate"
}

func (d *SQLitePureDialect) RewriteQuery(query string) string {
	return query
}

func (d *SQLitePureDialect) SupportsLastInsertId() bool {
	return true
}

func (d *SQLitePureDialect) ConfigureConnection(db *sql.DB) error {
	return configureSQLitePool(db)
}

func (d *SQLitePureDialect) MigrationsSubdir() string {
	return "sqlite"
}

func (d *SQLitePureDialect) CreateMigrationsTableQuery() string {
	return sqliteMigrationsTable
}

func (d *SQLitePureDialect) ForUpdate() string {
	return ""
}

func (d *SQLitePureDialect) IsUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlitelib.SQLITE_CONSTRAINT_UNIQUE || code == sqlitelib.SQLITE_CONSTRAINT_PRIMARYKEY
}

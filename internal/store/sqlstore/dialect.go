package sqlstore

import (
	"errors"
	"strconv"
	"strings"

	"github.com/lib/pq"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// dialect captures the handful of places where the two backends differ.
// Queries are written with '?' placeholders and rebound per dialect.
type dialect struct {
	name            string
	numbered        bool   // $1, $2, ... instead of ?
	forUpdate       string // row-lock suffix for LockEvent
	uniqueViolation func(error) bool
}

var postgresDialect = &dialect{
	name:            DriverPostgres,
	numbered:        true,
	forUpdate:       " FOR UPDATE",
	uniqueViolation: isPostgresUniqueViolation,
}

// SQLite has no row locks; the store serializes writers with a single
// connection and BEGIN IMMEDIATE instead.
var sqliteDialect = &dialect{
	name:            DriverSQLite,
	uniqueViolation: isSQLiteUniqueViolation,
}

func (d *dialect) rebind(query string) string {
	if !d.numbered || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d *dialect) isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return d.uniqueViolation(err)
}

func isPostgresUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func isSQLiteUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

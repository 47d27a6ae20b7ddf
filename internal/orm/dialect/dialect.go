// Package dialect provides the database specific SQL fragments used by the ORM.
//
// The following dialects are supported:
//
//   - Postgres: PostgreSQL database
//   - MySQL: MySQL/MariaDB database
//   - SQLite: SQLite database
//
// Conditions render with `?` placeholders; Bind rewrites them for dialects
// using positional parameters.
package dialect

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Dialect names.
const (
	Postgres = "postgres"
	MySQL    = "mysql"
	SQLite   = "sqlite3"
)

// ErrNotSupported is returned when a dialect lacks an operation.
var ErrNotSupported = errors.New("operation not supported by dialect")

// Dialect maps logical database operations to dialect specific SQL.
type Dialect interface {
	// Name returns the dialect name.
	Name() string
	// SequenceQuery returns a query selecting the next value of the given sequence.
	SequenceQuery(sequence string) (string, error)
	// AutoIncrementQuery returns a query selecting the last value generated for the given source.
	AutoIncrementQuery(source string) (string, error)
	// SupportsLastInsertID reports whether sql.Result.LastInsertId is reliable.
	SupportsLastInsertID() bool
	// Bind rewrites `?` placeholders to the dialect's parameter syntax.
	Bind(query string) string
	// ForUpdate returns the row lock clause, empty if row locking is unsupported.
	ForUpdate() string
	// LimitOffset returns the limit/offset clause, empty when both are unset.
	LimitOffset(limit, offset int) string
}

// Get returns the dialect registered under name.
func Get(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case Postgres, "postgresql", "pgx":
		return postgres{}, nil
	case MySQL, "mariadb":
		return mysql{}, nil
	case SQLite, "sqlite":
		return sqlite{}, nil
	default:
		return nil, fmt.Errorf("unknown dialect: %s", name)
	}
}

type postgres struct{}

func (postgres) Name() string { return Postgres }

func (postgres) SequenceQuery(sequence string) (string, error) {
	return "select nextval('" + sequence + "')", nil
}

func (postgres) AutoIncrementQuery(source string) (string, error) {
	return "select currval('" + source + "')", nil
}

func (postgres) SupportsLastInsertID() bool { return false }

func (postgres) Bind(query string) string {
	if !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	quoted := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			quoted = !quoted
			b.WriteByte(c)
		case c == '?' && !quoted:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func (postgres) ForUpdate() string { return "for update nowait" }

func (postgres) LimitOffset(limit, offset int) string { return limitOffset(limit, offset) }

type mysql struct{}

func (mysql) Name() string { return MySQL }

func (mysql) SequenceQuery(string) (string, error) {
	return "", fmt.Errorf("%w: sequences (%s)", ErrNotSupported, MySQL)
}

func (mysql) AutoIncrementQuery(string) (string, error) {
	return "select last_insert_id() from dual", nil
}

func (mysql) SupportsLastInsertID() bool { return true }

func (mysql) Bind(query string) string { return query }

func (mysql) ForUpdate() string { return "for update" }

func (mysql) LimitOffset(limit, offset int) string {
	// mysql requires a limit when an offset is given
	if limit <= 0 && offset > 0 {
		return "limit 18446744073709551615 offset " + strconv.Itoa(offset)
	}
	return limitOffset(limit, offset)
}

type sqlite struct{}

func (sqlite) Name() string { return SQLite }

func (sqlite) SequenceQuery(string) (string, error) {
	return "", fmt.Errorf("%w: sequences (%s)", ErrNotSupported, SQLite)
}

func (sqlite) AutoIncrementQuery(string) (string, error) {
	return "select last_insert_rowid()", nil
}

func (sqlite) SupportsLastInsertID() bool { return true }

func (sqlite) Bind(query string) string { return query }

func (sqlite) ForUpdate() string { return "" }

func (sqlite) LimitOffset(limit, offset int) string {
	if limit <= 0 && offset > 0 {
		return "limit -1 offset " + strconv.Itoa(offset)
	}
	return limitOffset(limit, offset)
}

func limitOffset(limit, offset int) string {
	var parts []string
	if limit > 0 {
		parts = append(parts, "limit "+strconv.Itoa(limit))
	}
	if offset > 0 {
		parts = append(parts, "offset "+strconv.Itoa(offset))
	}
	return strings.Join(parts, " ")
}

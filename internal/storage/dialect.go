package storage

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Dialect selects SQL driver specifics.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// sqliteTimeLayout is fixed width so text timestamps sort chronologically.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

// DriverName is the database/sql driver registered for the dialect.
func (d Dialect) DriverName() string {
	switch d {
	case DialectPostgres:
		return "pgx"
	default:
		return "sqlite"
	}
}

func (d Dialect) Validate() error {
	switch d {
	case DialectSQLite, DialectPostgres:
		return nil
	}
	return fmt.Errorf("unsupported sql dialect %q", d)
}

// rebind rewrites ? placeholders to $n for postgres.
func (d Dialect) rebind(query string) string {
	if d != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// timestamp converts t to the column representation of the dialect.
func (d Dialect) timestamp(t time.Time) any {
	t = t.UTC()
	if d == DialectSQLite {
		return t.Format(sqliteTimeLayout)
	}
	return t
}

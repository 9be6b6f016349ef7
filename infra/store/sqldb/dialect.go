// Package sqldb implements store.Store on database/sql. Driver specific
// details (placeholders, row locks, constraint errors, schema) come from a
// Dialect supplied by the sqlite and postgres packages.
package sqldb

import (
	"strconv"
	"strings"
)

// Dialect describes the SQL flavour of a backend.
type Dialect struct {
	Name string
	// Numbered switches "?" placeholders to "$1, $2, ..." style.
	Numbered bool
	// LockSuffix is appended to single-row reads inside transactions.
	LockSuffix string
	// IsUniqueViolation reports whether err is a unique constraint failure.
	IsUniqueViolation func(error) bool
	// Schema statements run in order on Open.
	Schema []string
}

func (d Dialect) rebind(q string) string {
	if !d.Numbered {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for _, r := range q {
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

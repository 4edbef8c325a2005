package store

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/RBarbieri13/Decant-sub001/internal/domain"
)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

func parseDialect(driver string) (dialect, error) {
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		return dialectSQLite, nil
	case "postgres", "postgresql", "pq":
		return dialectPostgres, nil
	}
	return 0, fmt.Errorf("unsupported database driver %q", driver)
}

func (d dialect) driverName() string {
	if d == dialectPostgres {
		return "postgres"
	}
	return "sqlite"
}

func (d dialect) migrationDir() string {
	return d.driverName()
}

// rebind rewrites ? placeholders to $n for PostgreSQL. Statements here never
// contain a literal question mark.
func (d dialect) rebind(query string) string {
	if d != dialectPostgres {
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

// parentColumn and codeColumn map a hierarchy to its columns on nodes.
func parentColumn(h domain.HierarchyType) string {
	if h == domain.HierarchyOrganization {
		return "organization_parent_id"
	}
	return "function_parent_id"
}

func codeColumn(h domain.HierarchyType) string {
	if h == domain.HierarchyOrganization {
		return "organization_code"
	}
	return "function_code"
}

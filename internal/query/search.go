package query

import (
	"strings"
)

// ApplySearch adds a case-insensitive substring match across the searchable
// columns of the current resource. A blank term after trimming produces no
// predicate. The single pattern argument is shared by every column.
func ApplySearch(b *Builder, term string, columns []string) {
	term = strings.TrimSpace(term)
	if term == "" || len(columns) == 0 {
		return
	}

	placeholder := b.Bind("%" + EscapeLike(term) + "%")
	parts := make([]string, len(columns))
	for i, column := range columns {
		parts[i] = column + " ILIKE " + placeholder
	}
	b.Where("(" + strings.Join(parts, " OR ") + ")")
}

package query

import (
	"fmt"
	"strings"
)

// Builder accumulates WHERE conditions with PostgreSQL positional
// placeholders. Conditions added through Where are AND-combined; grouped
// disjunctions are rendered by the callers before being added.
type Builder struct {
	conds []string
	args  []interface{}
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Bind registers an argument and returns its placeholder, e.g. "$3".
func (b *Builder) Bind(v interface{}) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

// Where appends one complete condition.
func (b *Builder) Where(cond string) {
	b.conds = append(b.conds, cond)
}

// Clause renders the WHERE clause with a leading space, or "" when no
// condition was added.
func (b *Builder) Clause() string {
	if len(b.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.conds, " AND ")
}

// Args returns the bound arguments in placeholder order.
func (b *Builder) Args() []interface{} {
	return b.args
}

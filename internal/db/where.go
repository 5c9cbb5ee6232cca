package db

import "strings"

// Cond is a where-clause fragment and its bound arguments.
type Cond struct {
	SQL  string
	Args []any
}

// Eq matches column = value.
func Eq(column string, value any) Cond {
	mustIdent(column)
	return Cond{SQL: column + " = ?", Args: []any{value}}
}

// In matches column against any of values. An empty list matches nothing.
func In(column string, values ...any) Cond {
	mustIdent(column)
	if len(values) == 0 {
		return Cond{SQL: "1 = 0"}
	}
	return Cond{SQL: column + " IN (" + placeholders(len(values)) + ")", Args: values}
}

// And joins conditions with AND.
func And(conds ...Cond) Cond {
	parts := make([]string, 0, len(conds))
	var args []any
	for _, c := range conds {
		if c.SQL == "" {
			continue
		}
		parts = append(parts, "("+c.SQL+")")
		args = append(args, c.Args...)
	}
	return Cond{SQL: strings.Join(parts, " AND "), Args: args}
}

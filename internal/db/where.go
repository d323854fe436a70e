package db

import (
	"strconv"
	"strings"
)

// Where accumulates AND-ed predicates with positional arguments. Every "?"
// in an expression is bound to that expression's single argument.
type Where struct {
	parts []string
	args  []any
}

// Add appends expr bound to arg.
func (w *Where) Add(expr string, arg any) *Where {
	w.args = append(w.args, arg)
	w.parts = append(w.parts, strings.ReplaceAll(expr, "?", "$"+strconv.Itoa(len(w.args))))
	return w
}

// AddIf appends expr only when ok is true.
func (w *Where) AddIf(ok bool, expr string, arg any) *Where {
	if ok {
		w.Add(expr, arg)
	}
	return w
}

// Raw appends a predicate without arguments.
func (w *Where) Raw(expr string) *Where {
	w.parts = append(w.parts, expr)
	return w
}

// SQL renders " WHERE ..." or an empty string.
func (w *Where) SQL() string {
	if len(w.parts) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.parts, " AND ")
}

// Args returns the bound arguments.
func (w *Where) Args() []any {
	return append([]any(nil), w.args...)
}

// Page renders " LIMIT $n OFFSET $m" and returns the arguments extended with limit and offset.
func (w *Where) Page(limit, offset int) (string, []any) {
	args := w.Args()
	n := len(args)
	return " LIMIT $" + strconv.Itoa(n+1) + " OFFSET $" + strconv.Itoa(n+2), append(args, limit, offset)
}

// ClampLimit bounds a page size to [1, max].
func ClampLimit(limit, def, max int) int {
	if limit <= 0 {
		limit = def
	}
	if limit > max {
		limit = max
	}
	return limit
}

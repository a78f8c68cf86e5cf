package value

import (
	"sort"
	"strings"
)

// Row is one fetched record keyed by column name.
//
// A Row is built fresh for each record and is not modified after the query
// that produced it returns. Column order is not significant.
type Row map[string]Value

// Get returns the named column and whether it was present.
func (r Row) Get(name string) (Value, bool) {
	v, ok := r[name]
	return v, ok
}

// Value returns the named column, or Null when it is missing.
func (r Row) Value(name string) Value {
	return r[name]
}

// Columns returns the column names in sorted order.
func (r Row) Columns() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// String renders the row as <(name<Kind>, text), ...> with sorted columns.
func (r Row) String() string {
	var b strings.Builder
	b.WriteString("<")
	for i, name := range r.Columns() {
		if i > 0 {
			b.WriteString(", ")
		}
		v := r[name]
		b.WriteString("(")
		b.WriteString(name)
		b.WriteString("<")
		b.WriteString(v.Kind().String())
		b.WriteString(">, ")
		b.WriteString(v.String())
		b.WriteString(")")
	}
	b.WriteString(">")
	return b.String()
}

package gridstore

import (
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// Where accumulates AND-ed predicates with positional ($n) arguments.
// A nil *Where renders as no clause.
type Where struct {
	clauses []string
	args    []interface{}
}

func (w *Where) arg(v interface{}) string {
	w.args = append(w.args, v)
	return fmt.Sprintf("$%d", len(w.args))
}

// Len returns the number of predicates.
func (w *Where) Len() int {
	if w == nil {
		return 0
	}
	return len(w.clauses)
}

// Clone returns an independent copy; cloning nil yields an empty Where.
func (w *Where) Clone() *Where {
	if w == nil {
		return &Where{}
	}
	return &Where{
		clauses: append([]string(nil), w.clauses...),
		args:    append([]interface{}(nil), w.args...),
	}
}

// EqualFold matches the column's text exactly, ignoring case.
func (w *Where) EqualFold(column, value string) {
	w.clauses = append(w.clauses, fmt.Sprintf("lower(%s::text) = lower(%s)", pqIdent(column), w.arg(value)))
}

// Contains matches a case-insensitive substring.
func (w *Where) Contains(column, value string) {
	w.clauses = append(w.clauses, fmt.Sprintf("%s::text ILIKE %s", pqIdent(column), w.arg("%"+EscapeLike(value)+"%")))
}

// Prefix matches a case-insensitive prefix.
func (w *Where) Prefix(column, value string) {
	w.clauses = append(w.clauses, fmt.Sprintf("%s::text ILIKE %s", pqIdent(column), w.arg(EscapeLike(value)+"%")))
}

// AnyOf matches when the column equals any of values, ignoring case.
func (w *Where) AnyOf(column string, values []string) {
	lowered := make([]string, len(values))
	for i, v := range values {
		lowered[i] = strings.ToLower(v)
	}
	w.clauses = append(w.clauses, fmt.Sprintf("lower(%s::text) = ANY(%s)", pqIdent(column), w.arg(pq.Array(lowered))))
}

// Range bounds a numeric column. A nil bound leaves that side open.
func (w *Where) Range(column string, lo, hi *float64) {
	if lo != nil {
		w.clauses = append(w.clauses, fmt.Sprintf("%s >= %s", pqIdent(column), w.arg(*lo)))
	}
	if hi != nil {
		w.clauses = append(w.clauses, fmt.Sprintf("%s <= %s", pqIdent(column), w.arg(*hi)))
	}
}

// DateRange bounds a date or timestamp column with yyyy-mm-dd dates. The
// upper bound covers the whole day. Empty sides are open.
func (w *Where) DateRange(column, from, to string) {
	if from != "" {
		w.clauses = append(w.clauses, fmt.Sprintf("%s >= %s::date", pqIdent(column), w.arg(from)))
	}
	if to != "" {
		w.clauses = append(w.clauses, fmt.Sprintf("%s < %s::date + 1", pqIdent(column), w.arg(to)))
	}
}

// NotNull excludes rows where column is null.
func (w *Where) NotNull(column string) {
	w.clauses = append(w.clauses, pqIdent(column)+" IS NOT NULL")
}

// SQL renders "WHERE ..." and its arguments, or "" when empty.
func (w *Where) SQL() (string, []interface{}) {
	if w.Len() == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(w.clauses, " AND "), w.args
}

// Column selects a database column under an output alias.
type Column struct {
	Name  string
	Alias string
}

// Order is one ORDER BY term.
type Order struct {
	Column string
	Desc   bool
}

// SelectQuery is a paged select over one table.
type SelectQuery struct {
	Table   string
	Columns []Column
	Where   *Where
	Order   []Order
	Limit   int
	Offset  int
}

// SQL renders the query and its arguments.
func (q SelectQuery) SQL() (string, []interface{}) {
	cols := make([]string, 0, len(q.Columns))
	for _, c := range q.Columns {
		expr := pqIdent(c.Name)
		if c.Alias != "" && c.Alias != c.Name {
			expr += " AS " + pqIdent(c.Alias)
		}
		cols = append(cols, expr)
	}
	if len(cols) == 0 {
		cols = append(cols, "*")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", strings.Join(cols, ", "), QuoteTable(q.Table))

	where, args := q.Where.SQL()
	if where != "" {
		b.WriteString(" " + where)
	}

	if len(q.Order) > 0 {
		terms := make([]string, 0, len(q.Order))
		for _, o := range q.Order {
			dir := "ASC"
			if o.Desc {
				dir = "DESC"
			}
			terms = append(terms, pqIdent(o.Column)+" "+dir)
		}
		b.WriteString(" ORDER BY " + strings.Join(terms, ", "))
	}

	if q.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d OFFSET %d", q.Limit, max(q.Offset, 0))
	}
	return b.String(), args
}

// QuoteTable quotes a table name, keeping an optional schema qualifier.
func QuoteTable(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = pq.QuoteIdentifier(p)
	}
	return strings.Join(parts, ".")
}

func pqIdent(name string) string {
	return pq.QuoteIdentifier(name)
}

// EscapeLike escapes the LIKE wildcards and the escape character itself.
func EscapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

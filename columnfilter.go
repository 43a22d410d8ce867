package propertygrid

import (
	"net/url"
	"sort"
	"strings"
	"time"
)

// Column-filter grammar operators.
const (
	OpEq      = "eq"
	OpLike    = "like"
	OpIn      = "in"
	OpGTE     = "GTE"
	OpLTE     = "LTE"
	OpBetween = "between"
	OpSort    = "SORT"
)

const (
	columnFilterPrefix = "columnFilter="
	clauseSeparator    = "&"
	tokenSeparator     = "~"

	isoDateLayout  = "2006-01-02"
	wireDateLayout = "02/01/2006"
)

// ColumnClause is one decoded clause of the column-filter grammar.
// Values of an in clause are the individual members.
type ColumnClause struct {
	Field  string
	Op     string
	Values []string
}

// String encodes the clause as columnFilter=<field>~<op>~<v>[~<v2>].
func (c ColumnClause) String() string {
	values := c.Values
	if c.Op == OpIn {
		values = []string{strings.Join(c.Values, ",")}
	}
	tokens := make([]string, 0, 2+len(values))
	tokens = append(tokens, EncodeComponent(c.Field), EncodeComponent(c.Op))
	for _, v := range values {
		tokens = append(tokens, EncodeComponent(v))
	}
	return columnFilterPrefix + strings.Join(tokens, tokenSeparator)
}

// BuildColumnFilterQuery encodes column filters and an optional sort into the
// column-filter grammar. Clauses are ordered by UI key; the sort marker comes
// last. Absent or invalid filters produce no clause, and no clauses produce "".
func BuildColumnFilterQuery(schema *TableSchema, filters ColumnFilters, sort *SortState) string {
	clauses := CompileColumnFilters(schema, filters, sort)
	parts := make([]string, 0, len(clauses))
	for _, c := range clauses {
		parts = append(parts, c.String())
	}
	return strings.Join(parts, clauseSeparator)
}

// CompileColumnFilters returns the clauses BuildColumnFilterQuery would encode.
func CompileColumnFilters(schema *TableSchema, filters ColumnFilters, sortState *SortState) []ColumnClause {
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var clauses []ColumnClause
	for _, key := range keys {
		if c, ok := compileClause(schema, key, filters[key]); ok {
			clauses = append(clauses, c)
		}
	}
	if sortState != nil && strings.TrimSpace(sortState.Field) != "" {
		clauses = append(clauses, ColumnClause{
			Field:  schema.RemoteName(strings.TrimSpace(sortState.Field)),
			Op:     OpSort,
			Values: []string{sortState.Direction()},
		})
	}
	return clauses
}

func compileClause(schema *TableSchema, key string, v FilterValue) (ColumnClause, bool) {
	fc, _ := schema.Field(key)
	v, ok := sanitizeValue(fc, v, false)
	if !ok {
		return ColumnClause{}, false
	}
	c := ColumnClause{Field: schema.RemoteName(key)}

	switch val := v.(type) {
	case Text:
		c.Op = OpLike
		if fc != nil && fc.Control == ControlSingleSelect {
			c.Op = OpEq
		}
		c.Values = []string{string(val)}
	case MultiText:
		c.Op = OpIn
		c.Values = append([]string(nil), val...)
	case NumericRange:
		lo, hi := val.Bounds()
		switch {
		case lo != nil && hi != nil:
			c.Op = OpBetween
			c.Values = []string{formatNumber(*lo), formatNumber(*hi)}
		case lo != nil:
			c.Op = OpGTE
			c.Values = []string{formatNumber(*lo)}
		case hi != nil:
			c.Op = OpLTE
			c.Values = []string{formatNumber(*hi)}
		default:
			return ColumnClause{}, false
		}
	case DateRange:
		from, to := val.From, val.To
		if from == "" {
			from = to
		}
		if to == "" {
			to = from
		}
		wireFrom, okFrom := ISOToWireDate(from)
		wireTo, okTo := ISOToWireDate(to)
		if !okFrom || !okTo {
			return ColumnClause{}, false
		}
		c.Op = OpBetween
		c.Values = []string{wireFrom, wireTo}
	default:
		return ColumnClause{}, false
	}
	return c, true
}

// ISOToWireDate re-formats a yyyy-mm-dd date (or the date part of an
// RFC 3339 timestamp) as dd/mm/yyyy.
func ISOToWireDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) > len(isoDateLayout) {
		s = s[:len(isoDateLayout)]
	}
	t, err := time.Parse(isoDateLayout, s)
	if err != nil {
		return "", false
	}
	return t.Format(wireDateLayout), true
}

// WireDateToISO re-formats a dd/mm/yyyy date as yyyy-mm-dd.
func WireDateToISO(s string) (string, bool) {
	t, err := time.Parse(wireDateLayout, strings.TrimSpace(s))
	if err != nil {
		return "", false
	}
	return t.Format(isoDateLayout), true
}

// EncodeComponent percent-encodes s like encodeURIComponent, and additionally
// encodes the token separator '~'.
func EncodeComponent(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreservedComponent(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0F])
	}
	return b.String()
}

func isUnreservedComponent(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	switch c {
	case '-', '_', '.', '!', '*', '\'', '(', ')':
		return true
	}
	return false
}

// ParseColumnFilterQuery decodes a column-filter grammar string. An empty
// query decodes to no clauses.
func ParseColumnFilterQuery(query string) ([]ColumnClause, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	var clauses []ColumnClause
	for _, raw := range strings.Split(query, clauseSeparator) {
		if raw == "" {
			continue
		}
		body, ok := strings.CutPrefix(raw, columnFilterPrefix)
		if !ok {
			return nil, newGrammarError("clause %q does not start with %s", raw, columnFilterPrefix)
		}
		tokens := strings.Split(body, tokenSeparator)
		if len(tokens) < 3 {
			return nil, newGrammarError("clause %q needs a field, an operator and a value", raw)
		}
		decoded := make([]string, len(tokens))
		for i, tok := range tokens {
			s, err := url.PathUnescape(tok)
			if err != nil {
				return nil, newGrammarError("clause %q has a malformed escape", raw).WithCause(err)
			}
			decoded[i] = s
		}

		c := ColumnClause{Field: decoded[0], Op: decoded[1], Values: decoded[2:]}
		if c.Field == "" {
			return nil, newGrammarError("clause %q has an empty field", raw)
		}
		if err := checkArity(c, raw); err != nil {
			return nil, err
		}
		if c.Op == OpIn {
			c.Values = strings.Split(c.Values[0], ",")
		}
		clauses = append(clauses, c)
	}
	return clauses, nil
}

func checkArity(c ColumnClause, raw string) error {
	want := 1
	switch c.Op {
	case OpEq, OpLike, OpIn, OpGTE, OpLTE:
	case OpBetween:
		want = 2
	case OpSort:
		if len(c.Values) == 1 && c.Values[0] != "ASC" && c.Values[0] != "DESC" {
			return newGrammarError("clause %q has sort direction %q", raw, c.Values[0])
		}
	default:
		return newGrammarError("clause %q has unknown operator %q", raw, c.Op)
	}
	if len(c.Values) != want {
		return newGrammarError("clause %q: operator %s takes %d value(s), got %d", raw, c.Op, want, len(c.Values))
	}
	return nil
}

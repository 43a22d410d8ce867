package propertygrid

import (
	"sort"
	"strings"
)

// OptionCount is one distinct value of an option field and how many records carry it.
type OptionCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// DistinctValues groups records by the string form of each of fields and
// returns the distinct non-empty values in sorted order. Array values
// contribute each element.
func DistinctValues(records []Record, fields ...string) []OptionCount {
	counts := make(map[string]int)
	order := []string{} // preserve insertion order

	for _, rec := range records {
		for _, field := range fields {
			for _, v := range textValues(rec[field]) {
				v = strings.TrimSpace(v)
				if v == "" {
					continue
				}
				if _, exists := counts[v]; !exists {
					order = append(order, v)
				}
				counts[v]++
			}
		}
	}

	// Sort keys for deterministic output
	sort.Strings(order)

	out := make([]OptionCount, 0, len(order))
	for _, v := range order {
		out = append(out, OptionCount{Value: v, Count: counts[v]})
	}
	return out
}

// OptionsFor lists the choices of a select field: static catalog options
// first, then values suggested by the data service, then values mined from
// the loaded records. Values are de-duplicated case-insensitively.
func (t *TableSchema) OptionsFor(field string, result *LoadResult) []LOVItem {
	fc, ok := t.Field(field)
	if !ok {
		return nil
	}
	seen := map[string]bool{}
	var out []LOVItem
	add := func(item LOVItem) {
		k := strings.ToLower(item.String())
		if k == "" || seen[k] {
			return
		}
		seen[k] = true
		if item.Label == "" {
			item.Label = item.String()
		}
		out = append(out, item)
	}

	for _, item := range fc.Options {
		add(item)
	}
	if result == nil {
		return out
	}

	sources := append([]string{fc.APIKey}, fc.OptionFields...)
	for _, src := range sources {
		for _, v := range result.Filters[src] {
			add(LOVItem{Value: v})
		}
	}
	if len(fc.OptionFields) > 0 {
		for _, oc := range DistinctValues(result.Items, fc.OptionFields...) {
			add(LOVItem{Value: oc.Value})
		}
	}
	return out
}

// SelectAll returns the values a "select all" gesture picks for field: the
// configured SelectAllValues, or every static option.
func (t *TableSchema) SelectAll(field string) []string {
	fc, ok := t.Field(field)
	if !ok {
		return nil
	}
	if len(fc.SelectAllValues) > 0 {
		return append([]string(nil), fc.SelectAllValues...)
	}
	out := make([]string, 0, len(fc.Options))
	for _, item := range fc.Options {
		out = append(out, item.String())
	}
	return out
}

// LimitSelection keeps the right-most limit entries of a multi-select
// selection, so the newest picks win. A limit of zero or less keeps all.
func LimitSelection(values []string, limit int) []string {
	if limit <= 0 || len(values) <= limit {
		return append([]string(nil), values...)
	}
	return append([]string(nil), values[len(values)-limit:]...)
}

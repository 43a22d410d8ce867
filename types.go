package propertygrid

import (
	"math"
	"sort"
	"strings"
)

// ControlType selects the input, validation and comparison behavior of a field.
type ControlType string

const (
	ControlTextEq       ControlType = "textEq"
	ControlTextContains ControlType = "textContains"
	ControlTextPrefix   ControlType = "textPrefix"
	ControlNumeric      ControlType = "numeric"
	ControlDateRange    ControlType = "dateRange"
	ControlSingleSelect ControlType = "singleSelect"
	ControlMultiSelect  ControlType = "multiSelect"
)

// Valid reports whether c is one of the supported control types.
func (c ControlType) Valid() bool {
	switch c {
	case ControlTextEq, ControlTextContains, ControlTextPrefix, ControlNumeric,
		ControlDateRange, ControlSingleSelect, ControlMultiSelect:
		return true
	}
	return false
}

// IsText reports whether c compares free text.
func (c ControlType) IsText() bool {
	return c == ControlTextEq || c == ControlTextContains || c == ControlTextPrefix
}

// RangeMode is the comparison mode of a NumericRange.
type RangeMode string

const (
	RangeGTE     RangeMode = "GTE"
	RangeLTE     RangeMode = "LTE"
	RangeBetween RangeMode = "BETWEEN"
)

// FilterValue is one of Text, MultiText, NumericRange or DateRange.
type FilterValue interface {
	filterValue()
}

// Text is a single free-text or single-choice value.
type Text string

// MultiText is an ordered list of choices. Order is preserved, duplicates allowed.
type MultiText []string

// NumericRange bounds a numeric field. Which bounds are required depends on Mode.
type NumericRange struct {
	Mode RangeMode `json:"mode,omitempty"`
	Min  *float64  `json:"min,omitempty"`
	Max  *float64  `json:"max,omitempty"`
}

// DateRange bounds a date field with ISO (yyyy-mm-dd) dates. Either side may be empty.
type DateRange struct {
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

func (Text) filterValue()         {}
func (MultiText) filterValue()    {}
func (NumericRange) filterValue() {}
func (DateRange) filterValue()    {}

// Present reports whether the bounds required by the range mode are defined.
// A missing mode is treated as GTE.
func (r NumericRange) Present() bool {
	switch r.mode() {
	case RangeLTE:
		return finite(r.Max)
	case RangeBetween:
		return finite(r.Min) || finite(r.Max)
	default:
		return finite(r.Min)
	}
}

func (r NumericRange) mode() RangeMode {
	switch RangeMode(strings.ToUpper(string(r.Mode))) {
	case RangeLTE:
		return RangeLTE
	case RangeBetween:
		return RangeBetween
	default:
		return RangeGTE
	}
}

// Bounds returns the effective lower and upper bounds for the range mode.
// BETWEEN with a single bound degrades to the matching one-sided comparison.
func (r NumericRange) Bounds() (lo, hi *float64) {
	switch r.mode() {
	case RangeGTE:
		if finite(r.Min) {
			lo = r.Min
		}
	case RangeLTE:
		if finite(r.Max) {
			hi = r.Max
		}
	case RangeBetween:
		if finite(r.Min) {
			lo = r.Min
		}
		if finite(r.Max) {
			hi = r.Max
		}
	}
	return lo, hi
}

func finite(f *float64) bool {
	return f != nil && !math.IsNaN(*f) && !math.IsInf(*f, 0)
}

// Float returns a pointer to v, for building NumericRange literals.
func Float(v float64) *float64 {
	return &v
}

// FilterState is the set of primary search filters for one search action.
// SearchBy selects which searchable field is the primary search.
type FilterState struct {
	SearchBy string
	Values   map[string]FilterValue
}

// NewFilterState returns an empty state searching by the given field.
func NewFilterState(searchBy string) FilterState {
	return FilterState{SearchBy: searchBy, Values: map[string]FilterValue{}}
}

// Get returns the value for key, if present.
func (s FilterState) Get(key string) (FilterValue, bool) {
	v, ok := s.Values[key]
	return v, ok
}

// With returns a copy of s with key set to v. A nil v removes the key.
func (s FilterState) With(key string, v FilterValue) FilterState {
	out := s.Clone()
	if v == nil {
		delete(out.Values, key)
		return out
	}
	out.Values[key] = v
	return out
}

// Clone returns a deep copy of s.
func (s FilterState) Clone() FilterState {
	out := FilterState{SearchBy: s.SearchBy, Values: make(map[string]FilterValue, len(s.Values))}
	for k, v := range s.Values {
		out.Values[k] = cloneValue(v)
	}
	return out
}

// Keys returns the filtered keys in sorted order.
func (s FilterState) Keys() []string {
	keys := make([]string, 0, len(s.Values))
	for k := range s.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ColumnFilters holds per-column narrowing constraints, keyed by UI field key.
type ColumnFilters map[string]FilterValue

// Clone returns a deep copy of c.
func (c ColumnFilters) Clone() ColumnFilters {
	out := make(ColumnFilters, len(c))
	for k, v := range c {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v FilterValue) FilterValue {
	switch val := v.(type) {
	case MultiText:
		return append(MultiText(nil), val...)
	case NumericRange:
		out := NumericRange{Mode: val.Mode}
		if val.Min != nil {
			out.Min = Float(*val.Min)
		}
		if val.Max != nil {
			out.Max = Float(*val.Max)
		}
		return out
	default:
		return v
	}
}

// SortState is the single active sort.
type SortState struct {
	Field      string `json:"field"`
	Descending bool   `json:"descending"`
}

// Direction returns ASC or DESC.
func (s SortState) Direction() string {
	if s.Descending {
		return "DESC"
	}
	return "ASC"
}

// Record is one row returned by the data service, keyed by API field key.
type Record map[string]interface{}

// LoadResult is the outcome of one compiled query.
// When ServerDriven is false and the load did not fail, len(Items) == TotalCount.
type LoadResult struct {
	Items        []Record            `json:"items"`
	TotalCount   int                 `json:"totalCount"`
	ServerDriven bool                `json:"serverDriven"`
	Failed       bool                `json:"failed,omitempty"`
	Filters      map[string][]string `json:"filters,omitempty"`
	Seq          uint64              `json:"seq"`
	RequestID    string              `json:"requestId,omitempty"`
}

// failedResult is the explicit empty state returned when a load cannot complete.
func failedResult(seq uint64, requestID string) *LoadResult {
	return &LoadResult{
		Items:     []Record{},
		Failed:    true,
		Seq:       seq,
		RequestID: requestID,
	}
}

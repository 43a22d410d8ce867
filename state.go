package propertygrid

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// storedValue is the JSON form of one FilterValue. Exactly one member is set.
type storedValue struct {
	Text  *string       `json:"text,omitempty"`
	Multi []string      `json:"multi,omitempty"`
	Range *NumericRange `json:"range,omitempty"`
	Date  *DateRange    `json:"date,omitempty"`
}

type storedFilters struct {
	SearchBy string                 `json:"searchBy,omitempty"`
	Values   map[string]storedValue `json:"values,omitempty"`
}

type storedQuery struct {
	Table    string                 `json:"table,omitempty"`
	Filters  storedFilters          `json:"filters"`
	Columns  map[string]storedValue `json:"columns"`
	Sort     *SortState             `json:"sort"`
	Page     int                    `json:"page"`
	PageSize int                    `json:"pageSize,omitempty"`
}

func toStored(v FilterValue) (storedValue, bool) {
	switch val := v.(type) {
	case Text:
		s := string(val)
		return storedValue{Text: &s}, true
	case MultiText:
		if len(val) == 0 {
			return storedValue{}, false
		}
		return storedValue{Multi: append([]string{}, val...)}, true
	case NumericRange:
		r := cloneValue(val).(NumericRange)
		return storedValue{Range: &r}, true
	case DateRange:
		d := val
		return storedValue{Date: &d}, true
	}
	return storedValue{}, false
}

func (s storedValue) value() (FilterValue, error) {
	set := 0
	var out FilterValue
	if s.Text != nil {
		set++
		out = Text(*s.Text)
	}
	if s.Multi != nil {
		set++
		out = MultiText(s.Multi)
	}
	if s.Range != nil {
		set++
		out = *s.Range
	}
	if s.Date != nil {
		set++
		out = *s.Date
	}
	if set != 1 {
		return nil, fmt.Errorf("stored filter value must have exactly one variant, got %d", set)
	}
	return out, nil
}

func storeValues(values map[string]FilterValue) map[string]storedValue {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]storedValue, len(values))
	for k, v := range values {
		if sv, ok := toStored(v); ok {
			out[k] = sv
		}
	}
	return out
}

func loadValues(stored map[string]storedValue) (map[string]FilterValue, error) {
	out := make(map[string]FilterValue, len(stored))
	for k, sv := range stored {
		v, err := sv.value()
		if err != nil {
			return nil, fmt.Errorf("value %q: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}

// EncodeFilterState serializes fs for storage.
func EncodeFilterState(fs FilterState) ([]byte, error) {
	return json.Marshal(storedFilters{SearchBy: fs.SearchBy, Values: storeValues(fs.Values)})
}

// DecodeFilterState restores a stored FilterState. Any decode failure
// yields an empty state; stored blobs are never trusted to be well formed.
func DecodeFilterState(data []byte) FilterState {
	var sf storedFilters
	if err := json.Unmarshal(data, &sf); err != nil {
		zap.S().Debugw("Discarding stored filter state", "error", err)
		return NewFilterState("")
	}
	values, err := loadValues(sf.Values)
	if err != nil {
		zap.S().Debugw("Discarding stored filter state", "error", err)
		return NewFilterState("")
	}
	return FilterState{SearchBy: sf.SearchBy, Values: values}
}

// EncodeQuery serializes the UI state of q for storage. RequestedBy is not kept.
func EncodeQuery(q Query) ([]byte, error) {
	return json.Marshal(storedQuery{
		Table:    q.Table,
		Filters:  storedFilters{SearchBy: q.Filters.SearchBy, Values: storeValues(q.Filters.Values)},
		Columns:  storeValues(q.ColumnFilters),
		Sort:     q.Sort,
		Page:     q.Page,
		PageSize: q.PageSize,
	})
}

// DecodeQuery restores a stored Query, returning defaults unchanged when
// data cannot be decoded. Fields missing from data keep their default.
func DecodeQuery(data []byte, defaults Query) Query {
	var sq storedQuery
	if err := json.Unmarshal(data, &sq); err != nil {
		zap.S().Debugw("Discarding stored query", "error", err)
		return defaults
	}
	filters, err := loadValues(sq.Filters.Values)
	if err != nil {
		zap.S().Debugw("Discarding stored query", "error", err)
		return defaults
	}
	columns, err := loadValues(sq.Columns)
	if err != nil {
		zap.S().Debugw("Discarding stored query", "error", err)
		return defaults
	}
	if sq.Page < 0 || sq.PageSize < 0 {
		zap.S().Debugw("Discarding stored query", "page", sq.Page, "page_size", sq.PageSize)
		return defaults
	}

	// A second pass over the top-level keys tells absent fields from zero ones.
	var present map[string]json.RawMessage
	_ = json.Unmarshal(data, &present)
	has := func(key string) bool {
		_, ok := present[key]
		return ok
	}

	q := defaults
	if sq.Table != "" {
		q.Table = sq.Table
	}
	if has("filters") {
		q.Filters = FilterState{SearchBy: sq.Filters.SearchBy, Values: filters}
	}
	if has("columns") {
		q.ColumnFilters = columns
	}
	if has("sort") {
		q.Sort = sq.Sort
	}
	if has("page") {
		q.Page = sq.Page
	}
	if sq.PageSize > 0 {
		q.PageSize = sq.PageSize
	}
	return q
}

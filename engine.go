package propertygrid

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// FilterRecords returns the records that pass every present column filter.
// The input slice is not modified.
func FilterRecords(schema *TableSchema, records []Record, filters ColumnFilters) []Record {
	active := SanitizeColumnFilters(schema, filters)
	out := make([]Record, 0, len(records))
	for _, rec := range records {
		if matchesSanitized(schema, rec, active) {
			out = append(out, rec)
		}
	}
	return out
}

// Matches reports whether rec passes every present column filter.
func Matches(schema *TableSchema, rec Record, filters ColumnFilters) bool {
	return matchesSanitized(schema, rec, SanitizeColumnFilters(schema, filters))
}

func matchesSanitized(schema *TableSchema, rec Record, filters ColumnFilters) bool {
	for key, fv := range filters {
		control := ControlTextContains
		if fc, ok := schema.Field(key); ok {
			control = fc.Control
		}
		if !matchValue(control, fieldValue(schema, rec, key), fv) {
			return false
		}
	}
	return true
}

func fieldValue(schema *TableSchema, rec Record, key string) interface{} {
	if v, ok := rec[schema.RemoteName(key)]; ok {
		return v
	}
	return rec[key]
}

func matchValue(control ControlType, raw interface{}, fv FilterValue) bool {
	switch val := fv.(type) {
	case Text:
		return matchText(control, raw, string(val))
	case MultiText:
		haystack := textValues(raw)
		for _, needle := range val {
			for _, h := range haystack {
				if strings.EqualFold(h, needle) {
					return true
				}
			}
		}
		return false
	case NumericRange:
		n, ok := toNumber(raw)
		if !ok {
			return false
		}
		lo, hi := val.Bounds()
		if lo != nil && n < *lo {
			return false
		}
		if hi != nil && n > *hi {
			return false
		}
		return true
	case DateRange:
		return matchDate(raw, val)
	}
	return true
}

func matchText(control ControlType, raw interface{}, needle string) bool {
	haystack := textValues(raw)
	lowered := strings.ToLower(needle)
	for _, h := range haystack {
		switch control {
		case ControlTextEq, ControlSingleSelect:
			if strings.EqualFold(h, needle) {
				return true
			}
		case ControlTextPrefix:
			if strings.HasPrefix(strings.ToLower(h), lowered) {
				return true
			}
		default:
			if strings.Contains(strings.ToLower(h), lowered) {
				return true
			}
		}
	}
	return false
}

// matchDate requires the record's date to fall within the range, both ends
// inclusive. An empty or unparsable bound leaves that side open.
func matchDate(raw interface{}, r DateRange) bool {
	t, ok := parseRecordTime(raw)
	if !ok {
		return false
	}
	if from, ok := parseTimeString(r.From); ok && t.Before(from) {
		return false
	}
	if to, ok := parseTimeString(r.To); ok {
		// A date-only upper bound covers the whole day
		if isDateOnly(r.To) {
			to = to.Add(24*time.Hour - time.Nanosecond)
		}
		if t.After(to) {
			return false
		}
	}
	return true
}

var recordTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	isoDateLayout,
	wireDateLayout,
}

func parseRecordTime(raw interface{}) (time.Time, bool) {
	switch v := raw.(type) {
	case time.Time:
		return v, true
	case *time.Time:
		if v == nil {
			return time.Time{}, false
		}
		return *v, true
	case string:
		return parseTimeString(v)
	case nil:
		return time.Time{}, false
	default:
		return parseTimeString(fmt.Sprint(v))
	}
}

func parseTimeString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range recordTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func isDateOnly(s string) bool {
	s = strings.TrimSpace(s)
	if _, err := time.Parse(isoDateLayout, s); err == nil {
		return true
	}
	_, err := time.Parse(wireDateLayout, s)
	return err == nil
}

// textValues returns the comparable string forms of a record value. Arrays
// contribute every element; nil contributes nothing.
func textValues(raw interface{}) []string {
	switch v := raw.(type) {
	case nil:
		return nil
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if item != nil {
				out = append(out, displayText(item))
			}
		}
		return out
	default:
		return []string{displayText(v)}
	}
}

func displayText(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case json.Number:
		return val.String()
	case time.Time:
		return val.Format(time.RFC3339)
	case []byte:
		return string(val)
	default:
		return fmt.Sprint(val)
	}
}

func toNumber(raw interface{}) (float64, bool) {
	var f float64
	switch v := raw.(type) {
	case nil, bool:
		return 0, false
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	case uint:
		f = float64(v)
	case uint32:
		f = float64(v)
	case uint64:
		f = float64(v)
	case json.Number:
		n, err := v.Float64()
		if err != nil {
			return 0, false
		}
		f = n
	default:
		s := strings.TrimSpace(displayText(v))
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			// Formatted text such as "£1,250.00"
			n, err = strconv.ParseFloat(stripNumberFormatting(s), 64)
			if err != nil {
				return 0, false
			}
		}
		f = n
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func stripNumberFormatting(s string) string {
	return strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			return r
		}
		return -1
	}, s)
}

// SortRecords returns a stably sorted copy of records. Values compare by
// their string forms with a case-insensitive collation that orders digit runs
// numerically; booleans compare as "1" and "0". A nil sort returns the
// records in their original order.
func SortRecords(schema *TableSchema, records []Record, sortState *SortState) []Record {
	out := append([]Record(nil), records...)
	if sortState == nil || strings.TrimSpace(sortState.Field) == "" {
		return out
	}
	key := strings.TrimSpace(sortState.Field)
	col := collate.New(language.English, collate.IgnoreCase, collate.Numeric)

	keys := make([]string, len(out))
	idx := make([]int, len(out))
	for i, rec := range out {
		idx[i] = i
		keys[i] = sortText(fieldValue(schema, rec, key))
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		c := col.CompareString(keys[a], keys[b])
		if sortState.Descending {
			return -c
		}
		return c
	})

	sorted := make([]Record, len(out))
	for i, j := range idx {
		sorted[i] = out[j]
	}
	return sorted
}

func sortText(v interface{}) string {
	switch val := v.(type) {
	case bool:
		if val {
			return "1"
		}
		return "0"
	case []interface{}, []string:
		return strings.Join(textValues(val), ", ")
	default:
		return displayText(val)
	}
}

// PageInfo describes one page of a result of Count items.
type PageInfo struct {
	Page       int  `json:"page"`
	PageSize   int  `json:"pageSize"`
	Count      int  `json:"count"`
	TotalPages int  `json:"totalPages"`
	CanPrev    bool `json:"canPrev"`
	CanNext    bool `json:"canNext"`
}

// Paginate computes paging info over count items.
func Paginate(count, page, size int) PageInfo {
	info := PageInfo{Page: page, PageSize: size, Count: count}
	if size > 0 {
		info.TotalPages = (count + size - 1) / size
		info.CanNext = (page+1)*size < count
	}
	info.CanPrev = page > 0
	return info
}

// PageSlice returns page (0-based) of items. Out-of-range pages are empty.
func PageSlice(items []Record, page, size int) []Record {
	if size <= 0 || page < 0 {
		return []Record{}
	}
	start := page * size
	if start >= len(items) {
		return []Record{}
	}
	end := min(start+size, len(items))
	return items[start:end]
}

// GridView is what the grid shows for one state.
type GridView struct {
	Rows         []Record `json:"rows"`
	Info         PageInfo `json:"info"`
	ServerDriven bool     `json:"serverDriven"`
	Failed       bool     `json:"failed"`
}

// View composes filter, sort and page over a load result. Server-driven
// results are already filtered, sorted and paged by the data service and
// pass through unchanged.
func View(schema *TableSchema, result *LoadResult, filters ColumnFilters, sortState *SortState, page, size int) GridView {
	if result == nil {
		return GridView{Rows: []Record{}, Info: Paginate(0, page, size)}
	}
	if result.ServerDriven {
		return GridView{
			Rows:         result.Items,
			Info:         Paginate(result.TotalCount, page, size),
			ServerDriven: true,
		}
	}
	filtered := FilterRecords(schema, result.Items, filters)
	sorted := SortRecords(schema, filtered, sortState)
	return GridView{
		Rows:   PageSlice(sorted, page, size),
		Info:   Paginate(len(sorted), page, size),
		Failed: result.Failed,
	}
}

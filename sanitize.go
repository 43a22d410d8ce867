package propertygrid

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// Sanitize normalizes raw filter input against the table schema. It never
// fails: invalid or empty values are dropped. The output contains no empty
// strings, no empty lists and no under-specified ranges, and keys are
// rewritten to their catalog spelling when the field is known.
func Sanitize(schema *TableSchema, raw FilterState) FilterState {
	out := FilterState{
		SearchBy: strings.TrimSpace(raw.SearchBy),
		Values:   make(map[string]FilterValue, len(raw.Values)),
	}
	if fc, ok := schema.Field(out.SearchBy); ok {
		out.SearchBy = fc.Key
	}

	// Sorted so that two spellings of one field resolve deterministically.
	keys := make([]string, 0, len(raw.Values))
	for k := range raw.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		fc, _ := schema.Field(key)
		name := strings.TrimSpace(key)
		if fc != nil {
			name = fc.Key
		}
		if name == "" {
			continue
		}
		if v, ok := sanitizeValue(fc, raw.Values[key], true); ok {
			out.Values[name] = v
		}
	}
	return out
}

// SanitizeColumnFilters applies the sanitizer rules to column filters, except
// the minimum-length gate.
func SanitizeColumnFilters(schema *TableSchema, raw ColumnFilters) ColumnFilters {
	out := make(ColumnFilters, len(raw))
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fc, _ := schema.Field(key)
		name := strings.TrimSpace(key)
		if fc != nil {
			name = fc.Key
		}
		if name == "" {
			continue
		}
		if v, ok := sanitizeValue(fc, raw[key], false); ok {
			out[name] = v
		}
	}
	return out
}

func sanitizeValue(fc *FieldCapability, v FilterValue, gateLength bool) (FilterValue, bool) {
	switch val := v.(type) {
	case Text:
		if fc != nil && fc.Control == ControlMultiSelect {
			return sanitizeMulti(fc, MultiText{string(val)})
		}
		s := sanitizeText(fc, string(val), gateLength)
		if s == "" {
			return nil, false
		}
		return Text(s), true
	case MultiText:
		return sanitizeMulti(fc, val)
	case NumericRange:
		return sanitizeRange(val)
	case DateRange:
		r := DateRange{From: sanitizeDate(val.From), To: sanitizeDate(val.To)}
		if r.From == "" && r.To == "" {
			return nil, false
		}
		return r, true
	default:
		return nil, false
	}
}

func sanitizeText(fc *FieldCapability, s string, gateLength bool) string {
	s = strings.TrimSpace(s)
	if fc == nil {
		return s
	}
	if fc.DigitsOnly {
		s = strings.Map(func(r rune) rune {
			if r >= '0' && r <= '9' {
				return r
			}
			return -1
		}, s)
	}
	if fc.UpperCase {
		s = strings.ToUpper(s)
	}
	if gateLength && fc.MinLength > 0 && utf8.RuneCountInString(s) < fc.MinLength {
		return ""
	}
	return s
}

// sanitizeDate trims one side of a date range and drops it when it is not an
// ISO date, so an unparsable bound reads as an open side everywhere.
func sanitizeDate(s string) string {
	s = strings.TrimSpace(s)
	if _, ok := ISOToWireDate(s); !ok {
		return ""
	}
	return s
}

func sanitizeMulti(fc *FieldCapability, values MultiText) (FilterValue, bool) {
	out := make(MultiText, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	if fc != nil && fc.MultiLimit > 0 && len(out) > fc.MultiLimit {
		out = out[:fc.MultiLimit]
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}

func sanitizeRange(r NumericRange) (FilterValue, bool) {
	if !r.Present() {
		return nil, false
	}
	out := NumericRange{Mode: r.mode()}
	lo, hi := r.Bounds()
	if lo != nil {
		out.Min = Float(*lo)
	}
	if hi != nil {
		out.Max = Float(*hi)
	}
	return out, true
}

package propertygrid

import (
	"strconv"
	"strings"
)

// Reserved parameter names of the grid API.
const (
	ParamPageNumber  = "pageNumber"
	ParamPageSize    = "pageSize"
	ParamRequestedBy = "RequestedBy"
	ParamSearchQuery = "SearchQuery"
	ParamSource      = "source"
)

// Numeric operator codes sent in {key}Operator.
const (
	OperatorGE = "GE"
	OperatorLE = "LE"
	OperatorBT = "BT"
)

// ParamOptions carries the optional request-level parameters.
type ParamOptions struct {
	RequestedBy string
	SearchQuery string
	Source      string
}

// BuildGridAPIParams encodes sanitized filters and paging into the flat
// parameter map of the grid API. page is 0-based.
func BuildGridAPIParams(schema *TableSchema, filters FilterState, page, pageSize int, opts ParamOptions) map[string]string {
	params := map[string]string{
		ParamPageNumber: strconv.Itoa(page + 1),
		ParamPageSize:   strconv.Itoa(pageSize),
	}

	for key, v := range filters.Values {
		fc, ok := schema.Field(key)
		if !ok {
			continue
		}
		// Only the selected search-by field takes part among the searchable ones
		if schema.IsSearchable(fc.Key) && NormalizeKey(fc.Key) != NormalizeKey(filters.SearchBy) {
			continue
		}
		encodeParam(params, fc.ParamKey, v)
	}

	if s := strings.TrimSpace(opts.RequestedBy); s != "" {
		params[ParamRequestedBy] = s
	}
	if s := strings.TrimSpace(opts.SearchQuery); s != "" {
		params[ParamSearchQuery] = s
	}
	if s := strings.TrimSpace(opts.Source); s != "" {
		params[ParamSource] = s
	}
	return params
}

func encodeParam(params map[string]string, key string, v FilterValue) {
	switch val := v.(type) {
	case Text:
		params[key] = string(val)
	case MultiText:
		params[key] = strings.Join(val, ",")
	case NumericRange:
		lo, hi := val.Bounds()
		switch {
		case lo != nil && hi != nil:
			params[key+"From"] = formatNumber(*lo)
			params[key+"To"] = formatNumber(*hi)
			params[key+"Operator"] = OperatorBT
		case lo != nil:
			params[key] = formatNumber(*lo)
			params[key+"Operator"] = OperatorGE
		case hi != nil:
			params[key] = formatNumber(*hi)
			params[key+"Operator"] = OperatorLE
		}
	case DateRange:
		if val.From != "" {
			params[key] = val.From
		} else if val.To != "" {
			params[key] = val.To
		}
	}
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// GridAPIRequest is a parameter map decoded back into filters and paging.
type GridAPIRequest struct {
	Filters     FilterState
	Page        int
	PageSize    int
	RequestedBy string
	SearchQuery string
	Source      string
}

// ParseGridAPIParams decodes a parameter map produced by BuildGridAPIParams.
// Values that cannot be parsed for their field are ignored. Page is 0-based;
// a missing or invalid page size is left at 0 for the caller to default.
func ParseGridAPIParams(schema *TableSchema, values map[string]string) GridAPIRequest {
	req := GridAPIRequest{
		Filters:     NewFilterState(""),
		RequestedBy: values[ParamRequestedBy],
		SearchQuery: values[ParamSearchQuery],
		Source:      values[ParamSource],
	}
	if n, err := strconv.Atoi(values[ParamPageNumber]); err == nil && n > 0 {
		req.Page = n - 1
	}
	if n, err := strconv.Atoi(values[ParamPageSize]); err == nil && n > 0 {
		req.PageSize = n
	}

	for _, fc := range schema.Fields() {
		v, ok := decodeParam(fc, values)
		if !ok {
			continue
		}
		if v, ok = sanitizeValue(fc, v, false); ok {
			req.Filters.Values[fc.Key] = v
		}
	}
	return req
}

func decodeParam(fc *FieldCapability, values map[string]string) (FilterValue, bool) {
	key := fc.ParamKey
	switch fc.Control {
	case ControlNumeric:
		switch values[key+"Operator"] {
		case OperatorBT:
			lo, errLo := strconv.ParseFloat(values[key+"From"], 64)
			hi, errHi := strconv.ParseFloat(values[key+"To"], 64)
			if errLo != nil || errHi != nil {
				return nil, false
			}
			return NumericRange{Mode: RangeBetween, Min: Float(lo), Max: Float(hi)}, true
		case OperatorLE:
			hi, err := strconv.ParseFloat(values[key], 64)
			if err != nil {
				return nil, false
			}
			return NumericRange{Mode: RangeLTE, Max: Float(hi)}, true
		default:
			raw, ok := values[key]
			if !ok {
				return nil, false
			}
			lo, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, false
			}
			return NumericRange{Mode: RangeGTE, Min: Float(lo)}, true
		}
	case ControlDateRange:
		if s := strings.TrimSpace(values[key]); s != "" {
			// A single date is all the parameter map can carry; read it as that day.
			return DateRange{From: s, To: s}, true
		}
	case ControlMultiSelect:
		if s := strings.TrimSpace(values[key]); s != "" {
			var out MultiText
			for _, part := range strings.Split(s, ",") {
				if part = strings.TrimSpace(part); part != "" {
					out = append(out, part)
				}
			}
			if len(out) > 0 {
				return out, true
			}
		}
	default:
		if s := strings.TrimSpace(values[key]); s != "" {
			return Text(s), true
		}
	}
	return nil, false
}

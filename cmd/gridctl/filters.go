package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gnemet/propertygrid"
)

// parseFilterArgs turns repeated key=value flags into filter values for the
// field's control type:
//
//	numeric     100..200, 100.., ..200, >=100, <=200, 100
//	dateRange   2026-01-01..2026-01-31, 2026-01-01.., ..2026-01-31, 2026-01-05
//	multiSelect a,b,c
func parseFilterArgs(schema *propertygrid.TableSchema, args []string) (map[string]propertygrid.FilterValue, error) {
	out := make(map[string]propertygrid.FilterValue, len(args))
	for _, arg := range args {
		name, raw, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("filter %q: expected key=value", arg)
		}
		fc, ok := schema.Field(name)
		if !ok {
			fc, ok = schema.FieldByAPIKey(name)
		}
		if !ok {
			return nil, fmt.Errorf("filter %q: table %s has no field %q", arg, schema.Name, name)
		}
		v, err := parseFilterValue(fc.Control, raw)
		if err != nil {
			return nil, fmt.Errorf("filter %q: %w", arg, err)
		}
		out[fc.Key] = v
	}
	return out, nil
}

func parseFilterValue(control propertygrid.ControlType, raw string) (propertygrid.FilterValue, error) {
	raw = strings.TrimSpace(raw)
	switch control {
	case propertygrid.ControlNumeric:
		return parseNumericRange(raw)
	case propertygrid.ControlDateRange:
		if from, to, ok := strings.Cut(raw, ".."); ok {
			return propertygrid.DateRange{From: strings.TrimSpace(from), To: strings.TrimSpace(to)}, nil
		}
		return propertygrid.DateRange{From: raw, To: raw}, nil
	case propertygrid.ControlMultiSelect:
		var values propertygrid.MultiText
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				values = append(values, part)
			}
		}
		return values, nil
	default:
		return propertygrid.Text(raw), nil
	}
}

func parseNumericRange(raw string) (propertygrid.FilterValue, error) {
	switch {
	case strings.HasPrefix(raw, ">="):
		n, err := parseNumber(raw[2:])
		return propertygrid.NumericRange{Mode: propertygrid.RangeGTE, Min: n}, err
	case strings.HasPrefix(raw, "<="):
		n, err := parseNumber(raw[2:])
		return propertygrid.NumericRange{Mode: propertygrid.RangeLTE, Max: n}, err
	}

	lo, hi, ok := strings.Cut(raw, "..")
	if !ok {
		n, err := parseNumber(raw)
		return propertygrid.NumericRange{Mode: propertygrid.RangeGTE, Min: n}, err
	}
	r := propertygrid.NumericRange{Mode: propertygrid.RangeBetween}
	var err error
	if strings.TrimSpace(lo) != "" {
		if r.Min, err = parseNumber(lo); err != nil {
			return nil, err
		}
	}
	if strings.TrimSpace(hi) != "" {
		if r.Max, err = parseNumber(hi); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func parseNumber(s string) (*float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil, fmt.Errorf("%q is not a number", strings.TrimSpace(s))
	}
	return &f, nil
}

// parseSort accepts "field", "field:asc", "field:desc" or "-field".
func parseSort(schema *propertygrid.TableSchema, s string) (*propertygrid.SortState, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	desc := false
	if strings.HasPrefix(s, "-") {
		desc, s = true, s[1:]
	}
	if name, dir, ok := strings.Cut(s, ":"); ok {
		switch strings.ToLower(dir) {
		case "asc":
		case "desc":
			desc = true
		default:
			return nil, fmt.Errorf("sort %q: direction must be asc or desc", s)
		}
		s = name
	}
	fc, ok := schema.Field(s)
	if !ok {
		return nil, fmt.Errorf("sort: table %s has no field %q", schema.Name, s)
	}
	return &propertygrid.SortState{Field: fc.Key, Descending: desc}, nil
}

// parseMeasure accepts "FUNC:field", e.g. "SUM:salePrice", or "COUNT".
func parseMeasure(s string) (*propertygrid.FacetMeasure, error) {
	if s == "" {
		return nil, nil
	}
	fn, field, _ := strings.Cut(s, ":")
	fn = strings.ToUpper(strings.TrimSpace(fn))
	switch fn {
	case propertygrid.AggCount:
	case propertygrid.AggSum, propertygrid.AggAvg, propertygrid.AggMin, propertygrid.AggMax:
		if strings.TrimSpace(field) == "" {
			return nil, fmt.Errorf("measure %q: %s needs a field", s, fn)
		}
	default:
		return nil, fmt.Errorf("measure %q: unknown function %s", s, fn)
	}
	return &propertygrid.FacetMeasure{Func: fn, Field: strings.TrimSpace(field)}, nil
}

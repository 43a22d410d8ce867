package propertygrid

import (
	"fmt"
	"sort"
	"strings"
)

// Aggregate functions for a facet measure.
const (
	AggCount = "COUNT"
	AggSum   = "SUM"
	AggAvg   = "AVG"
	AggMin   = "MIN"
	AggMax   = "MAX"
)

// FacetMeasure aggregates a numeric field over each group.
type FacetMeasure struct {
	Field string `json:"field" yaml:"field"`
	Func  string `json:"func" yaml:"func"`
}

// Facet is a node of a grouped summary over loaded records.
type Facet struct {
	Depth    int      `json:"depth"`    // 0 = outermost group
	Key      string   `json:"key"`      // composite key, e.g. "0:Cardiff|1:Complete"
	Label    string   `json:"label"`    // group value
	Count    int      `json:"count"`    // records in the group
	Value    float64  `json:"value"`    // measure result, when a measure is set
	Children []*Facet `json:"children,omitempty"`
}

// GroupRecords builds a facet tree from records, one level per field (UI
// keys), with an optional measure. Records missing a level value are grouped
// under "(none)".
func GroupRecords(schema *TableSchema, records []Record, levels []string, measure *FacetMeasure) []*Facet {
	return groupRecords(schema, records, levels, measure, 0, "")
}

func groupRecords(schema *TableSchema, records []Record, levels []string, measure *FacetMeasure, depth int, parentKey string) []*Facet {
	if len(levels) == 0 || len(records) == 0 {
		return nil
	}

	level := levels[0]
	groups := make(map[string][]Record)
	groupOrder := []string{}

	for _, rec := range records {
		val := "(none)"
		if s := strings.TrimSpace(sortText(fieldValue(schema, rec, level))); s != "" {
			val = s
		}
		if _, exists := groups[val]; !exists {
			groupOrder = append(groupOrder, val)
		}
		groups[val] = append(groups[val], rec)
	}

	sort.Strings(groupOrder)

	result := make([]*Facet, 0, len(groupOrder))
	for _, label := range groupOrder {
		groupRecs := groups[label]
		key := fmt.Sprintf("%d:%s", depth, label)
		if parentKey != "" {
			key = parentKey + "|" + key
		}
		f := &Facet{
			Depth: depth,
			Key:   key,
			Label: label,
			Count: len(groupRecs),
		}
		if measure != nil {
			f.Value = aggregateValue(schema, groupRecs, *measure)
		}
		f.Children = groupRecords(schema, groupRecs, levels[1:], measure, depth+1, key)
		result = append(result, f)
	}
	return result
}

// aggregateValue skips records whose measure field is not numeric.
func aggregateValue(schema *TableSchema, records []Record, m FacetMeasure) float64 {
	fn := strings.ToUpper(m.Func)
	if fn == AggCount {
		return float64(len(records))
	}

	var sum, lo, hi float64
	count := 0
	for _, rec := range records {
		v, ok := toNumber(fieldValue(schema, rec, m.Field))
		if !ok {
			continue
		}
		if count == 0 || v < lo {
			lo = v
		}
		if count == 0 || v > hi {
			hi = v
		}
		sum += v
		count++
	}

	switch fn {
	case AggAvg:
		if count > 0 {
			return sum / float64(count)
		}
		return 0
	case AggMin:
		return lo
	case AggMax:
		return hi
	default:
		return sum
	}
}

// FlattenFacets returns the tree in depth-first order.
func FlattenFacets(tree []*Facet) []*Facet {
	var flat []*Facet
	for _, f := range tree {
		flat = append(flat, f)
		if f.Children != nil {
			flat = append(flat, FlattenFacets(f.Children)...)
		}
	}
	return flat
}

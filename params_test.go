package propertygrid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildGridAPIParams_NumericModes(t *testing.T) {
	schema := testSchema(t, "sales")
	tests := []struct {
		name string
		in   NumericRange
		want map[string]string
	}{
		{
			"GTE",
			NumericRange{Mode: RangeGTE, Min: Float(100000)},
			map[string]string{"salePrice": "100000", "salePriceOperator": "GE"},
		},
		{
			"LTE",
			NumericRange{Mode: RangeLTE, Max: Float(250000.5)},
			map[string]string{"salePrice": "250000.5", "salePriceOperator": "LE"},
		},
		{
			"BETWEEN both",
			NumericRange{Mode: RangeBetween, Min: Float(100000), Max: Float(250000)},
			map[string]string{"salePriceFrom": "100000", "salePriceTo": "250000", "salePriceOperator": "BT"},
		},
		{
			"BETWEEN min only",
			NumericRange{Mode: RangeBetween, Min: Float(100000)},
			map[string]string{"salePrice": "100000", "salePriceOperator": "GE"},
		},
		{
			"BETWEEN max only",
			NumericRange{Mode: RangeBetween, Max: Float(250000)},
			map[string]string{"salePrice": "250000", "salePriceOperator": "LE"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filters := Sanitize(schema, FilterState{SearchBy: "uprn", Values: map[string]FilterValue{"salePrice": tt.in}})
			got := BuildGridAPIParams(schema, filters, 0, 25, ParamOptions{})
			tt.want["pageNumber"] = "1"
			tt.want["pageSize"] = "25"
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildGridAPIParams_FieldShapes(t *testing.T) {
	schema := testSchema(t, "tasks")
	filters := Sanitize(schema, FilterState{
		SearchBy: "address",
		Values: map[string]FilterValue{
			"address":      Text("High Street"),
			"postcode":     Text("CF10"), // searchable but not the search-by field
			"taskStatus":   MultiText{"Assigned", "Complete"},
			"assignee":     Text("jo.bloggs"),
			"assignedDate": DateRange{To: "2026-02-03"},
			"unknown":      Text("ignored"),
		},
	})

	got := BuildGridAPIParams(schema, filters, 4, 100, ParamOptions{
		RequestedBy: "  ",
		SearchQuery: "columnFilter=taskId~eq~1",
		Source:      "tasks",
	})
	assert.Equal(t, map[string]string{
		"address":      "High Street",
		"taskStatus":   "Assigned,Complete",
		"assignedTo":   "jo.bloggs",
		"assignedDate": "2026-02-03",
		"pageNumber":   "5",
		"pageSize":     "100",
		"SearchQuery":  "columnFilter=taskId~eq~1",
		"source":       "tasks",
	}, got)
}

func TestBuildGridAPIParams_DatePrefersFrom(t *testing.T) {
	schema := testSchema(t, "sales")
	got := BuildGridAPIParams(schema, FilterState{Values: map[string]FilterValue{
		"saleDate": DateRange{From: "2026-01-01", To: "2026-01-31"},
	}}, 0, 10, ParamOptions{RequestedBy: "ops@example.com"})
	assert.Equal(t, "2026-01-01", got["saleDate"])
	assert.Equal(t, "ops@example.com", got["RequestedBy"])
	assert.NotContains(t, got, "SearchQuery")
	assert.NotContains(t, got, "source")
}

func TestParseGridAPIParams_RoundTrip(t *testing.T) {
	schema := testSchema(t, "tasks")
	filters := Sanitize(schema, FilterState{
		SearchBy: "uprn",
		Values: map[string]FilterValue{
			"uprn":       Text("12345678"),
			"taskStatus": MultiText{"Assigned", "Complete"},
			"salePrice":  NumericRange{Mode: RangeBetween, Min: Float(1.5), Max: Float(99)},
			"assignee":   Text("sam"),
		},
	})
	params := BuildGridAPIParams(schema, filters, 2, 30, ParamOptions{RequestedBy: "sam", SearchQuery: "q", Source: "tasks"})

	req := ParseGridAPIParams(schema, params)
	assert.Equal(t, 2, req.Page)
	assert.Equal(t, 30, req.PageSize)
	assert.Equal(t, "sam", req.RequestedBy)
	assert.Equal(t, "q", req.SearchQuery)
	assert.Equal(t, "tasks", req.Source)
	assert.Equal(t, filters.Values, req.Filters.Values)
}

func TestParseGridAPIParams_Lenient(t *testing.T) {
	schema := testSchema(t, "sales")
	req := ParseGridAPIParams(schema, map[string]string{
		"pageNumber":        "zero",
		"pageSize":          "-4",
		"salePrice":         "lots",
		"salePriceOperator": "GE",
		"saleDate":          "2026-05-06",
		"billingAuthority":  " , Cardiff,,",
	})
	assert.Equal(t, 0, req.Page)
	assert.Equal(t, 0, req.PageSize)
	assert.NotContains(t, req.Filters.Values, "salePrice")
	assert.Equal(t, DateRange{From: "2026-05-06", To: "2026-05-06"}, req.Filters.Values["saleDate"])
	require.Contains(t, req.Filters.Values, "billingAuthority")
	assert.Equal(t, MultiText{"Cardiff"}, req.Filters.Values["billingAuthority"])
}

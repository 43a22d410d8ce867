package propertygrid

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func taskRecords() []Record {
	return []Record{
		{"taskId": "1", "address": "12 High Street", "postcode": "CF10 1AA", "taskStatus": "Assigned", "assignedTo": "Sam", "assignedDate": "2026-02-01", "salePrice": 150000.0, "billingAuthority": []interface{}{"Cardiff"}},
		{"taskId": "2", "address": "4 Low Road", "postcode": "SA1 2BB", "taskStatus": "Complete", "assignedTo": "jo", "assignedDate": "2026-02-03T16:30:00Z", "salePrice": "£250,000.00", "billingAuthority": []interface{}{"Swansea", "Neath"}},
		{"taskId": "3", "address": "high street north", "postcode": "cf11 9zz", "taskStatus": "Unassigned", "assignedTo": nil, "assignedDate": "not a date", "salePrice": "n/a"},
		{"taskId": "10", "address": "Mill Lane", "postcode": "NP20 3CC", "taskStatus": "In Progress", "assignedTo": "Alex", "assignedDate": time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC), "salePrice": json.Number("99000")},
	}
}

func ids(records []Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, fmt.Sprint(r["taskId"]))
	}
	return out
}

func TestFilterRecords(t *testing.T) {
	schema := testSchema(t, "tasks")
	records := taskRecords()

	tests := []struct {
		name    string
		filters ColumnFilters
		want    []string
	}{
		{"no filters", nil, []string{"1", "2", "3", "10"}},
		{"contains is case-insensitive", ColumnFilters{"address": Text("HIGH street")}, []string{"1", "3"}},
		{"prefix", ColumnFilters{"postcode": Text("cf1")}, []string{"1", "3"}},
		{"prefix does not match inside", ColumnFilters{"postcode": Text("1AA")}, []string{}},
		{"single select is exact", ColumnFilters{"assignee": Text("SAM")}, []string{"1"}},
		{"single select rejects partial", ColumnFilters{"assignee": Text("Sa")}, []string{}},
		{"multi any of", ColumnFilters{"taskStatus": MultiText{"complete", "Unassigned"}}, []string{"2", "3"}},
		{"multi against array field", ColumnFilters{"billingAuthority": MultiText{"neath"}}, []string{"2"}},
		{"numeric gte with formatted text", ColumnFilters{"salePrice": NumericRange{Min: Float(150000)}}, []string{"1", "2"}},
		{"numeric lte", ColumnFilters{"salePrice": NumericRange{Mode: RangeLTE, Max: Float(150000)}}, []string{"1", "10"}},
		{"numeric between", ColumnFilters{"salePrice": NumericRange{Mode: RangeBetween, Min: Float(100000), Max: Float(200000)}}, []string{"1"}},
		{"date whole day upper bound", ColumnFilters{"assignedDate": DateRange{From: "2026-02-01", To: "2026-02-03"}}, []string{"1", "2"}},
		{"date from only", ColumnFilters{"assignedDate": DateRange{From: "2026-02-02"}}, []string{"2"}},
		{"date to only", ColumnFilters{"assignedDate": DateRange{To: "2026-01-31"}}, []string{"10"}},
		{"conjunction", ColumnFilters{"address": Text("high"), "taskStatus": MultiText{"Assigned"}}, []string{"1"}},
		{"text eq is exact", ColumnFilters{"taskId": Text("1")}, []string{"1"}},
		{"unmapped key matches raw field", ColumnFilters{"assignedTo": Text("al")}, []string{"10"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(FilterRecords(schema, records, tt.filters)))
		})
	}
}

func TestFilterRecords_IsSubsetAndPure(t *testing.T) {
	schema := testSchema(t, "tasks")
	records := taskRecords()
	filters := ColumnFilters{"address": Text("street")}

	first := FilterRecords(schema, records, filters)
	second := FilterRecords(schema, records, filters)
	assert.Equal(t, first, second)
	assert.LessOrEqual(t, len(first), len(records))
	for _, r := range first {
		assert.True(t, Matches(schema, r, filters))
	}
	assert.Len(t, records, 4)
}

func TestFilterRecords_UnparsableDateBoundIsOpen(t *testing.T) {
	schema := testSchema(t, "tasks")
	records := taskRecords()

	for _, r := range []DateRange{{From: "2026-13-45"}, {To: "garbage"}, {From: "soon", To: "later"}} {
		filters := ColumnFilters{"assignedDate": r}
		assert.Empty(t, BuildColumnFilterQuery(schema, filters, nil), "server gets no clause for %+v", r)
		assert.Len(t, FilterRecords(schema, records, filters), len(records), "client keeps every row for %+v", r)
	}

	got := FilterRecords(schema, records, ColumnFilters{"assignedDate": DateRange{From: "2026-02-02", To: "2026-02-31"}})
	assert.Equal(t, []string{"2"}, ids(got), "invalid upper bound leaves that side open")
}

func TestMatchDate_OpenSides(t *testing.T) {
	assert.True(t, matchDate("2026-02-01", DateRange{From: "garbage", To: "2026-02-03"}))
	assert.False(t, matchDate("2026-02-04", DateRange{From: "garbage", To: "2026-02-03"}))
	assert.True(t, matchDate("2026-02-03T23:59:00Z", DateRange{From: "2026-02-03", To: "nope"}))
	assert.False(t, matchDate("not a date", DateRange{}))
}

var (
	genStreets  = []string{"High Street", "Mill Lane", "Low Road", "Church Walk", "high st"}
	genPrefixes = []string{"CF10", "CF11", "SA1", "NP20", "LL57"}
	genStatuses = []string{"Assigned", "Complete", "Unassigned", "In Progress"}
	genPeople   = []string{"Sam", "jo", "Alex", "SAM"}
	genCouncils = []string{"Cardiff", "Swansea", "Neath", "Newport"}
)

func randomTaskRecord(rng *rand.Rand, id int) Record {
	rec := Record{
		"taskId":     fmt.Sprint(id),
		"address":    fmt.Sprintf("%d %s", rng.Intn(50)+1, genStreets[rng.Intn(len(genStreets))]),
		"postcode":   fmt.Sprintf("%s %dAB", genPrefixes[rng.Intn(len(genPrefixes))], rng.Intn(9)),
		"taskStatus": genStatuses[rng.Intn(len(genStatuses))],
	}
	if rng.Intn(5) > 0 {
		rec["assignedTo"] = genPeople[rng.Intn(len(genPeople))]
	}
	if rng.Intn(6) > 0 {
		rec["salePrice"] = float64(rng.Intn(40) * 10000)
	}
	if rng.Intn(6) > 0 {
		rec["assignedDate"] = fmt.Sprintf("2026-01-%02d", rng.Intn(28)+1)
	}
	n := rng.Intn(3)
	councils := make([]interface{}, 0, n)
	for i := 0; i < n; i++ {
		councils = append(councils, genCouncils[rng.Intn(len(genCouncils))])
	}
	rec["billingAuthority"] = councils
	return rec
}

func randomTaskFilters(rng *rand.Rand) ColumnFilters {
	day := func() string { return fmt.Sprintf("2026-01-%02d", rng.Intn(28)+1) }
	price := func() *float64 { return Float(float64(rng.Intn(40) * 10000)) }
	pick := func(from []string) MultiText {
		out := MultiText{}
		for i := rng.Intn(3) + 1; i > 0; i-- {
			out = append(out, strings.ToLower(from[rng.Intn(len(from))]))
		}
		return out
	}

	candidates := []func() (string, FilterValue){
		func() (string, FilterValue) { return "taskId", Text(fmt.Sprint(rng.Intn(30))) },
		func() (string, FilterValue) { return "address", Text(strings.ToUpper(strings.TrimSpace(genStreets[rng.Intn(len(genStreets))][:4]))) },
		func() (string, FilterValue) { return "postcode", Text(strings.ToLower(genPrefixes[rng.Intn(len(genPrefixes))])) },
		func() (string, FilterValue) { return "assignee", Text(genPeople[rng.Intn(len(genPeople))]) },
		func() (string, FilterValue) { return "taskStatus", pick(genStatuses) },
		func() (string, FilterValue) { return "billingAuthority", pick(genCouncils) },
		func() (string, FilterValue) {
			switch rng.Intn(3) {
			case 0:
				return "salePrice", NumericRange{Mode: RangeGTE, Min: price()}
			case 1:
				return "salePrice", NumericRange{Mode: RangeLTE, Max: price()}
			default:
				return "salePrice", NumericRange{Mode: RangeBetween, Min: price(), Max: price()}
			}
		},
		func() (string, FilterValue) {
			switch rng.Intn(3) {
			case 0:
				return "assignedDate", DateRange{From: day()}
			case 1:
				return "assignedDate", DateRange{To: day()}
			default:
				return "assignedDate", DateRange{From: day(), To: day()}
			}
		},
	}

	filters := ColumnFilters{}
	for _, i := range rng.Perm(len(candidates))[:rng.Intn(4)] {
		key, v := candidates[i]()
		filters[key] = v
	}
	return filters
}

// passesScan is a direct restatement of the column filter rules over the
// generated record shape.
func passesScan(rec Record, filters ColumnFilters) bool {
	str := func(key string) (string, bool) {
		s, ok := rec[key].(string)
		return s, ok
	}
	anyEqual := func(haystack []string, needles MultiText) bool {
		for _, h := range haystack {
			for _, n := range needles {
				if strings.EqualFold(h, n) {
					return true
				}
			}
		}
		return false
	}

	for key, fv := range filters {
		ok := false
		switch key {
		case "taskId":
			s, _ := str("taskId")
			ok = s == string(fv.(Text))
		case "address":
			s, _ := str("address")
			ok = strings.Contains(strings.ToLower(s), strings.ToLower(string(fv.(Text))))
		case "postcode":
			s, _ := str("postcode")
			ok = strings.HasPrefix(strings.ToLower(s), strings.ToLower(string(fv.(Text))))
		case "assignee":
			s, present := str("assignedTo")
			ok = present && strings.EqualFold(s, string(fv.(Text)))
		case "taskStatus":
			s, _ := str("taskStatus")
			ok = anyEqual([]string{s}, fv.(MultiText))
		case "billingAuthority":
			var councils []string
			for _, c := range rec["billingAuthority"].([]interface{}) {
				councils = append(councils, c.(string))
			}
			ok = anyEqual(councils, fv.(MultiText))
		case "salePrice":
			p, present := rec["salePrice"].(float64)
			r := fv.(NumericRange)
			ok = present &&
				(r.Min == nil || p >= *r.Min) &&
				(r.Max == nil || p <= *r.Max)
		case "assignedDate":
			d, present := str("assignedDate")
			r := fv.(DateRange)
			ok = present &&
				(r.From == "" || d >= r.From) &&
				(r.To == "" || d <= r.To)
		}
		if !ok {
			return false
		}
	}
	return true
}

func TestFilterRecords_AgreesWithLinearScan(t *testing.T) {
	schema := testSchema(t, "tasks")
	rng := rand.New(rand.NewSource(20260201))

	for round := 0; round < 200; round++ {
		records := make([]Record, rng.Intn(60))
		for i := range records {
			records[i] = randomTaskRecord(rng, i)
		}
		filters := randomTaskFilters(rng)

		want := 0
		for _, rec := range records {
			if passesScan(rec, filters) {
				want++
			}
		}
		got := FilterRecords(schema, records, filters)
		require.Len(t, got, want, "round %d filters %+v", round, filters)
		for _, rec := range got {
			require.True(t, passesScan(rec, filters), "round %d: %v should have been filtered out", round, rec)
		}
	}
}

func TestFilterRecords_NullNeverMatches(t *testing.T) {
	schema := testSchema(t, "tasks")
	got := FilterRecords(schema, taskRecords(), ColumnFilters{"assignee": Text("nil")})
	assert.Empty(t, got)
}

func TestSortRecords(t *testing.T) {
	schema := testSchema(t, "tasks")
	records := taskRecords()

	asc := SortRecords(schema, records, &SortState{Field: "taskId"})
	assert.Equal(t, []string{"1", "2", "3", "10"}, ids(asc), "digit runs compare numerically")

	desc := SortRecords(schema, records, &SortState{Field: "taskId", Descending: true})
	assert.Equal(t, []string{"10", "3", "2", "1"}, ids(desc))

	byName := SortRecords(schema, records, &SortState{Field: "assignee"})
	assert.Equal(t, []string{"3", "10", "2", "1"}, ids(byName), "null first, then case-insensitive")

	assert.Equal(t, []string{"1", "2", "3", "10"}, ids(records), "input untouched")
	assert.Equal(t, ids(records), ids(SortRecords(schema, records, nil)))
}

func TestSortRecords_Stable(t *testing.T) {
	schema := testSchema(t, "tasks")
	records := []Record{
		{"taskId": "a", "taskStatus": "Open"},
		{"taskId": "b", "taskStatus": "open"},
		{"taskId": "c", "taskStatus": "Closed"},
		{"taskId": "d", "taskStatus": "OPEN"},
	}
	got := SortRecords(schema, records, &SortState{Field: "taskStatus"})
	assert.Equal(t, []string{"c", "a", "b", "d"}, ids(got))

	got = SortRecords(schema, records, &SortState{Field: "taskStatus", Descending: true})
	assert.Equal(t, []string{"a", "b", "d", "c"}, ids(got))
}

func TestSortRecords_Booleans(t *testing.T) {
	records := []Record{
		{"taskId": "a", "flag": true},
		{"taskId": "b", "flag": false},
		{"taskId": "c", "flag": true},
	}
	got := SortRecords(nil, records, &SortState{Field: "flag"})
	assert.Equal(t, []string{"b", "a", "c"}, ids(got))
}

func TestPageSlice(t *testing.T) {
	items := make([]Record, 0, 23)
	for i := 0; i < 23; i++ {
		items = append(items, Record{"taskId": i})
	}

	assert.Len(t, PageSlice(items, 0, 10), 10)
	assert.Len(t, PageSlice(items, 2, 10), 3)
	assert.Empty(t, PageSlice(items, 3, 10))
	assert.Empty(t, PageSlice(items, -1, 10))
	assert.Empty(t, PageSlice(items, 0, 0))

	// Concatenating all pages reproduces the input
	var all []Record
	for p := 0; p < Paginate(len(items), 0, 10).TotalPages; p++ {
		all = append(all, PageSlice(items, p, 10)...)
	}
	assert.Equal(t, items, all)
}

func TestPaginate(t *testing.T) {
	assert.Equal(t, PageInfo{Page: 0, PageSize: 10, Count: 23, TotalPages: 3, CanPrev: false, CanNext: true}, Paginate(23, 0, 10))
	assert.Equal(t, PageInfo{Page: 2, PageSize: 10, Count: 23, TotalPages: 3, CanPrev: true, CanNext: false}, Paginate(23, 2, 10))
	assert.Equal(t, PageInfo{Page: 0, PageSize: 10, Count: 0, TotalPages: 0}, Paginate(0, 0, 10))
	assert.Equal(t, 2, Paginate(20, 0, 10).TotalPages)
}

func TestView(t *testing.T) {
	schema := testSchema(t, "tasks")

	client := &LoadResult{Items: taskRecords(), TotalCount: 4}
	v := View(schema, client, ColumnFilters{"address": Text("street")}, &SortState{Field: "taskId", Descending: true}, 0, 1)
	require.Len(t, v.Rows, 1)
	assert.Equal(t, "3", v.Rows[0]["taskId"])
	assert.Equal(t, 2, v.Info.Count)
	assert.Equal(t, 2, v.Info.TotalPages)
	assert.True(t, v.Info.CanNext)
	assert.False(t, v.ServerDriven)

	server := &LoadResult{Items: taskRecords()[:2], TotalCount: 5000, ServerDriven: true}
	v = View(schema, server, ColumnFilters{"address": Text("nothing matches")}, nil, 3, 2)
	assert.Len(t, v.Rows, 2, "server-driven pages pass through")
	assert.Equal(t, 2500, v.Info.TotalPages)
	assert.True(t, v.ServerDriven)

	v = View(schema, nil, nil, nil, 0, 10)
	assert.Empty(t, v.Rows)

	failed := failedResult(1, "req")
	v = View(schema, failed, nil, nil, 0, 10)
	assert.True(t, v.Failed)
	assert.Empty(t, v.Rows)
}

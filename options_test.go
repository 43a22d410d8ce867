package propertygrid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistinctValues(t *testing.T) {
	got := DistinctValues(taskRecords(), "billingAuthority")
	assert.Equal(t, []OptionCount{
		{Value: "Cardiff", Count: 1},
		{Value: "Neath", Count: 1},
		{Value: "Swansea", Count: 1},
	}, got)

	got = DistinctValues([]Record{
		{"assignedTo": "Sam"},
		{"assignedTo": " Sam "},
		{"assignedTo": ""},
		{"assignedTo": nil},
		{"reviewer": "Alex"},
	}, "assignedTo", "reviewer")
	assert.Equal(t, []OptionCount{{Value: "Alex", Count: 1}, {Value: "Sam", Count: 2}}, got)
}

func TestOptionsFor(t *testing.T) {
	schema := testSchema(t, "tasks")
	result := &LoadResult{
		Items: []Record{
			{"assignedTo": "Sam"},
			{"assignedTo": "Alex"},
			{"assignedTo": "sam"},
		},
		Filters: map[string][]string{"assignedTo": {"Jo", "Alex"}},
	}

	opts := schema.OptionsFor("assignee", result)
	values := make([]string, 0, len(opts))
	for _, o := range opts {
		values = append(values, o.String())
		assert.NotEmpty(t, o.Label)
	}
	assert.Equal(t, []string{"Jo", "Alex", "Sam"}, values)

	status := schema.OptionsFor("taskStatus", nil)
	require.Len(t, status, 4)
	assert.Equal(t, "Unassigned", status[0].Label)

	assert.Nil(t, schema.OptionsFor("missing", result))
}

func TestSelectAll(t *testing.T) {
	tasks := testSchema(t, "tasks")
	assert.Equal(t, []string{"Unassigned", "Assigned", "In Progress", "Complete"}, tasks.SelectAll("taskStatus"))

	sales := testSchema(t, "sales")
	assert.Equal(t, []string{"Cardiff", "Swansea", "Newport", "Wrexham"}, sales.SelectAll("billingAuthority"))
	assert.Equal(t, []string{"D", "S", "T", "F"}, sales.SelectAll("propertyType"))
	assert.Nil(t, sales.SelectAll("missing"))
}

func TestLimitSelection(t *testing.T) {
	assert.Equal(t, []string{"b", "c", "d"}, LimitSelection([]string{"a", "b", "c", "d"}, 3))
	assert.Equal(t, []string{"a", "b"}, LimitSelection([]string{"a", "b"}, 3))
	assert.Equal(t, []string{"a", "b"}, LimitSelection([]string{"a", "b"}, 0))

	in := []string{"a", "b", "c"}
	out := LimitSelection(in, 2)
	out[0] = "z"
	assert.Equal(t, []string{"a", "b", "c"}, in)
}

package propertygrid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupRecords(t *testing.T) {
	schema := testSchema(t, "tasks")
	records := []Record{
		{"taskStatus": "Complete", "assignedTo": "Sam", "salePrice": 100.0},
		{"taskStatus": "Assigned", "assignedTo": "Sam", "salePrice": "200"},
		{"taskStatus": "Complete", "assignedTo": "Alex", "salePrice": 300.0},
		{"taskStatus": "Complete", "assignedTo": nil, "salePrice": "n/a"},
	}

	tree := GroupRecords(schema, records, []string{"taskStatus", "assignee"}, &FacetMeasure{Field: "salePrice", Func: AggSum})
	require.Len(t, tree, 2)

	assert.Equal(t, "Assigned", tree[0].Label)
	assert.Equal(t, 1, tree[0].Count)
	assert.Equal(t, 200.0, tree[0].Value)

	complete := tree[1]
	assert.Equal(t, "Complete", complete.Label)
	assert.Equal(t, "0:Complete", complete.Key)
	assert.Equal(t, 3, complete.Count)
	assert.Equal(t, 400.0, complete.Value)

	require.Len(t, complete.Children, 3)
	assert.Equal(t, "(none)", complete.Children[0].Label)
	assert.Equal(t, "Alex", complete.Children[1].Label)
	assert.Equal(t, "0:Complete|1:Sam", complete.Children[2].Key)
	assert.Equal(t, 1, complete.Children[2].Depth)

	flat := FlattenFacets(tree)
	assert.Len(t, flat, 2+1+3)
}

func TestAggregateValue(t *testing.T) {
	schema := testSchema(t, "sales")
	records := []Record{
		{"salePrice": 10.0},
		{"salePrice": "30"},
		{"salePrice": nil},
		{"salePrice": 20},
	}
	tests := map[string]float64{
		AggSum:   60,
		AggAvg:   20,
		AggMin:   10,
		AggMax:   30,
		AggCount: 4,
		"":       60,
	}
	for fn, want := range tests {
		t.Run(fn, func(t *testing.T) {
			assert.Equal(t, want, aggregateValue(schema, records, FacetMeasure{Field: "salePrice", Func: fn}))
		})
	}
	assert.Equal(t, 0.0, aggregateValue(schema, nil, FacetMeasure{Field: "salePrice", Func: AggAvg}))
}

func TestGroupRecords_NoLevels(t *testing.T) {
	assert.Nil(t, GroupRecords(nil, taskRecords(), nil, nil))
	assert.Nil(t, GroupRecords(nil, nil, []string{"taskStatus"}, nil))
}

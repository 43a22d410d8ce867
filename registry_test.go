package propertygrid

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	reg := testRegistry(t)

	assert.Equal(t, []string{"sales", "tasks"}, reg.Tables())
	assert.Equal(t, []string{"taskId", "uprn", "address", "postcode"}, reg.SearchableFields("tasks"))
	assert.Nil(t, reg.SearchableFields("missing"))

	assert.True(t, reg.IsLookupField("tasks", "taskStatus"))
	assert.True(t, reg.IsLookupField("tasks", "assignee"))
	assert.False(t, reg.IsLookupField("tasks", "address"))
	assert.False(t, reg.IsLookupField("missing", "address"))

	schema, ok := reg.TableByOperation("GetSaleTasks")
	require.True(t, ok)
	assert.Equal(t, "tasks", schema.Name)
	assert.Equal(t, "sale_tasks", schema.DBTable)
	require.NotNil(t, schema.DefaultSort)
	assert.Equal(t, SortState{Field: "assignedDate", Descending: true}, *schema.DefaultSort)
}

func TestRegistry_TableNotFound(t *testing.T) {
	_, err := testRegistry(t).Table("nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTableNotFound))

	var ge *GridError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, KindNotFound, ge.Kind)
	assert.Equal(t, ErrCodeTableNotFound, ge.Code)
}

func TestFieldCapability_KeyNormalization(t *testing.T) {
	reg := testRegistry(t)

	for _, key := range []string{"billingAuthority", "BillingAuthority", "billing_authority", "Billing Authority"} {
		fc, ok := reg.FieldCapability("sales", key)
		require.True(t, ok, key)
		assert.Equal(t, "billingAuthority", fc.Key)
		assert.Equal(t, 3, fc.MultiLimit)
	}

	fc, ok := reg.FieldCapability("tasks", "assignee")
	require.True(t, ok)
	assert.Equal(t, "assignedTo", fc.APIKey)
	assert.Equal(t, "assigned_to", fc.Column)
	assert.Equal(t, "Assigned to", fc.Label)
}

func TestTableSchema_RemoteName(t *testing.T) {
	schema := testSchema(t, "tasks")
	assert.Equal(t, "assignedTo", schema.RemoteName("assignee"))
	assert.Equal(t, "taskStatus", schema.RemoteName("task_status"))
	assert.Equal(t, "notAField", schema.RemoteName("notAField"))

	fc, ok := schema.FieldByAPIKey("assignedTo")
	require.True(t, ok)
	assert.Equal(t, "assignee", fc.Key)
}

func TestRegistry_LabelsAndLOVs(t *testing.T) {
	reg, err := DefaultRegistry("cy")
	require.NoError(t, err)

	fc, ok := reg.FieldCapability("sales", "address")
	require.True(t, ok)
	assert.Equal(t, "Cyfeiriad", fc.Label)

	// Falls back to English when the language has no label
	fc, ok = reg.FieldCapability("sales", "uprn")
	require.True(t, ok)
	assert.Equal(t, "UPRN", fc.Label)

	fc, ok = reg.FieldCapability("sales", "billingAuthority")
	require.True(t, ok)
	require.Len(t, fc.Options, 4)
	assert.Equal(t, "Caerdydd", fc.Options[0].Label)
	assert.Equal(t, "Cardiff", fc.Options[0].String())

	// Table-level LOVs only apply to their own table
	fc, ok = reg.FieldCapability("tasks", "billingAuthority")
	require.True(t, ok)
	assert.Empty(t, fc.Options)
}

func TestRegistry_BuildParameterMap(t *testing.T) {
	reg := testRegistry(t)

	params, err := reg.BuildParameterMap("tasks", FilterState{
		SearchBy: "postcode",
		Values: map[string]FilterValue{
			"postcode":   Text(" cf10 "),
			"taskStatus": MultiText{"Assigned"},
		},
	}, 2, 50)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"postcode":   "CF10",
		"taskStatus": "Assigned",
		"pageNumber": "3",
		"pageSize":   "50",
		"source":     "tasks",
	}, params)

	_, err = reg.BuildParameterMap("nope", FilterState{}, 0, 10)
	assert.ErrorIs(t, err, ErrTableNotFound)
}

func TestNewRegistryFromData_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `{`},
		{"no tables", `{"version": "1", "tables": []}`},
		{"unknown control", `{"version": "1", "tables": [{"name": "t", "operation": "Op", "fields": [{"key": "a", "control": "slider"}]}]}`},
		{"unknown property", `{"version": "1", "tables": [{"name": "t", "operation": "Op", "colour": "red", "fields": [{"key": "a", "control": "textEq"}]}]}`},
		{"undefined searchable", `{"version": "1", "tables": [{"name": "t", "operation": "Op", "searchable_fields": ["b"], "fields": [{"key": "a", "control": "textEq"}]}]}`},
		{"duplicate field", `{"version": "1", "tables": [{"name": "t", "operation": "Op", "fields": [{"key": "a", "control": "textEq"}, {"key": "A", "control": "textEq"}]}]}`},
		{"bad pattern", `{"version": "1", "tables": [{"name": "t", "operation": "Op", "fields": [{"key": "a", "control": "textEq", "validation": {"pattern": "("}}]}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistryFromData([]byte(tt.data), "en")
			require.Error(t, err)
			var ge *GridError
			require.ErrorAs(t, err, &ge)
			assert.Equal(t, KindCatalog, ge.Kind)
		})
	}
}

func TestLoadRegistry_YAML(t *testing.T) {
	doc := `
version: "2"
title: Minimal
tables:
  - name: sales
    operation: GetSales
    searchable_fields: [uprn]
    fields:
      - key: uprn
        control: textEq
        digits_only: true
      - key: salePrice
        control: numeric
        column: sale_price
`
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	reg, err := LoadRegistry(path, "en")
	require.NoError(t, err)
	assert.Equal(t, "2", reg.Version)

	fc, ok := reg.FieldCapability("sales", "salePrice")
	require.True(t, ok)
	assert.Equal(t, ControlNumeric, fc.Control)
	assert.Equal(t, "sale_price", fc.Column)
}

func TestLoadRegistry_MissingFile(t *testing.T) {
	_, err := LoadRegistry(filepath.Join(t.TempDir(), "missing.json"), "en")
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidateCatalog_Default(t *testing.T) {
	assert.NoError(t, ValidateCatalog(DefaultCatalog()))
}

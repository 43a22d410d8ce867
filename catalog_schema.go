package propertygrid

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed catalog/catalog.schema.json
var catalogSchema []byte

// CatalogSchema returns the JSON Schema every catalog must satisfy.
func CatalogSchema() []byte {
	return append([]byte(nil), catalogSchema...)
}

// SchemaViolations validates a catalog document against the catalog schema and
// returns one description per violation. The error is set only when the
// document or schema cannot be loaded at all.
func SchemaViolations(schema, document gojsonschema.JSONLoader) ([]string, error) {
	result, err := gojsonschema.Validate(schema, document)
	if err != nil {
		return nil, err
	}
	if result.Valid() {
		return nil, nil
	}
	violations := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		violations = append(violations, desc.String())
	}
	return violations, nil
}

// ValidateCatalog checks JSON catalog bytes against the embedded schema.
func ValidateCatalog(data []byte) error {
	violations, err := SchemaViolations(
		gojsonschema.NewBytesLoader(catalogSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return newCatalogError("catalog is not valid JSON", err)
	}
	if len(violations) > 0 {
		return newCatalogError(fmt.Sprintf("catalog does not match schema: %s", strings.Join(violations, "; ")), nil)
	}
	return nil
}

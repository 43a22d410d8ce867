package propertygrid

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog/property.json
var defaultCatalog []byte

// LOVItem is one entry of a list of values. Labels are keyed by language.
type LOVItem struct {
	Value  interface{}       `json:"value"`
	Labels map[string]string `json:"labels,omitempty"`
	Label  string            `json:"label,omitempty"`
}

// String returns the wire form of the item value.
func (i LOVItem) String() string {
	return displayText(i.Value)
}

// Catalog describes every grid table the registry knows about.
type Catalog struct {
	Version string     `json:"version"`
	Title   string     `json:"title,omitempty"`
	Tables  []TableDef `json:"tables"`
}

type TableDef struct {
	Name        string               `json:"name"`
	Title       string               `json:"title,omitempty"`
	Operation   string               `json:"operation"`
	Source      string               `json:"source,omitempty"`
	DBTable     string               `json:"db_table,omitempty"`
	Searchable  []string             `json:"searchable_fields,omitempty"`
	DefaultSort *SortDef             `json:"default_sort,omitempty"`
	KeyColumn   string               `json:"key_column,omitempty"`
	LOVs        map[string][]LOVItem `json:"lovs,omitempty"`
	Fields      []FieldDef           `json:"fields"`
}

type SortDef struct {
	Field     string `json:"field"`
	Direction string `json:"direction,omitempty"`
}

type FieldDef struct {
	Key             string            `json:"key"`
	APIKey          string            `json:"api_key,omitempty"`
	ParamKey        string            `json:"param_key,omitempty"`
	Column          string            `json:"column,omitempty"`
	Labels          map[string]string `json:"labels,omitempty"`
	Control         ControlType       `json:"control"`
	MinLength       int               `json:"min_length,omitempty"`
	DigitsOnly      bool              `json:"digits_only,omitempty"`
	UpperCase       bool              `json:"upper_case,omitempty"`
	MultiLimit      int               `json:"multi_limit,omitempty"`
	Options         []LOVItem         `json:"options,omitempty"`
	OptionFields    []string          `json:"option_fields,omitempty"`
	SelectAllValues []string          `json:"select_all_values,omitempty"`
	Validation      *ValidationRule   `json:"validation,omitempty"`
}

// ValidationRule blocks a search when a present text value does not match Pattern.
type ValidationRule struct {
	Pattern string `json:"pattern"`
	Message string `json:"message,omitempty"`
}

// DefaultCatalog returns the built-in property sales/tasks catalog.
func DefaultCatalog() []byte {
	return append([]byte(nil), defaultCatalog...)
}

// DefaultRegistry builds a Registry from the built-in catalog.
func DefaultRegistry(lang string) (*Registry, error) {
	return NewRegistryFromData(defaultCatalog, lang)
}

// LoadRegistry reads a JSON or YAML catalog file and builds a Registry from it.
func LoadRegistry(catalogPath string, lang string) (*Registry, error) {
	data, err := os.ReadFile(catalogPath)
	if err != nil {
		return nil, newCatalogError(fmt.Sprintf("read catalog %s", catalogPath), err)
	}
	switch strings.ToLower(filepath.Ext(catalogPath)) {
	case ".yaml", ".yml":
		data, err = yamlToJSON(data)
		if err != nil {
			return nil, newCatalogError(fmt.Sprintf("parse catalog %s", catalogPath), err)
		}
	}
	return NewRegistryFromData(data, lang)
}

// NewRegistryFromData validates JSON catalog bytes against the catalog schema
// and builds a Registry.
func NewRegistryFromData(data []byte, lang string) (*Registry, error) {
	if err := ValidateCatalog(data); err != nil {
		return nil, err
	}
	var cat Catalog
	if err := json.Unmarshal(data, &cat); err != nil {
		return nil, newCatalogError("decode catalog", err)
	}
	return NewRegistry(cat, lang)
}

// yamlToJSON converts a YAML document into JSON so both formats share the
// schema validation path.
func yamlToJSON(data []byte) ([]byte, error) {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return json.Marshal(normalizeYAML(doc))
}

func normalizeYAML(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		for k, item := range val {
			val[k] = normalizeYAML(item)
		}
		return val
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[fmt.Sprintf("%v", k)] = normalizeYAML(item)
		}
		return out
	case []interface{}:
		for i, item := range val {
			val[i] = normalizeYAML(item)
		}
		return val
	default:
		return v
	}
}

func processLovItem(item LOVItem, lang string) LOVItem {
	li := LOVItem{
		Value:  item.Value,
		Labels: item.Labels,
		Label:  item.Label,
	}
	if item.Labels != nil {
		if l, ok := item.Labels[lang]; ok {
			li.Label = l
		} else if l, ok := item.Labels["en"]; ok {
			li.Label = l
		}
	}
	if li.Label == "" {
		li.Label = li.String()
	}
	return li
}

func resolveLabel(labels map[string]string, lang, fallback string) string {
	if l, ok := labels[lang]; ok {
		return l
	}
	if l, ok := labels["en"]; ok {
		return l
	}
	return fallback
}

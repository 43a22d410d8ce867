package propertygrid

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// FieldCapability describes how one field is filtered, validated and sent to
// the data service.
type FieldCapability struct {
	Key             string
	Label           string
	APIKey          string
	ParamKey        string
	Column          string
	Control         ControlType
	MinLength       int
	DigitsOnly      bool
	UpperCase       bool
	MultiLimit      int
	Options         []LOVItem
	OptionFields    []string
	SelectAllValues []string
	Validation      *ValidationRule

	pattern *regexp.Regexp
}

// IsLookup reports whether the field is chosen from a list of values.
func (f *FieldCapability) IsLookup() bool {
	return f.Control == ControlSingleSelect || f.Control == ControlMultiSelect || len(f.Options) > 0
}

// TableSchema is the read-only description of one grid table.
type TableSchema struct {
	Name        string
	Title       string
	Operation   string
	Source      string
	DBTable     string
	DefaultSort *SortState
	// KeyColumn is a unique database column that breaks ties in every sort.
	KeyColumn string

	fields     map[string]*FieldCapability
	byAPIKey   map[string]*FieldCapability
	order      []string
	searchable []string
}

// NormalizeKey folds a UI key for lookup: lower-cased, non-alphanumerics removed.
func NormalizeKey(key string) string {
	var b strings.Builder
	b.Grow(len(key))
	for _, r := range key {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// Field looks up a capability by UI key.
func (t *TableSchema) Field(key string) (*FieldCapability, bool) {
	if t == nil {
		return nil, false
	}
	f, ok := t.fields[NormalizeKey(key)]
	return f, ok
}

// FieldByAPIKey looks up a capability by its remote name.
func (t *TableSchema) FieldByAPIKey(apiKey string) (*FieldCapability, bool) {
	if t == nil {
		return nil, false
	}
	f, ok := t.byAPIKey[apiKey]
	return f, ok
}

// Fields returns every capability in catalog order.
func (t *TableSchema) Fields() []*FieldCapability {
	out := make([]*FieldCapability, 0, len(t.order))
	for _, k := range t.order {
		out = append(out, t.fields[k])
	}
	return out
}

// SearchableFields returns the searchable UI keys in catalog order.
func (t *TableSchema) SearchableFields() []string {
	if t == nil {
		return nil
	}
	return append([]string(nil), t.searchable...)
}

// IsSearchable reports whether key names one of the searchable fields.
func (t *TableSchema) IsSearchable(key string) bool {
	if t == nil {
		return false
	}
	nk := NormalizeKey(key)
	for _, s := range t.searchable {
		if NormalizeKey(s) == nk {
			return true
		}
	}
	return false
}

// RemoteName maps a UI key to its API key. Unmapped keys pass through unchanged.
func (t *TableSchema) RemoteName(key string) string {
	if f, ok := t.Field(key); ok {
		return f.APIKey
	}
	return key
}

// Registry holds the table schemas of one catalog. It is read-only after
// construction and safe for concurrent use.
type Registry struct {
	Version string
	Title   string

	lang        string
	tables      map[string]*TableSchema
	byOperation map[string]*TableSchema
	order       []string
}

// NewRegistry builds a Registry from a decoded catalog. Labels are resolved
// for lang with an English fallback.
func NewRegistry(cat Catalog, lang string) (*Registry, error) {
	if len(cat.Tables) == 0 {
		return nil, newCatalogError("no tables found in catalog", nil)
	}
	if lang == "" {
		lang = "en"
	}
	r := &Registry{
		Version:     cat.Version,
		Title:       cat.Title,
		lang:        lang,
		tables:      make(map[string]*TableSchema, len(cat.Tables)),
		byOperation: make(map[string]*TableSchema, len(cat.Tables)),
	}
	for _, def := range cat.Tables {
		schema, err := buildTableSchema(def, lang)
		if err != nil {
			return nil, err
		}
		if _, dup := r.tables[def.Name]; dup {
			return nil, newCatalogError(fmt.Sprintf("duplicate table %q", def.Name), nil)
		}
		if _, dup := r.byOperation[def.Operation]; dup {
			return nil, newCatalogError(fmt.Sprintf("duplicate operation %q", def.Operation), nil)
		}
		r.tables[def.Name] = schema
		r.byOperation[def.Operation] = schema
		r.order = append(r.order, def.Name)
	}
	return r, nil
}

func buildTableSchema(def TableDef, lang string) (*TableSchema, error) {
	schema := &TableSchema{
		Name:      def.Name,
		Title:     def.Title,
		Operation: def.Operation,
		Source:    def.Source,
		DBTable:   def.DBTable,
		KeyColumn: def.KeyColumn,
		fields:    make(map[string]*FieldCapability, len(def.Fields)),
		byAPIKey:  make(map[string]*FieldCapability, len(def.Fields)),
	}
	if schema.DBTable == "" {
		schema.DBTable = def.Name
	}

	for _, fd := range def.Fields {
		fc := &FieldCapability{
			Key:             fd.Key,
			Label:           resolveLabel(fd.Labels, lang, fd.Key),
			APIKey:          firstNonEmpty(fd.APIKey, fd.Key),
			Column:          firstNonEmpty(fd.Column, fd.Key),
			Control:         fd.Control,
			MinLength:       fd.MinLength,
			DigitsOnly:      fd.DigitsOnly,
			UpperCase:       fd.UpperCase,
			MultiLimit:      fd.MultiLimit,
			OptionFields:    fd.OptionFields,
			SelectAllValues: fd.SelectAllValues,
			Validation:      fd.Validation,
		}
		fc.ParamKey = firstNonEmpty(fd.ParamKey, fc.APIKey)
		if !fc.Control.Valid() {
			return nil, newCatalogError(fmt.Sprintf("table %s: field %s has unknown control %q", def.Name, fd.Key, fd.Control), nil)
		}

		// Table-level LOVs first, then inline options
		for _, item := range def.LOVs[fd.Key] {
			fc.Options = append(fc.Options, processLovItem(item, lang))
		}
		for _, item := range fd.Options {
			fc.Options = append(fc.Options, processLovItem(item, lang))
		}

		if fd.Validation != nil {
			re, err := regexp.Compile(fd.Validation.Pattern)
			if err != nil {
				return nil, newCatalogError(fmt.Sprintf("table %s: field %s has invalid pattern", def.Name, fd.Key), err)
			}
			fc.pattern = re
		}

		nk := NormalizeKey(fd.Key)
		if _, dup := schema.fields[nk]; dup {
			return nil, newCatalogError(fmt.Sprintf("table %s: duplicate field %q", def.Name, fd.Key), nil)
		}
		schema.fields[nk] = fc
		schema.byAPIKey[fc.APIKey] = fc
		schema.order = append(schema.order, nk)
	}

	for _, key := range def.Searchable {
		fc, ok := schema.Field(key)
		if !ok {
			return nil, newCatalogError(fmt.Sprintf("table %s: searchable field %q is not defined", def.Name, key), nil)
		}
		schema.searchable = append(schema.searchable, fc.Key)
	}

	if def.DefaultSort != nil && def.DefaultSort.Field != "" {
		schema.DefaultSort = &SortState{
			Field:      def.DefaultSort.Field,
			Descending: strings.EqualFold(def.DefaultSort.Direction, "desc"),
		}
	}
	return schema, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Lang returns the label language the registry was built for.
func (r *Registry) Lang() string {
	return r.lang
}

// Tables returns the table ids in catalog order.
func (r *Registry) Tables() []string {
	return append([]string(nil), r.order...)
}

// Table returns the schema for a table id.
func (r *Registry) Table(name string) (*TableSchema, error) {
	if t, ok := r.tables[name]; ok {
		return t, nil
	}
	return nil, newTableNotFoundError(name)
}

// TableByOperation returns the schema served by a remote operation name.
func (r *Registry) TableByOperation(operation string) (*TableSchema, bool) {
	t, ok := r.byOperation[operation]
	return t, ok
}

// IsLookupField reports whether field of table is chosen from a list of values.
func (r *Registry) IsLookupField(table, field string) bool {
	fc, ok := r.FieldCapability(table, field)
	return ok && fc.IsLookup()
}

// FieldCapability returns the capability of field in table.
func (r *Registry) FieldCapability(table, field string) (*FieldCapability, bool) {
	t, ok := r.tables[table]
	if !ok {
		return nil, false
	}
	return t.Field(field)
}

// SearchableFields returns the searchable UI keys of table, or nil for an unknown table.
func (r *Registry) SearchableFields(table string) []string {
	t, ok := r.tables[table]
	if !ok {
		return nil
	}
	return t.SearchableFields()
}

// BuildParameterMap sanitizes filters and encodes them, with paging, into the
// parameter map of table.
func (r *Registry) BuildParameterMap(table string, filters FilterState, page, pageSize int) (map[string]string, error) {
	t, err := r.Table(table)
	if err != nil {
		return nil, err
	}
	return BuildGridAPIParams(t, Sanitize(t, filters), page, pageSize, ParamOptions{Source: t.Source}), nil
}

// Package dataservice serves grid operations from PostgreSQL. It decodes the
// flat parameter map and the column-filter grammar produced by the grid
// compiler back into SQL.
package dataservice

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"go.uber.org/zap"

	"github.com/gnemet/propertygrid"
	"github.com/gnemet/propertygrid/database/gridstore"
)

// DefaultDistinctLimit caps the suggested values returned per lookup field.
const DefaultDistinctLimit = 200

// Store is the subset of *gridstore.Store the service needs.
type Store interface {
	Count(ctx context.Context, table string, where *gridstore.Where) (int, error)
	Select(ctx context.Context, q gridstore.SelectQuery) ([]map[string]interface{}, error)
	Distinct(ctx context.Context, table, column string, where *gridstore.Where, limit int) ([]string, error)
}

// Service implements propertygrid.DataService on top of a Store.
type Service struct {
	registry      *propertygrid.Registry
	store         Store
	distinctLimit int
	maxPageSize   int
}

type Option func(*Service)

// WithDistinctLimit caps the suggested values per lookup field. 0 disables
// suggestions.
func WithDistinctLimit(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.distinctLimit = n
		}
	}
}

// WithMaxPageSize caps the page size a request may ask for.
func WithMaxPageSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxPageSize = n
		}
	}
}

func New(registry *propertygrid.Registry, store Store, opts ...Option) *Service {
	s := &Service{
		registry:      registry,
		store:         store,
		distinctLimit: DefaultDistinctLimit,
		maxPageSize:   propertygrid.DefaultMaxPageSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Execute runs one grid operation. Unknown operations fail with
// propertygrid.ErrTableNotFound; malformed column filters with a
// validation GridError.
func (s *Service) Execute(ctx context.Context, operation string, params map[string]string) (*propertygrid.Response, error) {
	schema, ok := s.registry.TableByOperation(operation)
	if !ok {
		return nil, propertygrid.NewGridError(propertygrid.KindNotFound, propertygrid.ErrCodeTableNotFound,
			fmt.Sprintf("unknown operation %q", operation)).WithCause(propertygrid.ErrTableNotFound)
	}

	req := propertygrid.ParseGridAPIParams(schema, params)
	clauses, err := propertygrid.ParseColumnFilterQuery(req.SearchQuery)
	if err != nil {
		return nil, err
	}

	where := &gridstore.Where{}
	applyFilters(schema, req.Filters, where)
	order, err := applyColumnClauses(schema, clauses, where)
	if err != nil {
		return nil, err
	}
	if len(order) == 0 {
		order = defaultOrder(schema)
	}
	order = withKeyOrder(schema, order)

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = propertygrid.DefaultPageSize
	}
	if pageSize > s.maxPageSize {
		zap.S().Debugw("Clamping page size", "operation", operation, "requested", pageSize, "max", s.maxPageSize)
		pageSize = s.maxPageSize
	}

	total, err := s.store.Count(ctx, schema.DBTable, where)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.Select(ctx, gridstore.SelectQuery{
		Table:   schema.DBTable,
		Columns: selectColumns(schema),
		Where:   where,
		Order:   order,
		Limit:   pageSize,
		Offset:  req.Page * pageSize,
	})
	if err != nil {
		return nil, err
	}

	items := make([]propertygrid.Record, len(rows))
	for i, r := range rows {
		items[i] = propertygrid.Record(r)
	}
	page := req.Page + 1

	zap.S().Debugw("Grid operation served", "operation", operation, "total", total,
		"items", len(items), "page", page, "requested_by", req.RequestedBy)

	return &propertygrid.Response{
		Items:      items,
		TotalCount: total,
		Filters:    s.suggestions(ctx, schema, where),
		Page:       &page,
	}, nil
}

// suggestions lists the distinct values of lookup fields that have no
// static options. Failures only cost the suggestion.
func (s *Service) suggestions(ctx context.Context, schema *propertygrid.TableSchema, where *gridstore.Where) map[string]propertygrid.OptionValues {
	if s.distinctLimit == 0 {
		return nil
	}
	out := map[string]propertygrid.OptionValues{}
	for _, fc := range schema.Fields() {
		if !fc.IsLookup() || len(fc.Options) > 0 {
			continue
		}
		values, err := s.store.Distinct(ctx, schema.DBTable, fc.Column, where, s.distinctLimit)
		if err != nil {
			zap.S().Warnw("Failed to load option values", "table", schema.Name, "field", fc.Key, "error", err)
			continue
		}
		out[fc.APIKey] = values
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func selectColumns(schema *propertygrid.TableSchema) []gridstore.Column {
	fields := schema.Fields()
	cols := make([]gridstore.Column, 0, len(fields))
	for _, fc := range fields {
		cols = append(cols, gridstore.Column{Name: fc.Column, Alias: fc.APIKey})
	}
	return cols
}

func defaultOrder(schema *propertygrid.TableSchema) []gridstore.Order {
	if ds := schema.DefaultSort; ds != nil {
		if fc, ok := schema.Field(ds.Field); ok {
			return []gridstore.Order{{Column: fc.Column, Desc: ds.Descending}}
		}
	}
	if fields := schema.Fields(); len(fields) > 0 {
		return []gridstore.Order{{Column: fields[0].Column}}
	}
	return nil
}

// withKeyOrder appends the table's key column so that rows with equal sort
// values keep one order across LIMIT/OFFSET pages.
func withKeyOrder(schema *propertygrid.TableSchema, order []gridstore.Order) []gridstore.Order {
	if schema.KeyColumn == "" {
		return order
	}
	for _, o := range order {
		if o.Column == schema.KeyColumn {
			return order
		}
	}
	return append(order, gridstore.Order{Column: schema.KeyColumn})
}

// applyFilters adds the primary filters decoded from the parameter map.
func applyFilters(schema *propertygrid.TableSchema, filters propertygrid.FilterState, where *gridstore.Where) {
	for _, key := range filters.Keys() {
		fc, ok := schema.Field(key)
		if !ok {
			continue
		}
		switch v := filters.Values[key].(type) {
		case propertygrid.Text:
			applyText(where, fc, string(v))
		case propertygrid.MultiText:
			where.AnyOf(fc.Column, v)
		case propertygrid.NumericRange:
			lo, hi := v.Bounds()
			where.Range(fc.Column, lo, hi)
		case propertygrid.DateRange:
			where.DateRange(fc.Column, v.From, v.To)
		}
	}
}

func applyText(where *gridstore.Where, fc *propertygrid.FieldCapability, value string) {
	switch fc.Control {
	case propertygrid.ControlTextEq, propertygrid.ControlSingleSelect:
		where.EqualFold(fc.Column, value)
	case propertygrid.ControlTextPrefix:
		where.Prefix(fc.Column, value)
	default:
		where.Contains(fc.Column, value)
	}
}

// applyColumnClauses adds the column-filter clauses and returns the order
// requested by a SORT clause, if any. Clauses naming unknown fields are
// skipped.
func applyColumnClauses(schema *propertygrid.TableSchema, clauses []propertygrid.ColumnClause, where *gridstore.Where) ([]gridstore.Order, error) {
	var order []gridstore.Order
	for _, c := range clauses {
		fc, ok := schema.FieldByAPIKey(c.Field)
		if !ok {
			zap.S().Debugw("Skipping column filter on unknown field", "table", schema.Name, "field", c.Field)
			continue
		}
		switch c.Op {
		case propertygrid.OpEq:
			where.EqualFold(fc.Column, c.Values[0])
		case propertygrid.OpLike:
			if fc.Control == propertygrid.ControlTextPrefix {
				where.Prefix(fc.Column, c.Values[0])
			} else {
				where.Contains(fc.Column, c.Values[0])
			}
		case propertygrid.OpIn:
			where.AnyOf(fc.Column, c.Values)
		case propertygrid.OpGTE:
			lo, err := parseBound(c, 0)
			if err != nil {
				return nil, err
			}
			where.Range(fc.Column, lo, nil)
		case propertygrid.OpLTE:
			hi, err := parseBound(c, 0)
			if err != nil {
				return nil, err
			}
			where.Range(fc.Column, nil, hi)
		case propertygrid.OpBetween:
			if fc.Control == propertygrid.ControlDateRange {
				from, ok1 := propertygrid.WireDateToISO(c.Values[0])
				to, ok2 := propertygrid.WireDateToISO(c.Values[1])
				if !ok1 || !ok2 {
					return nil, invalidClause(c, "dates must be dd/mm/yyyy")
				}
				where.DateRange(fc.Column, from, to)
				continue
			}
			lo, err := parseBound(c, 0)
			if err != nil {
				return nil, err
			}
			hi, err := parseBound(c, 1)
			if err != nil {
				return nil, err
			}
			where.Range(fc.Column, lo, hi)
		case propertygrid.OpSort:
			order = []gridstore.Order{{Column: fc.Column, Desc: c.Values[0] == "DESC"}}
		}
	}
	return order, nil
}

func parseBound(c propertygrid.ColumnClause, i int) (*float64, error) {
	f, err := strconv.ParseFloat(c.Values[i], 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, invalidClause(c, "bounds must be numbers")
	}
	return &f, nil
}

func invalidClause(c propertygrid.ColumnClause, reason string) error {
	return propertygrid.NewGridError(propertygrid.KindValidation, propertygrid.ErrCodeInvalidGrammar,
		fmt.Sprintf("column filter %s: %s", c, reason)).WithField(c.Field)
}

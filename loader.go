package propertygrid

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gnemet/propertygrid/internal/events"
)

const (
	// DefaultServerDrivenThreshold is the total count above which the data
	// service keeps ownership of filtering, sorting and paging.
	DefaultServerDrivenThreshold = 2000
	DefaultPageSize              = 25
	// DefaultMaxPageSize caps the rows one data service request may return.
	DefaultMaxPageSize = 500
)

// DataService executes a named grid operation with a flat parameter map.
type DataService interface {
	Execute(ctx context.Context, operation string, params map[string]string) (*Response, error)
}

// Response is one page returned by the data service.
type Response struct {
	Items      []Record                `json:"items"`
	TotalCount int                     `json:"totalCount"`
	Filters    map[string]OptionValues `json:"filters,omitempty"`
	Page       *int                    `json:"page,omitempty"`
}

// OptionValues decodes from either a JSON string or an array of strings.
type OptionValues []string

func (o *OptionValues) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		if one == "" {
			*o = nil
		} else {
			*o = OptionValues{one}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("filter values must be a string or an array of strings: %w", err)
	}
	*o = many
	return nil
}

// Query is the UI state one load is compiled from. Page is 0-based.
type Query struct {
	Table         string
	Filters       FilterState
	ColumnFilters ColumnFilters
	Sort          *SortState
	Page          int
	PageSize      int
	RequestedBy   string
}

// CompiledQuery is a Query after sanitization, validation and encoding.
type CompiledQuery struct {
	Schema      *TableSchema
	Filters     FilterState
	Columns     ColumnFilters
	Params      map[string]string
	SearchQuery string
	Page        int
	PageSize    int
}

// ParamsForPage returns a copy of the parameter map addressing another page.
func (c *CompiledQuery) ParamsForPage(page int) map[string]string {
	out := make(map[string]string, len(c.Params))
	for k, v := range c.Params {
		out[k] = v
	}
	out[ParamPageNumber] = strconv.Itoa(page + 1)
	return out
}

// Loader runs the hybrid pagination strategy against a DataService.
type Loader struct {
	registry    *Registry
	service     DataService
	threshold   int
	pageSize    int
	concurrency int
	publisher   events.Publisher
	seq         atomic.Uint64
}

type LoaderOption func(*Loader)

// WithThreshold sets the total count above which results stay server-driven.
func WithThreshold(n int) LoaderOption {
	return func(l *Loader) {
		if n >= 0 {
			l.threshold = n
		}
	}
}

// WithPageSize sets the page size used when a query does not carry one.
func WithPageSize(n int) LoaderOption {
	return func(l *Loader) {
		if n > 0 {
			l.pageSize = n
		}
	}
}

// WithConcurrency bounds how many pages are fetched at once while assembling
// a client-driven result. 1 fetches sequentially.
func WithConcurrency(n int) LoaderOption {
	return func(l *Loader) {
		if n > 0 {
			l.concurrency = n
		}
	}
}

// WithPublisher emits load lifecycle events.
func WithPublisher(p events.Publisher) LoaderOption {
	return func(l *Loader) {
		if p != nil {
			l.publisher = p
		}
	}
}

func NewLoader(registry *Registry, service DataService, opts ...LoaderOption) *Loader {
	l := &Loader{
		registry:    registry,
		service:     service,
		threshold:   DefaultServerDrivenThreshold,
		pageSize:    DefaultPageSize,
		concurrency: 1,
		publisher:   &events.NoopPublisher{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Registry returns the registry the loader compiles against.
func (l *Loader) Registry() *Registry {
	return l.registry
}

// Compile sanitizes, validates and encodes q. Validation failures are
// returned as *ValidationError.
func (l *Loader) Compile(q Query) (*CompiledQuery, error) {
	schema, err := l.registry.Table(q.Table)
	if err != nil {
		return nil, err
	}

	filters := Sanitize(schema, q.Filters)
	if filters.SearchBy == "" {
		if searchable := schema.SearchableFields(); len(searchable) > 0 {
			filters.SearchBy = searchable[0]
		}
	}
	if err := Validate(schema, filters); err != nil {
		return nil, err
	}

	pageSize := q.PageSize
	if pageSize <= 0 {
		pageSize = l.pageSize
	}
	page := max(q.Page, 0)

	columns := SanitizeColumnFilters(schema, q.ColumnFilters)
	searchQuery := BuildColumnFilterQuery(schema, columns, q.Sort)
	params := BuildGridAPIParams(schema, filters, page, pageSize, ParamOptions{
		RequestedBy: q.RequestedBy,
		SearchQuery: searchQuery,
		Source:      schema.Source,
	})

	return &CompiledQuery{
		Schema:      schema,
		Filters:     filters,
		Columns:     columns,
		Params:      params,
		SearchQuery: searchQuery,
		Page:        page,
		PageSize:    pageSize,
	}, nil
}

// Load compiles q and fetches it. The only error returned is a compile
// error (unknown table or *ValidationError); transport and payload failures
// yield a LoadResult with Failed set.
func (l *Loader) Load(ctx context.Context, q Query) (*LoadResult, error) {
	seq := l.seq.Add(1)
	requestID := uuid.NewString()
	started := time.Now()

	cq, err := l.Compile(q)
	if err != nil {
		zap.S().Debugw("Query rejected", "table", q.Table, "seq", seq, "error", err)
		return nil, err
	}
	log := zap.S().With("request_id", requestID, "seq", seq, "table", cq.Schema.Name)

	first, err := l.fetch(ctx, cq, cq.Page)
	if err != nil {
		return l.fail(ctx, log, cq, seq, requestID, cq.Page, started, err), nil
	}

	total := max(first.TotalCount, len(first.Items))
	result := &LoadResult{
		Items:      first.Items,
		TotalCount: total,
		Filters:    optionMap(first.Filters),
		Seq:        seq,
		RequestID:  requestID,
	}
	pages := 1

	switch {
	case total > l.threshold:
		result.ServerDriven = true
		log.Debugw("Server-driven result", "total", total, "threshold", l.threshold)
	case len(first.Items) < total:
		pages = (total + cq.PageSize - 1) / cq.PageSize
		items, failedPage, err := l.assemble(ctx, cq, first.Items, pages)
		if err != nil {
			return l.fail(ctx, log, cq, seq, requestID, failedPage, started, err), nil
		}
		result.Items = items
		if len(items) != total {
			log.Warnw("Assembled item count differs from reported total", "total", total, "items", len(items))
			result.TotalCount = len(items)
		}
	}

	l.publish(ctx, events.TopicLoadCompleted, events.LoadCompleted{
		RequestID:    requestID,
		Seq:          seq,
		Table:        cq.Schema.Name,
		Operation:    cq.Schema.Operation,
		TotalCount:   result.TotalCount,
		Items:        len(result.Items),
		Pages:        pages,
		ServerDriven: result.ServerDriven,
		DurationMs:   time.Since(started).Milliseconds(),
	})
	log.Infow("Load completed", "total", result.TotalCount, "items", len(result.Items),
		"server_driven", result.ServerDriven, "pages", pages)
	return result, nil
}

// assemble fetches every page other than the one already held and returns
// the items in page-index order.
func (l *Loader) assemble(ctx context.Context, cq *CompiledQuery, held []Record, pages int) ([]Record, int, error) {
	slots := make([][]Record, pages)
	if cq.Page < pages {
		slots[cq.Page] = held
	}

	var failedPage atomic.Int64
	failedPage.Store(-1)
	fetchInto := func(ctx context.Context, page int) error {
		resp, err := l.fetch(ctx, cq, page)
		if err != nil {
			failedPage.CompareAndSwap(-1, int64(page))
			return err
		}
		slots[page] = resp.Items
		return nil
	}

	if l.concurrency <= 1 {
		for page := 0; page < pages; page++ {
			if page == cq.Page {
				continue
			}
			if err := fetchInto(ctx, page); err != nil {
				return nil, page, err
			}
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(l.concurrency)
		for page := 0; page < pages; page++ {
			if page == cq.Page {
				continue
			}
			page := page
			g.Go(func() error {
				return fetchInto(gctx, page)
			})
		}
		if err := g.Wait(); err != nil {
			return nil, int(failedPage.Load()), err
		}
	}

	var items []Record
	for _, s := range slots {
		items = append(items, s...)
	}
	if items == nil {
		items = []Record{}
	}
	return items, -1, nil
}

func (l *Loader) fetch(ctx context.Context, cq *CompiledQuery, page int) (*Response, error) {
	resp, err := l.service.Execute(ctx, cq.Schema.Operation, cq.ParamsForPage(page))
	if err != nil {
		return nil, NewGridError(KindTransport, ErrCodeTransportFailed,
			fmt.Sprintf("fetch page %d of %s", page, cq.Schema.Operation)).WithCause(err)
	}
	if resp == nil || resp.TotalCount < 0 {
		return nil, NewGridError(KindDecode, ErrCodeMalformedPayload,
			fmt.Sprintf("page %d of %s", page, cq.Schema.Operation)).WithCause(ErrMalformedResponse)
	}
	if resp.Items == nil {
		resp.Items = []Record{}
	}
	return resp, nil
}

func (l *Loader) fail(ctx context.Context, log *zap.SugaredLogger, cq *CompiledQuery, seq uint64, requestID string, page int, started time.Time, err error) *LoadResult {
	log.Warnw("Load failed", "page", page, "error", err)
	l.publish(ctx, events.TopicLoadFailed, events.LoadFailed{
		RequestID:  requestID,
		Seq:        seq,
		Table:      cq.Schema.Name,
		Operation:  cq.Schema.Operation,
		Page:       page,
		Error:      err.Error(),
		DurationMs: time.Since(started).Milliseconds(),
	})
	return failedResult(seq, requestID)
}

func (l *Loader) publish(ctx context.Context, topic string, event interface{}) {
	if err := l.publisher.Publish(ctx, topic, event); err != nil {
		zap.S().Warnw("Failed to publish event", "topic", topic, "error", err)
	}
}

func optionMap(in map[string]OptionValues) map[string][]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string][]string, len(in))
	for k, v := range in {
		out[k] = append([]string(nil), v...)
	}
	return out
}

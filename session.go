package propertygrid

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Session holds the UI state of one grid and keeps its view current. Search
// edits and column-filter edits are debounced separately; results are
// applied last-write-wins by load sequence.
type Session struct {
	ctx    context.Context
	loader *Loader
	search *Debouncer
	column *Debouncer

	mu         sync.Mutex
	query      Query
	result     *LoadResult
	loadedWith ColumnFilters // column filters the current result was fetched with
	appliedSeq uint64
	view       GridView
	err        error
	onChange   func(GridView, error)
}

type SessionOption func(*sessionConfig)

type sessionConfig struct {
	searchDelay time.Duration
	columnDelay time.Duration
	onChange    func(GridView, error)
}

// WithSearchDelay sets the debounce delay of search edits.
func WithSearchDelay(d time.Duration) SessionOption {
	return func(c *sessionConfig) { c.searchDelay = d }
}

// WithColumnDelay sets the debounce delay of column-filter edits.
func WithColumnDelay(d time.Duration) SessionOption {
	return func(c *sessionConfig) { c.columnDelay = d }
}

// WithOnChange registers a callback run after every view change or
// validation failure. It runs without the session lock held.
func WithOnChange(fn func(GridView, error)) SessionOption {
	return func(c *sessionConfig) { c.onChange = fn }
}

// NewSession creates a session for the initial query. Nothing is loaded
// until Search or an edit triggers it.
func NewSession(ctx context.Context, loader *Loader, sched Scheduler, q Query, opts ...SessionOption) *Session {
	cfg := sessionConfig{searchDelay: DefaultSearchDelay, columnDelay: DefaultColumnDelay}
	for _, opt := range opts {
		opt(&cfg)
	}
	if q.Filters.Values == nil {
		q.Filters.Values = map[string]FilterValue{}
	}
	if q.PageSize <= 0 {
		q.PageSize = loader.pageSize
	}
	return &Session{
		ctx:      ctx,
		loader:   loader,
		search:   NewDebouncer(sched, cfg.searchDelay),
		column:   NewDebouncer(sched, cfg.columnDelay),
		query:    q,
		onChange: cfg.onChange,
		view:     GridView{Rows: []Record{}},
	}
}

// SetFilter changes one primary filter and schedules a search. A nil value
// clears the filter.
func (s *Session) SetFilter(key string, v FilterValue) {
	s.mu.Lock()
	s.query.Filters = s.query.Filters.With(key, v)
	s.query.Page = 0
	s.mu.Unlock()
	s.search.Trigger(s.reload)
}

// SetSearchBy selects the primary search field and schedules a search.
func (s *Session) SetSearchBy(field string) {
	s.mu.Lock()
	s.query.Filters.SearchBy = field
	s.query.Page = 0
	s.mu.Unlock()
	s.search.Trigger(s.reload)
}

// ClearFilters replaces the primary filters wholesale and schedules a search.
func (s *Session) ClearFilters() {
	s.mu.Lock()
	s.query.Filters = NewFilterState(s.query.Filters.SearchBy)
	s.query.Page = 0
	s.mu.Unlock()
	s.search.Trigger(s.reload)
}

// SetTable switches to another table, resetting every filter and the sort.
func (s *Session) SetTable(table string) {
	s.mu.Lock()
	s.query.Table = table
	s.query.Filters = NewFilterState("")
	s.query.ColumnFilters = nil
	s.query.Sort = nil
	s.query.Page = 0
	s.mu.Unlock()
	s.search.Trigger(s.reload)
}

// SetColumnFilter changes one column filter. Client-driven results fetched
// without column filters are re-filtered in memory; otherwise the query is
// re-run. A nil value clears the filter.
func (s *Session) SetColumnFilter(key string, v FilterValue) {
	s.mu.Lock()
	cf := s.query.ColumnFilters.Clone()
	if v == nil {
		delete(cf, key)
	} else {
		cf[key] = v
	}
	s.query.ColumnFilters = cf
	s.query.Page = 0
	s.mu.Unlock()
	s.column.Trigger(s.refresh)
}

// SetSort changes the active sort and re-runs the query. A nil sort clears it.
func (s *Session) SetSort(sort *SortState) {
	s.mu.Lock()
	if sort != nil {
		cp := *sort
		sort = &cp
	}
	s.query.Sort = sort
	s.query.Page = 0
	s.mu.Unlock()
	s.search.Trigger(s.reload)
}

// SetPage moves to another page. Client-driven results page in memory;
// server-driven results fetch the page.
func (s *Session) SetPage(page int) {
	s.mu.Lock()
	s.query.Page = max(page, 0)
	serverDriven := s.result == nil || s.result.ServerDriven
	if !serverDriven {
		s.recomputeLocked()
	}
	view, err := s.view, s.err
	s.mu.Unlock()

	if serverDriven {
		s.reload()
		return
	}
	s.notify(view, err)
}

// Search cancels any pending edit and loads immediately.
func (s *Session) Search() {
	s.search.Cancel()
	s.column.Cancel()
	s.reload()
}

// View returns the current view.
func (s *Session) View() GridView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// Result returns the current load result, which may be nil.
func (s *Session) Result() *LoadResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Query returns a copy of the current UI state.
func (s *Session) Query() Query {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.query
	q.Filters = s.query.Filters.Clone()
	q.ColumnFilters = s.query.ColumnFilters.Clone()
	return q
}

// Err returns the last validation error, if the last search was blocked.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close cancels pending edits.
func (s *Session) Close() {
	s.search.Cancel()
	s.column.Cancel()
}

func (s *Session) refresh() {
	s.mu.Lock()
	inMemory := s.result != nil && !s.result.ServerDriven && !s.result.Failed && len(s.loadedWith) == 0
	if inMemory {
		s.recomputeLocked()
	}
	view, err := s.view, s.err
	s.mu.Unlock()

	if !inMemory {
		s.reload()
		return
	}
	s.notify(view, err)
}

func (s *Session) reload() {
	q := s.Query()
	res, err := s.loader.Load(s.ctx, q)

	s.mu.Lock()
	if err != nil {
		s.err = err
		view := s.view
		s.mu.Unlock()
		s.notify(view, err)
		return
	}
	if res.Seq < s.appliedSeq {
		s.mu.Unlock()
		zap.S().Debugw("Discarding stale load", "seq", res.Seq, "applied", s.appliedSeq)
		return
	}
	s.appliedSeq = res.Seq
	s.result = res
	s.loadedWith = q.ColumnFilters
	s.err = nil
	s.recomputeLocked()
	view := s.view
	s.mu.Unlock()
	s.notify(view, nil)
}

func (s *Session) recomputeLocked() {
	schema, err := s.loader.registry.Table(s.query.Table)
	if err != nil {
		s.view = GridView{Rows: []Record{}}
		return
	}
	s.view = View(schema, s.result, s.query.ColumnFilters, s.query.Sort, s.query.Page, s.query.PageSize)
}

func (s *Session) notify(view GridView, err error) {
	if s.onChange != nil {
		s.onChange(view, err)
	}
}

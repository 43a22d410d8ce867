package propertygrid

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(t *testing.T, svc DataService, loaderOpts []LoaderOption, opts ...SessionOption) (*Session, *ManualScheduler) {
	t.Helper()
	sched := NewManualScheduler()
	l := NewLoader(testRegistry(t), svc, loaderOpts...)
	s := NewSession(context.Background(), l, sched, tasksQuery(), opts...)
	t.Cleanup(s.Close)
	return s, sched
}

func TestSession_SearchIsDebounced(t *testing.T) {
	svc := newPagedService(7)
	var changes int
	s, sched := newTestSession(t, svc, nil, WithOnChange(func(GridView, error) { changes++ }))

	s.SetSearchBy("address")
	s.SetFilter("address", Text("High"))
	sched.Advance(DefaultSearchDelay - time.Millisecond)
	assert.Empty(t, svc.calls)

	sched.Advance(time.Millisecond)
	require.Len(t, svc.calls, 1)
	assert.Equal(t, "High", svc.calls[0]["address"])
	assert.Equal(t, 1, changes)

	v := s.View()
	assert.Len(t, v.Rows, 7)
	assert.Equal(t, 7, v.Info.Count)
	assert.False(t, v.ServerDriven)
}

func TestSession_ColumnFilterInMemory(t *testing.T) {
	svc := newPagedService(7)
	s, sched := newTestSession(t, svc, nil)
	s.Search()
	require.Len(t, svc.calls, 1)

	s.SetColumnFilter("address", Text("1 high"))
	sched.Advance(DefaultColumnDelay)
	assert.Len(t, svc.calls, 1, "client-driven result is re-filtered locally")
	rows := s.View().Rows
	require.Len(t, rows, 1)
	assert.Equal(t, "1", rows[0]["taskId"])

	s.SetColumnFilter("address", nil)
	sched.Advance(DefaultColumnDelay)
	assert.Len(t, svc.calls, 1)
	assert.Len(t, s.View().Rows, 7)
}

func TestSession_ColumnFilterServerDriven(t *testing.T) {
	svc := newPagedService(30)
	s, sched := newTestSession(t, svc, []LoaderOption{WithThreshold(20)})
	s.Search()
	require.True(t, s.Result().ServerDriven)

	s.SetColumnFilter("address", Text("High Street"))
	sched.Advance(DefaultColumnDelay)
	require.Len(t, svc.calls, 2)
	assert.Equal(t, "columnFilter=address~like~High%20Street", svc.calls[1][ParamSearchQuery])
}

func TestSession_ReloadsWhenLoadedWithColumnFilters(t *testing.T) {
	svc := newPagedService(5)
	s, sched := newTestSession(t, svc, nil)

	s.SetColumnFilter("address", Text("High"))
	sched.Advance(DefaultColumnDelay)
	require.Len(t, svc.calls, 1, "no result yet, so the edit loads")

	s.SetColumnFilter("address", Text("Hi"))
	sched.Advance(DefaultColumnDelay)
	assert.Len(t, svc.calls, 2, "loosening a server-applied filter needs the server")
}

func TestSession_SetPage(t *testing.T) {
	svc := newPagedService(25)
	s, _ := newTestSession(t, svc, nil)
	s.Search()
	require.Len(t, svc.calls, 3)

	s.SetPage(2)
	assert.Len(t, svc.calls, 3, "client-driven pages are sliced locally")
	v := s.View()
	assert.Len(t, v.Rows, 5)
	assert.Equal(t, 2, v.Info.Page)
	assert.False(t, v.Info.CanNext)

	server := newPagedService(30)
	s2, _ := newTestSession(t, server, []LoaderOption{WithThreshold(20)})
	s2.Search()
	s2.SetPage(1)
	require.Len(t, server.calls, 2)
	assert.Equal(t, "2", server.calls[1][ParamPageNumber])
	assert.Equal(t, "11", s2.View().Rows[0]["taskId"])
}

func TestSession_SortAndFilterResetPage(t *testing.T) {
	svc := newPagedService(25)
	s, sched := newTestSession(t, svc, nil)
	s.Search()
	s.SetPage(2)

	s.SetSort(&SortState{Field: "taskId", Descending: true})
	assert.Equal(t, 0, s.Query().Page)
	sched.Advance(DefaultSearchDelay)
	assert.Equal(t, "25", s.View().Rows[0]["taskId"])
}

func TestSession_ValidationError(t *testing.T) {
	svc := newPagedService(5)
	var lastErr error
	s, sched := newTestSession(t, svc, nil, WithOnChange(func(_ GridView, err error) { lastErr = err }))

	s.SetSearchBy("uprn")
	s.SetFilter("uprn", Text("12-34"))
	sched.Advance(DefaultSearchDelay)

	assert.Empty(t, svc.calls)
	require.Error(t, s.Err())
	assert.True(t, IsValidationError(s.Err()))
	assert.Equal(t, s.Err(), lastErr)

	s.SetFilter("uprn", Text("12345678"))
	sched.Advance(DefaultSearchDelay)
	assert.NoError(t, s.Err())
	assert.Len(t, svc.calls, 1)
}

func TestSession_SetTableResetsState(t *testing.T) {
	svc := newPagedService(3)
	s, sched := newTestSession(t, svc, nil)
	s.SetColumnFilter("address", Text("High"))
	s.SetSort(&SortState{Field: "taskId"})

	s.SetTable("sales")
	q := s.Query()
	assert.Equal(t, "sales", q.Table)
	assert.Empty(t, q.ColumnFilters)
	assert.Nil(t, q.Sort)

	sched.Advance(time.Second)
	require.NotEmpty(t, svc.operations)
	assert.Equal(t, "GetSaleRecords", svc.operations[len(svc.operations)-1])
}

// gatedService holds its first call until released, so a later load can
// finish first.
type gatedService struct {
	mu      sync.Mutex
	calls   int
	entered chan struct{}
	release chan struct{}
}

func (g *gatedService) Execute(ctx context.Context, operation string, params map[string]string) (*Response, error) {
	g.mu.Lock()
	g.calls++
	n := g.calls
	g.mu.Unlock()

	label := "fresh"
	if n == 1 {
		label = "stale"
		close(g.entered)
		<-g.release
	}
	return &Response{Items: []Record{{"taskId": label}}, TotalCount: 1}, nil
}

func TestSession_LastWriteWins(t *testing.T) {
	svc := &gatedService{entered: make(chan struct{}), release: make(chan struct{})}
	s, _ := newTestSession(t, svc, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Search()
	}()
	<-svc.entered

	s.Search()
	assert.Equal(t, "fresh", s.View().Rows[0]["taskId"])

	close(svc.release)
	<-done
	assert.Equal(t, "fresh", s.View().Rows[0]["taskId"], "older load is discarded")
	assert.Equal(t, uint64(2), s.Result().Seq)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnemet/propertygrid"
	"github.com/gnemet/propertygrid/database/gridstore"
	"github.com/gnemet/propertygrid/internal/dataservice"
	"github.com/gnemet/propertygrid/internal/events"
	"github.com/gnemet/propertygrid/internal/remote"
)

var searchCmd = &cobra.Command{
	Use:   "search <table>",
	Short: "Load a table with filters and print one page",
	Long: `Load a table through the grid pipeline and print one page.

Filters use the field's control type:
  --filter salePrice=100000..250000   --filter saleDate=2025-01-01..
  --filter taskStatus=Assigned,Complete  --filter address="High Street"

Column filters (--column) take the same syntax and are applied in memory
when the whole result fits under the threshold.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	addSearchFlags(searchCmd)
}

func addSearchFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("search-by", "", "searchable field the search text applies to")
	f.StringArrayP("filter", "f", nil, "filter as key=value (repeatable)")
	f.StringArrayP("column", "c", nil, "column filter as key=value (repeatable)")
	f.StringP("sort", "s", "", "sort as field, field:desc or -field")
	f.IntP("page", "p", 1, "page number (1-based)")
	f.Int("page-size", 0, "page size (default from config)")
	f.String("requested-by", "", "user the request is made for")
	f.String("remote", "", "data service base URL (overrides config)")
	f.String("state", "", "read the query from a saved state file")
	f.String("save-state", "", "write the final query to a state file")
	f.StringSlice("group", nil, "group loaded rows by these fields")
	f.String("measure", "", "aggregate per group, e.g. SUM:salePrice")
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	registry, err := loadRegistry()
	if err != nil {
		return err
	}
	schema, err := registry.Table(args[0])
	if err != nil {
		return err
	}

	q, err := buildQuery(cmd, schema)
	if err != nil {
		return err
	}
	measure, err := parseMeasure(mustString(cmd, "measure"))
	if err != nil {
		return err
	}
	groups, _ := cmd.Flags().GetStringSlice("group")

	svc, closeSvc, err := openService(cmd, registry)
	if err != nil {
		return err
	}
	defer closeSvc()

	opts := []propertygrid.LoaderOption{
		propertygrid.WithThreshold(cfg.Grid.Threshold),
		propertygrid.WithPageSize(cfg.Grid.PageSize),
		propertygrid.WithConcurrency(cfg.Grid.Concurrency),
	}
	if cfg.Events.NATSURL != "" {
		pub, err := events.NewNATSPublisher(cfg.Events.NATSURL)
		if err != nil {
			zap.S().Warnw("Events disabled", "nats_url", cfg.Events.NATSURL, "error", err)
		} else {
			defer pub.Close()
			defer pub.Flush()
			opts = append(opts, propertygrid.WithPublisher(pub))
		}
	}

	loader := propertygrid.NewLoader(registry, svc, opts...)
	res, err := loader.Load(ctx, q)
	if err != nil {
		var verr *propertygrid.ValidationError
		if errors.As(err, &verr) {
			for field, msg := range verr.Fields {
				fmt.Fprintf(os.Stderr, "  %s: %s\n", field, msg)
			}
		}
		return err
	}
	if res.Failed {
		return fmt.Errorf("loading %s failed (request %s)", schema.Name, res.RequestID)
	}

	if path := mustString(cmd, "save-state"); path != "" {
		data, err := propertygrid.EncodeQuery(q)
		if err != nil {
			return err
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("writing state: %w", err)
		}
	}

	pageSize := q.PageSize
	if pageSize <= 0 {
		pageSize = cfg.Grid.PageSize
	}
	view := propertygrid.View(schema, res, q.ColumnFilters, q.Sort, q.Page, pageSize)

	var facets []*propertygrid.Facet
	if len(groups) > 0 {
		rows := res.Items
		if !res.ServerDriven {
			rows = propertygrid.FilterRecords(schema, res.Items, q.ColumnFilters)
		}
		facets = propertygrid.GroupRecords(schema, rows, groups, measure)
	}

	if jsonOutput {
		return printJSON(searchOutput{View: view, TotalCount: res.TotalCount, Facets: facets})
	}
	printRows(schema, view)
	if len(facets) > 0 {
		fmt.Println()
		printFacets(facets, measure)
	}
	return nil
}

type searchOutput struct {
	View       propertygrid.GridView `json:"view"`
	TotalCount int                   `json:"totalCount"`
	Facets     []*propertygrid.Facet `json:"facets,omitempty"`
}

// buildQuery starts from a saved state (if any) and applies the flags on top.
func buildQuery(cmd *cobra.Command, schema *propertygrid.TableSchema) (propertygrid.Query, error) {
	q := propertygrid.Query{
		Table:   schema.Name,
		Filters: propertygrid.NewFilterState(""),
	}
	if path := mustString(cmd, "state"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return q, fmt.Errorf("reading state: %w", err)
		}
		q = propertygrid.DecodeQuery(data, q)
		if q.Table != schema.Name {
			zap.S().Warnw("State file is for another table, ignoring it", "state_table", q.Table, "table", schema.Name)
			q = propertygrid.Query{Table: schema.Name, Filters: propertygrid.NewFilterState("")}
		}
	}

	if s := mustString(cmd, "search-by"); s != "" {
		q.Filters.SearchBy = s
	}
	filterArgs, _ := cmd.Flags().GetStringArray("filter")
	values, err := parseFilterArgs(schema, filterArgs)
	if err != nil {
		return q, err
	}
	for k, v := range values {
		q.Filters = q.Filters.With(k, v)
	}

	columnArgs, _ := cmd.Flags().GetStringArray("column")
	columns, err := parseFilterArgs(schema, columnArgs)
	if err != nil {
		return q, err
	}
	if len(columns) > 0 {
		if q.ColumnFilters == nil {
			q.ColumnFilters = propertygrid.ColumnFilters{}
		}
		for k, v := range columns {
			q.ColumnFilters[k] = v
		}
	}

	if cmd.Flags().Changed("sort") {
		if q.Sort, err = parseSort(schema, mustString(cmd, "sort")); err != nil {
			return q, err
		}
	}
	if cmd.Flags().Changed("page") || q.Page == 0 {
		page, _ := cmd.Flags().GetInt("page")
		if page < 1 {
			return q, fmt.Errorf("page must be 1 or greater")
		}
		q.Page = page - 1
	}
	if n, _ := cmd.Flags().GetInt("page-size"); n > 0 {
		q.PageSize = n
	}
	q.RequestedBy = mustString(cmd, "requested-by")
	return q, nil
}

// openService returns the HTTP client when a remote is configured, and the
// in-process SQL service otherwise.
func openService(cmd *cobra.Command, registry *propertygrid.Registry) (propertygrid.DataService, func(), error) {
	baseURL := cfg.Remote.BaseURL
	if s := mustString(cmd, "remote"); s != "" {
		baseURL = s
	}
	if baseURL != "" {
		zap.S().Debugw("Using remote data service", "base_url", baseURL)
		return remote.NewHTTPClient(baseURL,
			remote.WithToken(cfg.Remote.Token),
			remote.WithTimeout(cfg.Remote.Timeout),
		), func() {}, nil
	}

	dbCfg, ok := cfg.DefaultDatabase()
	if !ok {
		return nil, nil, errors.New("no remote.base_url and no database configured")
	}
	db, err := gridstore.Open(dbCfg.ConnStr(), dbCfg.StoreOptions())
	if err != nil {
		return nil, nil, err
	}
	svc := dataservice.New(registry, gridstore.New(db), dataservice.WithMaxPageSize(cfg.Grid.MaxPageSize))
	return svc, func() { db.Close() }, nil
}

func mustString(cmd *cobra.Command, name string) string {
	s, _ := cmd.Flags().GetString(name)
	return strings.TrimSpace(s)
}

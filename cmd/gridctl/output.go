package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/gnemet/propertygrid"
)

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func printRows(schema *propertygrid.TableSchema, view propertygrid.GridView) {
	fields := schema.Fields()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)

	header := make([]string, len(fields))
	for i, fc := range fields {
		header[i] = strings.ToUpper(fc.Label)
	}
	fmt.Fprintln(w, strings.Join(header, "\t"))

	for _, rec := range view.Rows {
		cells := make([]string, len(fields))
		for i, fc := range fields {
			cells[i] = cellText(rec, fc)
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	w.Flush()

	info := view.Info
	mode := "client"
	if view.ServerDriven {
		mode = "server"
	}
	fmt.Printf("\nPage %d of %d (%d rows, %s-side)\n", info.Page+1, max(info.TotalPages, 1), info.Count, mode)
}

func cellText(rec propertygrid.Record, fc *propertygrid.FieldCapability) string {
	v, ok := rec[fc.APIKey]
	if !ok {
		v = rec[fc.Key]
	}
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

func printFacets(facets []*propertygrid.Facet, measure *propertygrid.FacetMeasure) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	head := "GROUP\tCOUNT"
	if measure != nil {
		head += "\t" + measure.Func
	}
	fmt.Fprintln(w, head)
	for _, f := range propertygrid.FlattenFacets(facets) {
		line := fmt.Sprintf("%s%s\t%d", strings.Repeat("  ", f.Depth), f.Label, f.Count)
		if measure != nil {
			line += fmt.Sprintf("\t%.2f", f.Value)
		}
		fmt.Fprintln(w, line)
	}
	w.Flush()
}

package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gnemet/propertygrid/internal/dataservice"
)

var tablesCmd = &cobra.Command{
	Use:   "tables [table]",
	Short: "Describe the tables and fields of the catalog",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := loadRegistry()
		if err != nil {
			return err
		}

		names := registry.Tables()
		if len(args) == 1 {
			names = args
		}
		var infos []dataservice.TableInfo
		for _, name := range names {
			schema, err := registry.Table(name)
			if err != nil {
				return err
			}
			infos = append(infos, dataservice.DescribeTable(schema))
		}

		if jsonOutput {
			return printJSON(infos)
		}
		for i, info := range infos {
			if i > 0 {
				fmt.Println()
			}
			fmt.Printf("%s (%s)\n", info.Name, info.Operation)
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "  KEY\tAPI KEY\tCONTROL\tSEARCHABLE\tOPTIONS")
			for _, f := range info.Fields {
				opts := make([]string, 0, len(f.Options))
				for _, o := range f.Options {
					label := o.Label
					if label == "" {
						label = o.String()
					}
					opts = append(opts, label)
				}
				searchable := ""
				if f.Searchable {
					searchable = "yes"
				}
				fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%s\n", f.Key, f.APIKey, f.Control, searchable, strings.Join(opts, ", "))
			}
			w.Flush()
		}
		return nil
	},
}

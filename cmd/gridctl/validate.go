package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/xeipuuv/gojsonschema"

	"github.com/gnemet/propertygrid"
)

var validateCmd = &cobra.Command{
	Use:   "validate <catalog>...",
	Short: "Check catalog files against the catalog schema",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		schemaLoader := gojsonschema.NewBytesLoader(propertygrid.CatalogSchema())
		if path, _ := cmd.Flags().GetString("schema"); path != "" {
			abs, err := filepath.Abs(path)
			if err != nil {
				return fmt.Errorf("invalid schema path: %w", err)
			}
			schemaLoader = gojsonschema.NewReferenceLoader("file://" + abs)
		}

		allValid := true
		for _, arg := range args {
			name := filepath.Base(arg)
			catalogPath, err := filepath.Abs(arg)
			if err != nil {
				fmt.Printf("✗ invalid catalog path: %s\n", arg)
				allValid = false
				continue
			}

			// YAML catalogs are converted and schema-checked by LoadRegistry.
			var violations []string
			switch strings.ToLower(filepath.Ext(catalogPath)) {
			case ".yaml", ".yml":
			default:
				violations, err = propertygrid.SchemaViolations(schemaLoader, gojsonschema.NewReferenceLoader("file://"+catalogPath))
			}
			if err != nil {
				fmt.Printf("✗ error validating %s: %v\n", name, err)
				allValid = false
				continue
			}
			if len(violations) > 0 {
				fmt.Printf("✗ %s is invalid\n", name)
				for _, v := range violations {
					fmt.Printf("   - %s\n", v)
				}
				allValid = false
				continue
			}

			// Schema-valid catalogs can still reference unknown fields.
			if _, err := propertygrid.LoadRegistry(catalogPath, cfg.Catalog.Lang); err != nil {
				fmt.Printf("✗ %s: %v\n", name, err)
				allValid = false
				continue
			}
			fmt.Printf("✓ %s is valid\n", name)
		}

		if !allValid {
			os.Exit(1)
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().String("schema", "", "schema file (default: embedded catalog schema)")
}

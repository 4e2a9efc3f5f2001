package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/SoleStyle/solestyle/internal/domain/catalog"
)

var (
	catalogFormat string
	catalogOutput string
	catalogFilter string
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Export, import, search or reseed the product catalog",
}

var catalogExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the catalog as JSON or YAML",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			data, err := encodeSnapshot(a.catalog.ExportDatabase(ctx), catalogFormat)
			if err != nil {
				return err
			}
			return writeOutput(cmd, catalogOutput, data)
		})
	},
}

var catalogImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace the catalog from a JSON or YAML file",
	Long: `Replace the catalog from a file. Files ending in .yaml or .yml are read
as YAML, anything else as JSON. The whole file is rejected if any product
fails validation.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		snap, err := decodeSnapshot(data, args[0])
		if err != nil {
			return err
		}
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			if err := a.catalog.ImportDatabase(ctx, snap); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d products (%d hero)\n",
				a.catalog.ProductCount(), len(a.catalog.GetHeroProducts(ctx)))
			return nil
		})
	},
}

var catalogSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search products by text or with a CEL filter",
	Long: `Search products by name, description or category, or filter them with a
CEL expression.

Examples:
  solestyle catalog search oxford
  solestyle catalog search --filter 'price < 150.0 && has_size(sizes, "9")'`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 && catalogFilter == "" {
			return fmt.Errorf("give a query or --filter")
		}
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			var products []catalog.Product
			if catalogFilter != "" {
				var err error
				if products, err = a.catalog.FilterProducts(ctx, catalogFilter); err != nil {
					return err
				}
			} else {
				products = a.catalog.SearchProducts(ctx, args[0])
			}
			printProducts(cmd.OutOrStdout(), products)
			return nil
		})
	},
}

var catalogSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Replace the catalog with the bundled products",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := catalog.Seed()
		if err != nil {
			return err
		}
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			if err := a.catalog.ImportDatabase(ctx, snap); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d products\n", a.catalog.ProductCount())
			return nil
		})
	},
}

func init() {
	catalogExportCmd.Flags().StringVar(&catalogFormat, "format", "json", "output format: json or yaml")
	catalogExportCmd.Flags().StringVarP(&catalogOutput, "output", "o", "", "write to file instead of stdout")
	catalogSearchCmd.Flags().StringVar(&catalogFilter, "filter", "", "CEL filter expression")
	catalogCmd.AddCommand(catalogExportCmd, catalogImportCmd, catalogSearchCmd, catalogSeedCmd)
	rootCmd.AddCommand(catalogCmd)
}

func encodeSnapshot(snap catalog.Snapshot, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case "json":
		return json.MarshalIndent(snap, "", "  ")
	case "yaml", "yml":
		return catalog.MarshalYAML(snap)
	default:
		return nil, fmt.Errorf("unknown format %q (want json or yaml)", format)
	}
}

// decodeSnapshot picks the decoder from the file extension.
func decodeSnapshot(data []byte, name string) (catalog.Snapshot, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return catalog.ParseYAML(data)
	}
	var snap catalog.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return catalog.Snapshot{}, fmt.Errorf("parse catalog json: %w", err)
	}
	return snap, nil
}

func printProducts(w io.Writer, products []catalog.Product) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tPRICE\tIN STOCK")
	for _, p := range products {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%t\n", p.ID, p.Name, p.Category, p.Price, p.InStock)
	}
	_ = tw.Flush()
}

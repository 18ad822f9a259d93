package cmd

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/insighthub-cli/internal/analysis"
	"github.com/KaramelBytes/insighthub-cli/internal/datasource"
	"github.com/KaramelBytes/insighthub-cli/internal/utils"
)

var (
	srcName     string
	srcDesc     string
	srcLimit    int
	srcBooleans bool
	srcJSON     bool
)

var sourceCmd = &cobra.Command{
	Use:     "source",
	Aliases: []string{"sources", "ds"},
	Short:   "Manage stored data sources",
}

var sourceAddCmd = &cobra.Command{
	Use:   "add <files...>",
	Short: "Upload CSV files as data sources (supports globs)",
	Example: `  insighthub source add sales.csv --name "Q1 Sales" --desc "first quarter"
  insighthub source add "data/*.csv"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := expandInputs(args)
		if err != nil {
			return err
		}
		if srcName != "" && len(files) > 1 {
			return fmt.Errorf("--name can only be used with a single file")
		}
		svc, closeFn, err := openService(cmd.Context(), nil, "", "")
		if err != nil {
			return err
		}
		defer closeFn()

		out := cmd.OutOrStdout()
		var failed int
		for i, f := range files {
			data, err := os.ReadFile(f)
			if err != nil {
				fmt.Fprintf(out, "[%d/%d] ✗ %s: %v\n", i+1, len(files), f, err)
				failed++
				continue
			}
			ds, err := svc.Register(cmd.Context(), datasource.Upload{
				Name:        srcName,
				Description: srcDesc,
				FileName:    filepath.Base(f),
				ContentType: mime.TypeByExtension(filepath.Ext(f)),
				Data:        data,
			})
			if err != nil {
				fmt.Fprintf(out, "[%d/%d] ✗ %s: %v\n", i+1, len(files), f, err)
				failed++
				continue
			}
			rows := 0
			if ds.Schema != nil {
				rows = ds.Schema.RowCount
			}
			fmt.Fprintf(out, "[%d/%d] ✓ Added '%s' (%s), %d rows\n", i+1, len(files), ds.Name, ds.ID, rows)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d files failed", failed, len(files))
		}
		return nil
	},
}

var sourceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored data sources, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeFn, err := openService(cmd.Context(), nil, "", "")
		if err != nil {
			return err
		}
		defer closeFn()
		list, err := svc.List(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if srcJSON {
			b, err := utils.PrettyJSON(list)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
			return nil
		}
		if len(list) == 0 {
			fmt.Fprintln(out, "No data sources. Add one with 'insighthub source add <file>'.")
			return nil
		}
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tROWS\tCOLUMNS\tCREATED")
		for _, ds := range list {
			rows, cols := 0, 0
			if ds.Schema != nil {
				rows, cols = ds.Schema.RowCount, len(ds.Schema.Columns)
			}
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", ds.ID, ds.Name, rows, cols, ds.CreatedAt.Local().Format("2006-01-02 15:04"))
		}
		return tw.Flush()
	},
}

var sourceShowCmd = &cobra.Command{
	Use:   "show <id|name>",
	Short: "Show a data source and its schema",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeFn, err := openService(cmd.Context(), nil, "", "")
		if err != nil {
			return err
		}
		defer closeFn()
		ds, err := svc.Resolve(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if srcJSON {
			b, err := utils.PrettyJSON(ds)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
			return nil
		}
		fmt.Fprintf(out, "ID: %s\nName: %s\n", ds.ID, ds.Name)
		if ds.Description != "" {
			fmt.Fprintf(out, "Description: %s\n", ds.Description)
		}
		fmt.Fprintf(out, "File: %s (%d bytes)\nCreated: %s\n\n", ds.OriginalName, ds.Size, ds.CreatedAt.Local().Format("2006-01-02 15:04:05"))
		fmt.Fprint(out, ds.Schema.Markdown(ds.Name))
		return nil
	},
}

var sourceSampleCmd = &cobra.Command{
	Use:   "sample <id|name>",
	Short: "Print the first rows of a data source as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeFn, err := openService(cmd.Context(), nil, "", "")
		if err != nil {
			return err
		}
		defer closeFn()
		ds, err := svc.Resolve(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		sample, err := svc.Sample(cmd.Context(), ds.ID, srcLimit)
		if err != nil {
			return err
		}
		b, err := utils.PrettyJSON(sample)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(b))
		return nil
	},
}

var sourceInsightsCmd = &cobra.Command{
	Use:   "insights <id|name>",
	Short: "Compute per-column insights for a stored data source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeFn, err := openService(cmd.Context(), nil, "", "")
		if err != nil {
			return err
		}
		defer closeFn()
		ds, err := svc.Resolve(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		rep, err := svc.Insights(cmd.Context(), ds.ID, srcLimit, analysis.InsightOptions{Booleans: srcBooleans})
		if err != nil {
			return err
		}
		return printInsights(cmd, rep, srcJSON)
	},
}

var sourceRemoveCmd = &cobra.Command{
	Use:     "remove <id|name>",
	Aliases: []string{"rm"},
	Short:   "Delete a data source, its file and its analyses",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeFn, err := openService(cmd.Context(), nil, "", "")
		if err != nil {
			return err
		}
		defer closeFn()
		ds, err := svc.Resolve(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if err := svc.Delete(cmd.Context(), ds.ID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Removed '%s' (%s)\n", ds.Name, ds.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sourceCmd)
	sourceCmd.AddCommand(sourceAddCmd, sourceListCmd, sourceShowCmd, sourceSampleCmd, sourceInsightsCmd, sourceRemoveCmd)

	sourceAddCmd.Flags().StringVar(&srcName, "name", "", "data source name (default: file name without extension)")
	sourceAddCmd.Flags().StringVar(&srcDesc, "desc", "", "data source description")
	sourceListCmd.Flags().BoolVar(&srcJSON, "json", false, "print as JSON")
	sourceShowCmd.Flags().BoolVar(&srcJSON, "json", false, "print as JSON")
	sourceSampleCmd.Flags().IntVar(&srcLimit, "limit", 0, "maximum rows (default from config)")
	sourceInsightsCmd.Flags().IntVar(&srcLimit, "limit", 0, "maximum rows (default from config)")
	sourceInsightsCmd.Flags().BoolVar(&srcBooleans, "booleans", false, "include insights for boolean columns")
	sourceInsightsCmd.Flags().BoolVar(&srcJSON, "json", false, "print the report as JSON")
}

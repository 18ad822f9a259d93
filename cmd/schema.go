package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/insighthub-cli/internal/analysis"
	"github.com/KaramelBytes/insighthub-cli/internal/utils"
)

var (
	schSampleSize int
	schJSON       bool
	parseLimit    int
	insLimit      int
	insBooleans   bool
	insJSON       bool
)

func readCSVFile(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(b), nil
}

var schemaCmd = &cobra.Command{
	Use:   "schema <file>",
	Short: "Infer column types and statistics from a CSV file",
	Example: `  insighthub schema sales.csv
  insighthub schema sales.csv --sample-size 500 --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readCSVFile(args[0])
		if err != nil {
			return err
		}
		n := schSampleSize
		if n <= 0 && cfg != nil {
			n = cfg.SampleSize
		}
		sch := analysis.InferSchema(text, n)
		logger.Debug("schema inferred", "file", args[0], "rows", sch.RowCount, "columns", len(sch.Columns))
		out := cmd.OutOrStdout()
		if schJSON {
			b, err := utils.PrettyJSON(sch)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
			return nil
		}
		name := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
		fmt.Fprint(out, sch.Markdown(name))
		return nil
	},
}

var parseCmd = &cobra.Command{
	Use:   "parse <file>",
	Short: "Parse CSV rows into typed records (one JSON object per line)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readCSVFile(args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		for _, r := range analysis.ParseRows(text, parseLimit) {
			if err := enc.Encode(r); err != nil {
				return err
			}
		}
		return nil
	},
}

var insightsCmd = &cobra.Command{
	Use:   "insights <file>",
	Short: "Compute per-column insights for a CSV file",
	Example: `  insighthub insights sales.csv
  insighthub insights sales.csv --limit 1000 --booleans --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readCSVFile(args[0])
		if err != nil {
			return err
		}
		limit := insLimit
		if limit <= 0 && cfg != nil {
			limit = cfg.SampleLimit
		}
		rep := analysis.GenerateInsightsWithOptions(analysis.ParseRows(text, limit), analysis.InsightOptions{Booleans: insBooleans})
		return printInsights(cmd, rep, insJSON)
	},
}

func printInsights(cmd *cobra.Command, rep *analysis.InsightReport, asJSON bool) error {
	out := cmd.OutOrStdout()
	if asJSON {
		b, err := utils.PrettyJSON(rep)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(b))
		return nil
	}
	if len(rep.Insights) == 0 {
		fmt.Fprintln(out, "No insights: the data has no rows.")
		return nil
	}
	fmt.Fprint(out, rep.Markdown())
	return nil
}

func init() {
	rootCmd.AddCommand(schemaCmd, parseCmd, insightsCmd)
	schemaCmd.Flags().IntVar(&schSampleSize, "sample-size", 0, "data rows to sample for inference (default from config)")
	schemaCmd.Flags().BoolVar(&schJSON, "json", false, "print the schema as JSON")
	parseCmd.Flags().IntVar(&parseLimit, "limit", 0, "maximum rows to parse (0 = all)")
	insightsCmd.Flags().IntVar(&insLimit, "limit", 0, "maximum rows to use (default from config)")
	insightsCmd.Flags().BoolVar(&insBooleans, "booleans", false, "include insights for boolean columns")
	insightsCmd.Flags().BoolVar(&insJSON, "json", false, "print the report as JSON")
}

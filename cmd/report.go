package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/insighthub-cli/internal/datasource"
	"github.com/KaramelBytes/insighthub-cli/internal/utils"
)

var (
	repDesc    string
	repContent string
	repPublic  bool
	repJSON    bool
)

var reportCmd = &cobra.Command{
	Use:     "report",
	Aliases: []string{"reports"},
	Short:   "Manage saved reports",
}

var reportAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Save a report",
	Example: `  insighthub report add "Weekly KPIs" --desc "sales and churn"
  insighthub report add "Q1 review" --content @q1.json --public`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		content, err := readReportContent(repContent)
		if err != nil {
			return err
		}
		svc, closeFn, err := openService(cmd.Context(), nil, "", "")
		if err != nil {
			return err
		}
		defer closeFn()
		r, err := svc.CreateReport(cmd.Context(), datasource.ReportInput{
			Name:        args[0],
			Description: repDesc,
			Content:     content,
			IsPublic:    repPublic,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Saved report '%s' (%s)\n", r.Name, r.ID)
		return nil
	},
}

// readReportContent accepts inline JSON or @path to a JSON file.
func readReportContent(v string) (json.RawMessage, error) {
	if path, ok := strings.CutPrefix(v, "@"); ok {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read report content: %w", err)
		}
		return json.RawMessage(b), nil
	}
	return json.RawMessage(v), nil
}

var reportListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved reports, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeFn, err := openService(cmd.Context(), nil, "", "")
		if err != nil {
			return err
		}
		defer closeFn()
		list, err := svc.Reports(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if repJSON {
			b, err := utils.PrettyJSON(list)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
			return nil
		}
		if len(list) == 0 {
			fmt.Fprintln(out, "No reports yet.")
			return nil
		}
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tPUBLIC\tDESCRIPTION\tCREATED")
		for _, r := range list {
			fmt.Fprintf(tw, "%s\t%s\t%t\t%s\t%s\n", r.ID, r.Name, r.IsPublic, utils.TruncateRunes(r.Description, 40), r.CreatedAt.Local().Format("2006-01-02 15:04"))
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.AddCommand(reportAddCmd, reportListCmd)
	reportAddCmd.Flags().StringVar(&repDesc, "desc", "", "report description")
	reportAddCmd.Flags().StringVar(&repContent, "content", "", "report content as JSON, or @file.json (default {})")
	reportAddCmd.Flags().BoolVar(&repPublic, "public", false, "mark the report as public")
	reportListCmd.Flags().BoolVar(&repJSON, "json", false, "print as JSON")
}

package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/insighthub-cli/internal/ai"
)

var (
	modelsProvider string
	modelsJSON     bool
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Inspect known models and provider defaults",
	Example: `  insighthub models list
  insighthub models list --provider ollama --json`,
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the built-in model table",
	RunE: func(cmd *cobra.Command, args []string) error {
		provider := strings.ToLower(modelsProvider)
		switch provider {
		case ai.ProviderLocal:
			provider = ai.ProviderOllama
		case ai.ProviderGoogle:
			provider = ai.ProviderGemini
		}
		list := ai.Models(provider)
		out := cmd.OutOrStdout()
		if modelsJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(list)
		}
		if len(list) == 0 {
			return fmt.Errorf("no models known for provider %q (available: %s)", modelsProvider, strings.Join(ai.Providers(), ", "))
		}
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "PROVIDER\tMODEL\tCONTEXT\tDEFAULT")
		for _, mi := range list {
			def := ""
			if ai.DefaultModel(mi.Provider) == mi.Name {
				def = "✓"
			}
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", mi.Provider, mi.Name, mi.ContextTokens, def)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.AddCommand(modelsListCmd)
	modelsListCmd.Flags().StringVar(&modelsProvider, "provider", "", "only list models for this provider")
	modelsListCmd.Flags().BoolVar(&modelsJSON, "json", false, "print as JSON")
}

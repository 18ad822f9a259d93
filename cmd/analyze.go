package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/KaramelBytes/insighthub-cli/internal/ai"
	"github.com/KaramelBytes/insighthub-cli/internal/analysis"
	"github.com/KaramelBytes/insighthub-cli/internal/utils"
)

var (
	anaSource     string
	anaProvider   string
	anaModel      string
	anaMaxTokens  int
	anaTemp       float64
	anaDryRun     bool
	anaJSON       bool
	anaStream     bool
	anaOllamaHost string
	anaTimeoutSec int
	anaListLimit  int
)

// recordingAnalyzer keeps the last runtime error so the CLI can explain a
// degraded result.
type recordingAnalyzer struct {
	next *ai.Analyzer
	err  error
}

func (r *recordingAnalyzer) Analyze(ctx context.Context, question, data string, schema *analysis.Schema) (*ai.AnalysisResult, error) {
	res, err := r.next.Analyze(ctx, question, data, schema)
	r.err = err
	return res, err
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <question...>",
	Short: "Ask an AI model a question about a stored data source",
	Example: `  insighthub analyze -s sales "Which region has the highest revenue?"
  insighthub analyze -s sales --provider ollama --model llama3.1:8b "Any outliers?"
  insighthub analyze -s sales --dry-run "What trends stand out?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if anaSource == "" {
			return fmt.Errorf("--source is required")
		}
		if err := ensureConfig(); err != nil {
			return err
		}
		// Reset flags that can carry over between invocations unless set in THIS run.
		if f := cmd.Flags(); f != nil {
			provided := map[string]bool{}
			f.Visit(func(fl *pflag.Flag) {
				provided[fl.Name] = true
			})
			if !provided["provider"] {
				anaProvider = ""
			}
			if !provided["model"] {
				anaModel = ""
			}
			if !provided["max-tokens"] {
				anaMaxTokens = 0
			}
			if !provided["temp"] {
				anaTemp = 0
			}
			if !provided["dry-run"] {
				anaDryRun = false
			}
			if !provided["json"] {
				anaJSON = false
			}
			if !provided["stream"] {
				anaStream = false
			}
			if !provided["timeout-sec"] {
				anaTimeoutSec = 180
			}
		}
		question := strings.TrimSpace(strings.Join(args, " "))
		out := cmd.OutOrStdout()

		if anaDryRun {
			svc, closeFn, err := openService(cmd.Context(), nil, "", "")
			if err != nil {
				return err
			}
			defer closeFn()
			ds, err := svc.Resolve(cmd.Context(), anaSource)
			if err != nil {
				return err
			}
			prompt, err := svc.Prompt(cmd.Context(), ds.ID, question)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "--dry-run: no API call will be made. Prompt preview below (≈%d tokens) --\n", utils.CountTokens(prompt))
			fmt.Fprintln(out, prompt)
			return nil
		}

		client, providerName, err := buildRuntime(cfg, runtimeOptions{
			ProviderFlag: anaProvider,
			OllamaHost:   anaOllamaHost,
		})
		if err != nil {
			return err
		}
		model := selectModel(cfg, providerName, anaModel)

		maxTokens := anaMaxTokens
		if maxTokens == 0 && cfg != nil && cfg.MaxTokens > 0 {
			maxTokens = cfg.MaxTokens
		}
		if maxTokens == 0 {
			maxTokens = 1024
		}
		temp := anaTemp
		if temp == 0 && cfg != nil && cfg.Temperature > 0 {
			temp = cfg.Temperature
		}

		rec := &recordingAnalyzer{next: &ai.Analyzer{
			Runtime:     client,
			Model:       model,
			MaxTokens:   maxTokens,
			Temperature: temp,
		}}
		if anaStream && !anaJSON {
			rec.next.OnDelta = func(d string) { _, _ = io.WriteString(out, d) }
		}

		svc, closeFn, err := openService(cmd.Context(), rec, providerName, model)
		if err != nil {
			return err
		}
		defer closeFn()
		ds, err := svc.Resolve(cmd.Context(), anaSource)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(anaTimeoutSec)*time.Second)
		defer cancel()

		if mi, ok := ai.LookupModel(model); ok {
			if prompt, err := svc.Prompt(ctx, ds.ID, question); err == nil {
				if tokens := utils.CountTokens(prompt); tokens+maxTokens > mi.ContextTokens {
					fmt.Fprintf(os.Stderr, "⚠ Prompt (≈%d tokens) + max-tokens (%d) exceeds %s context window (~%d tokens).\n",
						tokens, maxTokens, mi.Name, mi.ContextTokens)
				}
			}
		}
		if !anaJSON {
			fmt.Fprintf(out, "⚙ Analyzing '%s' with %s model=%s ...\n", ds.Name, providerName, model)
		}
		a, err := svc.Analyze(ctx, ds.ID, question)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return fmt.Errorf("analysis timed out after %ds (raise --timeout-sec)", anaTimeoutSec)
			}
			return err
		}
		if anaStream && !anaJSON {
			fmt.Fprintln(out)
		}
		if a.Degraded && rec.err != nil {
			fmt.Fprintf(os.Stderr, "⚠ %v\n", explainAIError(rec.err, providerName, model))
		}
		if anaJSON {
			b, err := utils.PrettyJSON(a)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
			return nil
		}
		printAnalysis(out, a.Result)
		fmt.Fprintf(out, "✓ Saved analysis %s\n", a.ID)
		return nil
	},
}

func printAnalysis(w io.Writer, r ai.AnalysisResult) {
	fmt.Fprintf(w, "\nSummary: %s\n", r.Summary)
	if len(r.Insights) > 0 {
		fmt.Fprintln(w, "\nInsights:")
		for _, in := range r.Insights {
			fmt.Fprintf(w, "  - %s\n", in)
		}
	}
	if r.VisualizationSuggestion != "" {
		fmt.Fprintf(w, "\nSuggested visualization: %s\n", r.VisualizationSuggestion)
	}
}

var analyzeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored analyses, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeFn, err := openService(cmd.Context(), nil, "", "")
		if err != nil {
			return err
		}
		defer closeFn()
		sourceID := ""
		if anaSource != "" {
			ds, err := svc.Resolve(cmd.Context(), anaSource)
			if err != nil {
				return err
			}
			sourceID = ds.ID
		}
		list, err := svc.Analyses(cmd.Context(), sourceID, anaListLimit)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(list) == 0 {
			fmt.Fprintln(out, "No analyses yet.")
			return nil
		}
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tSOURCE\tPROMPT\tDEGRADED\tFEEDBACK\tCREATED")
		for _, a := range list {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\t%s\n", a.ID, a.DataSourceID, utils.TruncateRunes(a.Prompt, 40), a.Degraded,
				utils.TruncateRunes(a.Feedback, 30), a.CreatedAt.Local().Format("2006-01-02 15:04"))
		}
		return tw.Flush()
	},
}

var analyzeFeedbackCmd = &cobra.Command{
	Use:     "feedback <analysis-id> <feedback...>",
	Short:   "Attach feedback to a stored analysis",
	Example: `  insighthub analyze feedback 3f2c... "The revenue trend missed Q4 returns"`,
	Args:    cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeFn, err := openService(cmd.Context(), nil, "", "")
		if err != nil {
			return err
		}
		defer closeFn()
		a, err := svc.Feedback(cmd.Context(), args[0], strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Feedback saved on analysis %s\n", a.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.AddCommand(analyzeListCmd, analyzeFeedbackCmd)
	analyzeCmd.PersistentFlags().StringVarP(&anaSource, "source", "s", "", "data source id or name")
	analyzeCmd.Flags().StringVar(&anaProvider, "provider", "", "AI provider: gemini|openrouter|ollama (default from config)")
	analyzeCmd.Flags().StringVar(&anaModel, "model", "", "model name (default from config or provider)")
	analyzeCmd.Flags().IntVar(&anaMaxTokens, "max-tokens", 0, "maximum tokens in the reply (default from config)")
	analyzeCmd.Flags().Float64Var(&anaTemp, "temp", 0, "sampling temperature (default from config)")
	analyzeCmd.Flags().BoolVar(&anaDryRun, "dry-run", false, "print the prompt without calling a model")
	analyzeCmd.Flags().BoolVar(&anaJSON, "json", false, "print the stored analysis as JSON")
	analyzeCmd.Flags().BoolVar(&anaStream, "stream", false, "stream the raw model reply when supported")
	analyzeCmd.Flags().StringVar(&anaOllamaHost, "ollama-host", "", "Ollama host (default from config)")
	analyzeCmd.Flags().IntVar(&anaTimeoutSec, "timeout-sec", 180, "request timeout in seconds")
	analyzeListCmd.Flags().IntVar(&anaListLimit, "limit", 20, "maximum analyses to list")
}

package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/insighthub-cli/internal/config"
	"github.com/KaramelBytes/insighthub-cli/internal/logging"
)

var (
	cfgFile string
	debug   bool
	// Retry/HTTP flags (override config if set)
	flagHTTPTimeoutSec   int
	flagRetryMaxAttempts int
	flagRetryBaseDelayMs int
	flagRetryMaxDelayMs  int
	flagLogFormat        string

	// Loaded configuration
	cfg *cfgpkg.Global
	// logger writes diagnostics to stderr; user-facing output goes to stdout.
	logger = logging.Nop()
)

var rootCmd = &cobra.Command{
	Use:   "insighthub",
	Short: "InsightHub CLI: profile CSV data and ask AI questions about it",
	Long: `InsightHub infers schemas and per-column insights from CSV files, keeps uploaded
data sources in a local catalog, and asks Gemini, OpenRouter or a local Ollama model
natural-language questions about them. The same operations are served over HTTP by 'insighthub serve'.`,
	SilenceUsage: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()
	cobra.OnInitialize(loadConfig)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.insighthub/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().IntVar(&flagHTTPTimeoutSec, "http-timeout", 0, "HTTP client timeout in seconds (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryMaxAttempts, "retry-max", 0, "max retry attempts on 429/5xx (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryBaseDelayMs, "retry-base-ms", 0, "base retry backoff in ms (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryMaxDelayMs, "retry-max-ms", 0, "max retry backoff cap in ms (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "log format: text|json (overrides config)")
}

func loadConfig() {
	if err := ensureConfig(); err != nil {
		// Non-fatal: allow running commands that don't need config
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		logger = logging.New("text", "warn", os.Stderr)
	}
}

// ensureConfig loads the configuration once and applies CLI overrides.
func ensureConfig() error {
	if cfg != nil {
		return nil
	}
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		return err
	}
	cfg = c

	// Apply CLI overrides if provided
	f := rootCmd.PersistentFlags()
	if f.Changed("http-timeout") && flagHTTPTimeoutSec > 0 {
		cfg.HTTPTimeoutSec = flagHTTPTimeoutSec
	}
	if f.Changed("retry-max") && flagRetryMaxAttempts > 0 {
		cfg.RetryMaxAttempts = flagRetryMaxAttempts
	}
	if f.Changed("retry-base-ms") && flagRetryBaseDelayMs > 0 {
		cfg.RetryBaseDelayMs = flagRetryBaseDelayMs
	}
	if f.Changed("retry-max-ms") && flagRetryMaxDelayMs > 0 {
		cfg.RetryMaxDelayMs = flagRetryMaxDelayMs
	}
	if f.Changed("log-format") && flagLogFormat != "" {
		cfg.LogFormat = flagLogFormat
	}

	logger = newLogger("warn")
	return nil
}

// newLogger builds the logger from config; fallback applies when no
// log_level is configured.
func newLogger(fallback string) logging.Logger {
	format, level := "text", fallback
	if cfg != nil {
		format = cfg.LogFormat
		if cfg.LogLevel != "" {
			level = cfg.LogLevel
		}
	}
	if debug {
		level = "debug"
	}
	return logging.New(format, level, os.Stderr)
}

package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/insighthub-cli/internal/ai"
	"github.com/KaramelBytes/insighthub-cli/internal/server"
)

var (
	srvAddr       string
	srvProvider   string
	srvModel      string
	srvOllamaHost string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the data-source and analysis API over HTTP",
	Example: `  insighthub serve
  insighthub serve --addr :9090 --provider ollama --model llama3.1:8b`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureConfig(); err != nil {
			return err
		}
		logger = newLogger("info")

		client, providerName, err := buildRuntime(cfg, runtimeOptions{
			ProviderFlag: srvProvider,
			OllamaHost:   srvOllamaHost,
		})
		if err != nil {
			return err
		}
		model := selectModel(cfg, providerName, srvModel)
		an := &ai.Analyzer{Runtime: client, Model: model}
		if cfg != nil {
			an.MaxTokens = cfg.MaxTokens
			an.Temperature = cfg.Temperature
		}

		svc, closeFn, err := openService(cmd.Context(), an, providerName, model)
		if err != nil {
			return err
		}
		defer closeFn()

		addr := srvAddr
		if addr == "" {
			addr = cfg.ServeAddr
		}
		if !debug {
			gin.SetMode(gin.ReleaseMode)
		}
		srv := server.New(svc, logger, server.Options{
			MaxUploadBytes: int64(cfg.MaxUploadMB) << 20,
			SampleSize:     cfg.SampleSize,
		})

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		fmt.Fprintf(cmd.OutOrStdout(), "✓ InsightHub API on http://%s (provider=%s model=%s)\n", addr, providerName, model)
		return srv.Run(ctx, addr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&srvAddr, "addr", "", "listen address (default from config serve_addr)")
	serveCmd.Flags().StringVar(&srvProvider, "provider", "", "AI provider: gemini|openrouter|ollama (default from config)")
	serveCmd.Flags().StringVar(&srvModel, "model", "", "model name (default from config or provider)")
	serveCmd.Flags().StringVar(&srvOllamaHost, "ollama-host", "", "Ollama host (default from config)")
}

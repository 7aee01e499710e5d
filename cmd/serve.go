package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/KaramelBytes/spendloom-cli/internal/archive"
	"github.com/KaramelBytes/spendloom-cli/internal/log"
	"github.com/KaramelBytes/spendloom-cli/internal/prompt"
	"github.com/KaramelBytes/spendloom-cli/internal/server"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var (
	serveAddr     string
	serveProvider string
	serveModel    string
	serveNoLLM    bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the analysis pipeline over HTTP",
	Example: `  spendloom serve --addr :8080
  curl -F file=@po_export.xlsx localhost:8080/api/analyze`,
	RunE: func(cmd *cobra.Command, args []string) error {
		in := inputFlags{}
		opt, err := in.analysisOptions()
		if err != nil {
			return err
		}
		addr := serveAddr
		if addr == "" && cfg != nil {
			addr = cfg.ServerAddr
		}
		if addr == "" {
			addr = ":8080"
		}
		if !debug {
			gin.SetMode(gin.ReleaseMode)
		}

		so := server.Options{Analysis: opt, Logger: logger}
		if !serveNoLLM {
			rt, providerName, err := buildRuntime(cfg, runtimeOptions{ProviderFlag: serveProvider})
			if err != nil {
				logger.Warn("LLM runtime unavailable; /api/summarize disabled", log.FieldProvider, providerName, log.FieldError, err)
			} else {
				s := &prompt.Summarizer{Runtime: rt, Model: selectModel(cfg, serveModel)}
				if cfg != nil {
					s.MaxTokens = cfg.MaxTokens
					s.Temperature = cfg.Temperature
				}
				so.Summarizer = s
			}
		}
		if cfg != nil && cfg.ArchiveEnabled {
			st, err := archive.Open(cfg.ArchivePath)
			if err != nil {
				return err
			}
			defer st.Close()
			so.Archive = st
		}
		pub, err := openPublisher()
		if err != nil {
			return err
		}
		defer pub.Close()
		so.Publisher = pub

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return server.New(so).ListenAndServe(ctx, addr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config server_addr, :8080)")
	serveCmd.Flags().StringVar(&serveProvider, "provider", "", "LLM provider for /api/summarize")
	serveCmd.Flags().StringVar(&serveModel, "model", "", "LLM model for /api/summarize")
	serveCmd.Flags().BoolVar(&serveNoLLM, "no-llm", false, "disable /api/summarize")
}

package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"futureslab/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the scenario generation endpoint",
	Long: `Serve POST /api/generate. Each request assembles the step's prompt from
the reference tables, calls the model and stores the narrative on the
session so every participant receives it.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (default from FUTURESLAB_ADDR)")
	serveCmd.Flags().Bool("memory", false, "Use an in-process store seeded with the embedded reference content")
	serveCmd.Flags().Bool("dedupe", true, "Share one generation between concurrent requests for the same session and step")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Addr = addr
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var gw gateway
	if memory, _ := cmd.Flags().GetBool("memory"); memory {
		logger.Warn("using in-process store; sessions are not shared with other processes")
		gw, err = openMemory(ctx, logger)
	} else {
		gw, err = openSupabase(cfg)
	}
	if err != nil {
		return err
	}

	dedupe, _ := cmd.Flags().GetBool("dedupe")
	p, closeGen, err := newPipeline(ctx, cfg, gw, dedupe, logger)
	if err != nil {
		return err
	}
	defer closeGen() //nolint:errcheck

	logger.Info("starting generation server",
		zap.String("addr", cfg.Addr),
		zap.String("model", cfg.Model),
		zap.String("sector", cfg.Sector))
	return server.New(p, logger).Run(ctx, cfg.Addr)
}

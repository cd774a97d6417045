package cli

import (
	"context"
	"net/http"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"futureslab/internal/server"
	"futureslab/internal/tui"
	"futureslab/internal/workshop"
)

var hostCmd = &cobra.Command{
	Use:   "host",
	Short: "Host a workshop as moderator",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		lang, _ := cmd.Flags().GetString("lang")
		return runClient(cmd,
			tui.WithRole(workshop.RoleModerator),
			tui.WithLanguage(workshop.Language(lang)))
	},
}

var joinCmd = &cobra.Command{
	Use:   "join [code]",
	Short: "Join a workshop with the moderator's code",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := []tui.Option{tui.WithRole(workshop.RoleViewer)}
		if len(args) == 1 {
			opts = append(opts, tui.WithCode(args[0]))
		}
		return runClient(cmd, opts...)
	},
}

func init() {
	hostCmd.Flags().String("lang", string(workshop.LanguageEnglish), "Workshop language (en, nl)")
	for _, c := range []*cobra.Command{hostCmd, joinCmd} {
		c.Flags().String("api-url", "", "Generation server URL (default from FUTURESLAB_API_URL)")
		c.Flags().Bool("local", false, "Generate in this process instead of calling the server")
		c.Flags().String("log-file", "futureslab.log", "Where the client writes its logs")
	}
}

func runClient(cmd *cobra.Command, opts ...tui.Option) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if apiURL, _ := cmd.Flags().GetString("api-url"); apiURL != "" {
		cfg.APIURL = apiURL
	}
	logFile, _ := cmd.Flags().GetString("log-file")
	logger, err := newLogger(cfg, logFile)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	machine, db, err := newMachine(cfg, logger)
	if err != nil {
		return err
	}

	var gen tui.Generator
	if local, _ := cmd.Flags().GetBool("local"); local {
		p, closeGen, err := newPipeline(ctx, cfg, db, true, logger)
		if err != nil {
			return err
		}
		defer closeGen() //nolint:errcheck
		gen = p
	} else {
		gen = server.NewClient(cfg.APIURL, &http.Client{Timeout: cfg.GenerateTimeout + 15*time.Second})
		logger.Info("using generation server", zap.String("url", cfg.APIURL))
	}

	opts = append(opts, tui.WithLogger(logger))
	model := tui.New(ctx, machine, gen, opts...)
	_, err = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

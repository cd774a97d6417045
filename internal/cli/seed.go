package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"futureslab/internal/seed"
	"futureslab/seeds"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load prompt templates and reference content into Supabase",
	Long: `Upsert prompt templates, technology analyses and sector profiles. Without
--file the reference content built into the binary is used.`,
	Args: cobra.NoArgs,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().String("file", "", "YAML seed file")
	seedCmd.Flags().Bool("dry-run", false, "Validate the seed file without writing")
}

func runSeed(cmd *cobra.Command, args []string) error {
	data := seeds.Reference
	if path, _ := cmd.Flags().GetString("file"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading seed file: %w", err)
		}
		data = raw
	}
	f, err := seed.Parse(data)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if dry, _ := cmd.Flags().GetBool("dry-run"); dry {
		fmt.Fprintf(out, "Seed is valid: %d prompts, %d technologies, %d sectors\n",
			len(f.Prompts), len(f.Technologies), len(f.Sectors))
		return nil
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := openSupabase(cfg)
	if err != nil {
		return err
	}
	if err := seed.Apply(cmd.Context(), db, f, logger); err != nil {
		return err
	}
	fmt.Fprintf(out, "Seeded %d prompts, %d technologies, %d sectors\n",
		len(f.Prompts), len(f.Technologies), len(f.Sectors))
	return nil
}
